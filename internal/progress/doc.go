// Package progress keeps annotation progress that outlives a session in a
// SQLite database: which frames of each dataset are marked complete, and a
// journal of save runs.
//
// Store satisfies dataset.ProgressStore.
package progress
