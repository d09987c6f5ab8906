// Package dataset owns everything persisted about an annotation dataset.
//
// A dataset is a manifest.json listing image entries, each paired with a YOLO
// label file. Next to every label file sits a "<label>.state.json" holding the
// full-fidelity annotations (kind, rotation, vertices, lifecycle state), which
// YOLO cannot express. Loading prefers the state file, then the labels.
//
// A Session tracks the open dataset: the current index, a per-entry cache of
// annotations and view state, completion flags, and the global view that
// follows the user between images of the same size. SaveAll writes both
// artifacts for every entry.
package dataset
