package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ironsheep/image-annotator/internal/annotation"
)

// ReadState loads a full-fidelity state file. Selection is never persisted,
// so every returned annotation is unselected.
func ReadState(path string) (annotation.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state %s: %w", path, err)
	}
	var anns annotation.Snapshot
	if err := json.Unmarshal(data, &anns); err != nil {
		return nil, fmt.Errorf("failed to parse state %s: %w", path, err)
	}
	if anns == nil {
		anns = annotation.Snapshot{}
	}
	for i := range anns {
		anns[i].Selected = false
	}
	return anns, nil
}

// WriteState writes every annotation, rejected ones included, as a JSON array.
func WriteState(path string, anns annotation.Snapshot) error {
	if anns == nil {
		anns = annotation.Snapshot{}
	}
	data, err := json.MarshalIndent(anns, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state %s: %w", path, err)
	}
	return nil
}

// Source names where an entry's annotations came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceState  Source = "state"
	SourceLabels Source = "labels"
	SourceEmpty  Source = "empty"
)

// LoadAnnotations reads an entry's annotations from disk, preferring the state
// file and falling back to the label file, then to an empty set. Unreadable or
// unparsable files fall through to the next source; the last such error is
// returned alongside the result for reporting.
func LoadAnnotations(e Entry, width, height float64) (annotation.Snapshot, Source, error) {
	var lastErr error
	statePath := e.StatePath()
	if _, err := os.Stat(statePath); err == nil {
		anns, err := ReadState(statePath)
		if err == nil {
			return anns, SourceState, nil
		}
		lastErr = err
	}

	labelPath := e.LabelPath()
	if _, err := os.Stat(labelPath); err == nil {
		anns, err := ReadLabels(labelPath, width, height, 1)
		if err == nil {
			return anns, SourceLabels, lastErr
		}
		lastErr = err
	}
	return annotation.Snapshot{}, SourceEmpty, lastErr
}
