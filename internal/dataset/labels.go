package dataset

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ironsheep/image-annotator/internal/annotation"
)

// ParseLabels converts YOLO label text into Pending boxes.
//
// Each line is "class cx cy w h" with a zero-based class and geometry
// normalized to the image size. Classes are shifted to the one-based ids used
// in the editor. Lines that do not have exactly five numeric fields are
// skipped. Ids are assigned from firstID upward.
func ParseLabels(text string, width, height float64, firstID int) annotation.Snapshot {
	out := annotation.Snapshot{}
	id := firstID
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 5 {
			continue
		}
		cls, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		vals, ok := parseFloats(fields[1:])
		if !ok {
			continue
		}
		cx, cy, w, h := vals[0], vals[1], vals[2], vals[3]
		absW, absH := w*width, h*height
		out = append(out, annotation.Annotation{
			ID:     id,
			Kind:   annotation.KindBox,
			X:      cx*width - absW/2,
			Y:      cy*height - absH/2,
			Width:  absW,
			Height: absH,
			Class:  cls + 1,
			State:  annotation.StatePending,
		})
		id++
	}
	return out
}

func parseFloats(fields []string) ([]float64, bool) {
	vals := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		vals[i] = v
	}
	return vals, true
}

// FormatLabels renders the YOLO lines for anns. Only non-rejected boxes and
// rotated boxes are written; rotation is dropped. Classes are shifted to zero
// based and floored at 0, and every geometry value is clamped to [0,1].
func FormatLabels(anns annotation.Snapshot, width, height float64) string {
	var lines []string
	for _, a := range anns {
		if a.Rejected() || !a.IsBox() {
			continue
		}
		cx := unit((a.X + a.Width/2) / width)
		cy := unit((a.Y + a.Height/2) / height)
		w := unit(a.Width / width)
		h := unit(a.Height / height)
		cls := max(a.Class-1, 0)
		lines = append(lines, fmt.Sprintf("%d %s %s %s %s", cls, formatUnit(cx), formatUnit(cy), formatUnit(w), formatUnit(h)))
	}
	return strings.Join(lines, "\n")
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(v, 1))
}

func formatUnit(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// ReadLabels loads and parses a label file. A missing file is not an error
// and yields an empty set.
func ReadLabels(path string, width, height float64, firstID int) (annotation.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return annotation.Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read labels %s: %w", path, err)
	}
	return ParseLabels(string(data), width, height, firstID), nil
}

// WriteLabels writes the YOLO label file for anns, creating parent directories.
func WriteLabels(path string, anns annotation.Snapshot, width, height float64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create label dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(FormatLabels(anns, width, height)), 0o644); err != nil {
		return fmt.Errorf("failed to write labels %s: %w", path, err)
	}
	return nil
}
