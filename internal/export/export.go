package export

import (
	"fmt"
	"strings"
)

// Format is an export target.
type Format string

const (
	FormatCOCO Format = "coco"
	FormatVOC  Format = "voc"
)

// ParseFormat accepts a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCOCO, FormatVOC:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format: %q", s)
	}
}

// Name returns the human-readable format name.
func (f Format) Name() string {
	switch f {
	case FormatCOCO:
		return "COCO JSON"
	case FormatVOC:
		return "Pascal VOC XML"
	default:
		return string(f)
	}
}

// Result counts what an export wrote.
type Result struct {
	Format      Format `json:"format"`
	Path        string `json:"path"`
	Images      int    `json:"images"`
	Annotations int    `json:"annotations"`
}

// Classes lists class ids and resolves them to display names.
// *classes.Config satisfies it.
type Classes interface {
	IDs() []int
	Name(id int) string
}
