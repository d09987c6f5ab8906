package export

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/image-annotator/internal/dataset"
)

// VocAnnotation is one Pascal VOC file.
type VocAnnotation struct {
	XMLName   xml.Name    `xml:"annotation"`
	Folder    string      `xml:"folder"`
	Filename  string      `xml:"filename"`
	Path      string      `xml:"path"`
	Source    VocSource   `xml:"source"`
	Size      VocSize     `xml:"size"`
	Segmented int         `xml:"segmented"`
	Objects   []VocObject `xml:"object"`
}

type VocSource struct {
	Database string `xml:"database"`
}

type VocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type VocObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    VocBndBox `xml:"bndbox"`
}

// VocBndBox holds integer pixel corners.
type VocBndBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

// BuildVOC converts one frame. Only boxes are exported; rotated boxes use
// their axis-aligned extent. Corners are rounded to whole pixels.
func BuildVOC(f dataset.ExportFrame, names Classes) *VocAnnotation {
	v := &VocAnnotation{
		Folder:   "images",
		Filename: filepath.Base(f.Entry.ImagePath),
		Path:     f.Entry.ImagePath,
		Source:   VocSource{Database: "Unknown"},
		Size:     VocSize{Width: int(f.Size.Width), Height: int(f.Size.Height), Depth: 3},
	}
	for _, a := range f.Annotations {
		if a.Rejected() || !a.IsBox() {
			continue
		}
		v.Objects = append(v.Objects, VocObject{
			Name: names.Name(a.Class),
			Pose: "Unspecified",
			BndBox: VocBndBox{
				XMin: int(math.Round(a.X)),
				YMin: int(math.Round(a.Y)),
				XMax: int(math.Round(a.X + a.Width)),
				YMax: int(math.Round(a.Y + a.Height)),
			},
		})
	}
	return v
}

// Marshal renders the XML document with its header.
func (v *VocAnnotation) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize VOC XML: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// WriteVOC writes "<image name>.xml" into dir for every frame.
func WriteVOC(dir string, frames []dataset.ExportFrame, names Classes) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	res := &Result{Format: FormatVOC, Path: dir}
	for _, f := range frames {
		v := BuildVOC(f, names)
		data, err := v.Marshal()
		if err != nil {
			return res, err
		}
		name := strings.TrimSuffix(v.Filename, filepath.Ext(v.Filename)) + ".xml"
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return res, fmt.Errorf("failed to write VOC XML %s: %w", path, err)
		}
		res.Images++
		res.Annotations += len(v.Objects)
	}
	return res, nil
}
