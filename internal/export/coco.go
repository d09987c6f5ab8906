package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/dataset"
	"github.com/ironsheep/image-annotator/internal/geometry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CocoInfo is the dataset header.
type CocoInfo struct {
	Year        int    `json:"year"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Contributor string `json:"contributor"`
	DateCreated string `json:"date_created"`
}

// CocoImage is one image record.
type CocoImage struct {
	ID       int    `json:"id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileName string `json:"file_name"`
}

// CocoAnnotation is one object. Boxes and points carry only a bbox; polygons
// also carry a segmentation.
type CocoAnnotation struct {
	ID           int         `json:"id"`
	ImageID      int         `json:"image_id"`
	CategoryID   int         `json:"category_id"`
	BBox         [4]float64  `json:"bbox"`
	Segmentation [][]float64 `json:"segmentation,omitempty"`
	Area         float64     `json:"area"`
	IsCrowd      int         `json:"iscrowd"`
}

// CocoCategory maps a category id to a class name.
type CocoCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// CocoDataset is a complete COCO file.
type CocoDataset struct {
	Info        CocoInfo         `json:"info"`
	Images      []CocoImage      `json:"images"`
	Annotations []CocoAnnotation `json:"annotations"`
	Categories  []CocoCategory   `json:"categories"`
}

// CocoOptions tunes COCO generation.
type CocoOptions struct {
	// CategoryStartID is the category id given to class 1. Defaults to 1.
	CategoryStartID int
	// Now stamps the info block. Defaults to time.Now.
	Now func() time.Time
}

// BuildCOCO assembles a COCO dataset from frames. Image ids follow frame
// order from 1; annotation ids run across the whole dataset from 1. File
// names are relative to baseDir when possible.
func BuildCOCO(frames []dataset.ExportFrame, names Classes, baseDir string, opts CocoOptions) *CocoDataset {
	start := opts.CategoryStartID
	if start == 0 {
		start = 1
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	t := now()

	out := &CocoDataset{
		Info: CocoInfo{
			Year:        t.Year(),
			Version:     "1.0",
			Description: "Dataset exported from image-annotator",
			Contributor: "image-annotator",
			DateCreated: t.Format("2006-01-02"),
		},
		Images:      []CocoImage{},
		Annotations: []CocoAnnotation{},
		Categories:  []CocoCategory{},
	}

	used := make(map[int]bool)
	annID := 1
	for i, f := range frames {
		imageID := i + 1
		out.Images = append(out.Images, CocoImage{
			ID:       imageID,
			Width:    int(f.Size.Width),
			Height:   int(f.Size.Height),
			FileName: relativeName(baseDir, f.Entry.ImagePath),
		})
		for _, a := range f.Annotations {
			if a.Rejected() {
				continue
			}
			ca := cocoAnnotation(a)
			ca.ID = annID
			ca.ImageID = imageID
			ca.CategoryID = a.Class - 1 + start
			out.Annotations = append(out.Annotations, ca)
			used[a.Class] = true
			annID++
		}
	}

	for _, id := range categoryClasses(names, used) {
		out.Categories = append(out.Categories, CocoCategory{
			ID:            id - 1 + start,
			Name:          names.Name(id),
			Supercategory: "object",
		})
	}
	return out
}

// categoryClasses lists the configured classes plus any class id used by an
// annotation but missing from the configuration, in id order.
func categoryClasses(names Classes, used map[int]bool) []int {
	ids := make(map[int]bool, len(used))
	for _, id := range names.IDs() {
		ids[id] = true
	}
	for id := range used {
		ids[id] = true
	}
	sorted := make([]int, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Ints(sorted)
	return sorted
}

func cocoAnnotation(a annotation.Annotation) CocoAnnotation {
	switch a.Kind {
	case annotation.KindPoint:
		return CocoAnnotation{BBox: [4]float64{a.X, a.Y, 1, 1}, Area: 1}
	case annotation.KindPolygon:
		b := geometry.Bounds(a.Vertices)
		seg := make([]float64, 0, 2*len(a.Vertices))
		for _, v := range a.Vertices {
			seg = append(seg, v.X, v.Y)
		}
		return CocoAnnotation{
			BBox:         [4]float64{b.X, b.Y, b.Width, b.Height},
			Segmentation: [][]float64{seg},
			Area:         geometry.PolygonArea(a.Vertices),
		}
	default:
		return CocoAnnotation{
			BBox: [4]float64{a.X, a.Y, a.Width, a.Height},
			Area: a.Width * a.Height,
		}
	}
}

func relativeName(baseDir, path string) string {
	if baseDir != "" {
		if rel, err := filepath.Rel(baseDir, path); err == nil {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.Base(path)
}

// WriteCOCO builds the COCO dataset and writes it to path.
func WriteCOCO(path string, frames []dataset.ExportFrame, names Classes, baseDir string, opts CocoOptions) (*Result, error) {
	ds := BuildCOCO(frames, names, baseDir, opts)
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize COCO JSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write COCO JSON: %w", err)
	}
	return &Result{Format: FormatCOCO, Path: path, Images: len(ds.Images), Annotations: len(ds.Annotations)}, nil
}
