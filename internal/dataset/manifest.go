package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ManifestName is the file CreateFromFolder writes and Open looks for.
const ManifestName = "manifest.json"

// ImageExtensions lists the file extensions treated as images when scanning a
// folder. Matching is case-insensitive.
var ImageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".gif", ".webp"}

var (
	// ErrEmptyDataset is returned for a manifest or folder with no images.
	ErrEmptyDataset = errors.New("dataset has no images")
	// ErrNoDataset is returned by operations that need an open dataset.
	ErrNoDataset = errors.New("no dataset loaded")
)

// Entry is one image in a dataset and the label file that goes with it.
type Entry struct {
	ImagePath  string `json:"image"`
	LabelsPath string `json:"labels,omitempty"`
}

// LabelPath returns the YOLO label file path: the configured one, or the image
// path with its extension replaced by ".txt".
func (e Entry) LabelPath() string {
	if e.LabelsPath != "" {
		return e.LabelsPath
	}
	return replaceExt(e.ImagePath, ".txt")
}

// StatePath returns the full-fidelity state file path, which sits next to the
// label file with a ".state.json" extension.
func (e Entry) StatePath() string {
	return replaceExt(e.LabelPath(), ".state.json")
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// manifestFile is the on-disk manifest. Paths are relative to the manifest.
type manifestFile struct {
	Images  []Entry `json:"images"`
	Classes string  `json:"classes,omitempty"`
}

// Dataset is a loaded manifest with paths resolved against its directory.
type Dataset struct {
	// Path is the manifest file.
	Path string
	// Entries are the images in manifest order.
	Entries []Entry
	// ClassesFile is the class YAML named by the manifest, if any.
	ClassesFile string
}

// LoadManifest reads a manifest and resolves its relative paths.
func LoadManifest(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	if len(mf.Images) == 0 {
		return nil, ErrEmptyDataset
	}

	base := filepath.Dir(path)
	ds := &Dataset{Path: path, Entries: make([]Entry, 0, len(mf.Images))}
	for _, e := range mf.Images {
		entry := Entry{ImagePath: resolve(base, e.ImagePath)}
		if e.LabelsPath != "" {
			entry.LabelsPath = resolve(base, e.LabelsPath)
		}
		ds.Entries = append(ds.Entries, entry)
	}
	if mf.Classes != "" {
		ds.ClassesFile = resolve(base, mf.Classes)
	}
	return ds, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// CreateFromFolder scans folder for images, writes a manifest pairing each
// image with "<name>.txt" labels, and returns the manifest path. Images are
// listed in lexical order.
func CreateFromFolder(folder string) (string, error) {
	dirEntries, err := os.ReadDir(folder)
	if err != nil {
		return "", fmt.Errorf("failed to read folder: %w", err)
	}

	var images []string
	for _, de := range dirEntries {
		if de.IsDir() || !isImage(de.Name()) {
			continue
		}
		images = append(images, de.Name())
	}
	if len(images) == 0 {
		return "", fmt.Errorf("no image files found in %s: %w", folder, ErrEmptyDataset)
	}
	sort.Strings(images)

	mf := manifestFile{Images: make([]Entry, len(images))}
	for i, img := range images {
		mf.Images[i] = Entry{ImagePath: img, LabelsPath: replaceExt(img, ".txt")}
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize manifest: %w", err)
	}
	path := filepath.Join(folder, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Open loads a dataset from a manifest file, or from a folder. A folder with
// an existing manifest.json uses it; otherwise one is created.
func Open(path string) (*Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	if !info.IsDir() {
		return LoadManifest(path)
	}

	manifest := filepath.Join(path, ManifestName)
	if _, err := os.Stat(manifest); err == nil {
		return LoadManifest(manifest)
	}
	created, err := CreateFromFolder(path)
	if err != nil {
		return nil, err
	}
	return LoadManifest(created)
}

func isImage(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
