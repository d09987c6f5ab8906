package dataset

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/geometry"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestEntryPaths(t *testing.T) {
	e := Entry{ImagePath: "/data/img/a.png"}
	assert.Equal(t, "/data/img/a.txt", e.LabelPath())
	assert.Equal(t, "/data/img/a.state.json", e.StatePath())

	e = Entry{ImagePath: "/data/img/a.png", LabelsPath: "/data/labels/a.txt"}
	assert.Equal(t, "/data/labels/a.txt", e.LabelPath())
	assert.Equal(t, "/data/labels/a.state.json", e.StatePath())
}

func TestLoadManifest_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	writeFile(t, path, `{"images":[{"image":"img/a.png","labels":"lbl/a.txt"},{"image":"/abs/b.jpg"}],"classes":"classes.yaml"}`)

	ds, err := LoadManifest(path)
	require.NoError(t, err)
	want := []Entry{
		{ImagePath: filepath.Join(dir, "img/a.png"), LabelsPath: filepath.Join(dir, "lbl/a.txt")},
		{ImagePath: "/abs/b.jpg"},
	}
	assert.Empty(t, cmp.Diff(want, ds.Entries))
	assert.Equal(t, filepath.Join(dir, "classes.yaml"), ds.ClassesFile)
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.json")
	writeFile(t, empty, `{"images":[]}`)
	_, err := LoadManifest(empty)
	assert.ErrorIs(t, err, ErrEmptyDataset)

	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"images":`)
	_, err = LoadManifest(bad)
	assert.Error(t, err)

	_, err = LoadManifest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestCreateFromFolder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.PNG", "a.jpg", "c.webp", "notes.txt", "d.gif"} {
		writeFile(t, filepath.Join(dir, name), "x")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o755))

	path, err := CreateFromFolder(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ManifestName), path)

	ds, err := LoadManifest(path)
	require.NoError(t, err)
	var images, labels []string
	for _, e := range ds.Entries {
		images = append(images, filepath.Base(e.ImagePath))
		labels = append(labels, filepath.Base(e.LabelPath()))
	}
	assert.Equal(t, []string{"a.jpg", "b.PNG", "c.webp", "d.gif"}, images)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "d.txt"}, labels)
}

func TestCreateFromFolder_NoImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.md"), "x")

	_, err := CreateFromFolder(dir)
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestOpen_FolderReusesManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "z.png"), "x")
	writeFile(t, filepath.Join(dir, ManifestName), `{"images":[{"image":"only.png"}]}`)

	ds, err := Open(dir)
	require.NoError(t, err)
	require.Len(t, ds.Entries, 1)
	assert.Equal(t, filepath.Join(dir, "only.png"), ds.Entries[0].ImagePath)
}

func TestOpen_FolderCreatesManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "z.png"), "x")

	ds, err := Open(dir)
	require.NoError(t, err)
	require.Len(t, ds.Entries, 1)
	assert.FileExists(t, filepath.Join(dir, ManifestName))
}

func TestParseLabels(t *testing.T) {
	text := "0 0.5 0.5 0.2 0.4\n" +
		"garbage line\n" +
		"1 0.1 0.1 0.1\n" +
		"x 0.1 0.1 0.1 0.1\n" +
		"2 NaN 0.1 0.1 0.1\n" +
		"\n" +
		"4 0.25 0.75 0.5 0.5\n"

	got := ParseLabels(text, 200, 100, 7)
	require.Len(t, got, 2)

	assert.Equal(t, 7, got[0].ID)
	assert.Equal(t, annotation.KindBox, got[0].Kind)
	assert.Equal(t, annotation.StatePending, got[0].State)
	assert.Equal(t, 1, got[0].Class)
	assert.InDelta(t, 80.0, got[0].X, 1e-9)
	assert.InDelta(t, 30.0, got[0].Y, 1e-9)
	assert.InDelta(t, 40.0, got[0].Width, 1e-9)
	assert.InDelta(t, 40.0, got[0].Height, 1e-9)

	assert.Equal(t, 8, got[1].ID)
	assert.Equal(t, 5, got[1].Class)
}

func TestFormatLabels(t *testing.T) {
	anns := annotation.Snapshot{
		{ID: 1, Kind: annotation.KindBox, X: 10, Y: 20, Width: 30, Height: 40, Class: 1, State: annotation.StateManual},
		{ID: 2, Kind: annotation.KindBox, X: 0, Y: 0, Width: 10, Height: 10, Class: 2, State: annotation.StateRejected},
		{ID: 3, Kind: annotation.KindPoint, X: 5, Y: 5, Class: 1, State: annotation.StateManual},
		{ID: 4, Kind: annotation.KindRotatedBox, X: 0, Y: 0, Width: 100, Height: 200, Rotation: 30, Class: 3, State: annotation.StatePending},
		{ID: 5, Kind: annotation.KindBox, X: -50, Y: 0, Width: 300, Height: 10, Class: 0, State: annotation.StateAccepted},
	}

	got := FormatLabels(anns, 100, 200)
	want := "0 0.250000 0.200000 0.300000 0.200000\n" +
		"2 0.500000 0.500000 1.000000 1.000000\n" +
		"0 1.000000 0.025000 1.000000 0.050000"
	assert.Equal(t, want, got)
}

func TestLabels_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels", "a.txt")
	anns := annotation.Snapshot{
		{ID: 1, Kind: annotation.KindBox, X: 12, Y: 34, Width: 56, Height: 78, Class: 3, State: annotation.StateManual},
		{ID: 2, Kind: annotation.KindBox, X: 100, Y: 50, Width: 20, Height: 10, Class: 1, State: annotation.StateAccepted},
	}
	require.NoError(t, WriteLabels(path, anns, 640, 480))

	got, err := ReadLabels(path, 640, 480, 1)
	require.NoError(t, err)
	require.Len(t, got, len(anns))
	for i, a := range anns {
		assert.Equal(t, a.Class, got[i].Class)
		assert.InDelta(t, a.X, got[i].X, 0.01)
		assert.InDelta(t, a.Y, got[i].Y, 0.01)
		assert.InDelta(t, a.Width, got[i].Width, 0.01)
		assert.InDelta(t, a.Height, got[i].Height, 0.01)
	}
}

func TestReadLabels_MissingFile(t *testing.T) {
	got, err := ReadLabels(filepath.Join(t.TempDir(), "nope.txt"), 10, 10, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestState_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.state.json")
	anns := annotation.Snapshot{
		{ID: 1, Kind: annotation.KindRotatedBox, X: 1, Y: 2, Width: 3, Height: 4, Rotation: 15, Class: 2, State: annotation.StateManual, Selected: true},
		{ID: 2, Kind: annotation.KindPolygon, X: 0, Y: 0, Width: 10, Height: 10,
			Vertices: []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, Class: 1, State: annotation.StateRejected},
	}
	require.NoError(t, WriteState(path, anns))

	got, err := ReadState(path)
	require.NoError(t, err)

	want := anns.Clone()
	want[0].Selected = false
	assert.Empty(t, cmp.Diff(want, got))
}

func TestLoadAnnotations_Fallbacks(t *testing.T) {
	dir := t.TempDir()
	e := Entry{ImagePath: filepath.Join(dir, "a.png")}

	got, src, err := LoadAnnotations(e, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, SourceEmpty, src)
	assert.Empty(t, got)

	writeFile(t, e.LabelPath(), "0 0.5 0.5 0.2 0.2\n")
	got, src, err = LoadAnnotations(e, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, SourceLabels, src)
	assert.Len(t, got, 1)

	writeFile(t, e.StatePath(), "{broken")
	got, src, err = LoadAnnotations(e, 100, 100)
	assert.Error(t, err)
	assert.Equal(t, SourceLabels, src)
	assert.Len(t, got, 1)

	writeFile(t, e.StatePath(), "[]")
	got, src, err = LoadAnnotations(e, 100, 100)
	require.NoError(t, err)
	assert.Equal(t, SourceState, src)
	assert.Empty(t, got)
}

func TestViewState_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ViewState
		want ViewState
	}{
		{"valid", ViewState{PanX: 3, PanY: -4, Zoom: 2}, ViewState{PanX: 3, PanY: -4, Zoom: 2}},
		{"zero zoom", ViewState{Zoom: 0}, ViewState{Zoom: 1}},
		{"negative zoom", ViewState{Zoom: -2}, ViewState{Zoom: 1}},
		{"nan zoom", ViewState{Zoom: math.NaN()}, ViewState{Zoom: 1}},
		{"inf pan", ViewState{PanX: math.Inf(1), PanY: math.NaN(), Zoom: 1.5}, ViewState{Zoom: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestSize_Close(t *testing.T) {
	assert.True(t, Size{100, 100}.Close(Size{102, 98}))
	assert.False(t, Size{100, 100}.Close(Size{103, 100}))
}

// fakeImages serves fixed sizes and fails for paths listed in missing.
type fakeImages struct {
	size    map[string]image.Point
	missing map[string]bool
	loads   int
}

func (f *fakeImages) Load(path string) (image.Image, error) {
	f.loads++
	if f.missing[path] {
		return nil, errors.New("decode failed")
	}
	sz := f.size[path]
	return image.NewGray(image.Rect(0, 0, sz.X, sz.Y)), nil
}

func (f *fakeImages) Size(path string) (int, int, error) {
	if f.missing[path] {
		return 0, 0, errors.New("decode failed")
	}
	sz := f.size[path]
	return sz.X, sz.Y, nil
}

type fakeProgress struct {
	done    map[string]bool
	records []SaveRecord
	failSet bool
}

func (f *fakeProgress) CompletedFrames(string) (map[string]bool, error) { return f.done, nil }

func (f *fakeProgress) SetCompleted(_, img string, done bool) error {
	if f.failSet {
		return errors.New("disk full")
	}
	f.done[img] = done
	return nil
}

func (f *fakeProgress) RecordSave(rec SaveRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func newTestSession(t *testing.T, sizes []image.Point, opts ...Option) (*Session, *fakeImages) {
	t.Helper()
	dir := t.TempDir()
	ds := &Dataset{Path: filepath.Join(dir, ManifestName)}
	images := &fakeImages{size: map[string]image.Point{}, missing: map[string]bool{}}
	for i, sz := range sizes {
		p := filepath.Join(dir, string(rune('a'+i))+".png")
		ds.Entries = append(ds.Entries, Entry{ImagePath: p})
		images.size[p] = sz
	}
	s, err := NewSession(ds, images, opts...)
	require.NoError(t, err)
	return s, images
}

func TestNewSession_Empty(t *testing.T) {
	_, err := NewSession(&Dataset{}, &fakeImages{})
	assert.ErrorIs(t, err, ErrEmptyDataset)
	_, err = NewSession(nil, &fakeImages{})
	assert.ErrorIs(t, err, ErrEmptyDataset)
}

func TestSession_NavigateLoadsAndCaches(t *testing.T) {
	s, _ := newTestSession(t, []image.Point{{100, 100}, {100, 100}})
	e := s.Dataset().Entries[0]
	writeFile(t, e.LabelPath(), "0 0.5 0.5 0.2 0.2\n")

	f, err := s.Navigate(0)
	require.NoError(t, err)
	assert.Equal(t, SourceLabels, f.Source)
	require.Len(t, f.Annotations, 1)
	assert.Equal(t, Size{100, 100}, f.Size)
	assert.True(t, f.SizeKnown)
	assert.Equal(t, FitView(), f.View)

	// edits live in the cache, not on disk
	edited := f.Annotations.Clone()
	edited[0].Class = 4
	edited[0].Selected = true
	s.SaveCurrent(edited, ViewState{PanX: 5, Zoom: 2}, f.Size)

	_, err = s.Navigate(1)
	require.NoError(t, err)
	f, err = s.Navigate(0)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, f.Source)
	assert.Equal(t, 4, f.Annotations[0].Class)
	assert.False(t, f.Annotations[0].Selected)
}

func TestSession_NavigateOutOfRange(t *testing.T) {
	s, _ := newTestSession(t, []image.Point{{10, 10}})
	_, err := s.Navigate(1)
	assert.Error(t, err)
	_, err = s.Navigate(-1)
	assert.Error(t, err)
}

func TestSession_NavigateMissingImage(t *testing.T) {
	s, images := newTestSession(t, []image.Point{{10, 10}})
	images.missing[s.Dataset().Entries[0].ImagePath] = true

	f, err := s.Navigate(0)
	require.NoError(t, err)
	assert.False(t, f.SizeKnown)
	assert.Contains(t, f.Status, "Image not found")
	assert.Equal(t, image.Rect(0, 0, 64, 64), f.Image.Bounds())
}

func TestSession_ViewPriority(t *testing.T) {
	s, _ := newTestSession(t, []image.Point{{100, 100}, {101, 99}, {300, 200}})

	f, err := s.Navigate(0)
	require.NoError(t, err)
	zoomed := ViewState{PanX: 10, PanY: 20, Zoom: 3}
	s.SaveCurrent(f.Annotations, zoomed, f.Size)

	// similar size inherits the global view
	f, err = s.Navigate(1)
	require.NoError(t, err)
	assert.Equal(t, zoomed, f.View)

	// different size falls back to fit
	f, err = s.Navigate(2)
	require.NoError(t, err)
	assert.Equal(t, FitView(), f.View)

	own := ViewState{Zoom: 0.5}
	s.SaveCurrent(f.Annotations, own, f.Size)
	s.UpdateGlobalView(zoomed, Size{100, 100})
	f, err = s.Navigate(2)
	require.NoError(t, err)
	assert.Equal(t, own, f.View)
}

func TestSession_StepIndex(t *testing.T) {
	s, _ := newTestSession(t, []image.Point{{1, 1}, {1, 1}, {1, 1}}, WithRand(func(n int) int { return n - 1 }))

	idx, err := s.StepIndex(StepPrev)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, _ = s.StepIndex(StepNext)
	assert.Equal(t, 1, idx)
	idx, _ = s.StepIndex(StepLast)
	assert.Equal(t, 2, idx)
	idx, _ = s.StepIndex(StepRandom)
	assert.Equal(t, 2, idx)

	_, err = s.Navigate(2)
	require.NoError(t, err)
	idx, _ = s.StepIndex(StepNext)
	assert.Equal(t, 2, idx)
	idx, _ = s.StepIndex(StepFirst)
	assert.Equal(t, 0, idx)

	_, err = s.StepIndex("sideways")
	assert.Error(t, err)
}

func TestSession_SaveAll(t *testing.T) {
	progress := &fakeProgress{done: map[string]bool{}}
	s, _ := newTestSession(t, []image.Point{{100, 100}, {200, 100}}, WithProgress(progress))
	entries := s.Dataset().Entries

	// the unvisited entry keeps its existing labels
	writeFile(t, entries[1].LabelPath(), "2 0.5 0.5 0.5 0.5")

	f, err := s.Navigate(0)
	require.NoError(t, err)
	anns := annotation.Snapshot{
		{ID: 1, Kind: annotation.KindBox, X: 10, Y: 10, Width: 20, Height: 20, Class: 1, State: annotation.StateManual},
		{ID: 2, Kind: annotation.KindBox, X: 50, Y: 50, Width: 20, Height: 20, Class: 1, State: annotation.StateRejected},
	}
	s.SaveCurrent(anns, FitView(), f.Size)

	sum, err := s.SaveAll()
	require.NoError(t, err)
	assert.Equal(t, SaveSummary{Frames: 2}, sum)

	data, err := os.ReadFile(entries[0].LabelPath())
	require.NoError(t, err)
	assert.Equal(t, "0 0.200000 0.200000 0.200000 0.200000", string(data))

	state, err := ReadState(entries[0].StatePath())
	require.NoError(t, err)
	assert.Len(t, state, 2)

	data, err = os.ReadFile(entries[1].LabelPath())
	require.NoError(t, err)
	assert.Equal(t, "2 0.500000 0.500000 0.500000 0.500000", string(data))

	require.Len(t, progress.records, 1)
	assert.Equal(t, s.ID(), progress.records[0].SessionID)
	assert.Equal(t, 2, progress.records[0].Frames)
}

func TestSession_SaveAllUnknownSize(t *testing.T) {
	progress := &fakeProgress{done: map[string]bool{}}
	s, images := newTestSession(t, []image.Point{{10, 10}, {10, 10}, {10, 10}}, WithProgress(progress))
	entries := s.Dataset().Entries
	images.missing[entries[1].ImagePath] = true
	images.missing[entries[2].ImagePath] = true
	writeFile(t, entries[2].LabelPath(), "0 0.5 0.5 0.5 0.5")

	// shapes drawn on the placeholder of a missing image
	f, err := s.Navigate(1)
	require.NoError(t, err)
	require.False(t, f.SizeKnown)
	drawn := annotation.Snapshot{{ID: 1, Kind: annotation.KindPoint, X: 5, Y: 5, Class: 1, State: annotation.StateManual}}
	s.SaveCurrent(drawn, FitView(), f.Size)

	sum, err := s.SaveAll()
	require.NoError(t, err)
	assert.Equal(t, SaveSummary{Frames: 3, LabelsSkipped: 2}, sum)
	assert.Equal(t, 2, progress.records[0].Skipped)

	state, err := ReadState(entries[1].StatePath())
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(drawn, state))
	assert.NoFileExists(t, entries[1].LabelPath())

	// an empty set never shadows labels that could not be read
	assert.NoFileExists(t, entries[2].StatePath())
	data, err := os.ReadFile(entries[2].LabelPath())
	require.NoError(t, err)
	assert.Equal(t, "0 0.5 0.5 0.5 0.5", string(data))
}

func TestSession_SaveAllReportsPath(t *testing.T) {
	s, _ := newTestSession(t, []image.Point{{10, 10}})
	e := s.Dataset().Entries[0]
	// a directory where the label file should be makes the write fail
	require.NoError(t, os.MkdirAll(e.LabelPath(), 0o755))

	_, err := s.SaveAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), e.LabelPath())
}

func TestSession_ToggleCompleted(t *testing.T) {
	progress := &fakeProgress{done: map[string]bool{}}
	s, _ := newTestSession(t, []image.Point{{10, 10}, {10, 10}}, WithProgress(progress))

	done, err := s.ToggleCompleted()
	require.NoError(t, err)
	assert.True(t, done)
	assert.True(t, s.Completed(0))
	assert.False(t, s.Completed(1))
	assert.Equal(t, 1, s.CompletedCount())
	assert.True(t, progress.done[s.Dataset().Entries[0].ImagePath])

	progress.failSet = true
	done, err = s.ToggleCompleted()
	assert.Error(t, err)
	assert.False(t, done)
	assert.False(t, s.Completed(0))
}

func TestSession_RestoresCompletion(t *testing.T) {
	dir := t.TempDir()
	ds := &Dataset{Path: filepath.Join(dir, ManifestName), Entries: []Entry{
		{ImagePath: filepath.Join(dir, "a.png")},
		{ImagePath: filepath.Join(dir, "b.png")},
	}}
	progress := &fakeProgress{done: map[string]bool{ds.Entries[1].ImagePath: true}}

	s, err := NewSession(ds, &fakeImages{}, WithProgress(progress))
	require.NoError(t, err)
	assert.False(t, s.Completed(0))
	assert.True(t, s.Completed(1))
}

func TestSession_Frames(t *testing.T) {
	s, _ := newTestSession(t, []image.Point{{100, 100}, {50, 50}})
	entries := s.Dataset().Entries
	writeFile(t, entries[1].LabelPath(), "0 0.5 0.5 0.2 0.2")

	f, err := s.Navigate(0)
	require.NoError(t, err)
	s.SaveCurrent(annotation.Snapshot{
		{ID: 1, Kind: annotation.KindPoint, X: 5, Y: 5, Class: 2, State: annotation.StateManual},
	}, FitView(), f.Size)

	frames := s.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, Size{100, 100}, frames[0].Size)
	assert.Len(t, frames[0].Annotations, 1)
	assert.Equal(t, Size{50, 50}, frames[1].Size)
	assert.Len(t, frames[1].Annotations, 1)
}

func TestSession_WithRealImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "one.png"), 30, 20)

	ds, err := Open(dir)
	require.NoError(t, err)
	s, err := NewSession(ds, &pngSource{})
	require.NoError(t, err)

	f, err := s.Navigate(0)
	require.NoError(t, err)
	assert.Equal(t, Size{30, 20}, f.Size)
}

// pngSource decodes straight from disk.
type pngSource struct{}

func (pngSource) Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}

func (p pngSource) Size(path string) (int, int, error) {
	img, err := p.Load(path)
	if err != nil {
		return 0, 0, err
	}
	return img.Bounds().Dx(), img.Bounds().Dy(), nil
}
