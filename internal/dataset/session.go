package dataset

import (
	"fmt"
	"image"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-annotator/internal/annotation"
	"github.com/ironsheep/image-annotator/internal/imaging"
)

// ImageSource decodes dataset images. *imaging.ImageCache satisfies it.
type ImageSource interface {
	Load(path string) (image.Image, error)
	Size(path string) (width, height int, err error)
}

// SaveRecord describes one SaveAll run for the progress journal.
type SaveRecord struct {
	SessionID string
	Dataset   string
	Frames    int
	Skipped   int
	Err       error
	At        time.Time
}

// ProgressStore persists frame-completion flags and the save journal across
// sessions. It is optional.
type ProgressStore interface {
	CompletedFrames(dataset string) (map[string]bool, error)
	SetCompleted(dataset, image string, done bool) error
	RecordSave(rec SaveRecord) error
}

// Step is a relative or absolute navigation move.
type Step string

const (
	StepNext   Step = "next"
	StepPrev   Step = "prev"
	StepFirst  Step = "first"
	StepLast   Step = "last"
	StepRandom Step = "random"
)

// Frame is everything the editor needs to display one entry.
type Frame struct {
	Index       int
	Entry       Entry
	Image       image.Image
	Size        Size
	SizeKnown   bool
	Annotations annotation.Snapshot
	Source      Source
	View        ViewState
	Completed   bool
	Status      string
}

// ExportFrame is one entry's annotations and size, as handed to exporters.
type ExportFrame struct {
	Entry       Entry
	Size        Size
	Annotations annotation.Snapshot
}

// Session is the state of one open dataset: the current index and, per
// entry, the cached annotations, cached view and completion flag.
//
// A cached annotation slot is filled once, on first visit or first save, and
// afterwards changes only through SaveCurrent. Session is not safe for
// concurrent use; the editor serializes access.
type Session struct {
	id       string
	dataset  *Dataset
	images   ImageSource
	progress ProgressStore
	log      *logrus.Entry
	randIntN func(n int) int

	current    int
	stored     []annotation.Snapshot
	views      []*ViewState
	sizes      []*Size
	completed  []bool
	globalView *ViewState
	globalSize Size
}

// Option configures a Session.
type Option func(*Session)

// WithProgress persists completion flags and save runs to store.
func WithProgress(store ProgressStore) Option {
	return func(s *Session) { s.progress = store }
}

// WithLogger sets the logger used for recoverable failures.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Session) { s.log = log }
}

// WithRand replaces the random source used by StepRandom.
func WithRand(intN func(n int) int) Option {
	return func(s *Session) { s.randIntN = intN }
}

// NewSession starts a session over ds at index 0. Call Navigate to load the
// first frame.
func NewSession(ds *Dataset, images ImageSource, opts ...Option) (*Session, error) {
	if ds == nil || len(ds.Entries) == 0 {
		return nil, ErrEmptyDataset
	}
	s := &Session{
		id:       uuid.NewString(),
		dataset:  ds,
		images:   images,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		randIntN: rand.Intn,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("session", s.id)
	s.repair()

	if s.progress != nil {
		done, err := s.progress.CompletedFrames(ds.Path)
		if err != nil {
			s.log.WithError(err).Warn("failed to load completed frames")
		}
		for i, e := range ds.Entries {
			s.completed[i] = done[e.ImagePath]
		}
	}
	return s, nil
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Dataset returns the open dataset.
func (s *Session) Dataset() *Dataset { return s.dataset }

// Len returns the number of entries.
func (s *Session) Len() int { return len(s.dataset.Entries) }

// Current returns the index of the displayed entry.
func (s *Session) Current() int { return s.current }

// Completed reports whether entry i is marked complete.
func (s *Session) Completed(i int) bool {
	return i >= 0 && i < len(s.completed) && s.completed[i]
}

// CompletedCount returns how many entries are marked complete.
func (s *Session) CompletedCount() int {
	n := 0
	for _, c := range s.completed {
		if c {
			n++
		}
	}
	return n
}

// repair resizes the per-entry caches to the entry count.
func (s *Session) repair() {
	n := len(s.dataset.Entries)
	s.stored = resize(s.stored, n)
	s.views = resize(s.views, n)
	s.sizes = resize(s.sizes, n)
	s.completed = resize(s.completed, n)
}

func resize[T any](v []T, n int) []T {
	if len(v) == n {
		return v
	}
	if len(v) > n {
		return v[:n]
	}
	return append(v, make([]T, n-len(v))...)
}

// StepIndex returns the index a navigation step leads to. Next and Prev stop
// at the ends of the dataset.
func (s *Session) StepIndex(step Step) (int, error) {
	n := s.Len()
	switch step {
	case StepNext:
		return min(s.current+1, n-1), nil
	case StepPrev:
		return max(s.current-1, 0), nil
	case StepFirst:
		return 0, nil
	case StepLast:
		return n - 1, nil
	case StepRandom:
		return s.randIntN(n), nil
	default:
		return 0, fmt.Errorf("unknown navigation step: %q", step)
	}
}

// Navigate makes index current and returns its frame.
//
// The image is decoded through the ImageSource; a decode failure shows the
// placeholder and is reported in Frame.Status. Annotations come from the cache
// when the entry was visited before, otherwise from the state file, then the
// label file, then nothing, and the result is cached. Selection is always
// cleared. The view is the global view when the image size is within
// SizeTolerance of the size it was captured at, else the entry's own cached
// view, else a fit view that is cached for the entry.
func (s *Session) Navigate(index int) (*Frame, error) {
	if index < 0 || index >= s.Len() {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", index, s.Len())
	}
	s.repair()
	s.current = index
	entry := s.dataset.Entries[index]
	frame := &Frame{Index: index, Entry: entry, Completed: s.completed[index]}
	var notes []string

	img, err := s.images.Load(entry.ImagePath)
	if err != nil {
		s.log.WithError(err).WithField("image", entry.ImagePath).Warn("failed to load image")
		img = imaging.Placeholder()
		notes = append(notes, fmt.Sprintf("Image not found: %s", entry.ImagePath))
	} else {
		b := img.Bounds()
		s.sizes[index] = &Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	}
	frame.Image = img

	size, sizeErr := s.entrySize(index)
	frame.SizeKnown = sizeErr == nil
	if frame.SizeKnown {
		frame.Size = size
	} else {
		b := img.Bounds()
		frame.Size = Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
	}

	if cached := s.stored[index]; cached != nil {
		frame.Annotations = cached.Clone()
		frame.Source = SourceCache
	} else {
		anns, src, loadErr := s.loadFromDisk(entry, size, frame.SizeKnown)
		if loadErr != nil {
			s.log.WithError(loadErr).WithField("image", entry.ImagePath).Warn("fell back while loading annotations")
			notes = append(notes, "Saved annotations unreadable, using "+string(src))
		}
		s.stored[index] = anns.Clone()
		frame.Annotations = anns
		frame.Source = src
	}
	for i := range frame.Annotations {
		frame.Annotations[i].Selected = false
	}

	switch {
	case s.globalView != nil && frame.SizeKnown && s.globalSize.Close(frame.Size):
		frame.View = *s.globalView
	case s.views[index] != nil:
		frame.View = *s.views[index]
	default:
		fit := FitView()
		s.views[index] = &fit
		frame.View = fit
	}
	frame.View = frame.View.Normalize()

	notes = append(notes, fmt.Sprintf("Image %d/%d (%d annotations)", index+1, s.Len(), len(frame.Annotations)))
	frame.Status = strings.Join(notes, "; ")
	return frame, nil
}

// loadFromDisk reads an entry's annotations. Label files need the image size
// to denormalize, so without one only the state file is consulted.
func (s *Session) loadFromDisk(e Entry, size Size, sizeKnown bool) (annotation.Snapshot, Source, error) {
	if sizeKnown {
		return LoadAnnotations(e, size.Width, size.Height)
	}
	anns, err := ReadState(e.StatePath())
	if err != nil {
		return annotation.Snapshot{}, SourceEmpty, nil
	}
	return anns, SourceState, nil
}

// entrySize returns the pixel size of entry i, reading the image header if
// the entry has not been decoded.
func (s *Session) entrySize(i int) (Size, error) {
	if sz := s.sizes[i]; sz != nil {
		return *sz, nil
	}
	w, h, err := s.images.Size(s.dataset.Entries[i].ImagePath)
	if err != nil {
		return Size{}, err
	}
	sz := Size{Width: float64(w), Height: float64(h)}
	s.sizes[i] = &sz
	return sz, nil
}

// SaveCurrent stores the live annotations and view into the current entry's
// cache slots and makes the view the global view for images of this size.
func (s *Session) SaveCurrent(anns annotation.Snapshot, view ViewState, size Size) {
	s.repair()
	if anns == nil {
		anns = annotation.Snapshot{}
	}
	s.stored[s.current] = anns.Clone()
	v := view.Normalize()
	s.views[s.current] = &v
	s.UpdateGlobalView(v, size)
}

// UpdateGlobalView records the view most recently used for an image of the
// given size.
func (s *Session) UpdateGlobalView(view ViewState, size Size) {
	v := view.Normalize()
	s.globalView = &v
	s.globalSize = size
}

// SaveSummary reports what SaveAll wrote.
type SaveSummary struct {
	// Frames is the number of entries processed before any failure.
	Frames int
	// LabelsSkipped counts entries whose image size is unknown. Their label
	// files cannot be normalized and are left untouched; their state files
	// are still written.
	LabelsSkipped int
}

// SaveAll writes the label file and the state file of every entry from its
// cached annotations. Entries never visited are first loaded from disk so
// saving rewrites their existing annotations instead of erasing them.
//
// Without an image size only the state file is written, and an empty set is
// not written over a missing state file so it cannot shadow existing labels.
// The first write failure aborts the run and is returned naming the path;
// entries written before it stay written.
func (s *Session) SaveAll() (SaveSummary, error) {
	s.repair()
	var (
		sum     SaveSummary
		saveErr error
	)
	for i, e := range s.dataset.Entries {
		size, sizeErr := s.entrySize(i)
		sizeKnown := sizeErr == nil
		if s.stored[i] == nil {
			anns, _, loadErr := s.loadFromDisk(e, size, sizeKnown)
			if loadErr != nil {
				s.log.WithError(loadErr).WithField("image", e.ImagePath).Warn("fell back while loading annotations")
			}
			s.stored[i] = anns
		}
		anns := s.stored[i]

		if sizeKnown {
			if err := WriteLabels(e.LabelPath(), anns, size.Width, size.Height); err != nil {
				saveErr = err
				break
			}
		} else {
			s.log.WithError(sizeErr).WithField("image", e.ImagePath).Warn("skipping labels, image size unknown")
			sum.LabelsSkipped++
		}
		if sizeKnown || len(anns) > 0 || fileExists(e.StatePath()) {
			if err := WriteState(e.StatePath(), anns); err != nil {
				saveErr = err
				break
			}
		}
		sum.Frames++
	}

	if s.progress != nil {
		rec := SaveRecord{
			SessionID: s.id,
			Dataset:   s.dataset.Path,
			Frames:    sum.Frames,
			Skipped:   sum.LabelsSkipped,
			Err:       saveErr,
			At:        time.Now(),
		}
		if err := s.progress.RecordSave(rec); err != nil {
			s.log.WithError(err).Warn("failed to record save")
		}
	}
	return sum, saveErr
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ToggleCompleted flips the current entry's completion flag and returns the
// new value. A progress store failure is returned, but the in-memory flag
// keeps its new value.
func (s *Session) ToggleCompleted() (bool, error) {
	s.repair()
	done := !s.completed[s.current]
	s.completed[s.current] = done
	if s.progress != nil {
		entry := s.dataset.Entries[s.current]
		if err := s.progress.SetCompleted(s.dataset.Path, entry.ImagePath, done); err != nil {
			return done, fmt.Errorf("failed to persist completion: %w", err)
		}
	}
	return done, nil
}

// Frames returns every entry's annotations for export. Cached annotations
// are used where present; other entries are read from disk without being
// cached. Entries whose size is unknown are skipped.
func (s *Session) Frames() []ExportFrame {
	s.repair()
	frames := make([]ExportFrame, 0, s.Len())
	for i, e := range s.dataset.Entries {
		size, err := s.entrySize(i)
		if err != nil {
			s.log.WithError(err).WithField("image", e.ImagePath).Warn("skipping export, image size unknown")
			continue
		}
		anns := s.stored[i].Clone()
		if anns == nil {
			anns, _, _ = LoadAnnotations(e, size.Width, size.Height)
		}
		frames = append(frames, ExportFrame{Entry: e, Size: size, Annotations: anns})
	}
	return frames
}
