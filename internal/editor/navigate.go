package editor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ironsheep/image-annotator/internal/classes"
	"github.com/ironsheep/image-annotator/internal/dataset"
	"github.com/ironsheep/image-annotator/internal/export"
)

// Open loads a dataset from a manifest or an image folder and shows its
// first image, or a random one when the configuration asks for it. Any open
// dataset is saved first.
func (e *Editor) Open(path string) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out, err := e.open(path)
	if err != nil {
		return nil, err
	}
	e.emit(out.status)
	return &Result{Op: OpOpen, Status: out.status, Annotations: e.coll.Snapshot(), Session: e.info()}, nil
}

func (e *Editor) openCommand(cmd Command) (outcome, error) {
	if cmd.Path == "" {
		return outcome{}, fmt.Errorf("%w: path is required", ErrInvalidCommand)
	}
	return e.open(cmd.Path)
}

func (e *Editor) open(path string) (outcome, error) {
	ds, err := dataset.Open(path)
	if err != nil {
		return outcome{}, fmt.Errorf("failed to load dataset: %w", err)
	}

	if e.session != nil {
		if _, err := e.flush(); err != nil {
			e.log.WithError(err).Warn("failed to save previous dataset")
		}
	}

	if e.cfg.Classes.ConfigFile == "" && ds.ClassesFile != "" {
		cls, err := classes.Load(ds.ClassesFile)
		if err != nil {
			return outcome{}, fmt.Errorf("failed to load dataset classes: %w", err)
		}
		if err := e.setClasses(cls); err != nil {
			return outcome{}, err
		}
	}

	e.images.Clear()
	opts := []dataset.Option{dataset.WithLogger(e.log)}
	if e.progress != nil {
		opts = append(opts, dataset.WithProgress(e.progress))
	}
	if e.randIntN != nil {
		opts = append(opts, dataset.WithRand(e.randIntN))
	}
	session, err := dataset.NewSession(ds, e.images, opts...)
	if err != nil {
		return outcome{}, err
	}

	start := 0
	if e.cfg.Dataset.RandomizeOrder {
		if start, err = session.StepIndex(dataset.StepRandom); err != nil {
			return outcome{}, err
		}
	}
	frame, err := session.Navigate(start)
	if err != nil {
		return outcome{}, err
	}
	e.session = session
	e.install(frame)
	e.cfg.AddRecentDataset(ds.Path)

	e.log.WithField("dataset", ds.Path).WithField("images", session.Len()).Info("dataset opened")
	return outcome{status: fmt.Sprintf("Loaded dataset: %s (%d images). %s", ds.Path, session.Len(), frame.Status)}, nil
}

func stepTo(step dataset.Step) handler {
	return func(e *Editor, _ Command) (outcome, error) {
		idx, err := e.session.StepIndex(step)
		if err != nil {
			return outcome{}, err
		}
		if idx == e.session.Current() && step != dataset.StepRandom {
			switch step {
			case dataset.StepNext, dataset.StepLast:
				return outcome{status: "Already at last image"}, nil
			default:
				return outcome{status: "Already at first image"}, nil
			}
		}
		return e.navigateTo(idx)
	}
}

func (e *Editor) gotoIndex(cmd Command) (outcome, error) {
	if cmd.Index < 0 || cmd.Index >= e.session.Len() {
		return outcome{}, fmt.Errorf("%w: image index %d out of range", ErrInvalidCommand, cmd.Index)
	}
	return e.navigateTo(cmd.Index)
}

// navigateTo stores the live state into the session cache before leaving
// the current image, then installs the target.
func (e *Editor) navigateTo(index int) (outcome, error) {
	e.saveCurrent()
	frame, err := e.session.Navigate(index)
	if err != nil {
		return outcome{}, err
	}
	e.images.Evict(e.frame.Entry.ImagePath)
	e.install(frame)
	return outcome{status: frame.Status}, nil
}

func (e *Editor) saveCurrent() {
	if e.session == nil || e.frame == nil {
		return
	}
	e.session.SaveCurrent(e.coll.Snapshot(), e.view, e.frame.Size)
}

// flush saves the current image into the cache and writes every entry.
func (e *Editor) flush() (dataset.SaveSummary, error) {
	e.saveCurrent()
	return e.session.SaveAll()
}

// Flush writes all pending work to disk. It is a no-op without a dataset.
func (e *Editor) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	_, err := e.flush()
	return err
}

func (e *Editor) viewChanged(cmd Command) (outcome, error) {
	if cmd.View == nil {
		return outcome{}, fmt.Errorf("%w: view is required", ErrInvalidCommand)
	}
	e.view = cmd.View.Normalize()
	e.session.UpdateGlobalView(e.view, e.frame.Size)
	return outcome{}, nil
}

func (e *Editor) toggleComplete(Command) (outcome, error) {
	done, err := e.session.ToggleCompleted()
	status := "Frame marked incomplete"
	if done {
		status = "Frame marked complete"
	}
	if err != nil {
		e.log.WithError(err).Warn("failed to persist frame completion")
		status += " (not persisted)"
	}
	return outcome{status: fmt.Sprintf("%s (%d/%d complete)", status, e.session.CompletedCount(), e.session.Len())}, nil
}

// save reports failures through the status line as well as the error, so a
// front-end that only shows status still learns about them.
func (e *Editor) save(Command) (outcome, error) {
	sum, err := e.flush()
	if err != nil {
		e.emit(fmt.Sprintf("Save failed: %v", err))
		return outcome{}, fmt.Errorf("save failed: %w", err)
	}
	if sum.LabelsSkipped > 0 {
		return outcome{status: fmt.Sprintf("Saved; labels skipped for %d image(s) of unknown size", sum.LabelsSkipped)}, nil
	}
	return outcome{status: "Save successful"}, nil
}

// exportDataset writes the dataset in the requested or configured format.
// The default destination sits next to the manifest.
func (e *Editor) exportDataset(cmd Command) (outcome, error) {
	name := cmd.Format
	if name == "" {
		name = e.cfg.Export.DefaultFormat
	}
	format, err := export.ParseFormat(name)
	if err != nil {
		return outcome{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	e.saveCurrent()
	res, err := ExportSession(e.session, e.classes, format, cmd.Path, e.cfg.Export.CocoCategoryStartID)
	if err != nil {
		e.emit(fmt.Sprintf("Export failed: %v", err))
		return outcome{}, err
	}
	return outcome{
		status: fmt.Sprintf("Exported %d images, %d annotations to %s (%s)", res.Images, res.Annotations, res.Path, format.Name()),
		export: res,
	}, nil
}

// ExportSession exports every entry of session. An empty dest picks
// "annotations_coco.json" or "annotations_voc/" beside the manifest.
func ExportSession(session *dataset.Session, names export.Classes, format export.Format, dest string, categoryStart int) (*export.Result, error) {
	base := filepath.Dir(session.Dataset().Path)
	frames := session.Frames()
	switch format {
	case export.FormatVOC:
		if dest == "" {
			dest = filepath.Join(base, "annotations_voc")
		}
		return export.WriteVOC(dest, frames, names)
	default:
		if dest == "" {
			dest = filepath.Join(base, "annotations_coco.json")
		}
		return export.WriteCOCO(dest, frames, names, base, export.CocoOptions{CategoryStartID: categoryStart})
	}
}

// StartAutoSave saves every interval until ctx is done. Each tick stores the
// live image into the session cache and writes every entry. Failures become
// status messages and the timer keeps running. A non-positive interval
// disables auto-save.
func (e *Editor) StartAutoSave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.autoSave()
			}
		}
	}()
}

func (e *Editor) autoSave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	if _, err := e.flush(); err != nil {
		e.log.WithError(err).Warn("autosave failed")
		e.emit(fmt.Sprintf("Autosave failed: %v", err))
		return
	}
	e.log.Debug("autosave complete")
}
