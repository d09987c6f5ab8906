package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-annotator/internal/classes"
	"github.com/ironsheep/image-annotator/internal/config"
	"github.com/ironsheep/image-annotator/internal/dataset"
	"github.com/ironsheep/image-annotator/internal/editor"
	"github.com/ironsheep/image-annotator/internal/imaging"
	"github.com/ironsheep/image-annotator/internal/logging"
	"github.com/ironsheep/image-annotator/internal/progress"
	"github.com/ironsheep/image-annotator/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("image-annotator %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		return
	case "--help", "-h", "help":
		usage()
		return
	}

	a, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "image-annotator: %v\n", err)
		os.Exit(1)
	}
	defer a.close()

	switch cmd {
	case "serve":
		err = a.serve(args)
	case "init":
		err = runInit(args)
	case "export":
		err = a.export(args)
	case "edges":
		err = runEdges(args)
	case "info":
		err = runInfo(args)
	case "status":
		err = a.status(args)
	default:
		usage()
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		a.log.WithError(err).Error(cmd + " failed")
		a.close()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("image-annotator - image annotation engine")
	fmt.Println()
	fmt.Println("Usage: image-annotator <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [dataset]                  Serve the editor over JSON-RPC on stdio (default)")
	fmt.Println("  init <folder>                    Write manifest.json for an image folder")
	fmt.Println("  export [-format coco|voc] [-out path] <dataset>")
	fmt.Println("                                   Export a dataset")
	fmt.Println("  edges <image> <out.png>          Write the edge preview of an image")
	fmt.Println("  info <image>                     Print image dimensions and format")
	fmt.Println("  status [-n count] <dataset>      Print completion and recent saves")
	fmt.Println("  version                          Print version information")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  IMAGE_ANNOTATOR_LOG_LEVEL=debug          Log level")
	fmt.Println("  IMAGE_ANNOTATOR_LOG_FILE=path            Also log to a rotated file")
	fmt.Println("  IMAGE_ANNOTATOR_AUTOSAVE_SECONDS=n       Auto-save interval, 0 disables")
	fmt.Println("  IMAGE_ANNOTATOR_PROGRESS_DB=path|off     Progress database location")
	fmt.Println()
	fmt.Println("serve communicates via JSON-RPC over stdin/stdout.")
}

type app struct {
	cfg      *config.Config
	cfgPath  string
	log      *logrus.Logger
	progress *progress.Store
}

// setup loads .env files and the config, then builds the logger and opens
// the progress store. A progress store that cannot be opened is logged and
// skipped.
func setup() (*app, error) {
	if err := config.LoadEnv(".env"); err != nil {
		return nil, err
	}
	cfgPath, err := config.Path()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, cfgPath: cfgPath, log: logger}
	dbPath, err := cfg.ProgressDatabasePath()
	if err != nil {
		logger.WithError(err).Warn("progress database disabled")
		return a, nil
	}
	if dbPath != "" {
		store, err := progress.Open(dbPath)
		if err != nil {
			logger.WithError(err).WithField("path", dbPath).Warn("progress database disabled")
			return a, nil
		}
		a.progress = store
	}
	return a, nil
}

func (a *app) close() {
	if a.progress != nil {
		if err := a.progress.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close progress database")
		}
		a.progress = nil
	}
}

func (a *app) newEditor(status func(string)) (*editor.Editor, error) {
	opts := editor.Options{Config: a.cfg, Logger: a.log, Status: status}
	if a.progress != nil {
		opts.Progress = a.progress
	}
	if a.cfg.Classes.ConfigFile != "" {
		cls, err := classes.LoadOrDefault(a.cfg.Classes.ConfigFile)
		if err != nil {
			return nil, err
		}
		opts.Classes = cls
	}
	return editor.New(opts)
}

func (a *app) serve(args []string) error {
	a.log.WithFields(logrus.Fields{
		"version": Version,
		"built":   BuildTime,
		"commit":  GitCommit,
	}).Debug("image-annotator starting")

	var srv *server.Server
	ed, err := a.newEditor(func(msg string) { srv.NotifyStatus(msg) })
	if err != nil {
		return err
	}
	srv = server.New(ed, a.log, Version)

	if len(args) > 0 {
		if _, err := ed.Open(args[0]); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ed.StartAutoSave(ctx, time.Duration(a.cfg.Dataset.AutoSaveIntervalSeconds)*time.Second)

	// Scan blocks on stdin, so a signal is handled here rather than in Run.
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, os.Stdin, os.Stdout) }()
	var runErr error
	select {
	case runErr = <-done:
	case <-ctx.Done():
		a.log.Info("shutting down")
	}
	stop()

	if err := ed.Flush(); err != nil {
		a.log.WithError(err).Error("final save failed")
	}
	if err := a.cfg.Save(a.cfgPath); err != nil {
		a.log.WithError(err).Warn("failed to save config")
	}
	return runErr
}

func runInit(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: init <folder>")
	}
	path, err := dataset.CreateFromFolder(args[0])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func (a *app) export(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	format := fs.String("format", a.cfg.Export.DefaultFormat, "coco or voc")
	out := fs.String("out", "", "destination file (coco) or directory (voc)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: export [-format coco|voc] [-out path] <dataset>")
	}

	ed, err := a.newEditor(nil)
	if err != nil {
		return err
	}
	if _, err := ed.Open(fs.Arg(0)); err != nil {
		return err
	}
	res, err := ed.Apply(editor.Command{Op: editor.OpExport, Format: *format, Path: *out})
	if err != nil {
		return err
	}
	fmt.Println(res.Status)
	return nil
}

func runEdges(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: edges <image> <out.png>")
	}
	img, err := imaging.NewImageCache().Load(args[0])
	if err != nil {
		return err
	}
	edges, err := imaging.EdgePreview(img)
	if err != nil {
		return err
	}
	data, err := base64.StdEncoding.DecodeString(edges.ImageBase64)
	if err != nil {
		return fmt.Errorf("failed to decode edge image: %w", err)
	}
	if err := os.WriteFile(args[1], data, 0o644); err != nil {
		return fmt.Errorf("failed to write edge image: %w", err)
	}
	fmt.Printf("%s (%dx%d)\n", args[1], edges.Width, edges.Height)
	return nil
}

func runInfo(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: info <image>")
	}
	info, err := imaging.LoadImageInfo(args[0])
	if err != nil {
		return err
	}
	out, err := jsoniter.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) status(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	limit := fs.Int("n", 5, "number of recent saves to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: status [-n count] <dataset>")
	}
	if a.progress == nil {
		return errors.New("progress database is disabled")
	}

	ds, err := dataset.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	done, err := a.progress.CompletedFrames(ds.Path)
	if err != nil {
		return err
	}
	completed := 0
	for _, e := range ds.Entries {
		if done[e.ImagePath] {
			completed++
		}
	}
	fmt.Printf("%s: %d/%d complete\n", ds.Path, completed, len(ds.Entries))

	saves, err := a.progress.RecentSaves(ds.Path, *limit)
	if err != nil {
		return err
	}
	for _, s := range saves {
		line := fmt.Sprintf("  %s  %d frames, %d skipped", s.SavedAt.Format(time.DateTime), s.Frames, s.Skipped)
		if s.Error != "" {
			line += "  error: " + s.Error
		}
		fmt.Println(line)
	}
	return nil
}
