// Package config holds the application configuration: a JSON file in the
// user's config directory, validated with struct tags and overridable from
// the environment (including a .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// AppName names the config directory.
	AppName = "image-annotator"
	// MaxRecentDatasets bounds the recent-datasets list.
	MaxRecentDatasets = 10

	EnvLogLevel         = "IMAGE_ANNOTATOR_LOG_LEVEL"
	EnvLogFile          = "IMAGE_ANNOTATOR_LOG_FILE"
	EnvAutoSaveSeconds  = "IMAGE_ANNOTATOR_AUTOSAVE_SECONDS"
	EnvProgressDatabase = "IMAGE_ANNOTATOR_PROGRESS_DB"
)

// Config is the application configuration.
type Config struct {
	AnnotationModes AnnotationModes `json:"annotation_modes"`
	Dataset         Dataset         `json:"dataset"`
	Classes         Classes         `json:"classes"`
	Export          Export          `json:"export"`
	Editor          Editor          `json:"editor"`
	Log             Log             `json:"log"`
}

// AnnotationModes enables or disables drawing tools. Disabled tools cannot be
// selected; existing annotations of that kind stay editable.
type AnnotationModes struct {
	EnablePoints       bool `json:"enable_points"`
	EnableBoxes        bool `json:"enable_bboxes"`
	EnableRotatedBoxes bool `json:"enable_rotated_bboxes"`
	EnablePolygons     bool `json:"enable_polygons"`
}

type Dataset struct {
	// RandomizeOrder opens a dataset at a random frame.
	RandomizeOrder bool `json:"randomize_order"`
	// AutoSaveIntervalSeconds is the auto-save period; 0 disables it.
	AutoSaveIntervalSeconds int      `json:"auto_save_interval_seconds" validate:"gte=0,lte=3600"`
	RecentDatasets          []string `json:"recent_datasets" validate:"max=10"`
	// ProgressDatabase is the SQLite file for completion flags. Empty
	// selects the default location; "off" disables it.
	ProgressDatabase string `json:"progress_database,omitempty"`
}

type Classes struct {
	ConfigFile string `json:"config_file,omitempty"`
}

type Export struct {
	DefaultFormat       string `json:"default_format" validate:"oneof=coco voc"`
	CocoCategoryStartID int    `json:"coco_category_start_id" validate:"gte=0"`
}

type Editor struct {
	UndoDepth int `json:"undo_depth" validate:"gte=1,lte=1000"`
}

type Log struct {
	Level string `json:"level" validate:"oneof=trace debug info warn warning error"`
	File  string `json:"file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		AnnotationModes: AnnotationModes{
			EnablePoints:       true,
			EnableBoxes:        true,
			EnableRotatedBoxes: true,
			EnablePolygons:     true,
		},
		Dataset: Dataset{
			AutoSaveIntervalSeconds: 5,
			RecentDatasets:          []string{},
		},
		Export: Export{
			DefaultFormat:       "coco",
			CocoCategoryStartID: 1,
		},
		Editor: Editor{UndoDepth: 50},
		Log:    Log{Level: "info"},
	}
}

// Dir returns the configuration directory, $XDG_CONFIG_HOME/image-annotator
// on Linux.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// Path returns the default config file path.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config at path over the defaults. A missing file yields the
// defaults. Environment overrides are applied before validation.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; with no arguments ".env" in the working directory is tried.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from IMAGE_ANNOTATOR_* variables.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv(EnvProgressDatabase); v != "" {
		c.Dataset.ProgressDatabase = v
	}
	if v := os.Getenv(EnvAutoSaveSeconds); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvAutoSaveSeconds, err)
		}
		c.Dataset.AutoSaveIntervalSeconds = n
	}
	return nil
}

var validate = validator.New()

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes the config as indented JSON, creating parent directories.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// AddRecentDataset moves path to the front of the recent list, dropping
// duplicates and anything past MaxRecentDatasets.
func (c *Config) AddRecentDataset(path string) {
	recent := []string{path}
	for _, p := range c.Dataset.RecentDatasets {
		if p != path {
			recent = append(recent, p)
		}
	}
	if len(recent) > MaxRecentDatasets {
		recent = recent[:MaxRecentDatasets]
	}
	c.Dataset.RecentDatasets = recent
}

// ProgressDatabasePath resolves where the progress database lives, or ""
// when it is disabled.
func (c *Config) ProgressDatabasePath() (string, error) {
	switch c.Dataset.ProgressDatabase {
	case "off":
		return "", nil
	case "":
		dir, err := Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "progress.db"), nil
	default:
		return c.Dataset.ProgressDatabase, nil
	}
}
