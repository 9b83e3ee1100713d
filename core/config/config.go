package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	DefaultDirName    = ".jobsh"
)

// Color settings.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Configuration struct {
	configFs         afero.Fs
	configurationDir string

	HistoryFile          string `json:"history_file"`
	HistoryLimit         int    `json:"history_limit" validate:"gte=0"`
	SkipDuplicateHistory bool   `json:"skip_duplicate_history"`

	Color string `json:"color" validate:"oneof=auto always never"`

	OutputMode string `json:"output_mode" validate:"required,filemode"`

	EventLog string `json:"event_log"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})
	if err := validate.RegisterValidation("filemode", func(fl validator.FieldLevel) bool {
		_, err := parseFileMode(fl.Field().String())
		return err == nil
	}); err != nil {
		return err
	}

	return validate.Struct(c)
}

func parseFileMode(s string) (os.FileMode, error) {
	mode, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	if mode > 0777 {
		return 0, fmt.Errorf("mode %q has bits outside of 0777", s)
	}
	return os.FileMode(mode), nil
}

// FileMode is the permission of files created by output redirection.
func (c *Configuration) FileMode() os.FileMode {
	mode, err := parseFileMode(c.OutputMode)
	if err != nil {
		// Validated configurations never get here.
		return 0644
	}
	return mode
}

// UseColor reports whether output should be colorized given whether it goes
// to a terminal.
func (c *Configuration) UseColor(isTerminal bool) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return isTerminal
	}
}

// Dir is the configuration directory.
func (c *Configuration) Dir() string {
	return c.configurationDir
}

// HistoryPath is the path of the history file, empty if it's disabled.
func (c *Configuration) HistoryPath() string {
	return c.resolve(c.HistoryFile)
}

func (c *Configuration) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) || c.configurationDir == "" {
		return name
	}
	return filepath.Join(c.configurationDir, name)
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// EventLogEnabled reports whether events should be recorded.
func (c *Configuration) EventLogEnabled() bool {
	return c.EventLog != ""
}

// OpenEventLog opens the event log in an append only state, creating the
// configuration directory if needed.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	if !c.EventLogEnabled() {
		return nil, os.ErrNotExist
	}
	if err := c.fs().MkdirAll(filepath.Dir(c.EventLog), 0700); err != nil {
		return nil, err
	}
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	if !c.EventLogEnabled() {
		return nil, os.ErrNotExist
	}
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}

// Default returns the built-in configuration backed by an in-memory file
// system, for shells that shouldn't touch the disk.
func Default() *Configuration {
	cfg := defaultConfig()
	cfg.configFs = afero.NewMemMapFs()
	return cfg
}

// DefaultDir is the configuration directory in the user's home.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultDirName), nil
}
