package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Initialize creates the configuration directory and writes the default
// configuration file into it. An existing file is left untouched.
func Initialize(dir string, logger *log.Logger) error {
	return initializeFs(afero.NewOsFs(), dir, logger)
}

func initializeFs(osFs afero.Fs, dir string, logger *log.Logger) error {
	logger.Printf("Initializing configuration in %q\n", dir)
	if err := osFs.MkdirAll(dir, 0700); err != nil {
		return err
	}

	configPath := filepath.Join(dir, ConfigurationName)
	_, err := osFs.Stat(configPath)
	switch {
	case err == nil:
		logger.Printf("- %s already exists, skipping\n", ConfigurationName)
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	logger.Printf("- Writing %s\n", ConfigurationName)
	return afero.WriteFile(osFs, configPath, defaultConfigData, os.FileMode(0600))
}
