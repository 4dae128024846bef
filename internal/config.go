package internal

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/snagd/snag/internal/api"
	"github.com/snagd/snag/internal/download"
)

// SnagConfig is the struct used to contain the
// various user config supplied by file, or
// manually inside the code.
type SnagConfig struct {
	Rest       api.RestConfig  `yaml:"api"`
	Downloader download.Config `yaml:"downloader"`
}

// LoadFromFile loads a configuration file formatted in YAML in to a
// SnagConfig struct, applying environment overrides on top.
func (config *SnagConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s - %v", configPath, err.Error())
	}

	return nil
}

// LoadFromEnv populates a SnagConfig purely from the environment and
// the struct's defaults; used when no config file path was supplied.
func (config *SnagConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment - %v", err.Error())
	}

	return nil
}
