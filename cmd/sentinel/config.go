package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// config is the optional YAML configuration file. Command-line flags
// override any value set here.
type config struct {
	Store      string `yaml:"store"`
	Passphrase string `yaml:"passphrase"`
	Hash       string `yaml:"hash"`
	LogLevel   string `yaml:"log_level"`
	DisableWAL bool   `yaml:"disable_wal"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
