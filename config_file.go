// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// configFile is the YAML representation of the file based configuration. Only
// keys that are present in the document are turned into options.
type configFile struct {
	TempDir           *string  `yaml:"temp_dir"`
	Includes          []string `yaml:"includes"`
	Excludes          []string `yaml:"excludes"`
	MaxDepth          *int     `yaml:"max_depth"`
	MaxExtractionSize *int64   `yaml:"max_extraction_size"`
	MaxBufferedBytes  *int64   `yaml:"max_buffered_bytes"`
	ReadBufferSize    *int     `yaml:"read_buffer_size"`
	Workers           *int     `yaml:"workers"`
	FollowSymlinks    *bool    `yaml:"follow_symlinks"`
	CleanTempDir      *bool    `yaml:"clean_temp_dir"`
}

// LoadConfigFile reads the YAML document at path and returns the options it
// describes. The options are meant to be passed to [NewConfig] before options
// that should take precedence.
func LoadConfigFile(path string) ([]ConfigOption, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return parseConfigFile(data)
}

// parseConfigFile converts a YAML document into config options.
func parseConfigFile(data []byte) ([]ConfigOption, error) {
	var cf configFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}

	var opts []ConfigOption
	if cf.TempDir != nil {
		opts = append(opts, WithTempDir(*cf.TempDir))
	}
	if cf.Includes != nil {
		opts = append(opts, WithIncludes(cf.Includes...))
	}
	if cf.Excludes != nil {
		opts = append(opts, WithExcludes(cf.Excludes...))
	}
	if cf.MaxDepth != nil {
		opts = append(opts, WithMaxDepth(*cf.MaxDepth))
	}
	if cf.MaxExtractionSize != nil {
		opts = append(opts, WithMaxExtractionSize(*cf.MaxExtractionSize))
	}
	if cf.MaxBufferedBytes != nil {
		opts = append(opts, WithMaxBufferedBytes(*cf.MaxBufferedBytes))
	}
	if cf.ReadBufferSize != nil {
		opts = append(opts, WithReadBufferSize(*cf.ReadBufferSize))
	}
	if cf.Workers != nil {
		opts = append(opts, WithWorkers(*cf.Workers))
	}
	if cf.FollowSymlinks != nil {
		opts = append(opts, WithFollowSymlinks(*cf.FollowSymlinks))
	}
	if cf.CleanTempDir != nil {
		opts = append(opts, WithCleanTempDir(*cf.CleanTempDir))
	}
	return opts, nil
}
