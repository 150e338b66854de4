// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package config loads the sysinfo command configuration.
//
// Values are layered: built-in defaults, then HOST_PROC/HOST_SYS/HOST_ETC,
// then an optional YAML or JSON file, then command-line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/antimetal/sysinfo/pkg/config/environment"
	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

// DefaultBannerWidth is the width of the banner section rules.
const DefaultBannerWidth = 72

// File is the on-disk configuration. Every field is optional.
type File struct {
	HostProcPath       string   `json:"hostProcPath" yaml:"hostProcPath"`
	HostSysPath        string   `json:"hostSysPath" yaml:"hostSysPath"`
	HostEtcPath        string   `json:"hostEtcPath" yaml:"hostEtcPath"`
	SampleInterval     string   `json:"sampleInterval" yaml:"sampleInterval"`
	DistroReleasePaths []string `json:"distroReleasePaths" yaml:"distroReleasePaths"`
	LSBReleasePath     string   `json:"lsbReleasePath" yaml:"lsbReleasePath"`

	Banner BannerFile `json:"banner" yaml:"banner"`
}

type BannerFile struct {
	Color *bool `json:"color" yaml:"color"`
	Width int   `json:"width" yaml:"width"`
}

// Banner holds the resolved banner options.
type Banner struct {
	Color bool
	Width int
}

// Config is the resolved configuration.
type Config struct {
	Collection sysinfo.CollectionConfig
	Banner     Banner
}

// Overrides are command-line values. Empty fields leave the config
// unchanged.
type Overrides struct {
	HostProcPath   string
	HostSysPath    string
	HostEtcPath    string
	SampleInterval time.Duration
	NoColor        bool
}

// Default returns the built-in configuration with the environment path
// overrides applied.
func Default() Config {
	c := Config{
		Collection: sysinfo.DefaultCollectionConfig(),
		Banner:     Banner{Color: true, Width: DefaultBannerWidth},
	}

	paths := environment.GetHostPaths()
	c.Collection.HostProcPath = paths.Proc
	c.Collection.HostSysPath = paths.Sys
	c.Collection.HostEtcPath = paths.Etc
	return c
}

// Load resolves the configuration. path may be empty, in which case no file
// is read.
func Load(logger logr.Logger, path string, o Overrides) (Config, error) {
	logger = logger.WithName("config")
	c := Default()

	if path != "" {
		f, err := LoadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := c.ApplyFile(f); err != nil {
			return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
		}
		logger.V(1).Info("loaded config file", "path", path)
	}

	c.ApplyOverrides(o)
	c.Collection.ApplyDefaults()
	if err := c.Collection.Validate(sysinfo.ValidateOptions{
		RequireHostProcPath: true,
		RequireHostEtcPath:  true,
	}); err != nil {
		return Config{}, err
	}
	if c.Banner.Width <= 0 {
		c.Banner.Width = DefaultBannerWidth
	}
	return c, nil
}

// LoadFile reads a configuration file. The format is chosen by extension;
// unknown keys are rejected.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if len(bytes.TrimSpace(data)) == 0 {
			return File{}, nil
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return File{}, fmt.Errorf("failed to unmarshal YAML: %w", err)
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return File{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
		}
	default:
		return File{}, fmt.Errorf("unsupported file extension: %q", ext)
	}
	return f, nil
}

// ApplyFile overlays the non-empty fields of f.
func (c *Config) ApplyFile(f File) error {
	setString(&c.Collection.HostProcPath, f.HostProcPath)
	setString(&c.Collection.HostSysPath, f.HostSysPath)
	setString(&c.Collection.HostEtcPath, f.HostEtcPath)
	setString(&c.Collection.LSBReleasePath, f.LSBReleasePath)
	if len(f.DistroReleasePaths) > 0 {
		c.Collection.DistroReleasePaths = append([]string(nil), f.DistroReleasePaths...)
	}

	if f.SampleInterval != "" {
		d, err := time.ParseDuration(f.SampleInterval)
		if err != nil {
			return fmt.Errorf("invalid sampleInterval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("sampleInterval must be positive, got: %s", d)
		}
		c.Collection.SampleInterval = d
	}

	if f.Banner.Color != nil {
		c.Banner.Color = *f.Banner.Color
	}
	if f.Banner.Width != 0 {
		c.Banner.Width = f.Banner.Width
	}
	return nil
}

func (c *Config) ApplyOverrides(o Overrides) {
	setString(&c.Collection.HostProcPath, o.HostProcPath)
	setString(&c.Collection.HostSysPath, o.HostSysPath)
	setString(&c.Collection.HostEtcPath, o.HostEtcPath)
	if o.SampleInterval > 0 {
		c.Collection.SampleInterval = o.SampleInterval
	}
	if o.NoColor {
		c.Banner.Color = false
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
