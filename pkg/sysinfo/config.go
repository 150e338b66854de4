// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package sysinfo

import (
	"fmt"
	"path/filepath"
	"time"
)

// DefaultSampleInterval is the wait between the two /proc/stat reads of the
// CPU utilization sampler.
const DefaultSampleInterval = 900 * time.Millisecond

// CollectionConfig represents configuration for snapshot collection
type CollectionConfig struct {
	HostProcPath string // Path to /proc (useful for containers)
	HostSysPath  string // Path to /sys (useful for containers)
	HostEtcPath  string // Path to /etc (useful for containers)

	SampleInterval time.Duration

	// DistroReleasePaths are key=value (or one-line vendor) release files,
	// tried in order. Relative entries are resolved against HostEtcPath.
	DistroReleasePaths []string
	// LSBReleasePath is the legacy fallback, resolved like DistroReleasePaths.
	LSBReleasePath string
}

// DefaultDistroReleasePaths is the default priority order of release files.
var DefaultDistroReleasePaths = []string{
	"os-release",
	"../usr/lib/os-release",
	"gentoo-release",
	"fedora-release",
	"redhat-release",
	"debian_version",
}

// DefaultCollectionConfig returns a default configuration
func DefaultCollectionConfig() CollectionConfig {
	return CollectionConfig{
		HostProcPath:       "/proc",
		HostSysPath:        "/sys",
		HostEtcPath:        "/etc",
		SampleInterval:     DefaultSampleInterval,
		DistroReleasePaths: append([]string(nil), DefaultDistroReleasePaths...),
		LSBReleasePath:     "lsb-release",
	}
}

// ApplyDefaults fills in zero values with defaults
func (c *CollectionConfig) ApplyDefaults() {
	defaults := DefaultCollectionConfig()

	if c.HostProcPath == "" {
		c.HostProcPath = defaults.HostProcPath
	}
	if c.HostSysPath == "" {
		c.HostSysPath = defaults.HostSysPath
	}
	if c.HostEtcPath == "" {
		c.HostEtcPath = defaults.HostEtcPath
	}
	if c.SampleInterval == 0 {
		c.SampleInterval = defaults.SampleInterval
	}
	if len(c.DistroReleasePaths) == 0 {
		c.DistroReleasePaths = defaults.DistroReleasePaths
	}
	if c.LSBReleasePath == "" {
		c.LSBReleasePath = defaults.LSBReleasePath
	}
}

// ValidateOptions specifies validation requirements for CollectionConfig
type ValidateOptions struct {
	RequireHostProcPath bool
	RequireHostSysPath  bool
	RequireHostEtcPath  bool
}

// Validate ensures that all configured paths are absolute paths and that required paths are non-empty.
func (c *CollectionConfig) Validate(opt ValidateOptions) error {
	if opt.RequireHostProcPath && c.HostProcPath == "" {
		return fmt.Errorf("HostProcPath is required but not provided")
	}
	if opt.RequireHostSysPath && c.HostSysPath == "" {
		return fmt.Errorf("HostSysPath is required but not provided")
	}
	if opt.RequireHostEtcPath && c.HostEtcPath == "" {
		return fmt.Errorf("HostEtcPath is required but not provided")
	}

	if c.HostProcPath != "" && !filepath.IsAbs(c.HostProcPath) {
		return fmt.Errorf("HostProcPath must be an absolute path, got: %q", c.HostProcPath)
	}
	if c.HostSysPath != "" && !filepath.IsAbs(c.HostSysPath) {
		return fmt.Errorf("HostSysPath must be an absolute path, got: %q", c.HostSysPath)
	}
	if c.HostEtcPath != "" && !filepath.IsAbs(c.HostEtcPath) {
		return fmt.Errorf("HostEtcPath must be an absolute path, got: %q", c.HostEtcPath)
	}
	if c.SampleInterval < 0 {
		return fmt.Errorf("SampleInterval must not be negative, got: %s", c.SampleInterval)
	}
	return nil
}

// EtcPath resolves a release file name against HostEtcPath. Absolute names
// are returned unchanged.
func (c *CollectionConfig) EtcPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.HostEtcPath, name)
}
