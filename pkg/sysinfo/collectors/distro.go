// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

// DefaultDistroVersion is stored when no source names a version.
const DefaultDistroVersion = "0.0"

var (
	errNoReleaseFile = errors.New("no release file found")
	errNoDistroKeys  = errors.New("no distribution fields")
)

var _ sysinfo.Collector = (*DistroCollector)(nil)

// DistroCollector identifies the Linux distribution.
//
// Two strategies are tried in order:
//  1. The release files in CollectionConfig.DistroReleasePaths. The first
//     file that exists is used. os-release style files are parsed as
//     KEY=value; one-line vendor files (redhat-release, debian_version)
//     provide the description, and debian_version also the release.
//  2. The legacy lsb-release file (DISTRIB_* keys).
//
// When a strategy succeeds without a version, Version is set to "0.0".
// When both fail, Collect leaves the distro group empty and returns an error;
// this stage is optional and the assembler continues.
type DistroCollector struct {
	sysinfo.BaseCollector
	releasePaths []string
	lsbPath      string
}

func NewDistroCollector(logger logr.Logger, config sysinfo.CollectionConfig, _ ...Option) (*DistroCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostEtcPath: true}); err != nil {
		return nil, err
	}

	names := config.DistroReleasePaths
	if len(names) == 0 {
		names = sysinfo.DefaultDistroReleasePaths
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = config.EtcPath(name)
	}

	lsb := config.LSBReleasePath
	if lsb == "" {
		lsb = "lsb-release"
	}

	return &DistroCollector{
		BaseCollector: sysinfo.NewBaseCollector(sysinfo.StageDistro, "Distribution Collector", logger, config),
		releasePaths:  paths,
		lsbPath:       config.EtcPath(lsb),
	}, nil
}

func (c *DistroCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	info, err := c.fromReleaseFiles()
	if err != nil {
		c.Logger().V(1).Info("Release files unusable, trying lsb-release", "error", err)

		var lsbErr error
		info, lsbErr = c.fromLSBRelease()
		if lsbErr != nil {
			return fmt.Errorf("failed to identify distribution: %w", errors.Join(err, lsbErr))
		}
	}

	if info.Version == "" {
		info.Version = DefaultDistroVersion
	}
	snap.Distro = info
	return nil
}

func (c *DistroCollector) fromReleaseFiles() (sysinfo.DistroInfo, error) {
	for _, path := range c.releasePaths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return sysinfo.DistroInfo{}, fmt.Errorf("failed to read %s: %w", path, err)
		}

		info := parseReleaseFile(filepath.Base(path), data)
		if !info.Known() {
			return sysinfo.DistroInfo{}, fmt.Errorf("%s: %w", path, errNoDistroKeys)
		}
		return info, nil
	}
	return sysinfo.DistroInfo{}, errNoReleaseFile
}

func (c *DistroCollector) fromLSBRelease() (sysinfo.DistroInfo, error) {
	data, err := os.ReadFile(c.lsbPath)
	if err != nil {
		return sysinfo.DistroInfo{}, fmt.Errorf("failed to read %s: %w", c.lsbPath, err)
	}

	kv := parseKeyValues(data)
	info := sysinfo.DistroInfo{
		ID:          kv["DISTRIB_ID"],
		Release:     kv["DISTRIB_RELEASE"],
		Description: kv["DISTRIB_DESCRIPTION"],
		Version:     kv["LSB_VERSION"],
	}
	if !info.Known() {
		return sysinfo.DistroInfo{}, fmt.Errorf("%s: %w", c.lsbPath, errNoDistroKeys)
	}
	return info, nil
}

// parseReleaseFile parses an os-release style file, or a one-line vendor
// release file when it holds no KEY=value lines.
func parseReleaseFile(name string, data []byte) sysinfo.DistroInfo {
	kv := parseKeyValues(data)
	if len(kv) == 0 {
		line := firstLine(data)
		info := sysinfo.DistroInfo{Description: line}
		if name == "debian_version" && line != "" {
			info.ID = "debian"
			info.Release = line
		}
		return info
	}

	info := sysinfo.DistroInfo{
		ID:          kv["ID"],
		Description: kv["PRETTY_NAME"],
		Release:     kv["VERSION_ID"],
		Version:     kv["BUILD_ID"],
	}
	if info.Description == "" {
		info.Description = kv["NAME"]
	}
	if info.Version == "" {
		info.Version = kv["VERSION"]
	}
	return info
}

// parseKeyValues reads KEY=value lines, skipping blanks and comments.
func parseKeyValues(data []byte) map[string]string {
	kv := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok || !isEnvKey(key) {
			continue
		}
		kv[key] = unquote(strings.TrimSpace(value))
	}
	return kv
}

func isEnvKey(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var shellUnescaper = strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\$`, `$`, "\\`", "`")

func unquote(s string) string {
	if len(s) >= 2 {
		switch q := s[0]; {
		case q == '"' && s[len(s)-1] == '"':
			return shellUnescaper.Replace(s[1 : len(s)-1])
		case q == '\'' && s[len(s)-1] == '\'':
			return s[1 : len(s)-1]
		}
	}
	return s
}

func firstLine(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" && !strings.HasPrefix(line, "#") {
			return line
		}
	}
	return ""
}
