// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package kernel parses and compares kernel release strings
package kernel

import (
	"fmt"
	"strconv"
	"strings"
)

// Version represents a parsed kernel release
type Version struct {
	Major int    `json:"major" yaml:"major"`
	Minor int    `json:"minor" yaml:"minor"`
	Patch int    `json:"patch" yaml:"patch"`
	Local string `json:"local,omitempty" yaml:"local,omitempty"` // Local version after the first '-', e.g. "26-generic"
	Raw   string `json:"raw" yaml:"raw"`                         // Original release string
}

// ParseVersion parses a kernel release as reported by uname -r,
// e.g. "5.15.0-generic", "6.8.0-45-generic" or "5.10.0rc1".
func ParseVersion(release string) (*Version, error) {
	v := &Version{Raw: release}

	version := release
	if idx := strings.IndexAny(version, "-+"); idx != -1 {
		v.Local = strings.TrimLeft(version[idx:], "-+")
		version = version[:idx]
	}

	parts := strings.Split(version, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid kernel version format: %s", release)
	}

	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid major version: %s", parts[0])
	}
	v.Major = major

	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid minor version: %s", parts[1])
	}
	v.Minor = minor

	if len(parts) >= 3 {
		// "0rc1" parses as 0
		v.Patch = leadingInt(parts[2])
	}

	return v, nil
}

func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}
