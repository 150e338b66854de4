// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package testutil provides helpers for tests that run against the live host.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// RequireLinux skips the test if not running on Linux.
func RequireLinux(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("Test requires Linux")
	}
}

// RequireLinuxFilesystem verifies that the procfs sources read by the
// collectors are available, skipping the test otherwise.
func RequireLinuxFilesystem(t *testing.T) {
	t.Helper()
	RequireLinux(t)

	for _, p := range []string{"/proc/self/mountinfo", "/proc/stat", "/proc/meminfo", "/proc/sys/kernel/tainted"} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("Test requires %s: %v", p, err)
		}
	}
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
