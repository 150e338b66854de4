// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package environment resolves host filesystem locations from environment variables
package environment

import "os"

// HostPaths contains the host filesystem paths for containerized environments
type HostPaths struct {
	Proc string // Path to /proc (e.g., /host/proc in containers)
	Sys  string // Path to /sys (e.g., /host/sys in containers)
	Etc  string // Path to /etc (e.g., /host/etc in containers)
}

// GetHostPaths returns the host filesystem paths from HOST_PROC, HOST_SYS
// and HOST_ETC, with defaults if not set.
func GetHostPaths() HostPaths {
	return HostPaths{
		Proc: getenv("HOST_PROC", "/proc"),
		Sys:  getenv("HOST_SYS", "/sys"),
		Etc:  getenv("HOST_ETC", "/etc"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
