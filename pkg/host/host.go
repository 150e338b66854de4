// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package host provides host identification helpers
package host

import "github.com/antimetal/sysinfo/pkg/config/environment"

// Hostname returns the hostname reported by the kernel.
// In particular it returns the hostname of the host machine
// when inside a container with the host's /proc mounted at procPath.
// An empty procPath uses HOST_PROC or /proc.
func Hostname(procPath string) (string, error) {
	if procPath == "" {
		procPath = environment.GetHostPaths().Proc
	}
	return hostname(procPath)
}
