// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package main

import "golang.org/x/sys/unix"

// maxProcesses returns the soft RLIMIT_NPROC, or 0 when unlimited or unknown.
func maxProcesses() uint64 {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NPROC, &rlim); err != nil {
		setupLog.V(1).Info("failed to read process limit", "error", err)
		return 0
	}
	if rlim.Cur == unix.RLIM_INFINITY {
		return 0
	}
	return rlim.Cur
}
