// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package sysinfo

import "errors"

var (
	// ErrReleased is returned when a snapshot is released more than once.
	ErrReleased = errors.New("snapshot already released")
	// ErrNoCPULine is returned when /proc/stat has no aggregate cpu line.
	ErrNoCPULine = errors.New("no aggregate cpu line")
	// ErrMalformed marks a mandatory record that could not be parsed.
	ErrMalformed = errors.New("malformed record")
)

// Release drops every entry and string owned by the snapshot and marks it
// released. It returns the number of mount and interface entries dropped.
// Only the first call has an effect; later calls return ErrReleased.
func (s *Snapshot) Release() (int, error) {
	if s == nil {
		return 0, nil
	}
	if !s.released.CompareAndSwap(false, true) {
		return 0, ErrReleased
	}

	n := len(s.Mounts) + len(s.Interfaces)
	clear(s.Mounts)
	clear(s.Interfaces)
	s.Mounts = nil
	s.Interfaces = nil

	s.Hostname = ""
	s.CPU = CPUInfo{}
	s.Kernel = KernelInfo{}
	s.Distro = DistroInfo{}
	return n, nil
}

// Released reports whether Release has been called.
func (s *Snapshot) Released() bool {
	return s.released.Load()
}
