// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import "time"

// FSStat is the subset of statfs(2) the disk collector needs.
type FSStat struct {
	Magic       uint32
	BlockSize   uint64
	Blocks      uint64
	BlocksFree  uint64 // including blocks reserved for root
	BlocksAvail uint64 // available to unprivileged users
	Files       uint64
	FilesFree   uint64
}

// Utsname is the decoded result of uname(2).
type Utsname struct {
	Sysname  string
	Nodename string
	Release  string
	Version  string
	Machine  string
}

type (
	StatFSFunc      func(path string) (FSStat, error)
	UnameFunc       func() (Utsname, error)
	HostnameFunc    func() (string, error)
	InterfaceSource func() ([]AddrRecord, error)
	SleepFunc       func(time.Duration)
)

// sources holds the non-file inputs of the collectors. A nil field means
// the live system call.
type sources struct {
	statfs     StatFSFunc
	uname      UnameFunc
	hostname   HostnameFunc
	interfaces InterfaceSource
	sleep      SleepFunc
}

// Option replaces a system call used by the collectors. Collectors ignore
// options for sources they don't read, so one option set can be passed to
// every constructor.
type Option func(*sources)

func WithStatFS(fn StatFSFunc) Option {
	return func(s *sources) { s.statfs = fn }
}

func WithUname(fn UnameFunc) Option {
	return func(s *sources) { s.uname = fn }
}

func WithHostname(fn HostnameFunc) Option {
	return func(s *sources) { s.hostname = fn }
}

func WithInterfaceSource(fn InterfaceSource) Option {
	return func(s *sources) { s.interfaces = fn }
}

// WithSleep replaces the wait between the two CPU counter samples.
func WithSleep(fn SleepFunc) Option {
	return func(s *sources) { s.sleep = fn }
}

func newSources(opts []Option) sources {
	var s sources
	for _, opt := range opts {
		opt(&s)
	}
	if s.statfs == nil {
		s.statfs = statFS
	}
	if s.uname == nil {
		s.uname = uname
	}
	if s.sleep == nil {
		s.sleep = time.Sleep
	}
	return s
}
