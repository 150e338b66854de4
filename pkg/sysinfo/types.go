// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package sysinfo defines the host snapshot data model shared by the
// collectors, the snapshot assembler and every consumer that renders or
// exports a snapshot.
package sysinfo

import (
	"iter"
	"sync/atomic"
	"time"

	"github.com/antimetal/sysinfo/pkg/kernel"
)

// Unknown is what consumers display for an unset optional string.
const Unknown = "(Unknown)"

// OrUnknown returns s, or Unknown when s is empty.
func OrUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// Stage identifies one collection step of a snapshot.
type Stage string

const (
	StageCPUInfo  Stage = "cpu_info"
	StageLoad     Stage = "load"
	StageDistro   Stage = "distro"
	StageDisk     Stage = "disk"
	StageMemory   Stage = "memory"
	StageProcStat Stage = "proc_stat"
	StageKernel   Stage = "kernel"
	StageNetwork  Stage = "network"
)

// Snapshot is one point-in-time capture of host telemetry.
//
// A Snapshot is exclusively owned by whoever called the assembler. The
// owner releases it exactly once with Release when done.
type Snapshot struct {
	CurrentTime time.Time `json:"currentTime" yaml:"currentTime"`
	BootTime    time.Time `json:"bootTime" yaml:"bootTime"`
	Hostname    string    `json:"hostname" yaml:"hostname"`

	Load      LoadAverage  `json:"load" yaml:"load"`
	Processes ProcessStats `json:"processes" yaml:"processes"`
	// Users is reserved and always zero.
	Users uint32 `json:"users" yaml:"users"`

	CPU    CPUInfo    `json:"cpu" yaml:"cpu"`
	Memory MemoryInfo `json:"memory" yaml:"memory"`
	Kernel KernelInfo `json:"kernel" yaml:"kernel"`
	Distro DistroInfo `json:"distro" yaml:"distro"`

	Mounts     []MountEntry     `json:"mounts" yaml:"mounts"`
	Interfaces []InterfaceEntry `json:"interfaces" yaml:"interfaces"`

	released atomic.Bool
}

// Uptime returns the time elapsed between boot and now. It is zero when the
// boot time is unknown.
func (s *Snapshot) Uptime(now time.Time) time.Duration {
	if s.BootTime.IsZero() || now.Before(s.BootTime) {
		return 0
	}
	return now.Sub(s.BootTime)
}

// AllMounts iterates the mount entries in mount-table order.
func (s *Snapshot) AllMounts() iter.Seq[MountEntry] {
	return func(yield func(MountEntry) bool) {
		for _, m := range s.Mounts {
			if !yield(m) {
				return
			}
		}
	}
}

// AllInterfaces iterates the interface entries in name order.
func (s *Snapshot) AllInterfaces() iter.Seq[InterfaceEntry] {
	return func(yield func(InterfaceEntry) bool) {
		for _, i := range s.Interfaces {
			if !yield(i) {
				return
			}
		}
	}
}

// LoadAverage holds /proc/loadavg averages.
type LoadAverage struct {
	Load1  float64 `json:"load1" yaml:"load1"`
	Load5  float64 `json:"load5" yaml:"load5"`
	Load15 float64 `json:"load15" yaml:"load15"`
}

// ProcessStats holds the process counters from /proc/stat.
type ProcessStats struct {
	// Total is the number of forks since boot.
	Total   uint64 `json:"total" yaml:"total"`
	Running uint64 `json:"running" yaml:"running"`
	Blocked uint64 `json:"blocked" yaml:"blocked"`
}

// CPUInfo describes the processor.
type CPUInfo struct {
	Architecture string `json:"architecture" yaml:"architecture"`
	// Model is empty when /proc/cpuinfo carries no model line.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// Cores is the number of logical processors.
	Cores int `json:"cores" yaml:"cores"`
	// PhysicalCores is taken from the "cpu cores" field. If the field is
	// absent (e.g. on most ARM kernels) it falls back to Cores.
	PhysicalCores int `json:"physicalCores" yaml:"physicalCores"`
	// CurrentSpeed is the first reported clock in MHz.
	CurrentSpeed float64 `json:"currentSpeedMHz" yaml:"currentSpeedMHz"`
	// Utilization is busy time over the sample interval, 0 to 100.
	Utilization uint8 `json:"utilization" yaml:"utilization"`
}

// MemoryInfo holds memory sizes in bytes.
type MemoryInfo struct {
	TotalRam     uint64 `json:"totalRam" yaml:"totalRam"`
	FreeRam      uint64 `json:"freeRam" yaml:"freeRam"`
	UsedRam      uint64 `json:"usedRam" yaml:"usedRam"`
	AvailableRam uint64 `json:"availableRam" yaml:"availableRam"`
	TotalSwap    uint64 `json:"totalSwap" yaml:"totalSwap"`
	FreeSwap     uint64 `json:"freeSwap" yaml:"freeSwap"`
	UsedSwap     uint64 `json:"usedSwap" yaml:"usedSwap"`
}

// UsedPercent returns UsedRam as a percentage of TotalRam.
func (m MemoryInfo) UsedPercent() float64 {
	if m.TotalRam == 0 {
		return 0
	}
	return float64(m.UsedRam) * 100 / float64(m.TotalRam)
}

// KernelInfo identifies the running kernel.
type KernelInfo struct {
	Type    string `json:"type" yaml:"type"`
	Release string `json:"release" yaml:"release"`
	Version string `json:"version" yaml:"version"`
	// Tainted is the raw /proc/sys/kernel/tainted bitmask.
	Tainted uint64 `json:"tainted" yaml:"tainted"`
	// Parsed is nil when Release is not a dotted version.
	Parsed *kernel.Version `json:"parsed,omitempty" yaml:"parsed,omitempty"`
}

func (k KernelInfo) IsTainted() bool { return k.Tainted != 0 }

// TaintedFlag returns the low byte of the taint mask.
func (k KernelInfo) TaintedFlag() uint8 { return uint8(k.Tainted) }

// DistroInfo identifies the distribution. Every field may be empty.
type DistroInfo struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Release     string `json:"release,omitempty" yaml:"release,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Known reports whether any distro field was resolved.
func (d DistroInfo) Known() bool {
	return d.ID != "" || d.Description != "" || d.Release != "" || d.Version != ""
}

// MountEntry describes one mounted filesystem.
type MountEntry struct {
	Device     string `json:"device" yaml:"device"`
	MountPoint string `json:"mountPoint" yaml:"mountPoint"`
	// FSType is the registry name for Magic, empty when unresolved.
	FSType string `json:"fsType,omitempty" yaml:"fsType,omitempty"`
	// RawFSType is the type string from the mount table.
	RawFSType string `json:"rawFsType" yaml:"rawFsType"`
	Options   string `json:"options" yaml:"options"`
	Magic     uint32 `json:"magic" yaml:"magic"`

	IsNetwork bool `json:"isNetwork" yaml:"isNetwork"`
	IsLocal   bool `json:"isLocal" yaml:"isLocal"`
	IsSpecial bool `json:"isSpecial" yaml:"isSpecial"`

	// SpaceFree excludes blocks reserved for the superuser.
	SpaceTotal uint64 `json:"spaceTotal" yaml:"spaceTotal"`
	SpaceFree  uint64 `json:"spaceFree" yaml:"spaceFree"`
	SpaceUsed  uint64 `json:"spaceUsed" yaml:"spaceUsed"`

	Inodes     uint64 `json:"inodes" yaml:"inodes"`
	InodesFree uint64 `json:"inodesFree" yaml:"inodesFree"`
	InodesUsed uint64 `json:"inodesUsed" yaml:"inodesUsed"`

	Blocks    uint64 `json:"blocks" yaml:"blocks"`
	BlockSize uint64 `json:"blockSize" yaml:"blockSize"`
}

// Resolved reports whether the registry knew the filesystem magic.
func (m MountEntry) Resolved() bool { return m.FSType != "" }

// InterfaceEntry describes one network interface with all of its
// address records merged.
type InterfaceEntry struct {
	Name       string `json:"name" yaml:"name"`
	IPv4       string `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6       string `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	MACAddress string `json:"macAddress,omitempty" yaml:"macAddress,omitempty"`
	TxBytes    uint64 `json:"txBytes" yaml:"txBytes"`
	RxBytes    uint64 `json:"rxBytes" yaml:"rxBytes"`
	// Up requires both the administrative UP and the RUNNING flag.
	Up       bool `json:"up" yaml:"up"`
	Loopback bool `json:"loopback" yaml:"loopback"`
}
