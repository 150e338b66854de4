// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-logr/logr"

	"github.com/antimetal/sysinfo/pkg/host"
	"github.com/antimetal/sysinfo/pkg/kernel"
	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

var _ sysinfo.Collector = (*KernelCollector)(nil)

// KernelCollector fills the kernel identity, the host name and the CPU
// architecture from uname(2), the kernel hostname and
// /proc/sys/kernel/tainted.
//
// Every source is mandatory. An unreadable taint value is stored as 0, but
// a tainted file that cannot be opened is an error.
type KernelCollector struct {
	sysinfo.BaseCollector
	taintedPath string
	uname       UnameFunc
	hostname    HostnameFunc
}

func NewKernelCollector(logger logr.Logger, config sysinfo.CollectionConfig, opts ...Option) (*KernelCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	src := newSources(opts)
	if src.hostname == nil {
		procPath := config.HostProcPath
		src.hostname = func() (string, error) { return host.Hostname(procPath) }
	}

	return &KernelCollector{
		BaseCollector: sysinfo.NewBaseCollector(sysinfo.StageKernel, "Kernel Collector", logger, config),
		taintedPath:   filepath.Join(config.HostProcPath, "sys", "kernel", "tainted"),
		uname:         src.uname,
		hostname:      src.hostname,
	}, nil
}

func (c *KernelCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	uts, err := c.uname()
	if err != nil {
		return fmt.Errorf("failed to read kernel identity: %w", err)
	}

	hostname, err := c.hostname()
	if err != nil {
		return fmt.Errorf("failed to read hostname: %w", err)
	}

	tainted, err := c.readTainted()
	if err != nil {
		return err
	}

	snap.Hostname = hostname
	snap.CPU.Architecture = uts.Machine
	snap.Kernel = sysinfo.KernelInfo{
		Type:    uts.Sysname,
		Release: uts.Release,
		Version: uts.Version,
		Tainted: tainted,
	}

	if v, err := kernel.ParseVersion(uts.Release); err == nil {
		snap.Kernel.Parsed = v
	} else {
		c.Logger().V(2).Info("Kernel release is not a dotted version", "release", uts.Release, "error", err)
	}
	return nil
}

func (c *KernelCollector) readTainted() (uint64, error) {
	data, err := os.ReadFile(c.taintedPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", c.taintedPath, err)
	}

	value := strings.TrimSpace(string(data))
	tainted, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		c.Logger().V(2).Info("Failed to parse taint mask", "value", value, "error", err)
		return 0, nil
	}
	return tainted, nil
}
