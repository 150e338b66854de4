// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

var _ sysinfo.Collector = (*ProcStatCollector)(nil)

// ProcStatCollector reads /proc/stat twice to fill the process statistics
// and the CPU utilization of a snapshot.
//
// /proc/stat format (relevant lines):
//
//	cpu  user nice system idle iowait irq softirq steal guest guest_nice
//	btime 1700000000
//	processes 123456
//	procs_running 2
//	procs_blocked 0
//
// The first read takes the process counters, the boot time and the aggregate
// cpu counters. After SampleInterval the cpu counters are read again and
// Utilization is computed from the two samples. The wait is a plain sleep and
// does not observe context cancellation.
//
// Kernels older than 2.6.33 report fewer than ten cpu fields; missing
// trailing fields are zero.
//
// Reference: https://www.kernel.org/doc/html/latest/filesystems/proc.html#miscellaneous-kernel-statistics-in-proc-stat
type ProcStatCollector struct {
	sysinfo.BaseCollector
	statPath string
	interval time.Duration
	sleep    SleepFunc
}

func NewProcStatCollector(logger logr.Logger, config sysinfo.CollectionConfig, opts ...Option) (*ProcStatCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	interval := config.SampleInterval
	if interval == 0 {
		interval = sysinfo.DefaultSampleInterval
	}

	return &ProcStatCollector{
		BaseCollector: sysinfo.NewBaseCollector(sysinfo.StageProcStat, "Process Statistics Collector", logger, config),
		statPath:      filepath.Join(config.HostProcPath, "stat"),
		interval:      interval,
		sleep:         newSources(opts).sleep,
	}, nil
}

type statSample struct {
	cpu       sysinfo.CPUTimes
	hasCPU    bool
	bootTime  int64
	processes uint64
	running   uint64
	blocked   uint64
}

func (c *ProcStatCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	first, err := c.readStat()
	if err != nil {
		return err
	}

	c.sleep(c.interval)

	second, err := c.readStat()
	if err != nil {
		return err
	}

	if first.bootTime > 0 {
		snap.BootTime = time.Unix(first.bootTime, 0)
	}
	snap.Processes = sysinfo.ProcessStats{
		Total:   first.processes,
		Running: first.running,
		Blocked: first.blocked,
	}

	if _, reset := second.cpu.Sub(first.cpu); reset {
		c.Logger().V(1).Info("CPU counter reset detected between samples")
	}
	snap.CPU.Utilization = sysinfo.Utilization(first.cpu, second.cpu)
	return nil
}

func (c *ProcStatCollector) readStat() (statSample, error) {
	file, err := os.Open(c.statPath)
	if err != nil {
		return statSample{}, fmt.Errorf("failed to open %s: %w", c.statPath, err)
	}
	defer file.Close()

	var sample statSample
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		switch fields[0] {
		case "cpu":
			sample.cpu = c.parseCPUTimes(fields[1:])
			sample.hasCPU = true
		case "btime":
			sample.bootTime = c.parseInt(fields[0], fields[1])
		case "processes":
			sample.processes = c.parseUint(fields[0], fields[1])
		case "procs_running":
			sample.running = c.parseUint(fields[0], fields[1])
		case "procs_blocked":
			sample.blocked = c.parseUint(fields[0], fields[1])
		}
	}
	if err := scanner.Err(); err != nil {
		return statSample{}, fmt.Errorf("error reading %s: %w", c.statPath, err)
	}

	if !sample.hasCPU {
		return statSample{}, fmt.Errorf("%s: %w", c.statPath, sysinfo.ErrNoCPULine)
	}
	return sample, nil
}

func (c *ProcStatCollector) parseCPUTimes(values []string) sysinfo.CPUTimes {
	var t sysinfo.CPUTimes
	dst := []*uint64{
		&t.User, &t.Nice, &t.System, &t.Idle, &t.IOWait,
		&t.IRQ, &t.SoftIRQ, &t.Steal, &t.Guest, &t.GuestNice,
	}
	for i, v := range values {
		if i >= len(dst) {
			break
		}
		*dst[i] = c.parseUint("cpu", v)
	}
	return t
}

func (c *ProcStatCollector) parseUint(field, value string) uint64 {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		c.Logger().V(2).Info("Failed to parse stat field", "field", field, "value", value, "error", err)
		return 0
	}
	return n
}

func (c *ProcStatCollector) parseInt(field, value string) int64 {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		c.Logger().V(2).Info("Failed to parse stat field", "field", field, "value", value, "error", err)
		return 0
	}
	return n
}
