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

	"github.com/go-logr/logr"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

var _ sysinfo.Collector = (*CPUInfoCollector)(nil)

// CPUInfoCollector reads static processor information from /proc/cpuinfo.
//
// /proc/cpuinfo repeats one block of "key\t: value" lines per logical
// processor. The collector takes:
// - the model from the first "model name" line ("Processor" or "Hardware" on ARM)
// - the logical core count as the highest "processor" index + 1
// - the physical core count from "cpu cores", falling back to the logical count
// - the clock from the first "cpu MHz" line
//
// Architecture is filled by the kernel collector from uname.
type CPUInfoCollector struct {
	sysinfo.BaseCollector
	cpuinfoPath string
}

func NewCPUInfoCollector(logger logr.Logger, config sysinfo.CollectionConfig, _ ...Option) (*CPUInfoCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	return &CPUInfoCollector{
		BaseCollector: sysinfo.NewBaseCollector(sysinfo.StageCPUInfo, "CPU Info Collector", logger, config),
		cpuinfoPath:   filepath.Join(config.HostProcPath, "cpuinfo"),
	}, nil
}

func (c *CPUInfoCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	file, err := os.Open(c.cpuinfoPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.cpuinfoPath, err)
	}
	defer file.Close()

	var (
		model, armProcessor, armHardware string
		maxProcessor                     = -1
		physicalCores                    int
		speed                            float64
		speedSeen                        bool
	)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "model name":
			if model == "" {
				model = value
			}
		case "Processor":
			if armProcessor == "" {
				armProcessor = value
			}
		case "Hardware":
			if armHardware == "" {
				armHardware = value
			}
		case "processor":
			idx, err := strconv.Atoi(value)
			if err != nil {
				c.Logger().V(2).Info("Failed to parse processor index", "value", value, "error", err)
				continue
			}
			maxProcessor = max(maxProcessor, idx)
		case "cpu cores":
			n, err := strconv.Atoi(value)
			if err != nil {
				c.Logger().V(2).Info("Failed to parse cpu cores", "value", value, "error", err)
				continue
			}
			physicalCores = n
		case "cpu MHz":
			if speedSeen {
				continue
			}
			mhz, err := strconv.ParseFloat(value, 64)
			if err != nil {
				c.Logger().V(2).Info("Failed to parse cpu MHz", "value", value, "error", err)
				continue
			}
			speed, speedSeen = mhz, true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", c.cpuinfoPath, err)
	}

	if model == "" {
		model = armProcessor
	}
	if model == "" {
		model = armHardware
	}
	if model == "" {
		c.Logger().V(1).Info("No CPU model in cpuinfo", "path", c.cpuinfoPath)
	}

	snap.CPU.Model = model
	snap.CPU.Cores = maxProcessor + 1
	snap.CPU.PhysicalCores = physicalCores
	if snap.CPU.PhysicalCores == 0 {
		snap.CPU.PhysicalCores = snap.CPU.Cores
	}
	snap.CPU.CurrentSpeed = speed
	return nil
}
