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

// Compile-time interface check
var _ sysinfo.Collector = (*MemoryCollector)(nil)

// MemoryCollector fills the memory group of a snapshot from /proc/meminfo.
//
// /proc/meminfo format:
//
//	FieldName:       value kB
//
// Every field read here is in kilobytes and is converted to bytes. Missing
// fields are left as zero. UsedRam is derived as MemTotal - MemFree and is
// never read from the source.
//
// Error handling:
// - Failing to open /proc/meminfo returns an error (mandatory source)
// - Individual field parsing errors are logged at debug level and the field stays zero
//
// Reference: https://www.kernel.org/doc/html/latest/filesystems/proc.html#meminfo
type MemoryCollector struct {
	sysinfo.BaseCollector
	meminfoPath string
}

func NewMemoryCollector(logger logr.Logger, config sysinfo.CollectionConfig, _ ...Option) (*MemoryCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	return &MemoryCollector{
		BaseCollector: sysinfo.NewBaseCollector(sysinfo.StageMemory, "Memory Collector", logger, config),
		meminfoPath:   filepath.Join(config.HostProcPath, "meminfo"),
	}, nil
}

func (c *MemoryCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	mem, err := c.collectMemoryInfo()
	if err != nil {
		return err
	}
	snap.Memory = mem
	return nil
}

func (c *MemoryCollector) collectMemoryInfo() (sysinfo.MemoryInfo, error) {
	file, err := os.Open(c.meminfoPath)
	if err != nil {
		return sysinfo.MemoryInfo{}, fmt.Errorf("failed to open %s: %w", c.meminfoPath, err)
	}
	defer file.Close()

	var mem sysinfo.MemoryInfo
	fieldMap := map[string]*uint64{
		"MemTotal":     &mem.TotalRam,
		"MemFree":      &mem.FreeRam,
		"MemAvailable": &mem.AvailableRam,
		"SwapTotal":    &mem.TotalSwap,
		"SwapFree":     &mem.FreeSwap,
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		fieldName := strings.TrimSuffix(parts[0], ":")
		fieldPtr, ok := fieldMap[fieldName]
		if !ok {
			continue
		}

		value, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			c.Logger().V(2).Info("Failed to parse memory field value",
				"field", fieldName, "value", parts[1], "error", err)
			continue
		}
		*fieldPtr = value * 1024
	}

	if err := scanner.Err(); err != nil {
		return sysinfo.MemoryInfo{}, fmt.Errorf("error reading %s: %w", c.meminfoPath, err)
	}

	mem.UsedRam = saturatingSub(mem.TotalRam, mem.FreeRam)
	mem.UsedSwap = saturatingSub(mem.TotalSwap, mem.FreeSwap)
	return mem, nil
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}
