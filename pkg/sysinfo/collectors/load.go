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

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

var _ sysinfo.Collector = (*LoadCollector)(nil)

// LoadCollector reads system load averages from /proc/loadavg
type LoadCollector struct {
	sysinfo.BaseCollector
	loadavgPath string
}

func NewLoadCollector(logger logr.Logger, config sysinfo.CollectionConfig, _ ...Option) (*LoadCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	return &LoadCollector{
		BaseCollector: sysinfo.NewBaseCollector(sysinfo.StageLoad, "System Load Collector", logger, config),
		loadavgPath:   filepath.Join(config.HostProcPath, "loadavg"),
	}, nil
}

func (c *LoadCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	// Format: 0.00 0.01 0.05 1/234 5678
	// Where: 1min 5min 15min running/total lastpid
	data, err := os.ReadFile(c.loadavgPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", c.loadavgPath, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return fmt.Errorf("unexpected format in %s: %q: %w", c.loadavgPath, string(data), sysinfo.ErrMalformed)
	}

	var load [3]float64
	for i, name := range [...]string{"1min", "5min", "15min"} {
		if load[i], err = strconv.ParseFloat(fields[i], 64); err != nil {
			return fmt.Errorf("failed to parse %s load: %w", name, err)
		}
	}

	// The scheduler counts and last pid are not part of the snapshot.
	if len(fields) >= 5 {
		running, total, _ := strings.Cut(fields[3], "/")
		c.Logger().V(2).Info("Scheduler entities", "running", running, "total", total, "lastPID", fields[4])
	}

	snap.Load = sysinfo.LoadAverage{Load1: load[0], Load5: load[1], Load15: load[2]}
	return nil
}
