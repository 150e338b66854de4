// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package snapshot assembles a complete host snapshot by running every
// collector in a fixed order.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
	"github.com/antimetal/sysinfo/pkg/sysinfo/collectors"
)

// StageError reports the mandatory stage that aborted a collection.
type StageError struct {
	Stage sysinfo.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type stage struct {
	collector sysinfo.Collector
	optional  bool
}

// Collector runs the snapshot stages.
//
// Stages run sequentially in this order:
//
//	cpu_info, load, distro, disk, memory, proc_stat, kernel, network
//
// distro is optional: its failure is logged and leaves the distribution
// fields empty. Any other failure aborts the collection, releases the
// partial snapshot and is returned as a *StageError.
//
// A Collector holds no per-snapshot state and may be reused. Concurrent
// calls to Collect are safe; each returns its own snapshot.
type Collector struct {
	logger logr.Logger
	stages []stage
	now    func() time.Time

	sources []collectors.Option
}

// Option configures a Collector.
type Option func(*Collector)

// WithClock replaces the source of Snapshot.CurrentTime.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithSources forwards system call replacements to every stage
// constructor; each stage uses the ones it reads.
func WithSources(opts ...collectors.Option) Option {
	return func(c *Collector) { c.sources = append(c.sources, opts...) }
}

// NewCollector validates config and builds the stage table.
func NewCollector(logger logr.Logger, config sysinfo.CollectionConfig, opts ...Option) (*Collector, error) {
	config.ApplyDefaults()
	if err := config.Validate(sysinfo.ValidateOptions{
		RequireHostProcPath: true,
		RequireHostEtcPath:  true,
	}); err != nil {
		return nil, fmt.Errorf("invalid collection config: %w", err)
	}

	c := &Collector{
		logger: logger.WithName("snapshot"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	sources := c.sources

	cpuInfo, err := collectors.NewCPUInfoCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cpu info collector: %w", err)
	}
	load, err := collectors.NewLoadCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create load collector: %w", err)
	}
	distro, err := collectors.NewDistroCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create distro collector: %w", err)
	}
	disk, err := collectors.NewDiskCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk collector: %w", err)
	}
	memory, err := collectors.NewMemoryCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory collector: %w", err)
	}
	procStat, err := collectors.NewProcStatCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create proc stat collector: %w", err)
	}
	kernel, err := collectors.NewKernelCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kernel collector: %w", err)
	}
	network, err := collectors.NewNetworkCollector(c.logger, config, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to create network collector: %w", err)
	}

	c.stages = []stage{
		{collector: cpuInfo},
		{collector: load},
		{collector: distro, optional: true},
		{collector: disk},
		{collector: memory},
		{collector: procStat},
		{collector: kernel},
		{collector: network},
	}
	return c, nil
}

// Stages lists the stage names in execution order.
func (c *Collector) Stages() []sysinfo.Stage {
	out := make([]sysinfo.Stage, len(c.stages))
	for i, s := range c.stages {
		out[i] = s.collector.Stage()
	}
	return out
}

// Collect captures one snapshot. The context is only checked before the
// first stage; a collection in progress runs to completion.
//
// The caller owns the returned snapshot and must release it with Release.
func (c *Collector) Collect(ctx context.Context) (*sysinfo.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	began := time.Now()
	snap := &sysinfo.Snapshot{CurrentTime: c.now()}

	for _, s := range c.stages {
		stageStart := time.Now()
		err := s.collector.Collect(ctx, snap)
		if err == nil {
			c.logger.V(2).Info("Stage completed",
				"stage", s.collector.Stage(), "duration", time.Since(stageStart))
			continue
		}

		if s.optional {
			c.logger.V(1).Info("Optional stage failed, continuing",
				"stage", s.collector.Stage(), "error", err)
			continue
		}

		if _, relErr := snap.Release(); relErr != nil {
			c.logger.V(1).Info("Failed to release partial snapshot", "error", relErr)
		}
		return nil, &StageError{Stage: s.collector.Stage(), Err: err}
	}

	c.logger.V(1).Info("Snapshot collected",
		"mounts", len(snap.Mounts),
		"interfaces", len(snap.Interfaces),
		"duration", time.Since(began))
	return snap, nil
}

// Release frees a snapshot returned by Collect and reports how many mount
// and interface entries it held. Releasing the same snapshot twice returns
// sysinfo.ErrReleased.
func Release(s *sysinfo.Snapshot) (int, error) {
	return s.Release()
}
