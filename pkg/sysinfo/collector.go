// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package sysinfo

import (
	"context"

	"github.com/go-logr/logr"
)

// Collector fills one field group of a snapshot from a single source.
type Collector interface {
	Stage() Stage
	Name() string

	// Collect reads the source and writes the result into snap. On error the
	// field group may be partially written.
	Collect(ctx context.Context, snap *Snapshot) error
}

type BaseCollector struct {
	stage  Stage
	name   string
	logger logr.Logger
	Config CollectionConfig
}

func NewBaseCollector(stage Stage, name string, logger logr.Logger, config CollectionConfig) BaseCollector {
	return BaseCollector{
		stage:  stage,
		name:   name,
		logger: logger.WithName(string(stage)),
		Config: config,
	}
}

func (b *BaseCollector) Stage() Stage {
	return b.stage
}

func (b *BaseCollector) Name() string {
	return b.name
}

func (b *BaseCollector) Logger() logr.Logger {
	return b.logger
}
