// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package output writes a snapshot in one of the supported formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-logr/logr"
	"gopkg.in/yaml.v3"

	"github.com/antimetal/sysinfo/internal/banner"
	"github.com/antimetal/sysinfo/internal/metrics"
	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

// Format represents the output format type
type Format string

const (
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatBanner     Format = "banner"
	FormatPrometheus Format = "prometheus"
)

func (f Format) IsUnknown() bool {
	return !slices.Contains(SupportedFormats(), string(f))
}

// SupportedFormats returns the names accepted by ParseFormat.
func SupportedFormats() []string {
	return []string{
		string(FormatJSON),
		string(FormatYAML),
		string(FormatBanner),
		string(FormatPrometheus),
	}
}

func ParseFormat(s string) (Format, error) {
	f := Format(s)
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format %q, expected one of %v", s, SupportedFormats())
	}
	return f, nil
}

// Writer serializes snapshots to an io.Writer.
type Writer struct {
	format Format
	output io.Writer
	logger logr.Logger

	// Banner is used by FormatBanner.
	Banner banner.Options
}

// NewWriter creates a Writer. A nil output means os.Stdout.
func NewWriter(logger logr.Logger, format Format, output io.Writer) (*Writer, error) {
	if format.IsUnknown() {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if output == nil {
		output = os.Stdout
	}
	return &Writer{
		format: format,
		output: output,
		logger: logger.WithName("output"),
	}, nil
}

func (w *Writer) Format() Format {
	return w.format
}

// Serialize writes snap in the configured format.
func (w *Writer) Serialize(snap *sysinfo.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if snap.Released() {
		return sysinfo.ErrReleased
	}

	switch w.format {
	case FormatJSON:
		return w.serializeJSON(snap)
	case FormatYAML:
		return w.serializeYAML(snap)
	case FormatBanner:
		return banner.Render(w.output, snap, w.Banner)
	case FormatPrometheus:
		e := metrics.NewExporter(w.logger)
		e.Observe(snap)
		return e.WriteText(w.output)
	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}

func (w *Writer) serializeJSON(snap *sysinfo.Snapshot) error {
	encoder := json.NewEncoder(w.output)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to serialize to JSON: %w", err)
	}
	return nil
}

func (w *Writer) serializeYAML(snap *sysinfo.Snapshot) error {
	encoder := yaml.NewEncoder(w.output)
	encoder.SetIndent(2)
	if err := encoder.Encode(snap); err != nil {
		return fmt.Errorf("failed to serialize to YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("failed to serialize to YAML: %w", err)
	}
	return nil
}
