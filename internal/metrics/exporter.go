// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package metrics exposes a snapshot as Prometheus gauges, either in the
// text exposition format or as a node-exporter textfile.
package metrics

import (
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

const namespace = "sysinfo"

// Exporter holds one gauge set on a private registry. Observe replaces
// every value, so an Exporter can be reused across snapshots.
type Exporter struct {
	logger   logr.Logger
	registry *prometheus.Registry

	info          *prometheus.GaugeVec
	bootTime      prometheus.Gauge
	load          *prometheus.GaugeVec
	processes     *prometheus.GaugeVec
	cpuCores      *prometheus.GaugeVec
	cpuSpeed      prometheus.Gauge
	cpuUtil       prometheus.Gauge
	memory        *prometheus.GaugeVec
	swap          *prometheus.GaugeVec
	kernelTainted prometheus.Gauge

	fsSize      *prometheus.GaugeVec
	fsFree      *prometheus.GaugeVec
	fsUsed      *prometheus.GaugeVec
	fsFiles     *prometheus.GaugeVec
	fsFilesFree *prometheus.GaugeVec
	netTransmit *prometheus.GaugeVec
	netReceive  *prometheus.GaugeVec
	netUp       *prometheus.GaugeVec
}

var (
	fsLabels  = []string{"mountpoint", "device", "fstype"}
	netLabels = []string{"interface"}
)

func NewExporter(logger logr.Logger) *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Exporter{
		logger:   logger.WithName("metrics"),
		registry: reg,

		info: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Host identity; the value is always 1.",
		}, []string{"hostname", "architecture", "kernel_release", "distro_id", "distro_release"}),
		bootTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "boot_time_seconds",
			Help:      "Boot time in seconds since the epoch.",
		}),
		load: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "load_average",
			Help:      "Run queue load average.",
		}, []string{"window"}),
		processes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "processes",
			Help:      "Process counters from /proc/stat. total counts forks since boot.",
		}, []string{"state"}),
		cpuCores: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cpu",
			Name:      "cores",
			Help:      "Number of processor cores.",
		}, []string{"kind"}),
		cpuSpeed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cpu",
			Name:      "speed_mhz",
			Help:      "Reported clock speed of the first processor.",
		}),
		cpuUtil: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cpu",
			Name:      "utilization_percent",
			Help:      "Busy time over the sample interval.",
		}),
		memory: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "memory",
			Name:      "bytes",
			Help:      "Physical memory by kind.",
		}, []string{"kind"}),
		swap: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "swap",
			Name:      "bytes",
			Help:      "Swap space by kind.",
		}, []string{"kind"}),
		kernelTainted: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "tainted",
			Help:      "Kernel taint bitmask.",
		}),

		fsSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "filesystem",
			Name:      "size_bytes",
			Help:      "Filesystem size in bytes.",
		}, fsLabels),
		fsFree: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "filesystem",
			Name:      "avail_bytes",
			Help:      "Filesystem space available to non-root users in bytes.",
		}, fsLabels),
		fsUsed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "filesystem",
			Name:      "used_bytes",
			Help:      "Filesystem space in use in bytes.",
		}, fsLabels),
		fsFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "filesystem",
			Name:      "files",
			Help:      "Filesystem total inodes.",
		}, fsLabels),
		fsFilesFree: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "filesystem",
			Name:      "files_free",
			Help:      "Filesystem free inodes.",
		}, fsLabels),

		netTransmit: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "transmit_bytes",
			Help:      "Bytes transmitted by the interface.",
		}, netLabels),
		netReceive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "receive_bytes",
			Help:      "Bytes received by the interface.",
		}, netLabels),
		netUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "network",
			Name:      "up",
			Help:      "Whether the interface is up and running.",
		}, netLabels),
	}
}

// Registry returns the registry holding the exporter's gauges.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Observe sets every gauge from snap.
func (e *Exporter) Observe(snap *sysinfo.Snapshot) {
	for _, vec := range []*prometheus.GaugeVec{
		e.info, e.load, e.processes, e.cpuCores, e.memory, e.swap,
		e.fsSize, e.fsFree, e.fsUsed, e.fsFiles, e.fsFilesFree,
		e.netTransmit, e.netReceive, e.netUp,
	} {
		vec.Reset()
	}

	e.info.WithLabelValues(
		snap.Hostname,
		snap.CPU.Architecture,
		snap.Kernel.Release,
		snap.Distro.ID,
		snap.Distro.Release,
	).Set(1)

	var boot float64
	if !snap.BootTime.IsZero() {
		boot = float64(snap.BootTime.Unix())
	}
	e.bootTime.Set(boot)

	e.load.WithLabelValues("1m").Set(snap.Load.Load1)
	e.load.WithLabelValues("5m").Set(snap.Load.Load5)
	e.load.WithLabelValues("15m").Set(snap.Load.Load15)

	e.processes.WithLabelValues("total").Set(float64(snap.Processes.Total))
	e.processes.WithLabelValues("running").Set(float64(snap.Processes.Running))
	e.processes.WithLabelValues("blocked").Set(float64(snap.Processes.Blocked))

	e.cpuCores.WithLabelValues("logical").Set(float64(snap.CPU.Cores))
	e.cpuCores.WithLabelValues("physical").Set(float64(snap.CPU.PhysicalCores))
	e.cpuSpeed.Set(snap.CPU.CurrentSpeed)
	e.cpuUtil.Set(float64(snap.CPU.Utilization))

	e.memory.WithLabelValues("total").Set(float64(snap.Memory.TotalRam))
	e.memory.WithLabelValues("free").Set(float64(snap.Memory.FreeRam))
	e.memory.WithLabelValues("used").Set(float64(snap.Memory.UsedRam))
	e.memory.WithLabelValues("available").Set(float64(snap.Memory.AvailableRam))
	e.swap.WithLabelValues("total").Set(float64(snap.Memory.TotalSwap))
	e.swap.WithLabelValues("free").Set(float64(snap.Memory.FreeSwap))
	e.swap.WithLabelValues("used").Set(float64(snap.Memory.UsedSwap))

	e.kernelTainted.Set(float64(snap.Kernel.Tainted))

	for m := range snap.AllMounts() {
		fstype := m.FSType
		if fstype == "" {
			fstype = m.RawFSType
		}
		labels := []string{m.MountPoint, m.Device, fstype}
		e.fsSize.WithLabelValues(labels...).Set(float64(m.SpaceTotal))
		e.fsFree.WithLabelValues(labels...).Set(float64(m.SpaceFree))
		e.fsUsed.WithLabelValues(labels...).Set(float64(m.SpaceUsed))
		e.fsFiles.WithLabelValues(labels...).Set(float64(m.Inodes))
		e.fsFilesFree.WithLabelValues(labels...).Set(float64(m.InodesFree))
	}

	for iface := range snap.AllInterfaces() {
		e.netTransmit.WithLabelValues(iface.Name).Set(float64(iface.TxBytes))
		e.netReceive.WithLabelValues(iface.Name).Set(float64(iface.RxBytes))
		up := 0.0
		if iface.Up {
			up = 1
		}
		e.netUp.WithLabelValues(iface.Name).Set(up)
	}

	e.logger.V(1).Info("Observed snapshot",
		"mounts", len(snap.Mounts), "interfaces", len(snap.Interfaces))
}

// WriteText writes the gauges to w in the Prometheus text format.
func (e *Exporter) WriteText(w io.Writer) error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile atomically writes the gauges to path for the node-exporter
// textfile collector.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("failed to write textfile %s: %w", path, err)
	}
	return nil
}
