// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package metrics_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antimetal/sysinfo/internal/metrics"
	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

func testSnapshot() *sysinfo.Snapshot {
	return &sysinfo.Snapshot{
		BootTime: time.Unix(1700000000, 0),
		Hostname: "web-01",
		Load:     sysinfo.LoadAverage{Load1: 0.5, Load5: 0.25, Load15: 0.125},
		CPU:      sysinfo.CPUInfo{Architecture: "x86_64", Cores: 8, PhysicalCores: 4, Utilization: 12},
		Memory:   sysinfo.MemoryInfo{TotalRam: 1024, FreeRam: 256, UsedRam: 768},
		Kernel:   sysinfo.KernelInfo{Release: "6.8.0"},
		Distro:   sysinfo.DistroInfo{ID: "debian", Release: "12"},
		Mounts: []sysinfo.MountEntry{
			{Device: "/dev/sda1", MountPoint: "/", FSType: "ext2/ext3", SpaceTotal: 1000, SpaceFree: 400, SpaceUsed: 600},
			{Device: "none", MountPoint: "/weird", RawFSType: "weirdfs"},
		},
		Interfaces: []sysinfo.InterfaceEntry{
			{Name: "eth0", TxBytes: 10, RxBytes: 20, Up: true},
			{Name: "lo", Loopback: true, Up: true},
		},
	}
}

func TestExporter_GaugeCount(t *testing.T) {
	e := metrics.NewExporter(logr.Discard())
	e.Observe(testSnapshot())

	// 20 host gauges, 5 per mount and 3 per interface.
	count, err := testutil.GatherAndCount(e.Registry())
	require.NoError(t, err)
	assert.Equal(t, 20+2*5+2*3, count)

	count, err = testutil.GatherAndCount(e.Registry(), "sysinfo_filesystem_size_bytes")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExporter_Values(t *testing.T) {
	e := metrics.NewExporter(logr.Discard())
	e.Observe(testSnapshot())

	expected := `
# HELP sysinfo_load_average Run queue load average.
# TYPE sysinfo_load_average gauge
sysinfo_load_average{window="15m"} 0.125
sysinfo_load_average{window="1m"} 0.5
sysinfo_load_average{window="5m"} 0.25
# HELP sysinfo_network_up Whether the interface is up and running.
# TYPE sysinfo_network_up gauge
sysinfo_network_up{interface="eth0"} 1
sysinfo_network_up{interface="lo"} 1
# HELP sysinfo_filesystem_used_bytes Filesystem space in use in bytes.
# TYPE sysinfo_filesystem_used_bytes gauge
sysinfo_filesystem_used_bytes{device="/dev/sda1",fstype="ext2/ext3",mountpoint="/"} 600
sysinfo_filesystem_used_bytes{device="none",fstype="weirdfs",mountpoint="/weird"} 0
# HELP sysinfo_info Host identity; the value is always 1.
# TYPE sysinfo_info gauge
sysinfo_info{architecture="x86_64",distro_id="debian",distro_release="12",hostname="web-01",kernel_release="6.8.0"} 1
# HELP sysinfo_boot_time_seconds Boot time in seconds since the epoch.
# TYPE sysinfo_boot_time_seconds gauge
sysinfo_boot_time_seconds 1.7e+09
`
	require.NoError(t, testutil.GatherAndCompare(e.Registry(), strings.NewReader(expected),
		"sysinfo_load_average",
		"sysinfo_network_up",
		"sysinfo_filesystem_used_bytes",
		"sysinfo_info",
		"sysinfo_boot_time_seconds",
	))
}

func TestExporter_ObserveReplacesLabels(t *testing.T) {
	e := metrics.NewExporter(logr.Discard())
	e.Observe(testSnapshot())

	next := testSnapshot()
	next.Interfaces = next.Interfaces[:1]
	next.Mounts = nil
	e.Observe(next)

	count, err := testutil.GatherAndCount(e.Registry(), "sysinfo_network_up", "sysinfo_filesystem_size_bytes")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExporter_WriteText(t *testing.T) {
	e := metrics.NewExporter(logr.Discard())
	e.Observe(testSnapshot())

	var buf bytes.Buffer
	require.NoError(t, e.WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "# TYPE sysinfo_cpu_cores gauge")
	assert.Contains(t, out, `sysinfo_cpu_cores{kind="logical"} 8`)
	assert.Contains(t, out, `sysinfo_memory_bytes{kind="used"} 768`)
	assert.Contains(t, out, "sysinfo_cpu_utilization_percent 12")
}

func TestExporter_WriteTextfile(t *testing.T) {
	e := metrics.NewExporter(logr.Discard())
	e.Observe(testSnapshot())

	path := filepath.Join(t.TempDir(), "sysinfo.prom")
	require.NoError(t, e.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `sysinfo_network_transmit_bytes{interface="eth0"} 10`)
}

func TestExporter_WriteTextfileBadDir(t *testing.T) {
	e := metrics.NewExporter(logr.Discard())
	e.Observe(testSnapshot())

	err := e.WriteTextfile(filepath.Join(t.TempDir(), "missing", "sysinfo.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write textfile")
}
