// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package snapshot_test

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/antimetal/sysinfo/pkg/snapshot"
	"github.com/antimetal/sysinfo/pkg/sysinfo"
	"github.com/antimetal/sysinfo/pkg/sysinfo/collectors"
	"github.com/antimetal/sysinfo/pkg/testutil"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

const (
	fixtureCPUInfo = `processor	: 0
model name	: Intel(R) Xeon(R) CPU E5-2680 v4 @ 2.40GHz
cpu MHz		: 2400.000
cpu cores	: 2

processor	: 1
model name	: Intel(R) Xeon(R) CPU E5-2680 v4 @ 2.40GHz
cpu MHz		: 2401.000
cpu cores	: 2
`
	fixtureMeminfo = `MemTotal:       16000000 kB
MemFree:         8000000 kB
MemAvailable:   12000000 kB
SwapTotal:       2000000 kB
SwapFree:        2000000 kB
`
	fixtureStat = `cpu  1000 0 1000 2000 0 0 0 0 0 0
btime 1700000000
processes 1234
procs_running 2
procs_blocked 0
`
	fixtureMountinfo = "22 1 8:1 / / rw,relatime shared:1 - ext4 /dev/sda1 rw\n"
	fixtureOSRelease = `NAME="Ubuntu"
ID=ubuntu
VERSION_ID="24.04"
PRETTY_NAME="Ubuntu 24.04.1 LTS"
`
)

type fixture struct {
	config sysinfo.CollectionConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	config := sysinfo.DefaultCollectionConfig()
	config.HostProcPath = t.TempDir()
	config.HostEtcPath = t.TempDir()
	config.HostSysPath = t.TempDir()

	f := &fixture{config: config}
	f.proc(t, "cpuinfo", fixtureCPUInfo)
	f.proc(t, "loadavg", "0.50 0.30 0.10 1/123 4567\n")
	f.proc(t, "meminfo", fixtureMeminfo)
	f.proc(t, "stat", fixtureStat)
	f.proc(t, "self/mountinfo", fixtureMountinfo)
	f.proc(t, "sys/kernel/tainted", "0\n")
	f.etc(t, "os-release", fixtureOSRelease)
	return f
}

func (f *fixture) proc(t *testing.T, name, content string) {
	testutil.WriteFile(t, f.config.HostProcPath, name, content)
}

func (f *fixture) etc(t *testing.T, name, content string) {
	testutil.WriteFile(t, f.config.HostEtcPath, name, content)
}

func (f *fixture) removeProc(t *testing.T, name string) {
	require.NoError(t, os.Remove(filepath.Join(f.config.HostProcPath, name)))
}

func fakeSources() []collectors.Option {
	return []collectors.Option{
		collectors.WithStatFS(func(path string) (collectors.FSStat, error) {
			if path != "/" {
				return collectors.FSStat{}, errors.New("unexpected path " + path)
			}
			return collectors.FSStat{
				Magic:       0xEF53,
				BlockSize:   1000,
				Blocks:      100_000_000,
				BlocksFree:  40_000_000,
				BlocksAvail: 40_000_000,
			}, nil
		}),
		collectors.WithUname(func() (collectors.Utsname, error) {
			return collectors.Utsname{
				Sysname: "Linux",
				Release: "6.8.0-45-generic",
				Version: "#45-Ubuntu SMP",
				Machine: "x86_64",
			}, nil
		}),
		collectors.WithHostname(func() (string, error) { return "web-01", nil }),
		collectors.WithInterfaceSource(func() ([]collectors.AddrRecord, error) {
			return []collectors.AddrRecord{
				{Name: "lo", Family: collectors.FamilyInet, Addr: net.ParseIP("127.0.0.1"),
					Flags: unix.IFF_UP | unix.IFF_RUNNING | unix.IFF_LOOPBACK},
				{Name: "eth0", Family: collectors.FamilyInet, Addr: net.ParseIP("192.168.1.10"),
					Flags: unix.IFF_UP | unix.IFF_RUNNING},
				{Name: "eth0", Family: collectors.FamilyLink, Flags: unix.IFF_UP | unix.IFF_RUNNING,
					Stats: &collectors.LinkStats{TxBytes: 1000, RxBytes: 2000}},
			}, nil
		}),
		collectors.WithSleep(func(time.Duration) {}),
	}
}

func newCollector(t *testing.T, f *fixture) *snapshot.Collector {
	t.Helper()
	c, err := snapshot.NewCollector(logr.Discard(), f.config,
		snapshot.WithSources(fakeSources()...),
		snapshot.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return c
}

func TestCollector_StageOrder(t *testing.T) {
	c := newCollector(t, newFixture(t))
	assert.Equal(t, []sysinfo.Stage{
		sysinfo.StageCPUInfo,
		sysinfo.StageLoad,
		sysinfo.StageDistro,
		sysinfo.StageDisk,
		sysinfo.StageMemory,
		sysinfo.StageProcStat,
		sysinfo.StageKernel,
		sysinfo.StageNetwork,
	}, c.Stages())
}

func TestCollector_Collect(t *testing.T) {
	c := newCollector(t, newFixture(t))

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)

	assert.Equal(t, fixedNow, snap.CurrentTime)
	assert.Equal(t, time.Unix(1700000000, 0), snap.BootTime)
	assert.Equal(t, "web-01", snap.Hostname)
	assert.Zero(t, snap.Users)

	assert.Equal(t, sysinfo.LoadAverage{Load1: 0.50, Load5: 0.30, Load15: 0.10}, snap.Load)
	assert.Equal(t, sysinfo.ProcessStats{Total: 1234, Running: 2}, snap.Processes)

	assert.Equal(t, "x86_64", snap.CPU.Architecture)
	assert.Equal(t, "Intel(R) Xeon(R) CPU E5-2680 v4 @ 2.40GHz", snap.CPU.Model)
	assert.Equal(t, 2, snap.CPU.Cores)
	assert.Equal(t, 2400.0, snap.CPU.CurrentSpeed)
	// Both samples are identical, so no time elapsed.
	assert.Zero(t, snap.CPU.Utilization)

	assert.Equal(t, uint64(16_000_000*1024), snap.Memory.TotalRam)
	assert.Equal(t, uint64(8_000_000*1024), snap.Memory.FreeRam)
	assert.Equal(t, uint64(8_000_000*1024), snap.Memory.UsedRam)
	assert.Equal(t, uint64(2_000_000*1024), snap.Memory.TotalSwap)
	assert.Zero(t, snap.Memory.UsedSwap)

	assert.Equal(t, "Linux", snap.Kernel.Type)
	assert.Equal(t, "6.8.0-45-generic", snap.Kernel.Release)
	require.NotNil(t, snap.Kernel.Parsed)
	assert.Equal(t, 6, snap.Kernel.Parsed.Major)
	assert.False(t, snap.Kernel.IsTainted())

	assert.Equal(t, sysinfo.DistroInfo{
		ID:          "ubuntu",
		Description: "Ubuntu 24.04.1 LTS",
		Release:     "24.04",
		Version:     collectors.DefaultDistroVersion,
	}, snap.Distro)

	require.Len(t, snap.Mounts, 1)
	root := snap.Mounts[0]
	assert.Equal(t, "/", root.MountPoint)
	assert.Equal(t, "/dev/sda1", root.Device)
	assert.Equal(t, "ext2/ext3", root.FSType)
	assert.True(t, root.IsLocal)
	assert.Equal(t, uint64(100_000_000_000), root.SpaceTotal)
	assert.Equal(t, uint64(40_000_000_000), root.SpaceFree)
	assert.Equal(t, uint64(60_000_000_000), root.SpaceUsed)

	require.Len(t, snap.Interfaces, 2)
	assert.Equal(t, "eth0", snap.Interfaces[0].Name)
	assert.Equal(t, "192.168.1.10", snap.Interfaces[0].IPv4)
	assert.Equal(t, uint64(1000), snap.Interfaces[0].TxBytes)
	assert.Equal(t, uint64(2000), snap.Interfaces[0].RxBytes)
	assert.True(t, snap.Interfaces[0].Up)
	assert.Equal(t, "lo", snap.Interfaces[1].Name)
	assert.True(t, snap.Interfaces[1].Loopback)

	n, err := snapshot.Release(snap)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, snap.Released())

	_, err = snapshot.Release(snap)
	assert.ErrorIs(t, err, sysinfo.ErrReleased)
}

func TestCollector_MandatoryStageFailure(t *testing.T) {
	tests := []struct {
		name      string
		remove    string
		wantStage sysinfo.Stage
	}{
		{name: "cpuinfo missing", remove: "cpuinfo", wantStage: sysinfo.StageCPUInfo},
		{name: "loadavg missing", remove: "loadavg", wantStage: sysinfo.StageLoad},
		{name: "mount table missing", remove: "self/mountinfo", wantStage: sysinfo.StageDisk},
		{name: "meminfo missing", remove: "meminfo", wantStage: sysinfo.StageMemory},
		{name: "stat missing", remove: "stat", wantStage: sysinfo.StageProcStat},
		{name: "tainted missing", remove: "sys/kernel/tainted", wantStage: sysinfo.StageKernel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.removeProc(t, tt.remove)
			c := newCollector(t, f)

			snap, err := c.Collect(context.Background())
			require.Error(t, err)
			assert.Nil(t, snap)

			var stageErr *snapshot.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			assert.ErrorIs(t, err, fs.ErrNotExist)
		})
	}
}

func TestCollector_NetworkFailure(t *testing.T) {
	f := newFixture(t)
	sources := append(fakeSources(), collectors.WithInterfaceSource(func() ([]collectors.AddrRecord, error) {
		return nil, errors.New("no interfaces")
	}))
	c, err := snapshot.NewCollector(logr.Discard(), f.config, snapshot.WithSources(sources...))
	require.NoError(t, err)

	snap, err := c.Collect(context.Background())
	assert.Nil(t, snap)

	var stageErr *snapshot.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, sysinfo.StageNetwork, stageErr.Stage)
	assert.Contains(t, err.Error(), "stage network failed")
}

func TestCollector_NoCPULine(t *testing.T) {
	f := newFixture(t)
	f.proc(t, "stat", "btime 1700000000\nprocesses 10\n")
	c := newCollector(t, f)

	snap, err := c.Collect(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, sysinfo.ErrNoCPULine)
}

func TestCollector_DistroFailureIsOptional(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.config.HostEtcPath, "os-release")))
	c := newCollector(t, f)

	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = snapshot.Release(snap) })

	assert.Equal(t, sysinfo.DistroInfo{}, snap.Distro)
	assert.Equal(t, sysinfo.Unknown, sysinfo.OrUnknown(snap.Distro.Description))
	assert.Equal(t, "web-01", snap.Hostname)
	assert.Len(t, snap.Interfaces, 2)
}

func TestCollector_CanceledContext(t *testing.T) {
	c := newCollector(t, newFixture(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := c.Collect(ctx)
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollector_IndependentSnapshots(t *testing.T) {
	c := newCollector(t, newFixture(t))

	var wg sync.WaitGroup
	snaps := make([]*sysinfo.Snapshot, 4)
	errs := make([]error, len(snaps))
	for i := range snaps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snaps[i], errs[i] = c.Collect(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range snaps {
		require.NoError(t, errs[i])
		for j := i + 1; j < len(snaps); j++ {
			assert.NotSame(t, snaps[i], snaps[j])
		}
	}

	// Releasing one snapshot leaves the others intact.
	n, err := snapshot.Release(snaps[0])
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, s := range snaps[1:] {
		assert.Len(t, s.Mounts, 1)
		assert.Len(t, s.Interfaces, 2)
		_, err := snapshot.Release(s)
		assert.NoError(t, err)
	}
}

func TestNewCollector_InvalidConfig(t *testing.T) {
	config := sysinfo.DefaultCollectionConfig()
	config.HostProcPath = "relative/proc"

	_, err := snapshot.NewCollector(logr.Discard(), config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid collection config")
}
