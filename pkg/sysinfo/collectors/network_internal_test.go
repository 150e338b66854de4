// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"net"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

const procNetDev = `Inter-|   Receive                                                |  Transmit
 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
    lo: 1234567    1234    0    0    0     0          0         0  1234567    1234    0    0    0     0       0          0
  eth0: 9876543   98765    1    2    0     0          0        10  5432100   54321    0    0    0     0       0          0
 short: 1 2 3
`

func newTestNetworkCollector(t *testing.T) *NetworkCollector {
	t.Helper()
	config := sysinfo.DefaultCollectionConfig()
	config.HostProcPath = t.TempDir()
	c, err := NewNetworkCollector(logr.Discard(), config)
	require.NoError(t, err)
	return c
}

func TestReadNetDev(t *testing.T) {
	c := newTestNetworkCollector(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(c.procNetDevPath), 0755))
	require.NoError(t, os.WriteFile(c.procNetDevPath, []byte(procNetDev), 0644))

	stats, err := c.readNetDev()
	require.NoError(t, err)
	assert.Equal(t, map[string]LinkStats{
		"lo":   {TxBytes: 1234567, RxBytes: 1234567},
		"eth0": {TxBytes: 5432100, RxBytes: 9876543},
	}, stats)
}

func TestReadNetDev_Missing(t *testing.T) {
	c := newTestNetworkCollector(t)
	_, err := c.readNetDev()
	assert.Error(t, err)
}

func TestIfaceFlags(t *testing.T) {
	tests := []struct {
		name string
		in   net.Flags
		want uint32
	}{
		{name: "none", in: 0, want: 0},
		{name: "up running", in: net.FlagUp | net.FlagRunning, want: unix.IFF_UP | unix.IFF_RUNNING},
		{name: "loopback", in: net.FlagUp | net.FlagLoopback | net.FlagRunning, want: unix.IFF_UP | unix.IFF_LOOPBACK | unix.IFF_RUNNING},
		{name: "broadcast multicast", in: net.FlagBroadcast | net.FlagMulticast, want: unix.IFF_BROADCAST | unix.IFF_MULTICAST},
		{name: "point to point", in: net.FlagPointToPoint, want: unix.IFF_POINTOPOINT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ifaceFlags(tt.in))
		})
	}
}

func TestLiveInterfaces_IncludesLoopback(t *testing.T) {
	if _, err := os.Stat("/proc/net/dev"); err != nil {
		t.Skip("Test requires /proc/net/dev")
	}

	config := sysinfo.DefaultCollectionConfig()
	c, err := NewNetworkCollector(logr.Discard(), config)
	require.NoError(t, err)

	records, err := c.liveInterfaces()
	require.NoError(t, err)

	entries := mergeInterfaces(records)
	hasLoopback := slices.ContainsFunc(entries, func(e sysinfo.InterfaceEntry) bool { return e.Loopback })
	if !hasLoopback {
		t.Skip("No loopback interface in this network namespace")
	}
	assert.True(t, slices.IsSortedFunc(entries, func(a, b sysinfo.InterfaceEntry) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	}))
}

func TestUnescapeOctal(t *testing.T) {
	tests := map[string]string{
		`/mnt/plain`:          "/mnt/plain",
		`/mnt/my\040disk`:     "/mnt/my disk",
		`/mnt/tab\011here`:    "/mnt/tab\there",
		`/mnt/back\134slash`:  `/mnt/back\slash`,
		`/mnt/trailing\04`:    `/mnt/trailing\04`,
		`/mnt/not\999octal`:   `/mnt/not\999octal`,
		`/mnt/two\040and\040`: "/mnt/two and ",
	}
	for in, want := range tests {
		assert.Equal(t, want, unescapeOctal(in), in)
	}
}

func TestParseReleaseFile(t *testing.T) {
	info := parseReleaseFile("os-release", []byte("NAME=Debian\nID=debian\nVERSION_ID=\"12\"\n"))
	assert.Equal(t, sysinfo.DistroInfo{ID: "debian", Description: "Debian", Release: "12"}, info)

	info = parseReleaseFile("gentoo-release", []byte("Gentoo Base System release 2.14\n"))
	assert.Equal(t, sysinfo.DistroInfo{Description: "Gentoo Base System release 2.14"}, info)
}
