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
	"net"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"golang.org/x/sys/unix"

	"github.com/antimetal/sysinfo/pkg/sysinfo"
)

// AddrFamily classifies an address record.
type AddrFamily uint8

const (
	FamilyOther AddrFamily = iota
	FamilyInet
	FamilyInet6
	// FamilyLink records carry the link-layer address and byte counters.
	FamilyLink
)

// iffLowerUp (IFF_LOWER_UP) reflects carrier state, which is reported
// inconsistently by virtual drivers. It is masked out before flag tests.
const iffLowerUp = 1 << 16

// LinkStats are the byte counters of an interface.
type LinkStats struct {
	TxBytes uint64
	RxBytes uint64
}

// AddrRecord is one address of one interface, as returned by getifaddrs(3).
type AddrRecord struct {
	Name         string
	Family       AddrFamily
	Addr         net.IP
	HardwareAddr net.HardwareAddr
	// Flags holds the raw IFF_* bits of the interface.
	Flags uint32
	// Stats is only set on FamilyLink records.
	Stats *LinkStats
}

var _ sysinfo.Collector = (*NetworkCollector)(nil)

// NetworkCollector enumerates network interfaces.
//
// The address records of every interface are merged into one entry per
// interface name. Within an interface the last record of each family wins.
// Entries are returned sorted by name; loopback interfaces are included.
//
// The live source combines net.Interfaces (names, flags, addresses) with the
// byte counters from /proc/net/dev:
//
//	Inter-|   Receive                                                |  Transmit
//	 face |bytes    packets errs drop fifo frame compressed multicast|bytes    packets errs drop fifo colls carrier compressed
//	  eth0: 1234567   12345    0    0    0     0          0         0  7654321   54321    0    0    0     0       0          0
//
// Failing to enumerate interfaces is an error; a missing /proc/net/dev only
// leaves the counters at zero.
type NetworkCollector struct {
	sysinfo.BaseCollector
	procNetDevPath string
	interfaces     InterfaceSource
}

func NewNetworkCollector(logger logr.Logger, config sysinfo.CollectionConfig, opts ...Option) (*NetworkCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	c := &NetworkCollector{
		BaseCollector:  sysinfo.NewBaseCollector(sysinfo.StageNetwork, "Network Interface Collector", logger, config),
		procNetDevPath: filepath.Join(config.HostProcPath, "net", "dev"),
	}
	c.interfaces = newSources(opts).interfaces
	if c.interfaces == nil {
		c.interfaces = c.liveInterfaces
	}
	return c, nil
}

func (c *NetworkCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	records, err := c.interfaces()
	if err != nil {
		return fmt.Errorf("failed to enumerate network interfaces: %w", err)
	}
	snap.Interfaces = mergeInterfaces(records)
	return nil
}

func mergeInterfaces(records []AddrRecord) []sysinfo.InterfaceEntry {
	byName := make(map[string]*sysinfo.InterfaceEntry)
	for _, r := range records {
		entry, ok := byName[r.Name]
		if !ok {
			entry = &sysinfo.InterfaceEntry{Name: r.Name}
			byName[r.Name] = entry
		}

		flags := r.Flags &^ iffLowerUp
		entry.Up = flags&unix.IFF_UP != 0 && flags&unix.IFF_RUNNING != 0
		entry.Loopback = flags&unix.IFF_LOOPBACK != 0

		switch r.Family {
		case FamilyInet:
			if r.Addr != nil {
				entry.IPv4 = r.Addr.String()
			}
		case FamilyInet6:
			if r.Addr != nil {
				entry.IPv6 = r.Addr.String()
			}
		case FamilyLink:
			if len(r.HardwareAddr) > 0 {
				entry.MACAddress = r.HardwareAddr.String()
			}
			if r.Stats != nil {
				entry.TxBytes = r.Stats.TxBytes
				entry.RxBytes = r.Stats.RxBytes
			}
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]sysinfo.InterfaceEntry, 0, len(names))
	for _, name := range names {
		out = append(out, *byName[name])
	}
	return out
}

// liveInterfaces builds address records from the running system.
func (c *NetworkCollector) liveInterfaces() ([]AddrRecord, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	stats, err := c.readNetDev()
	if err != nil {
		c.Logger().V(1).Info("Interface counters unavailable", "error", err)
	}

	var records []AddrRecord
	for _, iface := range ifaces {
		flags := ifaceFlags(iface.Flags)

		link := AddrRecord{
			Name:         iface.Name,
			Family:       FamilyLink,
			HardwareAddr: iface.HardwareAddr,
			Flags:        flags,
		}
		if s, ok := stats[iface.Name]; ok {
			link.Stats = &s
		}
		records = append(records, link)

		addrs, err := iface.Addrs()
		if err != nil {
			c.Logger().V(2).Info("Failed to list interface addresses", "interface", iface.Name, "error", err)
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			family := FamilyInet6
			if ipnet.IP.To4() != nil {
				family = FamilyInet
			}
			records = append(records, AddrRecord{
				Name:   iface.Name,
				Family: family,
				Addr:   ipnet.IP,
				Flags:  flags,
			})
		}
	}
	return records, nil
}

// ifaceFlags converts net.Flags back to IFF_* bits.
func ifaceFlags(f net.Flags) uint32 {
	var flags uint32
	for _, m := range [...]struct {
		net net.Flags
		iff uint32
	}{
		{net.FlagUp, unix.IFF_UP},
		{net.FlagBroadcast, unix.IFF_BROADCAST},
		{net.FlagLoopback, unix.IFF_LOOPBACK},
		{net.FlagPointToPoint, unix.IFF_POINTOPOINT},
		{net.FlagMulticast, unix.IFF_MULTICAST},
		{net.FlagRunning, unix.IFF_RUNNING},
	} {
		if f&m.net != 0 {
			flags |= m.iff
		}
	}
	return flags
}

// readNetDev parses the byte counters of /proc/net/dev.
func (c *NetworkCollector) readNetDev() (map[string]LinkStats, error) {
	file, err := os.Open(c.procNetDevPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.procNetDevPath, err)
	}
	defer file.Close()

	stats := make(map[string]LinkStats)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		// Skip the two header lines
		if lineNum <= 2 {
			continue
		}

		name, counters, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		fields := strings.Fields(counters)
		if len(fields) < 16 {
			continue
		}

		rx, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			c.Logger().V(2).Info("Failed to parse rx_bytes", "interface", name, "value", fields[0], "error", err)
		}
		tx, err := strconv.ParseUint(fields[8], 10, 64)
		if err != nil {
			c.Logger().V(2).Info("Failed to parse tx_bytes", "interface", name, "value", fields[8], "error", err)
		}
		stats[name] = LinkStats{TxBytes: tx, RxBytes: rx}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", c.procNetDevPath, err)
	}
	return stats, nil
}
