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
	"github.com/antimetal/sysinfo/pkg/sysinfo/fstype"
)

var _ sysinfo.Collector = (*DiskCollector)(nil)

// DiskCollector enumerates mounted filesystems and their usage.
//
// The mount table is read from /proc/self/mountinfo:
//
//	36 35 98:0 /mnt1 /mnt/parent rw,noatime master:1 - ext3 /dev/root rw,errors=continue
//	(1)(2)(3)   (4)   (5)         (6)      (7)      (8) (9)  (10)      (11)
//
// Field 7 is a variable-length list of optional fields terminated by "-".
// Mount points escape spaces and other special characters as octal (\040).
//
// Each mount point is queried with statfs(2). A failed query skips that
// mount; only failing to open the mount table is an error. The magic number
// from statfs is resolved through the fstype registry. Unknown magics leave
// FSType empty.
//
// Space accounting:
// - SpaceTotal = f_blocks * block size
// - SpaceFree  = f_bavail * block size (excludes root-reserved blocks, as df does)
// - SpaceUsed  = (f_blocks - f_bfree) * block size
//
// Reference: https://www.kernel.org/doc/html/latest/filesystems/proc.html#proc-pid-mountinfo-information-about-mounts
type DiskCollector struct {
	sysinfo.BaseCollector
	mountinfoPath string
	statfs        StatFSFunc
}

func NewDiskCollector(logger logr.Logger, config sysinfo.CollectionConfig, opts ...Option) (*DiskCollector, error) {
	if err := config.Validate(sysinfo.ValidateOptions{RequireHostProcPath: true}); err != nil {
		return nil, err
	}

	return &DiskCollector{
		BaseCollector: sysinfo.NewBaseCollector(sysinfo.StageDisk, "Disk Collector", logger, config),
		mountinfoPath: filepath.Join(config.HostProcPath, "self", "mountinfo"),
		statfs:        newSources(opts).statfs,
	}, nil
}

// mountRecord is one parsed mountinfo line.
type mountRecord struct {
	mountPoint string
	options    string
	fsType     string
	source     string
}

func (c *DiskCollector) Collect(_ context.Context, snap *sysinfo.Snapshot) error {
	records, err := c.readMountTable()
	if err != nil {
		return err
	}

	mounts := make([]sysinfo.MountEntry, 0, len(records))
	for _, rec := range records {
		st, err := c.statfs(rec.mountPoint)
		if err != nil {
			c.Logger().V(2).Info("Skipping mount", "mountPoint", rec.mountPoint, "error", err)
			continue
		}
		mounts = append(mounts, c.newMountEntry(rec, st))
	}

	snap.Mounts = mounts
	return nil
}

func (c *DiskCollector) newMountEntry(rec mountRecord, st FSStat) sysinfo.MountEntry {
	entry := sysinfo.MountEntry{
		Device:     rec.source,
		MountPoint: rec.mountPoint,
		RawFSType:  rec.fsType,
		Options:    rec.options,
		Magic:      st.Magic,

		SpaceTotal: st.Blocks * st.BlockSize,
		SpaceFree:  st.BlocksAvail * st.BlockSize,
		SpaceUsed:  saturatingSub(st.Blocks, st.BlocksFree) * st.BlockSize,

		Inodes:     st.Files,
		InodesFree: st.FilesFree,
		InodesUsed: saturatingSub(st.Files, st.FilesFree),

		Blocks:    st.Blocks,
		BlockSize: st.BlockSize,
	}

	if d, ok := fstype.Lookup(st.Magic); ok {
		entry.FSType = d.Name
		entry.IsNetwork = d.IsNetwork
		entry.IsLocal = d.IsLocal
		entry.IsSpecial = d.IsSpecial
	} else {
		c.Logger().V(2).Info("Unknown filesystem magic",
			"mountPoint", rec.mountPoint, "magic", fmt.Sprintf("0x%x", st.Magic), "fstype", rec.fsType)
	}
	return entry
}

func (c *DiskCollector) readMountTable() ([]mountRecord, error) {
	file, err := os.Open(c.mountinfoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.mountinfoPath, err)
	}
	defer file.Close()

	var records []mountRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		rec, ok := parseMountInfoLine(scanner.Text())
		if !ok {
			c.Logger().V(2).Info("Skipping malformed mountinfo line", "line", scanner.Text())
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading %s: %w", c.mountinfoPath, err)
	}
	return records, nil
}

func parseMountInfoLine(line string) (mountRecord, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return mountRecord{}, false
	}

	sep := -1
	for i := 6; i < len(fields); i++ {
		if fields[i] == "-" {
			sep = i
			break
		}
	}
	if sep == -1 || sep+1 >= len(fields) {
		return mountRecord{}, false
	}

	rec := mountRecord{
		mountPoint: unescapeOctal(fields[4]),
		options:    fields[5],
		fsType:     fields[sep+1],
	}
	if sep+2 < len(fields) {
		rec.source = unescapeOctal(fields[sep+2])
	}
	return rec, true
}

// unescapeOctal decodes the \ooo escapes the kernel uses for space, tab,
// newline and backslash in mount paths.
func unescapeOctal(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			v, err := strconv.ParseUint(s[i+1:i+4], 8, 8)
			if err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
