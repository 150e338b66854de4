// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package fstype maps the filesystem magic numbers reported by statfs(2)
// to human readable descriptors.
//
// Several filesystems share a magic number (ext2, ext3 and ext4 all report
// 0xEF53; fuse and fuseblk both report 0x65735546). Lookup resolves such
// collisions to the entry that appears first in the table. LookupAll exposes
// every entry for a magic.
//
// The registry is built once at package initialisation and is read-only
// afterwards, so lookups are safe from any number of goroutines.
package fstype

import "fmt"

// Descriptor describes a filesystem type.
type Descriptor struct {
	// Name is the display name, e.g. "ext2/ext3" or "xfs".
	Name string `json:"name" yaml:"name"`
	// Constant is the kernel's symbolic name for Magic, e.g. "XFS_SUPER_MAGIC".
	Constant string `json:"constant" yaml:"constant"`
	Magic    uint32 `json:"magic" yaml:"magic"`

	IsNetwork bool `json:"isNetwork" yaml:"isNetwork"`
	IsLocal   bool `json:"isLocal" yaml:"isLocal"`
	// IsSpecial marks pseudo filesystems without backing storage (proc, sysfs, tmpfs, ...).
	IsSpecial bool `json:"isSpecial" yaml:"isSpecial"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s (%s, 0x%x)", d.Name, d.Constant, d.Magic)
}

type flags uint8

const (
	network flags = 1 << iota
	local
	special
)

func entry(name, constant string, magic uint32, f flags) Descriptor {
	return Descriptor{
		Name:      name,
		Constant:  constant,
		Magic:     magic,
		IsNetwork: f&network != 0,
		IsLocal:   f&local != 0,
		IsSpecial: f&special != 0,
	}
}

// table is ordered: for duplicate magics the earlier entry is canonical.
var table = []Descriptor{
	entry("adfs", "ADFS_SUPER_MAGIC", 0xadf5, 0),
	entry("affs", "AFFS_SUPER_MAGIC", 0xadff, 0),
	entry("autofs", "AUTOFS_SUPER_MAGIC", 0x0187, special),
	entry("bdevfs", "BDEVFS_MAGIC", 0x62646576, 0),
	entry("befs", "BEFS_SUPER_MAGIC", 0x42465331, 0),
	entry("bfs", "BFS_MAGIC", 0x1badface, 0),
	entry("binfmt_misc", "BINFMTFS_MAGIC", 0x42494e4d, special),
	entry("bpf", "BPF_FS_MAGIC", 0xcafe4a11, special),
	entry("btrfs", "BTRFS_SUPER_MAGIC", 0x9123683e, local),
	entry("cgroupfs", "CGROUP_SUPER_MAGIC", 0x27e0eb, special),
	entry("cgroup2", "CGROUP2_SUPER_MAGIC", 0x63677270, special),
	entry("cifs", "CIFS_MAGIC_NUMBER", 0xff534d42, network),
	entry("coda", "CODA_SUPER_MAGIC", 0x73757245, 0),
	entry("coh", "COH_SUPER_MAGIC", 0x012ff7b7, 0),
	entry("configfs", "CONFIGFS_MAGIC", 0x62656570, special),
	entry("cramfs", "CRAMFS_MAGIC", 0x28cd3d45, 0),
	entry("debugfs", "DEBUGFS_MAGIC", 0x64626720, special),
	entry("devfs", "DEVFS_SUPER_MAGIC", 0x1373, 0),
	entry("devpts", "DEVPTS_SUPER_MAGIC", 0x1cd1, 0),
	entry("efivarfs", "EFIVARFS_MAGIC", 0xde5e81e4, 0),
	entry("efs", "EFS_SUPER_MAGIC", 0x00414a53, 0),
	entry("ext", "EXT_SUPER_MAGIC", 0x137d, local),
	entry("ext2", "EXT2_OLD_SUPER_MAGIC", 0xef51, local),
	entry("ext2/ext3", "EXT2_SUPER_MAGIC", 0xef53, local),
	entry("ext3", "EXT3_SUPER_MAGIC", 0xef53, local),
	entry("ext4", "EXT4_SUPER_MAGIC", 0xef53, local),
	entry("fusefs", "FUSE_SUPER_MAGIC", 0x65735546, 0),
	entry("futexfs", "FUTEXFS_SUPER_MAGIC", 0x0bad1dea, 0),
	entry("hfs", "HFS_SUPER_MAGIC", 0x4244, 0),
	entry("hfsplus", "HFSPLUS_SUPER_MAGIC", 0x482b, 0),
	entry("hostfs", "HOSTFS_SUPER_MAGIC", 0x00c0ffee, 0),
	entry("hpfs", "HPFS_SUPER_MAGIC", 0xf995e849, local),
	entry("hugetlbfs", "HUGETLBFS_MAGIC", 0x958458f6, special),
	entry("isofs", "ISOFS_SUPER_MAGIC", 0x9660, 0),
	entry("jffs2", "JFFS2_SUPER_MAGIC", 0x72b6, 0),
	entry("jfs", "JFS_SUPER_MAGIC", 0x3153464a, 0),
	entry("minix", "MINIX_SUPER_MAGIC", 0x137f, 0),
	entry("minix (30 char.)", "MINIX_SUPER_MAGIC2", 0x138f, 0),
	entry("minix v2", "MINIX2_SUPER_MAGIC", 0x2468, 0),
	entry("minix v2 (30 char.)", "MINIX2_SUPER_MAGIC2", 0x2478, 0),
	entry("minix3", "MINIX3_SUPER_MAGIC", 0x4d5a, 0),
	entry("mqueue", "MQUEUE_MAGIC", 0x19800202, special),
	entry("msdos", "MSDOS_SUPER_MAGIC", 0x4d44, local),
	entry("novell", "NCP_SUPER_MAGIC", 0x564c, 0),
	entry("nfs", "NFS_SUPER_MAGIC", 0x6969, network),
	entry("nilfs", "NILFS_SUPER_MAGIC", 0x3434, 0),
	entry("ntfs", "NTFS_SB_MAGIC", 0x5346544e, local),
	entry("ocfs2", "OCFS2_SUPER_MAGIC", 0x7461636f, 0),
	entry("openprom", "OPENPROM_SUPER_MAGIC", 0x9fa1, 0),
	entry("pipefs", "PIPEFS_MAGIC", 0x50495045, 0),
	entry("proc", "PROC_SUPER_MAGIC", 0x9fa0, special),
	entry("pstorefs", "PSTOREFS_MAGIC", 0x6165676c, special),
	entry("qnx4", "QNX4_SUPER_MAGIC", 0x002f, 0),
	entry("qnx6", "QNX6_SUPER_MAGIC", 0x68191122, 0),
	entry("ramfs", "RAMFS_MAGIC", 0x858458f6, 0),
	entry("reiserfs", "REISERFS_SUPER_MAGIC", 0x52654973, local),
	entry("romfs", "ROMFS_MAGIC", 0x7275, 0),
	entry("selinux", "SELINUX_MAGIC", 0xf97cff8c, 0),
	entry("smackfs", "SMACK_MAGIC", 0x43415d53, 0),
	entry("smb", "SMB_SUPER_MAGIC", 0x517b, network),
	entry("smb2", "SMB2_MAGIC_NUMBER", 0xfe534d42, network),
	entry("sockfs", "SOCKFS_MAGIC", 0x534f434b, 0),
	entry("squashfs", "SQUASHFS_MAGIC", 0x73717368, 0),
	entry("sysfs", "SYSFS_MAGIC", 0x62656572, special),
	entry("sysv2", "SYSV2_SUPER_MAGIC", 0x012ff7b6, 0),
	entry("sysv4", "SYSV4_SUPER_MAGIC", 0x012ff7b5, 0),
	entry("tmpfs", "TMPFS_MAGIC", 0x01021994, special),
	entry("tracefs", "TRACEFS_MAGIC", 0x74726163, special),
	entry("udf", "UDF_SUPER_MAGIC", 0x15013346, local),
	entry("ufs", "UFS_MAGIC", 0x00011954, 0),
	entry("usbdevfs", "USBDEVICE_SUPER_MAGIC", 0x9fa2, 0),
	entry("v9fs", "V9FS_MAGIC", 0x01021997, 0),
	entry("vxfs", "VXFS_SUPER_MAGIC", 0xa501fcf5, 0),
	entry("xenfs", "XENFS_SUPER_MAGIC", 0xabba1974, 0),
	entry("xenix", "XENIX_SUPER_MAGIC", 0x012ff7b4, 0),
	entry("xfs", "XFS_SUPER_MAGIC", 0x58465342, local),
	entry("xia", "_XIAFS_SUPER_MAGIC", 0x012fd16d, 0),
	entry("afs", "AFS_SUPER_MAGIC", 0x5346414f, local),
	entry("aufs", "AUFS_SUPER_MAGIC", 0x61756673, 0),
	entry("anon-inode FS", "ANON_INODE_FS_SUPER_MAGIC", 0x09041934, 0),
	entry("ceph", "CEPH_SUPER_MAGIC", 0x00c36400, 0),
	entry("ecryptfs", "ECRYPTFS_SUPER_MAGIC", 0xf15f, 0),
	entry("fat", "FAT_SUPER_MAGIC", 0x4006, local),
	entry("fhgfs", "FHGFS_SUPER_MAGIC", 0x19830326, 0),
	entry("fuseblk", "FUSEBLK_SUPER_MAGIC", 0x65735546, 0),
	entry("fusectl", "FUSECTL_SUPER_MAGIC", 0x65735543, special),
	entry("gfs/gfs2", "GFS_SUPER_MAGIC", 0x01161970, 0),
	entry("gpfs", "GPFS_SUPER_MAGIC", 0x47504653, 0),
	entry("inodefs", "MTD_INODE_FS_SUPER_MAGIC", 0x11307854, 0),
	entry("inotifyfs", "INOTIFYFS_SUPER_MAGIC", 0x2bad1dea, 0),
	entry("isofs", "ISOFS_R_WIN_SUPER_MAGIC", 0x4004, 0),
	entry("isofs", "ISOFS_WIN_SUPER_MAGIC", 0x4000, 0),
	entry("jffs", "JFFS_SUPER_MAGIC", 0x07c0, 0),
	entry("k-afs", "KAFS_SUPER_MAGIC", 0x6b414653, 0),
	entry("lustre", "LUSTRE_SUPER_MAGIC", 0x0bd00bd0, 0),
	entry("nfsd", "NFSD_SUPER_MAGIC", 0x6e667364, 0),
	entry("panfs", "PANFS_SUPER_MAGIC", 0xaad7aaea, 0),
	entry("rpc_pipefs", "RPC_PIPEFS_SUPER_MAGIC", 0x67596969, 0),
	entry("securityfs", "SECURITYFS_SUPER_MAGIC", 0x73636673, special),
	entry("ufs", "UFS_BYTESWAPPED_SUPER_MAGIC", 0x54190100, 0),
	entry("vmhgfs", "VMHGFS_SUPER_MAGIC", 0xbacbacbc, 0),
	entry("vzfs", "VZFS_SUPER_MAGIC", 0x565a4653, 0),
	entry("zfs", "ZFS_SUPER_MAGIC", 0x2fc12fc1, local),

	// Filesystems that postdate the classic statfs(2) magic list.
	entry("overlay", "OVERLAYFS_SUPER_MAGIC", 0x794c7630, 0),
	entry("nsfs", "NSFS_MAGIC", 0x6e736673, special),
	entry("pidfs", "PID_FS_MAGIC", 0x50494446, special),
	entry("f2fs", "F2FS_SUPER_MAGIC", 0xf2f52010, local),
	entry("exfat", "EXFAT_SUPER_MAGIC", 0x2011bab0, local),
	entry("erofs", "EROFS_SUPER_MAGIC_V1", 0xe0f5e1e2, local),
	entry("bcachefs", "BCACHEFS_SUPER_MAGIC", 0xca451a4e, local),
	entry("zonefs", "ZONEFS_MAGIC", 0x5a4f4653, local),
	entry("smb3", "SMB2_SUPER_MAGIC", 0xfe534d42, network),
}

// byMagic holds the index of every table entry for a magic, in table order.
var byMagic = func() map[uint32][]int {
	m := make(map[uint32][]int, len(table))
	for i, d := range table {
		m[d.Magic] = append(m[d.Magic], i)
	}
	return m
}()

// Lookup returns the canonical descriptor for magic. The boolean is false
// when the magic is not registered.
func Lookup(magic uint32) (Descriptor, bool) {
	idx, ok := byMagic[magic]
	if !ok {
		return Descriptor{}, false
	}
	return table[idx[0]], true
}

// LookupAll returns every descriptor registered for magic in table order.
// The first element is what Lookup returns.
func LookupAll(magic uint32) []Descriptor {
	idx := byMagic[magic]
	if len(idx) == 0 {
		return nil
	}
	out := make([]Descriptor, len(idx))
	for i, j := range idx {
		out[i] = table[j]
	}
	return out
}

// Len reports the number of registered descriptors, duplicates included.
func Len() int { return len(table) }

// All returns a copy of the registry in table order.
func All() []Descriptor {
	out := make([]Descriptor, len(table))
	copy(out, table)
	return out
}
