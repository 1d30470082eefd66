// disk.go - Disk and partition layer for the Citrus Engine

/*
 ██████╗ ██╗ ████████╗ ██████╗  ██╗   ██╗ ███████╗     ███████╗ ███╗   ██╗  ██████╗  ██╗ ███╗   ██╗ ███████╗
██╔════╝ ██║ ╚══██╔══╝ ██╔══██╗ ██║   ██║ ██╔════╝     ██╔════╝ ████╗  ██║ ██╔════╝  ██║ ████╗  ██║ ██╔════╝
██║      ██║    ██║    ██████╔╝ ██║   ██║ ███████╗     █████╗   ██╔██╗ ██║ ██║  ███╗ ██║ ██╔██╗ ██║ █████╗
██║      ██║    ██║    ██╔══██╗ ██║   ██║ ╚════██║     ██╔══╝   ██║╚██╗██║ ██║   ██║ ██║ ██║╚██╗██║ ██╔══╝
╚██████╗ ██║    ██║    ██║  ██║ ╚██████╔╝ ███████║     ███████╗ ██║ ╚████║ ╚██████╔╝ ██║ ██║ ╚████║ ███████╗
 ╚═════╝ ╚═╝    ╚═╝    ╚═╝  ╚═╝  ╚═════╝  ╚══════╝     ╚══════╝ ╚═╝  ╚═══╝  ╚═════╝  ╚═╝ ╚═╝  ╚═══╝ ╚══════╝

(c) 2025 - 2026 The CitrusEngine Authors
https://github.com/citrusos/CitrusEngine

License: GPLv3 or later
*/

/*
disk.go - Disk and Partition Layer for the Citrus Engine

A disk is anything with a 512-byte-sector read interface. Adding one
reads its MBR, collects the valid primary partitions (active status
byte, non-zero sector count) and tries to mount a FAT32 filesystem on
each. Mounted partitions expose the public filesystem API: open a
file or directory by slash path, read bytes, iterate entries, fetch
the volume label.
*/

package main

// DiskOps is the block read interface a driver provides: count
// sectors starting at lba into buf. A sector is 512 bytes.
type DiskOps interface {
	Read(lba uint32, count uint32, buf []byte) bool
}

type Disk struct {
	name string
	ops  DiskOps
	sys  *SysDisk

	partitions [4]Partition
}

type Partition struct {
	disk *Disk

	startLBA   uint32
	sectCount  uint32
	partNumber int

	fs *FatVolume
}

// SysDisk tracks every disk and partition in the system.
type SysDisk struct {
	k          *Kernel
	disks      []*Disk
	partitions []*Partition
}

func NewSysDisk(k *Kernel) *SysDisk {
	return &SysDisk{k: k}
}

// MBR partition table layout.
const (
	mbrTableOffset = 446
	mbrEntrySize   = 16
)

// findPartitions reads the MBR and registers every valid primary
// partition.
func (sd *SysDisk) findPartitions(d *Disk) {
	var buf [SECTOR_SIZE]byte
	if !d.ops.Read(0, 1, buf[:]) {
		sd.k.m.Panic("cannot read MBR on %s", d.name)
	}
	if buf[510] != 0x55 || buf[511] != 0xAA {
		return
	}

	for i := 0; i < 4; i++ {
		e := buf[mbrTableOffset+i*mbrEntrySize:]

		status := e[0]
		lba := readLe32(e[8:])
		sectors := readLe32(e[12:])

		// Status bytes between 0x01 and 0x7F are invalid.
		if status >= 0x01 && status <= 0x7F {
			continue
		}
		if sectors == 0 {
			continue
		}

		p := &d.partitions[i]
		p.disk = d
		p.startLBA = lba
		p.sectCount = sectors
		p.partNumber = i
		sd.partitions = append(sd.partitions, p)
	}
}

// AddDisk registers a disk, scans its partitions and mounts whatever
// FAT32 filesystems it finds. Returns the disk handle.
func (sd *SysDisk) AddDisk(ops DiskOps, name string) *Disk {
	d := &Disk{name: name, ops: ops, sys: sd}
	sd.disks = append(sd.disks, d)

	sd.findPartitions(d)

	for i := range d.partitions {
		p := &d.partitions[i]
		if p.disk == nil {
			continue
		}
		if err := mountPartition(p); err == EOK {
			sd.k.Kprintf("mounted %s%d as FAT32\n", name, p.partNumber)
		}
	}
	return d
}

// Partition returns a mounted partition by disk name and index, or
// nil.
func (sd *SysDisk) Partition(name string, idx int) *Partition {
	for _, d := range sd.disks {
		if d.name != name {
			continue
		}
		p := &d.partitions[idx]
		if p.disk != nil && p.fs != nil {
			return p
		}
	}
	return nil
}

// Public filesystem API over a mounted partition.

// OpenFile resolves a slash path from the partition root and returns
// a read cursor positioned at byte zero.
func (p *Partition) OpenFile(path string) (*FatFile, error) {
	if p.fs == nil {
		return nil, ErrBadFs
	}
	f := p.fs.newFile()
	if err := p.fs.fatFileOpen(f, path); err != EOK {
		return nil, codeToError(err)
	}
	return f, nil
}

// OpenDir resolves a directory path and returns an iteration cursor.
func (p *Partition) OpenDir(path string) (*FatFile, error) {
	if p.fs == nil {
		return nil, ErrBadFs
	}
	dir := p.fs.newFile()
	if err := p.fs.fatDirOpen(dir, path); err != EOK {
		return nil, codeToError(err)
	}
	return dir, nil
}

// Read fills buf from the cursor. A short count comes with ErrEOF at
// a clean end of file, ErrUnexpectedEOF when the cluster chain ran
// out early, or ErrDisk.
func (f *FatFile) Read(buf []byte) (int, error) {
	n, code := f.vol.fatFileRead(f, buf)
	if code == EOK {
		return n, nil
	}
	return n, codeToError(code)
}

// ReadEntry decodes the entry under the directory cursor without
// moving it.
func (f *FatFile) ReadEntry(info *FileInfo) error {
	code := f.vol.fatDirRead(f, info)
	if code == EOK {
		return nil
	}
	if code == ENOFILE {
		// Deleted entry under the cursor; callers skip with Next.
		return ErrNoFile
	}
	if code == EEOF {
		return ErrEOF
	}
	return codeToError(code)
}

// Next advances the directory cursor to the following in-use entry;
// ErrEOF marks the directory terminator.
func (f *FatFile) Next() error {
	code := f.vol.nextValidEntry(f)
	if code == EOK {
		return nil
	}
	if code == EEOF {
		return ErrEOF
	}
	return codeToError(code)
}

// Label scans the root directory for the volume label entry.
func (p *Partition) Label() (FileInfo, error) {
	var info FileInfo
	if p.fs == nil {
		return info, ErrBadFs
	}
	code := p.fs.fatGetLabel(&info)
	if code == EOK {
		return info, nil
	}
	if code == EEOF {
		return info, ErrNoFile
	}
	return info, codeToError(code)
}
