// fat32.go - FAT32 read path for the Citrus Engine

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
fat32.go - FAT32 Read Path for the Citrus Engine

Mounting parses the BPB, proves the volume is FAT32 by the data
cluster count, and caches the geometry as base-two orders with
matching masks so every division and modulo on the hot path is a
shift and an and. Four global page indices anchor the layout: the
partition start, the file allocation table, the data region and the
FS-info page.

A file is a cursor: byte offset in the file, page number relative to
the data region, byte offset within that page. Each file carries one
512-byte data page cache and a 128-entry FAT page cache; after every
successful operation the data cache holds the page the cursor points
into. Cluster boundary crossings walk the chain through the FAT
cache, masking entries to 28 bits and classifying them as next,
end-of-chain, or corruption.

Write support does not exist. The dirty flags are tracked, and a
dirty page at eviction is a hard stop rather than a silent loss.
*/

package main

import (
	"encoding/binary"
	"math/bits"
)

func ctz32(v uint32) uint32 { return uint32(bits.TrailingZeros32(v)) }

const (
	SECTOR_SIZE    = 512
	FAT_ENTRY_MASK = 0x0FFFFFFF

	// BPB field offsets.
	BPB_SECTOR_SIZE   = 11
	BPB_CLUSTER_SIZE  = 13
	BPB_RSVD_CNT      = 14
	BPB_NUM_FATS      = 16
	BPB_ROOT_ENT_CNT  = 17
	BPB_TOT_SECT_16   = 19
	BPB_FAT_SIZE_16   = 22
	BPB_TOT_SECT_32   = 32
	BPB_16_FSTYPE     = 54
	BPB_32_FAT_SIZE   = 36
	BPB_32_ROOT_CLUST = 44
	BPB_32_FSINFO     = 48
	BPB_32_FSTYPE     = 82
)

func readLe16(b []byte) uint32 { return uint32(binary.LittleEndian.Uint16(b)) }
func readLe32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

// FatVolume is the cached geometry of one mounted FAT32 partition.
type FatVolume struct {
	part *Partition

	pageOrder   uint32
	pageMask    uint32
	clustOrder  uint32
	clustMask   uint32
	fatEntOrder uint32
	fatEntMask  uint32

	fats         uint8
	rootClustNum uint32

	globPage     uint32 // partition start
	fatGlobPage  uint32 // file allocation table
	dataGlobPage uint32 // data region (root cluster lives here)
	infoGlobPage uint32 // FS-info page
}

// FatFile is a cursor into a volume, doubling as a directory handle.
type FatFile struct {
	fileOffset uint32 // byte offset within the file
	offset     uint32 // byte offset within the cached page
	page       uint32 // page relative to the data region
	size       uint32

	cache      [SECTOR_SIZE]byte
	cachePage  uint32 // global page held in the cache
	cacheDirty bool

	fatCache      [SECTOR_SIZE]byte
	fatCachePage  uint32
	fatCacheDirty bool

	lfnBuf [256]byte

	vol *FatVolume
}

// Size returns the byte length recorded in the directory entry.
func (f *FatFile) Size() uint32 { return f.size }

const noCachedPage = 0xFFFFFFFF

// FileStructInit resets a file cursor for reuse.
func (f *FatFile) FileStructInit(v *FatVolume) {
	*f = FatFile{vol: v, cachePage: noCachedPage, fatCachePage: noCachedPage}
}

func (v *FatVolume) newFile() *FatFile {
	f := &FatFile{}
	f.FileStructInit(v)
	return f
}

// File metadata decoded from a short directory entry.

type FileTime struct {
	Hour, Min, Sec uint8
}

type FileDate struct {
	Year  uint16
	Month uint8
	Day   uint8
}

type FileInfo struct {
	Name string
	Attr uint8
	Size uint32

	CreateTime FileTime
	WriteTime  FileTime
	CreateDate FileDate
	WriteDate  FileDate
	AccessDate FileDate
}

// fatSignatureOk checks the 0x55AA marker at the end of a boot page.
func fatSignatureOk(bpb []byte) bool {
	return bpb[510] == 0x55 && bpb[511] == 0xAA
}

func bpbContainValidFat(bpb []byte) bool {
	return string(bpb[BPB_16_FSTYPE:BPB_16_FSTYPE+3]) == "FAT" ||
		string(bpb[BPB_32_FSTYPE:BPB_32_FSTYPE+3]) == "FAT"
}

// bpbContainFat32 discriminates FAT32 from FAT12/16 by the data
// cluster count.
func bpbContainFat32(bpb []byte) bool {
	if !bpbContainValidFat(bpb) {
		return false
	}
	if readLe16(bpb[BPB_ROOT_ENT_CNT:]) != 0 {
		return false
	}

	fatPages := readLe16(bpb[BPB_FAT_SIZE_16:])
	if fatPages == 0 {
		fatPages = readLe32(bpb[BPB_32_FAT_SIZE:])
	}
	totPages := readLe16(bpb[BPB_TOT_SECT_16:])
	if totPages == 0 {
		totPages = readLe32(bpb[BPB_TOT_SECT_32:])
	}

	dataPages := totPages - readLe16(bpb[BPB_RSVD_CNT:]) -
		fatPages*uint32(bpb[BPB_NUM_FATS])
	dataClusters := dataPages / uint32(bpb[BPB_CLUSTER_SIZE])

	return dataClusters >= 65525
}

func orderToMask(order uint32) uint32 {
	return (1 << order) - 1
}

// buildFatVolume caches the geometry out of a verified FAT32 BPB.
func buildFatVolume(part *Partition, bpb []byte) *FatVolume {
	v := &FatVolume{part: part}

	pageBytes := readLe16(bpb[BPB_SECTOR_SIZE:])
	clusterPages := uint32(bpb[BPB_CLUSTER_SIZE])

	v.pageOrder = ctz32(pageBytes)
	v.pageMask = orderToMask(v.pageOrder)
	v.clustOrder = ctz32(clusterPages)
	v.clustMask = orderToMask(v.clustOrder)

	// FAT entries per page, for the chain walk.
	v.fatEntOrder = v.pageOrder - 2
	v.fatEntMask = orderToMask(v.fatEntOrder)

	v.fats = bpb[BPB_NUM_FATS]

	v.globPage = part.startLBA
	v.fatGlobPage = v.globPage + readLe16(bpb[BPB_RSVD_CNT:])
	v.dataGlobPage = v.fatGlobPage + uint32(v.fats)*readLe32(bpb[BPB_32_FAT_SIZE:])
	v.infoGlobPage = v.globPage + readLe16(bpb[BPB_32_FSINFO:])
	v.rootClustNum = readLe32(bpb[BPB_32_ROOT_CLUST:])

	return v
}

// mountPartition probes and mounts a FAT32 filesystem on the
// partition. Returns EOK, -EDISK or -EBADFS.
func mountPartition(part *Partition) int {
	var buf [SECTOR_SIZE]byte
	if !part.disk.ops.Read(part.startLBA, 1, buf[:]) {
		return -EDISK
	}
	if !fatSignatureOk(buf[:]) {
		return -EBADFS
	}
	if !bpbContainFat32(buf[:]) {
		return -EBADFS
	}

	part.fs = buildFatVolume(part, buf[:])
	return EOK
}

// fileGlobPage converts the cursor's data-relative page to a disk
// global page.
func (v *FatVolume) fileGlobPage(f *FatFile) uint32 {
	return f.page + v.dataGlobPage
}

// cacheFatPage loads one FAT page into the file's FAT cache.
func (v *FatVolume) cacheFatPage(f *FatFile, globPage uint32) int {
	if globPage == f.fatCachePage {
		return EOK
	}
	if !v.part.disk.ops.Read(globPage, 1, f.fatCache[:]) {
		return -EDISK
	}
	f.fatCachePage = globPage
	return EOK
}

func (f *FatFile) fatEntryAt(index uint32) uint32 {
	return readLe32(f.fatCache[index*4:]) & FAT_ENTRY_MASK
}

// fatEntStatus classifies a masked FAT entry: next cluster,
// end-of-chain, or corruption.
func fatEntStatus(ent uint32) int {
	if ent >= 0x0000002 && ent <= 0xFFFFFEF {
		return EOK
	}
	if ent >= 0xFFFFFF8 && ent <= 0xFFFFFFF {
		return EEOF
	}
	return -EDISK
}

// followClusterChain walks count links from *clust. On success *clust
// holds the reached cluster. Walking into the end of the chain before
// the last step is -EEOF; landing exactly on an end-of-chain entry
// returns EEOF with *clust left on the last real cluster.
func (v *FatVolume) followClusterChain(f *FatFile, clust *uint32, count uint32) int {
	curr := *clust

	for i := uint32(0); i < count; i++ {
		entPage := v.fatGlobPage + (curr >> v.fatEntOrder)
		entIndex := curr & v.fatEntMask

		if err := v.cacheFatPage(f, entPage); err < 0 {
			return err
		}

		ent := f.fatEntryAt(entIndex)
		status := fatEntStatus(ent)
		if status < 0 {
			return status
		}
		if status == EEOF {
			if i < count-1 {
				return -EEOF
			}
			*clust = curr
			return EEOF
		}
		curr = ent
	}

	*clust = curr
	return EOK
}

// dataCache brings the page under the cursor into the data cache.
func (v *FatVolume) dataCache(f *FatFile) int {
	page := v.fileGlobPage(f)
	if page == f.cachePage {
		return EOK
	}

	if f.cacheDirty {
		v.part.disk.sys.k.m.Panic("FAT write-back not implemented")
	}

	if !v.part.disk.ops.Read(page, 1, f.cache[:]) {
		return -EDISK
	}
	f.cachePage = page
	return EOK
}

// incFilePtr advances the cursor by bytes, walking the cluster chain
// on page overflow and refreshing the data cache.
func (v *FatVolume) incFilePtr(f *FatFile, bytes uint32) int {
	f.fileOffset += bytes
	f.offset += bytes

	if f.offset&^v.pageMask == 0 {
		return EOK
	}

	pageInc := f.offset >> v.pageOrder
	f.offset &= v.pageMask

	currCluster := (f.page >> v.clustOrder) + v.rootClustNum
	nextCluster := ((f.page + pageInc) >> v.clustOrder) + v.rootClustNum
	clustCnt := nextCluster - currCluster

	if clustCnt != 0 {
		err := v.followClusterChain(f, &currCluster, clustCnt)
		if err < 0 {
			return err
		}
		if err == EEOF {
			// The chain ended under a cursor that still moved.
			return -EEOF
		}
		f.page = (f.page+pageInc)&v.clustMask +
			(currCluster-v.rootClustNum)<<v.clustOrder
	} else {
		f.page += pageInc
	}

	return v.dataCache(f)
}

// jumpEntries advances a directory cursor whole entries at a time.
func (v *FatVolume) jumpEntries(dir *FatFile, entries uint32) int {
	return v.incFilePtr(dir, entries*DIR_ENTRY_SIZE)
}

// nextValidEntry moves the cursor to the next in-use directory entry.
// EEOF means the 0x00 terminator: no later entry is in use.
func (v *FatVolume) nextValidEntry(dir *FatFile) int {
	// Standing on a long-name chain: hop the whole group first.
	if dir.cache[dir.offset+SFN_ATTR] == ATTR_LFN {
		cnt := uint32(dir.cache[dir.offset] & LFN_SEQ_MSK)
		if err := v.jumpEntries(dir, cnt); err < 0 {
			return err
		}
	}

	for {
		if err := v.jumpEntries(dir, 1); err < 0 {
			return err
		}

		first := dir.cache[dir.offset]
		if first == 0x00 {
			return EEOF
		}
		if first != 0x05 && first != 0xE5 {
			return EOK
		}
	}
}

// setCluster points the cursor at the start of a cluster.
func (v *FatVolume) setCluster(f *FatFile, clust uint32) int {
	if clust < v.rootClustNum {
		return -EDISK
	}
	f.page = (clust - v.rootClustNum) << v.clustOrder
	f.offset = 0
	return v.dataCache(f)
}

// dirSetRoot points a directory cursor at the root directory.
func (v *FatVolume) dirSetRoot(dir *FatFile) int {
	dir.fileOffset = 0
	dir.offset = 0
	dir.page = 0
	return v.dataCache(dir)
}

func dirIsRoot(dir *FatFile) bool {
	return dir.page == 0 && dir.offset == 0
}

// compareEntry matches the entry under the cursor against a path
// fragment. A long-name chain is compared unit by unit and leaves the
// cursor on its short entry; a mismatch leaves the cursor on the
// short entry of the group. Returns EOK on match, ENOFILE on
// mismatch, -EDISK or -EBADFS on failure.
func (v *FatVolume) compareEntry(dir *FatFile, name string) int {
	entry := dir.cache[dir.offset:]

	if entry[SFN_ATTR] != ATTR_LFN {
		if !fatSfnCompare(entry, name) {
			return ENOFILE
		}
		return EOK
	}

	// A well-formed chain starts with bit 6 set in the sequence.
	if entry[LFN_SEQ]&(1<<6) == 0 {
		return -EBADFS
	}

	crc := entry[LFN_CRC]
	var lfn [13]byte
	var seq uint8

	// The head entry carries the chain length; a name that cannot
	// fill exactly that many entries can never match the chain.
	seqTotal := int(entry[LFN_SEQ] & LFN_SEQ_MSK)
	if len(name) > 13*seqTotal || len(name) <= 13*(seqTotal-1) {
		if err := v.jumpEntries(dir, uint32(seqTotal)); err < 0 {
			return -EDISK
		}
		return ENOFILE
	}

	for {
		seq = entry[LFN_SEQ] & LFN_SEQ_MSK

		lfnSize := fatGetLfnName(entry, lfn[:])

		if !fatLfnCmpFrag(name, lfn[:lfnSize], 13*(int(seq)-1)) {
			if err := v.jumpEntries(dir, uint32(seq)); err < 0 {
				return -EDISK
			}
			return ENOFILE
		}

		if err := v.jumpEntries(dir, 1); err < 0 {
			return -EDISK
		}
		entry = dir.cache[dir.offset:]

		if seq == 1 {
			break
		}
	}

	// The cursor is on the short entry; the chain checksum must
	// reproduce against its name bytes.
	if crc != fatGetSfnCrc(entry) {
		return -EBADFS
	}
	return EOK
}

// dirSearch scans the directory from the cursor for a fragment.
// Returns EOK with the cursor on the short entry, EEOF when the
// directory ends, or a negative failure.
func (v *FatVolume) dirSearch(dir *FatFile, name string) int {
	for {
		err := v.compareEntry(dir, name)
		if err <= 0 {
			return err
		}

		err = v.nextValidEntry(dir)
		if err != EOK {
			return err
		}
	}
}

// dirEntToClust pulls the cluster number out of a short entry.
func dirEntToClust(entry []byte) uint32 {
	return readLe16(entry[SFN_CLUSTL:]) | readLe16(entry[SFN_CLUSTH:])<<16
}

// followPath descends one fragment at a time from the cursor.
func (v *FatVolume) followPath(f *FatFile, path string) int {
	pos := 0
	for {
		frag, next := nextPathFrag(path, pos)
		pos = next
		if frag == "" {
			break
		}

		err := v.dirSearch(f, frag)
		if err == EEOF {
			return ENOFILE
		}
		if err != EOK {
			return err
		}

		entry := f.cache[f.offset:]
		clust := dirEntToClust(entry)
		f.fileOffset = 0

		// A dot-dot entry with cluster zero climbs back to root.
		if entry[0] == '.' && entry[1] == '.' && clust == 0 {
			err = v.dirSetRoot(f)
		} else {
			f.size = readLe32(entry[SFN_FILE_SIZE:])
			err = v.setCluster(f, clust)
		}
		if err < 0 {
			return err
		}
	}
	return EOK
}

// getLfnFullName assembles the long name under the cursor into buf
// and leaves the cursor on the short entry. Returns the byte count
// and a status code.
func (v *FatVolume) getLfnFullName(dir *FatFile, buf []byte) (int, int) {
	entry := dir.cache[dir.offset:]

	if entry[LFN_SEQ]&(1<<6) == 0 {
		return 0, -EBADFS
	}

	crc := entry[LFN_CRC]
	cnt := 0
	var seq uint8

	for {
		seq = entry[LFN_SEQ] & LFN_SEQ_MSK

		cnt += fatGetLfnName(entry, buf[13*(int(seq)-1):])

		if err := v.jumpEntries(dir, 1); err < 0 {
			return 0, err
		}
		entry = dir.cache[dir.offset:]

		if seq == 1 {
			break
		}
	}

	if crc != fatGetSfnCrc(entry) {
		return 0, -EBADFS
	}
	return cnt, EOK
}

// getEntryName reads the name of the entry under the cursor. A long
// name moves the cursor onto its short entry.
func (v *FatVolume) getEntryName(dir *FatFile, buf []byte) (int, int) {
	first := dir.cache[dir.offset]
	if first == 0x00 {
		return 0, EEOF
	}
	if first == 0x05 || first == 0xE5 {
		return 0, ENOFILE
	}

	if dir.cache[dir.offset+SFN_ATTR] != ATTR_LFN {
		name := sfnToFileName(dir.cache[dir.offset : dir.offset+11])
		return copy(buf, name), EOK
	}

	return v.getLfnFullName(dir, buf)
}

// filePtr is the lightweight cursor snapshot used while reading
// directory entries.
type filePtr struct {
	fileOffset uint32
	offset     uint32
	page       uint32
}

func fileSave(f *FatFile, p *filePtr) {
	p.fileOffset = f.fileOffset
	p.offset = f.offset
	p.page = f.page
}

func (v *FatVolume) fileRestore(f *FatFile, p *filePtr) int {
	f.page = p.page
	f.offset = p.offset
	f.fileOffset = p.fileOffset
	return v.dataCache(f)
}

// Packed timestamp decoding.

func fatGetTime(t uint32) FileTime {
	return FileTime{
		Hour: uint8(t >> 11),
		Min:  uint8((t >> 5) & 0x3F),
		Sec:  uint8(t&0x1F) * 2,
	}
}

func fatGetDate(d uint32) FileDate {
	return FileDate{
		Year:  1980 + uint16((d>>9)&0x7F),
		Month: uint8((d >> 5) & 0xF),
		Day:   uint8(d & 0x1F),
	}
}

func fatGetSfnInfo(sfn []byte, info *FileInfo) {
	info.Attr = sfn[SFN_ATTR]
	info.Size = readLe32(sfn[SFN_FILE_SIZE:])

	info.CreateTime = fatGetTime(readLe16(sfn[SFN_CTIME:]))
	info.WriteTime = fatGetTime(readLe16(sfn[SFN_WTIME:]))

	info.CreateDate = fatGetDate(readLe16(sfn[SFN_CDATE:]))
	info.WriteDate = fatGetDate(readLe16(sfn[SFN_WDATE:]))
	info.AccessDate = fatGetDate(readLe16(sfn[SFN_ADATE:]))
}

// Internal API, code-speaking.

func (v *FatVolume) fatDirOpen(dir *FatFile, path string) int {
	if err := v.dirSetRoot(dir); err < 0 {
		return err
	}
	if err := v.followPath(dir, path); err != EOK {
		return err
	}

	if dir.cache[dir.offset+SFN_ATTR]&ATTR_DIR == 0 && !dirIsRoot(dir) {
		return -ENODIR
	}
	return EOK
}

func (v *FatVolume) fatDirRead(dir *FatFile, info *FileInfo) int {
	var ptr filePtr
	fileSave(dir, &ptr)

	n, err := v.getEntryName(dir, dir.lfnBuf[:])
	if err != EOK {
		return err
	}
	info.Name = string(dir.lfnBuf[:n])

	fatGetSfnInfo(dir.cache[dir.offset:], info)

	return v.fileRestore(dir, &ptr)
}

func (v *FatVolume) fatGetLabel(info *FileInfo) int {
	dir := v.newFile()

	if err := v.dirSetRoot(dir); err < 0 {
		return err
	}

	for {
		err := v.fatDirRead(dir, info)
		if err != EOK && err != ENOFILE {
			return err
		}
		if err == EOK && info.Attr&ATTR_VOL_LABEL != 0 {
			return EOK
		}
		if err := v.nextValidEntry(dir); err != EOK {
			return err
		}
	}
}

func (v *FatVolume) fatFileOpen(f *FatFile, path string) int {
	if err := v.dirSetRoot(f); err < 0 {
		return err
	}
	return v.followPath(f, path)
}

// fatFileRead copies bytes from the cursor onward. Returns the count
// delivered and EOK when the buffer filled, EEOF at a clean end of
// file, -EEOF when the chain ended early, or -EDISK.
func (v *FatVolume) fatFileRead(f *FatFile, buf []byte) (int, int) {
	if f.size == 0 {
		return 0, EEOF
	}

	n := 0
	for n < len(buf) {
		if f.fileOffset >= f.size {
			return n, EEOF
		}

		buf[n] = f.cache[f.offset]
		n++

		if err := v.incFilePtr(f, 1); err != EOK {
			// A chain that ends exactly at the file size is a
			// clean end of file, not corruption.
			if f.fileOffset >= f.size {
				if n < len(buf) {
					return n, EEOF
				}
				return n, EOK
			}
			return n, err
		}
	}
	return n, EOK
}
