// fat_image.go - FAT32 image builder for the Citrus Engine

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
fat_image.go - FAT32 Image Builder for the Citrus Engine

Builds complete MBR-partitioned FAT32 disk images: the boot record,
one partition with a canonical BPB, a FAT, and a directory tree with
long-name chains for anything the 8.3 form cannot carry verbatim.
Small fixed geometry — 512-byte sectors, one-sector clusters, 65536
data clusters — which is the smallest layout that still counts as
FAT32 by the cluster-count rule.

This is fixture tooling: the kernel's own tests mount these images,
and the -mkimg mode of the main binary writes them to disk files. The
allocator is a straight bump with no reuse, which a read path never
notices.
*/

package main

import "encoding/binary"

const (
	imgPartLBA   = 2048
	imgReserved  = 32
	imgClusters  = 65536
	imgFatSize   = (imgClusters + 2 + 127) / 128 // entries per sector: 128
	imgTotalSect = imgReserved + imgFatSize + imgClusters
	imgRootClust = 2
)

type imgNode struct {
	name     string
	isDir    bool
	deleted  bool
	data     []byte
	children []*imgNode

	clust    uint32 // first cluster once allocated
	clustCnt uint32
}

// FatImageBuilder assembles a directory tree and renders it as a
// bootable disk image.
type FatImageBuilder struct {
	label string
	root  *imgNode
}

func NewFatImageBuilder(label string) *FatImageBuilder {
	return &FatImageBuilder{
		label: label,
		root:  &imgNode{isDir: true},
	}
}

func (b *FatImageBuilder) lookupDir(path string) *imgNode {
	node := b.root
	pos := 0
	for {
		frag, next := nextPathFrag(path, pos)
		pos = next
		if frag == "" {
			return node
		}

		var child *imgNode
		for _, c := range node.children {
			if c.name == frag && c.isDir {
				child = c
				break
			}
		}
		if child == nil {
			child = &imgNode{name: frag, isDir: true}
			node.children = append(node.children, child)
		}
		node = child
	}
}

func splitDirFile(path string) (string, string) {
	last := -1
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			last = i
		}
	}
	if last < 0 {
		return "", path
	}
	return path[:last], path[last+1:]
}

// AddFile places file content at the slash path, creating parents.
func (b *FatImageBuilder) AddFile(path string, data []byte) {
	dir, name := splitDirFile(path)
	parent := b.lookupDir(dir)
	parent.children = append(parent.children, &imgNode{name: name, data: data})
}

// AddDir creates an empty directory at the slash path.
func (b *FatImageBuilder) AddDir(path string) {
	b.lookupDir(path)
}

// AddDeleted places a deleted-entry tombstone in the directory.
func (b *FatImageBuilder) AddDeleted(path string) {
	dir, name := splitDirFile(path)
	parent := b.lookupDir(dir)
	parent.children = append(parent.children, &imgNode{name: name, deleted: true})
}

// needsLfn reports whether the name survives the 8.3 form verbatim.
func needsLfn(name string) bool {
	var sfn [11]byte
	if !fileNameToSfn(name, &sfn) {
		return true
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' {
			return true
		}
	}
	return false
}

// shortNameFor derives the on-disk 8.3 bytes for a name, tilde-mangled
// when the straight form does not fit. Fixture grade: no collision
// numbering.
func shortNameFor(name string) [11]byte {
	var sfn [11]byte
	if fileNameToSfn(name, &sfn) {
		return sfn
	}

	for i := range sfn {
		sfn[i] = ' '
	}
	base := name
	ext := ""
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			base = name[:i]
			ext = name[i+1:]
			break
		}
	}
	n := 0
	for i := 0; i < len(base) && n < 6; i++ {
		c := fatToUpper(base[i])
		if !isSfnCharValid(c) || c == ' ' || c == '.' {
			continue
		}
		sfn[n] = c
		n++
	}
	sfn[n] = '~'
	sfn[n+1] = '1'
	for i := 0; i < len(ext) && i < 3; i++ {
		sfn[8+i] = fatToUpper(ext[i])
	}
	return sfn
}

// entryCount is the number of 32-byte slots a child occupies.
func entryCount(n *imgNode) uint32 {
	if n.deleted {
		return 1
	}
	if !needsLfn(n.name) {
		return 1
	}
	return 1 + uint32((len(n.name)+12)/13)
}

// dirSlots is the total entry count of a directory body.
func dirSlots(n *imgNode, isRoot bool, label string) uint32 {
	var cnt uint32
	if isRoot && label != "" {
		cnt++
	}
	if !isRoot {
		cnt += 2 // dot and dot-dot
	}
	for _, c := range n.children {
		cnt += entryCount(c)
	}
	return cnt
}

// Build renders the image.
func (b *FatImageBuilder) Build() []byte {
	img := make([]byte, (imgPartLBA+imgTotalSect)*SECTOR_SIZE)

	// Cluster allocation: bump pointer, root first.
	next := uint32(imgRootClust)
	alloc := func(n uint32) uint32 {
		c := next
		next += n
		return c
	}

	var assign func(n *imgNode, isRoot bool)
	assign = func(n *imgNode, isRoot bool) {
		if n.isDir {
			slots := dirSlots(n, isRoot, b.label)
			// Leave room for the 0x00 terminator.
			n.clustCnt = (slots*DIR_ENTRY_SIZE)/SECTOR_SIZE + 1
			n.clust = alloc(n.clustCnt)
			for _, c := range n.children {
				if !c.deleted {
					assign(c, false)
				}
			}
		} else {
			n.clustCnt = uint32(len(n.data)+SECTOR_SIZE-1) / SECTOR_SIZE
			if n.clustCnt == 0 {
				n.clustCnt = 1
			}
			n.clust = alloc(n.clustCnt)
		}
	}
	assign(b.root, true)

	b.writeMBR(img)
	b.writeBPB(img)
	b.writeFatHeader(img)

	var render func(n *imgNode, parent *imgNode, isRoot bool)
	render = func(n *imgNode, parent *imgNode, isRoot bool) {
		b.chainClusters(img, n.clust, n.clustCnt)
		if n.isDir {
			b.renderDir(img, n, parent, isRoot)
			for _, c := range n.children {
				if !c.deleted {
					render(c, n, false)
				}
			}
		} else {
			copy(img[b.clustOff(n.clust):], n.data)
		}
	}
	render(b.root, nil, true)

	return img
}

func (b *FatImageBuilder) clustOff(clust uint32) int {
	lba := imgPartLBA + imgReserved + imgFatSize + (clust - imgRootClust)
	return int(lba) * SECTOR_SIZE
}

func (b *FatImageBuilder) fatSet(img []byte, clust, val uint32) {
	off := (imgPartLBA+imgReserved)*SECTOR_SIZE + int(clust)*4
	binary.LittleEndian.PutUint32(img[off:], val)
}

func (b *FatImageBuilder) chainClusters(img []byte, first, cnt uint32) {
	for i := uint32(0); i < cnt; i++ {
		if i == cnt-1 {
			b.fatSet(img, first+i, 0x0FFFFFFF)
		} else {
			b.fatSet(img, first+i, first+i+1)
		}
	}
}

func (b *FatImageBuilder) writeMBR(img []byte) {
	e := img[mbrTableOffset:]
	e[0] = 0x00 // status
	e[4] = 0x0C // FAT32 LBA
	binary.LittleEndian.PutUint32(e[8:], imgPartLBA)
	binary.LittleEndian.PutUint32(e[12:], imgTotalSect)
	img[510] = 0x55
	img[511] = 0xAA
}

func (b *FatImageBuilder) writeBPB(img []byte) {
	s := img[imgPartLBA*SECTOR_SIZE:]

	s[0] = 0xEB
	s[1] = 0x58
	s[2] = 0x90
	copy(s[3:], "CITRUS  ")

	binary.LittleEndian.PutUint16(s[BPB_SECTOR_SIZE:], SECTOR_SIZE)
	s[BPB_CLUSTER_SIZE] = 1
	binary.LittleEndian.PutUint16(s[BPB_RSVD_CNT:], imgReserved)
	s[BPB_NUM_FATS] = 1
	binary.LittleEndian.PutUint16(s[BPB_ROOT_ENT_CNT:], 0)
	s[21] = 0xF8 // media
	binary.LittleEndian.PutUint32(s[BPB_TOT_SECT_32:], imgTotalSect)
	binary.LittleEndian.PutUint32(s[BPB_32_FAT_SIZE:], imgFatSize)
	binary.LittleEndian.PutUint32(s[BPB_32_ROOT_CLUST:], imgRootClust)
	binary.LittleEndian.PutUint16(s[BPB_32_FSINFO:], 1)
	s[66] = 0x29
	copy(s[71:], "NO NAME    ")
	copy(s[BPB_32_FSTYPE:], "FAT32   ")

	s[510] = 0x55
	s[511] = 0xAA

	// FS-info page.
	fi := img[(imgPartLBA+1)*SECTOR_SIZE:]
	copy(fi[0:], "RRaA")
	copy(fi[484:], "rrAa")
	fi[510] = 0x55
	fi[511] = 0xAA
}

func (b *FatImageBuilder) writeFatHeader(img []byte) {
	b.fatSet(img, 0, 0x0FFFFFF8)
	b.fatSet(img, 1, 0x0FFFFFFF)
}

// Timestamp stamped on every entry: 2026-03-14 09:26:52.
const (
	imgDate = (2026-1980)<<9 | 3<<5 | 14
	imgTime = 9<<11 | 26<<5 | 52/2
)

func writeSfnEntry(e []byte, sfn [11]byte, attr uint8, clust, size uint32) {
	copy(e[SFN_NAME:], sfn[:])
	e[SFN_ATTR] = attr
	binary.LittleEndian.PutUint16(e[SFN_CTIME:], imgTime)
	binary.LittleEndian.PutUint16(e[SFN_CDATE:], imgDate)
	binary.LittleEndian.PutUint16(e[SFN_ADATE:], imgDate)
	binary.LittleEndian.PutUint16(e[SFN_WTIME:], imgTime)
	binary.LittleEndian.PutUint16(e[SFN_WDATE:], imgDate)
	binary.LittleEndian.PutUint16(e[SFN_CLUSTH:], uint16(clust>>16))
	binary.LittleEndian.PutUint16(e[SFN_CLUSTL:], uint16(clust))
	binary.LittleEndian.PutUint32(e[SFN_FILE_SIZE:], size)
}

// writeLfnChain emits the long-name entries, highest sequence first.
func writeLfnChain(dst []byte, name string, crc uint8) int {
	cnt := (len(name) + 12) / 13

	for i := 0; i < cnt; i++ {
		seq := cnt - i
		e := dst[i*DIR_ENTRY_SIZE:]

		e[LFN_SEQ] = uint8(seq)
		if seq == cnt {
			e[LFN_SEQ] |= 1 << 6
		}
		e[LFN_ATTR] = ATTR_LFN
		e[LFN_TYPE] = 0
		e[LFN_CRC] = crc

		// Thirteen UCS-2 units at the three fixed slots, NUL
		// terminated then 0xFFFF filled.
		unit := 0
		for _, idx := range lfnIndex {
			for j := 0; j < idx.size; j++ {
				pos := (seq-1)*13 + unit
				off := idx.offset + j*2
				switch {
				case pos < len(name):
					e[off] = name[pos]
					e[off+1] = 0
				case pos == len(name):
					e[off] = 0
					e[off+1] = 0
				default:
					e[off] = 0xFF
					e[off+1] = 0xFF
				}
				unit++
			}
		}
	}
	return cnt * DIR_ENTRY_SIZE
}

func (b *FatImageBuilder) renderDir(img []byte, n, parent *imgNode, isRoot bool) {
	out := img[b.clustOff(n.clust):]
	pos := 0

	if isRoot && b.label != "" {
		var sfn [11]byte
		for i := range sfn {
			sfn[i] = ' '
		}
		copy(sfn[:], b.label)
		writeSfnEntry(out[pos:], sfn, ATTR_VOL_LABEL, 0, 0)
		pos += DIR_ENTRY_SIZE
	}

	if !isRoot {
		var dot [11]byte
		fatDotFileNameToSfn(".", &dot)
		writeSfnEntry(out[pos:], dot, ATTR_DIR, n.clust, 0)
		pos += DIR_ENTRY_SIZE

		parentClust := parent.clust
		if parentClust == imgRootClust {
			parentClust = 0
		}
		fatDotFileNameToSfn("..", &dot)
		writeSfnEntry(out[pos:], dot, ATTR_DIR, parentClust, 0)
		pos += DIR_ENTRY_SIZE
	}

	for _, c := range n.children {
		if c.deleted {
			sfn := shortNameFor(c.name)
			writeSfnEntry(out[pos:], sfn, ATTR_ARCH, 0, 0)
			out[pos] = 0xE5
			pos += DIR_ENTRY_SIZE
			continue
		}

		attr := uint8(ATTR_ARCH)
		size := uint32(len(c.data))
		if c.isDir {
			attr = ATTR_DIR
			size = 0
		}

		sfn := shortNameFor(c.name)
		if needsLfn(c.name) {
			pos += writeLfnChain(out[pos:], c.name, fatGetSfnCrc(sfn[:]))
		}
		writeSfnEntry(out[pos:], sfn, attr, c.clust, size)
		pos += DIR_ENTRY_SIZE
	}
}
