// disk_image.go - Host image file disk backend for the Citrus Engine

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

// A block device serving 512-byte sectors out of a byte slice, with a
// loader for host image files. Reads past the end of a short image
// come back zero-filled, the way a real card returns erased sectors.

package main

import (
	"fmt"
	"os"
)

type ImageDisk struct {
	data []byte
}

// NewImageDisk wraps an in-memory image.
func NewImageDisk(data []byte) *ImageDisk {
	return &ImageDisk{data: data}
}

// LoadImageDisk reads a disk image from the host filesystem.
func LoadImageDisk(path string) (*ImageDisk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("disk image: %w", err)
	}
	return &ImageDisk{data: data}, nil
}

// Read implements DiskOps.
func (d *ImageDisk) Read(lba uint32, count uint32, buf []byte) bool {
	need := int(count) * SECTOR_SIZE
	if len(buf) < need {
		return false
	}

	off := int(lba) * SECTOR_SIZE
	for i := 0; i < need; i++ {
		if off+i < len(d.data) {
			buf[i] = d.data[off+i]
		} else {
			buf[i] = 0
		}
	}
	return true
}

// Sectors reports the image size in sectors.
func (d *ImageDisk) Sectors() uint32 {
	return uint32((len(d.data) + SECTOR_SIZE - 1) / SECTOR_SIZE)
}
