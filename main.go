// main.go - Entry point for the Citrus Engine

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
main.go - Entry Point for the Citrus Engine

Boots the kernel on the emulated machine, attaches a disk image when
one is given, starts a pair of demonstration threads and drives the
run loop while draining the serial console to the terminal. The
-mkimg mode writes a demonstration FAT32 image instead of booting.
*/

package main

import (
	"flag"
	"fmt"
	"os"
)

func main() {
	var (
		imagePath   = flag.String("image", "", "disk image to attach")
		mkimgPath   = flag.String("mkimg", "", "write a demo FAT32 image and exit")
		ticks       = flag.Int("ticks", 5000, "scheduler periods to run")
		interactive = flag.Bool("interactive", false, "bridge the console to this terminal")
	)
	flag.Parse()

	if *mkimgPath != "" {
		if err := writeDemoImage(*mkimgPath); err != nil {
			fmt.Fprintf(os.Stderr, "mkimg: %v\n", err)
			os.Exit(1)
		}
		return
	}

	os.Exit(run(*imagePath, *ticks, *interactive))
}

func writeDemoImage(path string) error {
	b := NewFatImageBuilder("CITRUS")
	b.AddFile("boot/kernel.bin", []byte("not a real kernel\n"))
	b.AddFile("fonts/karla.ttf", demoTrueType())
	return os.WriteFile(path, b.Build(), 0o644)
}

// demoTrueType returns a minimal buffer opening with the TrueType
// header signature.
func demoTrueType() []byte {
	data := make([]byte, 256)
	copy(data, []byte{0x00, 0x01, 0x00, 0x00})
	return data
}

func run(imagePath string, ticks int, interactive bool) (exit int) {
	k := NewKernel()
	host := NewTerminalHost(k.Machine().UART)

	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(*KernelFault); ok {
				host.Flush()
				fmt.Fprintf(os.Stderr, "%v\nrebooting\n", f)
				exit = 1
				return
			}
			panic(r)
		}
	}()

	if interactive {
		if err := host.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		defer host.Stop()
	}

	if imagePath != "" {
		img, err := LoadImageDisk(imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		k.Disks().AddDisk(img, "sd")
	}

	// A worker that burns its slice and a logger that sleeps most of
	// the time.
	k.CreateKernelThread(func(k *Kernel, t *Thread) {
		k.ConsumeTime(200)
	}, 1024, "worker", 0, SCHED_FAIR)

	k.CreateKernelThread(func(k *Kernel, t *Thread) {
		k.Kprintf("[%d us] logger alive\n", k.KernelTick())
		k.Syscall(SYS_SLEEP, 100*1000, 0, 0, 0)
	}, 1024, "logger", 0, SCHED_FAIR)

	if p := k.Disks().Partition("sd", 0); p != nil {
		if f, err := p.OpenFile("/fonts/karla.ttf"); err == nil {
			var hdr [4]byte
			f.Read(hdr[:])
			k.Kprintf("karla.ttf: %d bytes, header %02x%02x%02x%02x\n",
				f.Size(), hdr[0], hdr[1], hdr[2], hdr[3])
		}
	}

	k.SchedStart()
	for i := 0; i < ticks; i++ {
		k.RunTicks(1)
		host.Flush()
	}
	host.Flush()
	return 0
}
