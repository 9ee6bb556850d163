// mtkflash: host-side driver for MediaTek-family BROM/preloader/DA
// flashing.
// Copyright (C) 2026
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mtkflash/internal/config"
	"mtkflash/internal/dafile"
	"mtkflash/internal/daprotocol"
	"mtkflash/internal/device"
	"mtkflash/internal/logging"
	"mtkflash/internal/port"
	"mtkflash/internal/statusapi"
	"mtkflash/internal/xflash"

	"github.com/vbauerster/mpb/v8"
)

var (
	daPath       = flag.String("da", "", "path to the vendor Download Agent container")
	command      = flag.String("cmd", "info", "operation: info | read-partition | write-partition | read-all | pgpt | peek | reboot | seccfg")
	partName     = flag.String("partition", "", "partition name for read-partition/write-partition")
	outputPath   = flag.String("out", "", "output file for read-partition/peek")
	inputPath    = flag.String("in", "", "input file for write-partition")
	usbVendorID  = flag.Uint("vid", 0, "override USB vendor ID")
	usbProductID = flag.Uint("pid", 0, "override USB product ID")
	statusAddr   = flag.String("status-addr", "", "if set, serve a read-only status API on this address (e.g. :8088)")

	readAllDir   = flag.String("out-dir", "", "output directory for read-all")
	skipParts    = flag.String("skip", "", "comma-separated partition names to skip for read-all")
	peekAddress  = flag.Uint64("address", 0, "memory address for peek")
	peekLength   = flag.Uint64("length", 0, "byte length for peek")
	rebootMode   = flag.String("mode", "normal", "reboot target: normal | home_screen | fastboot | meta | test")
	seccfgAction = flag.String("action", "", "seccfg action: lock | unlock")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "mtkflash:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.New(&logging.Config{Level: cfg.LogLevel, Output: cfg.LogOutput})
	if err != nil {
		return err
	}

	p, err := port.FindUSBDevice(uint16(*usbVendorID), uint16(*usbProductID))
	if err != nil {
		return fmt.Errorf("locate device: %w", err)
	}
	if err := p.Open(); err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer p.Close()

	dev := device.New(p, log)
	if err := dev.Init(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	log.Info("device initialized")

	if *statusAddr != "" {
		srv := statusapi.New(dev)
		go func() {
			if err := http.ListenAndServe(*statusAddr, srv.Handler()); err != nil {
				log.Warn("status API stopped: %v", err)
			}
		}()
	}

	ctx := context.Background()

	if *daPath != "" {
		if err := enterDAMode(ctx, dev, log, cfg.DACachePath); err != nil {
			return fmt.Errorf("enter DA mode: %w", err)
		}
	}

	return dispatch(ctx, dev)
}

func enterDAMode(ctx context.Context, dev *device.Device, log *logging.Logger, cachePath string) error {
	daData, err := os.ReadFile(*daPath)
	if err != nil {
		return fmt.Errorf("read DA file: %w", err)
	}

	if cache, err := dafile.OpenCache(cachePath); err == nil {
		defer cache.Close()
		if _, err := dafile.ParseCached(cache, daData); err != nil {
			log.Warn("DA cache warm-up failed: %v", err)
		}
	}

	factory := func(p port.Port) daprotocol.Protocol {
		return xflash.New(p, log)
	}
	return dev.EnterDAMode(ctx, daData, factory)
}

func dispatch(ctx context.Context, dev *device.Device) error {
	switch *command {
	case "read-partition":
		return readPartition(ctx, dev)
	case "write-partition":
		return writePartition(ctx, dev)
	case "read-all":
		return readAll(ctx, dev)
	case "pgpt":
		return printPartitionTable(dev)
	case "peek":
		return peek(ctx, dev)
	case "reboot":
		return reboot(ctx, dev)
	case "seccfg":
		return seccfg(ctx, dev)
	default:
		return nil
	}
}

// readAll bulk-reads every partition to -out-dir, matching
// original_source/tui/src/cli/commands/readall.rs.
func readAll(ctx context.Context, dev *device.Device) error {
	if *readAllDir == "" {
		return fmt.Errorf("read-all requires -out-dir")
	}
	if err := os.MkdirAll(*readAllDir, 0755); err != nil {
		return err
	}
	skip := make(map[string]bool)
	for _, name := range strings.Split(*skipParts, ",") {
		if name = strings.TrimSpace(name); name != "" {
			skip[name] = true
		}
	}
	return dev.ReadAllPartitions(ctx, skip, func(name string, data []byte) {
		path := filepath.Join(*readAllDir, name+".bin")
		if err := os.WriteFile(path, data, 0600); err != nil {
			fmt.Fprintln(os.Stderr, "mtkflash: write", path, err)
		}
	})
}

// printPartitionTable prints name/address/size, matching
// original_source/tui/src/cli/commands/pgpt.rs.
func printPartitionTable(dev *device.Device) error {
	for _, p := range dev.Partitions() {
		fmt.Printf("%-24s addr=0x%08X size=0x%08X (%d bytes)\n", p.Name, p.Address, p.Size, p.Size)
	}
	return nil
}

// peek dumps -length bytes at -address to -out, matching
// original_source/tui/src/cli/commands/peek.rs. Requires DA extensions
// to already be loaded.
func peek(ctx context.Context, dev *device.Device) error {
	if *outputPath == "" || *peekLength == 0 {
		return fmt.Errorf("peek requires -address, -length and -out")
	}
	data, err := dev.Peek(ctx, uint32(*peekAddress), uint32(*peekLength))
	if err != nil {
		return err
	}
	return os.WriteFile(*outputPath, data, 0600)
}

// reboot drives the device into -mode, matching
// original_source/tui/src/cli/commands/reboot.rs.
func reboot(ctx context.Context, dev *device.Device) error {
	mode, err := parseBootMode(*rebootMode)
	if err != nil {
		return err
	}
	return dev.Reboot(ctx, mode)
}

func parseBootMode(s string) (daprotocol.BootMode, error) {
	switch s {
	case "normal":
		return daprotocol.BootNormal, nil
	case "home_screen":
		return daprotocol.BootHomeScreen, nil
	case "fastboot":
		return daprotocol.BootFastboot, nil
	case "meta":
		return daprotocol.BootMeta, nil
	case "test":
		return daprotocol.BootTest, nil
	default:
		return 0, fmt.Errorf("unknown reboot mode %q", s)
	}
}

// seccfg locks or unlocks the device, matching
// original_source/tui/src/cli/commands/seccfg.rs. Requires DA
// extensions/an exploit to have granted write access to seccfg.
func seccfg(ctx context.Context, dev *device.Device) error {
	switch *seccfgAction {
	case "lock":
		return dev.SetSecCfgLockState(ctx, true)
	case "unlock":
		return dev.SetSecCfgLockState(ctx, false)
	default:
		return fmt.Errorf("seccfg requires -action lock|unlock")
	}
}

func readPartition(ctx context.Context, dev *device.Device) error {
	if *partName == "" || *outputPath == "" {
		return fmt.Errorf("read-partition requires -partition and -out")
	}
	part, ok := dev.FindPartition(*partName)
	if !ok {
		return fmt.Errorf("partition %q not found", *partName)
	}
	p := mpb.New(mpb.WithWidth(64))
	data, err := dev.ReadPartition(ctx, *partName, progressBar(p, *partName, part.Size))
	p.Wait()
	if err != nil {
		return err
	}
	return os.WriteFile(*outputPath, data, 0600)
}

func writePartition(ctx context.Context, dev *device.Device) error {
	if *partName == "" || *inputPath == "" {
		return fmt.Errorf("write-partition requires -partition and -in")
	}
	data, err := os.ReadFile(*inputPath)
	if err != nil {
		return err
	}
	p := mpb.New(mpb.WithWidth(64))
	err = dev.WritePartition(ctx, *partName, data, progressBar(p, *partName, uint64(len(data))))
	p.Wait()
	return err
}
