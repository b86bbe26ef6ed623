package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	romPath := filepath.Join(dir, "rom.bin")
	if err := os.WriteFile(romPath, []byte{0x13, 0x00, 0x00, 0x00}, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := Default()
	cfg.ROMPath = romPath
	cfg.RAMBase, cfg.RAMSize = 0x1000, 0x1000
	cfg.UARTBase, cfg.UARTSize = 0x2000, 0x100
	cfg.TimerBase, cfg.TimerSize = 0x2100, 0x100
	cfg.FramebufferBase = 0x3000
	cfg.FramebufferWidth, cfg.FramebufferHeight = 96, 64
	return cfg
}

func TestValidConfigPasses(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestMissingROMPathRejected(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty ROM path")
	}
}

func TestMissingROMFileRejected(t *testing.T) {
	cfg := validConfig(t)
	cfg.ROMPath = filepath.Join(t.TempDir(), "nonexistent.bin")
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing ROM file")
	}
}

func TestEmptyROMFileRejected(t *testing.T) {
	dir := t.TempDir()
	romPath := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(romPath, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg := validConfig(t)
	cfg.ROMPath = romPath
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty ROM file")
	}
}

func TestNonZeroROMBaseRejected(t *testing.T) {
	cfg := validConfig(t)
	cfg.ROMBase = 0x100
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-zero ROM base")
	}
}

func TestZeroFramebufferDimensionsRejected(t *testing.T) {
	cfg := validConfig(t)
	cfg.FramebufferWidth = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero framebuffer width")
	}
}

func TestOverlappingRegionsRejected(t *testing.T) {
	cfg := validConfig(t)
	cfg.UARTBase = cfg.RAMBase
	cfg.UARTSize = cfg.RAMSize
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for overlapping RAM/UART regions")
	}
}

func TestDefaultedCPUFrequency(t *testing.T) {
	cfg := validConfig(t)
	cfg.CPUFrequencyHz = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.CPUFrequencyHz == 0 {
		t.Fatal("CPU frequency was not defaulted")
	}
}

func TestUnknownLogLevelRejected(t *testing.T) {
	cfg := validConfig(t)
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
}
