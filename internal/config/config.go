// Package config defines the wiring-time configuration record and the
// rejection rules spec sections 4.10 and 6 require before the controller
// is allowed to start: ROM presence, region disjointness, and
// framebuffer size overflow are all checked here, once, before any
// device is instantiated.
package config

import (
	"fmt"
	"os"

	"github.com/intuitionamiga/coreforge/internal/bus"
)

const defaultCPUFrequencyHz = 1_000_000

// RunFlags mirrors spec 6's run-flag set: {debug, itrace, mtrace,
// bptrace, headless}.
type RunFlags struct {
	Debug    bool `toml:"debug"`
	ITrace   bool `toml:"itrace"`
	MTrace   bool `toml:"mtrace"`
	BPTrace  bool `toml:"bptrace"`
	Headless bool `toml:"headless"`
}

// Config is the full wiring-time configuration record (spec 4.10/6).
type Config struct {
	ROMPath string `toml:"rom_path"`
	ROMBase uint64 `toml:"rom_base"`

	RAMBase uint64 `toml:"ram_base"`
	RAMSize uint64 `toml:"ram_size"`

	UARTBase uint64 `toml:"uart_base"`
	UARTSize uint64 `toml:"uart_size"`

	TimerBase uint64 `toml:"timer_base"`
	TimerSize uint64 `toml:"timer_size"`

	FramebufferBase   uint64 `toml:"framebuffer_base"`
	FramebufferWidth  uint64 `toml:"framebuffer_width"`
	FramebufferHeight uint64 `toml:"framebuffer_height"`

	CPUFrequencyHz uint64 `toml:"cpu_frequency_hz"`

	Run RunFlags `toml:"run"`

	LogLevel    string `toml:"log_level"`
	LogFileBase string `toml:"log_file_base"`
	TraceFormat string `toml:"trace_format"`
}

// Default returns a Config with the CPU frequency defaulted (spec 6: "Hz,
// >0 or defaulted"), LogLevel "info", TraceFormat "text", and everything
// else zeroed; callers fill in paths and regions before calling Validate.
func Default() Config {
	return Config{CPUFrequencyHz: defaultCPUFrequencyHz, LogLevel: "info", TraceFormat: "text"}
}

// Validate applies the rejection rules from spec sections 4.10 and 6.
// Configuration errors are fatal at wiring time: the controller never
// starts on a non-nil error (spec 7).
func (c *Config) Validate() error {
	if c.CPUFrequencyHz == 0 {
		c.CPUFrequencyHz = defaultCPUFrequencyHz
	}

	if c.ROMPath == "" {
		return fmt.Errorf("config: ROM path is required")
	}
	info, err := os.Stat(c.ROMPath)
	if err != nil {
		return fmt.Errorf("config: ROM path %q: %w", c.ROMPath, err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("config: ROM file %q is empty", c.ROMPath)
	}

	if c.ROMBase != 0 {
		return fmt.Errorf("config: ROM base must be 0, got 0x%x", c.ROMBase)
	}

	if c.FramebufferWidth == 0 || c.FramebufferHeight == 0 {
		return fmt.Errorf("config: framebuffer width/height must be non-zero")
	}
	pixelBytes, overflowed := mulOverflows(c.FramebufferWidth, c.FramebufferHeight, 4)
	if overflowed {
		return fmt.Errorf("config: framebuffer width*height*4 overflows 64 bits")
	}
	fbControlRegion := uint64(4096)
	fbSize := fbControlRegion + pixelBytes
	if fbSize < pixelBytes {
		return fmt.Errorf("config: framebuffer control region + pixel size overflows 64 bits")
	}

	romSize := uint64(info.Size())
	regions := []bus.Region{
		{Base: c.ROMBase, Size: romSize, Name: "ROM"},
		{Base: c.RAMBase, Size: c.RAMSize, Name: "RAM"},
		{Base: c.UARTBase, Size: c.UARTSize, Name: "UART"},
		{Base: c.TimerBase, Size: c.TimerSize, Name: "TIMER"},
		{Base: c.FramebufferBase, Size: fbSize, Name: "FRAMEBUFFER"},
	}
	if err := bus.ValidateRegions(regions); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if _, ok := validLogLevels[c.LogLevel]; c.LogLevel != "" && !ok {
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}

	if _, ok := validTraceFormats[c.TraceFormat]; c.TraceFormat != "" && !ok {
		return fmt.Errorf("config: unknown trace format %q", c.TraceFormat)
	}

	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

var validTraceFormats = map[string]bool{"text": true, "json": true}

// mulOverflows reports a*b*c and whether that product overflowed 64 bits,
// computed by checking each pairwise multiplication for overflow.
func mulOverflows(a, b, c uint64) (uint64, bool) {
	ab := a * b
	if a != 0 && ab/a != b {
		return 0, true
	}
	abc := ab * c
	if ab != 0 && abc/ab != c {
		return 0, true
	}
	return abc, false
}
