// Package wiring implements spec 4.10: given a validated configuration,
// build the bus, instantiate and register every built-in device, wire
// the CPU executor and controller together, and hand back a ready-to-run
// Machine. Grounded on debug_commands.go's monitor-attach sequencing
// (attach the debug adapter, then reset, then run) generalized into the
// spec's numbered wiring steps.
package wiring

import (
	"fmt"
	"os"

	"github.com/intuitionamiga/coreforge/internal/bus"
	"github.com/intuitionamiga/coreforge/internal/config"
	"github.com/intuitionamiga/coreforge/internal/cpu"
	"github.com/intuitionamiga/coreforge/internal/cpu/refcpu"
	"github.com/intuitionamiga/coreforge/internal/debugger"
	"github.com/intuitionamiga/coreforge/internal/device"
	"github.com/intuitionamiga/coreforge/internal/logsink"
	"github.com/intuitionamiga/coreforge/internal/presenter"
	"github.com/intuitionamiga/coreforge/internal/trace"
)

// Machine is a fully wired instance, ready for Controller.Run.
type Machine struct {
	Bus        *bus.Bus
	Exec       cpu.Executor
	UART       *device.UART
	Timer      *device.Timer
	FB         *device.Framebuffer
	Presenter  presenter.Presenter
	Controller *debugger.Controller
	Log        *logsink.Sink
}

// Build validates cfg and performs spec 4.10's seven wiring steps,
// returning a Machine with its CPU reset and PC at ROM base, ready for
// the caller to start threads via Controller.Run.
func Build(cfg *config.Config, log *logsink.Sink) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	level, ok := logsink.ParseLevel(cfg.LogLevel)
	if !ok {
		level = logsink.LevelInfo
	}
	log.SetLevel(level)

	st, err := os.Stat(cfg.ROMPath)
	if err != nil {
		return nil, fmt.Errorf("wiring: ROM path %q: %w", cfg.ROMPath, err)
	}
	romInfo := uint64(st.Size())

	b := bus.New()

	rom := device.NewROM("rom", romInfo)
	if err := rom.LoadImage(cfg.ROMPath, 0); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}
	if err := b.Register(rom, cfg.ROMBase, romInfo, "ROM"); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	ram := device.NewRAM("ram", cfg.RAMSize)
	if err := b.Register(ram, cfg.RAMBase, cfg.RAMSize, "RAM"); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	uartLog := logsink.DeviceChannel{Sink: log}
	uart := device.NewUART(uartLog)
	if err := b.Register(uart, cfg.UARTBase, cfg.UARTSize, "UART"); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	timer := device.NewTimer()
	if err := b.Register(timer, cfg.TimerBase, cfg.TimerSize, "TIMER"); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	fb := device.NewFramebuffer(cfg.FramebufferWidth, cfg.FramebufferHeight)
	if err := b.Register(fb, cfg.FramebufferBase, fb.Size(), "FRAMEBUFFER"); err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	exec := refcpu.New()
	pres := presenter.New(cfg.Run.Headless, fb)

	interactive := cfg.Run.Debug
	ctrl := debugger.New(b, exec, fb, pres, log, cfg.CPUFrequencyHz, interactive)
	ctrl.SetTraceOptions(trace.Options{
		LogInstruction:      cfg.Run.ITrace,
		LogMemEvents:        cfg.Run.MTrace,
		LogBranchPrediction: cfg.Run.BPTrace,
	})
	if cfg.TraceFormat == "json" {
		ctrl.SetFormatter(trace.JSONFormatter{})
	}

	exec.Reset()
	exec.SetPC(cfg.ROMBase)

	return &Machine{
		Bus:        b,
		Exec:       exec,
		UART:       uart,
		Timer:      timer,
		FB:         fb,
		Presenter:  pres,
		Controller: ctrl,
		Log:        log,
	}, nil
}
