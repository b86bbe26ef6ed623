// Command coreforge wires a machine from a ROM and an optional TOML
// config overlay, then runs it to completion or to an interactive
// debugger session, following spec section 6/7's exit-code convention:
// 0 when the CPU terminated on its own halt instruction or was quit by
// the operator, non-zero when wiring failed or the CPU's last error is
// an actual fault.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/alecthomas/kong"

	"github.com/intuitionamiga/coreforge/internal/bus"
	"github.com/intuitionamiga/coreforge/internal/config"
	"github.com/intuitionamiga/coreforge/internal/logsink"
	"github.com/intuitionamiga/coreforge/internal/operator"
	"github.com/intuitionamiga/coreforge/internal/trace"
	"github.com/intuitionamiga/coreforge/internal/wiring"
)

// CLI is the flag surface kong parses. An optional --config file is
// decoded first and then overridden by any flag the user actually
// passed, matching the ambient stack's "overlay, then flag overrides"
// ordering.
type CLI struct {
	ROM    string `arg:"" name:"rom" help:"Path to the ROM image to load." type:"existingfile" required:"true"`
	Config string `name:"config" help:"Optional TOML configuration overlay." type:"path"`

	RAMBase  uint64 `name:"ram-base" help:"RAM base address." default:"65536"`
	RAMSize  uint64 `name:"ram-size" help:"RAM size in bytes." default:"65536"`
	UARTBase uint64 `name:"uart-base" help:"UART base address." default:"131072"`
	UARTSize uint64 `name:"uart-size" help:"UART register region size." default:"16"`

	TimerBase uint64 `name:"timer-base" help:"Timer base address." default:"131088"`
	TimerSize uint64 `name:"timer-size" help:"Timer register region size." default:"16"`

	FramebufferBase   uint64 `name:"fb-base" help:"Framebuffer base address." default:"262144"`
	FramebufferWidth  uint64 `name:"fb-width" help:"Framebuffer width in pixels." default:"320"`
	FramebufferHeight uint64 `name:"fb-height" help:"Framebuffer height in pixels." default:"240"`

	CPUFrequencyHz uint64 `name:"cpu-hz" help:"Nominal CPU frequency in Hz." default:"1000000"`

	Debug    bool `name:"debug" help:"Start paused under the interactive terminal console."`
	ITrace   bool `name:"itrace" help:"Enable instruction trace logging."`
	MTrace   bool `name:"mtrace" help:"Enable memory-event trace logging."`
	BPTrace  bool `name:"bptrace" help:"Enable branch-prediction trace logging."`
	Headless bool `name:"headless" help:"Run without an interactive window or terminal console."`

	LogLevel    string `name:"log-level" help:"trace|debug|info|warn|error" default:"info"`
	LogFile     string `name:"log-file" help:"Path to write logs to, instead of the default stream." type:"path"`
	TraceFormat string `name:"trace-format" help:"text|json" default:"text"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("coreforge"),
		kong.Description("Run a ROM image against the core execution engine."),
		kong.UsageOnError())
	if err != nil {
		fmt.Fprintln(os.Stderr, "coreforge:", err)
		return 1
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, "coreforge:", err)
		return 1
	}

	cfg := config.Default()
	if cli.Config != "" {
		if _, err := toml.DecodeFile(cli.Config, &cfg); err != nil {
			fmt.Fprintln(os.Stderr, "coreforge: config overlay:", err)
			return 1
		}
	}
	applyFlags(&cfg, &cli, explicitLongFlags(args))

	log := logsink.New()
	if cfg.LogFileBase != "" {
		f, err := os.OpenFile(cfg.LogFileBase, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "coreforge: log file:", err)
			return 1
		}
		defer f.Close()
		log.SetOutput(f)
	}

	m, err := wiring.Build(&cfg, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "coreforge:", err)
		return 1
	}

	var op operator.Operator
	if cfg.Run.Headless {
		op = operator.NewHeadless(m.UART, m.Controller, os.Stdin)
	} else {
		op = operator.NewTerminal(m.Controller, os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := m.Controller.Run(ctx, op); err != nil {
		fmt.Fprintln(os.Stderr, "coreforge:", err)
		return 1
	}

	return exitCode(m)
}

// applyFlags overlays cli onto cfg. The ROM path is always taken from
// cli (it's a required positional argument, never set by a TOML
// overlay). Every other field is only copied when set reports the user
// actually passed that flag — otherwise kong's own `default:` value
// would silently clobber whatever a --config overlay just decoded,
// since kong resolves every unset flag to its default before this ever
// runs.
func applyFlags(cfg *config.Config, cli *CLI, set map[string]bool) {
	cfg.ROMPath = cli.ROM
	if set["ram-base"] {
		cfg.RAMBase = cli.RAMBase
	}
	if set["ram-size"] {
		cfg.RAMSize = cli.RAMSize
	}
	if set["uart-base"] {
		cfg.UARTBase = cli.UARTBase
	}
	if set["uart-size"] {
		cfg.UARTSize = cli.UARTSize
	}
	if set["timer-base"] {
		cfg.TimerBase = cli.TimerBase
	}
	if set["timer-size"] {
		cfg.TimerSize = cli.TimerSize
	}
	if set["fb-base"] {
		cfg.FramebufferBase = cli.FramebufferBase
	}
	if set["fb-width"] {
		cfg.FramebufferWidth = cli.FramebufferWidth
	}
	if set["fb-height"] {
		cfg.FramebufferHeight = cli.FramebufferHeight
	}
	if set["cpu-hz"] {
		cfg.CPUFrequencyHz = cli.CPUFrequencyHz
	}
	if set["debug"] {
		cfg.Run.Debug = cli.Debug
	}
	if set["itrace"] {
		cfg.Run.ITrace = cli.ITrace
	}
	if set["mtrace"] {
		cfg.Run.MTrace = cli.MTrace
	}
	if set["bptrace"] {
		cfg.Run.BPTrace = cli.BPTrace
	}
	if set["headless"] {
		cfg.Run.Headless = cli.Headless
	}
	if set["log-level"] {
		cfg.LogLevel = cli.LogLevel
	}
	if set["log-file"] {
		cfg.LogFileBase = cli.LogFile
	}
	if set["trace-format"] {
		cfg.TraceFormat = cli.TraceFormat
	}

	// A fresh Default() config has none of these region/frequency fields
	// populated (only CPUFrequencyHz, LogLevel and TraceFormat are); when neither a
	// --config overlay nor an explicit flag supplied a value, fall back
	// to the same defaults the flags advertise in their help text so an
	// overlay-free, flag-free run still wires a sane machine.
	if cfg.RAMBase == 0 && cfg.RAMSize == 0 && !set["ram-base"] && !set["ram-size"] {
		cfg.RAMBase, cfg.RAMSize = cli.RAMBase, cli.RAMSize
	}
	if cfg.UARTBase == 0 && cfg.UARTSize == 0 && !set["uart-base"] && !set["uart-size"] {
		cfg.UARTBase, cfg.UARTSize = cli.UARTBase, cli.UARTSize
	}
	if cfg.TimerBase == 0 && cfg.TimerSize == 0 && !set["timer-base"] && !set["timer-size"] {
		cfg.TimerBase, cfg.TimerSize = cli.TimerBase, cli.TimerSize
	}
	if cfg.FramebufferBase == 0 && cfg.FramebufferWidth == 0 && !set["fb-base"] && !set["fb-width"] {
		cfg.FramebufferBase = cli.FramebufferBase
		cfg.FramebufferWidth, cfg.FramebufferHeight = cli.FramebufferWidth, cli.FramebufferHeight
	}
}

// explicitLongFlags scans the raw argument list for every --name token
// the user actually typed (in either --name=value or --name value
// form), independent of kong's own default resolution.
func explicitLongFlags(args []string) map[string]bool {
	set := make(map[string]bool)
	for _, a := range args {
		if !strings.HasPrefix(a, "--") {
			continue
		}
		name := strings.TrimPrefix(a, "--")
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		set[name] = true
	}
	return set
}

// exitCode implements spec section 6/7: 0 when the CPU never ran into a
// real fault (either still runnable, or stopped on its own halt
// instruction), non-zero when the last recorded error is an actual
// access/decode fault.
func exitCode(m *wiring.Machine) int {
	switch m.Exec.LastError().Kind {
	case bus.ErrNone, bus.ErrHalt:
		return 0
	default:
		return 1
	}
}
