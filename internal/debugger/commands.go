package debugger

import (
	"fmt"
	"strings"

	"github.com/intuitionamiga/coreforge/internal/eval"
	"github.com/intuitionamiga/coreforge/internal/logsink"
)

// memReader adapts Controller's bus access into eval.MemoryReader.
type memReader struct{ c *Controller }

func (r memReader) ReadWord(addr uint64) (uint64, bool) {
	resp := r.c.BusRead(addr, 4)
	return resp.Data, resp.Success
}

// Execute dispatches one command line (spec 4.8's command table) and
// returns the text to print, or "" when there is nothing to print.
// Execute is the CommandSink interface internal/operator drives.
func (c *Controller) Execute(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	c.statusMu.Lock()
	c.lastCommand = verb
	c.statusMu.Unlock()

	switch verb {
	case "run":
		return c.cmdRun()
	case "step":
		return c.cmdStep(args)
	case "pause":
		c.setState(Pause)
		return ""
	case "quit", "exit":
		c.requestExit()
		return ""
	case "regs":
		return c.cmdRegs()
	case "mem":
		return c.cmdMem(args)
	case "eval":
		return c.cmdEval(args)
	case "bp":
		return c.cmdBreakpoint(args)
	case "log":
		return c.cmdLog(args)
	case "help":
		return cmdHelp()
	default:
		return "Unknown command"
	}
}

func (c *Controller) cmdRun() string {
	if c.State() == Halted {
		return "CPU is halted. Cannot run/step."
	}
	c.setState(Running)
	return ""
}

func (c *Controller) cmdStep(args []string) string {
	if c.State() == Halted {
		return "CPU is halted. Cannot run/step."
	}
	n := uint64(1)
	if len(args) > 0 {
		n = eval.Eval(strings.Join(args, " "), c.exec, memReader{c})
		if n == 0 {
			n = 1
		}
	}
	c.mu.Lock()
	c.steps += uint32(n)
	c.state = Running
	c.mu.Unlock()
	c.cond.Broadcast()
	return ""
}

func (c *Controller) cmdRegs() string {
	var b strings.Builder
	for i := 0; i < c.exec.RegisterCount(); i++ {
		fmt.Fprintf(&b, "r%-3d 0x%016x\n", i, c.exec.Register(i))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (c *Controller) cmdMem(args []string) string {
	if len(args) < 2 {
		return "usage: mem <addr-expr> <len-expr>"
	}
	addr := eval.Eval(args[0], c.exec, memReader{c})
	length := eval.Eval(args[1], c.exec, memReader{c})

	var b strings.Builder
	for off := uint64(0); off < length; off += 16 {
		fmt.Fprintf(&b, "%08x: ", addr+off)
		for j := uint64(0); j < 16 && off+j < length; j++ {
			resp := c.BusRead(addr+off+j, 1)
			fmt.Fprintf(&b, "%02x ", byte(resp.Data))
		}
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (c *Controller) cmdEval(args []string) string {
	v := eval.Eval(strings.Join(args, " "), c.exec, memReader{c})
	return fmt.Sprintf("0x%x (%d)", v, v)
}

func (c *Controller) cmdBreakpoint(args []string) string {
	if len(args) == 0 {
		return "usage: bp <list|add|del> [addr-expr]"
	}
	switch args[0] {
	case "list":
		c.bpMu.Lock()
		defer c.bpMu.Unlock()
		if len(c.bps) == 0 {
			return "no breakpoints"
		}
		var b strings.Builder
		for addr := range c.bps {
			fmt.Fprintf(&b, "0x%x\n", addr)
		}
		return strings.TrimSuffix(b.String(), "\n")
	case "add":
		if len(args) < 2 {
			return "usage: bp add <addr-expr>"
		}
		addr := eval.Eval(args[1], c.exec, memReader{c})
		c.bpMu.Lock()
		c.bps[addr] = true
		c.bpMu.Unlock()
		return fmt.Sprintf("breakpoint set at 0x%x", addr)
	case "del":
		if len(args) < 2 {
			return "usage: bp del <addr-expr>"
		}
		addr := eval.Eval(args[1], c.exec, memReader{c})
		c.bpMu.Lock()
		delete(c.bps, addr)
		c.bpMu.Unlock()
		return fmt.Sprintf("breakpoint removed at 0x%x", addr)
	default:
		return "usage: bp <list|add|del> [addr-expr]"
	}
}

func (c *Controller) cmdLog(args []string) string {
	if len(args) == 0 {
		return "usage: log <trace|debug|info|warn|error>"
	}
	level, ok := logsink.ParseLevel(strings.ToLower(args[0]))
	if !ok {
		return fmt.Sprintf("unknown log level: %s", args[0])
	}
	c.log.SetLevel(level)
	return fmt.Sprintf("log level set to %s", level)
}

func cmdHelp() string {
	lines := []string{
		"run              - resume execution",
		"step [n]         - execute n instructions (default 1)",
		"pause            - suspend execution",
		"quit, exit       - shut down",
		"regs             - print all registers",
		"mem <a> <n>      - dump n bytes starting at a",
		"eval <expr>      - evaluate an expression",
		"bp list          - list breakpoints",
		"bp add <addr>    - add a breakpoint",
		"bp del <addr>    - remove a breakpoint",
		"log <level>      - set log level",
		"help             - show this text",
	}
	return strings.Join(lines, "\n")
}
