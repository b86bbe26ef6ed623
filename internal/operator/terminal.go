package operator

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// consolePrompt is written after every command response and every
// mirrored line, matching runtime.cpp's txHandler redraw.
const consolePrompt = "dbg> "

// TerminalOperator reads raw stdin a byte at a time, assembles lines, and
// dispatches each completed line to a CommandSink. Grounded on
// terminal_host.go's raw-mode + SetNonblock + 5ms poll-sleep loop. Run
// needs a real tty for term.MakeRaw and is not exercised by tests; the
// tests drive feed and Mirror directly.
type TerminalOperator struct {
	sink CommandSink
	out  io.Writer

	fd          int
	oldState    *term.State
	nonblockSet bool

	stopCh  chan struct{}
	done    chan struct{}
	stopped sync.Once

	outMu sync.Mutex
	line  []byte
}

// NewTerminal builds an operator that writes command responses to out.
func NewTerminal(sink CommandSink, out io.Writer) *TerminalOperator {
	return &TerminalOperator{
		sink:   sink,
		out:    out,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (t *TerminalOperator) Run(ctx context.Context) error {
	t.fd = int(os.Stdin.Fd())

	oldState, err := term.MakeRaw(t.fd)
	if err != nil {
		close(t.done)
		return fmt.Errorf("operator: set raw mode: %w", err)
	}
	t.oldState = oldState
	defer t.restore()

	if err := syscall.SetNonblock(t.fd, true); err != nil {
		close(t.done)
		return fmt.Errorf("operator: set nonblocking stdin: %w", err)
	}
	t.nonblockSet = true

	go func() {
		<-ctx.Done()
		t.stop()
	}()

	defer close(t.done)
	t.outMu.Lock()
	fmt.Fprint(t.out, consolePrompt)
	t.outMu.Unlock()

	buf := make([]byte, 1)
	for {
		select {
		case <-t.stopCh:
			return ctx.Err()
		default:
		}

		n, err := syscall.Read(t.fd, buf)
		if n > 0 {
			t.feed(buf[0])
		}
		switch {
		case err == syscall.EAGAIN || err == syscall.EWOULDBLOCK:
			time.Sleep(5 * time.Millisecond)
		case err != nil:
			return err
		case n == 0:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func (t *TerminalOperator) feed(b byte) {
	if b == '\r' {
		b = '\n'
	}
	if b == 0x7F {
		b = 0x08
	}
	t.outMu.Lock()
	switch b {
	case '\n':
		line := string(t.line)
		t.line = t.line[:0]
		fmt.Fprint(t.out, "\r\n")
		t.outMu.Unlock()
		t.dispatch(line)
		return
	case 0x08:
		if len(t.line) > 0 {
			t.line = t.line[:len(t.line)-1]
			fmt.Fprint(t.out, "\b \b")
		}
	default:
		t.line = append(t.line, b)
		fmt.Fprintf(t.out, "%c", b)
	}
	t.outMu.Unlock()
}

func (t *TerminalOperator) dispatch(line string) {
	line = strings.TrimSpace(line)
	t.outMu.Lock()
	if line != "" {
		if out := t.sink.Execute(line); out != "" {
			fmt.Fprintf(t.out, "%s\r\n", out)
		}
	}
	fmt.Fprint(t.out, consolePrompt)
	t.outMu.Unlock()
}

// Mirror echoes an asynchronous log line or UART TX flush into the
// console without disturbing the line the operator is mid-typing,
// grounded on runtime.cpp's txHandler: clear the current line, print the
// text, ensure a trailing newline, then redraw the prompt and whatever
// the user had typed so far. Satisfies spec 4.8 item 3 and is installed
// as the log sink's output handler only while this operator is running.
func (t *TerminalOperator) Mirror(line string) {
	if line == "" {
		return
	}
	t.outMu.Lock()
	defer t.outMu.Unlock()
	fmt.Fprint(t.out, "\r\n")
	fmt.Fprint(t.out, line)
	if !strings.HasSuffix(line, "\n") {
		fmt.Fprint(t.out, "\r\n")
	}
	fmt.Fprint(t.out, consolePrompt)
	t.out.Write(t.line)
}

func (t *TerminalOperator) stop() {
	t.stopped.Do(func() { close(t.stopCh) })
}

func (t *TerminalOperator) restore() {
	if t.nonblockSet {
		_ = syscall.SetNonblock(t.fd, false)
		t.nonblockSet = false
	}
	if t.oldState != nil {
		_ = term.Restore(t.fd, t.oldState)
		t.oldState = nil
	}
}

var _ Operator = (*TerminalOperator)(nil)
