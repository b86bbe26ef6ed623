package operator

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// HeadlessOperator forwards raw bytes from an input source into the
// emulated UART's RX path, line at a time, with no command parsing or
// echo — the stdin-pump mode spec 4.8 names as the non-interactive
// alternative to TerminalOperator. A line that is exactly "exit" or
// "quit" (case-insensitive, surrounding whitespace trimmed) dispatches
// to the CommandSink instead of the UART, satisfying spec 4.8's "in both
// modes, typing exit/quit sets should_exit" requirement without needing
// a full command grammar in this mode.
type HeadlessOperator struct {
	sink ByteSink
	cmds CommandSink
	in   io.Reader
}

// NewHeadless builds a stdin-pump operator reading from in.
func NewHeadless(sink ByteSink, cmds CommandSink, in io.Reader) *HeadlessOperator {
	return &HeadlessOperator{sink: sink, cmds: cmds, in: in}
}

func (h *HeadlessOperator) Run(ctx context.Context) error {
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(h.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-errs
			}
			h.handle(line)
		}
	}
}

func (h *HeadlessOperator) handle(line string) {
	trimmed := strings.TrimSpace(line)
	if lower := strings.ToLower(trimmed); lower == "exit" || lower == "quit" {
		h.cmds.Execute(trimmed)
		return
	}
	for i := 0; i < len(line); i++ {
		h.sink.PushRX(line[i])
	}
	h.sink.PushRX('\n')
}

var _ Operator = (*HeadlessOperator)(nil)
