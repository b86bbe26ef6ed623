// Package operator implements the controller's operator/input thread
// (spec 4.8 item 3): either an interactive terminal console that parses
// debugger commands, or a headless stdin pump that forwards raw bytes
// into the UART. Grounded on terminal_host.go's raw-mode, non-blocking,
// poll-and-sleep stdin reader.
package operator

import "context"

// CommandSink is the command dispatch surface the operator drives —
// satisfied by the debugger controller.
type CommandSink interface {
	Execute(line string) string
}

// ByteSink receives raw bytes destined for the emulated UART's RX path.
type ByteSink interface {
	PushRX(b byte)
}

// Operator is the thread loop the controller starts for console
// input. Run blocks until ctx is cancelled or the operator itself
// decides to exit (an "exit"/"quit" line).
type Operator interface {
	Run(ctx context.Context) error
}
