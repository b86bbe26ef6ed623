package debugger

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intuitionamiga/coreforge/internal/logsink"
	"github.com/intuitionamiga/coreforge/internal/operator"
)

// cycleBurstCeiling computes the cycles-per-burst ceiling: the minimum
// sync threshold among devices with a declared frequency (spec 4.8
// "Burst sizing"), or cpu_frequency_hz/60 if none declare one.
func (c *Controller) cycleBurstCeiling() uint64 {
	min := uint64(0)
	for _, d := range c.bus.Devices() {
		freq := d.UpdateFrequencyHz()
		if freq == 0 {
			continue
		}
		threshold := c.cpuFreqHz / freq
		if threshold < 1 {
			threshold = 1
		}
		if min == 0 || threshold < min {
			min = threshold
		}
	}
	if min == 0 {
		min = c.cpuFreqHz / presentIntervalDefault
		if min < 1 {
			min = 1
		}
	}
	return min
}

// consoleMirror is satisfied by operators that can echo asynchronous
// output — log lines and UART TX flushes — into their own console (spec
// 4.8 item 3's "mirrors log lines and UART bytes into a virtual
// console"), grounded on runtime.cpp's txHandler. HeadlessOperator has
// no console and doesn't implement it, so the handler is only installed
// for an interactive terminal run.
type consoleMirror interface {
	Mirror(line string)
}

// Run starts the CPU worker, presenter, and operator threads and blocks
// until should_exit fires or one of them returns an error (spec 4.8).
func (c *Controller) Run(parent context.Context, op operator.Operator) error {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	if m, ok := op.(consoleMirror); ok {
		c.log.SetOutputHandler(m.Mirror)
		defer c.log.SetOutputHandler(nil)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.cpuWorkerLoop(gctx)
		return nil
	})
	if c.presenter != nil {
		g.Go(func() error {
			return c.presenterLoop(gctx)
		})
	}
	if op != nil {
		g.Go(func() error {
			err := op.Run(gctx)
			c.requestExit()
			return err
		})
	}
	go func() {
		<-gctx.Done()
		c.requestExit()
	}()
	return g.Wait()
}

// cpuWorkerLoop implements spec 4.8 item 1: wait for Running, a positive
// steps_pending, or should_exit; compute a burst; step; sync devices;
// transition on failure or step completion.
func (c *Controller) cpuWorkerLoop(ctx context.Context) {
	for {
		c.mu.Lock()
		for c.state != Running && c.steps == 0 && !c.shouldExit.Load() {
			c.cond.Wait()
		}
		if c.shouldExit.Load() {
			c.mu.Unlock()
			return
		}
		stepping := c.steps > 0
		pending := c.steps
		if stepping {
			c.state = Running
		}
		c.mu.Unlock()

		maxInst := uint64(burstInstructionCeiling)
		if stepping && uint64(pending) < maxInst {
			maxInst = uint64(pending)
		}
		maxCycles := c.cycleBurstCeiling()

		if stepping {
			c.suppressBreakpointAt(c.exec.PC())
		}
		result := c.exec.Step(maxInst, maxCycles)
		if stepping {
			c.clearBreakpointSuppression()
		}

		c.bus.SyncAll(c.exec.Cycle())

		c.statusMu.Lock()
		c.totalInsts += result.InstructionsExecuted
		c.statusMu.Unlock()
		c.updateCPS()

		if !result.Success {
			errRec := c.exec.LastError()
			c.log.Write(logsink.LevelError, "", 0, "halt at PC=0x%x kind=%s", errRec.PC, errRec.Kind)
			c.mu.Lock()
			c.steps = 0
			c.mu.Unlock()
			c.setState(Halted)
			continue
		}

		if stepping {
			c.mu.Lock()
			if result.InstructionsExecuted >= uint64(c.steps) {
				c.steps = 0
			} else {
				c.steps -= uint32(result.InstructionsExecuted)
			}
			if c.steps == 0 {
				c.state = Pause
			}
			c.mu.Unlock()
		}

		// A burst that stops with PC sitting on a breakpoint (testable
		// property 8) pauses regardless of whether it was a run or a
		// step, and regardless of how many instructions retired before
		// the boundary was hit.
		if c.HasBreakpoints() && c.IsBreakpoint(c.exec.PC()) {
			c.mu.Lock()
			c.steps = 0
			c.mu.Unlock()
			c.setState(Pause)
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

// updateCPS recomputes the cycles-per-second estimate at most every 30ms
// (spec 4.8 item 1).
func (c *Controller) updateCPS() {
	now := time.Now()
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	if c.lastSnapTime.IsZero() {
		c.lastSnapTime = now
		c.lastSnapCyc = c.exec.Cycle()
		return
	}
	elapsed := now.Sub(c.lastSnapTime)
	if elapsed < 30*time.Millisecond {
		return
	}
	cyc := c.exec.Cycle()
	delta := cyc - c.lastSnapCyc
	c.cps = float64(delta) / elapsed.Seconds()
	c.lastSnapTime = now
	c.lastSnapCyc = cyc
}

// presenterLoop implements spec 4.8 item 2: poll for host events with a
// small timeout, honor quit, and render on a consumed present request or
// DIRTY aging past the present interval.
func (c *Controller) presenterLoop(ctx context.Context) error {
	const idleTimeout = 8 * time.Millisecond
	const presentInterval = time.Second / presentIntervalDefault

	if err := c.presenter.Start(); err != nil {
		return err
	}
	defer c.presenter.Stop()

	lastRender := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if c.presenter.PollQuit() {
			c.fb.PushQuit()
			c.requestExit()
			return nil
		}

		present := c.fb.ConsumePresentRequest()
		dirty := c.fb.IsDirty()
		aged := time.Since(lastRender) >= presentInterval
		if present || (dirty && aged) {
			if err := c.presenter.Render(); err != nil {
				return err
			}
			lastRender = time.Now()
			continue
		}

		sleep := idleTimeout
		if dirty {
			sleep = 0
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}
