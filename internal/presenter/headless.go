package presenter

import "github.com/intuitionamiga/coreforge/internal/device"

// HeadlessPresenter satisfies Presenter without a window: Start/Stop are
// no-ops, PollQuit only reflects what something else pushed into fb via
// PushQuit (a test, for instance), and Render just clears DIRTY.
// Grounded on gui_frontend_headless.go / video_backend_headless.go's no-op-with-bookkeeping shape, collapsed
// into a single type since there's nothing here worth splitting into a
// separate GUI-frontend layer.
type HeadlessPresenter struct {
	fb         *device.Framebuffer
	frameCount uint64
}

func NewHeadless(fb *device.Framebuffer) *HeadlessPresenter {
	return &HeadlessPresenter{fb: fb}
}

func (h *HeadlessPresenter) Start() error { return nil }
func (h *HeadlessPresenter) Stop() error  { return nil }

func (h *HeadlessPresenter) PollQuit() bool {
	return h.fb.ConsumeQuit()
}

func (h *HeadlessPresenter) Render() error {
	h.frameCount++
	h.fb.ClearDirty()
	return nil
}

// FrameCount reports how many times Render has been called, useful for
// tests that want to assert the presenter was actually driven.
func (h *HeadlessPresenter) FrameCount() uint64 {
	return h.frameCount
}

var _ Presenter = (*HeadlessPresenter)(nil)
