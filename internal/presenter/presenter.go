// Package presenter implements the controller's presenter thread
// contract (spec 4.8 item 2): poll the host for keyboard/quit events,
// deliver them into the framebuffer device's input queue, and render a
// frame when the controller decides a present is due. Two
// implementations exist: an ebiten-backed window for interactive use and
// a headless no-op for tests and CI, mirroring the teacher's
// video_backend_ebiten.go / video_backend_headless.go split — but
// selected by a config flag rather than a build tag, since both are pure
// Go and carry no cgo dependency either way.
package presenter

import "github.com/intuitionamiga/coreforge/internal/device"

// Presenter is the narrow interface the controller's presenter thread
// drives.
type Presenter interface {
	// Start begins the presenter's event loop (a no-op for the headless
	// implementation).
	Start() error
	// Stop tears the presenter down.
	Stop() error
	// PollQuit reports whether the host asked to close the window since
	// the last call.
	PollQuit() bool
	// Render marks the current frame as presented by clearing DIRTY. Pixel
	// upload is not part of Render: the ebiten implementation uploads on
	// every Draw, and the headless one has nothing to upload.
	Render() error
}

// New selects an implementation bound to fb: ebiten-backed unless
// headless is set.
func New(headless bool, fb *device.Framebuffer) Presenter {
	if headless {
		return NewHeadless(fb)
	}
	return NewEbiten(fb)
}
