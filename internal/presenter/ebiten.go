package presenter

import (
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/intuitionamiga/coreforge/internal/device"
)

// EbitenPresenter hosts a live window backed by ebiten, forwarding
// keyboard and close events into a Framebuffer's input queue and
// uploading its pixel buffer each frame. Grounded on
// video_backend_ebiten.go's EbitenOutput: same Start-in-a-goroutine plus
// vsyncChan handshake, same AppendInputChars/IsKeyJustPressed input
// path, same WritePixels-on-Draw upload — adapted to push bytes into
// fb.PushKey/fb.PushQuit rather than calling a keyHandler callback.
type EbitenPresenter struct {
	fb *device.Framebuffer

	mu      sync.RWMutex
	window  *ebiten.Image
	width   int
	height  int
	running atomic.Bool
	quit    atomic.Bool

	vsyncChan chan struct{}
}

// NewEbiten constructs a presenter bound to fb. fb's pixel dimensions
// are fixed at wiring time and read once here.
func NewEbiten(fb *device.Framebuffer) *EbitenPresenter {
	w, h := fb.Dimensions()
	return &EbitenPresenter{
		fb:        fb,
		width:     int(w),
		height:    int(h),
		vsyncChan: make(chan struct{}, 1),
	}
}

func (e *EbitenPresenter) Start() error {
	if e.running.Load() {
		return nil
	}
	e.running.Store(true)
	ebiten.SetWindowSize(e.width, e.height)
	ebiten.SetWindowTitle("coreforge")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetVsyncEnabled(true)

	go func() {
		defer e.running.Store(false)
		if err := ebiten.RunGame(e); err != nil {
			e.quit.Store(true)
		}
	}()

	<-e.vsyncChan
	return nil
}

func (e *EbitenPresenter) Stop() error {
	e.running.Store(false)
	return nil
}

func (e *EbitenPresenter) PollQuit() bool {
	return e.quit.Load()
}

func (e *EbitenPresenter) Render() error {
	e.fb.ClearDirty()
	return nil
}

// Update implements ebiten.Game: it detects window close, forwards host
// key input into fb, and otherwise no-ops — the CPU/controller threads
// own all emulated state, this struct only relays events.
func (e *EbitenPresenter) Update() error {
	if ebiten.IsWindowBeingClosed() {
		e.fb.PushQuit()
		e.quit.Store(true)
		return ebiten.Termination
	}
	if !e.running.Load() {
		return ebiten.Termination
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		if r > 0 && r <= 0xFF {
			e.fb.PushKey(byte(r))
		}
	}
	for _, key := range specialKeys {
		if inpututil.IsKeyJustPressed(key) {
			if seq, ok := translateSpecialKey(key); ok {
				for _, b := range seq {
					e.fb.PushKey(b)
				}
			}
		}
	}
	return nil
}

// Draw implements ebiten.Game: it uploads the framebuffer's current
// pixels every frame, independent of the controller's DIRTY/present
// bookkeeping, since ebiten drives its own refresh cadence.
func (e *EbitenPresenter) Draw(screen *ebiten.Image) {
	e.mu.Lock()
	if e.window == nil {
		e.window = ebiten.NewImage(e.width, e.height)
	}
	e.window.WritePixels(e.fb.Pixels())
	e.mu.Unlock()

	screen.DrawImage(e.window, nil)

	select {
	case e.vsyncChan <- struct{}{}:
	default:
	}
}

func (e *EbitenPresenter) Layout(_, _ int) (int, int) {
	return e.width, e.height
}

var specialKeys = []ebiten.Key{
	ebiten.KeyEnter,
	ebiten.KeyNumpadEnter,
	ebiten.KeyBackspace,
	ebiten.KeyTab,
	ebiten.KeyEscape,
	ebiten.KeyArrowUp,
	ebiten.KeyArrowDown,
	ebiten.KeyArrowRight,
	ebiten.KeyArrowLeft,
	ebiten.KeyHome,
	ebiten.KeyEnd,
	ebiten.KeyDelete,
}

func translateSpecialKey(key ebiten.Key) ([]byte, bool) {
	switch key {
	case ebiten.KeyEnter, ebiten.KeyNumpadEnter:
		return []byte{'\n'}, true
	case ebiten.KeyBackspace:
		return []byte{'\b'}, true
	case ebiten.KeyTab:
		return []byte{'\t'}, true
	case ebiten.KeyEscape:
		return []byte{0x1B}, true
	case ebiten.KeyArrowUp:
		return []byte{0x1B, '[', 'A'}, true
	case ebiten.KeyArrowDown:
		return []byte{0x1B, '[', 'B'}, true
	case ebiten.KeyArrowRight:
		return []byte{0x1B, '[', 'C'}, true
	case ebiten.KeyArrowLeft:
		return []byte{0x1B, '[', 'D'}, true
	case ebiten.KeyHome:
		return []byte{0x1B, '[', 'H'}, true
	case ebiten.KeyEnd:
		return []byte{0x1B, '[', 'F'}, true
	case ebiten.KeyDelete:
		return []byte{0x1B, '[', '3', '~'}, true
	default:
		return nil, false
	}
}

var _ Presenter = (*EbitenPresenter)(nil)
