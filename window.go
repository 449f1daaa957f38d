package touchloop

import (
	"time"

	"gioui.org/f32"
	"github.com/phuslu/log"
)

// Window is the rendering surface driven once per frame by the loop.
type Window interface {
	// DispatchEvents flushes pending platform events.
	DispatchEvents() error
	OnUpdate() error
	OnDraw() error
	// Flip presents the frame.
	Flip() error
	Close() error
	// Mainloop drives loop.Idle until the loop asks to terminate.
	Mainloop(loop *EventLoop) error
}

// HeadlessWindow is a Window that renders nothing. It is the root of a
// widget tree and a Listener forwarding touches to the children they hit,
// topmost first, until one consumes the event.
type HeadlessWindow struct {
	ID WidgetID

	// MaxFPS limits Mainloop's frame rate; zero means unlimited.
	MaxFPS float64
	// MaxFrames stops Mainloop after that many frames; zero means no limit.
	MaxFrames uint64

	UpdateFunc func() error
	DrawFunc   func() error

	tree     *Tree
	frames   uint64
	closed   bool
	lastFlip time.Time
	sleep    func(time.Duration)
}

// NewHeadlessWindow adds a window of the given size to tree.
func NewHeadlessWindow(tree *Tree, width, height float32) *HeadlessWindow {
	w := &HeadlessWindow{
		tree:  tree,
		sleep: time.Sleep,
	}
	w.ID = tree.NewWindow("window", width, height, nil)
	return w
}

func (w *HeadlessWindow) Size() f32.Point {
	return w.tree.Size(w.ID)
}

func (w *HeadlessWindow) Frames() uint64 {
	return w.frames
}

func (w *HeadlessWindow) Closed() bool {
	return w.closed
}

func (w *HeadlessWindow) AddWidget(name string, pos, size f32.Point, h Handler) (WidgetID, error) {
	return w.tree.Add(w.ID, name, pos, size, h)
}

func (w *HeadlessWindow) DispatchEvents() error {
	return nil
}

func (w *HeadlessWindow) OnUpdate() error {
	if w.UpdateFunc != nil {
		return w.UpdateFunc()
	}
	return nil
}

func (w *HeadlessWindow) OnDraw() error {
	if w.DrawFunc != nil {
		return w.DrawFunc()
	}
	return nil
}

func (w *HeadlessWindow) Flip() error {
	w.frames++
	if w.MaxFPS > 0 {
		frame := time.Duration(float64(time.Second) / w.MaxFPS)
		if !w.lastFlip.IsZero() {
			if wait := frame - time.Since(w.lastFlip); wait > 0 {
				w.sleep(wait)
			}
		}
		w.lastFlip = time.Now()
	}
	return nil
}

func (w *HeadlessWindow) Close() error {
	if !w.closed {
		log.Debug().Msgf("Window closed after %d frames", w.frames)
	}
	w.closed = true
	return nil
}

func (w *HeadlessWindow) Mainloop(loop *EventLoop) error {
	for !loop.Quit() {
		done, err := loop.Idle()
		if err != nil {
			return err
		}
		if done {
			break
		}
		if w.MaxFrames > 0 && w.frames >= w.MaxFrames {
			loop.Close()
		}
	}
	return loop.Exit()
}

func (w *HeadlessWindow) OnTouchDown(t *Touch) {
	w.deliver(TouchDown, t)
}

func (w *HeadlessWindow) OnTouchMove(t *Touch) {
	w.deliver(TouchMove, t)
}

func (w *HeadlessWindow) OnTouchUp(t *Touch) {
	w.deliver(TouchUp, t)
}

func (w *HeadlessWindow) deliver(kind EventKind, t *Touch) {
	size := w.Size()
	t.ScaleForScreen(float64(size.X), float64(size.Y))

	p := f32.Pt(float32(t.X), float32(t.Y))
	children := w.tree.Children(w.ID)
	for i := len(children) - 1; i >= 0; i-- {
		h := w.tree.Handler(children[i])
		if h == nil || !w.tree.CollidePoint(children[i], p) {
			continue
		}
		var consumed bool
		switch kind {
		case TouchDown:
			consumed = h.OnTouchDown(t)
		case TouchMove:
			consumed = h.OnTouchMove(t)
		case TouchUp:
			consumed = h.OnTouchUp(t)
		}
		if consumed {
			return
		}
	}
}
