package touchloop

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"gioui.org/f32"
	"github.com/phuslu/log"
)

var (
	ErrLoopStopped    = errors.New("touchloop: loop is stopped")
	ErrLoopNotStarted = errors.New("touchloop: loop is not started")
	ErrAlreadyRunning = errors.New("touchloop: loop is already running")
)

// Listener is a top-level receiver of broadcast touch events.
type Listener interface {
	OnTouchDown(t *Touch)
	OnTouchMove(t *Touch)
	OnTouchUp(t *Touch)
}

// LoopState is the lifecycle of an EventLoop: Idle, Running, then Stopped
// for good.
type LoopState int32

const (
	LoopIdle LoopState = iota
	LoopRunning
	LoopStopped
)

func (s LoopState) String() string {
	switch s {
	case LoopIdle:
		return "idle"
	case LoopRunning:
		return "running"
	case LoopStopped:
		return "stopped"
	}
	return fmt.Sprintf("LoopState(%d)", int32(s))
}

const defaultFrameDt = 10 * time.Millisecond

// EventLoop pulls input from the app's providers once per frame, runs the
// post-processing pipeline, dispatches to listeners and grab holders and
// drives the window. All of it happens on the goroutine calling Idle.
type EventLoop struct {
	app *App

	state       LoopState
	quit        bool
	frameDt     time.Duration
	inputEvents []Event
	postproc    []PostProc
	stats       EventStats
}

func newEventLoop(app *App) *EventLoop {
	return &EventLoop{
		app:     app,
		frameDt: defaultFrameDt,
	}
}

func (l *EventLoop) State() LoopState {
	return l.state
}

// Quit reports whether termination was requested.
func (l *EventLoop) Quit() bool {
	return l.quit
}

// FrameDt is the duration of the last frame. It starts at 10ms so callers
// can divide by it before the first tick.
func (l *EventLoop) FrameDt() time.Duration {
	return l.frameDt
}

func (l *EventLoop) Stats() EventStats {
	return l.stats
}

func (l *EventLoop) AddPostProc(p PostProc) {
	l.postproc = append(l.postproc, p)
}

// RemovePostProc removes p if present. Stages of non-comparable types,
// such as PostProcFunc, cannot be removed.
func (l *EventLoop) RemovePostProc(p PostProc) {
	if p == nil || !reflect.TypeOf(p).Comparable() {
		return
	}
	for i, mod := range l.postproc {
		if mod == p {
			l.postproc = append(l.postproc[:i], l.postproc[i+1:]...)
			return
		}
	}
}

// Start starts every provider in registration order. A failing provider
// aborts the start; providers already started stay started.
func (l *EventLoop) Start() error {
	switch l.state {
	case LoopRunning:
		return ErrAlreadyRunning
	case LoopStopped:
		return ErrLoopStopped
	}
	for i, p := range l.app.providers {
		log.Debug().Msgf("Start provider %d", i)
		if err := p.Start(); err != nil {
			return fmt.Errorf("start provider %d: %w", i, err)
		}
	}
	l.state = LoopRunning
	return nil
}

// Close requests termination; it takes effect at the next iteration
// boundary.
func (l *EventLoop) Close() {
	l.quit = true
}

// Exit tears the loop down: providers are stopped and the window is
// closed. Calling it again is a no-op.
func (l *EventLoop) Exit() error {
	l.Close()
	if l.state == LoopStopped {
		return nil
	}
	l.state = LoopStopped

	var errs []error
	for i, p := range l.app.providers {
		if err := p.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop provider %d: %w", i, err))
		}
	}
	if w := l.app.window; w != nil {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close window: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Run calls Idle until termination is requested, then exits. A panic
// escaping an iteration is returned as a *PanicError.
func (l *EventLoop) Run() (err error) {
	switch l.state {
	case LoopIdle:
		return ErrLoopNotStarted
	case LoopStopped:
		return ErrLoopStopped
	}
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()

	l.inputEvents = nil
	for !l.quit {
		if _, err = l.Idle(); err != nil {
			return
		}
	}
	return l.Exit()
}

// Idle runs one frame. It returns true when the loop should terminate,
// either because Close was called or because no listener is left. In the
// latter case the loop has already exited: providers are stopped and the
// window is closed. After a Close the caller still owns the Exit.
func (l *EventLoop) Idle() (done bool, err error) {
	l.frameDt = l.app.Clock.Tick()

	if err = l.DispatchInput(); err != nil {
		return
	}

	if w := l.app.window; w != nil {
		if err = w.DispatchEvents(); err != nil {
			return false, fmt.Errorf("window events: %w", err)
		}
		l.stats.add(Update)
		if err = w.OnUpdate(); err != nil {
			return false, fmt.Errorf("window update: %w", err)
		}
		l.stats.add(Draw)
		if err = w.OnDraw(); err != nil {
			return false, fmt.Errorf("window draw: %w", err)
		}
		if err = w.Flip(); err != nil {
			return false, fmt.Errorf("window flip: %w", err)
		}
	}

	if len(l.app.listeners) == 0 {
		log.Debug().Msgf("No listener left, leaving loop")
		return true, l.Exit()
	}

	return l.quit, nil
}

// DispatchInput acquires the frame's events from every provider, runs them
// through the pipeline and dispatches them.
func (l *EventLoop) DispatchInput() error {
	// a batch is never redelivered, even when dispatch panics halfway
	defer func() { l.inputEvents = nil }()

	for i, p := range l.app.providers {
		if err := p.Update(l.queueInput); err != nil {
			return fmt.Errorf("update provider %d: %w", i, err)
		}
	}

	for _, mod := range l.postproc {
		l.inputEvents = mod.Process(l.inputEvents)
	}

	events := l.inputEvents
	for _, ev := range events {
		l.postDispatchInput(ev.Kind, ev.Touch)
	}
	return nil
}

// queueInput appends ev to the frame batch. An identical event already
// queued this frame is moved to the end instead of being duplicated.
func (l *EventLoop) queueInput(kind EventKind, t *Touch) {
	ev := Event{Kind: kind, Touch: t}
	for i, queued := range l.inputEvents {
		if queued == ev {
			l.inputEvents = append(l.inputEvents[:i], l.inputEvents[i+1:]...)
			break
		}
	}
	l.inputEvents = append(l.inputEvents, ev)
}

func (l *EventLoop) postDispatchInput(kind EventKind, t *Touch) {
	app := l.app
	switch kind {
	case TouchDown:
		app.addTouch(t)
	case TouchUp:
		app.removeTouch(t)
	}
	l.stats.add(kind)

	if t.GrabExclusiveClass == "" {
		for _, listener := range app.listeners {
			switch kind {
			case TouchDown:
				listener.OnTouchDown(t)
			case TouchMove:
				listener.OnTouchMove(t)
			case TouchUp:
				listener.OnTouchUp(t)
			}
		}
	}

	if len(t.GrabList) == 0 {
		return
	}
	t.GrabState = true
	defer func() { t.GrabState = false }()

	grabs := append([]WidgetID(nil), t.GrabList...)
	for _, wid := range grabs {
		l.dispatchGrab(kind, t, wid)
	}
}

// dispatchGrab delivers one event to one grab holder in the holder's own
// coordinate frame.
func (l *EventLoop) dispatchGrab(kind EventKind, t *Touch, wid WidgetID) {
	tree := l.app.Tree
	root := tree.RootWindow(wid)
	if wid != root && root != NoWidget {
		t.Push()
		defer t.Pop()

		size := tree.Size(root)
		t.ScaleForScreen(float64(size.X), float64(size.Y))
		p := f32.Pt(float32(t.X), float32(t.Y))
		if tree.Parent(wid) != NoWidget {
			p = tree.ToWidget(wid, p)
		} else {
			// A parentless holder lives in window coordinates.
			p = tree.ToParent(wid, tree.ToWidget(wid, p))
		}
		t.X, t.Y = float64(p.X), float64(p.Y)
	}

	t.GrabCurrent = wid
	defer func() { t.GrabCurrent = NoWidget }()

	h := tree.Handler(wid)
	if h == nil {
		return
	}
	log.Debug().Msgf("Grab dispatch %s of touch %d to widget %d", kind, t.ID, wid)
	switch kind {
	case TouchMove:
		h.OnTouchMove(t)
	case TouchUp:
		h.OnTouchUp(t)
	}
	// Down is not redelivered: the holder grabbed while handling it.
}

// EventStats counts dispatched events per kind.
type EventStats [Draw + 1]uint64

func (s *EventStats) add(kind EventKind) {
	if int(kind) < len(s) {
		s[kind]++
	}
}

func (s EventStats) Count(kind EventKind) uint64 {
	if int(kind) < len(s) {
		return s[kind]
	}
	return 0
}
