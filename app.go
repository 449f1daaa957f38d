package touchloop

import (
	"time"

	"github.com/phuslu/log"
)

// App owns everything a running touch application shares: the providers,
// the listeners, the touches currently down, the widget tree, the window,
// the clock and the exception policy. It replaces process-wide state; one
// App is driven from one goroutine.
type App struct {
	Clock      *Clock
	Tree       *Tree
	Exceptions *ExceptionManager

	// ShowEventStats logs the per-kind event counts when Run returns.
	ShowEventStats bool

	providers []Provider
	listeners []Listener
	touches   []*Touch
	window    Window
	loop      *EventLoop
}

func NewApp() *App {
	app := &App{
		Clock:      NewClock(),
		Tree:       NewTree(),
		Exceptions: NewExceptionManager(),
	}
	app.loop = newEventLoop(app)
	return app
}

func (a *App) Loop() *EventLoop {
	return a.loop
}

func (a *App) FrameDt() time.Duration {
	return a.loop.FrameDt()
}

// AddProvider registers an input provider. Providers are started, updated
// and stopped in registration order.
func (a *App) AddProvider(p Provider) {
	a.providers = append(a.providers, p)
}

func (a *App) Providers() []Provider {
	return append([]Provider(nil), a.providers...)
}

func (a *App) AddListener(l Listener) {
	a.listeners = append(a.listeners, l)
}

func (a *App) Listeners() int {
	return len(a.listeners)
}

func (a *App) SetWindow(w Window) {
	a.window = w
}

func (a *App) Window() Window {
	return a.window
}

// Touches returns the touches currently down, in down order.
func (a *App) Touches() []*Touch {
	return append([]*Touch(nil), a.touches...)
}

// Touch returns the live touch with id, if any.
func (a *App) Touch(id int64) (*Touch, bool) {
	for _, t := range a.touches {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

func (a *App) addTouch(t *Touch) {
	a.touches = append(a.touches, t)
	log.Debug().Msgf("Touch %d down, %d live", t.ID, len(a.touches))
}

func (a *App) removeTouch(t *Touch) {
	for i, live := range a.touches {
		if live == t {
			a.touches = append(a.touches[:i], a.touches[i+1:]...)
			log.Debug().Msgf("Touch %d up, %d live", t.ID, len(a.touches))
			return
		}
	}
}

// Run starts the providers and drives the loop until it ends. In slave
// mode it returns right after the start and the caller drives Idle.
//
// Failures escaping a frame are classified by Exceptions: suppressed ones
// restart the loop, anything else stops the app and is returned. There is
// no backoff and no retry cap.
func (a *App) Run(slave bool) error {
	log.Info().Msg("Start application main loop")
	if err := a.loop.Start(); err != nil {
		return err
	}
	if slave {
		return nil
	}

	run := a.loop.Run
	if w := a.window; w != nil {
		run = func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = newPanicError(r)
				}
			}()
			return w.Mainloop(a.loop)
		}
	}

	err := a.runMainloop(run)
	if a.ShowEventStats {
		a.logStats()
	}
	return err
}

func (a *App) runMainloop(run func() error) error {
	for {
		err := run()
		if err == nil {
			a.Stop()
			a.teardown()
			return nil
		}
		if a.Exceptions.Handle(err) == Raise {
			log.Error().Err(err).Msg("application loop failed")
			a.Stop()
			if exitErr := a.loop.Exit(); exitErr != nil {
				log.Warn().Err(exitErr).Msg("teardown after failure")
			}
			return err
		}
		log.Warn().Err(err).Msg("application loop fault suppressed, restarting")
	}
}

// Stop requests the loop to terminate. It is a no-op when no loop runs.
func (a *App) Stop() {
	if a.loop.State() != LoopRunning {
		return
	}
	log.Info().Msg("Leaving application in progress...")
	a.loop.Close()
}

// teardown clears the registries once the loop is over.
func (a *App) teardown() {
	a.touches = nil
	a.listeners = nil
}

func (a *App) logStats() {
	stats := a.loop.Stats()
	log.Info().
		Uint64("down", stats.Count(TouchDown)).
		Uint64("move", stats.Count(TouchMove)).
		Uint64("up", stats.Count(TouchUp)).
		Uint64("update", stats.Count(Update)).
		Uint64("draw", stats.Count(Draw)).
		Msg("event stats")
}
