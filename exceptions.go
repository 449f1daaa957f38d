package touchloop

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/phuslu/log"
)

// Verdict is the outcome of classifying an in-loop failure.
type Verdict int

const (
	// Raise stops the application and returns the error to the caller.
	Raise Verdict = iota
	// Suppress drops the error and restarts the run loop.
	Suppress
)

func (v Verdict) String() string {
	if v == Suppress {
		return "suppress"
	}
	return "raise"
}

// PanicError carries a panic recovered from a loop iteration.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("touchloop: panic in loop: %v", e.Value)
}

// Unwrap exposes a panicked error value to errors.Is and errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

// ExceptionHandler claims the errors Match accepts and decides their fate.
// Action, when set, runs before the verdict is applied.
type ExceptionHandler struct {
	Name    string
	Match   func(err error) bool
	Verdict Verdict
	Action  func(err error)
}

// SuppressAll claims every error and keeps the loop alive.
func SuppressAll() ExceptionHandler {
	return ExceptionHandler{
		Name:    "suppress-all",
		Match:   func(error) bool { return true },
		Verdict: Suppress,
	}
}

// SuppressIs suppresses errors matching target through errors.Is.
func SuppressIs(target error) ExceptionHandler {
	return ExceptionHandler{
		Name:    "suppress " + target.Error(),
		Match:   func(err error) bool { return errors.Is(err, target) },
		Verdict: Suppress,
	}
}

// RaiseIs raises errors matching target through errors.Is, ahead of any
// later handler that would suppress them.
func RaiseIs(target error) ExceptionHandler {
	return ExceptionHandler{
		Name:    "raise " + target.Error(),
		Match:   func(err error) bool { return errors.Is(err, target) },
		Verdict: Raise,
	}
}

// SuppressPanics suppresses recovered panics only.
func SuppressPanics() ExceptionHandler {
	return ExceptionHandler{
		Name: "suppress-panics",
		Match: func(err error) bool {
			var pe *PanicError
			return errors.As(err, &pe)
		},
		Verdict: Suppress,
	}
}

// ExceptionManager is an ordered chain of handlers. The first handler whose
// Match accepts the error decides; unclaimed errors are raised.
type ExceptionManager struct {
	handlers []ExceptionHandler
}

func NewExceptionManager(handlers ...ExceptionHandler) *ExceptionManager {
	return &ExceptionManager{handlers: handlers}
}

func (m *ExceptionManager) Add(h ExceptionHandler) {
	m.handlers = append(m.handlers, h)
}

// Remove drops every handler named name.
func (m *ExceptionManager) Remove(name string) {
	handlers := m.handlers[:0]
	for _, h := range m.handlers {
		if h.Name != name {
			handlers = append(handlers, h)
		}
	}
	m.handlers = handlers
}

func (m *ExceptionManager) Len() int {
	return len(m.handlers)
}

func (m *ExceptionManager) Handle(err error) Verdict {
	for _, h := range m.handlers {
		if h.Match == nil || !h.Match(err) {
			continue
		}
		if h.Action != nil {
			h.Action(err)
		}
		log.Debug().Msgf("Exception handler %q: %s", h.Name, h.Verdict)
		return h.Verdict
	}
	return Raise
}
