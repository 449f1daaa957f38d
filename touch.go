package touchloop

import (
	"fmt"
	"time"
)

// EventKind is the closed set of events the loop dispatches.
type EventKind uint8

const (
	TouchDown EventKind = iota + 1
	TouchMove
	TouchUp
	Update
	Draw
)

func (k EventKind) String() string {
	switch k {
	case TouchDown:
		return "down"
	case TouchMove:
		return "move"
	case TouchUp:
		return "up"
	case Update:
		return "update"
	case Draw:
		return "draw"
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// ParseEventKind maps the provider names "down", "move" and "up" to kinds.
func ParseEventKind(s string) (EventKind, bool) {
	switch s {
	case "down":
		return TouchDown, true
	case "move":
		return TouchMove, true
	case "up":
		return TouchUp, true
	}
	return 0, false
}

type touchPos struct {
	x, y   float64
	sx, sy float64
	px, py float64
}

// Touch is one continuous contact from down to up.
//
// SX and SY are normalized to [0,1] by the provider; X and Y are in the
// coordinate frame of whoever is currently looking at the touch. During
// grab dispatch the loop rewrites X/Y into the grabbing widget's frame and
// restores them afterwards with Push/Pop.
type Touch struct {
	ID     int64
	Device string

	X, Y   float64
	SX, SY float64
	PX, PY float64

	TimeStart  time.Time
	TimeUpdate time.Time

	IsDoubleTap   bool
	DoubleTapTime time.Duration

	// GrabState is true only while grab holders are being dispatched.
	GrabState bool
	// GrabExclusiveClass suppresses listener dispatch when non-empty.
	GrabExclusiveClass string
	// GrabList holds the widgets that claimed this touch, in claim order.
	GrabList []WidgetID
	// GrabCurrent is the widget being dispatched to, or NoWidget.
	GrabCurrent WidgetID

	UserData map[string]any

	stack []touchPos
}

// NewTouch creates a touch at the normalized position (sx, sy).
func NewTouch(device string, id int64, sx, sy float64) *Touch {
	t := &Touch{
		ID:     id,
		Device: device,
	}
	t.TimeStart = time.Now()
	t.Move(sx, sy)
	t.PX, t.PY = t.X, t.Y
	return t
}

// Move updates the normalized position. X/Y follow SX/SY until the touch is
// scaled for a screen.
func (t *Touch) Move(sx, sy float64) {
	t.PX, t.PY = t.X, t.Y
	t.SX, t.SY = sx, sy
	t.X, t.Y = sx, sy
	t.TimeUpdate = time.Now()
}

// ScaleForScreen expresses the normalized position in a window of the
// given size.
func (t *Touch) ScaleForScreen(width, height float64) {
	t.X = t.SX * width
	t.Y = t.SY * height
}

func (t *Touch) Push() {
	t.stack = append(t.stack, touchPos{
		x: t.X, y: t.Y,
		sx: t.SX, sy: t.SY,
		px: t.PX, py: t.PY,
	})
}

// Pop restores the coordinates saved by the matching Push.
func (t *Touch) Pop() {
	n := len(t.stack)
	if n == 0 {
		panic("touchloop: Pop without Push")
	}
	p := t.stack[n-1]
	t.stack = t.stack[:n-1]
	t.X, t.Y = p.x, p.y
	t.SX, t.SY = p.sx, p.sy
	t.PX, t.PY = p.px, p.py
}

func (t *Touch) Depth() int {
	return len(t.stack)
}

// Grab appends w to the grab list. Grabbing twice is the caller's business.
func (t *Touch) Grab(w WidgetID) {
	t.GrabList = append(t.GrabList, w)
}

// Ungrab removes every occurrence of w from the grab list.
func (t *Touch) Ungrab(w WidgetID) {
	list := t.GrabList[:0]
	for _, id := range t.GrabList {
		if id != w {
			list = append(list, id)
		}
	}
	t.GrabList = list
}

func (t *Touch) IsGrabbed(w WidgetID) bool {
	for _, id := range t.GrabList {
		if id == w {
			return true
		}
	}
	return false
}

func (t *Touch) String() string {
	return fmt.Sprintf("Touch{id: %d, device: %s, pos: (%.3f,%.3f)}", t.ID, t.Device, t.X, t.Y)
}

// Event is one (kind, touch) occurrence reported by a provider. Two events
// are the same event when they have the same kind and the same *Touch.
type Event struct {
	Kind  EventKind
	Touch *Touch
}
