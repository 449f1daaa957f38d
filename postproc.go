package touchloop

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gioui.org/f32"
	"github.com/phuslu/log"
)

// PostProc transforms a frame's event batch before dispatch. It receives
// the whole batch and returns the replacement batch.
type PostProc interface {
	Process(events []Event) []Event
}

// PostProcFunc adapts a function to PostProc. Values of this type are not
// comparable and cannot be removed with RemovePostProc.
type PostProcFunc func(events []Event) []Event

func (f PostProcFunc) Process(events []Event) []Event {
	return f(events)
}

// PostProcFactory builds a named stage from the post-processing config.
type PostProcFactory func(cfg PostProcConfig) (PostProc, error)

var postprocs = struct {
	sync.RWMutex
	m map[string]PostProcFactory
}{m: map[string]PostProcFactory{
	"dejitter":    func(cfg PostProcConfig) (PostProc, error) { return NewDejitter(cfg.DejitterDistance), nil },
	"doubletap":   func(cfg PostProcConfig) (PostProc, error) { return NewDoubleTap(cfg.DoubleTapDistance, cfg.DoubleTapTime.Duration), nil },
	"ignorelist":  newIgnoreListFromConfig,
	"retaintouch": func(cfg PostProcConfig) (PostProc, error) { return NewRetainTouch(cfg.RetainDistance, cfg.RetainTime.Duration), nil },
}}

func RegisterPostProc(name string, factory PostProcFactory) {
	postprocs.Lock()
	defer postprocs.Unlock()
	if _, dup := postprocs.m[name]; dup {
		panic("touchloop: RegisterPostProc called twice for " + name)
	}
	postprocs.m[name] = factory
}

// PostProcNames lists the available stages, sorted.
func PostProcNames() []string {
	postprocs.RLock()
	defer postprocs.RUnlock()
	names := make([]string, 0, len(postprocs.m))
	for name := range postprocs.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewPostProc(name string, cfg PostProcConfig) (PostProc, error) {
	postprocs.RLock()
	factory, ok := postprocs.m[name]
	postprocs.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown post-processing module %q", name)
	}
	return factory(cfg)
}

func distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(ax-bx, ay-by)
}

// Dejitter drops moves smaller than Distance, in normalized units, from
// the last position it let through.
type Dejitter struct {
	Distance float64

	last map[*Touch][2]float64
}

func NewDejitter(dist float64) *Dejitter {
	return &Dejitter{Distance: dist, last: map[*Touch][2]float64{}}
}

func (d *Dejitter) Process(events []Event) []Event {
	out := events[:0]
	for _, ev := range events {
		t := ev.Touch
		switch ev.Kind {
		case TouchDown:
			d.last[t] = [2]float64{t.SX, t.SY}
		case TouchMove:
			last, ok := d.last[t]
			if ok && distance(last[0], last[1], t.SX, t.SY) < d.Distance {
				continue
			}
			d.last[t] = [2]float64{t.SX, t.SY}
		case TouchUp:
			delete(d.last, t)
		}
		out = append(out, ev)
	}
	return out
}

type tapRecord struct {
	device string
	sx, sy float64
	at     time.Time
}

// DoubleTap flags a down as a double tap when an up happened on the same
// device within Time and Distance.
type DoubleTap struct {
	Distance float64
	Time     time.Duration

	now  func() time.Time
	taps []tapRecord
}

func NewDoubleTap(dist float64, window time.Duration) *DoubleTap {
	return &DoubleTap{Distance: dist, Time: window, now: time.Now}
}

func (d *DoubleTap) Process(events []Event) []Event {
	now := d.now()
	d.expire(now)
	for _, ev := range events {
		t := ev.Touch
		switch ev.Kind {
		case TouchDown:
			t.IsDoubleTap = false
			for i, tap := range d.taps {
				if tap.device != t.Device || distance(tap.sx, tap.sy, t.SX, t.SY) > d.Distance {
					continue
				}
				t.IsDoubleTap = true
				t.DoubleTapTime = now.Sub(tap.at)
				d.taps = append(d.taps[:i], d.taps[i+1:]...)
				log.Debug().Msgf("Double tap on touch %d", t.ID)
				break
			}
		case TouchUp:
			if t.IsDoubleTap {
				continue
			}
			d.taps = append(d.taps, tapRecord{device: t.Device, sx: t.SX, sy: t.SY, at: now})
		}
	}
	return events
}

func (d *DoubleTap) expire(now time.Time) {
	taps := d.taps[:0]
	for _, tap := range d.taps {
		if now.Sub(tap.at) <= d.Time {
			taps = append(taps, tap)
		}
	}
	d.taps = taps
}

// IgnoreList drops touches starting inside any of Regions, given in
// normalized coordinates, for their whole lifetime.
type IgnoreList struct {
	Regions []Rect

	ignored map[*Touch]struct{}
}

func NewIgnoreList(regions ...Rect) *IgnoreList {
	return &IgnoreList{Regions: regions, ignored: map[*Touch]struct{}{}}
}

func newIgnoreListFromConfig(cfg PostProcConfig) (PostProc, error) {
	regions := make([]Rect, 0, len(cfg.IgnoreRegions))
	for _, r := range cfg.IgnoreRegions {
		if len(r) != 4 {
			return nil, fmt.Errorf("ignore region %v: want [x0, y0, x1, y1]", r)
		}
		regions = append(regions, NewRect(float32(r[0]), float32(r[1]), float32(r[2]), float32(r[3])))
	}
	return NewIgnoreList(regions...), nil
}

func (il *IgnoreList) Process(events []Event) []Event {
	out := events[:0]
	for _, ev := range events {
		t := ev.Touch
		if ev.Kind == TouchDown && il.inside(t) {
			il.ignored[t] = struct{}{}
		}
		if _, ok := il.ignored[t]; ok {
			if ev.Kind == TouchUp {
				delete(il.ignored, t)
			}
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (il *IgnoreList) inside(t *Touch) bool {
	p := f32.Pt(float32(t.SX), float32(t.SY))
	for _, r := range il.Regions {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

type retained struct {
	touch *Touch
	at    time.Time
}

// RetainTouch holds an up for Time. A down closer than Distance to a held
// touch continues that touch instead: the down becomes a move of the held
// touch and so do the new contact's later events.
type RetainTouch struct {
	Distance float64
	Time     time.Duration

	now     func() time.Time
	held    []retained
	aliases map[*Touch]*Touch
}

func NewRetainTouch(dist float64, hold time.Duration) *RetainTouch {
	return &RetainTouch{
		Distance: dist,
		Time:     hold,
		now:      time.Now,
		aliases:  map[*Touch]*Touch{},
	}
}

func (r *RetainTouch) Process(events []Event) []Event {
	now := r.now()
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		t := ev.Touch
		switch ev.Kind {
		case TouchDown:
			if held := r.claim(t); held != nil {
				r.aliases[t] = held
				held.Move(t.SX, t.SY)
				out = append(out, Event{Kind: TouchMove, Touch: held})
				continue
			}
		case TouchMove:
			if held, ok := r.aliases[t]; ok {
				held.Move(t.SX, t.SY)
				out = append(out, Event{Kind: TouchMove, Touch: held})
				continue
			}
		case TouchUp:
			if held, ok := r.aliases[t]; ok {
				delete(r.aliases, t)
				held.Move(t.SX, t.SY)
				t = held
			}
			r.held = append(r.held, retained{touch: t, at: now})
			continue
		}
		out = append(out, ev)
	}

	held := r.held[:0]
	for _, h := range r.held {
		if now.Sub(h.at) >= r.Time {
			out = append(out, Event{Kind: TouchUp, Touch: h.touch})
			continue
		}
		held = append(held, h)
	}
	r.held = held
	return out
}

// claim removes and returns the held touch nearest to t within Distance.
func (r *RetainTouch) claim(t *Touch) *Touch {
	best, bestDist := -1, r.Distance
	for i, h := range r.held {
		if h.touch.Device != t.Device {
			continue
		}
		if d := distance(h.touch.SX, h.touch.SY, t.SX, t.SY); d <= bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return nil
	}
	held := r.held[best].touch
	r.held = append(r.held[:best], r.held[best+1:]...)
	return held
}
