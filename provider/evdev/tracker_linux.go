//go:build linux

package evdev

import (
	"go.yuchanns.xyz/touchloop"
)

type slot struct {
	id     int64
	x, y   int32
	active bool
	began  bool
	ended  bool
	dirty  bool
}

const (
	defaultSlots = 16
	maxSlots     = 64
)

// tracker folds evdev events into contact reports, one SYN_REPORT frame at
// a time. Slots outside [0, limit) are dropped.
type tracker struct {
	slots []*slot
	limit int
	cur   int
	// mt is set once any multitouch event has been seen; single touch axes
	// are ignored from then on.
	mt     bool
	nextID int64

	report func(kind touchloop.EventKind, id int64, x, y int32)
}

func newTracker(slots int, report func(kind touchloop.EventKind, id int64, x, y int32)) *tracker {
	if slots <= 0 {
		slots = defaultSlots
	}
	return &tracker{limit: min(slots, maxSlots), report: report}
}

func (tr *tracker) at(n int) *slot {
	if n < 0 || n >= tr.limit {
		return nil
	}
	for len(tr.slots) <= n {
		tr.slots = append(tr.slots, &slot{id: -1})
	}
	return tr.slots[n]
}

func (tr *tracker) event(typ, code uint16, value int32) {
	switch typ {
	case evSyn:
		if code == synReport {
			tr.sync()
		}
	case evKey:
		if code == btnTouch && !tr.mt {
			s := tr.at(0)
			if value != 0 && !s.active {
				tr.begin(s, tr.nextID)
				tr.nextID++
			} else if s.active {
				s.ended = true
			}
		}
	case evAbs:
		switch code {
		case absMTSlot:
			tr.mt = true
			tr.cur = int(value)
		case absMTTrackingID:
			tr.mt = true
			s := tr.at(tr.cur)
			if s == nil {
				return
			}
			if value < 0 {
				if s.active {
					s.ended = true
				}
				return
			}
			tr.begin(s, int64(value))
		case absMTPositionX:
			tr.mt = true
			if s := tr.at(tr.cur); s != nil {
				s.x, s.dirty = value, true
			}
		case absMTPositionY:
			tr.mt = true
			if s := tr.at(tr.cur); s != nil {
				s.y, s.dirty = value, true
			}
		case absX:
			if !tr.mt {
				s := tr.at(0)
				s.x, s.dirty = value, true
			}
		case absY:
			if !tr.mt {
				s := tr.at(0)
				s.y, s.dirty = value, true
			}
		}
	}
}

func (tr *tracker) begin(s *slot, id int64) {
	// a new contact in a slot that still holds one ends the old contact
	if s.active || s.began {
		s.ended = true
		tr.flush(s)
	}
	s.id = id
	s.active = true
	s.began = true
}

func (tr *tracker) sync() {
	for _, s := range tr.slots {
		tr.flush(s)
	}
}

func (tr *tracker) flush(s *slot) {
	switch {
	case s.began:
		tr.report(touchloop.TouchDown, s.id, s.x, s.y)
		if s.ended {
			tr.report(touchloop.TouchUp, s.id, s.x, s.y)
		}
	case s.ended:
		tr.report(touchloop.TouchUp, s.id, s.x, s.y)
	case s.dirty && s.active:
		tr.report(touchloop.TouchMove, s.id, s.x, s.y)
	}
	if s.ended {
		s.active = false
		s.id = -1
	}
	s.began, s.ended, s.dirty = false, false, false
}
