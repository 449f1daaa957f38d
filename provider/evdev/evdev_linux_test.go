//go:build linux

package evdev

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"go.yuchanns.xyz/touchloop"
)

type reported struct {
	kind touchloop.EventKind
	id   int64
	x, y int32
}

func record() (*tracker, *[]reported) {
	var out []reported
	tr := newTracker(2, func(kind touchloop.EventKind, id int64, x, y int32) {
		out = append(out, reported{kind, id, x, y})
	})
	return tr, &out
}

func rawEvent(typ, code uint16, value int32) []byte {
	b := make([]byte, eventSize)
	off := eventSize - 8
	binary.LittleEndian.PutUint16(b[off:], typ)
	binary.LittleEndian.PutUint16(b[off+2:], code)
	binary.LittleEndian.PutUint32(b[off+4:], uint32(value))
	return b
}

func TestTrackerMultitouch(t *testing.T) {
	assert := require.New(t)
	tr, out := record()

	tr.event(evAbs, absMTSlot, 0)
	tr.event(evAbs, absMTTrackingID, 7)
	tr.event(evAbs, absMTPositionX, 10)
	tr.event(evAbs, absMTPositionY, 20)
	tr.event(evAbs, absMTSlot, 1)
	tr.event(evAbs, absMTTrackingID, 8)
	tr.event(evAbs, absMTPositionX, 30)
	tr.event(evAbs, absMTPositionY, 40)
	tr.event(evSyn, synReport, 0)

	assert.Equal([]reported{
		{touchloop.TouchDown, 7, 10, 20},
		{touchloop.TouchDown, 8, 30, 40},
	}, *out)
	*out = nil

	tr.event(evAbs, absMTSlot, 0)
	tr.event(evAbs, absMTPositionX, 11)
	tr.event(evSyn, synReport, 0)
	assert.Equal([]reported{{touchloop.TouchMove, 7, 11, 20}}, *out)
	*out = nil

	tr.event(evAbs, absMTTrackingID, -1)
	tr.event(evAbs, absMTSlot, 1)
	tr.event(evAbs, absMTTrackingID, -1)
	tr.event(evSyn, synReport, 0)
	assert.Equal([]reported{
		{touchloop.TouchUp, 7, 11, 20},
		{touchloop.TouchUp, 8, 30, 40},
	}, *out)
}

func TestTrackerNoMoveWithoutChange(t *testing.T) {
	assert := require.New(t)
	tr, out := record()

	tr.event(evAbs, absMTTrackingID, 1)
	tr.event(evSyn, synReport, 0)
	tr.event(evSyn, synReport, 0)
	assert.Len(*out, 1)
	assert.Equal(touchloop.TouchDown, (*out)[0].kind)
}

func TestTrackerTapWithinOneFrame(t *testing.T) {
	assert := require.New(t)
	tr, out := record()

	tr.event(evAbs, absMTTrackingID, 3)
	tr.event(evAbs, absMTPositionX, 5)
	tr.event(evAbs, absMTTrackingID, -1)
	tr.event(evSyn, synReport, 0)
	assert.Equal([]reported{
		{touchloop.TouchDown, 3, 5, 0},
		{touchloop.TouchUp, 3, 5, 0},
	}, *out)
}

func TestTrackerSlotReuse(t *testing.T) {
	assert := require.New(t)
	tr, out := record()

	tr.event(evAbs, absMTTrackingID, 1)
	tr.event(evSyn, synReport, 0)
	tr.event(evAbs, absMTTrackingID, 2)
	tr.event(evSyn, synReport, 0)
	assert.Equal([]reported{
		{touchloop.TouchDown, 1, 0, 0},
		{touchloop.TouchUp, 1, 0, 0},
		{touchloop.TouchDown, 2, 0, 0},
	}, *out)
}

func TestTrackerSingleTouch(t *testing.T) {
	assert := require.New(t)
	tr, out := record()

	tr.event(evAbs, absX, 100)
	tr.event(evAbs, absY, 200)
	tr.event(evKey, btnTouch, 1)
	tr.event(evSyn, synReport, 0)
	tr.event(evAbs, absX, 110)
	tr.event(evSyn, synReport, 0)
	tr.event(evKey, btnTouch, 0)
	tr.event(evSyn, synReport, 0)

	assert.Equal([]reported{
		{touchloop.TouchDown, 0, 100, 200},
		{touchloop.TouchMove, 0, 110, 200},
		{touchloop.TouchUp, 0, 110, 200},
	}, *out)
}

func TestTrackerBoundsSlots(t *testing.T) {
	assert := require.New(t)
	tr, out := record()

	tr.event(evAbs, absMTSlot, 1<<20)
	tr.event(evAbs, absMTTrackingID, 9)
	tr.event(evAbs, absMTPositionX, 10)
	tr.event(evAbs, absMTSlot, -3)
	tr.event(evAbs, absMTTrackingID, 10)
	tr.event(evAbs, absMTSlot, 1)
	tr.event(evAbs, absMTTrackingID, 11)
	tr.event(evSyn, synReport, 0)

	assert.Equal([]reported{{touchloop.TouchDown, 11, 0, 0}}, *out)
	assert.Len(tr.slots, 2)

	assert.Equal(defaultSlots, newTracker(0, nil).limit)
	assert.Equal(maxSlots, newTracker(1000, nil).limit)
}

func TestParserSplitsPartialReads(t *testing.T) {
	assert := require.New(t)

	var stream []byte
	stream = append(stream, rawEvent(evAbs, absMTPositionX, 42)...)
	stream = append(stream, rawEvent(evSyn, synReport, 0)...)

	type ev struct {
		typ, code uint16
		value     int32
	}
	var got []ev
	var p parser
	cb := func(typ, code uint16, value int32) {
		got = append(got, ev{typ, code, value})
	}
	p.feed(stream[:5], cb)
	assert.Empty(got)
	p.feed(stream[5:eventSize+3], cb)
	assert.Equal([]ev{{evAbs, absMTPositionX, 42}}, got)
	p.feed(stream[eventSize+3:], cb)
	assert.Equal([]ev{{evAbs, absMTPositionX, 42}, {evSyn, synReport, 0}}, got)
}

func TestAxisNormalize(t *testing.T) {
	assert := require.New(t)
	a := axis{min: 100, max: 300}
	assert.Equal(0.0, a.normalize(50))
	assert.Equal(0.5, a.normalize(200))
	assert.Equal(1.0, a.normalize(400))
	assert.Equal(0.0, axis{}.normalize(10))
}

func TestParseOptions(t *testing.T) {
	assert := require.New(t)

	opts, err := ParseOptions("/dev/input/event3,grab,queue=64,swap_xy")
	assert.NoError(err)
	assert.Equal(Options{Path: "/dev/input/event3", Grab: true, Queue: 64, SwapXY: true}, opts)

	_, err = ParseOptions("")
	assert.Error(err)
	_, err = ParseOptions("/dev/input/event3,bogus")
	assert.Error(err)
}

func TestStartMissingDevice(t *testing.T) {
	assert := require.New(t)
	p := New("ev", Options{Path: "/nonexistent/event99"})
	assert.Error(p.Start())
	assert.NoError(p.Stop())
}

func TestRegistered(t *testing.T) {
	require.Contains(t, touchloop.ProviderBackends(), Backend)
}
