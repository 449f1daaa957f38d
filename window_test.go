package touchloop_test

import (
	"testing"

	"gioui.org/f32"
	"github.com/stretchr/testify/require"

	"go.yuchanns.xyz/touchloop"
)

type consumer struct {
	name    string
	consume bool
	log     *[]string
}

func (c *consumer) hit(kind touchloop.EventKind, t *touchloop.Touch) bool {
	*c.log = append(*c.log, c.name+":"+kind.String())
	return c.consume
}

func (c *consumer) OnTouchDown(t *touchloop.Touch) bool { return c.hit(touchloop.TouchDown, t) }
func (c *consumer) OnTouchMove(t *touchloop.Touch) bool { return c.hit(touchloop.TouchMove, t) }
func (c *consumer) OnTouchUp(t *touchloop.Touch) bool   { return c.hit(touchloop.TouchUp, t) }

func TestHeadlessWindowDelivery(t *testing.T) {
	assert := require.New(t)

	tree := touchloop.NewTree()
	win := touchloop.NewHeadlessWindow(tree, 200, 100)
	requirePoint(assert, f32.Pt(200, 100), win.Size())

	var log []string
	_, err := win.AddWidget("bottom", f32.Point{}, f32.Pt(200, 100), &consumer{name: "bottom", consume: true, log: &log})
	assert.NoError(err)
	_, err = win.AddWidget("middle", f32.Point{}, f32.Pt(100, 100), &consumer{name: "middle", log: &log})
	assert.NoError(err)
	_, err = win.AddWidget("top", f32.Pt(150, 0), f32.Pt(50, 50), &consumer{name: "top", consume: true, log: &log})
	assert.NoError(err)

	// (50, 50): misses top, middle passes, bottom consumes
	touch := touchloop.NewTouch("dev", 1, 0.25, 0.5)
	win.OnTouchDown(touch)
	assert.Equal([]string{"middle:down", "bottom:down"}, log)
	assert.InDelta(50.0, touch.X, 1e-9)
	assert.InDelta(50.0, touch.Y, 1e-9)

	// (160, 10): top consumes first
	log = nil
	touch.Move(0.8, 0.1)
	win.OnTouchMove(touch)
	assert.Equal([]string{"top:move"}, log)

	log = nil
	win.OnTouchUp(touch)
	assert.Equal([]string{"top:up"}, log)
}

func TestHeadlessWindowAsListener(t *testing.T) {
	assert := require.New(t)

	app := touchloop.NewApp()
	win := touchloop.NewHeadlessWindow(app.Tree, 100, 100)
	var log []string
	_, err := win.AddWidget("w", f32.Point{}, f32.Pt(100, 100), &consumer{name: "w", consume: true, log: &log})
	assert.NoError(err)
	app.SetWindow(win)
	app.AddListener(win)
	assert.Same(win, app.Window())

	p := &fakeProvider{}
	app.AddProvider(p)
	touch := touchloop.NewTouch("dev", 1, 0.5, 0.5)
	p.emit(down(touch))
	p.emit(up(touch))
	win.MaxFrames = 3

	assert.NoError(app.Run(false))
	assert.Equal([]string{"w:down", "w:up"}, log)
	assert.True(win.Closed())
}

func TestHandlerFramesByDeliveryPath(t *testing.T) {
	assert := require.New(t)

	app := touchloop.NewApp()
	win := touchloop.NewHeadlessWindow(app.Tree, 100, 100)
	var calls []widgetCall
	w, err := win.AddWidget("w", f32.Pt(10, 10), f32.Pt(50, 50), &widgetRecorder{name: "w", calls: &calls})
	assert.NoError(err)
	app.SetWindow(win)
	app.AddListener(win)
	p := &fakeProvider{}
	app.AddProvider(p)
	loop := app.Loop()
	assert.NoError(loop.Start())

	touch := touchloop.NewTouch("dev", 1, 0.2, 0.2)
	p.emit(down(touch))
	_, err = loop.Idle()
	assert.NoError(err)
	touch.Grab(w)

	touch.Move(0.3, 0.3)
	p.emit(move(touch))
	_, err = loop.Idle()
	assert.NoError(err)

	assert.Len(calls, 3)
	// hit tested: parent frame
	assert.Equal(touchloop.TouchDown, calls[0].kind)
	assert.InDelta(20.0, calls[0].x, 1e-4)
	assert.False(calls[0].grabState)
	assert.InDelta(30.0, calls[1].x, 1e-4)
	assert.InDelta(30.0, calls[1].y, 1e-4)
	assert.False(calls[1].grabState)
	// grabbed: the widget's own frame
	assert.Equal(touchloop.TouchMove, calls[2].kind)
	assert.InDelta(20.0, calls[2].x, 1e-4)
	assert.InDelta(20.0, calls[2].y, 1e-4)
	assert.True(calls[2].grabState)
	assert.Equal(w, calls[2].grabCurrent)
}
