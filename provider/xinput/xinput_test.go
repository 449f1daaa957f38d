package xinput

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.yuchanns.xyz/touchloop"
)

func socketPath(t *testing.T) string {
	// sun_path is short; t.TempDir can exceed it
	dir, err := os.MkdirTemp("", "xin")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s")
}

type event struct {
	kind   touchloop.EventKind
	id     int64
	sx, sy float64
}

func poll(p *Provider, out *[]event) {
	p.Update(func(kind touchloop.EventKind, t *touchloop.Touch) {
		*out = append(*out, event{kind: kind, id: t.ID, sx: t.SX, sy: t.SY})
	})
}

func TestMessageLayout(t *testing.T) {
	assert := require.New(t)

	msg := Message{Type: msgTouchUpdate, TouchID: 0x1234, X: AbsX, Y: -2, Pressure: 7, Button: 3}
	buf := msg.Pack()
	assert.Len(buf, MessageSize)
	assert.Equal(byte(msgTouchUpdate), buf[0])
	assert.Equal([]byte{0x34, 0x12}, buf[1:3])

	var back Message
	back.Unpack(buf)
	assert.Equal(msg, back)
}

func TestNormalize(t *testing.T) {
	assert := require.New(t)

	x, y := normalize(AbsX, 0)
	assert.Equal(1.0, x)
	assert.Equal(0.0, y)
	x, y = normalize(-10, 2*AbsY)
	assert.Equal(0.0, x)
	assert.Equal(1.0, y)
}

func TestParseOptions(t *testing.T) {
	assert := require.New(t)

	opts, err := ParseOptions("/tmp/x.sock,debounce=200ms,queue=64")
	assert.NoError(err)
	assert.Equal(Options{Socket: "/tmp/x.sock", Debounce: 200 * time.Millisecond, Queue: 64}, opts)

	for _, bad := range []string{"", "/tmp/x,debounce=soon", "/tmp/x,queue=many", "/tmp/x,color=red"} {
		_, err := ParseOptions(bad)
		assert.Error(err, bad)
	}
}

func TestHandlePointerEmulation(t *testing.T) {
	assert := require.New(t)

	p := New("x", Options{Socket: "unused"})
	t.Cleanup(p.source.Close)

	p.handle(&Message{Type: msgPointerMotion, X: AbsX / 2, Y: AbsY / 2})
	p.handle(&Message{Type: msgButtonDown, Button: 3})
	p.handle(&Message{Type: msgButtonDown, Button: 1})
	p.handle(&Message{Type: msgPointerMotion, X: AbsX, Y: AbsY / 2})
	p.handle(&Message{Type: msgButtonUp, Button: 1})
	p.handle(&Message{Type: msgPointerMotion, X: 0, Y: 0})

	var out []event
	poll(p, &out)
	assert.Len(out, 3)
	assert.Equal(touchloop.TouchDown, out[0].kind)
	assert.Equal(int64(mouseID), out[0].id)
	assert.InDelta(0.5, out[0].sx, 1e-3)
	assert.Equal(touchloop.TouchMove, out[1].kind)
	assert.Equal(1.0, out[1].sx)
	assert.Equal(touchloop.TouchUp, out[2].kind)
}

func TestDriverToProvider(t *testing.T) {
	assert := require.New(t)

	p := New("x", Options{Socket: socketPath(t)})
	assert.NoError(p.Start())
	t.Cleanup(func() { p.Stop() })

	d := NewDriver(p.Addr())
	assert.ErrorIs(d.TouchBegin(1, 0, 0, 0), ErrNotConnected)
	assert.NoError(d.Connect())
	t.Cleanup(func() { d.Close() })

	assert.NoError(d.TouchBegin(5, AbsX/4, AbsY/2, 100))
	assert.NoError(d.TouchUpdate(5, AbsX/2, AbsY/2, 100))
	assert.NoError(d.TouchEnd(5, AbsX, AbsY, 0))
	assert.NoError(d.TouchBegin(6, 0, 0, 100))
	assert.NoError(d.TouchCancel(6))

	var out []event
	assert.Eventually(func() bool {
		poll(p, &out)
		return len(out) >= 5
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(touchloop.TouchDown, out[0].kind)
	assert.Equal(int64(5), out[0].id)
	assert.InDelta(0.25, out[0].sx, 1e-3)
	assert.Equal(touchloop.TouchMove, out[1].kind)
	assert.InDelta(0.5, out[1].sx, 1e-3)
	assert.Equal(touchloop.TouchUp, out[2].kind)
	assert.Equal(1.0, out[2].sx)
	assert.Equal(touchloop.TouchDown, out[3].kind)
	assert.Equal(touchloop.TouchUp, out[4].kind)
	assert.Equal(0.0, out[4].sx)
}

func TestStopClosesConnections(t *testing.T) {
	assert := require.New(t)

	p := New("x", Options{Socket: socketPath(t)})
	assert.NoError(p.Start())

	d := NewDriver(p.Addr())
	assert.NoError(d.Connect())
	t.Cleanup(func() { d.Close() })
	assert.NoError(d.TouchBegin(1, 0, 0, 0))

	done := make(chan error, 1)
	go func() { done <- p.Stop() }()
	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestRegistered(t *testing.T) {
	assert := require.New(t)
	assert.Contains(touchloop.ProviderBackends(), Backend)

	p, err := touchloop.NewProvider(touchloop.ProviderSpec{ID: "sock", Backend: Backend, Args: "/tmp/unused.sock"})
	assert.NoError(err)
	assert.IsType(&Provider{}, p)
}
