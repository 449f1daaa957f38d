package xinput

import (
	"errors"
	"net"
	"sync"
)

var ErrNotConnected = errors.New("xinput: driver not connected")

// Driver writes xinput messages to a provider's socket. Coordinates are
// wire coordinates in [0, AbsX] x [0, AbsY].
type Driver struct {
	socket string

	mu   sync.Mutex
	conn net.Conn
}

func NewDriver(socket string) *Driver {
	return &Driver{
		socket: socket,
	}
}

func (d *Driver) Connect() error {
	c, err := net.Dial("unix", d.socket)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.conn = c
	d.mu.Unlock()
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *Driver) send(msg Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ErrNotConnected
	}
	_, err := d.conn.Write(msg.Pack())
	return err
}

func (d *Driver) TouchBegin(touchID uint32, x, y int, pressure uint8) error {
	return d.send(Message{
		Type:     msgTouchBegin,
		TouchID:  touchID,
		X:        int32(x),
		Y:        int32(y),
		Pressure: pressure,
	})
}

func (d *Driver) TouchUpdate(touchID uint32, x, y int, pressure uint8) error {
	return d.send(Message{
		Type:     msgTouchUpdate,
		TouchID:  touchID,
		X:        int32(x),
		Y:        int32(y),
		Pressure: pressure,
	})
}

func (d *Driver) TouchEnd(touchID uint32, x, y int, pressure uint8) error {
	return d.send(Message{
		Type:     msgTouchEndWithPayload,
		TouchID:  touchID,
		X:        int32(x),
		Y:        int32(y),
		Pressure: pressure,
	})
}

// TouchCancel ends a touch without a final position.
func (d *Driver) TouchCancel(touchID uint32) error {
	return d.send(Message{
		Type:    msgTouchEndWithoutPayload,
		TouchID: touchID,
	})
}

func (d *Driver) Move(x, y int) error {
	return d.send(Message{
		Type: msgPointerMotion,
		X:    int32(x),
		Y:    int32(y),
	})
}

func (d *Driver) ButtonDown(button uint32) error {
	return d.send(Message{
		Type:   msgButtonDown,
		Button: button,
	})
}

func (d *Driver) ButtonUp(button uint32) error {
	return d.send(Message{
		Type:   msgButtonUp,
		Button: button,
	})
}
