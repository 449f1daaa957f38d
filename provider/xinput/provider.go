// Package xinput provides touches received over a unix socket speaking the
// xinput touch protocol: fixed 16-byte little-endian messages.
//
// The provider listens; writers such as Driver connect and send. Pointer
// messages emulate a single touch while button 1 is held.
package xinput

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phuslu/log"

	"go.yuchanns.xyz/touchloop"
	"go.yuchanns.xyz/touchloop/internal/contact"
)

const Backend = "xinput"

// mouseID is outside the 16-bit touch id range of the wire format.
const mouseID = 1 << 32

func init() {
	touchloop.RegisterProvider(Backend, func(id string, args string) (touchloop.Provider, error) {
		opts, err := ParseOptions(args)
		if err != nil {
			return nil, err
		}
		return New(id, opts), nil
	})
}

type Options struct {
	Socket   string
	Debounce time.Duration
	Queue    int
}

// ParseOptions parses "socket[,debounce=DURATION][,queue=N]".
func ParseOptions(args string) (opts Options, err error) {
	parts := strings.Split(args, ",")
	opts.Socket = strings.TrimSpace(parts[0])
	if opts.Socket == "" {
		err = errors.New("xinput: missing socket path")
		return
	}
	for _, part := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "debounce":
			if opts.Debounce, err = time.ParseDuration(value); err != nil {
				err = fmt.Errorf("xinput: debounce: %w", err)
				return
			}
		case "queue":
			if opts.Queue, err = strconv.Atoi(value); err != nil {
				err = fmt.Errorf("xinput: queue: %w", err)
				return
			}
		default:
			err = fmt.Errorf("xinput: unknown option %q", key)
			return
		}
	}
	return
}

type Provider struct {
	id   string
	opts Options

	source   *contact.Source
	listener net.Listener

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
	closing bool

	// pointer state, touched by connection goroutines under mu
	pointerX, pointerY int32
	pressed            bool
}

func New(id string, opts Options) *Provider {
	source := contact.NewSource(id, opts.Queue)
	source.Debounce = opts.Debounce
	return &Provider{
		id:     id,
		opts:   opts,
		source: source,
		conns:  map[net.Conn]struct{}{},
	}
}

// Addr is the socket path being served.
func (p *Provider) Addr() string {
	return p.opts.Socket
}

func (p *Provider) Start() error {
	if err := os.Remove(p.opts.Socket); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("xinput: remove stale socket: %w", err)
	}
	l, err := net.Listen("unix", p.opts.Socket)
	if err != nil {
		return fmt.Errorf("xinput: listen %s: %w", p.opts.Socket, err)
	}
	p.listener = l
	log.Info().Str("provider", p.id).Str("socket", p.opts.Socket).Msg("xinput provider listening")

	p.wg.Add(1)
	go p.accept()
	return nil
}

func (p *Provider) accept() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Warn().Err(err).Str("provider", p.id).Msg("accept failed")
			}
			return
		}
		p.mu.Lock()
		if p.closing {
			p.mu.Unlock()
			conn.Close()
			return
		}
		p.conns[conn] = struct{}{}
		p.wg.Add(1)
		p.mu.Unlock()

		go p.serve(conn)
	}
}

func (p *Provider) serve(conn net.Conn) {
	defer p.wg.Done()
	defer func() {
		p.mu.Lock()
		delete(p.conns, conn)
		p.mu.Unlock()
		conn.Close()
	}()

	buf := make([]byte, MessageSize)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug().Msgf("xinput %s: read failed: %v", p.id, err)
			}
			return
		}
		var msg Message
		msg.Unpack(buf)
		p.handle(&msg)
	}
}

func (p *Provider) handle(msg *Message) {
	switch msg.Type {
	case msgTouchBegin:
		sx, sy := normalize(msg.X, msg.Y)
		p.source.Report(touchloop.TouchDown, int64(msg.TouchID), sx, sy)
	case msgTouchUpdate:
		sx, sy := normalize(msg.X, msg.Y)
		p.source.Report(touchloop.TouchMove, int64(msg.TouchID), sx, sy)
	case msgTouchEndWithPayload:
		sx, sy := normalize(msg.X, msg.Y)
		p.source.Report(touchloop.TouchUp, int64(msg.TouchID), sx, sy)
	case msgTouchEndWithoutPayload:
		p.source.Report(touchloop.TouchUp, int64(msg.TouchID), -1, -1)
	case msgPointerMotion:
		p.mu.Lock()
		p.pointerX, p.pointerY = msg.X, msg.Y
		pressed := p.pressed
		p.mu.Unlock()
		if pressed {
			sx, sy := normalize(msg.X, msg.Y)
			p.source.Report(touchloop.TouchMove, mouseID, sx, sy)
		}
	case msgButtonDown, msgButtonUp:
		if msg.Button != 1 {
			return
		}
		p.mu.Lock()
		p.pressed = msg.Type == msgButtonDown
		x, y := p.pointerX, p.pointerY
		p.mu.Unlock()
		sx, sy := normalize(x, y)
		kind := touchloop.TouchUp
		if msg.Type == msgButtonDown {
			kind = touchloop.TouchDown
		}
		p.source.Report(kind, mouseID, sx, sy)
	case msgScrollMotion:
		// no touch equivalent
	default:
		log.Debug().Msgf("xinput %s: unknown message type %d", p.id, msg.Type)
	}
}

func (p *Provider) Update(dispatch touchloop.DispatchFunc) error {
	p.source.Update(dispatch)
	return nil
}

func (p *Provider) Stop() error {
	p.mu.Lock()
	p.closing = true
	for conn := range p.conns {
		conn.Close()
	}
	p.mu.Unlock()

	var err error
	if p.listener != nil {
		err = p.listener.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	p.wg.Wait()
	p.source.Close()
	return err
}
