//go:build linux

package evdev

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/phuslu/log"

	"go.yuchanns.xyz/touchloop"
	"go.yuchanns.xyz/touchloop/internal/contact"
)

const Backend = "evdev"

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
	Path    string
	Grab    bool
	Queue   int
	InvertX bool
	InvertY bool
	SwapXY  bool
}

// ParseOptions parses
// "path[,grab][,queue=N][,invert_x][,invert_y][,swap_xy]".
func ParseOptions(args string) (opts Options, err error) {
	parts := strings.Split(args, ",")
	opts.Path = strings.TrimSpace(parts[0])
	if opts.Path == "" {
		err = errors.New("evdev: missing device path")
		return
	}
	for _, part := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "grab":
			opts.Grab = true
		case "invert_x":
			opts.InvertX = true
		case "invert_y":
			opts.InvertY = true
		case "swap_xy":
			opts.SwapXY = true
		case "queue":
			if opts.Queue, err = strconv.Atoi(value); err != nil {
				err = fmt.Errorf("evdev: queue: %w", err)
				return
			}
		default:
			err = fmt.Errorf("evdev: unknown option %q", key)
			return
		}
	}
	return
}

type Provider struct {
	id   string
	opts Options

	source *contact.Source
	file   *os.File
	rangeX axis
	rangeY axis
	slots  int
	wg     sync.WaitGroup
}

func New(id string, opts Options) *Provider {
	return &Provider{
		id:     id,
		opts:   opts,
		source: contact.NewSource(id, opts.Queue),
	}
}

func (p *Provider) Start() error {
	f, err := os.Open(p.opts.Path)
	if err != nil {
		return fmt.Errorf("evdev: open %s: %w", p.opts.Path, err)
	}
	rc, err := f.SyscallConn()
	if err != nil {
		f.Close()
		return fmt.Errorf("evdev: %s: %w", p.opts.Path, err)
	}
	// Fd() would switch the file to blocking mode and Close could no longer
	// interrupt the reader.
	var okX, okY bool
	var grabErr error
	err = rc.Control(func(fd uintptr) {
		p.rangeX, okX = readAxis(fd, absMTPositionX, absX)
		p.rangeY, okY = readAxis(fd, absMTPositionY, absY)
		p.slots = readSlots(fd)
		if p.opts.Grab {
			grabErr = grab(fd)
		}
	})
	if err == nil && (!okX || !okY) {
		err = errors.New("device reports no absolute axes")
	}
	if err == nil {
		err = grabErr
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("evdev: %s: %w", p.opts.Path, err)
	}
	p.file = f
	log.Info().Str("provider", p.id).Str("device", p.opts.Path).
		Int("slots", p.slots).
		Msgf("evdev range x=[%d,%d] y=[%d,%d]", p.rangeX.min, p.rangeX.max, p.rangeY.min, p.rangeY.max)

	p.wg.Add(1)
	go p.read()
	return nil
}

func (p *Provider) read() {
	defer p.wg.Done()
	tr := newTracker(p.slots, p.report)
	var ps parser
	buf := make([]byte, eventSize*64)
	for {
		n, err := p.file.Read(buf)
		if n > 0 {
			ps.feed(buf[:n], tr.event)
		}
		if err != nil {
			if !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Str("provider", p.id).Msg("evdev read failed")
			}
			return
		}
	}
}

func (p *Provider) report(kind touchloop.EventKind, id int64, x, y int32) {
	sx, sy := p.rangeX.normalize(x), p.rangeY.normalize(y)
	if p.opts.SwapXY {
		sx, sy = sy, sx
	}
	if p.opts.InvertX {
		sx = 1 - sx
	}
	if p.opts.InvertY {
		sy = 1 - sy
	}
	if !p.source.Report(kind, id, sx, sy) {
		log.Debug().Msgf("evdev %s: queue full, dropped %s for %d", p.id, kind, id)
	}
}

func (p *Provider) Update(dispatch touchloop.DispatchFunc) error {
	p.source.Update(dispatch)
	return nil
}

func (p *Provider) Stop() error {
	var err error
	if p.file != nil {
		err = p.file.Close()
		p.wg.Wait()
		p.file = nil
	}
	p.source.Close()
	return err
}
