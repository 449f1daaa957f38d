//go:build linux

package evdev

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0x00

	btnTouch = 0x14a

	absX            = 0x00
	absY            = 0x01
	absMTSlot       = 0x2f
	absMTPositionX  = 0x35
	absMTPositionY  = 0x36
	absMTTrackingID = 0x39
)

// eventSize is sizeof(struct input_event): a timeval then type, code, value.
var eventSize = int(unsafe.Sizeof(unix.Timeval{})) + 8

type absInfo struct {
	Value      int32
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// ioctl request encoding (Linux _IOC macro)
const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits

	iocWrite = 1
	iocRead  = 2
)

func ioc(dir, typ, nr, size uint32) uintptr {
	return uintptr((dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift))
}

// EVIOCGABS(abs) = _IOR('E', 0x40 + abs, struct input_absinfo)
func evioCGAbs(code int) uintptr {
	return ioc(iocRead, uint32('E'), uint32(0x40+code), uint32(unsafe.Sizeof(absInfo{})))
}

// EVIOCGRAB = _IOW('E', 0x90, int)
func evioCGrab() uintptr {
	return ioc(iocWrite, uint32('E'), 0x90, uint32(unsafe.Sizeof(int32(0))))
}

func getAbsInfo(fd uintptr, code int) (absInfo, error) {
	var info absInfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, evioCGAbs(code), uintptr(unsafe.Pointer(&info)))
	if errno != 0 {
		return absInfo{}, errno
	}
	return info, nil
}

func grab(fd uintptr) error {
	return unix.IoctlSetInt(int(fd), uint(evioCGrab()), 1)
}

type axis struct {
	min, max int32
}

func (a axis) normalize(v int32) float64 {
	if a.max <= a.min {
		return 0
	}
	n := float64(v-a.min) / float64(a.max-a.min)
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}

// readSlots returns the number of multitouch slots, or 0 for a single
// touch device.
func readSlots(fd uintptr) int {
	info, err := getAbsInfo(fd, absMTSlot)
	if err != nil || info.Max < info.Min || info.Max < 0 {
		return 0
	}
	return int(info.Max) + 1
}

// readAxis prefers the multitouch axis and falls back to the single touch
// one.
func readAxis(fd uintptr, mt, st int) (axis, bool) {
	if info, err := getAbsInfo(fd, mt); err == nil && info.Max > info.Min {
		return axis{min: info.Min, max: info.Max}, true
	}
	if info, err := getAbsInfo(fd, st); err == nil && info.Max > info.Min {
		return axis{min: info.Min, max: info.Max}, true
	}
	return axis{}, false
}

// parser splits a byte stream into input events.
type parser struct {
	buf []byte
}

func (p *parser) feed(chunk []byte, cb func(typ, code uint16, value int32)) {
	p.buf = append(p.buf, chunk...)
	off := eventSize - 8
	for len(p.buf) >= eventSize {
		ev := p.buf[:eventSize]
		typ := binary.LittleEndian.Uint16(ev[off : off+2])
		code := binary.LittleEndian.Uint16(ev[off+2 : off+4])
		value := int32(binary.LittleEndian.Uint32(ev[off+4 : off+8]))
		cb(typ, code, value)
		p.buf = p.buf[eventSize:]
	}
	if len(p.buf) == 0 {
		p.buf = p.buf[:0:0]
	}
}
