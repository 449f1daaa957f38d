// Package ring is a fixed-capacity queue living outside the Go heap, used
// to hand samples from device goroutines to the loop goroutine.
package ring

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/phuslu/log"
	"github.com/smasher164/mem"
	"go.yuchanns.xyz/xxchan"
)

type Allocator interface {
	Alloc(size uint) unsafe.Pointer
	Free(ptr unsafe.Pointer)
}

var malloc Allocator = &defaultAllocator{}

type defaultAllocator struct{}

func (a *defaultAllocator) Alloc(size uint) unsafe.Pointer {
	return mem.Alloc(size)
}

func (a *defaultAllocator) Free(ptr unsafe.Pointer) {
	mem.Free(ptr)
}

var allocInit atomic.Int32

// SetAllocator replaces the allocator backing new rings. It may be called
// once, before any ring is created.
func SetAllocator(alloc Allocator) {
	if alloc == nil {
		panic("allocator cannot be nil")
	}
	if allocInit.Add(1) != 1 {
		panic("allocator can only be set once")
	}
	malloc = alloc
}

func alignPow2(x uint) uint {
	if x <= 1 {
		return 1
	}
	return 1 << bits.Len(x-1)
}

// Ring is a bounded queue of T. T must not contain Go pointers: the
// storage is invisible to the garbage collector.
type Ring[T any] struct {
	ch      *xxchan.Channel[T]
	ptr     unsafe.Pointer
	size    int
	dropped atomic.Uint64
}

// New allocates a ring holding at least size elements, rounded up to a
// power of two.
func New[T any](size int) *Ring[T] {
	n := int(alignPow2(uint(size)))
	ptr := malloc.Alloc(uint(xxchan.Sizeof[T](n)))
	return &Ring[T]{
		ch:   xxchan.Make[T](ptr, n),
		ptr:  ptr,
		size: n,
	}
}

// Cap is the ring capacity.
func (r *Ring[T]) Cap() int {
	return r.size
}

// Push appends v. When the ring is full v is dropped and counted.
func (r *Ring[T]) Push(v T) bool {
	if r.ch.Push(v) {
		return true
	}
	n := r.dropped.Add(1)
	log.Debug().Msgf("ring full, %d samples dropped", n)
	return false
}

func (r *Ring[T]) Pop() (T, bool) {
	return r.ch.Pop()
}

// Drain pops everything currently queued into fn and returns the count.
func (r *Ring[T]) Drain(fn func(T)) (n int) {
	for {
		v, ok := r.ch.Pop()
		if !ok {
			return
		}
		fn(v)
		n++
	}
}

// Dropped is the number of pushes refused because the ring was full.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}

// Free releases the storage. No Push or Pop may follow.
func (r *Ring[T]) Free() {
	if r.ptr == nil {
		return
	}
	malloc.Free(r.ptr)
	r.ptr = nil
	r.ch = nil
}
