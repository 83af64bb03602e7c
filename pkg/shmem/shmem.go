// Package shmem implements the shared-memory transport process-prefetch
// workers use to hand elements back to the consumer without a
// serialize/deserialize round trip for the bulk of an Element's bytes
// (spec §4.D / §9's "shared memory backs the worker-to-consumer
// transport"). An Array's flat float64 slice is written into an mmap'd
// arena; a small Descriptor (file, offset, length) is cheap to pass
// across the worker boundary instead, with shape and dtype carried beside
// it.
package shmem

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/Sumatoshi-tech/lazygrain/pkg/value"
)

const float64Size = int64(unsafe.Sizeof(float64(0)))

// Arena is an mmap-backed arena of float64 values, grown by remapping a
// backing temp file (mirrors the teacher's MmapArray[T] pattern: truncate,
// syscall.Mmap with MAP_SHARED, remap on growth, unlink on close).
type Arena struct {
	file     *os.File
	data     []byte
	capacity int64 // in float64 elements
	used     atomic.Int64
	mu       sync.Mutex
	closed   bool
}

// NewArena creates an arena backed by a fresh temp file sized for at
// least initialCapacity float64 elements, rounded up to a whole page.
func NewArena(dir string, initialCapacity int64) (*Arena, error) {
	file, err := os.CreateTemp(dir, "lazygrain-shmem-*.arena")
	if err != nil {
		return nil, fmt.Errorf("shmem: create temp file: %w", err)
	}

	pageSize := int64(os.Getpagesize())
	fileSize := roundUpToPage(initialCapacity*float64Size, pageSize)

	if err := file.Truncate(fileSize); err != nil {
		file.Close()
		os.Remove(file.Name())

		return nil, fmt.Errorf("shmem: truncate: %w", err)
	}

	data, err := syscall.Mmap(int(file.Fd()), 0, int(fileSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		file.Close()
		os.Remove(file.Name())

		return nil, fmt.Errorf("shmem: mmap: %w", err)
	}

	return &Arena{file: file, data: data, capacity: fileSize / float64Size}, nil
}

// Path returns the backing temp file's path, the key Registry indexes
// arenas by.
func (a *Arena) Path() string {
	return a.file.Name()
}

func roundUpToPage(n, pageSize int64) int64 {
	if n < pageSize {
		return pageSize
	}

	return ((n + pageSize - 1) / pageSize) * pageSize
}

// Write copies vals into the arena and returns a Descriptor locating them.
// Write grows the backing file (and remaps) if the arena is full.
func (a *Arena) Write(vals []float64) (Descriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return Descriptor{}, fmt.Errorf("shmem: arena closed")
	}

	n := int64(len(vals))

	offset := a.used.Load()
	if offset+n > a.capacity {
		if err := a.growLocked(offset + n); err != nil {
			return Descriptor{}, err
		}
	}

	byteOff := offset * float64Size
	dst := unsafe.Slice((*float64)(unsafe.Pointer(&a.data[byteOff])), n)
	copy(dst, vals)

	a.used.Store(offset + n)

	return Descriptor{Path: a.file.Name(), Offset: offset, Length: n}, nil
}

// growLocked doubles capacity (at least to need) by unmapping, truncating,
// and remapping the backing file, exactly as the teacher's MmapArray.grow
// does.
func (a *Arena) growLocked(need int64) error {
	newCapacity := a.capacity * 2
	if newCapacity < need {
		newCapacity = need
	}

	pageSize := int64(os.Getpagesize())
	newSize := roundUpToPage(newCapacity*float64Size, pageSize)

	if err := syscall.Munmap(a.data); err != nil {
		return fmt.Errorf("shmem: munmap during grow: %w", err)
	}

	if err := a.file.Truncate(newSize); err != nil {
		return fmt.Errorf("shmem: truncate during grow: %w", err)
	}

	data, err := syscall.Mmap(int(a.file.Fd()), 0, int(newSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("shmem: remap during grow: %w", err)
	}

	a.data = data
	a.capacity = newSize / float64Size

	return nil
}

// Read returns a copy of the float64 range d describes. The caller never
// gets a slice aliasing the mmap'd region directly, so the arena remains
// free to grow/remap under it.
func (a *Arena) Read(d Descriptor) []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	byteOff := d.Offset * float64Size
	src := unsafe.Slice((*float64)(unsafe.Pointer(&a.data[byteOff])), d.Length)

	out := make([]float64, d.Length)
	copy(out, src)

	return out
}

// Close unmaps and removes the backing file. Safe to call more than once.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	a.closed = true

	name := a.file.Name()

	var firstErr error
	if err := syscall.Munmap(a.data); err != nil {
		firstErr = fmt.Errorf("shmem: munmap: %w", err)
	}

	if err := a.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shmem: close: %w", err)
	}

	if err := os.Remove(name); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("shmem: remove: %w", err)
	}

	return firstErr
}

// Descriptor locates a run of float64 values inside an Arena's backing
// file. Descriptors are the cheap, process/goroutine-boundary-crossable
// handle spec §4.D's shared-memory transport requires: passing one costs
// a few machine words, not a copy of the underlying array.
type Descriptor struct {
	Path   string
	Offset int64
	Length int64
}

// PutArray writes arr's flattened data into the arena and returns a
// Descriptor plus the shape/dtype needed to reconstitute it. Only
// contiguous arrays may be transported this way (value.Array.Contiguous);
// non-contiguous leaves are copied through the element directly instead.
func PutArray(a *Arena, arr value.Array) (Descriptor, error) {
	if !arr.Contiguous() {
		return Descriptor{}, fmt.Errorf("shmem: array is not contiguous")
	}

	return a.Write(arr.Data)
}

// GetArray reconstitutes an Array from the arena using d plus the
// original shape/dtype.
func GetArray(a *Arena, d Descriptor, shape []int, dtype value.Dtype) value.Array {
	return value.Array{
		Shape: append([]int(nil), shape...),
		Dtype: dtype,
		Data:  a.Read(d),
	}
}
