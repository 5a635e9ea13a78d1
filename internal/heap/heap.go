// Package heap owns every Lox object: it allocates them, interns strings
// and reclaims unreachable objects with a stop-the-world mark-sweep
// collector.
package heap

import (
	"unsafe"

	"github.com/tliron/commonlog"

	"github.com/xirelogy/go-lox/internal/value"
)

const (
	defaultInitialThreshold = 1024 * 1024
	defaultGrowFactor       = 2
)

// Config tunes collection frequency.
type Config struct {
	// InitialThreshold is the allocated byte count that triggers the first
	// collection.
	InitialThreshold int
	// GrowFactor scales the live byte count after a collection into the
	// next threshold.
	GrowFactor int
	// Stress collects on every allocation.
	Stress bool
}

// RootMarker is implemented by owners of references the collector cannot
// discover from the object graph: the VM and any in-progress compiler.
type RootMarker interface {
	MarkRoots(h *Heap)
}

// Stats is a snapshot of collector bookkeeping.
type Stats struct {
	BytesAllocated int
	NextGC         int
	Collections    int
	Objects        int
	Freed          int
}

// Heap is the allocator and collector for one VM.
type Heap struct {
	cfg Config

	objects value.Object
	strings value.Table

	bytesAllocated int
	nextGC         int
	gray           []value.Object
	roots          []RootMarker

	collections int
	live        int
	freed       int
	onFree      func(value.Object)

	log commonlog.Logger
}

// New creates an empty heap. Zero fields in cfg take their defaults.
func New(cfg Config) *Heap {
	if cfg.InitialThreshold <= 0 {
		cfg.InitialThreshold = defaultInitialThreshold
	}
	if cfg.GrowFactor <= 0 {
		cfg.GrowFactor = defaultGrowFactor
	}
	return &Heap{
		cfg:    cfg,
		nextGC: cfg.InitialThreshold,
		log:    commonlog.GetLogger("lox.gc"),
	}
}

// AddRoots registers a root marker consulted at the start of every
// collection.
func (h *Heap) AddRoots(r RootMarker) {
	h.roots = append(h.roots, r)
}

// RemoveRoots unregisters r.
func (h *Heap) RemoveRoots(r RootMarker) {
	for i, existing := range h.roots {
		if existing == r {
			h.roots = append(h.roots[:i], h.roots[i+1:]...)
			return
		}
	}
}

// SetStress toggles collecting on every allocation.
func (h *Heap) SetStress(on bool) {
	h.cfg.Stress = on
}

// SetFreeHook installs fn to observe every object the sweeper frees.
func (h *Heap) SetFreeHook(fn func(value.Object)) {
	h.onFree = fn
}

// Stats reports current bookkeeping.
func (h *Heap) Stats() Stats {
	return Stats{
		BytesAllocated: h.bytesAllocated,
		NextGC:         h.nextGC,
		Collections:    h.collections,
		Objects:        h.live,
		Freed:          h.freed,
	}
}

// Each calls fn for every object currently owned by the heap.
func (h *Heap) Each(fn func(value.Object)) {
	for o := h.objects; o != nil; o = value.HeaderOf(o).Next {
		fn(o)
	}
}

// Interned returns the interned string with the given content without
// allocating, or nil.
func (h *Heap) Interned(chars string) *value.String {
	return h.strings.FindString(chars, value.HashString(chars))
}

// NewString returns the interned string for chars, allocating it on first
// use.
func (h *Heap) NewString(chars string) *value.String {
	hash := value.HashString(chars)
	if interned := h.strings.FindString(chars, hash); interned != nil {
		return interned
	}
	s := &value.String{Chars: chars, Hash: hash}
	h.allocate(s)
	h.strings.Set(s, value.Nil())
	return s
}

// NewFunction allocates an empty function for the compiler to fill in.
func (h *Heap) NewFunction() *value.Function {
	fn := &value.Function{}
	h.allocate(fn)
	return fn
}

// NewClosure allocates a closure over fn with room for its upvalues.
func (h *Heap) NewClosure(fn *value.Function) *value.Closure {
	c := &value.Closure{
		Function: fn,
		Upvalues: make([]*value.Upvalue, fn.UpvalueCount),
	}
	h.allocate(c)
	return c
}

// NewUpvalue allocates an open upvalue for a stack slot.
func (h *Heap) NewUpvalue(slot int) *value.Upvalue {
	uv := value.NewUpvalue(slot)
	h.allocate(uv)
	return uv
}

func (h *Heap) NewClass(name *value.String) *value.Class {
	c := &value.Class{Name: name}
	h.allocate(c)
	return c
}

func (h *Heap) NewInstance(class *value.Class) *value.Instance {
	i := &value.Instance{Class: class}
	h.allocate(i)
	return i
}

func (h *Heap) NewBoundMethod(receiver value.Value, method *value.Closure) *value.BoundMethod {
	b := &value.BoundMethod{Receiver: receiver, Method: method}
	h.allocate(b)
	return b
}

func (h *Heap) NewNative(name string, arity int, fn value.NativeFn) *value.Native {
	n := &value.Native{Name: name, Arity: arity, Fn: fn}
	h.allocate(n)
	return n
}

// allocate accounts for o, possibly collecting first, then links o into
// the object list. o is not linked while a collection runs here, so it
// cannot be freed; the objects it references are marked on its behalf.
func (h *Heap) allocate(o value.Object) {
	h.bytesAllocated += sizeOf(o)
	if h.cfg.Stress || h.bytesAllocated > h.nextGC {
		h.collect(o)
	}
	value.HeaderOf(o).Next = h.objects
	h.objects = o
	h.live++
}

// sizeOf estimates the bytes attributed to o. It depends only on data
// fixed at allocation time so allocation and free account identically.
func sizeOf(o value.Object) int {
	switch obj := o.(type) {
	case *value.String:
		return int(unsafe.Sizeof(*obj)) + len(obj.Chars)
	case *value.Function:
		return int(unsafe.Sizeof(*obj))
	case *value.Closure:
		return int(unsafe.Sizeof(*obj)) + len(obj.Upvalues)*int(unsafe.Sizeof(obj))
	case *value.Upvalue:
		return int(unsafe.Sizeof(*obj))
	case *value.Class:
		return int(unsafe.Sizeof(*obj))
	case *value.Instance:
		return int(unsafe.Sizeof(*obj))
	case *value.BoundMethod:
		return int(unsafe.Sizeof(*obj))
	case *value.Native:
		return int(unsafe.Sizeof(*obj))
	default:
		return 0
	}
}
