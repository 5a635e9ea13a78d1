package heap

import (
	"github.com/tliron/commonlog"

	"github.com/xirelogy/go-lox/internal/value"
)

// Collect runs a full mark-sweep cycle.
func (h *Heap) Collect() {
	h.collect(nil)
}

func (h *Heap) collect(pending value.Object) {
	before := h.bytesAllocated
	debug := h.log.AllowLevel(commonlog.Debug)
	if debug {
		h.log.Debug("gc begin", "bytes", before, "objects", h.live)
	}

	for _, r := range h.roots {
		r.MarkRoots(h)
	}
	if pending != nil {
		h.blacken(pending)
	}
	h.traceReferences()
	// the intern table does not keep strings alive
	h.strings.RemoveWhite()
	h.sweep()

	h.nextGC = h.bytesAllocated * h.cfg.GrowFactor
	if h.nextGC < h.cfg.InitialThreshold {
		h.nextGC = h.cfg.InitialThreshold
	}
	h.collections++

	if debug {
		h.log.Debug("gc end",
			"collected", before-h.bytesAllocated,
			"from", before,
			"to", h.bytesAllocated,
			"next", h.nextGC)
	}
}

// MarkValue marks the object v references, if any.
func (h *Heap) MarkValue(v value.Value) {
	if v.IsObject() {
		h.MarkObject(v.Obj)
	}
}

// MarkObject colors o gray: it is marked and queued for scanning.
func (h *Heap) MarkObject(o value.Object) {
	if o == nil {
		return
	}
	hdr := value.HeaderOf(o)
	if hdr.Marked {
		return
	}
	hdr.Marked = true
	h.gray = append(h.gray, o)
}

// MarkTable marks every key and value of t.
func (h *Heap) MarkTable(t *value.Table) {
	t.Each(func(key *value.String, v value.Value) {
		h.MarkObject(key)
		h.MarkValue(v)
	})
}

func (h *Heap) markString(s *value.String) {
	if s != nil {
		h.MarkObject(s)
	}
}

func (h *Heap) traceReferences() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray[len(h.gray)-1] = nil
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}
}

// blacken marks everything o references.
func (h *Heap) blacken(o value.Object) {
	switch obj := o.(type) {
	case *value.BoundMethod:
		h.MarkValue(obj.Receiver)
		h.MarkObject(obj.Method)
	case *value.Class:
		h.markString(obj.Name)
		h.MarkTable(&obj.Methods)
	case *value.Closure:
		h.MarkObject(obj.Function)
		for _, uv := range obj.Upvalues {
			if uv != nil {
				h.MarkObject(uv)
			}
		}
	case *value.Function:
		h.markString(obj.Name)
		for _, c := range obj.Chunk.Constants {
			h.MarkValue(c)
		}
	case *value.Instance:
		h.MarkObject(obj.Class)
		h.MarkTable(&obj.Fields)
	case *value.Upvalue:
		// an open upvalue's value lives on the stack, which is a root
		if !obj.IsOpen() {
			h.MarkValue(obj.Closed())
		}
	case *value.String, *value.Native:
	}
}

func (h *Heap) sweep() {
	var prev value.Object
	o := h.objects
	for o != nil {
		hdr := value.HeaderOf(o)
		if hdr.Marked {
			hdr.Marked = false
			prev = o
			o = hdr.Next
			continue
		}
		unreached := o
		o = hdr.Next
		if prev == nil {
			h.objects = o
		} else {
			value.HeaderOf(prev).Next = o
		}
		h.free(unreached)
	}
}

func (h *Heap) free(o value.Object) {
	h.bytesAllocated -= sizeOf(o)
	switch obj := o.(type) {
	case *value.Function:
		obj.Chunk.Free()
	case *value.Closure:
		obj.Upvalues = nil
	case *value.Upvalue:
		obj.Release()
	case *value.Class:
		obj.Methods.Free()
	case *value.Instance:
		obj.Fields.Free()
	case *value.Native:
		obj.Fn = nil
	}
	value.HeaderOf(o).Next = nil
	h.live--
	h.freed++
	if h.onFree != nil {
		h.onFree(o)
	}
}
