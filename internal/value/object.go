package value

import (
	"hash/fnv"
)

// ObjType enumerates the heap object variants.
type ObjType uint8

const (
	ObjString ObjType = iota
	ObjFunction
	ObjClosure
	ObjUpvalue
	ObjClass
	ObjInstance
	ObjBoundMethod
	ObjNative
)

func (t ObjType) String() string {
	switch t {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	case ObjClass:
		return "class"
	case ObjInstance:
		return "instance"
	case ObjBoundMethod:
		return "bound method"
	case ObjNative:
		return "native"
	default:
		return "unknown"
	}
}

// Object is implemented by every heap object variant. The set is closed:
// only types in this package can satisfy it.
type Object interface {
	Type() ObjType
	header() *Header
}

// Header is embedded in every heap object. Marked is the collector's mark
// bit; Next links the object into the heap's list of all objects.
type Header struct {
	Marked bool
	Next   Object
}

func (h *Header) header() *Header { return h }

// HeaderOf exposes the header of o to the heap.
func HeaderOf(o Object) *Header {
	return o.header()
}

// String is an immutable interned character sequence.
type String struct {
	Header
	Chars string
	Hash  uint32
}

func (*String) Type() ObjType { return ObjString }

// HashString computes the 32-bit FNV-1a hash used by tables.
func HashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

// Function is a compiled function body. A nil Name marks the top-level
// script.
type Function struct {
	Header
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *String
}

func (*Function) Type() ObjType { return ObjFunction }

// DisplayName is the name used in stack traces: the function name, or
// "script" for top-level code.
func (f *Function) DisplayName() string {
	if f.Name == nil {
		return "script"
	}
	return f.Name.Chars
}

// Closure pairs a Function with the upvalues it captured.
type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func (*Closure) Type() ObjType { return ObjClosure }

// Upvalue is a captured variable. It starts open, aliasing a slot of the
// VM stack, and is closed exactly once when that slot goes out of scope,
// after which it owns the value.
type Upvalue struct {
	Header
	slot   int
	closed Value
	open   bool
	// NextOpen links open upvalues in descending slot order.
	NextOpen *Upvalue
}

func (*Upvalue) Type() ObjType { return ObjUpvalue }

// NewUpvalue returns an open upvalue aliasing stack slot.
func NewUpvalue(slot int) *Upvalue {
	return &Upvalue{slot: slot, open: true}
}

func (u *Upvalue) IsOpen() bool { return u.open }

// Slot returns the aliased stack slot; meaningful only while open.
func (u *Upvalue) Slot() int { return u.slot }

// Closed returns the owned value; meaningful only once closed.
func (u *Upvalue) Closed() Value { return u.closed }

// Close moves v into the upvalue. Closing an already closed upvalue does
// nothing.
func (u *Upvalue) Close(v Value) {
	if !u.open {
		return
	}
	u.closed = v
	u.open = false
	u.NextOpen = nil
}

// Get reads the variable through stack while open.
func (u *Upvalue) Get(stack []Value) Value {
	if u.open {
		return stack[u.slot]
	}
	return u.closed
}

// Set writes the variable through stack while open.
func (u *Upvalue) Set(stack []Value, v Value) {
	if u.open {
		stack[u.slot] = v
		return
	}
	u.closed = v
}

// Release drops the owned value of a closed upvalue.
func (u *Upvalue) Release() {
	u.closed = Nil()
}

// Class holds a name and its method table (name -> *Closure).
type Class struct {
	Header
	Name    *String
	Methods Table
}

func (*Class) Type() ObjType { return ObjClass }

// Instance is an object of a class with its own field table.
type Instance struct {
	Header
	Class  *Class
	Fields Table
}

func (*Instance) Type() ObjType { return ObjInstance }

// BoundMethod is a method closure paired with the receiver it was read from.
type BoundMethod struct {
	Header
	Receiver Value
	Method   *Closure
}

func (*BoundMethod) Type() ObjType { return ObjBoundMethod }

// NativeFn is a host function. args is the window of the VM stack holding
// the call's arguments.
type NativeFn func(args []Value) (Value, error)

// Native wraps a host function. Arity -1 accepts any argument count.
type Native struct {
	Header
	Name  string
	Arity int
	Fn    NativeFn
}

func (*Native) Type() ObjType { return ObjNative }

func formatObject(o Object) string {
	switch obj := o.(type) {
	case *String:
		return obj.Chars
	case *Function:
		return formatFunction(obj)
	case *Closure:
		return formatFunction(obj.Function)
	case *BoundMethod:
		return formatFunction(obj.Method.Function)
	case *Upvalue:
		return "upvalue"
	case *Class:
		return obj.Name.Chars
	case *Instance:
		return obj.Class.Name.Chars + " instance"
	case *Native:
		return "<native fn>"
	default:
		return "<unknown>"
	}
}

func formatFunction(f *Function) string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Chars + ">"
}
