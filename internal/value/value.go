package value

import (
	"strconv"
)

// Kind discriminates the four cases of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObject
)

// Value is the tagged union every Lox value fits in. Numbers and booleans
// live inline; object references point at heap objects owned by a heap.Heap.
type Value struct {
	Kind Kind
	B    bool
	Num  float64
	Obj  Object
}

func Nil() Value { return Value{Kind: KindNil} }
func Bool(b bool) Value {
	return Value{Kind: KindBool, B: b}
}
func Number(n float64) Value {
	return Value{Kind: KindNumber, Num: n}
}
func ObjVal(o Object) Value {
	return Value{Kind: KindObject, Obj: o}
}

func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObject() bool { return v.Kind == KindObject }

// IsObjType reports whether v references an object of type t.
func (v Value) IsObjType(t ObjType) bool {
	return v.Kind == KindObject && v.Obj != nil && v.Obj.Type() == t
}

func (v Value) IsString() bool   { return v.IsObjType(ObjString) }
func (v Value) IsClass() bool    { return v.IsObjType(ObjClass) }
func (v Value) IsInstance() bool { return v.IsObjType(ObjInstance) }

// AsString returns the referenced string, or nil when v is not a string.
func (v Value) AsString() *String {
	s, _ := v.Obj.(*String)
	return s
}

func (v Value) AsClass() *Class {
	c, _ := v.Obj.(*Class)
	return c
}

func (v Value) AsInstance() *Instance {
	i, _ := v.Obj.(*Instance)
	return i
}

func (v Value) AsClosure() *Closure {
	c, _ := v.Obj.(*Closure)
	return c
}

// Falsey reports whether v counts as false in a condition: only nil and
// false do.
func Falsey(v Value) bool {
	return v.Kind == KindNil || (v.Kind == KindBool && !v.B)
}

// Equal compares by value for nil, booleans and numbers and by identity for
// objects. Strings are interned, so identity is content equality.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.B == b.B
	case KindNumber:
		return a.Num == b.Num
	case KindObject:
		return a.Obj == b.Obj
	default:
		return false
	}
}

// String renders v the way the print statement does.
func (v Value) String() string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.B {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.Num)
	case KindObject:
		return formatObject(v.Obj)
	default:
		return "<unknown>"
	}
}

// FormatNumber renders a number in shortest general form (%g style).
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// TypeName reports the dynamic type name for diagnostics.
func TypeName(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObject:
		if v.Obj == nil {
			return "nil"
		}
		return v.Obj.Type().String()
	default:
		return "unknown"
	}
}
