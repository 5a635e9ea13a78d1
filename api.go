// Package lox embeds the Lox scripting language: a single-pass compiler to
// bytecode and a stack VM with a garbage-collected heap.
package lox

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xirelogy/go-lox/internal/bytecode"
	"github.com/xirelogy/go-lox/internal/compiler"
	"github.com/xirelogy/go-lox/internal/heap"
	"github.com/xirelogy/go-lox/internal/value"
	"github.com/xirelogy/go-lox/internal/vm"
)

// Value is a Lox runtime value.
type Value = value.Value

// Function is a compiled Lox function; Compile returns the top-level one.
type Function = value.Function

// NativeFunc is a host function callable from scripts.
type NativeFunc = value.NativeFn

// Number, Bool and Nil construct values for natives to return.
func Number(n float64) Value { return value.Number(n) }
func Bool(b bool) Value      { return value.Bool(b) }
func Nil() Value             { return value.Nil() }

// Result is the terminal status of Interpret.
type Result int

const (
	ResultOK Result = iota
	ResultCompileError
	ResultRuntimeError
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultCompileError:
		return "compile error"
	case ResultRuntimeError:
		return "runtime error"
	default:
		return "unknown"
	}
}

// Diagnostic is a single compile error.
type Diagnostic struct {
	Line    int
	Where   string
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[line %d] Error%s: %s", d.Line, d.Where, d.Message)
}

// CompileError reports every diagnostic found in a source.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// FrameTrace describes a single frame in a runtime error.
type FrameTrace struct {
	Function string
	Line     int
	IP       int
}

func (f FrameTrace) String() string {
	if f.Function == "" {
		return fmt.Sprintf("[line %d] in script", f.Line)
	}
	return fmt.Sprintf("[line %d] in %s()", f.Line, f.Function)
}

// RuntimeError is an execution failure surfaced from the VM. Stack lists
// the active frames, innermost first.
type RuntimeError struct {
	Message string
	Frame   FrameTrace
	Stack   []FrameTrace
	Cause   error
}

func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	for _, fr := range e.Stack {
		sb.WriteByte('\n')
		sb.WriteString(fr.String())
	}
	return sb.String()
}

// Unwrap exposes the underlying cause (if any) for errors.Is/As.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

func convertError(err error) error {
	if err == nil {
		return nil
	}
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		out := &CompileError{Diagnostics: make([]Diagnostic, len(cerr.Diagnostics))}
		for i, d := range cerr.Diagnostics {
			out.Diagnostics[i] = Diagnostic{Line: d.Line, Where: d.Where, Message: d.Message}
		}
		return out
	}
	var rerr *vm.RuntimeError
	if errors.As(err, &rerr) {
		return &RuntimeError{
			Message: rerr.Message,
			Frame:   frameTraceFromVM(rerr.Frame),
			Stack:   stackTraceFromVM(rerr.Stack),
			Cause:   rerr.Cause,
		}
	}
	return err
}

func frameTraceFromVM(info vm.FrameInfo) FrameTrace {
	return FrameTrace{
		Function: info.Function,
		Line:     info.Line,
		IP:       info.IP,
	}
}

func stackTraceFromVM(stack []vm.FrameInfo) []FrameTrace {
	if len(stack) == 0 {
		return nil
	}
	out := make([]FrameTrace, len(stack))
	for i, fr := range stack {
		out[i] = frameTraceFromVM(fr)
	}
	return out
}

// Options configures an Interpreter. Zero values select the defaults.
type Options struct {
	// Stdout receives print output; Stderr receives error reports.
	Stdout io.Writer
	Stderr io.Writer
	// Trace, when set, receives a stack dump and disassembly of every
	// instruction before it runs.
	Trace io.Writer

	InstructionLimit int

	GCInitialThreshold int
	GCGrowFactor       int
	GCStress           bool
}

// GCStats reports collector bookkeeping.
type GCStats struct {
	BytesAllocated int
	NextGC         int
	Collections    int
	Objects        int
	Freed          int
}

// Interpreter is a VM whose globals persist across Interpret calls. It is
// not safe for concurrent use.
type Interpreter struct {
	vm   *vm.VM
	heap *heap.Heap
}

// New creates an interpreter with its own heap.
func New(opts Options) *Interpreter {
	h := heap.New(heap.Config{
		InitialThreshold: opts.GCInitialThreshold,
		GrowFactor:       opts.GCGrowFactor,
		Stress:           opts.GCStress,
	})
	machine := vm.New(h)
	if opts.Stdout != nil {
		machine.SetOutput(opts.Stdout)
	}
	if opts.Stderr != nil {
		machine.SetErrorOutput(opts.Stderr)
	}
	if opts.Trace != nil {
		machine.SetTraceHook(vm.NewTracer(opts.Trace))
	}
	machine.SetInstructionLimit(opts.InstructionLimit)
	return &Interpreter{vm: machine, heap: h}
}

// Interpret compiles and runs source. The error is a *CompileError or a
// *RuntimeError matching the result.
func (in *Interpreter) Interpret(source string) (Result, error) {
	res, err := in.vm.Interpret(source)
	switch res {
	case vm.ResultCompileError:
		return ResultCompileError, convertError(err)
	case vm.ResultRuntimeError:
		return ResultRuntimeError, convertError(err)
	default:
		return ResultOK, nil
	}
}

// DefineNative binds fn to a global name. arity -1 accepts any number of
// arguments.
func (in *Interpreter) DefineNative(name string, arity int, fn NativeFunc) {
	in.vm.DefineNative(name, arity, fn)
}

// String returns the interned string value for s.
func (in *Interpreter) String(s string) Value {
	return value.ObjVal(in.heap.NewString(s))
}

// Global looks up a global variable.
func (in *Interpreter) Global(name string) (Value, bool) {
	return in.vm.Global(name)
}

// GCStats snapshots the collector.
func (in *Interpreter) GCStats() GCStats {
	s := in.heap.Stats()
	return GCStats{
		BytesAllocated: s.BytesAllocated,
		NextGC:         s.NextGC,
		Collections:    s.Collections,
		Objects:        s.Objects,
		Freed:          s.Freed,
	}
}

// SetStressGC toggles collecting on every allocation.
func (in *Interpreter) SetStressGC(on bool) {
	in.heap.SetStress(on)
}

// CollectGarbage forces a full collection.
func (in *Interpreter) CollectGarbage() {
	in.heap.Collect()
}

// Close frees every object owned by the interpreter.
func (in *Interpreter) Close() {
	in.vm.Free()
}

// Interpret runs source in a fresh interpreter writing to the standard
// streams.
func Interpret(source string) (Result, error) {
	in := New(Options{})
	defer in.Close()
	return in.Interpret(source)
}

// Compile checks source and returns its top-level function.
func Compile(source string) (*Function, error) {
	fn, err := compiler.Compile(heap.New(heap.Config{}), source)
	if err != nil {
		return nil, convertError(err)
	}
	return fn, nil
}

// Disassemble compiles source and writes the bytecode of every function
// in it to w.
func Disassemble(source string, w io.Writer) error {
	fn, err := Compile(source)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stdout
	}
	return bytecode.NewDisassembler(w).DisassembleFunction(fn)
}
