package vm

import (
	"fmt"
	"strings"

	"github.com/xirelogy/go-lox/internal/value"
)

// TraceInfo describes a single instruction dispatch for debugging/tracing.
type TraceInfo struct {
	Op       byte
	Function string
	Line     int
	IP       int
	Chunk    *value.Chunk
	// Stack is the live value stack. It is only valid during the hook.
	Stack []value.Value
}

// TraceHook observes instruction dispatch for debugging/profiling.
type TraceHook func(TraceInfo)

// FrameInfo captures one call frame at the time of an error.
type FrameInfo struct {
	// Function is empty for top-level code.
	Function string
	Line     int
	IP       int
}

func (f FrameInfo) String() string {
	if f.Function == "" {
		return fmt.Sprintf("[line %d] in script", f.Line)
	}
	return fmt.Sprintf("[line %d] in %s()", f.Line, f.Function)
}

// RuntimeError is a failure raised while executing bytecode. Stack lists
// the active frames, innermost first.
type RuntimeError struct {
	Message string
	Frame   FrameInfo
	Stack   []FrameInfo
	Cause   error
}

// Error renders the message followed by one line per frame.
func (e *RuntimeError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	for _, fr := range e.Stack {
		sb.WriteByte('\n')
		sb.WriteString(fr.String())
	}
	return sb.String()
}

// Unwrap exposes the original error, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Cause
}

// runtimeError builds the error for the current frames, reports it and
// resets the stack so the VM can run again.
func (vm *VM) runtimeError(cause error, format string, args ...any) error {
	err := &RuntimeError{
		Message: fmt.Sprintf(format, args...),
		Stack:   vm.stackTrace(),
		Cause:   cause,
	}
	if len(err.Stack) > 0 {
		err.Frame = err.Stack[0]
	}
	fmt.Fprintln(vm.errOut, err.Error())
	vm.log.Debug("runtime error", "message", err.Message, "line", err.Frame.Line)
	vm.resetStack()
	return err
}

func (vm *VM) stackTrace() []FrameInfo {
	if vm.frameCount == 0 {
		return nil
	}
	trace := make([]FrameInfo, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		trace = append(trace, frameInfo(&vm.frames[i]))
	}
	return trace
}

// frameInfo locates the instruction fr is executing. ip has already moved
// past it, so the previous byte is used.
func frameInfo(fr *frame) FrameInfo {
	fn := fr.closure.Function
	offset := fr.ip - 1
	info := FrameInfo{
		Line: fn.Chunk.LineAt(offset),
		IP:   offset,
	}
	if fn.Name != nil {
		info.Function = fn.Name.Chars
	}
	return info
}

func (vm *VM) trace(fr *frame) {
	fn := fr.closure.Function
	info := TraceInfo{
		Op:    fn.Chunk.Code[fr.ip],
		Line:  fn.Chunk.LineAt(fr.ip),
		IP:    fr.ip,
		Chunk: &fn.Chunk,
		Stack: vm.stack[:vm.top],
	}
	if fn.Name != nil {
		info.Function = fn.Name.Chars
	}
	vm.traceHook(info)
}
