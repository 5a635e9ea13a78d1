package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/xirelogy/go-lox/internal/bytecode"
	"github.com/xirelogy/go-lox/internal/compiler"
	"github.com/xirelogy/go-lox/internal/heap"
	"github.com/xirelogy/go-lox/internal/natives"
	"github.com/xirelogy/go-lox/internal/value"
)

const (
	// FramesMax bounds call depth.
	FramesMax = 64
	// StackMax is the initial value stack size: 256 slots for every frame.
	// A frame may use more, so push grows the stack on demand.
	StackMax = FramesMax * 256
)

// Result is the outcome of Interpret.
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

type frame struct {
	closure *value.Closure
	ip      int
	// base is the stack slot holding the callee; locals follow it.
	base int
}

// VM is a stack-based bytecode interpreter. Globals persist across calls
// to Interpret.
type VM struct {
	heap *heap.Heap

	stack []value.Value
	top   int

	frames     [FramesMax]frame
	frameCount int

	globals      value.Table
	openUpvalues *value.Upvalue
	initString   *value.String

	out    io.Writer
	errOut io.Writer

	traceHook TraceHook
	instLimit int
	instCount int

	log commonlog.Logger
}

// New constructs a VM allocating from h, or from a fresh heap when h is
// nil. Every registered native is defined as a global.
func New(h *heap.Heap) *VM {
	if h == nil {
		h = heap.New(heap.Config{})
	}
	vm := &VM{
		heap:   h,
		stack:  make([]value.Value, StackMax),
		out:    os.Stdout,
		errOut: os.Stderr,
		log:    commonlog.GetLogger("lox.vm"),
	}
	h.AddRoots(vm)
	vm.initString = h.NewString("init")
	for _, spec := range natives.All() {
		vm.DefineNative(spec.Name, spec.Arity, spec.Fn)
	}
	return vm
}

// Free releases every object the VM owns. The VM must not be used again.
func (vm *VM) Free() {
	vm.resetStack()
	vm.globals.Free()
	vm.initString = nil
	vm.heap.RemoveRoots(vm)
	vm.heap.Collect()
}

// SetOutput redirects print statements.
func (vm *VM) SetOutput(w io.Writer) {
	vm.out = w
}

// SetErrorOutput redirects compile and runtime error reports.
func (vm *VM) SetErrorOutput(w io.Writer) {
	vm.errOut = w
}

// SetTraceHook registers a callback invoked before every instruction.
func (vm *VM) SetTraceHook(h TraceHook) {
	vm.traceHook = h
}

// SetInstructionLimit caps the number of instructions executed per
// Interpret (0 for unlimited).
func (vm *VM) SetInstructionLimit(limit int) {
	if limit < 0 {
		limit = 0
	}
	vm.instLimit = limit
}

// DefineNative binds a host function to a global name. arity -1 accepts
// any number of arguments.
func (vm *VM) DefineNative(name string, arity int, fn value.NativeFn) {
	// both objects stay on the stack until the globals table holds them
	vm.push(value.ObjVal(vm.heap.NewString(name)))
	vm.push(value.ObjVal(vm.heap.NewNative(name, arity, fn)))
	vm.globals.Set(vm.peek(1).AsString(), vm.peek(0))
	vm.pop()
	vm.pop()
	vm.log.Debugf("defined native %s/%d", name, arity)
}

// Interpret compiles and runs source. Compile diagnostics and runtime
// error reports are also written to the error output.
func (vm *VM) Interpret(source string) (Result, error) {
	fn, err := compiler.Compile(vm.heap, source)
	if err != nil {
		fmt.Fprintln(vm.errOut, err)
		return ResultCompileError, err
	}

	vm.instCount = 0
	vm.push(value.ObjVal(fn))
	closure := vm.heap.NewClosure(fn)
	vm.pop()
	vm.push(value.ObjVal(closure))
	if err := vm.call(closure, 0); err != nil {
		return ResultRuntimeError, err
	}
	if err := vm.run(); err != nil {
		return ResultRuntimeError, err
	}
	return ResultOK, nil
}

// resetStack abandons every frame. Open upvalues are closed first so
// closures that escaped keep the values they captured.
func (vm *VM) resetStack() {
	vm.closeUpvalues(0)
	vm.top = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

func (vm *VM) push(v value.Value) {
	if vm.top == len(vm.stack) {
		vm.stack = append(vm.stack, make([]value.Value, len(vm.stack))...)
	}
	vm.stack[vm.top] = v
	vm.top++
}

func (vm *VM) pop() value.Value {
	vm.top--
	return vm.stack[vm.top]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.top-1-distance]
}

func (fr *frame) readByte() byte {
	b := fr.closure.Function.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (fr *frame) readShort() int {
	code := fr.closure.Function.Chunk.Code
	fr.ip += 2
	return int(code[fr.ip-2])<<8 | int(code[fr.ip-1])
}

func (fr *frame) readConstant() value.Value {
	return fr.closure.Function.Chunk.Constants[fr.readByte()]
}

func (fr *frame) readString() *value.String {
	return fr.readConstant().AsString()
}

// MarkRoots marks everything the running program can still reach.
func (vm *VM) MarkRoots(h *heap.Heap) {
	for i := 0; i < vm.top; i++ {
		h.MarkValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		h.MarkObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		h.MarkObject(uv)
	}
	h.MarkTable(&vm.globals)
	if vm.initString != nil {
		h.MarkObject(vm.initString)
	}
}

func (vm *VM) run() error {
	fr := &vm.frames[vm.frameCount-1]
	for {
		if vm.traceHook != nil {
			vm.trace(fr)
		}
		if vm.instLimit > 0 {
			vm.instCount++
			if vm.instCount > vm.instLimit {
				return vm.runtimeError(nil, "Instruction limit exceeded.")
			}
		}

		op := fr.readByte()
		switch op {
		case bytecode.OP_CONSTANT:
			vm.push(fr.readConstant())
		case bytecode.OP_NIL:
			vm.push(value.Nil())
		case bytecode.OP_TRUE:
			vm.push(value.Bool(true))
		case bytecode.OP_FALSE:
			vm.push(value.Bool(false))
		case bytecode.OP_POP:
			vm.pop()

		case bytecode.OP_GET_LOCAL:
			slot := int(fr.readByte())
			vm.push(vm.stack[fr.base+slot])
		case bytecode.OP_SET_LOCAL:
			slot := int(fr.readByte())
			vm.stack[fr.base+slot] = vm.peek(0)
		case bytecode.OP_GET_GLOBAL:
			name := fr.readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError(nil, "Undefined variable '%s'.", name.Chars)
			}
			vm.push(v)
		case bytecode.OP_DEFINE_GLOBAL:
			name := fr.readString()
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.OP_SET_GLOBAL:
			name := fr.readString()
			if vm.globals.Set(name, vm.peek(0)) {
				// assignment never creates a global
				vm.globals.Delete(name)
				return vm.runtimeError(nil, "Undefined variable '%s'.", name.Chars)
			}
		case bytecode.OP_GET_UPVALUE:
			slot := fr.readByte()
			vm.push(fr.closure.Upvalues[slot].Get(vm.stack))
		case bytecode.OP_SET_UPVALUE:
			slot := fr.readByte()
			fr.closure.Upvalues[slot].Set(vm.stack, vm.peek(0))
		case bytecode.OP_GET_PROPERTY:
			if !vm.peek(0).IsInstance() {
				return vm.runtimeError(nil, "Only instances have properties.")
			}
			inst := vm.peek(0).AsInstance()
			name := fr.readString()
			if v, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(v)
				break
			}
			if err := vm.bindMethod(inst.Class, name); err != nil {
				return err
			}
		case bytecode.OP_SET_PROPERTY:
			if !vm.peek(1).IsInstance() {
				return vm.runtimeError(nil, "Only instances have fields.")
			}
			inst := vm.peek(1).AsInstance()
			inst.Fields.Set(fr.readString(), vm.peek(0))
			v := vm.pop()
			vm.pop()
			vm.push(v)
		case bytecode.OP_GET_SUPER:
			name := fr.readString()
			superclass := vm.pop().AsClass()
			if err := vm.bindMethod(superclass, name); err != nil {
				return err
			}

		case bytecode.OP_EQUAL:
			b := vm.pop()
			a := vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case bytecode.OP_GREATER, bytecode.OP_LESS,
			bytecode.OP_SUBTRACT, bytecode.OP_MULTIPLY, bytecode.OP_DIVIDE:
			if err := vm.binaryOp(op); err != nil {
				return err
			}
		case bytecode.OP_ADD:
			switch {
			case vm.peek(0).IsString() && vm.peek(1).IsString():
				vm.concatenate()
			case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
				b := vm.pop()
				a := vm.pop()
				vm.push(value.Number(a.Num + b.Num))
			default:
				return vm.runtimeError(nil, "Operands must be two numbers or two strings.")
			}
		case bytecode.OP_NOT:
			vm.push(value.Bool(value.Falsey(vm.pop())))
		case bytecode.OP_NEGATE:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError(nil, "Operand must be a number.")
			}
			vm.push(value.Number(-vm.pop().Num))

		case bytecode.OP_PRINT:
			fmt.Fprintln(vm.out, vm.pop().String())

		case bytecode.OP_JUMP:
			offset := fr.readShort()
			fr.ip += offset
		case bytecode.OP_JUMP_IF_FALSE:
			offset := fr.readShort()
			if value.Falsey(vm.peek(0)) {
				fr.ip += offset
			}
		case bytecode.OP_LOOP:
			offset := fr.readShort()
			fr.ip -= offset

		case bytecode.OP_CALL:
			argc := int(fr.readByte())
			if err := vm.callValue(vm.peek(argc), argc); err != nil {
				return err
			}
			fr = &vm.frames[vm.frameCount-1]
		case bytecode.OP_INVOKE:
			method := fr.readString()
			argc := int(fr.readByte())
			if err := vm.invoke(method, argc); err != nil {
				return err
			}
			fr = &vm.frames[vm.frameCount-1]
		case bytecode.OP_SUPER_INVOKE:
			method := fr.readString()
			argc := int(fr.readByte())
			superclass := vm.pop().AsClass()
			if err := vm.invokeFromClass(superclass, method, argc); err != nil {
				return err
			}
			fr = &vm.frames[vm.frameCount-1]
		case bytecode.OP_CLOSURE:
			fn := fr.readConstant().Obj.(*value.Function)
			closure := vm.heap.NewClosure(fn)
			vm.push(value.ObjVal(closure))
			for i := range closure.Upvalues {
				isLocal := fr.readByte()
				index := int(fr.readByte())
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(fr.base + index)
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
		case bytecode.OP_CLOSE_UPVALUE:
			vm.closeUpvalues(vm.top - 1)
			vm.pop()
		case bytecode.OP_RETURN:
			result := vm.pop()
			vm.closeUpvalues(fr.base)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return nil
			}
			vm.top = fr.base
			vm.push(result)
			fr = &vm.frames[vm.frameCount-1]

		case bytecode.OP_CLASS:
			vm.push(value.ObjVal(vm.heap.NewClass(fr.readString())))
		case bytecode.OP_INHERIT:
			superclass := vm.peek(1)
			if !superclass.IsClass() {
				return vm.runtimeError(nil, "Superclass must be a class.")
			}
			// methods are copied now; later changes to the superclass are
			// not seen by the subclass
			subclass := vm.peek(0).AsClass()
			superclass.AsClass().Methods.AddAll(&subclass.Methods)
			vm.pop()
		case bytecode.OP_METHOD:
			vm.defineMethod(fr.readString())

		default:
			return vm.runtimeError(nil, "Unknown opcode %d.", op)
		}
	}
}

func (vm *VM) binaryOp(op byte) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError(nil, "Operands must be numbers.")
	}
	b := vm.pop().Num
	a := vm.pop().Num
	switch op {
	case bytecode.OP_GREATER:
		vm.push(value.Bool(a > b))
	case bytecode.OP_LESS:
		vm.push(value.Bool(a < b))
	case bytecode.OP_SUBTRACT:
		vm.push(value.Number(a - b))
	case bytecode.OP_MULTIPLY:
		vm.push(value.Number(a * b))
	case bytecode.OP_DIVIDE:
		vm.push(value.Number(a / b))
	}
	return nil
}

// concatenate joins the two strings on top of the stack. They stay on the
// stack while the result is allocated.
func (vm *VM) concatenate() {
	b := vm.peek(0).AsString()
	a := vm.peek(1).AsString()
	result := vm.heap.NewString(a.Chars + b.Chars)
	vm.pop()
	vm.pop()
	vm.push(value.ObjVal(result))
}
