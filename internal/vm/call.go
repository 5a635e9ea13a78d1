package vm

import (
	"github.com/xirelogy/go-lox/internal/value"
)

// callValue calls the callee sitting below argc arguments on the stack.
func (vm *VM) callValue(callee value.Value, argc int) error {
	if callee.IsObject() {
		switch obj := callee.Obj.(type) {
		case *value.BoundMethod:
			vm.stack[vm.top-argc-1] = obj.Receiver
			return vm.call(obj.Method, argc)
		case *value.Class:
			vm.stack[vm.top-argc-1] = value.ObjVal(vm.heap.NewInstance(obj))
			if initializer, ok := obj.Methods.Get(vm.initString); ok {
				return vm.call(initializer.AsClosure(), argc)
			}
			if argc != 0 {
				return vm.runtimeError(nil, "Expected 0 arguments but got %d.", argc)
			}
			return nil
		case *value.Closure:
			return vm.call(obj, argc)
		case *value.Native:
			return vm.callNative(obj, argc)
		}
	}
	return vm.runtimeError(nil, "Can only call functions and classes.")
}

func (vm *VM) call(closure *value.Closure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError(nil, "Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == FramesMax {
		return vm.runtimeError(nil, "Stack overflow.")
	}
	vm.frames[vm.frameCount] = frame{
		closure: closure,
		base:    vm.top - argc - 1,
	}
	vm.frameCount++
	return nil
}

// callNative runs a host function without pushing a frame.
func (vm *VM) callNative(native *value.Native, argc int) error {
	if native.Arity >= 0 && argc != native.Arity {
		return vm.runtimeError(nil, "Expected %d arguments but got %d.", native.Arity, argc)
	}
	result, err := native.Fn(vm.stack[vm.top-argc : vm.top])
	if err != nil {
		return vm.runtimeError(err, "%s", err.Error())
	}
	vm.top -= argc + 1
	vm.push(result)
	return nil
}

// invoke calls a method by name without materializing a bound method. A
// field holding a callable shadows a method of the same name.
func (vm *VM) invoke(name *value.String, argc int) error {
	receiver := vm.peek(argc)
	if !receiver.IsInstance() {
		return vm.runtimeError(nil, "Only instances have methods.")
	}
	inst := receiver.AsInstance()
	if field, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.top-argc-1] = field
		return vm.callValue(field, argc)
	}
	return vm.invokeFromClass(inst.Class, name, argc)
}

func (vm *VM) invokeFromClass(class *value.Class, name *value.String, argc int) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError(nil, "Undefined property '%s'.", name.Chars)
	}
	return vm.call(method.AsClosure(), argc)
}

// bindMethod replaces the receiver on top of the stack with the named
// method of class bound to it.
func (vm *VM) bindMethod(class *value.Class, name *value.String) error {
	method, ok := class.Methods.Get(name)
	if !ok {
		return vm.runtimeError(nil, "Undefined property '%s'.", name.Chars)
	}
	bound := vm.heap.NewBoundMethod(vm.peek(0), method.AsClosure())
	vm.pop()
	vm.push(value.ObjVal(bound))
	return nil
}

func (vm *VM) defineMethod(name *value.String) {
	method := vm.peek(0)
	class := vm.peek(1).AsClass()
	class.Methods.Set(name, method)
	vm.pop()
}
