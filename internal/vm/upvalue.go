package vm

import (
	"github.com/xirelogy/go-lox/internal/value"
)

// captureUpvalue returns the open upvalue for stack slot, creating it if
// no closure has captured the slot yet. Open upvalues are kept sorted by
// slot, highest first.
func (vm *VM) captureUpvalue(slot int) *value.Upvalue {
	var prev *value.Upvalue
	uv := vm.openUpvalues
	for uv != nil && uv.Slot() > slot {
		prev = uv
		uv = uv.NextOpen
	}
	if uv != nil && uv.Slot() == slot {
		return uv
	}

	created := vm.heap.NewUpvalue(slot)
	created.NextOpen = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above slot last.
func (vm *VM) closeUpvalues(last int) {
	for vm.openUpvalues != nil && vm.openUpvalues.Slot() >= last {
		uv := vm.openUpvalues
		vm.openUpvalues = uv.NextOpen
		uv.Close(vm.stack[uv.Slot()])
	}
}
