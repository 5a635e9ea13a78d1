package vm

import (
	"github.com/xirelogy/go-lox/internal/heap"
	"github.com/xirelogy/go-lox/internal/value"
)

// Heap returns the heap the VM allocates from.
func (vm *VM) Heap() *heap.Heap {
	return vm.heap
}

// Global looks up a global variable by name without allocating.
func (vm *VM) Global(name string) (value.Value, bool) {
	key := vm.heap.Interned(name)
	if key == nil {
		return value.Nil(), false
	}
	return vm.globals.Get(key)
}

// StackDepth reports the number of live stack slots. It is zero whenever
// the VM is idle.
func (vm *VM) StackDepth() int {
	return vm.top
}
