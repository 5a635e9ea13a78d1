// Package natives is the registry of host functions every VM starts with.
// Natives register themselves from init functions.
package natives

import (
	"fmt"
	"sort"

	"github.com/xirelogy/go-lox/internal/value"
)

// Spec describes a native function.
type Spec struct {
	Name string
	// Arity is the required argument count, or -1 for any.
	Arity int
	Fn    value.NativeFn
}

var byName = map[string]Spec{}

// Register installs a native. It panics on a duplicate name or a nil
// function.
func Register(spec Spec) {
	if spec.Fn == nil {
		panic(fmt.Sprintf("native %s has nil function", spec.Name))
	}
	if _, exists := byName[spec.Name]; exists {
		panic(fmt.Sprintf("native %s already registered", spec.Name))
	}
	byName[spec.Name] = spec
}

// All returns every registered native ordered by name.
func All() []Spec {
	out := make([]Spec, 0, len(byName))
	for _, spec := range byName {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
