package natives

import (
	"time"

	"github.com/xirelogy/go-lox/internal/value"
)

var start = time.Now()

func init() {
	Register(Spec{
		Name:  "clock",
		Arity: 0,
		Fn:    clock,
	})
}

// clock returns the seconds elapsed since the process started.
func clock(args []value.Value) (value.Value, error) {
	return value.Number(time.Since(start).Seconds()), nil
}
