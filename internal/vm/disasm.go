package vm

import (
	"fmt"
	"io"

	"github.com/xirelogy/go-lox/internal/bytecode"
)

// NewTracer returns a TraceHook that prints the value stack and then the
// instruction about to execute.
func NewTracer(w io.Writer) TraceHook {
	dis := bytecode.NewDisassembler(w)
	return func(info TraceInfo) {
		fmt.Fprint(w, "          ")
		for _, v := range info.Stack {
			fmt.Fprintf(w, "[ %s ]", v.String())
		}
		fmt.Fprintln(w)
		if _, err := dis.DisassembleInstruction(info.Chunk, info.IP); err != nil {
			fmt.Fprintf(w, "%04d <%v>\n", info.IP, err)
		}
	}
}
