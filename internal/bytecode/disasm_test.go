package bytecode

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xirelogy/go-lox/internal/value"
)

func TestDisassembleClosureOperands(t *testing.T) {
	inner := &value.Function{
		Name:         &value.String{Chars: "inner"},
		UpvalueCount: 2,
	}
	inner.Chunk.Write(OP_NIL, 2)
	inner.Chunk.Write(OP_RETURN, 2)

	script := &value.Function{}
	idx := script.Chunk.AddConstant(value.ObjVal(inner))
	for _, b := range []byte{OP_CLOSURE, byte(idx), 1, 3, 0, 0} {
		script.Chunk.Write(b, 1)
	}
	script.Chunk.Write(OP_POP, 1)
	script.Chunk.Write(OP_NIL, 1)
	script.Chunk.Write(OP_RETURN, 1)

	var buf bytes.Buffer
	if err := NewDisassembler(&buf).DisassembleFunction(script); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"== <script>",
		"OP_CLOSURE",
		"[local 3, upvalue 0]",
		"0006    | OP_POP",
		"== inner (arity=0, upvalues=2) ==",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestDisassembleJumpTargets(t *testing.T) {
	var chunk value.Chunk
	for _, b := range []byte{OP_JUMP_IF_FALSE, 0, 2, OP_POP, OP_NIL, OP_LOOP, 0, 8} {
		chunk.Write(b, 4)
	}

	var buf bytes.Buffer
	dis := NewDisassembler(&buf)
	next, err := dis.DisassembleInstruction(&chunk, 0)
	if err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	if next != 3 {
		t.Fatalf("expected next offset 3, got %d", next)
	}
	if _, err := dis.DisassembleInstruction(&chunk, 5); err != nil {
		t.Fatalf("disassemble loop: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "0 -> 5") || !strings.Contains(out, "5 -> 0") {
		t.Fatalf("unexpected jump rendering:\n%s", out)
	}
}

func TestDisassembleTruncatedOperand(t *testing.T) {
	var chunk value.Chunk
	chunk.Write(OP_JUMP, 1)
	chunk.Write(0, 1)
	if _, err := NewDisassembler(&bytes.Buffer{}).DisassembleInstruction(&chunk, 0); err == nil {
		t.Fatalf("expected error for truncated jump operand")
	}
}
