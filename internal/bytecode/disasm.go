package bytecode

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xirelogy/go-lox/internal/value"
)

// Disassembler formats bytecode as a readable assembly-style dump.
type Disassembler struct {
	w       io.Writer
	visited map[*value.Function]bool
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{
		w:       w,
		visited: make(map[*value.Function]bool),
	}
}

// DisassembleFunction emits a readable dump for fn and every function
// nested in its constant pool.
func (d *Disassembler) DisassembleFunction(fn *value.Function) error {
	if fn == nil {
		return fmt.Errorf("nil function")
	}
	if d.visited[fn] {
		return nil
	}
	d.visited[fn] = true
	d.startSection()
	name := "<script>"
	if fn.Name != nil {
		name = fn.Name.Chars
	}
	fmt.Fprintf(d.w, "== %s (arity=%d, upvalues=%d) ==\n", name, fn.Arity, fn.UpvalueCount)
	chunk := &fn.Chunk
	for offset := 0; offset < len(chunk.Code); {
		next, err := d.DisassembleInstruction(chunk, offset)
		if err != nil {
			return err
		}
		offset = next
	}
	for _, c := range chunk.Constants {
		child, ok := c.Obj.(*value.Function)
		if !c.IsObject() || !ok {
			continue
		}
		if err := d.DisassembleFunction(child); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the next one.
func (d *Disassembler) DisassembleInstruction(chunk *value.Chunk, offset int) (int, error) {
	if chunk == nil {
		return 0, fmt.Errorf("nil chunk")
	}
	if offset >= len(chunk.Code) {
		return 0, fmt.Errorf("offset %d past end of chunk", offset)
	}
	op := chunk.Code[offset]
	ip := offset + 1
	lineStr := strconv.Itoa(chunk.LineAt(offset))
	if offset > 0 && chunk.LineAt(offset) == chunk.LineAt(offset-1) {
		lineStr = "|"
	}
	name := Name(op)
	if name == "" {
		name = fmt.Sprintf("OP_0x%02X", op)
	}
	operands, err := decodeOperands(op, chunk, offset, &ip)
	if err != nil {
		return 0, err
	}
	fmt.Fprintf(d.w, "%04d %4s %-16s", offset, lineStr, name)
	if operands != "" {
		fmt.Fprintf(d.w, " %s", operands)
	}
	fmt.Fprintln(d.w)
	return ip, nil
}

func decodeOperands(op byte, chunk *value.Chunk, offset int, ip *int) (string, error) {
	code := chunk.Code
	switch op {
	case OP_CONSTANT, OP_GET_GLOBAL, OP_DEFINE_GLOBAL, OP_SET_GLOBAL,
		OP_GET_PROPERTY, OP_SET_PROPERTY, OP_GET_SUPER, OP_CLASS, OP_METHOD:
		idx, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d ; %s", idx, formatConstRef(chunk, idx)), nil
	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE, OP_CALL:
		slot, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(slot)), nil
	case OP_INVOKE, OP_SUPER_INVOKE:
		idx, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		argc, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%d args) %d ; %s", argc, idx, formatConstRef(chunk, idx)), nil
	case OP_JUMP, OP_JUMP_IF_FALSE:
		jump, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d -> %d", offset, *ip+int(jump)), nil
	case OP_LOOP:
		jump, err := readU16(code, ip)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d -> %d", offset, *ip-int(jump)), nil
	case OP_CLOSURE:
		idx, err := readU8(code, ip)
		if err != nil {
			return "", err
		}
		if int(idx) >= len(chunk.Constants) {
			return "", fmt.Errorf("const index out of range: %d", idx)
		}
		fn, ok := chunk.Constants[idx].Obj.(*value.Function)
		if !ok {
			return "", fmt.Errorf("closure constant %d is not a function", idx)
		}
		upvals := make([]string, 0, fn.UpvalueCount)
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal, err := readU8(code, ip)
			if err != nil {
				return "", err
			}
			index, err := readU8(code, ip)
			if err != nil {
				return "", err
			}
			if isLocal == 1 {
				upvals = append(upvals, fmt.Sprintf("local %d", index))
			} else {
				upvals = append(upvals, fmt.Sprintf("upvalue %d", index))
			}
		}
		operand := fmt.Sprintf("%d ; %s", idx, formatConstRef(chunk, idx))
		if len(upvals) > 0 {
			operand += " [" + strings.Join(upvals, ", ") + "]"
		}
		return operand, nil
	default:
		return "", nil
	}
}

func readU8(code []byte, ip *int) (byte, error) {
	if *ip >= len(code) {
		return 0, fmt.Errorf("unexpected end of bytecode")
	}
	val := code[*ip]
	*ip = *ip + 1
	return val, nil
}

func readU16(code []byte, ip *int) (uint16, error) {
	if *ip+1 >= len(code) {
		return 0, fmt.Errorf("unexpected end of bytecode")
	}
	hi := code[*ip]
	lo := code[*ip+1]
	*ip += 2
	return uint16(hi)<<8 | uint16(lo), nil
}

func formatConstRef(chunk *value.Chunk, idx byte) string {
	if int(idx) >= len(chunk.Constants) {
		return "<invalid>"
	}
	v := chunk.Constants[idx]
	if v.IsString() {
		return strconv.Quote(v.AsString().Chars)
	}
	return v.String()
}
