package value

// Chunk is a compiled bytecode sequence with its constant pool.
// Lines holds the source line of every byte in Code.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// Write appends one byte of code emitted for line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// AddConstant appends v to the constant pool and returns its index.
func (c *Chunk) AddConstant(v Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// LineAt returns the source line for the byte at offset, or 0 when the
// offset is outside the chunk.
func (c *Chunk) LineAt(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}

// Free drops the code, line table and constants.
func (c *Chunk) Free() {
	c.Code = nil
	c.Lines = nil
	c.Constants = nil
}
