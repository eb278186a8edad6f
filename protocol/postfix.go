package protocol

import "encoding/binary"

/*
	PostfixExpression wire format, little-endian throughout:

		op_size   u8    number of opcode bytes
		i_size    u8    number of integer-literal bytes
		f_size    u16   number of float literals (4 bytes each)
		op[op_size]
		i[i_size]
		pad to 4-byte alignment
		f[f_size]       IEEE-754 single floats

	Total encoded size is 4 + op_size + i_size + pad + 4*f_size, with the
	float region always 4-byte aligned relative to the buffer origin.
*/

const postfixHeaderSize = 4

// PostfixReader is a zero-copy view over an encoded PostfixExpression. Read
// retains a borrow of the buffer passed to it; every accessor reads
// directly out of that borrowed buffer. Read validates only that the
// declared sizes fit inside the buffer — it never inspects opcode
// semantics, which is the VM's job.
type PostfixReader struct {
	buf []byte
}

func (r *PostfixReader) OpSize() int    { return int(r.buf[0]) }
func (r *PostfixReader) IntSize() int   { return int(r.buf[1]) }
func (r *PostfixReader) FloatSize() int { return int(binary.LittleEndian.Uint16(r.buf[2:4])) }

func (r *PostfixReader) opOffset() int { return postfixHeaderSize }
func (r *PostfixReader) intOffset() int { return r.opOffset() + r.OpSize() }
func (r *PostfixReader) floatOffset() int {
	return align4(r.intOffset() + r.IntSize())
}

// DataSize returns the total encoded size of the expression.
func (r *PostfixReader) DataSize() int {
	return r.floatOffset() + r.FloatSize()*4
}

// Read validates buf and retains a borrow of it. It returns false if buf
// is too small to hold the header or the regions the header declares.
func (r *PostfixReader) Read(buf []byte) bool {
	r.buf = buf
	if len(buf) < postfixHeaderSize {
		return false
	}
	return len(buf) >= r.DataSize()
}

// OpAt returns the opcode at index i.
func (r *PostfixReader) OpAt(i int) Op { return Op(r.buf[r.opOffset()+i]) }

// IntAt returns the integer literal at index i.
func (r *PostfixReader) IntAt(i int) uint8 { return r.buf[r.intOffset()+i] }

// FloatAt returns the float literal at index i.
func (r *PostfixReader) FloatAt(i int) float32 {
	return decodeFloat32(r.buf[r.floatOffset()+4*i:])
}

func (r *PostfixReader) opBytes() []byte {
	return r.buf[r.opOffset() : r.opOffset()+r.OpSize()]
}

func (r *PostfixReader) intBytes() []byte {
	return r.buf[r.intOffset() : r.intOffset()+r.IntSize()]
}

func (r *PostfixReader) floatBytes() []byte {
	return r.buf[r.floatOffset() : r.floatOffset()+r.FloatSize()*4]
}

// PostfixWriter incrementally builds a PostfixExpression: append an op,
// its integer literals, and its float literals, in any order that matches
// how the VM will consume them, then Write the packed buffer. The emitted
// layout is bit-exact with the wire format in every case.
type PostfixWriter struct {
	ops  []Op
	ints []uint8
	flts []float32
}

// Clear empties the writer back to a fresh expression.
func (w *PostfixWriter) Clear() {
	w.ops = w.ops[:0]
	w.ints = w.ints[:0]
	w.flts = w.flts[:0]
}

func (w *PostfixWriter) AppendOp(op Op)        { w.ops = append(w.ops, op) }
func (w *PostfixWriter) AppendInt(i uint8)     { w.ints = append(w.ints, i) }
func (w *PostfixWriter) AppendFloat(f float32) { w.flts = append(w.flts, f) }

// AppendPush appends a Push op together with its literal count and the
// literal values themselves, mirroring the reference writer's single-call
// Push builder.
func (w *PostfixWriter) AppendPush(values ...float32) {
	w.AppendOp(Push)
	w.AppendInt(uint8(len(values)))
	for _, v := range values {
		w.AppendFloat(v)
	}
}

// AppendPop appends a Pop op discarding the top n stack values, mirroring
// the reference writer's single-call Pop builder.
func (w *PostfixWriter) AppendPop(n uint8) {
	w.AppendOp(Pop)
	w.AppendInt(n)
}

func (w *PostfixWriter) opOffset() int  { return postfixHeaderSize }
func (w *PostfixWriter) intOffset() int { return w.opOffset() + len(w.ops) }
func (w *PostfixWriter) floatOffset() int {
	return align4(w.intOffset() + len(w.ints))
}

// DataSize returns the total encoded size of the expression being built.
func (w *PostfixWriter) DataSize() int {
	return w.floatOffset() + len(w.flts)*4
}

// Write emits the packed buffer into buf, which must be at least
// DataSize() bytes, and reports whether it fit.
func (w *PostfixWriter) Write(buf []byte) bool {
	if len(buf) < w.DataSize() {
		return false
	}

	buf[0] = uint8(len(w.ops))
	buf[1] = uint8(len(w.ints))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(w.flts)))

	opBuf := buf[w.opOffset():]
	for i, op := range w.ops {
		opBuf[i] = byte(op)
	}
	copy(buf[w.intOffset():], w.ints)

	fltBuf := buf[w.floatOffset():]
	for i, f := range w.flts {
		encodeFloat32(f, fltBuf[4*i:])
	}
	return true
}

// WriteBytes allocates a correctly sized buffer and writes into it.
func (w *PostfixWriter) WriteBytes() []byte {
	buf := make([]byte, w.DataSize())
	w.Write(buf)
	return buf
}
