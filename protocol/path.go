package protocol

import "encoding/binary"

/*
	Path wire format, little-endian throughout:

		segment_size   u16   number of segments
		flags          u8    bit 0 = Overflow
		padding        u8
		segment[segment_size]:
			start_time u32
			offset     u16   byte offset of this segment's PostfixExpression,
			                 absolute from the start of the encoded path
			size       u16   byte length of this segment's PostfixExpression
		postfix expressions, each individually 4-byte padded

	A segment's start_time is a 32-bit timestamp that can wrap around. The
	Overflow flag records that the timestamps are not monotonically
	increasing when read in segment order: segment i's start_time is
	numerically less than segment i-1's. When set, SegmentAt shifts every
	comparison by the first segment's start_time before subtracting, which
	is well defined under unsigned wraparound and lets a path's timeline
	run across the 2^32 boundary; when clear, timestamps compare raw.
*/

const (
	pathHeaderSize        = 4
	pathSegmentHeaderSize = 8

	// NoSegment is returned by SegmentAt when t falls before every segment.
	NoSegment = 0xFF

	overflowFlag = 1 << 0
)

// PathReader is a zero-copy view over an encoded Path.
type PathReader struct {
	buf []byte
}

func (r *PathReader) segmentSize() int { return int(binary.LittleEndian.Uint16(r.buf[0:2])) }

// Flags returns the raw header flags byte.
func (r *PathReader) Flags() uint8 { return r.buf[2] }

// Overflow reports whether the segment timestamps wrap around 2^32 when
// read in order.
func (r *PathReader) Overflow() bool { return r.Flags()&overflowFlag != 0 }

func (r *PathReader) segmentTableOffset() int { return pathHeaderSize }

func (r *PathReader) segmentHeaderOffset(i int) int {
	return r.segmentTableOffset() + i*pathSegmentHeaderSize
}

func (r *PathReader) startTime(i int) uint32 {
	off := r.segmentHeaderOffset(i)
	return binary.LittleEndian.Uint32(r.buf[off : off+4])
}

func (r *PathReader) segmentOffset(i int) int {
	off := r.segmentHeaderOffset(i)
	return int(binary.LittleEndian.Uint16(r.buf[off+4 : off+6]))
}

func (r *PathReader) segmentByteSize(i int) int {
	off := r.segmentHeaderOffset(i)
	return int(binary.LittleEndian.Uint16(r.buf[off+6 : off+8]))
}

// DataSize returns the total encoded size of the path.
func (r *PathReader) DataSize() int {
	n := r.segmentSize()
	if n == 0 {
		return pathHeaderSize
	}
	return r.segmentOffset(n-1) + align4(r.segmentByteSize(n-1))
}

// Read validates buf and retains a borrow of it.
func (r *PathReader) Read(buf []byte) bool {
	r.buf = buf
	if len(buf) < pathHeaderSize {
		return false
	}
	n := r.segmentSize()
	if len(buf) < r.segmentTableOffset()+n*pathSegmentHeaderSize {
		return false
	}
	for i := 0; i < n; i++ {
		if len(buf) < r.segmentOffset(i)+r.segmentByteSize(i) {
			return false
		}
		var expr PostfixReader
		if !expr.Read(r.expressionAt(i)) {
			return false
		}
	}
	return true
}

// SegmentAt returns the index of the segment active at time t, or
// NoSegment if t precedes the first segment's start_time. When the
// Overflow flag is set, comparisons are shifted by the first segment's
// start_time before the unsigned subtraction, which is well defined
// under wraparound and lets a path's timeline cross the 2^32 boundary
// transparently; otherwise timestamps are compared raw.
func (r *PathReader) SegmentAt(t uint32) int {
	n := r.segmentSize()
	if n == 0 {
		return NoSegment
	}
	var beginTime uint32
	if r.Overflow() {
		beginTime = r.startTime(0)
	}
	ub := upperBound(n, func(i int) bool {
		return t-beginTime < r.startTime(i)-beginTime
	})
	if ub == 0 {
		return NoSegment
	}
	return ub - 1
}

// expressionAt returns the raw encoded bytes of segment i's expression.
// offset is absolute from the start of the encoded path.
func (r *PathReader) expressionAt(i int) []byte {
	off := r.segmentOffset(i)
	return r.buf[off : off+r.segmentByteSize(i)]
}

// Eval selects the segment active at time t, seeds the stack with the
// elapsed time since that segment started (in seconds, as a float32), and
// evaluates the segment's expression. It reports NoSegment's status as
// UndefinedOperation since there is no segment to run.
func (r *PathReader) Eval(t uint32, stack *Stack) (int, EvalStatus) {
	idx := r.SegmentAt(t)
	if idx == NoSegment {
		return NoSegment, UndefinedOperation
	}

	var expr PostfixReader
	if !expr.Read(r.expressionAt(idx)) {
		return idx, IllegalOperation
	}

	elapsed := float32(t-r.startTime(idx)) * 1e-3
	stack.Clear()
	stack.Push(elapsed)
	return idx, stack.Eval(&expr)
}

// PathSegment pairs a segment's start time with its encoded expression
// bytes, the unit PathWriter builds a path out of.
type PathSegment struct {
	StartTime uint32
	Expr      []byte
}

// PathWriter incrementally builds a Path from an ordered list of segments.
type PathWriter struct {
	segments []PathSegment
}

// Clear empties the writer back to a fresh path.
func (w *PathWriter) Clear() { w.segments = w.segments[:0] }

// AddSegment appends a segment to the end of the path being built.
func (w *PathWriter) AddSegment(startTime uint32, expr []byte) {
	w.segments = append(w.segments, PathSegment{StartTime: startTime, Expr: expr})
}

func (w *PathWriter) segmentTableOffset() int { return pathHeaderSize }

func (w *PathWriter) segmentTableSize() int {
	return len(w.segments) * pathSegmentHeaderSize
}

// flags computes the header flags byte, setting Overflow if any segment's
// start_time is numerically less than its predecessor's.
func (w *PathWriter) flags() uint8 {
	for i := 1; i < len(w.segments); i++ {
		if w.segments[i].StartTime < w.segments[i-1].StartTime {
			return overflowFlag
		}
	}
	return 0
}

// DataSize returns the total encoded size of the path being built.
func (w *PathWriter) DataSize() int {
	size := w.segmentTableOffset() + w.segmentTableSize()
	for _, seg := range w.segments {
		size += align4(len(seg.Expr))
	}
	return size
}

// Write emits the packed buffer into buf, which must be at least
// DataSize() bytes, and reports whether it fit.
func (w *PathWriter) Write(buf []byte) bool {
	if len(buf) < w.DataSize() {
		return false
	}

	binary.LittleEndian.PutUint16(buf[0:2], uint16(len(w.segments)))
	buf[2] = w.flags()
	buf[3] = 0

	tableBase := w.segmentTableOffset()
	headersSize := tableBase + w.segmentTableSize()
	offset := headersSize
	for i, seg := range w.segments {
		hdr := buf[tableBase+i*pathSegmentHeaderSize:]
		binary.LittleEndian.PutUint32(hdr[0:4], seg.StartTime)
		binary.LittleEndian.PutUint16(hdr[4:6], uint16(offset))
		binary.LittleEndian.PutUint16(hdr[6:8], uint16(len(seg.Expr)))
		copy(buf[offset:], seg.Expr)
		offset += align4(len(seg.Expr))
	}
	return true
}

// WriteBytes allocates a correctly sized buffer and writes into it.
func (w *PathWriter) WriteBytes() []byte {
	buf := make([]byte, w.DataSize())
	w.Write(buf)
	return buf
}
