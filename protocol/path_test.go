package protocol

import "testing"

// identityExpr returns a PostfixExpression that evaluates to whatever is
// already on the stack unchanged (the Path's seeded elapsed time).
func identityExpr() []byte {
	var w PostfixWriter
	return w.WriteBytes()
}

// doubleExpr multiplies the seeded elapsed time by 2.
func doubleExpr() []byte {
	var w PostfixWriter
	w.AppendPush(2)
	w.AppendOp(Mul)
	return w.WriteBytes()
}

func buildPath(t *testing.T, segs ...PathSegment) []byte {
	var w PathWriter
	for _, s := range segs {
		w.AddSegment(s.StartTime, s.Expr)
	}
	buf := w.WriteBytes()

	var r PathReader
	assert(t, r.Read(buf), "PathReader.Read should succeed on a freshly written path")
	return buf
}

func TestPathSegmentAtSelectsByStartTime(t *testing.T) {
	buf := buildPath(t,
		PathSegment{StartTime: 0, Expr: identityExpr()},
		PathSegment{StartTime: 1000, Expr: identityExpr()},
		PathSegment{StartTime: 2000, Expr: identityExpr()},
	)

	assert(t, PathSegmentAt(buf, 0) == 0, "t=0 should select segment 0")
	assert(t, PathSegmentAt(buf, 500) == 0, "t=500 should select segment 0")
	assert(t, PathSegmentAt(buf, 1000) == 1, "t=1000 should select segment 1")
	assert(t, PathSegmentAt(buf, 1999) == 1, "t=1999 should select segment 1")
	assert(t, PathSegmentAt(buf, 2000) == 2, "t=2000 should select segment 2")
	assert(t, PathSegmentAt(buf, 50000) == 2, "t beyond last start should select last segment")
}

func TestPathSegmentAtBeforeFirstSegment(t *testing.T) {
	buf := buildPath(t,
		PathSegment{StartTime: 1000, Expr: identityExpr()},
	)
	assert(t, PathSegmentAt(buf, 500) == NoSegment, "t before the only segment should be NoSegment")
}

func TestPathSegmentAtEmptyPath(t *testing.T) {
	buf := buildPath(t)
	assert(t, PathSegmentAt(buf, 0) == NoSegment, "empty path should always be NoSegment")
}

func TestPathEvalSeedsElapsedTime(t *testing.T) {
	buf := buildPath(t,
		PathSegment{StartTime: 1000, Expr: doubleExpr()},
	)

	stack := NewStack(make([]float32, 4))
	idx, status := PathEval(buf, 1500, stack)
	assert(t, status == Ok, "unexpected status: %s", status)
	assert(t, idx == 0, "expected segment 0, got %d", idx)
	// elapsed = (1500-1000)*1e-3 = 0.5s, doubled = 1.0
	assert(t, stack.At(0) == 1.0, "expected elapsed*2=1.0, got %v", stack.At(0))
}

func TestPathEvalNoSegmentIsUndefinedOperation(t *testing.T) {
	buf := buildPath(t,
		PathSegment{StartTime: 1000, Expr: identityExpr()},
	)
	stack := NewStack(make([]float32, 4))
	idx, status := PathEval(buf, 0, stack)
	assert(t, idx == NoSegment, "expected NoSegment, got %d", idx)
	assert(t, status == UndefinedOperation, "expected UndefinedOperation, got %s", status)
}

func TestPathOverflowFlagAcrossWraparound(t *testing.T) {
	const nearMax = ^uint32(0) - 500

	buf := buildPath(t,
		PathSegment{StartTime: nearMax, Expr: identityExpr()},
		PathSegment{StartTime: 200, Expr: identityExpr()}, // wraps past 2^32
	)

	var r PathReader
	assert(t, r.Read(buf), "Read should succeed")
	assert(t, r.Overflow(), "expected Overflow flag set across a wraparound boundary")

	// a query time shortly after the wrap, past segment 1's start, should
	// still select segment 1, since the comparator is origin-shifted
	// modulo 2^32.
	idx := PathSegmentAt(buf, 250)
	assert(t, idx == 1, "expected wrapped query to select segment 1, got %d", idx)

	// a query time right after the wrap but before segment 1 starts
	// should still select segment 0.
	idx = PathSegmentAt(buf, 100)
	assert(t, idx == 0, "expected pre-boundary wrapped query to stay in segment 0, got %d", idx)
}

func TestPathNoOverflowWhenMonotonic(t *testing.T) {
	buf := buildPath(t,
		PathSegment{StartTime: 0, Expr: identityExpr()},
		PathSegment{StartTime: 100, Expr: identityExpr()},
	)
	var r PathReader
	assert(t, r.Read(buf), "Read should succeed")
	assert(t, !r.Overflow(), "monotonically increasing segments should not set Overflow")
}
