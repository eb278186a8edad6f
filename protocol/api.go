package protocol

// PostfixEval decodes expr as a PostfixExpression and evaluates it against
// stack. It returns IllegalOperation if expr does not decode.
func PostfixEval(expr []byte, stack *Stack) EvalStatus {
	var r PostfixReader
	if !r.Read(expr) {
		return IllegalOperation
	}
	return stack.Eval(&r)
}

// PathSegmentAt decodes path and returns the index of the segment active
// at time t, or NoSegment if path does not decode or t precedes every
// segment.
func PathSegmentAt(path []byte, t uint32) int {
	var r PathReader
	if !r.Read(path) {
		return NoSegment
	}
	return r.SegmentAt(t)
}

// PathEval decodes path, selects the segment active at time t, and
// evaluates it against stack. It returns the selected segment's index
// alongside the terminal EvalStatus. A malformed path reports
// IllegalOperation; a query time preceding every segment reports
// UndefinedOperation.
func PathEval(path []byte, t uint32, stack *Stack) (int, EvalStatus) {
	var r PathReader
	if !r.Read(path) {
		return NoSegment, IllegalOperation
	}
	return r.Eval(t, stack)
}
