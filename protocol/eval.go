package protocol

import "math"

// EvalContext holds the cursors the VM advances while executing a single
// expression: the remaining opcode, integer-literal, and float-literal
// bytes, plus the stack it operates on and a scratch buffer it reuses
// across Transpose/MulMat temporaries. It is constructed fresh for every
// Eval call and discarded afterward; it owns no persistent state.
type EvalContext struct {
	ops   []byte
	ints  []byte
	flts  []byte
	stack *Stack
	temp  []float32
}

// Eval runs every opcode in order, stopping at the first non-Ok status.
func (c *EvalContext) Eval() EvalStatus {
	for len(c.ops) > 0 {
		op := Op(c.ops[0])
		c.ops = c.ops[1:]
		if status := c.execOp(op); status != Ok {
			return status
		}
	}
	return Ok
}

// geti consumes one integer literal from the front of the stream.
func (c *EvalContext) geti() (uint8, EvalStatus) {
	if len(c.ints) < 1 {
		return 0, IntLiteralsUnderflow
	}
	n := c.ints[0]
	c.ints = c.ints[1:]
	return n, Ok
}

// pushf consumes n float literals from the front of the stream and pushes
// them onto the stack in order, decoding directly into the stack's
// backing array without an intermediate allocation.
func (c *EvalContext) pushf(n int) EvalStatus {
	if n*4 > len(c.flts) {
		return FloatLiteralsUnderflow
	}
	if c.stack.size+n > len(c.stack.data) {
		return StackOverflow
	}
	for i := 0; i < n; i++ {
		c.stack.data[c.stack.size+i] = decodeFloat32(c.flts[4*i:])
	}
	c.stack.size += n
	c.flts = c.flts[4*n:]
	return Ok
}

// implicitPushArg splits arg into a push-count held in its low `instances`
// bits and a size held in the remaining high bits. If the push-count is
// nonzero, it pulls push_count*multiple*size floats from the literal
// stream onto the stack before returning the size.
func (c *EvalContext) implicitPushArg(arg, multiple, instances uint8) (uint8, EvalStatus) {
	mask := uint8(1<<instances) - 1
	pushCount := arg & mask
	n := arg >> instances
	if pushCount == 0 {
		return n, Ok
	}
	size := int(pushCount) * int(multiple) * int(n)
	if status := c.pushf(size); status != Ok {
		return n, status
	}
	return n, Ok
}

func unaryScalar(c *EvalContext, f func(float32) float32) EvalStatus {
	v, status := c.stack.pop()
	if status != Ok {
		return status
	}
	return c.stack.push(f(v))
}

func binaryScalar(c *EvalContext, f func(a, b float32) float32) EvalStatus {
	v, status := c.stack.popv(2)
	if status != Ok {
		return status
	}
	return c.stack.push(f(v[0], v[1]))
}

func elementwiseVec(c *EvalContext, size uint8, f func(a, b float32) float32) EvalStatus {
	rhs, status := c.stack.popv(int(size))
	if status != Ok {
		return status
	}
	lhs, status := c.stack.peekv(int(size))
	if status != Ok {
		return status
	}
	for i := range lhs {
		lhs[i] = f(lhs[i], rhs[i])
	}
	return Ok
}

// scratch returns a reusable, exactly-n-length buffer for matrix
// intermediates, growing only when the current one is too small. This is
// the only allocation a single Eval call can incur, bounded by the
// largest matrix operand in the expression.
func (c *EvalContext) scratch(n int) []float32 {
	if cap(c.temp) < n {
		c.temp = make([]float32, n)
	} else {
		c.temp = c.temp[:n]
	}
	return c.temp
}

func (c *EvalContext) execOp(op Op) EvalStatus {
	switch op {
	case Push:
		n, status := c.geti()
		if status != Ok {
			return status
		}
		return c.pushf(int(n))

	case Pop:
		n, status := c.geti()
		if status != Ok {
			return status
		}
		_, status = c.stack.popv(int(n))
		return status

	case Dup:
		n, status := c.geti()
		if status != Ok {
			return status
		}
		v, ok := c.stack.at(int(n))
		if !ok {
			return StackUnderflow
		}
		return c.stack.push(v)

	case RotL:
		n, status := c.geti()
		if status != Ok {
			return status
		}
		if n <= 1 {
			return Ok
		}
		values, status := c.stack.peekv(int(n))
		if status != Ok {
			return status
		}
		l := values[0]
		copy(values, values[1:])
		values[len(values)-1] = l
		return Ok

	case RotR:
		n, status := c.geti()
		if status != Ok {
			return status
		}
		if n <= 1 {
			return Ok
		}
		values, status := c.stack.peekv(int(n))
		if status != Ok {
			return status
		}
		r := values[len(values)-1]
		copy(values[1:], values[:len(values)-1])
		values[0] = r
		return Ok

	case Rev:
		n, status := c.geti()
		if status != Ok {
			return status
		}
		values, status := c.stack.peekv(int(n))
		if status != Ok {
			return status
		}
		for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
			values[i], values[j] = values[j], values[i]
		}
		return Ok

	case Transpose:
		rows, status := c.geti()
		if status != Ok {
			return status
		}
		cols, status := c.geti()
		if status != Ok {
			return status
		}
		cols, status = c.implicitPushArg(cols, rows, 1)
		if status != Ok {
			return status
		}

		m, status := c.stack.popv(int(rows) * int(cols))
		if status != Ok {
			return status
		}
		temp := c.scratch(len(m))
		for i := uint8(0); i < rows; i++ {
			for j := uint8(0); j < cols; j++ {
				midx := int(cols)*int(i) + int(j)
				tidx := int(rows)*int(j) + int(i)
				temp[tidx] = m[midx]
			}
		}
		return c.stack.pushv(temp)

	case Add:
		return binaryScalar(c, func(a, b float32) float32 { return a + b })
	case Sub:
		return binaryScalar(c, func(a, b float32) float32 { return a - b })
	case Mul:
		return binaryScalar(c, func(a, b float32) float32 { return a * b })
	case Div:
		return binaryScalar(c, func(a, b float32) float32 { return a / b })
	case Mod:
		return binaryScalar(c, func(a, b float32) float32 {
			return float32(math.Mod(float64(a), float64(b)))
		})
	case Pow:
		return binaryScalar(c, func(a, b float32) float32 {
			return float32(math.Pow(float64(a), float64(b)))
		})
	case Atan2:
		return binaryScalar(c, func(y, x float32) float32 {
			return float32(math.Atan2(float64(y), float64(x)))
		})

	case MulAdd:
		v, status := c.stack.popv(3)
		if status != Ok {
			return status
		}
		return c.stack.push(v[0] + v[1]*v[2])

	case Neg:
		return unaryScalar(c, func(v float32) float32 { return -v })
	case Abs:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Abs(float64(v))) })
	case Inv:
		return unaryScalar(c, func(v float32) float32 { return 1.0 / v })
	case Sqrt:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
	case Exp:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Exp(float64(v))) })
	case Ln:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Log(float64(v))) })
	case Sin:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Sin(float64(v))) })
	case Cos:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Cos(float64(v))) })
	case Tan:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Tan(float64(v))) })
	case Asin:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Asin(float64(v))) })
	case Acos:
		return unaryScalar(c, func(v float32) float32 { return float32(math.Acos(float64(v))) })

	case PolyVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 1)
		if status != Ok {
			return status
		}

		coeff, status := c.stack.popv(int(size))
		if status != Ok {
			return status
		}
		t, status := c.stack.pop()
		if status != Ok {
			return status
		}
		var result, p float32 = 0, 1
		for n := uint8(0); n < size; n++ {
			result += coeff[n] * p
			p *= t
		}
		return c.stack.push(result)

	case PolyMat:
		rows, status := c.geti()
		if status != Ok {
			return status
		}
		cols, status := c.geti()
		if status != Ok {
			return status
		}
		cols, status = c.implicitPushArg(cols, rows, 1)
		if status != Ok {
			return status
		}

		coeff, status := c.stack.popv(int(rows) * int(cols))
		if status != Ok {
			return status
		}
		t, status := c.stack.pop()
		if status != Ok {
			return status
		}
		result, status := c.stack.allocv(int(cols))
		if status != Ok {
			return status
		}
		for j := uint8(0); j < cols; j++ {
			var r, p float32 = 0, 1
			for i := uint8(0); i < rows; i++ {
				cidx := int(cols)*int(i) + int(j)
				r += coeff[cidx] * p
				p *= t
			}
			result[j] = r
		}
		return Ok

	case AddVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 1)
		if status != Ok {
			return status
		}
		return elementwiseVec(c, size, func(a, b float32) float32 { return a + b })

	case SubVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 1)
		if status != Ok {
			return status
		}
		return elementwiseVec(c, size, func(a, b float32) float32 { return a - b })

	case MulVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 1)
		if status != Ok {
			return status
		}
		return elementwiseVec(c, size, func(a, b float32) float32 { return a * b })

	case MulAddVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 2)
		if status != Ok {
			return status
		}

		cv, status := c.stack.popv(int(size))
		if status != Ok {
			return status
		}
		bv, status := c.stack.popv(int(size))
		if status != Ok {
			return status
		}
		av, status := c.stack.peekv(int(size))
		if status != Ok {
			return status
		}
		for i := range av {
			av[i] = av[i]*bv[i] + cv[i]
		}
		return Ok

	case ScaleVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 1)
		if status != Ok {
			return status
		}

		v, status := c.stack.popv(int(size))
		if status != Ok {
			return status
		}
		scalar, status := c.stack.pop()
		if status != Ok {
			return status
		}
		result, status := c.stack.allocv(int(size))
		if status != Ok {
			return status
		}
		for i := range result {
			result[i] = scalar * v[i]
		}
		return Ok

	case NegVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 1)
		if status != Ok {
			return status
		}
		v, status := c.stack.peekv(int(size))
		if status != Ok {
			return status
		}
		for i := range v {
			v[i] = -v[i]
		}
		return Ok

	case NormVec:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 1)
		if status != Ok {
			return status
		}
		v, status := c.stack.popv(int(size))
		if status != Ok {
			return status
		}
		var result float32
		for _, x := range v {
			result += x * x
		}
		return c.stack.push(float32(math.Sqrt(float64(result))))

	case MulMat:
		arows, status := c.geti()
		if status != Ok {
			return status
		}
		brows, status := c.geti()
		if status != Ok {
			return status
		}
		bcols, status := c.geti()
		if status != Ok {
			return status
		}
		bcols, status = c.implicitPushArg(bcols, brows, 1)
		if status != Ok {
			return status
		}

		b, status := c.stack.popv(int(brows) * int(bcols))
		if status != Ok {
			return status
		}
		a, status := c.stack.popv(int(arows) * int(brows))
		if status != Ok {
			return status
		}
		temp := c.scratch(int(arows) * int(bcols))
		for i := uint8(0); i < arows; i++ {
			for j := uint8(0); j < bcols; j++ {
				var r float32
				for k := uint8(0); k < brows; k++ {
					aidx := int(brows)*int(i) + int(k)
					bidx := int(bcols)*int(k) + int(j)
					r += a[aidx] * b[bidx]
				}
				cidx := int(bcols)*int(i) + int(j)
				temp[cidx] = r
			}
		}
		return c.stack.pushv(temp)

	case Lerp:
		size, status := c.geti()
		if status != Ok {
			return status
		}
		size, status = c.implicitPushArg(size, 1, 2)
		if status != Ok {
			return status
		}

		v1, status := c.stack.popv(int(size))
		if status != Ok {
			return status
		}
		v0, status := c.stack.popv(int(size))
		if status != Ok {
			return status
		}
		t, status := c.stack.pop()
		if status != Ok {
			return status
		}
		result, status := c.stack.allocv(int(size))
		if status != Ok {
			return status
		}
		for i := range result {
			result[i] = (1-t)*v0[i] + t*v1[i]
		}
		return Ok

	case Lut:
		rows, status := c.geti()
		if status != Ok {
			return status
		}
		cols, status := c.geti()
		if status != Ok {
			return status
		}
		cols, status = c.implicitPushArg(cols, rows, 1)
		if status != Ok {
			return status
		}
		if rows < 1 || cols < 1 {
			return IllegalOperation
		}

		size := int(rows) * int(cols)
		n := int(cols) - 1
		lut, status := c.stack.popv(size)
		if status != Ok {
			return status
		}
		t, status := c.stack.pop()
		if status != Ok {
			return status
		}
		result, status := c.stack.allocv(n)
		if status != Ok {
			return status
		}

		ubrow := upperBound(int(rows), func(i int) bool {
			return t < lut[int(cols)*i]
		})
		switch {
		case ubrow == 0:
			copy(result, lut[1:int(cols)])
		case ubrow == int(rows):
			base := size - int(cols)
			copy(result, lut[base+1:base+int(cols)])
		default:
			ub := ubrow * int(cols)
			lb := ub - int(cols)
			t0, t1 := lut[lb], lut[ub]
			frac := (t - t0) / (t1 - t0)
			v0 := lut[lb+1 : lb+int(cols)]
			v1 := lut[ub+1 : ub+int(cols)]
			for i := range result {
				result[i] = (1-frac)*v0[i] + frac*v1[i]
			}
		}
		return Ok

	default:
		return UndefinedOperation
	}
}
