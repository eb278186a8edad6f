package protocol

/*
	The postfix expression format targets a bounded float32 stack, not a
	register machine: there is no program counter to jump, no memory to
	address, and no device bus. An expression is a flat sequence of opcodes
	executed once, front to back. Each opcode pulls zero or more integer
	literals (sizes, dimensions, implicit-push bitmasks) from the integer
	literal stream and zero or more float literals from the float literal
	stream, then consumes and/or produces values on the stack.

	Ops fall into a few families:

		Push, Pop, Dup, RotL, RotR, Rev     stack manipulation
		Transpose                           matrix reshape
		Add .. Atan2                        scalar arithmetic and transcendentals
		AddVec .. NormVec, MulMat           vector/matrix arithmetic
		PolyVec, PolyMat                    polynomial evaluation
		Lerp, Lut                           interpolation

	Several ops in the vector/matrix family encode an "implicit push" in the
	low bits of their size argument: the low k bits select how many of the
	operands should be pulled from the float literal stream before the op
	runs, instead of already being on the stack. See implicitPushArg in
	eval.go.
*/

// Op is a single postfix-expression opcode, one byte on the wire.
type Op uint8

const (
	Undefined Op = iota
	Push
	Pop
	Dup
	RotL
	RotR
	Rev
	Transpose
	Add
	Sub
	Mul
	MulAdd
	Div
	Mod
	Neg
	Abs
	Inv
	Pow
	Sqrt
	Exp
	Ln
	Sin
	Cos
	Tan
	Asin
	Acos
	Atan2
	AddVec
	SubVec
	MulVec
	MulAddVec
	ScaleVec
	NegVec
	NormVec
	MulMat
	PolyVec
	PolyMat
	Lerp
	Lut
)

var strToOpMap = map[string]Op{
	"undefined": Undefined,
	"push":      Push,
	"pop":       Pop,
	"dup":       Dup,
	"rotl":      RotL,
	"rotr":      RotR,
	"rev":       Rev,
	"transpose": Transpose,
	"add":       Add,
	"sub":       Sub,
	"mul":       Mul,
	"muladd":    MulAdd,
	"div":       Div,
	"mod":       Mod,
	"neg":       Neg,
	"abs":       Abs,
	"inv":       Inv,
	"pow":       Pow,
	"sqrt":      Sqrt,
	"exp":       Exp,
	"ln":        Ln,
	"sin":       Sin,
	"cos":       Cos,
	"tan":       Tan,
	"asin":      Asin,
	"acos":      Acos,
	"atan2":     Atan2,
	"addvec":    AddVec,
	"subvec":    SubVec,
	"mulvec":    MulVec,
	"muladdvec": MulAddVec,
	"scalevec":  ScaleVec,
	"negvec":    NegVec,
	"normvec":   NormVec,
	"mulmat":    MulMat,
	"polyvec":   PolyVec,
	"polymat":   PolyMat,
	"lerp":      Lerp,
	"lut":       Lut,
}

// opToStrMap is the reverse of strToOpMap, built once at package init.
var opToStrMap map[Op]string

func init() {
	opToStrMap = make(map[Op]string, len(strToOpMap))
	for s, op := range strToOpMap {
		opToStrMap[op] = s
	}
}

func (o Op) String() string {
	str, ok := opToStrMap[o]
	if !ok {
		return "?unknown?"
	}
	return str
}
