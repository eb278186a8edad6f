package main

import (
	"flag"
	"fmt"
	"os"

	"windlass/protocol"
)

/*
	Command-line driver for the postfix/path evaluation core. It reads a
	file containing an encoded PostfixExpression or Path (selected with
	-path) and evaluates it against a fresh stack, printing the resulting
	stack contents. With -trace, it first prints every opcode of a
	PostfixExpression, then evaluates it; the stack is printed only once,
	after evaluation, and -trace has no effect on a Path.
*/

var (
	traceMode = flag.Bool("trace", false, "Print each opcode of a PostfixExpression before evaluation")
	pathMode  = flag.Bool("path", false, "Treat the input file as an encoded Path instead of a PostfixExpression")
	queryTime = flag.Uint64("t", 0, "Query time for Path evaluation (ignored for a bare PostfixExpression)")
	stackCap  = flag.Int("stack", 64, "Stack capacity in float32 slots")
)

func runPostfix(data []byte) {
	var r protocol.PostfixReader
	if !r.Read(data) {
		fmt.Println("failed to decode PostfixExpression")
		os.Exit(1)
	}

	if *traceMode {
		for i := 0; i < r.OpSize(); i++ {
			fmt.Println("op>", r.OpAt(i))
		}
	}

	stack := protocol.NewStack(make([]float32, *stackCap))
	status := stack.Eval(&r)
	fmt.Println("status>", status)
	fmt.Println("stack>", stack.Slice())
	if status != protocol.Ok {
		os.Exit(1)
	}
}

func runPath(data []byte, t uint32) {
	stack := protocol.NewStack(make([]float32, *stackCap))
	idx, status := protocol.PathEval(data, t, stack)
	fmt.Println("segment>", idx)
	fmt.Println("status>", status)
	fmt.Println("stack>", stack.Slice())
	if status != protocol.Ok {
		os.Exit(1)
	}
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Println("Usage: windlass [-trace] [-path -t <time>] <file>")
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Println("Could not read", flag.Arg(0))
		os.Exit(1)
	}

	if *pathMode {
		runPath(data, uint32(*queryTime))
	} else {
		runPostfix(data)
	}
}
