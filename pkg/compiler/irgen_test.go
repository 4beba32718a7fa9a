package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
	"github.com/Savani-Raj/minivm-plus/pkg/ir"
	"github.com/Savani-Raj/minivm-plus/pkg/optimizer"
)

func compileAndRun(t *testing.T, src string, optimize bool) bytecode.Value {
	t.Helper()
	prog, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if optimize {
		optimizer.Optimize(prog, optimizer.Options{})
	}
	m, err := bytecode.Lower(prog)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	result, err := bytecode.NewVM().Execute(m)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return result
}

func TestGenerateSimpleProgram(t *testing.T) {
	prog, err := Compile("a = 2 + 3; b = a * 2; return b;")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	main := prog.Function(ir.MainName)
	if main == nil {
		t.Fatal("no main function")
	}

	text := main.String()
	for _, want := range []string{"t1 = 2 + 3", "a = t1", "t2 = a * 2", "b = t2", "return b"} {
		if !strings.Contains(text, want) {
			t.Errorf("IR missing %q:\n%s", want, text)
		}
	}
}

func TestGenerateWhileDesugarsToBranches(t *testing.T) {
	prog, err := Compile("let i = 0; while (i < 3) { i = i + 1; } return i;")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	main := prog.Function(ir.MainName)

	branches, jumps := 0, 0
	for _, b := range main.Blocks {
		for _, ins := range b.Instrs {
			switch ins.Op {
			case ir.OpBranch:
				branches++
			case ir.OpJump:
				jumps++
			}
		}
	}
	if branches != 1 {
		t.Errorf("got %d branches, want 1", branches)
	}
	if jumps < 2 {
		t.Errorf("got %d jumps, want entry jump and back edge", jumps)
	}
}

func TestGenerateRejectsUseBeforeDefinition(t *testing.T) {
	_, err := Compile("let a = b + 1;")
	var malformed *ir.MalformedIRError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedIRError, got %v", err)
	}
}

func TestGenerateRejectsUnknownCallee(t *testing.T) {
	_, err := Compile("let a = missing(1);")
	var malformed *ir.MalformedIRError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedIRError, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// End-to-end execution
// ---------------------------------------------------------------------------

func TestExecuteArithmetic(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want bytecode.Value
	}{
		{"fold chain", "a = 2 + 3; b = a * 2; return b;", bytecode.FromInt(10)},
		{"precedence", "return 1 + 2 * 3;", bytecode.FromInt(7)},
		{"parens", "return (1 + 2) * 3;", bytecode.FromInt(9)},
		{"unary minus", "let x = 5; return -x + 1;", bytecode.FromInt(-4)},
		{"negative literal", "return -7;", bytecode.FromInt(-7)},
		{"float math", "return 1.5 * 2.0;", bytecode.FromFloat(3)},
		{"mixed math", "return 1 + 0.5;", bytecode.FromFloat(1.5)},
		{"comparison", "return 3 < 4;", bytecode.True},
		{"bool literal", "return true;", bytecode.True},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, opt := range []bool{false, true} {
				if got := compileAndRun(t, tc.src, opt); got != tc.want {
					t.Errorf("optimize=%v: got %s, want %s", opt, got, tc.want)
				}
			}
		})
	}
}

func TestExecuteControlFlow(t *testing.T) {
	src := `
let n = 10;
let s = 0;
let i = 0;
while (i < n) {
	if (i == 5) {
		s = s + 100;
	} else {
		s = s + i;
	}
	i = i + 1;
}
return s;
`
	// 0+1+2+3+4+100+6+7+8+9 = 140
	for _, opt := range []bool{false, true} {
		if got := compileAndRun(t, src, opt); got != bytecode.FromInt(140) {
			t.Errorf("optimize=%v: got %s, want 140", opt, got)
		}
	}
}

func TestExecuteFunctions(t *testing.T) {
	src := `
func square(x) {
	return x * x;
}
func sumSquares(n) {
	let total = 0;
	let i = 1;
	while (i <= n) {
		total = total + square(i);
		i = i + 1;
	}
	return total;
}
return sumSquares(4);
`
	for _, opt := range []bool{false, true} {
		if got := compileAndRun(t, src, opt); got != bytecode.FromInt(30) {
			t.Errorf("optimize=%v: got %s, want 30", opt, got)
		}
	}
}

func TestExecuteRecursion(t *testing.T) {
	src := `
func fib(n) {
	if (n < 2) {
		return n;
	}
	return fib(n - 1) + fib(n - 2);
}
return fib(10);
`
	for _, opt := range []bool{false, true} {
		if got := compileAndRun(t, src, opt); got != bytecode.FromInt(55) {
			t.Errorf("optimize=%v: got %s, want 55", opt, got)
		}
	}
}

func TestExecuteStatementsAfterReturnAreDead(t *testing.T) {
	src := "return 1; print(2);"
	if got := compileAndRun(t, src, true); got != bytecode.FromInt(1) {
		t.Errorf("got %s, want 1", got)
	}
}

func TestProgramWithoutReturnYieldsNil(t *testing.T) {
	if got := compileAndRun(t, "let a = 1;", false); got != bytecode.Nil {
		t.Errorf("got %s, want nil", got)
	}
}
