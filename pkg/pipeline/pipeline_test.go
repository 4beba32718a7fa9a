package pipeline

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Savani-Raj/minivm-plus/pkg/bytecode"
	"github.com/Savani-Raj/minivm-plus/pkg/compiler"
	"github.com/Savani-Raj/minivm-plus/pkg/ir"
)

func TestCompileRunRoundTrip(t *testing.T) {
	module, prog, err := CompileAndOptimize("a = 2 + 3; b = a * 2; return b;", DefaultOptions())
	if err != nil {
		t.Fatalf("CompileAndOptimize: %v", err)
	}
	if prog.Function(ir.MainName) == nil {
		t.Fatal("optimized IR lost main")
	}

	value, prof, err := Run(module, DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if value != bytecode.FromInt(10) {
		t.Errorf("result = %s, want 10", value)
	}
	if prof.BlockCount(ir.MainName, "entry") != 1 {
		t.Errorf("entry block count = %d", prof.BlockCount(ir.MainName, "entry"))
	}
}

func TestRunCapturesOutput(t *testing.T) {
	module, _, err := CompileAndOptimize("print(6 * 7);", DefaultOptions())
	if err != nil {
		t.Fatalf("CompileAndOptimize: %v", err)
	}
	var out bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &out
	if _, _, err := Run(module, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "42\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestSyntaxErrorPropagates(t *testing.T) {
	_, _, err := CompileAndOptimize("let = ;", DefaultOptions())
	var syn *compiler.SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("expected SyntaxError, got %v", err)
	}
}

func TestRuntimeFaultPropagatesWithProfile(t *testing.T) {
	src := "let n = 3; let z = n - 3; return 1 / z;"
	module, _, err := CompileAndOptimize(src, DefaultOptions())
	if err != nil {
		t.Fatalf("CompileAndOptimize: %v", err)
	}
	_, prof, err := Run(module, DefaultOptions())
	var fault *bytecode.RuntimeFault
	if !errors.As(err, &fault) || fault.Kind != bytecode.FaultDivisionByZero {
		t.Fatalf("expected division fault, got %v", err)
	}
	if prof == nil || prof.BlockCount(ir.MainName, "entry") != 1 {
		t.Error("profile of the faulting run missing")
	}
}

func TestRunTieredInlinesHotFunction(t *testing.T) {
	src := `
func double(x) {
	return x + x;
}
let i = 0;
let s = 0;
while (i < 1500) {
	s = double(i);
	i = i + 1;
}
return s;
`
	res, err := RunTiered(src, DefaultOptions())
	if err != nil {
		t.Fatalf("RunTiered: %v", err)
	}
	if !res.Reoptimized {
		t.Fatal("1500 calls did not trigger the feedback tier")
	}
	if res.Value != bytecode.FromInt(2998) {
		t.Errorf("result = %s, want 2998", res.Value)
	}

	// The first tier's profile marked the callee hot, and the feedback
	// tier inlined it: the re-optimized main has no remaining calls.
	main := res.Program.Function(ir.MainName)
	for _, b := range main.Blocks {
		for _, ins := range b.Instrs {
			if ins.Op == ir.OpCall {
				t.Fatalf("call to %s survived inlining", ins.Callee)
			}
		}
	}
}

func TestOptimizedFloatProgramMatchesUnoptimized(t *testing.T) {
	// Power-of-two multiplies and divides get strength-reduced; on float
	// arguments the reduced form must still produce the same values.
	src := `
func half(x) {
	return x / 2;
}
func scale(x) {
	return x * 4;
}
print(half(5.0));
print(scale(2.5));
`
	prog, err := compiler.Compile(src)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	plain, err := bytecode.Lower(prog)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	var want bytes.Buffer
	vm := bytecode.NewVM()
	vm.Out = &want
	if _, err := vm.Execute(plain); err != nil {
		t.Fatalf("Execute (unoptimized): %v", err)
	}
	if want.String() != "2.5\n10\n" {
		t.Fatalf("unoptimized output = %q", want.String())
	}

	module, _, err := CompileAndOptimize(src, DefaultOptions())
	if err != nil {
		t.Fatalf("CompileAndOptimize: %v", err)
	}
	var got bytes.Buffer
	opts := DefaultOptions()
	opts.Out = &got
	if _, _, err := Run(module, opts); err != nil {
		t.Fatalf("Run (optimized): %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("optimized output = %q, want %q", got.String(), want.String())
	}
}

func TestParameterTypesFeedSpecialization(t *testing.T) {
	src := `
func third(x) {
	return x / 3;
}
let i = 0;
let s = 0;
while (i < 150) {
	s = s + third(i);
	i = i + 1;
}
return s;
`
	module, prog, err := CompileAndOptimize(src, DefaultOptions())
	if err != nil {
		t.Fatalf("CompileAndOptimize: %v", err)
	}
	first, prof, err := Run(module, DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// 150 integer calls make the parameter a stable int observation.
	if kind, ok := prof.Monomorphic("third", "x"); !ok || kind != bytecode.KindInt {
		t.Fatalf("third's parameter not monomorphic int (kind %s, ok %v)", kind, ok)
	}

	reprog := Reoptimize(prog, prof, DefaultOptions())
	specialized := false
	for _, fn := range reprog.Funcs {
		for _, b := range fn.Blocks {
			for _, ins := range b.Instrs {
				if ins.Op == ir.OpDivInt {
					specialized = true
				}
			}
		}
	}
	if !specialized {
		t.Fatal("division in the hot callee was not specialized")
	}

	remodule, err := bytecode.Lower(reprog)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	second, _, err := Run(remodule, DefaultOptions())
	if err != nil {
		t.Fatalf("Run (specialized): %v", err)
	}
	if first != second {
		t.Errorf("results diverged: %s then %s", first, second)
	}
}

func TestRunTieredColdProgramRunsOnce(t *testing.T) {
	res, err := RunTiered("func f(x) { return x; } return f(1);", DefaultOptions())
	if err != nil {
		t.Fatalf("RunTiered: %v", err)
	}
	if res.Reoptimized {
		t.Error("single call triggered the feedback tier")
	}
	if res.Value != bytecode.FromInt(1) {
		t.Errorf("result = %s, want 1", res.Value)
	}
}

func TestReoptimizedRunMatchesFirstRun(t *testing.T) {
	src := `
func triple(x) {
	return x + x + x;
}
let i = 0;
let s = 0;
while (i < 200) {
	s = s + triple(i);
	i = i + 1;
}
return s;
`
	module, prog, err := CompileAndOptimize(src, DefaultOptions())
	if err != nil {
		t.Fatalf("CompileAndOptimize: %v", err)
	}
	first, prof, err := Run(module, DefaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	reprog := Reoptimize(prog, prof, DefaultOptions())
	remodule, err := bytecode.Lower(reprog)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	second, _, err := Run(remodule, DefaultOptions())
	if err != nil {
		t.Fatalf("Run (reoptimized): %v", err)
	}
	if first != second {
		t.Errorf("results diverged: %s then %s", first, second)
	}
}
