package compiler

import (
	"errors"
	"testing"
)

func parseOne(t *testing.T, input string) *Program {
	t.Helper()
	prog, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return prog
}

func TestParseLet(t *testing.T) {
	prog := parseOne(t, "let x = 42;")
	if len(prog.Stmts) != 1 {
		t.Fatalf("got %d statements", len(prog.Stmts))
	}
	let, ok := prog.Stmts[0].(*LetStmt)
	if !ok {
		t.Fatalf("statement is %T", prog.Stmts[0])
	}
	if let.Name != "x" {
		t.Errorf("name = %q", let.Name)
	}
	lit, ok := let.Value.(*IntLit)
	if !ok || lit.Value != 42 {
		t.Errorf("value = %#v", let.Value)
	}
}

func TestParsePrecedence(t *testing.T) {
	// 1 + 2 * 3 < 10 parses as ((1 + (2 * 3)) < 10).
	prog := parseOne(t, "let r = 1 + 2 * 3 < 10;")
	let := prog.Stmts[0].(*LetStmt)

	cmp, ok := let.Value.(*Binary)
	if !ok || cmp.Op != TokenLt {
		t.Fatalf("top = %#v, want <", let.Value)
	}
	add, ok := cmp.Left.(*Binary)
	if !ok || add.Op != TokenPlus {
		t.Fatalf("left of < is %#v, want +", cmp.Left)
	}
	mul, ok := add.Right.(*Binary)
	if !ok || mul.Op != TokenStar {
		t.Fatalf("right of + is %#v, want *", add.Right)
	}
}

func TestParseParensOverridePrecedence(t *testing.T) {
	prog := parseOne(t, "let r = (1 + 2) * 3;")
	let := prog.Stmts[0].(*LetStmt)

	mul, ok := let.Value.(*Binary)
	if !ok || mul.Op != TokenStar {
		t.Fatalf("top = %#v, want *", let.Value)
	}
	if add, ok := mul.Left.(*Binary); !ok || add.Op != TokenPlus {
		t.Fatalf("left of * is %#v, want +", mul.Left)
	}
}

func TestParseLeftAssociativity(t *testing.T) {
	// 10 - 3 - 2 parses as ((10 - 3) - 2).
	prog := parseOne(t, "let r = 10 - 3 - 2;")
	let := prog.Stmts[0].(*LetStmt)

	outer := let.Value.(*Binary)
	if inner, ok := outer.Left.(*Binary); !ok || inner.Op != TokenMinus {
		t.Fatalf("left = %#v, want (10 - 3)", outer.Left)
	}
	if lit, ok := outer.Right.(*IntLit); !ok || lit.Value != 2 {
		t.Fatalf("right = %#v, want 2", outer.Right)
	}
}

func TestParseUnaryMinus(t *testing.T) {
	prog := parseOne(t, "let r = -x * 2;")
	let := prog.Stmts[0].(*LetStmt)
	mul := let.Value.(*Binary)
	if _, ok := mul.Left.(*Unary); !ok {
		t.Errorf("left = %#v, want unary minus", mul.Left)
	}
}

func TestParseFuncDecl(t *testing.T) {
	prog := parseOne(t, `
func add(a, b) {
	return a + b;
}
let s = add(1, 2);
`)
	if len(prog.Funcs) != 1 {
		t.Fatalf("got %d funcs", len(prog.Funcs))
	}
	fn := prog.Funcs[0]
	if fn.Name != "add" || len(fn.Params) != 2 || fn.Params[1] != "b" {
		t.Errorf("decl = %q(%v)", fn.Name, fn.Params)
	}
	if len(fn.Body) != 1 {
		t.Fatalf("body has %d statements", len(fn.Body))
	}
	if _, ok := fn.Body[0].(*ReturnStmt); !ok {
		t.Errorf("body statement is %T", fn.Body[0])
	}

	let := prog.Stmts[0].(*LetStmt)
	call, ok := let.Value.(*CallExpr)
	if !ok || call.Name != "add" || len(call.Args) != 2 {
		t.Errorf("call = %#v", let.Value)
	}
}

func TestParseIfElseAndWhile(t *testing.T) {
	prog := parseOne(t, `
let i = 0;
while (i < 10) {
	if (i > 5) {
		print(i);
	} else {
		i = i + 1;
	}
}
`)
	loop, ok := prog.Stmts[1].(*WhileStmt)
	if !ok {
		t.Fatalf("statement 1 is %T", prog.Stmts[1])
	}
	cond, ok := loop.Cond.(*Binary)
	if !ok || cond.Op != TokenLt {
		t.Fatalf("loop cond = %#v", loop.Cond)
	}
	branch, ok := loop.Body[0].(*IfStmt)
	if !ok {
		t.Fatalf("loop body is %T", loop.Body[0])
	}
	if branch.Else == nil {
		t.Error("else arm missing")
	}
}

func TestParseIfWithoutElse(t *testing.T) {
	prog := parseOne(t, "let x = 1; if (x < 2) { print(x); }")
	branch := prog.Stmts[1].(*IfStmt)
	if branch.Else != nil {
		t.Error("phantom else arm")
	}
}

func TestParseBareReturn(t *testing.T) {
	prog := parseOne(t, "func f() { return; } f();")
	ret := prog.Funcs[0].Body[0].(*ReturnStmt)
	if ret.Value != nil {
		t.Errorf("bare return has value %#v", ret.Value)
	}
}

func TestParseCallStatement(t *testing.T) {
	prog := parseOne(t, "func f() { return 1; } f();")
	es, ok := prog.Stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("statement is %T", prog.Stmts[0])
	}
	if _, ok := es.Expr.(*CallExpr); !ok {
		t.Errorf("expression is %T", es.Expr)
	}
}

func TestSyntaxErrorPosition(t *testing.T) {
	cases := []struct {
		input      string
		line, col  int
	}{
		{"let = 5;", 1, 5},
		{"let x 5;", 1, 7},
		{"let x = ;", 1, 9},
		{"let a = 1;\nwhile i < 10) { }", 2, 7},
	}
	for _, tc := range cases {
		_, err := Parse(tc.input)
		if err == nil {
			t.Errorf("Parse(%q) succeeded", tc.input)
			continue
		}
		var syn *SyntaxError
		if !errors.As(err, &syn) {
			t.Errorf("Parse(%q) error type %T", tc.input, err)
			continue
		}
		if syn.Line != tc.line || syn.Column != tc.col {
			t.Errorf("Parse(%q) error at %d:%d, want %d:%d", tc.input, syn.Line, syn.Column, tc.line, tc.col)
		}
	}
}

func TestNestedFuncRejected(t *testing.T) {
	_, err := Parse("func f() { func g() { } }")
	if err == nil {
		t.Error("nested function declaration accepted")
	}
}
