package compiler

import (
	"fmt"

	"github.com/Savani-Raj/minivm-plus/pkg/ir"
)

// ---------------------------------------------------------------------------
// IR generation
// ---------------------------------------------------------------------------

// Generate lowers a parsed program to IR: one function per declaration
// plus main built from the top-level statements. Control flow is
// desugared to blocks and branches, expression results flow through
// numbered temporaries, and the result is validated before return.
func Generate(prog *Program) (*ir.Program, error) {
	out := ir.NewProgram()

	for _, fn := range prog.Funcs {
		irFn, err := genFunction(fn.Name, fn.Params, fn.Body)
		if err != nil {
			return nil, err
		}
		if err := out.AddFunction(irFn); err != nil {
			return nil, err
		}
	}

	main, err := genFunction(ir.MainName, nil, prog.Stmts)
	if err != nil {
		return nil, err
	}
	if err := out.AddFunction(main); err != nil {
		return nil, err
	}

	if err := ir.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Compile parses and generates in one step.
func Compile(src string) (*ir.Program, error) {
	ast, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Generate(ast)
}

type generator struct {
	fn     *ir.Function
	cur    *ir.BasicBlock
	temps  int
	labels int
}

func genFunction(name string, params []string, body []Stmt) (*ir.Function, error) {
	g := &generator{fn: ir.NewFunction(name, params...)}
	g.cur = g.fn.AddBlock(ir.NewBlock("entry"))
	if err := g.genStmts(body); err != nil {
		return nil, err
	}
	return g.fn, nil
}

// newTemp returns a fresh temporary name.
func (g *generator) newTemp() string {
	g.temps++
	return fmt.Sprintf("t%d", g.temps)
}

// newLabel returns a fresh block label.
func (g *generator) newLabel() string {
	g.labels++
	return fmt.Sprintf("b%d", g.labels)
}

// startBlock appends a new block and makes it current.
func (g *generator) startBlock(label string) {
	g.cur = g.fn.AddBlock(ir.NewBlock(label))
}

func (g *generator) emit(ins *ir.Instruction) error {
	return g.cur.Append(ins)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *generator) genStmts(stmts []Stmt) error {
	for _, stmt := range stmts {
		if err := g.genStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) genStmt(stmt Stmt) error {
	switch s := stmt.(type) {
	case *LetStmt:
		return g.genAssign(s.Name, s.Value)

	case *AssignStmt:
		return g.genAssign(s.Name, s.Value)

	case *PrintStmt:
		v, err := g.genExpr(s.Value)
		if err != nil {
			return err
		}
		return g.emit(ir.NewPrint(v))

	case *IfStmt:
		return g.genIf(s)

	case *WhileStmt:
		return g.genWhile(s)

	case *ReturnStmt:
		result := ir.None
		if s.Value != nil {
			v, err := g.genExpr(s.Value)
			if err != nil {
				return err
			}
			result = v
		}
		if err := g.emit(ir.NewReturn(result)); err != nil {
			return err
		}
		// Statements after a return land in an unreachable block.
		g.startBlock(g.newLabel())
		return nil

	case *ExprStmt:
		_, err := g.genExpr(s.Expr)
		return err

	default:
		return fmt.Errorf("cannot lower %T", stmt)
	}
}

func (g *generator) genAssign(name string, value Expr) error {
	v, err := g.genExpr(value)
	if err != nil {
		return err
	}
	if v.IsConst() {
		return g.emit(ir.NewConst(name, v))
	}
	return g.emit(ir.NewMov(name, v))
}

func (g *generator) genIf(s *IfStmt) error {
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}

	thenLabel := g.newLabel()
	endLabel := g.newLabel()
	elseLabel := endLabel
	if s.Else != nil {
		elseLabel = g.newLabel()
	}

	if err := g.emit(ir.NewBranch(cond, thenLabel, elseLabel)); err != nil {
		return err
	}

	g.startBlock(thenLabel)
	if err := g.genStmts(s.Then); err != nil {
		return err
	}
	if g.cur.Terminator() == nil {
		if err := g.emit(ir.NewJump(endLabel)); err != nil {
			return err
		}
	}

	if s.Else != nil {
		g.startBlock(elseLabel)
		if err := g.genStmts(s.Else); err != nil {
			return err
		}
		if g.cur.Terminator() == nil {
			if err := g.emit(ir.NewJump(endLabel)); err != nil {
				return err
			}
		}
	}

	g.startBlock(endLabel)
	return nil
}

func (g *generator) genWhile(s *WhileStmt) error {
	condLabel := g.newLabel()
	bodyLabel := g.newLabel()
	endLabel := g.newLabel()

	if err := g.emit(ir.NewJump(condLabel)); err != nil {
		return err
	}

	g.startBlock(condLabel)
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	if err := g.emit(ir.NewBranch(cond, bodyLabel, endLabel)); err != nil {
		return err
	}

	g.startBlock(bodyLabel)
	if err := g.genStmts(s.Body); err != nil {
		return err
	}
	if g.cur.Terminator() == nil {
		if err := g.emit(ir.NewJump(condLabel)); err != nil {
			return err
		}
	}

	g.startBlock(endLabel)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]ir.Op{
	TokenPlus:  ir.OpAdd,
	TokenMinus: ir.OpSub,
	TokenStar:  ir.OpMul,
	TokenSlash: ir.OpDiv,
	TokenEq:    ir.OpEq,
	TokenNe:    ir.OpNe,
	TokenLt:    ir.OpLt,
	TokenLe:    ir.OpLe,
	TokenGt:    ir.OpGt,
	TokenGe:    ir.OpGe,
}

func (g *generator) genExpr(expr Expr) (ir.Operand, error) {
	switch e := expr.(type) {
	case *IntLit:
		return ir.Int(e.Value), nil

	case *FloatLit:
		return ir.Float(e.Value), nil

	case *BoolLit:
		return ir.Bool(e.Value), nil

	case *Ident:
		return ir.Name(e.Name), nil

	case *Unary:
		// Negated literals become negative literals directly.
		switch operand := e.Operand.(type) {
		case *IntLit:
			return ir.Int(-operand.Value), nil
		case *FloatLit:
			return ir.Float(-operand.Value), nil
		}
		v, err := g.genExpr(e.Operand)
		if err != nil {
			return ir.None, err
		}
		dest := g.newTemp()
		if err := g.emit(ir.NewNeg(dest, v)); err != nil {
			return ir.None, err
		}
		return ir.Name(dest), nil

	case *Binary:
		op, ok := binaryOps[e.Op]
		if !ok {
			return ir.None, fmt.Errorf("cannot lower operator %s", e.Op)
		}
		left, err := g.genExpr(e.Left)
		if err != nil {
			return ir.None, err
		}
		right, err := g.genExpr(e.Right)
		if err != nil {
			return ir.None, err
		}
		dest := g.newTemp()
		if err := g.emit(ir.NewBinary(op, dest, left, right)); err != nil {
			return ir.None, err
		}
		return ir.Name(dest), nil

	case *CallExpr:
		args := make([]ir.Operand, len(e.Args))
		for i, arg := range e.Args {
			v, err := g.genExpr(arg)
			if err != nil {
				return ir.None, err
			}
			args[i] = v
		}
		dest := g.newTemp()
		if err := g.emit(ir.NewCall(dest, e.Name, args...)); err != nil {
			return ir.None, err
		}
		return ir.Name(dest), nil

	default:
		return ir.None, fmt.Errorf("cannot lower %T", expr)
	}
}
