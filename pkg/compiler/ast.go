package compiler

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

// Node is implemented by every AST node.
type Node interface {
	Pos() Position
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Program is a parsed source file: function declarations plus the
// top-level statements that form the implicit entry function.
type Program struct {
	Funcs []*FuncDecl
	Stmts []Stmt
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// IntLit is an integer literal.
type IntLit struct {
	PosVal Position
	Value  int64
}

// FloatLit is a float literal.
type FloatLit struct {
	PosVal Position
	Value  float64
}

// BoolLit is a true/false literal.
type BoolLit struct {
	PosVal Position
	Value  bool
}

// Ident is a variable reference.
type Ident struct {
	PosVal Position
	Name   string
}

// Unary is a prefix operation; the only operator is minus.
type Unary struct {
	PosVal  Position
	Op      TokenType
	Operand Expr
}

// Binary is an infix operation.
type Binary struct {
	PosVal Position
	Op     TokenType
	Left   Expr
	Right  Expr
}

// CallExpr is a function call.
type CallExpr struct {
	PosVal Position
	Name   string
	Args   []Expr
}

func (e *IntLit) Pos() Position   { return e.PosVal }
func (e *FloatLit) Pos() Position { return e.PosVal }
func (e *BoolLit) Pos() Position  { return e.PosVal }
func (e *Ident) Pos() Position    { return e.PosVal }
func (e *Unary) Pos() Position    { return e.PosVal }
func (e *Binary) Pos() Position   { return e.PosVal }
func (e *CallExpr) Pos() Position { return e.PosVal }

func (*IntLit) exprNode()   {}
func (*FloatLit) exprNode() {}
func (*BoolLit) exprNode()  {}
func (*Ident) exprNode()    {}
func (*Unary) exprNode()    {}
func (*Binary) exprNode()   {}
func (*CallExpr) exprNode() {}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// LetStmt declares and initializes a variable.
type LetStmt struct {
	PosVal Position
	Name   string
	Value  Expr
}

// AssignStmt reassigns an existing variable.
type AssignStmt struct {
	PosVal Position
	Name   string
	Value  Expr
}

// PrintStmt prints a value.
type PrintStmt struct {
	PosVal Position
	Value  Expr
}

// IfStmt is a conditional with an optional else arm.
type IfStmt struct {
	PosVal Position
	Cond   Expr
	Then   []Stmt
	Else   []Stmt // nil when absent
}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	PosVal Position
	Cond   Expr
	Body   []Stmt
}

// ReturnStmt returns from the enclosing function. Value may be nil.
type ReturnStmt struct {
	PosVal Position
	Value  Expr
}

// ExprStmt is an expression evaluated for its effect (a call).
type ExprStmt struct {
	PosVal Position
	Expr   Expr
}

// FuncDecl declares a function. Only allowed at the top level.
type FuncDecl struct {
	PosVal Position
	Name   string
	Params []string
	Body   []Stmt
}

func (s *LetStmt) Pos() Position    { return s.PosVal }
func (s *AssignStmt) Pos() Position { return s.PosVal }
func (s *PrintStmt) Pos() Position  { return s.PosVal }
func (s *IfStmt) Pos() Position     { return s.PosVal }
func (s *WhileStmt) Pos() Position  { return s.PosVal }
func (s *ReturnStmt) Pos() Position { return s.PosVal }
func (s *ExprStmt) Pos() Position   { return s.PosVal }
func (s *FuncDecl) Pos() Position   { return s.PosVal }

func (*LetStmt) stmtNode()    {}
func (*AssignStmt) stmtNode() {}
func (*PrintStmt) stmtNode()  {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode() {}
func (*ExprStmt) stmtNode()   {}
func (*FuncDecl) stmtNode()   {}
