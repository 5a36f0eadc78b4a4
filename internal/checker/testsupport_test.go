package checker

import (
	"testing"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/config"
	"github.com/C-BJ/val/internal/scope"
)

// tb builds programs programmatically for tests, standing in for the
// out-of-scope frontend. It assembles a miniature core library (Bool,
// Int, Double, String, literal traits, Sinkable, and the '+' operator)
// plus whatever the test adds to its main module.
type tb struct {
	t *testing.T
	a *ast.AST
}

func newTB(t *testing.T) *tb {
	t.Helper()
	return &tb{t: t, a: ast.NewAST()}
}

// --- expressions -----------------------------------------------------------

func (b *tb) name(stem string) ast.ExprID {
	return b.a.AddExpr(&ast.NameExpr{Name: ast.Identifier(stem)})
}

func (b *tb) nameArgs(stem string, static ...ast.ExprID) ast.ExprID {
	return b.a.AddExpr(&ast.NameExpr{Name: ast.Identifier(stem), StaticArguments: static})
}

func (b *tb) member(domain ast.ExprID, stem string) ast.ExprID {
	return b.a.AddExpr(&ast.NameExpr{Domain: domain, Name: ast.Identifier(stem)})
}

func (b *tb) intLit(v string) ast.ExprID {
	return b.a.AddExpr(&ast.IntegerLiteralExpr{Value: v})
}

func (b *tb) boolLit(v bool) ast.ExprID {
	return b.a.AddExpr(&ast.BooleanLiteralExpr{Value: v})
}

func (b *tb) call(callee ast.ExprID, args ...ast.LabeledArgument) ast.ExprID {
	return b.a.AddExpr(&ast.CallExpr{Callee: callee, Arguments: args})
}

func arg(label string, v ast.ExprID) ast.LabeledArgument {
	return ast.LabeledArgument{Label: label, Value: v}
}

// seq builds "head op operand op operand ..." with alternating operators.
func (b *tb) seq(head ast.ExprID, rest ...any) ast.ExprID {
	var tail []ast.SequenceOperand
	for i := 0; i < len(rest); i += 2 {
		op := b.a.AddExpr(&ast.NameExpr{Name: ast.OperatorName(ast.InfixNotation, rest[i].(string))})
		tail = append(tail, ast.SequenceOperand{Operator: op, Operand: rest[i+1].(ast.ExprID)})
	}
	return b.a.AddExpr(&ast.SequenceExpr{Head: head, Tail: tail})
}

func (b *tb) paramType(t ast.ExprID) ast.ExprID {
	return b.a.AddExpr(&ast.ParameterTypeExpr{Convention: ast.LetEffect, Bare: t})
}

func (b *tb) lambdaTypeExpr(output ast.ExprID, params ...ast.ExprID) ast.ExprID {
	ps := make([]ast.LambdaTypeParameter, len(params))
	for i, p := range params {
		ps[i] = ast.LambdaTypeParameter{Type: p}
	}
	return b.a.AddExpr(&ast.LambdaTypeExpr{Parameters: ps, Output: output})
}

// --- declarations ----------------------------------------------------------

func (b *tb) param(label, name string, typ ast.ExprID) ast.DeclID {
	var annotation ast.ExprID
	if typ != ast.NoExpr {
		annotation = b.paramType(typ)
	}
	return b.a.AddDecl(&ast.ParameterDecl{Label: label, Identifier: name, Annotation: annotation})
}

func (b *tb) fn(name string, params []ast.DeclID, output ast.ExprID, body ast.Body) ast.DeclID {
	return b.a.AddDecl(&ast.FunctionDecl{
		Identifier: name,
		Parameters: params,
		Output:     output,
		Body:       body,
	})
}

func (b *tb) genericFn(name string, typeParams []string, mkParams func(map[string]ast.DeclID) []ast.DeclID, output func(map[string]ast.DeclID) ast.ExprID, body ast.Body) ast.DeclID {
	clause := &ast.GenericClause{}
	byName := make(map[string]ast.DeclID)
	for _, tp := range typeParams {
		p := b.a.AddDecl(&ast.GenericParameterDecl{Identifier: tp})
		clause.Parameters = append(clause.Parameters, p)
		byName[tp] = p
	}
	return b.a.AddDecl(&ast.FunctionDecl{
		Identifier:    name,
		GenericClause: clause,
		Parameters:    mkParams(byName),
		Output:        output(byName),
		Body:          body,
	})
}

func (b *tb) infixFn(name string, param ast.DeclID, output ast.ExprID) ast.DeclID {
	return b.a.AddDecl(&ast.FunctionDecl{
		Identifier: name,
		Notation:   ast.InfixNotation,
		Parameters: []ast.DeclID{param},
		Output:     output,
	})
}

func (b *tb) product(name string, conformances []ast.ExprID, members ...ast.DeclID) ast.DeclID {
	return b.a.AddDecl(&ast.ProductTypeDecl{
		Identifier:   name,
		Conformances: conformances,
		Members:      members,
	})
}

func (b *tb) trait(name string, refinements []ast.ExprID, members ...ast.DeclID) ast.DeclID {
	return b.a.AddDecl(&ast.TraitDecl{
		Identifier:  name,
		Refinements: refinements,
		Members:     members,
	})
}

// letBinding declares "let <name>[: annotation] = <init>".
func (b *tb) letBinding(name string, annotation, initializer ast.ExprID) ast.DeclID {
	v := b.a.AddDecl(&ast.VarDecl{Identifier: name})
	np := b.a.AddPattern(&ast.NamePattern{Variable: v})
	bp := b.a.AddPattern(&ast.BindingPattern{Subpattern: np, Annotation: annotation})
	return b.a.AddDecl(&ast.BindingDecl{Introducer: ast.LetBinding, Pattern: bp, Initializer: initializer})
}

// varBinding declares "var <name>: annotation" (no initializer).
func (b *tb) varBinding(name string, annotation ast.ExprID) ast.DeclID {
	v := b.a.AddDecl(&ast.VarDecl{Identifier: name})
	np := b.a.AddPattern(&ast.NamePattern{Variable: v})
	bp := b.a.AddPattern(&ast.BindingPattern{Introducer: ast.VarBinding, Subpattern: np, Annotation: annotation})
	return b.a.AddDecl(&ast.BindingDecl{Introducer: ast.VarBinding, Pattern: bp})
}

func (b *tb) varOf(binding ast.DeclID) ast.DeclID {
	bd := b.a.Decl(binding).(*ast.BindingDecl)
	bp := b.a.Pattern(bd.Pattern).(*ast.BindingPattern)
	np := b.a.Pattern(bp.Subpattern).(*ast.NamePattern)
	return np.Variable
}

func (b *tb) brace(stmts ...ast.StmtID) ast.StmtID {
	return b.a.AddStmt(&ast.BraceStmt{Stmts: stmts})
}

func (b *tb) ret(v ast.ExprID) ast.StmtID {
	return b.a.AddStmt(&ast.ReturnStmt{Value: v})
}

func (b *tb) blockBody(stmts ...ast.StmtID) ast.Body {
	return ast.BlockBody(b.brace(stmts...))
}

// lambda builds a lambda literal with unannotated parameters and an
// expression body.
func (b *tb) lambda(paramNames []string, body ast.ExprID) ast.ExprID {
	params := make([]ast.DeclID, len(paramNames))
	for i, n := range paramNames {
		params[i] = b.a.AddDecl(&ast.ParameterDecl{Identifier: n})
	}
	fn := b.a.AddDecl(&ast.FunctionDecl{
		Parameters:      params,
		Body:            ast.ExprBody(body),
		IsInExprContext: true,
	})
	return b.a.AddExpr(&ast.LambdaExpr{Decl: fn})
}

func (b *tb) module(name string, decls ...ast.DeclID) ast.DeclID {
	unit := b.a.AddDecl(&ast.TranslationUnit{File: name + ".val", Decls: decls})
	m, err := b.a.InsertModule(&ast.ModuleDecl{Name: name, Units: []ast.DeclID{unit}})
	if err != nil {
		b.t.Fatalf("insert module %s: %v", name, err)
	}
	return m
}

// core assembles the miniature core library module.
func (b *tb) core() {
	eil := b.trait("ExpressibleByIntegerLiteral", nil)
	ebl := b.trait("ExpressibleByBooleanLiteral", nil)
	sinkable := b.trait("Sinkable", nil)

	boolType := b.product("Bool", []ast.ExprID{b.name("ExpressibleByBooleanLiteral"), b.name("Sinkable")})

	plus := b.infixFn("+", b.param("", "other", b.name("Int")), b.name("Int"))
	intType := b.product("Int",
		[]ast.ExprID{b.name("ExpressibleByIntegerLiteral"), b.name("Sinkable")},
		plus,
	)
	doubleType := b.product("Double", []ast.ExprID{b.name("Sinkable")})
	stringType := b.product("String", []ast.ExprID{b.name("Sinkable")})

	opPlus := b.a.AddDecl(&ast.OperatorDecl{
		Notation:   ast.InfixNotation,
		Name:       "+",
		Precedence: ast.PrecedenceAddition,
	})

	b.module("core", eil, ebl, sinkable, boolType, intType, doubleType, stringType, opPlus)
}

// build computes scopes; check creates a checker and checks one module.
func (b *tb) build() *scope.ScopedProgram {
	b.t.Helper()
	p, err := scope.Build(b.a)
	if err != nil {
		b.t.Fatalf("scope build failed: %v", err)
	}
	return p
}

func (b *tb) check(moduleName string) (*TypeChecker, bool) {
	return b.checkWith(moduleName, config.Options{})
}

func (b *tb) checkWith(moduleName string, opts config.Options) (*TypeChecker, bool) {
	b.t.Helper()
	p := b.build()
	c := New(p, opts, nil)
	m, found := b.a.ModuleNamed(moduleName)
	if !found {
		b.t.Fatalf("module %s not found", moduleName)
	}
	ok := c.CheckModule(m)
	return c, ok
}

// expectCheckerError asserts that diagnostics contain the given code.
func expectCheckerError(t *testing.T, c *TypeChecker, code string) {
	t.Helper()
	for _, d := range c.Diagnostics() {
		if string(d.Code) == code {
			return
		}
	}
	var msgs []string
	for _, d := range c.Diagnostics() {
		msgs = append(msgs, d.Error())
	}
	t.Fatalf("expected diagnostic %s, got:\n%v", code, msgs)
}

// expectNoCheckerErrors asserts a clean run.
func expectNoCheckerErrors(t *testing.T, c *TypeChecker) {
	t.Helper()
	for _, d := range c.Diagnostics() {
		t.Errorf("unexpected diagnostic: %s", d.Error())
	}
}
