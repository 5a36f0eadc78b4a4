package checker

import (
	"testing"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/config"
)

func TestSequenceFoldingRespectsPrecedence(t *testing.T) {
	// a + b * c folds as a + (b * c).
	b := newTB(t)
	b.core()
	opMul := b.a.AddDecl(&ast.OperatorDecl{
		Notation:   ast.InfixNotation,
		Name:       "*",
		Precedence: ast.PrecedenceMultiplication,
	})
	seq := b.seq(b.intLit("1"), "+", b.intLit("2"), "*", b.intLit("3"))
	f := b.fn("f", nil, ast.NoExpr, b.blockBody(b.a.AddStmt(&ast.DiscardStmt{Expr: seq})))
	b.module("main", opMul, f)

	p := b.build()
	c := New(p, config.Options{}, nil)
	expr := b.a.Expr(seq).(*ast.SequenceExpr)
	folded := c.foldedSequence(seq, expr)

	if folded.IsLeaf() {
		t.Fatal("sequence was not folded")
	}
	rootOp := b.a.Expr(folded.Operator).(*ast.NameExpr)
	if rootOp.Name.Stem != "+" {
		t.Fatalf("root operator = %s, want +", rootOp.Name.Stem)
	}
	if folded.Right.IsLeaf() {
		t.Fatal("right subtree should be the folded multiplication")
	}
	rightOp := b.a.Expr(folded.Right.Operator).(*ast.NameExpr)
	if rightOp.Name.Stem != "*" {
		t.Errorf("right operator = %s, want *", rightOp.Name.Stem)
	}

	// Folding is memoized.
	if again := c.foldedSequence(seq, expr); again != folded {
		t.Error("folded sequence was not memoized")
	}
}

func TestSequenceFoldingLeftAssociativity(t *testing.T) {
	// a + b + c folds as (a + b) + c.
	b := newTB(t)
	b.core()
	seq := b.seq(b.intLit("1"), "+", b.intLit("2"), "+", b.intLit("3"))
	f := b.fn("f", nil, ast.NoExpr, b.blockBody(b.a.AddStmt(&ast.DiscardStmt{Expr: seq})))
	b.module("main", f)

	p := b.build()
	c := New(p, config.Options{}, nil)
	folded := c.foldedSequence(seq, b.a.Expr(seq).(*ast.SequenceExpr))

	if folded.IsLeaf() || !folded.Right.IsLeaf() {
		t.Fatal("want ((1+2)+3): right child must be a leaf")
	}
	if folded.Left.IsLeaf() {
		t.Fatal("want ((1+2)+3): left child must be the folded 1+2")
	}
}

func TestDuplicateOperatorDeclarationIsDiagnosed(t *testing.T) {
	b := newTB(t)
	b.core()
	dup := b.a.AddDecl(&ast.OperatorDecl{
		Notation:   ast.InfixNotation,
		Name:       "%",
		Precedence: ast.PrecedenceMultiplication,
	})
	dup2 := b.a.AddDecl(&ast.OperatorDecl{
		Notation:   ast.InfixNotation,
		Name:       "%",
		Precedence: ast.PrecedenceAddition,
	})
	b.module("main", dup, dup2)

	c, _ := b.check("main")
	expectCheckerError(t, c, "T010")
}
