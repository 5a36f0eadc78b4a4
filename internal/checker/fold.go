package checker

import (
	"github.com/C-BJ/val/internal/ast"
)

// foldedSequence folds an infix chain into a binary tree using operator
// precedence from operator declarations, memoizing the result.
func (c *TypeChecker) foldedSequence(e ast.ExprID, expr *ast.SequenceExpr) *FoldedSequence {
	if f, ok := c.foldedSequenceExprs[e]; ok {
		return f
	}
	useScope := c.program.ScopeOfExpr(e)
	fl := &folder{
		tail: expr.Tail,
		precedenceOf: func(op ast.ExprID) ast.PrecedenceGroup {
			ne, ok := c.ast.Expr(op).(*ast.NameExpr)
			if !ok {
				return ast.PrecedenceComparison
			}
			if decl, found := c.lookupOperator(ne.Name.Stem, ast.InfixNotation, useScope); found {
				return decl.Precedence
			}
			// Undeclared operators fold at a middle precedence; the
			// member lookup on the operand diagnoses them later.
			return ast.PrecedenceComparison
		},
	}
	f := fl.fold(foldLeaf(expr.Head), 0)
	c.foldedSequenceExprs[e] = f
	return f
}

// folder is precedence climbing over the unfolded tail.
type folder struct {
	tail         []ast.SequenceOperand
	pos          int
	precedenceOf func(ast.ExprID) ast.PrecedenceGroup
}

func (f *folder) fold(left *FoldedSequence, minWeight int) *FoldedSequence {
	for f.pos < len(f.tail) {
		group := f.precedenceOf(f.tail[f.pos].Operator)
		if group.Weight() < minWeight {
			break
		}
		op := f.tail[f.pos]
		f.pos++
		right := foldLeaf(op.Operand)

		for f.pos < len(f.tail) {
			next := f.precedenceOf(f.tail[f.pos].Operator)
			switch {
			case next.Weight() > group.Weight():
				right = f.fold(right, group.Weight()+1)
			case next.Weight() == group.Weight() && next.IsRightAssociative():
				right = f.fold(right, group.Weight())
			default:
				goto emit
			}
		}
	emit:
		left = &FoldedSequence{Operator: op.Operator, Left: left, Right: right}
	}
	return left
}
