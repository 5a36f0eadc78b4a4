package checker

import (
	"github.com/google/uuid"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/types"
)

// TypedProgram is the checker's result, produced by move once checking is
// complete: the input program together with every fact the checker
// established.
type TypedProgram struct {
	BuildID uuid.UUID

	DeclTypes           map[ast.DeclID]types.Type
	ExprTypes           map[ast.ExprID]types.Type
	ReferredDecls       map[ast.ExprID]DeclRef
	ImplicitCaptures    map[ast.DeclID][]ImplicitCapture
	FoldedSequenceExprs map[ast.ExprID]*FoldedSequence
	Relations           *TypeRelations
}

// TypedProgram moves the checker's results out. The checker must not be
// used afterwards.
func (c *TypeChecker) TypedProgram() *TypedProgram {
	out := &TypedProgram{
		BuildID:             c.ast.BuildID,
		DeclTypes:           c.declTypes,
		ExprTypes:           c.exprTypes,
		ReferredDecls:       c.referredDecls,
		ImplicitCaptures:    c.implicitCaptures,
		FoldedSequenceExprs: c.foldedSequenceExprs,
		Relations:           c.relations,
	}
	c.declTypes = nil
	c.exprTypes = nil
	c.referredDecls = nil
	c.implicitCaptures = nil
	c.foldedSequenceExprs = nil
	c.relations = nil
	return out
}
