package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/types"
)

// realizeLambda realizes the underlying declaration of a lambda literal
// eagerly, taking conventions and types the context supplies for
// unannotated parameters.
func (c *TypeChecker) realizeLambda(d ast.DeclID, decl *ast.FunctionDecl, expected *types.LambdaType) *types.LambdaType {
	if t, ok := c.declTypes[d]; ok {
		if lt, ok := t.(*types.LambdaType); ok {
			return lt
		}
		return nil
	}

	inputs := make([]types.CallableParameter, 0, len(decl.Parameters))
	ok := true
	for i, p := range decl.Parameters {
		pd := c.ast.Decl(p).(*ast.ParameterDecl)
		if expected != nil && expected.Inputs[i].Label != pd.Label {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT015, c.siteOfDecl(p),
				fmt.Sprintf("parameter label '%s' does not match expected label '%s'", pd.Label, expected.Inputs[i].Label),
			))
			ok = false
			continue
		}
		var pt types.Type
		switch {
		case pd.Annotation != ast.NoExpr:
			pt = c.realizeParameter(p, pd, true)
		case expected != nil:
			// The caller supplies the convention and the bare type.
			if ep, isParam := expected.Inputs[i].Type.(*types.ParameterType); isParam {
				pt = ep
			} else {
				pt = &types.ParameterType{Convention: ast.LetEffect, Bare: expected.Inputs[i].Type}
			}
		default:
			pt = &types.ParameterType{Convention: ast.LetEffect, Bare: types.NewVariable()}
		}
		c.declTypes[p] = pt
		if c.declRequests[p] < TypeRealizationCompleted {
			c.declRequests[p] = TypeRealizationCompleted
		}
		if isError(pt) {
			ok = false
		}
		inputs = append(inputs, types.CallableParameter{Label: pd.Label, Type: pt})
	}

	var output types.Type
	switch {
	case decl.Output != ast.NoExpr:
		output = c.realizeTypeExpr(decl.Output)
	case expected != nil:
		output = expected.Output
	default:
		output = types.NewVariable()
	}

	elems, envOK := c.environmentElements(d, decl.ReceiverEffect, decl.IsStatic, decl.ExplicitCaptures)
	if !ok || !envOK || isError(output) {
		c.declTypes[d] = types.Error
		c.declRequests[d] = TypeRealizationCompleted
		return nil
	}
	lt := &types.LambdaType{
		ReceiverEffect: decl.ReceiverEffect,
		Environment:    &types.TupleType{Elements: elems},
		Inputs:         inputs,
		Output:         output,
	}
	c.declTypes[d] = lt
	c.declRequests[d] = TypeRealizationCompleted
	return lt
}
