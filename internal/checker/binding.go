package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/types"
)

// checkBinding infers the pattern's shape, relates the initializer to it
// (subtyping under an annotation, equality otherwise), and reifies every
// introduced variable under the solution. While the initializer is being
// inferred, the binding's own variables are hidden from unqualified
// lookup.
func (c *TypeChecker) checkBinding(d ast.DeclID, decl *ast.BindingDecl) {
	c.bindingsUnderChecking[d] = true
	defer delete(c.bindingsUnderChecking, d)

	useScope := c.program.ScopeOf(d)
	site := c.siteOfDecl(d)
	run := c.newInference(useScope)

	vars := make(map[ast.DeclID]types.Type)
	varOrder := c.variablesIntroducedBy(d)
	shape, annotated := c.patternShape(run, decl.Pattern, vars)

	if decl.Initializer != ast.NoExpr {
		it := run.infer(decl.Initializer, shape)
		if annotated {
			run.add(subtypingConstraint(it, shape, site))
		} else {
			run.add(equalityConstraint(it, shape, site))
		}
	} else if !annotated {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT025, site,
			"binding requires a type annotation or an initializer",
		))
		c.recordBindingFailure(d, varOrder)
		return
	}

	sol, ok := run.solveAndCommit(site)
	if !ok {
		c.recordBindingFailure(d, varOrder)
		return
	}

	final := sol.reify(shape)
	if types.FlagsOf(final).Has(types.HasVariable) {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT022, site,
			"not enough context to infer the type of this binding",
		))
		c.recordBindingFailure(d, varOrder)
		return
	}
	c.declTypes[d] = final

	for _, v := range varOrder {
		t, tracked := vars[v]
		if !tracked {
			c.declTypes[v] = types.Error
			c.declRequests[v] = TypeRealizationCompleted
			continue
		}
		vt := sol.reify(t)
		if types.FlagsOf(vt).Has(types.HasVariable) {
			name, _ := c.ast.DeclName(v)
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT022, c.siteOfDecl(v),
				fmt.Sprintf("not enough context to infer the type of '%s'", name.Stem),
			))
			vt = types.Error
		}
		c.declTypes[v] = vt
		c.declRequests[v] = TypeRealizationCompleted
	}
}

func (c *TypeChecker) recordBindingFailure(d ast.DeclID, varOrder []ast.DeclID) {
	c.declTypes[d] = types.Error
	for _, v := range varOrder {
		c.declTypes[v] = types.Error
		c.declRequests[v] = TypeRealizationCompleted
	}
}

// patternShape computes the shape type of a pattern, recording a
// tentative type for each introduced variable. The second result reports
// whether the pattern carries a type annotation.
func (c *TypeChecker) patternShape(run *inferenceRun, id ast.PatternID, vars map[ast.DeclID]types.Type) (types.Type, bool) {
	switch p := c.ast.Pattern(id).(type) {
	case *ast.BindingPattern:
		sub, subAnnotated := c.patternShape(run, p.Subpattern, vars)
		if p.Annotation == ast.NoExpr {
			return sub, subAnnotated
		}
		annotation := c.realizeTypeExpr(p.Annotation)
		if isError(annotation) {
			return types.Error, true
		}
		run.add(equalityConstraint(sub, annotation, c.siteOfExpr(p.Annotation)))
		return annotation, true

	case *ast.NamePattern:
		t := types.NewVariable()
		vars[p.Variable] = t
		return t, false

	case *ast.TuplePattern:
		elems := make([]types.TupleElement, 0, len(p.Elements))
		for _, e := range p.Elements {
			et, _ := c.patternShape(run, e.Pattern, vars)
			elems = append(elems, types.TupleElement{Label: e.Label, Type: et})
		}
		return &types.TupleType{Elements: elems}, false

	case *ast.WildcardPattern:
		return types.NewVariable(), false

	case *ast.ExprPattern:
		return run.infer(p.Expr, nil), false

	default:
		return types.Error, false
	}
}
