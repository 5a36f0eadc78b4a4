package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/types"
)

// conformedTraits computes the conformance closure of a type at a scope:
// declared conformances, conformance declarations, and the transitive
// refinements of all of them, in discovery order.
func (c *TypeChecker) conformedTraits(t types.Type, useScope scope.ScopeID) []*types.TraitType {
	var out []*types.TraitType
	seen := make(map[ast.DeclID]bool)
	add := func(tr *types.TraitType) {
		if tr != nil && !seen[tr.Decl] {
			seen[tr.Decl] = true
			out = append(out, tr)
		}
	}
	addClosure := func(tr *types.TraitType) {
		for _, r := range c.refinementClosure(tr, make(map[ast.DeclID]bool)) {
			add(r)
		}
	}

	switch t := types.Canonical(t).(type) {
	case *types.GenericTypeParameterType:
		// The self-parameter of a trait conforms to the trait alone, plus
		// its refinements.
		if owner := c.enclosingTraitOf(t.Decl); owner != nil {
			addClosure(owner)
			return out
		}
		for _, tr := range c.traitsFromAnnotations(t.Decl) {
			addClosure(tr)
		}
		return out

	case *types.SkolemType:
		return c.conformedTraits(t.Origin, useScope)

	case *types.ProductType:
		decl := c.ast.Decl(t.Decl).(*ast.ProductTypeDecl)
		for _, nameExpr := range decl.Conformances {
			if tr := c.traitDenotedBy(nameExpr); tr != nil {
				addClosure(tr)
			}
		}
		for _, e := range c.extensionsExposedTo(t, useScope) {
			if conf, ok := c.ast.Decl(e).(*ast.ConformanceDecl); ok {
				for _, nameExpr := range conf.Conformances {
					if tr := c.traitDenotedBy(nameExpr); tr != nil {
						addClosure(tr)
					}
				}
			}
		}
		return out

	case *types.TraitType:
		addClosure(t)
		return out

	default:
		for _, e := range c.extensionsExposedTo(t, useScope) {
			if conf, ok := c.ast.Decl(e).(*ast.ConformanceDecl); ok {
				for _, nameExpr := range conf.Conformances {
					if tr := c.traitDenotedBy(nameExpr); tr != nil {
						addClosure(tr)
					}
				}
			}
		}
		return out
	}
}

// refinementClosure returns the trait and every trait it transitively
// refines, diagnosing self-refinement cycles.
func (c *TypeChecker) refinementClosure(t *types.TraitType, visiting map[ast.DeclID]bool) []*types.TraitType {
	if visiting[t.Decl] {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT026, c.siteOfDecl(t.Decl),
			fmt.Sprintf("circular trait refinement involving '%s'", t.Name),
		))
		return nil
	}
	visiting[t.Decl] = true
	defer delete(visiting, t.Decl)

	out := []*types.TraitType{t}
	decl, ok := c.ast.Decl(t.Decl).(*ast.TraitDecl)
	if !ok {
		return out
	}
	for _, r := range decl.Refinements {
		refined := c.traitDenotedBy(r)
		if refined == nil {
			continue
		}
		for _, inner := range c.refinementClosure(refined, visiting) {
			dup := false
			for _, have := range out {
				if have.Decl == inner.Decl {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, inner)
			}
		}
	}
	return out
}

// traitDenotedBy realizes a name expression expected to denote a trait.
// Non-trait results are diagnosed.
func (c *TypeChecker) traitDenotedBy(e ast.ExprID) *types.TraitType {
	t := c.realizeTypeExpr(e)
	if isError(t) {
		return nil
	}
	if tr, ok := types.Canonical(t).(*types.TraitType); ok {
		return tr
	}
	c.addDiag(diagnostics.NewError(
		diagnostics.ErrT006, c.siteOfExpr(e),
		fmt.Sprintf("conformance to non-trait type '%s'", t),
	))
	return nil
}

// enclosingTraitOf returns the trait whose self-parameter is the given
// generic parameter, if any.
func (c *TypeChecker) enclosingTraitOf(param ast.DeclID) *types.TraitType {
	s := c.program.ScopeOf(param)
	if s == scope.NoScope || c.program.Kind(s) != scope.TraitScope {
		return nil
	}
	owner := c.program.Introducer(s)
	trait := c.ast.Decl(owner).(*ast.TraitDecl)
	if trait.SelfParameter != param {
		return nil
	}
	return &types.TraitType{Decl: owner, Name: trait.Identifier}
}

// traitsFromAnnotations realizes the trait bounds of a generic parameter.
func (c *TypeChecker) traitsFromAnnotations(param ast.DeclID) []*types.TraitType {
	decl, ok := c.ast.Decl(param).(*ast.GenericParameterDecl)
	if !ok {
		return nil
	}
	var out []*types.TraitType
	for _, a := range decl.Annotations {
		t := c.realizeTypeExpr(a)
		if tr, ok := types.Canonical(t).(*types.TraitType); ok {
			out = append(out, tr)
		}
	}
	return out
}

// lookupOperator finds the operator declaration for (notation, name),
// searching the current module first, then the others in insertion order.
func (c *TypeChecker) lookupOperator(name string, notation ast.OperatorNotation, useScope scope.ScopeID) (*ast.OperatorDecl, bool) {
	current := c.program.ModuleContaining(useScope)

	search := func(m ast.DeclID) *ast.OperatorDecl {
		mod, ok := c.ast.Decl(m).(*ast.ModuleDecl)
		if !ok {
			return nil
		}
		var found *ast.OperatorDecl
		for _, u := range mod.Units {
			unit := c.ast.Decl(u).(*ast.TranslationUnit)
			for _, d := range unit.Decls {
				op, ok := c.ast.Decl(d).(*ast.OperatorDecl)
				if !ok || op.Notation != notation || op.Name != name {
					continue
				}
				if found != nil {
					c.addDiag(diagnostics.NewError(
						diagnostics.ErrT010, op.Site(),
						fmt.Sprintf("duplicate declaration of %s operator '%s'", notation, name),
					).WithNote(diagnostics.NewNote(found.Site(), "previously declared here")))
					continue
				}
				found = op
			}
		}
		return found
	}

	if current != ast.NoDecl {
		if op := search(current); op != nil {
			return op, true
		}
	}
	for _, m := range c.ast.Modules() {
		if m == current {
			continue
		}
		if op := search(m); op != nil {
			return op, true
		}
	}
	return nil, false
}
