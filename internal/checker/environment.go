package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/types"
)

// GenericEnvironment carries a generic declaration's parameters, in
// declaration order, and the constraints of their bounds and
// where-clauses, expressed over unopened parameter terms.
type GenericEnvironment struct {
	Decl        ast.DeclID
	Parameters  []ast.DeclID
	Constraints []Constraint
}

type environmentEntry struct {
	inProgress bool
	env        *GenericEnvironment // nil when construction failed
}

// environment builds and memoizes the generic environment of a
// declaration. It returns nil for non-generic declarations and for
// environments whose construction failed (e.g. circular refinement).
func (c *TypeChecker) environment(d ast.DeclID) *GenericEnvironment {
	if entry, ok := c.environments[d]; ok {
		if entry.inProgress {
			return nil
		}
		return entry.env
	}
	entry := &environmentEntry{inProgress: true}
	c.environments[d] = entry

	var env *GenericEnvironment
	if trait, ok := c.ast.Decl(d).(*ast.TraitDecl); ok {
		env = c.buildTraitEnvironment(d, trait)
	} else {
		env = c.buildEnvironment(d)
	}
	entry.inProgress = false
	entry.env = env
	return env
}

func (c *TypeChecker) buildEnvironment(d ast.DeclID) *GenericEnvironment {
	clause := c.genericClauseOf(d)
	if clause == nil {
		return nil
	}
	env := &GenericEnvironment{Decl: d, Parameters: clause.Parameters}
	for _, p := range clause.Parameters {
		param := c.ast.Decl(p).(*ast.GenericParameterDecl)
		t := c.realize(p)
		m, isType := t.(*types.MetatypeType)
		if !isType {
			continue
		}
		traits := make([]*types.TraitType, 0, len(param.Annotations))
		for _, a := range param.Annotations {
			if tr := c.traitDenotedBy(a); tr != nil {
				traits = append(traits, tr)
			}
		}
		if len(traits) > 0 {
			env.Constraints = append(env.Constraints,
				conformanceConstraint(m.Instance, traits, c.siteOfDecl(p)))
		}
	}
	env.Constraints = append(env.Constraints, c.whereClauseConstraints(clause.WhereClauses)...)
	return env
}

// buildTraitEnvironment is the special trait case: it injects
// 'Self: this-trait' and fails on refinement cycles.
func (c *TypeChecker) buildTraitEnvironment(d ast.DeclID, trait *ast.TraitDecl) *GenericEnvironment {
	self := &types.TraitType{Decl: d, Name: trait.Identifier}
	closure, ok := c.refinementClosureChecked(self)
	if !ok {
		return nil
	}
	env := &GenericEnvironment{Decl: d, Parameters: []ast.DeclID{trait.SelfParameter}}
	selfTerm := &types.GenericTypeParameterType{Decl: trait.SelfParameter, Name: "Self"}
	env.Constraints = append(env.Constraints,
		conformanceConstraint(selfTerm, closure, c.siteOfDecl(d)))
	return env
}

// whereClauseConstraints lowers where-clause expressions to constraints.
func (c *TypeChecker) whereClauseConstraints(clauses []ast.ExprID) []Constraint {
	var out []Constraint
	for _, w := range clauses {
		site := c.siteOfExpr(w)
		switch expr := c.ast.Expr(w).(type) {
		case *ast.EqualityConstraintExpr:
			l := c.realizeTypeExpr(expr.Left)
			r := c.realizeTypeExpr(expr.Right)
			if isError(l) || isError(r) {
				continue
			}
			out = append(out, equalityConstraint(l, r, site))
		case *ast.ConformanceConstraintExpr:
			subject := c.realizeTypeExpr(expr.Subject)
			if isError(subject) {
				continue
			}
			traits := make([]*types.TraitType, 0, len(expr.Traits))
			for _, t := range expr.Traits {
				if tr := c.traitDenotedBy(t); tr != nil {
					traits = append(traits, tr)
				}
			}
			if len(traits) == 0 {
				continue
			}
			out = append(out, conformanceConstraint(subject, traits, site))
		case *ast.ValueConstraintExpr:
			out = append(out, predicateConstraint(expr.Predicate, site))
		default:
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT021, site,
				"invalid constraint expression in where clause",
			))
		}
	}
	return out
}

// refinementClosureChecked computes a trait's refinement closure and
// reports whether it is cycle-free.
func (c *TypeChecker) refinementClosureChecked(t *types.TraitType) ([]*types.TraitType, bool) {
	before := c.diags.ErrorCount()
	closure := c.refinementClosure(t, make(map[ast.DeclID]bool))
	if c.diags.ContainsCode(diagnostics.ErrT026) && c.diags.ErrorCount() > before {
		return nil, false
	}
	return closure, true
}

// checkGenericEnvironment verifies the well-formedness of a declaration's
// environment: parameters realize, bounds denote traits, and where-clause
// constraints relate generic terms.
func (c *TypeChecker) checkGenericEnvironment(d ast.DeclID) bool {
	env := c.environment(d)
	if env == nil {
		if _, isTrait := c.ast.Decl(d).(*ast.TraitDecl); isTrait {
			return false
		}
		return c.genericClauseOf(d) == nil
	}
	ok := true
	for _, p := range env.Parameters {
		if isError(c.realize(p)) {
			ok = false
		}
	}
	for _, con := range env.Constraints {
		switch con.Kind {
		case EqualityConstraint:
			l := types.FlagsOf(con.Left)
			r := types.FlagsOf(con.Right)
			if !l.Has(types.HasGenericTypeParameter) && !r.Has(types.HasGenericTypeParameter) &&
				!l.Has(types.HasGenericValueParameter) && !r.Has(types.HasGenericValueParameter) {
				c.addDiag(diagnostics.NewError(
					diagnostics.ErrT021, con.Site,
					fmt.Sprintf("constraint '%s' does not relate generic parameters", con),
				))
				ok = false
			}
		case ConformanceConstraint:
			if !types.FlagsOf(con.Subject).Has(types.HasGenericTypeParameter) {
				c.addDiag(diagnostics.NewError(
					diagnostics.ErrT021, con.Site,
					fmt.Sprintf("constraint '%s' does not constrain a generic parameter", con),
				))
				ok = false
			}
		}
	}
	return ok
}
