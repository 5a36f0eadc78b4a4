package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/source"
	"github.com/C-BJ/val/internal/types"
)

// Candidate is one possible referent of a name component, with its
// instantiated type and the constraints instantiation produced.
type Candidate struct {
	Reference   DeclRef
	Type        types.Type
	Constraints []Constraint
}

// resolvedComponent is a name component whose candidate set is known.
type resolvedComponent struct {
	expr       ast.ExprID
	candidates []Candidate
}

// nameResolutionResult splits a dotted name into a resolved prefix and an
// unresolved suffix left for the constraint solver.
type nameResolutionResult struct {
	resolved   []resolvedComponent
	unresolved []ast.ExprID // outermost first
	failed     bool
}

func isTypeVariable(t types.Type) bool {
	_, ok := t.(*types.TypeVariable)
	return ok
}

// resolveName walks a dotted name from the outermost domain inward,
// stopping when a component is ambiguous or has a variable type.
func (c *TypeChecker) resolveName(e ast.ExprID) nameResolutionResult {
	var chain []ast.ExprID
	for cur := e; cur != ast.NoExpr; {
		ne, ok := c.ast.Expr(cur).(*ast.NameExpr)
		if !ok {
			break
		}
		chain = append([]ast.ExprID{cur}, chain...)
		cur = ne.Domain
	}

	var result nameResolutionResult
	var parentType types.Type

	for i, comp := range chain {
		ne := c.ast.Expr(comp).(*ast.NameExpr)
		cands := c.candidatesFor(comp, ne, parentType)
		if len(cands) == 0 {
			result.failed = true
			return result
		}
		result.resolved = append(result.resolved, resolvedComponent{expr: comp, candidates: cands})

		if len(cands) >= 2 || isTypeVariable(cands[0].Type) {
			result.unresolved = chain[i+1:]
			return result
		}

		// Thread the next parent type: nominal type declarations expose
		// their instance type, other candidates their instantiated shape.
		cand := cands[0]
		if instance, ok := c.nominalInstanceOf(cand); ok {
			parentType = instance
		} else {
			parentType = cand.Type
		}
	}
	return result
}

// nominalInstanceOf returns the instance type when the candidate directly
// names a nominal type.
func (c *TypeChecker) nominalInstanceOf(cand Candidate) (types.Type, bool) {
	if cand.Reference.Kind == BuiltinTypeRef {
		return cand.Reference.BuiltinType, true
	}
	if cand.Reference.Kind != DirectRef && cand.Reference.Kind != MemberRef {
		return nil, false
	}
	switch c.ast.Decl(cand.Reference.Decl).Kind() {
	case ast.KindProductTypeDecl, ast.KindTraitDecl, ast.KindTypeAliasDecl,
		ast.KindAssociatedTypeDecl, ast.KindGenericParameterDecl, ast.KindNamespaceDecl:
		if m, ok := cand.Type.(*types.MetatypeType); ok {
			return m.Instance, true
		}
	}
	return nil, false
}

// candidatesFor builds the candidate set of one name component, realizing
// each match, applying static arguments, and instantiating at the use
// site.
func (c *TypeChecker) candidatesFor(comp ast.ExprID, ne *ast.NameExpr, parentType types.Type) []Candidate {
	useScope := c.program.ScopeOfExpr(comp)
	site := c.siteOfExpr(comp)

	// Built-in entities live in a parallel namespace keyed by the Builtin
	// module as parent.
	if parentType != nil {
		if b, ok := types.Canonical(parentType).(types.BuiltinType); ok && b == types.BuiltinModule {
			return c.builtinCandidates(comp, ne)
		}
	}

	var matches []ast.DeclID
	if parentType == nil {
		matches = c.lookupUnqualified(ne.Name.Stem, useScope)
		if len(matches) == 0 {
			// Magic type names resolve only when nothing else matches.
			t := c.realizeMagicTypeName(comp, ne, useScope)
			if isError(t) {
				return nil
			}
			ref := c.referredDecls[comp]
			if ref.Kind != BuiltinTypeRef {
				ref = DeclRef{Kind: BuiltinTypeRef, BuiltinName: ne.Name.Stem, BuiltinType: t}
				c.referredDecls[comp] = ref
			}
			return []Candidate{{Reference: ref, Type: types.MetatypeOf(t)}}
		}
	} else {
		matches = c.lookupMember(ne.Name.Stem, parentType, useScope)
		if len(matches) == 0 {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT001, site,
				fmt.Sprintf("type '%s' has no member '%s'", parentType, ne.Name.Stem),
			))
			return nil
		}
	}

	var out []Candidate
	for _, d := range matches {
		t := c.realize(d)
		if isError(t) {
			continue
		}
		// Erase the outer convention wrapping of parameters and captures.
		if pt, ok := t.(*types.ParameterType); ok {
			t = pt.Bare
		}
		if len(ne.StaticArguments) > 0 {
			specialized, ok := c.applyCandidateStaticArguments(comp, d, t, ne.StaticArguments)
			if !ok {
				continue
			}
			t = specialized
		}
		shape, cons := c.instantiate(t, d, useScope, site)

		var ref DeclRef
		if c.program.IsMember(d) && (parentType != nil || c.program.IsMemberContext(useScope)) {
			ref = memberRef(d)
		} else {
			ref = directRef(d)
		}
		out = append(out, Candidate{Reference: ref, Type: shape, Constraints: cons})
	}
	if len(out) == 0 && len(matches) > 0 {
		// Realization of every match failed; silence downstream errors.
		out = append(out, Candidate{Reference: directRef(matches[0]), Type: types.Error})
	}
	return out
}

// applyCandidateStaticArguments specializes a candidate's type under
// explicit static arguments.
func (c *TypeChecker) applyCandidateStaticArguments(comp ast.ExprID, d ast.DeclID, t types.Type, args []ast.ExprID) (types.Type, bool) {
	// Types get a bound-generic shape.
	if m, ok := t.(*types.MetatypeType); ok {
		bound := c.applyStaticArguments(comp, d, m.Instance, args)
		if isError(bound) {
			return nil, false
		}
		return types.MetatypeOf(bound), true
	}

	clause := c.genericClauseOf(d)
	if clause == nil || len(clause.Parameters) != len(args) {
		want := 0
		if clause != nil {
			want = len(clause.Parameters)
		}
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT014, c.siteOfExpr(comp),
			fmt.Sprintf("'%s' expects %d generic argument(s), found %d", c.declNameString(d), want, len(args)),
		))
		return nil, false
	}
	subs := make(map[ast.DeclID]types.Type)
	for i, a := range args {
		at := c.realizeTypeExpr(a)
		if isError(at) {
			return nil, false
		}
		subs[clause.Parameters[i]] = at
	}
	return types.Specialized(t, subs, c.resolveAssociatedType), true
}

// instantiate opens a declaration's type at a use site: parameters whose
// introducing scope contains the use site become skolems (rigid for the
// caller); all others become fresh variables. The returned constraints
// carry the parameters' bounds and where-clauses under the same
// substitution.
func (c *TypeChecker) instantiate(t types.Type, d ast.DeclID, useScope scope.ScopeID, site source.Site) (types.Type, []Constraint) {
	subs := make(map[ast.DeclID]types.Type)
	paramOrder := make([]ast.DeclID, 0, 4)

	open := func(decl ast.DeclID, term types.Type) types.Type {
		if r, ok := subs[decl]; ok {
			return r
		}
		var repl types.Type
		if c.isRigidAt(decl, useScope) {
			repl = c.skolemOf(decl, term)
		} else {
			repl = types.NewVariable()
		}
		subs[decl] = repl
		paramOrder = append(paramOrder, decl)
		return repl
	}
	shape := types.Transform(t, func(u types.Type) (types.TransformAction, types.Type) {
		switch param := u.(type) {
		case *types.GenericTypeParameterType:
			return types.StepOver, open(param.Decl, param)
		case *types.GenericValueParameterType:
			return types.StepOver, open(param.Decl, param)
		default:
			return types.StepInto, u
		}
	})

	var cons []Constraint
	for _, p := range paramOrder {
		repl := subs[p]
		if _, isSkolem := repl.(*types.SkolemType); isSkolem {
			// Rigid parameters keep their bounds implicitly.
			continue
		}
		traits := c.traitsFromAnnotations(p)
		if len(traits) > 0 {
			cons = append(cons, conformanceConstraint(repl, traits, site))
		}
	}
	// Where-clause constraints of the environments owning the opened
	// parameters are added verbatim, under the same substitution.
	seenEnvs := make(map[ast.DeclID]bool)
	for _, p := range paramOrder {
		owner := c.program.Introducer(c.program.ScopeOf(p))
		if owner == ast.NoDecl || seenEnvs[owner] {
			continue
		}
		seenEnvs[owner] = true
		if env := c.environment(owner); env != nil {
			for _, con := range env.Constraints {
				cons = append(cons, specializeConstraint(con, subs, c.resolveAssociatedType, site))
			}
		}
	}
	return shape, cons
}

// skolemOf returns the stable rigid stand-in of a generic parameter.
func (c *TypeChecker) skolemOf(decl ast.DeclID, term types.Type) *types.SkolemType {
	if s, ok := c.skolems[decl]; ok {
		return s
	}
	s := types.NewSkolem(term)
	c.skolems[decl] = s
	return s
}

// isRigidAt reports whether the use site lies inside the scope that
// introduced the generic parameter.
func (c *TypeChecker) isRigidAt(param ast.DeclID, useScope scope.ScopeID) bool {
	owner := c.program.Introducer(c.program.ScopeOf(param))
	if owner == ast.NoDecl {
		return false
	}
	return c.program.IsContained(useScope, owner)
}

// specializeConstraint substitutes generic parameters inside a constraint.
func specializeConstraint(con Constraint, subs map[ast.DeclID]types.Type, resolve types.AssociatedTypeResolver, site source.Site) Constraint {
	out := con
	out.Site = site
	if con.Left != nil {
		out.Left = types.Specialized(con.Left, subs, resolve)
	}
	if con.Right != nil {
		out.Right = types.Specialized(con.Right, subs, resolve)
	}
	if con.Subject != nil {
		out.Subject = types.Specialized(con.Subject, subs, resolve)
	}
	return out
}

// resolveAssociatedType projects an associated type out of a concrete
// domain by member lookup, realizing the member's type.
func (c *TypeChecker) resolveAssociatedType(domain types.Type, d ast.DeclID, name string) types.Type {
	owner := declOf(types.Canonical(domain))
	var s scope.ScopeID = scope.NoScope
	if owner != ast.NoDecl {
		s = c.program.ScopeOf(owner)
	}
	if s == scope.NoScope {
		if mods := c.ast.Modules(); len(mods) > 0 {
			s = c.program.ModuleScopeOf(mods[0])
		}
	}
	if s == scope.NoScope {
		return nil
	}
	matches := c.lookupMember(name, domain, s)
	if len(matches) != 1 {
		return nil
	}
	t := c.realize(matches[0])
	if m, ok := t.(*types.MetatypeType); ok {
		return m.Instance
	}
	return nil
}

// builtinFunctionTypes is the parallel namespace of built-in functions,
// available when the Builtin module is visible.
var builtinFunctionTypes = map[string]func() types.Type{
	"add_i64": func() types.Type { return builtinBinary(types.BuiltinI64, types.BuiltinI64) },
	"sub_i64": func() types.Type { return builtinBinary(types.BuiltinI64, types.BuiltinI64) },
	"mul_i64": func() types.Type { return builtinBinary(types.BuiltinI64, types.BuiltinI64) },
	"eq_i64":  func() types.Type { return builtinBinary(types.BuiltinI64, types.BuiltinI1) },
	"lt_i64":  func() types.Type { return builtinBinary(types.BuiltinI64, types.BuiltinI1) },
	"add_f64": func() types.Type { return builtinBinary(types.BuiltinDouble, types.BuiltinDouble) },
	"zeroinitializer_i64": func() types.Type {
		return &types.LambdaType{Environment: types.Void, Output: types.BuiltinI64}
	},
}

func builtinBinary(operand, result types.BuiltinType) types.Type {
	param := &types.ParameterType{Convention: ast.LetEffect, Bare: operand}
	return &types.LambdaType{
		Environment: types.Void,
		Inputs: []types.CallableParameter{
			{Type: param},
			{Type: param},
		},
		Output: result,
	}
}

func (c *TypeChecker) builtinCandidates(comp ast.ExprID, ne *ast.NameExpr) []Candidate {
	if !c.options.IsBuiltinModuleVisible {
		return nil
	}
	if t, ok := builtinTypeNames[ne.Name.Stem]; ok {
		ref := DeclRef{Kind: BuiltinTypeRef, BuiltinName: ne.Name.Stem, BuiltinType: t}
		return []Candidate{{Reference: ref, Type: types.MetatypeOf(t)}}
	}
	if mk, ok := builtinFunctionTypes[ne.Name.Stem]; ok {
		t := mk()
		ref := DeclRef{Kind: BuiltinFunctionRef, BuiltinName: ne.Name.Stem, BuiltinType: t}
		return []Candidate{{Reference: ref, Type: t}}
	}
	c.addDiag(diagnostics.NewError(
		diagnostics.ErrT001, c.siteOfExpr(comp),
		fmt.Sprintf("the Builtin module has no member '%s'", ne.Name.Stem),
	))
	return nil
}
