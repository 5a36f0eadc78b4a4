package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/source"
	"github.com/C-BJ/val/internal/types"
)

// solution records the outcome of a solver run: type-variable assignments,
// name-binding decisions, accumulated penalties, and the diagnostics of
// the chosen branch.
type solution struct {
	assignments map[*types.TypeVariable]types.Type
	bindings    map[ast.ExprID]DeclRef
	penalties   int
	diags       []*diagnostics.DiagnosticError
}

func newSolution() *solution {
	return &solution{
		assignments: make(map[*types.TypeVariable]types.Type),
		bindings:    make(map[ast.ExprID]DeclRef),
	}
}

func (s *solution) errorCount() int {
	n := 0
	for _, d := range s.diags {
		if d.Severity == diagnostics.SeverityError {
			n++
		}
	}
	return n
}

// walk resolves a type through the current assignments without descending
// into compounds.
func (s *solution) walk(t types.Type) types.Type {
	for {
		v, ok := t.(*types.TypeVariable)
		if !ok {
			return t
		}
		a, bound := s.assignments[v]
		if !bound {
			return t
		}
		t = a
	}
}

// reify substitutes assignments throughout a term.
func (s *solution) reify(t types.Type) types.Type {
	return types.Transform(t, func(u types.Type) (types.TransformAction, types.Type) {
		if v, ok := u.(*types.TypeVariable); ok {
			if a, bound := s.assignments[v]; bound {
				return types.StepOver, s.reify(a)
			}
			return types.StepOver, u
		}
		return types.StepInto, u
	})
}

func (s *solution) clone() *solution {
	out := newSolution()
	for k, v := range s.assignments {
		out.assignments[k] = v
	}
	for k, v := range s.bindings {
		out.bindings[k] = v
	}
	out.penalties = s.penalties
	out.diags = append([]*diagnostics.DiagnosticError(nil), s.diags...)
	return out
}

// better orders solutions lexicographically by (error count, penalties).
// Earlier discovery wins ties.
func better(a, b *solution) bool {
	ae, be := a.errorCount(), b.errorCount()
	if ae != be {
		return ae < be
	}
	return a.penalties < b.penalties
}

type solver struct {
	c        *TypeChecker
	useScope scope.ScopeID
	site     source.Site

	queue     []Constraint
	postponed []Constraint
	branches  []Constraint
	sol       *solution
	progress  bool
	tracing   bool
}

// solve searches for a minimum-penalty satisfying assignment for the
// constraint set.
func (c *TypeChecker) solve(cons []Constraint, useScope scope.ScopeID, site source.Site) *solution {
	s := &solver{
		c:        c,
		useScope: useScope,
		site:     site,
		queue:    append([]Constraint(nil), cons...),
		sol:      newSolution(),
		tracing:  c.shouldTrace(site),
	}
	if s.tracing {
		for _, con := range cons {
			c.trace(site, "constraint", "kind", con.Kind.String(), "constraint", con.String())
		}
	}
	return s.run()
}

func (s *solver) clone() *solver {
	return &solver{
		c:         s.c,
		useScope:  s.useScope,
		site:      s.site,
		queue:     append([]Constraint(nil), s.queue...),
		postponed: append([]Constraint(nil), s.postponed...),
		branches:  append([]Constraint(nil), s.branches...),
		sol:       s.sol.clone(),
		tracing:   s.tracing,
	}
}

func (s *solver) push(con Constraint) {
	s.queue = append(s.queue, con)
}

func (s *solver) postpone(con Constraint) {
	s.postponed = append(s.postponed, con)
}

func (s *solver) fail(site source.Site, code diagnostics.ErrorCode, format string, args ...any) {
	if !site.IsKnown() {
		site = s.site
	}
	s.sol.diags = append(s.sol.diags, diagnostics.NewError(code, site, fmt.Sprintf(format, args...)))
}

func (s *solver) run() *solution {
	for {
		s.progress = false
		for len(s.queue) > 0 {
			con := s.queue[0]
			s.queue = s.queue[1:]
			s.step(con)
		}
		if len(s.postponed) > 0 && s.progress {
			s.queue, s.postponed = s.postponed, nil
			continue
		}

		if len(s.branches) > 0 {
			return s.explore()
		}

		if len(s.postponed) > 0 {
			if s.resolveStall() {
				s.queue, s.postponed = append(s.queue, s.postponed...), nil
				continue
			}
			for _, con := range s.postponed {
				s.diagnoseStale(con)
			}
			s.postponed = nil
		}
		return s.sol
	}
}

// explore branches on the first disjunction, searching each alternative
// and keeping the best solution.
func (s *solver) explore() *solution {
	br := s.branches[0]
	rest := s.branches[1:]

	var best *solution
	try := func(apply func(child *solver)) {
		child := s.clone()
		child.branches = append([]Constraint(nil), rest...)
		child.queue = append(child.queue, child.postponed...)
		child.postponed = nil
		apply(child)
		candidate := child.run()
		if best == nil || better(candidate, best) {
			best = candidate
		}
	}

	switch br.Kind {
	case OverloadConstraint:
		for i := range br.Choices {
			choice := br.Choices[i]
			try(func(child *solver) {
				child.sol.penalties += choice.Penalty
				if br.NameExpr != ast.NoExpr {
					child.sol.bindings[br.NameExpr] = choice.Reference
				}
				if br.Left != nil {
					child.push(equalityConstraint(br.Left, choice.Type, br.Site))
				}
				for _, con := range choice.Constraints {
					child.push(con)
				}
			})
		}
	case DisjunctionConstraint:
		for i := range br.Branches {
			alt := br.Branches[i]
			try(func(child *solver) {
				child.sol.penalties += alt.Penalty
				for _, con := range alt.Constraints {
					child.push(con)
				}
			})
		}
	}
	if best == nil {
		best = s.sol
	}
	return best
}

// resolveStall makes progress when no constraint is individually
// solvable: literals take their defaults, then pending subtyping
// obligations collapse to equalities.
func (s *solver) resolveStall() bool {
	progressed := false
	for _, con := range s.postponed {
		if con.Kind == LiteralConstraint {
			subject := s.sol.walk(con.Subject)
			if isTypeVariable(subject) {
				s.unify(subject, con.DefaultType, con.Site)
				progressed = true
			}
		}
	}
	if progressed {
		return true
	}
	for _, con := range s.postponed {
		if con.Kind == SubtypingConstraint || con.Kind == ParameterConstraint {
			l := s.sol.walk(con.Left)
			r := s.sol.walk(con.Right)
			if isTypeVariable(l) || isTypeVariable(r) {
				s.unify(l, r, con.Site)
				progressed = true
			}
		}
	}
	return progressed
}

func (s *solver) diagnoseStale(con Constraint) {
	switch con.Kind {
	case PredicateConstraint:
		return
	}
	s.fail(con.Site, diagnostics.ErrT022, "not enough context to solve '%s'", con)
}

func (s *solver) step(con Constraint) {
	if s.tracing {
		s.c.trace(s.site, "solving", "kind", con.Kind.String(), "constraint", con.String())
	}
	switch con.Kind {
	case EqualityConstraint:
		s.unify(con.Left, con.Right, con.Site)

	case SubtypingConstraint:
		s.subtype(con)

	case ParameterConstraint:
		param := s.sol.walk(con.Right)
		switch p := param.(type) {
		case *types.ParameterType:
			s.push(subtypingConstraint(con.Left, p.Bare, con.Site))
		case *types.TypeVariable:
			s.postpone(con)
		default:
			s.unify(con.Left, param, con.Site)
		}

	case ConformanceConstraint:
		s.conform(con)

	case FunctionCallConstraint:
		s.discharge(con)

	case MemberConstraint:
		s.member(con)

	case OverloadConstraint, DisjunctionConstraint:
		s.branches = append(s.branches, con)

	case LiteralConstraint:
		subject := s.sol.walk(con.Subject)
		if isTypeVariable(subject) {
			s.postpone(con)
			return
		}
		if isError(subject) || types.Equal(subject, con.DefaultType) {
			return
		}
		if con.LiteralTrait != nil {
			s.push(conformanceConstraint(subject, []*types.TraitType{con.LiteralTrait}, con.Site))
		} else {
			s.unify(subject, con.DefaultType, con.Site)
		}

	case PredicateConstraint:
		// Symbolic; reserved for later evaluation.
	}
}

// subtype simplifies a subtyping obligation.
func (s *solver) subtype(con Constraint) {
	a := s.sol.walk(con.Left)
	b := s.sol.walk(con.Right)
	if isError(a) || isError(b) {
		return
	}
	if isTypeVariable(a) || isTypeVariable(b) {
		s.postpone(con)
		return
	}
	if types.Equal(a, b) {
		return
	}
	if types.IsNever(a) {
		return
	}
	if _, isAny := types.Canonical(b).(*types.AnyType); isAny {
		return
	}
	if sum, ok := types.Canonical(b).(*types.SumType); ok {
		for _, elem := range sum.Elements {
			if types.Equal(a, elem) {
				return
			}
		}
	}
	s.unify(a, b, con.Site)
}

// conform checks a conformance obligation against the conformance
// closure.
func (s *solver) conform(con Constraint) {
	subject := s.sol.walk(con.Subject)
	if isError(subject) {
		return
	}
	if isTypeVariable(subject) || types.FlagsOf(subject).Has(types.HasVariable) {
		s.postpone(con)
		return
	}
	conformed := s.c.conformedTraits(subject, s.useScope)
	for _, want := range con.Traits {
		found := false
		for _, have := range conformed {
			if have.Decl == want.Decl {
				found = true
				break
			}
		}
		if !found {
			s.fail(con.Site, diagnostics.ErrT028,
				"type '%s' does not conform to trait '%s'", subject, want.Name)
		}
	}
}

// discharge resolves a function-call obligation once the callee's shape is
// known.
func (s *solver) discharge(con Constraint) {
	callee := s.sol.walk(con.Callee)
	if isError(callee) {
		return
	}
	if isTypeVariable(callee) {
		s.postpone(con)
		return
	}

	var inputs []types.CallableParameter
	var output types.Type
	switch t := types.Canonical(callee).(type) {
	case *types.LambdaType:
		inputs, output = t.Inputs, t.Output
	case *types.MethodType:
		inputs, output = t.Inputs, t.Output
	case *types.SubscriptType:
		inputs, output = t.Inputs, t.Output
	default:
		s.fail(con.Site, diagnostics.ErrT013, "cannot call value of non-callable type '%s'", callee)
		return
	}

	if len(inputs) != len(con.Inputs) {
		s.fail(con.Site, diagnostics.ErrT015,
			"expected %d argument(s), found %d", len(inputs), len(con.Inputs))
		return
	}
	for i := range inputs {
		if inputs[i].Label != con.Inputs[i].Label {
			s.fail(con.Site, diagnostics.ErrT015,
				"mismatched argument labels: expected %s", labelList(inputs))
			return
		}
		s.push(parameterConstraint(con.Inputs[i].Type, inputs[i].Type, con.Site))
	}
	s.unify(con.Output, output, con.Site)
}

// member resolves a member obligation by lookup once the base is known.
func (s *solver) member(con Constraint) {
	base := s.sol.walk(con.Left)
	if isError(base) {
		return
	}
	if isTypeVariable(base) || types.FlagsOf(base).Has(types.HasVariable) {
		s.postpone(con)
		return
	}

	matches := s.c.lookupMember(con.MemberName, base, s.useScope)
	if len(matches) == 0 {
		s.fail(con.Site, diagnostics.ErrT001,
			"type '%s' has no member '%s'", base, con.MemberName)
		return
	}

	var choices []OverloadChoice
	for _, d := range matches {
		t := s.c.realize(d)
		if isError(t) {
			continue
		}
		if pt, ok := t.(*types.ParameterType); ok {
			t = pt.Bare
		}
		shape, cons := s.c.instantiate(t, d, s.useScope, con.Site)
		ref := directRef(d)
		if s.c.program.IsMember(d) {
			ref = memberRef(d)
		}
		choices = append(choices, OverloadChoice{Reference: ref, Type: shape, Constraints: cons})
	}
	if len(choices) == 0 {
		// Every match failed to realize; errors were already reported.
		return
	}
	if len(choices) == 1 {
		choice := choices[0]
		if con.MemberExpr != ast.NoExpr {
			s.sol.bindings[con.MemberExpr] = choice.Reference
		}
		for _, extra := range choice.Constraints {
			s.push(extra)
		}
		s.unify(con.Right, choice.Type, con.Site)
		return
	}
	over := overloadConstraint(con.MemberExpr, choices, con.Site)
	over.Left = con.Right
	s.branches = append(s.branches, over)
}

// unify makes two terms equal under the current assignments, with an
// occurs check. Conflicts are diagnosed unless either side carries Error.
func (s *solver) unify(a, b types.Type, site source.Site) bool {
	a = s.sol.walk(a)
	b = s.sol.walk(b)

	if va, ok := a.(*types.TypeVariable); ok {
		if vb, ok := b.(*types.TypeVariable); ok && va == vb {
			return true
		}
		if occurs(va, b, s.sol) {
			s.fail(site, diagnostics.ErrT027, "cannot construct the infinite type '%s = %s'", a, b)
			return false
		}
		s.sol.assignments[va] = b
		s.progress = true
		return true
	}
	if _, ok := b.(*types.TypeVariable); ok {
		return s.unify(b, a, site)
	}
	if isError(a) || isError(b) {
		return true
	}

	ca := types.Canonical(s.sol.reify(a))
	cb := types.Canonical(s.sol.reify(b))

	switch x := ca.(type) {
	case *types.LambdaType:
		y, ok := cb.(*types.LambdaType)
		if !ok || len(x.Inputs) != len(y.Inputs) {
			return s.conflict(ca, cb, site)
		}
		for i := range x.Inputs {
			if x.Inputs[i].Label != y.Inputs[i].Label {
				return s.conflict(ca, cb, site)
			}
			if !s.unify(x.Inputs[i].Type, y.Inputs[i].Type, site) {
				return false
			}
		}
		return s.unify(x.Environment, y.Environment, site) && s.unify(x.Output, y.Output, site)

	case *types.MethodType:
		y, ok := cb.(*types.MethodType)
		if !ok || len(x.Inputs) != len(y.Inputs) || x.Capabilities != y.Capabilities {
			return s.conflict(ca, cb, site)
		}
		for i := range x.Inputs {
			if x.Inputs[i].Label != y.Inputs[i].Label || !s.unify(x.Inputs[i].Type, y.Inputs[i].Type, site) {
				return s.conflict(ca, cb, site)
			}
		}
		return s.unify(x.Receiver, y.Receiver, site) && s.unify(x.Output, y.Output, site)

	case *types.TupleType:
		y, ok := cb.(*types.TupleType)
		if !ok || len(x.Elements) != len(y.Elements) {
			return s.conflict(ca, cb, site)
		}
		for i := range x.Elements {
			if x.Elements[i].Label != y.Elements[i].Label {
				return s.conflict(ca, cb, site)
			}
			if !s.unify(x.Elements[i].Type, y.Elements[i].Type, site) {
				return false
			}
		}
		return true

	case *types.ParameterType:
		y, ok := cb.(*types.ParameterType)
		if !ok || x.Convention != y.Convention {
			return s.conflict(ca, cb, site)
		}
		return s.unify(x.Bare, y.Bare, site)

	case *types.RemoteType:
		y, ok := cb.(*types.RemoteType)
		if !ok || x.Convention != y.Convention {
			return s.conflict(ca, cb, site)
		}
		return s.unify(x.Bare, y.Bare, site)

	case *types.BoundGenericType:
		y, ok := cb.(*types.BoundGenericType)
		if !ok || len(x.Arguments) != len(y.Arguments) || !s.unify(x.Base, y.Base, site) {
			return s.conflict(ca, cb, site)
		}
		for i := range x.Arguments {
			ax, ay := x.Arguments[i], y.Arguments[i]
			if (ax.Value == nil) != (ay.Value == nil) {
				return s.conflict(ca, cb, site)
			}
			if ax.Value == nil && !s.unify(ax.Type, ay.Type, site) {
				return false
			}
		}
		return true

	case *types.MetatypeType:
		y, ok := cb.(*types.MetatypeType)
		if !ok {
			return s.conflict(ca, cb, site)
		}
		return s.unify(x.Instance, y.Instance, site)

	case *types.SumType:
		y, ok := cb.(*types.SumType)
		if !ok || len(x.Elements) != len(y.Elements) {
			return s.conflict(ca, cb, site)
		}
		for i := range x.Elements {
			if !s.unify(x.Elements[i], y.Elements[i], site) {
				return false
			}
		}
		return true

	default:
		if types.Equal(ca, cb) {
			return true
		}
		// A skolem is compatible with the parameter it stands for: inside
		// the declaring scope both denote the same rigid type.
		if skolemMatches(ca, cb) || skolemMatches(cb, ca) {
			return true
		}
		return s.conflict(ca, cb, site)
	}
}

func skolemMatches(a, b types.Type) bool {
	sk, ok := a.(*types.SkolemType)
	if !ok {
		return false
	}
	switch origin := sk.Origin.(type) {
	case *types.GenericTypeParameterType:
		if p, ok := b.(*types.GenericTypeParameterType); ok {
			return p.Decl == origin.Decl
		}
	case *types.GenericValueParameterType:
		if p, ok := b.(*types.GenericValueParameterType); ok {
			return p.Decl == origin.Decl
		}
	}
	return false
}

func (s *solver) conflict(a, b types.Type, site source.Site) bool {
	if isError(a) || isError(b) {
		return true
	}
	s.fail(site, diagnostics.ErrT027, "type '%s' is not compatible with '%s'", a, b)
	return false
}

// occurs reports whether v appears inside t under the current
// assignments.
func occurs(v *types.TypeVariable, t types.Type, sol *solution) bool {
	found := false
	types.Transform(sol.reify(t), func(u types.Type) (types.TransformAction, types.Type) {
		if tv, ok := u.(*types.TypeVariable); ok && tv == v {
			found = true
		}
		return types.StepInto, u
	})
	return found
}
