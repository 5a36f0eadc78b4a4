package checker

import (
	"testing"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/config"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/source"
	"github.com/C-BJ/val/internal/types"
)

func emptyChecker(t *testing.T) *TypeChecker {
	t.Helper()
	b := newTB(t)
	b.core()
	b.module("main")
	p, err := scope.Build(b.a)
	if err != nil {
		t.Fatal(err)
	}
	return New(p, config.Options{}, nil)
}

func TestUnifySimpleAssignment(t *testing.T) {
	c := emptyChecker(t)
	v := types.NewVariable()
	cons := []Constraint{equalityConstraint(v, types.BuiltinI64, source.Site{})}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if sol.errorCount() != 0 {
		t.Fatalf("unexpected errors: %v", sol.diags)
	}
	if got := sol.reify(v); !types.Equal(got, types.BuiltinI64) {
		t.Errorf("reify(v) = %s, want Builtin.i64", got)
	}
}

func TestUnifyOccursCheck(t *testing.T) {
	c := emptyChecker(t)
	v := types.NewVariable()
	recursive := &types.TupleType{Elements: []types.TupleElement{{Type: v}}}
	cons := []Constraint{equalityConstraint(v, recursive, source.Site{})}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if sol.errorCount() == 0 {
		t.Fatal("expected an occurs-check failure")
	}
}

func TestUnifyConflictIsDiagnosedOnce(t *testing.T) {
	c := emptyChecker(t)
	cons := []Constraint{equalityConstraint(types.BuiltinI64, types.BuiltinI1, source.Site{})}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if sol.errorCount() != 1 {
		t.Fatalf("errors = %d, want 1", sol.errorCount())
	}
}

func TestErrorTypeIsASink(t *testing.T) {
	c := emptyChecker(t)
	cons := []Constraint{
		equalityConstraint(types.Error, types.BuiltinI64, source.Site{}),
		subtypingConstraint(types.Error, types.BuiltinI1, source.Site{}),
	}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if sol.errorCount() != 0 {
		t.Fatalf("Error must suppress diagnostics, got %v", sol.diags)
	}
}

func TestDisjunctionMinimizesPenalties(t *testing.T) {
	c := emptyChecker(t)
	v := types.NewVariable()
	cons := []Constraint{
		disjunctionConstraint([]ConstraintBranch{
			{Constraints: []Constraint{equalityConstraint(v, types.BuiltinI1, source.Site{})}, Penalty: 2},
			{Constraints: []Constraint{equalityConstraint(v, types.BuiltinI64, source.Site{})}, Penalty: 1},
		}, source.Site{}),
	}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if got := sol.reify(v); !types.Equal(got, types.BuiltinI64) {
		t.Errorf("solver chose %s, want the lower-penalty branch (Builtin.i64)", got)
	}
	if sol.penalties != 1 {
		t.Errorf("penalties = %d, want 1", sol.penalties)
	}
}

func TestDisjunctionPrefersFewerErrors(t *testing.T) {
	c := emptyChecker(t)
	v := types.NewVariable()
	cons := []Constraint{
		equalityConstraint(v, types.BuiltinI64, source.Site{}),
		disjunctionConstraint([]ConstraintBranch{
			// Cheaper branch conflicts with the equality above.
			{Constraints: []Constraint{equalityConstraint(v, types.BuiltinI1, source.Site{})}, Penalty: 0},
			{Constraints: []Constraint{equalityConstraint(v, types.BuiltinI64, source.Site{})}, Penalty: 3},
		}, source.Site{}),
	}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if sol.errorCount() != 0 {
		t.Fatalf("solver picked a conflicting branch: %v", sol.diags)
	}
	if sol.penalties != 3 {
		t.Errorf("penalties = %d, want 3", sol.penalties)
	}
}

func TestTieBreakByDiscoveryOrder(t *testing.T) {
	c := emptyChecker(t)
	v := types.NewVariable()
	cons := []Constraint{
		disjunctionConstraint([]ConstraintBranch{
			{Constraints: []Constraint{equalityConstraint(v, types.BuiltinI1, source.Site{})}},
			{Constraints: []Constraint{equalityConstraint(v, types.BuiltinI64, source.Site{})}},
		}, source.Site{}),
	}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if got := sol.reify(v); !types.Equal(got, types.BuiltinI1) {
		t.Errorf("tie must break by discovery order, got %s", got)
	}
}

func TestLiteralDefaultsWhenUnconstrained(t *testing.T) {
	b := newTB(t)
	b.core()
	binding := b.letBinding("n", ast.NoExpr, b.intLit("7"))
	b.module("main", binding)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	if got := c.declTypes[binding]; got == nil || got.String() != "Int" {
		t.Errorf("declTypes[n] = %v, want Int (literal default)", got)
	}
}

func TestSubtypingNeverAndAny(t *testing.T) {
	c := emptyChecker(t)
	cons := []Constraint{
		subtypingConstraint(types.Never, types.BuiltinI64, source.Site{}),
		subtypingConstraint(types.BuiltinI64, types.Any, source.Site{}),
	}
	sol := c.solve(cons, scope.NoScope, source.Site{})
	if sol.errorCount() != 0 {
		t.Fatalf("Never <: T and T <: Any must hold, got %v", sol.diags)
	}
}
