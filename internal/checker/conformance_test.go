package checker

import (
	"testing"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/types"
)

func TestConformanceWitnessMatching(t *testing.T) {
	b := newTB(t)
	b.core()
	req := b.fn("f", nil, b.name("Int"), ast.Body{})
	p := b.trait("P", nil, req)
	witness := b.fn("f", nil, b.name("Int"), ast.ExprBody(b.intLit("1")))
	a := b.product("A", []ast.ExprID{b.name("P")}, witness)
	b.module("main", p, a)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	model := &types.ProductType{Decl: a, Name: "A"}
	conf, found := c.relations.Conformance(model, &types.TraitType{Decl: p, Name: "P"})
	if !found {
		t.Fatal("conformance A: P was not registered")
	}
	if got := conf.Implementations[req]; got != witness {
		t.Errorf("witness for f = %d, want the declared member", got)
	}
}

func TestMissingRequirementIsDiagnosed(t *testing.T) {
	b := newTB(t)
	b.core()
	req := b.fn("f", nil, b.name("Int"), ast.Body{})
	p := b.trait("P", nil, req)
	a := b.product("A", []ast.ExprID{b.name("P")})
	b.module("main", p, a)

	c, ok := b.check("main")
	if ok {
		t.Fatal("expected conformance failure")
	}
	expectCheckerError(t, c, "T028")
}

func TestSynthesizedWitnessFromDefault(t *testing.T) {
	// A requirement with a default body is synthesizable.
	b := newTB(t)
	b.core()
	req := b.fn("f", nil, b.name("Int"), ast.ExprBody(b.intLit("0")))
	p := b.trait("P", nil, req)
	a := b.product("A", []ast.ExprID{b.name("P")})
	b.module("main", p, a)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	model := &types.ProductType{Decl: a, Name: "A"}
	conf, found := c.relations.Conformance(model, &types.TraitType{Decl: p, Name: "P"})
	if !found {
		t.Fatal("conformance A: P was not registered")
	}
	if got := conf.Implementations[req]; got != req {
		t.Errorf("synthesized witness must point at the requirement's default, got %d", got)
	}
}

func TestConformanceToNonTrait(t *testing.T) {
	b := newTB(t)
	b.core()
	a := b.product("A", []ast.ExprID{b.name("Int")})
	b.module("main", a)

	c, ok := b.check("main")
	if ok {
		t.Fatal("expected failure")
	}
	expectCheckerError(t, c, "T006")
}

func TestConditionalConformanceEmitsTODO(t *testing.T) {
	b := newTB(t)
	b.core()
	p := b.trait("P", nil)
	box := b.a.AddDecl(&ast.ProductTypeDecl{
		Identifier: "Box",
		GenericClause: &ast.GenericClause{
			Parameters: []ast.DeclID{b.a.AddDecl(&ast.GenericParameterDecl{Identifier: "T"})},
		},
	})
	where := b.a.AddExpr(&ast.ConformanceConstraintExpr{
		Subject: b.name("T"),
		Traits:  []ast.ExprID{b.name("P")},
	})
	conf := b.a.AddDecl(&ast.ConformanceDecl{
		Subject:      b.name("Box"),
		Conformances: []ast.ExprID{b.name("P")},
		WhereClauses: []ast.ExprID{where},
	})
	b.module("main", p, box, conf)

	c, _ := b.check("main")
	expectCheckerError(t, c, "T031")
}

func TestAssociatedTypeWitness(t *testing.T) {
	b := newTB(t)
	b.core()
	assoc := b.a.AddDecl(&ast.AssociatedTypeDecl{Identifier: "Element"})
	p := b.trait("P", nil, assoc)
	elem := b.a.AddDecl(&ast.TypeAliasDecl{Identifier: "Element", Aliased: b.name("Int")})
	a := b.product("A", []ast.ExprID{b.name("P")}, elem)
	b.module("main", p, a)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	model := &types.ProductType{Decl: a, Name: "A"}
	conf, found := c.relations.Conformance(model, &types.TraitType{Decl: p, Name: "P"})
	if !found {
		t.Fatal("conformance A: P was not registered")
	}
	if got := conf.Implementations[assoc]; got != elem {
		t.Errorf("associated-type witness = %d, want the member alias", got)
	}
}
