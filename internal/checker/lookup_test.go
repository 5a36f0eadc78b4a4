package checker

import (
	"testing"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/config"
	"github.com/C-BJ/val/internal/types"
)

func TestUnqualifiedLookupShadowing(t *testing.T) {
	// A parameter named like a module-level binding shadows it: the first
	// scope with a non-overloadable match freezes resolution.
	b := newTB(t)
	b.core()
	outer := b.letBinding("x", b.name("Int"), b.intLit("1"))
	p := b.param("", "x", b.name("Bool"))
	f := b.fn("f", []ast.DeclID{p}, b.name("Bool"), b.blockBody(b.ret(b.name("x"))))
	b.module("main", outer, f)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	// The returned x is the Bool parameter, not the Int binding.
	fnScope, _ := c.program.ScopeIntroducing(f)
	matches := c.lookupUnqualified("x", fnScope)
	if len(matches) != 1 || matches[0] != p {
		t.Fatalf("lookupUnqualified(x) = %v, want the parameter", matches)
	}
}

func TestMemberLookupMonotonicity(t *testing.T) {
	// Adding an extension strictly broadens member lookup.
	countMembers := func(withExtension bool) int {
		b := newTB(t)
		b.core()
		base := b.fn("f", nil, b.name("Int"), ast.Body{})
		a := b.product("A", nil, base)
		decls := []ast.DeclID{a}
		if withExtension {
			extra := b.fn("g", nil, b.name("Int"), ast.Body{})
			ext := b.a.AddDecl(&ast.ExtensionDecl{Subject: b.name("A"), Members: []ast.DeclID{extra}})
			decls = append(decls, ext)
		}
		m := b.module("main", decls...)
		p := b.build()
		c := New(p, config.Options{}, nil)
		useScope := c.program.ModuleScopeOf(m)
		model := &types.ProductType{Decl: a, Name: "A"}
		return len(c.lookupMember("f", model, useScope)) + len(c.lookupMember("g", model, useScope))
	}
	without := countMembers(false)
	with := countMembers(true)
	if with <= without {
		t.Errorf("extension did not broaden member lookup: %d -> %d", without, with)
	}
}

func TestMemberLookupThroughBoundGeneric(t *testing.T) {
	b := newTB(t)
	b.core()
	fMember := b.fn("f", nil, b.name("Int"), ast.Body{})
	box := b.a.AddDecl(&ast.ProductTypeDecl{
		Identifier: "Box",
		GenericClause: &ast.GenericClause{
			Parameters: []ast.DeclID{b.a.AddDecl(&ast.GenericParameterDecl{Identifier: "T"})},
		},
		Members: []ast.DeclID{fMember},
	})
	m := b.module("main", box)

	p := b.build()
	c := New(p, config.Options{}, nil)
	useScope := c.program.ModuleScopeOf(m)
	bound := &types.BoundGenericType{
		Base:      &types.ProductType{Decl: box, Name: "Box"},
		Arguments: []types.GenericArgument{{Type: c.coreType("Int", useScope)}},
	}
	matches := c.lookupMember("f", bound, useScope)
	if len(matches) != 1 || matches[0] != fMember {
		t.Errorf("lookupMember(f, Box<Int>) = %v, want [f]", matches)
	}
}

func TestTraitMembersInheritedByConformingType(t *testing.T) {
	// A member declared by a conformed trait with a default body is found
	// on the conforming type unless shadowed.
	b := newTB(t)
	b.core()
	reqBody := ast.ExprBody(b.intLit("0"))
	req := b.fn("zero", nil, b.name("Int"), reqBody)
	p := b.trait("P", nil, req)
	a := b.product("A", []ast.ExprID{b.name("P")})
	m := b.module("main", p, a)

	pr := b.build()
	c := New(pr, config.Options{}, nil)
	useScope := c.program.ModuleScopeOf(m)
	model := &types.ProductType{Decl: a, Name: "A"}
	matches := c.lookupMember("zero", model, useScope)
	if len(matches) != 1 || matches[0] != req {
		t.Errorf("lookupMember(zero, A) = %v, want the inherited requirement", matches)
	}
}

func TestBuiltinResolutionRequiresOption(t *testing.T) {
	b := newTB(t)
	b.core()
	binding := b.letBinding("p", ast.NoExpr, b.member(b.name("Builtin"), "i64"))
	b.module("main", binding)

	c, ok := b.checkWith("main", config.Options{IsBuiltinModuleVisible: true})
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check with builtin module visible failed")
	}

	b2 := newTB(t)
	b2.core()
	binding2 := b2.letBinding("p", ast.NoExpr, b2.member(b2.name("Builtin"), "i64"))
	b2.module("main", binding2)
	c2, ok2 := b2.check("main")
	if ok2 {
		t.Fatal("expected failure without builtin module visibility")
	}
	expectCheckerError(t, c2, "T001")
}
