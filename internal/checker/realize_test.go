package checker

import (
	"testing"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/types"
)

func TestMethodBundleRealization(t *testing.T) {
	b := newTB(t)
	b.core()
	letImpl := b.a.AddDecl(&ast.MethodImplDecl{Introducer: ast.LetEffect, Body: ast.ExprBody(b.intLit("1"))})
	inoutImpl := b.a.AddDecl(&ast.MethodImplDecl{Introducer: ast.InoutEffect})
	bundle := b.a.AddDecl(&ast.MethodDecl{
		Identifier: "next",
		Output:     b.name("Int"),
		Impls:      []ast.DeclID{letImpl, inoutImpl},
	})
	counter := b.product("Counter", nil, bundle)
	b.module("main", counter)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}

	mt, isMethod := c.declTypes[bundle].(*types.MethodType)
	if !isMethod {
		t.Fatalf("declTypes[next] = %v, want a method type", c.declTypes[bundle])
	}
	if !mt.Capabilities.Contains(ast.LetEffect) || !mt.Capabilities.Contains(ast.InoutEffect) {
		t.Errorf("capabilities = %s, want {let inout}", mt.Capabilities)
	}
	if mt.Receiver.String() != "Counter" {
		t.Errorf("receiver = %s, want Counter", mt.Receiver)
	}

	// The mutating variant's derived lambda returns (self, value).
	variant, isLambda := c.declTypes[inoutImpl].(*types.LambdaType)
	if !isLambda {
		t.Fatalf("declTypes[inout impl] = %v, want a lambda", c.declTypes[inoutImpl])
	}
	out, isTuple := types.Canonical(variant.Output).(*types.TupleType)
	if !isTuple || len(out.Elements) != 2 || out.Elements[0].Label != "self" || out.Elements[1].Label != "value" {
		t.Errorf("mutating variant output = %s, want (self, value)", variant.Output)
	}
}

func TestSubscriptRealizationAndBody(t *testing.T) {
	b := newTB(t)
	b.core()
	impl := b.a.AddDecl(&ast.SubscriptImplDecl{Introducer: ast.LetEffect, Body: ast.ExprBody(b.name("i"))})
	sub := b.a.AddDecl(&ast.SubscriptDecl{
		Parameters: []ast.DeclID{b.param("", "i", b.name("Int"))},
		Output:     b.name("Int"),
		Impls:      []ast.DeclID{impl},
	})
	a := b.product("A", nil, sub)
	b.module("main", a)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	st, isSub := c.declTypes[sub].(*types.SubscriptType)
	if !isSub {
		t.Fatalf("declTypes[subscript] = %v, want a subscript type", c.declTypes[sub])
	}
	if st.IsProperty || len(st.Inputs) != 1 || !st.Capabilities.Contains(ast.LetEffect) {
		t.Errorf("subscript type = %s", st)
	}
}

func TestSubscriptRequiresOutputAnnotation(t *testing.T) {
	b := newTB(t)
	b.core()
	sub := b.a.AddDecl(&ast.SubscriptDecl{
		Parameters: []ast.DeclID{b.param("", "i", b.name("Int"))},
	})
	a := b.product("A", nil, sub)
	b.module("main", a)

	c, _ := b.check("main")
	expectCheckerError(t, c, "T025")
}

func TestParameterRequiresAnnotationOutsideExprContext(t *testing.T) {
	b := newTB(t)
	b.core()
	p := b.a.AddDecl(&ast.ParameterDecl{Identifier: "x"})
	f := b.fn("f", []ast.DeclID{p}, ast.NoExpr, b.blockBody())
	b.module("main", f)

	c, _ := b.check("main")
	expectCheckerError(t, c, "T025")
}

func TestNameRefersToValueInTypePosition(t *testing.T) {
	b := newTB(t)
	b.core()
	g := b.fn("g", nil, ast.NoExpr, b.blockBody())
	p := b.param("", "x", b.name("g"))
	f := b.fn("f", []ast.DeclID{p}, ast.NoExpr, b.blockBody())
	b.module("main", g, f)

	c, _ := b.check("main")
	expectCheckerError(t, c, "T023")
}

func TestGenericArgumentCountMismatch(t *testing.T) {
	b := newTB(t)
	b.core()
	box := b.a.AddDecl(&ast.ProductTypeDecl{
		Identifier: "Box",
		GenericClause: &ast.GenericClause{
			Parameters: []ast.DeclID{b.a.AddDecl(&ast.GenericParameterDecl{Identifier: "T"})},
		},
	})
	p := b.param("", "x", b.nameArgs("Box", b.name("Int"), b.name("Bool")))
	f := b.fn("f", []ast.DeclID{p}, ast.NoExpr, b.blockBody())
	b.module("main", box, f)

	c, _ := b.check("main")
	expectCheckerError(t, c, "T014")
}

func TestUnusedResultWarning(t *testing.T) {
	b := newTB(t)
	b.core()
	g := b.fn("g", nil, b.name("Int"), ast.ExprBody(b.intLit("1")))
	stmt := b.a.AddStmt(&ast.ExprStmt{Expr: b.call(b.name("g"))})
	f := b.fn("f", nil, ast.NoExpr, ast.BlockBody(b.brace(stmt)))
	b.module("main", g, f)

	c, ok := b.check("main")
	if !ok {
		t.Fatalf("warnings must not fail the module: %v", c.Diagnostics())
	}
	expectCheckerError(t, c, "T005")
}

func TestMissingReturnValue(t *testing.T) {
	b := newTB(t)
	b.core()
	f := b.fn("f", nil, b.name("Int"), b.blockBody(b.ret(ast.NoExpr)))
	b.module("main", f)

	c, ok := b.check("main")
	if ok {
		t.Fatal("expected failure")
	}
	expectCheckerError(t, c, "T004")
}

func TestAssignRequiresSubtype(t *testing.T) {
	b := newTB(t)
	b.core()
	y := b.varBindingWithInit("y", b.name("Int"), b.intLit("1"))
	assign := b.a.AddStmt(&ast.AssignStmt{Left: b.name("y"), Right: b.boolLit(true)})
	f := b.fn("f", nil, ast.NoExpr, b.blockBody(
		b.a.AddStmt(&ast.DeclStmt{Decl: y}),
		assign,
	))
	b.module("main", f)

	c, ok := b.check("main")
	if ok {
		t.Fatal("expected failure: a Boolean literal cannot have type Int")
	}
	expectCheckerError(t, c, "T028")
}

func TestWhileConditionMustBeBool(t *testing.T) {
	b := newTB(t)
	b.core()
	body := b.brace()
	loop := b.a.AddStmt(&ast.WhileStmt{
		Conditions: []ast.ConditionItem{{Expr: b.intLit("1")}},
		Body:       body,
	})
	f := b.fn("f", nil, ast.NoExpr, ast.BlockBody(b.brace(loop)))
	b.module("main", f)

	c, ok := b.check("main")
	if ok {
		t.Fatal("expected failure: Int condition")
	}
	expectCheckerError(t, c, "T027")
}

func TestMetatypeMagicName(t *testing.T) {
	b := newTB(t)
	b.core()
	binding := b.letBinding("m", ast.NoExpr, b.nameArgs("Metatype", b.name("Int")))
	b.module("main", binding)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	got := c.declTypes[binding]
	if got == nil || got.String() != "Metatype<Metatype<Int>>" {
		t.Errorf("declTypes[m] = %v, want Metatype<Metatype<Int>>", got)
	}
}

func TestSumMagicName(t *testing.T) {
	b := newTB(t)
	b.core()
	p := b.param("", "x", b.nameArgs("Sum", b.name("Int"), b.name("Bool")))
	f := b.fn("f", []ast.DeclID{p}, ast.NoExpr, b.blockBody())
	b.module("main", f)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	pt := c.declTypes[p].(*types.ParameterType)
	if _, isSum := types.Canonical(pt.Bare).(*types.SumType); !isSum {
		t.Errorf("parameter type = %s, want a sum", pt.Bare)
	}
}

func TestZeroElementSumWarnsAndIsNever(t *testing.T) {
	b := newTB(t)
	b.core()
	p := b.param("", "x", b.nameArgs("Sum"))
	f := b.fn("f", []ast.DeclID{p}, ast.NoExpr, b.blockBody())
	b.module("main", f)

	c, ok := b.check("main")
	if !ok {
		t.Fatalf("a warning must not fail the module: %v", c.Diagnostics())
	}
	expectCheckerError(t, c, "T018")
	pt := c.declTypes[p].(*types.ParameterType)
	if !types.IsNever(pt.Bare) {
		t.Errorf("Sum<> = %s, want Never", pt.Bare)
	}
}
