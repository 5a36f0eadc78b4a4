package checker

import (
	"testing"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/config"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/types"
)

// ---------------------------------------------------------------------------
// End-to-end scenarios over the miniature core library.
// ---------------------------------------------------------------------------

func TestEmptyMainFunction(t *testing.T) {
	b := newTB(t)
	b.core()
	main := b.fn("main", nil, ast.NoExpr, b.blockBody())
	b.module("main", main)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}

	lt, isLambda := c.declTypes[main].(*types.LambdaType)
	if !isLambda {
		t.Fatalf("declTypes[main] = %v, want a lambda", c.declTypes[main])
	}
	if len(lt.Inputs) != 0 || !types.IsVoid(lt.Output) {
		t.Errorf("declTypes[main] = %s, want () -> Void", lt)
	}
}

func TestReturnOfInfixApplication(t *testing.T) {
	b := newTB(t)
	b.core()
	x := b.param("", "x", b.name("Int"))
	sum := b.seq(b.name("x"), "+", b.intLit("1"))
	f := b.fn("f", []ast.DeclID{x}, b.name("Int"), b.blockBody(b.ret(sum)))
	b.module("main", f)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	if got := c.exprTypes[sum]; got == nil || !types.Equal(got, c.declTypes[x].(*types.ParameterType).Bare) {
		t.Errorf("exprTypes[x+1] = %v, want Int", got)
	}

	// The operator name expression binds to the core '+' member.
	folded := c.foldedSequenceExprs[sum]
	if folded == nil || folded.IsLeaf() {
		t.Fatal("sequence was not folded")
	}
	ref, bound := c.referredDecls[folded.Operator]
	if !bound || ref.Kind != MemberRef {
		t.Errorf("referredDecls[+] = %+v, want a member reference", ref)
	}
}

func TestGenericCallOpensAndReifies(t *testing.T) {
	b := newTB(t)
	b.core()
	id := b.genericFn("id", []string{"T"},
		func(ps map[string]ast.DeclID) []ast.DeclID {
			return []ast.DeclID{b.param("", "x", b.name("T"))}
		},
		func(ps map[string]ast.DeclID) ast.ExprID { return b.name("T") },
		b.blockBody(b.ret(b.name("x"))),
	)
	callExpr := b.call(b.name("id"), arg("", b.intLit("42")))
	binding := b.letBinding("r", ast.NoExpr, callExpr)
	b.module("main", id, binding)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	got := c.exprTypes[callExpr]
	if got == nil || got.String() != "Int" {
		t.Errorf("type of id(42) = %v, want Int", got)
	}
	if vt := c.declTypes[b.varOf(binding)]; vt == nil || vt.String() != "Int" {
		t.Errorf("declTypes[r] = %v, want Int", vt)
	}
}

func TestMemberwiseInitializerSynthesis(t *testing.T) {
	b := newTB(t)
	b.core()
	field := b.varBinding("x", b.name("Int"))
	a := b.product("A", nil, field)
	ctorCall := b.call(b.name("A"), arg("x", b.intLit("1")))
	binding := b.letBinding("a", ast.NoExpr, ctorCall)
	b.module("main", a, binding)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	if got := c.declTypes[binding]; got == nil || got.String() != "A" {
		t.Errorf("declTypes[a] = %v, want A", got)
	}

	// The synthesized initializer carries labels [self, x].
	prod := b.a.Decl(a).(*ast.ProductTypeDecl)
	var init *types.LambdaType
	for _, m := range prod.Members {
		if d, isInit := b.a.Decl(m).(*ast.InitializerDecl); isInit && d.IsMemberwise {
			init, _ = c.declTypes[m].(*types.LambdaType)
		}
	}
	if init == nil {
		t.Fatal("memberwise initializer was not synthesized or realized")
	}
	if len(init.Inputs) != 2 || init.Inputs[0].Label != "self" || init.Inputs[1].Label != "x" {
		t.Errorf("memberwise initializer inputs = %s, want labels [self, x]", init)
	}
}

func TestConformanceClosureAndRegistry(t *testing.T) {
	b := newTB(t)
	b.core()
	p := b.trait("P", nil)
	q := b.trait("Q", []ast.ExprID{b.name("P")})
	bType := b.product("B", []ast.ExprID{b.name("P")})
	b.module("main", p, q, bType)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}

	model := &types.ProductType{Decl: bType, Name: "B"}
	useScope := c.program.ScopeOf(bType)
	traits := c.conformedTraits(model, useScope)
	if len(traits) != 1 || traits[0].Name != "P" {
		t.Errorf("conformedTraits(B) = %v, want [P]", traits)
	}

	// Q's closure includes itself and P.
	qClosure := c.conformedTraits(&types.TraitType{Decl: q, Name: "Q"}, useScope)
	if len(qClosure) != 2 {
		t.Errorf("conformedTraits(Q) = %v, want [Q P]", qClosure)
	}

	// B: P is registered exactly once.
	confs := c.relations.ConformancesOf(model)
	count := 0
	for _, conf := range confs {
		if conf.Trait.Name == "P" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("B: P registered %d times, want 1", count)
	}
}

func TestSingleElementSumIsError(t *testing.T) {
	b := newTB(t)
	b.core()
	f := b.fn("f", nil, b.nameArgs("Sum", b.name("Int")), ast.Body{})
	other := b.fn("g", nil, ast.NoExpr, b.blockBody())
	cType := b.product("C", nil, f, other)
	b.module("main", cType)

	c, ok := b.check("main")
	if ok {
		t.Fatal("expected failure")
	}
	expectCheckerError(t, c, "T019")
	if !isError(c.declTypes[f]) {
		t.Errorf("declTypes[f] = %v, want Error", c.declTypes[f])
	}
	// The sibling member still checks.
	if c.declRequests[other] != Success {
		t.Errorf("sibling member state = %s, want success", c.declRequests[other])
	}
}

func TestSelfRefiningTrait(t *testing.T) {
	b := newTB(t)
	b.core()
	r := b.a.AddDecl(&ast.TraitDecl{Identifier: "R"})
	b.a.Decl(r).(*ast.TraitDecl).Refinements = []ast.ExprID{b.name("R")}
	b.module("main", r)

	c, _ := b.check("main")
	expectCheckerError(t, c, "T026")
	if env := c.environment(r); env != nil {
		t.Errorf("environment(R) = %+v, want nil", env)
	}
}

func TestLambdaAgainstExpectedType(t *testing.T) {
	b := newTB(t)
	b.core()
	body := b.seq(b.name("x"), "+", b.intLit("1"))
	lam := b.lambda([]string{"x"}, body)
	annotation := b.lambdaTypeExpr(b.name("Int"), b.paramType(b.name("Int")))
	binding := b.letBinding("g", annotation, lam)
	b.module("main", binding)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
	if got := c.exprTypes[body]; got == nil || got.String() != "Int" {
		t.Errorf("lambda body type = %v, want Int", got)
	}
	lamExpr := b.a.Expr(lam).(*ast.LambdaExpr)
	underlying := b.a.Decl(lamExpr.Decl).(*ast.FunctionDecl)
	pt, isParam := c.declTypes[underlying.Parameters[0]].(*types.ParameterType)
	if !isParam || pt.Bare.String() != "Int" {
		t.Errorf("lambda parameter type = %v, want let Int", c.declTypes[underlying.Parameters[0]])
	}
}

// ---------------------------------------------------------------------------
// Universal properties.
// ---------------------------------------------------------------------------

func TestDeterminism(t *testing.T) {
	run := func() (string, []string) {
		b := newTB(t)
		b.core()
		x := b.param("", "x", b.name("Int"))
		sum := b.seq(b.name("x"), "+", b.intLit("1"))
		f := b.fn("f", []ast.DeclID{x}, b.name("Int"), b.blockBody(b.ret(sum)))
		b.module("main", f)
		c, _ := b.check("main")
		var diags []string
		for _, d := range c.Diagnostics() {
			diags = append(diags, d.Error())
		}
		return c.declTypes[f].String(), diags
	}
	t1, d1 := run()
	t2, d2 := run()
	if t1 != t2 {
		t.Errorf("declTypes differ across runs: %s vs %s", t1, t2)
	}
	if len(d1) != len(d2) {
		t.Errorf("diagnostic sequences differ: %v vs %v", d1, d2)
	}
}

func TestRealizeAndCheckAreIdempotent(t *testing.T) {
	b := newTB(t)
	b.core()
	f := b.fn("f", nil, ast.NoExpr, b.blockBody())
	m := b.module("main", f)

	p := b.build()
	c := New(p, config.Options{}, nil)
	t1 := c.realize(f)
	t2 := c.realize(f)
	if !types.Equal(t1, t2) {
		t.Errorf("realize is not idempotent: %s vs %s", t1, t2)
	}

	if !c.CheckModule(m) {
		t.Fatal("first check failed")
	}
	n := len(c.Diagnostics())
	if !c.CheckModule(m) {
		t.Fatal("second check failed")
	}
	if len(c.Diagnostics()) != n {
		t.Error("second check produced new diagnostics")
	}
}

func TestCycleDetectionTerminatesAndSettles(t *testing.T) {
	b := newTB(t)
	b.core()
	aliasA := b.a.AddDecl(&ast.TypeAliasDecl{Identifier: "A", Aliased: b.name("B")})
	aliasB := b.a.AddDecl(&ast.TypeAliasDecl{Identifier: "B", Aliased: b.name("A")})
	m := b.module("main", aliasA, aliasB)

	p := b.build()
	c := New(p, config.Options{}, nil)
	c.CheckModule(m)
	expectCheckerError(t, c, "T003")

	for d, state := range c.declRequests {
		if state == TypeRealizationStarted || state == TypeCheckingStarted {
			t.Errorf("declaration %d left in state %s", d, state)
		}
	}
}

func TestBindingScopeIsolation(t *testing.T) {
	b := newTB(t)
	b.core()
	binding := b.letBinding("x", ast.NoExpr, b.name("x"))
	b.module("main", binding)

	c, ok := b.check("main")
	if ok {
		t.Fatal("expected failure: a binding cannot see its own variable")
	}
	expectCheckerError(t, c, "T001")
}

func TestSolverPrefersDeclaredOutputOverNever(t *testing.T) {
	// A single-expression body of the declared output type must choose the
	// 0-penalty branch.
	b := newTB(t)
	b.core()
	f := b.fn("f", nil, b.name("Int"), ast.ExprBody(b.intLit("1")))
	b.module("main", f)

	c, ok := b.check("main")
	expectNoCheckerErrors(t, c)
	if !ok {
		t.Fatal("check(module:) failed")
	}
}

func TestRedundantConformanceIsRejected(t *testing.T) {
	b := newTB(t)
	b.core()
	p := b.trait("P", nil)
	bType := b.product("B", []ast.ExprID{b.name("P")})
	conf := b.a.AddDecl(&ast.ConformanceDecl{
		Subject:      b.name("B"),
		Conformances: []ast.ExprID{b.name("P")},
	})
	b.module("main", p, bType, conf)

	c, _ := b.check("main")
	expectCheckerError(t, c, string(diagnostics.ErrT011))
}

