package checker

import (
	"testing"

	"github.com/neilotoole/slogt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/config"
	"github.com/C-BJ/val/internal/source"
)

func TestInferenceTracingIsScopedToLine(t *testing.T) {
	b := newTB(t)
	b.core()
	lit := &ast.IntegerLiteralExpr{Value: "7"}
	lit.At = source.Site{File: "main.val", Line: 3, Column: 9}
	binding := b.letBinding("n", ast.NoExpr, b.a.AddExpr(lit))
	m := b.module("main", binding)

	p := b.build()
	line := source.Line{File: "main.val", Number: 3}
	c := New(p, config.Options{TracingInferenceIn: &line}, slogt.New(t))
	if !c.CheckModule(m) {
		t.Fatalf("check failed: %v", c.Diagnostics())
	}
	expectNoCheckerErrors(t, c)
}

func TestTypedProgramMovesResults(t *testing.T) {
	b := newTB(t)
	b.core()
	f := b.fn("main", nil, ast.NoExpr, b.blockBody())
	b.module("main", f)

	c, ok := b.check("main")
	if !ok {
		t.Fatal("check failed")
	}
	tp := c.TypedProgram()
	if tp.BuildID != b.a.BuildID {
		t.Error("typed program must carry the arena's build id")
	}
	if _, present := tp.DeclTypes[f]; !present {
		t.Error("declTypes must move into the typed program")
	}
	if tp.Relations == nil {
		t.Error("the conformance registry must move into the typed program")
	}
	// The checker's state moved out.
	if c.declTypes != nil {
		t.Error("checker must release its state on move")
	}
}
