package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/types"
)

// nameUse is one free occurrence of a name inside a local function or
// subscript body.
type nameUse struct {
	expr    ast.ExprID
	stem    string
	mutable bool
}

// collectCaptures discovers the implicit captures of a local function or
// subscript: free names whose declarations are neither contained in the
// declaration nor global, collapsed to one capture per name, 'inout' iff
// any use is mutable.
func (c *TypeChecker) collectCaptures(d ast.DeclID) []ImplicitCapture {
	uses := c.collectNameUses(d)

	var order []string
	byName := make(map[string]*ImplicitCapture)
	ambiguous := make(map[string]bool)

	for _, use := range uses {
		useScope := c.program.ScopeOfExpr(use.expr)
		matches := c.lookupUnqualified(use.stem, useScope)
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 && !c.allOverloadable(matches) {
			if !ambiguous[use.stem] {
				ambiguous[use.stem] = true
				c.addDiag(diagnostics.NewError(
					diagnostics.ErrT033, c.siteOfExpr(use.expr),
					fmt.Sprintf("ambiguous implicit capture of '%s'", use.stem),
				))
			}
			continue
		}
		target := matches[0]
		if c.program.IsContained(c.program.ScopeOf(target), d) || c.program.IsGlobal(target) {
			continue
		}
		if c.program.IsMember(target) {
			// A member of another receiver cannot be captured; the use is
			// filtered out rather than diagnosed here.
			owner := c.program.InnermostType(c.program.ScopeOf(target))
			self := c.program.InnermostType(c.program.ScopeOf(d))
			if owner != self {
				continue
			}
		}
		// Capture-less function values need no environment slot.
		if _, isFn := c.ast.Decl(target).(*ast.FunctionDecl); isFn {
			if t, realized := c.declTypes[target].(*types.LambdaType); realized && types.IsVoid(t.Environment) {
				continue
			}
		}

		if cap, seen := byName[use.stem]; seen {
			if use.mutable {
				cap.Effect = ast.InoutEffect
			}
			continue
		}
		effect := ast.LetEffect
		if use.mutable {
			effect = ast.InoutEffect
		}
		byName[use.stem] = &ImplicitCapture{Name: use.stem, Effect: effect, Decl: target}
		order = append(order, use.stem)
	}

	out := make([]ImplicitCapture, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}

func (c *TypeChecker) allOverloadable(ds []ast.DeclID) bool {
	for _, d := range ds {
		if !c.isOverloadable(d) {
			return false
		}
	}
	return true
}

// collectNameUses walks the declaration's body, recording undomained name
// expressions and marking the roots of inout expressions as mutable. The
// walk does not descend into nested type scopes.
func (c *TypeChecker) collectNameUses(d ast.DeclID) []nameUse {
	w := &captureWalker{c: c}
	switch decl := c.ast.Decl(d).(type) {
	case *ast.FunctionDecl:
		w.body(decl.Body)
	case *ast.SubscriptDecl:
		for _, impl := range decl.Impls {
			if si, ok := c.ast.Decl(impl).(*ast.SubscriptImplDecl); ok {
				w.body(si.Body)
			}
		}
	}
	return w.uses
}

type captureWalker struct {
	c    *TypeChecker
	uses []nameUse
}

func (w *captureWalker) body(b ast.Body) {
	switch b.Kind {
	case ast.BodyBlock:
		w.stmt(b.Block)
	case ast.BodyExpr:
		w.expr(b.Expr, false)
	}
}

func (w *captureWalker) stmt(id ast.StmtID) {
	if id == ast.NoStmt {
		return
	}
	switch s := w.c.ast.Stmt(id).(type) {
	case *ast.BraceStmt:
		for _, child := range s.Stmts {
			w.stmt(child)
		}
	case *ast.AssignStmt:
		w.expr(s.Left, true)
		w.expr(s.Right, false)
	case *ast.CondStmt:
		w.conditions(s.Conditions)
		w.stmt(s.Success)
		w.stmt(s.Failure)
	case *ast.WhileStmt:
		w.conditions(s.Conditions)
		w.stmt(s.Body)
	case *ast.DoWhileStmt:
		w.stmt(s.Body)
		w.expr(s.Condition, false)
	case *ast.ReturnStmt:
		w.expr(s.Value, false)
	case *ast.YieldStmt:
		w.expr(s.Value, false)
	case *ast.ExprStmt:
		w.expr(s.Expr, false)
	case *ast.DiscardStmt:
		w.expr(s.Expr, false)
	case *ast.DeclStmt:
		w.decl(s.Decl)
	}
}

func (w *captureWalker) conditions(items []ast.ConditionItem) {
	for _, it := range items {
		if it.Binding != ast.NoDecl {
			w.decl(it.Binding)
		} else {
			w.expr(it.Expr, false)
		}
	}
}

func (w *captureWalker) decl(id ast.DeclID) {
	switch d := w.c.ast.Decl(id).(type) {
	case *ast.BindingDecl:
		w.expr(d.Initializer, false)
	case *ast.FunctionDecl:
		w.body(d.Body)
	default:
		// Nested type scopes are not entered.
	}
}

func (w *captureWalker) expr(id ast.ExprID, mutable bool) {
	if id == ast.NoExpr {
		return
	}
	switch e := w.c.ast.Expr(id).(type) {
	case *ast.NameExpr:
		if e.Domain == ast.NoExpr && !e.ImplicitDomain {
			w.uses = append(w.uses, nameUse{expr: id, stem: e.Name.Stem, mutable: mutable})
			return
		}
		w.expr(e.Domain, mutable)
	case *ast.InoutExpr:
		w.expr(e.Subject, true)
	case *ast.CallExpr:
		w.expr(e.Callee, mutable)
		for _, a := range e.Arguments {
			w.expr(a.Value, false)
		}
	case *ast.SubscriptCallExpr:
		// A mutable use of a subscript propagates to the callee's root.
		w.expr(e.Callee, mutable)
		for _, a := range e.Arguments {
			w.expr(a.Value, false)
		}
	case *ast.LambdaExpr:
		w.decl(e.Decl)
	case *ast.CastExpr:
		w.expr(e.Subject, false)
	case *ast.SequenceExpr:
		w.expr(e.Head, false)
		for _, op := range e.Tail {
			w.expr(op.Operand, false)
		}
	case *ast.TupleExpr:
		for _, el := range e.Elements {
			w.expr(el.Value, false)
		}
	case *ast.CondExpr:
		w.conditions(e.Conditions)
		w.branch(e.Success)
		w.branch(e.Failure)
	}
}

func (w *captureWalker) branch(b ast.Branch) {
	switch b.Kind {
	case ast.ExprBranch:
		w.expr(b.Expr, false)
	case ast.BlockBranch:
		w.stmt(b.Block)
	}
}
