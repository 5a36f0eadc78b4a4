package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/types"
)

// check verifies a declaration's body and members, assuming realization.
// Results are memoized in the request state machine; re-entry while
// checking is a circular dependency.
func (c *TypeChecker) check(d ast.DeclID) bool {
	switch c.declRequests[d] {
	case Success:
		return true
	case Failure:
		return false
	case TypeCheckingStarted:
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT003, c.siteOfDecl(d),
			fmt.Sprintf("circular dependency while checking '%s'", c.declNameString(d)),
		))
		c.declRequests[d] = Failure
		return false
	}

	t := c.realize(d)
	if c.declRequests[d] == Failure {
		return false
	}
	c.declRequests[d] = TypeCheckingStarted

	before := c.diags.ErrorCount()
	c.checkDecl(d)
	ok := c.diags.ErrorCount() == before && !isError(t)

	// A cycle detected beneath may have already moved the state.
	if c.declRequests[d] == TypeCheckingStarted {
		if ok {
			c.declRequests[d] = Success
		} else {
			c.declRequests[d] = Failure
		}
	}
	return c.declRequests[d] == Success
}

func (c *TypeChecker) checkDecl(d ast.DeclID) {
	switch decl := c.ast.Decl(d).(type) {
	case *ast.ProductTypeDecl:
		c.checkGenericEnvironment(d)
		for _, m := range decl.Members {
			c.check(m)
		}
		model := c.selfTypeOf(d)
		c.checkConformanceList(d, model, decl.Conformances, false)

	case *ast.TraitDecl:
		if env := c.environment(d); env == nil {
			// Refinement cycle; members are skipped to avoid cascades.
			return
		}
		for _, m := range decl.Members {
			c.check(m)
		}

	case *ast.TypeAliasDecl:
		// Fully handled by realization.

	case *ast.BindingDecl:
		// Realization runs the whole check.

	case *ast.FunctionDecl:
		c.checkGenericEnvironment(d)
		t, ok := c.declTypes[d].(*types.LambdaType)
		if !ok {
			return
		}
		c.checkBody(d, decl.Body, t.Output, nil)

	case *ast.InitializerDecl:
		if decl.IsMemberwise {
			return
		}
		c.checkGenericEnvironment(d)
		c.checkBody(d, decl.Body, types.Void, nil)

	case *ast.MethodDecl:
		c.checkGenericEnvironment(d)
		for _, impl := range decl.Impls {
			c.check(impl)
		}

	case *ast.MethodImplDecl:
		t, ok := c.realize(d).(*types.LambdaType)
		if !ok {
			return
		}
		before := c.diags.ErrorCount()
		c.checkBody(d, decl.Body, t.Output, nil)
		mutating := decl.Introducer == ast.InoutEffect || decl.Introducer == ast.SetEffect
		if mutating && c.diags.ErrorCount() > before {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT017, c.siteOfDecl(d),
				"mutating bundle variant must return '(self, value)'",
			))
		}

	case *ast.SubscriptDecl:
		c.checkGenericEnvironment(d)
		for _, impl := range decl.Impls {
			c.check(impl)
		}

	case *ast.SubscriptImplDecl:
		t, ok := c.realize(d).(*types.SubscriptType)
		if !ok {
			return
		}
		c.checkBody(d, decl.Body, t.Output, t.Output)

	case *ast.ConformanceDecl:
		subject := c.realizeTypeExpr(decl.Subject)
		if isError(subject) {
			return
		}
		for _, m := range decl.Members {
			c.check(m)
		}
		c.checkConformanceList(d, subject, decl.Conformances, len(decl.WhereClauses) > 0)

	case *ast.ExtensionDecl:
		subject := c.realizeTypeExpr(decl.Subject)
		if isError(subject) {
			return
		}
		if _, builtin := types.Canonical(subject).(types.BuiltinType); builtin {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT016, c.siteOfDecl(d),
				fmt.Sprintf("cannot extend built-in type '%s'", subject),
			))
			return
		}
		for _, m := range decl.Members {
			c.check(m)
		}

	case *ast.OperatorDecl:
		// Operator overloading is not implemented: lookup diagnoses a
		// duplicate (notation, name) pair in the same module.
		s := c.program.ScopeOf(d)
		c.lookupOperator(decl.Name, decl.Notation, s)

	case *ast.NamespaceDecl:
		for _, m := range decl.Members {
			c.check(m)
		}

	default:
		c.realize(d)
	}
}

// checkBody verifies a block or expression body against the declared
// output. A single-expression body may alternatively have type Never.
func (c *TypeChecker) checkBody(d ast.DeclID, body ast.Body, output, yield types.Type) {
	switch body.Kind {
	case ast.BodyNone:
		return

	case ast.BodyBlock:
		ctx := bodyContext{returnType: output, yieldType: yield}
		c.checkStmt(body.Block, ctx)

	case ast.BodyExpr:
		useScope := c.program.ScopeOfExpr(body.Expr)
		run := c.newInference(useScope)
		t := run.infer(body.Expr, output)
		site := c.siteOfExpr(body.Expr)
		run.add(disjunctionConstraint([]ConstraintBranch{
			{Constraints: []Constraint{subtypingConstraint(t, output, site)}},
			{Constraints: []Constraint{equalityConstraint(t, types.Never, site)}, Penalty: 1},
		}, site))
		run.solveAndCommit(site)
	}
}

// bodyContext carries the return and yield types of the enclosing
// function-like body.
type bodyContext struct {
	returnType types.Type
	yieldType  types.Type
}

func (c *TypeChecker) checkStmt(s ast.StmtID, ctx bodyContext) {
	if s == ast.NoStmt {
		return
	}
	switch stmt := c.ast.Stmt(s).(type) {
	case *ast.BraceStmt:
		for _, child := range stmt.Stmts {
			c.checkStmt(child, ctx)
		}

	case *ast.AssignStmt:
		c.checkAssign(stmt)

	case *ast.CondStmt:
		c.checkConditions(stmt.Conditions)
		c.checkStmt(stmt.Success, ctx)
		c.checkStmt(stmt.Failure, ctx)

	case *ast.WhileStmt:
		c.checkConditions(stmt.Conditions)
		c.checkStmt(stmt.Body, ctx)

	case *ast.DoWhileStmt:
		c.checkStmt(stmt.Body, ctx)
		c.checkBoolCondition(stmt.Condition)

	case *ast.ReturnStmt:
		site := stmt.Site()
		if stmt.Value == ast.NoExpr {
			if !types.IsVoid(ctx.returnType) && !isError(ctx.returnType) {
				c.addDiag(diagnostics.NewError(
					diagnostics.ErrT004, site,
					fmt.Sprintf("missing return value of type '%s'", ctx.returnType),
				))
			}
			return
		}
		useScope := c.program.ScopeOfExpr(stmt.Value)
		run := c.newInference(useScope)
		t := run.infer(stmt.Value, ctx.returnType)
		run.add(subtypingConstraint(t, ctx.returnType, site))
		run.solveAndCommit(site)

	case *ast.YieldStmt:
		site := stmt.Site()
		yield := ctx.yieldType
		if yield == nil {
			yield = ctx.returnType
		}
		useScope := c.program.ScopeOfExpr(stmt.Value)
		run := c.newInference(useScope)
		t := run.infer(stmt.Value, yield)
		run.add(subtypingConstraint(t, yield, site))
		run.solveAndCommit(site)

	case *ast.ExprStmt:
		useScope := c.program.ScopeOfExpr(stmt.Expr)
		run := c.newInference(useScope)
		run.infer(stmt.Expr, nil)
		if _, ok := run.solveAndCommit(stmt.Site()); ok {
			t := c.exprTypes[stmt.Expr]
			if t != nil && !types.IsVoid(t) && !types.IsNever(t) && !isError(t) {
				c.addDiag(diagnostics.NewWarning(
					diagnostics.ErrT005, stmt.Site(),
					fmt.Sprintf("unused result of type '%s'", t),
				))
			}
		}

	case *ast.DiscardStmt:
		useScope := c.program.ScopeOfExpr(stmt.Expr)
		run := c.newInference(useScope)
		run.infer(stmt.Expr, nil)
		run.solveAndCommit(stmt.Site())

	case *ast.DeclStmt:
		c.check(stmt.Decl)
	}
}

// checkAssign requires the left side to conform to Sinkable and the right
// side to be a subtype of it.
func (c *TypeChecker) checkAssign(stmt *ast.AssignStmt) {
	site := stmt.Site()
	useScope := c.program.ScopeOfExpr(stmt.Left)
	run := c.newInference(useScope)
	left := run.infer(stmt.Left, nil)
	right := run.infer(stmt.Right, left)
	if sinkable := c.coreTrait("Sinkable", useScope); sinkable != nil {
		run.add(conformanceConstraint(left, []*types.TraitType{sinkable}, site))
	}
	run.add(subtypingConstraint(right, left, site))
	run.solveAndCommit(site)
}

func (c *TypeChecker) checkConditions(items []ast.ConditionItem) {
	for _, it := range items {
		if it.Binding != ast.NoDecl {
			c.check(it.Binding)
		} else {
			c.checkBoolCondition(it.Expr)
		}
	}
}

// checkBoolCondition types a condition expression as Bool.
func (c *TypeChecker) checkBoolCondition(e ast.ExprID) {
	if e == ast.NoExpr {
		return
	}
	site := c.siteOfExpr(e)
	useScope := c.program.ScopeOfExpr(e)
	run := c.newInference(useScope)
	t := run.infer(e, nil)
	if bool_ := c.coreType("Bool", useScope); bool_ != nil {
		run.add(equalityConstraint(t, bool_, site))
	}
	run.solveAndCommit(site)
}

// coreType resolves a core-library type by unqualified lookup.
func (c *TypeChecker) coreType(name string, useScope scope.ScopeID) types.Type {
	matches := c.lookupUnqualified(name, useScope)
	if len(matches) != 1 {
		return nil
	}
	if m, ok := c.realize(matches[0]).(*types.MetatypeType); ok && !isError(m.Instance) {
		return m.Instance
	}
	return nil
}

// coreTrait resolves a core-library trait by unqualified lookup.
func (c *TypeChecker) coreTrait(name string, useScope scope.ScopeID) *types.TraitType {
	t := c.coreType(name, useScope)
	if t == nil {
		return nil
	}
	if tr, ok := types.Canonical(t).(*types.TraitType); ok {
		return tr
	}
	return nil
}
