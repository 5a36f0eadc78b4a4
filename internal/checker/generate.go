package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/source"
	"github.com/C-BJ/val/internal/types"
)

// deferredQuery is a typing obligation scheduled during constraint
// generation and drained after the solver returns.
type deferredQuery func(sol *solution) bool

// inferenceRun accumulates the constraints of one expression-inference
// request, solves them, and commits the solution to the checker.
type inferenceRun struct {
	c        *TypeChecker
	useScope scope.ScopeID

	constraints []Constraint
	exprTypes   map[ast.ExprID]types.Type
	fixedRefs   map[ast.ExprID]DeclRef
	deferred    []deferredQuery
	failed      bool
}

func (c *TypeChecker) newInference(useScope scope.ScopeID) *inferenceRun {
	return &inferenceRun{
		c:         c,
		useScope:  useScope,
		exprTypes: make(map[ast.ExprID]types.Type),
		fixedRefs: make(map[ast.ExprID]DeclRef),
	}
}

func (r *inferenceRun) add(con Constraint) {
	r.constraints = append(r.constraints, con)
}

func (r *inferenceRun) defer_(q deferredQuery) {
	r.deferred = append(r.deferred, q)
}

// solveAndCommit solves the accumulated constraints, substitutes the
// solution into every inferred type, records name bindings, and drains
// deferred queries. It reports whether the chosen solution has no error.
func (r *inferenceRun) solveAndCommit(site source.Site) (*solution, bool) {
	sol := r.c.solve(r.constraints, r.useScope, site)
	for e, t := range r.exprTypes {
		r.c.exprTypes[e] = sol.reify(t)
	}
	for e, ref := range r.fixedRefs {
		r.c.referredDecls[e] = ref
	}
	for e, ref := range sol.bindings {
		r.c.referredDecls[e] = ref
	}
	r.c.diags.InsertAll(sol.diags)
	ok := !r.failed
	for _, d := range sol.diags {
		if d.Severity == diagnostics.SeverityError {
			ok = false
		}
	}
	for _, q := range r.deferred {
		if !q(sol) {
			ok = false
		}
	}
	return sol, ok
}

func (r *inferenceRun) scopeOf(e ast.ExprID) scope.ScopeID {
	if s := r.c.program.ScopeOfExpr(e); s != scope.NoScope {
		return s
	}
	return r.useScope
}

// infer walks an expression, emitting constraints, and returns the
// expression's (possibly variable) type. expected is a top-down hint; it
// may be nil.
func (r *inferenceRun) infer(e ast.ExprID, expected types.Type) types.Type {
	if e == ast.NoExpr {
		return types.Error
	}
	t := r.inferExpr(e, expected)
	if t == nil {
		t = types.Error
	}
	r.exprTypes[e] = t
	if r.c.shouldTrace(r.c.siteOfExpr(e)) {
		r.c.trace(r.c.siteOfExpr(e), "inferred", "expr", int(e), "type", t.String())
	}
	return t
}

func (r *inferenceRun) inferExpr(e ast.ExprID, expected types.Type) types.Type {
	site := r.c.siteOfExpr(e)
	switch expr := r.c.ast.Expr(e).(type) {
	case *ast.BooleanLiteralExpr:
		return r.literalType(e, "Bool", "ExpressibleByBooleanLiteral", expected, site)
	case *ast.IntegerLiteralExpr:
		return r.literalType(e, "Int", "ExpressibleByIntegerLiteral", expected, site)
	case *ast.FloatLiteralExpr:
		return r.literalType(e, "Double", "ExpressibleByFloatLiteral", expected, site)
	case *ast.StringLiteralExpr:
		return r.literalType(e, "String", "ExpressibleByStringLiteral", expected, site)

	case *ast.NameExpr:
		return r.inferName(e, expr, expected, site)

	case *ast.CallExpr:
		return r.inferCall(e, expr, expected, site)

	case *ast.SubscriptCallExpr:
		return r.inferSubscriptCall(e, expr, site)

	case *ast.LambdaExpr:
		return r.inferLambda(e, expr, expected, site)

	case *ast.CastExpr:
		target := r.c.realizeTypeExpr(expr.Target)
		subject := r.infer(expr.Subject, nil)
		switch expr.Direction {
		case ast.UpCast:
			r.add(subtypingConstraint(subject, target, site))
		case ast.DownCast:
			// Checked dynamically; no static obligation on the subject.
		case ast.PointerConversion:
			r.add(equalityConstraint(subject, types.BuiltinPtr, site))
		}
		return target

	case *ast.InoutExpr:
		// Mutable use; capture analysis reads the marker from the AST.
		return r.infer(expr.Subject, expected)

	case *ast.SequenceExpr:
		folded := r.c.foldedSequence(e, expr)
		if folded == nil {
			return types.Error
		}
		return r.inferFolded(folded, expected)

	case *ast.TupleExpr:
		return r.inferTuple(e, expr, expected)

	case *ast.CondExpr:
		return r.inferCond(e, expr, expected, site)

	default:
		// A type expression in value position denotes its metatype.
		t := r.c.realizeTypeExpr(e)
		if isError(t) {
			return types.Error
		}
		return types.MetatypeOf(t)
	}
}

// literalType constrains a literal to its core type, defaulting unless the
// context forces a conforming type.
func (r *inferenceRun) literalType(e ast.ExprID, typeName, traitName string, expected types.Type, site source.Site) types.Type {
	s := r.scopeOf(e)
	deflt := r.c.coreType(typeName, s)
	if deflt == nil {
		// No core library in scope; the literal stays untyped.
		return types.NewVariable()
	}
	trait := r.c.coreTrait(traitName, s)
	if expected == nil || trait == nil {
		return deflt
	}
	t := types.NewVariable()
	r.add(equalityConstraint(t, expected, site))
	r.add(literalConstraint(t, deflt, trait, site))
	return t
}

// inferName resolves the nominal prefix of a (possibly dotted) name and
// emits overload and member constraints for what remains.
func (r *inferenceRun) inferName(e ast.ExprID, expr *ast.NameExpr, expected types.Type, site source.Site) types.Type {
	// A non-name domain is inferred as an ordinary expression; the member
	// is then resolved by the solver.
	if expr.Domain != ast.NoExpr {
		if _, isName := r.c.ast.Expr(expr.Domain).(*ast.NameExpr); !isName {
			base := r.infer(expr.Domain, nil)
			t := types.NewVariable()
			r.add(memberConstraint(base, expr.Name.Stem, t, e, site))
			return t
		}
	}

	res := r.c.resolveName(e)
	if res.failed {
		r.failed = true
		return types.Error
	}

	var lastType types.Type = types.Error
	for _, comp := range res.resolved {
		compSite := r.c.siteOfExpr(comp.expr)
		if len(comp.candidates) == 1 {
			cand := comp.candidates[0]
			r.fixedRefs[comp.expr] = cand.Reference
			for _, con := range cand.Constraints {
				r.add(con)
			}
			r.exprTypes[comp.expr] = cand.Type
			lastType = cand.Type
			continue
		}
		tv := types.NewVariable()
		choices := make([]OverloadChoice, 0, len(comp.candidates))
		for _, cand := range comp.candidates {
			choices = append(choices, OverloadChoice{
				Reference:   cand.Reference,
				Type:        cand.Type,
				Constraints: cand.Constraints,
			})
		}
		con := overloadConstraint(comp.expr, choices, compSite)
		con.Left = tv
		r.add(con)
		r.exprTypes[comp.expr] = tv
		lastType = tv
	}

	for _, suffix := range res.unresolved {
		ne := r.c.ast.Expr(suffix).(*ast.NameExpr)
		tv := types.NewVariable()
		r.add(memberConstraint(lastType, ne.Name.Stem, tv, suffix, r.c.siteOfExpr(suffix)))
		r.exprTypes[suffix] = tv
		lastType = tv
	}
	return lastType
}

func argSiteOf(c *TypeChecker, a ast.LabeledArgument) source.Site {
	return c.siteOfExpr(a.Value)
}

// inferCall types a function call, dispatching on what is known about the
// callee.
func (r *inferenceRun) inferCall(e ast.ExprID, expr *ast.CallExpr, expected types.Type, site source.Site) types.Type {
	calleeT := r.infer(expr.Callee, nil)

	switch callee := types.Canonical(calleeT).(type) {
	case *types.LambdaType:
		return r.applyCallable(e, expr.Arguments, callee.Inputs, callee.Output, site)

	case *types.MethodType:
		return r.applyCallable(e, expr.Arguments, callee.Inputs, callee.Output, site)

	case *types.MetatypeType:
		return r.inferInitCall(e, expr, callee.Instance, site)

	case *types.ErrorType:
		return types.Error

	default:
		if isTypeVariable(calleeT) || types.FlagsOf(calleeT).Has(types.HasVariable) {
			inputs := make([]types.CallableParameter, 0, len(expr.Arguments))
			for _, a := range expr.Arguments {
				at := r.infer(a.Value, nil)
				inputs = append(inputs, types.CallableParameter{Label: a.Label, Type: at})
			}
			out := types.NewVariable()
			if expected != nil {
				r.add(equalityConstraint(out, expected, site))
			}
			r.add(functionCallConstraint(calleeT, inputs, out, site))
			return out
		}
		r.c.addDiag(diagnostics.NewError(
			diagnostics.ErrT013, site,
			fmt.Sprintf("cannot call value of non-callable type '%s'", calleeT),
		))
		r.failed = true
		return types.Error
	}
}

// applyCallable checks labels and visits arguments under their parameter
// types.
func (r *inferenceRun) applyCallable(e ast.ExprID, args []ast.LabeledArgument, inputs []types.CallableParameter, output types.Type, site source.Site) types.Type {
	if !labelsMatch(args, inputs) {
		r.c.addDiag(diagnostics.NewError(
			diagnostics.ErrT015, site,
			fmt.Sprintf("mismatched argument labels: expected %s, found %s", labelList(inputs), argLabelList(args)),
		))
		r.failed = true
		return types.Error
	}
	for i, a := range args {
		expectedArg := bareOf(inputs[i].Type)
		at := r.infer(a.Value, expectedArg)
		r.add(parameterConstraint(at, inputs[i].Type, argSiteOf(r.c, a)))
	}
	return output
}

func bareOf(t types.Type) types.Type {
	if pt, ok := t.(*types.ParameterType); ok {
		return pt.Bare
	}
	return t
}

func labelsMatch(args []ast.LabeledArgument, inputs []types.CallableParameter) bool {
	if len(args) != len(inputs) {
		return false
	}
	for i := range args {
		if args[i].Label != inputs[i].Label {
			return false
		}
	}
	return true
}

func labelList(inputs []types.CallableParameter) string {
	out := "("
	for i, p := range inputs {
		if i > 0 {
			out += ", "
		}
		if p.Label == "" {
			out += "_:"
		} else {
			out += p.Label + ":"
		}
	}
	return out + ")"
}

func argLabelList(args []ast.LabeledArgument) string {
	out := "("
	for i, a := range args {
		if i > 0 {
			out += ", "
		}
		if a.Label == "" {
			out += "_:"
		} else {
			out += a.Label + ":"
		}
	}
	return out + ")"
}

// inferInitCall rewrites a call on a nominal metatype into a call to its
// initializers, dropping the implicit 'self' input.
func (r *inferenceRun) inferInitCall(e ast.ExprID, expr *ast.CallExpr, instance types.Type, site source.Site) types.Type {
	if _, isName := r.c.ast.Expr(expr.Callee).(*ast.NameExpr); !isName {
		r.c.addDiag(diagnostics.NewError(
			diagnostics.ErrT013, site,
			fmt.Sprintf("cannot call value of type '%s'", types.MetatypeOf(instance)),
		))
		r.failed = true
		return types.Error
	}
	useScope := r.scopeOf(e)
	var ctors []Candidate
	for _, d := range r.c.lookupMember("init", instance, useScope) {
		t := r.c.realize(d)
		lt, ok := t.(*types.LambdaType)
		if !ok || len(lt.Inputs) == 0 {
			continue
		}
		shape, cons := r.c.instantiate(&types.LambdaType{
			Environment: lt.Environment,
			Inputs:      lt.Inputs[1:],
			Output:      instance,
		}, d, useScope, site)
		ctors = append(ctors, Candidate{Reference: memberRef(d), Type: shape, Constraints: cons})
	}
	if len(ctors) == 0 {
		r.c.addDiag(diagnostics.NewError(
			diagnostics.ErrT001, site,
			fmt.Sprintf("type '%s' has no initializer", instance),
		))
		r.failed = true
		return types.Error
	}

	matching := ctors[:0:0]
	for _, ctor := range ctors {
		if lt, ok := types.Canonical(ctor.Type).(*types.LambdaType); ok && labelsMatch(expr.Arguments, lt.Inputs) {
			matching = append(matching, ctor)
		}
	}
	if len(matching) == 0 {
		r.c.addDiag(diagnostics.NewError(
			diagnostics.ErrT015, site,
			fmt.Sprintf("no initializer of '%s' matches the argument labels %s", instance, argLabelList(expr.Arguments)),
		))
		r.failed = true
		return types.Error
	}
	if len(matching) == 1 {
		ctor := matching[0]
		r.fixedRefs[expr.Callee] = ctor.Reference
		for _, con := range ctor.Constraints {
			r.add(con)
		}
		lt := types.Canonical(ctor.Type).(*types.LambdaType)
		return r.applyCallable(e, expr.Arguments, lt.Inputs, lt.Output, site)
	}

	tv := types.NewVariable()
	choices := make([]OverloadChoice, 0, len(matching))
	for _, ctor := range matching {
		choices = append(choices, OverloadChoice{Reference: ctor.Reference, Type: ctor.Type, Constraints: ctor.Constraints})
	}
	con := overloadConstraint(expr.Callee, choices, site)
	con.Left = tv
	r.add(con)

	inputs := make([]types.CallableParameter, 0, len(expr.Arguments))
	for _, a := range expr.Arguments {
		at := r.infer(a.Value, nil)
		inputs = append(inputs, types.CallableParameter{Label: a.Label, Type: at})
	}
	out := types.NewVariable()
	r.add(functionCallConstraint(tv, inputs, out, site))
	return out
}

// inferSubscriptCall types a subscript application.
func (r *inferenceRun) inferSubscriptCall(e ast.ExprID, expr *ast.SubscriptCallExpr, site source.Site) types.Type {
	calleeT := r.infer(expr.Callee, nil)

	switch callee := types.Canonical(calleeT).(type) {
	case *types.SubscriptType:
		return r.applyCallable(e, expr.Arguments, callee.Inputs, callee.Output, site)

	case *types.MetatypeType:
		// Buffer-type sugar on a nominal metatype awaits symbolic
		// evaluation.
		r.c.addDiag(diagnostics.NewError(
			diagnostics.ErrT030, site,
			"buffer-type expressions are not implemented",
		))
		r.failed = true
		return types.Error

	case *types.ErrorType:
		return types.Error

	default:
		if types.FlagsOf(calleeT).Has(types.HasVariable) {
			inputs := make([]types.CallableParameter, 0, len(expr.Arguments))
			for _, a := range expr.Arguments {
				at := r.infer(a.Value, nil)
				inputs = append(inputs, types.CallableParameter{Label: a.Label, Type: at})
			}
			out := types.NewVariable()
			r.add(functionCallConstraint(calleeT, inputs, out, site))
			return out
		}
		r.c.addDiag(diagnostics.NewError(
			diagnostics.ErrT013, site,
			fmt.Sprintf("cannot subscript value of non-subscript type '%s'", calleeT),
		))
		r.failed = true
		return types.Error
	}
}

// inferLambda realizes the underlying declaration eagerly, matching an
// expected lambda type if present, and defers the body check.
func (r *inferenceRun) inferLambda(e ast.ExprID, expr *ast.LambdaExpr, expected types.Type, site source.Site) types.Type {
	underlying := expr.Decl
	decl, ok := r.c.ast.Decl(underlying).(*ast.FunctionDecl)
	if !ok {
		return types.Error
	}

	var expectedLambda *types.LambdaType
	if expected != nil {
		if lt, ok := types.Canonical(expected).(*types.LambdaType); ok {
			expectedLambda = lt
			if len(lt.Inputs) != len(decl.Parameters) {
				r.c.addDiag(diagnostics.NewError(
					diagnostics.ErrT015, site,
					fmt.Sprintf("lambda takes %d parameter(s), context expects %d", len(decl.Parameters), len(lt.Inputs)),
				))
				r.failed = true
				return types.Error
			}
		}
	}

	lt := r.c.realizeLambda(underlying, decl, expectedLambda)
	if lt == nil {
		return types.Error
	}

	// When the declared return type is unknown and the body is a single
	// expression, the body constrains the output directly at check time.
	r.defer_(func(sol *solution) bool {
		reified := sol.reify(lt)
		r.c.declTypes[underlying] = reified
		if rl, ok := reified.(*types.LambdaType); ok {
			for i, p := range decl.Parameters {
				r.c.declTypes[p] = sol.reify(rl.Inputs[i].Type)
			}
		}
		return r.c.check(underlying)
	})
	return lt
}

func (r *inferenceRun) inferTuple(e ast.ExprID, expr *ast.TupleExpr, expected types.Type) types.Type {
	var expectedTuple *types.TupleType
	if expected != nil {
		if tt, ok := types.Canonical(expected).(*types.TupleType); ok && len(tt.Elements) == len(expr.Elements) {
			match := true
			for i := range tt.Elements {
				if tt.Elements[i].Label != expr.Elements[i].Label {
					match = false
					break
				}
			}
			if match {
				expectedTuple = tt
			}
		}
	}
	elems := make([]types.TupleElement, 0, len(expr.Elements))
	for i, el := range expr.Elements {
		var hint types.Type
		if expectedTuple != nil {
			hint = expectedTuple.Elements[i].Type
		}
		t := r.infer(el.Value, hint)
		elems = append(elems, types.TupleElement{Label: el.Label, Type: t})
	}
	return &types.TupleType{Elements: elems}
}

func (r *inferenceRun) inferCond(e ast.ExprID, expr *ast.CondExpr, expected types.Type, site source.Site) types.Type {
	for _, it := range expr.Conditions {
		if it.Binding != ast.NoDecl {
			r.defer_(func(sol *solution) bool { return r.c.check(it.Binding) })
			continue
		}
		ct := r.infer(it.Expr, nil)
		if bool_ := r.c.coreType("Bool", r.scopeOf(it.Expr)); bool_ != nil {
			r.add(equalityConstraint(ct, bool_, r.c.siteOfExpr(it.Expr)))
		}
	}

	// Branches unify only when both are expression branches.
	if expr.Success.Kind == ast.ExprBranch && expr.Failure.Kind == ast.ExprBranch {
		t := types.NewVariable()
		st := r.infer(expr.Success.Expr, expected)
		ft := r.infer(expr.Failure.Expr, expected)
		r.add(equalityConstraint(st, t, site))
		r.add(equalityConstraint(ft, t, site))
		return t
	}
	if expr.Success.Kind == ast.ExprBranch {
		r.infer(expr.Success.Expr, nil)
	} else if expr.Success.Kind == ast.BlockBranch {
		r.defer_(func(sol *solution) bool {
			r.c.checkStmt(expr.Success.Block, bodyContext{returnType: types.Void})
			return true
		})
	}
	if expr.Failure.Kind == ast.ExprBranch {
		r.infer(expr.Failure.Expr, nil)
	} else if expr.Failure.Kind == ast.BlockBranch {
		r.defer_(func(sol *solution) bool {
			r.c.checkStmt(expr.Failure.Block, bodyContext{returnType: types.Void})
			return true
		})
	}
	return types.Void
}

// inferFolded types a folded sequence node: the left operand's
// operator-name member is the callee applied to the right operand.
func (r *inferenceRun) inferFolded(f *FoldedSequence, expected types.Type) types.Type {
	if f.IsLeaf() {
		return r.infer(f.Leaf, expected)
	}
	lt := r.inferFolded(f.Left, nil)
	rt := r.inferFolded(f.Right, nil)

	op := r.c.ast.Expr(f.Operator).(*ast.NameExpr)
	site := r.c.siteOfExpr(f.Operator)

	callee := types.NewVariable()
	r.add(memberConstraint(lt, op.Name.Stem, callee, f.Operator, site))
	r.exprTypes[f.Operator] = callee

	out := types.NewVariable()
	r.add(functionCallConstraint(callee, []types.CallableParameter{{Type: rt}}, out, site))
	return out
}
