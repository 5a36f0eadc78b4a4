package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/types"
)

// realizeTypeExpr evaluates a type expression to the instance type it
// denotes, diagnosing failures and returning Error. For name expressions,
// the expression's type (a metatype) is recorded on success, along with
// the referred declaration when the name resolves to one.
func (c *TypeChecker) realizeTypeExpr(e ast.ExprID) types.Type {
	if e == ast.NoExpr {
		return types.Error
	}
	switch expr := c.ast.Expr(e).(type) {
	case *ast.NameExpr:
		t := c.realizeNameTypeExpr(e, expr)
		if !isError(t) {
			c.exprTypes[e] = types.MetatypeOf(t)
		}
		return t

	case *ast.ParameterTypeExpr:
		// A bare parameter type in type position keeps its convention.
		bare := c.realizeTypeExpr(expr.Bare)
		if isError(bare) {
			return types.Error
		}
		return &types.ParameterType{Convention: expr.Convention, Bare: bare}

	case *ast.LambdaTypeExpr:
		env := types.Type(types.Void)
		if expr.Environment != ast.NoExpr {
			env = c.realizeTypeExpr(expr.Environment)
		}
		inputs := make([]types.CallableParameter, 0, len(expr.Parameters))
		ok := !isError(env)
		for _, p := range expr.Parameters {
			pt := c.realizeParameterTypeExpr(p.Type)
			if isError(pt) {
				ok = false
			}
			inputs = append(inputs, types.CallableParameter{Label: p.Label, Type: pt})
		}
		output := c.realizeTypeExpr(expr.Output)
		if !ok || isError(output) {
			return types.Error
		}
		return &types.LambdaType{
			ReceiverEffect: expr.ReceiverEffect,
			Environment:    env,
			Inputs:         inputs,
			Output:         output,
		}

	case *ast.TupleTypeExpr:
		elems := make([]types.TupleElement, 0, len(expr.Elements))
		ok := true
		for _, el := range expr.Elements {
			t := c.realizeTypeExpr(el.Type)
			if isError(t) {
				ok = false
			}
			elems = append(elems, types.TupleElement{Label: el.Label, Type: t})
		}
		if !ok {
			return types.Error
		}
		return &types.TupleType{Elements: elems}

	case *ast.RemoteTypeExpr:
		bare := c.realizeTypeExpr(expr.Operand)
		if isError(bare) {
			return types.Error
		}
		return &types.RemoteType{Convention: expr.Convention, Bare: bare}

	case *ast.ConformanceLensTypeExpr:
		subject := c.realizeTypeExpr(expr.Subject)
		lens := c.realizeTypeExpr(expr.Lens)
		if isError(subject) || isError(lens) {
			return types.Error
		}
		if _, ok := types.Canonical(lens).(*types.TraitType); !ok {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT007, c.siteOfExpr(expr.Lens),
				fmt.Sprintf("conformance lens requires a trait, found '%s'", lens),
			))
			return types.Error
		}
		return &types.ConformanceLensType{Subject: subject, Lens: lens}

	default:
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT023, c.siteOfExpr(e),
			"expression does not denote a type",
		))
		return types.Error
	}
}

// realizeNameTypeExpr resolves a (possibly qualified) name in type
// position.
func (c *TypeChecker) realizeNameTypeExpr(e ast.ExprID, expr *ast.NameExpr) types.Type {
	useScope := c.program.ScopeOfExpr(e)

	if expr.Domain == ast.NoExpr {
		matches := c.lookupUnqualified(expr.Name.Stem, useScope)
		if len(matches) == 0 {
			return c.realizeMagicTypeName(e, expr, useScope)
		}
		return c.realizeNamedType(e, expr, matches, nil)
	}

	domain := c.realizeTypeExpr(expr.Domain)
	if isError(domain) {
		return types.Error
	}
	if b, ok := types.Canonical(domain).(types.BuiltinType); ok && b == types.BuiltinModule {
		return c.realizeBuiltinTypeName(e, expr)
	}
	matches := c.lookupMember(expr.Name.Stem, domain, useScope)
	if len(matches) == 0 {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT001, c.siteOfExpr(e),
			fmt.Sprintf("type '%s' has no member type '%s'", domain, expr.Name.Stem),
		))
		return types.Error
	}
	return c.realizeNamedType(e, expr, matches, domain)
}

// realizeNamedType turns lookup matches into an instance type, applying
// static arguments.
func (c *TypeChecker) realizeNamedType(e ast.ExprID, expr *ast.NameExpr, matches []ast.DeclID, domain types.Type) types.Type {
	if len(matches) > 1 {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT002, c.siteOfExpr(e),
			fmt.Sprintf("ambiguous use of '%s' in type position", expr.Name.Stem),
		))
		return types.Error
	}
	d := matches[0]
	t := c.realize(d)
	if isError(t) {
		return types.Error
	}

	var instance types.Type
	switch t := t.(type) {
	case *types.MetatypeType:
		instance = t.Instance
	case *types.GenericValueParameterType:
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT023, c.siteOfExpr(e),
			fmt.Sprintf("'%s' refers to a value, not a type", expr.Name.Stem),
		))
		return types.Error
	default:
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT023, c.siteOfExpr(e),
			fmt.Sprintf("'%s' refers to a value, not a type", expr.Name.Stem),
		))
		return types.Error
	}

	// Anchor associated types at the resolved domain.
	if at, ok := instance.(*types.AssociatedTypeType); ok && domain != nil {
		instance = &types.AssociatedTypeType{Decl: at.Decl, Domain: domain, Name: at.Name}
	}

	if c.program.IsMember(d) && domain != nil {
		c.referredDecls[e] = memberRef(d)
	} else {
		c.referredDecls[e] = directRef(d)
	}

	if len(expr.StaticArguments) == 0 {
		return instance
	}
	return c.applyStaticArguments(e, d, instance, expr.StaticArguments)
}

// applyStaticArguments builds a bound generic from explicit arguments,
// checking arity against the declaration's generic clause.
func (c *TypeChecker) applyStaticArguments(e ast.ExprID, d ast.DeclID, base types.Type, argExprs []ast.ExprID) types.Type {
	clause := c.genericClauseOf(d)
	if clause == nil || len(clause.Parameters) != len(argExprs) {
		want := 0
		if clause != nil {
			want = len(clause.Parameters)
		}
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT014, c.siteOfExpr(e),
			fmt.Sprintf("type '%s' expects %d generic argument(s), found %d", base, want, len(argExprs)),
		))
		return types.Error
	}
	args := make([]types.GenericArgument, 0, len(argExprs))
	for i, a := range argExprs {
		if _, isValue := c.realize(clause.Parameters[i]).(*types.GenericValueParameterType); isValue {
			// Value arguments stay symbolic until evaluation exists.
			args = append(args, types.GenericArgument{Value: &types.SymbolicValue{Expr: a}})
			continue
		}
		t := c.realizeTypeExpr(a)
		if isError(t) {
			return types.Error
		}
		args = append(args, types.GenericArgument{Type: t})
	}
	return &types.BoundGenericType{Base: base, Arguments: args}
}

func (c *TypeChecker) genericClauseOf(d ast.DeclID) *ast.GenericClause {
	switch decl := c.ast.Decl(d).(type) {
	case *ast.ProductTypeDecl:
		return decl.GenericClause
	case *ast.TypeAliasDecl:
		return decl.GenericClause
	case *ast.FunctionDecl:
		return decl.GenericClause
	case *ast.InitializerDecl:
		return decl.GenericClause
	case *ast.MethodDecl:
		return decl.GenericClause
	case *ast.SubscriptDecl:
		return decl.GenericClause
	default:
		return nil
	}
}

// realizeMagicTypeName resolves the built-in type names available when no
// declaration matches: Any, Never, Self, Metatype, Sum, Builtin.
func (c *TypeChecker) realizeMagicTypeName(e ast.ExprID, expr *ast.NameExpr, useScope scope.ScopeID) types.Type {
	switch expr.Name.Stem {
	case "Any":
		return types.Any

	case "Never":
		return types.Never

	case "Metatype":
		if len(expr.StaticArguments) != 1 {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT014, c.siteOfExpr(e),
				"'Metatype' expects exactly one generic argument",
			))
			return types.Error
		}
		inner := c.realizeTypeExpr(expr.StaticArguments[0])
		if isError(inner) {
			return types.Error
		}
		return types.MetatypeOf(inner)

	case "Sum":
		return c.realizeSumTypeName(e, expr)

	case "Builtin":
		if c.options.IsBuiltinModuleVisible {
			c.referredDecls[e] = DeclRef{Kind: BuiltinTypeRef, BuiltinName: "Builtin", BuiltinType: types.BuiltinModule}
			return types.BuiltinModule
		}

	case "Self":
		return c.realizeSelfTypeName(e, useScope)
	}

	c.addDiag(diagnostics.NewError(
		diagnostics.ErrT001, c.siteOfExpr(e),
		fmt.Sprintf("undefined name '%s'", expr.Name.Stem),
	))
	return types.Error
}

func (c *TypeChecker) realizeSumTypeName(e ast.ExprID, expr *ast.NameExpr) types.Type {
	switch len(expr.StaticArguments) {
	case 0:
		c.addDiag(diagnostics.NewWarning(
			diagnostics.ErrT018, c.siteOfExpr(e),
			"sum type with no elements is 'Never'",
		))
		return types.Never
	case 1:
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT019, c.siteOfExpr(e),
			"sum type must have at least two elements",
		))
		return types.Error
	}
	elems := make([]types.Type, 0, len(expr.StaticArguments))
	for _, a := range expr.StaticArguments {
		t := c.realizeTypeExpr(a)
		if isError(t) {
			return types.Error
		}
		if _, isValue := t.(*types.GenericValueParameterType); isValue {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT020, c.siteOfExpr(a),
				"sum type elements must be types, not values",
			))
			return types.Error
		}
		elems = append(elems, t)
	}
	return &types.SumType{Elements: elems}
}

// realizeSelfTypeName walks outward to the first type scope.
func (c *TypeChecker) realizeSelfTypeName(e ast.ExprID, useScope scope.ScopeID) types.Type {
	owner := c.program.InnermostType(useScope)
	if owner == ast.NoDecl {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT012, c.siteOfExpr(e),
			"'Self' is only available inside a type declaration",
		))
		return types.Error
	}
	t := c.selfTypeOf(owner)
	if isError(t) {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT012, c.siteOfExpr(e),
			"'Self' does not denote a type in this context",
		))
	}
	return t
}

var builtinTypeNames = map[string]types.BuiltinType{
	"ptr":    types.BuiltinPtr,
	"i1":     types.BuiltinI1,
	"i8":     types.BuiltinI8,
	"i16":    types.BuiltinI16,
	"i32":    types.BuiltinI32,
	"i64":    types.BuiltinI64,
	"word":   types.BuiltinWord,
	"half":   types.BuiltinHalf,
	"float":  types.BuiltinFloat,
	"double": types.BuiltinDouble,
}

func (c *TypeChecker) realizeBuiltinTypeName(e ast.ExprID, expr *ast.NameExpr) types.Type {
	if t, ok := builtinTypeNames[expr.Name.Stem]; ok {
		c.referredDecls[e] = DeclRef{Kind: BuiltinTypeRef, BuiltinName: expr.Name.Stem, BuiltinType: t}
		return t
	}
	c.addDiag(diagnostics.NewError(
		diagnostics.ErrT001, c.siteOfExpr(e),
		fmt.Sprintf("the Builtin module has no type '%s'", expr.Name.Stem),
	))
	return types.Error
}
