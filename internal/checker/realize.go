package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/types"
)

func isError(t types.Type) bool {
	return t != nil && types.FlagsOf(t).Has(types.HasError)
}

// realize computes the overarching type of a declaration, memoized through
// the request state machine. Re-entry during realization is a circular
// dependency: it is diagnosed once and the declaration's type becomes
// Error.
func (c *TypeChecker) realize(d ast.DeclID) types.Type {
	switch c.declRequests[d] {
	case TypeRealizationStarted:
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT003, c.siteOfDecl(d),
			fmt.Sprintf("circular dependency while realizing the type of '%s'", c.declNameString(d)),
		))
		c.declTypes[d] = types.Error
		c.declRequests[d] = Failure
		return types.Error
	case TypeRealizationCompleted, TypeCheckingStarted, Success, Failure:
		if t, ok := c.declTypes[d]; ok {
			return t
		}
		return types.Error
	}

	c.declRequests[d] = TypeRealizationStarted
	t := c.realizeDecl(d)
	if t == nil {
		t = types.Error
	}
	// A cycle detected beneath may have moved the state already.
	if c.declRequests[d] == TypeRealizationStarted {
		c.declTypes[d] = t
		c.declRequests[d] = TypeRealizationCompleted
	}
	return c.declTypes[d]
}

func (c *TypeChecker) realizeDecl(d ast.DeclID) types.Type {
	switch decl := c.ast.Decl(d).(type) {
	case *ast.ProductTypeDecl:
		return types.MetatypeOf(&types.ProductType{Decl: d, Name: decl.Identifier})

	case *ast.TraitDecl:
		return types.MetatypeOf(&types.TraitType{Decl: d, Name: decl.Identifier})

	case *ast.TypeAliasDecl:
		aliased := c.realizeTypeExpr(decl.Aliased)
		if isError(aliased) {
			return types.Error
		}
		return types.MetatypeOf(&types.TypeAliasType{Decl: d, Name: decl.Identifier, Aliased: aliased})

	case *ast.AssociatedTypeDecl:
		domain := c.traitSelfType(d)
		if domain == nil {
			return types.Error
		}
		return types.MetatypeOf(&types.AssociatedTypeType{Decl: d, Domain: domain, Name: decl.Identifier})

	case *ast.AssociatedValueDecl:
		domain := c.traitSelfType(d)
		if domain == nil {
			return types.Error
		}
		return &types.AssociatedValueType{Decl: d, Domain: domain, Name: decl.Identifier}

	case *ast.GenericParameterDecl:
		return c.realizeGenericParameter(d, decl)

	case *ast.BindingDecl:
		// Bindings have no realize/check split: realization runs the
		// whole check, which records the types of introduced variables.
		c.checkBinding(d, decl)
		if t, ok := c.declTypes[d]; ok {
			return t
		}
		return types.Error

	case *ast.VarDecl:
		// Populated transitively through the containing binding.
		if b, ok := c.program.VarToBinding(d); ok {
			c.realize(b)
			if t, ok := c.declTypes[d]; ok {
				return t
			}
		}
		return types.Error

	case *ast.ParameterDecl:
		return c.realizeParameter(d, decl, false)

	case *ast.FunctionDecl:
		return c.realizeFunction(d, decl)

	case *ast.InitializerDecl:
		return c.realizeInitializer(d, decl)

	case *ast.MethodDecl:
		return c.realizeMethodBundle(d, decl)

	case *ast.MethodImplDecl:
		return c.realizeMethodImpl(d, decl)

	case *ast.SubscriptDecl:
		return c.realizeSubscript(d, decl)

	case *ast.SubscriptImplDecl:
		return c.realizeSubscriptImpl(d, decl)

	case *ast.ConformanceDecl:
		subject := c.realizeTypeExpr(decl.Subject)
		if isError(subject) {
			return types.Error
		}
		return types.MetatypeOf(subject)

	case *ast.ExtensionDecl:
		subject := c.realizeTypeExpr(decl.Subject)
		if isError(subject) {
			return types.Error
		}
		return types.MetatypeOf(subject)

	case *ast.NamespaceDecl:
		return types.MetatypeOf(types.BuiltinModule)

	case *ast.OperatorDecl:
		return types.Void

	case *ast.ModuleDecl, *ast.TranslationUnit:
		return types.BuiltinModule

	default:
		return types.Error
	}
}

// traitSelfType returns the self-parameter type of the trait enclosing d.
func (c *TypeChecker) traitSelfType(d ast.DeclID) types.Type {
	s := c.program.ScopeOf(d)
	if s == scope.NoScope || c.program.Kind(s) != scope.TraitScope {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT024, c.siteOfDecl(d),
			"associated declarations may only appear inside a trait",
		))
		return nil
	}
	trait := c.ast.Decl(c.program.Introducer(s)).(*ast.TraitDecl)
	return &types.GenericTypeParameterType{Decl: trait.SelfParameter, Name: "Self"}
}

func (c *TypeChecker) realizeGenericParameter(d ast.DeclID, decl *ast.GenericParameterDecl) types.Type {
	if len(decl.Annotations) == 0 {
		return types.MetatypeOf(&types.GenericTypeParameterType{Decl: d, Name: decl.Identifier})
	}
	first := c.realizeTypeExpr(decl.Annotations[0])
	if _, isTrait := types.Canonical(first).(*types.TraitType); isTrait {
		return types.MetatypeOf(&types.GenericTypeParameterType{Decl: d, Name: decl.Identifier})
	}
	if len(decl.Annotations) > 1 {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT021, c.siteOfDecl(d),
			fmt.Sprintf("value parameter '%s' may have at most one annotation", decl.Identifier),
		))
		return types.Error
	}
	if isError(first) {
		return types.Error
	}
	return &types.GenericValueParameterType{Decl: d, Name: decl.Identifier, Ascription: first}
}

// realizeParameter realizes a parameter declaration to a ParameterType.
// Outside expression contexts an annotation is required.
func (c *TypeChecker) realizeParameter(d ast.DeclID, decl *ast.ParameterDecl, inExprContext bool) types.Type {
	if decl.Annotation == ast.NoExpr {
		if inExprContext {
			t := &types.ParameterType{Convention: ast.LetEffect, Bare: types.NewVariable()}
			c.declTypes[d] = t
			return t
		}
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT025, c.siteOfDecl(d),
			fmt.Sprintf("parameter '%s' requires a type annotation", decl.Identifier),
		))
		return types.Error
	}
	t := c.realizeParameterTypeExpr(decl.Annotation)
	if isError(t) {
		return types.Error
	}
	if !inExprContext && types.FlagsOf(t).Has(types.HasVariable) {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT025, c.siteOfDecl(d),
			fmt.Sprintf("type of parameter '%s' is not fully specified", decl.Identifier),
		))
		return types.Error
	}
	return t
}

// realizeParameterTypeExpr realizes an annotation in parameter position,
// defaulting the convention to 'let'.
func (c *TypeChecker) realizeParameterTypeExpr(e ast.ExprID) types.Type {
	if p, ok := c.ast.Expr(e).(*ast.ParameterTypeExpr); ok {
		bare := c.realizeTypeExpr(p.Bare)
		if isError(bare) {
			return types.Error
		}
		return &types.ParameterType{Convention: p.Convention, Bare: bare}
	}
	bare := c.realizeTypeExpr(e)
	if isError(bare) {
		return types.Error
	}
	return &types.ParameterType{Convention: ast.LetEffect, Bare: bare}
}

// receiverType returns the instance type of the innermost type declaration
// enclosing d, or nil.
func (c *TypeChecker) receiverType(d ast.DeclID) types.Type {
	s := c.program.ScopeOf(d)
	if s == scope.NoScope {
		return nil
	}
	owner := c.program.InnermostType(s)
	if owner == ast.NoDecl {
		return nil
	}
	return c.selfTypeOf(owner)
}

// selfTypeOf computes the type 'Self' denotes inside the given type-like
// declaration.
func (c *TypeChecker) selfTypeOf(owner ast.DeclID) types.Type {
	switch decl := c.ast.Decl(owner).(type) {
	case *ast.ProductTypeDecl:
		base := &types.ProductType{Decl: owner, Name: decl.Identifier}
		if decl.GenericClause != nil && len(decl.GenericClause.Parameters) > 0 {
			args := make([]types.GenericArgument, 0, len(decl.GenericClause.Parameters))
			for _, p := range decl.GenericClause.Parameters {
				args = append(args, types.GenericArgument{Type: c.genericParameterTerm(p)})
			}
			return &types.BoundGenericType{Base: base, Arguments: args}
		}
		return base
	case *ast.TraitDecl:
		return &types.GenericTypeParameterType{Decl: decl.SelfParameter, Name: "Self"}
	case *ast.ConformanceDecl:
		return c.realizeTypeExpr(decl.Subject)
	case *ast.ExtensionDecl:
		return c.realizeTypeExpr(decl.Subject)
	case *ast.TypeAliasDecl:
		t := c.realize(owner)
		if m, ok := t.(*types.MetatypeType); ok {
			return m.Instance
		}
	}
	return types.Error
}

// genericParameterTerm returns the term a generic parameter declaration
// denotes in type position.
func (c *TypeChecker) genericParameterTerm(p ast.DeclID) types.Type {
	t := c.realize(p)
	switch t := t.(type) {
	case *types.MetatypeType:
		return t.Instance
	case *types.GenericValueParameterType:
		return t
	default:
		return types.Error
	}
}

// environmentElements assembles the environment tuple of a function-like
// declaration: the receiver projection followed by explicit then implicit
// captures.
func (c *TypeChecker) environmentElements(d ast.DeclID, receiverEffect ast.AccessEffect, isStatic bool, explicitCaptures []ast.DeclID) ([]types.TupleElement, bool) {
	var elems []types.TupleElement
	ok := true

	if !isStatic && c.program.IsNonStaticMember(d) {
		recv := c.receiverType(d)
		if recv == nil || isError(recv) {
			ok = false
		} else {
			var projected types.Type
			switch receiverEffect {
			case ast.SinkEffect:
				projected = recv
			default:
				projected = &types.RemoteType{Convention: receiverEffect, Bare: recv}
			}
			elems = append(elems, types.TupleElement{Label: "self", Type: projected})
		}
	}

	seen := make(map[string]bool)
	for _, cap := range explicitCaptures {
		binding, isBinding := c.ast.Decl(cap).(*ast.BindingDecl)
		if !isBinding {
			continue
		}
		t := c.realize(cap)
		if isError(t) {
			ok = false
			continue
		}
		for _, v := range c.variablesIntroducedBy(cap) {
			name, _ := c.ast.DeclName(v)
			if seen[name.Stem] {
				c.addDiag(diagnostics.NewError(
					diagnostics.ErrT009, c.siteOfDecl(cap),
					fmt.Sprintf("duplicate capture name '%s'", name.Stem),
				))
				ok = false
				continue
			}
			seen[name.Stem] = true
			vt, found := c.declTypes[v]
			if !found || isError(vt) {
				ok = false
				continue
			}
			var element types.Type
			switch binding.Introducer {
			case ast.LetBinding:
				element = &types.RemoteType{Convention: ast.LetEffect, Bare: vt}
			case ast.InoutBinding:
				element = &types.RemoteType{Convention: ast.InoutEffect, Bare: vt}
			default: // sink let, var
				element = vt
			}
			elems = append(elems, types.TupleElement{Label: name.Stem, Type: element})
		}
	}

	if c.program.IsLocal(d) {
		captures := c.collectCaptures(d)
		c.implicitCaptures[d] = captures
		for _, cap := range captures {
			if seen[cap.Name] {
				continue
			}
			seen[cap.Name] = true
			t := c.realize(cap.Decl)
			if pt, isParam := t.(*types.ParameterType); isParam {
				t = pt.Bare
			}
			if isError(t) {
				ok = false
				continue
			}
			elems = append(elems, types.TupleElement{
				Label: cap.Name,
				Type:  &types.RemoteType{Convention: cap.Effect, Bare: t},
			})
		}
	}

	return elems, ok
}

// variablesIntroducedBy lists the variable declarations of a binding's
// pattern in source order.
func (c *TypeChecker) variablesIntroducedBy(b ast.DeclID) []ast.DeclID {
	binding, ok := c.ast.Decl(b).(*ast.BindingDecl)
	if !ok {
		return nil
	}
	var out []ast.DeclID
	var walk func(ast.PatternID)
	walk = func(id ast.PatternID) {
		switch p := c.ast.Pattern(id).(type) {
		case *ast.BindingPattern:
			walk(p.Subpattern)
		case *ast.NamePattern:
			out = append(out, p.Variable)
		case *ast.TuplePattern:
			for _, e := range p.Elements {
				walk(e.Pattern)
			}
		}
	}
	walk(binding.Pattern)
	return out
}

func (c *TypeChecker) realizeInputs(d ast.DeclID, params []ast.DeclID, inExprContext bool) ([]types.CallableParameter, bool) {
	inputs := make([]types.CallableParameter, 0, len(params))
	seen := make(map[string]bool)
	ok := true
	for _, p := range params {
		pd := c.ast.Decl(p).(*ast.ParameterDecl)
		if pd.Identifier != "" {
			if seen[pd.Identifier] {
				c.addDiag(diagnostics.NewError(
					diagnostics.ErrT008, c.siteOfDecl(p),
					fmt.Sprintf("duplicate parameter name '%s'", pd.Identifier),
				))
				ok = false
			}
			seen[pd.Identifier] = true
		}
		t := c.realizeParameter(p, pd, inExprContext)
		c.declTypes[p] = t
		if c.declRequests[p] < TypeRealizationCompleted {
			c.declRequests[p] = TypeRealizationCompleted
		}
		if isError(t) {
			ok = false
		}
		inputs = append(inputs, types.CallableParameter{Label: pd.Label, Type: t})
	}
	return inputs, ok
}

func (c *TypeChecker) realizeFunction(d ast.DeclID, decl *ast.FunctionDecl) types.Type {
	inputs, inputsOK := c.realizeInputs(d, decl.Parameters, decl.IsInExprContext)

	var output types.Type
	switch {
	case decl.Output != ast.NoExpr:
		output = c.realizeTypeExpr(decl.Output)
	case decl.IsInExprContext:
		output = types.NewVariable()
	default:
		output = types.Void
	}

	elems, envOK := c.environmentElements(d, decl.ReceiverEffect, decl.IsStatic, decl.ExplicitCaptures)
	if !inputsOK || !envOK || isError(output) {
		return types.Error
	}
	return &types.LambdaType{
		ReceiverEffect: decl.ReceiverEffect,
		Environment:    &types.TupleType{Elements: elems},
		Inputs:         inputs,
		Output:         output,
	}
}

func (c *TypeChecker) realizeInitializer(d ast.DeclID, decl *ast.InitializerDecl) types.Type {
	recv := c.receiverType(d)
	if recv == nil || isError(recv) {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT024, c.siteOfDecl(d),
			"initializers may only appear inside a type declaration",
		))
		return types.Error
	}
	selfInput := types.CallableParameter{
		Label: "self",
		Type:  &types.ParameterType{Convention: ast.SetEffect, Bare: recv},
	}

	if decl.IsMemberwise {
		inputs := []types.CallableParameter{selfInput}
		owner := c.program.InnermostType(c.program.ScopeOf(d))
		product, ok := c.ast.Decl(owner).(*ast.ProductTypeDecl)
		if !ok {
			return types.Error
		}
		for _, m := range product.Members {
			binding, isBinding := c.ast.Decl(m).(*ast.BindingDecl)
			if !isBinding || binding.IsStatic {
				continue
			}
			c.realize(m)
			for _, v := range c.variablesIntroducedBy(m) {
				vt, found := c.declTypes[v]
				if !found {
					vt = types.Error
				}
				name, _ := c.ast.DeclName(v)
				inputs = append(inputs, types.CallableParameter{
					Label: name.Stem,
					Type:  &types.ParameterType{Convention: ast.SinkEffect, Bare: vt},
				})
			}
		}
		return &types.LambdaType{Environment: types.Void, Inputs: inputs, Output: types.Void}
	}

	inputs, ok := c.realizeInputs(d, decl.Parameters, false)
	if !ok {
		return types.Error
	}
	return &types.LambdaType{
		Environment: types.Void,
		Inputs:      append([]types.CallableParameter{selfInput}, inputs...),
		Output:      types.Void,
	}
}

func (c *TypeChecker) realizeMethodBundle(d ast.DeclID, decl *ast.MethodDecl) types.Type {
	inputs, inputsOK := c.realizeInputs(d, decl.Parameters, false)
	var output types.Type = types.Void
	if decl.Output != ast.NoExpr {
		output = c.realizeTypeExpr(decl.Output)
	}
	recv := c.receiverType(d)
	if recv == nil {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT024, c.siteOfDecl(d),
			"method bundles may only appear inside a type declaration",
		))
		return types.Error
	}
	var caps ast.AccessEffectSet
	for _, impl := range decl.Impls {
		if mi, ok := c.ast.Decl(impl).(*ast.MethodImplDecl); ok {
			caps = caps.Inserting(mi.Introducer)
		}
	}
	if !inputsOK || isError(output) || isError(recv) {
		return types.Error
	}
	return &types.MethodType{Capabilities: caps, Receiver: recv, Inputs: inputs, Output: output}
}

// realizeMethodImpl derives the variant lambda of one bundle variant.
func (c *TypeChecker) realizeMethodImpl(d ast.DeclID, decl *ast.MethodImplDecl) types.Type {
	bundleScope := c.program.ScopeOf(d)
	bundleDecl := c.program.Introducer(bundleScope)
	bundle, ok := c.realize(bundleDecl).(*types.MethodType)
	if !ok {
		return types.Error
	}

	var env types.Type
	var output types.Type
	switch decl.Introducer {
	case ast.SinkEffect:
		env = &types.TupleType{Elements: []types.TupleElement{{Label: "self", Type: bundle.Receiver}}}
		output = bundle.Output
	case ast.InoutEffect, ast.SetEffect:
		env = &types.TupleType{Elements: []types.TupleElement{{
			Label: "self",
			Type:  &types.RemoteType{Convention: decl.Introducer, Bare: bundle.Receiver},
		}}}
		// Mutating variants produce the updated receiver with the value.
		output = &types.TupleType{Elements: []types.TupleElement{
			{Label: "self", Type: bundle.Receiver},
			{Label: "value", Type: bundle.Output},
		}}
	default:
		env = &types.TupleType{Elements: []types.TupleElement{{
			Label: "self",
			Type:  &types.RemoteType{Convention: ast.LetEffect, Bare: bundle.Receiver},
		}}}
		output = bundle.Output
	}
	return &types.LambdaType{
		ReceiverEffect: decl.Introducer,
		Environment:    env,
		Inputs:         bundle.Inputs,
		Output:         output,
	}
}

func (c *TypeChecker) realizeSubscript(d ast.DeclID, decl *ast.SubscriptDecl) types.Type {
	var inputs []types.CallableParameter
	inputsOK := true
	if !decl.IsProperty {
		inputs, inputsOK = c.realizeInputs(d, decl.Parameters, false)
	}
	if decl.Output == ast.NoExpr {
		c.addDiag(diagnostics.NewError(
			diagnostics.ErrT025, c.siteOfDecl(d),
			"subscript requires an output type annotation",
		))
		return types.Error
	}
	output := c.realizeTypeExpr(decl.Output)

	var caps ast.AccessEffectSet
	for _, impl := range decl.Impls {
		if si, ok := c.ast.Decl(impl).(*ast.SubscriptImplDecl); ok {
			caps = caps.Inserting(si.Introducer)
		}
	}
	elems, envOK := c.environmentElements(d, ast.LetEffect, false, decl.ExplicitCaptures)
	if !inputsOK || !envOK || isError(output) {
		return types.Error
	}
	return &types.SubscriptType{
		IsProperty:   decl.IsProperty,
		Capabilities: caps,
		Environment:  &types.TupleType{Elements: elems},
		Inputs:       inputs,
		Output:       output,
	}
}

func (c *TypeChecker) realizeSubscriptImpl(d ast.DeclID, decl *ast.SubscriptImplDecl) types.Type {
	subscriptScope := c.program.ScopeOf(d)
	subscriptDecl := c.program.Introducer(subscriptScope)
	sub, ok := c.realize(subscriptDecl).(*types.SubscriptType)
	if !ok {
		return types.Error
	}
	return &types.SubscriptType{
		IsProperty:   sub.IsProperty,
		Capabilities: ast.EffectSet(decl.Introducer),
		Environment:  sub.Environment,
		Inputs:       sub.Inputs,
		Output:       sub.Output,
	}
}
