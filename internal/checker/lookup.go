package checker

import (
	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/types"
)

// isOverloadable reports whether a declaration may share its name with
// others. Only function-kind declarations overload; any other match
// freezes lookup at its scope.
func (c *TypeChecker) isOverloadable(d ast.DeclID) bool {
	switch c.ast.Decl(d).Kind() {
	case ast.KindFunctionDecl, ast.KindMethodDecl, ast.KindInitializerDecl, ast.KindSubscriptDecl:
		return true
	}
	return false
}

// namesIntroducedIn maps each name introduced in a scope to its
// declarations, in declaration order. Module scopes union all their
// translation units.
func (c *TypeChecker) namesIntroducedIn(s scope.ScopeID) map[string][]ast.DeclID {
	out := make(map[string][]ast.DeclID)
	if c.program.Kind(s) == scope.ModuleScope {
		mod := c.ast.Decl(c.program.Introducer(s)).(*ast.ModuleDecl)
		for _, u := range mod.Units {
			unit := c.ast.Decl(u).(*ast.TranslationUnit)
			for _, d := range unit.Decls {
				c.introduceName(out, d)
			}
		}
		return out
	}
	for _, d := range c.program.DeclsIn(s) {
		c.introduceName(out, d)
	}
	return out
}

func (c *TypeChecker) introduceName(out map[string][]ast.DeclID, d ast.DeclID) {
	switch decl := c.ast.Decl(d).(type) {
	case *ast.ProductTypeDecl, *ast.TraitDecl, *ast.TypeAliasDecl, *ast.VarDecl,
		*ast.ParameterDecl, *ast.NamespaceDecl, *ast.AssociatedTypeDecl,
		*ast.AssociatedValueDecl, *ast.GenericParameterDecl:
		if n, ok := c.ast.DeclName(d); ok && n.Stem != "" {
			out[n.Stem] = append(out[n.Stem], d)
		}
	case *ast.FunctionDecl:
		if decl.Identifier != "" {
			out[decl.Identifier] = append(out[decl.Identifier], d)
		}
	case *ast.InitializerDecl:
		out["init"] = append(out["init"], d)
	case *ast.MethodDecl:
		out[decl.Identifier] = append(out[decl.Identifier], d)
	case *ast.SubscriptDecl:
		if decl.Identifier == "" {
			out["[]"] = append(out["[]"], d)
		} else {
			out[decl.Identifier] = append(out[decl.Identifier], d)
		}
	case *ast.BindingDecl, *ast.ConformanceDecl, *ast.ExtensionDecl,
		*ast.MethodImplDecl, *ast.SubscriptImplDecl, *ast.OperatorDecl:
		// Nothing: variables are exposed directly, members through their
		// containing declaration, operators through operator lookup.
	}
}

// visibleIn filters out declarations hidden at the use site: variables of
// bindings whose initializers are currently under checking.
func (c *TypeChecker) visibleIn(matches []ast.DeclID) []ast.DeclID {
	out := matches[:0:0]
	for _, d := range matches {
		if b, ok := c.program.VarToBinding(d); ok && c.bindingsUnderChecking[b] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// lookupUnqualified walks outer scopes from the use site, skipping file
// scopes, stopping at the first scope providing a non-overloadable match.
// After the innermost module, all other modules are searched.
func (c *TypeChecker) lookupUnqualified(stem string, useScope scope.ScopeID) []ast.DeclID {
	var matches []ast.DeclID
	var currentModule ast.DeclID = ast.NoDecl

	for _, s := range c.program.ScopesFrom(useScope) {
		if c.program.Kind(s) == scope.TranslationUnitScope {
			// File scopes are skipped: the module scope unions them.
			continue
		}
		if c.program.Kind(s) == scope.ModuleScope {
			currentModule = c.program.Introducer(s)
		}
		found := c.visibleIn(c.namesIntroducedIn(s)[stem])
		matches = append(matches, found...)
		for _, d := range found {
			if !c.isOverloadable(d) {
				return matches
			}
		}
	}

	for _, m := range c.ast.Modules() {
		if m == currentModule {
			continue
		}
		ms := c.program.ModuleScopeOf(m)
		if ms == scope.NoScope {
			continue
		}
		found := c.visibleIn(c.namesIntroducedIn(ms)[stem])
		matches = append(matches, found...)
		for _, d := range found {
			if !c.isOverloadable(d) {
				return matches
			}
		}
	}
	return matches
}

// lookupMember resolves a member name in a receiver type, memoized by
// (canonical receiver, scope).
func (c *TypeChecker) lookupMember(stem string, receiver types.Type, useScope scope.ScopeID) []ast.DeclID {
	canonical := types.Canonical(receiver)
	key := memberLookupKey{receiver: canonical.String(), scope: useScope}
	if table, ok := c.memberLookupTables[key]; ok {
		if cached, ok := table[stem]; ok {
			return cached
		}
	}
	result := c.computeMemberLookup(stem, receiver, useScope)
	// Re-fetch the table: computing the result may have invalidated the
	// memo on an extension-binding transition.
	table, ok := c.memberLookupTables[key]
	if !ok {
		table = make(map[string][]ast.DeclID)
		c.memberLookupTables[key] = table
	}
	table[stem] = result
	return result
}

func (c *TypeChecker) computeMemberLookup(stem string, receiver types.Type, useScope scope.ScopeID) []ast.DeclID {
	switch t := receiver.(type) {
	case *types.BoundGenericType:
		return c.computeMemberLookup(stem, t.Base, useScope)
	case *types.TypeAliasType:
		return c.computeMemberLookup(stem, t.Aliased, useScope)
	case *types.ConformanceLensType:
		// Member lookup through a lens uses the trait's declaration space.
		return c.computeMemberLookup(stem, t.Lens, useScope)
	case *types.MetatypeType:
		return c.computeMemberLookup(stem, t.Instance, useScope)
	}

	var matches []ast.DeclID
	frozen := false
	add := func(found []ast.DeclID) {
		for _, d := range found {
			matches = append(matches, d)
			if !c.isOverloadable(d) {
				frozen = true
			}
		}
	}

	// Names introduced directly by the declaration.
	switch t := receiver.(type) {
	case *types.ProductType:
		if s, ok := c.program.ScopeIntroducing(t.Decl); ok {
			add(c.namesIntroducedIn(s)[stem])
		}
	case *types.TraitType:
		if s, ok := c.program.ScopeIntroducing(t.Decl); ok {
			add(c.namesIntroducedIn(s)[stem])
		}
	}

	// Names introduced by extensions and conformances of the receiver.
	for _, e := range c.extensionsExposedTo(receiver, useScope) {
		if s, ok := c.program.ScopeIntroducing(e); ok {
			add(c.namesIntroducedIn(s)[stem])
		}
	}

	// Inherited members, unless a non-overloadable match froze the result.
	if !frozen {
		for _, trait := range c.conformedTraits(receiver, useScope) {
			if trait.Decl == declOf(receiver) {
				continue
			}
			if s, ok := c.program.ScopeIntroducing(trait.Decl); ok {
				for _, d := range c.namesIntroducedIn(s)[stem] {
					if !contains(matches, d) {
						matches = append(matches, d)
					}
				}
			}
		}
	}
	return matches
}

func declOf(t types.Type) ast.DeclID {
	switch t := t.(type) {
	case *types.ProductType:
		return t.Decl
	case *types.TraitType:
		return t.Decl
	case *types.GenericTypeParameterType:
		return t.Decl
	default:
		return ast.NoDecl
	}
}

func contains(ds []ast.DeclID, d ast.DeclID) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}

// extensionsExposedTo collects extension and conformance declarations of
// the receiver visible from the use site, walking outward then through all
// modules. Extensions whose subject is being resolved are skipped to break
// recursion through the extended type.
func (c *TypeChecker) extensionsExposedTo(receiver types.Type, useScope scope.ScopeID) []ast.DeclID {
	canonical := types.Canonical(receiver)
	var out []ast.DeclID
	seen := make(map[ast.DeclID]bool)

	visit := func(d ast.DeclID) {
		if seen[d] {
			return
		}
		var subjectExpr ast.ExprID
		switch decl := c.ast.Decl(d).(type) {
		case *ast.ExtensionDecl:
			subjectExpr = decl.Subject
		case *ast.ConformanceDecl:
			subjectExpr = decl.Subject
		default:
			return
		}
		seen[d] = true
		if c.extensionsUnderBinding[d] {
			return
		}
		// Member-lookup memo entries computed while an extension is being
		// bound could miss its members; drop them on both transitions.
		c.extensionsUnderBinding[d] = true
		c.memberLookupTables = make(map[memberLookupKey]map[string][]ast.DeclID)
		subject := c.realizeTypeExpr(subjectExpr)
		delete(c.extensionsUnderBinding, d)
		c.memberLookupTables = make(map[memberLookupKey]map[string][]ast.DeclID)
		if isError(subject) {
			return
		}
		if types.Equal(subject, canonical) {
			out = append(out, d)
		}
	}

	for _, s := range c.program.ScopesFrom(useScope) {
		for _, d := range c.program.DeclsIn(s) {
			visit(d)
		}
	}
	for _, m := range c.ast.Modules() {
		mod := c.ast.Decl(m).(*ast.ModuleDecl)
		for _, u := range mod.Units {
			unit := c.ast.Decl(u).(*ast.TranslationUnit)
			for _, d := range unit.Decls {
				visit(d)
			}
		}
	}
	return out
}
