package scope

import (
	"github.com/C-BJ/val/internal/ast"
)

// ScopeID indexes the scope table of a ScopedProgram.
type ScopeID int32

const NoScope ScopeID = -1

type ScopeKind uint8

const (
	ModuleScope ScopeKind = iota
	TranslationUnitScope
	TypeScope // product types and type aliases
	TraitScope
	NamespaceScope
	ExtensionScope
	ConformanceScope
	FunctionScope // functions and initializers
	MethodScope
	MethodImplScope
	SubscriptScope
	SubscriptImplScope
	BraceScope // lexical blocks and condition scopes
)

// ScopedProgram is the immutable scope structure over an AST arena. It is
// produced once by Build and consulted by the type checker; the checker
// never mutates it.
type ScopedProgram struct {
	ast *ast.AST

	kinds       []ScopeKind
	parents     []ScopeID
	introducers []ast.DeclID // NoDecl for brace/condition scopes

	declScope      map[ast.DeclID]ScopeID
	scopeDecls     map[ScopeID][]ast.DeclID
	declIntroduced map[ast.DeclID]ScopeID
	exprScope      map[ast.ExprID]ScopeID
	stmtScope      map[ast.StmtID]ScopeID
	varToBinding   map[ast.DeclID]ast.DeclID
}

func (p *ScopedProgram) AST() *ast.AST { return p.ast }

func (p *ScopedProgram) ScopeCount() int { return len(p.kinds) }

func (p *ScopedProgram) Kind(s ScopeID) ScopeKind { return p.kinds[s] }

func (p *ScopedProgram) Parent(s ScopeID) ScopeID { return p.parents[s] }

// Introducer returns the declaration that introduced the scope, or NoDecl.
func (p *ScopedProgram) Introducer(s ScopeID) ast.DeclID { return p.introducers[s] }

// ScopeOf returns the scope directly containing the declaration.
func (p *ScopedProgram) ScopeOf(d ast.DeclID) ScopeID {
	if s, ok := p.declScope[d]; ok {
		return s
	}
	return NoScope
}

// DeclsIn returns the declarations directly contained in the scope, in
// insertion order.
func (p *ScopedProgram) DeclsIn(s ScopeID) []ast.DeclID {
	return p.scopeDecls[s]
}

// ScopeIntroducing returns the scope a declaration introduces, if any.
func (p *ScopedProgram) ScopeIntroducing(d ast.DeclID) (ScopeID, bool) {
	s, ok := p.declIntroduced[d]
	return s, ok
}

func (p *ScopedProgram) ScopeOfExpr(e ast.ExprID) ScopeID {
	if s, ok := p.exprScope[e]; ok {
		return s
	}
	return NoScope
}

func (p *ScopedProgram) ScopeOfStmt(s ast.StmtID) ScopeID {
	if sc, ok := p.stmtScope[s]; ok {
		return sc
	}
	return NoScope
}

// VarToBinding maps a variable declaration to the binding that declares it.
func (p *ScopedProgram) VarToBinding(v ast.DeclID) (ast.DeclID, bool) {
	b, ok := p.varToBinding[v]
	return b, ok
}

// ScopesFrom returns the chain of scopes from s outward, inclusive.
func (p *ScopedProgram) ScopesFrom(s ScopeID) []ScopeID {
	var out []ScopeID
	for s != NoScope {
		out = append(out, s)
		s = p.parents[s]
	}
	return out
}

func isTypeLike(k ScopeKind) bool {
	switch k {
	case TypeScope, TraitScope, ExtensionScope, ConformanceScope:
		return true
	}
	return false
}

// IsMember reports whether the declaration is a member of a type,
// trait, extension, or conformance.
func (p *ScopedProgram) IsMember(d ast.DeclID) bool {
	s := p.ScopeOf(d)
	return s != NoScope && isTypeLike(p.kinds[s])
}

// IsMemberContext reports whether the scope is lexically inside a type
// declaration space.
func (p *ScopedProgram) IsMemberContext(s ScopeID) bool {
	for _, sc := range p.ScopesFrom(s) {
		if isTypeLike(p.kinds[sc]) {
			return true
		}
	}
	return false
}

// IsRequirement reports whether the declaration is a trait requirement.
func (p *ScopedProgram) IsRequirement(d ast.DeclID) bool {
	s := p.ScopeOf(d)
	if s == NoScope || p.kinds[s] != TraitScope {
		return false
	}
	switch p.ast.Decl(d).Kind() {
	case ast.KindFunctionDecl, ast.KindMethodDecl, ast.KindSubscriptDecl,
		ast.KindInitializerDecl, ast.KindAssociatedTypeDecl, ast.KindAssociatedValueDecl:
		return true
	}
	return false
}

// IsSynthesizable reports whether a trait requirement carries a default
// implementation a conforming type may synthesize its witness from.
func (p *ScopedProgram) IsSynthesizable(d ast.DeclID) bool {
	if !p.IsRequirement(d) {
		return false
	}
	switch decl := p.ast.Decl(d).(type) {
	case *ast.FunctionDecl:
		return decl.Body.Kind != ast.BodyNone
	case *ast.MethodDecl:
		for _, impl := range decl.Impls {
			if mi, ok := p.ast.Decl(impl).(*ast.MethodImplDecl); ok && mi.Body.Kind == ast.BodyNone {
				return false
			}
		}
		return len(decl.Impls) > 0
	case *ast.SubscriptDecl:
		for _, impl := range decl.Impls {
			if si, ok := p.ast.Decl(impl).(*ast.SubscriptImplDecl); ok && si.Body.Kind == ast.BodyNone {
				return false
			}
		}
		return len(decl.Impls) > 0
	case *ast.AssociatedTypeDecl:
		return decl.Default != ast.NoExpr
	case *ast.AssociatedValueDecl:
		return decl.Default != ast.NoExpr
	}
	return false
}

// IsNonStaticMember reports whether the declaration is a member accessed
// through an instance receiver.
func (p *ScopedProgram) IsNonStaticMember(d ast.DeclID) bool {
	if !p.IsMember(d) {
		return false
	}
	switch decl := p.ast.Decl(d).(type) {
	case *ast.FunctionDecl:
		return !decl.IsStatic
	case *ast.BindingDecl:
		return !decl.IsStatic
	case *ast.VarDecl:
		b, ok := p.varToBinding[d]
		if !ok {
			return true
		}
		bd := p.ast.Decl(b).(*ast.BindingDecl)
		return !bd.IsStatic
	case *ast.MethodDecl, *ast.SubscriptDecl:
		return true
	}
	return false
}

// IsGlobal reports whether the declaration is reachable without capturing:
// nothing on its scope chain is a function, method, subscript, or block,
// and it is not an instance member.
func (p *ScopedProgram) IsGlobal(d ast.DeclID) bool {
	if p.IsNonStaticMember(d) {
		return false
	}
	s := p.ScopeOf(d)
	if s == NoScope {
		return true
	}
	for _, sc := range p.ScopesFrom(s) {
		switch p.kinds[sc] {
		case FunctionScope, MethodScope, MethodImplScope, SubscriptScope, SubscriptImplScope, BraceScope:
			return false
		}
	}
	return true
}

// IsLocal reports whether the declaration is not global: it lives inside a
// function-like or block scope, or it is an instance member.
func (p *ScopedProgram) IsLocal(d ast.DeclID) bool {
	return !p.IsGlobal(d)
}

// IsContained reports whether the scope lies inside the scope introduced
// by the declaration.
func (p *ScopedProgram) IsContained(s ScopeID, d ast.DeclID) bool {
	target, ok := p.declIntroduced[d]
	if !ok {
		return false
	}
	for _, sc := range p.ScopesFrom(s) {
		if sc == target {
			return true
		}
	}
	return false
}

// InnermostType returns the innermost type-like declaration containing the
// scope, or NoDecl.
func (p *ScopedProgram) InnermostType(s ScopeID) ast.DeclID {
	for _, sc := range p.ScopesFrom(s) {
		if isTypeLike(p.kinds[sc]) {
			return p.introducers[sc]
		}
	}
	return ast.NoDecl
}

// ModuleContaining returns the module declaration owning the scope.
func (p *ScopedProgram) ModuleContaining(s ScopeID) ast.DeclID {
	for _, sc := range p.ScopesFrom(s) {
		if p.kinds[sc] == ModuleScope {
			return p.introducers[sc]
		}
	}
	return ast.NoDecl
}

// ModuleScopeOf returns the scope introduced by a module declaration.
func (p *ScopedProgram) ModuleScopeOf(m ast.DeclID) ScopeID {
	if s, ok := p.declIntroduced[m]; ok {
		return s
	}
	return NoScope
}
