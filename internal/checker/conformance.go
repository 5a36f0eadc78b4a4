package checker

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/source"
	"github.com/C-BJ/val/internal/types"
)

// Conformance is a proven relation between a model and a trait, with one
// witness per requirement. Synthesized witnesses point back at the
// requirement's default.
type Conformance struct {
	Model           types.Type
	Trait           *types.TraitType
	Declaration     ast.DeclID
	Scope           scope.ScopeID
	Site            source.Site
	Implementations map[ast.DeclID]ast.DeclID
	IsConditional   bool
}

// TypeRelations is the canonicalization and conformance registry, indexed
// by the canonical subject.
type TypeRelations struct {
	conformances map[string][]*Conformance
}

func NewTypeRelations() *TypeRelations {
	return &TypeRelations{conformances: make(map[string][]*Conformance)}
}

// ConformancesOf returns the registered conformances of a model, in
// registration order.
func (r *TypeRelations) ConformancesOf(model types.Type) []*Conformance {
	return r.conformances[types.Canonical(model).String()]
}

// Conformance returns the registered conformance of model to trait, if
// any.
func (r *TypeRelations) Conformance(model types.Type, trait *types.TraitType) (*Conformance, bool) {
	for _, conf := range r.ConformancesOf(model) {
		if conf.Trait.Decl == trait.Decl {
			return conf, true
		}
	}
	return nil, false
}

func (r *TypeRelations) insert(conf *Conformance) {
	key := types.Canonical(conf.Model).String()
	r.conformances[key] = append(r.conformances[key], conf)
}

// scopesOverlap reports whether two conformance sites can see each other:
// both live in the same module.
func (c *TypeChecker) scopesOverlap(a, b scope.ScopeID) bool {
	return c.program.ModuleContaining(a) == c.program.ModuleContaining(b)
}

// checkConformanceList proves and registers every trait named in a
// declaration's conformance list.
func (c *TypeChecker) checkConformanceList(d ast.DeclID, model types.Type, names []ast.ExprID, conditional bool) bool {
	ok := true
	declScope := c.program.ScopeOf(d)
	for _, nameExpr := range names {
		trait := c.traitDenotedBy(nameExpr)
		if trait == nil {
			ok = false
			continue
		}
		site := c.siteOfExpr(nameExpr)
		conf := c.checkConformance(d, model, trait, site, declScope)
		if conf == nil {
			ok = false
			continue
		}
		conf.IsConditional = conditional
		if conditional {
			// Constraint checking on conditional conformances is not
			// implemented; they are accepted unconditionally for now.
			c.addDiag(diagnostics.NewWarning(
				diagnostics.ErrT031, site,
				"TODO: constraints of conditional conformances are not checked",
			))
		}
		if previous, dup := c.relations.Conformance(model, trait); dup && c.scopesOverlap(previous.Scope, declScope) {
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT011, site,
				fmt.Sprintf("redundant conformance of '%s' to '%s'", model, trait.Name),
			).WithNote(diagnostics.NewNote(previous.Site, "conformance already declared here")))
			ok = false
			continue
		}
		c.relations.insert(conf)
	}
	return ok
}

// checkConformance matches every trait requirement against a member of
// the model, returning nil if any requirement is unsatisfied.
func (c *TypeChecker) checkConformance(d ast.DeclID, model types.Type, trait *types.TraitType, site source.Site, declScope scope.ScopeID) *Conformance {
	traitDecl := c.ast.Decl(trait.Decl).(*ast.TraitDecl)
	subs := map[ast.DeclID]types.Type{traitDecl.SelfParameter: model}

	conf := &Conformance{
		Model:           model,
		Trait:           trait,
		Declaration:     d,
		Scope:           declScope,
		Site:            site,
		Implementations: make(map[ast.DeclID]ast.DeclID),
	}
	var missing []*diagnostics.DiagnosticError

	for _, req := range traitDecl.Members {
		if !c.program.IsRequirement(req) {
			continue
		}
		name, hasName := c.ast.DeclName(req)
		if !hasName {
			continue
		}
		switch c.ast.Decl(req).(type) {
		case *ast.AssociatedTypeDecl:
			if w, ok := c.associatedWitness(model, name.Stem, declScope); ok {
				conf.Implementations[req] = w
			} else if c.program.IsSynthesizable(req) {
				conf.Implementations[req] = req
			} else {
				missing = append(missing, diagnostics.NewNote(
					c.siteOfDecl(req),
					fmt.Sprintf("missing associated type '%s'", name.Stem)))
			}
			continue
		case *ast.AssociatedValueDecl:
			if c.program.IsSynthesizable(req) {
				conf.Implementations[req] = req
			} else {
				missing = append(missing, diagnostics.NewNote(
					c.siteOfDecl(req),
					fmt.Sprintf("missing associated value '%s'", name.Stem)))
			}
			continue
		}

		reqType := c.realize(req)
		if isError(reqType) {
			continue
		}
		want := types.Specialized(reqType, subs, c.resolveAssociatedType)

		var witnesses []ast.DeclID
		for _, cand := range c.lookupMember(name.Stem, model, declScope) {
			if c.program.IsRequirement(cand) {
				continue
			}
			got := c.realize(cand)
			if isError(got) {
				continue
			}
			if types.Equal(got, want) {
				witnesses = append(witnesses, cand)
			}
		}
		switch {
		case len(witnesses) == 1:
			conf.Implementations[req] = witnesses[0]
		case len(witnesses) > 1:
			c.addDiag(diagnostics.NewError(
				diagnostics.ErrT032, site,
				fmt.Sprintf("ranking of multiple witnesses for requirement '%s' is not implemented", name.Stem),
			))
			return nil
		case c.program.IsSynthesizable(req):
			conf.Implementations[req] = req
		default:
			missing = append(missing, diagnostics.NewNote(
				c.siteOfDecl(req),
				fmt.Sprintf("requirement '%s' of type '%s' is not satisfied", name.Stem, want)))
		}
	}

	if len(missing) > 0 {
		err := diagnostics.NewError(
			diagnostics.ErrT028, site,
			fmt.Sprintf("type '%s' does not conform to trait '%s'", model, trait.Name),
		)
		for _, n := range missing {
			err = err.WithNote(n)
		}
		c.addDiag(err)
		return nil
	}
	return conf
}

// associatedWitness finds the single member type of the model satisfying
// an associated-type requirement.
func (c *TypeChecker) associatedWitness(model types.Type, name string, declScope scope.ScopeID) (ast.DeclID, bool) {
	var witnesses []ast.DeclID
	for _, cand := range c.lookupMember(name, model, declScope) {
		if c.program.IsRequirement(cand) {
			continue
		}
		switch c.ast.Decl(cand).Kind() {
		case ast.KindProductTypeDecl, ast.KindTypeAliasDecl:
			witnesses = append(witnesses, cand)
		}
	}
	if len(witnesses) == 1 {
		return witnesses[0], true
	}
	return ast.NoDecl, false
}
