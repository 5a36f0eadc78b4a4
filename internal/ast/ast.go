package ast

import (
	"fmt"

	"github.com/google/uuid"
)

// AST is an arena of nodes. It is append-only: nodes are inserted during
// program construction, addressed by typed indices afterwards, and never
// removed. BuildID identifies this arena across concurrent builds.
type AST struct {
	BuildID uuid.UUID

	decls    []Decl
	exprs    []Expr
	patterns []Pattern
	stmts    []Stmt

	modules     map[string]DeclID
	moduleOrder []string

	prepared bool
}

func NewAST() *AST {
	return &AST{
		BuildID: uuid.New(),
		modules: make(map[string]DeclID),
	}
}

func (a *AST) AddDecl(d Decl) DeclID {
	a.decls = append(a.decls, d)
	return DeclID(len(a.decls))
}

func (a *AST) AddExpr(e Expr) ExprID {
	a.exprs = append(a.exprs, e)
	return ExprID(len(a.exprs))
}

func (a *AST) AddPattern(p Pattern) PatternID {
	a.patterns = append(a.patterns, p)
	return PatternID(len(a.patterns))
}

func (a *AST) AddStmt(s Stmt) StmtID {
	a.stmts = append(a.stmts, s)
	return StmtID(len(a.stmts))
}

func (a *AST) Decl(id DeclID) Decl {
	if id == NoDecl {
		return nil
	}
	return a.decls[id-1]
}

func (a *AST) Expr(id ExprID) Expr {
	if id == NoExpr {
		return nil
	}
	return a.exprs[id-1]
}

func (a *AST) Pattern(id PatternID) Pattern {
	if id == NoPattern {
		return nil
	}
	return a.patterns[id-1]
}

func (a *AST) Stmt(id StmtID) Stmt {
	if id == NoStmt {
		return nil
	}
	return a.stmts[id-1]
}

func (a *AST) DeclCount() int { return len(a.decls) }
func (a *AST) ExprCount() int { return len(a.exprs) }

// InsertModule registers a module declaration under its name. Modules are
// iterated in insertion order to keep diagnostics deterministic.
func (a *AST) InsertModule(m *ModuleDecl) (DeclID, error) {
	if _, dup := a.modules[m.Name]; dup {
		return NoDecl, fmt.Errorf("module %q already inserted", m.Name)
	}
	id := a.AddDecl(m)
	a.modules[m.Name] = id
	a.moduleOrder = append(a.moduleOrder, m.Name)
	return id, nil
}

// Modules returns the module declarations in insertion order.
func (a *AST) Modules() []DeclID {
	out := make([]DeclID, 0, len(a.moduleOrder))
	for _, name := range a.moduleOrder {
		out = append(out, a.modules[name])
	}
	return out
}

func (a *AST) ModuleNamed(name string) (DeclID, bool) {
	id, ok := a.modules[name]
	return id, ok
}

// DeclName returns the base name a declaration introduces, if any.
// Bindings, conformances, extensions, impls, and operator declarations
// introduce no name of their own.
func (a *AST) DeclName(id DeclID) (Name, bool) {
	switch d := a.Decl(id).(type) {
	case *ProductTypeDecl:
		return Identifier(d.Identifier), true
	case *TraitDecl:
		return Identifier(d.Identifier), true
	case *TypeAliasDecl:
		return Identifier(d.Identifier), true
	case *AssociatedTypeDecl:
		return Identifier(d.Identifier), true
	case *AssociatedValueDecl:
		return Identifier(d.Identifier), true
	case *GenericParameterDecl:
		return Identifier(d.Identifier), true
	case *VarDecl:
		return Identifier(d.Identifier), true
	case *ParameterDecl:
		return Identifier(d.Identifier), true
	case *NamespaceDecl:
		return Identifier(d.Identifier), true
	case *FunctionDecl:
		if d.Identifier == "" {
			return Name{}, false
		}
		return d.Name(), true
	case *InitializerDecl:
		return Identifier("init"), true
	case *MethodDecl:
		return Identifier(d.Identifier), true
	case *SubscriptDecl:
		if d.Identifier == "" {
			return Identifier("[]"), true
		}
		return Identifier(d.Identifier), true
	case *ModuleDecl:
		return Identifier(d.Name), true
	default:
		return Name{}, false
	}
}
