package scope

import (
	"fmt"

	"github.com/C-BJ/val/internal/ast"
)

// Build computes the scope structure of an arena. It prepares the AST
// (synthesizing memberwise initializers and trait self-parameters) first;
// after Build returns, neither the arena nor the result is mutated.
func Build(a *ast.AST) (*ScopedProgram, error) {
	a.PrepareForChecking()
	b := &builder{
		p: &ScopedProgram{
			ast:            a,
			declScope:      make(map[ast.DeclID]ScopeID),
			scopeDecls:     make(map[ScopeID][]ast.DeclID),
			declIntroduced: make(map[ast.DeclID]ScopeID),
			exprScope:      make(map[ast.ExprID]ScopeID),
			stmtScope:      make(map[ast.StmtID]ScopeID),
			varToBinding:   make(map[ast.DeclID]ast.DeclID),
		},
	}
	for _, m := range a.Modules() {
		if err := b.module(m); err != nil {
			return nil, err
		}
	}
	return b.p, nil
}

type builder struct {
	p *ScopedProgram
}

func (b *builder) newScope(kind ScopeKind, introducer ast.DeclID, parent ScopeID) ScopeID {
	p := b.p
	p.kinds = append(p.kinds, kind)
	p.parents = append(p.parents, parent)
	p.introducers = append(p.introducers, introducer)
	s := ScopeID(len(p.kinds) - 1)
	if introducer != ast.NoDecl {
		p.declIntroduced[introducer] = s
	}
	return s
}

func (b *builder) module(m ast.DeclID) error {
	decl, ok := b.p.ast.Decl(m).(*ast.ModuleDecl)
	if !ok {
		return fmt.Errorf("declaration %d is not a module", m)
	}
	ms := b.newScope(ModuleScope, m, NoScope)
	for _, u := range decl.Units {
		unit, ok := b.p.ast.Decl(u).(*ast.TranslationUnit)
		if !ok {
			return fmt.Errorf("module %s: declaration %d is not a translation unit", decl.Name, u)
		}
		us := b.newScope(TranslationUnitScope, u, ms)
		b.p.declScope[u] = ms
		for _, d := range unit.Decls {
			b.decl(d, us)
		}
	}
	return nil
}

// decl records d in scope s and walks its children.
func (b *builder) decl(d ast.DeclID, s ScopeID) {
	b.p.declScope[d] = s
	b.p.scopeDecls[s] = append(b.p.scopeDecls[s], d)

	switch decl := b.p.ast.Decl(d).(type) {
	case *ast.ProductTypeDecl:
		ts := b.newScope(TypeScope, d, s)
		b.genericClause(decl.GenericClause, ts)
		b.exprs(decl.Conformances, s)
		b.members(decl.Members, ts)

	case *ast.TraitDecl:
		ts := b.newScope(TraitScope, d, s)
		if decl.SelfParameter != ast.NoDecl {
			b.decl(decl.SelfParameter, ts)
		}
		b.exprs(decl.Refinements, s)
		b.members(decl.Members, ts)

	case *ast.TypeAliasDecl:
		as := b.newScope(TypeScope, d, s)
		b.genericClause(decl.GenericClause, as)
		b.expr(decl.Aliased, as)

	case *ast.AssociatedTypeDecl:
		b.exprs(decl.Conformances, s)
		b.expr(decl.Default, s)

	case *ast.AssociatedValueDecl:
		b.expr(decl.Default, s)

	case *ast.GenericParameterDecl:
		b.exprs(decl.Annotations, s)
		b.expr(decl.Default, s)

	case *ast.BindingDecl:
		b.pattern(decl.Pattern, s, d)
		b.expr(decl.Initializer, s)

	case *ast.VarDecl, *ast.OperatorDecl:
		// Leaves.

	case *ast.ParameterDecl:
		b.expr(decl.Annotation, s)
		b.expr(decl.Default, s)

	case *ast.FunctionDecl:
		fs := b.newScope(FunctionScope, d, s)
		b.genericClause(decl.GenericClause, fs)
		for _, c := range decl.ExplicitCaptures {
			b.decl(c, fs)
		}
		for _, p := range decl.Parameters {
			b.decl(p, fs)
		}
		b.expr(decl.Output, fs)
		b.body(decl.Body, fs)

	case *ast.InitializerDecl:
		fs := b.newScope(FunctionScope, d, s)
		b.genericClause(decl.GenericClause, fs)
		for _, p := range decl.Parameters {
			b.decl(p, fs)
		}
		b.body(decl.Body, fs)

	case *ast.MethodDecl:
		ms := b.newScope(MethodScope, d, s)
		b.genericClause(decl.GenericClause, ms)
		for _, p := range decl.Parameters {
			b.decl(p, ms)
		}
		b.expr(decl.Output, ms)
		for _, impl := range decl.Impls {
			b.decl(impl, ms)
		}

	case *ast.MethodImplDecl:
		is := b.newScope(MethodImplScope, d, s)
		b.body(decl.Body, is)

	case *ast.SubscriptDecl:
		ss := b.newScope(SubscriptScope, d, s)
		b.genericClause(decl.GenericClause, ss)
		for _, c := range decl.ExplicitCaptures {
			b.decl(c, ss)
		}
		for _, p := range decl.Parameters {
			b.decl(p, ss)
		}
		b.expr(decl.Output, ss)
		for _, impl := range decl.Impls {
			b.decl(impl, ss)
		}

	case *ast.SubscriptImplDecl:
		is := b.newScope(SubscriptImplScope, d, s)
		b.body(decl.Body, is)

	case *ast.ConformanceDecl:
		cs := b.newScope(ConformanceScope, d, s)
		b.expr(decl.Subject, s)
		b.exprs(decl.Conformances, s)
		b.exprs(decl.WhereClauses, cs)
		b.members(decl.Members, cs)

	case *ast.ExtensionDecl:
		es := b.newScope(ExtensionScope, d, s)
		b.expr(decl.Subject, s)
		b.exprs(decl.WhereClauses, es)
		b.members(decl.Members, es)

	case *ast.NamespaceDecl:
		ns := b.newScope(NamespaceScope, d, s)
		b.members(decl.Members, ns)
	}
}

func (b *builder) members(ms []ast.DeclID, s ScopeID) {
	for _, m := range ms {
		b.decl(m, s)
	}
}

func (b *builder) genericClause(c *ast.GenericClause, s ScopeID) {
	if c == nil {
		return
	}
	for _, p := range c.Parameters {
		b.decl(p, s)
	}
	b.exprs(c.WhereClauses, s)
}

func (b *builder) pattern(id ast.PatternID, s ScopeID, binding ast.DeclID) {
	switch p := b.p.ast.Pattern(id).(type) {
	case *ast.BindingPattern:
		b.expr(p.Annotation, s)
		b.pattern(p.Subpattern, s, binding)
	case *ast.NamePattern:
		b.p.declScope[p.Variable] = s
		b.p.scopeDecls[s] = append(b.p.scopeDecls[s], p.Variable)
		b.p.varToBinding[p.Variable] = binding
	case *ast.TuplePattern:
		for _, e := range p.Elements {
			b.pattern(e.Pattern, s, binding)
		}
	case *ast.ExprPattern:
		b.expr(p.Expr, s)
	case *ast.WildcardPattern:
	}
}

func (b *builder) body(body ast.Body, s ScopeID) {
	switch body.Kind {
	case ast.BodyBlock:
		b.stmt(body.Block, s)
	case ast.BodyExpr:
		b.expr(body.Expr, s)
	}
}

func (b *builder) exprs(es []ast.ExprID, s ScopeID) {
	for _, e := range es {
		b.expr(e, s)
	}
}

func (b *builder) expr(id ast.ExprID, s ScopeID) {
	if id == ast.NoExpr {
		return
	}
	b.p.exprScope[id] = s

	switch e := b.p.ast.Expr(id).(type) {
	case *ast.NameExpr:
		b.expr(e.Domain, s)
		b.exprs(e.StaticArguments, s)
	case *ast.CallExpr:
		b.expr(e.Callee, s)
		for _, a := range e.Arguments {
			b.expr(a.Value, s)
		}
	case *ast.SubscriptCallExpr:
		b.expr(e.Callee, s)
		for _, a := range e.Arguments {
			b.expr(a.Value, s)
		}
	case *ast.LambdaExpr:
		b.decl(e.Decl, s)
	case *ast.CastExpr:
		b.expr(e.Subject, s)
		b.expr(e.Target, s)
	case *ast.InoutExpr:
		b.expr(e.Subject, s)
	case *ast.SequenceExpr:
		b.expr(e.Head, s)
		for _, op := range e.Tail {
			b.expr(op.Operator, s)
			b.expr(op.Operand, s)
		}
	case *ast.TupleExpr:
		for _, el := range e.Elements {
			b.expr(el.Value, s)
		}
	case *ast.CondExpr:
		cs := b.newScope(BraceScope, ast.NoDecl, s)
		b.conditions(e.Conditions, cs)
		b.branch(e.Success, cs)
		b.branch(e.Failure, s)
	case *ast.ParameterTypeExpr:
		b.expr(e.Bare, s)
	case *ast.LambdaTypeExpr:
		b.expr(e.Environment, s)
		for _, p := range e.Parameters {
			b.expr(p.Type, s)
		}
		b.expr(e.Output, s)
	case *ast.TupleTypeExpr:
		for _, el := range e.Elements {
			b.expr(el.Type, s)
		}
	case *ast.RemoteTypeExpr:
		b.expr(e.Operand, s)
	case *ast.ConformanceLensTypeExpr:
		b.expr(e.Subject, s)
		b.expr(e.Lens, s)
	case *ast.EqualityConstraintExpr:
		b.expr(e.Left, s)
		b.expr(e.Right, s)
	case *ast.ConformanceConstraintExpr:
		b.expr(e.Subject, s)
		b.exprs(e.Traits, s)
	case *ast.ValueConstraintExpr:
		b.expr(e.Predicate, s)
	}
}

func (b *builder) conditions(items []ast.ConditionItem, s ScopeID) {
	for _, it := range items {
		if it.Binding != ast.NoDecl {
			b.decl(it.Binding, s)
		} else {
			b.expr(it.Expr, s)
		}
	}
}

func (b *builder) branch(br ast.Branch, s ScopeID) {
	switch br.Kind {
	case ast.ExprBranch:
		b.expr(br.Expr, s)
	case ast.BlockBranch:
		b.stmt(br.Block, s)
	}
}

func (b *builder) stmt(id ast.StmtID, s ScopeID) {
	if id == ast.NoStmt {
		return
	}
	b.p.stmtScope[id] = s

	switch st := b.p.ast.Stmt(id).(type) {
	case *ast.BraceStmt:
		bs := b.newScope(BraceScope, ast.NoDecl, s)
		for _, child := range st.Stmts {
			b.stmt(child, bs)
		}
	case *ast.AssignStmt:
		b.expr(st.Left, s)
		b.expr(st.Right, s)
	case *ast.CondStmt:
		cs := b.newScope(BraceScope, ast.NoDecl, s)
		b.conditions(st.Conditions, cs)
		b.stmt(st.Success, cs)
		b.stmt(st.Failure, s)
	case *ast.WhileStmt:
		ws := b.newScope(BraceScope, ast.NoDecl, s)
		b.conditions(st.Conditions, ws)
		b.stmt(st.Body, ws)
	case *ast.DoWhileStmt:
		// The condition may refer to bindings of the body, so the body's
		// brace is flattened into the loop scope.
		ds := b.newScope(BraceScope, ast.NoDecl, s)
		if brace, ok := b.p.ast.Stmt(st.Body).(*ast.BraceStmt); ok {
			b.p.stmtScope[st.Body] = ds
			for _, child := range brace.Stmts {
				b.stmt(child, ds)
			}
		} else {
			b.stmt(st.Body, ds)
		}
		b.expr(st.Condition, ds)
	case *ast.ReturnStmt:
		b.expr(st.Value, s)
	case *ast.YieldStmt:
		b.expr(st.Value, s)
	case *ast.ExprStmt:
		b.expr(st.Expr, s)
	case *ast.DiscardStmt:
		b.expr(st.Expr, s)
	case *ast.DeclStmt:
		b.decl(st.Decl, s)
	}
}
