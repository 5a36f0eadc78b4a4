package checker

import (
	"io"
	"log/slog"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/config"
	"github.com/C-BJ/val/internal/diagnostics"
	"github.com/C-BJ/val/internal/scope"
	"github.com/C-BJ/val/internal/source"
	"github.com/C-BJ/val/internal/types"
)

// TypeChecker decides well-typedness of a scoped program. It owns all
// mutable checking state; the scoped program and the arena beneath it are
// never mutated. A checker is single-threaded and is used for one run.
type TypeChecker struct {
	program *scope.ScopedProgram
	ast     *ast.AST
	options config.Options
	logger  *slog.Logger

	declTypes           map[ast.DeclID]types.Type
	exprTypes           map[ast.ExprID]types.Type
	referredDecls       map[ast.ExprID]DeclRef
	implicitCaptures    map[ast.DeclID][]ImplicitCapture
	foldedSequenceExprs map[ast.ExprID]*FoldedSequence
	relations           *TypeRelations
	declRequests        map[ast.DeclID]RequestState
	environments        map[ast.DeclID]*environmentEntry

	// Scoped guard sets; entries are held only for the duration of the
	// guarded recursion and removed on every exit path.
	bindingsUnderChecking  map[ast.DeclID]bool
	extensionsUnderBinding map[ast.DeclID]bool

	memberLookupTables map[memberLookupKey]map[string][]ast.DeclID

	// skolems caches the rigid stand-in of each generic parameter so that
	// every instantiation inside the declaring scope agrees.
	skolems map[ast.DeclID]*types.SkolemType

	diags *diagnostics.Bag
}

type memberLookupKey struct {
	receiver string // canonical type identity
	scope    scope.ScopeID
}

// New creates a checker over a scoped program. logger may be nil.
func New(program *scope.ScopedProgram, opts config.Options, logger *slog.Logger) *TypeChecker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TypeChecker{
		program:                program,
		ast:                    program.AST(),
		options:                opts,
		logger:                 logger.With("build", program.AST().BuildID.String()),
		declTypes:              make(map[ast.DeclID]types.Type),
		exprTypes:              make(map[ast.ExprID]types.Type),
		referredDecls:          make(map[ast.ExprID]DeclRef),
		implicitCaptures:       make(map[ast.DeclID][]ImplicitCapture),
		foldedSequenceExprs:    make(map[ast.ExprID]*FoldedSequence),
		relations:              NewTypeRelations(),
		declRequests:           make(map[ast.DeclID]RequestState),
		environments:           make(map[ast.DeclID]*environmentEntry),
		bindingsUnderChecking:  make(map[ast.DeclID]bool),
		extensionsUnderBinding: make(map[ast.DeclID]bool),
		memberLookupTables:     make(map[memberLookupKey]map[string][]ast.DeclID),
		skolems:                make(map[ast.DeclID]*types.SkolemType),
		diags:                  diagnostics.NewBag(),
	}
}

// Diagnostics returns the accumulated diagnostics in insertion order.
func (c *TypeChecker) Diagnostics() []*diagnostics.DiagnosticError {
	return c.diags.All()
}

func (c *TypeChecker) addDiag(d *diagnostics.DiagnosticError) {
	c.diags.Insert(d)
}

// CheckModule type-checks every declaration of a module and reports
// whether no error was diagnosed.
func (c *TypeChecker) CheckModule(m ast.DeclID) bool {
	mod, ok := c.ast.Decl(m).(*ast.ModuleDecl)
	if !ok {
		c.addDiag(diagnostics.NewError(diagnostics.ErrT001, source.Site{}, "not a module declaration"))
		return false
	}
	before := c.diags.ErrorCount()
	for _, u := range mod.Units {
		unit := c.ast.Decl(u).(*ast.TranslationUnit)
		for _, d := range unit.Decls {
			c.check(d)
		}
	}
	return c.diags.ErrorCount() == before
}

func (c *TypeChecker) siteOfDecl(d ast.DeclID) source.Site {
	if decl := c.ast.Decl(d); decl != nil {
		return decl.Site()
	}
	return source.Site{}
}

func (c *TypeChecker) siteOfExpr(e ast.ExprID) source.Site {
	if expr := c.ast.Expr(e); expr != nil {
		return expr.Site()
	}
	return source.Site{}
}

func (c *TypeChecker) declNameString(d ast.DeclID) string {
	if n, ok := c.ast.DeclName(d); ok {
		return n.String()
	}
	return "<anonymous>"
}

// shouldTrace reports whether inference anchored at the site is traced.
func (c *TypeChecker) shouldTrace(site source.Site) bool {
	return c.options.ShouldTrace(site)
}

func (c *TypeChecker) trace(site source.Site, msg string, args ...any) {
	if c.shouldTrace(site) {
		c.logger.Info(msg, append([]any{slog.String("at", site.String())}, args...)...)
	}
}
