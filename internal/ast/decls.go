package ast

import "github.com/C-BJ/val/internal/source"

type DeclKind uint8

const (
	KindModuleDecl DeclKind = iota
	KindTranslationUnit
	KindProductTypeDecl
	KindTraitDecl
	KindTypeAliasDecl
	KindAssociatedTypeDecl
	KindAssociatedValueDecl
	KindGenericParameterDecl
	KindBindingDecl
	KindVarDecl
	KindParameterDecl
	KindFunctionDecl
	KindInitializerDecl
	KindMethodDecl
	KindMethodImplDecl
	KindSubscriptDecl
	KindSubscriptImplDecl
	KindConformanceDecl
	KindExtensionDecl
	KindOperatorDecl
	KindNamespaceDecl
)

// Decl is a declaration node stored in the arena.
type Decl interface {
	Kind() DeclKind
	Site() source.Site
}

// NodeSite embeds the source anchor shared by all nodes.
type NodeSite struct {
	At source.Site
}

func (n NodeSite) Site() source.Site { return n.At }

// GenericClause introduces generic parameters and where-clause constraints.
type GenericClause struct {
	Parameters   []DeclID // GenericParameterDecl
	WhereClauses []ExprID // constraint expressions
}

type ModuleDecl struct {
	NodeSite
	Name  string
	Units []DeclID // TranslationUnit
}

func (*ModuleDecl) Kind() DeclKind { return KindModuleDecl }

type TranslationUnit struct {
	NodeSite
	File  string
	Decls []DeclID
}

func (*TranslationUnit) Kind() DeclKind { return KindTranslationUnit }

type ProductTypeDecl struct {
	NodeSite
	Identifier    string
	GenericClause *GenericClause
	Conformances  []ExprID // name expressions denoting traits
	Members       []DeclID
}

func (*ProductTypeDecl) Kind() DeclKind { return KindProductTypeDecl }

type TraitDecl struct {
	NodeSite
	Identifier  string
	Refinements []ExprID // name expressions denoting refined traits
	Members     []DeclID
	// SelfParameter is the synthesized generic parameter 'Self', inserted
	// by PrepareForChecking.
	SelfParameter DeclID
}

func (*TraitDecl) Kind() DeclKind { return KindTraitDecl }

type TypeAliasDecl struct {
	NodeSite
	Identifier    string
	GenericClause *GenericClause
	Aliased       ExprID
}

func (*TypeAliasDecl) Kind() DeclKind { return KindTypeAliasDecl }

type AssociatedTypeDecl struct {
	NodeSite
	Identifier   string
	Conformances []ExprID
	Default      ExprID
}

func (*AssociatedTypeDecl) Kind() DeclKind { return KindAssociatedTypeDecl }

type AssociatedValueDecl struct {
	NodeSite
	Identifier string
	Default    ExprID
}

func (*AssociatedValueDecl) Kind() DeclKind { return KindAssociatedValueDecl }

// GenericParameterDecl is a generic type or value parameter. The first
// annotation decides which: a trait annotation makes it a type parameter,
// any other type makes it a value parameter.
type GenericParameterDecl struct {
	NodeSite
	Identifier  string
	Annotations []ExprID
	Default     ExprID
}

func (*GenericParameterDecl) Kind() DeclKind { return KindGenericParameterDecl }

type BindingDecl struct {
	NodeSite
	Introducer BindingIntroducer
	IsStatic   bool
	Pattern    PatternID // a BindingPattern
	Initializer ExprID
}

func (*BindingDecl) Kind() DeclKind { return KindBindingDecl }

// VarDecl is a variable introduced by a name pattern inside a binding.
type VarDecl struct {
	NodeSite
	Identifier string
}

func (*VarDecl) Kind() DeclKind { return KindVarDecl }

type ParameterDecl struct {
	NodeSite
	Label      string
	Identifier string
	Annotation ExprID // ParameterTypeExpr, or NoExpr in inference contexts
	Default    ExprID
}

func (*ParameterDecl) Kind() DeclKind { return KindParameterDecl }

type BodyKind uint8

const (
	BodyNone BodyKind = iota
	BodyBlock
	BodyExpr
)

// Body is a function, method-variant, or subscript-variant body.
type Body struct {
	Kind  BodyKind
	Block StmtID // a BraceStmt when Kind == BodyBlock
	Expr  ExprID // when Kind == BodyExpr
}

func BlockBody(b StmtID) Body { return Body{Kind: BodyBlock, Block: b} }
func ExprBody(e ExprID) Body  { return Body{Kind: BodyExpr, Expr: e} }

type FunctionDecl struct {
	NodeSite
	Identifier       string
	Notation         OperatorNotation // operator functions
	IsStatic         bool
	ReceiverEffect   AccessEffect // for non-static member functions
	GenericClause    *GenericClause
	ExplicitCaptures []DeclID // BindingDecl
	Parameters       []DeclID // ParameterDecl
	Output           ExprID   // type expression; NoExpr means Void or inferred
	Body             Body
	// IsInExprContext marks underlying declarations of lambda literals,
	// whose parameters may omit annotations.
	IsInExprContext bool
}

func (*FunctionDecl) Kind() DeclKind { return KindFunctionDecl }

// Name returns the declared name, including operator notation.
func (d *FunctionDecl) Name() Name {
	return Name{Stem: d.Identifier, Notation: d.Notation}
}

type InitializerDecl struct {
	NodeSite
	IsMemberwise  bool
	GenericClause *GenericClause
	Parameters    []DeclID
	Body          Body
}

func (*InitializerDecl) Kind() DeclKind { return KindInitializerDecl }

// MethodDecl is a method bundle: one signature with one implementation per
// access-effect variant.
type MethodDecl struct {
	NodeSite
	Identifier    string
	GenericClause *GenericClause
	Parameters    []DeclID
	Output        ExprID
	Impls         []DeclID // MethodImplDecl
}

func (*MethodDecl) Kind() DeclKind { return KindMethodDecl }

type MethodImplDecl struct {
	NodeSite
	Introducer AccessEffect // let, inout, sink, or set
	Body       Body
}

func (*MethodImplDecl) Kind() DeclKind { return KindMethodImplDecl }

type SubscriptDecl struct {
	NodeSite
	Identifier       string // empty for unnamed subscripts
	IsProperty       bool
	GenericClause    *GenericClause
	ExplicitCaptures []DeclID
	Parameters       []DeclID // nil for property subscripts
	Output           ExprID
	Impls            []DeclID // SubscriptImplDecl
}

func (*SubscriptDecl) Kind() DeclKind { return KindSubscriptDecl }

type SubscriptImplDecl struct {
	NodeSite
	Introducer AccessEffect // let, inout, sink, set, or yielded
	Body       Body
}

func (*SubscriptImplDecl) Kind() DeclKind { return KindSubscriptImplDecl }

type ConformanceDecl struct {
	NodeSite
	Subject      ExprID
	Conformances []ExprID
	WhereClauses []ExprID
	Members      []DeclID
}

func (*ConformanceDecl) Kind() DeclKind { return KindConformanceDecl }

type ExtensionDecl struct {
	NodeSite
	Subject      ExprID
	WhereClauses []ExprID
	Members      []DeclID
}

func (*ExtensionDecl) Kind() DeclKind { return KindExtensionDecl }

// PrecedenceGroup orders infix operators for sequence folding. Higher
// weights bind tighter.
type PrecedenceGroup uint8

const (
	PrecedenceAssignment PrecedenceGroup = iota
	PrecedenceDisjunction
	PrecedenceConjunction
	PrecedenceComparison
	PrecedenceFallback
	PrecedenceRange
	PrecedenceAddition
	PrecedenceMultiplication
	PrecedenceShift
)

func (p PrecedenceGroup) Weight() int { return int(p) }

// IsRightAssociative reports whether operators in the group fold rightward.
func (p PrecedenceGroup) IsRightAssociative() bool {
	return p == PrecedenceAssignment
}

type OperatorDecl struct {
	NodeSite
	Notation   OperatorNotation
	Name       string
	Precedence PrecedenceGroup
}

func (*OperatorDecl) Kind() DeclKind { return KindOperatorDecl }

type NamespaceDecl struct {
	NodeSite
	Identifier string
	Members    []DeclID
}

func (*NamespaceDecl) Kind() DeclKind { return KindNamespaceDecl }
