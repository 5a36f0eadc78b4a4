package checker

import (
	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/types"
)

// RequestState is the per-declaration state machine that memoizes the
// realize/check phases and detects circular dependencies: re-entering a
// declaration while a phase is started is a cycle.
type RequestState uint8

const (
	Unrequested RequestState = iota
	TypeRealizationStarted
	TypeRealizationCompleted
	TypeCheckingStarted
	Success
	Failure
)

func (s RequestState) String() string {
	switch s {
	case TypeRealizationStarted:
		return "typeRealizationStarted"
	case TypeRealizationCompleted:
		return "typeRealizationCompleted"
	case TypeCheckingStarted:
		return "typeCheckingStarted"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unrequested"
	}
}

// DeclRefKind distinguishes how a name expression refers to its target.
type DeclRefKind uint8

const (
	DirectRef DeclRefKind = iota
	MemberRef
	BuiltinTypeRef
	BuiltinFunctionRef
)

// DeclRef is the resolution of a name expression.
type DeclRef struct {
	Kind DeclRefKind
	Decl ast.DeclID // for DirectRef and MemberRef

	// For built-in references.
	BuiltinName string
	BuiltinType types.Type
}

func directRef(d ast.DeclID) DeclRef { return DeclRef{Kind: DirectRef, Decl: d} }
func memberRef(d ast.DeclID) DeclRef { return DeclRef{Kind: MemberRef, Decl: d} }

// ImplicitCapture is one implicitly captured free name of a local function
// or subscript.
type ImplicitCapture struct {
	Name   string
	Effect ast.AccessEffect // inout iff any use is mutable
	Decl   ast.DeclID       // the captured declaration
}

// FoldedSequence is the binary-tree view of an infix chain, produced by
// precedence-driven folding.
type FoldedSequence struct {
	// Leaf is set on leaves; Operator/Left/Right on interior nodes.
	Leaf     ast.ExprID
	Operator ast.ExprID // the operator's NameExpr
	Left     *FoldedSequence
	Right    *FoldedSequence
}

func foldLeaf(e ast.ExprID) *FoldedSequence {
	return &FoldedSequence{Leaf: e, Operator: ast.NoExpr}
}

func (f *FoldedSequence) IsLeaf() bool { return f.Left == nil }
