package checker

import (
	"fmt"
	"strings"

	"github.com/C-BJ/val/internal/ast"
	"github.com/C-BJ/val/internal/source"
	"github.com/C-BJ/val/internal/types"
)

// ConstraintKind identifies a typing constraint.
type ConstraintKind uint8

const (
	// EqualityConstraint: Left = Right.
	EqualityConstraint ConstraintKind = iota
	// SubtypingConstraint: Left <: Right.
	SubtypingConstraint
	// ConformanceConstraint: Subject conforms to all Traits.
	ConformanceConstraint
	// ParameterConstraint: argument Left is compatible with parameter
	// Right (usually a ParameterType) under its convention.
	ParameterConstraint
	// FunctionCallConstraint: Callee is callable with Inputs and Output.
	FunctionCallConstraint
	// MemberConstraint: MemberName names a member of Left with type Right.
	MemberConstraint
	// OverloadConstraint: NameExpr resolves to exactly one of Choices.
	OverloadConstraint
	// DisjunctionConstraint: one of Branches holds.
	DisjunctionConstraint
	// LiteralConstraint: Subject defaults to DefaultType unless
	// constrained to a type conforming to LiteralTrait.
	LiteralConstraint
	// PredicateConstraint: a symbolic value-level constraint, recorded
	// for later evaluation.
	PredicateConstraint
)

// Constraint is one typing obligation. Fields are populated per Kind.
type Constraint struct {
	Kind ConstraintKind
	Site source.Site

	Left  types.Type
	Right types.Type

	Subject types.Type
	Traits  []*types.TraitType

	Callee types.Type
	Inputs []types.CallableParameter
	Output types.Type

	MemberName string
	MemberExpr ast.ExprID // the name expression to bind on discharge

	NameExpr ast.ExprID
	Choices  []OverloadChoice

	Branches []ConstraintBranch

	DefaultType  types.Type
	LiteralTrait *types.TraitType

	Predicate ast.ExprID
}

// OverloadChoice is one candidate of an overload constraint.
type OverloadChoice struct {
	Reference   DeclRef
	Type        types.Type
	Constraints []Constraint
	Penalty     int
}

// ConstraintBranch is one alternative of a general disjunction.
type ConstraintBranch struct {
	Constraints []Constraint
	Penalty     int
}

func equalityConstraint(a, b types.Type, site source.Site) Constraint {
	return Constraint{Kind: EqualityConstraint, Left: a, Right: b, Site: site}
}

func subtypingConstraint(a, b types.Type, site source.Site) Constraint {
	return Constraint{Kind: SubtypingConstraint, Left: a, Right: b, Site: site}
}

func conformanceConstraint(subject types.Type, traits []*types.TraitType, site source.Site) Constraint {
	return Constraint{Kind: ConformanceConstraint, Subject: subject, Traits: traits, Site: site}
}

func parameterConstraint(arg, param types.Type, site source.Site) Constraint {
	return Constraint{Kind: ParameterConstraint, Left: arg, Right: param, Site: site}
}

func memberConstraint(base types.Type, name string, member types.Type, nameExpr ast.ExprID, site source.Site) Constraint {
	return Constraint{Kind: MemberConstraint, Left: base, Right: member, MemberName: name, MemberExpr: nameExpr, Site: site}
}

func functionCallConstraint(callee types.Type, inputs []types.CallableParameter, output types.Type, site source.Site) Constraint {
	return Constraint{Kind: FunctionCallConstraint, Callee: callee, Inputs: inputs, Output: output, Site: site}
}

func overloadConstraint(nameExpr ast.ExprID, choices []OverloadChoice, site source.Site) Constraint {
	return Constraint{Kind: OverloadConstraint, NameExpr: nameExpr, Choices: choices, Site: site}
}

func disjunctionConstraint(branches []ConstraintBranch, site source.Site) Constraint {
	return Constraint{Kind: DisjunctionConstraint, Branches: branches, Site: site}
}

func literalConstraint(subject, deflt types.Type, trait *types.TraitType, site source.Site) Constraint {
	return Constraint{Kind: LiteralConstraint, Subject: subject, DefaultType: deflt, LiteralTrait: trait, Site: site}
}

func predicateConstraint(e ast.ExprID, site source.Site) Constraint {
	return Constraint{Kind: PredicateConstraint, Predicate: e, Site: site}
}

func (k ConstraintKind) String() string {
	switch k {
	case EqualityConstraint:
		return "equality"
	case SubtypingConstraint:
		return "subtyping"
	case ConformanceConstraint:
		return "conformance"
	case ParameterConstraint:
		return "parameter"
	case FunctionCallConstraint:
		return "functionCall"
	case MemberConstraint:
		return "member"
	case OverloadConstraint:
		return "overload"
	case DisjunctionConstraint:
		return "disjunction"
	case LiteralConstraint:
		return "literal"
	case PredicateConstraint:
		return "predicate"
	default:
		return "?"
	}
}

func (con Constraint) String() string {
	switch con.Kind {
	case EqualityConstraint:
		return fmt.Sprintf("%s = %s", con.Left, con.Right)
	case SubtypingConstraint:
		return fmt.Sprintf("%s <: %s", con.Left, con.Right)
	case ConformanceConstraint:
		names := make([]string, len(con.Traits))
		for i, t := range con.Traits {
			names[i] = t.Name
		}
		return fmt.Sprintf("%s : %s", con.Subject, strings.Join(names, " & "))
	case ParameterConstraint:
		return fmt.Sprintf("%s ↓ %s", con.Left, con.Right)
	case FunctionCallConstraint:
		return fmt.Sprintf("%s(...) -> %s", con.Callee, con.Output)
	case MemberConstraint:
		return fmt.Sprintf("%s.%s = %s", con.Left, con.MemberName, con.Right)
	case OverloadConstraint:
		return fmt.Sprintf("overload(%d choices)", len(con.Choices))
	case DisjunctionConstraint:
		return fmt.Sprintf("disjunction(%d branches)", len(con.Branches))
	case LiteralConstraint:
		return fmt.Sprintf("%s defaults to %s", con.Subject, con.DefaultType)
	case PredicateConstraint:
		return fmt.Sprintf("predicate(%d)", con.Predicate)
	default:
		return con.Kind.String()
	}
}
