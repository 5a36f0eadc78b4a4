package types

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/C-BJ/val/internal/ast"
)

// Type is a term of the type algebra. Terms are immutable once created;
// transformations return new terms.
type Type interface {
	String() string
	isType()
}

// --- Leaves ----------------------------------------------------------------

var variableCounter atomic.Uint64

// TypeVariable is a fresh inference hole. Equality is identity.
type TypeVariable struct {
	ID uint64
}

func NewVariable() *TypeVariable {
	return &TypeVariable{ID: variableCounter.Add(1)}
}

func (t *TypeVariable) isType()        {}
func (t *TypeVariable) String() string { return fmt.Sprintf("%%%d", t.ID) }

// SkolemType is a rigid stand-in for a quantified parameter seen from the
// caller's side. Equality is identity.
type SkolemType struct {
	ID     uint64
	Origin Type // the parameter the skolem stands for
}

func NewSkolem(origin Type) *SkolemType {
	return &SkolemType{ID: variableCounter.Add(1), Origin: origin}
}

func (t *SkolemType) isType()        {}
func (t *SkolemType) String() string { return "$" + t.Origin.String() }

type GenericTypeParameterType struct {
	Decl ast.DeclID
	Name string
}

func (t *GenericTypeParameterType) isType()        {}
func (t *GenericTypeParameterType) String() string { return t.Name }

type GenericValueParameterType struct {
	Decl ast.DeclID
	Name string
	// Ascription is the type of the parameter's values.
	Ascription Type
}

func (t *GenericValueParameterType) isType()        {}
func (t *GenericValueParameterType) String() string { return t.Name }

// AssociatedTypeType is the projection of an associated type out of a
// domain (e.g. "X.Element").
type AssociatedTypeType struct {
	Decl   ast.DeclID
	Domain Type
	Name   string
}

func (t *AssociatedTypeType) isType()        {}
func (t *AssociatedTypeType) String() string { return t.Domain.String() + "." + t.Name }

type AssociatedValueType struct {
	Decl   ast.DeclID
	Domain Type
	Name   string
}

func (t *AssociatedValueType) isType()        {}
func (t *AssociatedValueType) String() string { return t.Domain.String() + "." + t.Name }

type ProductType struct {
	Decl ast.DeclID
	Name string
}

func (t *ProductType) isType()        {}
func (t *ProductType) String() string { return t.Name }

type TraitType struct {
	Decl ast.DeclID
	Name string
}

func (t *TraitType) isType()        {}
func (t *TraitType) String() string { return t.Name }

// TypeAliasType is nominal and unfolds to Aliased under canonicalization.
type TypeAliasType struct {
	Decl    ast.DeclID
	Name    string
	Aliased Type
}

func (t *TypeAliasType) isType()        {}
func (t *TypeAliasType) String() string { return t.Name }

// AnyType is the top existential; every type is a subtype of it.
type AnyType struct{}

func (t *AnyType) isType()        {}
func (t *AnyType) String() string { return "Any" }

// --- Compounds -------------------------------------------------------------

// SymbolicValue is a value-level generic argument kept symbolic until a
// later evaluation stage.
type SymbolicValue struct {
	Expr ast.ExprID
	Type Type
}

// GenericArgument is either a type or a symbolic value.
type GenericArgument struct {
	Type  Type
	Value *SymbolicValue
}

func (g GenericArgument) String() string {
	if g.Value != nil {
		return fmt.Sprintf("@value(%d)", g.Value.Expr)
	}
	return g.Type.String()
}

type BoundGenericType struct {
	Base      Type
	Arguments []GenericArgument
}

func (t *BoundGenericType) isType() {}
func (t *BoundGenericType) String() string {
	parts := make([]string, len(t.Arguments))
	for i, a := range t.Arguments {
		parts[i] = a.String()
	}
	return t.Base.String() + "<" + strings.Join(parts, ", ") + ">"
}

// CallableParameter is a labeled input of a lambda, method, or subscript.
// Its type is usually a ParameterType.
type CallableParameter struct {
	Label string
	Type  Type
}

func (p CallableParameter) String() string {
	if p.Label == "" {
		return p.Type.String()
	}
	return p.Label + ": " + p.Type.String()
}

func paramsString(ps []CallableParameter) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, ", ")
}

type LambdaType struct {
	ReceiverEffect ast.AccessEffect
	Environment    Type // Void for thin lambdas
	Inputs         []CallableParameter
	Output         Type
}

func (t *LambdaType) isType() {}
func (t *LambdaType) String() string {
	return fmt.Sprintf("[%s](%s) -> %s", t.Environment, paramsString(t.Inputs), t.Output)
}

type MethodType struct {
	Capabilities ast.AccessEffectSet
	Receiver     Type
	Inputs       []CallableParameter
	Output       Type
}

func (t *MethodType) isType() {}
func (t *MethodType) String() string {
	return fmt.Sprintf("method[%s] %s (%s) -> %s", t.Receiver, t.Capabilities, paramsString(t.Inputs), t.Output)
}

type SubscriptType struct {
	IsProperty   bool
	Capabilities ast.AccessEffectSet
	Environment  Type
	Inputs       []CallableParameter
	Output       Type
}

func (t *SubscriptType) isType() {}
func (t *SubscriptType) String() string {
	head := "subscript"
	if t.IsProperty {
		head = "property"
	}
	return fmt.Sprintf("%s [%s](%s): %s %s", head, t.Environment, paramsString(t.Inputs), t.Output, t.Capabilities)
}

// ParameterType pairs a passing convention with a bare type.
type ParameterType struct {
	Convention ast.AccessEffect
	Bare       Type
}

func (t *ParameterType) isType()        {}
func (t *ParameterType) String() string { return t.Convention.String() + " " + t.Bare.String() }

// RemoteType is a projection of a bare type under an access effect.
type RemoteType struct {
	Convention ast.AccessEffect
	Bare       Type
}

func (t *RemoteType) isType()        {}
func (t *RemoteType) String() string { return "remote " + t.Convention.String() + " " + t.Bare.String() }

type TupleElement struct {
	Label string
	Type  Type
}

type TupleType struct {
	Elements []TupleElement
}

func (t *TupleType) isType() {}
func (t *TupleType) String() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		if e.Label == "" {
			parts[i] = e.Type.String()
		} else {
			parts[i] = e.Label + ": " + e.Type.String()
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// SumType is an unordered sum. The empty sum is Never.
type SumType struct {
	Elements []Type
}

func (t *SumType) isType() {}
func (t *SumType) String() string {
	if len(t.Elements) == 0 {
		return "Never"
	}
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.String()
	}
	return "Sum<" + strings.Join(parts, ", ") + ">"
}

// ConformanceLensType views Subject through one of its traits.
type ConformanceLensType struct {
	Subject Type
	Lens    Type // a TraitType
}

func (t *ConformanceLensType) isType()        {}
func (t *ConformanceLensType) String() string { return t.Subject.String() + "::" + t.Lens.String() }

type MetatypeType struct {
	Instance Type
}

func MetatypeOf(t Type) *MetatypeType { return &MetatypeType{Instance: t} }

func (t *MetatypeType) isType()        {}
func (t *MetatypeType) String() string { return "Metatype<" + t.Instance.String() + ">" }

// BuiltinType enumerates the machine-level types of the Builtin module.
type BuiltinType uint8

const (
	BuiltinModule BuiltinType = iota
	BuiltinPtr
	BuiltinI1
	BuiltinI8
	BuiltinI16
	BuiltinI32
	BuiltinI64
	BuiltinWord
	BuiltinHalf
	BuiltinFloat
	BuiltinDouble
)

func (t BuiltinType) isType() {}
func (t BuiltinType) String() string {
	switch t {
	case BuiltinModule:
		return "Builtin"
	case BuiltinPtr:
		return "Builtin.ptr"
	case BuiltinI1:
		return "Builtin.i1"
	case BuiltinI8:
		return "Builtin.i8"
	case BuiltinI16:
		return "Builtin.i16"
	case BuiltinI32:
		return "Builtin.i32"
	case BuiltinI64:
		return "Builtin.i64"
	case BuiltinWord:
		return "Builtin.word"
	case BuiltinHalf:
		return "Builtin.half"
	case BuiltinFloat:
		return "Builtin.float"
	case BuiltinDouble:
		return "Builtin.double"
	default:
		return "Builtin.?"
	}
}

// ErrorType marks ill-formed types. It propagates without producing
// further diagnostics.
type ErrorType struct{}

func (t *ErrorType) isType()        {}
func (t *ErrorType) String() string { return "_error" }

// Shared singletons.
var (
	Error = &ErrorType{}
	Any   = &AnyType{}
	Void  = &TupleType{}
	Never = &SumType{}
)

// IsVoid reports whether t is the canonical empty tuple.
func IsVoid(t Type) bool {
	tt, ok := Canonical(t).(*TupleType)
	return ok && len(tt.Elements) == 0
}

// IsNever reports whether t is the canonical empty sum.
func IsNever(t Type) bool {
	st, ok := Canonical(t).(*SumType)
	return ok && len(st.Elements) == 0
}
