package types

// Flags summarizes structural facts about a term. All bits except
// IsCanonical compose by union; IsCanonical composes by intersection.
type Flags uint8

const (
	HasError Flags = 1 << iota
	HasVariable
	HasSkolem
	HasGenericTypeParameter
	HasGenericValueParameter
	IsCanonical
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Merge combines the flags of a parent with one child's.
func (f Flags) Merge(child Flags) Flags {
	union := (f | child) &^ IsCanonical
	if f.Has(IsCanonical) && child.Has(IsCanonical) {
		union |= IsCanonical
	}
	return union
}

// FlagsOf computes the flag lattice of a term.
func FlagsOf(t Type) Flags {
	switch t := t.(type) {
	case *ErrorType:
		return HasError | IsCanonical
	case *TypeVariable:
		return HasVariable | IsCanonical
	case *SkolemType:
		return HasSkolem | IsCanonical
	case *GenericTypeParameterType:
		return HasGenericTypeParameter | IsCanonical
	case *GenericValueParameterType:
		return HasGenericValueParameter | IsCanonical
	case *AssociatedTypeType:
		return (IsCanonical).Merge(FlagsOf(t.Domain))
	case *AssociatedValueType:
		return (IsCanonical).Merge(FlagsOf(t.Domain))
	case *ProductType, *TraitType, *AnyType, BuiltinType:
		return IsCanonical
	case *TypeAliasType:
		// An alias is never canonical: it unfolds.
		return FlagsOf(t.Aliased) &^ IsCanonical
	case *BoundGenericType:
		f := IsCanonical.Merge(FlagsOf(t.Base))
		if len(t.Arguments) == 0 {
			f &^= IsCanonical
		}
		for _, a := range t.Arguments {
			if a.Value != nil {
				if a.Value.Type != nil {
					f = f.Merge(FlagsOf(a.Value.Type))
				}
			} else {
				f = f.Merge(FlagsOf(a.Type))
			}
		}
		return f
	case *LambdaType:
		f := IsCanonical.Merge(FlagsOf(t.Environment))
		for _, p := range t.Inputs {
			f = f.Merge(FlagsOf(p.Type))
		}
		return f.Merge(FlagsOf(t.Output))
	case *MethodType:
		f := IsCanonical.Merge(FlagsOf(t.Receiver))
		for _, p := range t.Inputs {
			f = f.Merge(FlagsOf(p.Type))
		}
		return f.Merge(FlagsOf(t.Output))
	case *SubscriptType:
		f := IsCanonical.Merge(FlagsOf(t.Environment))
		for _, p := range t.Inputs {
			f = f.Merge(FlagsOf(p.Type))
		}
		return f.Merge(FlagsOf(t.Output))
	case *ParameterType:
		return IsCanonical.Merge(FlagsOf(t.Bare))
	case *RemoteType:
		return IsCanonical.Merge(FlagsOf(t.Bare))
	case *TupleType:
		f := IsCanonical
		for _, e := range t.Elements {
			f = f.Merge(FlagsOf(e.Type))
		}
		return f
	case *SumType:
		f := IsCanonical
		for _, e := range t.Elements {
			f = f.Merge(FlagsOf(e))
		}
		if len(t.Elements) == 1 || !sumIsNormalized(t) {
			f &^= IsCanonical
		}
		return f
	case *ConformanceLensType:
		return IsCanonical.Merge(FlagsOf(t.Subject)).Merge(FlagsOf(t.Lens))
	case *MetatypeType:
		return IsCanonical.Merge(FlagsOf(t.Instance))
	default:
		return IsCanonical
	}
}
