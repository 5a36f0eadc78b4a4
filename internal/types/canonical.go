package types

import "sort"

// sumIsNormalized reports whether the elements are deduplicated and sorted
// by their printed identity.
func sumIsNormalized(t *SumType) bool {
	for i := 1; i < len(t.Elements); i++ {
		a, b := t.Elements[i-1].String(), t.Elements[i].String()
		if a >= b {
			return false
		}
	}
	return true
}

// Canonical returns the representative of t's equivalence class: aliases
// unfolded, sum elements sorted and deduplicated, argument-less bound
// generics collapsed to their base.
func Canonical(t Type) Type {
	if t == nil {
		return nil
	}
	if FlagsOf(t).Has(IsCanonical) {
		return t
	}
	switch t := t.(type) {
	case *TypeAliasType:
		return Canonical(t.Aliased)

	case *AssociatedTypeType:
		return &AssociatedTypeType{Decl: t.Decl, Domain: Canonical(t.Domain), Name: t.Name}

	case *AssociatedValueType:
		return &AssociatedValueType{Decl: t.Decl, Domain: Canonical(t.Domain), Name: t.Name}

	case *BoundGenericType:
		base := Canonical(t.Base)
		if len(t.Arguments) == 0 {
			return base
		}
		args := make([]GenericArgument, len(t.Arguments))
		for i, a := range t.Arguments {
			if a.Value != nil {
				args[i] = a
			} else {
				args[i] = GenericArgument{Type: Canonical(a.Type)}
			}
		}
		return &BoundGenericType{Base: base, Arguments: args}

	case *LambdaType:
		return &LambdaType{
			ReceiverEffect: t.ReceiverEffect,
			Environment:    Canonical(t.Environment),
			Inputs:         canonicalParams(t.Inputs),
			Output:         Canonical(t.Output),
		}

	case *MethodType:
		return &MethodType{
			Capabilities: t.Capabilities,
			Receiver:     Canonical(t.Receiver),
			Inputs:       canonicalParams(t.Inputs),
			Output:       Canonical(t.Output),
		}

	case *SubscriptType:
		return &SubscriptType{
			IsProperty:   t.IsProperty,
			Capabilities: t.Capabilities,
			Environment:  Canonical(t.Environment),
			Inputs:       canonicalParams(t.Inputs),
			Output:       Canonical(t.Output),
		}

	case *ParameterType:
		return &ParameterType{Convention: t.Convention, Bare: Canonical(t.Bare)}

	case *RemoteType:
		return &RemoteType{Convention: t.Convention, Bare: Canonical(t.Bare)}

	case *TupleType:
		elems := make([]TupleElement, len(t.Elements))
		for i, e := range t.Elements {
			elems[i] = TupleElement{Label: e.Label, Type: Canonical(e.Type)}
		}
		return &TupleType{Elements: elems}

	case *SumType:
		elems := make([]Type, 0, len(t.Elements))
		for _, e := range t.Elements {
			elems = append(elems, Canonical(e))
		}
		sort.SliceStable(elems, func(i, j int) bool { return elems[i].String() < elems[j].String() })
		dedup := elems[:0]
		for i, e := range elems {
			if i == 0 || !equal(e, dedup[len(dedup)-1]) {
				dedup = append(dedup, e)
			}
		}
		if len(dedup) == 1 {
			return dedup[0]
		}
		return &SumType{Elements: dedup}

	case *ConformanceLensType:
		return &ConformanceLensType{Subject: Canonical(t.Subject), Lens: Canonical(t.Lens)}

	case *MetatypeType:
		return &MetatypeType{Instance: Canonical(t.Instance)}

	default:
		return t
	}
}

func canonicalParams(ps []CallableParameter) []CallableParameter {
	out := make([]CallableParameter, len(ps))
	for i, p := range ps {
		out[i] = CallableParameter{Label: p.Label, Type: Canonical(p.Type)}
	}
	return out
}

// Equal reports equivalence: structural equality of canonical forms.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return equal(Canonical(a), Canonical(b))
}

// equal compares two canonical terms structurally. Variables and skolems
// compare by identity.
func equal(a, b Type) bool {
	if a == b {
		return true
	}
	switch x := a.(type) {
	case *TypeVariable, *SkolemType:
		return false // identity compared above
	case *GenericTypeParameterType:
		y, ok := b.(*GenericTypeParameterType)
		return ok && x.Decl == y.Decl
	case *GenericValueParameterType:
		y, ok := b.(*GenericValueParameterType)
		return ok && x.Decl == y.Decl
	case *AssociatedTypeType:
		y, ok := b.(*AssociatedTypeType)
		return ok && x.Decl == y.Decl && equal(x.Domain, y.Domain)
	case *AssociatedValueType:
		y, ok := b.(*AssociatedValueType)
		return ok && x.Decl == y.Decl && equal(x.Domain, y.Domain)
	case *ProductType:
		y, ok := b.(*ProductType)
		return ok && x.Decl == y.Decl
	case *TraitType:
		y, ok := b.(*TraitType)
		return ok && x.Decl == y.Decl
	case *AnyType:
		_, ok := b.(*AnyType)
		return ok
	case *ErrorType:
		_, ok := b.(*ErrorType)
		return ok
	case BuiltinType:
		y, ok := b.(BuiltinType)
		return ok && x == y
	case *BoundGenericType:
		y, ok := b.(*BoundGenericType)
		if !ok || !equal(x.Base, y.Base) || len(x.Arguments) != len(y.Arguments) {
			return false
		}
		for i := range x.Arguments {
			ax, ay := x.Arguments[i], y.Arguments[i]
			if (ax.Value == nil) != (ay.Value == nil) {
				return false
			}
			if ax.Value != nil {
				if ax.Value.Expr != ay.Value.Expr {
					return false
				}
			} else if !equal(ax.Type, ay.Type) {
				return false
			}
		}
		return true
	case *LambdaType:
		y, ok := b.(*LambdaType)
		return ok && x.ReceiverEffect == y.ReceiverEffect &&
			equal(x.Environment, y.Environment) &&
			paramsEqual(x.Inputs, y.Inputs) && equal(x.Output, y.Output)
	case *MethodType:
		y, ok := b.(*MethodType)
		return ok && x.Capabilities == y.Capabilities &&
			equal(x.Receiver, y.Receiver) &&
			paramsEqual(x.Inputs, y.Inputs) && equal(x.Output, y.Output)
	case *SubscriptType:
		y, ok := b.(*SubscriptType)
		return ok && x.IsProperty == y.IsProperty && x.Capabilities == y.Capabilities &&
			equal(x.Environment, y.Environment) &&
			paramsEqual(x.Inputs, y.Inputs) && equal(x.Output, y.Output)
	case *ParameterType:
		y, ok := b.(*ParameterType)
		return ok && x.Convention == y.Convention && equal(x.Bare, y.Bare)
	case *RemoteType:
		y, ok := b.(*RemoteType)
		return ok && x.Convention == y.Convention && equal(x.Bare, y.Bare)
	case *TupleType:
		y, ok := b.(*TupleType)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if x.Elements[i].Label != y.Elements[i].Label || !equal(x.Elements[i].Type, y.Elements[i].Type) {
				return false
			}
		}
		return true
	case *SumType:
		y, ok := b.(*SumType)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !equal(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	case *ConformanceLensType:
		y, ok := b.(*ConformanceLensType)
		return ok && equal(x.Subject, y.Subject) && equal(x.Lens, y.Lens)
	case *MetatypeType:
		y, ok := b.(*MetatypeType)
		return ok && equal(x.Instance, y.Instance)
	}
	return false
}

func paramsEqual(a, b []CallableParameter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Label != b[i].Label || !equal(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}
