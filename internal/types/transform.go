package types

import "github.com/C-BJ/val/internal/ast"

// TransformAction tells Transform how to proceed at a node.
type TransformAction uint8

const (
	// StepInto continues into the children of the returned term.
	StepInto TransformAction = iota
	// StepOver replaces the node with the returned term, unvisited.
	StepOver
)

// Transformer decides the fate of one node.
type Transformer func(Type) (TransformAction, Type)

// Transform folds f over t, rebuilding compound terms whose children
// changed. Substitutions short-circuit with StepOver.
func Transform(t Type, f Transformer) Type {
	if t == nil {
		return nil
	}
	action, r := f(t)
	if action == StepOver {
		return r
	}
	return transformParts(r, f)
}

func transformParts(t Type, f Transformer) Type {
	switch t := t.(type) {
	case *AssociatedTypeType:
		return &AssociatedTypeType{Decl: t.Decl, Domain: Transform(t.Domain, f), Name: t.Name}
	case *AssociatedValueType:
		return &AssociatedValueType{Decl: t.Decl, Domain: Transform(t.Domain, f), Name: t.Name}
	case *TypeAliasType:
		return &TypeAliasType{Decl: t.Decl, Name: t.Name, Aliased: Transform(t.Aliased, f)}
	case *BoundGenericType:
		args := make([]GenericArgument, len(t.Arguments))
		for i, a := range t.Arguments {
			if a.Value != nil {
				v := *a.Value
				if v.Type != nil {
					v.Type = Transform(v.Type, f)
				}
				args[i] = GenericArgument{Value: &v}
			} else {
				args[i] = GenericArgument{Type: Transform(a.Type, f)}
			}
		}
		return &BoundGenericType{Base: Transform(t.Base, f), Arguments: args}
	case *LambdaType:
		return &LambdaType{
			ReceiverEffect: t.ReceiverEffect,
			Environment:    Transform(t.Environment, f),
			Inputs:         transformParams(t.Inputs, f),
			Output:         Transform(t.Output, f),
		}
	case *MethodType:
		return &MethodType{
			Capabilities: t.Capabilities,
			Receiver:     Transform(t.Receiver, f),
			Inputs:       transformParams(t.Inputs, f),
			Output:       Transform(t.Output, f),
		}
	case *SubscriptType:
		return &SubscriptType{
			IsProperty:   t.IsProperty,
			Capabilities: t.Capabilities,
			Environment:  Transform(t.Environment, f),
			Inputs:       transformParams(t.Inputs, f),
			Output:       Transform(t.Output, f),
		}
	case *ParameterType:
		return &ParameterType{Convention: t.Convention, Bare: Transform(t.Bare, f)}
	case *RemoteType:
		return &RemoteType{Convention: t.Convention, Bare: Transform(t.Bare, f)}
	case *TupleType:
		elems := make([]TupleElement, len(t.Elements))
		for i, e := range t.Elements {
			elems[i] = TupleElement{Label: e.Label, Type: Transform(e.Type, f)}
		}
		return &TupleType{Elements: elems}
	case *SumType:
		elems := make([]Type, len(t.Elements))
		for i, e := range t.Elements {
			elems[i] = Transform(e, f)
		}
		return &SumType{Elements: elems}
	case *ConformanceLensType:
		return &ConformanceLensType{Subject: Transform(t.Subject, f), Lens: Transform(t.Lens, f)}
	case *MetatypeType:
		return &MetatypeType{Instance: Transform(t.Instance, f)}
	default:
		return t
	}
}

func transformParams(ps []CallableParameter, f Transformer) []CallableParameter {
	out := make([]CallableParameter, len(ps))
	for i, p := range ps {
		out[i] = CallableParameter{Label: p.Label, Type: Transform(p.Type, f)}
	}
	return out
}

// AssociatedTypeResolver resolves the projection of an associated type out
// of a substituted domain, typically by member lookup. A nil result keeps
// the projection symbolic.
type AssociatedTypeResolver func(domain Type, decl ast.DeclID, name string) Type

// Specialized substitutes generic parameters according to subs. When an
// associated type's domain changes, resolve (if non-nil) projects the
// member out of the new domain.
func Specialized(t Type, subs map[ast.DeclID]Type, resolve AssociatedTypeResolver) Type {
	return Transform(t, func(u Type) (TransformAction, Type) {
		switch u := u.(type) {
		case *GenericTypeParameterType:
			if r, ok := subs[u.Decl]; ok {
				return StepOver, r
			}
			return StepOver, u
		case *GenericValueParameterType:
			if r, ok := subs[u.Decl]; ok {
				return StepOver, r
			}
			return StepOver, u
		case *AssociatedTypeType:
			domain := Specialized(u.Domain, subs, resolve)
			if equal(Canonical(domain), Canonical(u.Domain)) {
				return StepOver, u
			}
			if resolve != nil {
				if r := resolve(domain, u.Decl, u.Name); r != nil {
					return StepOver, r
				}
			}
			return StepOver, &AssociatedTypeType{Decl: u.Decl, Domain: domain, Name: u.Name}
		default:
			return StepInto, u
		}
	})
}

// OpenWith replaces every generic parameter with a fresh variable, reusing
// the entry in subs for repeat occurrences. Callers share subs across
// terms to open a whole signature consistently.
func OpenWith(t Type, subs map[ast.DeclID]Type) Type {
	return Transform(t, func(u Type) (TransformAction, Type) {
		switch u := u.(type) {
		case *GenericTypeParameterType:
			v, ok := subs[u.Decl]
			if !ok {
				v = NewVariable()
				subs[u.Decl] = v
			}
			return StepOver, v
		case *GenericValueParameterType:
			v, ok := subs[u.Decl]
			if !ok {
				v = NewVariable()
				subs[u.Decl] = v
			}
			return StepOver, v
		default:
			return StepInto, u
		}
	})
}

// Open replaces every generic parameter with a fresh variable.
func Open(t Type) Type {
	return OpenWith(t, make(map[ast.DeclID]Type))
}
