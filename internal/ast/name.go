package ast

import "strings"

// OperatorNotation distinguishes operator fixity. NotOperator marks an
// ordinary identifier.
type OperatorNotation uint8

const (
	NotOperator OperatorNotation = iota
	InfixNotation
	PrefixNotation
	PostfixNotation
)

func (n OperatorNotation) String() string {
	switch n {
	case InfixNotation:
		return "infix"
	case PrefixNotation:
		return "prefix"
	case PostfixNotation:
		return "postfix"
	default:
		return ""
	}
}

// Name is the name of an entity: a stem plus optional argument labels
// (e.g. "init(self:x:)") and an operator notation for operator names.
type Name struct {
	Stem     string
	Labels   []string
	Notation OperatorNotation
}

func Identifier(stem string) Name {
	return Name{Stem: stem}
}

func OperatorName(notation OperatorNotation, stem string) Name {
	return Name{Stem: stem, Notation: notation}
}

func (n Name) IsOperator() bool {
	return n.Notation != NotOperator
}

func (n Name) String() string {
	if len(n.Labels) == 0 {
		return n.Stem
	}
	var b strings.Builder
	b.WriteString(n.Stem)
	b.WriteByte('(')
	for _, l := range n.Labels {
		if l == "" {
			b.WriteString("_")
		} else {
			b.WriteString(l)
		}
		b.WriteByte(':')
	}
	b.WriteByte(')')
	return b.String()
}
