package ast

// PrepareForChecking synthesizes the declarations the checker expects to
// find in the arena: the implicit memberwise initializer of every product
// type and the 'Self' generic parameter of every trait. It runs once,
// before scoping; the checker never mutates the AST.
func (a *AST) PrepareForChecking() {
	if a.prepared {
		return
	}
	a.prepared = true

	// The arena grows while we iterate; snapshot the current length.
	n := len(a.decls)
	for i := 0; i < n; i++ {
		switch d := a.decls[i].(type) {
		case *ProductTypeDecl:
			if !hasMemberwiseInit(a, d) {
				init := &InitializerDecl{IsMemberwise: true}
				init.At = d.At
				id := a.AddDecl(init)
				d.Members = append([]DeclID{id}, d.Members...)
			}
		case *TraitDecl:
			if !isSelfParam(a, d.SelfParameter) {
				self := &GenericParameterDecl{Identifier: "Self"}
				self.At = d.At
				d.SelfParameter = a.AddDecl(self)
			}
		}
	}
}

func hasMemberwiseInit(a *AST, d *ProductTypeDecl) bool {
	for _, m := range d.Members {
		if init, ok := a.Decl(m).(*InitializerDecl); ok && init.IsMemberwise {
			return true
		}
	}
	return false
}

func isSelfParam(a *AST, id DeclID) bool {
	p, ok := a.Decl(id).(*GenericParameterDecl)
	return ok && p.Identifier == "Self"
}
