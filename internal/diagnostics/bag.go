package diagnostics

import "fmt"

// Bag accumulates diagnostics in insertion order, deduplicating repeated
// reports of the same (site, code, message).
type Bag struct {
	seen map[string]bool
	all  []*DiagnosticError
}

func NewBag() *Bag {
	return &Bag{seen: make(map[string]bool)}
}

func (b *Bag) Insert(d *DiagnosticError) {
	if d == nil {
		return
	}
	key := fmt.Sprintf("%s|%s|%s", d.Site, d.Code, d.Message)
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.all = append(b.all, d)
}

func (b *Bag) InsertAll(ds []*DiagnosticError) {
	for _, d := range ds {
		b.Insert(d)
	}
}

// All returns the accumulated diagnostics in insertion order.
func (b *Bag) All() []*DiagnosticError {
	return b.all
}

func (b *Bag) ErrorCount() int {
	n := 0
	for _, d := range b.all {
		if d.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (b *Bag) HasErrors() bool {
	return b.ErrorCount() > 0
}

// ContainsCode reports whether any accumulated diagnostic carries the code.
func (b *Bag) ContainsCode(code ErrorCode) bool {
	for _, d := range b.all {
		if d.Code == code {
			return true
		}
	}
	return false
}
