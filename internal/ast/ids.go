package ast

// Nodes are stored in per-category arenas and addressed by dense typed
// indices. Indices are 1-based: the zero value of every ID is the null
// node, so absent fields need no explicit initialization.

type DeclID int32
type ExprID int32
type PatternID int32
type StmtID int32

const (
	NoDecl    DeclID    = 0
	NoExpr    ExprID    = 0
	NoPattern PatternID = 0
	NoStmt    StmtID    = 0
)
