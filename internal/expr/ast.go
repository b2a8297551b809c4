package expr

// node is an expression tree element. Evaluation lives in eval.go.
type node interface {
	pos() int
}

type numberLit struct {
	at  int
	val float64
}

type identRef struct {
	at   int
	name string
}

type unaryExpr struct {
	at int
	op string // "-", "+", "not"
	x  node
}

type binaryExpr struct {
	at   int
	op   string
	x, y node
}

type callExpr struct {
	at   int
	fn   string
	args []node
}

func (n *numberLit) pos() int  { return n.at }
func (n *identRef) pos() int   { return n.at }
func (n *unaryExpr) pos() int  { return n.at }
func (n *binaryExpr) pos() int { return n.at }
func (n *callExpr) pos() int   { return n.at }

// statement is one ';'-separated piece of a program. Bind is empty when the
// statement had no left-hand side or its left-hand side was not a plain identifier.
type statement struct {
	Bind string
	Expr node
}

// collectRefs adds every identifier read under n to seen.
func collectRefs(n node, seen map[string]bool) {
	switch n := n.(type) {
	case *identRef:
		seen[n.name] = true
	case *unaryExpr:
		collectRefs(n.x, seen)
	case *binaryExpr:
		collectRefs(n.x, seen)
		collectRefs(n.y, seen)
	case *callExpr:
		for _, a := range n.args {
			collectRefs(a, seen)
		}
	}
}
