package cond

import (
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/condop/internal/state"
)

// Kind discriminates the two node variants.
type Kind int

const (
	// KindState is a time-window check on one state.
	KindState Kind = iota + 1
	// KindOp combines two children.
	KindOp
)

// OpType is the boolean combinator of a KindOp node.
type OpType int

const (
	And OpType = iota + 1
	Or
)

func (o OpType) String() string {
	switch o {
	case And:
		return "and"
	case Or:
		return "or"
	default:
		return "?"
	}
}

// Lookup resolves a state name to a copy of its recorder.
// *state.Service satisfies it.
type Lookup interface {
	Lookup(name string) (state.Recorder, bool)
}

// Node is one node of a condition tree.
type Node struct {
	Kind Kind

	// KindState
	StateName  string
	MinSeconds float64
	MaxSeconds float64

	// KindOp
	Op    OpType
	Left  *Node
	Right *Node
}

// Leaf builds a state check.
func Leaf(name string, minSeconds, maxSeconds float64) *Node {
	return &Node{
		Kind:       KindState,
		StateName:  state.NormalizeName(name),
		MinSeconds: minSeconds,
		MaxSeconds: maxSeconds,
	}
}

// AndOf builds l AND r.
func AndOf(l, r *Node) *Node {
	return &Node{Kind: KindOp, Op: And, Left: l, Right: r}
}

// OrOf builds l OR r.
func OrOf(l, r *Node) *Node {
	return &Node{Kind: KindOp, Op: Or, Left: l, Right: r}
}

// MergeOr combines two optional trees with OR; nil is the identity.
func MergeOr(a, b *Node) *Node {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return OrOf(a, b)
	}
}

// InTimeRange evaluates the tree at now. A nil tree is true.
//
// A leaf is true only if the state exists, has fired, and now minus its last
// fire time lies in [MinSeconds, MaxSeconds]. Unknown states evaluate false.
func (n *Node) InTimeRange(src Lookup, now float64) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case KindState:
		r, ok := src.Lookup(n.StateName)
		if !ok || !r.Fired() {
			return false
		}
		elapsed := now - r.LastRecordTime
		return elapsed >= n.MinSeconds && elapsed <= n.MaxSeconds
	case KindOp:
		switch n.Op {
		case And:
			return n.Left.InTimeRange(src, now) && n.Right.InTimeRange(src, now)
		case Or:
			return n.Left.InTimeRange(src, now) || n.Right.InTimeRange(src, now)
		}
	}
	return false
}

// UsageStates returns every state name referenced by the tree.
func (n *Node) UsageStates() map[string]struct{} {
	out := make(map[string]struct{})
	n.collect(out)
	return out
}

// UsageStateList is UsageStates sorted.
func (n *Node) UsageStateList() []string {
	set := n.UsageStates()
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (n *Node) collect(out map[string]struct{}) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindState:
		out[n.StateName] = struct{}{}
	case KindOp:
		n.Left.collect(out)
		n.Right.collect(out)
	}
}

// String renders the tree in the expression syntax accepted by Parse.
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	n.write(&b, 0)
	return b.String()
}

func (n *Node) write(b *strings.Builder, parent OpType) {
	switch n.Kind {
	case KindState:
		b.WriteString("[")
		b.WriteString(strconv.Quote(n.StateName))
		b.WriteString(", ")
		b.WriteString(formatSeconds(n.MinSeconds))
		b.WriteString(", ")
		b.WriteString(formatSeconds(n.MaxSeconds))
		b.WriteString("]")
	case KindOp:
		paren := parent != 0 && parent != n.Op
		if paren {
			b.WriteString("(")
		}
		n.Left.write(b, n.Op)
		b.WriteString(" ")
		b.WriteString(n.Op.String())
		b.WriteString(" ")
		n.Right.write(b, n.Op)
		if paren {
			b.WriteString(")")
		}
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
