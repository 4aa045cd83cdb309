package rulefold

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
)

// Kind identifies the variant of a rule node.
type Kind int

const (
	KindPlain Kind = iota
	KindScopedFacts
	KindTransformed
	KindConditional
	KindAllOf
	KindFirstOf
	KindChainOf
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindScopedFacts:
		return "scoped-facts"
	case KindTransformed:
		return "transformed"
	case KindConditional:
		return "conditional"
	case KindAllOf:
		return "all-of"
	case KindFirstOf:
		return "first-of"
	case KindChainOf:
		return "chain-of"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// A Rule is a node in a rule tree. The set of rule types is closed: only the
// types in this package implement Rule, and the evaluator handles each of
// them.
//
// Rules are built once and evaluated many times. A rule must not be
// modified after it has been built; the builders in this package copy
// the slices they are given, so that a caller reusing a slice cannot
// change an existing rule.
//
// # Rule Structures
//
//	NewRule         leaf: if the matcher passes, run the action
//	ScopeFacts      run the child with replacement facts
//	TransformOutput post-process the child's value if the child matched
//	When            only run the child if an extra matcher passes
//	AllOf           run every child, each seeing the previous child's value
//	FirstOf         run children against the same input until one matches
//	ChainOf         run children in a pipeline until one does not match
type Rule[F, V any] interface {
	Kind() Kind

	// children returns the direct children in evaluation order.
	children() []Rule[F, V]
}

// PlainRule is a leaf rule pairing a matcher with an action.
type PlainRule[F, V any] struct {
	// Optional identifier, used in traces and when rendering the tree.
	ID     string
	Match  Matcher[F, V]
	Action Action[F, V]
}

// ScopedRule evaluates Rule with the facts replaced by Mapper(facts).
// The replacement is only visible inside Rule.
type ScopedRule[F, V any] struct {
	Mapper Mapper[F]
	Rule   Rule[F, V]
}

// TransformedRule applies Transform to the value produced by Rule, but only
// if Rule matched.
type TransformedRule[F, V any] struct {
	Transform Transformer[V]
	Rule      Rule[F, V]
}

// ConditionalRule evaluates Rule only if Match passes.
type ConditionalRule[F, V any] struct {
	Match Matcher[F, V]
	Rule  Rule[F, V]
}

// AllOfRule evaluates every child in order. Each child receives the state
// produced by the previous child; the rule matched if any child matched.
type AllOfRule[F, V any] struct {
	Rules []Rule[F, V]
}

// FirstOfRule evaluates children in order against the same incoming state,
// returning the result of the first child that matched.
type FirstOfRule[F, V any] struct {
	Rules []Rule[F, V]
}

// ChainOfRule feeds each child's result into the next, stopping at the first
// child that did not match.
type ChainOfRule[F, V any] struct {
	Rules []Rule[F, V]
}

func (*PlainRule[F, V]) Kind() Kind       { return KindPlain }
func (*ScopedRule[F, V]) Kind() Kind      { return KindScopedFacts }
func (*TransformedRule[F, V]) Kind() Kind { return KindTransformed }
func (*ConditionalRule[F, V]) Kind() Kind { return KindConditional }
func (*AllOfRule[F, V]) Kind() Kind       { return KindAllOf }
func (*FirstOfRule[F, V]) Kind() Kind     { return KindFirstOf }
func (*ChainOfRule[F, V]) Kind() Kind     { return KindChainOf }

func (*PlainRule[F, V]) children() []Rule[F, V] { return nil }

func (r *ScopedRule[F, V]) children() []Rule[F, V] {
	if r == nil {
		return nil
	}
	return []Rule[F, V]{r.Rule}
}

func (r *TransformedRule[F, V]) children() []Rule[F, V] {
	if r == nil {
		return nil
	}
	return []Rule[F, V]{r.Rule}
}

func (r *ConditionalRule[F, V]) children() []Rule[F, V] {
	if r == nil {
		return nil
	}
	return []Rule[F, V]{r.Rule}
}

func (r *AllOfRule[F, V]) children() []Rule[F, V] {
	if r == nil {
		return nil
	}
	return r.Rules
}

func (r *FirstOfRule[F, V]) children() []Rule[F, V] {
	if r == nil {
		return nil
	}
	return r.Rules
}

func (r *ChainOfRule[F, V]) children() []Rule[F, V] {
	if r == nil {
		return nil
	}
	return r.Rules
}

// NewRule builds a leaf rule. The id can be empty.
func NewRule[F, V any](id string, m Matcher[F, V], a Action[F, V]) Rule[F, V] {
	return &PlainRule[F, V]{ID: id, Match: m, Action: a}
}

// ScopeFacts builds a rule that evaluates r with the facts replaced by
// mapper(facts).
func ScopeFacts[F, V any](mapper Mapper[F], r Rule[F, V]) Rule[F, V] {
	return &ScopedRule[F, V]{Mapper: mapper, Rule: r}
}

// TransformOutput builds a rule that applies fn to the value of r when r
// matched.
func TransformOutput[F, V any](fn Transformer[V], r Rule[F, V]) Rule[F, V] {
	return &TransformedRule[F, V]{Transform: fn, Rule: r}
}

// When builds a rule that evaluates r only if m passes.
func When[F, V any](m Matcher[F, V], r Rule[F, V]) Rule[F, V] {
	return &ConditionalRule[F, V]{Match: m, Rule: r}
}

// AllOf builds a rule that evaluates every one of the rules in order.
func AllOf[F, V any](rules ...Rule[F, V]) Rule[F, V] {
	return &AllOfRule[F, V]{Rules: slices.Clone(rules)}
}

// FirstOf builds a rule that stops at the first of the rules that matches.
func FirstOf[F, V any](rules ...Rule[F, V]) Rule[F, V] {
	return &FirstOfRule[F, V]{Rules: slices.Clone(rules)}
}

// ChainOf builds a rule that stops at the first of the rules that does not
// match.
func ChainOf[F, V any](rules ...Rule[F, V]) Rule[F, V] {
	return &ChainOfRule[F, V]{Rules: slices.Clone(rules)}
}

// checkNode reports whether the node itself is well formed. Children are
// not inspected. path is only formatted when the node is malformed.
func checkNode[F, V any](r Rule[F, V], path fmt.Stringer) error {
	var missing string
	switch n := r.(type) {
	case nil:
		return errors.Wrapf(ErrMalformedRule, "%s: nil rule", path)
	case *PlainRule[F, V]:
		switch {
		case n == nil:
			missing = "rule"
		case n.Match == nil:
			missing = "matcher"
		case n.Action == nil:
			missing = "action"
		}
	case *ScopedRule[F, V]:
		switch {
		case n == nil:
			missing = "rule"
		case n.Mapper == nil:
			missing = "mapper"
		}
	case *TransformedRule[F, V]:
		switch {
		case n == nil:
			missing = "rule"
		case n.Transform == nil:
			missing = "transformer"
		}
	case *ConditionalRule[F, V]:
		switch {
		case n == nil:
			missing = "rule"
		case n.Match == nil:
			missing = "matcher"
		}
	case *AllOfRule[F, V]:
		if n == nil {
			missing = "rule"
		}
	case *FirstOfRule[F, V]:
		if n == nil {
			missing = "rule"
		}
	case *ChainOfRule[F, V]:
		if n == nil {
			missing = "rule"
		}
	default:
		return errors.Wrapf(ErrMalformedRule, "%s: unknown rule type %T", path, r)
	}
	if missing != "" {
		return errors.Wrapf(ErrMalformedRule, "%s: missing %s", path, missing)
	}
	return nil
}

// visit walks the tree depth first, in evaluation order, without recursion.
// fn is called for each node with its location and depth; returning an
// error stops the walk. A node that is its own ancestor stops the walk with
// an error wrapping ErrMaxDepth. Shared sub-trees are visited once per
// parent.
func visit[F, V any](root Rule[F, V], fn func(r Rule[F, V], at *location, depth int) error) error {
	type item struct {
		r     Rule[F, V]
		at    *location
		depth int

		// exit marks the point where r's sub-tree is done.
		exit bool
	}
	onPath := map[any]bool{}
	stack := []item{{r: root, at: &location{seg: segment(root), idx: -1}}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		id, tracked := identity(it.r)
		if it.exit {
			delete(onPath, id)
			continue
		}
		if tracked && onPath[id] {
			return errors.Wrapf(ErrMaxDepth, "%s: rule is its own ancestor", it.at)
		}
		if err := fn(it.r, it.at, it.depth); err != nil {
			return err
		}
		if it.r == nil {
			continue
		}
		if tracked {
			onPath[id] = true
			stack = append(stack, item{r: it.r, exit: true})
		}
		cs := it.r.children()
		list := isList(it.r)
		for i := len(cs) - 1; i >= 0; i-- {
			idx := i
			if !list {
				idx = -1
			}
			stack = append(stack, item{
				r:     cs[i],
				at:    it.at.child(segment(cs[i]), idx),
				depth: it.depth + 1,
			})
		}
	}
	return nil
}

// identity returns a map key for the rule types of this package. Other
// implementations are not guaranteed to be comparable.
func identity[F, V any](r Rule[F, V]) (any, bool) {
	switch n := r.(type) {
	case *PlainRule[F, V]:
		return n, n != nil
	case *ScopedRule[F, V]:
		return n, n != nil
	case *TransformedRule[F, V]:
		return n, n != nil
	case *ConditionalRule[F, V]:
		return n, n != nil
	case *AllOfRule[F, V]:
		return n, n != nil
	case *FirstOfRule[F, V]:
		return n, n != nil
	case *ChainOfRule[F, V]:
		return n, n != nil
	}
	return nil, false
}

func isList[F, V any](r Rule[F, V]) bool {
	switch r.Kind() {
	case KindAllOf, KindFirstOf, KindChainOf:
		return true
	}
	return false
}

// Validate checks every node in the tree and returns an error wrapping
// ErrMalformedRule for the first node, in evaluation order, that is nil,
// of an unknown type, or missing a function.
//
// A tree in which a rule is its own ancestor never terminates when
// evaluated, so Validate rejects it with an error wrapping ErrMaxDepth.
func Validate[F, V any](r Rule[F, V]) error {
	return visit(r, func(n Rule[F, V], at *location, _ int) error {
		return checkNode(n, at)
	})
}

// Count returns the number of nodes in the tree. Shared sub-trees are
// counted once per parent. Counting stops at the first cycle.
func Count[F, V any](r Rule[F, V]) int {
	n := 0
	_ = visit(r, func(node Rule[F, V], _ *location, _ int) error {
		if node != nil {
			n++
		}
		return nil
	})
	return n
}

func label[F, V any](r Rule[F, V]) string {
	if p, ok := r.(*PlainRule[F, V]); ok && p != nil && p.ID != "" {
		return p.ID
	}
	return ""
}

func nodeName[F, V any](r Rule[F, V]) string {
	if r == nil {
		return "<nil>"
	}
	if id := label(r); id != "" {
		return r.Kind().String() + " " + id
	}
	return r.Kind().String()
}

// maxTreeDepth limits the depth rendered by Tree.
const maxTreeDepth = 20

// Tree returns a tree representation of the rule showing node kinds and
// plain rule IDs. Nodes deeper than 20 levels are elided.
//
// Example output:
//
//	first-of
//	├── all-of
//	│   ├── plain r1
//	│   └── plain r2
//	└── plain r3
func Tree[F, V any](r Rule[F, V]) string {
	var sb strings.Builder
	sb.WriteString(nodeName(r))
	sb.WriteString("\n")
	buildTree(&sb, r, "", 0)
	return sb.String()
}

func buildTree[F, V any](sb *strings.Builder, r Rule[F, V], prefix string, depth int) {
	if r == nil {
		return
	}
	cs := r.children()
	if depth >= maxTreeDepth {
		if len(cs) > 0 {
			sb.WriteString(prefix)
			sb.WriteString("└── ...\n")
		}
		return
	}
	for i, child := range cs {
		connector, childPrefix := "├── ", "│   "
		if i == len(cs)-1 {
			connector, childPrefix = "└── ", "    "
		}
		sb.WriteString(prefix)
		sb.WriteString(connector)
		sb.WriteString(nodeName(child))
		sb.WriteString("\n")
		buildTree(sb, child, prefix+childPrefix, depth+1)
	}
}

// Describe renders every node of the rule as a row of a table, indented by
// depth, in evaluation order. Rendering stops at the first cycle.
func Describe[F, V any](r Rule[F, V]) string {
	tw := table.NewWriter()
	tw.SetTitle("\nRULEFOLD RULES\n")
	tw.AppendHeader(table.Row{"\nRule", "\nID", "\nChildren", "\nPath"})

	maxWidthOfPathColumn := 60
	longest := 0
	_ = visit(r, func(n Rule[F, V], at *location, depth int) error {
		path := at.String()
		kind, children := "<nil>", 0
		if n != nil {
			kind = n.Kind().String()
			children = len(n.children())
		}
		tw.AppendRow(table.Row{
			strings.Repeat("  ", depth) + kind,
			label(n),
			fmt.Sprintf("%d", children),
			path,
		})
		if len(path) > longest {
			longest = len(path)
		}
		return nil
	})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, WidthMax: maxWidthOfPathColumn},
	})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	// Only separate rows when a path is wide enough to wrap.
	if longest > maxWidthOfPathColumn {
		style.Options.SeparateRows = true
	}
	tw.SetStyle(style)
	return tw.Render()
}
