package rulefold

import (
	"strconv"
	"strings"
)

// location identifies a node by its chain of ancestors. The printable path,
// such as all-of[1]/conditional/plain, is only built when asked for, so
// walking a deep tree stays linear.
type location struct {
	parent *location
	seg    string

	// idx is the node's index among the children of a list parent, or -1.
	idx int
}

func (l *location) child(seg string, idx int) *location {
	return &location{parent: l, seg: seg, idx: idx}
}

func (l *location) String() string {
	if l == nil {
		return ""
	}
	var chain []*location
	for n := l; n != nil; n = n.parent {
		chain = append(chain, n)
	}
	var sb strings.Builder
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		if n.parent != nil {
			if n.idx >= 0 {
				sb.WriteString("[")
				sb.WriteString(strconv.Itoa(n.idx))
				sb.WriteString("]")
			}
			sb.WriteString("/")
		}
		sb.WriteString(n.seg)
	}
	return sb.String()
}

// segment is the path element naming r.
func segment[F, V any](r Rule[F, V]) string {
	if r == nil {
		return "<nil>"
	}
	return r.Kind().String()
}
