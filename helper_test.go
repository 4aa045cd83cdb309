package rulefold_test

import (
	"slices"
	"strings"

	"github.com/ezachrisen/rulefold"
)

// facts used by most tests
type facts map[string]any

// spy counts the calls to the actions of the rules it builds.
type spy struct {
	calls map[string]int
}

func newSpy() *spy {
	return &spy{calls: map[string]int{}}
}

// appendTag returns a rule that always matches and appends tag to the list.
func (s *spy) appendTag(tag string) rulefold.Rule[facts, []string] {
	return rulefold.NewRule(tag,
		rulefold.Always[facts, []string](),
		func(_ facts, v []string) ([]string, error) {
			s.calls[tag]++
			return append(slices.Clone(v), tag), nil
		})
}

// never returns a rule that never matches; its action counts calls anyway.
func (s *spy) never(tag string) rulefold.Rule[facts, []string] {
	return rulefold.NewRule(tag,
		rulefold.Never[facts, []string](),
		func(_ facts, v []string) ([]string, error) {
			s.calls[tag]++
			return append(slices.Clone(v), tag), nil
		})
}

// suffix returns a string rule that always matches and appends x.
func suffix(x string) rulefold.Rule[facts, string] {
	return rulefold.NewRule("suffix "+x,
		rulefold.Always[facts, string](),
		rulefold.ActionFunc(func(_ facts, v string) string {
			return v + x
		}))
}

// noMatch returns a string rule that never matches.
func noMatch() rulefold.Rule[facts, string] {
	return rulefold.NewRule("no match",
		rulefold.Never[facts, string](),
		rulefold.ActionFunc(func(_ facts, v string) string {
			return v + "!"
		}))
}

func join(v []string) string {
	return strings.Join(v, ",")
}
