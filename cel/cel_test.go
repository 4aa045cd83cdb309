package cel_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ezachrisen/rulefold"
	"github.com/ezachrisen/rulefold/cel"
	"github.com/google/cel-go/ext"
	"github.com/matryer/is"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type facts = map[string]any

func TestMatcher(t *testing.T) {
	is := is.New(t)

	cases := map[string]struct {
		expr  string
		facts facts
		value string
		want  bool
	}{
		"fact":           {expr: `facts.age >= 18`, facts: facts{"age": 20}, want: true},
		"fact false":     {expr: `facts.age >= 18`, facts: facts{"age": 12}, want: false},
		"value":          {expr: `value.startsWith("/shop")`, value: "/shop/cart", want: true},
		"both":           {expr: `facts.country == "DE" && value != ""`, facts: facts{"country": "DE"}, value: "x", want: true},
		"has guard":      {expr: `has(facts.beta) && facts.beta`, facts: facts{}, want: false},
		"list":           {expr: `"C" in facts.grades`, facts: facts{"grades": []string{"A", "C"}}, want: true},
		"dynamic output": {expr: `facts.flag`, facts: facts{"flag": true}, want: true},
	}

	for name, c := range cases {
		m, err := cel.Matcher[facts, string](c.expr)
		is.NoErr(err)
		got, err := m(c.facts, c.value)
		is.NoErr(err)
		if got != c.want {
			t.Errorf("%s: got %v, wanted %v", name, got, c.want)
		}
	}
}

func TestMatcherErrors(t *testing.T) {
	is := is.New(t)

	_, err := cel.Matcher[facts, string](`facts.age >=`)
	is.True(errors.Is(err, cel.ErrCompile)) // syntax error

	_, err = cel.Matcher[facts, string](`1 + 2`)
	is.True(errors.Is(err, cel.ErrCompile)) // not a boolean expression

	_, err = cel.Matcher[facts, string](`nope == 1`)
	is.True(errors.Is(err, cel.ErrCompile)) // undeclared variable

	m, err := cel.Matcher[facts, string](`facts.missing == 1`)
	is.NoErr(err)
	_, err = m(facts{}, "")
	is.True(err != nil) // missing keys fail at evaluation time
	is.True(strings.Contains(err.Error(), "facts.missing"))

	m, err = cel.Matcher[facts, string](`facts.flag`)
	is.NoErr(err)
	_, err = m(facts{"flag": "yes"}, "")
	is.True(err != nil)
	is.True(strings.Contains(err.Error(), "wanted bool"))
}

func TestAction(t *testing.T) {
	is := is.New(t)

	a, err := cel.Action[facts, string](`value + " " + facts.name`)
	is.NoErr(err)
	v, err := a(facts{"name": "ann"}, "hello")
	is.NoErr(err)
	is.Equal(v, "hello ann")

	l, err := cel.Action[facts, []string](`value + [facts.tag]`)
	is.NoErr(err)
	got, err := l(facts{"tag": "b"}, []string{"a"})
	is.NoErr(err)
	is.Equal(got, []string{"a", "b"})

	n, err := cel.Action[facts, int64](`value * 2`)
	is.NoErr(err)
	i, err := n(nil, 21)
	is.NoErr(err)
	is.Equal(i, int64(42))

	bad, err := cel.Action[facts, string](`facts.count`)
	is.NoErr(err)
	_, err = bad(facts{"count": 1}, "")
	is.True(err != nil) // an int cannot become a string
}

func TestTransformer(t *testing.T) {
	is := is.New(t)

	up, err := cel.Transformer[string](`value + "!"`)
	is.NoErr(err)
	v, err := up("hi")
	is.NoErr(err)
	is.Equal(v, "hi!")

	// extension libraries are added through the environment options
	lower, err := cel.Transformer[string](`value.lowerAscii()`, cel.EnvOptions(ext.Strings()))
	is.NoErr(err)
	v, err = lower("HeLLo")
	is.NoErr(err)
	is.Equal(v, "hello")

	_, err = cel.Transformer[string](`value.lowerAscii()`)
	is.True(errors.Is(err, cel.ErrCompile))
}

func TestProtoTimestamp(t *testing.T) {
	is := is.New(t)

	m, err := cel.Matcher[facts, bool](`facts.created > timestamp("2020-01-01T00:00:00Z")`,
		cel.ProtoTypes(&timestamppb.Timestamp{}))
	is.NoErr(err)

	ok, err := m(facts{"created": timestamppb.New(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC))}, false)
	is.NoErr(err)
	is.True(ok)

	ok, err = m(facts{"created": timestamppb.New(time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC))}, false)
	is.NoErr(err)
	is.True(!ok)
}

func TestCostLimit(t *testing.T) {
	is := is.New(t)

	expr := `facts.items.all(x, facts.items.all(y, x + y >= 0))`
	items := make([]int, 200)

	m, err := cel.Matcher[facts, string](expr, cel.CostLimit(100))
	is.NoErr(err)
	_, err = m(facts{"items": items}, "")
	is.True(err != nil) // the cost limit is exceeded

	m, err = cel.Matcher[facts, string](expr, cel.CostLimit(0))
	is.NoErr(err)
	ok, err := m(facts{"items": items}, "")
	is.NoErr(err)
	is.True(ok)
}

func TestRuleTree(t *testing.T) {
	is := is.New(t)

	mustMatch := func(expr string) rulefold.Matcher[facts, string] {
		m, err := cel.Matcher[facts, string](expr)
		is.NoErr(err)
		return m
	}
	mustAct := func(expr string) rulefold.Action[facts, string] {
		a, err := cel.Action[facts, string](expr)
		is.NoErr(err)
		return a
	}

	r := rulefold.AllOf(
		rulefold.FirstOf(
			rulefold.NewRule("de", mustMatch(`facts.country == "DE"`), mustAct(`"https://example.de" + value`)),
			rulefold.NewRule("fr", mustMatch(`facts.country == "FR"`), mustAct(`"https://example.fr" + value`)),
			rulefold.NewRule("default", rulefold.Always[facts, string](), mustAct(`"https://example.com" + value`)),
		),
		rulefold.NewRule("mobile", mustMatch(`has(facts.mobile) && facts.mobile`), mustAct(`value + "?m=1"`)),
	)

	v, err := rulefold.Run(r, facts{"country": "FR", "mobile": true}, "/shop")
	is.NoErr(err)
	is.Equal(v, "https://example.fr/shop?m=1")

	v, err = rulefold.Run(r, facts{"country": "US"}, "/shop")
	is.NoErr(err)
	is.Equal(v, "https://example.com/shop")
}
