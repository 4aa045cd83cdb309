package rulefold

import (
	"fmt"
	"strings"
	"sync"

	box "github.com/Delta456/box-cli-maker/v2"
	"github.com/alexeyco/simpletable"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Step records the outcome of one rule during an evaluation.
type Step struct {
	// Run is the number of the evaluation that recorded the step, starting
	// at 1 for each trace. Steps of runs sharing a trace interleave.
	Run int `yaml:"run"`

	// Location of the rule in the tree, such as all-of[1]/conditional/plain
	Path string `yaml:"path"`

	Kind Kind `yaml:"-"`

	// ID of a plain rule, if it has one
	ID string `yaml:"id,omitempty"`

	// Number of ancestors of the rule
	Depth int `yaml:"depth"`

	// The state the rule returned
	Matched bool `yaml:"matched"`
	Value   any  `yaml:"value"`
}

// Trace collects the steps of one or more evaluations. Steps are recorded
// when a rule completes, so children appear before their parents. A trace
// may be shared by concurrent evaluations; group their steps by Run.
//
// Rules that were never reached (such as the remaining children of a
// first-of after a match) do not appear in the trace.
type Trace struct {
	// ID identifies the trace
	ID string `yaml:"id"`

	mu    sync.Mutex
	runs  int
	steps []Step
}

// NewTrace returns an empty trace with a random ID.
func NewTrace() *Trace {
	return &Trace{ID: uuid.NewString()}
}

// begin numbers a new evaluation recording into the trace.
func (t *Trace) begin() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs++
	return t.runs
}

func (t *Trace) add(s Step) {
	t.mu.Lock()
	t.steps = append(t.steps, s)
	t.mu.Unlock()
}

// Steps returns a copy of the steps recorded so far.
func (t *Trace) Steps() []Step {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Step(nil), t.steps...)
}

// Reset discards the recorded steps and restarts run numbering, keeping
// the ID.
func (t *Trace) Reset() {
	t.mu.Lock()
	t.steps = nil
	t.runs = 0
	t.mu.Unlock()
}

// MarshalYAML includes the kind name and the recorded steps.
func (s Step) MarshalYAML() (any, error) {
	type plain Step
	return struct {
		Kind  string `yaml:"kind"`
		plain `yaml:",inline"`
	}{s.Kind.String(), plain(s)}, nil
}

// YAML returns the trace as a YAML document.
func (t *Trace) YAML() ([]byte, error) {
	doc := struct {
		ID    string `yaml:"id"`
		Steps []Step `yaml:"steps"`
	}{t.ID, t.Steps()}
	return yaml.Marshal(doc)
}

// Report renders the trace as a table inside a box, in evaluation order.
func (t *Trace) Report() string {
	Box := box.New(box.Config{Px: 2, Py: 1, Type: "Double", Color: "Cyan", TitlePos: "Top", ContentAlign: "Left"})

	s := strings.Builder{}
	s.WriteString("Trace:\n")
	s.WriteString("------\n")
	s.WriteString(t.ID)
	s.WriteString("\n\n")
	s.WriteString("Evaluation Steps:\n")
	s.WriteString("-----------------\n")
	s.WriteString(t.stepTable().String())

	return Box.String("RULEFOLD EVALUATION REPORT", s.String())
}

func (t *Trace) stepTable() *simpletable.Table {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "#"},
			{Align: simpletable.AlignCenter, Text: "Run"},
			{Align: simpletable.AlignCenter, Text: "Rule"},
			{Align: simpletable.AlignCenter, Text: "ID"},
			{Align: simpletable.AlignCenter, Text: "Matched"},
			{Align: simpletable.AlignCenter, Text: "Value"},
		},
	}

	for i, st := range t.Steps() {
		r := []*simpletable.Cell{
			{Align: simpletable.AlignRight, Text: fmt.Sprintf("%d", i+1)},
			{Align: simpletable.AlignRight, Text: fmt.Sprintf("%d", st.Run)},
			{Text: strings.Repeat("  ", st.Depth) + st.Kind.String()},
			{Text: st.ID},
			{Text: matchedString(st.Matched)},
			{Text: fmt.Sprintf("%v", st.Value)},
		}
		table.Body.Cells = append(table.Body.Cells, r)
	}

	table.SetStyle(simpletable.StyleUnicode)
	return table
}

func matchedString(b bool) string {
	switch b {
	case true:
		return "MATCH"
	default:
		return "-"
	}
}
