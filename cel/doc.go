// Package cel builds rulefold matchers, actions and transformers from
// Common Expression Language expressions.
//
// See https://github.com/google/cel-go and https://github.com/google/cel-spec
// for the language itself.
//
// Every expression is compiled once, when the matcher or action is
// created, and the compiled program is safe for concurrent use. Two
// variables are declared, both with the dynamic type:
//
//	facts   the facts passed to the rule
//	value   the value being threaded through the rule tree
//
// Facts are usually a map[string]any or a protocol buffer message:
//
//	adult, err := cel.Matcher[map[string]any, string](`facts.age >= 18`)
//	greet, err := cel.Action[map[string]any, string](`value + " " + facts.name`)
//	r := rulefold.NewRule("greet adults", adult, greet)
//
// Protocol Buffer Types
//
// Register message types with ProtoTypes so that expressions may refer to
// their fields and enum constants:
//
//	m, err := cel.Matcher[*school.Student, bool](
//		`facts.status == testdata.school.Student.status_type.PROBATION`,
//		cel.ProtoTypes(&school.Student{}))
//
// Timestamps and durations from google/protobuf/timestamp.proto and
// duration.proto are understood natively:
//
//	facts := map[string]any{"created": timestamppb.New(t)}
//	m, err := cel.Matcher[map[string]any, bool](`facts.created > timestamp("2020-01-01T00:00:00Z")`)
//
// Runtime Cost
//
// Programs are created with a cost limit of DefaultCostLimit. Expressions
// exceeding it fail with an evaluation error. Use CostLimit to change it.
package cel
