package eval

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/mandubian/ccos-sub004/rtfs/value"
)

// TestPrintParseEvalRoundTripProperty checks spec.md §8's parse/print
// round-trip invariant: printing a literal value and evaluating it back
// through the parser/IR/evaluator pipeline reproduces the original value,
// for any int, bool, or plain alphanumeric string.
func TestPrintParseEvalRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("int literals round-trip", prop.ForAll(
		func(n int64) bool {
			v := value.Int(n)
			return value.Equal(evalSrc(t, value.Print(v), Host{}), v)
		},
		gen.Int64(),
	))

	properties.Property("bool literals round-trip", prop.ForAll(
		func(b bool) bool {
			v := value.Bool_(b)
			return value.Equal(evalSrc(t, value.Print(v), Host{}), v)
		},
		gen.Bool(),
	))

	properties.Property("alphanumeric string literals round-trip", prop.ForAll(
		func(s string) bool {
			v := value.String(s)
			return value.Equal(evalSrc(t, value.Print(v), Host{}), v)
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
