package processor

import (
	"go/constant"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTemplate(t *testing.T) {
	assert.Equal(t, "len(user.Name) <= 5", expandTemplate("len($s) <= $0", "user.Name", []string{"5"}))
	assert.Equal(t, "(a + b) < (lo - 1) || (a + b) > hi",
		expandTemplate("$s < $0 || $s > $1", "a + b", []string{"lo - 1", "hi"}))
	assert.Equal(t, `s != "x"`, expandTemplate("$s != $0", "s", []string{`"x"`}))
	assert.Equal(t, "(f()) == nil", expandTemplate("$s == nil", "f()", nil))
}

func TestRegisterAssertion(t *testing.T) {
	if lookupAssertion("testPositive") == nil {
		RegisterAssertion(Assertion{
			Name:    "testPositive",
			Fail:    "$s <= 0",
			Pass:    "$s > 0",
			Message: "be positive",
		})
	}
	a := lookupAssertion("testPositive")
	require.NotNil(t, a)
	assert.Equal(t, "be positive", a.Message)

	names := map[string]bool{}
	for _, a := range AllRegisteredAssertions() {
		names[a.Name] = true
	}
	for _, name := range []string{"EqualTo", "LongerThan", "Between", "Matching", "testPositive"} {
		assert.True(t, names[name], name)
	}

	assert.Panics(t, func() {
		RegisterAssertion(Assertion{Name: "testPositive", Fail: "$s", Pass: "$s"})
	})
	assert.Panics(t, func() {
		RegisterAssertion(Assertion{Name: "testBroken", Fail: "$s <=", Pass: "$s > 0"})
	})
	assert.Panics(t, func() {
		RegisterAssertion(Assertion{Name: "testMissingArg", Fail: "$s < $0", Pass: "$s >= $0"})
	})
	assert.Panics(t, func() {
		RegisterAssertion(Assertion{Name: "testNoPass", Fail: "$s"})
	})
}

func TestAssertionChecks(t *testing.T) {
	arg := func(text string, v constant.Value) Argument { return Argument{Text: text, Value: v} }
	testCases := []struct {
		assertion string
		args      []Argument
		err       string
	}{
		{"LongerThan", []Argument{arg("5", constant.MakeInt64(5))}, ""},
		{"LongerThan", []Argument{arg("n", nil)}, ""},
		{"LongerThan", []Argument{arg("-1", constant.MakeInt64(-1))}, "non-negative length"},
		{"ShorterThan", []Argument{arg(`"5"`, constant.MakeString("5"))}, "integer length, got string literal"},
		{"GreaterThan", []Argument{arg("true", constant.MakeBool(true))}, "ordered operand"},
		{"Between", []Argument{arg("1", constant.MakeInt64(1)), arg("10", constant.MakeInt64(10))}, ""},
		{"Between", []Argument{arg("10", constant.MakeInt64(10)), arg("1", constant.MakeInt64(1))}, "lower bound 10 is greater than upper bound 1"},
		{"Matching", []Argument{arg(`"^a+$"`, constant.MakeString("^a+$"))}, ""},
		{"Matching", []Argument{arg(`"("`, constant.MakeString("("))}, "invalid pattern"},
		{"Matching", []Argument{arg("3", constant.MakeInt64(3))}, "pattern string"},
	}
	for _, tc := range testCases {
		t.Run(tc.assertion, func(t *testing.T) {
			a := lookupAssertion(tc.assertion)
			require.NotNil(t, a)
			require.NotNil(t, a.Check)
			err := a.Check(tc.args)
			if tc.err == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.err)
			}
		})
	}
}
