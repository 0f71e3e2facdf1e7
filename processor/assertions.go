package processor

import (
	"go/constant"
	goparser "go/parser"
	"go/token"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// Assertion describes one terminal call of the fluent DSL, such as the
// LongerThan in user.Name.Should().Be().LongerThan(5).
//
// Conditions are Go expression templates in which $s stands for the subject
// and $0, $1, ... for the arguments. Qualified references to the validation
// runtime package are allowed.
type Assertion struct {
	Name string
	// Args is the exact number of arguments the assertion takes.
	Args int
	// Fail is the condition under which the assertion fails.
	Fail string
	// Pass is the condition under which the assertion holds. It is used as
	// the failure condition of a negated chain, e.g. Should().Not().Be().Nil().
	Pass string
	// Message completes "<subject> should ..." in failure records.
	Message string
	// NegatedMessage completes "<subject> should ..." when the chain is
	// negated. Defaults to "not " followed by Message.
	NegatedMessage string
	// Check, if not nil, validates the arguments. Only arguments that are
	// made up of literals have a value; the others cannot be checked before
	// the host build.
	Check func(args []Argument) error
}

var (
	assertionsLock sync.Mutex
	assertions     = map[string]*Assertion{}
)

// RegisterAssertion adds the given assertion to the vocabulary understood by
// the resolver. It panics if an assertion with the same name was already
// registered or if its templates are invalid.
func RegisterAssertion(a Assertion) {
	if a.Name == "" || a.Fail == "" || a.Pass == "" {
		panic("assertion must have a name and both conditions")
	}
	for _, tmpl := range []string{a.Fail, a.Pass} {
		if err := checkTemplate(tmpl, a.Args); err != nil {
			panic(errors.Wrapf(err, "assertion %s", a.Name))
		}
	}
	assertionsLock.Lock()
	defer assertionsLock.Unlock()
	if _, ok := assertions[a.Name]; ok {
		panic("assertion " + a.Name + " already registered")
	}
	assertions[a.Name] = &a
}

// AllRegisteredAssertions returns the registered vocabulary, sorted by name.
func AllRegisteredAssertions() []Assertion {
	assertionsLock.Lock()
	defer assertionsLock.Unlock()
	all := make([]Assertion, 0, len(assertions))
	for _, a := range assertions {
		all = append(all, *a)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

func lookupAssertion(name string) *Assertion {
	assertionsLock.Lock()
	defer assertionsLock.Unlock()
	return assertions[name]
}

func checkTemplate(tmpl string, nargs int) error {
	if nargs > 10 {
		return errors.Newf("too many arguments: %d", nargs)
	}
	args := make([]string, nargs)
	for i := range args {
		args[i] = "a" + string(rune('0'+i))
	}
	out := expandTemplate(tmpl, "s", args)
	if strings.Contains(out, "$") {
		return errors.Newf("template %q refers to a missing operand", tmpl)
	}
	if _, err := goparser.ParseExpr(out); err != nil {
		return errors.Wrapf(err, "template %q", tmpl)
	}
	return nil
}

// expandTemplate substitutes the subject and arguments into a condition
// template. Operands are wrapped in parentheses unless they are already
// primary expressions, so operator precedence is kept.
func expandTemplate(tmpl, subject string, args []string) string {
	pairs := []string{"$s", paren(subject)}
	for i, a := range args {
		pairs = append(pairs, "$"+string(rune('0'+i)), paren(a))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

var primaryExpr = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*(\.[\p{L}_][\p{L}\p{N}_]*)*$|^[0-9][0-9a-fA-Fxob._]*$|^"([^"\\]|\\.)*"$|^` + "`[^`]*`$")

func paren(expr string) string {
	expr = strings.TrimSpace(expr)
	if primaryExpr.MatchString(expr) {
		return expr
	}
	return "(" + expr + ")"
}

func requireNonNegativeInt(name string) func([]Argument) error {
	return func(args []Argument) error {
		v := args[0].Value
		if v == nil {
			return nil
		}
		if v.Kind() != constant.Int {
			return errors.Newf("%s requires an integer length, got %s %s", name, literalKind(v), args[0].Text)
		}
		if constant.Sign(v) < 0 {
			return errors.Newf("%s requires a non-negative length, got %s", name, args[0].Text)
		}
		return nil
	}
}

func requireOrdered(name string) func([]Argument) error {
	return func(args []Argument) error {
		for _, a := range args {
			if a.Value == nil {
				continue
			}
			switch a.Value.Kind() {
			case constant.Int, constant.Float, constant.String:
			default:
				return errors.Newf("%s requires an ordered operand, got %s %s", name, literalKind(a.Value), a.Text)
			}
		}
		return nil
	}
}

func init() {
	RegisterAssertion(Assertion{
		Name:    "EqualTo",
		Args:    1,
		Fail:    "$s != $0",
		Pass:    "$s == $0",
		Message: "be equal to $0",
	})
	RegisterAssertion(Assertion{
		Name:           "NotEqualTo",
		Args:           1,
		Fail:           "$s == $0",
		Pass:           "$s != $0",
		Message:        "be different from $0",
		NegatedMessage: "be equal to $0",
	})
	RegisterAssertion(Assertion{
		Name:    "Empty",
		Fail:    "len($s) != 0",
		Pass:    "len($s) == 0",
		Message: "be empty",
	})
	RegisterAssertion(Assertion{
		Name:           "NotEmpty",
		Fail:           "len($s) == 0",
		Pass:           "len($s) != 0",
		Message:        "be non-empty",
		NegatedMessage: "be empty",
	})
	RegisterAssertion(Assertion{
		Name:    "LongerThan",
		Args:    1,
		Fail:    "len($s) <= $0",
		Pass:    "len($s) > $0",
		Message: "be longer than $0",
		Check:   requireNonNegativeInt("LongerThan"),
	})
	RegisterAssertion(Assertion{
		Name:    "ShorterThan",
		Args:    1,
		Fail:    "len($s) >= $0",
		Pass:    "len($s) < $0",
		Message: "be shorter than $0",
		Check:   requireNonNegativeInt("ShorterThan"),
	})
	RegisterAssertion(Assertion{
		Name:    "GreaterThan",
		Args:    1,
		Fail:    "$s <= $0",
		Pass:    "$s > $0",
		Message: "be greater than $0",
		Check:   requireOrdered("GreaterThan"),
	})
	RegisterAssertion(Assertion{
		Name:    "LessThan",
		Args:    1,
		Fail:    "$s >= $0",
		Pass:    "$s < $0",
		Message: "be less than $0",
		Check:   requireOrdered("LessThan"),
	})
	RegisterAssertion(Assertion{
		Name:    "Between",
		Args:    2,
		Fail:    "$s < $0 || $s > $1",
		Pass:    "$s >= $0 && $s <= $1",
		Message: "be between $0 and $1",
		Check: func(args []Argument) error {
			if err := requireOrdered("Between")(args); err != nil {
				return err
			}
			lo, hi := args[0].Value, args[1].Value
			if lo != nil && hi != nil && lo.Kind() == hi.Kind() && constant.Compare(lo, token.GTR, hi) {
				return errors.Newf("Between: lower bound %s is greater than upper bound %s", args[0].Text, args[1].Text)
			}
			return nil
		},
	})
	RegisterAssertion(Assertion{
		Name:    "Nil",
		Fail:    "$s != nil",
		Pass:    "$s == nil",
		Message: "be nil",
	})
	RegisterAssertion(Assertion{
		Name:           "NotNil",
		Fail:           "$s == nil",
		Pass:           "$s != nil",
		Message:        "be non-nil",
		NegatedMessage: "be nil",
	})
	RegisterAssertion(Assertion{
		Name:    "Matching",
		Args:    1,
		Fail:    "!validation.Matches($s, $0)",
		Pass:    "validation.Matches($s, $0)",
		Message: "match $0",
		Check: func(args []Argument) error {
			v := args[0].Value
			if v == nil {
				return nil
			}
			if v.Kind() != constant.String {
				return errors.Newf("Matching requires a pattern string, got %s %s", literalKind(v), args[0].Text)
			}
			if _, err := regexp.Compile(constant.StringVal(v)); err != nil {
				return errors.Wrapf(err, "Matching: invalid pattern %s", args[0].Text)
			}
			return nil
		},
	})
}
