package processor

import (
	"go/constant"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/validgen"
)

var runtimeImport = Import{Name: "validation", Path: validgen.RuntimePackage}

func rulesNode(body string, imports ...Import) *Node {
	return testNode("rules", rulesDoc, "func (UserRules) Validation(user *User) {\n"+body+"\n}", 10, imports...)
}

func TestResolve_SelfValidation(t *testing.T) {
	rd, err := resolveOne(testNode("settings", settingsDoc, settingsSrc, 10))
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		`if s.IsAngry != "true" {`,
		`	validationResult.Add(_validgenRef0("s.IsAngry should be equal to \"true\""))`,
		`}`,
	}, "\n"), strings.TrimSpace(rd.Body))
	assert.Equal(t, []QualifiedRef{{Import: runtimeImport, Name: "Fail"}}, rd.Refs)
	assert.Equal(t, []CallSite{{
		Subject:   "s.IsAngry",
		Chain:     []string{"Should", "Be", "EqualTo"},
		Assertion: "EqualTo",
		Args:      []Argument{{Text: `"true"`, Value: constant.MakeString("true")}},
		Line:      2,
	}}, rd.CallSites)
	assert.Empty(t, rd.Helpers)
}

func TestResolve_HelperAndNegation(t *testing.T) {
	rd, err := resolveOne(testNode("rules", rulesDoc, rulesSrc, 10))
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		`if len(user.Name) <= 2 {`,
		`	validationResult.Add(_validgenRef0("user.Name should be longer than 2"))`,
		`}`,
		`validationResult.Merge(ShouldNotBeEmptyGenerated(validator, user.Email))`,
	}, "\n"), strings.TrimSpace(rd.Body))
	assert.Equal(t, []HelperReference{{Helper: "ShouldNotBeEmpty", Generated: "ShouldNotBeEmptyGenerated", Line: 3}}, rd.Helpers)

	rd, err = resolveOne(testNode("ext", extensionDoc, extensionSrc, 20))
	require.NoError(t, err)
	assert.Contains(t, rd.Body, `if len(text) == 0 {`)
	assert.Contains(t, rd.Body, `"text should not be empty"`)
	require.Len(t, rd.CallSites, 1)
	assert.True(t, rd.CallSites[0].Negated)
	assert.Equal(t, []string{"Should", "Not", "Be", "Empty"}, rd.CallSites[0].Chain)
}

func TestResolve_RuntimeCalls(t *testing.T) {
	body := "\tif user.Age < 18 {\n" +
		"\t\tv.Fail(\"%s is too young\", user.Name)\n" +
		"\t\treturn\n" +
		"\t}\n" +
		"\tv.Nested(user.Address)\n" +
		"\tcheck := func() {\n" +
		"\t\treturn\n" +
		"\t}\n" +
		"\tcheck()"
	rd, err := resolveOne(rulesNode(body, Import{Name: "v", Path: validgen.RuntimePackage}))
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		`if user.Age < 18 {`,
		`	validationResult.Add(_validgenRef0("%s is too young", user.Name))`,
		`	return validationResult`,
		`}`,
		`validationResult.Merge(validator.Nested(user.Address))`,
		`check := func() {`,
		`	return`,
		`}`,
		`check()`,
	}, "\n"), strings.TrimSpace(rd.Body))
	assert.Equal(t, []QualifiedRef{{Import: runtimeImport, Name: "Fail"}}, rd.Refs)
}

func TestResolve_QualifiedReferences(t *testing.T) {
	body := "\tif strings.HasPrefix(user.Name, \"tmp\") {\n" +
		"\t\tuser.Name.Should().Be().Matching(`^tmp-[0-9]+$`)\n" +
		"\t}\n" +
		"\ttime := user.Created\n" +
		"\t_ = time.IsZero()\n" +
		"\t_ = strings.ToUpper(user.Name)"
	rd, err := resolveOne(rulesNode(body,
		Import{Name: "strings", Path: "strings"},
		Import{Name: "time", Path: "time"}))
	require.NoError(t, err)
	assert.Equal(t, []QualifiedRef{
		{Import: Import{Name: "strings", Path: "strings"}, Name: "HasPrefix"},
		{Import: runtimeImport, Name: "Matches"},
		{Import: runtimeImport, Name: "Fail"},
		{Import: Import{Name: "strings", Path: "strings"}, Name: "ToUpper"},
	}, rd.Refs)
	assert.Contains(t, rd.Body, "if _validgenRef0(user.Name, \"tmp\") {")
	assert.Contains(t, rd.Body, "if !_validgenRef1(user.Name, `^tmp-[0-9]+$`) {")
	assert.Contains(t, rd.Body, "_ = time.IsZero()")
	assert.Contains(t, rd.Body, "_ = _validgenRef3(user.Name)")
}

func TestResolve_Empty(t *testing.T) {
	rd, err := resolveOne(rulesNode(""))
	require.NoError(t, err)
	assert.Equal(t, "", strings.TrimSpace(rd.Body))
	assert.Empty(t, rd.Refs)
}

func TestResolve_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		body string
		msg  string
		line int
	}{
		{
			name: "unknown assertion",
			body: "\tuser.Name.Should().Be().Fabulous()",
			msg:  "unknown assertion Fabulous",
			line: 2,
		},
		{
			name: "argument count",
			body: "\n\tuser.Name.Should().Be().LongerThan(1, 2)",
			msg:  "LongerThan takes 1 argument(s), got 2",
			line: 3,
		},
		{
			name: "double negation",
			body: "\tuser.Name.Should().Not().Not().Be().Empty()",
			msg:  "negated once",
			line: 2,
		},
		{
			name: "unexpected chain element",
			body: "\tuser.Name.Should().Maybe().Empty()",
			msg:  "unexpected Maybe in assertion chain",
			line: 2,
		},
		{
			name: "incomplete chain",
			body: "\tuser.Name.Should()",
			msg:  "incomplete assertion chain",
			line: 2,
		},
		{
			name: "chain used as value",
			body: "\tok := user.Name.Should()\n\t_ = ok",
			msg:  "must be used as a statement",
			line: 2,
		},
		{
			name: "arguments inside chain",
			body: "\tuser.Name.Should().Be(1).Empty()",
			msg:  "Be() takes no arguments",
			line: 2,
		},
		{
			name: "return value",
			body: "\treturn 1",
			msg:  "do not return values",
			line: 2,
		},
		{
			name: "reserved local",
			body: "\tvalidationResult := 1\n\t_ = validationResult",
			msg:  "reserved for generated code",
			line: 2,
		},
		{
			name: "local shadowing the runtime",
			body: "\tif user.Age > 0 {\n\t\tvalidation := user.Age\n\t\t_ = validation\n\t}",
			msg:  "reserved for generated code",
			line: 3,
		},
		{
			name: "invalid literal argument",
			body: "\tuser.Name.Should().Be().ShorterThan(-3)",
			msg:  "non-negative length",
			line: 2,
		},
		{
			name: "nested arity",
			body: "\tvalidation.Nested(user.A, user.B)",
			msg:  "Nested takes exactly one argument",
			line: 2,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolveOne(rulesNode(tc.body))
			require.Error(t, err)
			assert.Equal(t, KindMalformedDeclaration, KindOf(err))
			assert.Contains(t, err.Error(), tc.msg)
			var ewp *ErrorWithPosition
			require.ErrorAs(t, err, &ewp)
			assert.Equal(t, tc.line, ewp.Pos().Line)
		})
	}
}

func TestResolve_PositionsOnFirstLine(t *testing.T) {
	n := testNode("rules", rulesDoc, "func (UserRules) Validation(user *User) { user.Name.Should().Be().Fabulous() }", 10)
	_, err := resolveOne(n)
	var ewp *ErrorWithPosition
	require.ErrorAs(t, err, &ewp)
	assert.Equal(t, 1, ewp.Pos().Line)
	assert.Equal(t, strings.Index(n.Content, "Fabulous")+1, ewp.Pos().Column)
}

func TestResolve_RawStringsKeptVerbatim(t *testing.T) {
	body := "\tif user.Bio != `line1\n\tindented\n` {\n\t\tvalidation.Fail(\"bio\")\n\t}"
	rd, err := resolveOne(rulesNode(body, runtimeImport))
	require.NoError(t, err)
	assert.Contains(t, rd.Body, "if user.Bio != `line1\n\tindented\n` {")
	assert.Contains(t, rd.Body, "\n\tvalidationResult.Add(_validgenRef0(\"bio\"))\n}")
}

func TestUnwrapBody(t *testing.T) {
	testCases := []struct {
		name, src, want string
	}{
		{"empty", "package p\n\nfunc _() {}\n", ""},
		{"blank", "package p\n\nfunc _() {\n\n}\n", ""},
		{
			"surrounding blank lines",
			"package p\n\nfunc _() {\n\n\tx()\n\n\ty()\n\n}\n",
			"x()\n\ny()",
		},
		{
			"raw string",
			"package p\n\nfunc _() {\n\ts := `a\n\tb\n\t\tc`\n\tif s != \"\" {\n\t\tx()\n\t}\n}\n",
			"s := `a\n\tb\n\t\tc`\nif s != \"\" {\n\tx()\n}",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, unwrapBody(tc.src))
		})
	}
}

func TestResolve_NegatedMessages(t *testing.T) {
	testCases := []struct {
		stmt, msg string
	}{
		{"user.Name.Should().Not().Be().NotEmpty()", "user.Name should be empty"},
		{"user.Manager.Should().Not().Be().NotNil()", "user.Manager should be nil"},
		{"user.Name.Should().Not().Be().NotEqualTo(\"x\")", `user.Name should be equal to "x"`},
		{"user.Name.Should().Not().Be().Empty()", "user.Name should not be empty"},
		{"user.Name.Should().Not().Be().LongerThan(3)", "user.Name should not be longer than 3"},
	}
	for _, tc := range testCases {
		t.Run(tc.stmt, func(t *testing.T) {
			rd, err := resolveOne(rulesNode("\t" + tc.stmt))
			require.NoError(t, err)
			assert.Contains(t, rd.Body, strconv.Quote(tc.msg))
		})
	}
}

func TestResolve_SubjectEvaluatedOnce(t *testing.T) {
	rd, err := resolveOne(rulesNode("\tuser.Age().Should().Be().Between(18, 65)"))
	require.NoError(t, err)
	assert.Contains(t, rd.Body, "if validationSubject := user.Age(); validationSubject < 18 || validationSubject > 65 {")
	assert.Contains(t, rd.Body, strconv.Quote("user.Age() should be between 18 and 65"))

	// plain selectors are used as they are
	rd, err = resolveOne(rulesNode("\tuser.Score.Should().Not().Be().Between(1, 10)"))
	require.NoError(t, err)
	assert.Contains(t, rd.Body, "if user.Score >= 1 && user.Score <= 10 {")

	// a single use needs no binding
	rd, err = resolveOne(rulesNode("\tuser.Age().Should().Be().GreaterThan(17)"))
	require.NoError(t, err)
	assert.Contains(t, rd.Body, "if (user.Age()) <= 17 {")
}
