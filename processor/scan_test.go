package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/validgen"
)

func TestScan_Markers(t *testing.T) {
	testCases := []struct {
		name   string
		doc    string
		marker validgen.Marker
		line   int
		column int
	}{
		{
			name:   "self validation",
			doc:    settingsDoc,
			marker: validgen.Marker{Kind: validgen.SelfValidation},
			line:   10,
			column: 4,
		},
		{
			name:   "validation for",
			doc:    rulesDoc,
			marker: validgen.Marker{Kind: validgen.ValidationFor, Target: "User"},
			line:   9,
			column: 4,
		},
		{
			name:   "block comment",
			doc:    "/*\n  @CustomValidationExtension\n*/",
			marker: validgen.Marker{Kind: validgen.CustomValidationExtension},
			line:   10,
			column: 3,
		},
		{
			name:   "other annotations are ignored",
			doc:    "// @Deprecated\n// @SelfValidation",
			marker: validgen.Marker{Kind: validgen.SelfValidation},
			line:   10,
			column: 4,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, diags := scanOne(testNode("n", tc.doc, settingsSrc, 10))
			require.Empty(t, diags)
			require.NotNil(t, c.Node)
			assert.Equal(t, tc.marker, c.Marker)
			assert.Equal(t, testFile, c.MarkerPos.Filename)
			assert.Equal(t, tc.line, c.MarkerPos.Line)
			assert.Equal(t, tc.column, c.MarkerPos.Column)
		})
	}
}

func TestScan_Unmarked(t *testing.T) {
	for _, doc := range []string{"", "// plain docs", "// mail me @ home", "// @Other(thing)"} {
		c, diags := scanOne(testNode("n", doc, settingsSrc, 3))
		assert.Empty(t, diags, doc)
		assert.Nil(t, c.Node, doc)
	}
}

func TestScan_Malformed(t *testing.T) {
	testCases := []struct {
		name string
		doc  string
		msg  string
		line int
	}{
		{
			name: "two markers",
			doc:  "// @SelfValidation\n// @ValidationFor(User)",
			msg:  "more than one marker",
			line: 10,
		},
		{
			name: "missing target",
			doc:  "// @ValidationFor",
			msg:  "requires a target type",
			line: 9,
		},
		{
			name: "unexpected argument",
			doc:  "// @SelfValidation(User)",
			msg:  "does not take an argument",
			line: 9,
		},
		{
			name: "bad target",
			doc:  "// @ValidationFor(User{)",
			line: 9,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n := testNode("n", tc.doc, settingsSrc, 10)
			c, diags := scanOne(n)
			assert.Nil(t, c.Node)
			require.Len(t, diags, 1)
			d := diags[0]
			assert.Equal(t, KindMalformedDeclaration, d.Kind)
			assert.Equal(t, n.ID, d.Node)
			assert.Equal(t, KindMalformedDeclaration, KindOf(d.Err))
			assert.Contains(t, d.Message, tc.msg)
			assert.Equal(t, tc.line, d.Pos.Line)
		})
	}
}

func TestScan_NestedScope(t *testing.T) {
	n := testNode("n", settingsDoc, settingsSrc, 10)
	n.Scope = &Scope{Kind: FuncScope, Name: "setup", Parent: n.Scope}
	_, diags := scanOne(n)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "only allowed on package-level methods")
}

func TestScan_Lazy(t *testing.T) {
	snap := &Snapshot{Nodes: []*Node{
		testNode("a", settingsDoc, settingsSrc, 1),
		testNode("b", rulesDoc, rulesSrc, 10),
		testNode("c", extensionDoc, extensionSrc, 20),
	}}
	var seen []NodeID
	for c := range (Scanner{}).Scan(snap, func(Diagnostic) {}) {
		seen = append(seen, c.Node.ID)
		if len(seen) == 2 {
			break
		}
	}
	assert.Len(t, seen, 2)
}

func TestStripCommentDelimiters(t *testing.T) {
	in := "// line\n/* block\n  still */ after"
	out := stripCommentDelimiters(in)
	assert.Equal(t, "   line\n   block\n  still    after", out)
	assert.Equal(t, len(in), len(out))
}
