package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/validgen"
)

func TestExtract_SelfValidation(t *testing.T) {
	d, err := extractOne(testNode("settings", settingsDoc, settingsSrc, 10))
	require.NoError(t, err)
	assert.Equal(t, Namespace{Path: testPkgPath, Name: "models"}, d.Namespace)
	assert.Equal(t, "UserSettings", d.OwningType)
	assert.Equal(t, "Validation", d.Method)
	assert.Equal(t, "s", d.Receiver)
	assert.Empty(t, d.Params)
	assert.Equal(t, validgen.Marker{Kind: validgen.SelfValidation}, d.Marker)
	assert.Equal(t, "\n\ts.IsAngry.Should().Be().EqualTo(\"true\")\n", d.Body)
	assert.Equal(t, 1, d.bodyLine)
	assert.Equal(t, len("func (s *UserSettings) Validation() {")+1, d.bodyColumn)
	assert.Equal(t, "UserSettings_Validation", d.ArtifactName())
	assert.Equal(t, "UserSettingsGenerated", d.GeneratedTypeName())
	assert.Equal(t, Identity{Namespace: testPkgPath, OwningType: "UserSettings", Method: "Validation"}, d.Identity())
}

func TestExtract_ValidationFor(t *testing.T) {
	imports := []Import{{Name: "strings", Path: "strings"}}
	d, err := extractOne(testNode("rules", rulesDoc, rulesSrc, 10, imports...))
	require.NoError(t, err)
	assert.Equal(t, "UserRules", d.OwningType)
	assert.Equal(t, "_", d.Receiver)
	assert.Equal(t, []Parameter{
		{Name: "user", Type: "*User"},
		{Name: "repo", Type: "UserRepo", Dependency: true},
	}, d.Params)
	assert.Equal(t, []Parameter{{Name: "user", Type: "*User"}}, d.Subjects())
	assert.Equal(t, []DependencyReference{{Name: "repo", Type: "UserRepo", Index: 1}}, d.Dependencies())
	assert.Equal(t, imports, d.Imports)
}

func TestExtract_CustomValidationExtension(t *testing.T) {
	src := "func (TextRules) ShouldBeShorterThanLimit(text string, limit Limits, other string) {}"
	d, err := extractOne(testNode("ext", extensionDoc, src, 3))
	require.NoError(t, err)
	assert.Equal(t, []Parameter{
		{Name: "text", Type: "string"},
		{Name: "limit", Type: "Limits", Dependency: true},
		{Name: "other", Type: "string"},
	}, d.Params)
	assert.Equal(t, "", d.Body)
}

func TestExtract_Malformed(t *testing.T) {
	testCases := []struct {
		name    string
		doc     string
		content string
		msg     string
		line    int
	}{
		{
			name:    "not a function",
			doc:     settingsDoc,
			content: "type UserSettings struct{}",
			msg:     "may only be applied to methods",
			line:    1,
		},
		{
			name:    "no receiver",
			doc:     settingsDoc,
			content: "func Validation() {}",
			msg:     "has no receiver",
			line:    1,
		},
		{
			name:    "results",
			doc:     settingsDoc,
			content: "func (s *UserSettings) Validation() error {\n\treturn nil\n}",
			msg:     "must not declare results",
			line:    1,
		},
		{
			name:    "generic owner",
			doc:     settingsDoc,
			content: "func (s *Box[T]) Validation() {}",
			msg:     "generic owning type",
			line:    1,
		},
		{
			name:    "reserved receiver",
			doc:     settingsDoc,
			content: "func (validator *UserSettings) Validation() {}",
			msg:     "receiver may not be named",
			line:    1,
		},
		{
			name:    "reserved parameter",
			doc:     rulesDoc,
			content: "func (UserRules) Validation(\n\tuser User,\n\tvalidationResult string,\n) {}",
			msg:     "parameter may not be named",
			line:    3,
		},
		{
			name:    "parameter shadowing the runtime",
			doc:     rulesDoc,
			content: "func (UserRules) Validation(user User, validation Repo) {}",
			msg:     "parameter may not be named",
			line:    1,
		},
		{
			name:    "no subject parameter",
			doc:     rulesDoc,
			content: "func (UserRules) Validation(a Account) {}",
			msg:     "declares no parameter of type User",
			line:    1,
		},
		{
			name:    "extension without subject",
			doc:     extensionDoc,
			content: "func (TextRules) ShouldBeFine() {}",
			msg:     "requires a subject parameter",
			line:    1,
		},
		{
			name:    "unsupported parameter type",
			doc:     rulesDoc,
			content: "func (UserRules) Validation(u User, f func()) {}",
			msg:     "unsupported parameter type func()",
			line:    1,
		},
		{
			name:    "syntax error",
			doc:     settingsDoc,
			content: "func (s *UserSettings) Validation() {\n\tif {\n}",
			msg:     "cannot parse declaration",
			line:    2,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := extractOne(testNode("n", tc.doc, tc.content, 10))
			require.Error(t, err)
			assert.Equal(t, KindMalformedDeclaration, KindOf(err))
			assert.Contains(t, err.Error(), tc.msg)
			var ewp *ErrorWithPosition
			require.ErrorAs(t, err, &ewp)
			assert.Equal(t, tc.line, ewp.Pos().Line)
		})
	}
}

func TestSameType(t *testing.T) {
	assert.True(t, sameType("*User", "User"))
	assert.True(t, sameType("models.User", "* models . User"))
	assert.False(t, sameType("User", "Users"))
}
