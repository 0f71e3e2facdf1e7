package processor

import (
	"go/token"
)

const (
	testPkgPath = "example.com/app/models"
	testFile    = "/src/app/models/decls.go"
)

func testPackageScope() *Scope {
	return &Scope{Kind: PackageScope, Name: testPkgPath, PackageName: "models", Location: "/src/app/models"}
}

// testNode builds a package-level node whose declaration starts on the given
// line, with its doc comment on the line before.
func testNode(key, doc, content string, line int, imports ...Import) *Node {
	file := &Scope{Kind: FileScope, Name: "decls.go", Imports: imports, Parent: testPackageScope()}
	return &Node{
		ID:         NodeID(testPkgPath + "#" + key),
		Scope:      file,
		Doc:        doc,
		DocPos:     token.Position{Filename: testFile, Line: line - 1, Column: 1},
		Content:    content,
		ContentPos: token.Position{Filename: testFile, Line: line, Column: 1},
	}
}

func scanOne(n *Node) (Candidate, []Diagnostic) {
	var diags []Diagnostic
	var found Candidate
	for c := range (Scanner{}).Scan(&Snapshot{Version: 1, Nodes: []*Node{n}}, func(d Diagnostic) {
		diags = append(diags, d)
	}) {
		found = c
	}
	return found, diags
}

func extractOne(n *Node) (*Declaration, error) {
	c, diags := scanOne(n)
	if len(diags) > 0 {
		return nil, diags[0].Err
	}
	return Extractor{}.Extract(c)
}

func resolveOne(n *Node) (*ResolvedDeclaration, error) {
	d, err := extractOne(n)
	if err != nil {
		return nil, err
	}
	return Resolver{}.Resolve(d)
}

const (
	settingsDoc = "// Validation checks the settings.\n// @SelfValidation"
	settingsSrc = "func (s *UserSettings) Validation() {\n" +
		"\ts.IsAngry.Should().Be().EqualTo(\"true\")\n" +
		"}"

	rulesDoc = "// @ValidationFor(User)"
	rulesSrc = "func (UserRules) ValidationDefinition(user *User, repo UserRepo) {\n" +
		"\tuser.Name.Should().Be().LongerThan(2)\n" +
		"\tuser.Email.ShouldNotBeEmpty()\n" +
		"}"

	extensionDoc = "// @CustomValidationExtension"
	extensionSrc = "func (TextRules) ShouldNotBeEmpty(text string) {\n" +
		"\ttext.Should().Not().Be().Empty()\n" +
		"}"
)
