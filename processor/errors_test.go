package processor

import (
	"go/token"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	pos := token.Position{Filename: "a.go", Line: 3, Column: 7}
	testCases := []struct {
		name string
		err  error
		kind string
	}{
		{"positioned", malformedf(pos, "not a method"), KindMalformedDeclaration},
		{"wrapped positioned", errors.Wrap(malformedf(pos, "not a method"), "extracting"), KindMalformedDeclaration},
		{"mark without position", errors.Mark(errors.New("name taken"), ErrDuplicateArtifactName), KindDuplicateArtifactName},
		{"unresolved", errors.Mark(errors.New("FooGenerated"), ErrUnresolvedReference), KindUnresolvedReference},
		{"unmarked", errors.New("boom"), KindInternal},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			if tc.kind != KindInternal {
				assert.Equal(t, tc.kind, NewDiagnostic("", token.Position{}, tc.err).Kind)
			}
		})
	}

	d := NewDiagnostic("n", token.Position{}, malformedf(pos, "not a method"))
	assert.Equal(t, pos, d.Pos)
	assert.Equal(t, "not a method", d.Message)
}
