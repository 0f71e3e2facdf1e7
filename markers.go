// Package validgen turns declarative validation methods into generated,
// compilable validation code.
//
// Validation declarations are ordinary Go methods whose doc comments carry a
// marker annotation. They live in files guarded by a build constraint so that
// the fluent assertion vocabulary never has to type-check in the normal build:
//
//	//go:build validgen
//
//	package example
//
//	// @SelfValidation
//	func (s *UserSettings) Validation() {
//	    s.IsAngry.Should().Be().EqualTo("true")
//	}
//
// Running the generator on the package produces a file named
// UserSettings_Validation.validgen.go that declares a method on the
// UserSettingsGenerated wrapper type whose body performs the equivalent
// imperative checks.
//
// The processing pipeline lives in the processor package. The runtime support
// used by generated code lives in the validation package.
package validgen

import "fmt"

// MarkerKind is an enumeration of the marker annotations that identify a
// validation declaration. The set is closed: the scanner never consults
// anything other than these names.
type MarkerKind int

const (
	// SelfValidation marks a method that validates its own receiver. Every
	// parameter of such a method is a dependency that is resolved from the
	// validator's service locator.
	//
	//    // @SelfValidation
	SelfValidation MarkerKind = iota

	// ValidationFor marks a method that validates values of a target type.
	// Parameters whose type is the target type (or a pointer to it) are
	// subjects; all others are dependencies.
	//
	//    // @ValidationFor(User)
	ValidationFor

	// CustomValidationExtension marks a reusable assertion helper. Its first
	// parameter is the subject. Other declarations invoke it as if it were a
	// method on the subject:
	//
	//    user.Email.ShouldNotBeEmpty()
	//
	// and the generated code calls the helper's generated counterpart,
	// ShouldNotBeEmptyGenerated.
	//
	//    // @CustomValidationExtension
	CustomValidationExtension
)

var markerNames = map[string]MarkerKind{
	"SelfValidation":            SelfValidation,
	"ValidationFor":             ValidationFor,
	"CustomValidationExtension": CustomValidationExtension,
}

// MarkerKindForName returns the marker kind with the given annotation name.
// This is a plain name comparison and is cheap enough to run on every edit.
func MarkerKindForName(name string) (MarkerKind, bool) {
	k, ok := markerNames[name]
	return k, ok
}

// TakesTarget returns true if the marker requires a target type argument.
func (k MarkerKind) TakesTarget() bool {
	return k == ValidationFor
}

func (k MarkerKind) String() string {
	switch k {
	case SelfValidation:
		return "SelfValidation"
	case ValidationFor:
		return "ValidationFor"
	case CustomValidationExtension:
		return "CustomValidationExtension"
	default:
		return fmt.Sprintf("?%d?", int(k))
	}
}

// Marker is a marker annotation attached to a declaration. For ValidationFor
// markers, Target is the Go type expression of the validated type, such as
// "User" or "*models.User". It is empty for the other kinds.
type Marker struct {
	Kind   MarkerKind
	Target string
}

func (m Marker) String() string {
	if m.Kind.TakesTarget() {
		return fmt.Sprintf("@%v(%s)", m.Kind, m.Target)
	}
	return "@" + m.Kind.String()
}

// GeneratedSuffix is appended to owning type names and custom helper names to
// name their generated counterparts.
const GeneratedSuffix = "Generated"

// GeneratedTypeName returns the name of the wrapper type that holds the
// generated methods for the given owning type.
func GeneratedTypeName(owningType string) string {
	return owningType + GeneratedSuffix
}

// GeneratedHelperName returns the name of the generated counterpart of a
// custom validation helper.
func GeneratedHelperName(helper string) string {
	return helper + GeneratedSuffix
}

// ArtifactName returns the name under which the artifact for the given
// declaration is registered with the host build.
func ArtifactName(owningType, method string) string {
	return owningType + "_" + method
}

// RuntimePackage is the import path of the package that generated code calls
// into.
const RuntimePackage = "github.com/jhump/validgen/validation"
