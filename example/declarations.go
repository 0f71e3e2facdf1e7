//go:build validgen

package example

import "github.com/jhump/validgen/validation"

// @SelfValidation
func (s *UserSettings) Validation() {
	s.IsAngry.Should().Be().EqualTo("true")
}

// ValidationDefinition checks a user before it is stored.
//
// @ValidationFor(User)
func (UserRules) ValidationDefinition(user *User, repo UserRepo) {
	user.Name.Should().Be().LongerThan(5)
	user.Surname.Should().Be().LongerThan(5)
	// custom assertion, declared below
	user.AccountCreatedDate.ShouldNotBeEmpty()

	if repo.UserExists(user.Name) {
		validation.Fail("User already exists")
	}
	validation.Nested(user.Settings)
}

// @CustomValidationExtension
func (TextRules) ShouldNotBeEmpty(text string) {
	if len(text) > 110 {
		validation.Fail("Text is too long")
	}
	text.Should().Be().NotEmpty()
}
