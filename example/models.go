// Package example shows validation declarations and the code validgen
// generates for them. The declarations live in declarations.go, which is only
// built with the validgen tag; the *.validgen.go files are generated from it.
package example

//go:generate go run github.com/jhump/validgen/cmd/validgen generate .

// User is validated by UserRules.
type User struct {
	Name               string
	Surname            string
	AccountCreatedDate string
	Settings           *UserSettings
}

// UserSettings validates itself.
type UserSettings struct {
	IsAngry string
}

// UserRepo is a dependency of the user validation. It is resolved from the
// validator's service locator.
type UserRepo interface {
	UserExists(name string) bool
}

// MemoryUserRepo is a UserRepo backed by a set of names.
type MemoryUserRepo map[string]bool

func (r MemoryUserRepo) UserExists(name string) bool {
	return r[name]
}

// UserRules owns the validation declared for User.
type UserRules struct{}

// TextRules owns custom assertions on text.
type TextRules struct{}
