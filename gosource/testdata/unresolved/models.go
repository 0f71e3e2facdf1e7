package unresolved

type Account struct {
	Name string
}
