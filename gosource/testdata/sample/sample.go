package sample

type Order struct {
	ID    string
	Items []string
}

type OrderRules struct{}
