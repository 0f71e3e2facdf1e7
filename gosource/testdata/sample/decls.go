//go:build validgen

package sample

import "strings"

// @ValidationFor(Order)
func (OrderRules) Validation(order *Order) {
	order.ID.ShouldNotBeEmpty()
	if strings.HasPrefix(order.ID, "tmp-") {
		return
	}
}

func init() {}

func init() {}
