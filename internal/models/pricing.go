package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VipPlan is a purchasable VIP entitlement. A zero Duration is permanent.
type VipPlan struct {
	Name     string
	Price    decimal.Decimal
	Duration time.Duration
}

// Pricing holds the platform's fee rate, accepted payment methods and VIP plans
type Pricing struct {
	TipFeeRate     decimal.Decimal
	PaymentMethods []string
	VipPlans       map[string]VipPlan
}

func (p *Pricing) AcceptsMethod(method string) bool {
	for _, m := range p.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}
