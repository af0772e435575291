package types

// PaymentStatus is shared by gateway payments and manual payments.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

// Terminal reports whether no further transition is allowed out of s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed || s == PaymentStatusRejected
}

// CanTransition enforces pending -> {completed, failed, rejected}.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	if s != PaymentStatusPending {
		return false
	}
	return to.Terminal()
}

// PaymentMethod is what the participant declared when paying.
type PaymentMethod string

const (
	PaymentMethodCard        PaymentMethod = "card"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodMoov        PaymentMethod = "moov_money"
	PaymentMethodMTN         PaymentMethod = "mtn_money"
	PaymentMethodOther       PaymentMethod = "other"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentMethodCard:        {},
	PaymentMethodMobileMoney: {},
	PaymentMethodOrangeMoney: {},
	PaymentMethodWave:        {},
	PaymentMethodMoov:        {},
	PaymentMethodMTN:         {},
	PaymentMethodOther:       {},
}

func (m PaymentMethod) Valid() bool {
	_, ok := paymentMethods[m]
	return ok
}
