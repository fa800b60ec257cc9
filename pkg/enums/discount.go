package enums

// DiscountKind selects which numeric field of a discount applies.
type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixedPrice DiscountKind = "fixed_price"
	DiscountKindAmountOff  DiscountKind = "amount_off"
)
