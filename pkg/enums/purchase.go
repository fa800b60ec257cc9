package enums

// PurchaseType discriminates what a purchase unlocks.
type PurchaseType string

const (
	PurchaseTypeVideo  PurchaseType = "video"
	PurchaseTypeBundle PurchaseType = "bundle"
)

// PurchaseStatus tracks the ledger lifecycle. The only transition is
// pending -> paid; paid is terminal.
type PurchaseStatus string

const (
	PurchaseStatusPending PurchaseStatus = "pending"
	PurchaseStatusPaid    PurchaseStatus = "paid"
)
