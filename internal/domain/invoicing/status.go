package invoicing

// Status represents the lifecycle state of an invoice
type Status string

const (
	StatusDraft  Status = "draft"
	StatusIssued Status = "issued"
	StatusPaid   Status = "paid"
	StatusVoided Status = "voided"
)

// IsValid returns true if the status is a valid value
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPaid, StatusVoided:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsFrozen reports whether invoice data is immutable in this status.
func (s Status) IsFrozen() bool {
	return s != StatusDraft
}

// CanTransitionTo checks the lifecycle graph:
// draft -> issued, issued -> paid, issued -> voided.
// Voided invoices cannot be re-opened.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusIssued
	case StatusIssued:
		return next == StatusPaid || next == StatusVoided
	}
	return false
}
