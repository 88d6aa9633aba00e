package invoicing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/domain/party"
)

// SequenceKey identifies one gapless counter.
type SequenceKey struct {
	SellerID uuid.UUID
	Year     int
	Prefix   string
}

// NewSequenceKey builds the key for an invoice issued on issueDate.
func NewSequenceKey(sellerID uuid.UUID, prefix string, issueDate time.Time) SequenceKey {
	return SequenceKey{
		SellerID: sellerID,
		Year:     issueDate.Year(),
		Prefix:   party.NormalizePrefix(prefix),
	}
}

// InvoiceSequence is the persisted counter for a key.
type InvoiceSequence struct {
	ID         uuid.UUID
	Key        SequenceKey
	LastNumber int64
	UpdatedAt  time.Time
}

// FormatNumber renders {prefix}-{year}-{counter:06d}.
func FormatNumber(key SequenceKey, n int64) string {
	return fmt.Sprintf("%s-%d-%06d", key.Prefix, key.Year, n)
}
