// Package vatid models the tenant-shared cache of third-party VAT identity
// validations. One row exists per normalized (country, identifier) pair and
// any number of sellers and buyers, across tenants, may point at it.
package vatid

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
)

// Status is the last known validation outcome.
type Status string

const (
	StatusPending Status = "pending"
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusUnknown Status = "unknown"
)

// IsValid returns true if the status is a known value
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusValid, StatusInvalid, StatusUnknown:
		return true
	}
	return false
}

// IsAmbiguous reports whether the status is not a definitive verdict.
func (s Status) IsAmbiguous() bool {
	return s == StatusPending || s == StatusUnknown
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

const (
	// DefaultStaleAfter is how long a verdict is trusted.
	DefaultStaleAfter = 30 * 24 * time.Hour
	// DefaultEnqueueThrottle suppresses repeated enqueues for the same row.
	DefaultEnqueueThrottle = 10 * time.Minute
)

// Policy controls staleness and enqueue throttling.
type Policy struct {
	StaleAfter      time.Duration
	EnqueueThrottle time.Duration
}

// DefaultPolicy returns the 30 day / 10 minute policy.
func DefaultPolicy() Policy {
	return Policy{
		StaleAfter:      DefaultStaleAfter,
		EnqueueThrottle: DefaultEnqueueThrottle,
	}
}

// Key is the natural key of a cache row.
type Key struct {
	Country    valueobject.CountryCode
	Identifier string
}

// String returns "CC:IDENTIFIER".
func (k Key) String() string {
	return string(k.Country) + ":" + k.Identifier
}

var foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize builds the natural key for a (country, identifier) pair.
// Whitespace and punctuation are stripped and letters upper-cased. A leading
// copy of the country prefix is dropped so "DE 123" and "123" collapse.
// ok is false when the identifier is empty after normalization or the country is invalid.
func Normalize(country, identifier string) (Key, bool) {
	cc, err := valueobject.ParseCountryCode(country)
	if err != nil {
		return Key{}, false
	}
	folded, _, err := transform.String(foldMarks, identifier)
	if err != nil {
		folded = identifier
	}

	var b strings.Builder
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	id := b.String()

	for _, prefix := range vatPrefixes(cc) {
		if len(id) > len(prefix) && strings.HasPrefix(id, prefix) {
			id = id[len(prefix):]
			break
		}
	}
	if id == "" {
		return Key{}, false
	}
	return Key{Country: cc, Identifier: id}, true
}

// vatPrefixes returns the prefixes a VAT number for c may carry.
func vatPrefixes(c valueobject.CountryCode) []string {
	if c == "GR" {
		return []string{"EL", "GR"}
	}
	return []string{string(c)}
}

// VatIdentity is a cache row holding the last validation outcome for a key.
type VatIdentity struct {
	shared.BaseEntity
	Country         valueobject.CountryCode
	Identifier      string
	Status          Status
	LastCheckedAt   *time.Time
	LastEnqueuedAt  *time.Time
	StatusChangedAt *time.Time
	ResolvedName    *string
	ResolvedAddress *string
	Source          string
	LastError       string
	LastErrorAt     *time.Time
}

// NewVatIdentity creates a pending row for key.
func NewVatIdentity(key Key) *VatIdentity {
	return &VatIdentity{
		BaseEntity: shared.NewBaseEntity(),
		Country:    key.Country,
		Identifier: key.Identifier,
		Status:     StatusPending,
	}
}

// Key returns the natural key of the row.
func (v *VatIdentity) Key() Key {
	return Key{Country: v.Country, Identifier: v.Identifier}
}

// IsStale reports whether the verdict must be re-checked before it is trusted.
func (v *VatIdentity) IsStale(now time.Time, p Policy) bool {
	if v.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*v.LastCheckedAt) > p.StaleAfter
}

// IsEnqueueThrottled reports whether a validation was enqueued too recently.
func (v *VatIdentity) IsEnqueueThrottled(now time.Time, p Policy) bool {
	if v.LastEnqueuedAt == nil {
		return false
	}
	return now.Sub(*v.LastEnqueuedAt) < p.EnqueueThrottle
}

// ShouldEnqueue combines staleness and throttle. force bypasses staleness only.
func (v *VatIdentity) ShouldEnqueue(now time.Time, p Policy, force bool) bool {
	if v.IsEnqueueThrottled(now, p) {
		return false
	}
	return force || v.IsStale(now, p)
}

// MarkEnqueued stamps the throttle timestamp.
func (v *VatIdentity) MarkEnqueued(now time.Time) {
	t := now.UTC()
	v.LastEnqueuedAt = &t
}

// ApplyResult records a provider verdict. It returns true when the status changed.
func (v *VatIdentity) ApplyResult(res ValidationResult, source string) bool {
	checked := res.CheckedAt.UTC()
	if res.CheckedAt.IsZero() {
		checked = time.Now().UTC()
	}
	changed := res.Status != v.Status
	v.Status = res.Status
	v.LastCheckedAt = &checked
	if changed {
		v.StatusChangedAt = &checked
	}
	if res.CompanyName != nil {
		v.ResolvedName = res.CompanyName
	}
	if res.CompanyAddress != nil {
		v.ResolvedAddress = res.CompanyAddress
	}
	v.Source = source
	v.LastError = ""
	v.LastErrorAt = nil
	v.UpdatedAt = checked
	return changed
}

// RecordFailure keeps the status as is and remembers the error.
func (v *VatIdentity) RecordFailure(err error, now time.Time) {
	t := now.UTC()
	if err != nil {
		v.LastError = err.Error()
	}
	v.LastErrorAt = &t
	v.UpdatedAt = t
}

// Linkable is a seller or buyer that may reference a cache row.
type Linkable interface {
	VatKeyParts() (country, identifier string)
	VatIdentityRef() *uuid.UUID
	LinkVatIdentity(id *uuid.UUID)
}
