package tax

import (
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// Assignment is the tax state stored on an invoice together with its manual flags.
type Assignment struct {
	Treatment       Treatment
	Rate            decimal.Decimal
	Reason          string
	ReasonCode      ReasonCode
	TreatmentManual bool
	RateManual      bool
}

// Recompute refreshes every field that is not manually set.
// A manual treatment stays, and an automatic rate is then derived from it.
// A manual rate stays regardless of the treatment.
func (e *Engine) Recompute(cur Assignment, in Input) Assignment {
	d := e.Decide(in)
	next := cur

	if !cur.TreatmentManual {
		next.Treatment = d.Treatment
		next.Reason = d.Reason
		next.ReasonCode = d.ReasonCode
	}
	if !cur.RateManual {
		if cur.TreatmentManual {
			next.Rate = e.RateFor(cur.Treatment, in)
		} else {
			next.Rate = d.Rate
		}
	}
	return next
}

// SetManualTreatment pins the treatment and recomputes the automatic fields.
func (e *Engine) SetManualTreatment(cur Assignment, t Treatment, in Input) (Assignment, error) {
	if !t.IsValid() {
		return cur, shared.NewFieldError("tax_treatment", "INVALID_TAX_TREATMENT", "Unknown tax treatment "+string(t))
	}
	cur.Treatment = t
	cur.TreatmentManual = true
	cur.Reason, cur.ReasonCode = reasonForTreatment(t)
	return e.Recompute(cur, in), nil
}

// SetManualRate pins the rate.
func (e *Engine) SetManualRate(cur Assignment, rate decimal.Decimal, in Input) (Assignment, error) {
	if err := valueobject.ValidateVATRate(rate); err != nil {
		return cur, shared.NewFieldError("vat_rate", "INVALID_VAT_RATE", err.Error())
	}
	cur.Rate = rate
	cur.RateManual = true
	return e.Recompute(cur, in), nil
}

// ResetTreatment clears the manual treatment flag and lets the engine decide it again.
func (e *Engine) ResetTreatment(cur Assignment, in Input) Assignment {
	cur.TreatmentManual = false
	return e.Recompute(cur, in)
}

// ResetRate clears the manual rate flag and lets the engine decide it again.
func (e *Engine) ResetRate(cur Assignment, in Input) Assignment {
	cur.RateManual = false
	return e.Recompute(cur, in)
}

// Finalize produces the assignment frozen at issuance. It applies the
// issuance gate and never lets reverse charge through without a valid buyer identity.
func (e *Engine) Finalize(cur Assignment, in Input) (Assignment, error) {
	if err := e.CheckIssuable(in); err != nil {
		return cur, err
	}
	next := e.Recompute(cur, in)
	if next.Treatment == TreatmentEUB2BRC && !(in.Buyer.HasIdentifier() && in.Buyer.IdentityStatus == vatid.StatusValid) {
		d := e.Decide(in)
		next.Treatment = d.Treatment
		next.Reason = d.Reason
		next.ReasonCode = d.ReasonCode
		next.TreatmentManual = false
		if !next.RateManual || next.Rate.IsZero() {
			next.Rate = d.Rate
			next.RateManual = false
		}
	}
	return next, nil
}
