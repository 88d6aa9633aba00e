package invoicing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/tax"
)

// InvoiceService handles drafts, tax overrides and invoice queries.
// Every write runs in a transaction that locks the invoice row first.
type InvoiceService struct {
	txScope TransactionScope
	engine  *tax.Engine
	plans   PlanPolicy
	logger  *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(txScope TransactionScope, engine *tax.Engine, plans PlanPolicy, logger *zap.Logger) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		txScope: txScope,
		engine:  engine,
		plans:   plans,
		logger:  logger,
	}
}

// Create creates a draft invoice and decides its tax treatment
func (s *InvoiceService) Create(ctx context.Context, sellerID uuid.UUID, req CreateDraftRequest, actor string) (*InvoiceResponse, error) {
	issueDate, err := parseDate("issue_date", req.IssueDate)
	if err != nil {
		return nil, err
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}

	var resp InvoiceResponse
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		dc, err := loadDecisionContext(ctx, repos, s.plans, sellerID, req.BuyerID, false)
		if err != nil {
			return err
		}

		inv, err := invoicing.NewDraft(sellerID, invoicing.DraftInput{
			BuyerID:   req.BuyerID,
			Currency:  req.Currency,
			IssueDate: issueDate,
			DueDate:   dueDate,
			Notes:     req.Notes,
			Items:     toItemInputs(req.Items),
		}, actor)
		if err != nil {
			return err
		}
		if err := inv.ApplyTax(s.engine.Recompute(inv.Tax, dc.input())); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return err
		}
		resp = ToInvoiceResponse(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Draft invoice created",
		zap.String("seller_id", sellerID.String()),
		zap.String("invoice_id", resp.ID.String()),
		zap.String("tax_treatment", resp.TaxTreatment))
	return &resp, nil
}

// Update changes the header of a draft and, when given, its lines
func (s *InvoiceService) Update(ctx context.Context, sellerID, invoiceID uuid.UUID, req UpdateDraftRequest, actor string) (*InvoiceResponse, error) {
	issueDate, err := parseDate("issue_date", req.IssueDate)
	if err != nil {
		return nil, err
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}

	return s.mutateDraft(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice, repos TransactionalRepositories) error {
		if err := inv.UpdateDraft(req.BuyerID, req.Currency, issueDate, dueDate, req.Notes); err != nil {
			return err
		}
		if req.Items != nil {
			if err := inv.ReplaceItems(toItemInputs(*req.Items)); err != nil {
				return err
			}
		}
		return nil
	}, func(a tax.Assignment, in tax.Input) (tax.Assignment, error) {
		return s.engine.Recompute(a, in), nil
	})
}

// ReplaceItems swaps every line of a draft
func (s *InvoiceService) ReplaceItems(ctx context.Context, sellerID, invoiceID uuid.UUID, req ReplaceItemsRequest, actor string) (*InvoiceResponse, error) {
	return s.mutateDraft(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice, _ TransactionalRepositories) error {
		return inv.ReplaceItems(toItemInputs(req.Items))
	}, func(a tax.Assignment, in tax.Input) (tax.Assignment, error) {
		return s.engine.Recompute(a, in), nil
	})
}

// SetTreatment pins the tax treatment; an automatic rate follows it
func (s *InvoiceService) SetTreatment(ctx context.Context, sellerID, invoiceID uuid.UUID, req SetTreatmentRequest, actor string) (*InvoiceResponse, error) {
	return s.mutateDraft(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice, _ TransactionalRepositories) error {
		inv.RecordTaxOverride(actor, "Tax treatment set to "+req.Treatment)
		return nil
	}, func(a tax.Assignment, in tax.Input) (tax.Assignment, error) {
		return s.engine.SetManualTreatment(a, tax.Treatment(req.Treatment), in)
	})
}

// SetRate pins the VAT rate
func (s *InvoiceService) SetRate(ctx context.Context, sellerID, invoiceID uuid.UUID, req SetRateRequest, actor string) (*InvoiceResponse, error) {
	return s.mutateDraft(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice, _ TransactionalRepositories) error {
		inv.RecordTaxOverride(actor, "VAT rate set to "+req.Rate.String()+"%")
		return nil
	}, func(a tax.Assignment, in tax.Input) (tax.Assignment, error) {
		return s.engine.SetManualRate(a, req.Rate, in)
	})
}

// ResetTreatment lets the engine decide the treatment again
func (s *InvoiceService) ResetTreatment(ctx context.Context, sellerID, invoiceID uuid.UUID, actor string) (*InvoiceResponse, error) {
	return s.mutateDraft(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice, _ TransactionalRepositories) error {
		inv.RecordTaxOverride(actor, "Tax treatment reset to automatic")
		return nil
	}, func(a tax.Assignment, in tax.Input) (tax.Assignment, error) {
		return s.engine.ResetTreatment(a, in), nil
	})
}

// ResetRate lets the engine decide the rate again
func (s *InvoiceService) ResetRate(ctx context.Context, sellerID, invoiceID uuid.UUID, actor string) (*InvoiceResponse, error) {
	return s.mutateDraft(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice, _ TransactionalRepositories) error {
		inv.RecordTaxOverride(actor, "VAT rate reset to automatic")
		return nil
	}, func(a tax.Assignment, in tax.Input) (tax.Assignment, error) {
		return s.engine.ResetRate(a, in), nil
	})
}

// mutateDraft locks a draft, applies edit, re-derives the tax assignment and saves.
func (s *InvoiceService) mutateDraft(
	ctx context.Context,
	sellerID, invoiceID uuid.UUID,
	edit func(inv *invoicing.Invoice, repos TransactionalRepositories) error,
	assign func(a tax.Assignment, in tax.Input) (tax.Assignment, error),
) (*InvoiceResponse, error) {
	var resp InvoiceResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByIDForUpdate(ctx, sellerID, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsDraft() {
			return invoicing.ErrInvoiceFrozen.WithMessage("Invoice %s is %s and can no longer be edited", inv.NumberValue(), inv.Status)
		}
		if err := edit(inv, repos); err != nil {
			return err
		}

		dc, err := loadDecisionContext(ctx, repos, s.plans, sellerID, inv.BuyerID, false)
		if err != nil {
			return err
		}
		next, err := assign(inv.Tax, dc.input())
		if err != nil {
			return err
		}
		if err := inv.ApplyTax(next); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return err
		}
		resp = ToInvoiceResponse(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preview shows the current decision for an invoice without saving it.
// For a draft the engine runs against the live seller, buyer and cache row;
// for an issued invoice the frozen decision is returned.
func (s *InvoiceService) Preview(ctx context.Context, sellerID, invoiceID uuid.UUID) (*DecisionPreviewResponse, error) {
	var resp DecisionPreviewResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByID(ctx, sellerID, invoiceID)
		if err != nil {
			return err
		}
		if !inv.IsDraft() {
			resp = toPreviewResponse(inv, tax.Decision{}, string(inv.BuyerVatStatus))
			return nil
		}

		dc, err := loadDecisionContext(ctx, repos, s.plans, sellerID, inv.BuyerID, true)
		if err != nil {
			return err
		}
		in := dc.input()
		if err := inv.ApplyTax(s.engine.Recompute(inv.Tax, in)); err != nil {
			return err
		}
		resp = toPreviewResponse(inv, s.engine.Decide(in), string(dc.identityStatus()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecomputeDrafts refreshes the automatic tax fields of every draft of a seller,
// optionally only those addressed to one buyer. Manual fields are kept.
// It returns the number of drafts whose assignment changed.
func (s *InvoiceService) RecomputeDrafts(ctx context.Context, sellerID uuid.UUID, buyerID *uuid.UUID) (int, error) {
	changed := 0
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		n, err := s.recomputeDrafts(ctx, repos, sellerID, buyerID)
		changed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.logger.Info("Draft invoices recomputed",
			zap.String("seller_id", sellerID.String()),
			zap.Int("changed", changed))
	}
	return changed, nil
}

func (s *InvoiceService) recomputeDrafts(ctx context.Context, repos TransactionalRepositories, sellerID uuid.UUID, buyerID *uuid.UUID) (int, error) {
	drafts, err := repos.Invoices().FindDrafts(ctx, sellerID, buyerID)
	if err != nil || len(drafts) == 0 {
		return 0, err
	}
	seller, perms, err := loadSellerTerms(ctx, repos, s.plans, sellerID)
	if err != nil {
		return 0, err
	}

	contexts := make(map[uuid.UUID]decisionContext)
	changed := 0
	for i := range drafts {
		inv := &drafts[i]
		dc, ok := contexts[inv.BuyerID]
		if !ok {
			buyer, identity, err := loadBuyerTerms(ctx, repos, sellerID, inv.BuyerID, true)
			if err != nil {
				return changed, err
			}
			dc = decisionContext{seller: seller, buyer: buyer, identity: identity, perms: perms}
			contexts[inv.BuyerID] = dc
		}

		next := s.engine.Recompute(inv.Tax, dc.input())
		if sameAssignment(inv.Tax, next) {
			continue
		}
		if err := inv.ApplyTax(next); err != nil {
			return changed, err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// RecomputeForIdentity refreshes the drafts of every buyer, across sellers,
// linked to a VAT identity whose status just changed.
func (s *InvoiceService) RecomputeForIdentity(ctx context.Context, identityID uuid.UUID) (int, error) {
	changed := 0
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		buyers, err := repos.Buyers().FindByVatIdentity(ctx, identityID)
		if err != nil {
			return err
		}
		for _, b := range buyers {
			buyerID := b.ID
			n, err := s.recomputeDrafts(ctx, repos, b.SellerID, &buyerID)
			if err != nil {
				return err
			}
			changed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Get returns one invoice of a seller
func (s *InvoiceService) Get(ctx context.Context, sellerID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	var resp InvoiceResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByID(ctx, sellerID, invoiceID)
		if err != nil {
			return err
		}
		resp = ToInvoiceResponse(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetShared resolves a public link. Drafts are never shared.
func (s *InvoiceService) GetShared(ctx context.Context, publicID uuid.UUID, token string) (*InvoiceResponse, error) {
	var resp InvoiceResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByPublicID(ctx, publicID, token)
		if err != nil {
			return err
		}
		if inv.IsDraft() {
			return shared.ErrNotFound.WithMessage("Invoice not found")
		}
		resp = ToPublicInvoiceResponse(inv)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// List lists invoices of a seller
func (s *InvoiceService) List(ctx context.Context, sellerID uuid.UUID, filter ListInvoicesFilter) ([]InvoiceListItemResponse, int64, error) {
	var (
		out   []InvoiceListItemResponse
		total int64
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		invoices, n, err := repos.Invoices().FindAll(ctx, sellerID, filter.ToDomain())
		if err != nil {
			return err
		}
		out = make([]InvoiceListItemResponse, len(invoices))
		for i := range invoices {
			out[i] = ToInvoiceListItemResponse(&invoices[i])
		}
		total = n
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// Events returns the audit trail of an invoice
func (s *InvoiceService) Events(ctx context.Context, sellerID, invoiceID uuid.UUID) ([]InvoiceEventResponse, error) {
	var out []InvoiceEventResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.Invoices().FindByID(ctx, sellerID, invoiceID); err != nil {
			return err
		}
		events, err := repos.Events().FindByInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		out = ToInvoiceEventResponses(events)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func sameAssignment(a, b tax.Assignment) bool {
	return a.Treatment == b.Treatment &&
		a.Rate.Equal(b.Rate) &&
		a.Reason == b.Reason &&
		a.ReasonCode == b.ReasonCode &&
		a.TreatmentManual == b.TreatmentManual &&
		a.RateManual == b.RateManual
}

// monthBounds returns [first day of d's month, first day of the next month).
func monthBounds(d time.Time) (time.Time, time.Time) {
	from := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
