package invoicing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/domain/tax"
	"github.com/ledgerly/invoicing/internal/infrastructure/telemetry"
)

// IssuanceService runs the issue workflow and the post-issue lifecycle.
//
// Issue executes every check, the number allocation, the snapshot freeze and
// the audit entry in one transaction. The invoice row is locked first, so a
// retried or concurrent duplicate call finds the invoice already issued and
// returns the same number without touching the sequence.
type IssuanceService struct {
	txScope   TransactionScope
	engine    *tax.Engine
	allocator *Allocator
	plans     PlanPolicy
	legal     LegalIdentityChecker
	recorder  IssuanceRecorder
	logger    *zap.Logger
	retries   int
	now       func() time.Time
}

// IssuanceServiceConfig contains configuration for IssuanceService
type IssuanceServiceConfig struct {
	// Retries bounds whole-transaction retries on concurrency conflicts.
	Retries  int
	Legal    LegalIdentityChecker
	Recorder IssuanceRecorder
	Now      func() time.Time
}

// NewIssuanceService creates a new IssuanceService
func NewIssuanceService(
	txScope TransactionScope,
	engine *tax.Engine,
	allocator *Allocator,
	plans PlanPolicy,
	logger *zap.Logger,
	cfg IssuanceServiceConfig,
) *IssuanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Retries < 1 {
		cfg.Retries = DefaultAllocationRetries
	}
	if cfg.Legal == nil {
		cfg.Legal = SellerLegalIdentityChecker{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &IssuanceService{
		txScope:   txScope,
		engine:    engine,
		allocator: allocator,
		plans:     plans,
		legal:     cfg.Legal,
		recorder:  cfg.Recorder,
		logger:    logger,
		retries:   cfg.Retries,
		now:       cfg.Now,
	}
}

// Issue transitions a draft to issued. Calling it again on an issued, paid or
// voided invoice returns the assigned number and changes nothing.
func (s *IssuanceService) Issue(ctx context.Context, sellerID, invoiceID uuid.UUID, actor string) (resp *IssueResponse, err error) {
	ctx, span := telemetry.StartOperation(ctx, "invoice", "issue",
		telemetry.IDAttr(telemetry.SpanAttrSellerID, sellerID),
		telemetry.IDAttr(telemetry.SpanAttrInvoiceID, invoiceID))
	defer func() { telemetry.EndOperation(span, err) }()

	for attempt := 1; attempt <= s.retries; attempt++ {
		resp, err = s.issueOnce(ctx, sellerID, invoiceID, actor)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			break
		}
		s.logger.Warn("Issuance conflicted with a concurrent write, retrying",
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	if err != nil {
		if category, ok := shared.CategoryOf(err); ok && isPolicyCategory(category) {
			s.recorder.RecordIssuanceBlocked(ctx, category)
			s.logger.Info("Invoice issuance blocked",
				zap.String("invoice_id", invoiceID.String()),
				zap.String("category", string(category)),
				zap.String("reason", err.Error()))
		}
		return nil, err
	}

	telemetry.AddEvent(span, "number_assigned",
		attribute.String(telemetry.SpanAttrInvoiceNumber, resp.Number),
		attribute.Bool("already_issued", resp.AlreadyIssued))
	if !resp.AlreadyIssued {
		s.recorder.RecordInvoiceIssued(ctx, sellerID, resp.Invoice.Currency, resp.Invoice.Total)
		s.logger.Info("Invoice issued",
			zap.String("seller_id", sellerID.String()),
			zap.String("invoice_id", invoiceID.String()),
			zap.String("number", resp.Number),
			zap.String("tax_treatment", resp.Invoice.TaxTreatment))
	}
	return resp, nil
}

func (s *IssuanceService) issueOnce(ctx context.Context, sellerID, invoiceID uuid.UUID, actor string) (*IssueResponse, error) {
	var resp IssueResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByIDForUpdate(ctx, sellerID, invoiceID)
		if err != nil {
			return err
		}

		// 1. idempotent re-issue
		if !inv.IsDraft() {
			if inv.Number == nil {
				return invoicing.ErrInvalidTransition(inv.Status, invoicing.StatusIssued)
			}
			resp = IssueResponse{Number: *inv.Number, AlreadyIssued: true, Invoice: ToInvoiceResponse(inv)}
			return nil
		}

		// 2. seller legal identity
		seller, perms, err := loadSellerTerms(ctx, repos, s.plans, sellerID)
		if err != nil {
			return err
		}
		if missing := s.legal.MissingFields(seller); len(missing) > 0 {
			return invoicing.ErrLegalIdentityIncomplete.WithMessage(
				"Seller legal identity is incomplete: missing %s", strings.Join(missing, ", "))
		}

		// 3. lines and totals
		if len(inv.Items) == 0 {
			return invoicing.ErrNoItems
		}
		inv.RecomputeTotals()

		// 4. tax decision against the buyer's current cache row
		buyer, identity, err := loadBuyerTerms(ctx, repos, sellerID, inv.BuyerID, false)
		if err != nil {
			return err
		}
		dc := decisionContext{seller: seller, buyer: buyer, identity: identity, perms: perms}
		assignment, err := s.engine.Finalize(inv.Tax, dc.input())
		if err != nil {
			return err
		}
		now := s.now().UTC()

		// 5. bank accounts in the invoice currency
		active, err := repos.BankAccounts().CountActive(ctx, sellerID)
		if err != nil {
			return err
		}
		if active == 0 {
			return invoicing.ErrNoBankAccount
		}
		accounts, err := repos.BankAccounts().FindActiveByCurrency(ctx, sellerID, inv.Currency)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			return invoicing.ErrCurrencyWithoutAccount.WithMessage(
				"No active bank account in %s; add one or change the invoice currency", inv.Currency)
		}

		// 6. plan monthly limit
		issueDate := invoicing.Today(now)
		if inv.IssueDate != nil {
			issueDate = *inv.IssueDate
		}
		if err := s.checkMonthlyLimit(ctx, repos, seller.ID, dc, issueDate); err != nil {
			return err
		}

		// 7. number
		number, err := s.allocator.NextNumber(ctx, repos, sellerID, seller.InvoicePrefix, issueDate)
		if err != nil {
			return err
		}

		// 8 + 9. freeze and persist with the audit entry
		if err := inv.Issue(invoicing.IssueParams{
			Number:             number,
			IssueDate:          issueDate,
			Tax:                assignment,
			BuyerVatIdentifier: buyer.VatIdentifier,
			BuyerVatStatus:     dc.identityStatus(),
			DecidedAt:          now,
			Seller:             invoicing.SellerSnapshot(seller),
			Buyer:              invoicing.BuyerSnapshot(buyer),
			Payment:            invoicing.PaymentSnapshot(inv.Currency, accounts),
		}, actor); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return err
		}

		resp = IssueResponse{Number: number, Invoice: ToInvoiceResponse(inv)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *IssuanceService) checkMonthlyLimit(ctx context.Context, repos TransactionalRepositories, sellerID uuid.UUID, dc decisionContext, issueDate time.Time) error {
	limit, err := s.plans.MonthlyInvoiceLimit(ctx, dc.seller)
	if err != nil {
		return err
	}
	if limit.Limit == nil {
		return nil
	}
	from, to := monthBounds(issueDate)
	issued, err := repos.Invoices().CountIssuedBetween(ctx, sellerID, from, to)
	if err != nil {
		return err
	}
	if issued >= int64(*limit.Limit) {
		return invoicing.ErrMonthlyLimitReached.WithMessage(
			"Plan %s allows %d issued invoices per month; %d already issued in %s",
			limit.Plan, *limit.Limit, issued, from.Format("2006-01"))
	}
	return nil
}

// MarkPaid records payment of an issued invoice
func (s *IssuanceService) MarkPaid(ctx context.Context, sellerID, invoiceID uuid.UUID, req MarkPaidRequest, actor string) (*InvoiceResponse, error) {
	at := s.now()
	if req.PaidAt != nil {
		at = *req.PaidAt
	}
	return s.transition(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice) error {
		return inv.MarkPaid(actor, at)
	})
}

// Void cancels an issued invoice. Its number stays consumed.
func (s *IssuanceService) Void(ctx context.Context, sellerID, invoiceID uuid.UUID, req VoidRequest, actor string) (*InvoiceResponse, error) {
	return s.transition(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice) error {
		return inv.Void(actor, strings.TrimSpace(req.Reason), s.now())
	})
}

// UpdateDueDate changes the due date, which stays editable after issuance
func (s *IssuanceService) UpdateDueDate(ctx context.Context, sellerID, invoiceID uuid.UUID, req UpdateDueDateRequest, actor string) (*InvoiceResponse, error) {
	due, err := parseDate("due_date", req.DueDate)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, sellerID, invoiceID, func(inv *invoicing.Invoice) error {
		return inv.SetDueDate(due, actor)
	})
}

func (s *IssuanceService) transition(ctx context.Context, sellerID, invoiceID uuid.UUID, apply func(inv *invoicing.Invoice) error) (*InvoiceResponse, error) {
	var resp InvoiceResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByIDForUpdate(ctx, sellerID, invoiceID)
		if err != nil {
			return err
		}
		if err := apply(inv); err != nil {
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

func isPolicyCategory(c shared.ErrorCategory) bool {
	return c == shared.CategoryVAT || c == shared.CategoryLimit || c == shared.CategoryValidation
}
