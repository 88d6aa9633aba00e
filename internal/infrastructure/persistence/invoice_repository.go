package persistence

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerly/invoicing/internal/domain/invoicing"
	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements invoicing.InvoiceRepository using GORM.
//
// Save is the immutability checkpoint: the persisted row is read back and the
// write is validated with invoicing.GuardInvoiceWrite before anything is sent
// to the database. Pending lifecycle events are appended to invoice_events on
// the same connection, so callers that wrap Save in a transaction get the audit
// entry atomically with the state change.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice of sellerID with its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, sellerID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx), sellerID, id)
}

// FindByIDForUpdate finds an invoice and locks its row for the rest of the transaction
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, sellerID, id uuid.UUID) (*invoicing.Invoice, error) {
	return r.find(ctx, r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), sellerID, id)
}

func (r *GormInvoiceRepository) find(ctx context.Context, db *gorm.DB, sellerID, id uuid.UUID) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := db.Scopes(SellerScope(sellerID)).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Invoice %s not found", id)
		}
		return nil, err
	}
	if err := r.loadItems(ctx, []*models.InvoiceModel{&model}); err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByPublicID resolves a shared link. The token is compared in constant time.
func (r *GormInvoiceRepository) FindByPublicID(ctx context.Context, publicID uuid.UUID, shareToken string) (*invoicing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).First(&model, "public_id = ?", publicID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound.WithMessage("Invoice not found")
		}
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(model.ShareToken), []byte(shareToken)) != 1 {
		return nil, shared.ErrNotFound.WithMessage("Invoice not found")
	}
	if err := r.loadItems(ctx, []*models.InvoiceModel{&model}); err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists invoices of sellerID, newest first
func (r *GormInvoiceRepository) FindAll(ctx context.Context, sellerID uuid.UUID, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Scopes(SellerScope(sellerID))
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if filter.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filter.BuyerID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		query = query.Where("LOWER(number) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InvoiceModel
	if err := query.
		Order("created_at DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return r.toDomainList(ctx, rows, total)
}

// FindDrafts lists draft invoices of sellerID, optionally for one buyer
func (r *GormInvoiceRepository) FindDrafts(ctx context.Context, sellerID uuid.UUID, buyerID *uuid.UUID) ([]invoicing.Invoice, error) {
	query := r.db.WithContext(ctx).
		Scopes(SellerScope(sellerID)).
		Where("status = ?", string(invoicing.StatusDraft))
	if buyerID != nil {
		query = query.Where("buyer_id = ?", *buyerID)
	}

	var rows []models.InvoiceModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out, _, err := r.toDomainList(ctx, rows, 0)
	return out, err
}

// CountIssuedBetween counts non-draft invoices with from <= issue_date < to
func (r *GormInvoiceRepository) CountIssuedBetween(ctx context.Context, sellerID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Scopes(SellerScope(sellerID)).
		Where("status <> ?", string(invoicing.StatusDraft)).
		Where("issue_date >= ? AND issue_date < ?", from.UTC(), to.UTC()).
		Count(&count).Error
	return count, err
}

// Save creates or updates an invoice after checking the write against the persisted row.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	db := r.db.WithContext(ctx)

	var existing models.InvoiceModel
	var prev *invoicing.InvoiceState
	err := db.Scopes(SellerScope(inv.SellerID)).First(&existing, "id = ?", inv.ID).Error
	switch {
	case err == nil:
		state := existing.State()
		prev = &state
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return err
	}

	if err := invoicing.GuardInvoiceWrite(prev, inv.State()); err != nil {
		return err
	}

	model := models.InvoiceModelFromDomain(inv)
	if prev == nil {
		model.Version = 1
		if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
	} else {
		model.Version = existing.Version + 1
		result := db.Model(&models.InvoiceModel{}).
			Where("id = ? AND seller_id = ? AND version = ?", inv.ID, inv.SellerID, existing.Version).
			Select("*").
			Omit("id", "created_at", "seller_id", "public_id", "share_token", clause.Associations).
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict.WithMessage("Invoice %s was modified by another process", inv.ID)
		}
	}
	inv.Version = model.Version

	if inv.ItemsReplaced() {
		parent := invoicing.StatusDraft
		if prev != nil {
			parent = prev.Status
		}
		if err := r.replaceItems(db, parent, inv); err != nil {
			return err
		}
		inv.MarkItemsPersisted()
	}

	if err := appendLifecycleEvents(db, inv); err != nil {
		return err
	}
	inv.ClearPendingEvents()
	return nil
}

func (r *GormInvoiceRepository) replaceItems(db *gorm.DB, parent invoicing.Status, inv *invoicing.Invoice) error {
	if err := invoicing.GuardItemWrite(parent, invoicing.ItemOpModify); err != nil {
		return err
	}
	if err := db.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return err
	}
	if len(inv.Items) == 0 {
		return nil
	}
	rows := make([]*models.InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		inv.Items[i].InvoiceID = inv.ID
		rows[i] = models.InvoiceItemModelFromDomain(&inv.Items[i])
	}
	return db.Create(rows).Error
}

func appendLifecycleEvents(db *gorm.DB, inv *invoicing.Invoice) error {
	var rows []*models.InvoiceEventModel
	for _, ev := range inv.PendingEvents() {
		le, ok := ev.(*invoicing.LifecycleEvent)
		if !ok {
			continue
		}
		rows = append(rows, models.InvoiceEventModelFromDomain(le.AuditEntry()))
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Create(rows).Error
}

func (r *GormInvoiceRepository) loadItems(ctx context.Context, invoices []*models.InvoiceModel) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(invoices))
	byID := make(map[uuid.UUID]*models.InvoiceModel, len(invoices))
	for i, m := range invoices {
		ids[i] = m.ID
		byID[m.ID] = m
		m.Items = nil
	}

	var items []models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id IN ?", ids).
		Order("position ASC").
		Find(&items).Error; err != nil {
		return err
	}
	for _, it := range items {
		if m, ok := byID[it.InvoiceID]; ok {
			m.Items = append(m.Items, it)
		}
	}
	return nil
}

func (r *GormInvoiceRepository) toDomainList(ctx context.Context, rows []models.InvoiceModel, total int64) ([]invoicing.Invoice, int64, error) {
	ptrs := make([]*models.InvoiceModel, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	out := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, total, nil
}

// GormInvoiceItemRepository implements invoicing.InvoiceItemRepository using GORM.
// Every write reads the parent status first and refuses to touch lines of a frozen invoice.
type GormInvoiceItemRepository struct {
	db *gorm.DB
}

// NewGormInvoiceItemRepository creates a new GormInvoiceItemRepository
func NewGormInvoiceItemRepository(db *gorm.DB) *GormInvoiceItemRepository {
	return &GormInvoiceItemRepository{db: db}
}

// FindByInvoice lists the lines of an invoice in order
func (r *GormInvoiceItemRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.InvoiceItem, error) {
	var rows []models.InvoiceItemModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoicing.InvoiceItem, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Create adds a line to a draft invoice
func (r *GormInvoiceItemRepository) Create(ctx context.Context, item *invoicing.InvoiceItem) error {
	if err := r.guard(ctx, item.InvoiceID, invoicing.ItemOpAdd); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(models.InvoiceItemModelFromDomain(item)).Error
}

// Update changes a line of a draft invoice
func (r *GormInvoiceItemRepository) Update(ctx context.Context, item *invoicing.InvoiceItem) error {
	if err := r.guard(ctx, item.InvoiceID, invoicing.ItemOpModify); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceItemModel{}).
		Where("id = ? AND invoice_id = ?", item.ID, item.InvoiceID).
		Updates(map[string]interface{}{
			"position":    item.Position,
			"description": item.Description,
			"quantity":    item.Quantity,
			"unit_price":  int64(item.UnitPrice),
			"line_total":  int64(item.LineTotal),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound.WithMessage("Invoice item %s not found", item.ID)
	}
	return nil
}

// Delete removes a line of a draft invoice
func (r *GormInvoiceItemRepository) Delete(ctx context.Context, invoiceID, itemID uuid.UUID) error {
	if err := r.guard(ctx, invoiceID, invoicing.ItemOpDelete); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Delete(&models.InvoiceItemModel{}, "id = ? AND invoice_id = ?", itemID, invoiceID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound.WithMessage("Invoice item %s not found", itemID)
	}
	return nil
}

func (r *GormInvoiceItemRepository) guard(ctx context.Context, invoiceID uuid.UUID, op invoicing.ItemOperation) error {
	var parent models.InvoiceModel
	if err := r.db.WithContext(ctx).Select("id", "status").First(&parent, "id = ?", invoiceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.ErrNotFound.WithMessage("Invoice %s not found", invoiceID)
		}
		return err
	}
	return invoicing.GuardItemWrite(invoicing.Status(parent.Status), op)
}

// GormInvoiceEventRepository implements invoicing.EventRepository using GORM.
// It only ever inserts and reads.
type GormInvoiceEventRepository struct {
	db *gorm.DB
}

// NewGormInvoiceEventRepository creates a new GormInvoiceEventRepository
func NewGormInvoiceEventRepository(db *gorm.DB) *GormInvoiceEventRepository {
	return &GormInvoiceEventRepository{db: db}
}

// Append inserts audit entries
func (r *GormInvoiceEventRepository) Append(ctx context.Context, events ...invoicing.InvoiceEvent) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([]*models.InvoiceEventModel, len(events))
	for i, e := range events {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		rows[i] = models.InvoiceEventModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindByInvoice lists the audit trail of an invoice, oldest first
func (r *GormInvoiceEventRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]invoicing.InvoiceEvent, error) {
	var rows []models.InvoiceEventModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]invoicing.InvoiceEvent, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var (
	_ invoicing.InvoiceRepository     = (*GormInvoiceRepository)(nil)
	_ invoicing.InvoiceItemRepository = (*GormInvoiceItemRepository)(nil)
	_ invoicing.EventRepository       = (*GormInvoiceEventRepository)(nil)
)
