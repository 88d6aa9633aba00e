package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ledgerly/invoicing/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted by Mount
type Handlers struct {
	System      *handler.SystemHandler
	Seller      *handler.SellerHandler
	Buyer       *handler.BuyerHandler
	BankAccount *handler.BankAccountHandler
	Invoice     *handler.InvoiceHandler
	VatIdentity *handler.VatIdentityHandler
	Rates       *handler.RatesHandler
	Plan        *handler.PlanHandler
	Document    *handler.DocumentHandler
	// Session is optional; nil leaves token issuance unmounted
	Session *handler.SessionHandler
}

// Guards are the per-route middleware. Nil guards are skipped; a nil
// Admin guard leaves the admin routes unmounted.
type Guards struct {
	// SellerContext binds the acting seller on every seller-scoped route
	SellerContext gin.HandlerFunc
	// SellerRateLimit throttles seller-scoped routes per seller
	SellerRateLimit gin.HandlerFunc
	// PublicRateLimit throttles unauthenticated routes per client IP
	PublicRateLimit gin.HandlerFunc
	// RecheckFeature gates manual VAT rechecks on the seller's plan
	RecheckFeature gin.HandlerFunc
	Admin          gin.HandlerFunc
}

// Mount registers every route of the API on r
func Mount(r *Router, h Handlers, g Guards) {
	r.Probe(NewGroup("").
		GET("/health", h.System.Health).
		GET("/ready", h.System.Ready))

	public := NewGroup("", g.PublicRateLimit)
	public.GET("/system/info", h.System.GetSystemInfo)
	public.POST("/sellers", h.Seller.Create)
	public.GET("/rates", h.Rates.List)
	public.GET("/plans", h.Plan.ListPlans)
	public.GET("/plans/:plan/features", h.Plan.GetPlanFeatures)
	public.GET("/public/invoices/:public_id", h.Invoice.GetShared)
	public.GET("/public/invoices/:public_id/document", h.Document.GetShared)
	r.API(public)

	scoped := NewGroup("", g.SellerContext, g.SellerRateLimit)

	seller := scoped.Sub("/seller")
	seller.GET("", h.Seller.GetCurrent)
	seller.PUT("/tax-settings", h.Seller.UpdateTaxSettings)
	seller.PUT("/profile", h.Seller.UpdateProfile)
	seller.PUT("/plan", h.Seller.ChangePlan)
	seller.GET("/features", h.Plan.GetCurrentFeatures)

	buyers := scoped.Sub("/buyers")
	buyers.POST("", h.Buyer.Create)
	buyers.GET("", h.Buyer.List)
	buyers.GET("/:id", h.Buyer.GetByID)
	buyers.PUT("/:id", h.Buyer.Update)
	buyers.DELETE("/:id", h.Buyer.Delete)

	accounts := scoped.Sub("/bank-accounts")
	accounts.POST("", h.BankAccount.Create)
	accounts.GET("", h.BankAccount.List)
	accounts.POST("/:id/deactivate", h.BankAccount.Deactivate)

	invoices := scoped.Sub("/invoices")
	invoices.POST("", h.Invoice.Create)
	invoices.GET("", h.Invoice.List)
	invoices.GET("/:id", h.Invoice.GetByID)
	invoices.PUT("/:id", h.Invoice.Update)
	invoices.PUT("/:id/items", h.Invoice.ReplaceItems)
	invoices.PUT("/:id/treatment", h.Invoice.SetTreatment)
	invoices.DELETE("/:id/treatment", h.Invoice.ResetTreatment)
	invoices.PUT("/:id/rate", h.Invoice.SetRate)
	invoices.DELETE("/:id/rate", h.Invoice.ResetRate)
	invoices.GET("/:id/decision", h.Invoice.Preview)
	invoices.POST("/:id/issue", h.Invoice.Issue)
	invoices.POST("/:id/paid", h.Invoice.MarkPaid)
	invoices.POST("/:id/void", h.Invoice.Void)
	invoices.PATCH("/:id/due-date", h.Invoice.UpdateDueDate)
	invoices.GET("/:id/events", h.Invoice.Events)
	invoices.GET("/:id/document", h.Document.Get)

	identities := scoped.Sub("/vat-identities")
	identities.GET("/:id", h.VatIdentity.GetByID)
	identities.POST("/:id/recheck", g.RecheckFeature, h.VatIdentity.Recheck)

	r.API(scoped)

	if g.Admin != nil {
		admin := NewGroup("/admin", g.Admin)
		admin.PUT("/plans/:plan/features/:feature", h.Plan.UpdatePlanFeature)
		if h.Session != nil {
			admin.POST("/sellers/:id/tokens", h.Session.IssueToken)
		}
		r.API(admin)
	}
}
