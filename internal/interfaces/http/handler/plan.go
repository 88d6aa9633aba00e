package handler

import (
	"github.com/gin-gonic/gin"

	billingapp "github.com/ledgerly/invoicing/internal/application/billing"
	partyapp "github.com/ledgerly/invoicing/internal/application/party"
	"github.com/ledgerly/invoicing/internal/domain/billing"
)

// PlanResponse describes a plan of the catalog
type PlanResponse struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var planCatalog = []PlanResponse{
	{Code: string(billing.PlanFree), Name: "Free", Description: "Domestic invoicing with a small monthly allowance"},
	{Code: string(billing.PlanPro), Name: "Pro", Description: "EU reverse charge and manual VAT rechecks"},
	{Code: string(billing.PlanBusiness), Name: "Business", Description: "Everything in Pro without a monthly limit"},
}

// PlanHandler serves the plan catalog and plan feature overrides
type PlanHandler struct {
	BaseHandler
	planService   *billingapp.PlanService
	sellerService *partyapp.SellerService
}

// NewPlanHandler creates a new PlanHandler
func NewPlanHandler(planService *billingapp.PlanService, sellerService *partyapp.SellerService) *PlanHandler {
	return &PlanHandler{
		planService:   planService,
		sellerService: sellerService,
	}
}

// ListPlans handles GET /plans
func (h *PlanHandler) ListPlans(c *gin.Context) {
	h.Success(c, planCatalog)
}

// GetPlanFeatures handles GET /plans/:plan/features
func (h *PlanHandler) GetPlanFeatures(c *gin.Context) {
	plan, ok := h.planParam(c)
	if !ok {
		return
	}

	features, err := h.planService.Features(c.Request.Context(), plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, billingapp.ToPlanFeaturesResponse(plan, features))
}

// GetCurrentFeatures handles GET /seller/features
func (h *PlanHandler) GetCurrentFeatures(c *gin.Context) {
	sellerID, ok := h.sellerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	seller, err := h.sellerService.Get(ctx, sellerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	plan := billing.PlanCode(seller.Plan)
	if !plan.IsValid() {
		plan = billing.DefaultPlan
	}
	features, err := h.planService.Features(ctx, plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, billingapp.ToPlanFeaturesResponse(plan, features))
}

// UpdatePlanFeature handles PUT /admin/plans/:plan/features/:feature
func (h *PlanHandler) UpdatePlanFeature(c *gin.Context) {
	plan, ok := h.planParam(c)
	if !ok {
		return
	}
	key := billing.FeatureKey(c.Param("feature"))
	if !key.IsValid() {
		h.BadRequest(c, "Unknown feature "+string(key))
		return
	}
	var req billingapp.UpdatePlanFeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	feature := billing.NewPlanFeature(plan, key, req.Enabled, req.Description)
	feature.Limit = req.Limit
	ctx := c.Request.Context()
	if err := h.planService.SaveFeature(ctx, feature); err != nil {
		h.HandleError(c, err)
		return
	}
	features, err := h.planService.Features(ctx, plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, billingapp.ToPlanFeaturesResponse(plan, features))
}

func (h *PlanHandler) planParam(c *gin.Context) (billing.PlanCode, bool) {
	plan := billing.PlanCode(c.Param("plan"))
	if !plan.IsValid() {
		h.BadRequest(c, "Invalid plan code. Must be one of: free, pro, business")
		return "", false
	}
	return plan, true
}
