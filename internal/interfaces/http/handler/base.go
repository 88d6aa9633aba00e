// Package handler holds the gin handlers of the invoicing API.
// Handlers bind and validate the request, call one application service
// and render the result through BaseHandler.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/shared"
	"github.com/ledgerly/invoicing/internal/infrastructure/logger"
	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
	"github.com/ledgerly/invoicing/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	middleware.SetErrorCode(c, code)
	c.JSON(statusCode, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindError renders a failed ShouldBind* call
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	middleware.HandleValidationError(c, err)
}

// HandleError renders err. Domain errors keep their code and map their
// category to a status; anything else is logged and hidden behind a 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	ctx := c.Request.Context()
	requestID := middleware.GetRequestID(c)

	resp, status, ok := dto.NewDomainErrorResponse(err, requestID)
	if !ok {
		logger.L(ctx).Error("Unhandled error", zap.Error(err))
		h.InternalError(c, "An unexpected error occurred")
		return
	}

	// An immutability violation reaching the API means a code path tried
	// to edit an issued invoice.
	if cat, _ := shared.CategoryOf(err); cat == shared.CategoryImmutability {
		logger.L(ctx).Error("Immutability violation", zap.Error(err))
	}
	middleware.SetErrorCode(c, resp.Error.Code)
	c.JSON(status, resp)
}

// sellerID returns the seller bound by SellerContext, writing a 400 when absent
func (h *BaseHandler) sellerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetSellerID(c)
	if !ok {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeMissingSeller, "Seller context required")
	}
	return id, ok
}

// uuidParam parses a path parameter, writing a 400 when malformed
func (h *BaseHandler) uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pageOf fills the listing defaults used for response meta
func pageOf(page, pageSize int) (int, int) {
	def := shared.DefaultFilter()
	if page <= 0 {
		page = def.Page
	}
	if pageSize <= 0 {
		pageSize = def.PageSize
	}
	return page, pageSize
}

// invoiceRef returns the seller and the :id invoice of the request
func (h *BaseHandler) invoiceRef(c *gin.Context) (sellerID, invoiceID uuid.UUID, ok bool) {
	if sellerID, ok = h.sellerID(c); !ok {
		return
	}
	invoiceID, ok = h.uuidParam(c, "id")
	return
}

// bindOptionalJSON binds a body that may be omitted entirely
func (h *BaseHandler) bindOptionalJSON(c *gin.Context, obj any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		h.BindError(c, err)
		return false
	}
	return true
}

func actorOf(c *gin.Context) string {
	return middleware.GetActor(c)
}
