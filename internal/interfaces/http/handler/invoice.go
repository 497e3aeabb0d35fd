package handler

import (
	"github.com/freightdesk/backend/internal/application/settlement"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles invoicing and payment reconciliation requests
type InvoiceHandler struct {
	BaseHandler
	invoiceService *settlement.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *settlement.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// Open godoc
// @ID           openInvoice
// @Summary      Open a proforma invoice for a shipment
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body settlement.OpenInvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[settlement.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /invoices [post]
func (h *InvoiceHandler) Open(c *gin.Context) {
	var req settlement.OpenInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenantID, userID := actor(c)
	resp, err := h.invoiceService.Open(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Param        search query string false "Invoice number search"
// @Param        status query string false "Invoice status"
// @Param        shipment_id query string false "Shipment ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]settlement.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var query settlement.InvoiceListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	tenantID, _ := actor(c)
	result, err := h.invoiceService.List(c.Request.Context(), tenantID, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get godoc
// @ID           getInvoice
// @Summary      Get an invoice with its payment attempts
// @Tags         invoices
// @Produce      json
// @Param        number path string true "Invoice number"
// @Success      200 {object} APIResponse[settlement.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /invoices/{number} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	tenantID, _ := actor(c)
	resp, err := h.invoiceService.Get(c.Request.Context(), tenantID, c.Param("number"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Issue godoc
// @ID           issueInvoice
// @Summary      Issue a proforma invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        number path string true "Invoice number"
// @Param        request body settlement.IssueInvoiceRequest false "Due date"
// @Success      200 {object} APIResponse[settlement.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{number}/issue [post]
func (h *InvoiceHandler) Issue(c *gin.Context) {
	var req settlement.IssueInvoiceRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	tenantID, _ := actor(c)
	resp, err := h.invoiceService.Issue(c.Request.Context(), tenantID, c.Param("number"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// MarkNeedsRevision godoc
// @ID           reviseInvoice
// @Summary      Mark an invoice as needing revision
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        number path string true "Invoice number"
// @Param        request body settlement.RevisionRequest true "Reason"
// @Success      200 {object} APIResponse[settlement.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{number}/revision [post]
func (h *InvoiceHandler) MarkNeedsRevision(c *gin.Context) {
	var req settlement.RevisionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenantID, _ := actor(c)
	resp, err := h.invoiceService.MarkNeedsRevision(c.Request.Context(), tenantID, c.Param("number"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SubmitPayment godoc
// @ID           submitInvoicePayment
// @Summary      Submit a payment attempt
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        number path string true "Invoice number"
// @Param        request body settlement.SubmitPaymentRequest true "Payment"
// @Success      201 {object} APIResponse[settlement.PaymentReviewResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{number}/payments [post]
func (h *InvoiceHandler) SubmitPayment(c *gin.Context) {
	var req settlement.SubmitPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenantID, userID := actor(c)
	resp, err := h.invoiceService.SubmitPayment(c.Request.Context(), tenantID, userID, c.Param("number"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ConfirmPayment godoc
// @ID           confirmInvoicePayment
// @Summary      Confirm a payment attempt
// @Tags         invoices
// @Produce      json
// @Param        number path string true "Invoice number"
// @Param        id path string true "Payment attempt ID" format(uuid)
// @Success      200 {object} APIResponse[settlement.PaymentReviewResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /invoices/{number}/payments/{id}/confirm [post]
func (h *InvoiceHandler) ConfirmPayment(c *gin.Context) {
	attemptID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	tenantID, userID := actor(c)
	resp, err := h.invoiceService.ConfirmPayment(c.Request.Context(), tenantID, userID, c.Param("number"), attemptID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RejectPayment godoc
// @ID           rejectInvoicePayment
// @Summary      Reject a payment attempt
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        number path string true "Invoice number"
// @Param        id path string true "Payment attempt ID" format(uuid)
// @Param        request body settlement.RejectPaymentRequest true "Reason"
// @Success      200 {object} APIResponse[settlement.PaymentReviewResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /invoices/{number}/payments/{id}/reject [post]
func (h *InvoiceHandler) RejectPayment(c *gin.Context) {
	attemptID, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req settlement.RejectPaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenantID, userID := actor(c)
	resp, err := h.invoiceService.RejectPayment(c.Request.Context(), tenantID, userID, c.Param("number"), attemptID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
