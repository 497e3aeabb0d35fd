package handler

import (
	"github.com/freightdesk/backend/internal/application/tracking"
	"github.com/gin-gonic/gin"
)

// ShipmentHandler handles shipment booking and OTIF progress requests
type ShipmentHandler struct {
	BaseHandler
	shipmentService *tracking.ShipmentService
}

// NewShipmentHandler creates a new ShipmentHandler
func NewShipmentHandler(shipmentService *tracking.ShipmentService) *ShipmentHandler {
	return &ShipmentHandler{shipmentService: shipmentService}
}

// Book godoc
// @ID           bookShipment
// @Summary      Book a shipment
// @Description  Create a shipment at the BOOKED stage
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Param        request body tracking.BookShipmentRequest true "Shipment booking"
// @Success      201 {object} APIResponse[tracking.ShipmentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /shipments [post]
func (h *ShipmentHandler) Book(c *gin.Context) {
	var req tracking.BookShipmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenantID, userID := actor(c)
	resp, err := h.shipmentService.Book(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List godoc
// @ID           listShipments
// @Summary      List shipments
// @Tags         shipments
// @Produce      json
// @Param        search query string false "Reference number search"
// @Param        status query string false "WAITING, ONGOING, COMPLETE or FAILED"
// @Param        route query string false "Service route"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]tracking.ShipmentResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /shipments [get]
func (h *ShipmentHandler) List(c *gin.Context) {
	var query tracking.ShipmentListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	tenantID, _ := actor(c)
	result, err := h.shipmentService.List(c.Request.Context(), tenantID, query)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// Get godoc
// @ID           getShipment
// @Summary      Get a shipment
// @Description  Stage, coarse status, progress and next stage of a shipment
// @Tags         shipments
// @Produce      json
// @Param        ref path string true "Shipment reference number"
// @Success      200 {object} APIResponse[tracking.ShipmentResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /shipments/{ref} [get]
func (h *ShipmentHandler) Get(c *gin.Context) {
	tenantID, _ := actor(c)
	resp, err := h.shipmentService.Get(c.Request.Context(), tenantID, c.Param("ref"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// SubmitOtif godoc
// @ID           submitShipmentOtif
// @Summary      Advance a shipment's OTIF stage
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Param        ref path string true "Shipment reference number"
// @Param        request body tracking.SubmitOtifRequest true "Target stage and payload"
// @Success      201 {object} APIResponse[tracking.TransitionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /shipments/{ref}/otif [post]
func (h *ShipmentHandler) SubmitOtif(c *gin.Context) {
	var req tracking.SubmitOtifRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenantID, userID := actor(c)
	resp, err := h.shipmentService.SubmitOtif(c.Request.Context(), tenantID, userID, c.Param("ref"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// History godoc
// @ID           getShipmentOtifHistory
// @Summary      OTIF history of a shipment
// @Tags         shipments
// @Produce      json
// @Param        ref path string true "Shipment reference number"
// @Success      200 {object} APIResponse[[]tracking.OtifEventResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /shipments/{ref}/otif [get]
func (h *ShipmentHandler) History(c *gin.Context) {
	tenantID, _ := actor(c)
	resp, err := h.shipmentService.History(c.Request.Context(), tenantID, c.Param("ref"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// AnnotateDelay godoc
// @ID           annotateShipmentDelay
// @Summary      Record a delay against a stage
// @Tags         shipments
// @Accept       json
// @Produce      json
// @Param        ref path string true "Shipment reference number"
// @Param        stage path string true "OTIF stage"
// @Param        request body tracking.AnnotateDelayRequest true "Delay window"
// @Success      201 {object} APIResponse[tracking.DelayResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /shipments/{ref}/otif/{stage}/delays [post]
func (h *ShipmentHandler) AnnotateDelay(c *gin.Context) {
	var req tracking.AnnotateDelayRequest
	if !h.BindJSON(c, &req) {
		return
	}

	tenantID, userID := actor(c)
	resp, err := h.shipmentService.AnnotateDelay(c.Request.Context(), tenantID, userID, c.Param("ref"), c.Param("stage"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// Delays godoc
// @ID           listShipmentDelays
// @Summary      Delays recorded against a stage
// @Tags         shipments
// @Produce      json
// @Param        ref path string true "Shipment reference number"
// @Param        stage path string true "OTIF stage"
// @Success      200 {object} APIResponse[[]tracking.DelayResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /shipments/{ref}/otif/{stage}/delays [get]
func (h *ShipmentHandler) Delays(c *gin.Context) {
	tenantID, _ := actor(c)
	resp, err := h.shipmentService.Delays(c.Request.Context(), tenantID, c.Param("ref"), c.Param("stage"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
