package api

import (
	"strconv"
	"time"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

type ReservationHandler struct {
	service reservation.ReservationUseCase
	loc     *time.Location
	log     *zap.Logger
}

type reserveRequest struct {
	SlotID        int64              `json:"slotId" binding:"required" msg:"Slot ID is required"`
	VehicleNumber string             `json:"vehicleNumber"`
	StartTime     Timestamp          `json:"startTime"`
	EndTime       Timestamp          `json:"endTime"`
	VehicleType   domain.VehicleType `json:"vehicleType" binding:"required,vehicletype" msg:"Vehicle type is required"`
}

type availabilityRequest struct {
	StartTime     string `form:"startTime"`
	EndTime       string `form:"endTime"`
	VehicleType   string `form:"vehicleType"`
	Page          int    `form:"page,default=0"`
	Size          int    `form:"size,default=10"`
	SortProperty  string `form:"sortProperty,default=slotNumber"`
	SortDirection string `form:"sortDirection,default=asc"`
}

type reservationResponse struct {
	ID            int64     `json:"id"`
	SlotID        int64     `json:"slotId"`
	VehicleNumber string    `json:"vehicleNumber"`
	StartTime     Timestamp `json:"startTime" copier:"-"`
	EndTime       Timestamp `json:"endTime" copier:"-"`
	Cost          int64     `json:"cost"`
	Status        string    `json:"status"`
}

type slotPageResponse struct {
	Content       []slotResponse `json:"content"`
	Page          int            `json:"page"`
	Size          int            `json:"size"`
	TotalElements int64          `json:"totalElements"`
	TotalPages    int            `json:"totalPages"`
}

func NewReservationHandler(service reservation.ReservationUseCase, loc *time.Location, log *zap.Logger) *ReservationHandler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReservationHandler{service: service, loc: loc, log: log}
}

func (h *ReservationHandler) Register(router *gin.RouterGroup) {
	router.POST("/reserve", h.reserve)
	router.GET("/reservations/:id", h.get)
	router.DELETE("/reservations/:id", h.cancel)
	router.GET("/availability", h.availability)
}

func (h *ReservationHandler) reserve(c *gin.Context) {
	var req reserveRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	res, err := h.service.Reserve(c.Request.Context(), reservation.ReserveInput{
		SlotID:        req.SlotID,
		VehicleNumber: req.VehicleNumber,
		StartTime:     req.StartTime.In(h.loc),
		EndTime:       req.EndTime.In(h.loc),
		VehicleType:   req.VehicleType,
	})
	if err != nil {
		logUnexpected(h.log, c, err)
		respondError(c, err)
		return
	}
	h.respondReservation(c, res, "Reservation created successfully")
}

func (h *ReservationHandler) get(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	res, err := h.service.GetReservation(c.Request.Context(), id)
	if err != nil {
		logUnexpected(h.log, c, err)
		respondError(c, err)
		return
	}
	h.respondReservation(c, res, "Reservation fetched successfully")
}

func (h *ReservationHandler) cancel(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}

	if _, err := h.service.CancelReservation(c.Request.Context(), id); err != nil {
		logUnexpected(h.log, c, err)
		respondError(c, err)
		return
	}
	respondOK(c, nil, "Reservation cancelled successfully")
}

func (h *ReservationHandler) availability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondError(c, domain.Errorf(domain.ErrValidation, "Invalid query parameters"))
		return
	}

	input, err := h.availabilityInput(req)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.service.ListAvailableSlots(c.Request.Context(), input)
	if err != nil {
		logUnexpected(h.log, c, err)
		respondError(c, err)
		return
	}

	resp := slotPageResponse{
		Content:       make([]slotResponse, 0, len(page.Content)),
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	}
	if err := copier.Copy(&resp.Content, page.Content); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, resp, "Available slots retrieved")
}

func (h *ReservationHandler) availabilityInput(req availabilityRequest) (reservation.AvailabilityInput, error) {
	for _, p := range []struct{ name, value string }{
		{"startTime", req.StartTime},
		{"endTime", req.EndTime},
		{"vehicleType", req.VehicleType},
	} {
		if p.value == "" {
			return reservation.AvailabilityInput{}, domain.Errorf(domain.ErrValidation, "Required parameter '%s' is missing", p.name)
		}
	}
	start, err := parseTimestamp(req.StartTime)
	if err != nil {
		return reservation.AvailabilityInput{}, domain.Errorf(domain.ErrValidation, "Invalid value for 'startTime': %s", req.StartTime)
	}
	end, err := parseTimestamp(req.EndTime)
	if err != nil {
		return reservation.AvailabilityInput{}, domain.Errorf(domain.ErrValidation, "Invalid value for 'endTime': %s", req.EndTime)
	}
	vt, err := domain.ParseVehicleType(req.VehicleType)
	if err != nil {
		return reservation.AvailabilityInput{}, invalidVehicleType("vehicleType")
	}

	return reservation.AvailabilityInput{
		StartTime:     start.In(h.loc),
		EndTime:       end.In(h.loc),
		VehicleType:   vt,
		Page:          req.Page,
		Size:          req.Size,
		SortProperty:  req.SortProperty,
		SortDirection: req.SortDirection,
	}, nil
}

func (h *ReservationHandler) respondReservation(c *gin.Context, res *domain.Reservation, message string) {
	var resp reservationResponse
	if err := copier.Copy(&resp, res); err != nil {
		respondError(c, err)
		return
	}
	resp.StartTime = timestampOf(res.StartTime, h.loc)
	resp.EndTime = timestampOf(res.EndTime, h.loc)
	respondOK(c, resp, message)
}

func reservationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, domain.Errorf(domain.ErrValidation, "Invalid reservation ID: %s", c.Param("id")))
		return 0, false
	}
	return id, true
}
