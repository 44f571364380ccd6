package api

import (
	"strconv"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/Domenick1991/parking/internal/service/catalog"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

type SlotHandler struct {
	catalog catalog.CatalogUseCase
	log     *zap.Logger
}

type createSlotRequest struct {
	FloorID     int64              `json:"floorId" binding:"required" msg:"Floor ID is required"`
	SlotNumber  string             `json:"slotNumber" binding:"required" msg:"Slot number is required"`
	VehicleType domain.VehicleType `json:"vehicleType" binding:"required,vehicletype" msg:"Vehicle type is required"`
}

// slotResponse is shared by slot creation and availability listings.
type slotResponse struct {
	ID          int64  `json:"id"`
	SlotNumber  string `json:"slotNumber"`
	VehicleType string `json:"vehicleType"`
	FloorID     int64  `json:"floorId"`
	FloorName   string `json:"floorName"`
}

func NewSlotHandler(catalog catalog.CatalogUseCase, log *zap.Logger) *SlotHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SlotHandler{catalog: catalog, log: log}
}

func (h *SlotHandler) Register(router *gin.RouterGroup) {
	router.POST("/slots", h.create)
	router.GET("/slots/:id", h.get)
}

func (h *SlotHandler) create(c *gin.Context) {
	var req createSlotRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	slot, err := h.catalog.CreateSlot(c.Request.Context(), catalog.CreateSlotInput{
		FloorID:     req.FloorID,
		SlotNumber:  req.SlotNumber,
		VehicleType: req.VehicleType,
	})
	if err != nil {
		logUnexpected(h.log, c, err)
		respondError(c, err)
		return
	}
	h.respondSlot(c, slot, "Slot created successfully")
}

func (h *SlotHandler) get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, domain.Errorf(domain.ErrValidation, "Invalid slot ID: %s", c.Param("id")))
		return
	}

	slot, err := h.catalog.GetSlot(c.Request.Context(), id)
	if err != nil {
		logUnexpected(h.log, c, err)
		respondError(c, err)
		return
	}
	h.respondSlot(c, slot, "Slot fetched successfully")
}

func (h *SlotHandler) respondSlot(c *gin.Context, slot *domain.Slot, message string) {
	var resp slotResponse
	if err := copier.Copy(&resp, slot); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, resp, message)
}
