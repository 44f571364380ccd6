package api

import (
	"github.com/Domenick1991/parking/internal/service/catalog"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
	"go.uber.org/zap"
)

type FloorHandler struct {
	catalog catalog.CatalogUseCase
	log     *zap.Logger
}

type createFloorRequest struct {
	Name string `json:"name" binding:"required" msg:"Floor name is required"`
}

type floorResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func NewFloorHandler(catalog catalog.CatalogUseCase, log *zap.Logger) *FloorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &FloorHandler{catalog: catalog, log: log}
}

func (h *FloorHandler) Register(router *gin.RouterGroup) {
	router.POST("/floors", h.create)
}

func (h *FloorHandler) create(c *gin.Context) {
	var req createFloorRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}

	floor, err := h.catalog.CreateFloor(c.Request.Context(), req.Name)
	if err != nil {
		logUnexpected(h.log, c, err)
		respondError(c, err)
		return
	}

	var resp floorResponse
	if err := copier.Copy(&resp, floor); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, resp, "Floor created successfully")
}
