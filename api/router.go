package api

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/Domenick1991/parking/config"
	"github.com/Domenick1991/parking/internal/service/catalog"
	"github.com/Domenick1991/parking/internal/service/reservation"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

//go:embed docs/openapi.json
var openAPIDoc []byte

const openAPIPath = "/openapi.json"

// NewRouter builds the HTTP surface. loc interprets timestamps sent
// without an offset and renders all response times.
func NewRouter(cfg config.HTTPConfig, loc *time.Location, catalogSvc catalog.CatalogUseCase, reservationSvc reservation.ReservationUseCase, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()
	router.Use(RequestLogger(log), Recovery(log), CORS(cfg.CORS), RateLimit(cfg.RateLimit, log))

	router.GET("/health", func(c *gin.Context) {
		respondOK(c, gin.H{"status": "UP"}, "Service is healthy")
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, newEnvelope(false, "Resource not found", nil, http.StatusNotFound))
	})

	if cfg.Swagger {
		router.GET(openAPIPath, func(c *gin.Context) {
			c.Data(http.StatusOK, "application/json", openAPIDoc)
		})
		router.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL(openAPIPath))))
	}

	group := router.Group(cfg.BasePath)
	NewFloorHandler(catalogSvc, log).Register(group)
	NewSlotHandler(catalogSvc, log).Register(group)
	NewReservationHandler(reservationSvc, loc, log).Register(group)

	return router
}
