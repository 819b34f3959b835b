package http

import (
	"errors"
	"net/http"

	"callbridge/internal/infrastructure/board"
	"callbridge/internal/infrastructure/middleware"
	"callbridge/internal/infrastructure/monitoring"
	apperrors "callbridge/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type BoardHandlerConfig struct {
	JWTSecret         string
	RequestsPerSecond float64
	Burst             int
}

// BoardHandler serves the status board and the operational endpoints next to it.
type BoardHandler struct {
	board    *board.Board
	health   *monitoring.HealthChecker
	gatherer prometheus.Gatherer
	cfg      BoardHandlerConfig
	logger   *zap.SugaredLogger
}

func NewBoardHandler(
	b *board.Board,
	health *monitoring.HealthChecker,
	gatherer prometheus.Gatherer,
	cfg BoardHandlerConfig,
	logger *zap.SugaredLogger,
) *BoardHandler {
	return &BoardHandler{
		board:    b,
		health:   health,
		gatherer: gatherer,
		cfg:      cfg,
		logger:   logger,
	}
}

func (h *BoardHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	if h.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	router.GET("/ws", h.Live)

	api := router.Group("/api/v1")
	{
		api.GET("/ui", h.GetDocument)
		api.POST("/call/end",
			middleware.AuthMiddleware(h.cfg.JWTSecret),
			middleware.NewHTTPRateLimitMiddleware(h.cfg.RequestsPerSecond, h.cfg.Burst),
			h.EndCall,
		)
	}
}

// NewRouter builds the gin engine with the board's middleware chain.
func NewRouter(h *BoardHandler, logger *zap.SugaredLogger) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.TracingMiddleware(),
		middleware.ErrorHandlerMiddleware(logger),
	)
	h.SetupRoutes(router)
	return router
}

func (h *BoardHandler) Health(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	c.JSON(http.StatusOK, status)
}

func (h *BoardHandler) Ready(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *BoardHandler) GetDocument(c *gin.Context) {
	c.JSON(http.StatusOK, h.board.Document().Snapshot())
}

func (h *BoardHandler) Live(c *gin.Context) {
	h.board.Hub().ServeWS(c.Writer, c.Request)
}

func (h *BoardHandler) EndCall(c *gin.Context) {
	if err := h.board.TriggerEndCall(); err != nil {
		if errors.Is(err, board.ErrNoEndCall) {
			_ = c.Error(apperrors.NewConflictError("no call in progress"))
			return
		}
		_ = c.Error(err)
		return
	}

	h.logger.Infow("End call triggered from board",
		"subject", c.GetString(middleware.SubjectKey),
		"client_ip", c.ClientIP(),
	)
	c.JSON(http.StatusAccepted, gin.H{"status": "ending"})
}
