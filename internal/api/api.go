package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/redwatch/redwatch/internal/logger"
	"github.com/redwatch/redwatch/internal/repository/entity"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 5 * time.Second

// Handler serves the read-only view of the entity store.
type Handler struct {
	Repository entity.Repository
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(repository entity.Repository) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	handler := &Handler{Repository: repository}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", handler.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/entities", handler.ListEntities)
		// Entity IDs contain slashes, so the route is a wildcard rather
		// than a single path parameter.
		v1.GET("/entities/*id", handler.GetEntity)
	}

	return router
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListEntities handles GET /api/v1/entities, newest first.
func (h *Handler) ListEntities(c *gin.Context) {
	limit := 0

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}

		limit = parsed
	}

	entities, err := h.Repository.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, entities)
}

// GetEntity handles GET /api/v1/entities/*id.
func (h *Handler) GetEntity(c *gin.Context) {
	entityID := strings.TrimPrefix(c.Param("id"), "/")

	ent, err := h.Repository.Get(c.Request.Context(), entityID)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entity not found"})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})

		return
	}

	c.JSON(http.StatusOK, ent)
}

// Serve runs the API server until the context is canceled, then drains
// in-flight requests.
func Serve(ctx context.Context, address string, repository entity.Repository) error {
	server := &http.Server{
		Addr:              address,
		Handler:           NewRouter(repository),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)

	go func() {
		errs <- server.ListenAndServe()
	}()

	logger.InfoKV(ctx, "Serving entity API", "address", address)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}
