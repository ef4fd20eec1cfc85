package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/repository/entity"
)

func newTestRouter(t *testing.T) (*gin.Engine, *entity.MemoryRepository) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	repository := entity.NewMemoryRepository(watch.Policy{StaleGuard: true}, nil)

	return NewRouter(repository), repository
}

func seed(t *testing.T, repository *entity.MemoryRepository, id string, at time.Time) {
	t.Helper()

	_, err := repository.Apply(context.Background(), watch.CanonicalRecord{
		EntityID:  id,
		Kind:      watch.RecordKindPerson,
		Fields:    watch.Fields{"name": "SMITH, John"},
		FetchedAt: at,
	})
	require.NoError(t, err)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestListEntities(t *testing.T) {
	t.Parallel()

	router, repository := newTestRouter(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seed(t, repository, "2024/1", base)
	seed(t, repository, "2024/2", base.Add(time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var entities []watch.StoredEntity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entities))
	require.Len(t, entities, 2)
	require.Equal(t, "2024/2", entities[0].EntityID)
}

func TestListEntities_Limit(t *testing.T) {
	t.Parallel()

	router, repository := newTestRouter(t)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seed(t, repository, "2024/1", base)
	seed(t, repository, "2024/2", base.Add(time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities?limit=1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var entities []watch.StoredEntity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entities))
	require.Len(t, entities, 1)
}

func TestListEntities_BadLimit(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities?limit=nope", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetEntity(t *testing.T) {
	t.Parallel()

	router, repository := newTestRouter(t)
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	seed(t, repository, "2024/123", at)

	// The entity ID itself contains a slash.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/2024/123", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var ent watch.StoredEntity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ent))
	require.Equal(t, "2024/123", ent.EntityID)
	require.True(t, ent.Active)
}

func TestGetEntity_NotFound(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/2024/999", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "entity not found", body["error"])
}
