package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-stats-api/internal/models"
	appErrors "github.com/noah-isme/exam-stats-api/pkg/errors"
	"github.com/noah-isme/exam-stats-api/pkg/middleware/requestid"
)

func newRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.Middleware())
	router.GET("/", handler)
	return router
}

func serve(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJSONEnvelope(t *testing.T) {
	router := newRouter(func(c *gin.Context) {
		JSON(c, http.StatusOK, []string{"d1"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"cache_hit": true})
	})
	rec := serve(router, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"data":["d1"],"pagination":{"page":1,"page_size":20,"total_count":1},"meta":{"cache_hit":true}}`, rec.Body.String())
}

func TestErrorEnvelope(t *testing.T) {
	t.Run("client error omits request id", func(t *testing.T) {
		router := newRouter(func(c *gin.Context) { Error(c, appErrors.Clone(appErrors.ErrNotFound, "exam not found")) })
		rec := serve(router, "req-1")

		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"exam not found","status":404}}`, rec.Body.String())
	})

	t.Run("untyped error becomes internal with request id", func(t *testing.T) {
		router := newRouter(func(c *gin.Context) { Error(c, errors.New("pq: connection reset")) })
		rec := serve(router, "req-2")

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var env Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, appErrors.ErrInternal.Code, env.Error.Code)
		assert.Equal(t, "req-2", env.Meta["request_id"])
	})
}

func TestAttachment(t *testing.T) {
	router := newRouter(func(c *gin.Context) { Attachment(c, "school-ranking.csv", "text/csv; charset=utf-8", []byte("a,b\n")) })
	rec := serve(router, "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="school-ranking.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "a,b\n", rec.Body.String())
}
