package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestExtractMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/stats/districts", nil)
	assert.Nil(t, ExtractMeta(c))

	SetCacheHit(c, true)
	SetMeta(c, "source", "redis")
	meta := ExtractMeta(c)
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "redis", meta["source"])
	assert.Contains(t, meta, "processing_time_ms")

	meta["cache_hit"] = false
	assert.Equal(t, true, ExtractMeta(c)["cache_hit"])
}

func TestWithResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/x", func(c *gin.Context) {
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotNil(t, meta)
	assert.NotContains(t, meta, "cache_hit")
}

func TestExtractMetaNilContext(t *testing.T) {
	assert.Nil(t, ExtractMeta(nil))
}
