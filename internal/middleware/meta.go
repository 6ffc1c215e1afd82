package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const responseMetaKey = "response_meta"

type responseMeta struct {
	start  time.Time
	values map[string]interface{}
}

// WithResponseMeta attaches a metadata collector to each request. Handlers fill it
// through SetCacheHit and SetMeta; ExtractMeta renders it into the envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit records whether a statistics view was served from Redis.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// SetMeta stores a metadata value for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta := lookupMeta(c)
	if meta == nil {
		meta = &responseMeta{start: time.Now(), values: map[string]interface{}{}}
		c.Set(responseMetaKey, meta)
	}
	meta.values[key] = value
}

// ExtractMeta returns a copy of the collected metadata with the elapsed processing
// time, or nil when nothing was collected.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := lookupMeta(c)
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta.values)+1)
	for k, v := range meta.values {
		out[k] = v
	}
	out["processing_time_ms"] = time.Since(meta.start).Milliseconds()
	return out
}

func lookupMeta(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, _ := raw.(*responseMeta)
	return meta
}
