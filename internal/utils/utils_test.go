package utils

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"bare", `{"type":"actor"}`, `{"type":"actor"}`, true},
		{"prose around", `Here you go: {"type":"actor","detail":"Tom Hanks"} hope it helps`, `{"type":"actor","detail":"Tom Hanks"}`, true},
		{"nested", `x {"a":{"b":1}} y {"c":2}`, `{"a":{"b":1}}`, true},
		{"brace in string", `{"detail":"uses } and { chars"}`, `{"detail":"uses } and { chars"}`, true},
		{"escaped quote", `{"detail":"say \"}\" now"}`, `{"detail":"say \"}\" now"}`, true},
		{"unbalanced then balanced", `{ oops {"type":"director"}`, `{"type":"director"}`, true},
		{"none", `I could not determine a theme.`, "", false},
		{"never closed", `{"type":"actor"`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, ok := ExtractJSONObject(tt.text)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, tt.text[start:end])
			}
		})
	}
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "toy story", NormalizeQuery("  toy   story \n"))
	assert.Equal(t, "", NormalizeQuery("   "))
}

func TestTTLCache(t *testing.T) {
	c := NewTTLCache[[]float32](2, time.Hour)
	c.Set("a", []float32{1})
	c.Set("b", []float32{2})
	c.Set("c", []float32{3})

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	v, ok := c.Get("c")
	require.True(t, ok)
	assert.Equal(t, []float32{3}, v)
	assert.Equal(t, 2, c.Len())

	expired := NewTTLCache[int](4, -time.Second)
	expired.Set("x", 1)
	_, ok = expired.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, expired.Len())
}

func TestResultCache(t *testing.T) {
	c := NewResultCache(time.Minute)
	c.Set("k", 42)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))

		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		_ = json.NewEncoder(gz).Encode(map[string]string{"echo": in["msg"]})
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	client := NewHTTPClient(time.Second)
	err := client.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer secret"},
		map[string]string{"msg": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)
}

func TestPostJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewHTTPClient(time.Second).PostJSON(context.Background(), srv.URL, nil, struct{}{}, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Contains(t, se.Body, "model not found")
}

func TestResponseHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		name    string
		write   func(c *gin.Context)
		status  int
		message string
		source  string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "参数错误") }, http.StatusBadRequest, "参数错误", ""},
		{"internal default message", func(c *gin.Context) { InternalServerError(c, "") }, http.StatusInternalServerError, "服务器内部错误", ""},
		{"bad gateway", func(c *gin.Context) { BadGateway(c, "database", "数据库不可用") }, http.StatusBadGateway, "数据库不可用", "database"},
		{"service unavailable", func(c *gin.Context) { ServiceUnavailable(c, "embedding", "向量模型不可用") }, http.StatusServiceUnavailable, "向量模型不可用", "embedding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.write(c)

			assert.Equal(t, tt.status, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.source, resp.Source)
		})
	}
}
