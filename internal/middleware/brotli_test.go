package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
)

func TestBrotli_CompressesLargeBodies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	body := strings.Repeat(`{"question":"What is the capital of France?"}`, 100)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/paper", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/paper", nil)
	req.Header.Set("Accept-Encoding", "gzip, br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Content-Encoding = %q, want br", w.Header().Get("Content-Encoding"))
	}
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(plain) != body {
		t.Error("decompressed body differs")
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "ok" {
		t.Errorf("small body encoded as %q: %q", w.Header().Get("Content-Encoding"), w.Body.String())
	}
}

func TestBrotli_FlushKeepsBodyConsistent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	large := strings.Repeat(`{"section":"mcqs","answered":3}`, 100)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/plain", func(c *gin.Context) {
		c.Status(http.StatusOK)
		c.Writer.WriteString("head;")
		c.Writer.Flush()
		c.Writer.WriteString(large)
	})
	r.GET("/compressed", func(c *gin.Context) {
		c.Status(http.StatusOK)
		c.Writer.WriteString(large)
		c.Writer.Flush()
		c.Writer.WriteString(";tail")
	})

	req := httptest.NewRequest(http.MethodGet, "/plain", nil)
	req.Header.Set("Accept-Encoding", "br")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Errorf("flushed small body encoded as %q", enc)
	}
	if w.Body.String() != "head;"+large {
		t.Error("plain body differs after flush")
	}

	req = httptest.NewRequest(http.MethodGet, "/compressed", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Content-Encoding = %q, want br", w.Header().Get("Content-Encoding"))
	}
	plain, err := io.ReadAll(brotli.NewReader(w.Body))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(plain) != large+";tail" {
		t.Error("compressed body differs after flush")
	}
}
