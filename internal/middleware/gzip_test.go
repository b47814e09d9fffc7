package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, s string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func readResponse(t *testing.T, res *http.Response) string {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	}
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(body)
}

// echoHandler отвечает телом запроса с заданным типом содержимого и статусом.
func echoHandler(contentType string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		defer r.Body.Close()

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		if status != http.StatusNoContent {
			_, _ = w.Write([]byte("echo: " + string(body)))
		}
	}
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		contentType    string
		status         int
		acceptEncoding string
		gzipRequest    bool
		body           string
		wantEncoding   string
	}{
		{
			name:           "dashboard json compressed",
			contentType:    "application/json",
			status:         http.StatusOK,
			acceptEncoding: "gzip, deflate",
			body:           `{"cards":[]}`,
			wantEncoding:   "gzip",
		},
		{
			name:           "plain text compressed",
			contentType:    "text/plain; charset=utf-8",
			status:         http.StatusOK,
			acceptEncoding: "gzip",
			body:           "ok",
			wantEncoding:   "gzip",
		},
		{
			name:           "client without gzip",
			contentType:    "application/json",
			status:         http.StatusOK,
			acceptEncoding: "",
			body:           `{"cards":[]}`,
			wantEncoding:   "",
		},
		{
			name:           "binary proxy payload untouched",
			contentType:    "image/png",
			status:         http.StatusOK,
			acceptEncoding: "gzip",
			body:           "png",
			wantEncoding:   "",
		},
		{
			name:           "no content",
			contentType:    "application/json",
			status:         http.StatusNoContent,
			acceptEncoding: "gzip",
			wantEncoding:   "",
		},
		{
			name:           "compressed transaction request",
			contentType:    "application/json",
			status:         http.StatusCreated,
			acceptEncoding: "gzip",
			gzipRequest:    true,
			body:           `{"type":"deposit","amount":"100.00"}`,
			wantEncoding:   "gzip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reqBody io.Reader = strings.NewReader(tt.body)
			if tt.gzipRequest {
				reqBody = gzipBytes(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/transactions/", reqBody)
			req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			if tt.gzipRequest {
				req.Header.Set("Content-Encoding", "gzip")
			}

			w := httptest.NewRecorder()
			GzipMiddleware(echoHandler(tt.contentType, tt.status)).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()

			assert.Equal(t, tt.status, res.StatusCode)
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))
			assert.Equal(t, tt.contentType, res.Header.Get("Content-Type"))

			body := readResponse(t, res)
			if tt.status == http.StatusNoContent {
				assert.Empty(t, body)
				return
			}
			assert.Equal(t, "echo: "+tt.body, body)
		})
	}
}

func TestGzipMiddleware_InvalidRequestBody(t *testing.T) {
	called := false
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/investments/", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}
