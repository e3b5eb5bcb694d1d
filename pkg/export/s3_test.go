package export

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type s3Recorder struct {
	mu          sync.Mutex
	method      string
	path        string
	body        string
	contentType string
}

func (r *s3Recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.method = req.Method
	r.path = req.URL.Path
	r.body = string(body)
	r.contentType = req.Header.Get("Content-Type")
	r.mu.Unlock()
	w.Header().Set("ETag", `"abc"`)
	w.WriteHeader(http.StatusOK)
}

func TestS3Uploader_PathStyleEndpoint(t *testing.T) {
	rec := &s3Recorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	up, err := NewS3Uploader(context.Background(), S3Config{
		Bucket:   "exports",
		Region:   "us-east-1",
		Endpoint: srv.URL,
		Prefix:   "/team/impact/",
	})
	require.NoError(t, err)
	assert.Equal(t, "team/impact/testplan.pdf", up.Key("testplan.pdf"))

	url, err := up.Upload(context.Background(), "testplan.pdf", []byte("%PDF-1.3 body"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/team/impact/testplan.pdf", url)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, http.MethodPut, rec.method)
	assert.Equal(t, "/exports/team/impact/testplan.pdf", rec.path)
	assert.True(t, strings.Contains(rec.body, "%PDF-1.3 body"), "body = %q", rec.body)
	assert.Equal(t, "application/pdf", rec.contentType)
}

func TestS3Uploader_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer srv.Close()

	up, err := NewS3Uploader(context.Background(), S3Config{Bucket: "b", Region: "us-east-1", Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = up.Upload(context.Background(), "x.png", []byte("png"), "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 put object")
}

func TestS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType(FormatPDF))
	assert.Equal(t, "image/png", contentType(FormatPNG))
	assert.Equal(t, "application/octet-stream", contentType(Format("zip")))
}
