package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID struct{ id string }

func (f fixedID) NewID() string { return f.id }

func jpegUpload(content string) Upload {
	return Upload{
		Reader:      strings.NewReader(content),
		FileName:    "fis.jpg",
		Size:        int64(len(content)),
		ContentType: "image/jpeg",
	}
}

func TestNewClient_Configuration(t *testing.T) {
	_, err := NewClient("")
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, CodeConfiguration, uerr.Code)

	_, err = NewClient("not a url")
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, CodeConfiguration, uerr.Code)

	_, err = NewClient("https://hooks.example.com/extract")
	require.NoError(t, err)
}

func TestClient_Validate(t *testing.T) {
	c, err := NewClient("https://hooks.example.com/extract")
	require.NoError(t, err)

	tests := []struct {
		name     string
		upload   Upload
		wantCode Code
	}{
		{
			name:     "missing reader",
			upload:   Upload{FileName: "fis.jpg", Size: 10, ContentType: "image/jpeg"},
			wantCode: CodeNoFile,
		},
		{
			name:     "missing file name",
			upload:   Upload{Reader: strings.NewReader("x"), Size: 1, ContentType: "image/jpeg"},
			wantCode: CodeNoFile,
		},
		{
			name: "unsupported type",
			upload: Upload{
				Reader: strings.NewReader("x"), FileName: "fis.pdf",
				Size: 1, ContentType: "application/pdf",
			},
			wantCode: CodeInvalidFileType,
		},
		{
			name: "empty file",
			upload: Upload{
				Reader: strings.NewReader(""), FileName: "fis.png",
				Size: 0, ContentType: "image/png",
			},
			wantCode: CodeNoFile,
		},
		{
			name: "oversized file",
			upload: Upload{
				Reader: strings.NewReader("x"), FileName: "fis.jpg",
				Size: MaxFileSize + 1, ContentType: "image/jpeg",
			},
			wantCode: CodeFileTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Validate(tt.upload)
			var uerr *Error
			require.ErrorAs(t, err, &uerr)
			assert.Equal(t, tt.wantCode, uerr.Code)
		})
	}

	assert.NoError(t, c.Validate(jpegUpload("image bytes")))
}

func TestClient_Process_ForwardsMultipartFields(t *testing.T) {
	var gotFields map[string]string
	var gotFile string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{}
		for name := range r.MultipartForm.Value {
			gotFields[name] = r.FormValue(name)
		}
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		gotFile = header.Filename

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "message": "extraction queued"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithIDGenerator(fixedID{id: "upload-123"}))
	require.NoError(t, err)

	res, err := c.Process(context.Background(), jpegUpload("image bytes"))
	require.NoError(t, err)

	assert.Equal(t, "upload-123", res.UploadID)
	assert.Equal(t, "extraction queued", res.Message)
	assert.NotEmpty(t, res.Payload)

	assert.Equal(t, "upload-123", gotFields["uploadId"])
	assert.Equal(t, "fis.jpg", gotFields["originalFileName"])
	assert.Equal(t, "11", gotFields["fileSize"])
	assert.Equal(t, "image/jpeg", gotFields["fileType"])
	assert.NotEmpty(t, gotFields["timestamp"])
	assert.Equal(t, "fis.jpg", gotFile)
}

func TestClient_Process_NonJSONSuccessIsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Accepted"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	res, err := c.Process(context.Background(), jpegUpload("image bytes"))
	require.NoError(t, err)
	assert.Equal(t, "upload accepted", res.Message)
	assert.Empty(t, res.Payload)
}

func TestClient_Process_ExplicitFailureInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "unreadable image"}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Process(context.Background(), jpegUpload("image bytes"))
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, CodeWebhookInvalidResponse, uerr.Code)
	assert.Contains(t, uerr.Details, "unreadable image")
}

func TestClient_Process_WebhookRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal failure", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	_, err = c.Process(context.Background(), jpegUpload("image bytes"))
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, CodeWebhookError, uerr.Code)
	assert.Contains(t, uerr.Details, "status 500")
	assert.Equal(t, http.StatusBadGateway, uerr.HTTPStatus())
}

func TestClient_Process_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(srv.URL, WithTimeout(30*time.Millisecond))
	require.NoError(t, err)

	_, err = c.Process(context.Background(), jpegUpload("image bytes"))
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, CodeWebhookTimeout, uerr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, uerr.HTTPStatus())
}

func TestClient_Process_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(url)
	require.NoError(t, err)

	_, err = c.Process(context.Background(), jpegUpload("image bytes"))
	var uerr *Error
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, CodeWebhookConnection, uerr.Code)
}
