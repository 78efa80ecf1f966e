// Package upload forwards receipt images to the extraction webhook and
// classifies everything that can go wrong on the way into stable error
// codes.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MaxFileSize is the largest accepted receipt image.
	MaxFileSize = 10 << 20

	// WebhookTimeout bounds the whole webhook round-trip. Extraction is
	// slow, so this is deliberately generous; running into it is
	// reported as a timeout, not a generic network failure.
	WebhookTimeout = 5 * time.Minute

	maxErrorBody    = 4 << 10
	maxResponseBody = 1 << 20
)

// allowedTypes lists the accepted receipt image MIME types.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// IDGenerator produces upload identifiers.
type IDGenerator interface {
	NewID() string
}

type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.NewString() }

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type systemTimeSource struct{}

func (systemTimeSource) Now() time.Time { return time.Now() }

// Upload describes one incoming receipt image.
type Upload struct {
	Reader      io.Reader
	FileName    string
	Size        int64
	ContentType string
}

// Result is the outcome of a successfully forwarded upload. Payload
// holds the webhook's JSON response verbatim when it sent one; a
// webhook that answers 2xx with a non-JSON body is still a success.
type Result struct {
	UploadID string          `json:"uploadId"`
	Message  string          `json:"message,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Client forwards uploads to the extraction webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
	logger     *zap.Logger
	clock      TimeSource
	ids        IDGenerator
	timeout    time.Duration
	maxSize    int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger attaches a zap logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout overrides the webhook round-trip deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithIDGenerator replaces the upload ID source, for tests.
func WithIDGenerator(g IDGenerator) ClientOption {
	return func(c *Client) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithTimeSource replaces the wall clock, for tests.
func WithTimeSource(clock TimeSource) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewClient validates the webhook URL and builds a client. A missing or
// unparseable URL is a configuration error; the process should refuse
// to accept uploads rather than fail them one by one.
func NewClient(webhookURL string, opts ...ClientOption) (*Client, error) {
	if webhookURL == "" {
		return nil, NewError(CodeConfiguration, "webhook URL is not configured", "")
	}
	u, err := url.Parse(webhookURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, NewError(CodeConfiguration, "webhook URL is invalid", webhookURL)
	}

	c := &Client{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
		logger:     zap.NewNop(),
		clock:      systemTimeSource{},
		ids:        uuidGenerator{},
		timeout:    WebhookTimeout,
		maxSize:    MaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Validate checks the upload metadata without touching the reader.
func (c *Client) Validate(u Upload) error {
	if u.Reader == nil || u.FileName == "" {
		return NewError(CodeNoFile, "no file provided", "")
	}
	if !allowedTypes[u.ContentType] {
		return NewError(CodeInvalidFileType,
			"only JPEG and PNG images are accepted", u.ContentType)
	}
	if u.Size <= 0 {
		return NewError(CodeNoFile, "file is empty", "")
	}
	if u.Size > c.maxSize {
		return NewError(CodeFileTooLarge,
			fmt.Sprintf("file exceeds the %d MB limit", c.maxSize>>20),
			strconv.FormatInt(u.Size, 10))
	}
	return nil
}

// Process validates the upload and forwards it to the webhook. The
// returned error, when non-nil, is always an *Error carrying one of the
// stable codes.
func (c *Client) Process(ctx context.Context, u Upload) (*Result, error) {
	if err := c.Validate(u); err != nil {
		return nil, err
	}

	uploadID := c.ids.NewID()
	body, contentType, err := c.encodeForm(uploadID, u)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, body)
	if err != nil {
		return nil, NewError(CodeInternal, "building webhook request failed", err.Error())
	}
	req.Header.Set("Content-Type", contentType)

	started := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		werr := classifyTransport(err)
		c.logger.Warn("webhook call failed",
			zap.String("upload_id", uploadID),
			zap.String("code", string(werr.Code)),
			zap.Duration("elapsed", c.clock.Now().Sub(started)),
			zap.Error(err),
		)
		return nil, werr
	}
	defer resp.Body.Close()

	return c.decodeResponse(uploadID, resp)
}

// encodeForm builds the multipart payload the webhook expects: the
// metadata fields first, then the file part. The reader is drained with
// a hard cap in case the declared size was wrong.
func (c *Client) encodeForm(uploadID string, u Upload) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"uploadId":         uploadID,
		"timestamp":        c.clock.Now().UTC().Format(time.RFC3339),
		"originalFileName": u.FileName,
		"fileSize":         strconv.FormatInt(u.Size, 10),
		"fileType":         u.ContentType,
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", NewError(CodeInternal, "encoding upload form failed", err.Error())
		}
	}

	part, err := w.CreateFormFile("file", u.FileName)
	if err != nil {
		return nil, "", NewError(CodeInternal, "encoding upload form failed", err.Error())
	}
	n, err := io.Copy(part, io.LimitReader(u.Reader, c.maxSize+1))
	if err != nil {
		return nil, "", NewError(CodeInternal, "reading upload failed", err.Error())
	}
	if n > c.maxSize {
		return nil, "", NewError(CodeFileTooLarge,
			fmt.Sprintf("file exceeds the %d MB limit", c.maxSize>>20), "")
	}
	if err := w.Close(); err != nil {
		return nil, "", NewError(CodeInternal, "encoding upload form failed", err.Error())
	}

	return &buf, w.FormDataContentType(), nil
}

// decodeResponse interprets the webhook reply. Any 2xx counts as
// acceptance even when the body is not JSON; a JSON body that
// explicitly reports failure is surfaced as an invalid response.
func (c *Client) decodeResponse(uploadID string, resp *http.Response) (*Result, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, NewError(CodeWebhookError,
			"webhook rejected the upload",
			fmt.Sprintf("status %d: %s", resp.StatusCode, bytes.TrimSpace(detail)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, NewError(CodeWebhookNetwork, "reading webhook response failed", err.Error())
	}

	var probe struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &probe) != nil {
		// Not JSON. The webhook accepted the file; that is all the
		// dashboard needs to know.
		return &Result{UploadID: uploadID, Message: "upload accepted"}, nil
	}

	if probe.Success != nil && !*probe.Success {
		return nil, NewError(CodeWebhookInvalidResponse,
			"webhook reported a failed extraction", probe.Message)
	}

	return &Result{
		UploadID: uploadID,
		Message:  probe.Message,
		Payload:  json.RawMessage(body),
	}, nil
}

// classifyTransport distinguishes the ways a webhook call can fail on
// the wire. Timeouts get their own code so callers can tell a slow
// extraction from an unreachable one.
func classifyTransport(err error) *Error {
	var nerr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(CodeWebhookTimeout, "webhook did not answer in time", err.Error())
	case errors.As(err, &nerr) && nerr.Timeout():
		return NewError(CodeWebhookTimeout, "webhook did not answer in time", err.Error())
	case errors.Is(err, syscall.ECONNREFUSED):
		return NewError(CodeWebhookConnection, "webhook is unreachable", err.Error())
	default:
		return NewError(CodeWebhookNetwork, "webhook call failed", err.Error())
	}
}
