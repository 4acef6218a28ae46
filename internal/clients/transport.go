package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chamada/internal/auth"
)

const requestIDHeader = "X-Request-ID"

type transport struct {
	baseURL        string
	http           *http.Client
	timeout        time.Duration
	uploadTimeout  time.Duration
	tokens         auth.TokenStore
	onUnauthorized func(context.Context)
	metrics        *Metrics
	logger         *zap.Logger
	now            func() time.Time
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   interface{}
	form   *form
	// anonymous requests carry no bearer token
	anonymous bool
}

type form struct {
	fields map[string]string
	files  []UploadFile
}

type response struct {
	status int
	body   []byte
}

// call performs req and reads the whole body.
func (t *transport) call(ctx context.Context, req request) (response, error) {
	resp, cancel, err := t.send(ctx, req)
	if err != nil {
		return response{}, err
	}
	defer cancel()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, fmt.Errorf("%s: read body: %w", req.op, err)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// stream performs req and hands the open body to the caller. The returned
// reader releases the request timeout when closed.
func (t *transport) stream(ctx context.Context, req request) (*http.Response, error) {
	resp, cancel, err := t.send(ctx, req)
	if err != nil {
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (t *transport) send(ctx context.Context, req request) (*http.Response, context.CancelFunc, error) {
	timeout := t.timeout
	if req.form != nil {
		timeout = t.uploadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	httpReq, err := t.newRequest(ctx, req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if !req.anonymous {
		if err := t.authorize(ctx, httpReq); err != nil {
			cancel()
			return nil, nil, err
		}
	}

	requestID := uuid.NewString()
	httpReq.Header.Set(requestIDHeader, requestID)
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := t.http.Do(httpReq)
	elapsed := time.Since(start)
	if err != nil {
		cancel()
		t.metrics.observe(req.op, 0, elapsed)
		t.logger.Debug("request failed", zap.String("op", req.op), zap.String("request_id", requestID), zap.Error(err))
		return nil, nil, fmt.Errorf("%s: %w", req.op, err)
	}
	t.metrics.observe(req.op, resp.StatusCode, elapsed)
	t.logger.Debug("request",
		zap.String("op", req.op),
		zap.String("method", req.method),
		zap.String("path", req.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", elapsed),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, cancel, nil
	}
	defer cancel()
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Op: req.op, Status: resp.StatusCode, Code: statusCode(resp.StatusCode), Message: errorMessage(body, resp.StatusCode)}
	if resp.StatusCode == http.StatusUnauthorized && !req.anonymous {
		t.unauthorized(ctx)
	}
	return nil, nil, apiErr
}

func (t *transport) newRequest(ctx context.Context, req request) (*http.Request, error) {
	target := strings.TrimRight(t.baseURL, "/") + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.form != nil:
		buf, ct, err := encodeForm(req.form)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", req.op, err)
		}
		body, contentType = buf, ct
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode body: %w", req.op, err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.op, err)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return httpReq, nil
}

func (t *transport) authorize(ctx context.Context, httpReq *http.Request) error {
	if t.tokens == nil {
		return nil
	}
	token, err := t.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if token == "" {
		return nil
	}
	if auth.Expired(token, t.now()) {
		t.unauthorized(ctx)
		return fmt.Errorf("%w: %w", ErrSessionExpired, ErrUnauthorized)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (t *transport) unauthorized(ctx context.Context) {
	if t.tokens != nil {
		if err := t.tokens.Clear(ctx); err != nil {
			t.logger.Warn("clear session failed", zap.Error(err))
		}
	}
	if t.onUnauthorized != nil {
		t.onUnauthorized(ctx)
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(f *form) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for name, value := range f.fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	for _, file := range f.files {
		data, err := file.read()
		if err != nil {
			return nil, "", fmt.Errorf("read %s: %w", file.Name, err)
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(file.Name)))
		header.Set("Content-Type", mimetype.Detect(data).String())
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf, writer.FormDataContentType(), nil
}

func errorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := firstNonEmpty(payload.Message, payload.Error); msg != "" {
			return msg
		}
	}
	return http.StatusText(status)
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	}
	if status >= 500 {
		return "server_error"
	}
	return "request_failed"
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
