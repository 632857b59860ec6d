// Package api is the HTTP client for the DJ Rag backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSessionTitle = "New Chat"
	DefaultIngestTitle  = "Pasted Text"

	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 512
)

// SupportedExtensions lists the document types the backend can ingest.
var SupportedExtensions = []string{".pdf", ".docx", ".xlsx", ".csv", ".pptx", ".txt"}

// IsSupportedFile reports whether path has an extension the backend accepts.
func IsSupportedFile(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend URL is empty")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", baseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q: missing host", baseURL)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		tracer:     otel.Tracer("djrag/api"),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// SessionsPath and MessagesPath double as cache keys.
func SessionsPath() string {
	return "/sessions"
}

func MessagesPath(sessionID string) string {
	return sessionPath(sessionID) + "/messages"
}

func sessionPath(sessionID string) string {
	return "/sessions/" + url.PathEscape(sessionID)
}

func (c *Client) CreateSession(ctx context.Context, title string) (*Session, error) {
	if title == "" {
		title = DefaultSessionTitle
	}

	var session Session
	err := c.doJSON(ctx, "failed to create session", http.MethodPost, SessionsPath(), map[string]string{"title": title}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := c.doJSON(ctx, "failed to fetch sessions", http.MethodGet, SessionsPath(), nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) DeleteAllSessions(ctx context.Context) error {
	return c.doJSON(ctx, "failed to delete all sessions", http.MethodDelete, SessionsPath(), nil, nil)
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.doJSON(ctx, "failed to delete session", http.MethodDelete, sessionPath(sessionID), nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var messages []Message
	if err := c.doJSON(ctx, "failed to fetch messages", http.MethodGet, MessagesPath(sessionID), nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage asks a question in a session and returns the answer with its
// citations.
func (c *Client) SendMessage(ctx context.Context, sessionID, question string) (*ChatResponse, error) {
	var resp ChatResponse
	err := c.doJSON(ctx, "failed to send message", http.MethodPost, sessionPath(sessionID)+"/chat", map[string]string{"question": question}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) IngestText(ctx context.Context, sessionID, text, title string) (IngestResult, error) {
	if title == "" {
		title = DefaultIngestTitle
	}

	var result IngestResult
	body := map[string]string{"text": text, "title": title}
	if err := c.doJSON(ctx, "failed to ingest text", http.MethodPost, sessionPath(sessionID)+"/ingest_text", body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// UploadFile streams a document to the backend as multipart field "file".
func (c *Client) UploadFile(ctx context.Context, sessionID, path string) (IngestResult, error) {
	if !IsSupportedFile(path) {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFileType)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		defer f.Close()
		err := writeFilePart(mw, filepath.Base(path), f)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var result IngestResult
	err = c.do(ctx, "failed to upload file", http.MethodPost, sessionPath(sessionID)+"/upload", pr, mw.FormDataContentType(), &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func writeFilePart(mw *multipart.Writer, name string, r io.Reader) error {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": name}))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

// Health returns nil when the backend answers /health with a 2xx status.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, "health check failed", http.MethodGet, "/health", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, op, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) (err error) {
	requestID := uuid.New().String()

	ctx, span := c.tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.String("djrag.request_id", requestID),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Op:         op,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
