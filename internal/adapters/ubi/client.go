// Package ubi talks to the Ubisoft services API: the session endpoint, the
// profile directory and the game 1 statscard.
package ubi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
	"github.com/okian/divtracker/pkg/metrics"
)

const (
	// DefaultBaseURL is the public services host.
	DefaultBaseURL = "https://public-ubiservices.ubi.com"
	// DefaultAppID identifies the web client the header set imitates.
	DefaultAppID = "314d4fef-e568-454a-ae06-43e3bece12a6"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	component      = "ubi"
)

const (
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36"
	contentType    = "application/json; charset=utf-8"
	accept         = "application/json, text/plain, */*"
	acceptEncoding = "gzip, deflate"
	locale         = "en-US"
	referer        = "https://connect.ubisoft.com"
	platformType   = "uplay"
)

var codec = jsoniter.Config{
	EscapeHTML:             true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// Client is the low level HTTP client shared by the authenticator, the
// directory and the statscard source.
type Client struct {
	http    *http.Client
	baseURL string
	host    string
	appID   string
	timeout time.Duration
	logger  logger.Logger
}

// New constructs a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: DefaultBaseURL,
		appID:   DefaultAppID,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(strings.TrimSpace(c.baseURL), "/")
	u, err := url.Parse(c.baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrBaseURL, c.baseURL)
	}
	c.host = u.Host
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logger.Named("ubi")
	}
	return c, nil
}

// errorEnvelope is the error shape every endpoint shares.
type errorEnvelope struct {
	ErrorCode any    `json:"errorCode"`
	Message   string `json:"message"`
}

// do sends one request and decodes the JSON answer into out. An error code in
// the body is reported as *APIError whatever the HTTP status.
func (c *Client) do(ctx context.Context, method, endpoint string, decorate func(*http.Request), out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)
	if decorate != nil {
		decorate(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordErrorByComponent(component, "transport")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s: %w", model.ErrTimeout, method, endpoint, err)
		}
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		metrics.RecordErrorByComponent(component, "encoding")
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		metrics.RecordErrorByComponent(component, "read")
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: read %s: %w", model.ErrTimeout, endpoint, err)
		}
		return fmt.Errorf("read %s: %w", endpoint, err)
	}

	var env errorEnvelope
	envErr := codec.Unmarshal(raw, &env)
	if code := scalar(env.ErrorCode); code != "" || resp.StatusCode >= http.StatusBadRequest {
		metrics.RecordErrorByComponent(component, "api")
		msg := env.Message
		if envErr != nil && msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return &APIError{Status: resp.StatusCode, Code: code, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := codec.Unmarshal(raw, out); err != nil {
		metrics.RecordErrorByComponent(component, "decode")
		return fmt.Errorf("%w: %s: %w", ErrDecode, endpoint, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	h := req.Header
	h.Set("Content-Type", contentType)
	h.Set("User-Agent", userAgent)
	h.Set("Accept", accept)
	h.Set("Cache-Control", "no-cache")
	h.Set("Accept-Language", locale)
	h.Set("Accept-Encoding", acceptEncoding)
	h.Set("Referer", referer)
	h.Set("Origin", referer)
	h.Set("Ubi-AppId", c.appID)
	h.Set("Ubi-RequestedPlatformType", platformType)
	h.Set("Ubi-LocaleCode", locale)
	h.Set("X-Requested-With", "XMLHttpRequest")
	req.Host = c.host
}

// withTicket authorizes a request with the session ticket.
func withTicket(t model.Ticket) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Ubi_v1 t="+t.Ticket)
		req.Header.Set("Ubi-SessionId", t.SessionID)
	}
}

// decodeBody undoes the content encoding. The transport leaves it alone
// because Accept-Encoding is set explicitly.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	body := io.LimitReader(resp.Body, maxBodyBytes)
	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
		return io.NopCloser(body), nil
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, nil
	case "deflate":
		// Servers disagree on whether deflate means zlib framed or raw.
		br := bufio.NewReader(body)
		head, err := br.Peek(2)
		if err == nil && isZlibHeader(head) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return nil, fmt.Errorf("zlib: %w", err)
			}
			return zr, nil
		}
		return flate.NewReader(br), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrEncoding, enc)
	}
}

func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// scalar renders a loosely typed JSON value as text.
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
