package browser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/divtracker/pkg/logger"
	"github.com/okian/divtracker/pkg/metrics"
)

// elementKey is the W3C web element identifier.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// WebDriver speaks the W3C WebDriver protocol, e.g. to chromedriver.
type WebDriver struct {
	endpoint string
	settings
}

// NewWebDriver returns a driver for the WebDriver server at endpoint.
func NewWebDriver(endpoint string, opts ...Option) *WebDriver {
	return &WebDriver{
		endpoint: strings.TrimRight(endpoint, "/"),
		settings: newSettings("webdriver", opts),
	}
}

type wdError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// FetchRenderedText implements Browser.
func (w *WebDriver) FetchRenderedText(ctx context.Context, target string) (text string, err error) {
	sid, err := w.newSession(ctx)
	if err != nil {
		metrics.RecordBrowserSession("webdriver", metrics.OutcomeFailure)
		return "", err
	}
	defer func() {
		cctx, cancel := w.closeContext(ctx)
		defer cancel()
		if cerr := w.call(cctx, http.MethodDelete, "/session/"+sid, nil, nil); cerr != nil {
			w.logger.Warn(ctx, "failed to close browser session", logger.String("session", sid), logger.Error(cerr))
		}
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		metrics.RecordBrowserSession("webdriver", outcome)
	}()

	base := "/session/" + sid
	if err := w.call(ctx, http.MethodPost, base+"/url", map[string]string{"url": target}, nil); err != nil {
		return "", classify(ctx, "navigate", err)
	}

	var el map[string]string
	if err := w.call(ctx, http.MethodPost, base+"/element", map[string]string{"using": "css selector", "value": "body"}, &el); err != nil {
		return "", classify(ctx, "find body", err)
	}
	id := el[elementKey]
	if id == "" {
		return "", fmt.Errorf("%w: element reference missing", ErrProtocol)
	}

	if err := w.call(ctx, http.MethodGet, base+"/element/"+url.PathEscape(id)+"/text", nil, &text); err != nil {
		return "", classify(ctx, "element text", err)
	}
	return text, nil
}

func (w *WebDriver) newSession(ctx context.Context) (string, error) {
	caps := map[string]any{
		"capabilities": map[string]any{
			"alwaysMatch": map[string]any{
				"browserName":             "chrome",
				"acceptInsecureCerts":     true,
				"goog:chromeOptions":      map[string]any{"args": args(w.headless)},
				"pageLoadStrategy":        "normal",
				"unhandledPromptBehavior": "dismiss",
			},
		},
	}
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if err := w.call(ctx, http.MethodPost, "/session", caps, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSession, classify(ctx, "new session", err))
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("%w: empty session id", ErrSession)
	}
	w.logger.Debug(ctx, "browser session started", logger.String("session", resp.SessionID))
	return resp.SessionID, nil
}

// call performs one command. Answers are wrapped in {"value": ...}.
func (w *WebDriver) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := codec.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	var envelope struct {
		Value jsoniter.RawMessage `json:"value"`
	}
	if err := codec.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrProtocol, method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var e wdError
		_ = codec.Unmarshal(envelope.Value, &e)
		return fmt.Errorf("%w: %s %s: http %d: %s: %s", ErrProtocol, method, path, resp.StatusCode, e.Error, e.Message)
	}

	if out == nil || len(envelope.Value) == 0 {
		return nil
	}
	if err := codec.Unmarshal(envelope.Value, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrProtocol, path, err)
	}
	return nil
}
