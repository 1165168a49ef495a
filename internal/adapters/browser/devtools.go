package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/okian/divtracker/pkg/logger"
	"github.com/okian/divtracker/pkg/metrics"
)

const (
	textExpression = "document.body.innerText"
	loadEvent      = "Page.loadEventFired"
	maxMessageSize = 8 << 20
)

// DevTools drives a running Chrome over the DevTools protocol. Each call opens
// a fresh tab and closes it afterwards.
type DevTools struct {
	endpoint string
	dialer   *websocket.Dialer
	settings
}

// NewDevTools returns a driver for the Chrome remote debugging endpoint, e.g.
// http://localhost:9222.
func NewDevTools(endpoint string, opts ...Option) *DevTools {
	return &DevTools{
		endpoint: strings.TrimRight(endpoint, "/"),
		dialer:   &websocket.Dialer{HandshakeTimeout: defaultCloseTimeout},
		settings: newSettings("devtools", opts),
	}
}

type target struct {
	ID                   string `json:"id"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type cdpMessage struct {
	ID     int64               `json:"id,omitempty"`
	Method string              `json:"method,omitempty"`
	Params any                 `json:"params,omitempty"`
	Result jsoniter.RawMessage `json:"result,omitempty"`
	Error  *cdpError           `json:"error,omitempty"`
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FetchRenderedText implements Browser.
func (d *DevTools) FetchRenderedText(ctx context.Context, pageURL string) (text string, err error) {
	t, err := d.openTarget(ctx)
	if err != nil {
		metrics.RecordBrowserSession("devtools", metrics.OutcomeFailure)
		return "", err
	}
	defer func() {
		cctx, cancel := d.closeContext(ctx)
		defer cancel()
		if cerr := d.closeTarget(cctx, t.ID); cerr != nil {
			d.logger.Warn(ctx, "failed to close browser tab", logger.String("target", t.ID), logger.Error(cerr))
		}
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		metrics.RecordBrowserSession("devtools", outcome)
	}()

	conn, _, err := d.dialer.DialContext(ctx, t.WebSocketDebuggerURL, nil)
	if err != nil {
		return "", classify(ctx, "dial devtools", err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	// Unblocks reads and writes once the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s := &cdpSession{conn: conn}
	if _, err := s.call("Page.enable", nil); err != nil {
		return "", classify(ctx, "Page.enable", err)
	}

	raw, err := s.call("Page.navigate", map[string]string{"url": pageURL})
	if err != nil {
		return "", classify(ctx, "Page.navigate", err)
	}
	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := codec.Unmarshal(raw, &nav); err == nil && nav.ErrorText != "" {
		return "", fmt.Errorf("%w: navigate %s: %s", ErrProtocol, pageURL, nav.ErrorText)
	}

	if err := s.wait(loadEvent); err != nil {
		return "", classify(ctx, "wait for load", err)
	}

	raw, err = s.call("Runtime.evaluate", map[string]any{
		"expression":    textExpression,
		"returnByValue": true,
	})
	if err != nil {
		return "", classify(ctx, "Runtime.evaluate", err)
	}
	var eval struct {
		Result struct {
			Type  string `json:"type"`
			Value any    `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}
	if err := codec.Unmarshal(raw, &eval); err != nil {
		return "", fmt.Errorf("%w: evaluate result: %w", ErrProtocol, err)
	}
	if eval.ExceptionDetails != nil {
		return "", fmt.Errorf("%w: evaluate: %s", ErrProtocol, eval.ExceptionDetails.Text)
	}
	text, _ = eval.Result.Value.(string)
	return text, nil
}

func (d *DevTools) openTarget(ctx context.Context) (target, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, d.endpoint+"/json/new?"+url.QueryEscape("about:blank"), nil)
	if err != nil {
		return target{}, err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return target{}, fmt.Errorf("%w: %w", ErrSession, classify(ctx, "open tab", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return target{}, fmt.Errorf("%w: %w", ErrSession, err)
	}
	if resp.StatusCode != http.StatusOK {
		return target{}, fmt.Errorf("%w: open tab: http %d: %s", ErrSession, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var t target
	if err := codec.Unmarshal(raw, &t); err != nil {
		return target{}, fmt.Errorf("%w: open tab: %w", ErrSession, err)
	}
	if t.ID == "" || t.WebSocketDebuggerURL == "" {
		return target{}, fmt.Errorf("%w: open tab: incomplete target", ErrSession)
	}
	d.logger.Debug(ctx, "browser tab opened", logger.String("target", t.ID))
	return t, nil
}

func (d *DevTools) closeTarget(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/json/close/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("close tab: http %d", resp.StatusCode)
	}
	return nil
}

// cdpSession is a strictly sequential command channel on one tab.
type cdpSession struct {
	conn   *websocket.Conn
	nextID int64
	events map[string]bool
}

func (s *cdpSession) call(method string, params any) (jsoniter.RawMessage, error) {
	s.nextID++
	id := s.nextID
	raw, err := codec.Marshal(cdpMessage{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return nil, err
	}

	for {
		msg, err := s.read()
		if err != nil {
			return nil, err
		}
		if msg.ID != id {
			continue
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("%w: %s: %d %s", ErrProtocol, method, msg.Error.Code, msg.Error.Message)
		}
		return msg.Result, nil
	}
}

// wait blocks until the named event arrives or has already been seen.
func (s *cdpSession) wait(event string) error {
	for !s.events[event] {
		if _, err := s.read(); err != nil {
			return err
		}
	}
	return nil
}

func (s *cdpSession) read() (cdpMessage, error) {
	_, raw, err := s.conn.ReadMessage()
	if err != nil {
		return cdpMessage{}, err
	}
	var msg cdpMessage
	if err := codec.Unmarshal(raw, &msg); err != nil {
		return cdpMessage{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if msg.ID == 0 && msg.Method != "" {
		if s.events == nil {
			s.events = map[string]bool{}
		}
		s.events[msg.Method] = true
	}
	return msg, nil
}
