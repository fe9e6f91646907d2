package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/browsermob/agent/pkg/log"
	"nhooyr.io/websocket"
)

const (
	DefaultServer = "localhost"
	DefaultPort   = 9222

	defaultCallTimeout = 20 * time.Second
	readLimit          = 16 << 20
)

var ErrNotStarted = errors.New("session not started")

// A session driving a Chrome DevTools Protocol endpoint.
// Each session opens its own page target so that concurrent
// sessions against the same browser do not share state.
type CDPSession struct {
	opts   Options
	client *http.Client

	mu        sync.Mutex
	conn      *websocket.Conn
	targetID  string
	idCounter int64
}

type targetResponse struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type envelope struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *responseError  `json:"error,omitempty"`
}

type responseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewCDPSession(opts Options) (Session, error) {
	if opts.Server == "" {
		opts.Server = DefaultServer
	}
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}
	if strings.TrimSpace(opts.Application) == "" {
		return nil, errors.New("application url is required")
	}

	return &CDPSession{
		opts:   opts,
		client: &http.Client{Timeout: defaultCallTimeout},
	}, nil
}

func (s *CDPSession) baseURL() string {
	return fmt.Sprintf("http://%s:%d", s.opts.Server, s.opts.Port)
}

func (s *CDPSession) Start(ctx context.Context) error {
	target, err := s.newTarget(ctx)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, target.WebSocketDebuggerURL, nil)
	if err != nil {
		s.closeTarget(context.Background(), target.ID)
		return fmt.Errorf("dial cdp websocket: %w", err)
	}
	conn.SetReadLimit(readLimit)

	s.mu.Lock()
	s.conn = conn
	s.targetID = target.ID
	s.mu.Unlock()

	log.Debugf("Opened browser target %s on %s (%s)", target.ID, s.baseURL(), s.opts.Browser)

	if err := s.Call(ctx, "Page.enable", nil, nil); err != nil {
		return err
	}
	return s.Call(ctx, "Page.navigate", map[string]any{"url": s.opts.Application}, nil)
}

func (s *CDPSession) Stop(ctx context.Context) error {
	s.mu.Lock()
	conn, targetID := s.conn, s.targetID
	s.conn, s.targetID = nil, ""
	s.mu.Unlock()

	var errs []error
	if conn != nil {
		if err := conn.Close(websocket.StatusNormalClosure, "closing"); err != nil {
			errs = append(errs, fmt.Errorf("close cdp websocket: %w", err))
		}
	}
	if targetID != "" {
		if err := s.closeTarget(ctx, targetID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *CDPSession) CaptureScreenshot(ctx context.Context) (string, error) {
	var response struct {
		Data string `json:"data"`
	}
	if err := s.Call(ctx, "Page.captureScreenshot", map[string]any{"format": "png"}, &response); err != nil {
		return "", err
	}
	return response.Data, nil
}

// Navigate the session's page to a URL.
func (s *CDPSession) Navigate(ctx context.Context, targetURL string) error {
	return s.Call(ctx, "Page.navigate", map[string]any{"url": targetURL}, nil)
}

// Evaluate a JavaScript expression and return its value.
func (s *CDPSession) Evaluate(ctx context.Context, expression string) (any, error) {
	var response struct {
		Result struct {
			Value any `json:"value"`
		} `json:"result"`
	}
	if err := s.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
	}, &response); err != nil {
		return nil, err
	}
	return response.Result.Value, nil
}

// Send a DevTools command and decode its result into out.
// Events and responses to other requests are skipped.
func (s *CDPSession) Call(ctx context.Context, method string, params any, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotStarted
	}

	s.idCounter++
	requestID := s.idCounter

	payload := map[string]any{
		"id":     requestID,
		"method": method,
	}
	if params != nil {
		payload["params"] = params
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	deadline := time.Now().Add(defaultCallTimeout)
	if explicit, ok := ctx.Deadline(); ok {
		deadline = explicit
	}
	callCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if err := s.conn.Write(callCtx, websocket.MessageText, raw); err != nil {
		return fmt.Errorf("write cdp request: %w", err)
	}

	for {
		_, message, err := s.conn.Read(callCtx)
		if err != nil {
			return fmt.Errorf("read cdp response: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			continue
		}
		if env.ID != requestID {
			continue
		}
		if env.Error != nil {
			return fmt.Errorf("cdp %s failed (%d): %s", method, env.Error.Code, env.Error.Message)
		}
		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("decode %s response: %w", method, err)
			}
		}
		return nil
	}
}

// Open a new page target. Recent browsers require PUT, older accept GET.
func (s *CDPSession) newTarget(ctx context.Context) (*targetResponse, error) {
	endpoint := s.baseURL() + "/json/new?" + url.QueryEscape("about:blank")

	var lastErr error
	for _, method := range []string{http.MethodPut, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build target request: %w", err)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("query cdp target endpoint: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("cdp target endpoint returned status %d", resp.StatusCode)
			continue
		}

		var target targetResponse
		err = json.NewDecoder(resp.Body).Decode(&target)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode cdp target response: %w", err)
		}
		if strings.TrimSpace(target.WebSocketDebuggerURL) == "" {
			return nil, errors.New("cdp target has no websocket url")
		}
		return &target, nil
	}

	return nil, lastErr
}

func (s *CDPSession) closeTarget(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL()+"/json/close/"+id, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("close cdp target: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("close cdp target returned status %d", resp.StatusCode)
	}
	return nil
}
