// Package notify streams run events to external listeners.
//
// The socket.io notifier publishes every run-level event and every terminal
// instance transition (or every transition, in verbose mode) to a
// socket.io namespace, so dashboards and chat bots can follow a release
// live.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// DefaultEvent is the socket.io event name used for run events.
const DefaultEvent = "pipegrid:event"

// Config configures the socket.io notifier.
type Config struct {
	URL                string
	Namespace          string
	Event              string
	InsecureSkipVerify bool
	// Verbose forwards every transition, not only terminal ones.
	Verbose        bool
	ConnectTimeout time.Duration
}

type emitFunc func(event string, args ...any)

// SocketIO implements events.Observer by emitting to a socket.io server.
type SocketIO struct {
	emit    emitFunc
	close   func()
	event   string
	verbose bool
	logger  *slog.Logger
}

// DialSocketIO connects to the server and waits for the connection.
func DialSocketIO(ctx context.Context, cfg Config) (*SocketIO, error) {
	logger := ctxlog.FromContext(ctx).With("notifier", "socketio", "url", cfg.URL)
	logger.Info("Connecting run notifier...")

	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if cfg.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(cfg.Namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Run notifier connected", "sid", io.Id())
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connection refused")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		logger.Debug("EVENT HANDLER: 'connect_error' event fired", "error", err)
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}

	return newSocketIO(func(event string, args ...any) { io.Emit(event, args...) }, func() { io.Disconnect() }, cfg, logger), nil
}

func newSocketIO(emit emitFunc, closeFn func(), cfg Config, logger *slog.Logger) *SocketIO {
	event := cfg.Event
	if event == "" {
		event = DefaultEvent
	}
	return &SocketIO{emit: emit, close: closeFn, event: event, verbose: cfg.Verbose, logger: logger}
}

// Observe implements events.Observer.
func (s *SocketIO) Observe(_ context.Context, ev events.Event) {
	if ev.Kind == events.KindTransition && !s.verbose && !ev.To.IsTerminal() {
		return
	}
	s.emit(s.event, Payload(ev))
}

// Close disconnects from the server.
func (s *SocketIO) Close() error {
	s.logger.Info("Disconnecting run notifier")
	s.close()
	return nil
}

// Payload renders an event as a plain JSON-compatible map.
func Payload(ev events.Event) map[string]any {
	p := map[string]any{
		"kind":   string(ev.Kind),
		"run_id": ev.RunID,
		"time":   ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Pipeline != "" {
		p["pipeline"] = ev.Pipeline
	}
	if ev.Kind == events.KindTransition {
		p["instance"] = ev.Instance
		p["job"] = ev.Job
		p["from"] = ev.From.String()
		p["to"] = ev.To.String()
	}
	if ev.Reason != "" {
		p["reason"] = ev.Reason
	}
	if ev.Error != "" {
		p["error"] = ev.Error
	}
	if ev.Duration > 0 {
		p["duration_ms"] = ev.Duration.Milliseconds()
	}
	if ev.Verdict != "" {
		p["verdict"] = ev.Verdict
	}
	return p
}

var _ events.Observer = (*SocketIO)(nil)
