// Package socketio provides the `socketio` action: emit an event to a
// socket.io server and, optionally, wait for a reply event. Release
// pipelines use it for chat-ops approvals and deploy-bot handshakes.
package socketio

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the socketio action.
type Input struct {
	URL       string `pipegrid:"url"`
	Namespace string `pipegrid:"namespace,optional"`
	EmitEvent string `pipegrid:"emit_event"`
	// EmitData is a JSON document sent as the event payload.
	EmitData string `pipegrid:"emit_data,optional"`
	// OnEvent, when set, makes the action wait for that event and publish
	// its payload as the `response` output.
	OnEvent            string `pipegrid:"on_event,optional"`
	Timeout            string `pipegrid:"timeout,optional"`
	InsecureSkipVerify bool   `pipegrid:"insecure_skip_verify,optional"`
}

type opResult struct {
	value map[string]string
	err   error
}

// Emit is the handler for `uses = "socketio"`.
func Emit(ctx context.Context, call *registry.Call, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx).With("action", "socketio", "url", input.URL, "emitEvent", input.EmitEvent, "onEvent", input.OnEvent)
	logger.Debug("Handler started")
	defer logger.Debug("Handler finished")

	var payload any
	if input.EmitData != "" {
		if err := json.Unmarshal([]byte(input.EmitData), &payload); err != nil {
			return nil, fmt.Errorf("emit_data is not valid JSON: %w", err)
		}
	}

	timeout := 10 * time.Second
	if input.Timeout != "" {
		d, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timeout: %w", err)
		}
		timeout = d
	}

	parsedURL, err := url.Parse(input.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	var isConnected atomic.Bool
	done := make(chan opResult, 2)
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := socket.DefaultOptions()
	opts.SetPath(parsedURL.Path)
	if input.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(input.Namespace, opts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		io.Disconnect()
	}()

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Successfully connected", "namespace", input.Namespace, "sid", io.Id())
		io.Emit(input.EmitEvent, payload)
		fmt.Fprintf(call.Stdout, "emitted %s\n", input.EmitEvent)
		if input.OnEvent == "" {
			done <- opResult{value: map[string]string{}}
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connection failed")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		done <- opResult{err: err}
	})

	if input.OnEvent != "" {
		io.On(types.EventName(input.OnEvent), func(data ...any) {
			var response any
			if len(data) > 0 {
				response = data[0]
			}
			encoded, err := json.Marshal(response)
			if err != nil {
				done <- opResult{err: fmt.Errorf("failed to encode reply: %w", err)}
				return
			}
			fmt.Fprintf(call.Stdout, "received %s\n", input.OnEvent)
			done <- opResult{value: map[string]string{"response": string(encoded)}}
		})
	}

	io.Connect()

	select {
	case <-opCtx.Done():
		if isConnected.Load() {
			return nil, fmt.Errorf("timed out after connecting while waiting for event '%s'", input.OnEvent)
		}
		return nil, fmt.Errorf("timed out while waiting for initial connection")
	case res := <-done:
		return res.value, res.err
	}
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("socketio", &registry.RegisteredAction{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn:        Emit,
	})
}
