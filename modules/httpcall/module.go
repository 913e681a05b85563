// Package httpcall provides the `http` action: a single request with a status
// check, used for webhooks, deploy hooks and health checks.
package httpcall

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// Input defines the arguments for the http action.
type Input struct {
	URL          string `pipegrid:"url"`
	Method       string `pipegrid:"method,optional"`
	Body         string `pipegrid:"body,optional"`
	ContentType  string `pipegrid:"content_type,optional"`
	Bearer       string `pipegrid:"bearer_token_env,optional"`
	ExpectStatus int    `pipegrid:"expect_status,optional"`
	Timeout      string `pipegrid:"timeout,optional"`
}

const maxBodyOutput = 4096

func (m *Module) request(ctx context.Context, call *registry.Call, input *Input) (map[string]string, error) {
	method := strings.ToUpper(input.Method)
	if method == "" {
		method = http.MethodGet
	}
	logger := ctxlog.FromContext(ctx).With("action", "http", "method", method, "url", input.URL)

	timeout := 30 * time.Second
	if input.Timeout != "" {
		d, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timeout: %w", err)
		}
		timeout = d
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if input.Body != "" {
		body = strings.NewReader(input.Body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, input.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if input.ContentType != "" {
		req.Header.Set("Content-Type", input.ContentType)
	}
	if input.Bearer != "" {
		token, ok := call.Env[input.Bearer]
		if !ok {
			return nil, fmt.Errorf("bearer token variable %s is not set", input.Bearer)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger.Info("Making HTTP request")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyOutput))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	fmt.Fprintf(call.Stdout, "%s %s -> %s\n", method, input.URL, resp.Status)
	logger.Info("Received HTTP response", "status", resp.Status)

	if input.ExpectStatus != 0 && resp.StatusCode != input.ExpectStatus {
		return nil, fmt.Errorf("expected status %d, got %s", input.ExpectStatus, resp.Status)
	}
	if input.ExpectStatus == 0 && resp.StatusCode >= 400 {
		return nil, fmt.Errorf("request failed with status: %s", resp.Status)
	}

	return map[string]string{
		"status_code": strconv.Itoa(resp.StatusCode),
		"body":        string(bodyBytes),
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("http", &registry.RegisteredAction{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn:        m.request,
	})
}
