package httpcall

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_PostsAndPublishesResponse(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"queued":true}`))
	}))
	defer srv.Close()

	r := registry.New()
	(&Module{Client: srv.Client()}).Register(r)
	call := &registry.Call{Stdout: &bytes.Buffer{}, Env: map[string]string{"DEPLOY_TOKEN": "s3cret"}}

	outputs, err := r.Invoke(context.Background(), "http", call, map[string]string{
		"url":              srv.URL + "/deploy",
		"method":           "post",
		"body":             `{"version":"1.2.0"}`,
		"bearer_token_env": "DEPLOY_TOKEN",
		"expect_status":    "202",
	})

	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", gotAuth)
	assert.Equal(t, `{"version":"1.2.0"}`, gotBody)
	assert.Equal(t, map[string]string{"status_code": "202", "body": `{"queued":true}`}, outputs)
}

func TestHTTP_FailsOnErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := registry.New()
	(&Module{Client: srv.Client()}).Register(r)

	_, err := r.Invoke(context.Background(), "http", &registry.Call{Stdout: &bytes.Buffer{}}, map[string]string{"url": srv.URL})

	assert.ErrorContains(t, err, "503")
}
