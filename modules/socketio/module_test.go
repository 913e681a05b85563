package socketio

import (
	"bytes"
	"context"
	"testing"

	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/stretchr/testify/assert"
)

func TestEmit_RejectsInvalidPayload(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)

	_, err := r.Invoke(context.Background(), "socketio", &registry.Call{Stdout: &bytes.Buffer{}}, map[string]string{
		"url": "http://127.0.0.1:1", "emit_event": "deploy", "emit_data": "{not json",
	})

	assert.ErrorContains(t, err, "emit_data is not valid JSON")
}

func TestEmit_RejectsInvalidTimeout(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)

	_, err := r.Invoke(context.Background(), "socketio", &registry.Call{Stdout: &bytes.Buffer{}}, map[string]string{
		"url": "http://127.0.0.1:1", "emit_event": "deploy", "timeout": "soon",
	})

	assert.ErrorContains(t, err, "failed to parse timeout")
}
