// Package upload provides the `upload` action, which PUTs a build artifact
// to a pre-signed object storage URL (S3, GCS, R2).
package upload

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strconv"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	Client *http.Client
}

// Input defines the arguments for the upload action.
type Input struct {
	SourcePath string `pipegrid:"source_path"`
	// URLEnv names the variable holding the pre-signed URL; such URLs are
	// credentials and usually come from a secret.
	URLEnv      string `pipegrid:"url_env"`
	ContentType string `pipegrid:"content_type,optional"`
}

func (m *Module) upload(ctx context.Context, call *registry.Call, input *Input) (map[string]string, error) {
	logger := ctxlog.FromContext(ctx).With("action", "upload")

	uploadURL, ok := call.Env[input.URLEnv]
	if !ok || uploadURL == "" {
		return nil, fmt.Errorf("upload URL variable %s is not set", input.URLEnv)
	}

	path := input.SourcePath
	if !filepath.IsAbs(path) && call.WorkingDir != "" {
		path = filepath.Join(call.WorkingDir, path)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file '%s': %w", path, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats for '%s': %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	contentType := input.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(path))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = stat.Size()

	logger.Info("Uploading artifact", "source", path, "size", stat.Size(), "contentType", contentType)
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("upload failed with status: %s", resp.Status)
	}
	fmt.Fprintf(call.Stdout, "uploaded %s (%d bytes)\n", filepath.Base(path), stat.Size())
	logger.Info("Successfully uploaded artifact", "status", resp.Status)

	return map[string]string{
		"size":   strconv.FormatInt(stat.Size(), 10),
		"etag":   resp.Header.Get("ETag"),
		"status": resp.Status,
	}, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("upload", &registry.RegisteredAction{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		Fn:        m.upload,
	})
}
