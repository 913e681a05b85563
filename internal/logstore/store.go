package logstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Mask replaces secret values in step output.
const Mask = "***"

const fileSuffix = ".log.zst"

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// zstdDecoder is shared by readers; zstd.Decoder is safe for concurrent
// DecodeAll calls.
var (
	decoderOnce sync.Once
	zstdDecoder *zstd.Decoder
	decoderErr  error
)

// Store writes step logs below a root directory.
type Store struct {
	root string
}

// New creates a store rooted at dir/runID.
func New(dir, runID string) (*Store, error) {
	root := filepath.Join(dir, sanitize(runID))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the run's log directory.
func (s *Store) Root() string { return s.root }

// Path returns the log file of a step.
func (s *Store) Path(instance string, stepIndex int, step string) string {
	name := fmt.Sprintf("%02d-%s%s", stepIndex+1, sanitize(step), fileSuffix)
	return filepath.Join(s.root, sanitize(instance), name)
}

// Open creates the log file of a step. Every secret value is masked in what
// is written through the returned writer. Close flushes and must be called.
func (s *Store) Open(instance string, stepIndex int, step string, secrets []string) (io.WriteCloser, error) {
	path := s.Path(instance, stepIndex, step)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create step log: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return NewMasker(&compressedFile{enc: enc, f: f}, secrets), nil
}

// Files lists the log files of one instance in step order.
func (s *Store) Files(instance string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, sanitize(instance), "*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// Read decompresses a log file.
func Read(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoderOnce.Do(func() {
		zstdDecoder, decoderErr = zstd.NewReader(nil)
	})
	if decoderErr != nil {
		return nil, fmt.Errorf("zstd decoder initialization failed: %w", decoderErr)
	}
	out, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress %s: %w", path, err)
	}
	return out, nil
}

type compressedFile struct {
	enc *zstd.Encoder
	f   *os.File
}

func (c *compressedFile) Write(p []byte) (int, error) { return c.enc.Write(p) }

func (c *compressedFile) Close() error {
	encErr := c.enc.Close()
	fileErr := c.f.Close()
	if encErr != nil {
		return encErr
	}
	return fileErr
}

func sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// maxPending bounds how much of an unterminated line a Masker holds.
const maxPending = 64 << 10

// Masker buffers output line by line and masks secrets before forwarding,
// so a secret split across two writes is still caught. A line longer than
// maxPending is forwarded in pieces; only the tail that could still start a
// secret is held back. Secrets are matched within a line, so a secret value
// that itself contains a newline is not masked.
type Masker struct {
	mu      sync.Mutex
	dst     io.WriteCloser
	secrets []string
	buf     bytes.Buffer
}

// NewMasker wraps dst. Empty secrets are ignored; longer secrets are
// replaced first so a secret containing another is masked whole.
func NewMasker(dst io.WriteCloser, secrets []string) *Masker {
	var s []string
	for _, v := range secrets {
		if v != "" {
			s = append(s, v)
		}
	}
	sort.Slice(s, func(i, j int) bool { return len(s[i]) > len(s[j]) })
	return &Masker{dst: dst, secrets: s}
}

// Write implements io.Writer.
func (m *Masker) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf.Write(p)
	for {
		idx := bytes.IndexByte(m.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := m.buf.Next(idx + 1)
		if _, err := io.WriteString(m.dst, m.mask(string(line))); err != nil {
			return 0, err
		}
	}
	if m.buf.Len() > maxPending {
		if err := m.flushPartial(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// flushPartial forwards the head of an overlong partial line. The cut never
// lands inside a secret, and the last len(longest secret)-1 bytes stay
// buffered in case a later write completes one.
func (m *Masker) flushPartial() error {
	data := m.buf.Bytes()
	cut := len(data)
	if len(m.secrets) > 0 {
		cut -= len(m.secrets[0]) - 1
	}
	for moved := true; moved; {
		moved = false
		for _, secret := range m.secrets {
			from := max(0, cut-len(secret)+1)
			if i := bytes.Index(data[from:], []byte(secret)); i >= 0 && from+i < cut {
				cut = from + i
				moved = true
			}
		}
	}
	if cut <= 0 {
		return nil
	}
	_, err := io.WriteString(m.dst, m.mask(string(m.buf.Next(cut))))
	return err
}

// Close flushes a trailing partial line and closes the destination.
func (m *Masker) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buf.Len() > 0 {
		if _, err := io.WriteString(m.dst, m.mask(m.buf.String())); err != nil {
			m.dst.Close()
			return err
		}
		m.buf.Reset()
	}
	return m.dst.Close()
}

func (m *Masker) mask(s string) string {
	for _, secret := range m.secrets {
		s = strings.ReplaceAll(s, secret, Mask)
	}
	return s
}
