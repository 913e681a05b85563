package audit

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/ctxlog"
	"github.com/specialistvlad/pipegrid/internal/events"
)

// FileLedger appends hash-chained records to a file. It implements
// events.Observer; append failures are logged, never returned to the run.
type FileLedger struct {
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	seq  uint64
	prev Hash
}

// OpenLedger opens or creates a ledger file. An existing file is verified
// first and the chain continues from its last record.
func OpenLedger(path string) (*FileLedger, error) {
	l := &FileLedger{}
	if _, err := os.Stat(path); err == nil {
		n, last, err := verifyFile(path)
		if err != nil {
			return nil, err
		}
		l.seq = n
		l.prev = last
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit ledger: %w", err)
	}
	l.f = f
	l.w = bufio.NewWriter(f)
	return l, nil
}

// Append chains and writes one record. Seq and Prev are assigned here.
func (l *FileLedger) Append(r Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r.Seq = l.seq
	r.Prev = nil
	if l.seq > 0 {
		r.Prev = append([]byte(nil), l.prev[:]...)
	}
	h, err := HashRecord(r)
	if err != nil {
		return err
	}
	data, err := encMode.Marshal(entry{Record: r, Hash: h[:]})
	if err != nil {
		return fmt.Errorf("audit: failed to encode entry: %w", err)
	}
	if _, err := l.w.Write(data); err != nil {
		return fmt.Errorf("audit: failed to write entry: %w", err)
	}
	l.seq++
	l.prev = h
	return nil
}

// Observe implements events.Observer.
func (l *FileLedger) Observe(ctx context.Context, ev events.Event) {
	if err := l.Append(RecordFromEvent(ev)); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to append audit record.", "error", err)
		return
	}
	if ev.Kind == events.KindRunFinished {
		if err := l.Flush(); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to flush audit ledger.", "error", err)
		}
	}
}

// Flush writes buffered records to disk.
func (l *FileLedger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.f.Sync()
}

// Close flushes and closes the file.
func (l *FileLedger) Close() error {
	flushErr := l.Flush()
	closeErr := l.f.Close()
	return errors.Join(flushErr, closeErr)
}

// Verify checks the whole chain of a ledger file and returns the number of
// records. A broken chain is reported as *ChainError.
func Verify(path string) (int, error) {
	n, _, err := verifyFile(path)
	return int(n), err
}

// ReadRecords decodes every record of a ledger without verifying it.
func ReadRecords(r io.Reader) ([]Record, error) {
	var out []Record
	dec := decMode.NewDecoder(r)
	for {
		var e entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("audit: failed to decode record %d: %w", len(out), err)
		}
		out = append(out, e.Record)
	}
}

func verifyFile(path string) (uint64, Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, Hash{}, fmt.Errorf("failed to open audit ledger: %w", err)
	}
	defer f.Close()

	var (
		seq  uint64
		prev Hash
	)
	dec := decMode.NewDecoder(bufio.NewReader(f))
	for {
		var e entry
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return seq, prev, nil
			}
			return seq, prev, &ChainError{Seq: seq, Reason: "undecodable record: " + err.Error()}
		}
		h, err := checkLink(e.Record, prev, seq, e.Hash)
		if err != nil {
			return seq, prev, err
		}
		prev = h
		seq++
	}
}

var _ events.Observer = (*FileLedger)(nil)
