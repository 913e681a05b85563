package audit

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/specialistvlad/pipegrid/internal/events"
	"github.com/zeebo/blake3"
)

// HashSize is the size of a record hash.
const HashSize = 32

// Hash is a BLAKE3 record digest.
type Hash [HashSize]byte

// domainKey separates ledger hashes from any other BLAKE3 use. The bytes
// are the ASCII domain name, zero-padded to 32 bytes.
var domainKey = [32]byte{
	'p', 'i', 'p', 'e', 'g', 'r', 'i', 'd', '.', 'a', 'u', 'd', 'i', 't', '.',
	'r', 'e', 'c', 'o', 'r', 'd',
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("audit: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("audit: CBOR decoder initialization failed: " + err.Error())
	}
}

// NewRunID returns a fresh, time-ordered run identifier.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Record is one ledger entry.
type Record struct {
	Seq      uint64 `cbor:"seq"`
	Prev     []byte `cbor:"prev"`
	At       int64  `cbor:"at"`
	Kind     string `cbor:"kind"`
	RunID    string `cbor:"run"`
	Pipeline string `cbor:"pipeline,omitempty"`
	Instance string `cbor:"instance,omitempty"`
	Job      string `cbor:"job,omitempty"`
	From     string `cbor:"from,omitempty"`
	To       string `cbor:"to,omitempty"`
	Reason   string `cbor:"reason,omitempty"`
	Error    string `cbor:"error,omitempty"`
	Verdict  string `cbor:"verdict,omitempty"`
	// DurationMS is set on terminal transitions of instances that ran.
	DurationMS int64 `cbor:"duration_ms,omitempty"`
}

// entry is the on-disk form: the record and its hash.
type entry struct {
	Record Record `cbor:"r"`
	Hash   []byte `cbor:"h"`
}

// RecordFromEvent converts a run event into an unchained record.
func RecordFromEvent(ev events.Event) Record {
	r := Record{
		At:         ev.Time.UnixNano(),
		Kind:       string(ev.Kind),
		RunID:      ev.RunID,
		Pipeline:   ev.Pipeline,
		Instance:   ev.Instance,
		Job:        ev.Job,
		Reason:     ev.Reason,
		Error:      ev.Error,
		Verdict:    ev.Verdict,
		DurationMS: ev.Duration.Milliseconds(),
	}
	if ev.Kind == events.KindTransition {
		r.From = ev.From.String()
		r.To = ev.To.String()
	}
	return r
}

// HashRecord computes the chain hash of a record.
func HashRecord(r Record) (Hash, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return Hash{}, fmt.Errorf("audit: failed to encode record %d: %w", r.Seq, err)
	}
	h, err := blake3.NewKeyed(domainKey[:])
	if err != nil {
		return Hash{}, err
	}
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// ChainError reports the first record at which a ledger stops verifying.
type ChainError struct {
	Seq    uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at record %d: %s", e.Seq, e.Reason)
}

func checkLink(r Record, prev Hash, wantSeq uint64, stored []byte) (Hash, error) {
	if r.Seq != wantSeq {
		return Hash{}, &ChainError{Seq: r.Seq, Reason: fmt.Sprintf("expected sequence %d", wantSeq)}
	}
	if wantSeq == 0 {
		if len(r.Prev) != 0 {
			return Hash{}, &ChainError{Seq: r.Seq, Reason: "first record has a predecessor"}
		}
	} else if !bytes.Equal(r.Prev, prev[:]) {
		return Hash{}, &ChainError{Seq: r.Seq, Reason: "predecessor hash mismatch"}
	}
	got, err := HashRecord(r)
	if err != nil {
		return Hash{}, err
	}
	if !bytes.Equal(stored, got[:]) {
		return Hash{}, &ChainError{Seq: r.Seq, Reason: "record hash mismatch"}
	}
	return got, nil
}
