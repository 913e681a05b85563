// Package audit keeps a tamper-evident record of what a run did.
//
// # Ledger
//
// The FileLedger appends one CBOR item per run event to a file. Records are
// encoded with Core Deterministic Encoding (RFC 8949 §4.2), so the same
// record always produces the same bytes, and each record carries the
// BLAKE3 hash of its predecessor:
//
//	hash(n) = BLAKE3-keyed("pipegrid.audit.record", cbor(record n))
//	record n+1 .Prev = hash(n)
//
// Editing, dropping or reordering any record breaks the chain at that
// point, which Verify reports. A ledger file may hold several runs; the
// chain continues across them.
//
// # Run store
//
// RedisStore keeps the final report of each run under
// `pipegrid:run:<run id>` with a TTL, for dashboards and the status
// server of other hosts.
package audit
