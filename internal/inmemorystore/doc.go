// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// Unlike inmemorytopology which uses one RWMutex, this store keeps one small
// entry per instance in a sync.Map. Each entry carries its own mutex so a
// validate-and-set transition is atomic for that instance without
// serializing writes to unrelated instances.
package inmemorystore
