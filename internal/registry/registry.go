// Package registry tracks connected clients by integer id.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

const (
	// DefaultCapacity is the default maximum number of connected clients.
	DefaultCapacity = 1000
	// DefaultBuckets is the default number of hash buckets.
	DefaultBuckets = 64
)

var (
	// ErrNotFound is returned when no client has the requested id.
	ErrNotFound = errors.New("client not found")
	// ErrFull is returned when the registry is at capacity.
	ErrFull = errors.New("registry full")
)

type entry struct {
	id     int32
	client *Client
	next   *entry
}

// Registry maps client ids to clients using a fixed number of chained
// buckets, alongside an ascending list of every stored id.
// All methods are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	buckets  []*entry
	ids      []int32
	capacity int
}

// New creates an empty Registry.
//
// Postcondition: Non-positive capacity or buckets fall back to the defaults.
func New(capacity, buckets int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	return &Registry{
		buckets:  make([]*entry, buckets),
		ids:      make([]int32, 0, min(capacity, 128)),
		capacity: capacity,
	}
}

func (r *Registry) bucket(id int32) int {
	b := int(id) % len(r.buckets)
	if b < 0 {
		b += len(r.buckets)
	}
	return b
}

// Put stores client under id, replacing any existing client with that id.
//
// Precondition: id must be positive.
// Postcondition: Get(id) returns client. Returns ErrFull when inserting a
// new id into a full registry.
func (r *Registry) Put(id int32, client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.put(id, client)
}

func (r *Registry) put(id int32, client *Client) error {
	if id <= 0 {
		return fmt.Errorf("invalid client id %d", id)
	}
	b := r.bucket(id)
	for e := r.buckets[b]; e != nil; e = e.next {
		if e.id == id {
			e.client = client
			return nil
		}
	}
	if len(r.ids) >= r.capacity {
		return ErrFull
	}
	r.buckets[b] = &entry{id: id, client: client, next: r.buckets[b]}
	pos, _ := slices.BinarySearch(r.ids, id)
	r.ids = slices.Insert(r.ids, pos, id)
	return nil
}

// Get returns the client stored under id.
//
// Postcondition: Returns ErrNotFound when id is absent.
func (r *Registry) Get(id int32) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for e := r.buckets[r.bucket(id)]; e != nil; e = e.next {
		if e.id == id {
			return e.client, nil
		}
	}
	return nil, fmt.Errorf("client %d: %w", id, ErrNotFound)
}

// Remove deletes the client stored under id, freeing the id for reuse.
//
// Postcondition: Returns ErrNotFound when id is absent.
func (r *Registry) Remove(id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bucket(id)
	var prev *entry
	for e := r.buckets[b]; e != nil; prev, e = e, e.next {
		if e.id != id {
			continue
		}
		if prev == nil {
			r.buckets[b] = e.next
		} else {
			prev.next = e.next
		}
		if pos, ok := slices.BinarySearch(r.ids, id); ok {
			r.ids = slices.Delete(r.ids, pos, pos+1)
		}
		return nil
	}
	return fmt.Errorf("client %d: %w", id, ErrNotFound)
}

// NextID returns the lowest free id: the first gap in 1, 2, 3, ... or one
// past the highest id.
//
// Postcondition: Returns ErrFull when the registry is at capacity.
func (r *Registry) NextID() (int32, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID()
}

func (r *Registry) nextID() (int32, error) {
	if len(r.ids) >= r.capacity {
		return 0, ErrFull
	}
	for i, id := range r.ids {
		if id != int32(i+1) {
			return int32(i + 1), nil
		}
	}
	return int32(len(r.ids) + 1), nil
}

// Allocate assigns the next free id to client and stores it.
//
// Postcondition: client.ID is set and the client is stored, or ErrFull is
// returned and client is unchanged.
func (r *Registry) Allocate(client *Client) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.nextID()
	if err != nil {
		return 0, err
	}
	if err := r.put(id, client); err != nil {
		return 0, err
	}
	client.ID = id
	return id, nil
}

// IDs returns a snapshot of the stored ids in ascending order.
func (r *Registry) IDs() []int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.ids)
}

// Len returns the number of stored clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Range calls fn for each client in ascending id order until fn returns
// false. It iterates over a snapshot, so fn may add or remove clients.
func (r *Registry) Range(fn func(*Client) bool) {
	for _, id := range r.IDs() {
		c, err := r.Get(id)
		if err != nil {
			continue
		}
		if !fn(c) {
			return
		}
	}
}
