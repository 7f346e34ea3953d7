package storage

import "sync"

// Overlay buffers writes on top of a base database so that one protocol
// operation either commits in full or leaves the base untouched. Reads see
// buffered writes first and fall through to the base. An Overlay is intended
// for single-operation scope; Commit flushes the buffer in key order of
// arrival and Discard drops it.
type Overlay struct {
	mu     sync.Mutex
	base   Database
	order  []string
	writes map[string][]byte
}

// NewOverlay wraps the base database with an uncommitted write buffer.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:   base,
		writes: make(map[string][]byte),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	k := string(key)
	if _, seen := o.writes[k]; !seen {
		o.order = append(o.order, k)
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	o.writes[k] = buf
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.Lock()
	value, ok := o.writes[string(key)]
	o.mu.Unlock()
	if ok {
		return value, nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.Lock()
	_, ok := o.writes[string(key)]
	o.mu.Unlock()
	if ok {
		return true, nil
	}
	return o.base.Has(key)
}

// Close satisfies the Database interface; the base remains open.
func (o *Overlay) Close() {}

// Commit flushes every buffered write to the base database. On the first
// write error the flush stops; the base may then hold a partial prefix, which
// is why durable backends should provide their own batching when that matters.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, k := range o.order {
		if err := o.base.Put([]byte(k), o.writes[k]); err != nil {
			return err
		}
	}
	o.order = nil
	o.writes = make(map[string][]byte)
	return nil
}

// Discard drops all buffered writes.
func (o *Overlay) Discard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.order = nil
	o.writes = make(map[string][]byte)
}
