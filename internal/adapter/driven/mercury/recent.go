package mercury

import "sync"

// recentIDs remembers the last n frame ids, oldest evicted first.
type recentIDs struct {
	mu   sync.Mutex
	buf  []string
	head int
	n    int
	set  map[string]struct{}
}

func newRecentIDs(capacity int) *recentIDs {
	return &recentIDs{buf: make([]string, capacity), set: make(map[string]struct{}, capacity)}
}

// Seen records id and reports whether it was already present.
func (r *recentIDs) Seen(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.set[id]; ok {
		return true
	}
	if r.n == len(r.buf) {
		delete(r.set, r.buf[r.head])
		r.buf[r.head] = id
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.buf[(r.head+r.n)%len(r.buf)] = id
		r.n++
	}
	r.set[id] = struct{}{}
	return false
}
