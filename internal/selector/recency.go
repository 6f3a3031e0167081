package selector

// maxRecency bounds the recently used queue
const maxRecency = 5

// Recency is a bounded FIFO of recently used clip ids
type Recency struct {
	capacity int
	items    []int
}

// NewRecency sizes the queue for a batch with numClips usable clips:
// min(5, numClips/2).
func NewRecency(numClips int) *Recency {
	return &Recency{capacity: min(maxRecency, numClips/2)}
}

// Push appends id, evicting the oldest entry when full
func (r *Recency) Push(id int) {
	if r.capacity <= 0 {
		return
	}
	if len(r.items) == r.capacity {
		r.items = r.items[1:]
	}
	r.items = append(r.items, id)
}

// Contains reports whether id is in the queue
func (r *Recency) Contains(id int) bool {
	for _, v := range r.items {
		if v == id {
			return true
		}
	}
	return false
}

// Items returns the queue contents, oldest first
func (r *Recency) Items() []int {
	return append([]int(nil), r.items...)
}

// Len returns the number of queued ids
func (r *Recency) Len() int {
	return len(r.items)
}
