package siteimport

// recentIDs remembers the last limit source ids of a job. Sources emit in
// a stable order, so repeats arrive close together and an evicting window
// catches them without holding every id of a long import.
type recentIDs struct {
	limit int
	ring  []string
	next  int
	set   map[string]struct{}
}

func newRecentIDs(limit int) *recentIDs {
	if limit <= 0 {
		limit = 1
	}
	return &recentIDs{
		limit: limit,
		ring:  make([]string, 0, limit),
		set:   make(map[string]struct{}, limit),
	}
}

// Seen reports whether id is in the window and records it when it is not.
func (r *recentIDs) Seen(id string) bool {
	if _, ok := r.set[id]; ok {
		return true
	}
	if len(r.ring) < r.limit {
		r.ring = append(r.ring, id)
	} else {
		delete(r.set, r.ring[r.next])
		r.ring[r.next] = id
		r.next = (r.next + 1) % r.limit
	}
	r.set[id] = struct{}{}
	return false
}

func (r *recentIDs) Len() int {
	return len(r.set)
}
