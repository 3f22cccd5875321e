package sprite

// residencyNode is a node in the residency list. It stores the handle for
// O(1) lookup of the owning entry when evicting.
type residencyNode struct {
	handle Handle
	prev   *residencyNode
	next   *residencyNode
}

// residency orders resident sprites by last use.
// The head is the most recently blitted, the tail the eviction candidate.
// Not thread-safe.
type residency struct {
	head *residencyNode
	tail *residencyNode
	len  int
}

// push inserts h as most recently used.
func (r *residency) push(h Handle) *residencyNode {
	n := &residencyNode{handle: h, next: r.head}
	if r.head != nil {
		r.head.prev = n
	} else {
		r.tail = n
	}
	r.head = n
	r.len++
	return n
}

// touch marks n as most recently used.
func (r *residency) touch(n *residencyNode) {
	if n == nil || n == r.head {
		return
	}
	r.unlink(n)
	n.next = r.head
	if r.head != nil {
		r.head.prev = n
	}
	r.head = n
	if r.tail == nil {
		r.tail = n
	}
	r.len++
}

// oldest removes and returns the least recently used handle.
func (r *residency) oldest() (Handle, bool) {
	if r.tail == nil {
		return 0, false
	}
	n := r.tail
	r.unlink(n)
	return n.handle, true
}

func (r *residency) unlink(n *residencyNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		r.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		r.tail = n.prev
	}
	n.prev = nil
	n.next = nil
	r.len--
}
