package cache

// table is an open addressing hash table keyed by path.
// Collisions are resolved by linear probing with wraparound. The capacity
// is always a power of two and count < capacity holds after every insert.
type table struct {
	slots []*Entry
	mask  uint64
	count int
	grows int
}

func newTable(capacity int) *table {
	capacity = nextPowerOfTwo(capacity)
	if capacity < 2 {
		capacity = 2
	}
	return &table{
		slots: make([]*Entry, capacity),
		mask:  uint64(capacity - 1),
	}
}

// sizeFor returns a capacity that holds n entries without growing
func sizeFor(n int) int {
	return nextPowerOfTwo(n + 1)
}

func (t *table) capacity() int {
	return len(t.slots)
}

// find probes from the entry's home slot. A probe that wraps back to its
// start ends as a miss.
func (t *table) find(path string) (*Entry, bool) {
	h := hash(path)
	start := h & t.mask
	i := start
	for {
		e := t.slots[i]
		if e == nil {
			return nil, false
		}
		if e.Hash == h && e.Path == path {
			return e, true
		}
		i = (i + 1) & t.mask
		if i == start {
			return nil, false
		}
	}
}

// insert places e, replacing an entry with the same path. The table is
// doubled beforehand whenever adding a path would fill it.
func (t *table) insert(e *Entry) {
	if _, ok := t.find(e.Path); !ok {
		for t.count+1 >= t.capacity() {
			t.grow()
		}
	}
	t.place(e)
}

func (t *table) place(e *Entry) {
	i := e.Hash & t.mask
	for {
		cur := t.slots[i]
		if cur == nil {
			t.slots[i] = e
			t.count++
			return
		}
		if cur.Hash == e.Hash && cur.Path == e.Path {
			t.slots[i] = e
			return
		}
		i = (i + 1) & t.mask
	}
}

// grow doubles the capacity and rehashes every entry into the new slots
func (t *table) grow() {
	old := t.slots
	t.slots = make([]*Entry, len(old)*2)
	t.mask = uint64(len(t.slots) - 1)
	t.count = 0
	t.grows++
	for _, e := range old {
		if e != nil {
			t.place(e)
		}
	}
}

// each calls fn for every entry in slot order
func (t *table) each(fn func(*Entry)) {
	for _, e := range t.slots {
		if e != nil {
			fn(e)
		}
	}
}
