package session

// Table is the owning store of live sessions, an arena indexed by
// [Handle].  Slots are recycled, but each reuse bumps the generation,
// so a stale handle never resolves to the wrong session.
//
// Table is not safe for concurrent use; it belongs to the event loop.
type Table struct {
	slots []slot
	free  []uint32
	live  int
}

type slot struct {
	gen uint32
	s   *Session
}

// NewTable returns an empty table.
func NewTable() *Table { return &Table{} }

// Insert stores s, assigns its handle and returns it.
func (t *Table) Insert(s *Session) Handle {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot{})
		idx = uint32(len(t.slots) - 1)
	}

	sl := &t.slots[idx]
	sl.gen++
	if sl.gen == 0 { // wrapped; zero is reserved
		sl.gen = 1
	}
	sl.s = s

	h := Handle{Index: idx, Gen: sl.gen}
	s.handle = h
	t.live++
	return h
}

// Get returns the session for h if it is still in the table.
func (t *Table) Get(h Handle) (*Session, bool) {
	if h.IsZero() || int(h.Index) >= len(t.slots) {
		return nil, false
	}
	sl := t.slots[h.Index]
	if sl.gen != h.Gen || sl.s == nil {
		return nil, false
	}
	return sl.s, true
}

// Remove drops h from the table and returns the session it held.  The
// session is not closed.
func (t *Table) Remove(h Handle) (*Session, bool) {
	s, ok := t.Get(h)
	if !ok {
		return nil, false
	}
	t.slots[h.Index].s = nil
	t.free = append(t.free, h.Index)
	t.live--
	return s, true
}

// Len returns the number of live sessions.
func (t *Table) Len() int { return t.live }

// CloseAll closes and removes every session.
func (t *Table) CloseAll() {
	for i := range t.slots {
		if s := t.slots[i].s; s != nil {
			s.Close() //nolint:errcheck
			t.slots[i].s = nil
			t.free = append(t.free, uint32(i))
		}
	}
	t.live = 0
}
