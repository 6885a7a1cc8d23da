package workbook

// stringTable interns text cell contents and formula sources with reference
// counting. id 0 is never issued.
type stringTable struct {
	ids       map[string]uint32
	values    map[uint32]string
	refCounts map[uint32]int
	nextID    uint32
}

func newStringTable() *stringTable {
	return &stringTable{
		ids:       make(map[string]uint32),
		values:    make(map[uint32]string),
		refCounts: make(map[uint32]int),
		nextID:    1,
	}
}

// intern adds s or bumps its reference count and returns its id.
func (st *stringTable) intern(s string) uint32 {
	if id, exists := st.ids[s]; exists {
		st.refCounts[id]++
		return id
	}
	id := st.nextID
	st.ids[s] = id
	st.values[id] = s
	st.refCounts[id] = 1
	st.nextID++
	return id
}

func (st *stringTable) get(id uint32) string {
	return st.values[id]
}

// release drops one reference. the string is forgotten when the count
// reaches zero; returns true in that case.
func (st *stringTable) release(id uint32) bool {
	s, exists := st.values[id]
	if !exists {
		return false
	}
	st.refCounts[id]--
	if st.refCounts[id] > 0 {
		return false
	}
	delete(st.ids, s)
	delete(st.values, id)
	delete(st.refCounts, id)
	return true
}

func (st *stringTable) len() int {
	return len(st.ids)
}
