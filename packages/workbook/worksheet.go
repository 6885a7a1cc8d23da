package workbook

import (
	"cmp"
	"slices"
	"strings"

	"github.com/vogtb/go-formula/packages/formula"
)

// sheetTable maps worksheet names to ids. names are matched without regard
// to case. a name gets an id the first time it is seen, either by a
// definition or by a formula referencing it, and keeps it for the lifetime
// of the workbook so dependencies on a missing sheet connect once the sheet
// is added.
type sheetTable struct {
	nameToID map[string]uint32 // upper-cased name -> id
	idToName map[uint32]string // id -> name as last defined or referenced
	defined  map[uint32]*worksheet
	order    []uint32 // defined ids in creation order
	nextID   uint32
}

func newSheetTable() *sheetTable {
	return &sheetTable{
		nameToID: make(map[string]uint32),
		idToName: make(map[uint32]string),
		defined:  make(map[uint32]*worksheet),
		nextID:   1, // 0 means no sheet
	}
}

// id returns the id of name, allocating one for an unknown name.
func (st *sheetTable) id(name string) uint32 {
	key := strings.ToUpper(name)
	if id, exists := st.nameToID[key]; exists {
		return id
	}
	id := st.nextID
	st.nameToID[key] = id
	st.idToName[id] = name
	st.nextID++
	return id
}

// lookup returns the defined worksheet called name.
func (st *sheetTable) lookup(name string) (*worksheet, bool) {
	id, exists := st.nameToID[strings.ToUpper(name)]
	if !exists {
		return nil, false
	}
	ws, defined := st.defined[id]
	return ws, defined
}

// define attaches ws to name and returns the id it now lives under.
func (st *sheetTable) define(name string, ws *worksheet) uint32 {
	id := st.id(name)
	st.idToName[id] = name
	if _, exists := st.defined[id]; !exists {
		st.order = append(st.order, id)
	}
	st.defined[id] = ws
	ws.id = id
	return id
}

// undefine detaches the worksheet from name. the id stays reserved.
func (st *sheetTable) undefine(name string) bool {
	id, exists := st.nameToID[strings.ToUpper(name)]
	if !exists {
		return false
	}
	if _, defined := st.defined[id]; !defined {
		return false
	}
	delete(st.defined, id)
	st.order = slices.DeleteFunc(st.order, func(o uint32) bool { return o == id })
	return true
}

func (st *sheetTable) name(id uint32) string {
	return st.idToName[id]
}

func (st *sheetTable) names() []string {
	result := make([]string, 0, len(st.order))
	for _, id := range st.order {
		result = append(result, st.idToName[id])
	}
	return result
}

type cellType uint8

const (
	cellEmpty cellType = iota
	cellNumber
	cellText
	cellBoolean
	cellError
	cellFormula
)

const (
	chunkRows uint32 = 256
	chunkCols uint32 = 64
	chunkSize        = chunkRows * chunkCols
)

type chunkKey struct {
	row uint32
	col uint32
}

// chunk stores a chunkRows x chunkCols block as parallel arrays. only types
// and the occupancy bitmap exist up front, the rest is allocated on first
// use.
type chunk struct {
	types    []uint8
	occupied []uint64
	count    int

	numbers   []float64 // number and boolean cells (lazy)
	stringIDs []uint32  // text, error code and formula source (lazy)
}

func newChunk() *chunk {
	return &chunk{
		types:    make([]uint8, chunkSize),
		occupied: make([]uint64, (chunkSize+63)/64),
	}
}

// worksheet is sparse chunked cell storage. rows and columns are 0-based
// internally.
type worksheet struct {
	id      uint32
	chunks  map[chunkKey]*chunk
	strings *stringTable
}

func newWorksheet(st *stringTable) *worksheet {
	return &worksheet{
		chunks:  make(map[chunkKey]*chunk),
		strings: st,
	}
}

// cell is the decoded content of one position.
type cell struct {
	typ    cellType
	value  formula.Value // literal cells
	source string        // formula cells, including the leading "="
}

func locate(row, col uint32) (chunkKey, uint32) {
	key := chunkKey{row: row / chunkRows, col: col / chunkCols}
	localRow := row % chunkRows
	localCol := col % chunkCols
	return key, localCol*chunkRows + localRow
}

func (w *worksheet) get(row, col uint32) cell {
	key, idx := locate(row, col)
	c, exists := w.chunks[key]
	if !exists {
		return cell{}
	}
	switch typ := cellType(c.types[idx]); typ {
	case cellNumber:
		return cell{typ: typ, value: formula.Number(c.numbers[idx])}
	case cellBoolean:
		return cell{typ: typ, value: formula.Bool(c.numbers[idx] != 0)}
	case cellText:
		return cell{typ: typ, value: formula.Text(w.strings.get(c.stringIDs[idx]))}
	case cellError:
		return cell{typ: typ, value: formula.Err(formula.ErrorCode(w.strings.get(c.stringIDs[idx])))}
	case cellFormula:
		return cell{typ: typ, source: w.strings.get(c.stringIDs[idx])}
	default:
		return cell{}
	}
}

// set stores a literal value. a blank value empties the cell.
func (w *worksheet) set(row, col uint32, v formula.Value) {
	switch v.Kind() {
	case formula.KindNumber:
		w.store(row, col, cellNumber, v.Num(), "")
	case formula.KindBoolean:
		n := 0.0
		if v.Boolean() {
			n = 1
		}
		w.store(row, col, cellBoolean, n, "")
	case formula.KindText:
		w.store(row, col, cellText, 0, v.Str())
	case formula.KindError:
		w.store(row, col, cellError, 0, string(v.Code()))
	default:
		w.remove(row, col)
	}
}

func (w *worksheet) setFormula(row, col uint32, source string) {
	w.store(row, col, cellFormula, 0, source)
}

func (w *worksheet) store(row, col uint32, typ cellType, n float64, s string) {
	key, idx := locate(row, col)
	c, exists := w.chunks[key]
	if !exists {
		c = newChunk()
		w.chunks[key] = c
	}
	w.release(c, idx)

	if c.types[idx] == uint8(cellEmpty) {
		c.count++
		c.occupied[idx/64] |= 1 << (idx % 64)
	}
	c.types[idx] = uint8(typ)
	switch typ {
	case cellNumber, cellBoolean:
		if c.numbers == nil {
			c.numbers = make([]float64, chunkSize)
		}
		c.numbers[idx] = n
	case cellText, cellError, cellFormula:
		if c.stringIDs == nil {
			c.stringIDs = make([]uint32, chunkSize)
		}
		c.stringIDs[idx] = w.strings.intern(s)
	}
}

// release drops the interned string held at idx, if any.
func (w *worksheet) release(c *chunk, idx uint32) {
	switch cellType(c.types[idx]) {
	case cellText, cellError, cellFormula:
		w.strings.release(c.stringIDs[idx])
		c.stringIDs[idx] = 0
	}
}

func (w *worksheet) remove(row, col uint32) {
	key, idx := locate(row, col)
	c, exists := w.chunks[key]
	if !exists || c.types[idx] == uint8(cellEmpty) {
		return
	}
	w.release(c, idx)
	c.types[idx] = uint8(cellEmpty)
	c.occupied[idx/64] &^= 1 << (idx % 64)
	c.count--
	if c.count == 0 {
		delete(w.chunks, key)
	}
}

// clear empties the sheet and returns its strings to the table.
func (w *worksheet) clear() {
	for _, c := range w.chunks {
		for idx := range c.types {
			w.release(c, uint32(idx))
		}
	}
	w.chunks = make(map[chunkKey]*chunk)
}

// positions lists occupied cells in row-major order.
func (w *worksheet) positions() []cellAddress {
	var result []cellAddress
	for key, c := range w.chunks {
		for word, bits := range c.occupied {
			for bit := uint32(0); bits != 0; bit++ {
				if bits&1 != 0 {
					idx := uint32(word)*64 + bit
					result = append(result, cellAddress{
						sheet: w.id,
						row:   key.row*chunkRows + idx%chunkRows,
						col:   key.col*chunkCols + idx/chunkRows,
					})
				}
				bits >>= 1
			}
		}
	}
	slices.SortFunc(result, func(a, b cellAddress) int {
		if c := cmp.Compare(a.row, b.row); c != 0 {
			return c
		}
		return cmp.Compare(a.col, b.col)
	})
	return result
}

func (w *worksheet) len() int {
	total := 0
	for _, c := range w.chunks {
		total += c.count
	}
	return total
}
