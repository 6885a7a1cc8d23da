package workbook

import "github.com/vogtb/go-formula/packages/formula"

// cellAddress identifies a cell by sheet id and 0-based row and column.
type cellAddress struct {
	sheet uint32
	row   uint32
	col   uint32
}

// rangeAddress is an inclusive rectangle on one sheet.
type rangeAddress struct {
	sheet    uint32
	startRow uint32
	startCol uint32
	endRow   uint32
	endCol   uint32
}

func (r rangeAddress) contains(a cellAddress) bool {
	return a.sheet == r.sheet &&
		a.row >= r.startRow && a.row <= r.endRow &&
		a.col >= r.startCol && a.col <= r.endCol
}

// dependencyNode is a formula cell or a cell referenced by one.
type dependencyNode struct {
	precedents map[cellAddress]*dependencyNode // cells this cell reads
	dependents map[cellAddress]*dependencyNode // cells that read this cell
	ranges     map[rangeAddress]struct{}       // ranges this cell reads

	formula  bool
	volatile bool // calls a function whose result changes without edits

	value formula.Value // last computed result
	valid bool          // value reflects the current contents

	checked   uint64 // graph generation the cacheable flag was computed at
	cacheable bool
}

// dependencyGraph tracks which formula cells read which cells and ranges,
// and holds the cached result of each formula cell.
type dependencyGraph struct {
	nodes          map[cellAddress]*dependencyNode
	rangeObservers map[rangeAddress]map[cellAddress]struct{} // range -> cells reading it

	// bumped on every edge or formula change
	generation uint64
}

func newDependencyGraph() *dependencyGraph {
	return &dependencyGraph{
		nodes:          make(map[cellAddress]*dependencyNode),
		rangeObservers: make(map[rangeAddress]map[cellAddress]struct{}),
		generation:     1,
	}
}

func (dg *dependencyGraph) getOrCreateNode(addr cellAddress) *dependencyNode {
	if node, exists := dg.nodes[addr]; exists {
		return node
	}
	node := &dependencyNode{
		precedents: make(map[cellAddress]*dependencyNode),
		dependents: make(map[cellAddress]*dependencyNode),
		ranges:     make(map[rangeAddress]struct{}),
	}
	dg.nodes[addr] = node
	return node
}

// setFormula marks addr as a formula cell with no dependencies yet.
func (dg *dependencyGraph) setFormula(addr cellAddress, volatile bool) {
	dg.clearDependencies(addr)
	node := dg.getOrCreateNode(addr)
	node.formula = true
	node.volatile = volatile
	node.valid = false
	dg.generation++
}

// clearFormula turns addr back into a plain cell. dependents keep their
// edges to it.
func (dg *dependencyGraph) clearFormula(addr cellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	dg.clearDependencies(addr)
	node.formula = false
	node.volatile = false
	node.valid = false
	node.value = formula.Value{}
	dg.generation++
	dg.cleanupNodeIfEmpty(addr)
}

func (dg *dependencyGraph) cleanupNodeIfEmpty(addr cellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	if node.formula ||
		len(node.precedents) > 0 ||
		len(node.dependents) > 0 ||
		len(node.ranges) > 0 {
		return
	}
	delete(dg.nodes, addr)
}

// addCellDependency records that from reads to.
func (dg *dependencyGraph) addCellDependency(from, to cellAddress) {
	fromNode := dg.getOrCreateNode(from)
	toNode := dg.getOrCreateNode(to)
	fromNode.precedents[to] = toNode
	toNode.dependents[from] = fromNode
	dg.generation++
}

// addRangeDependency records that from reads every cell of r.
func (dg *dependencyGraph) addRangeDependency(from cellAddress, r rangeAddress) {
	node := dg.getOrCreateNode(from)
	node.ranges[r] = struct{}{}
	if dg.rangeObservers[r] == nil {
		dg.rangeObservers[r] = make(map[cellAddress]struct{})
	}
	dg.rangeObservers[r][from] = struct{}{}
	dg.generation++
}

// clearDependencies drops every edge leaving addr.
func (dg *dependencyGraph) clearDependencies(addr cellAddress) {
	node, exists := dg.nodes[addr]
	if !exists {
		return
	}
	for precedentAddr, precedent := range node.precedents {
		delete(precedent.dependents, addr)
		delete(node.precedents, precedentAddr)
		dg.cleanupNodeIfEmpty(precedentAddr)
	}
	for r := range node.ranges {
		if observers, exists := dg.rangeObservers[r]; exists {
			delete(observers, addr)
			if len(observers) == 0 {
				delete(dg.rangeObservers, r)
			}
		}
		delete(node.ranges, r)
	}
	dg.generation++
}

// invalidate drops the cached result of every formula cell that reads addr,
// directly, through a range or transitively, and of addr itself. it returns
// the formula cells whose results were dropped.
func (dg *dependencyGraph) invalidate(addr cellAddress) []cellAddress {
	visited := map[cellAddress]struct{}{addr: {}}
	queue := []cellAddress{addr}
	var affected []cellAddress
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if node, exists := dg.nodes[current]; exists && node.formula {
			node.valid = false
			node.value = formula.Value{}
			affected = append(affected, current)
		}
		for _, next := range dg.directDependents(current) {
			if _, seen := visited[next]; !seen {
				visited[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}
	return affected
}

// invalidateSheet invalidates everything that reads any cell of sheet.
func (dg *dependencyGraph) invalidateSheet(sheet uint32) []cellAddress {
	var roots []cellAddress
	for addr := range dg.nodes {
		if addr.sheet == sheet {
			roots = append(roots, addr)
		}
	}
	for r, observers := range dg.rangeObservers {
		if r.sheet == sheet {
			for observer := range observers {
				roots = append(roots, observer)
			}
		}
	}
	var affected []cellAddress
	for _, root := range roots {
		affected = append(affected, dg.invalidate(root)...)
	}
	return affected
}

// directDependents returns the cells reading addr, by reference or range.
func (dg *dependencyGraph) directDependents(addr cellAddress) []cellAddress {
	var result []cellAddress
	if node, exists := dg.nodes[addr]; exists {
		for dependent := range node.dependents {
			result = append(result, dependent)
		}
	}
	for r, observers := range dg.rangeObservers {
		if r.contains(addr) {
			for observer := range observers {
				result = append(result, observer)
			}
		}
	}
	return result
}

// directPrecedents returns the formula cells addr reads, by reference or
// range. plain cells are left out, they never need computing.
func (dg *dependencyGraph) directPrecedents(addr cellAddress) []cellAddress {
	node, exists := dg.nodes[addr]
	if !exists {
		return nil
	}
	var result []cellAddress
	for precedent, precedentNode := range node.precedents {
		if precedentNode.formula {
			result = append(result, precedent)
		}
	}
	for r := range node.ranges {
		for candidate, candidateNode := range dg.nodes {
			if candidateNode.formula && r.contains(candidate) {
				result = append(result, candidate)
			}
		}
	}
	return result
}

// cached returns the stored result of a formula cell.
func (dg *dependencyGraph) cached(addr cellAddress) (formula.Value, bool) {
	node, exists := dg.nodes[addr]
	if !exists || !node.valid {
		return formula.Value{}, false
	}
	return node.value, true
}

// store keeps v as the result of addr when the result cannot depend on the
// evaluation that produced it: the cell must not reach itself through its
// precedents and nothing it reads may be volatile.
func (dg *dependencyGraph) store(addr cellAddress, v formula.Value) bool {
	node, exists := dg.nodes[addr]
	if !exists || !node.formula || !dg.isCacheable(addr) {
		return false
	}
	node.value = v
	node.valid = true
	return true
}

func (dg *dependencyGraph) isCacheable(addr cellAddress) bool {
	node := dg.nodes[addr]
	if node.checked == dg.generation {
		return node.cacheable
	}
	cacheable := !node.volatile
	visited := make(map[cellAddress]struct{})
	stack := dg.directPrecedents(addr)
	for cacheable && len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == addr {
			cacheable = false
			break
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		if dg.nodes[current].volatile {
			cacheable = false
			break
		}
		stack = append(stack, dg.directPrecedents(current)...)
	}
	node.checked = dg.generation
	node.cacheable = cacheable
	return cacheable
}

// calculationOrder returns the formula cells with stale results, each
// after the formula cells it reads. members of a cycle come out in an
// arbitrary order.
func (dg *dependencyGraph) calculationOrder() []cellAddress {
	// three states: unvisited (absent), visiting (false), visited (true)
	state := make(map[cellAddress]bool)
	var order []cellAddress

	var visit func(addr cellAddress)
	visit = func(addr cellAddress) {
		if _, exists := state[addr]; exists {
			return
		}
		state[addr] = false
		for _, precedent := range dg.directPrecedents(addr) {
			visit(precedent)
		}
		state[addr] = true
		if node := dg.nodes[addr]; !node.valid {
			order = append(order, addr)
		}
	}

	for addr, node := range dg.nodes {
		if node.formula {
			visit(addr)
		}
	}
	return order
}

// forgetSheet turns every formula cell of sheet back into a plain cell.
func (dg *dependencyGraph) forgetSheet(sheet uint32) {
	for addr, node := range dg.nodes {
		if addr.sheet == sheet && node.formula {
			dg.clearFormula(addr)
		}
	}
}

func (dg *dependencyGraph) nodeCount() int {
	return len(dg.nodes)
}
