// Package workbook is an in-memory multi-sheet cell store that evaluates its
// formula cells with the formula engine. formula results are cached and
// dropped when anything they read changes.
package workbook

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vogtb/go-formula/packages/formula"
)

// Workbook holds named worksheets. the zero value is not usable, call New.
// all methods are safe for concurrent use; evaluations are serialised.
type Workbook struct {
	mu      sync.Mutex
	engine  *formula.Engine
	log     *zap.SugaredLogger
	strings *stringTable
	sheets  *sheetTable
	graph   *dependencyGraph
}

// Option configures a Workbook.
type Option func(*Workbook)

// WithLogger sets the logger. the default discards everything.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(w *Workbook) {
		if log != nil {
			w.log = log
		}
	}
}

// New returns an empty workbook evaluating with engine, or with a default
// engine when engine is nil.
func New(engine *formula.Engine, opts ...Option) *Workbook {
	if engine == nil {
		engine = formula.NewEngine()
	}
	w := &Workbook{
		engine:  engine,
		log:     zap.NewNop().Sugar(),
		strings: newStringTable(),
		sheets:  newSheetTable(),
		graph:   newDependencyGraph(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Engine returns the engine formulas are evaluated with.
func (w *Workbook) Engine() *formula.Engine {
	return w.engine
}

// splitAddress separates "Sheet!A1" or "'My Sheet'!A1" into sheet and cell.
func splitAddress(address string) (sheet, cell string) {
	i := strings.LastIndexByte(address, '!')
	if i < 0 {
		return "", strings.TrimSpace(address)
	}
	sheet = strings.TrimSpace(address[:i])
	if len(sheet) >= 2 && sheet[0] == '\'' && sheet[len(sheet)-1] == '\'' {
		sheet = strings.ReplaceAll(sheet[1:len(sheet)-1], "''", "'")
	}
	return sheet, strings.TrimSpace(address[i+1:])
}

// resolveAddress maps an address onto a defined sheet. an unqualified
// address belongs to fallback, or to the first sheet when fallback is "".
func (w *Workbook) resolveAddress(address, fallback string) (*worksheet, cellAddress, error) {
	sheetName, ref := splitAddress(address)
	if sheetName == "" {
		sheetName = fallback
	}
	if sheetName == "" {
		names := w.sheets.names()
		if len(names) == 0 {
			return nil, cellAddress{}, newError(FailedPrecondition, "workbook has no worksheets")
		}
		sheetName = names[0]
	}
	ws, exists := w.sheets.lookup(sheetName)
	if !exists {
		return nil, cellAddress{}, newError(NotFound, "worksheet %q not found", sheetName)
	}
	pos, ok := formula.ParseCell(strings.ReplaceAll(ref, "$", ""))
	if !ok {
		return nil, cellAddress{}, newError(InvalidArgument, "invalid cell address %q", address)
	}
	if !inBounds(pos) {
		return nil, cellAddress{}, newError(InvalidArgument, "cell address %q is outside the sheet", address)
	}
	return ws, cellAddress{sheet: ws.id, row: uint32(pos.Row - 1), col: uint32(pos.Col - 1)}, nil
}

// sheet limits, A1 through XFD1048576
const (
	maxRows = 1 << 20
	maxCols = 1 << 14
)

func inBounds(pos formula.Address) bool {
	return pos.Valid() && pos.Row <= maxRows && pos.Col <= maxCols
}

// qualified renders addr as "Sheet!A1".
func (w *Workbook) qualified(addr cellAddress) string {
	pos := formula.Address{Col: int(addr.col) + 1, Row: int(addr.row) + 1}
	return w.sheets.name(addr.sheet) + "!" + pos.String()
}

// Get returns the value of a cell. formula cells are evaluated, or served
// from cache when nothing they read has changed.
func (w *Workbook) Get(address string) (formula.Value, error) {
	return w.GetContext(context.Background(), address)
}

// GetContext is Get with a caller supplied context.
func (w *Workbook) GetContext(ctx context.Context, address string) (formula.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ws, addr, err := w.resolveAddress(address, "")
	if err != nil {
		return formula.Value{}, err
	}
	return w.value(ctx, ws, addr), nil
}

// Formula returns the source of a formula cell, or "" for any other cell.
func (w *Workbook) Formula(address string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ws, addr, err := w.resolveAddress(address, "")
	if err != nil {
		return "", err
	}
	return ws.get(addr.row, addr.col).source, nil
}

// value reads a cell, evaluating formulas. the caller holds w.mu.
func (w *Workbook) value(ctx context.Context, ws *worksheet, addr cellAddress) formula.Value {
	c := ws.get(addr.row, addr.col)
	if c.typ != cellFormula {
		return c.value
	}
	if v, ok := w.graph.cached(addr); ok {
		return v
	}
	v := w.engine.EvaluateCell(ctx, w.qualified(addr), c.source, resolver{w})
	w.graph.store(addr, v)
	return v
}

// Set stores a value. text starting with "=" is a formula, text starting
// with "#" is an error value, nil empties the cell. other values are
// converted like resolver results.
func (w *Workbook) Set(address string, value any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ws, addr, err := w.resolveAddress(address, "")
	if err != nil {
		return err
	}

	if text, ok := value.(string); ok && len(text) > 1 && text[0] == '=' {
		ws.setFormula(addr.row, addr.col, text)
		w.registerFormula(addr, text)
		affected := w.graph.invalidate(addr)
		w.log.Debugw("formula set", "cell", w.qualified(addr), "formula", text, "invalidated", len(affected))
		return nil
	}

	if ws.get(addr.row, addr.col).typ == cellFormula {
		w.graph.clearFormula(addr)
	}
	ws.set(addr.row, addr.col, formula.FromAny(value))
	affected := w.graph.invalidate(addr)
	w.log.Debugw("value set", "cell", w.qualified(addr), "invalidated", len(affected))
	return nil
}

// registerFormula records the static references of a formula cell and
// whether it calls a volatile function.
func (w *Workbook) registerFormula(addr cellAddress, source string) {
	tokens := formula.Tokenize(source)
	volatile := false
	for _, tok := range tokens {
		if tok.Type == formula.TokenFunction && isVolatile(w.engine.ResolveFunctionName(tok.Value)) {
			volatile = true
		}
	}
	w.graph.setFormula(addr, volatile)

	for _, tok := range tokens {
		if tok.Type != formula.TokenCell && tok.Type != formula.TokenRange {
			continue
		}
		sheet := addr.sheet
		if tok.Sheet != "" {
			sheet = w.sheets.id(tok.Sheet)
		}
		r, ok := formula.ParseRange(tok.Value)
		if !ok || !inBounds(r.Start) {
			continue
		}
		// cells past the limits read as #REF! and can never change
		r.End.Row = min(r.End.Row, maxRows)
		r.End.Col = min(r.End.Col, maxCols)
		if r.Start == r.End {
			w.graph.addCellDependency(addr, cellAddress{
				sheet: sheet,
				row:   uint32(r.Start.Row - 1),
				col:   uint32(r.Start.Col - 1),
			})
			continue
		}
		w.graph.addRangeDependency(addr, rangeAddress{
			sheet:    sheet,
			startRow: uint32(r.Start.Row - 1),
			startCol: uint32(r.Start.Col - 1),
			endRow:   uint32(r.End.Row - 1),
			endCol:   uint32(r.End.Col - 1),
		})
	}
}

// volatile functions produce a different result without any cell changing
var volatileFunctions = map[string]struct{}{
	"TODAY": {},
}

func isVolatile(name string) bool {
	_, ok := volatileFunctions[name]
	return ok
}

// Remove empties a cell. removing an empty cell is not an error.
func (w *Workbook) Remove(address string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ws, addr, err := w.resolveAddress(address, "")
	if err != nil {
		return err
	}
	if ws.get(addr.row, addr.col).typ == cellFormula {
		w.graph.clearFormula(addr)
	}
	ws.remove(addr.row, addr.col)
	w.graph.invalidate(addr)
	return nil
}

// validSheetName rejects names formulas could not refer to.
func validSheetName(name string) error {
	if strings.TrimSpace(name) == "" {
		return newError(InvalidArgument, "worksheet name is empty")
	}
	if strings.ContainsAny(name, "!") {
		return newError(InvalidArgument, "worksheet name %q contains '!'", name)
	}
	return nil
}

// AddWorksheet creates an empty worksheet. formulas that already refer to
// the name start reading it.
func (w *Workbook) AddWorksheet(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := validSheetName(name); err != nil {
		return err
	}
	if _, exists := w.sheets.lookup(name); exists {
		return newError(AlreadyExists, "worksheet %q already exists", name)
	}
	id := w.sheets.define(name, newWorksheet(w.strings))
	w.graph.invalidateSheet(id)
	w.log.Debugw("worksheet added", "sheet", name, "id", id)
	return nil
}

// RemoveWorksheet deletes a worksheet and its cells. formulas elsewhere
// that refer to it evaluate to #REF! from then on.
func (w *Workbook) RemoveWorksheet(name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	ws, exists := w.sheets.lookup(name)
	if !exists {
		return newError(NotFound, "worksheet %q not found", name)
	}
	w.graph.invalidateSheet(ws.id)
	w.graph.forgetSheet(ws.id)
	ws.clear()
	w.sheets.undefine(name)
	w.log.Debugw("worksheet removed", "sheet", name)
	return nil
}

// RenameWorksheet gives a worksheet a new name. references are not
// rewritten: formulas using the old name evaluate to #REF! and formulas
// already using the new name start reading this sheet.
func (w *Workbook) RenameWorksheet(oldName, newName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := validSheetName(newName); err != nil {
		return err
	}
	ws, exists := w.sheets.lookup(oldName)
	if !exists {
		return newError(NotFound, "worksheet %q not found", oldName)
	}
	if strings.EqualFold(oldName, newName) {
		w.sheets.define(newName, ws)
		return nil
	}
	if _, taken := w.sheets.lookup(newName); taken {
		return newError(AlreadyExists, "worksheet %q already exists", newName)
	}

	oldID := ws.id
	var formulas []cellAddress
	for _, addr := range ws.positions() {
		if ws.get(addr.row, addr.col).typ == cellFormula {
			formulas = append(formulas, addr)
		}
	}
	w.graph.invalidateSheet(oldID)
	w.graph.forgetSheet(oldID)
	w.sheets.undefine(oldName)
	newID := w.sheets.define(newName, ws)
	w.graph.invalidateSheet(newID)

	for _, addr := range formulas {
		addr.sheet = newID
		w.registerFormula(addr, ws.get(addr.row, addr.col).source)
	}
	w.log.Debugw("worksheet renamed", "from", oldName, "to", newName, "formulas", len(formulas))
	return nil
}

// DoesWorksheetExist reports whether a worksheet called name is defined.
func (w *Workbook) DoesWorksheetExist(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, exists := w.sheets.lookup(name)
	return exists
}

// ListWorksheets returns the worksheet names in creation order.
func (w *Workbook) ListWorksheets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sheets.names()
}

// Cells returns the occupied addresses of a worksheet in row-major order.
func (w *Workbook) Cells(sheet string) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ws, exists := w.sheets.lookup(sheet)
	if !exists {
		return nil, newError(NotFound, "worksheet %q not found", sheet)
	}
	positions := ws.positions()
	result := make([]string, 0, len(positions))
	for _, addr := range positions {
		result = append(result, formula.Address{Col: int(addr.col) + 1, Row: int(addr.row) + 1}.String())
	}
	return result, nil
}

// Calculate evaluates every formula cell whose result is not cached,
// precedents first. it stops early when ctx is done.
func (w *Workbook) Calculate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	order := w.graph.calculationOrder()
	for _, addr := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		ws, exists := w.sheets.defined[addr.sheet]
		if !exists {
			continue
		}
		w.value(ctx, ws, addr)
	}
	w.log.Debugw("calculated", "cells", len(order))
	return nil
}

// resolver serves cell values to the engine. it runs inside an evaluation
// started by a Workbook method, which already holds the lock.
type resolver struct {
	w *Workbook
}

var _ formula.BatchResolver = resolver{}

func (r resolver) ResolveCell(ctx context.Context, ref string) (formula.Value, error) {
	ws, addr, err := r.w.resolveAddress(ref, formula.SheetFrom(ctx))
	if err != nil {
		return formula.Value{}, err
	}
	return r.w.value(ctx, ws, addr), nil
}

// ResolveCells resolves members one by one. a member that cannot be
// resolved is #REF! without failing the others.
func (r resolver) ResolveCells(ctx context.Context, refs []string) ([]formula.Value, error) {
	values := make([]formula.Value, len(refs))
	for i, ref := range refs {
		v, err := r.ResolveCell(ctx, ref)
		if err != nil {
			v = formula.Err(formula.ErrRef)
		}
		values[i] = v
	}
	return values, nil
}
