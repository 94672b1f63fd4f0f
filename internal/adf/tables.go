package adf

import (
	"errors"
	"fmt"
)

// ErrNoTables reports a tree containing no table nodes at all.
var ErrNoTables = errors.New("adf: no tables in tree")

// RangeError reports an out-of-range table, row or column ordinal. Count
// is the number of elements actually present.
type RangeError struct {
	Unit  string // "table", "row" or "column"
	Index int
	Count int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("adf: %s index %d out of range (have %d)", e.Unit, e.Index, e.Count)
}

// Tables collects every table node in depth-first pre-order, including
// tables nested inside panels, expands and other blocks.
func Tables(root *Node) []*Node {
	var tables []*Node
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.Type == "table" {
			tables = append(tables, n)
		}
		for _, child := range n.Content {
			walk(child)
		}
	}
	walk(root)
	return tables
}

// table resolves the tableIndex-th table or fails without touching the tree.
func table(root *Node, tableIndex int) (*Node, error) {
	tables := Tables(root)
	if len(tables) == 0 {
		return nil, ErrNoTables
	}
	if tableIndex < 0 || tableIndex >= len(tables) {
		return nil, &RangeError{Unit: "table", Index: tableIndex, Count: len(tables)}
	}
	return tables[tableIndex], nil
}

// UpdateTableCell replaces the target cell's entire content with a single
// fresh paragraph wrapping value (an empty paragraph when value is empty).
// The cell's own type (tableCell vs tableHeader) is left alone.
func UpdateTableCell(root *Node, tableIndex, row, col int, value string) error {
	t, err := table(root, tableIndex)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(t.Content) {
		return &RangeError{Unit: "row", Index: row, Count: len(t.Content)}
	}
	cells := t.Content[row].Content
	if col < 0 || col >= len(cells) {
		return &RangeError{Unit: "column", Index: col, Count: len(cells)}
	}
	cells[col].Content = []*Node{NewParagraph(value)}
	return nil
}

// InsertTableRow builds a row from values and splices it at rowIndex.
// A rowIndex of -1 or >= the current row count appends. Returns the
// position the row landed at.
func InsertTableRow(root *Node, tableIndex, rowIndex int, values []string) (int, error) {
	t, err := table(root, tableIndex)
	if err != nil {
		return 0, err
	}
	row := BuildRow(values, "tableCell")
	if rowIndex == -1 || rowIndex >= len(t.Content) {
		t.Content = append(t.Content, row)
		return len(t.Content) - 1, nil
	}
	if rowIndex < 0 {
		return 0, &RangeError{Unit: "row", Index: rowIndex, Count: len(t.Content)}
	}
	t.Content = append(t.Content[:rowIndex], append([]*Node{row}, t.Content[rowIndex:]...)...)
	return rowIndex, nil
}

// DeleteTableRow removes and returns the rowIndex-th row so the caller
// can report what was deleted.
func DeleteTableRow(root *Node, tableIndex, rowIndex int) (*Node, error) {
	t, err := table(root, tableIndex)
	if err != nil {
		return nil, err
	}
	if rowIndex < 0 || rowIndex >= len(t.Content) {
		return nil, &RangeError{Unit: "row", Index: rowIndex, Count: len(t.Content)}
	}
	removed := t.Content[rowIndex]
	t.Content = append(t.Content[:rowIndex], t.Content[rowIndex+1:]...)
	return removed, nil
}

// BuildCell wraps value in a cell node holding one paragraph. cellType
// selects tableCell or tableHeader.
func BuildCell(value, cellType string) *Node {
	return &Node{Type: cellType, Content: []*Node{NewParagraph(value)}}
}

// BuildRow builds a tableRow from cell values in order.
func BuildRow(values []string, cellType string) *Node {
	cells := make([]*Node, 0, len(values))
	for _, v := range values {
		cells = append(cells, BuildCell(v, cellType))
	}
	return &Node{Type: "tableRow", Content: cells}
}
