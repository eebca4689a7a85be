// Package report orders inventory rows and renders them as a colored table,
// JSON or CSV.
package report

import (
	"github.com/google/btree"

	"github.com/yairfalse/azruntime/inventory"
)

// item is a row plus its insertion sequence, which keeps equal sort keys in
// arrival order.
type item struct {
	row inventory.Row
	seq int
}

func less(a, b item) bool {
	if a.row.Status != b.row.Status {
		return a.row.Status < b.row.Status
	}
	if a.row.VM.ResourceGroup != b.row.VM.ResourceGroup {
		return a.row.VM.ResourceGroup < b.row.VM.ResourceGroup
	}
	if a.row.VM.Size != b.row.VM.Size {
		return a.row.VM.Size < b.row.VM.Size
	}
	return a.seq < b.seq
}

// RowSet keeps rows ordered by status, resource group and size.
type RowSet struct {
	tree *btree.BTreeG[item]
	seq  int
}

// NewRowSet creates an empty set.
func NewRowSet() *RowSet {
	return &RowSet{tree: btree.NewG(16, less)}
}

// Add inserts rows.
func (s *RowSet) Add(rows ...inventory.Row) {
	for _, r := range rows {
		s.tree.ReplaceOrInsert(item{row: r, seq: s.seq})
		s.seq++
	}
}

// Len returns the number of rows.
func (s *RowSet) Len() int {
	return s.tree.Len()
}

// Rows returns the rows in order.
func (s *RowSet) Rows() []inventory.Row {
	rows := make([]inventory.Row, 0, s.tree.Len())
	s.tree.Ascend(func(it item) bool {
		rows = append(rows, it.row)
		return true
	})
	return rows
}
