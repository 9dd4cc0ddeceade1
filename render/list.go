package render

import (
	"fleetdash/models"
	"fleetdash/service"
)

// List is the ordered device list. It is only used from the dashboard
// loop.
type List struct {
	publisher Publisher
	rows      []*RowEntry
}

var _ service.ListRenderer = (*List)(nil)

func NewList(publisher Publisher) *List {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &List{publisher: publisher}
}

// RowEntry is one rendered list row.
type RowEntry struct {
	list *List
	row  models.Row
}

func (r *RowEntry) Update(row models.Row) {
	r.row = row
	r.list.publisher.BroadcastToAll(models.ViewEvent{Type: models.ViewRowUpdated, Data: row})
}

func (r *RowEntry) Row() models.Row {
	return r.row
}

func (l *List) AppendRow(row models.Row) service.RowHandle {
	entry := &RowEntry{list: l, row: row}
	l.rows = append(l.rows, entry)
	l.publisher.BroadcastToAll(models.ViewEvent{Type: models.ViewRowAdded, Data: row})
	return entry
}

func (l *List) RemoveRow(h service.RowHandle) {
	entry, ok := h.(*RowEntry)
	if !ok {
		return
	}
	for i, existing := range l.rows {
		if existing == entry {
			l.rows = append(l.rows[:i], l.rows[i+1:]...)
			l.publisher.BroadcastToAll(models.ViewEvent{
				Type: models.ViewRowRemoved,
				Data: models.Row{ID: entry.row.ID},
			})
			return
		}
	}
}

// ReorderRows puts rows in the order of ids. Rows not named keep their
// relative order after the named ones.
func (l *List) ReorderRows(ids []string) {
	byID := make(map[string]*RowEntry, len(l.rows))
	for _, entry := range l.rows {
		byID[entry.row.ID] = entry
	}
	rows := make([]*RowEntry, 0, len(l.rows))
	for _, id := range ids {
		if entry, ok := byID[id]; ok {
			rows = append(rows, entry)
			delete(byID, id)
		}
	}
	for _, entry := range l.rows {
		if _, ok := byID[entry.row.ID]; ok {
			rows = append(rows, entry)
		}
	}
	l.rows = rows

	order := make([]string, 0, len(rows))
	for _, entry := range rows {
		order = append(order, entry.row.ID)
	}
	l.publisher.BroadcastToAll(models.ViewEvent{Type: models.ViewRowsReordered, Data: order})
}

// Query returns the row with id, if present.
func (l *List) Query(id string) (models.Row, bool) {
	for _, entry := range l.rows {
		if entry.row.ID == id {
			return entry.row, true
		}
	}
	return models.Row{}, false
}

// Rows returns every row in display order.
func (l *List) Rows() []models.Row {
	rows := make([]models.Row, 0, len(l.rows))
	for _, entry := range l.rows {
		rows = append(rows, entry.row)
	}
	return rows
}

func (l *List) Len() int {
	return len(l.rows)
}
