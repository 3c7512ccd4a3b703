package meetings

import (
	"encoding/json"
	"errors"
)

// Table payload failure codes. These double as the `detail` codes surfaced
// by the HTTP layer.
var (
	ErrNotATable         = errors.New("not_a_table")
	ErrInvalidTableShape = errors.New("invalid_table_shape")
	ErrInvalidTableRows  = errors.New("invalid_table_rows")
	ErrRowOutOfRange     = errors.New("row_out_of_range")
	ErrColOutOfRange     = errors.New("col_out_of_range")
	ErrIndexOutOfRange   = errors.New("index_out_of_range")
	ErrRowNotList        = errors.New("row_should_be_list")
	ErrNameNotString     = errors.New("name_should_be_string")
	ErrWidthNotInt       = errors.New("width_should_be_int_or_null")
)

// MergeRegion describes one merged cell region of a table.
type MergeRegion struct {
	Row     int `json:"row"`
	Col     int `json:"col"`
	RowSpan int `json:"rowSpan"`
	ColSpan int `json:"colSpan"`
}

// TablePayload is the canonical structured payload of a table block. Row
// cells carry arbitrary JSON values; nil means an empty cell.
type TablePayload struct {
	Header    bool          `json:"header"`
	Cols      []string      `json:"cols"`
	Rows      [][]any       `json:"rows"`
	ColWidths []*int        `json:"colWidths"`
	Merges    []MergeRegion `json:"merges"`
}

// ParseTablePayload decodes and validates the raw payload of a table block.
// The returned payload is not yet normalized; callers combine this with
// Normalize (or use NormalizeBlockPayload).
func ParseTablePayload(blockType BlockType, raw string) (*TablePayload, error) {
	if blockType != BlockTypeTable {
		return nil, ErrNotATable
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil || doc == nil {
		return nil, ErrNotATable
	}

	var cols []string
	if rawCols, ok := doc["cols"]; !ok || json.Unmarshal(rawCols, &cols) != nil || cols == nil {
		return nil, ErrInvalidTableShape
	}

	var rawRows []json.RawMessage
	if rowsDoc, ok := doc["rows"]; !ok || json.Unmarshal(rowsDoc, &rawRows) != nil {
		return nil, ErrInvalidTableShape
	}
	if rawRows == nil {
		return nil, ErrInvalidTableShape
	}

	rows := make([][]any, 0, len(rawRows))
	for _, rawRow := range rawRows {
		var row []any
		if err := json.Unmarshal(rawRow, &row); err != nil || row == nil && string(rawRow) != "[]" {
			return nil, ErrInvalidTableRows
		}
		if row == nil {
			row = []any{}
		}
		rows = append(rows, row)
	}

	payload := &TablePayload{Header: true, Cols: cols, Rows: rows}

	if rawHeader, ok := doc["header"]; ok {
		var header bool
		if err := json.Unmarshal(rawHeader, &header); err == nil {
			payload.Header = header
		}
	}
	if rawWidths, ok := doc["colWidths"]; ok {
		var widths []*int
		if err := json.Unmarshal(rawWidths, &widths); err == nil && widths != nil {
			payload.ColWidths = widths
		}
	}
	if rawMerges, ok := doc["merges"]; ok {
		var merges []MergeRegion
		if err := json.Unmarshal(rawMerges, &merges); err == nil && merges != nil {
			payload.Merges = merges
		}
	}

	return payload, nil
}

// Normalize coerces the payload to its canonical shape: every row and the
// colWidths list are truncated or null-padded to exactly len(cols) entries,
// and the optional fields are materialized. Idempotent.
func (p *TablePayload) Normalize() {
	target := len(p.Cols)

	for i, row := range p.Rows {
		p.Rows[i] = fitRow(row, target)
	}

	if p.ColWidths == nil {
		p.ColWidths = make([]*int, target)
	} else if len(p.ColWidths) < target {
		padded := make([]*int, target)
		copy(padded, p.ColWidths)
		p.ColWidths = padded
	} else if len(p.ColWidths) > target {
		p.ColWidths = p.ColWidths[:target]
	}

	if p.Merges == nil {
		p.Merges = []MergeRegion{}
	}
	if p.Rows == nil {
		p.Rows = [][]any{}
	}
}

func fitRow(row []any, target int) []any {
	if len(row) == target {
		return row
	}
	fitted := make([]any, target)
	copy(fitted, row)
	return fitted
}

// Encode serializes the payload back to its stored JSON form.
func (p *TablePayload) Encode() (string, error) {
	encoded, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// NormalizeBlockPayload parses, normalizes and re-encodes the payload of a
// table block in place.
func NormalizeBlockPayload(block *Block) error {
	payload, err := ParseTablePayload(block.Type, block.RichPayload)
	if err != nil {
		return err
	}
	payload.Normalize()
	encoded, err := payload.Encode()
	if err != nil {
		return err
	}
	block.RichPayload = encoded
	return nil
}

// UpdateCell replaces the value at (row, col).
func (p *TablePayload) UpdateCell(row, col int, value any) error {
	if row < 0 || row >= len(p.Rows) || len(p.Rows) == 0 {
		return ErrRowOutOfRange
	}
	if col < 0 || col >= len(p.Cols) {
		return ErrColOutOfRange
	}
	p.Rows[row][col] = value
	return nil
}

// InsertRow inserts a row at index. A nil row inserts all-null cells; a
// supplied row is truncated or null-padded to the column count.
func (p *TablePayload) InsertRow(index int, row []any) error {
	if index < 0 || index > len(p.Rows) {
		return ErrIndexOutOfRange
	}
	fitted := fitRow(row, len(p.Cols))
	p.Rows = append(p.Rows, nil)
	copy(p.Rows[index+1:], p.Rows[index:])
	p.Rows[index] = fitted
	return nil
}

// DeleteRow removes the row at index.
func (p *TablePayload) DeleteRow(index int) error {
	if index < 0 || index >= len(p.Rows) {
		return ErrIndexOutOfRange
	}
	p.Rows = append(p.Rows[:index], p.Rows[index+1:]...)
	return nil
}

// InsertCol inserts a column at index, backfilling every row with the
// default value and inserting the width.
func (p *TablePayload) InsertCol(index int, name string, defaultValue any, width *int) error {
	if index < 0 || index > len(p.Cols) {
		return ErrIndexOutOfRange
	}
	p.Cols = append(p.Cols, "")
	copy(p.Cols[index+1:], p.Cols[index:])
	p.Cols[index] = name

	for i, row := range p.Rows {
		row = append(row, nil)
		copy(row[index+1:], row[index:])
		row[index] = defaultValue
		p.Rows[i] = row
	}

	p.ColWidths = append(p.ColWidths, nil)
	copy(p.ColWidths[index+1:], p.ColWidths[index:])
	p.ColWidths[index] = width
	return nil
}

// DeleteCol removes the column at index from cols, every row long enough,
// and colWidths.
func (p *TablePayload) DeleteCol(index int) error {
	if index < 0 || index >= len(p.Cols) {
		return ErrIndexOutOfRange
	}
	p.Cols = append(p.Cols[:index], p.Cols[index+1:]...)
	for i, row := range p.Rows {
		if len(row) > index {
			p.Rows[i] = append(row[:index], row[index+1:]...)
		}
	}
	if len(p.ColWidths) > index {
		p.ColWidths = append(p.ColWidths[:index], p.ColWidths[index+1:]...)
	}
	return nil
}

// RenameCol sets the column name at index.
func (p *TablePayload) RenameCol(index int, name string) error {
	if index < 0 || index >= len(p.Cols) {
		return ErrIndexOutOfRange
	}
	p.Cols[index] = name
	return nil
}

// SetColWidth sets the column width at index; nil clears it.
func (p *TablePayload) SetColWidth(index int, width *int) error {
	if index < 0 || index >= len(p.Cols) {
		return ErrIndexOutOfRange
	}
	p.ColWidths[index] = width
	return nil
}
