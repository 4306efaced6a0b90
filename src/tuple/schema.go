package tuple

import "github.com/pkg/errors"

// Column describes one column of a schema. Size applies to Varchar (maximum
// byte length) and Char (exact byte length); other kinds ignore it.
type Column struct {
	Name string
	Kind Kind
	Size int
}

// Schema is the ordered column list of one table. It is supplied by the
// catalog collaborator; the storage core only uses it to drive encoding
// widths and never validates it beyond that.
type Schema struct {
	Columns []Column
}

func NewSchema(cols ...Column) Schema {
	return Schema{Columns: cols}
}

// ColumnIndex finds a column position by name, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, col := range s.Columns {
		if col.Name == name {
			return i
		}
	}
	return -1
}

func (s Schema) checkRow(row Row) error {
	if len(row) != len(s.Columns) {
		return errors.Errorf("row has %d values, schema has %d columns", len(row), len(s.Columns))
	}
	for i, v := range row {
		if v.Kind != s.Columns[i].Kind {
			return errors.Errorf("column %s: value kind %s, want %s",
				s.Columns[i].Name, v.Kind, s.Columns[i].Kind)
		}
	}
	return nil
}
