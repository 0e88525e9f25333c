package column

import "iter"

// Values is an insertion-ordered map from Column to *TypedValue, optionally
// tagged with the name of the database it targets.
type Values struct {
	dbName string
	order  []Column
	byExpr map[string]*TypedValue
}

// NewValues creates an empty Values. dbName may be empty, in which case the
// executor's default database is used.
func NewValues(dbName string) *Values {
	return &Values{
		dbName: dbName,
		byExpr: make(map[string]*TypedValue),
	}
}

// DBName returns the target database tag, or "".
func (vs *Values) DBName() string { return vs.dbName }

// SetDBName sets the target database tag.
func (vs *Values) SetDBName(name string) { vs.dbName = name }

// Put adds or replaces the value for col. A replaced column keeps its
// original position.
func (vs *Values) Put(col Column, v *TypedValue) {
	if _, ok := vs.byExpr[col.SQLExpression()]; !ok {
		vs.order = append(vs.order, col)
	}
	vs.byExpr[col.SQLExpression()] = v
}

// Get returns the value for col.
func (vs *Values) Get(col Column) (*TypedValue, bool) {
	v, ok := vs.byExpr[col.SQLExpression()]
	return v, ok
}

// Remove deletes col and reports whether it was present.
func (vs *Values) Remove(col Column) bool {
	key := col.SQLExpression()
	if _, ok := vs.byExpr[key]; !ok {
		return false
	}
	delete(vs.byExpr, key)
	for i, c := range vs.order {
		if c.SQLExpression() == key {
			vs.order = append(vs.order[:i], vs.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of entries.
func (vs *Values) Len() int { return len(vs.order) }

// Columns returns the columns in insertion order.
func (vs *Values) Columns() []Column {
	out := make([]Column, len(vs.order))
	copy(out, vs.order)
	return out
}

// All iterates over the entries in insertion order.
func (vs *Values) All() iter.Seq2[Column, *TypedValue] {
	return func(yield func(Column, *TypedValue) bool) {
		for _, c := range vs.order {
			if !yield(c, vs.byExpr[c.SQLExpression()]) {
				return
			}
		}
	}
}

// Clone returns a copy whose entries can be changed without affecting vs.
// TypedValues are copied as well.
func (vs *Values) Clone() *Values {
	out := NewValues(vs.dbName)
	for c, v := range vs.All() {
		cp := *v
		out.Put(c, &cp)
	}
	return out
}
