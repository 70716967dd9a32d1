package types

// MultiValueSeparator joins repeated occurrences of one field in Record.Bag.
const MultiValueSeparator = "; "

// Field is a single stored occurrence of a named value.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is one event document read from the index. Fields keep the order in
// which they were stored, one entry per occurrence.
type Record struct {
	// DocID is the internal document id within the index it was read from
	DocID int `json:"doc_id"`

	// Fields holds every stored occurrence in encounter order
	Fields []Field `json:"fields"`
}

// Values returns all occurrences of the named field, or nil.
func (r *Record) Values(name string) []string {
	var out []string
	for _, f := range r.Fields {
		if f.Name == name {
			out = append(out, f.Value)
		}
	}
	return out
}

// Value returns the first occurrence of the named field.
func (r *Record) Value(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Bag returns the field bag keyed by name. Repeated occurrences are joined
// with MultiValueSeparator.
func (r *Record) Bag() map[string]string {
	bag := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		if prev, ok := bag[f.Name]; ok {
			bag[f.Name] = prev + MultiValueSeparator + f.Value
			continue
		}
		bag[f.Name] = f.Value
	}
	return bag
}
