// internal/state/draft.go
package state

import "github.com/user/jirabot/internal/types"

// Draft is the partially filled issue-creation payload carried inside wizard
// states. It is owned by exactly one conversation and advanced by value; the
// value order defines the wizard step order.
type Draft struct {
	ProjectID   string
	IssueTypeID string
	Values      []types.FieldValue
}

// WithValue returns a copy of the draft with the field set. An existing
// value for the same field is replaced in place, preserving order.
func (d Draft) WithValue(fieldID, value string) Draft {
	values := make([]types.FieldValue, len(d.Values), len(d.Values)+1)
	copy(values, d.Values)
	d.Values = values
	for i := range d.Values {
		if d.Values[i].FieldID == fieldID {
			d.Values[i].Value = value
			return d
		}
	}
	d.Values = append(d.Values, types.FieldValue{FieldID: fieldID, Value: value})
	return d
}

// Value looks up a filled field by id.
func (d Draft) Value(fieldID string) (string, bool) {
	for _, v := range d.Values {
		if v.FieldID == fieldID {
			return v.Value, true
		}
	}
	return "", false
}
