package models

import (
	"encoding/json"
	"fmt"
)

// RecipientRecord is one row of ingested recipient data. Email is mandatory;
// Fields holds the remaining columns keyed by normalized field name.
type RecipientRecord struct {
	Email  string
	Fields map[string]string
}

// Context returns the template substitution context for the record.
func (r RecipientRecord) Context() map[string]string {
	ctx := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		ctx[k] = v
	}
	ctx["Email"] = r.Email
	return ctx
}

// MarshalJSON flattens the record into the wire shape the UI exchanges:
// {"Email": "...", "First_Name": "...", ...}.
func (r RecipientRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Fields)+1)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["Email"] = r.Email
	return json.Marshal(flat)
}

// UnmarshalJSON accepts a flat object and splits the Email key from the
// template fields. Non-string values are stringified.
func (r *RecipientRecord) UnmarshalJSON(data []byte) error {
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	r.Fields = make(map[string]string, len(flat))
	for k, v := range flat {
		var s string
		switch val := v.(type) {
		case nil:
		case string:
			s = val
		default:
			s = fmt.Sprint(val)
		}
		if k == "Email" {
			r.Email = s
			continue
		}
		r.Fields[k] = s
	}
	return nil
}
