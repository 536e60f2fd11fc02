package board

import (
	"encoding/json"
	"fmt"
)

// Serialization helpers for the shared-document wire contract.
//
// Every document value is one whole Object encoded as JSON. The "type" field
// is the required discriminant; values that fail to parse or validate are
// rejected as malformed so that one bad entry from another participant never
// blocks applying the rest of the document.

// Marshal encodes an object to its whole-value document form.
func Marshal(o *Object) (json.RawMessage, error) {
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal object %s: %w", o.ID, err)
	}
	return raw, nil
}

// Decode parses and validates a document value. Any parse or validation
// failure is reported as ErrMalformedEntry; callers log and skip such
// entries rather than failing the session.
func Decode(raw json.RawMessage) (*Object, error) {
	var o Object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	return &o, nil
}

// Clone returns a deep copy of the object. Mutation is read-merge-write over
// the whole value, so writers copy before patching to keep the applied view
// and the pending write independent.
func Clone(o *Object) *Object {
	c := *o
	if o.ChildrenIDs != nil {
		c.ChildrenIDs = append([]string(nil), o.ChildrenIDs...)
	}
	if o.Start != nil {
		s := *o.Start
		c.Start = &s
	}
	if o.End != nil {
		e := *o.End
		c.End = &e
	}
	if o.StartPoint != nil {
		p := *o.StartPoint
		c.StartPoint = &p
	}
	if o.EndPoint != nil {
		p := *o.EndPoint
		c.EndPoint = &p
	}
	return &c
}
