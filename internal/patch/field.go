// Package patch models partial-update payloads. A Field distinguishes a key
// that was absent from the request body, a key explicitly set to null, and a
// key carrying a value.
package patch

import (
	"bytes"
	"encoding/json"
)

type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// UnmarshalJSON is only invoked for keys present in the object, which is what
// lets an absent key keep Set == false.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true

	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}

	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// HasValue reports whether the field was sent with a non-null value.
func (f Field[T]) HasValue() bool {
	return f.Set && !f.Null
}

// Apply writes the field into dst when it carries a value.
func (f Field[T]) Apply(dst *T) {
	if f.HasValue() {
		*dst = f.Value
	}
}

// ApplyPtr writes the field into a nullable destination: a value is stored,
// null clears it, absence leaves it untouched.
func (f Field[T]) ApplyPtr(dst **T) {
	if !f.Set {
		return
	}
	if f.Null {
		*dst = nil
		return
	}
	v := f.Value
	*dst = &v
}
