package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Row is a result record whose keys keep the order in which they were first
// set. Backend payloads are decoded into Rows so that column order survives
// JSON round trips. The zero value is not usable; call NewRow.
type Row struct {
	keys []string
	vals map[string]any
}

// NewRow returns an empty Row.
func NewRow() *Row {
	return &Row{vals: make(map[string]any)}
}

// RowOf builds a Row from alternating key/value arguments.
func RowOf(kv ...any) *Row {
	r := NewRow()
	for i := 0; i+1 < len(kv); i += 2 {
		r.Set(fmt.Sprint(kv[i]), kv[i+1])
	}
	return r
}

// Set assigns v to key. A new key is appended; an existing key keeps its position.
func (r *Row) Set(key string, v any) {
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v
}

func (r *Row) Get(key string) (any, bool) {
	v, ok := r.vals[key]
	return v, ok
}

func (r *Row) Has(key string) bool {
	_, ok := r.vals[key]
	return ok
}

func (r *Row) Delete(key string) {
	if _, ok := r.vals[key]; !ok {
		return
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Row) Len() int { return len(r.keys) }

// Clone returns a shallow copy.
func (r *Row) Clone() *Row {
	c := &Row{keys: make([]string, len(r.keys)), vals: make(map[string]any, len(r.vals))}
	copy(c.keys, r.keys)
	for k, v := range r.vals {
		c.vals[k] = v
	}
	return c
}

func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.vals[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Row) UnmarshalJSON(data []byte) error {
	v, err := ParseJSON(data)
	if err != nil {
		return err
	}
	row, ok := v.(*Row)
	if !ok {
		return errors.New("row: JSON value is not an object")
	}
	*r = *row
	return nil
}

// ParseJSON decodes data into a generic value tree: objects become *Row,
// arrays []any, numbers json.Number, plus string, bool and nil.
func ParseJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		row := NewRow()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			row.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return row, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}
