package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is an insertion-ordered JSON object. The gateway verifies the
// signature over the exact bytes we send, so field order is whatever the
// caller built, never sorted.
//
// Monetary fields must be added with Money so they are normalized before
// serialization. Errors are collected and reported by Err, MarshalJSON and
// Sign; the builder methods stay chainable.
type Payload struct {
	fields []field
	index  map[string]int
	err    *InvalidPayloadError
}

type field struct {
	key   string
	value any
}

func NewPayload() *Payload {
	return &Payload{index: make(map[string]int)}
}

// Set adds key with any JSON-marshalable value. Setting an existing key
// replaces the value in place and keeps its original position.
func (p *Payload) Set(key string, v any) *Payload {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[key]; ok {
		p.fields[i].value = v
		return p
	}
	p.index[key] = len(p.fields)
	p.fields = append(p.fields, field{key: key, value: v})
	return p
}

func (p *Payload) String(key, v string) *Payload { return p.Set(key, v) }

func (p *Payload) Int(key string, v int) *Payload { return p.Set(key, v) }

func (p *Payload) Bool(key string, v bool) *Payload { return p.Set(key, v) }

// Money declares key as a currency amount and stores it as a fixed
// two-decimal string.
func (p *Payload) Money(key string, v any) *Payload {
	s, err := NormalizeMoney(v)
	if err != nil {
		if p.err == nil {
			p.err = &InvalidPayloadError{Field: key, Value: v, Reason: err.Error()}
		}
		return p
	}
	return p.Set(key, s)
}

func (p *Payload) Object(key string, child *Payload) *Payload { return p.Set(key, child) }

// Array adds a list of nested objects. Lists of scalars go through Set.
func (p *Payload) Array(key string, items ...*Payload) *Payload {
	if items == nil {
		items = []*Payload{}
	}
	return p.Set(key, items)
}

// Keys returns the field names in serialization order.
func (p *Payload) Keys() []string {
	keys := make([]string, len(p.fields))
	for i, f := range p.fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the stored value for key. Money fields come back as their
// normalized string.
func (p *Payload) Get(key string) (any, bool) {
	i, ok := p.index[key]
	if !ok {
		return nil, false
	}
	return p.fields[i].value, true
}

// Err returns the first normalization failure anywhere in the tree.
func (p *Payload) Err() error {
	if err := p.invalid(); err != nil {
		return err
	}
	return nil
}

func (p *Payload) invalid() *InvalidPayloadError {
	if p == nil {
		return nil
	}
	if p.err != nil {
		return p.err
	}
	for _, f := range p.fields {
		switch v := f.value.(type) {
		case *Payload:
			if err := v.invalid(); err != nil {
				return err.withPrefix(f.key)
			}
		case []*Payload:
			for i, item := range v {
				if err := item.invalid(); err != nil {
					return err.withPrefix(fmt.Sprintf("%s[%d]", f.key, i))
				}
			}
		}
	}
	return nil
}

// MarshalJSON writes the compact form: no whitespace between tokens and no
// HTML escaping, matching what the gateway re-serializes on its side.
func (p *Payload) MarshalJSON() ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range p.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeCompact(&buf, f.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeCompact(&buf, f.value); err != nil {
			return nil, fmt.Errorf("encode %q: %w", f.key, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Serialize returns the exact body bytes that are signed and transmitted.
func (p *Payload) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCompact(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCompact(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
