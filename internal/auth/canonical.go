// Package auth verifies requests signed by trusted frontends.
//
// A frontend signs a request by building its canonical form, computing
// HMAC-SHA256 over it with the shared key and sending the hex digest in
// the request_signature field. The server rebuilds the canonical form from
// the decoded request and compares digests in constant time.
//
// Canonical form: every field except request_signature, sorted byte-wise by
// key, rendered as key=value and joined with "&":
//
//	email=a@x.com&name=A&svg_data=<svg></svg>
package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
)

// SignatureField is the request field carrying the signature. It is never
// part of the canonical form.
const SignatureField = "request_signature"

// Param is one already-stringified request field.
type Param struct {
	Key   string
	Value string
}

// Params is the list of fields a request contributes to its canonical form.
// Handlers build it from the typed request, so every value has exactly one
// string rendering.
type Params []Param

// Add appends a field.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// AddOptional appends a field only when it was sent. A field sent as null
// renders as an empty value, the same as FormatValue(nil).
func (p Params) AddOptional(key string, sent bool, value *string) Params {
	if !sent {
		return p
	}
	if value == nil {
		return p.Add(key, "")
	}
	return p.Add(key, *value)
}

// Canonicalize renders params as the signing input. The signature field is
// dropped, so signing a payload with or without it gives the same bytes.
func Canonicalize(params Params) []byte {
	fields := make(Params, 0, len(params))
	for _, p := range params {
		if p.Key == SignatureField {
			continue
		}
		fields = append(fields, p)
	}
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })

	var b bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.Bytes()
}

// CanonicalizeMap canonicalizes a loosely-typed payload, such as a decoded
// JSON object, using FormatValue for every value.
func CanonicalizeMap(payload map[string]any) ([]byte, error) {
	params, err := ParamsFromMap(payload)
	if err != nil {
		return nil, err
	}
	return Canonicalize(params), nil
}

// ParamsFromMap converts a payload map to Params.
func ParamsFromMap(payload map[string]any) (Params, error) {
	params := make(Params, 0, len(payload))
	for k, v := range payload {
		s, err := FormatValue(v)
		if err != nil {
			return nil, fmt.Errorf("auth: formatting field %q: %w", k, err)
		}
		params = params.Add(k, s)
	}
	return params, nil
}

// FormatValue is the single stringification rule shared by signers and the
// verifier:
//
//	nil                  ""
//	string               as is
//	bool                 true / false
//	integers             base 10
//	floats               shortest decimal, no exponent (1.5, 100, 0.001)
//	json.Number          its literal text
//	time.Time            RFC 3339 with nanoseconds, in UTC
//	maps, slices, other  compact JSON, object keys sorted at every level
func FormatValue(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case json.Number:
		return x.String(), nil
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano), nil
	}

	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", nil
		}
		return FormatValue(rv.Elem().Interface())
	}
	return canonicalJSON(v)
}

// canonicalJSON round-trips v through a generic tree so that encoding/json
// sorts object keys recursively, whatever the original Go type was.
func canonicalJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", err
	}

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return "", err
	}
	return string(bytes.TrimSuffix(b.Bytes(), []byte("\n"))), nil
}
