package factory

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

// tagOrderedMap marks a Map in CBOR: the content is a flat [k1, v1, k2, v2, ...]
// array so that key order survives deterministic encoding.
const tagOrderedMap = 60001

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("factory: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSignedOrFail,
	}.DecMode()
	if err != nil {
		panic("factory: CBOR decoder initialization failed: " + err.Error())
	}
}

// toWire rewrites a description into CBOR-encodable values. A Description becomes
// a native map with the single key __definition, a Map becomes a tagged array. With
// loose set, values CBOR cannot carry (funcs, channels) are replaced by a textual
// identity instead of failing.
func toWire(v any, loose bool) (any, error) {
	switch x := v.(type) {
	case Description:
		inner, err := toWire(x.value, loose)
		if err != nil {
			return nil, err
		}
		return map[string]any{stateKey: inner}, nil
	case Map, map[string]any:
		m, _ := asMap(x)
		flat := make([]any, 0, 2*len(m))
		for _, e := range m {
			inner, err := toWire(e.Value, loose)
			if err != nil {
				return nil, err
			}
			flat = append(flat, e.Key, inner)
		}
		return cbor.Tag{Number: tagOrderedMap, Content: flat}, nil
	case []any:
		out := make([]any, len(x))
		for i := range x {
			inner, err := toWire(x[i], loose)
			if err != nil {
				return nil, err
			}
			out[i] = inner
		}
		return out, nil
	}

	if v == nil {
		return nil, nil
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		if !loose {
			return nil, InvalidStateError{Reason: fmt.Sprintf("cannot serialize %T", v)}
		}
		return fmt.Sprintf("%s@%x", rv.Type(), rv.Pointer()), nil
	}
	return v, nil
}

func fromWire(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		inner, ok := x[stateKey]
		if !ok || len(x) != 1 {
			return nil, InvalidStateError{Reason: fmt.Sprintf("missing %q field", stateKey)}
		}
		value, err := fromWire(inner)
		if err != nil {
			return nil, err
		}
		return New(value), nil
	case cbor.Tag:
		if x.Number != tagOrderedMap {
			return x, nil
		}
		flat, ok := x.Content.([]any)
		if !ok || len(flat)%2 != 0 {
			return nil, InvalidStateError{Reason: "malformed ordered map"}
		}
		m := make(Map, 0, len(flat)/2)
		for i := 0; i < len(flat); i += 2 {
			key, ok := flat[i].(string)
			if !ok {
				return nil, InvalidStateError{Reason: fmt.Sprintf("ordered map key is %T", flat[i])}
			}
			value, err := fromWire(flat[i+1])
			if err != nil {
				return nil, err
			}
			m = append(m, Entry{Key: key, Value: value})
		}
		return m, nil
	case []any:
		out := make([]any, len(x))
		for i := range x {
			value, err := fromWire(x[i])
			if err != nil {
				return nil, err
			}
			out[i] = value
		}
		return out, nil
	}
	return v, nil
}

func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Map) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	decoded, ok := v.(Map)
	if !ok {
		return fmt.Errorf("decode map: got %T", v)
	}
	*m = decoded
	return nil
}

func encodeJSON(buf *bytes.Buffer, v any) error {
	switch x := v.(type) {
	case Description:
		buf.WriteString(`{"` + stateKey + `":`)
		if err := encodeJSON(buf, x.value); err != nil {
			return err
		}
		buf.WriteByte('}')
		return nil
	case Map, map[string]any:
		m, _ := asMap(x)
		buf.WriteByte('{')
		for i, e := range m {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeJSON(buf, e.Value); err != nil {
				return fmt.Errorf("encode %q: %w", e.Key, err)
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		buf.WriteByte('[')
		for i := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeJSON(buf, x[i]); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(data)
	if isFloat(v) && !bytes.ContainsAny(data, ".eE") {
		// 2.0 stays a float when decoded again.
		buf.WriteString(".0")
	}
	return nil
}

func isFloat(v any) bool {
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Float32 || k == reflect.Float64
}
