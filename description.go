package factory

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// stateKey is the single field of a serialized Description.
const stateKey = "__definition"

// Description wraps an object description (a type identifier or a Map) so that,
// when it appears as an argument inside another description, the Builder builds
// it before using it.
//
//	b.Build(ctx, factory.M(
//		"__class", "Car",
//		"__construct()", factory.M("engine", factory.New("Engine")),
//		"driver", factory.New(factory.M("__class", "Person", "name", "John Doe")),
//	))
type Description struct {
	value any
}

// New wraps value. Nothing is validated until the Description is built.
func New(value any) Description {
	return Description{value: value}
}

// Value returns the wrapped description.
func (d Description) Value() any {
	return d.value
}

func (d Description) String() string {
	if m, ok := asMap(d.value); ok {
		if class, ok := m.Get(KeyClass); ok {
			return fmt.Sprintf("Description(%v)", class)
		}
		return "Description(<no class>)"
	}
	return fmt.Sprintf("Description(%v)", d.value)
}

func (d Description) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Description) UnmarshalJSON(data []byte) error {
	v, err := DecodeJSON(data)
	if err != nil {
		return err
	}
	restored, ok := v.(Description)
	if !ok {
		return InvalidStateError{Reason: fmt.Sprintf("missing %q field", stateKey)}
	}
	*d = restored
	return nil
}

func (d Description) MarshalCBOR() ([]byte, error) {
	wire, err := toWire(d, false)
	if err != nil {
		return nil, err
	}
	return cborEnc.Marshal(wire)
}

func (d *Description) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := cborDec.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := fromWire(raw)
	if err != nil {
		return err
	}
	restored, ok := v.(Description)
	if !ok {
		return InvalidStateError{Reason: fmt.Sprintf("missing %q field", stateKey)}
	}
	*d = restored
	return nil
}

// Fingerprint returns a stable hash of a description. Equal descriptions, including
// nested Descriptions and key order, hash equally. Funcs are identified by type and
// code pointer, so two closures of the same function literal hash alike.
func Fingerprint(description any) (string, error) {
	wire, err := toWire(description, true)
	if err != nil {
		return "", err
	}
	data, err := cborEnc.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
