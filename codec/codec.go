// Package codec decodes wire payloads into the loosely typed mappings the
// validators consume, and encodes validated output back out. JSON numbers
// decode as json.Number so integer precision survives until coercion.
package codec

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Format names a supported wire encoding.
type Format string

const (
	JSON    Format = "json"
	YAML    Format = "yaml"
	Msgpack Format = "msgpack"
)

// Decode unmarshals data in the given format into a generic value: mappings
// become map[string]any, sequences []any.
func Decode(format Format, data []byte) (any, error) {
	switch format {
	case JSON:
		return DecodeJSON(data)
	case YAML:
		return DecodeYAML(data)
	case Msgpack:
		return DecodeMsgpack(data)
	default:
		return nil, fmt.Errorf("codec: unsupported format %q", format)
	}
}

// Encode marshals a validated value in the given format.
func Encode(format Format, v any) ([]byte, error) {
	switch format {
	case JSON:
		return EncodeJSON(v)
	case YAML:
		return EncodeYAML(v)
	case Msgpack:
		return EncodeMsgpack(v)
	default:
		return nil, fmt.Errorf("codec: unsupported format %q", format)
	}
}

// DecodeJSON unmarshals JSON keeping numbers as json.Number.
func DecodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("codec: invalid json: %w", err)
	}
	return out, nil
}

// DecodeJSONMap unmarshals a JSON object.
func DecodeJSONMap(data []byte) (map[string]any, error) {
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected a json object, got %T", v)
	}
	return m, nil
}

// EncodeJSON marshals v as JSON.
func EncodeJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeYAML unmarshals YAML, normalizing mapping keys to strings.
func DecodeYAML(data []byte) (any, error) {
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("codec: invalid yaml: %w", err)
	}
	return normalizeKeys(out), nil
}

// DecodeYAMLMap unmarshals a YAML mapping.
func DecodeYAMLMap(data []byte) (map[string]any, error) {
	v, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("codec: expected a yaml mapping, got %T", v)
	}
	return m, nil
}

// EncodeYAML marshals v as YAML.
func EncodeYAML(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

// DecodeMsgpack unmarshals msgpack, normalizing mapping keys to strings.
func DecodeMsgpack(data []byte) (any, error) {
	var out any
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("codec: invalid msgpack: %w", err)
	}
	return normalizeKeys(out), nil
}

// EncodeMsgpack marshals v as msgpack.
func EncodeMsgpack(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// normalizeKeys rewrites map[any]any trees, which YAML and msgpack produce,
// into map[string]any trees.
func normalizeKeys(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeKeys(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalizeKeys(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalizeKeys(e)
		}
		return x
	default:
		return v
	}
}
