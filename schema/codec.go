package schema

import (
	"github.com/HansdasC/utype"
	"github.com/HansdasC/utype/codec"
)

// ParseJSON decodes a JSON object and validates it into a T.
func (ps *Parser[T]) ParseJSON(data []byte, po ...utype.ParseOptions) (T, error) {
	m, err := codec.DecodeJSONMap(data)
	if err != nil {
		var zero T
		return zero, err
	}
	return ps.Parse(m, po...)
}

// ParseYAML decodes a YAML mapping and validates it into a T.
func (ps *Parser[T]) ParseYAML(data []byte, po ...utype.ParseOptions) (T, error) {
	m, err := codec.DecodeYAMLMap(data)
	if err != nil {
		var zero T
		return zero, err
	}
	return ps.Parse(m, po...)
}

// DumpJSON serializes an instance through the output schema as JSON.
func (ps *Parser[T]) DumpJSON(v T, po ...utype.ParseOptions) ([]byte, error) {
	m, err := ps.Dump(v, po...)
	if err != nil {
		return nil, err
	}
	return codec.EncodeJSON(m)
}
