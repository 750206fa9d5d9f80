package codec_test

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/HansdasC/utype/codec"
)

func TestDecodeJSON_NumbersSurvive(t *testing.T) {
	v, err := codec.DecodeJSON([]byte(`{"id": 9007199254740993, "rate": 1.5}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m := v.(map[string]any)
	n, ok := m["id"].(json.Number)
	if !ok {
		t.Fatalf("numbers must decode as json.Number, got %T", m["id"])
	}
	i, err := n.Int64()
	if err != nil || i != 9007199254740993 {
		t.Fatalf("integer precision must survive, got %v %v", i, err)
	}
}

func TestDecodeJSONMap(t *testing.T) {
	m, err := codec.DecodeJSONMap([]byte(`{"a": 1}`))
	if err != nil || m["a"] == nil {
		t.Fatalf("decode map: %v %v", m, err)
	}
	if _, err := codec.DecodeJSONMap([]byte(`[1]`)); err == nil {
		t.Fatalf("a json array is not an object")
	}
	if _, err := codec.DecodeJSONMap([]byte(`{broken`)); err == nil {
		t.Fatalf("invalid json must fail")
	}
}

func TestYAML_RoundTrip(t *testing.T) {
	in := map[string]any{"name": "svc", "ports": []any{80, 443}}
	data, err := codec.EncodeYAML(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := codec.DecodeYAMLMap(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["name"] != "svc" {
		t.Fatalf("unexpected round trip %v", out)
	}
	ports, ok := out["ports"].([]any)
	if !ok || len(ports) != 2 {
		t.Fatalf("sequence round trip, got %v", out["ports"])
	}
}

func TestYAML_NestedKeysNormalized(t *testing.T) {
	v, err := codec.DecodeYAML([]byte("outer:\n  inner:\n    k: 1\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	outer, ok := v.(map[string]any)["outer"].(map[string]any)
	if !ok {
		t.Fatalf("nested mappings must be string-keyed, got %T", v.(map[string]any)["outer"])
	}
	if _, ok := outer["inner"].(map[string]any); !ok {
		t.Fatalf("normalization must recurse, got %T", outer["inner"])
	}
}

func TestMsgpack_RoundTrip(t *testing.T) {
	in := map[string]any{"k": "v", "n": 3}
	data, err := codec.EncodeMsgpack(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	v, err := codec.DecodeMsgpack(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["k"] != "v" {
		t.Fatalf("mappings must come back string-keyed, got %T %v", v, v)
	}
}

func TestFormatDispatch(t *testing.T) {
	data, err := codec.Encode(codec.JSON, map[string]any{"a": 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	v, err := codec.Decode(codec.JSON, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := v.(map[string]any); !ok {
		t.Fatalf("unexpected decode result %T", v)
	}
	if _, err := codec.Decode(codec.Format("xml"), nil); err == nil {
		t.Fatalf("unsupported formats must fail")
	}
	if _, err := codec.Encode(codec.Format("xml"), nil); err == nil {
		t.Fatalf("unsupported formats must fail")
	}
}
