package record

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/goccy/go-json"
)

// lineJSON mirrors the wire format for decoding. Field values land as raw
// JSON messages so the tagged kinds survive the round trip.
type lineJSON struct {
	Timestamp int64                      `json:"timestamp"`
	Level     string                     `json:"level"`
	Service   string                     `json:"service"`
	Message   string                     `json:"message"`
	Fields    map[string]json.RawMessage `json:"fields"`
	TraceID   string                     `json:"trace_id"`
	SpanID    string                     `json:"span_id"`
	Caller    string                     `json:"caller"`
	Sequence  uint64                     `json:"sequence"`
}

// DecodeLine parses one JSON log line back into a Record. It is the inverse
// of AppendLine and is used by tests and by consumers of framed batches; it
// is not on the produce hot path.
func DecodeLine(line []byte) (*Record, error) {
	var raw lineJSON
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("decode log line: %w", err)
	}

	lvl, err := ParseLevel(raw.Level)
	if err != nil {
		return nil, err
	}

	r := &Record{
		Sequence:  raw.Sequence,
		Timestamp: raw.Timestamp,
		Level:     lvl,
		Service:   raw.Service,
		Message:   raw.Message,
		Caller:    raw.Caller,
	}

	if raw.TraceID != "" {
		b, err := hex.DecodeString(raw.TraceID)
		if err != nil || len(b) != len(r.TraceID) {
			return nil, fmt.Errorf("bad trace_id %q", raw.TraceID)
		}
		copy(r.TraceID[:], b)
	}
	if raw.SpanID != "" {
		b, err := hex.DecodeString(raw.SpanID)
		if err != nil || len(b) != len(r.SpanID) {
			return nil, fmt.Errorf("bad span_id %q", raw.SpanID)
		}
		copy(r.SpanID[:], b)
	}

	for key, msg := range raw.Fields {
		f, err := decodeField(key, msg)
		if err != nil {
			return nil, err
		}
		r.Fields = append(r.Fields, f)
	}
	return r, nil
}

func decodeField(key string, msg json.RawMessage) (Field, error) {
	if len(msg) == 0 {
		return Null(key), nil
	}
	switch msg[0] {
	case '"':
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return Field{}, err
		}
		// Bytes fields come back as strings; callers that know a field
		// is binary decode the base64 themselves.
		return String(key, s), nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(msg, &b); err != nil {
			return Field{}, err
		}
		return Bool(key, b), nil
	case 'n':
		return Null(key), nil
	default:
		// Integers stay integers when they fit; everything else is a float.
		var i int64
		if err := json.Unmarshal(msg, &i); err == nil {
			return Int64(key, i), nil
		}
		var f float64
		if err := json.Unmarshal(msg, &f); err != nil {
			return Field{}, err
		}
		return Float64(key, f), nil
	}
}

// DecodeBytesField is a helper for consumers that know a string field holds
// base64-encoded binary data.
func DecodeBytesField(f Field) ([]byte, error) {
	if f.Value.Kind() != KindString {
		return nil, fmt.Errorf("field %q is not a string", f.Key)
	}
	return base64.StdEncoding.DecodeString(f.Value.StringVal())
}
