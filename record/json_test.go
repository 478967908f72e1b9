package record

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendJSONWireFormat(t *testing.T) {
	assert := assert.New(t)

	r := &Record{
		Sequence:  42,
		Timestamp: 1700000000123456789,
		Level:     LevelInfo,
		Service:   "pricer",
		Message:   "order accepted",
		Fields: []Field{
			String("symbol", "ESZ6"),
			Int64("qty", 100),
			Float64("px", 4512.25),
			Bool("ioc", true),
			Null("venue"),
		},
	}

	line := string(AppendJSON(nil, r))
	assert.Equal(`{"timestamp":1700000000123456789,"level":"INFO","service":"pricer",`+
		`"message":"order accepted","fields":{"symbol":"ESZ6","qty":100,"px":4512.25,`+
		`"ioc":true,"venue":null},"sequence":42}`, line)

	t.Log("AppendLine terminates with LF")
	assert.True(strings.HasSuffix(string(AppendLine(nil, r)), "}\n"))
}

func TestAppendJSONOptionalFields(t *testing.T) {
	assert := assert.New(t)

	r := New(LevelWarn, "svc", "m")

	t.Log("absent optionals are omitted")
	line := string(AppendJSON(nil, r))
	assert.NotContains(line, "trace_id")
	assert.NotContains(line, "span_id")
	assert.NotContains(line, "caller")
	assert.NotContains(line, `"fields"`)

	t.Log("present optionals render as hex")
	r.TraceID = TraceID{0xde, 0xad, 0xbe, 0xef}
	r.SpanID = SpanID{0x01, 0x02}
	r.Caller = "engine.go:99"
	line = string(AppendJSON(nil, r))
	assert.Contains(line, `"trace_id":"deadbeef000000000000000000000000"`)
	assert.Contains(line, `"span_id":"0102000000000000"`)
	assert.Contains(line, `"caller":"engine.go:99"`)
}

func TestAppendJSONEscaping(t *testing.T) {
	assert := assert.New(t)

	r := New(LevelInfo, "svc", "line1\nline2\t\"quoted\" \\ and \x01")
	line := AppendJSON(nil, r)

	t.Log("the encoder's output is valid JSON")
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.Equal("line1\nline2\t\"quoted\" \\ and \x01", decoded["message"])

	t.Log("multi-byte runes pass through unescaped")
	r2 := New(LevelInfo, "svc", "héllo 世界")
	var decoded2 map[string]any
	require.NoError(t, json.Unmarshal(AppendJSON(nil, r2), &decoded2))
	assert.Equal("héllo 世界", decoded2["message"])
}

func TestDecodeLineRoundTrip(t *testing.T) {
	assert := assert.New(t)

	r := &Record{
		Sequence:  7,
		Timestamp: 1700000000000000001,
		Level:     LevelTrade,
		Service:   "gateway",
		Message:   "fill",
		Fields: []Field{
			String("symbol", "6EU6"),
			Int64("qty", -25),
			Float64("px", 1.0825),
			Bool("aggressive", false),
		},
		TraceID: TraceID{9, 9, 9},
		SpanID:  SpanID{1},
	}

	got, err := DecodeLine(AppendJSON(nil, r))
	require.NoError(t, err)

	assert.Equal(r.Sequence, got.Sequence)
	assert.Equal(r.Timestamp, got.Timestamp)
	assert.Equal(r.Level, got.Level)
	assert.Equal(r.Service, got.Service)
	assert.Equal(r.Message, got.Message)
	assert.Equal(r.TraceID, got.TraceID)
	assert.Equal(r.SpanID, got.SpanID)

	byKey := map[string]Value{}
	for _, f := range got.Fields {
		byKey[f.Key] = f.Value
	}
	assert.Equal("6EU6", byKey["symbol"].StringVal())
	assert.Equal(int64(-25), byKey["qty"].Int64Val())
	assert.Equal(1.0825, byKey["px"].Float64Val())
	assert.False(byKey["aggressive"].BoolVal())
}

func TestDecodeLineRejectsGarbage(t *testing.T) {
	assert := assert.New(t)

	_, err := DecodeLine([]byte("not json"))
	assert.Error(err)

	_, err = DecodeLine([]byte(`{"level":"nope","service":"s","message":"m"}`))
	assert.Error(err)

	_, err = DecodeLine([]byte(`{"level":"info","trace_id":"zz"}`))
	assert.Error(err)
}

func TestSerializeReusesBuffer(t *testing.T) {
	assert := assert.New(t)

	r := New(LevelInfo, "svc", "msg")
	buf := make([]byte, 0, 1024)
	out := AppendJSON(buf, r)
	assert.Equal(cap(buf), cap(out), "encoding within capacity must not reallocate")
}
