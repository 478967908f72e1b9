package record

import (
	"encoding/base64"
	"strconv"
	"unicode/utf8"
)

// AppendJSON serializes the record as a single JSON object into buf and
// returns the extended slice. The caller appends the trailing newline; field
// order matches the wire format: timestamp, level, service, message, fields,
// trace_id, span_id, caller, sequence. Absent optionals are omitted.
func AppendJSON(buf []byte, r *Record) []byte {
	buf = append(buf, `{"timestamp":`...)
	buf = strconv.AppendInt(buf, r.Timestamp, 10)
	buf = append(buf, `,"level":"`...)
	buf = append(buf, r.Level.String()...)
	buf = append(buf, `","service":`...)
	buf = appendJSONString(buf, r.Service)
	buf = append(buf, `,"message":`...)
	buf = appendJSONString(buf, r.Message)
	if len(r.Fields) > 0 {
		buf = append(buf, `,"fields":{`...)
		for i, f := range r.Fields {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendJSONString(buf, f.Key)
			buf = append(buf, ':')
			buf = f.Value.appendJSON(buf)
		}
		buf = append(buf, '}')
	}
	if !r.TraceID.IsZero() {
		buf = append(buf, `,"trace_id":"`...)
		buf = appendHex(buf, r.TraceID[:])
		buf = append(buf, '"')
	}
	if !r.SpanID.IsZero() {
		buf = append(buf, `,"span_id":"`...)
		buf = appendHex(buf, r.SpanID[:])
		buf = append(buf, '"')
	}
	if r.Caller != "" {
		buf = append(buf, `,"caller":`...)
		buf = appendJSONString(buf, r.Caller)
	}
	buf = append(buf, `,"sequence":`...)
	buf = strconv.AppendUint(buf, r.Sequence, 10)
	buf = append(buf, '}')
	return buf
}

// AppendLine is AppendJSON plus the LF terminator.
func AppendLine(buf []byte, r *Record) []byte {
	return append(AppendJSON(buf, r), '\n')
}

const hexDigits = "0123456789abcdef"

func appendHex(buf, src []byte) []byte {
	for _, b := range src {
		buf = append(buf, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return buf
}

func appendBase64(buf, src []byte) []byte {
	buf = append(buf, '"')
	n := base64.StdEncoding.EncodedLen(len(src))
	start := len(buf)
	for i := 0; i < n; i++ {
		buf = append(buf, 0)
	}
	base64.StdEncoding.Encode(buf[start:], src)
	return append(buf, '"')
}

// appendJSONString writes s as a quoted JSON string, escaping only what the
// grammar requires. The fast loop copies runs of safe bytes in one append.
func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' && c < utf8.RuneSelf {
			i++
			continue
		}
		if c >= utf8.RuneSelf {
			// Multi-byte runes pass through untouched; JSON is UTF-8.
			_, size := utf8.DecodeRuneInString(s[i:])
			i += size
			continue
		}
		buf = append(buf, s[start:i]...)
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		default:
			buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0x0f])
		}
		i++
		start = i
	}
	buf = append(buf, s[start:]...)
	return append(buf, '"')
}
