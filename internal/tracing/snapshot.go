package tracing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const defaultMaxValueLength = 1000

// redactedValue replaces the value of every sensitive key in a snapshot.
const redactedValue = "***"

// snapshotter turns arbitrary values into immutable JSON snapshots. A value
// that can't be marshaled is captured as a JSON string of its %+v text, so
// a snapshot is always valid JSON.
type snapshotter struct {
	maxLen int
	redact map[string]bool
}

func newSnapshotter(maxLen int, redactKeys []string) *snapshotter {
	s := &snapshotter{maxLen: maxLen, redact: map[string]bool{}}
	for _, k := range redactKeys {
		if k = normalizeKey(k); k != "" {
			s.redact[k] = true
		}
	}
	return s
}

func (s *snapshotter) value(v any) json.RawMessage {
	if err, ok := v.(error); ok {
		return s.text(errorText(err))
	}

	b, err := marshal(v)
	if err != nil {
		return s.text(fmt.Sprintf("%+v", v))
	}

	if len(s.redact) > 0 && len(b) > 0 && (b[0] == '{' || b[0] == '[') {
		b = s.redactJSON(b)
	}

	if s.maxLen > 0 && len(b) > s.maxLen {
		return s.text(string(b))
	}

	return b
}

func (s *snapshotter) values(vs []any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(vs))
	for _, v := range vs {
		out = append(out, s.value(v))
	}
	return out
}

func (s *snapshotter) mapping(m map[string]any) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		if s.redact[normalizeKey(k)] {
			out[k] = s.text(redactedValue)
			continue
		}
		out[k] = s.value(v)
	}
	return out
}

// text snapshots str as a JSON string, truncated to the max value length.
func (s *snapshotter) text(str string) json.RawMessage {
	b, err := json.Marshal(s.truncate(str))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return b
}

func (s *snapshotter) truncate(str string) string {
	if s.maxLen <= 0 || len(str) <= s.maxLen {
		return str
	}
	suffix := fmt.Sprintf(" ... [TRUNCATED to %d chars]", s.maxLen)
	cut := s.maxLen - len(suffix)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}
	return str[:cut] + suffix
}

func (s *snapshotter) redactJSON(b []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return b
	}
	if !s.redactValue(&data) {
		return b
	}
	out, err := json.Marshal(data)
	if err != nil {
		return b
	}
	return out
}

// redactValue reports whether anything was replaced.
func (s *snapshotter) redactValue(v *any) bool {
	var changed bool
	switch raw := (*v).(type) {
	case map[string]any:
		for key, val := range raw {
			if s.redact[normalizeKey(key)] {
				raw[key] = redactedValue
				changed = true
				continue
			}
			vv := val
			if s.redactValue(&vv) {
				raw[key] = vv
				changed = true
			}
		}
	case []any:
		for i, val := range raw {
			vv := val
			if s.redactValue(&vv) {
				raw[i] = vv
				changed = true
			}
		}
	}
	return changed
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func marshal(v any) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("marshal panicked: %v", r)
		}
	}()
	return json.Marshal(v)
}

// errorText returns err.Error(), tolerating typed nil errors whose Error
// method dereferences the receiver.
func errorText(err error) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("%T", err)
		}
	}()
	return err.Error()
}
