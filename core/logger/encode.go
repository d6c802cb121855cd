package logger

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// keysInOrder returns the keys of f: those named in order first, then the
// rest sorted.
func keysInOrder(f fields, order []string) []string {
	keys := make([]string, 0, len(f))
	for _, k := range order {
		if _, ok := f[k]; ok && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	head := len(keys)
	for k := range f {
		if !slices.Contains(keys[:head], k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys[head:])
	return keys
}

func encodeJSON(f fields, order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keysInOrder(f, order) {
		v, err := json.Marshal(f[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func encodeKV(f fields, order []string) []byte {
	var b strings.Builder
	for i, k := range keysInOrder(f, order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(f[k]))
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
