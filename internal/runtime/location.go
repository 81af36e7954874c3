package runtime

import (
	"encoding/json"
	"net/url"
	"reflect"
	"sync"
)

// Location holds the page URL's query parameters. Values are stored as JSON,
// except strings that are not themselves valid JSON, which stay verbatim so
// hand-written queries like "tab=orders" read as strings.
type Location struct {
	mu     sync.RWMutex
	values url.Values
}

// NewLocation parses a raw query string such as "tab=orders&page=2".
func NewLocation(rawQuery string) (*Location, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return &Location{values: values}, nil
}

// Get returns the decoded value of param.
func (l *Location) Get(param string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.values.Has(param) {
		return nil, false
	}
	return decodeParam(l.values.Get(param)), true
}

// Set stores value under param. A value equal to dflt removes the parameter.
func (l *Location) Set(param string, value, dflt any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if value == nil || reflect.DeepEqual(normalize(value), normalize(dflt)) {
		l.values.Del(param)
		return
	}
	l.values.Set(param, encodeParam(value))
}

// Query returns the encoded query string.
func (l *Location) Query() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.values.Encode()
}

func encodeParam(v any) string {
	if s, ok := v.(string); ok && !json.Valid([]byte(s)) {
		return s
	}
	data, err := json.Marshal(jsonSafe(v))
	if err != nil {
		return ""
	}
	return string(data)
}

func decodeParam(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// normalize maps a value onto its JSON shape so numbers compare equal
// regardless of their Go type.
func normalize(v any) any {
	data, err := json.Marshal(jsonSafe(v))
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
