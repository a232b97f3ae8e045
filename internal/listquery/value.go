package listquery

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{time.RFC3339, time.DateOnly}

// Lookup returns the value stored under key. A literal key wins; otherwise
// a dotted key walks nested objects ("vendorId.businessName").
func Lookup(rec Record, key string) (any, bool) {
	if v, ok := rec[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}

	var cur any = map[string]any(rec)
	for _, part := range strings.Split(key, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Record:
		return obj, true
	}
	return nil, false
}

// fieldString returns the comparable string form of a record field, with
// date fields reduced to their calendar day.
func fieldString(rec Record, spec FieldSpec) (string, bool) {
	v, ok := Lookup(rec, spec.Key)
	if !ok {
		return "", false
	}
	if t, isTime := v.(time.Time); isTime && spec.Kind == KindDate {
		return t.Format(time.DateOnly), true
	}
	s, ok := scalarString(v)
	if !ok {
		return "", false
	}
	if spec.Kind == KindDate {
		s = normalizeDate(s)
	}
	return s, true
}

// scalarString renders scalar values. Objects and arrays report false.
func scalarString(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case time.Time:
		return v.Format(time.RFC3339), true
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

// displayString renders any value for export; composite values become
// compact JSON.
func displayString(v any) string {
	if s, ok := scalarString(v); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func normalizeDate(s string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return s
}

func parseDate(v any) (time.Time, bool) {
	switch v := v.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
