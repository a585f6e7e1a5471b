package alertjson

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"alertrank/pkg/models"
)

// Parse converts one JSON alert record into an Alert. Both the flat field
// names written by the output adapters and common nested IDS layouts
// (source.ip, destination.port, rule.name, event.start) are accepted. Times
// are epoch milliseconds or RFC3339 strings.
func Parse(data []byte) (*models.Alert, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedRecord, err)
	}
	return FromMap(raw)
}

// FromMap converts an already decoded record.
func FromMap(raw map[string]interface{}) (*models.Alert, error) {
	start, ok := getTime(raw, "start_time", "start", "event.start", "@timestamp", "timestamp")
	if !ok {
		return nil, fmt.Errorf("%w: missing or unparsable start time", models.ErrMalformedRecord)
	}
	end, _ := getTime(raw, "end_time", "end", "event.end")

	name := getString(raw, "name", "rule.name", "alert.signature", "signature")
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: missing alert name", models.ErrMalformedRecord)
	}

	a := &models.Alert{
		Key:        getString(raw, "key", "id", "alert.id", "event.id"),
		Name:       name,
		Category:   getString(raw, "category", "alert.category", "rule.category"),
		StartTime:  start,
		EndTime:    end,
		SourceIP:   getString(raw, "src_ip", "source.ip", "src"),
		SourcePort: getString(raw, "src_port", "source.port"),
		DestIP:     getString(raw, "dest_ip", "dst_ip", "destination.ip", "dst"),
		DestPort:   getString(raw, "dest_port", "dst_port", "destination.port"),
		Count:      getInt(raw, "count", "event.count"),
		Priority:   getInt(raw, "priority"),
	}
	a.ApplyDefaults()
	return a, nil
}

// ParseTime accepts epoch milliseconds or a timestamp string.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range []string{
		"2006-01-02 15:04:05.000000",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func getTime(root map[string]interface{}, paths ...string) (time.Time, bool) {
	for _, path := range paths {
		v, ok := getPath(root, path)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case float64:
			if !math.IsNaN(val) && !math.IsInf(val, 0) {
				return time.UnixMilli(int64(val)).UTC(), true
			}
		case string:
			if t, ok := ParseTime(val); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func getString(root map[string]interface{}, paths ...string) string {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case string:
				return val
			case fmt.Stringer:
				return val.String()
			case float64:
				if val == float64(int64(val)) {
					return strconv.FormatInt(int64(val), 10)
				}
				return strconv.FormatFloat(val, 'f', -1, 64)
			}
		}
	}
	return ""
}

func getInt(root map[string]interface{}, paths ...string) int {
	for _, path := range paths {
		if v, ok := getPath(root, path); ok {
			switch val := v.(type) {
			case float64:
				return int(val)
			case string:
				if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
					return parsed
				}
			}
		}
	}
	return 0
}

// getPath resolves a dotted path. A literal key containing dots wins over
// nested lookup.
func getPath(root map[string]interface{}, path string) (interface{}, bool) {
	if v, ok := root[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	var current interface{} = root
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		current = v
	}
	return current, true
}
