package validation

import "strings"

// Enabled parses the enabled filter of list queries. "true" (the default) and "false"
// select by state; "all" returns nil, meaning no filter.
func Enabled(raw string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	case "all":
		return nil, nil
	default:
		return nil, fail("enabled", "must be one of [true, false, all]")
	}
}

// OptionalBool parses a boolean query value. An empty value returns nil.
func OptionalBool(key, raw string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return nil, nil
	case "true":
		v := true
		return &v, nil
	case "false":
		v := false
		return &v, nil
	default:
		return nil, fail(key, "must be a boolean")
	}
}

// OptionalID parses an id query value. An empty value returns nil.
func OptionalID(key, raw string) (*uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := ID(key, raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// OptionalStatus parses a notification status query value.
func OptionalStatus(raw string) (*string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return nil, nil
	case "pending", "sent", "failed":
		return &s, nil
	default:
		return nil, fail("status", "must be one of [pending, sent, failed]")
	}
}
