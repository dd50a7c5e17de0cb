package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/todocheck/internal/trace"
)

// marshalHookErrors converts afterEach messages to canonical JSON TEXT.
func marshalHookErrors(msgs []string) (string, error) {
	if msgs == nil {
		msgs = []string{}
	}
	data, err := trace.MarshalCanonical(msgs)
	if err != nil {
		return "", fmt.Errorf("marshal hook errors: %w", err)
	}
	return string(data), nil
}

// unmarshalHookErrors parses the hook_errors column.
func unmarshalHookErrors(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var msgs []string
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, fmt.Errorf("unmarshal hook errors: %w", err)
	}
	return msgs, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
