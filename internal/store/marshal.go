package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/feedsync/internal/activity"
)

// marshalPayload converts an activity to canonical JSON TEXT for storage.
func marshalPayload(a activity.Activity) (string, error) {
	data, err := activity.MarshalCanonical(a)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses a stored payload.
func unmarshalPayload(data string) (activity.Activity, error) {
	a, err := activity.UnmarshalCanonical([]byte(data))
	if err != nil {
		return activity.Activity{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return a, nil
}

// marshalIDs converts an ID list to JSON TEXT. A nil list is stored as [].
func marshalIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

func unmarshalIDs(data string) ([]string, error) {
	ids := []string{}
	if data == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
