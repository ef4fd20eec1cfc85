package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redwatch/redwatch/internal/domain/watch"
	"github.com/redwatch/redwatch/internal/logger"
)

// Normalize maps one raw source payload into the canonical record shape.
// Pure except for the provided timestamp: identical input always yields an
// identical record apart from FetchedAt.
func Normalize(raw RawRecord, fetchedAt time.Time) (watch.CanonicalRecord, error) {
	entityID, ok := raw["entity_id"].(string)
	if !ok || entityID == "" {
		return watch.CanonicalRecord{}, fmt.Errorf("%w: missing entity_id", ErrMalformedRecord)
	}

	fields := make(watch.Fields, len(raw))

	for name, value := range raw {
		if name == "entity_id" || strings.HasPrefix(name, "_") {
			continue
		}

		flat, ok := flatten(value)
		if !ok {
			continue
		}

		fields[name] = flat
	}

	return watch.CanonicalRecord{
		EntityID:  entityID,
		Kind:      watch.RecordKindPerson,
		Fields:    fields,
		FetchedAt: fetchedAt,
	}, nil
}

// NormalizeAll normalizes a whole sweep, skipping malformed records so one
// bad payload never blocks the others.
func NormalizeAll(ctx context.Context, raws []RawRecord, fetchedAt time.Time) []watch.CanonicalRecord {
	records := make([]watch.CanonicalRecord, 0, len(raws))

	for _, raw := range raws {
		record, err := Normalize(raw, fetchedAt)
		if err != nil {
			logger.ErrorKV(ctx, "Skipping malformed record", "error", err)

			continue
		}

		records = append(records, record)
	}

	return records
}

// flatten renders a decoded JSON value as a deterministic string.
// Nulls are dropped; lists are sorted so that source-side ordering
// differences do not look like changes; nested objects render as
// canonical sorted-key JSON so that changes inside them stay visible.
func flatten(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case map[string]any:
		// encoding/json sorts map keys at every depth.
		data, err := json.Marshal(v)
		if err != nil {
			return "", false
		}

		return string(data), true
	case []any:
		parts := make([]string, 0, len(v))

		for _, item := range v {
			flat, ok := flatten(item)
			if !ok {
				continue
			}

			parts = append(parts, flat)
		}

		if len(parts) == 0 {
			return "", false
		}

		sort.Strings(parts)

		return strings.Join(parts, ","), true
	default:
		return "", false
	}
}
