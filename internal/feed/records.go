package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"departures.metraboard.org/internal/metrics"
)

// decodeRecords decodes a JSON array of flat records. A payload that is not
// an array fails as a whole; a single element that does not decode or fails
// validation is dropped, logged and counted under kind.
func decodeRecords[T any](logger *slog.Logger, kind string, body []byte) ([]T, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}

	records := make([]T, 0, len(raw))
	for i, msg := range raw {
		var rec T
		if err := json.Unmarshal(msg, &rec); err != nil {
			dropRecord(logger, kind, i, err)
			continue
		}
		records = append(records, rec)
	}
	return keepValid(logger, kind, records), nil
}

// keepValid filters out records that fail their struct validation tags.
func keepValid[T any](logger *slog.Logger, kind string, records []T) []T {
	kept := records[:0]
	for i, rec := range records {
		if err := validate.Struct(rec); err != nil {
			dropRecord(logger, kind, i, err)
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func dropRecord(logger *slog.Logger, kind string, index int, err error) {
	metrics.MalformedRecords.WithLabelValues(kind).Inc()
	if logger != nil {
		logger.Warn("dropping malformed record", "kind", kind, "index", index, "error", err)
	}
}
