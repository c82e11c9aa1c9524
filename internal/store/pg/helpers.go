package pg

import (
	"database/sql"
	"encoding/json"
	"time"
)

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Attachments are stored as a jsonb array of strings.
func encodeTextArray(values []string) []byte {
	if len(values) == 0 {
		return []byte("[]")
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return []byte("[]")
	}
	return raw
}

func decodeTextArray(raw []byte, dst *[]string) error {
	return json.Unmarshal(raw, dst)
}
