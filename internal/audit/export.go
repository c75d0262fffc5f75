package audit

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"
)

var csvHeader = []string{"created_at", "user_id", "role", "method", "route", "action", "table_name", "risk_level", "is_anomalous"}

// WriteCSV renders records as CSV with a header row.
func WriteCSV(rows []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, rec := range rows {
		if err := w.Write([]string{
			rec.CreatedAt.UTC().Format(time.RFC3339),
			rec.UserID.String(),
			rec.Role,
			rec.Method,
			rec.Route,
			rec.Action,
			rec.Resource,
			string(rec.Risk),
			strconv.FormatBool(rec.Anomalous),
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
