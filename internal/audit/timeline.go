package audit

import (
	"time"

	"github.com/google/uuid"
)

// Risk grades how sensitive an access was.
type Risk string

// Risk levels, lowest first.
const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

var riskRank = map[Risk]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2, RiskCritical: 3}

// Valid reports whether r is a known level.
func (r Risk) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

func (r Risk) atLeast(other Risk) bool {
	return riskRank[r] >= riskRank[other]
}

// Record is one persisted audit_logs row.
type Record struct {
	ID        int64     `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	Method    string    `json:"method"`
	Route     string    `json:"route"`
	Action    string    `json:"action"`
	Resource  string    `json:"table_name"`
	Risk      Risk      `json:"risk_level"`
	Anomalous bool      `json:"is_anomalous"`
	CreatedAt time.Time `json:"created_at"`
}

// TimelineFilters narrows audit listings of one tenant.
type TimelineFilters struct {
	TenantID uuid.UUID
	Actor    *uuid.UUID
	Resource string
	Risk     Risk
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}
