package audit

import (
	"net/http"
	"strings"
	"time"

	"github.com/lehine87/educanvas/internal/rbac"
)

// Business hours in UTC. Critical access outside them is flagged anomalous.
const (
	businessStartHour = 6
	businessEndHour   = 22
)

var sensitiveResources = map[rbac.Resource]bool{
	rbac.ResourcePayments: true,
	rbac.ResourceSettings: true,
	rbac.ResourceUsers:    true,
}

// Classify grades an access event and reports whether it is anomalous.
func Classify(event rbac.AccessEvent) (Risk, bool) {
	risk := RiskLow
	if len(event.Permissions) == 0 {
		risk = methodRisk(event.Method)
	}
	for _, p := range event.Permissions {
		if r := permissionRisk(p); r.atLeast(risk) {
			risk = r
		}
	}
	if event.OwnerOnly || event.AdminOnly {
		risk = RiskCritical
	}
	return risk, risk == RiskCritical && outsideBusinessHours(event.At)
}

func permissionRisk(p rbac.Requirement) Risk {
	switch p.Action {
	case rbac.ActionAdmin:
		return RiskCritical
	case rbac.ActionDelete:
		return RiskHigh
	case rbac.ActionWrite:
		if sensitiveResources[p.Resource] {
			return RiskHigh
		}
		return RiskMedium
	default:
		return RiskLow
	}
}

func methodRisk(method string) Risk {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return RiskLow
	case http.MethodDelete:
		return RiskHigh
	default:
		return RiskMedium
	}
}

func outsideBusinessHours(at time.Time) bool {
	h := at.UTC().Hour()
	return h < businessStartHour || h >= businessEndHour
}

// describe derives the action and table name stored with a record. With
// several permissions the riskiest one names the record.
func describe(event rbac.AccessEvent) (action, resource string) {
	resource = routeResource(event.Route)
	switch {
	case len(event.Permissions) > 0:
		strongest := event.Permissions[0]
		for _, p := range event.Permissions[1:] {
			if riskRank[permissionRisk(p)] > riskRank[permissionRisk(strongest)] {
				strongest = p
			}
		}
		action, resource = string(strongest.Action), string(strongest.Resource)
	default:
		action = methodAction(event.Method)
	}
	if event.OwnerOnly || event.AdminOnly {
		action = string(rbac.ActionAdmin)
	}
	return action, resource
}

func methodAction(method string) string {
	switch methodRisk(method) {
	case RiskLow:
		return string(rbac.ActionRead)
	case RiskHigh:
		return string(rbac.ActionDelete)
	default:
		return string(rbac.ActionWrite)
	}
}

// routeResource returns the first path segment after /api/.
func routeResource(route string) string {
	trimmed := strings.TrimPrefix(route, "/api/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[:i]
	}
	return trimmed
}
