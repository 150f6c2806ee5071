// internal/app/policy/planpolicy/planpolicy.go
package planpolicy

import (
	"fmt"
	"strings"

	"github.com/dalemusser/planhub/internal/domain/models"
)

// CanEdit reports whether the user may change the plan's fields, delete it,
// or clear its chat. Only the creator can.
func CanEdit(p models.Plan, userID string) bool {
	return p.IsCreator(userID)
}

// CanDeleteMessage reports whether the user may remove message m:
// its author or the plan's creator.
func CanDeleteMessage(p models.Plan, m models.GroupMessage, userID string) bool {
	if userID == "" {
		return false
	}
	return m.AuthorID == userID || p.IsCreator(userID)
}

// Eligibility returns the reasons u falls outside the plan's age range and
// gender filter. An empty result means eligible. Unknown attributes (age 0,
// blank gender) never disqualify.
func Eligibility(p models.Plan, u models.UserSnapshot) []string {
	var reasons []string
	if !p.AgeRange.IsZero() && u.Age > 0 && !p.AgeRange.Contains(u.Age) {
		reasons = append(reasons, fmt.Sprintf("age %d outside %s", u.Age, describeAge(p.AgeRange)))
	}
	filter := strings.ToLower(strings.TrimSpace(p.GenderFilter))
	gender := strings.ToLower(strings.TrimSpace(u.Gender))
	if filter != "" && filter != models.GenderAny && gender != "" && gender != filter {
		reasons = append(reasons, fmt.Sprintf("plan is for %s participants", filter))
	}
	return reasons
}

func describeAge(a models.AgeRange) string {
	switch {
	case a.Min > 0 && a.Max > 0:
		return fmt.Sprintf("%d-%d", a.Min, a.Max)
	case a.Min > 0:
		return fmt.Sprintf("%d+", a.Min)
	default:
		return fmt.Sprintf("up to %d", a.Max)
	}
}
