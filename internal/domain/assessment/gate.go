package assessment

import (
	"errors"

	"github.com/google/uuid"
)

// ErrForbidden is returned when the caller's role may not perform an operation.
var ErrForbidden = errors.New("operation not permitted for caller role")

// Role is the caller's standing relative to a subject's assessments.
type Role string

const (
	RoleClinician Role = "clinician"
	RolePatient   Role = "patient"
)

// clinicianRoles are the token roles that act as clinicians.
var clinicianRoles = map[string]bool{
	"admin":     true,
	"clinician": true,
	"physician": true,
	"nurse":     true,
}

// RoleFor reduces a caller's token roles to a gate role. Anything that is not
// a clinician role is treated as the subject.
func RoleFor(roles []string) Role {
	for _, r := range roles {
		if clinicianRoles[r] {
			return RoleClinician
		}
	}
	return RolePatient
}

// CanManageAssignments reports whether role may change a subject's assignment set.
func CanManageAssignments(role Role) bool {
	return role == RoleClinician
}

// CanAccessSubject reports whether a caller may read or write subjectID's
// records. Patients are limited to the subject their token is bound to.
func CanAccessSubject(role Role, callerSubject string, subjectID uuid.UUID) bool {
	if role == RoleClinician {
		return true
	}
	return callerSubject != "" && callerSubject == subjectID.String()
}

// ListVisible returns the instruments a caller may see. Clinicians see the
// full catalog. Subjects see the full catalog while nothing is assigned to
// them, otherwise only the assigned instruments, in catalog order.
func (c *Catalog) ListVisible(role Role, assignedIDs []string) []InstrumentSummary {
	restrict := role != RoleClinician && len(assignedIDs) > 0
	var allowed map[string]bool
	if restrict {
		allowed = make(map[string]bool, len(assignedIDs))
		for _, id := range assignedIDs {
			allowed[id] = true
		}
	}

	out := make([]InstrumentSummary, 0, len(c.instruments))
	for i := range c.instruments {
		if restrict && !allowed[c.instruments[i].ID] {
			continue
		}
		out = append(out, c.instruments[i].Summary())
	}
	return out
}
