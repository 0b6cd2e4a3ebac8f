package assessment

import (
	"testing"

	"github.com/google/uuid"
)

func ids(items []InstrumentSummary) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = s.ID
	}
	return out
}

func TestRoleFor(t *testing.T) {
	tests := []struct {
		roles []string
		want  Role
	}{
		{[]string{"admin"}, RoleClinician},
		{[]string{"physician"}, RoleClinician},
		{[]string{"nurse"}, RoleClinician},
		{[]string{"patient", "clinician"}, RoleClinician},
		{[]string{"patient"}, RolePatient},
		{nil, RolePatient},
	}
	for _, tt := range tests {
		if got := RoleFor(tt.roles); got != tt.want {
			t.Errorf("RoleFor(%v) = %s, want %s", tt.roles, got, tt.want)
		}
	}
}

func TestListVisible_ClinicianSeesAll(t *testing.T) {
	c := mustDefaultCatalog(t)
	got := c.ListVisible(RoleClinician, []string{"phq9"})
	if len(got) != 5 {
		t.Errorf("expected full catalog, got %v", ids(got))
	}
}

func TestListVisible_PatientWithoutAssignments(t *testing.T) {
	c := mustDefaultCatalog(t)
	got := c.ListVisible(RolePatient, nil)
	if len(got) != 5 {
		t.Errorf("expected full catalog, got %v", ids(got))
	}
}

func TestListVisible_PatientAssignedSubset(t *testing.T) {
	c := mustDefaultCatalog(t)
	got := ids(c.ListVisible(RolePatient, []string{"isi", "phq9", "retired"}))
	if len(got) != 2 || got[0] != "phq9" || got[1] != "isi" {
		t.Errorf("expected [phq9 isi] in catalog order, got %v", got)
	}
}

func TestListVisible_Summary(t *testing.T) {
	c := mustDefaultCatalog(t)
	got := c.ListVisible(RolePatient, []string{"gad7"})
	if len(got) != 1 || got[0].QuestionCount != 7 || got[0].Category != "anxiety" {
		t.Errorf("unexpected summary: %+v", got)
	}
}

func TestCanManageAssignments(t *testing.T) {
	if !CanManageAssignments(RoleClinician) {
		t.Error("clinicians should manage assignments")
	}
	if CanManageAssignments(RolePatient) {
		t.Error("patients should not manage assignments")
	}
}

func TestCanAccessSubject(t *testing.T) {
	own := uuid.New()
	other := uuid.New()

	if !CanAccessSubject(RoleClinician, "", other) {
		t.Error("clinician should access any subject")
	}
	if !CanAccessSubject(RolePatient, own.String(), own) {
		t.Error("patient should access own subject")
	}
	if CanAccessSubject(RolePatient, own.String(), other) {
		t.Error("patient should not access another subject")
	}
	if CanAccessSubject(RolePatient, "", uuid.Nil) {
		t.Error("unbound patient token should not match the nil subject")
	}
}
