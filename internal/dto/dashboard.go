package dto

// AdmissionsDashboardQuery scopes the admissions dashboard.
type AdmissionsDashboardQuery struct {
	InstitutionID string `form:"institutionId"`
	StudentID     string `form:"studentId"`
}
