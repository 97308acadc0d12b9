package admission

import (
	"sort"

	"github.com/noah-isme/admissions-api/internal/models"
)

// InstitutionSummary holds counts for one institution.
type InstitutionSummary struct {
	InstitutionID string  `json:"institutionId"`
	Total         int     `json:"total"`
	Pending       int     `json:"pending"`
	UnderReview   int     `json:"underReview"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	Admitted      int     `json:"admitted"`
	ApprovalRate  float64 `json:"approvalRate"`
}

// Summary is a derived projection of a set of applications. It is recomputed
// on every request and never stored.
type Summary struct {
	Total          int                  `json:"total"`
	Pending        int                  `json:"pending"`
	UnderReview    int                  `json:"underReview"`
	Approved       int                  `json:"approved"`
	Rejected       int                  `json:"rejected"`
	Admitted       int                  `json:"admitted"`
	PerInstitution []InstitutionSummary `json:"perInstitution"`
}

// Aggregate counts applications by status overall and per institution.
// Institutions are ordered by id.
func Aggregate(apps []models.Application) Summary {
	summary := Summary{PerInstitution: []InstitutionSummary{}}
	byInstitution := make(map[string]*InstitutionSummary)

	for _, app := range apps {
		inst, ok := byInstitution[app.InstitutionID]
		if !ok {
			inst = &InstitutionSummary{InstitutionID: app.InstitutionID}
			byInstitution[app.InstitutionID] = inst
		}
		summary.Total++
		inst.Total++
		switch app.Status {
		case models.ApplicationStatusPending:
			summary.Pending++
			inst.Pending++
		case models.ApplicationStatusUnderReview:
			summary.UnderReview++
			inst.UnderReview++
		case models.ApplicationStatusApproved:
			summary.Approved++
			inst.Approved++
		case models.ApplicationStatusRejected:
			summary.Rejected++
			inst.Rejected++
		case models.ApplicationStatusAdmitted:
			summary.Admitted++
			inst.Admitted++
		}
	}

	// An admitted application was approved before the student accepted it.
	for _, inst := range byInstitution {
		inst.ApprovalRate = ratio(inst.Approved+inst.Admitted, inst.Total)
		summary.PerInstitution = append(summary.PerInstitution, *inst)
	}
	sort.Slice(summary.PerInstitution, func(i, j int) bool {
		return summary.PerInstitution[i].InstitutionID < summary.PerInstitution[j].InstitutionID
	})
	return summary
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
