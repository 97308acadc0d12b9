package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleInstitute UserRole = "INSTITUTE"
	RoleStudent   UserRole = "STUDENT"
)

// Actor identifies who is performing an operation.
type Actor struct {
	UserID        string
	Role          UserRole
	InstitutionID string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
