// Package admission holds the side-effect free rules of the application
// workflow: eligibility, the per-institution quota, admission exclusivity,
// the status lifecycle and dashboard aggregation. Callers load the data and
// commit results; nothing here touches storage.
package admission
