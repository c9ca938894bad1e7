package model

import (
	"strings"
	"time"
)

// Visitor statuses derived from the check-in/check-out timestamps.
const (
	StatusRegistered    = "registered"
	StatusPreRegistered = "pre_registered"
	StatusCheckedIn     = "checked_in"
	StatusCheckedOut    = "checked_out"
)

// VisitPurposes lists the purposes offered by the registration form.
// Any non-empty free text is accepted as well.
var VisitPurposes = []string{"Meeting", "Interview", "Repair & Maintenance", "Other"}

// Visitor is a single visit record owned by a company.
type Visitor struct {
	ID              int64      `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Email           string     `json:"email" db:"email"`
	Phone           string     `json:"phone" db:"phone"`
	CompanyID       int64      `json:"company_id" db:"company_id"`
	PreRegistered   bool       `json:"pre_registered" db:"pre_registered"`
	Notified        bool       `json:"notified" db:"notified"`
	CheckIn         *time.Time `json:"check_in" db:"check_in"`
	CheckOut        *time.Time `json:"check_out" db:"check_out"`
	Temperature     *float64   `json:"temperature" db:"temperature"`
	HealthStatus    *string    `json:"health_status" db:"health_status"`
	FaceImagePath   *string    `json:"face_image_path" db:"face_image_path"`
	VisitPurpose    string     `json:"visit_purpose" db:"visit_purpose"`
	PersonToMeet    string     `json:"person_to_meet" db:"person_to_meet"`
	Department      string     `json:"department" db:"department"`
	CompanyName     string     `json:"company_name" db:"company_name"`
	VisitorLocation string     `json:"visitor_location" db:"visitor_location"`
	Version         int64      `json:"version" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Status reports where the visitor is in its lifecycle.
func (v *Visitor) Status() string {
	switch {
	case v.CheckOut != nil:
		return StatusCheckedOut
	case v.CheckIn != nil:
		return StatusCheckedIn
	case v.PreRegistered:
		return StatusPreRegistered
	default:
		return StatusRegistered
	}
}

// IsValidStatus reports whether s names one of the derived statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusRegistered, StatusPreRegistered, StatusCheckedIn, StatusCheckedOut:
		return true
	}
	return false
}

// VisitorInput carries the contact and visit fields supplied at registration.
type VisitorInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	VisitPurpose    string `json:"visit_purpose"`
	PersonToMeet    string `json:"person_to_meet"`
	Department      string `json:"department"`
	CompanyName     string `json:"company_name"`
	VisitorLocation string `json:"visitor_location"`
}

// Normalize trims surrounding whitespace from every field.
func (in *VisitorInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.VisitPurpose = strings.TrimSpace(in.VisitPurpose)
	in.PersonToMeet = strings.TrimSpace(in.PersonToMeet)
	in.Department = strings.TrimSpace(in.Department)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.VisitorLocation = strings.TrimSpace(in.VisitorLocation)
}

// CheckInInput carries the measurements taken at the desk.
type CheckInInput struct {
	Temperature  float64 `json:"temperature"`
	HealthStatus string  `json:"health_status"`
	FaceImageRef string  `json:"face_image_ref"`
}

// DashboardCounts is the aggregate view shown on the dashboard.
type DashboardCounts struct {
	Total         int64 `json:"total" db:"total"`
	CheckedIn     int64 `json:"checked_in" db:"checked_in"`
	CheckedOut    int64 `json:"checked_out" db:"checked_out"`
	Today         int64 `json:"today" db:"today"`
	PreRegistered int64 `json:"pre_registered" db:"pre_registered"`
	Notified      int64 `json:"notified" db:"notified"`
}

// ReportQuery narrows a visitor report. Zero values disable a filter.
type ReportQuery struct {
	From       time.Time
	To         time.Time
	Status     string
	Department string
}
