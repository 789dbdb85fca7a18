package workflow

import "time"

// ItemInput is one KPI item submitted at creation.
type ItemInput struct {
	Title         string `json:"title" validate:"max=255"`
	Description   string `json:"description"`
	TargetValue   string `json:"target_value" validate:"max=255"`
	MeasureUnit   string `json:"measure_unit" validate:"max=100"`
	Weight        string `json:"weight" validate:"max=20"`
	IsQualitative bool   `json:"is_qualitative"`
}

// CreateKPIInput is the payload of the create KPI transition.
type CreateKPIInput struct {
	EmployeeID       uint        `json:"employee_id" validate:"required"`
	Title            string      `json:"title" validate:"required,max=255"`
	Description      string      `json:"description"`
	PeriodType       string      `json:"period_type" validate:"required,oneof=annual quarterly"`
	Quarter          string      `json:"quarter" validate:"omitempty,oneof=Q1 Q2 Q3 Q4"`
	Year             int         `json:"year" validate:"required,gte=2000,lte=2100"`
	MeetingDate      *time.Time  `json:"meeting_date"`
	ManagerSignature string      `json:"manager_signature"`
	Items            []ItemInput `json:"items" validate:"dive"`
}

// AcknowledgeInput is the payload of the acknowledge transition.
type AcknowledgeInput struct {
	Signature string `json:"signature"`
}

// ItemRating rates one KPI item.
type ItemRating struct {
	ItemID            uint     `json:"item_id" validate:"required"`
	Rating            *float64 `json:"rating" validate:"omitempty,gte=0,lte=100"`
	Comment           string   `json:"comment"`
	QualitativeRating string   `json:"qualitative_rating" validate:"max=100"`
}

// SelfRatingInput is the payload of the self-rating transition. When Rating
// is empty the overall rating is derived from the item ratings.
type SelfRatingInput struct {
	Rating    *float64     `json:"rating" validate:"omitempty,gte=0,lte=100"`
	Comment   string       `json:"comment"`
	Signature string       `json:"signature"`
	Items     []ItemRating `json:"items" validate:"dive"`
}

// ManagerReviewInput is the payload of the manager review transition.
type ManagerReviewInput struct {
	Rating    *float64     `json:"rating" validate:"omitempty,gte=0,lte=100"`
	Comment   string       `json:"comment"`
	Signature string       `json:"signature" validate:"required"`
	Items     []ItemRating `json:"items" validate:"dive"`
}

// ConfirmationInput is the payload of the employee confirmation transition.
type ConfirmationInput struct {
	Status        string `json:"confirmation_status"`
	RejectionNote string `json:"rejection_note"`
	Signature     string `json:"signature"`
}

// ResolveInput is the payload of the resolve rejection transition.
type ResolveInput struct {
	Note string `json:"note"`
}
