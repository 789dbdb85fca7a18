package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/john2100013/kpi-review/internal/models"
	"github.com/john2100013/kpi-review/internal/service/rating"
)

// Audience is a party of a KPI that an effect addresses.
type Audience int

// Audiences.
const (
	AudienceEmployee Audience = iota
	AudienceManager
	AudienceHR
	AudienceHROptional // HR, only when the company enables HR notifications
)

// Effect is a side effect requested by a transition.
type Effect interface {
	effect()
}

// Notify requests an in-app notification and an email of the given type.
type Notify struct {
	Type string
	To   []Audience
	Vars map[string]string // extra template variables
}

// GenerateDocument requests the review PDF.
type GenerateDocument struct{}

func (Notify) effect()           {}
func (GenerateDocument) effect() {}

// Outcome is the result of a pure transition.
type Outcome struct {
	KPI     *models.KPI
	Review  *models.KPIReview
	Items   []models.KPIItem // items changed by the transition
	Effects []Effect
}

// CreateKPI builds a new pending KPI for employee. The caller has already
// checked that the period is active and that the manager is valid.
func CreateKPI(now time.Time, actor Actor, employee *models.User, in CreateKPIInput) (*Outcome, error) {
	managerID, err := creatorManager(actor, employee)
	if err != nil {
		return nil, err
	}

	quarter := strings.ToUpper(strings.TrimSpace(in.Quarter))
	switch in.PeriodType {
	case models.PeriodQuarterly:
		if quarter == "" {
			return nil, invalid("quarter", "is required for quarterly periods")
		}
	case models.PeriodAnnual:
		quarter = ""
	}

	var items []models.KPIItem
	for _, it := range in.Items {
		title := strings.TrimSpace(it.Title)
		if title == "" {
			continue
		}
		items = append(items, models.KPIItem{
			Title:         title,
			Description:   strings.TrimSpace(it.Description),
			TargetValue:   strings.TrimSpace(it.TargetValue),
			MeasureUnit:   strings.TrimSpace(it.MeasureUnit),
			Weight:        strings.TrimSpace(it.Weight),
			IsQualitative: it.IsQualitative,
			ItemOrder:     len(items) + 1,
		})
	}
	if len(items) == 0 {
		return nil, invalid("items", "at least one item with a title is required")
	}

	kpi := &models.KPI{
		CompanyID:   companyOf(actor, employee),
		EmployeeID:  employee.ID,
		ManagerID:   managerID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		PeriodType:  in.PeriodType,
		Quarter:     quarter,
		Year:        in.Year,
		MeetingDate: in.MeetingDate,
		Status:      models.KPIStatusPending,
		Items:       items,
	}
	if sig := strings.TrimSpace(in.ManagerSignature); sig != "" {
		kpi.ManagerSignature = sig
		kpi.ManagerSignedAt = &now
	}

	return &Outcome{
		KPI: kpi,
		Effects: []Effect{
			Notify{Type: models.NotificationKPIAssigned, To: []Audience{AudienceEmployee}},
		},
	}, nil
}

// creatorManager returns the manager the new KPI belongs to.
func creatorManager(actor Actor, employee *models.User) (uint, error) {
	switch {
	case actor.Role == models.RoleManager:
		if employee.ManagerID == nil || *employee.ManagerID != actor.UserID {
			return 0, forbidden("employee %d does not report to manager %d", employee.ID, actor.UserID)
		}
		return actor.UserID, nil
	case actor.IsTenantWide():
		if employee.ManagerID == nil {
			return 0, invalid("employee_id", "employee has no manager")
		}
		return *employee.ManagerID, nil
	default:
		return 0, forbidden("role %s cannot create KPIs", actor.Role)
	}
}

func companyOf(actor Actor, employee *models.User) uint {
	if actor.CompanyID != 0 {
		return actor.CompanyID
	}
	if employee.CompanyID != nil {
		return *employee.CompanyID
	}
	return 0
}

// Acknowledge records the employee's signature on a pending KPI.
func Acknowledge(now time.Time, actor Actor, kpi *models.KPI, in AcknowledgeInput) (*Outcome, error) {
	if err := requireEmployee(actor, kpi); err != nil {
		return nil, err
	}
	if kpi.Status != models.KPIStatusPending {
		return nil, illegal("kpi %d is %s, only pending KPIs can be acknowledged", kpi.ID, kpi.Status)
	}
	sig := strings.TrimSpace(in.Signature)
	if sig == "" {
		return nil, invalid("signature", "is required")
	}

	kpi.Status = models.KPIStatusAcknowledged
	kpi.EmployeeSignature = sig
	kpi.EmployeeSignedAt = &now

	return &Outcome{
		KPI: kpi,
		Effects: []Effect{
			Notify{Type: models.NotificationKPIAcknowledged, To: []Audience{AudienceManager, AudienceHR}},
		},
	}, nil
}

// SubmitSelfRating creates or updates the review with the employee's ratings.
// existing is nil when no review exists yet.
func SubmitSelfRating(now time.Time, actor Actor, kpi *models.KPI, existing *models.KPIReview, in SelfRatingInput) (*Outcome, error) {
	if err := requireEmployee(actor, kpi); err != nil {
		return nil, err
	}
	if kpi.Status != models.KPIStatusAcknowledged {
		return nil, illegal("kpi %d is %s, it must be acknowledged before self-rating", kpi.ID, kpi.Status)
	}
	if existing != nil && existing.ReviewStatus != models.ReviewStatusEmployeeSubmitted && existing.ReviewStatus != models.ReviewStatusNone {
		return nil, illegal("review %d is %s, self-rating is closed", existing.ID, existing.ReviewStatus)
	}

	items, err := applyItemRatings(kpi, in.Items, func(item *models.KPIItem, r ItemRating) error {
		item.EmployeeRating = r.Rating
		item.EmployeeComment = strings.TrimSpace(r.Comment)
		return nil
	})
	if err != nil {
		return nil, err
	}

	review := existing
	if review == nil {
		review = &models.KPIReview{
			KPIID:      kpi.ID,
			CompanyID:  kpi.CompanyID,
			EmployeeID: kpi.EmployeeID,
			ManagerID:  kpi.ManagerID,
		}
	}
	review.ReviewStatus = models.ReviewStatusEmployeeSubmitted
	review.EmployeeRating = overall(in.Rating, rating.SelfScore(kpi.Items), len(in.Items))
	review.EmployeeComment = strings.TrimSpace(in.Comment)
	review.EmployeeSignature = strings.TrimSpace(in.Signature)
	review.EmployeeSubmittedAt = &now

	return &Outcome{
		KPI:    kpi,
		Review: review,
		Items:  items,
		Effects: []Effect{
			Notify{Type: models.NotificationSelfRatingSubmitted, To: []Audience{AudienceManager, AudienceHROptional}},
		},
	}, nil
}

// SubmitManagerReview records the manager's ratings. It may run again until
// the employee approves; a repeat clears the earlier confirmation and any
// rejection resolution. An approved review is final.
func SubmitManagerReview(now time.Time, actor Actor, kpi *models.KPI, review *models.KPIReview, in ManagerReviewInput) (*Outcome, error) {
	if err := requireManager(actor, kpi); err != nil {
		return nil, err
	}
	if review == nil {
		return nil, illegal("kpi %d has no self-rating to review", kpi.ID)
	}
	if review.ReviewStatus == models.ReviewStatusCompleted || kpi.Status == models.KPIStatusCompleted {
		return nil, illegal("review %d is approved, it can no longer be changed", review.ID)
	}
	sig := strings.TrimSpace(in.Signature)
	if sig == "" {
		return nil, invalid("signature", "is required")
	}

	items, err := applyItemRatings(kpi, in.Items, func(item *models.KPIItem, r ItemRating) error {
		item.ManagerRating = r.Rating
		item.ManagerComment = strings.TrimSpace(r.Comment)
		if q := strings.TrimSpace(r.QualitativeRating); q != "" {
			if !item.IsQualitative {
				return invalid("items", fmt.Sprintf("item %d is not qualitative", item.ID))
			}
			item.QualitativeRating = q
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	score := rating.ManagerScore(kpi.Items)
	review.ReviewStatus = models.ReviewStatusAwaitingEmployeeConfirmation
	review.ManagerRating = overall(in.Rating, score, len(in.Items))
	review.ManagerComment = strings.TrimSpace(in.Comment)
	review.ManagerSignature = sig
	review.ManagerReviewedAt = &now

	review.EmployeeConfirmationStatus = ""
	review.EmployeeRejectionNote = ""
	review.EmployeeConfirmationSignature = ""
	review.EmployeeConfirmedAt = nil
	review.RejectionResolvedStatus = ""
	review.RejectionResolvedBy = nil
	review.RejectionResolvedAt = nil
	review.RejectionResolvedNote = ""

	return &Outcome{
		KPI:    kpi,
		Review: review,
		Items:  items,
		Effects: []Effect{
			Notify{
				Type: models.NotificationManagerReviewSubmitted,
				To:   []Audience{AudienceEmployee, AudienceHR},
				Vars: map[string]string{"score": fmt.Sprintf("%.2f", score.Final)},
			},
			GenerateDocument{},
		},
	}, nil
}

// ConfirmReview records the employee's approval or rejection of the manager's rating.
func ConfirmReview(now time.Time, actor Actor, kpi *models.KPI, review *models.KPIReview, in ConfirmationInput) (*Outcome, error) {
	if err := requireEmployee(actor, kpi); err != nil {
		return nil, err
	}
	if review == nil {
		return nil, illegal("kpi %d has no review to confirm", kpi.ID)
	}
	if review.ReviewStatus != models.ReviewStatusAwaitingEmployeeConfirmation {
		return nil, illegal("review %d is %s, it is not awaiting confirmation", review.ID, review.ReviewStatus)
	}

	status := strings.ToLower(strings.TrimSpace(in.Status))
	note := strings.TrimSpace(in.RejectionNote)
	sig := strings.TrimSpace(in.Signature)

	var effect Notify
	switch status {
	case models.ConfirmationApproved:
		if sig == "" {
			return nil, invalid("signature", "is required to approve a review")
		}
		review.ReviewStatus = models.ReviewStatusCompleted
		kpi.Status = models.KPIStatusCompleted
		effect = Notify{Type: models.NotificationReviewApproved, To: []Audience{AudienceManager, AudienceHR}}
	case models.ConfirmationRejected:
		if note == "" {
			return nil, invalid("rejection_note", "is required to reject a review")
		}
		review.ReviewStatus = models.ReviewStatusRejected
		effect = Notify{
			Type: models.NotificationReviewRejected,
			To:   []Audience{AudienceManager, AudienceHR},
			Vars: map[string]string{"rejection_note": note},
		}
	default:
		return nil, invalid("confirmation_status", "must be approved or rejected")
	}

	review.EmployeeConfirmationStatus = status
	review.EmployeeRejectionNote = note
	review.EmployeeConfirmationSignature = sig
	review.EmployeeConfirmedAt = &now

	return &Outcome{KPI: kpi, Review: review, Effects: []Effect{effect}}, nil
}

// ResolveRejection marks a rejected review as resolved by HR. The review
// status stays rejected.
func ResolveRejection(now time.Time, actor Actor, kpi *models.KPI, review *models.KPIReview, in ResolveInput) (*Outcome, error) {
	if !actor.IsTenantWide() {
		return nil, forbidden("only HR can resolve rejections")
	}
	if review.ReviewStatus != models.ReviewStatusRejected {
		return nil, illegal("review %d is %s, only rejected reviews can be resolved", review.ID, review.ReviewStatus)
	}
	if review.RejectionResolvedStatus == models.RejectionResolved {
		return nil, illegal("review %d is already resolved", review.ID)
	}

	resolver := actor.UserID
	review.RejectionResolvedStatus = models.RejectionResolved
	review.RejectionResolvedBy = &resolver
	review.RejectionResolvedAt = &now
	review.RejectionResolvedNote = strings.TrimSpace(in.Note)

	return &Outcome{
		KPI:    kpi,
		Review: review,
		Effects: []Effect{
			Notify{
				Type: models.NotificationRejectionResolved,
				To:   []Audience{AudienceEmployee, AudienceManager},
				Vars: map[string]string{"resolution_note": review.RejectionResolvedNote},
			},
		},
	}, nil
}

func requireEmployee(actor Actor, kpi *models.KPI) error {
	if actor.UserID != kpi.EmployeeID {
		return forbidden("user %d is not the employee of kpi %d", actor.UserID, kpi.ID)
	}
	return nil
}

func requireManager(actor Actor, kpi *models.KPI) error {
	if actor.IsTenantWide() || actor.UserID == kpi.ManagerID {
		return nil
	}
	return forbidden("user %d is not the manager of kpi %d", actor.UserID, kpi.ID)
}

// applyItemRatings applies ratings to the KPI's items in place and returns
// the changed items. Every rating must name an item of the KPI.
func applyItemRatings(kpi *models.KPI, ratings []ItemRating, apply func(*models.KPIItem, ItemRating) error) ([]models.KPIItem, error) {
	index := make(map[uint]int, len(kpi.Items))
	for i := range kpi.Items {
		index[kpi.Items[i].ID] = i
	}

	var changed []models.KPIItem
	seen := make(map[uint]bool, len(ratings))
	for _, r := range ratings {
		i, ok := index[r.ItemID]
		if !ok {
			return nil, invalid("items", fmt.Sprintf("item %d does not belong to kpi %d", r.ItemID, kpi.ID))
		}
		if seen[r.ItemID] {
			return nil, invalid("items", fmt.Sprintf("item %d is rated twice", r.ItemID))
		}
		seen[r.ItemID] = true
		if err := apply(&kpi.Items[i], r); err != nil {
			return nil, err
		}
		changed = append(changed, kpi.Items[i])
	}
	return changed, nil
}

// overall returns the explicit rating, or the weighted item score when
// items were rated and no explicit rating was given.
func overall(explicit *float64, score rating.Score, ratedItems int) *float64 {
	if explicit != nil {
		v := *explicit
		return &v
	}
	if ratedItems == 0 {
		return nil
	}
	v := score.Final
	return &v
}
