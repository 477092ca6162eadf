package domain

import "time"

// AppealKind distinguishes administrative appeal stages.
type AppealKind string

const (
	AppealKindPriorDefense   AppealKind = "prior_defense"
	AppealKindFirstInstance  AppealKind = "first_instance"
	AppealKindSecondInstance AppealKind = "second_instance"
)

// IsKnownAppealKind reports whether the kind is part of the catalog.
func IsKnownAppealKind(kind AppealKind) bool {
	switch kind {
	case AppealKindPriorDefense, AppealKindFirstInstance, AppealKindSecondInstance:
		return true
	}
	return false
}

// AppealOutcome is the ruling on a judged appeal.
type AppealOutcome string

const (
	AppealOutcomeGranted AppealOutcome = "granted"
	AppealOutcomeDenied  AppealOutcome = "denied"
)

// AppealStatus tracks the appeal's own processing state.
type AppealStatus string

const (
	AppealStatusUnderReview AppealStatus = "under_review"
	AppealStatusJudged      AppealStatus = "judged"
)

// Appeal is an administrative challenge filed against a notified
// ticket. Filing drives the ticket into under_appeal; the ruling
// drives it to appeal_granted or appeal_denied.
type Appeal struct {
	ID             string
	ProtocolNumber string
	TicketID       string
	FilerID        string
	Kind           AppealKind
	Grounds        string
	Status         AppealStatus
	Outcome        *AppealOutcome
	Ruling         *string
	JudgeID        *string
	FiledAt        time.Time
	JudgedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
