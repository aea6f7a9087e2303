package application

import "time"

type Eligibility struct {
	Eligible     bool       `json:"eligible"`
	Reason       string     `json:"reason,omitempty"`
	EligibleFrom *time.Time `json:"eligible_from,omitempty"`
	LatestID     string     `json:"latest_application_id,omitempty"`
	LatestStatus Status     `json:"latest_status,omitempty"`
	CheckFailed  bool       `json:"check_failed,omitempty"`
}

const (
	ReasonInProgress = "application_in_progress"
	ReasonCooldown   = "repayment_period_active"
)

// CheckEligibility decides whether a customer may start a new loan
// application given their most recent one (nil when they have none).
// An approved loan blocks new applications until its repayment period has
// run from the approval date.
func CheckEligibility(latest *Entity, now time.Time) Eligibility {
	if latest == nil {
		return Eligibility{Eligible: true}
	}
	out := Eligibility{LatestID: latest.ID, LatestStatus: latest.Status}

	switch latest.Status {
	case StatusDeclined:
		out.Eligible = true
	case StatusApproved:
		from := approvalDate(latest).AddDate(0, int(latest.RepaymentMonths), 0)
		if now.Before(from) {
			out.Reason = ReasonCooldown
			out.EligibleFrom = &from
			return out
		}
		out.Eligible = true
	default:
		out.Reason = ReasonInProgress
	}
	return out
}

func approvalDate(e *Entity) time.Time {
	if e.COOApproval.At != nil {
		return *e.COOApproval.At
	}
	return e.CreatedAt
}
