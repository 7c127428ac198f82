// Package precheck implements the static, rule-based gate a scheduler tick
// runs before spending an LLM call on a record: a fixed, ordered table of
// threshold checks over the record's action history, short-circuiting at
// the first match.
package precheck

import "math"

// Reason is the machine-readable code attached to every Decision.
type Reason string

const (
	ReasonMaxAttemptsReached Reason = "MAX_ATTEMPTS_REACHED"
	ReasonTooSoon            Reason = "TOO_SOON"
	ReasonRecordTooRecent    Reason = "RECORD_TOO_RECENT"
	ReasonRecentlyUpdated    Reason = "RECENTLY_UPDATED"
	ReasonHighPriorityReady  Reason = "HIGH_PRIORITY_READY"
	ReasonLowPriorityTooSoon Reason = "LOW_PRIORITY_TOO_SOON"
	ReasonFirstActionCand    Reason = "FIRST_ACTION_CANDIDATE"
	ReasonNeedsAIAnalysis    Reason = "NEEDS_AI_ANALYSIS"
)

// Priority mirrors agent.Priority without importing the agent package, so
// precheck stays usable independent of the graph engine.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rules is the tunable threshold set, sourced from
// agent.SchedulerRules (§6 "Scheduler rules") at workflow-definition load
// time.
type Rules struct {
	MinDaysBetweenActions    float64
	MaxActionAttempts        int
	RecordTooRecentDays      float64
	RecentUpdateCooldownDays float64
	HighPriorityMinDays      float64
	LowPriorityMultiplier    float64
}

// Input is the five derived quantities the rule table matches against.
// DaysSinceLastAction is math.Inf(1) when the record has never received an
// outbound action-channel message.
type Input struct {
	ActionCount         int
	DaysSinceLastAction float64
	DaysSinceLastUpdate float64
	DaysSinceCreation   float64
	Priority            Priority
}

// Decision is the pre-check's verdict: whether the scheduler should enter
// the graph for this record, and why.
type Decision struct {
	Proceed bool
	Reason  Reason
}

// Evaluate runs the ordered rule table in Input and returns the first
// matching Decision. Rule order is significant: HIGH priority's earlier
// readiness check (rule 5) is checked before the LOW priority cooldown
// (rule 6), so a HIGH-priority record reaching its minimum wait always
// proceeds regardless of what a LOW-priority rule would otherwise say.
func Evaluate(rules Rules, in Input) Decision {
	switch {
	case in.ActionCount >= rules.MaxActionAttempts:
		return Decision{Proceed: false, Reason: ReasonMaxAttemptsReached}
	case in.DaysSinceLastAction < rules.MinDaysBetweenActions:
		return Decision{Proceed: false, Reason: ReasonTooSoon}
	case in.DaysSinceCreation < rules.RecordTooRecentDays:
		return Decision{Proceed: false, Reason: ReasonRecordTooRecent}
	case in.DaysSinceLastUpdate < rules.RecentUpdateCooldownDays:
		return Decision{Proceed: false, Reason: ReasonRecentlyUpdated}
	case in.Priority == PriorityHigh && in.DaysSinceLastAction >= rules.HighPriorityMinDays:
		return Decision{Proceed: true, Reason: ReasonHighPriorityReady}
	case in.Priority == PriorityLow && in.DaysSinceLastAction < rules.MinDaysBetweenActions*rules.LowPriorityMultiplier:
		return Decision{Proceed: false, Reason: ReasonLowPriorityTooSoon}
	case in.ActionCount == 0 && in.DaysSinceCreation >= rules.MinDaysBetweenActions:
		return Decision{Proceed: true, Reason: ReasonFirstActionCand}
	default:
		return Decision{Proceed: true, Reason: ReasonNeedsAIAnalysis}
	}
}

// InfiniteDays is the DaysSinceLastAction value for a record with no prior
// outbound action-channel message.
var InfiniteDays = math.Inf(1)
