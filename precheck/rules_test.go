package precheck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultRules() Rules {
	return Rules{
		MinDaysBetweenActions:    3,
		MaxActionAttempts:        5,
		RecordTooRecentDays:      1,
		RecentUpdateCooldownDays: 0.5,
		HighPriorityMinDays:      1,
		LowPriorityMultiplier:    2,
	}
}

func TestEvaluate_OrderedRules(t *testing.T) {
	rules := defaultRules()

	cases := []struct {
		name   string
		in     Input
		proceed bool
		reason Reason
	}{
		{
			name:    "max attempts reached wins over everything else",
			in:      Input{ActionCount: 5, DaysSinceLastAction: 100, DaysSinceLastUpdate: 100, DaysSinceCreation: 100, Priority: PriorityHigh},
			proceed: false,
			reason:  ReasonMaxAttemptsReached,
		},
		{
			name:    "too soon since last action",
			in:      Input{ActionCount: 1, DaysSinceLastAction: 1, DaysSinceLastUpdate: 10, DaysSinceCreation: 10, Priority: PriorityMedium},
			proceed: false,
			reason:  ReasonTooSoon,
		},
		{
			name:    "record too recent",
			in:      Input{ActionCount: 0, DaysSinceLastAction: InfiniteDays, DaysSinceLastUpdate: 10, DaysSinceCreation: 0.2, Priority: PriorityMedium},
			proceed: false,
			reason:  ReasonRecordTooRecent,
		},
		{
			name:    "recently updated cooldown",
			in:      Input{ActionCount: 1, DaysSinceLastAction: 10, DaysSinceLastUpdate: 0.1, DaysSinceCreation: 10, Priority: PriorityMedium},
			proceed: false,
			reason:  ReasonRecentlyUpdated,
		},
		{
			name:    "high priority ready once the minimum gap has passed",
			in:      Input{ActionCount: 2, DaysSinceLastAction: 3, DaysSinceLastUpdate: 10, DaysSinceCreation: 10, Priority: PriorityHigh},
			proceed: true,
			reason:  ReasonHighPriorityReady,
		},
		{
			name:    "low priority too soon at a multiple of the ordinary cooldown",
			in:      Input{ActionCount: 2, DaysSinceLastAction: 5, DaysSinceLastUpdate: 10, DaysSinceCreation: 10, Priority: PriorityLow},
			proceed: false,
			reason:  ReasonLowPriorityTooSoon,
		},
		{
			name:    "first action candidate",
			in:      Input{ActionCount: 0, DaysSinceLastAction: InfiniteDays, DaysSinceLastUpdate: 10, DaysSinceCreation: 10, Priority: PriorityMedium},
			proceed: true,
			reason:  ReasonFirstActionCand,
		},
		{
			name:    "default needs AI analysis",
			in:      Input{ActionCount: 2, DaysSinceLastAction: 10, DaysSinceLastUpdate: 10, DaysSinceCreation: 10, Priority: PriorityMedium},
			proceed: true,
			reason:  ReasonNeedsAIAnalysis,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(rules, tc.in)
			require.Equal(t, tc.proceed, got.Proceed)
			require.Equal(t, tc.reason, got.Reason)
		})
	}
}

func TestEvaluate_HighPriorityBeatsLowPriorityCooldownOrdering(t *testing.T) {
	rules := defaultRules()
	// A HIGH priority record past the minimum gap (4 >= 3 days) but still
	// inside the LOW-priority cooldown window (4 < 3*2 days) proceeds,
	// confirming rule 5 is checked before rule 6.
	in := Input{ActionCount: 3, DaysSinceLastAction: 4, DaysSinceLastUpdate: 10, DaysSinceCreation: 10, Priority: PriorityHigh}
	got := Evaluate(rules, in)
	require.True(t, got.Proceed)
	require.Equal(t, ReasonHighPriorityReady, got.Reason)
}
