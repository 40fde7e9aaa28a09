package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEffortToBudgetExactThresholds checks the documented low/medium/high
// ↔ 2048/8192/16384 mapping (spec.md §4.1).
func TestEffortToBudgetExactThresholds(t *testing.T) {
	assert.Equal(t, BudgetLow, EffortToBudget(EffortLow))
	assert.Equal(t, BudgetMedium, EffortToBudget(EffortMedium))
	assert.Equal(t, BudgetHigh, EffortToBudget(EffortHigh))
	assert.Equal(t, 0, EffortToBudget(EffortNone))
}

// TestBudgetToEffortNearestBelowThreshold is spec.md §4.1's bucketing
// rule: ≤2048→low, ≤8192→medium, else high.
func TestBudgetToEffortNearestBelowThreshold(t *testing.T) {
	assert.Equal(t, EffortLow, BudgetToEffort(100))
	assert.Equal(t, EffortLow, BudgetToEffort(BudgetLow))
	assert.Equal(t, EffortMedium, BudgetToEffort(5000))
	assert.Equal(t, EffortMedium, BudgetToEffort(BudgetMedium))
	assert.Equal(t, EffortHigh, BudgetToEffort(10000))
	assert.Equal(t, EffortHigh, BudgetToEffort(BudgetHigh))
	assert.Equal(t, EffortHigh, BudgetToEffort(100000))
}

// TestReasoningMappingIdempotence is spec.md §8 invariant 7:
// budget_to_effort(effort_to_budget(e)) == e for e in {low, medium, high}.
func TestReasoningMappingIdempotence(t *testing.T) {
	for _, e := range []ReasoningEffort{EffortLow, EffortMedium, EffortHigh} {
		assert.Equal(t, e, BudgetToEffort(EffortToBudget(e)), "round trip for %q", e)
	}
}
