package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageOrdering(t *testing.T) {
	prev, ok := StageAffectedScope.Previous()
	assert.True(t, ok)
	assert.Equal(t, StageBasicInfo, prev)

	prev, ok = StageContestation.Previous()
	assert.True(t, ok)
	assert.Equal(t, StageAIResponse, prev)

	_, ok = StageBasicInfo.Previous()
	assert.False(t, ok)
}

func TestParseStageAcceptsSlug(t *testing.T) {
	s, ok := ParseStage("blocking-impact")
	assert.True(t, ok)
	assert.Equal(t, StageBlockingImpact, s)

	s, ok = ParseStage("ai_response")
	assert.True(t, ok)
	assert.Equal(t, StageAIResponse, s)

	_, ok = ParseStage("etapa4")
	assert.False(t, ok)
}

func TestDraftHas(t *testing.T) {
	var d Draft
	assert.True(t, d.Empty())
	assert.False(t, d.Collected())

	d.BasicInfo = &BasicInfo{Title: "printer"}
	d.AffectedScope = &AffectedScope{AffectedParty: "me"}
	d.BlockingImpact = &BlockingImpact{}
	assert.False(t, d.Empty())
	assert.True(t, d.Collected())
	assert.True(t, d.Has(StageAffectedScope))
	assert.False(t, d.Has(StageAIResponse))
}
