package projects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateCredits(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	// Current-year vintage gets the 0.7 multiplier.
	assert.Equal(t, int64(525), EstimateCredits(50, MethodPlantation, 2026, now))
	assert.Equal(t, int64(420), EstimateCredits(50, MethodNaturalRegeneration, 2026, now))
	assert.Equal(t, int64(473), EstimateCredits(50, MethodMixed, 2026, now))

	// Three-year-old vintage hits the multiplier cap.
	assert.Equal(t, int64(750), EstimateCredits(50, MethodPlantation, 2023, now))
	// Older vintages do not exceed the cap.
	assert.Equal(t, int64(750), EstimateCredits(50, MethodPlantation, 2010, now))

	assert.Equal(t, int64(0), EstimateCredits(50, "agroforestry", 2026, now))
}

func TestValidateArea(t *testing.T) {
	assert.NoError(t, ValidateArea(0.1))
	assert.NoError(t, ValidateArea(10000))
	assert.Error(t, ValidateArea(0.05))
	assert.Error(t, ValidateArea(10000.5))
}

func TestValidateVintage(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, ValidateVintage(2000, now))
	assert.NoError(t, ValidateVintage(2031, now))
	assert.Error(t, ValidateVintage(1999, now))
	assert.Error(t, ValidateVintage(2032, now))
}

func TestValidateSpeciesMix(t *testing.T) {
	assert.NoError(t, ValidateSpeciesMix(nil))

	// Within the 0.1 tolerance.
	assert.NoError(t, ValidateSpeciesMix([]SpeciesShare{
		{Species: "Rhizophora mucronata", Percentage: 60},
		{Species: "Avicennia marina", Percentage: 39.95},
	}))

	assert.Error(t, ValidateSpeciesMix([]SpeciesShare{
		{Species: "Rhizophora mucronata", Percentage: 60},
		{Species: "Avicennia marina", Percentage: 30},
	}))

	assert.Error(t, ValidateSpeciesMix([]SpeciesShare{
		{Species: "", Percentage: 100},
	}))
}

func TestCompletionPercentage(t *testing.T) {
	p := &Project{}
	assert.Equal(t, 0, p.CompletionPercentage())

	p.Milestones = []Milestone{
		{Status: MilestoneCompleted},
		{Status: MilestoneCompleted},
		{Status: MilestonePending},
	}
	assert.Equal(t, 67, p.CompletionPercentage())
}
