package projects

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Restoration methods.
const (
	MethodPlantation          = "plantation"
	MethodNaturalRegeneration = "natural_regeneration"
	MethodMixed               = "mixed"
)

// Milestone statuses.
const (
	MilestonePending    = "pending"
	MilestoneInProgress = "in_progress"
	MilestoneCompleted  = "completed"
	MilestoneDelayed    = "delayed"
)

// Review comment types, derived from the status transition that produced
// the comment.
const (
	CommentApproval        = "approval"
	CommentRejection       = "rejection"
	CommentRevisionRequest = "revision_request"
)

// Area and vintage bounds.
const (
	MinAreaHectares = 0.1
	MaxAreaHectares = 10000
	MinVintageYear  = 2000
)

// Evidence is a stored object reference (image or document).
type Evidence struct {
	URL         string    `bson:"url" json:"url"`
	Key         string    `bson:"key" json:"key"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	FileName    string    `bson:"file_name,omitempty" json:"fileName,omitempty"`
	FileType    string    `bson:"file_type,omitempty" json:"fileType,omitempty"`
	UploadedAt  time.Time `bson:"uploaded_at" json:"uploadedAt"`
}

// SpeciesShare is one entry of the species composition.
type SpeciesShare struct {
	Species    string  `bson:"species" json:"species"`
	Percentage float64 `bson:"percentage" json:"percentage"`
}

// Milestone is owned by a project and mutated only through the project's
// milestone operations.
type Milestone struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title         string             `bson:"title" json:"title"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	TargetDate    *time.Time         `bson:"target_date,omitempty" json:"targetDate,omitempty"`
	CompletedDate *time.Time         `bson:"completed_date,omitempty" json:"completedDate,omitempty"`
	Status        string             `bson:"status" json:"status"`
	Evidence      []Evidence         `bson:"evidence" json:"evidence"`
}

// ReviewComment is append-only.
type ReviewComment struct {
	Comment    string    `bson:"comment" json:"comment"`
	ReviewedBy string    `bson:"reviewed_by" json:"reviewedBy"`
	ReviewedAt time.Time `bson:"reviewed_at" json:"reviewedAt"`
	Type       string    `bson:"type" json:"type"`
}

// GeoPoint is a GeoJSON Point in [longitude, latitude] order, indexed with
// a 2dsphere index for proximity queries.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// VerificationData captures how a project was verified.
type VerificationData struct {
	VerifiedBy         string     `bson:"verified_by,omitempty" json:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time `bson:"verified_at,omitempty" json:"verifiedAt,omitempty"`
	VerificationMethod string     `bson:"verification_method,omitempty" json:"verificationMethod,omitempty"`
	VerificationReport string     `bson:"verification_report,omitempty" json:"verificationReport,omitempty"`
	Confidence         *float64   `bson:"confidence,omitempty" json:"confidence,omitempty"`
}

// CarbonData holds carbon measurement figures.
type CarbonData struct {
	SoilCarbon        *float64   `bson:"soil_carbon,omitempty" json:"soilCarbon,omitempty"`
	BiomassCarbon     *float64   `bson:"biomass_carbon,omitempty" json:"biomassCarbon,omitempty"`
	TotalCarbon       *float64   `bson:"total_carbon,omitempty" json:"totalCarbon,omitempty"`
	CarbonPerHectare  *float64   `bson:"carbon_per_hectare,omitempty" json:"carbonPerHectare,omitempty"`
	MeasurementDate   *time.Time `bson:"measurement_date,omitempty" json:"measurementDate,omitempty"`
	MeasurementMethod string     `bson:"measurement_method,omitempty" json:"measurementMethod,omitempty"`
}

// BiodiversityMetrics holds survey figures.
type BiodiversityMetrics struct {
	SpeciesCount      *int       `bson:"species_count,omitempty" json:"speciesCount,omitempty"`
	EndemicSpecies    *int       `bson:"endemic_species,omitempty" json:"endemicSpecies,omitempty"`
	ThreatenedSpecies *int       `bson:"threatened_species,omitempty" json:"threatenedSpecies,omitempty"`
	SurveyDate        *time.Time `bson:"survey_date,omitempty" json:"surveyDate,omitempty"`
}

// SocialImpact holds community impact figures.
type SocialImpact struct {
	CommunitiesInvolved *int `bson:"communities_involved,omitempty" json:"communitiesInvolved,omitempty"`
	JobsCreated         *int `bson:"jobs_created,omitempty" json:"jobsCreated,omitempty"`
	Beneficiaries       *int `bson:"beneficiaries,omitempty" json:"beneficiaries,omitempty"`
}

// Project is the central entity: a coastal restoration project moving
// through the review lifecycle.
type Project struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Description  string             `bson:"description" json:"description"`
	Organization string             `bson:"organization" json:"organization"`
	SubmittedBy  primitive.ObjectID `bson:"submitted_by" json:"submittedBy"`
	Region       string             `bson:"region" json:"region"`
	Area         float64            `bson:"area" json:"area"`
	Method       string             `bson:"method" json:"method"`
	Vintage      int                `bson:"vintage" json:"vintage"`
	Status       string             `bson:"status" json:"status"`

	Credits          int64 `bson:"credits" json:"credits"`
	EstimatedCredits int64 `bson:"estimated_credits" json:"estimatedCredits"`

	Images    []Evidence `bson:"images" json:"images"`
	Documents []Evidence `bson:"documents" json:"documents"`

	Location *GeoPoint      `bson:"location,omitempty" json:"location,omitempty"`
	GeoData  map[string]any `bson:"geo_data,omitempty" json:"geoData,omitempty"`

	SpeciesMix     []SpeciesShare  `bson:"species_mix" json:"speciesMix"`
	Milestones     []Milestone     `bson:"milestones" json:"milestones"`
	ReviewComments []ReviewComment `bson:"review_comments" json:"reviewComments"`

	Verification *VerificationData    `bson:"verification,omitempty" json:"verification,omitempty"`
	Carbon       *CarbonData          `bson:"carbon,omitempty" json:"carbon,omitempty"`
	Biodiversity *BiodiversityMetrics `bson:"biodiversity,omitempty" json:"biodiversity,omitempty"`
	SocialImpact *SocialImpact        `bson:"social_impact,omitempty" json:"socialImpact,omitempty"`

	IsPublic      bool     `bson:"is_public" json:"isPublic"`
	Priority      string   `bson:"priority" json:"priority"`
	Tags          []string `bson:"tags" json:"tags"`
	LastUpdatedBy string   `bson:"last_updated_by,omitempty" json:"lastUpdatedBy,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// ValidMethod reports whether m is a known restoration method.
func ValidMethod(m string) bool {
	return m == MethodPlantation || m == MethodNaturalRegeneration || m == MethodMixed
}

// ValidMilestoneStatus reports whether s is a known milestone status.
func ValidMilestoneStatus(s string) bool {
	switch s {
	case MilestonePending, MilestoneInProgress, MilestoneCompleted, MilestoneDelayed:
		return true
	}
	return false
}

// ValidateArea checks the hectare bounds.
func ValidateArea(area float64) error {
	if area < MinAreaHectares || area > MaxAreaHectares {
		return fmt.Errorf("area must be between %g and %g hectares", MinAreaHectares, float64(MaxAreaHectares))
	}
	return nil
}

// ValidateVintage checks the vintage year bounds relative to now.
func ValidateVintage(vintage int, now time.Time) error {
	max := now.Year() + 5
	if vintage < MinVintageYear || vintage > max {
		return fmt.Errorf("vintage must be between %d and %d", MinVintageYear, max)
	}
	return nil
}

// ValidateSpeciesMix checks that percentages sum to 100 within a 0.1
// tolerance. An empty mix is allowed.
func ValidateSpeciesMix(mix []SpeciesShare) error {
	if len(mix) == 0 {
		return nil
	}
	var sum float64
	for _, s := range mix {
		if s.Species == "" {
			return fmt.Errorf("species name is required")
		}
		if s.Percentage < 0 || s.Percentage > 100 {
			return fmt.Errorf("species percentage must be between 0 and 100")
		}
		sum += s.Percentage
	}
	if math.Abs(sum-100) > 0.1 {
		return fmt.Errorf("species percentages must sum to 100, got %.2f", sum)
	}
	return nil
}

// EstimateCredits computes the estimated credit yield from area, method and
// vintage. Newer vintages get a lower initial estimate: the multiplier is
// min(1, 0.7 + 0.1*(currentYear - vintage)), clamped at 1 on the high side
// only.
func EstimateCredits(area float64, method string, vintage int, now time.Time) int64 {
	var base float64
	switch method {
	case MethodPlantation:
		base = area * 15
	case MethodNaturalRegeneration:
		base = area * 12
	case MethodMixed:
		base = area * 13.5
	default:
		return 0
	}

	multiplier := 0.7 + 0.1*float64(now.Year()-vintage)
	if multiplier > 1 {
		multiplier = 1
	}
	return int64(math.Round(base * multiplier))
}

// CompletionPercentage is the share of completed milestones.
func (p *Project) CompletionPercentage() int {
	if len(p.Milestones) == 0 {
		return 0
	}
	completed := 0
	for _, m := range p.Milestones {
		if m.Status == MilestoneCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(p.Milestones)) * 100))
}
