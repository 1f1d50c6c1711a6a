// internal/models/profile.go
package models

import (
	"fmt"
	"math"
	"strings"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

type ActivityLevel string

const (
	ActivitySedentary  ActivityLevel = "sedentary"
	ActivityLight      ActivityLevel = "light"
	ActivityModerate   ActivityLevel = "moderate"
	ActivityActive     ActivityLevel = "active"
	ActivityVeryActive ActivityLevel = "very_active"
)

var (
	Genders        = []Gender{GenderMale, GenderFemale, GenderOther}
	ActivityLevels = []ActivityLevel{ActivitySedentary, ActivityLight, ActivityModerate, ActivityActive, ActivityVeryActive}

	PrimaryObjectives   = []string{"lose_weight", "gain_weight", "maintain_health", "build_muscle", "improve_energy"}
	CommonAllergies     = []string{"nuts", "dairy", "gluten", "shellfish", "eggs", "soy", "fish"}
	DietaryRestrictions = []string{"vegetarian", "vegan", "keto", "low_carb", "low_fat", "diabetic", "heart_healthy"}
)

const (
	DefaultObjective     = "maintain_health"
	DefaultMealFrequency = 3
	DefaultWaterLiters   = 2.5
)

type HealthProfile struct {
	Age                 int             `json:"age"`
	Gender              Gender          `json:"gender"`
	HeightCM            float64         `json:"height_cm"`
	WeightKG            float64         `json:"weight_kg"`
	Allergies           []string        `json:"allergies"`
	ChronicConditions   []string        `json:"chronic_conditions"`
	Medications         []string        `json:"medications"`
	DietaryRestrictions []string        `json:"dietary_restrictions"`
	Goals               Goals           `json:"goals"`
	DietPreferences     DietPreferences `json:"diet_preferences"`
}

type Goals struct {
	TargetWeightKG   float64       `json:"target_weight_kg"` // 0 means unset
	ActivityLevel    ActivityLevel `json:"activity_level"`
	PrimaryObjective string        `json:"primary_objective"`
}

type DietPreferences struct {
	PreferredCuisines     []string `json:"preferred_cuisines"`
	MealFrequency         int      `json:"meal_frequency"`
	WaterIntakeGoalLiters float64  `json:"water_intake_goal_liters"`
}

// NewHealthProfile returns a profile carrying the defaults a fresh form starts with.
func NewHealthProfile() *HealthProfile {
	p := &HealthProfile{}
	p.Normalize()
	return p
}

// Normalize fills defaults and cleans the string sets in place. It is
// idempotent, so a normalized profile survives a save/load round trip unchanged.
func (p *HealthProfile) Normalize() {
	p.Gender = Gender(strings.ToLower(strings.TrimSpace(string(p.Gender))))
	p.Allergies = NormalizeSet(p.Allergies)
	p.ChronicConditions = NormalizeSet(p.ChronicConditions)
	p.Medications = NormalizeSet(p.Medications)
	p.DietaryRestrictions = NormalizeSet(p.DietaryRestrictions)
	p.DietPreferences.PreferredCuisines = NormalizeSet(p.DietPreferences.PreferredCuisines)

	p.Goals.ActivityLevel = ActivityLevel(strings.ToLower(strings.TrimSpace(string(p.Goals.ActivityLevel))))
	if p.Goals.ActivityLevel == "" {
		p.Goals.ActivityLevel = ActivityModerate
	}
	p.Goals.PrimaryObjective = strings.TrimSpace(p.Goals.PrimaryObjective)
	if p.Goals.PrimaryObjective == "" {
		p.Goals.PrimaryObjective = DefaultObjective
	}
	if p.DietPreferences.MealFrequency == 0 {
		p.DietPreferences.MealFrequency = DefaultMealFrequency
	}
	if p.DietPreferences.WaterIntakeGoalLiters == 0 {
		p.DietPreferences.WaterIntakeGoalLiters = DefaultWaterLiters
	}
}

// Validate rejects a profile that must not reach BMI computation or storage.
// All failures wrap ErrInvalidInput.
func (p *HealthProfile) Validate() error {
	if p.Age <= 0 || p.Age > 150 {
		return fmt.Errorf("%w: age must be between 1 and 150, got %d", ErrInvalidInput, p.Age)
	}
	if !validGender(p.Gender) {
		return fmt.Errorf("%w: unknown gender %q", ErrInvalidInput, p.Gender)
	}
	if !positiveFinite(p.HeightCM) {
		return fmt.Errorf("%w: height_cm must be greater than 0", ErrInvalidInput)
	}
	if !positiveFinite(p.WeightKG) {
		return fmt.Errorf("%w: weight_kg must be greater than 0", ErrInvalidInput)
	}
	if p.Goals.TargetWeightKG < 0 || math.IsNaN(p.Goals.TargetWeightKG) || math.IsInf(p.Goals.TargetWeightKG, 0) {
		return fmt.Errorf("%w: target_weight_kg must not be negative", ErrInvalidInput)
	}
	if !validActivity(p.Goals.ActivityLevel) {
		return fmt.Errorf("%w: unknown activity level %q", ErrInvalidInput, p.Goals.ActivityLevel)
	}
	if p.DietPreferences.MealFrequency < 0 {
		return fmt.Errorf("%w: meal_frequency must not be negative", ErrInvalidInput)
	}
	if p.DietPreferences.WaterIntakeGoalLiters < 0 {
		return fmt.Errorf("%w: water_intake_goal_liters must not be negative", ErrInvalidInput)
	}
	return nil
}

// Clone returns a deep copy so callers can't mutate shared slices.
func (p *HealthProfile) Clone() *HealthProfile {
	if p == nil {
		return nil
	}
	c := *p
	c.Allergies = cloneStrings(p.Allergies)
	c.ChronicConditions = cloneStrings(p.ChronicConditions)
	c.Medications = cloneStrings(p.Medications)
	c.DietaryRestrictions = cloneStrings(p.DietaryRestrictions)
	c.DietPreferences.PreferredCuisines = cloneStrings(p.DietPreferences.PreferredCuisines)
	return &c
}

// NormalizeSet trims entries, drops blanks and removes case-insensitive
// duplicates, keeping the first spelling. The result is never nil.
func NormalizeSet(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func validGender(g Gender) bool {
	for _, known := range Genders {
		if g == known {
			return true
		}
	}
	return false
}

func validActivity(a ActivityLevel) bool {
	for _, known := range ActivityLevels {
		if a == known {
			return true
		}
	}
	return false
}
