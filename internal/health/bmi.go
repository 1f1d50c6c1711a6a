// internal/health/bmi.go
package health

import (
	"fmt"
	"math"

	"healthara/internal/models"
)

// Clinical BMI bands. A value equal to a bound falls in the upper band.
const (
	underweightBelow = 18.5
	overweightFrom   = 25.0
	obeseFrom        = 30.0
)

// ComputeBMI returns weight / (height in metres)^2 and its category.
// The category is taken from the exact value.
func ComputeBMI(heightCM, weightKG float64) (models.BMIResult, error) {
	if !(heightCM > 0) || math.IsInf(heightCM, 0) {
		return models.BMIResult{}, fmt.Errorf("%w: height_cm must be greater than 0, got %v", models.ErrInvalidInput, heightCM)
	}
	if !(weightKG > 0) || math.IsInf(weightKG, 0) {
		return models.BMIResult{}, fmt.Errorf("%w: weight_kg must be greater than 0, got %v", models.ErrInvalidInput, weightKG)
	}

	heightM := heightCM / 100
	bmi := weightKG / (heightM * heightM)

	return models.BMIResult{
		Value:    bmi,
		Rounded:  math.Round(bmi*100) / 100,
		Category: Categorize(bmi),
	}, nil
}

// Categorize maps a raw BMI value to its band.
func Categorize(bmi float64) models.BMICategory {
	switch {
	case bmi < underweightBelow:
		return models.BMIUnderweight
	case bmi < overweightFrom:
		return models.BMINormal
	case bmi < obeseFrom:
		return models.BMIOverweight
	default:
		return models.BMIObese
	}
}

// ProfileBMI computes BMI for a stored profile.
func ProfileBMI(p *models.HealthProfile) (models.BMIResult, error) {
	if p == nil {
		return models.BMIResult{}, fmt.Errorf("%w: no profile", models.ErrInvalidInput)
	}
	return ComputeBMI(p.HeightCM, p.WeightKG)
}
