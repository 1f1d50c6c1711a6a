// internal/health/tips.go
package health

import "healthara/internal/models"

const maxTips = 3

// Tips returns up to three quick suggestions derived from the profile.
func Tips(p *models.HealthProfile) []string {
	tips := []string{}
	if p == nil {
		return tips
	}

	if bmi, err := ComputeBMI(p.HeightCM, p.WeightKG); err == nil {
		switch {
		case bmi.Value < underweightBelow:
			tips = append(tips, "Consider increasing caloric intake with nutrient-dense foods")
		case bmi.Value > overweightFrom:
			tips = append(tips, "Focus on portion control and regular exercise")
		}
	}

	switch p.Goals.PrimaryObjective {
	case "lose_weight":
		tips = append(tips, "Prioritize vegetables and lean proteins")
	case "build_muscle":
		tips = append(tips, "Ensure adequate protein intake (1.6-2.2g per kg body weight)")
	}

	if p.Age > 50 {
		tips = append(tips, "Consider calcium and vitamin D supplementation")
	}

	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}
	return tips
}
