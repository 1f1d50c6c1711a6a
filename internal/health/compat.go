// internal/health/compat.go
package health

import (
	"fmt"
	"strings"

	"healthara/internal/models"
)

// Check cross-references a food's tags against the profile's allergies and
// dietary restrictions. A profile term conflicts when it equals, or is a
// substring of, one of the tags (case-insensitive). ConflictingItems keeps
// the profile's spelling and is empty, never nil, when the food is compatible.
func Check(food models.FoodItem, profile *models.HealthProfile) models.CompatibilityResult {
	result := models.CompatibilityResult{
		Food:             food.Name,
		Compatible:       true,
		ConflictingItems: []string{},
	}
	if profile == nil {
		return result
	}

	terms := models.NormalizeSet(append(append([]string{}, profile.Allergies...), profile.DietaryRestrictions...))
	for _, term := range terms {
		if matchesAny(term, food.Tags) {
			result.ConflictingItems = append(result.ConflictingItems, term)
		}
	}
	result.Compatible = len(result.ConflictingItems) == 0
	return result
}

// Analyze resolves each free-text food through the catalog and sorts it into
// compatible foods, allergen warnings and restriction warnings.
func Analyze(foods []string, catalog *Catalog, profile *models.HealthProfile) models.DietAnalysis {
	analysis := models.DietAnalysis{
		CompatibleFoods:  []string{},
		AllergenWarnings: []models.FoodWarning{},
		RestrictedFoods:  []models.FoodWarning{},
		Results:          []models.CompatibilityResult{},
	}

	for _, name := range models.NormalizeSet(foods) {
		item := catalog.Resolve(name)
		res := Check(item, profile)
		analysis.Results = append(analysis.Results, res)

		if res.Compatible {
			analysis.CompatibleFoods = append(analysis.CompatibleFoods, name)
			continue
		}

		if profile == nil {
			continue
		}
		for _, allergen := range profile.Allergies {
			if containsFold(res.ConflictingItems, allergen) {
				analysis.AllergenWarnings = append(analysis.AllergenWarnings, models.FoodWarning{
					Food:   name,
					Reason: fmt.Sprintf("Contains %s", allergen),
				})
				break
			}
		}
		for _, restriction := range profile.DietaryRestrictions {
			if containsFold(res.ConflictingItems, restriction) {
				analysis.RestrictedFoods = append(analysis.RestrictedFoods, models.FoodWarning{
					Food:   name,
					Reason: fmt.Sprintf("Violates %s restriction", restriction),
				})
				break
			}
		}
	}

	return analysis
}

func matchesAny(term string, tags []string) bool {
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return false
	}
	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func containsFold(items []string, want string) bool {
	for _, item := range items {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
