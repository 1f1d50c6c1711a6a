package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthara/internal/models"
)

func TestCheck_PeanutAllergy(t *testing.T) {
	profile := &models.HealthProfile{Allergies: []string{"peanuts"}}
	food := models.FoodItem{Name: "snack", Tags: []string{"peanuts", "sugar"}}

	res := Check(food, profile)
	assert.False(t, res.Compatible)
	assert.Equal(t, []string{"peanuts"}, res.ConflictingItems)
}

func TestCheck_NoOverlap(t *testing.T) {
	profile := &models.HealthProfile{
		Allergies:           []string{"shellfish"},
		DietaryRestrictions: []string{"vegan"},
	}
	res := Check(models.FoodItem{Name: "apple", Tags: []string{"apple", "fruit"}}, profile)

	assert.True(t, res.Compatible)
	assert.NotNil(t, res.ConflictingItems)
	assert.Empty(t, res.ConflictingItems)
}

func TestCheck_CaseInsensitiveSubstring(t *testing.T) {
	profile := &models.HealthProfile{
		Allergies:           []string{"Nuts", "dairy"},
		DietaryRestrictions: []string{"Vegan", "keto"},
	}
	food := models.FoodItem{Name: "trail mix", Tags: []string{"PEANUTS", "Not Vegan"}}

	res := Check(food, profile)
	assert.False(t, res.Compatible)
	assert.ElementsMatch(t, []string{"Nuts", "Vegan"}, res.ConflictingItems)
}

func TestCheck_DuplicateTermsReportedOnce(t *testing.T) {
	profile := &models.HealthProfile{
		Allergies:           []string{"gluten"},
		DietaryRestrictions: []string{"GLUTEN"},
	}
	res := Check(models.FoodItem{Name: "bread", Tags: []string{"gluten"}}, profile)
	assert.Equal(t, []string{"gluten"}, res.ConflictingItems)
}

func TestCheck_NilProfile(t *testing.T) {
	res := Check(models.FoodItem{Name: "anything", Tags: []string{"peanuts"}}, nil)
	assert.True(t, res.Compatible)
	assert.Empty(t, res.ConflictingItems)
}

func TestCatalog_Resolve(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	item := catalog.Resolve("  Grilled Chicken Breast ")
	assert.Equal(t, "Grilled Chicken Breast", item.Name)
	assert.Contains(t, item.Tags, "Grilled Chicken Breast")
	assert.Contains(t, item.Tags, "meat")
	assert.Contains(t, item.Tags, "not vegetarian")

	unknown := catalog.Resolve("quinoa")
	assert.Equal(t, []string{"quinoa"}, unknown.Tags)
}

func TestCatalog_NilResolvesNameOnly(t *testing.T) {
	var c *Catalog
	assert.Equal(t, []string{"milk"}, c.Resolve("milk").Tags)
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte("foods: [this is: not: valid"))
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	profile := &models.HealthProfile{
		Allergies:           []string{"nuts"},
		DietaryRestrictions: []string{"vegetarian"},
	}
	analysis := Analyze([]string{"apple", "peanut butter", "chicken salad", "apple", ""}, catalog, profile)

	assert.Equal(t, []string{"apple"}, analysis.CompatibleFoods)
	require.Len(t, analysis.AllergenWarnings, 1)
	assert.Equal(t, "peanut butter", analysis.AllergenWarnings[0].Food)
	assert.Equal(t, "Contains nuts", analysis.AllergenWarnings[0].Reason)
	require.Len(t, analysis.RestrictedFoods, 1)
	assert.Equal(t, "chicken salad", analysis.RestrictedFoods[0].Food)
	assert.Equal(t, "Violates vegetarian restriction", analysis.RestrictedFoods[0].Reason)
	assert.Len(t, analysis.Results, 3)
}

func TestCatalog_ResolveMatchesWholeWords(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	profile := &models.HealthProfile{
		Allergies:           []string{"eggs", "dairy"},
		DietaryRestrictions: []string{"vegan"},
	}

	for _, name := range []string{"eggplant", "almond milk", "oat milk", "coconut milk", "Soy Milk", "peanut butter"} {
		res := Check(catalog.Resolve(name), profile)
		assert.True(t, res.Compatible, "%s: %v", name, res.ConflictingItems)
	}

	for _, name := range []string{"scrambled eggs", "egg salad", "whole milk", "butter croissant"} {
		res := Check(catalog.Resolve(name), profile)
		assert.False(t, res.Compatible, name)
	}
}

func TestCatalog_ExceptStillKeepsOwnTags(t *testing.T) {
	catalog, err := DefaultCatalog()
	require.NoError(t, err)

	item := catalog.Resolve("almond milk")
	assert.Contains(t, item.Tags, "tree nuts")
	assert.NotContains(t, item.Tags, "dairy")
}

func TestParseCatalog_Except(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`
foods:
  - name: Cream
    tags: [dairy]
    except: [cream of tartar]
`))
	require.NoError(t, err)

	assert.Contains(t, catalog.Resolve("sour creams").Tags, "dairy")
	assert.NotContains(t, catalog.Resolve("Cream of Tartar").Tags, "dairy")
	assert.NotContains(t, catalog.Resolve("creamer").Tags, "dairy")
}
