// internal/models/advice.go
package models

type BMICategory string

const (
	BMIUnderweight BMICategory = "underweight"
	BMINormal      BMICategory = "normal"
	BMIOverweight  BMICategory = "overweight"
	BMIObese       BMICategory = "obese"
)

// BMIResult carries the exact value and a two-decimal rendering for display.
type BMIResult struct {
	Value    float64     `json:"value"`
	Rounded  float64     `json:"rounded"`
	Category BMICategory `json:"category"`
}

// FoodItem is a food with its known ingredient and allergen tags.
type FoodItem struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

type CompatibilityResult struct {
	Food             string   `json:"food"`
	Compatible       bool     `json:"compatible"`
	ConflictingItems []string `json:"conflicting_items"`
}

type FoodWarning struct {
	Food   string `json:"food"`
	Reason string `json:"reason"`
}

type DietAnalysis struct {
	CompatibleFoods  []string              `json:"compatible_foods"`
	AllergenWarnings []FoodWarning         `json:"allergen_warnings"`
	RestrictedFoods  []FoodWarning         `json:"restricted_foods"`
	Results          []CompatibilityResult `json:"results"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RequestPayload is what the advisor client sends to the completion endpoint.
type RequestPayload struct {
	Model       string        `json:"model,omitempty"`
	System      string        `json:"-"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}
