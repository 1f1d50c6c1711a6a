// internal/health/prompt.go
package health

import (
	"fmt"
	"strconv"
	"strings"

	"healthara/internal/models"
)

const noProfileSummary = "No health information available"

const systemPromptTemplate = `You are a certified nutritionist and health advisor. You have access to the following health profile:

%s

Based on this health information, please provide personalized nutrition advice. Consider:

1. Current health metrics (BMI, age, weight, height)
2. Any medical conditions, allergies, or dietary restrictions
3. Health goals and activity level
4. Medication interactions with food (if applicable)

Guidelines for your response:
- Provide specific, actionable dietary recommendations
- Consider portion sizes appropriate for the person's metrics
- Suggest meal timing and frequency
- Include hydration recommendations
- Mention any foods to avoid based on medical history
- Provide future health predictions and preventive measures
- Include specific nutrients that might be beneficial
- Suggest monitoring parameters (weight, blood sugar, etc.)

Please provide a comprehensive, personalized response that addresses their specific needs and health profile.`

// Builder assembles the outbound advice request. The zero value is not
// useful; use NewBuilder.
type Builder struct {
	Model           string
	MaxTokens       int
	Temperature     float64
	HistoryLimit    int // most recent entries carried as context
	MaxEntryRunes   int // per-entry truncation
	MaxContextRunes int // budget for all carried history
}

func NewBuilder() *Builder {
	return &Builder{
		MaxTokens:       2000,
		Temperature:     0.7,
		HistoryLimit:    10,
		MaxEntryRunes:   1000,
		MaxContextRunes: 8000,
	}
}

// Build serializes the profile and recent history into a bounded context
// followed by the new message. Same inputs always give the same payload.
func (b *Builder) Build(profile *models.HealthProfile, userMessage string, history []models.ConversationEntry) (*models.RequestPayload, error) {
	userMessage = strings.TrimSpace(userMessage)
	if userMessage == "" {
		return nil, fmt.Errorf("%w: message is empty", models.ErrInvalidInput)
	}

	system := fmt.Sprintf(systemPromptTemplate, Summary(profile))

	messages := []models.ChatMessage{{Role: "system", Content: system}}
	messages = append(messages, b.contextWindow(history)...)
	messages = append(messages, models.ChatMessage{Role: string(models.RoleUser), Content: userMessage})

	return &models.RequestPayload{
		Model:       b.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   b.MaxTokens,
		Temperature: b.Temperature,
	}, nil
}

// contextWindow keeps the newest HistoryLimit entries, truncates each, then
// drops the oldest until the total fits MaxContextRunes.
func (b *Builder) contextWindow(history []models.ConversationEntry) []models.ChatMessage {
	if b.HistoryLimit <= 0 || len(history) == 0 {
		return nil
	}
	start := len(history) - b.HistoryLimit
	if start < 0 {
		start = 0
	}
	recent := history[start:]

	window := make([]models.ChatMessage, 0, len(recent))
	total := 0
	for _, entry := range recent {
		text := truncateRunes(entry.Text, b.MaxEntryRunes)
		total += len([]rune(text))
		window = append(window, models.ChatMessage{Role: string(entry.Role), Content: text})
	}

	for b.MaxContextRunes > 0 && total > b.MaxContextRunes && len(window) > 0 {
		total -= len([]rune(window[0].Content))
		window = window[1:]
	}
	return window
}

// Summary renders the profile the way the advisor sees it.
func Summary(p *models.HealthProfile) string {
	if p == nil {
		return noProfileSummary
	}

	var lines []string
	if p.Age > 0 {
		lines = append(lines, fmt.Sprintf("Age: %d years", p.Age))
	}
	if p.Gender != "" {
		lines = append(lines, fmt.Sprintf("Gender: %s", p.Gender))
	}
	if p.HeightCM > 0 {
		lines = append(lines, fmt.Sprintf("Height: %s cm", formatFloat(p.HeightCM)))
	}
	if p.WeightKG > 0 {
		lines = append(lines, fmt.Sprintf("Weight: %s kg", formatFloat(p.WeightKG)))
	}
	if bmi, err := ComputeBMI(p.HeightCM, p.WeightKG); err == nil {
		lines = append(lines, fmt.Sprintf("BMI: %s (%s)", formatFloat(bmi.Rounded), bmi.Category))
	}

	lines = appendList(lines, "Allergies", p.Allergies)
	lines = appendList(lines, "Chronic Conditions", p.ChronicConditions)
	lines = appendList(lines, "Medications", p.Medications)
	lines = appendList(lines, "Dietary Restrictions", p.DietaryRestrictions)
	lines = appendList(lines, "Preferred Cuisines", p.DietPreferences.PreferredCuisines)

	if p.Goals.TargetWeightKG > 0 {
		lines = append(lines, fmt.Sprintf("Weight Goal: %s kg", formatFloat(p.Goals.TargetWeightKG)))
	}
	if p.Goals.ActivityLevel != "" {
		lines = append(lines, fmt.Sprintf("Activity Level: %s", p.Goals.ActivityLevel))
	}
	if p.Goals.PrimaryObjective != "" {
		lines = append(lines, fmt.Sprintf("Primary Goal: %s", p.Goals.PrimaryObjective))
	}
	if p.DietPreferences.MealFrequency > 0 {
		lines = append(lines, fmt.Sprintf("Meals Per Day: %d", p.DietPreferences.MealFrequency))
	}
	if p.DietPreferences.WaterIntakeGoalLiters > 0 {
		lines = append(lines, fmt.Sprintf("Water Goal: %s L", formatFloat(p.DietPreferences.WaterIntakeGoalLiters)))
	}

	if len(lines) == 0 {
		return noProfileSummary
	}
	return strings.Join(lines, "\n")
}

func appendList(lines []string, label string, items []string) []string {
	if len(items) == 0 {
		return lines
	}
	return append(lines, fmt.Sprintf("%s: %s", label, strings.Join(items, ", ")))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
