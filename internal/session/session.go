// internal/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"healthara/internal/advisor"
	"healthara/internal/health"
	"healthara/internal/models"
	"healthara/internal/storage"
)

// Session is the single user's working context: profile, conversation and
// the collaborators every handler needs. Handlers receive it explicitly.
type Session struct {
	mu      sync.Mutex
	store   *storage.ProfileStore
	archive *storage.Archive // nil when the archive is disabled
	builder *health.Builder
	catalog *health.Catalog
	advisor advisor.Completer
	now     func() time.Time
}

type Options struct {
	Store   *storage.ProfileStore
	Archive *storage.Archive
	Builder *health.Builder
	Catalog *health.Catalog
	Advisor advisor.Completer
}

func New(opts Options) *Session {
	s := &Session{
		store:   opts.Store,
		archive: opts.Archive,
		builder: opts.Builder,
		catalog: opts.Catalog,
		advisor: opts.Advisor,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if s.builder == nil {
		s.builder = health.NewBuilder()
	}
	return s
}

// Profile returns the stored profile. An unreadable record is treated as
// absent: the failure is logged and ErrProfileNotFound is returned so the
// caller prompts for a new profile.
func (s *Session) Profile() (*models.HealthProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileLocked()
}

func (s *Session) profileLocked() (*models.HealthProfile, error) {
	p, err := s.store.Load()
	if errors.Is(err, models.ErrStorage) {
		log.Error().Err(err).Msg("Failed to load health profile, treating as absent")
		return nil, models.ErrProfileNotFound
	}
	return p, err
}

// SaveProfile replaces the whole profile.
func (s *Session) SaveProfile(p *models.HealthProfile) (*models.HealthProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(p); err != nil {
		return nil, err
	}
	return s.store.Load()
}

type PersonalInfo struct {
	Age      *int           `json:"age"`
	Gender   *models.Gender `json:"gender"`
	HeightCM *float64       `json:"height_cm"`
	WeightKG *float64       `json:"weight_kg"`
}

type MedicalInfo struct {
	Allergies           *[]string `json:"allergies"`
	ChronicConditions   *[]string `json:"chronic_conditions"`
	Medications         *[]string `json:"medications"`
	DietaryRestrictions *[]string `json:"dietary_restrictions"`
}

type GoalsUpdate struct {
	TargetWeightKG   *float64              `json:"target_weight_kg"`
	ActivityLevel    *models.ActivityLevel `json:"activity_level"`
	PrimaryObjective *string               `json:"primary_objective"`
}

// UpdatePersonal applies the non-nil fields. A first update creates the profile.
func (s *Session) UpdatePersonal(u PersonalInfo) (*models.HealthProfile, error) {
	return s.patch(func(p *models.HealthProfile) {
		if u.Age != nil {
			p.Age = *u.Age
		}
		if u.Gender != nil {
			p.Gender = *u.Gender
		}
		if u.HeightCM != nil {
			p.HeightCM = *u.HeightCM
		}
		if u.WeightKG != nil {
			p.WeightKG = *u.WeightKG
		}
	})
}

func (s *Session) UpdateMedical(u MedicalInfo) (*models.HealthProfile, error) {
	return s.patch(func(p *models.HealthProfile) {
		if u.Allergies != nil {
			p.Allergies = *u.Allergies
		}
		if u.ChronicConditions != nil {
			p.ChronicConditions = *u.ChronicConditions
		}
		if u.Medications != nil {
			p.Medications = *u.Medications
		}
		if u.DietaryRestrictions != nil {
			p.DietaryRestrictions = *u.DietaryRestrictions
		}
	})
}

func (s *Session) UpdateGoals(u GoalsUpdate) (*models.HealthProfile, error) {
	return s.patch(func(p *models.HealthProfile) {
		if u.TargetWeightKG != nil {
			p.Goals.TargetWeightKG = *u.TargetWeightKG
		}
		if u.ActivityLevel != nil {
			p.Goals.ActivityLevel = *u.ActivityLevel
		}
		if u.PrimaryObjective != nil {
			p.Goals.PrimaryObjective = *u.PrimaryObjective
		}
	})
}

func (s *Session) patch(apply func(p *models.HealthProfile)) (*models.HealthProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.profileLocked()
	created := errors.Is(err, models.ErrProfileNotFound)
	if created {
		p = models.NewHealthProfile()
	} else if err != nil {
		return nil, err
	}

	apply(p)
	if err := s.store.Save(p); err != nil {
		if created && errors.Is(err, models.ErrInvalidInput) {
			return nil, fmt.Errorf("%w; save personal info first", err)
		}
		return nil, err
	}
	return s.store.Load()
}

// DeleteProfile removes the profile and its history.
func (s *Session) DeleteProfile() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete()
}

func (s *Session) BMI() (models.BMIResult, error) {
	p, err := s.Profile()
	if err != nil {
		return models.BMIResult{}, err
	}
	return health.ProfileBMI(p)
}

func (s *Session) Summary() string {
	p, _ := s.Profile()
	return health.Summary(p)
}

func (s *Session) Tips() []string {
	p, _ := s.Profile()
	return health.Tips(p)
}

func (s *Session) CheckFood(name string) (models.CompatibilityResult, error) {
	if strings.TrimSpace(name) == "" {
		return models.CompatibilityResult{}, fmt.Errorf("%w: food is empty", models.ErrInvalidInput)
	}
	p, _ := s.Profile()
	return health.Check(s.catalog.Resolve(name), p), nil
}

func (s *Session) AnalyzeFoods(foods []string) (models.DietAnalysis, error) {
	if len(models.NormalizeSet(foods)) == 0 {
		return models.DietAnalysis{}, fmt.Errorf("%w: no foods given", models.ErrInvalidInput)
	}
	p, _ := s.Profile()
	return health.Analyze(foods, s.catalog, p), nil
}

func (s *Session) History() ([]models.ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.store.History()
	if errors.Is(err, models.ErrStorage) {
		log.Error().Err(err).Msg("Failed to load conversation history, treating as empty")
		return []models.ConversationEntry{}, nil
	}
	return h, err
}

// Ask runs one build, send, append transaction. History is written only
// after a successful reply, and then both turns are written together.
func (s *Session) Ask(ctx context.Context, message string) (*models.ConversationEntry, error) {
	s.mu.Lock()
	profile, _ := s.profileLocked()
	history, err := s.store.History()
	if err != nil {
		history = nil
	}
	s.mu.Unlock()

	payload, err := s.builder.Build(profile, message, history)
	if err != nil {
		return nil, err
	}

	asked := s.now()
	reply, err := s.advisor.Complete(ctx, payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Info().Msg("Advice request cancelled, nothing recorded")
			return nil, ctxErr
		}
		if !errors.Is(err, models.ErrServiceUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrServiceUnavailable, err)
		}
		log.Warn().Err(err).Msg("Advice request failed")
		return nil, err
	}
	// The caller may have gone away while the reply was in flight.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	userEntry := models.ConversationEntry{
		ID:        uuid.New().String(),
		Timestamp: asked,
		Role:      models.RoleUser,
		Text:      strings.TrimSpace(message),
	}
	assistantEntry := models.ConversationEntry{
		ID:        uuid.New().String(),
		Timestamp: s.now(),
		Role:      models.RoleAssistant,
		Text:      reply,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.AppendExchange(userEntry, assistantEntry); err != nil {
		return nil, err
	}
	return &assistantEntry, nil
}

func (s *Session) ClearConversation() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.ClearHistory()
}

// SaveConversation snapshots the current conversation into the archive.
func (s *Session) SaveConversation() (*models.SavedConversation, error) {
	if s.archive == nil {
		return nil, models.ErrArchiveDisabled
	}
	history, err := s.History()
	if err != nil {
		return nil, err
	}
	return s.archive.SaveConversation(history)
}

func (s *Session) SavedConversations(limit int) ([]*models.SavedConversation, error) {
	if s.archive == nil {
		return nil, models.ErrArchiveDisabled
	}
	return s.archive.ListConversations(limit)
}

func (s *Session) SavedConversation(id string) (*models.SavedConversation, error) {
	if s.archive == nil {
		return nil, models.ErrArchiveDisabled
	}
	return s.archive.GetConversation(id)
}

// Export serializes profile, history and archived conversations as one bundle.
func (s *Session) Export(pretty bool) ([]byte, error) {
	s.mu.Lock()
	bundle, err := s.store.Bundle()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		saved, err := s.archive.ListConversations(1000)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		for _, c := range saved {
			bundle.SavedConversations = append(bundle.SavedConversations, *c)
		}
	}
	return storage.MarshalBundle(bundle, pretty)
}
