// internal/server/handlers.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"healthara/internal/models"
	"healthara/internal/session"
)

type chatRequest struct {
	Message string `json:"message"`
}

type checkFoodsRequest struct {
	Foods []string `json:"foods"`
}

func (s *HealthServer) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.session.Profile()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *HealthServer) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p models.HealthProfile
	if err := decodeBody(r, &p); err != nil {
		s.writeError(w, err)
		return
	}
	saved, err := s.session.SaveProfile(&p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *HealthServer) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := s.session.DeleteProfile(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HealthServer) handleUpdatePersonal(w http.ResponseWriter, r *http.Request) {
	var u session.PersonalInfo
	if err := decodeBody(r, &u); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondProfile(w)(s.session.UpdatePersonal(u))
}

func (s *HealthServer) handleUpdateMedical(w http.ResponseWriter, r *http.Request) {
	var u session.MedicalInfo
	if err := decodeBody(r, &u); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondProfile(w)(s.session.UpdateMedical(u))
}

func (s *HealthServer) handleUpdateGoals(w http.ResponseWriter, r *http.Request) {
	var u session.GoalsUpdate
	if err := decodeBody(r, &u); err != nil {
		s.writeError(w, err)
		return
	}
	s.respondProfile(w)(s.session.UpdateGoals(u))
}

func (s *HealthServer) respondProfile(w http.ResponseWriter) func(*models.HealthProfile, error) {
	return func(p *models.HealthProfile, err error) {
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *HealthServer) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"summary": s.session.Summary()})
}

func (s *HealthServer) handleBMI(w http.ResponseWriter, r *http.Request) {
	bmi, err := s.session.BMI()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bmi)
}

func (s *HealthServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	reply, err := s.ask(r.Context(), req.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// ask runs one chat transaction and records its outcome.
func (s *HealthServer) ask(ctx context.Context, message string) (*models.ConversationEntry, error) {
	start := time.Now()
	reply, err := s.session.Ask(ctx, message)

	outcome := "ok"
	switch {
	case err == nil:
		s.metrics.AdviceDuration.Observe(time.Since(start).Seconds())
	case errors.Is(err, models.ErrInvalidInput):
		outcome = "invalid"
	case errors.Is(err, models.ErrServiceUnavailable):
		outcome = "unavailable"
	case ctx.Err() != nil:
		outcome = "cancelled"
	default:
		outcome = "error"
	}
	s.metrics.AdviceRequests.WithLabelValues(outcome).Inc()
	return reply, err
}

func (s *HealthServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.session.History()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *HealthServer) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearConversation(); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HealthServer) handleListConversations(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, fmt.Errorf("%w: limit must be a positive integer", models.ErrInvalidInput))
			return
		}
		limit = n
	}

	convs, err := s.session.SavedConversations(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

func (s *HealthServer) handleSaveConversation(w http.ResponseWriter, r *http.Request) {
	saved, err := s.session.SaveConversation()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *HealthServer) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.session.SavedConversation(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *HealthServer) handleCheckFoods(w http.ResponseWriter, r *http.Request) {
	var req checkFoodsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	analysis, err := s.session.AnalyzeFoods(req.Foods)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.metrics.FoodChecks.Add(float64(len(analysis.Results)))
	writeJSON(w, http.StatusOK, analysis)
}

func (s *HealthServer) handleTips(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tips": s.session.Tips()})
}

func (s *HealthServer) handleExport(w http.ResponseWriter, r *http.Request) {
	pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty"))

	data, err := s.session.Export(pretty)
	if err != nil {
		s.writeError(w, err)
		return
	}

	filename := fmt.Sprintf("healthara_export_%s.json", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write export")
	}
}

// handleOptions lists the choices the profile form offers.
func (s *HealthServer) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"genders":              models.Genders,
		"activity_levels":      models.ActivityLevels,
		"primary_objectives":   models.PrimaryObjectives,
		"common_allergies":     models.CommonAllergies,
		"dietary_restrictions": models.DietaryRestrictions,
	})
}
