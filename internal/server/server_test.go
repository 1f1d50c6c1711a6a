package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthara/internal/config"
	"healthara/internal/health"
	"healthara/internal/models"
	"healthara/internal/session"
	"healthara/internal/storage"
)

type stubAdvisor struct {
	reply string
	err   error
}

func (s *stubAdvisor) Complete(ctx context.Context, payload *models.RequestPayload) (string, error) {
	return s.reply, s.err
}

func newTestServer(t *testing.T, adv *stubAdvisor) http.Handler {
	t.Helper()
	dir := t.TempDir()

	catalog, err := health.DefaultCatalog()
	require.NoError(t, err)

	archive, err := storage.NewArchive(filepath.Join(dir, "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { archive.Close() })

	sess := session.New(session.Options{
		Store:   storage.NewProfileStore(filepath.Join(dir, "profile.json")),
		Archive: archive,
		Catalog: catalog,
		Advisor: adv,
	})
	return NewWithSession(config.Default(), sess).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const profileJSON = `{
	"age": 34,
	"gender": "female",
	"height_cm": 165,
	"weight_kg": 60,
	"allergies": ["peanuts"],
	"dietary_restrictions": ["vegetarian"]
}`

func TestProfileRoundTrip(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})

	rec := do(t, h, http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/profile", profileJSON)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var p models.HealthProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, 34, p.Age)
	assert.Equal(t, []string{"peanuts"}, p.Allergies)
	assert.Equal(t, models.DefaultMealFrequency, p.DietPreferences.MealFrequency)

	rec = do(t, h, http.MethodPut, "/api/profile/goals", `{"primary_objective": "lose_weight"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/profile/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Primary Goal: lose_weight")

	rec = do(t, h, http.MethodDelete, "/api/profile", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/profile", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvalidInput(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})

	rec := do(t, h, http.MethodPut, "/api/profile", `{"age": 0, "gender": "female", "height_cm": 165, "weight_kg": 60}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/profile", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Retryable)

	rec = do(t, h, http.MethodGet, "/api/conversations?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBMI(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})

	rec := do(t, h, http.MethodGet, "/api/bmi", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, h, http.MethodPut, "/api/profile", profileJSON)
	rec = do(t, h, http.MethodGet, "/api/bmi", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var bmi models.BMIResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bmi))
	assert.InDelta(t, 22.04, bmi.Rounded, 0.001)
	assert.Equal(t, models.BMINormal, bmi.Category)
}

func TestChat(t *testing.T) {
	adv := &stubAdvisor{reply: "Eat more lentils."}
	h := newTestServer(t, adv)
	do(t, h, http.MethodPut, "/api/profile", profileJSON)

	rec := do(t, h, http.MethodPost, "/api/chat", `{"message": "Protein ideas?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var reply models.ConversationEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "Eat more lentils.", reply.Text)

	rec = do(t, h, http.MethodGet, "/api/history", "")
	var history []models.ConversationEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Len(t, history, 2)

	rec = do(t, h, http.MethodPost, "/api/chat", `{"message": ""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/conversations", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved models.SavedConversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))

	rec = do(t, h, http.MethodGet, "/api/conversations/"+saved.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched models.SavedConversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, saved.ID, fetched.ID)
	assert.Len(t, fetched.Entries, 2)

	rec = do(t, h, http.MethodGet, "/api/conversations/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/conversations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var convs []models.SavedConversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &convs))
	require.Len(t, convs, 1)
	assert.Equal(t, "Protein ideas?", convs[0].Summary)

	rec = do(t, h, http.MethodDelete, "/api/history", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/history", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestChatServiceUnavailable(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{err: errors.New("upstream down")})
	do(t, h, http.MethodPut, "/api/profile", profileJSON)

	rec := do(t, h, http.MethodPost, "/api/chat", `{"message": "hello"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Retryable)
	assert.NotContains(t, body.Error, "upstream down")

	rec = do(t, h, http.MethodGet, "/api/history", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCheckFoods(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})
	do(t, h, http.MethodPut, "/api/profile", profileJSON)

	rec := do(t, h, http.MethodPost, "/api/foods/check", `{"foods": ["peanut butter", "chicken", "apple"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var analysis models.DietAnalysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, []string{"apple"}, analysis.CompatibleFoods)
	require.Len(t, analysis.AllergenWarnings, 1)
	assert.Equal(t, "peanut butter", analysis.AllergenWarnings[0].Food)
	require.Len(t, analysis.RestrictedFoods, 1)
	assert.Equal(t, "chicken", analysis.RestrictedFoods[0].Food)
}

func TestExport(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})
	do(t, h, http.MethodPut, "/api/profile", profileJSON)

	rec := do(t, h, http.MethodGet, "/api/export?pretty=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Regexp(t, `^attachment; filename="healthara_export_\d{8}_\d{6}\.json"$`, rec.Header().Get("Content-Disposition"))

	var bundle models.ExportBundle
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bundle))
	require.NotNil(t, bundle.Profile)
	assert.Equal(t, 34, bundle.Profile.Age)
	assert.Contains(t, rec.Body.String(), "\n  ")
}

func TestOptionsAndHealthz(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})

	rec := do(t, h, http.MethodGet, "/api/options", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "very_active")

	rec = do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), Version)
}

func TestMCPTools(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{reply: "Drink water."})

	rec := do(t, h, http.MethodPost, "/mcp", `{"name": "compute_bmi", "arguments": {"height_cm": 180, "weight_kg": 80}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "normal")

	rec = do(t, h, http.MethodPost, "/mcp", `{"name": "compute_bmi", "arguments": {"height_cm": 180, "weight_kg": 81}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "overweight")

	rec = do(t, h, http.MethodPost, "/mcp", `{"name": "compute_bmi", "arguments": {}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no profile to fall back on")

	rec = do(t, h, http.MethodPost, "/mcp", `{"name": "ask_advisor", "arguments": {"message": "thirsty"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Drink water.")

	rec = do(t, h, http.MethodPost, "/mcp", `{"name": "nope", "arguments": {}}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMCPComputeBMIExplicitZero(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})
	do(t, h, http.MethodPut, "/api/profile", profileJSON)

	rec := do(t, h, http.MethodPost, "/mcp", `{"name": "compute_bmi", "arguments": {"height_cm": 0, "weight_kg": 70}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// A missing height still comes from the profile.
	rec = do(t, h, http.MethodPost, "/mcp", `{"name": "compute_bmi", "arguments": {"weight_kg": 60}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "normal")
}

func TestMCPListTools(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})

	rec := do(t, h, http.MethodGet, "/mcp", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Properties map[string]struct {
					Description string `json:"description"`
				} `json:"properties"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Tools, len(toolSpecs))

	byName := map[string]int{}
	for i, tool := range result.Tools {
		byName[tool.Name] = i
	}
	require.Contains(t, byName, "compute_bmi")
	bmi := result.Tools[byName["compute_bmi"]]
	assert.NotEmpty(t, bmi.Description)
	require.Contains(t, bmi.InputSchema.Properties, "height_cm")
	assert.Contains(t, bmi.InputSchema.Properties["height_cm"].Description, "centimeters")
	assert.Contains(t, result.Tools[byName["ask_advisor"]].InputSchema.Properties, "message")
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, &stubAdvisor{})
	do(t, h, http.MethodGet, "/api/tips", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthara_http_requests_total")
}

func TestNewHealthServer(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.ProfilePath = filepath.Join(dir, "profile.json")
	cfg.Storage.DBPath = filepath.Join(dir, "healthara.db")

	srv, err := NewHealthServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Stop() })

	rec := do(t, srv.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (f failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestExportWriteFailure(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewProfileStore(filepath.Join(dir, "profile.json"))
	srv := NewWithSession(config.Default(), session.New(session.Options{Store: store, Advisor: &stubAdvisor{}}))

	w := failingWriter{httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	assert.NotPanics(t, func() { srv.handleExport(w, req) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "healthara_export_")
}
