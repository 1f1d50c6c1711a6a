// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"healthara/internal/health"
	"healthara/internal/models"
)

type ComputeBMIParams struct {
	HeightCM float64 `json:"height_cm,omitempty" description:"Height in centimeters (defaults to the stored profile)"`
	WeightKG float64 `json:"weight_kg,omitempty" description:"Weight in kilograms (defaults to the stored profile)"`
}

type CheckFoodParams struct {
	Food  string   `json:"food,omitempty" description:"Single food to check against the profile"`
	Foods []string `json:"foods,omitempty" description:"List of foods to analyze together"`
}

type AskAdvisorParams struct {
	Message string `json:"message" description:"Question for the nutrition advisor"`
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

type noParams struct{}

type toolSpec struct {
	name        string
	description string
	params      interface{}
}

var toolSpecs = []toolSpec{
	{"get_profile", "Return the stored health profile", noParams{}},
	{"compute_bmi", "Compute BMI and its category from height and weight", ComputeBMIParams{}},
	{"check_food", "Check foods against the profile's allergies and restrictions", CheckFoodParams{}},
	{"ask_advisor", "Ask the nutrition advisor a question using the profile as context", AskAdvisorParams{}},
	{"get_tips", "Return up to three quick tips for the profile", noParams{}},
}

// listTools builds the tool definitions, deriving each input schema from the
// json and description tags of its parameter struct.
func listTools() (*protocol.ListToolsResult, error) {
	result := &protocol.ListToolsResult{Tools: make([]*protocol.Tool, 0, len(toolSpecs))}
	for _, spec := range toolSpecs {
		tool, err := protocol.NewTool(spec.name, spec.description, spec.params)
		if err != nil {
			return nil, fmt.Errorf("failed to build tool %s: %w", spec.name, err)
		}
		result.Tools = append(result.Tools, tool)
	}
	return result, nil
}

// extractParams converts the request arguments into target
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal arguments: %v", models.ErrInvalidInput, err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("%w: failed to unmarshal parameters: %v", models.ErrInvalidInput, err)
	}

	return nil
}

func (s *HealthServer) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"get_profile": s.toolGetProfile,
		"compute_bmi": s.toolComputeBMI,
		"check_food":  s.toolCheckFood,
		"ask_advisor": s.toolAskAdvisor,
		"get_tips":    s.toolGetTips,
	}
}

func (s *HealthServer) handleListTools(w http.ResponseWriter, r *http.Request) {
	result, err := listTools()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HealthServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	var request protocol.CallToolRequest
	if err := decodeBody(r, &request); err != nil {
		s.writeError(w, err)
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown tool: %s", request.Name)})
		return
	}
	s.metrics.ToolCalls.WithLabelValues(request.Name).Inc()

	result, err := handler(r.Context(), &request)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HealthServer) toolGetProfile(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	p, err := s.session.Profile()
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(p)
}

// toolComputeBMI uses the given measurements, falling back to the
// stored profile for any that are missing. An explicit 0 is not missing.
func (s *HealthServer) toolComputeBMI(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ComputeBMIParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	_, hasHeight := req.Arguments["height_cm"]
	_, hasWeight := req.Arguments["weight_kg"]
	if !hasHeight || !hasWeight {
		p, err := s.session.Profile()
		if err != nil {
			return nil, err
		}
		if !hasHeight {
			params.HeightCM = p.HeightCM
		}
		if !hasWeight {
			params.WeightKG = p.WeightKG
		}
	}

	bmi, err := health.ComputeBMI(params.HeightCM, params.WeightKG)
	if err != nil {
		return nil, err
	}
	return s.createJSONResponse(bmi)
}

func (s *HealthServer) toolCheckFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params CheckFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	foods := params.Foods
	if params.Food != "" {
		foods = append([]string{params.Food}, foods...)
	}

	analysis, err := s.session.AnalyzeFoods(foods)
	if err != nil {
		return nil, err
	}
	s.metrics.FoodChecks.Add(float64(len(analysis.Results)))
	return s.createJSONResponse(analysis)
}

func (s *HealthServer) toolAskAdvisor(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params AskAdvisorParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	reply, err := s.ask(ctx, params.Message)
	if err != nil {
		return nil, err
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: reply.Text,
			},
		},
	}, nil
}

func (s *HealthServer) toolGetTips(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(map[string][]string{"tips": s.session.Tips()})
}

func (s *HealthServer) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
