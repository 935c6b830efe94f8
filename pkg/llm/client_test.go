package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuidanceSchemaValidate(t *testing.T) {
	s := GuidanceSchema{}

	out, err := s.Validate(map[string]any{
		"suggested_reply": "Ask about their timeline.",
		"rationale":        "Caller hasn't given a date yet.",
		"confidence":       0.82,
	})
	require.NoError(t, err)
	assert.Equal(t, "Ask about their timeline.", out["suggested_reply"])

	_, err = s.Validate(map[string]any{"suggested_reply": "x", "rationale": "y"})
	assert.Error(t, err)

	_, err = s.Validate(map[string]any{
		"suggested_reply": "x", "rationale": "y", "confidence": 1.5,
	})
	assert.Error(t, err)
}

func TestCallSummarySchemaValidate(t *testing.T) {
	s := CallSummarySchema{}

	out, err := s.Validate(map[string]any{
		"summary":     "Caller booked an appointment for Tuesday.",
		"disposition": "Booked",
	})
	require.NoError(t, err)
	assert.Equal(t, "Caller booked an appointment for Tuesday.", out["summary"])

	_, err = s.Validate(map[string]any{"summary": "x", "disposition": "Unknown"})
	assert.Error(t, err)
}

func TestCallSummarySchemaNormalizesListSummary(t *testing.T) {
	s := CallSummarySchema{}

	out, err := s.Validate(map[string]any{
		"summary":     []any{"Caller asked about pricing.", "Booked for Friday."},
		"disposition": "Booked",
	})
	require.NoError(t, err)
	assert.Equal(t, "- Caller asked about pricing.\n- Booked for Friday.", out["summary"])
}

func TestCompleteInjectsSchemaPromptAndValidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "suggested_reply")
		assert.Equal(t, "json_object", req.ResponseFormat.Type)
		assert.Equal(t, float64(0), req.Temperature)

		content, _ := json.Marshal(map[string]any{
			"suggested_reply": "Ask for their preferred time.",
			"rationale":       "No time given yet.",
			"confidence":      0.7,
		})
		resp := chatResponse{Choices: []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{}}}
		resp.Choices[0].Message.Content = string(content)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, PrimaryModel: "test-model"})
	out, err := client.Complete(t.Context(), []Message{{Role: RoleUser, Content: "What should I say next?"}}, GuidanceSchema{})
	require.NoError(t, err)
	assert.Equal(t, "Ask for their preferred time.", out["suggested_reply"])
}

func TestCompleteFallsBackOnPrimaryFailure(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls = append(calls, req.Model)
		if req.Model == "primary" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		content, _ := json.Marshal(map[string]any{
			"suggested_reply": "ok",
			"rationale":       "ok",
			"confidence":      0.5,
		})
		resp := chatResponse{Choices: []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{}}}
		resp.Choices[0].Message.Content = string(content)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, PrimaryModel: "primary", FallbackModel: "fallback"})
	out, err := client.Complete(t.Context(), []Message{{Role: RoleUser, Content: "hi"}}, GuidanceSchema{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out["suggested_reply"])
	assert.Equal(t, []string{"primary", "fallback"}, calls)
}

func TestCompleteSkipsSchemaPromptWhenJSONAlreadyMentioned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)

		content, _ := json.Marshal(map[string]any{"summary": "ok", "disposition": "Lead"})
		resp := chatResponse{Choices: []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{}}}
		resp.Choices[0].Message.Content = string(content)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, PrimaryModel: "test-model"})
	out, err := client.Complete(t.Context(), []Message{
		{Role: RoleUser, Content: "Summarize the call. Respond in JSON."},
	}, CallSummarySchema{})
	require.NoError(t, err)
	assert.Equal(t, "Lead", out["disposition"])
}
