package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestQuery_Success(t *testing.T) {
	ta := setupApp(t)

	jobID := uuid.New().String()
	seedChunks(t, ta, jobID, []string{
		"The derivative measures the instantaneous rate of change of a function.",
		"Integration is the inverse operation of differentiation.",
	})

	body := fmt.Sprintf(`{
		"question": "What is a derivative?",
		"jobIds": ["%s"]
	}`, jobID)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/query", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["answer"] == nil || result["answer"] == "" {
		t.Error("expected 'answer' in response")
	}
	sources, ok := result["sources"].([]interface{})
	if !ok || len(sources) == 0 {
		t.Fatal("expected non-empty 'sources'")
	}
	for _, s := range sources {
		src := s.(map[string]interface{})
		info := src["sourceInfo"].(map[string]interface{})
		if info["jobId"] != jobID {
			t.Errorf("source from job %v, want %s", info["jobId"], jobID)
		}
	}
	if result["processingTime"] == nil {
		t.Error("expected 'processingTime' in response")
	}
}

func TestQuery_MissingQuestion(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/query", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestQuery_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/query", `{"question": "anything"}`, nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestQuery_Streaming(t *testing.T) {
	ta := setupApp(t)

	jobID := uuid.New().String()
	seedChunks(t, ta, jobID, []string{
		"The chain rule composes the derivatives of nested functions.",
	})

	body := fmt.Sprintf(`{
		"question": "Explain the chain rule",
		"jobIds": ["%s"],
		"options": {"streamResponse": true}
	}`, jobID)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/query", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/x-ndjson") {
		t.Errorf("content type = %q, want NDJSON", ct)
	}

	// Each line is one event; the stream must contain exactly one sources
	// event, at least one answer event, and terminate with done.
	raw := readBody(t, resp)
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	if len(lines) < 3 {
		t.Fatalf("stream has only %d events:\n%s", len(lines), raw)
	}

	sourcesCount, answerCount := 0, 0
	var types []string
	for _, line := range lines {
		var event struct {
			Type    string      `json:"type"`
			Content interface{} `json:"content"`
		}
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("invalid event line %q: %v", line, err)
		}
		types = append(types, event.Type)
		switch event.Type {
		case "sources":
			sourcesCount++
		case "answer":
			answerCount++
		}
	}

	if sourcesCount != 1 {
		t.Errorf("got %d sources events, want 1 (%v)", sourcesCount, types)
	}
	if answerCount == 0 {
		t.Errorf("no answer events (%v)", types)
	}
	if types[len(types)-1] != "done" {
		t.Errorf("final event = %q, want done (%v)", types[len(types)-1], types)
	}
}
