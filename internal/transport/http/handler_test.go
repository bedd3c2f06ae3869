package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"flashcard-frenzy/internal/app"
	"flashcard-frenzy/internal/domain"
	"flashcard-frenzy/internal/infra/memory"
	"flashcard-frenzy/internal/metrics"
)

type testServer struct {
	server *httptest.Server
	store  *memory.Store
	feed   *memory.MatchFeed
	match  domain.Match
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	feed := memory.NewMatchFeed()
	if _, err := store.CreateFlashcard(ctx, domain.Flashcard{
		ID:       "f1",
		Question: "Capital of France?",
		Options:  []string{"Paris", "Lyon", "Nice"},
		Answer:   "Paris",
	}); err != nil {
		t.Fatalf("seed flashcard: %v", err)
	}
	match, err := store.CreateMatch(ctx, domain.Match{Player1: "u1", Player2: "u2", Status: domain.MatchActive, Round: 1})
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}

	matches := app.NewMatchService(store, feed, nil)
	reg := metrics.New()
	answers := app.NewAnswerProcessor(store, memory.NewFlashcardCache(store, time.Minute), nil, app.ProcessorOptions{
		FirstResponder: memory.NewFirstResponderTracker(),
		Publisher:      feed,
		Observer:       reg,
	})
	history := app.NewHistoryService(store, nil, 0)
	ws := NewWSHandler(matches, answers, feed, nil)
	handler := NewHandler(matches, answers, history, store, ws, reg.Handler(), nil)

	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return &testServer{server: server, store: store, feed: feed, match: match}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, buf.Bytes()
}

func TestSubmitAnswerEndpoint(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/matches/"+s.match.ID+"/answer", map[string]any{
		"playerId":       "u1",
		"flashcardId":    "f1",
		"selectedOption": "Paris",
		"timeTaken":      2.5,
		"clientHint":     "ignored",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var result domain.AnswerResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Correct || result.ResultTag != domain.ResultCorrect || result.CorrectOption != "Paris" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Scores != (domain.ScorePair{Player1: 1, Player2: 0}) || !result.FirstResponder {
		t.Fatalf("unexpected scores %+v first=%v", result.Scores, result.FirstResponder)
	}
}

func TestSubmitAnswerEndpointTimeout(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/matches/"+s.match.ID+"/answer",
		`{"playerId":"u2","flashcardId":"f1","selectedOption":"","timeTaken":10}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}
	var result domain.AnswerResult
	_ = json.Unmarshal(body, &result)
	if result.Correct || result.ResultTag != domain.ResultWrong {
		t.Fatalf("timeout must be scored wrong, got %+v", result)
	}
	records, _ := s.store.ListAnswers(context.Background(), s.match.ID)
	if len(records) != 1 || records[0].PlayerID != "u2" {
		t.Fatalf("expected one ledger row for u2, got %+v", records)
	}
}

func TestSubmitAnswerEndpointErrors(t *testing.T) {
	s := newTestServer(t)
	answerPath := "/api/matches/" + s.match.ID + "/answer"

	cases := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"missing option", answerPath, `{"playerId":"u1","flashcardId":"f1","timeTaken":1}`, http.StatusBadRequest},
		{"null option", answerPath, `{"playerId":"u1","flashcardId":"f1","selectedOption":null}`, http.StatusBadRequest},
		{"missing player", answerPath, `{"flashcardId":"f1","selectedOption":"Paris"}`, http.StatusBadRequest},
		{"negative time", answerPath, `{"playerId":"u1","flashcardId":"f1","selectedOption":"Paris","timeTaken":-1}`, http.StatusBadRequest},
		{"bad json", answerPath, `{"playerId":`, http.StatusBadRequest},
		{"unknown match", "/api/matches/nope/answer", `{"playerId":"u1","flashcardId":"f1","selectedOption":"Paris"}`, http.StatusNotFound},
		{"unknown flashcard", answerPath, `{"playerId":"u1","flashcardId":"f9","selectedOption":"Paris"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, tc.path, tc.body)
			if status != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, status, body)
			}
		})
	}

	records, _ := s.store.ListAnswers(context.Background(), s.match.ID)
	if len(records) != 0 {
		t.Fatalf("rejected submissions must not touch the ledger, got %d rows", len(records))
	}
	match, _ := s.store.GetMatch(context.Background(), s.match.ID)
	if match.Score1 != 0 || match.Score2 != 0 {
		t.Fatalf("rejected submissions must not change scores, got %+v", match)
	}
}

func TestMatchLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/api/matches", map[string]string{"playerId": "a", "opponentId": "b"})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", status, body)
	}
	var started startMatchResponse
	_ = json.Unmarshal(body, &started)
	if !started.Created || started.Match.Status != domain.MatchPending {
		t.Fatalf("unexpected start %+v", started)
	}

	status, body = s.do(t, http.MethodPost, "/api/matches", map[string]string{"playerId": "b", "opponentId": "a"})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on reuse, got %d: %s", status, body)
	}
	var joined startMatchResponse
	_ = json.Unmarshal(body, &joined)
	if joined.Created || joined.Match.ID != started.Match.ID || joined.Match.Status != domain.MatchActive {
		t.Fatalf("expected pending match reused, got %+v", joined)
	}

	if status, _ := s.do(t, http.MethodPost, "/api/matches", map[string]string{"playerId": "a", "opponentId": "a"}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for self match, got %d", status)
	}

	status, body = s.do(t, http.MethodGet, "/api/matches/"+started.Match.ID, nil)
	if status != http.StatusOK {
		t.Fatalf("get match: %d %s", status, body)
	}

	status, body = s.do(t, http.MethodPost, "/api/matches/"+started.Match.ID+"/finish", nil)
	if status != http.StatusOK {
		t.Fatalf("finish: %d %s", status, body)
	}
	var finished domain.Match
	_ = json.Unmarshal(body, &finished)
	if finished.Status != domain.MatchFinished {
		t.Fatalf("expected finished, got %q", finished.Status)
	}

	status, body = s.do(t, http.MethodGet, "/api/matches", nil)
	var all []domain.Match
	_ = json.Unmarshal(body, &all)
	if status != http.StatusOK || len(all) != 2 {
		t.Fatalf("expected 2 matches, got %d %s", status, body)
	}

	if status, _ := s.do(t, http.MethodGet, "/api/matches/nope", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestHistoryAndSummaryEndpoints(t *testing.T) {
	s := newTestServer(t)
	answerPath := "/api/matches/" + s.match.ID + "/answer"
	s.do(t, http.MethodPost, answerPath, `{"playerId":"u1","flashcardId":"f1","selectedOption":"Lyon","timeTaken":3}`)
	s.do(t, http.MethodPost, answerPath, `{"playerId":"u2","flashcardId":"f1","selectedOption":"Paris","timeTaken":4}`)

	status, body := s.do(t, http.MethodGet, "/api/matches/"+s.match.ID+"/history", nil)
	if status != http.StatusOK {
		t.Fatalf("history: %d %s", status, body)
	}
	var history domain.History
	_ = json.Unmarshal(body, &history)
	if history.Winner != domain.WinnerPlayer2 || len(history.Player1Answers) != 1 || len(history.Player2Answers) != 1 {
		t.Fatalf("unexpected history %+v", history)
	}
	if history.Player2Answers[0].Question != "Capital of France?" || history.Player2Answers[0].CorrectAnswer != "Paris" {
		t.Fatalf("expected joined flashcard fields, got %+v", history.Player2Answers[0])
	}

	status, body = s.do(t, http.MethodGet, "/api/matches/"+s.match.ID+"/summary", nil)
	if status != http.StatusOK {
		t.Fatalf("summary: %d %s", status, body)
	}
	var summary domain.MatchHistorySummary
	_ = json.Unmarshal(body, &summary)
	if summary.WinnerID != "u2" || summary.Score2 != 1 || summary.TotalRounds != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if status, _ := s.do(t, http.MethodGet, "/api/matches/nope/history", nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown match history, got %d", status)
	}
}

func TestFlashcardsHideAnswers(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/api/flashcards", nil)
	if status != http.StatusOK {
		t.Fatalf("flashcards: %d %s", status, body)
	}
	var cards []map[string]any
	if err := json.Unmarshal(body, &cards); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected one card, got %d", len(cards))
	}
	if _, ok := cards[0]["answer"]; ok {
		t.Fatalf("answer must not be exposed: %v", cards[0])
	}
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(t)
	if status, body := s.do(t, http.MethodGet, "/healthz", nil); status != http.StatusOK || string(body) != "ok" {
		t.Fatalf("unexpected health %d %q", status, body)
	}
	status, body := s.do(t, http.MethodGet, "/api/stats", nil)
	var stats statsResponse
	_ = json.Unmarshal(body, &stats)
	if status != http.StatusOK || stats.LedgerAppendFailures != 0 {
		t.Fatalf("unexpected stats %d %s", status, body)
	}
}

func TestMetricsCountScoredAnswers(t *testing.T) {
	s := newTestServer(t)
	path := "/api/matches/" + s.match.ID + "/answer"
	for _, option := range []string{"Paris", "Lyon"} {
		if status, body := s.do(t, http.MethodPost, path, map[string]any{"playerId": "u1", "flashcardId": "f1", "selectedOption": option, "timeTaken": 1}); status != http.StatusOK {
			t.Fatalf("answer %q: %d %s", option, status, body)
		}
	}

	status, body := s.do(t, http.MethodGet, "/metrics", nil)
	if status != http.StatusOK {
		t.Fatalf("metrics status %d", status)
	}
	for _, line := range []string{
		`flashcard_frenzy_answers_scored_total{result="correct"} 1`,
		`flashcard_frenzy_answers_scored_total{result="wrong"} 1`,
	} {
		if !strings.Contains(string(body), line) {
			t.Fatalf("missing %q in:\n%s", line, body)
		}
	}
}
