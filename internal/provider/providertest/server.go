// Package providertest runs a fake OpenAI-compatible endpoint for tests.
package providertest

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode"
)

// Dimension of the vectors produced by HashEmbedding.
const Dimension = 64

// Server serves /v1/embeddings and /v1/chat/completions.
type Server struct {
	*httptest.Server

	// EmbedFunc and ChatFunc produce responses; defaults are HashEmbedding
	// and a fixed reply.
	EmbedFunc func(text string) []float32
	ChatFunc  func(prompt string) string
	// A non-zero status makes the matching endpoint fail.
	EmbedStatus int
	ChatStatus  int

	mu         sync.Mutex
	embedCalls int
	chatCalls  int
	prompts    []string
	model      string
	temp       *float32
}

// NewServer starts a fake endpoint closed at test cleanup.
func NewServer(t testing.TB) *Server {
	s := &Server{
		EmbedFunc: HashEmbedding,
		ChatFunc:  func(string) string { return "ok" },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", s.handleEmbeddings)
	mux.HandleFunc("/v1/chat/completions", s.handleChat)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the value for provider.base_url.
func (s *Server) BaseURL() string { return s.URL + "/v1" }

// Calls returns the number of embedding and chat requests received.
func (s *Server) Calls() (embed, chat int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.embedCalls, s.chatCalls
}

// Prompts returns every prompt sent to the chat endpoint.
func (s *Server) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// LastTemperature returns the temperature of the most recent chat request,
// and false when the request omitted it.
func (s *Server) LastTemperature() (float32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.temp == nil {
		return 0, false
	}
	return *s.temp, true
}

// LastModel returns the model named by the most recent request.
func (s *Server) LastModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.mu.Lock()
	s.embedCalls++
	s.model = req.Model
	status := s.EmbedStatus
	s.mu.Unlock()
	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}
	type item struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, 0, len(req.Input))
	// reversed so clients must honour the index field
	for i := len(req.Input) - 1; i >= 0; i-- {
		data = append(data, item{Object: "embedding", Index: i, Embedding: s.EmbedFunc(req.Input[i])})
	}
	writeJSON(w, map[string]any{"object": "list", "model": req.Model, "data": data})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model       string   `json:"model"`
		Temperature *float32 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	s.mu.Lock()
	s.chatCalls++
	s.model = req.Model
	s.prompts = append(s.prompts, prompt)
	s.temp = req.Temperature
	status := s.ChatStatus
	s.mu.Unlock()
	if status != 0 {
		writeError(w, status, http.StatusText(status))
		return
	}
	writeJSON(w, map[string]any{
		"id":     "chatcmpl-test",
		"object": "chat.completion",
		"model":  req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": s.ChatFunc(prompt)},
			"finish_reason": "stop",
		}},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": msg, "type": "test_error"},
	})
}

// HashEmbedding is a deterministic bag-of-words embedding: each lower-cased
// word is hashed into one of Dimension buckets and the result is normalised.
func HashEmbedding(text string) []float32 {
	v := make([]float32, Dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%Dimension]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if sum == 0 {
		v[0] = 1
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
