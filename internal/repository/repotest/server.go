// Package repotest runs an in-memory ibadah API for tests.
package repotest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivanoskov/ibadah_bot/internal/model"
)

// Server implements the ibadah REST contract over a slice.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	records   []model.Ibadah
	nextID    int64
	calls     map[string]int
	overrides map[string]http.HandlerFunc
}

// NewServer starts a server holding seed. It is closed when t ends.
func NewServer(t testing.TB, seed ...model.Ibadah) *Server {
	s := &Server{
		records:   append([]model.Ibadah(nil), seed...),
		nextID:    1,
		calls:     make(map[string]int),
		overrides: make(map[string]http.HandlerFunc),
	}
	for _, r := range seed {
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ibadah", s.list)
	mux.HandleFunc("POST /ibadah", s.create)
	mux.HandleFunc("PUT /ibadah/{id}", s.update)
	mux.HandleFunc("DELETE /ibadah/{id}", s.delete)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.calls[key]++
		override := s.overrides[key]
		s.mu.Unlock()

		if override != nil {
			override(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// Override replaces the handler for one method and exact path,
// for example Override("DELETE", "/ibadah/5", h).
func (s *Server) Override(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+path] = h
}

// Calls counts requests for one method and exact path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// TotalCalls counts every request received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// Records returns the server-side collection.
func (s *Server) Records() []model.Ibadah {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Ibadah(nil), s.records...)
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	data := append([]model.Ibadah{}, s.records...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"data": data})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	now := time.Now().UTC().Format(time.RFC3339)
	rec := model.Ibadah{
		ID:        s.nextID,
		Name:      draft.Name,
		Category:  draft.Category,
		Date:      draft.Date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.records = append(s.records, rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Data berhasil ditambahkan", "data": rec})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Data tidak ditemukan"})
		return
	}
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Name = draft.Name
			s.records[i].Category = draft.Category
			s.records[i].Date = draft.Date
			s.records[i].UpdatedAt = time.Now().UTC().Format(time.RFC3339)
			writeJSON(w, http.StatusOK, map[string]any{"data": s.records[i]})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Data tidak ditemukan"})
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Data berhasil dihapus"})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"message": "Data tidak ditemukan"})
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (model.Draft, bool) {
	var draft model.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string][]string{"jenis_ibadah": {"The selected jenis ibadah is invalid."}},
		})
		return draft, false
	}
	if strings.TrimSpace(draft.Name) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"message": "The given data was invalid.",
			"errors":  map[string][]string{"nama_ibadah": {"The nama ibadah field is required."}},
		})
		return draft, false
	}
	return draft, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
