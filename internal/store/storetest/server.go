// Package storetest runs an in-process fake of the Cloudflare v4 DNS API.
package storetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	cloudflare "github.com/cloudflare/cloudflare-go"
	"github.com/gorilla/mux"
)

// Request is one call the fake server received.
type Request struct {
	Method string
	Path   string
	Token  string
}

type failure struct {
	status   int
	messages []string
}

type zone struct {
	id      string
	name    string
	records []cloudflare.DNSRecord
}

// Server is a fake record store. Tokens see only the zones granted to them.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	zones          map[string]*zone
	grants         map[string]map[string]bool
	revoked        map[string]bool
	writeFailures  map[string]failure
	listFailures   map[int]failure
	omitTotalPages bool
	maxPerPage     int
	nextID         int
	requests       []Request
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		zones:         make(map[string]*zone),
		grants:        make(map[string]map[string]bool),
		revoked:       make(map[string]bool),
		writeFailures: make(map[string]failure),
		listFailures:  make(map[int]failure),
	}
	r := mux.NewRouter()
	r.Use(s.authenticate)
	r.HandleFunc("/zones", s.listZones).Methods(http.MethodGet)
	r.HandleFunc("/zones/{zone}/dns_records", s.listRecords).Methods(http.MethodGet)
	r.HandleFunc("/zones/{zone}/dns_records", s.createRecord).Methods(http.MethodPost)
	r.HandleFunc("/zones/{zone}/dns_records/{id}", s.updateRecord).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/zones/{zone}/dns_records/{id}", s.deleteRecord).Methods(http.MethodDelete)
	r.HandleFunc("/user/tokens/verify", s.verifyToken).Methods(http.MethodGet)
	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddZone registers a zone readable by the given tokens and returns its ID.
func (s *Server) AddZone(name string, tokens ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("zone-%d", s.nextID)
	s.zones[id] = &zone{id: id, name: name}
	for _, token := range tokens {
		if s.grants[token] == nil {
			s.grants[token] = make(map[string]bool)
		}
		s.grants[token][id] = true
	}
	return id
}

// Revoke makes every call with token fail authentication.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

// Seed adds records to a zone, assigning IDs when missing.
func (s *Server) Seed(zoneID string, recs ...cloudflare.DNSRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zones[zoneID]
	for _, rec := range recs {
		if rec.ID == "" {
			s.nextID++
			rec.ID = fmt.Sprintf("rec-%d", s.nextID)
		}
		z.records = append(z.records, rec)
	}
}

// Records returns a copy of a zone's records in storage order.
func (s *Server) Records(zoneID string) []cloudflare.DNSRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cloudflare.DNSRecord{}, s.zones[zoneID].records...)
}

// FailWrites makes creates and updates of the named record fail.
func (s *Server) FailWrites(name string, status int, messages ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeFailures[strings.ToLower(name)] = failure{status: status, messages: messages}
}

// FailListPage makes the given page of record listings fail.
func (s *Server) FailListPage(page, status int, messages ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listFailures[page] = failure{status: status, messages: messages}
}

// OmitTotalPages drops total_pages from list responses.
func (s *Server) OmitTotalPages() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitTotalPages = true
}

// CapPageSize serves at most n records per list page, whatever the client asks for.
func (s *Server) CapPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxPerPage = n
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request{}, s.requests...)
}

// Writes returns the mutating requests received so far.
func (s *Server) Writes() []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Token: token})
		revoked := s.revoked[token]
		s.mu.Unlock()
		if token == "" || revoked {
			writeError(w, http.StatusForbidden, 9109, "Invalid access token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) zoneFor(w http.ResponseWriter, r *http.Request) *zone {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	id := mux.Vars(r)["zone"]
	z, ok := s.zones[id]
	if !ok || !s.grants[token][id] {
		writeError(w, http.StatusNotFound, 7003, "Could not route to /zones/"+id+", perhaps your object identifier is invalid?")
		return nil
	}
	return z
}

func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	name := strings.ToLower(r.URL.Query().Get("name"))
	s.mu.Lock()
	var result []map[string]any
	for id := range s.grants[token] {
		z := s.zones[id]
		if name != "" && z.name != name {
			continue
		}
		result = append(result, map[string]any{"id": z.id, "name": z.name, "status": "active"})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"errors":      []any{},
		"result":      result,
		"result_info": map[string]any{"page": 1, "per_page": 50, "count": len(result), "total_count": len(result), "total_pages": 1},
	})
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zoneFor(w, r)
	if z == nil {
		return
	}
	page := atoiDefault(r.URL.Query().Get("page"), 1)
	perPage := atoiDefault(r.URL.Query().Get("per_page"), 100)
	if s.maxPerPage > 0 && perPage > s.maxPerPage {
		perPage = s.maxPerPage
	}
	if f, ok := s.listFailures[page]; ok {
		writeError(w, f.status, 1000, f.messages...)
		return
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(z.records) {
		start = len(z.records)
	}
	if end > len(z.records) {
		end = len(z.records)
	}
	result := append([]cloudflare.DNSRecord{}, z.records[start:end]...)
	info := map[string]any{"page": page, "per_page": perPage, "count": len(result), "total_count": len(z.records)}
	if !s.omitTotalPages {
		info["total_pages"] = (len(z.records) + perPage - 1) / perPage
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": []any{}, "result": result, "result_info": info})
}

type recordBody struct {
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Content  string         `json:"content"`
	TTL      int            `json:"ttl"`
	Proxied  *bool          `json:"proxied"`
	Priority *uint16        `json:"priority"`
	Data     map[string]any `json:"data"`
	Comment  *string        `json:"comment"`
}

func (b recordBody) apply(rec *cloudflare.DNSRecord) {
	if b.Type != "" {
		rec.Type = b.Type
	}
	if b.Name != "" {
		rec.Name = strings.ToLower(strings.TrimSuffix(b.Name, "."))
	}
	if b.Content != "" {
		rec.Content = b.Content
	}
	if b.TTL != 0 {
		rec.TTL = b.TTL
	}
	if b.Proxied != nil {
		rec.Proxied = b.Proxied
	}
	if b.Priority != nil {
		rec.Priority = b.Priority
	}
	if b.Comment != nil {
		rec.Comment = *b.Comment
	}
	if len(b.Data) > 0 {
		rec.Data = b.Data
		weight, _ := b.Data["weight"].(float64)
		port, _ := b.Data["port"].(float64)
		target, _ := b.Data["target"].(string)
		rec.Content = fmt.Sprintf("%d %d %s", int(weight), int(port), target)
		if prio, ok := b.Data["priority"].(float64); ok {
			p := uint16(prio)
			rec.Priority = &p
		}
	}
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	var body recordBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, 9207, "Request body is invalid.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zoneFor(w, r)
	if z == nil {
		return
	}
	if f, ok := s.writeFailures[strings.ToLower(body.Name)]; ok {
		writeError(w, f.status, 81057, f.messages...)
		return
	}
	s.nextID++
	rec := cloudflare.DNSRecord{ID: fmt.Sprintf("rec-%d", s.nextID), TTL: 1}
	body.apply(&rec)
	z.records = append(z.records, rec)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": []any{}, "result": rec})
}

func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	var body recordBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, 9207, "Request body is invalid.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zoneFor(w, r)
	if z == nil {
		return
	}
	id := mux.Vars(r)["id"]
	for i := range z.records {
		if z.records[i].ID != id {
			continue
		}
		if f, ok := s.writeFailures[strings.ToLower(z.records[i].Name)]; ok {
			writeError(w, f.status, 81057, f.messages...)
			return
		}
		body.apply(&z.records[i])
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": []any{}, "result": z.records[i]})
		return
	}
	writeError(w, http.StatusNotFound, 81044, "Record does not exist.")
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	z := s.zoneFor(w, r)
	if z == nil {
		return
	}
	id := mux.Vars(r)["id"]
	for i := range z.records {
		if z.records[i].ID == id {
			z.records = append(z.records[:i], z.records[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "errors": []any{}, "result": map[string]any{"id": id}})
			return
		}
	}
	writeError(w, http.StatusNotFound, 81044, "Record does not exist.")
}

func (s *Server) verifyToken(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"errors":  []any{},
		"result":  map[string]any{"id": "tok-" + token, "status": "active"},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status, code int, messages ...string) {
	errs := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		errs = append(errs, map[string]any{"code": code, "message": m})
	}
	writeJSON(w, status, map[string]any{"success": false, "errors": errs, "messages": []any{}, "result": nil})
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return def
}
