package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/conneroisu/anchorplay/internal/errors"
	"github.com/conneroisu/anchorplay/internal/loader"
	"github.com/conneroisu/anchorplay/internal/types"
	"github.com/conneroisu/anchorplay/internal/version"
)

// kindInvalidRequest reports malformed query parameters.
const kindInvalidRequest = "invalid_request"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TemplatesResponse is the body of GET /templates.
type TemplatesResponse struct {
	Templates []string `json:"templates"`
	Count     int      `json:"count"`
}

// ExplanationsResponse is the body of GET /templates/{id}/explanations.
//
// Uncovered lists the requested lines with no stored explanation. A client
// that generates explanations on demand builds its prompt from Context.
type ExplanationsResponse struct {
	Template     string                  `json:"template"`
	Explanations []types.LineExplanation `json:"explanations"`
	Uncovered    []int                   `json:"uncovered"`
	Context      ExplanationContext      `json:"context"`
}

// ExplanationContext carries the program structure names.
type ExplanationContext struct {
	Instructions []string `json:"instructions"`
	Accounts     []string `json:"accounts"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":     "healthy",
		"timestamp":  time.Now().UTC(),
		"version":    version.GetShortVersion(),
		"build_info": version.GetBuildInfo(),
		"checks": map[string]interface{}{
			"catalog": map[string]interface{}{"status": "healthy", "templates": s.catalog.Count()},
			"watcher": map[string]interface{}{"enabled": s.config.Cache.Watch},
			"clients": map[string]interface{}{"connected": s.hub.count()},
		},
	}

	s.writeJSON(w, r, http.StatusOK, health)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	ids, err := s.catalog.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, TemplatesResponse{Templates: ids, Count: len(ids)})
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.source.LoadTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fingerprint, err := loader.Fingerprint(tmpl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	etag := `"` + fingerprint + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	s.writeJSON(w, r, http.StatusOK, tmpl)
}

func (s *Server) handleExplanations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	lines, err := parseLines(query.Get("lines"))
	if err != nil {
		s.writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: kindInvalidRequest, Message: err.Error()})
		return
	}

	tmpl, err := s.source.LoadTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	response := ExplanationsResponse{
		Template: tmpl.ID,
		Context: ExplanationContext{
			Instructions: tmpl.ProgramMap.InstructionNames(),
			Accounts:     tmpl.ProgramMap.AccountNames(),
		},
	}

	if lines != nil {
		response.Explanations = tmpl.ExplanationsFor(lines...)
		response.Uncovered = tmpl.Uncovered(lines...)
	} else {
		start, end, err := parseRange(query.Get("start"), query.Get("end"), tmpl.LineCount())
		if err != nil {
			s.writeJSON(w, r, http.StatusBadRequest, ErrorResponse{Error: kindInvalidRequest, Message: err.Error()})
			return
		}
		response.Explanations = tmpl.ExplanationsInRange(start, end)
		response.Uncovered = tmpl.UncoveredLines(start, end)
	}

	s.writeJSON(w, r, http.StatusOK, response)
}

// parseLines parses a comma separated list of 1-based line numbers. An empty
// value returns nil.
func parseLines(value string) ([]int, error) {
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	lines := make([]int, 0, len(parts))
	for _, part := range parts {
		line, err := parseLine(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, nil
}

// parseRange parses start and end, defaulting to the whole source. The end is
// clamped to lineCount.
func parseRange(startValue, endValue string, lineCount int) (int, int, error) {
	start, end := 1, lineCount

	if startValue != "" {
		line, err := parseLine(startValue)
		if err != nil {
			return 0, 0, err
		}
		start = line
	}

	if endValue != "" {
		line, err := parseLine(endValue)
		if err != nil {
			return 0, 0, err
		}
		end = line
	}

	if start > end && endValue != "" {
		return 0, 0, fmt.Errorf("start line %d is after end line %d", start, end)
	}

	return start, min(end, lineCount), nil
}

func parseLine(value string) (int, error) {
	line, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid line number %q", value)
	}
	if line < 1 {
		return 0, fmt.Errorf("line numbers start at 1, got %d", line)
	}
	return line, nil
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode response", "path", r.URL.Path)
	}
}

// writeError maps err to a status code and JSON body. Store content errors
// are logged since they point at a broken template rather than a bad request.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)

	kind := string(errors.KindOf(err))
	if kind == "" {
		kind = "internal"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), err, "Request failed", "path", r.URL.Path, "kind", kind)
	}

	s.writeJSON(w, r, status, ErrorResponse{Error: kind, Message: err.Error()})
}
