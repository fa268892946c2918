// Package api exposes the calculators over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"Kerf/internal/auth"
	"Kerf/internal/batch"
	"Kerf/internal/engine"
	"Kerf/internal/importer"
	"Kerf/internal/report"
	"Kerf/internal/repo"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 10 << 20
	xlsxType      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Server struct {
	Registry     *engine.Registry
	Repo         repo.Repository
	Auth         *auth.Authenv
	Limiter      *auth.IPRateLimiter
	Log          zerolog.Logger
	BatchWorkers int
	ReportAuthor string
}

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Routes(r)
	return CORS(RequestLogger(s.Log)(r))
}

func (s *Server) Routes(r *mux.Router) {
	r.HandleFunc("/healthz", s.health).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	if s.Limiter != nil {
		api.Use(s.Limiter.LimitMiddleware)
	}
	if s.Auth != nil {
		api.HandleFunc("/login", s.Auth.AuthHandler).Methods("POST")
	}

	api.HandleFunc("/calculators", s.list).Methods("GET")
	api.HandleFunc("/calculators/{id}/inputs", s.inputs).Methods("GET")
	api.HandleFunc("/calculators/{id}/defaults", s.defaults).Methods("GET")
	api.HandleFunc("/calculators/{id}/examples", s.examples).Methods("GET")

	secure := api.NewRoute().Subrouter()
	if s.Auth != nil {
		secure.Use(s.Auth.AuthMiddleware)
	}
	secure.HandleFunc("/calculators/{id}/calc", s.calc).Methods("POST")
	secure.HandleFunc("/calculators/{id}/batch", s.batch).Methods("POST")
	secure.HandleFunc("/calculators/{id}/import", s.importXLSX).Methods("POST")
	secure.HandleFunc("/calculators/{id}/report", s.report).Methods("POST")
	secure.HandleFunc("/calculators/{id}/history/{fingerprint:[0-9a-f]{64}}", s.lookup).Methods("GET")
	secure.HandleFunc("/history", s.history).Methods("GET")
}

type calculatorInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type resultEnvelope struct {
	Status string         `json:"status"`
	Cached bool           `json:"cached"`
	Result *engine.Result `json:"result"`
}

type failureEnvelope struct {
	Status  string          `json:"status"`
	Failure *engine.Failure `json:"failure"`
}

type batchRequest struct {
	Items []map[string]any `json:"items"`
}

type reportRequest struct {
	Report report.Input   `json:"report"`
	Inputs map[string]any `json:"inputs"`
}

type importResponse struct {
	Lines  []int        `json:"lines"`
	Report batch.Report `json:"report"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	calcs := s.Registry.List()
	out := make([]calculatorInfo, len(calcs))
	for i, c := range calcs {
		out[i] = calculatorInfo{ID: c.ID(), Title: c.Title()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) calculator(w http.ResponseWriter, r *http.Request) (engine.Calculator, bool) {
	c, err := s.Registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return c, true
}

func (s *Server) inputs(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.calculator(w, r); ok {
		writeJSON(w, http.StatusOK, c.Schema())
	}
}

func (s *Server) defaults(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.calculator(w, r); ok {
		writeJSON(w, http.StatusOK, c.DefaultInputs())
	}
}

func (s *Server) examples(w http.ResponseWriter, r *http.Request) {
	if c, ok := s.calculator(w, r); ok {
		writeJSON(w, http.StatusOK, c.ExampleInputs())
	}
}

func (s *Server) calc(w http.ResponseWriter, r *http.Request) {
	c, ok := s.calculator(w, r)
	if !ok {
		return
	}
	var raw map[string]any
	if !decode(w, r, &raw) {
		return
	}
	log := zerolog.Ctx(r.Context())

	fresh, _ := strconv.ParseBool(r.URL.Query().Get("fresh"))
	if !fresh {
		if res, ok := s.cached(r, c, raw); ok {
			log.Debug().Str("calculator", c.ID()).Str("fingerprint", res.Metadata.Fingerprint).Msg("served from history")
			writeJSON(w, http.StatusOK, resultEnvelope{Status: "ok", Cached: true, Result: res})
			return
		}
	}

	switch out := engine.Run(c, raw).(type) {
	case *engine.Result:
		s.save(r, out)
		log.Info().
			Str("calculator", c.ID()).
			Str("fingerprint", out.Metadata.Fingerprint).
			Dur("duration", out.Metadata.Duration).
			Msg("calculation done")
		writeJSON(w, http.StatusOK, resultEnvelope{Status: "ok", Result: out})
	case *engine.Failure:
		s.writeFailure(w, r, out)
	}
}

// cached returns a stored result for an identical normalized request.
func (s *Server) cached(r *http.Request, c engine.Calculator, raw map[string]any) (*engine.Result, bool) {
	if s.Repo == nil {
		return nil, false
	}
	req, errs := c.Schema().Parse(raw)
	if len(errs) > 0 {
		return nil, false
	}
	rec, err := s.Repo.FindByFingerprint(r.Context(), c.ID(), engine.Fingerprint(c.ID(), req), engine.SchemaVersion)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("history lookup")
		}
		return nil, false
	}
	res, err := rec.Decode()
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("history decode")
		return nil, false
	}
	return res, true
}

func (s *Server) save(r *http.Request, res *engine.Result) {
	if s.Repo == nil {
		return
	}
	operator, _ := auth.Operator(r.Context())
	rec, err := repo.NewRecord(res, operator)
	if err == nil {
		err = s.Repo.Save(r.Context(), rec)
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("fingerprint", res.Metadata.Fingerprint).Msg("history save")
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, f *engine.Failure) {
	status := http.StatusUnprocessableEntity
	ev := zerolog.Ctx(r.Context()).Info()
	if f.Kind == engine.FailureInternal {
		status = http.StatusInternalServerError
		ev = zerolog.Ctx(r.Context()).Error()
	}
	ev.Str("calculator", f.CalculatorID).Str("kind", string(f.Kind)).Msg(f.Error())
	writeJSON(w, status, failureEnvelope{Status: "failed", Failure: f})
}

func (s *Server) workers() int {
	if s.BatchWorkers < 1 {
		return 1
	}
	return s.BatchWorkers
}

func (s *Server) batch(w http.ResponseWriter, r *http.Request) {
	c, ok := s.calculator(w, r)
	if !ok {
		return
	}
	var req batchRequest
	if !decode(w, r, &req) {
		return
	}
	rep, err := batch.Run(r.Context(), c, req.Items, s.workers())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.saveAll(r, rep)
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) saveAll(r *http.Request, rep batch.Report) {
	for _, it := range rep.Items {
		if it.Result != nil {
			s.save(r, it.Result)
		}
	}
	zerolog.Ctx(r.Context()).Info().
		Str("calculator", rep.CalculatorID).
		Int("succeeded", rep.Succeeded).
		Int("failed", rep.Failed).
		Msg("batch done")
}

func (s *Server) importXLSX(w http.ResponseWriter, r *http.Request) {
	c, ok := s.calculator(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	rows, err := importer.ReadRequests(file, c.Schema())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := batch.Run(r.Context(), c, importer.Inputs(rows), s.workers())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.saveAll(r, rep)

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", c.ID()+"-results.xlsx"))
		if err := importer.WriteResults(w, rows, rep); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("write workbook")
		}
		return
	}
	lines := make([]int, len(rows))
	for i, row := range rows {
		lines[i] = row.Line
	}
	writeJSON(w, http.StatusOK, importResponse{Lines: lines, Report: rep})
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	c, ok := s.calculator(w, r)
	if !ok {
		return
	}
	var req reportRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Report.Author == "" {
		req.Report.Author = s.ReportAuthor
	}
	var res *engine.Result
	switch out := engine.Run(c, req.Inputs).(type) {
	case *engine.Failure:
		s.writeFailure(w, r, out)
		return
	case *engine.Result:
		res = out
	}
	s.save(r, res)

	pdf, err := report.Build(req.Report, res)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("build report")
		writeError(w, http.StatusInternalServerError, "report generation error")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(res)))
	if err := pdf.Output(w); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("write report")
	}
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) {
	c, ok := s.calculator(w, r)
	if !ok {
		return
	}
	if s.Repo == nil {
		writeError(w, http.StatusNotFound, repo.ErrNotFound.Error())
		return
	}
	rec, err := s.Repo.FindByFingerprint(r.Context(), c.ID(), mux.Vars(r)["fingerprint"], engine.SchemaVersion)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("history lookup")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if s.Repo == nil {
		writeJSON(w, http.StatusOK, []repo.Record{})
		return
	}
	limit := repo.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	recs, err := s.Repo.ListRecent(r.Context(), limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("history list")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if recs == nil {
		recs = []repo.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
