package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"Kerf/internal/auth"
	"Kerf/internal/calc/focus"
	"Kerf/internal/calc/gaspressure"
	"Kerf/internal/calc/multipass"
	"Kerf/internal/engine"
	"Kerf/internal/importer"
	"Kerf/internal/repo"
	"Kerf/internal/tables"
)

func newServer(t *testing.T, authEnv *auth.Authenv) (*Server, *repo.MemoryRepository) {
	t.Helper()
	set, err := tables.Embedded()
	require.NoError(t, err)
	reg, err := engine.NewRegistry(multipass.New(set), gaspressure.New(set), focus.New(set))
	require.NoError(t, err)
	store := repo.NewMemoryRepository()
	return &Server{
		Registry:     reg,
		Repo:         store,
		Auth:         authEnv,
		Log:          zerolog.Nop(),
		BatchWorkers: 2,
		ReportAuthor: "Kerf",
	}, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const gasBody = `{"material":"stainless_steel","gas":"nitrogen","thickness_mm":8,"laser_power_w":4000}`

func TestListAndMetadata(t *testing.T) {
	s, _ := newServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/calculators", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []calculatorInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	ids := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"focus", "gas-pressure", "multipass"}, ids)

	rec = do(t, h, http.MethodGet, "/api/calculators/focus/inputs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var schema engine.Schema
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&schema))
	_, ok := schema.Field("focal_length_mm")
	assert.True(t, ok)

	rec = do(t, h, http.MethodGet, "/api/calculators/gas-pressure/defaults", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var defaults map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&defaults))
	assert.Equal(t, "nitrogen", defaults["gas"])

	rec = do(t, h, http.MethodGet, "/api/calculators/multipass/examples", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var examples []engine.Example
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&examples))
	assert.Len(t, examples, 3)

	rec = do(t, h, http.MethodGet, "/api/calculators/plasma/inputs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestCalcStoresAndServesFromHistory(t *testing.T) {
	s, store := newServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/calculators/gas-pressure/calc", gasBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first resultEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&first))
	assert.False(t, first.Cached)
	require.NotNil(t, first.Result)
	fp := first.Result.Metadata.Fingerprint

	recent, err := store.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, fp, recent[0].Fingerprint)

	// Same request spelled differently: defaults and an explicit float.
	rec = do(t, h, http.MethodPost, "/api/calculators/gas-pressure/calc",
		`{"material":"stainless_steel","gas":"nitrogen","thickness_mm":8.0,"laser_power_w":4000,"quantity":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var second resultEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&second))
	assert.True(t, second.Cached)
	assert.Equal(t, fp, second.Result.Metadata.Fingerprint)

	rec = do(t, h, http.MethodPost, "/api/calculators/gas-pressure/calc?fresh=true", gasBody)
	require.Equal(t, http.StatusOK, rec.Code)
	var third resultEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&third))
	assert.False(t, third.Cached)

	rec = do(t, h, http.MethodGet, "/api/calculators/gas-pressure/history/"+fp, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/calculators/gas-pressure/history/"+strings.Repeat("0", 64), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []repo.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recs))
	assert.Len(t, recs, 1)

	rec = do(t, h, http.MethodGet, "/api/history?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCalcFailures(t *testing.T) {
	s, store := newServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/calculators/multipass/calc", `{"thickness_mm":-1}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var env failureEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, engine.FailureStructural, env.Failure.Kind)
	assert.NotEmpty(t, env.Failure.FieldErrors)

	rec = do(t, h, http.MethodPost, "/api/calculators/multipass/calc",
		`{"material":"titanium","gas":"oxygen","thickness_mm":5,"laser_power_w":3000}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.Equal(t, engine.FailureDomain, env.Failure.Kind)

	rec = do(t, h, http.MethodPost, "/api/calculators/multipass/calc", `{"thickness_mm":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/calculators/multipass/calc", `{"thickness_mm":1.5,"quantity":2.5}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	recent, err := store.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent, "failures are never stored")
}

func TestBatch(t *testing.T) {
	s, _ := newServer(t, nil)
	h := s.Handler()

	body := `{"items":[` + gasBody + `,{"material":"titanium","gas":"oxygen","thickness_mm":3,"laser_power_w":2000}]}`
	rec := do(t, h, http.MethodPost, "/api/calculators/gas-pressure/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep struct {
		Count     int `json:"count"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	assert.Equal(t, 2, rep.Count)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Failed)

	rec = do(t, h, http.MethodPost, "/api/calculators/gas-pressure/batch", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func upload(t *testing.T, h http.Handler, path string, rows ...[]any) *httptest.ResponseRecorder {
	t.Helper()
	f := excelize.NewFile()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var sheet bytes.Buffer
	_, err := f.WriteTo(&sheet)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "jobs.xlsx")
	require.NoError(t, err)
	_, err = part.Write(sheet.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestImport(t *testing.T) {
	s, _ := newServer(t, nil)
	h := s.Handler()
	rows := [][]any{
		{"material", "gas", "thickness_mm", "laser_power_w"},
		{"mild_steel", "oxygen", 6, 3000},
		{"stainless_steel", "nitrogen", 10, 6000},
	}

	rec := upload(t, h, "/api/calculators/focus/import", rows...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Lines  []int `json:"lines"`
		Report struct {
			Succeeded int `json:"succeeded"`
		} `json:"report"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []int{2, 3}, resp.Lines)
	assert.Equal(t, 2, resp.Report.Succeeded)

	rec = upload(t, h, "/api/calculators/focus/import?format=xlsx", rows...)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxType, rec.Header().Get("Content-Type"))
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetRows(importer.ResultsSheet)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	rec = do(t, h, http.MethodPost, "/api/calculators/focus/import", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReport(t *testing.T) {
	s, _ := newServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/calculators/multipass/report",
		`{"report":{"project":"Brackets"},"inputs":{"material":"mild_steel","gas":"oxygen","thickness_mm":20,"laser_power_w":6000}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "multipass-")

	rec = do(t, h, http.MethodPost, "/api/calculators/multipass/report", `{"inputs":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestProtectedRoutes(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	env := &auth.Authenv{JWTkey: []byte("k"), OperatorLogin: "shop", OperatorHash: hash, Log: zerolog.Nop()}
	s, store := newServer(t, env)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/calculators", "")
	assert.Equal(t, http.StatusOK, rec.Code, "metadata stays public")

	rec = do(t, h, http.MethodPost, "/api/calculators/gas-pressure/calc", gasBody)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/login", `{"login":"shop","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))

	req := httptest.NewRequest(http.MethodPost, "/api/calculators/gas-pressure/calc", strings.NewReader(gasBody))
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	recent, err := store.ListRecent(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "shop", recent[0].Operator)
}

func TestRateLimitAndCORS(t *testing.T) {
	s, _ := newServer(t, nil)
	s.Limiter = auth.NewIPRateLimiter(0.001, 1)
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/calculators", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/api/calculators", "").Code)

	rec := do(t, h, http.MethodOptions, "/api/calculators", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
