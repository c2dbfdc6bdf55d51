package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plupoV2/aire/pkg/config"
	"github.com/plupoV2/aire/pkg/data"
	"github.com/plupoV2/aire/pkg/provider"
	"github.com/plupoV2/aire/pkg/scoring"
)

const testAccount = "test"

func testAppConfig(t *testing.T) *appConfig {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), data.DataFileName)
	require.NoError(t, data.Init(dbPath))

	db, err := data.GetDB(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, data.SeedTemplates(db))
	_, err = data.EnsureAccount(db, testAccount)
	require.NoError(t, err)

	engine, err := scoring.NewDefaultEngine()
	require.NoError(t, err)

	return &appConfig{
		Conf:     &config.Config{Account: testAccount},
		DBPath:   dbPath,
		DB:       db,
		Engine:   engine,
		Enricher: provider.NewEnricher(nil, nil),
	}
}

func testServer(t *testing.T) (*httptest.Server, *appConfig) {
	t.Helper()
	cfg := testAppConfig(t)
	s := httptest.NewServer(makeRouter(cfg))
	t.Cleanup(s.Close)
	return s, cfg
}

func getBody[T any](t *testing.T, s *httptest.Server, path string, out *T) {
	t.Helper()
	res, err := http.Get(s.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.NewDecoder(res.Body).Decode(out))
}

func postScore(t *testing.T, s *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(s.URL+path, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestSchemaAPI(t *testing.T) {
	s, _ := testServer(t)

	var schema struct {
		AssetClasses []string            `json:"asset_classes"`
		RateEnvs     []string            `json:"rate_envs"`
		Fields       []scoring.FieldSpec `json:"fields"`
	}
	getBody(t, s, "/data/schema", &schema)

	assert.Len(t, schema.AssetClasses, len(scoring.AssetClasses))
	assert.Len(t, schema.RateEnvs, len(scoring.RateBuckets))
	assert.NotEmpty(t, schema.Fields)
	for _, f := range schema.Fields {
		assert.NotEmpty(t, f.ID)
		assert.Greater(t, f.Weight, 0.0)
	}
}

func TestStateAPI(t *testing.T) {
	s, _ := testServer(t)

	var state map[string]int64
	getBody(t, s, "/data/state", &state)
	assert.Contains(t, state, "analyses")
	assert.Contains(t, state, "templates")
	assert.Positive(t, state["templates"])
}

func TestAccountAPI(t *testing.T) {
	s, _ := testServer(t)

	var a data.Account
	getBody(t, s, "/data/account", &a)
	assert.Equal(t, testAccount, a.Name)
	assert.Equal(t, data.StartingCredits, a.Credits)
	assert.False(t, a.Pro)
}

func TestScoreAPI(t *testing.T) {
	s, cfg := testServer(t)

	req := scoreRequest{
		Deal: scoring.Deal{
			Asset:           scoring.Multifamily,
			Price:           ptrOf(500000.0),
			MonthlyRent:     ptrOf(4000.0),
			MonthlyExpenses: ptrOf(1500.0),
			VacancyRate:     ptrOf(0.05),
		},
		RateEnv: "neutral",
	}
	res := postScore(t, s, "/data/score", req)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out ScoreOutput
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, scoring.Multifamily, out.AssetClass)
	assert.Equal(t, scoring.RateNeutral, out.RateEnv)
	require.NotNil(t, out.Result)
	assert.GreaterOrEqual(t, out.Result.Score, 0.0)
	assert.LessOrEqual(t, out.Result.Score, 100.0)
	assert.NotEmpty(t, out.Result.Grade)
	assert.NotEmpty(t, out.Narrative.Headline)

	// One credit spent, analysis persisted.
	a, err := data.GetAccount(cfg.DB, testAccount)
	require.NoError(t, err)
	assert.Equal(t, data.StartingCredits-1, a.Credits)

	var history []*data.Analysis
	getBody(t, s, "/data/history", &history)
	require.Len(t, history, 1)
	assert.Equal(t, out.ID, history[0].ID)
}

func TestScoreAPIWithTemplate(t *testing.T) {
	s, _ := testServer(t)

	req := scoreRequest{
		Deal: scoring.Deal{
			Asset:       scoring.SingleFamily,
			Price:       ptrOf(250000.0),
			MonthlyRent: ptrOf(2100.0),
		},
		Template: "brrrr",
		RateEnv:  "neutral",
	}
	res := postScore(t, s, "/data/score", req)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out ScoreOutput
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Equal(t, scoring.SingleFamily, out.AssetClass)
	// Financing terms come from the template.
	assert.NotNil(t, out.Numbers.LoanPayment)
}

func TestScoreAPIRejectsBadInput(t *testing.T) {
	s, _ := testServer(t)

	for name, req := range map[string]scoreRequest{
		"missing asset": {Deal: scoring.Deal{Price: ptrOf(100000.0)}},
		"unknown asset": {Deal: scoring.Deal{Asset: "castle"}},
		"unknown template": {
			Deal:     scoring.Deal{Asset: scoring.Multifamily},
			Template: "no-such-template",
		},
		"invalid vacancy": {
			Deal: scoring.Deal{
				Asset:       scoring.Multifamily,
				VacancyRate: ptrOf(1.5),
			},
		},
		"unknown rate env": {
			Deal:    scoring.Deal{Asset: scoring.Multifamily},
			RateEnv: "sideways",
		},
	} {
		t.Run(name, func(t *testing.T) {
			res := postScore(t, s, "/data/score", req)
			assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		})
	}
}

func TestScoreAPICreditGate(t *testing.T) {
	s, cfg := testServer(t)

	req := scoreRequest{
		Deal:    scoring.Deal{Asset: scoring.Retail},
		RateEnv: "neutral",
		NoSave:  true,
	}
	for i := 0; i < data.StartingCredits; i++ {
		res := postScore(t, s, "/data/score", req)
		require.Equal(t, http.StatusOK, res.StatusCode, "request %d", i)
	}

	res := postScore(t, s, "/data/score", req)
	assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)

	// Pro accounts are not metered.
	require.NoError(t, data.SetPro(cfg.DB, testAccount, true))
	res = postScore(t, s, "/data/score", req)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestSensitivityAPI(t *testing.T) {
	s, cfg := testServer(t)

	req := scoreRequest{
		Deal: scoring.Deal{
			Asset:           scoring.Multifamily,
			Price:           ptrOf(500000.0),
			MonthlyRent:     ptrOf(4000.0),
			MonthlyExpenses: ptrOf(1500.0),
		},
		RateEnv: "neutral",
	}
	res := postScore(t, s, "/data/sensitivity", req)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var out scoring.Sensitivity
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	assert.Len(t, out.Scores, len(out.RentShocks))
	for _, row := range out.Scores {
		assert.Len(t, row, len(out.RateShocks))
	}

	// Sensitivity runs are free.
	a, err := data.GetAccount(cfg.DB, testAccount)
	require.NoError(t, err)
	assert.Equal(t, data.StartingCredits, a.Credits)
}

func TestWatchlistAPI(t *testing.T) {
	s, cfg := testServer(t)

	require.NoError(t, data.AddWatch(cfg.DB, testAccount, "9 Oak Ave", scoring.SingleFamily, 70))

	var list []*data.Watch
	getBody(t, s, "/data/watchlist", &list)
	require.Len(t, list, 1)
	assert.Equal(t, "9 Oak Ave", list[0].Address)
	assert.InDelta(t, 70.0, list[0].TargetScore, 1e-9)
}

func TestPortfolioAPI(t *testing.T) {
	s, cfg := testServer(t)

	require.NoError(t, data.AddHolding(cfg.DB, &data.Holding{
		Account:       testAccount,
		Address:       "4 Elm St",
		AssetClass:    scoring.SingleFamily,
		PurchasePrice: 300000,
		CurrentValue:  ptrOf(340000.0),
	}))

	var view portfolioView
	getBody(t, s, "/data/portfolio", &view)
	require.NotNil(t, view.Summary)
	assert.Equal(t, 1, view.Summary.Holdings)
	assert.InDelta(t, 300000.0, view.Summary.TotalInvested, 1e-9)
	assert.InDelta(t, 40000.0, view.Summary.TotalGain, 1e-9)
	require.Len(t, view.Holdings, 1)
	assert.Equal(t, "4 Elm St", view.Holdings[0].Address)
}

func TestTemplatesAPI(t *testing.T) {
	s, _ := testServer(t)

	var list []*data.Template
	getBody(t, s, "/data/templates", &list)
	require.NotEmpty(t, list)
	names := make([]string, 0, len(list))
	for _, tpl := range list {
		names = append(names, tpl.Name)
	}
	assert.Contains(t, names, "ltr")
	assert.Contains(t, names, "brrrr")
}

func TestHomeViewAndFavicon(t *testing.T) {
	s, _ := testServer(t)

	res, err := http.Get(s.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	fav, err := http.Get(s.URL + "/favicon.svg")
	require.NoError(t, err)
	defer fav.Body.Close()
	assert.Equal(t, http.StatusOK, fav.StatusCode)
	assert.Equal(t, "image/svg+xml", fav.Header.Get("Content-Type"))
}

func TestMergeDealOverlaysSetFields(t *testing.T) {
	base := scoring.Deal{
		Asset:          scoring.SingleFamily,
		DownPaymentPct: ptrOf(0.25),
		TermYears:      ptrOf(30),
	}
	overlay := scoring.Deal{
		Price:          ptrOf(250000.0),
		DownPaymentPct: ptrOf(0.15),
	}

	mergeDeal(&base, overlay)

	assert.Equal(t, scoring.SingleFamily, base.Asset)
	require.NotNil(t, base.Price)
	assert.InDelta(t, 250000.0, *base.Price, 1e-9)
	require.NotNil(t, base.DownPaymentPct)
	assert.InDelta(t, 0.15, *base.DownPaymentPct, 1e-9)
	require.NotNil(t, base.TermYears)
	assert.Equal(t, 30, *base.TermYears)
}

func ptrOf[T any](v T) *T {
	return &v
}

func TestReportAPIFresh(t *testing.T) {
	s, cfg := testServer(t)

	body := map[string]any{
		"deal": scoring.Deal{
			Asset:           scoring.Multifamily,
			Address:         "12 Main St, Springfield",
			Price:           ptrOf(500000.0),
			MonthlyRent:     ptrOf(4000.0),
			MonthlyExpenses: ptrOf(1500.0),
		},
		"rate_env": "neutral",
	}
	res := postScore(t, s, "/data/report", body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/plain")

	text, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "AIRE DEAL REPORT")
	assert.Contains(t, string(text), "12 Main St, Springfield")

	a, err := data.GetAccount(cfg.DB, testAccount)
	require.NoError(t, err)
	assert.Equal(t, data.StartingCredits-1, a.Credits)
}

func TestReportAPISavedAnalysis(t *testing.T) {
	s, cfg := testServer(t)

	scoreRes := postScore(t, s, "/data/score", scoreRequest{
		Deal:    scoring.Deal{Asset: scoring.Office, Address: "1 Plaza Dr"},
		RateEnv: "neutral",
	})
	require.Equal(t, http.StatusOK, scoreRes.StatusCode)
	var out ScoreOutput
	require.NoError(t, json.NewDecoder(scoreRes.Body).Decode(&out))
	require.NotEmpty(t, out.ID)

	res := postScore(t, s, "/data/report", map[string]string{"id": out.ID})
	require.Equal(t, http.StatusOK, res.StatusCode)
	text, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(text), "1 Plaza Dr")

	// replaying a saved analysis is free
	a, err := data.GetAccount(cfg.DB, testAccount)
	require.NoError(t, err)
	assert.Equal(t, data.StartingCredits-1, a.Credits)
}

func TestReportAPIUnknownID(t *testing.T) {
	s, _ := testServer(t)
	res := postScore(t, s, "/data/report", map[string]string{"id": "no-such-id"})
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestMarketAPI(t *testing.T) {
	s, _ := testServer(t)

	res, err := http.Get(s.URL + "/data/market")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// no provider configured in tests
	res, err = http.Get(s.URL + "/data/market?zip=10001")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestHistoryAPILimit(t *testing.T) {
	s, cfg := testServer(t)
	require.NoError(t, data.SetPro(cfg.DB, testAccount, true))

	req := scoreRequest{
		Deal:    scoring.Deal{Asset: scoring.Industrial, Address: "7 Dock Rd"},
		RateEnv: "neutral",
	}
	for i := 0; i < 3; i++ {
		res := postScore(t, s, "/data/score", req)
		require.Equal(t, http.StatusOK, res.StatusCode, "request %d", i)
	}

	var limited []*data.Analysis
	getBody(t, s, "/data/history?limit=2", &limited)
	assert.Len(t, limited, 2)

	var byAddr []*data.Analysis
	getBody(t, s, fmt.Sprintf("/data/history?address=%s", "7+Dock+Rd"), &byAddr)
	assert.Len(t, byAddr, 3)
}
