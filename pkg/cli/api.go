package cli

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/plupoV2/aire/pkg/data"
	"github.com/plupoV2/aire/pkg/provider"
	"github.com/plupoV2/aire/pkg/report"
	"github.com/plupoV2/aire/pkg/scoring"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryParamInt(r *http.Request, name string, def int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func schemaAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"asset_classes": scoring.AssetClasses,
			"rate_envs":     scoring.RateBuckets,
			"fields":        cfg.Engine.Schema(),
		})
	}
}

func stateAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := data.GetDataState(cfg.DB)
		if err != nil {
			slog.Error("failed to get data state", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get data state")
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func accountAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := data.GetAccount(cfg.DB, cfg.Conf.Account)
		if err != nil || a == nil {
			slog.Error("failed to get account", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to get account")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func historyAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryParamInt(r, "limit", historyLimitDefault)

		var list []*data.Analysis
		var err error
		if addr := r.URL.Query().Get("address"); addr != "" {
			list, err = data.ListAnalysesForAddress(cfg.DB, cfg.Conf.Account, addr, limit)
		} else {
			list, err = data.ListAnalyses(cfg.DB, cfg.Conf.Account, limit)
		}
		if err != nil {
			slog.Error("failed to list analyses", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list analyses")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func watchlistAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := data.ListWatches(cfg.DB, cfg.Conf.Account)
		if err != nil {
			slog.Error("failed to list watches", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list watches")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

type portfolioView struct {
	Summary  *data.PortfolioSummary `json:"summary"`
	Holdings []*data.Holding        `json:"holdings"`
}

func portfolioAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		holdings, err := data.ListHoldings(cfg.DB, cfg.Conf.Account)
		if err != nil {
			slog.Error("failed to list holdings", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list holdings")
			return
		}
		summary, err := data.GetPortfolioSummary(cfg.DB, cfg.Conf.Account)
		if err != nil {
			slog.Error("failed to summarize portfolio", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to summarize portfolio")
			return
		}
		writeJSON(w, http.StatusOK, &portfolioView{Summary: summary, Holdings: holdings})
	}
}

func templatesAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := data.ListTemplates(cfg.DB, cfg.Conf.Account)
		if err != nil {
			slog.Error("failed to list templates", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to list templates")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// scoreRequest is the POST body for /data/score and /data/sensitivity.
type scoreRequest struct {
	Deal         scoring.Deal `json:"deal"`
	Template     string       `json:"template,omitempty"`
	RateEnv      string       `json:"rate_env,omitempty"`
	Enrich       bool         `json:"enrich,omitempty"`
	Sensitivity  bool         `json:"sensitivity,omitempty"`
	ProjectYears int          `json:"project_years,omitempty"`
	NoSave       bool         `json:"no_save,omitempty"`
}

func decodeScoreRequest(r *http.Request, cfg *appConfig) (scoring.Deal, scoreRequest, error) {
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return scoring.Deal{}, req, errors.New("invalid request body")
	}
	d, err := resolveDeal(cfg, req)
	return d, req, err
}

// resolveDeal overlays the request deal on its template and validates the
// asset class and rate override.
func resolveDeal(cfg *appConfig, req scoreRequest) (scoring.Deal, error) {
	d := req.Deal
	if req.RateEnv != "" {
		if _, err := scoring.ParseRateBucket(req.RateEnv); err != nil {
			return d, err
		}
	}
	if req.Template != "" {
		tpl, err := data.GetTemplate(cfg.DB, req.Template)
		if err != nil || tpl == nil {
			return d, errors.New("unknown template: " + req.Template)
		}
		base := tpl.Deal
		mergeDeal(&base, d)
		d = base
	}
	if d.Asset == "" {
		return d, errors.New("asset class is required")
	}
	if _, err := scoring.ParseAssetClass(string(d.Asset)); err != nil {
		return d, err
	}
	return d, nil
}

// mergeDeal overlays every set field of src onto dst.
func mergeDeal(dst *scoring.Deal, src scoring.Deal) {
	if src.Asset != "" {
		dst.Asset = src.Asset
	}
	if src.Address != "" {
		dst.Address = src.Address
	}
	if src.Price != nil {
		dst.Price = src.Price
	}
	if src.ReplacementCost != nil {
		dst.ReplacementCost = src.ReplacementCost
	}
	if src.MonthlyRent != nil {
		dst.MonthlyRent = src.MonthlyRent
	}
	if src.MonthlyExpenses != nil {
		dst.MonthlyExpenses = src.MonthlyExpenses
	}
	if src.VacancyRate != nil {
		dst.VacancyRate = src.VacancyRate
	}
	if src.DownPaymentPct != nil {
		dst.DownPaymentPct = src.DownPaymentPct
	}
	if src.InterestRatePct != nil {
		dst.InterestRatePct = src.InterestRatePct
	}
	if src.TermYears != nil {
		dst.TermYears = src.TermYears
	}
	if src.DaysOnMarket != nil {
		dst.DaysOnMarket = src.DaysOnMarket
	}
	if src.LocationScore != nil {
		dst.LocationScore = src.LocationScore
	}
	if src.RentGrowth != nil {
		dst.RentGrowth = src.RentGrowth
	}
	if src.LastSalePrice != nil {
		dst.LastSalePrice = src.LastSalePrice
	}
	if src.LastSaleDate != "" {
		dst.LastSaleDate = src.LastSaleDate
	}
	if src.RentRegulation {
		dst.RentRegulation = true
	}
}

func scoreAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, req, err := decodeScoreRequest(r, cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := spendScoringCredit(cfg); err != nil {
			writeError(w, http.StatusPaymentRequired, err.Error())
			return
		}

		out, err := runScore(r.Context(), cfg, d, scoreOptions{
			RateEnv:      req.RateEnv,
			Enrich:       req.Enrich,
			Sensitivity:  req.Sensitivity,
			ProjectYears: req.ProjectYears,
			Save:         !req.NoSave,
		})
		if err != nil {
			var verr *scoring.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			slog.Error("scoring failed", "error", err)
			writeError(w, http.StatusInternalServerError, "scoring failed")
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// reportAPIHandler renders a text report. With an id it rebuilds the report
// from a saved analysis for free; otherwise it runs a fresh scoring pass
// under the credit gate.
func reportAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID string `json:"id,omitempty"`
			scoreRequest
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var doc *report.Document
		if body.ID != "" {
			saved, err := data.GetAnalysis(cfg.DB, body.ID)
			if err != nil {
				slog.Error("failed to get analysis", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to get analysis")
				return
			}
			if saved == nil {
				writeError(w, http.StatusNotFound, "analysis not found: "+body.ID)
				return
			}
			doc = savedReport(saved)
		} else {
			d, err := resolveDeal(cfg, body.scoreRequest)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if err := spendScoringCredit(cfg); err != nil {
				writeError(w, http.StatusPaymentRequired, err.Error())
				return
			}
			out, err := runScore(r.Context(), cfg, d, scoreOptions{
				RateEnv:      body.RateEnv,
				Enrich:       body.Enrich,
				Sensitivity:  body.Sensitivity,
				ProjectYears: body.ProjectYears,
				Save:         !body.NoSave,
			})
			if err != nil {
				var verr *scoring.ValidationError
				if errors.As(err, &verr) {
					writeError(w, http.StatusBadRequest, verr.Error())
					return
				}
				slog.Error("scoring failed", "error", err)
				writeError(w, http.StatusInternalServerError, "scoring failed")
				return
			}
			doc = reportDocument(out)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte(doc.Text())); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	}
}

// savedReport rebuilds a report document from a persisted analysis. Derived
// numbers and narrative are recomputed from the stored deal; the stored
// result is authoritative.
func savedReport(a *data.Analysis) *report.Document {
	numbers := scoring.ComputeNumbers(a.Deal)
	req := a.Deal.Request(numbers, a.RateEnv)
	res := a.Result
	return &report.Document{
		GeneratedAt: a.CreatedOn,
		Address:     a.Address,
		AssetClass:  a.AssetClass,
		RateEnv:     a.RateEnv,
		Result:      &res,
		Numbers:     numbers,
		Narrative:   scoring.BuildNarrative(req, &res, numbers),
	}
}

func marketAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zip := r.URL.Query().Get("zip")
		if zip == "" {
			writeError(w, http.StatusBadRequest, "zip is required")
			return
		}

		stats, err := cfg.Enricher.MarketStats(r.Context(), zip)
		if err != nil {
			if errors.Is(err, provider.ErrNoAPIKey) {
				writeError(w, http.StatusServiceUnavailable, "no property data provider configured")
				return
			}
			slog.Error("market lookup failed", "zip", zip, "error", err)
			writeError(w, http.StatusInternalServerError, "market lookup failed")
			return
		}
		if stats == nil {
			writeError(w, http.StatusNotFound, "no market data for zip: "+zip)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// sensitivityAPIHandler scores nothing for credit purposes, it only shocks an
// already specified deal.
func sensitivityAPIHandler(cfg *appConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, req, err := decodeScoreRequest(r, cfg)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rate, err := resolveRate(r.Context(), cfg, req.RateEnv)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		s, err := cfg.Engine.Sensitivity(d, rate)
		if err != nil {
			var verr *scoring.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			slog.Error("sensitivity failed", "error", err)
			writeError(w, http.StatusInternalServerError, "sensitivity failed")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
