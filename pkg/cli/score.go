package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	urfave "github.com/urfave/cli/v2"

	"github.com/plupoV2/aire/pkg/data"
	"github.com/plupoV2/aire/pkg/report"
	"github.com/plupoV2/aire/pkg/scoring"
)

const historyLimitDefault = 20

var (
	addressFlag = &urfave.StringFlag{
		Name:  "address",
		Usage: "Property address (enables provider enrichment and history)",
	}

	assetFlag = &urfave.StringFlag{
		Name:  "asset",
		Usage: fmt.Sprintf("Asset class [%s]", strings.Join(assetNames(), ", ")),
	}

	priceFlag = &urfave.Float64Flag{
		Name:  "price",
		Usage: "Asking or purchase price",
	}

	rentFlag = &urfave.Float64Flag{
		Name:  "rent",
		Usage: "Gross monthly rent",
	}

	expensesFlag = &urfave.Float64Flag{
		Name:  "expenses",
		Usage: "Monthly operating expenses (taxes, insurance, maintenance)",
	}

	vacancyFlag = &urfave.Float64Flag{
		Name:  "vacancy",
		Usage: "Vacancy rate as a fraction (e.g. 0.05)",
	}

	downFlag = &urfave.Float64Flag{
		Name:  "down",
		Usage: "Down payment percent (e.g. 25)",
	}

	interestFlag = &urfave.Float64Flag{
		Name:  "interest",
		Usage: "Financing interest rate percent (e.g. 6.5)",
	}

	termFlag = &urfave.IntFlag{
		Name:  "term",
		Usage: "Loan term in years",
	}

	locationFlag = &urfave.Float64Flag{
		Name:  "location",
		Usage: "Location quality score in [0,1]",
	}

	rentGrowthFlag = &urfave.Float64Flag{
		Name:  "rent-growth",
		Usage: "Annual rent growth as a fraction (e.g. 0.03)",
	}

	domFlag = &urfave.IntFlag{
		Name:  "dom",
		Usage: "Days on market",
	}

	replacementCostFlag = &urfave.Float64Flag{
		Name:  "replacement-cost",
		Usage: "Estimated replacement cost of the improvements",
	}

	lastSaleFlag = &urfave.Float64Flag{
		Name:  "last-sale",
		Usage: "Price at the last recorded sale",
	}

	regulatedFlag = &urfave.BoolFlag{
		Name:  "regulated",
		Usage: "Property is subject to rent regulation",
	}

	rateEnvFlag = &urfave.StringFlag{
		Name:  "rate-env",
		Usage: "Rate environment override [high, neutral, low] (default: derived from FRED, else neutral)",
	}

	templateFlag = &urfave.StringFlag{
		Name:  "template",
		Usage: "Deal template to start from (see: aire template list)",
	}

	noEnrichFlag = &urfave.BoolFlag{
		Name:  "no-enrich",
		Usage: "Skip provider enrichment even when an address is given",
	}

	noSaveFlag = &urfave.BoolFlag{
		Name:  "no-save",
		Usage: "Do not persist the analysis",
	}

	sensitivityFlag = &urfave.BoolFlag{
		Name:  "sensitivity",
		Usage: "Include the rent/rate shock grid in the output",
	}

	projectYearsFlag = &urfave.IntFlag{
		Name:  "project",
		Usage: "Include a hold-period projection over N years",
	}

	historyLimitFlag = &urfave.IntFlag{
		Name:  "limit",
		Usage: "Limits number of results returned",
		Value: historyLimitDefault,
	}

	reportFlag = &urfave.StringFlag{
		Name:  "report",
		Usage: "Print a report instead of json/yaml [text, csv]",
	}

	scoreCmd = &urfave.Command{
		Name:            "score",
		Aliases:         []string{"s"},
		HideHelpCommand: true,
		Usage:           "Grade a deal from whatever inputs you have",
		UsageText: `aire score --address "12 Main St, Springfield" --asset single_family
   aire score --asset multifamily --price 500000 --rent 4000 --expenses 1500 --vacancy 0.05
   aire score --template brrrr --price 250000 --rent 2100 --expenses 800 --sensitivity`,
		Action: cmdScore,
		Flags: append(dealFlags(),
			rateEnvFlag,
			templateFlag,
			noEnrichFlag,
			noSaveFlag,
			sensitivityFlag,
			projectYearsFlag,
			reportFlag,
		),
		Subcommands: []*urfave.Command{
			{
				Name:   "history",
				Usage:  "List saved analyses, optionally for one address",
				Action: cmdScoreHistory,
				Flags: []urfave.Flag{
					addressFlag,
					historyLimitFlag,
				},
			},
		},
	}
)

// ScoreOutput is the full CLI/API result document for one scored deal.
type ScoreOutput struct {
	ID          string               `json:"id,omitempty" yaml:"id,omitempty"`
	Address     string               `json:"address,omitempty" yaml:"address,omitempty"`
	AssetClass  scoring.AssetClass   `json:"asset_class" yaml:"assetClass"`
	RateEnv     scoring.RateBucket   `json:"rate_env" yaml:"rateEnv"`
	Result      *scoring.Result      `json:"result" yaml:"result"`
	Numbers     scoring.Numbers      `json:"numbers" yaml:"numbers"`
	Narrative   scoring.Narrative    `json:"narrative" yaml:"narrative"`
	Sensitivity *scoring.Sensitivity `json:"sensitivity,omitempty" yaml:"sensitivity,omitempty"`
	Projection  *scoring.Projection  `json:"projection,omitempty" yaml:"projection,omitempty"`
}

// dealFlags is the full set of deal input flags, shared by score, screen,
// and template save.
func dealFlags() []urfave.Flag {
	return []urfave.Flag{
		addressFlag,
		assetFlag,
		priceFlag,
		rentFlag,
		expensesFlag,
		vacancyFlag,
		downFlag,
		interestFlag,
		termFlag,
		locationFlag,
		rentGrowthFlag,
		domFlag,
		replacementCostFlag,
		lastSaleFlag,
		regulatedFlag,
	}
}

func assetNames() []string {
	names := make([]string, 0, len(scoring.AssetClasses))
	for _, a := range scoring.AssetClasses {
		names = append(names, string(a))
	}
	return names
}

func fOpt(c *urfave.Context, name string) *float64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Float64(name)
	return &v
}

func iOpt(c *urfave.Context, name string) *int {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int(name)
	return &v
}

// buildDeal assembles the deal from an optional template plus flags. Flags
// always win over template values.
func buildDeal(c *urfave.Context, cfg *appConfig) (scoring.Deal, error) {
	var d scoring.Deal

	if name := c.String(templateFlag.Name); name != "" {
		tpl, err := data.GetTemplate(cfg.DB, name)
		if err != nil {
			return d, err
		}
		if tpl == nil {
			return d, fmt.Errorf("unknown template: %s", name)
		}
		d = tpl.Deal
	}

	if s := c.String(assetFlag.Name); s != "" {
		asset, err := scoring.ParseAssetClass(s)
		if err != nil {
			return d, err
		}
		d.Asset = asset
	}
	if d.Asset == "" {
		return d, errors.New("asset class is required (--asset or a template)")
	}

	applyDealFlags(c, &d)

	return d, nil
}

// applyDealFlags copies every set deal flag onto d, leaving unset fields alone.
func applyDealFlags(c *urfave.Context, d *scoring.Deal) {
	if s := c.String(addressFlag.Name); s != "" {
		d.Address = s
	}
	if v := fOpt(c, priceFlag.Name); v != nil {
		d.Price = v
	}
	if v := fOpt(c, rentFlag.Name); v != nil {
		d.MonthlyRent = v
	}
	if v := fOpt(c, expensesFlag.Name); v != nil {
		d.MonthlyExpenses = v
	}
	if v := fOpt(c, vacancyFlag.Name); v != nil {
		d.VacancyRate = v
	}
	if v := fOpt(c, downFlag.Name); v != nil {
		d.DownPaymentPct = v
	}
	if v := fOpt(c, interestFlag.Name); v != nil {
		d.InterestRatePct = v
	}
	if v := iOpt(c, termFlag.Name); v != nil {
		d.TermYears = v
	}
	if v := fOpt(c, locationFlag.Name); v != nil {
		d.LocationScore = v
	}
	if v := fOpt(c, rentGrowthFlag.Name); v != nil {
		d.RentGrowth = v
	}
	if v := iOpt(c, domFlag.Name); v != nil {
		d.DaysOnMarket = v
	}
	if v := fOpt(c, replacementCostFlag.Name); v != nil {
		d.ReplacementCost = v
	}
	if v := fOpt(c, lastSaleFlag.Name); v != nil {
		d.LastSalePrice = v
	}
	if c.Bool(regulatedFlag.Name) {
		d.RentRegulation = true
	}
}

// scoreOptions are the pipeline knobs shared by the CLI and the HTTP API.
type scoreOptions struct {
	RateEnv      string
	Enrich       bool
	Sensitivity  bool
	ProjectYears int
	Save         bool
}

// scoreDeal runs the full pipeline for one deal: enrich, derive, grade.
func scoreDeal(c *urfave.Context, cfg *appConfig, d scoring.Deal, enrich bool) (*ScoreOutput, error) {
	return runScore(c.Context, cfg, d, scoreOptions{
		RateEnv:      c.String(rateEnvFlag.Name),
		Enrich:       enrich,
		Sensitivity:  c.Bool(sensitivityFlag.Name),
		ProjectYears: c.Int(projectYearsFlag.Name),
		Save:         !c.Bool(noSaveFlag.Name),
	})
}

func runScore(ctx context.Context, cfg *appConfig, d scoring.Deal, opt scoreOptions) (*ScoreOutput, error) {
	if opt.Enrich && d.Address != "" {
		cfg.Enricher.Prefill(ctx, &d)
	}

	rate, err := resolveRate(ctx, cfg, opt.RateEnv)
	if err != nil {
		return nil, err
	}

	numbers := scoring.ComputeNumbers(d)
	req := d.Request(numbers, rate)
	res, err := cfg.Engine.Evaluate(req)
	if err != nil {
		return nil, err
	}

	out := &ScoreOutput{
		Address:    d.Address,
		AssetClass: d.Asset,
		RateEnv:    rate,
		Result:     res,
		Numbers:    numbers,
		Narrative:  scoring.BuildNarrative(req, res, numbers),
	}

	if opt.Sensitivity {
		s, err := cfg.Engine.Sensitivity(d, rate)
		if err != nil {
			return nil, err
		}
		out.Sensitivity = s
	}
	if opt.ProjectYears > 0 {
		out.Projection = scoring.Project(d, scoring.ProjectionInput{Years: opt.ProjectYears})
	}

	if opt.Save {
		id, err := data.SaveAnalysis(cfg.DB, cfg.Conf.Account, d, rate, res)
		if err != nil {
			return nil, err
		}
		out.ID = id
	}
	return out, nil
}

func resolveRate(ctx context.Context, cfg *appConfig, override string) (scoring.RateBucket, error) {
	if override != "" {
		return scoring.ParseRateBucket(override)
	}
	return cfg.Enricher.RateEnvironment(ctx), nil
}

func cmdScore(c *urfave.Context) error {
	cfg := getConfig(c)

	d, err := buildDeal(c, cfg)
	if err != nil {
		return err
	}

	if err := spendScoringCredit(cfg); err != nil {
		return err
	}

	out, err := scoreDeal(c, cfg, d, !c.Bool(noEnrichFlag.Name))
	if err != nil {
		return err
	}

	switch c.String(reportFlag.Name) {
	case "text":
		fmt.Print(reportDocument(out).Text())
		return nil
	case "csv":
		return reportDocument(out).WriteCSV(os.Stdout)
	}
	return encode(out)
}

func reportDocument(out *ScoreOutput) *report.Document {
	return &report.Document{
		GeneratedAt: time.Now(),
		Address:     out.Address,
		AssetClass:  out.AssetClass,
		RateEnv:     out.RateEnv,
		Result:      out.Result,
		Numbers:     out.Numbers,
		Narrative:   out.Narrative,
		Sensitivity: out.Sensitivity,
		Projection:  out.Projection,
	}
}

func cmdScoreHistory(c *urfave.Context) error {
	cfg := getConfig(c)
	limit := c.Int(historyLimitFlag.Name)

	var list []*data.Analysis
	var err error
	if addr := c.String(addressFlag.Name); addr != "" {
		list, err = data.ListAnalysesForAddress(cfg.DB, cfg.Conf.Account, addr, limit)
	} else {
		list, err = data.ListAnalyses(cfg.DB, cfg.Conf.Account, limit)
	}
	if err != nil {
		return err
	}
	return encode(list)
}

// spendScoringCredit enforces the credit gate, pointing at the payment link
// when the balance runs out.
func spendScoringCredit(cfg *appConfig) error {
	err := data.SpendCredit(cfg.DB, cfg.Conf.Account)
	if err == nil {
		return nil
	}
	if errors.Is(err, data.ErrNoCredits) {
		msg := "out of scoring credits, run: aire account unlock --code <code>"
		if cfg.Conf.PaymentLink != "" {
			msg = fmt.Sprintf("%s (get a code at %s)", msg, cfg.Conf.PaymentLink)
		}
		return errors.New(msg)
	}
	return err
}
