package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/plupoV2/aire/pkg/data"
	"github.com/plupoV2/aire/pkg/scoring"
)

var (
	purchasePriceFlag = &urfave.Float64Flag{
		Name:     "purchase-price",
		Usage:    "Price paid for the property",
		Required: true,
	}

	currentValueFlag = &urfave.Float64Flag{
		Name:  "value",
		Usage: "Current estimated value",
	}

	acquiredFlag = &urfave.StringFlag{
		Name:  "acquired",
		Usage: "Acquisition date (YYYY-MM-DD)",
	}

	portfolioCmd = &urfave.Command{
		Name:            "portfolio",
		Aliases:         []string{"p"},
		HideHelpCommand: true,
		Usage:           "Track owned properties and their performance",
		Subcommands: []*urfave.Command{
			{
				Name:   "add",
				Usage:  "Add or update an owned property",
				Action: cmdPortfolioAdd,
				Flags: []urfave.Flag{
					addressFlag,
					assetFlag,
					purchasePriceFlag,
					currentValueFlag,
					rentFlag,
					expensesFlag,
					acquiredFlag,
				},
			},
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List holdings",
				Action:  cmdPortfolioList,
			},
			{
				Name:   "remove",
				Usage:  "Remove a holding",
				Action: cmdPortfolioRemove,
				Flags: []urfave.Flag{
					addressFlag,
				},
			},
			{
				Name:   "summary",
				Usage:  "Aggregate invested capital, value, and cashflow",
				Action: cmdPortfolioSummary,
			},
			{
				Name:   "rescore",
				Usage:  "Rescore every holding against current market data",
				Action: cmdPortfolioRescore,
			},
		},
	}
)

func cmdPortfolioAdd(c *urfave.Context) error {
	cfg := getConfig(c)

	addr := c.String(addressFlag.Name)
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	asset, err := scoring.ParseAssetClass(c.String(assetFlag.Name))
	if err != nil {
		return err
	}

	h := &data.Holding{
		Account:         cfg.Conf.Account,
		Address:         addr,
		AssetClass:      asset,
		PurchasePrice:   c.Float64(purchasePriceFlag.Name),
		CurrentValue:    fOpt(c, currentValueFlag.Name),
		MonthlyRent:     fOpt(c, rentFlag.Name),
		MonthlyExpenses: fOpt(c, expensesFlag.Name),
		AcquiredOn:      c.String(acquiredFlag.Name),
	}
	if err := data.AddHolding(cfg.DB, h); err != nil {
		return err
	}
	fmt.Printf("Added %s to portfolio\n", addr)
	return nil
}

func cmdPortfolioList(c *urfave.Context) error {
	cfg := getConfig(c)
	list, err := data.ListHoldings(cfg.DB, cfg.Conf.Account)
	if err != nil {
		return err
	}
	return encode(list)
}

func cmdPortfolioRemove(c *urfave.Context) error {
	cfg := getConfig(c)

	addr := c.String(addressFlag.Name)
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	if err := data.RemoveHolding(cfg.DB, cfg.Conf.Account, addr); err != nil {
		return err
	}
	fmt.Printf("Removed %s from portfolio\n", addr)
	return nil
}

func cmdPortfolioSummary(c *urfave.Context) error {
	cfg := getConfig(c)
	s, err := data.GetPortfolioSummary(cfg.DB, cfg.Conf.Account)
	if err != nil {
		return err
	}
	return encode(s)
}

func cmdPortfolioRescore(c *urfave.Context) error {
	cfg := getConfig(c)

	holdings, err := data.ListHoldings(cfg.DB, cfg.Conf.Account)
	if err != nil {
		return err
	}

	rate := cfg.Enricher.RateEnvironment(c.Context)
	for _, h := range holdings {
		d := scoring.Deal{
			Asset:           h.AssetClass,
			Address:         h.Address,
			Price:           h.CurrentValue,
			MonthlyRent:     h.MonthlyRent,
			MonthlyExpenses: h.MonthlyExpenses,
		}
		if d.Price == nil {
			price := h.PurchasePrice
			d.Price = &price
		}
		cfg.Enricher.Prefill(c.Context, &d)

		res, err := cfg.Engine.Evaluate(d.Request(scoring.ComputeNumbers(d), rate))
		if err != nil {
			return fmt.Errorf("rescoring %s: %w", h.Address, err)
		}
		if err := data.UpdateHoldingScore(cfg.DB, cfg.Conf.Account, h.Address, res.Score, res.Grade); err != nil {
			return err
		}
	}

	return cmdPortfolioList(c)
}
