package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	urfave "github.com/urfave/cli/v2"

	"github.com/plupoV2/aire/pkg/data"
	"github.com/plupoV2/aire/pkg/provider"
	"github.com/plupoV2/aire/pkg/scoring"
)

var (
	targetScoreFlag = &urfave.Float64Flag{
		Name:  "target",
		Usage: "Alert when the score reaches this value (0 reports every scan)",
	}

	watchCmd = &urfave.Command{
		Name:            "watchlist",
		Aliases:         []string{"w"},
		HideHelpCommand: true,
		Usage:           "Track addresses and rescan them for score changes",
		Subcommands: []*urfave.Command{
			{
				Name:   "add",
				Usage:  "Add an address to the watchlist",
				Action: cmdWatchAdd,
				Flags: []urfave.Flag{
					addressFlag,
					assetFlag,
					targetScoreFlag,
				},
			},
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List watched addresses",
				Action:  cmdWatchList,
			},
			{
				Name:   "remove",
				Usage:  "Remove an address from the watchlist",
				Action: cmdWatchRemove,
				Flags: []urfave.Flag{
					addressFlag,
				},
			},
			{
				Name:   "scan",
				Usage:  "Rescore every watched address and report alerts",
				Action: cmdWatchScan,
			},
		},
	}
)

// WatchAlert is one watchlist hit: a rescored address at or above its
// target.
type WatchAlert struct {
	Address     string  `json:"address" yaml:"address"`
	Score       float64 `json:"score" yaml:"score"`
	Grade       string  `json:"grade" yaml:"grade"`
	TargetScore float64 `json:"target_score" yaml:"targetScore"`
}

func cmdWatchAdd(c *urfave.Context) error {
	cfg := getConfig(c)

	addr := c.String(addressFlag.Name)
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	asset, err := scoring.ParseAssetClass(c.String(assetFlag.Name))
	if err != nil {
		return err
	}

	if err := data.AddWatch(cfg.DB, cfg.Conf.Account, addr, asset, c.Float64(targetScoreFlag.Name)); err != nil {
		return err
	}
	fmt.Printf("Watching %s\n", addr)
	return nil
}

func cmdWatchList(c *urfave.Context) error {
	cfg := getConfig(c)
	list, err := data.ListWatches(cfg.DB, cfg.Conf.Account)
	if err != nil {
		return err
	}
	return encode(list)
}

func cmdWatchRemove(c *urfave.Context) error {
	cfg := getConfig(c)

	addr := c.String(addressFlag.Name)
	if addr == "" {
		return fmt.Errorf("address is required")
	}
	if err := data.RemoveWatch(cfg.DB, cfg.Conf.Account, addr); err != nil {
		return err
	}
	fmt.Printf("Stopped watching %s\n", addr)
	return nil
}

func cmdWatchScan(c *urfave.Context) error {
	cfg := getConfig(c)

	alerts, err := scanWatchlist(c.Context, cfg.DB, cfg.Conf.Account, cfg.Engine, cfg.Enricher)
	if err != nil {
		return err
	}
	return encode(alerts)
}

// scanWatchlist rescores every watch and records the outcome. Alerts are
// returned for entries at or above their target. Scans do not spend
// credits: the entries were paid for when first scored.
func scanWatchlist(ctx context.Context, db *sql.DB, account string, engine *scoring.Engine, enricher *provider.Enricher) ([]WatchAlert, error) {
	watches, err := data.ListWatches(db, account)
	if err != nil {
		return nil, err
	}

	rate := enricher.RateEnvironment(ctx)

	alerts := make([]WatchAlert, 0)
	for _, w := range watches {
		d := scoring.Deal{Asset: w.AssetClass, Address: w.Address}
		enricher.Prefill(ctx, &d)

		res, err := engine.Evaluate(d.Request(scoring.ComputeNumbers(d), rate))
		if err != nil {
			slog.Warn("watch rescore failed", "address", w.Address, "error", err)
			continue
		}

		if err := data.UpdateWatchScore(db, account, w.Address, res.Score, res.Grade); err != nil {
			return nil, err
		}

		if res.Score >= w.TargetScore {
			alerts = append(alerts, WatchAlert{
				Address:     w.Address,
				Score:       res.Score,
				Grade:       res.Grade,
				TargetScore: w.TargetScore,
			})
		}
	}
	return alerts, nil
}
