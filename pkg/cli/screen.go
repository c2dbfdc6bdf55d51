package cli

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	urfave "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/plupoV2/aire/pkg/report"
)

const screenConcurrencyDefault = 4

var (
	screenFileFlag = &urfave.StringFlag{
		Name:     "file",
		Usage:    "File with one property address per line",
		Required: true,
	}

	minScoreFlag = &urfave.Float64Flag{
		Name:  "min-score",
		Usage: "Only report deals at or above this score",
	}

	concurrencyFlag = &urfave.IntFlag{
		Name:  "concurrency",
		Usage: "Number of addresses scored in parallel",
		Value: screenConcurrencyDefault,
	}

	csvFlag = &urfave.BoolFlag{
		Name:  "csv",
		Usage: "Output the ranking as CSV",
	}

	screenCmd = &urfave.Command{
		Name:            "screen",
		HideHelpCommand: true,
		Usage:           "Score a list of addresses and rank the results",
		UsageText:       `aire screen --file leads.txt --asset single_family --template ltr --min-score 70`,
		Action:          cmdScreen,
		Flags: []urfave.Flag{
			screenFileFlag,
			assetFlag,
			templateFlag,
			rateEnvFlag,
			minScoreFlag,
			concurrencyFlag,
			csvFlag,
			noSaveFlag,
		},
	}
)

func cmdScreen(c *urfave.Context) error {
	cfg := getConfig(c)

	addresses, err := readAddressFile(c.String(screenFileFlag.Name))
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("no addresses in file: %s", c.String(screenFileFlag.Name))
	}

	// the credit gate applies per scored address, settled up front so a
	// partial run does not drain the balance
	for range addresses {
		if err := spendScoringCredit(cfg); err != nil {
			return fmt.Errorf("screening %d addresses: %w", len(addresses), err)
		}
	}

	results := make([]*ScoreOutput, 0, len(addresses))
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(c.Int(concurrencyFlag.Name))

	for _, addr := range addresses {
		addr := addr
		g.Go(func() error {
			d, err := buildDeal(c, cfg)
			if err != nil {
				return err
			}
			d.Address = addr

			out, err := scoreDeal(c, cfg, d, true)
			if err != nil {
				return fmt.Errorf("scoring %s: %w", addr, err)
			}

			mu.Lock()
			results = append(results, out)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	min := c.Float64(minScoreFlag.Name)
	ranked := make([]*ScoreOutput, 0, len(results))
	for _, r := range results {
		if r.Result.Score >= min {
			ranked = append(ranked, r)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Result.Score != ranked[j].Result.Score {
			return ranked[i].Result.Score > ranked[j].Result.Score
		}
		return ranked[i].Address < ranked[j].Address
	})

	if c.Bool(csvFlag.Name) {
		docs := make([]*report.Document, 0, len(ranked))
		for _, r := range ranked {
			docs = append(docs, reportDocument(r))
		}
		return report.RankingCSV(os.Stdout, docs)
	}
	return encode(ranked)
}

func readAddressFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening address file: %w", err)
	}
	defer file.Close()

	addresses := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		addresses = append(addresses, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading address file: %w", err)
	}
	return addresses, nil
}
