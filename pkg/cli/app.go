package cli

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	urfave "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/plupoV2/aire/pkg/config"
	"github.com/plupoV2/aire/pkg/data"
	"github.com/plupoV2/aire/pkg/logging"
	"github.com/plupoV2/aire/pkg/provider"
	"github.com/plupoV2/aire/pkg/scoring"
)

const (
	appName      = "aire"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	outputFormat = formatJSON

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	dbFilePathFlag = &urfave.StringFlag{
		Name:  "db",
		Usage: "Path to the Sqlite database file",
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	policyFlag = &urfave.StringFlag{
		Name:  "policy",
		Usage: "Path to a scoring policy override file (optional, defaults to the built-in policy)",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	ConfDir  string
	Conf     *config.Config
	DBPath   string
	Debug    bool
	DB       *sql.DB
	Engine   *scoring.Engine
	Enricher *provider.Enricher
}

func getConfig(c *urfave.Context) *appConfig {
	return c.App.Metadata[appConfigKey].(*appConfig)
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:                 appName,
		Version:              fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Compiled:             time.Now(),
		EnableBashCompletion: true,
		HideHelpCommand:      true,
		Usage:                "Deterministic deal grading for real estate investors",
		Flags: []urfave.Flag{
			debugFlag,
			dbFilePathFlag,
			formatFlag,
			policyFlag,
		},
		Commands: []*urfave.Command{
			scoreCmd,
			screenCmd,
			watchCmd,
			portfolioCmd,
			templateCmd,
			accountCmd,
			keysCmd,
			serverCmd,
		},
		Before: func(c *urfave.Context) error {
			if c.Bool(debugFlag.Name) {
				logging.SetDefaultCLILogger("debug")
			}

			f := c.String(formatFlag.Name)
			if f == formatYAML || f == "yml" {
				outputFormat = formatYAML
			}

			confDir, _, err := config.GetOrCreateHomeDir(appName)
			if err != nil {
				return fmt.Errorf("resolving config dir: %w", err)
			}
			conf, err := config.ReadOrCreate(confDir)
			if err != nil {
				return fmt.Errorf("reading config: %w", err)
			}

			dbPath := c.String(dbFilePathFlag.Name)
			if dbPath == "" {
				dbPath = path.Join(confDir, data.DataFileName)
			}
			if err := data.Init(dbPath); err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}
			db, err := data.GetDB(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			if err := data.SeedTemplates(db); err != nil {
				return fmt.Errorf("seeding templates: %w", err)
			}
			if _, err := data.EnsureAccount(db, conf.Account); err != nil {
				return fmt.Errorf("ensuring account: %w", err)
			}

			engine, err := makeEngine(c.String(policyFlag.Name), conf)
			if err != nil {
				return fmt.Errorf("loading scoring policy: %w", err)
			}

			c.App.Metadata[appConfigKey] = &appConfig{
				ConfDir:  confDir,
				Conf:     conf,
				DBPath:   dbPath,
				Debug:    c.Bool(debugFlag.Name),
				DB:       db,
				Engine:   engine,
				Enricher: makeEnricher(conf),
			}
			return nil
		},
		After: func(c *urfave.Context) error {
			if cfg, ok := c.App.Metadata[appConfigKey].(*appConfig); ok && cfg.DB != nil {
				cfg.DB.Close()
			}
			return nil
		},
	}
}

func makeEngine(policyPath string, conf *config.Config) (*scoring.Engine, error) {
	if policyPath == "" {
		policyPath = conf.PolicyPath
	}
	if policyPath == "" {
		return scoring.NewDefaultEngine()
	}
	p, err := scoring.LoadPolicy(policyPath)
	if err != nil {
		return nil, err
	}
	return scoring.NewEngine(p)
}

func makeEnricher(conf *config.Config) *provider.Enricher {
	var rc *provider.RentCast
	if key := getProviderKey(providerRentCast, conf.RentCastAPIKey); key != "" {
		rc = provider.NewRentCast(key, "")
	}
	var fred *provider.FRED
	if key := getProviderKey(providerFRED, conf.FREDAPIKey); key != "" {
		fred = provider.NewFRED(key, "")
	}
	return provider.NewEnricher(rc, fred)
}

func encode(v any) error {
	if outputFormat == formatYAML {
		return yaml.NewEncoder(os.Stdout).Encode(v)
	}
	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
