package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/plupoV2/aire/pkg/data"
)

var (
	unlockCodeFlag = &urfave.StringFlag{
		Name:     "code",
		Usage:    "Unlock code from your purchase receipt",
		Required: true,
	}

	creditsFlag = &urfave.IntFlag{
		Name:     "n",
		Usage:    "Number of credits to add",
		Required: true,
	}

	accountCmd = &urfave.Command{
		Name:            "account",
		Aliases:         []string{"a"},
		HideHelpCommand: true,
		Usage:           "Show credit balance and unlock pro",
		Subcommands: []*urfave.Command{
			{
				Name:   "show",
				Usage:  "Show the current account and remaining credits",
				Action: cmdAccountShow,
			},
			{
				Name:   "unlock",
				Usage:  "Unlock unlimited scoring with a purchase code",
				Action: cmdAccountUnlock,
				Flags: []urfave.Flag{
					unlockCodeFlag,
				},
			},
			{
				Name:   "add-credits",
				Usage:  "Add scoring credits to the account",
				Action: cmdAccountAddCredits,
				Flags: []urfave.Flag{
					creditsFlag,
				},
			},
		},
	}
)

func cmdAccountShow(c *urfave.Context) error {
	cfg := getConfig(c)
	a, err := data.GetAccount(cfg.DB, cfg.Conf.Account)
	if err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("account not found: %s", cfg.Conf.Account)
	}
	return encode(a)
}

func cmdAccountUnlock(c *urfave.Context) error {
	cfg := getConfig(c)

	code := c.String(unlockCodeFlag.Name)
	if cfg.Conf.UnlockCode == "" {
		return fmt.Errorf("no unlock code configured, set unlock_code in %s", cfg.ConfDir)
	}
	if code != cfg.Conf.UnlockCode {
		return fmt.Errorf("invalid unlock code")
	}

	if err := data.SetPro(cfg.DB, cfg.Conf.Account, true); err != nil {
		return err
	}
	fmt.Println("Pro unlocked, scoring is no longer metered")
	return nil
}

func cmdAccountAddCredits(c *urfave.Context) error {
	cfg := getConfig(c)

	n := c.Int(creditsFlag.Name)
	if err := data.AddCredits(cfg.DB, cfg.Conf.Account, n); err != nil {
		return err
	}
	return cmdAccountShow(c)
}
