package cli

import (
	"fmt"

	urfave "github.com/urfave/cli/v2"

	"github.com/plupoV2/aire/pkg/data"
	"github.com/plupoV2/aire/pkg/scoring"
)

var (
	templateNameFlag = &urfave.StringFlag{
		Name:     "name",
		Usage:    "Template name",
		Required: true,
	}

	templateDescFlag = &urfave.StringFlag{
		Name:  "description",
		Usage: "Short description of the strategy",
	}

	templateCmd = &urfave.Command{
		Name:            "template",
		Aliases:         []string{"t"},
		HideHelpCommand: true,
		Usage:           "Manage deal templates (built-in strategies and your own)",
		Subcommands: []*urfave.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List available templates",
				Action:  cmdTemplateList,
			},
			{
				Name:   "show",
				Usage:  "Show a template's deal defaults",
				Action: cmdTemplateShow,
				Flags: []urfave.Flag{
					templateNameFlag,
				},
			},
			{
				Name:   "save",
				Usage:  "Save current deal flags as a reusable template",
				Action: cmdTemplateSave,
				Flags: append(dealFlags(),
					templateNameFlag,
					templateDescFlag,
				),
			},
			{
				Name:   "delete",
				Usage:  "Delete one of your templates (built-ins cannot be deleted)",
				Action: cmdTemplateDelete,
				Flags: []urfave.Flag{
					templateNameFlag,
				},
			},
		},
	}
)

func cmdTemplateList(c *urfave.Context) error {
	cfg := getConfig(c)
	list, err := data.ListTemplates(cfg.DB, cfg.Conf.Account)
	if err != nil {
		return err
	}
	return encode(list)
}

func cmdTemplateShow(c *urfave.Context) error {
	cfg := getConfig(c)

	name := c.String(templateNameFlag.Name)
	t, err := data.GetTemplate(cfg.DB, name)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("template not found: %s", name)
	}
	return encode(t)
}

func cmdTemplateSave(c *urfave.Context) error {
	cfg := getConfig(c)

	var d scoring.Deal
	if s := c.String(assetFlag.Name); s != "" {
		asset, err := scoring.ParseAssetClass(s)
		if err != nil {
			return err
		}
		d.Asset = asset
	}
	applyDealFlags(c, &d)

	t := &data.Template{
		Name:        c.String(templateNameFlag.Name),
		Description: c.String(templateDescFlag.Name),
		Deal:        d,
	}
	if err := data.SaveTemplate(cfg.DB, cfg.Conf.Account, t); err != nil {
		return err
	}
	fmt.Printf("Saved template %s\n", t.Name)
	return nil
}

func cmdTemplateDelete(c *urfave.Context) error {
	cfg := getConfig(c)

	name := c.String(templateNameFlag.Name)
	if err := data.DeleteTemplate(cfg.DB, name); err != nil {
		return err
	}
	fmt.Printf("Deleted template %s\n", name)
	return nil
}
