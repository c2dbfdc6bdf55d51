package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path"

	urfave "github.com/urfave/cli/v2"
	"github.com/zalando/go-keyring"

	"github.com/plupoV2/aire/pkg/config"
)

const (
	keyringService = "aire"

	providerRentCast = "rentcast"
	providerFRED     = "fred"
)

var (
	providerNames = []string{providerRentCast, providerFRED}

	keyProviderFlag = &urfave.StringFlag{
		Name:     "provider",
		Usage:    fmt.Sprintf("Provider name [%s, %s]", providerRentCast, providerFRED),
		Required: true,
	}

	keyValueFlag = &urfave.StringFlag{
		Name:     "key",
		Usage:    "API key value",
		Required: true,
	}

	keysCmd = &urfave.Command{
		Name:            "keys",
		HideHelpCommand: true,
		Usage:           "Manage provider API keys",
		Subcommands: []*urfave.Command{
			{
				Name:   "set",
				Usage:  "Store a provider API key in the OS keychain",
				Action: cmdSetKey,
				Flags: []urfave.Flag{
					keyProviderFlag,
					keyValueFlag,
				},
			},
			{
				Name:   "list",
				Usage:  "Show which providers have a key configured",
				Action: cmdListKeys,
			},
			{
				Name:   "delete",
				Usage:  "Remove a stored provider API key",
				Action: cmdDeleteKey,
				Flags: []urfave.Flag{
					keyProviderFlag,
				},
			},
		},
	}
)

func validProvider(name string) bool {
	for _, p := range providerNames {
		if p == name {
			return true
		}
	}
	return false
}

func cmdSetKey(c *urfave.Context) error {
	name := c.String(keyProviderFlag.Name)
	if !validProvider(name) {
		return fmt.Errorf("unknown provider: %s", name)
	}

	if err := saveProviderKey(name, c.String(keyValueFlag.Name)); err != nil {
		return fmt.Errorf("saving key: %w", err)
	}
	fmt.Printf("Key for %s saved\n", name)
	return nil
}

func cmdListKeys(c *urfave.Context) error {
	cfg := getConfig(c)
	state := make(map[string]bool, len(providerNames))
	for _, name := range providerNames {
		state[name] = getProviderKey(name, configuredFallback(cfg, name)) != ""
	}
	return encode(state)
}

func cmdDeleteKey(c *urfave.Context) error {
	name := c.String(keyProviderFlag.Name)
	if !validProvider(name) {
		return fmt.Errorf("unknown provider: %s", name)
	}

	if err := keyring.Delete(keyringService, name); err != nil {
		slog.Debug("keychain delete failed", "provider", name, "error", err)
	}
	os.Remove(keyFilePath(name))
	fmt.Printf("Key for %s removed\n", name)
	return nil
}

func configuredFallback(cfg *appConfig, name string) string {
	switch name {
	case providerRentCast:
		return cfg.Conf.RentCastAPIKey
	case providerFRED:
		return cfg.Conf.FREDAPIKey
	}
	return ""
}

// saveProviderKey prefers the OS keychain and falls back to a file when no
// keychain is available (headless hosts).
func saveProviderKey(name, key string) error {
	if err := keyring.Set(keyringService, name, key); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return os.WriteFile(keyFilePath(name), []byte(key), 0600)
	}

	// clean up a leftover fallback file
	os.Remove(keyFilePath(name))
	return nil
}

// getProviderKey resolves a provider credential: keychain, then fallback
// file, then the config value.
func getProviderKey(name, configValue string) string {
	if key, err := keyring.Get(keyringService, name); err == nil && key != "" {
		return key
	}

	if b, err := os.ReadFile(keyFilePath(name)); err == nil && len(b) > 0 {
		return string(b)
	}

	return configValue
}

func keyFilePath(name string) string {
	dir, _, err := config.GetOrCreateHomeDir(appName)
	if err != nil {
		dir = "."
	}
	return path.Join(dir, name+"_key")
}
