package cli

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	urfave "github.com/urfave/cli/v2"
)

const (
	serverShutdownWaitSeconds = 5
	serverTimeoutSeconds      = 300
	serverMaxHeaderBytes      = 20
	serverPortDefault         = 8080

	scanScheduleDefault = "@hourly"
)

var (
	//go:embed assets/* templates/*
	embedFS embed.FS

	portFlag = &urfave.IntFlag{
		Name:  "port",
		Usage: "Port on which the server will listen",
		Value: serverPortDefault,
	}

	noBrowserFlag = &urfave.BoolFlag{
		Name:    "no-browser",
		Aliases: []string{"nb"},
		Usage:   "Do not open browser automatically",
	}

	scanCronFlag = &urfave.StringFlag{
		Name:  "scan-cron",
		Usage: "Cron schedule for background watchlist scans (empty disables)",
		Value: scanScheduleDefault,
	}

	serverCmd = &urfave.Command{
		Name:    "server",
		Aliases: []string{"serve"},
		Usage:   "Start local HTTP dashboard",
		Action:  cmdStartServer,
		Flags: []urfave.Flag{
			portFlag,
			noBrowserFlag,
			scanCronFlag,
		},
	}
)

func cmdStartServer(c *urfave.Context) error {
	cfg := getConfig(c)
	port := c.Int(portFlag.Name)
	if port == serverPortDefault && cfg.Conf.ServerPort != 0 {
		port = cfg.Conf.ServerPort
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	mux := makeRouter(cfg)
	s := &http.Server{
		Addr:           address,
		Handler:        mux,
		ReadTimeout:    serverTimeoutSeconds * time.Second,
		WriteTimeout:   serverTimeoutSeconds * time.Second,
		MaxHeaderBytes: 1 << serverMaxHeaderBytes,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("error starting server", "error", err)
		}
	}()

	scanner := startScanScheduler(c.String(scanCronFlag.Name), cfg)

	url := fmt.Sprintf("http://%s", address)
	slog.Info("server started", "address", url)

	if !c.Bool(noBrowserFlag.Name) {
		openBrowser(url)
	}

	<-done

	if scanner != nil {
		scanner.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownWaitSeconds*time.Second)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("error shutting down server", "error", err)
	}
	return nil
}

// startScanScheduler runs watchlist scans in the background on the given
// cron schedule. Returns nil when the schedule is empty or invalid.
func startScanScheduler(schedule string, cfg *appConfig) *cron.Cron {
	if schedule == "" {
		return nil
	}

	scanner := cron.New()
	_, err := scanner.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), serverTimeoutSeconds*time.Second)
		defer cancel()

		alerts, err := scanWatchlist(ctx, cfg.DB, cfg.Conf.Account, cfg.Engine, cfg.Enricher)
		if err != nil {
			slog.Error("watchlist scan failed", "error", err)
			return
		}
		slog.Info("watchlist scan complete", "alerts", len(alerts))
		for _, a := range alerts {
			slog.Info("watch target hit", "address", a.Address, "score", a.Score, "grade", a.Grade)
		}
	})
	if err != nil {
		slog.Error("invalid scan schedule", "schedule", schedule, "error", err)
		return nil
	}

	scanner.Start()
	return scanner
}

func makeRouter(cfg *appConfig) *http.ServeMux {
	tmpl := template.Must(template.New("").ParseFS(embedFS, "templates/*.html"))

	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(embedFS)))
	mux.HandleFunc("GET /favicon.svg", faviconHandler)

	// Views
	mux.HandleFunc("GET /{$}", homeViewHandler(tmpl))

	// Data API
	mux.HandleFunc("GET /data/schema", schemaAPIHandler(cfg))
	mux.HandleFunc("GET /data/state", stateAPIHandler(cfg))
	mux.HandleFunc("GET /data/account", accountAPIHandler(cfg))
	mux.HandleFunc("GET /data/history", historyAPIHandler(cfg))
	mux.HandleFunc("GET /data/watchlist", watchlistAPIHandler(cfg))
	mux.HandleFunc("GET /data/portfolio", portfolioAPIHandler(cfg))
	mux.HandleFunc("GET /data/templates", templatesAPIHandler(cfg))
	mux.HandleFunc("GET /data/market", marketAPIHandler(cfg))
	mux.HandleFunc("POST /data/score", scoreAPIHandler(cfg))
	mux.HandleFunc("POST /data/sensitivity", sensitivityAPIHandler(cfg))
	mux.HandleFunc("POST /data/report", reportAPIHandler(cfg))

	return mux
}

func openBrowser(url string) {
	var cmd string
	args := make([]string, 0, 1)

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
	case "linux":
		cmd = "xdg-open"
	default: // windows
		cmd = "rundll32"
		args = []string{"url.dll,FileProtocolHandler"}
	}

	args = append(args, url)
	if err := exec.Command(cmd, args...).Start(); err != nil {
		slog.Error("failed to open browser", "error", err)
	}
}
