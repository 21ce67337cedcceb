package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"gamedex/pkg/config"
	"gamedex/pkg/fetch"
	"gamedex/pkg/library"
	applog "gamedex/pkg/log"
	"gamedex/pkg/models"
	"gamedex/pkg/site"
	"gamedex/pkg/storage"
	"gamedex/pkg/utils"
)

var version = "dev"

const usageText = `gamedex - game listing scraper and local catalogue

Usage:
  gamedex <command> [flags]

Commands:
  scan         Walk the site's listing pages and refresh the catalogue
  show         Show the full detail for one game (scrapes on cache miss)
  favorites    List, add or remove favorited titles
  settings     Show or clear persisted scan settings
  clear-cache  Wipe cached game details (favorites survive)
  validate     Load and validate the config file, then exit
  version      Print the version

Run 'gamedex <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = runScan(os.Args[2:])
	case "show":
		err = runShow(os.Args[2:])
	case "favorites":
		err = runFavorites(os.Args[2:])
	case "settings":
		err = runSettings(os.Args[2:])
	case "clear-cache":
		err = runClearCache(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "version":
		fmt.Printf("gamedex %s\n", version)
	case "-h", "--help", "help":
		fmt.Print(usageText)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n%s", os.Args[1], usageText)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags every command shares.
func commonFlags(fs *flag.FlagSet) (configPath, logLevel *string) {
	configPath = fs.String("config", "", "Path to YAML config file (built-in defaults when empty)")
	logLevel = fs.String("loglevel", "info", "Log level (debug, info, warn, error)")
	return configPath, logLevel
}

// app bundles the initialized components a command needs.
type app struct {
	cfg   *config.AppConfig
	log   *logrus.Logger
	store *storage.BadgerStore
	lib   *library.Library
}

// newApp loads config, opens the catalogue store and wires the library.
// The returned cleanup must be deferred by the caller.
func newApp(configPath, logLevel string) (*app, func(), error) {
	log := applog.New(logLevel)

	cfg, err := loadConfig(configPath, log)
	if err != nil {
		return nil, nil, err
	}

	baseURL, err := url.Parse(cfg.Site.BaseURL)
	if err != nil {
		return nil, nil, utils.WrapErrorf(utils.ErrConfigValidation, "base_url %q: %v", cfg.Site.BaseURL, err)
	}

	entry := logrus.NewEntry(log)
	store, err := storage.NewBadgerStore(cfg.StateDir, baseURL.Hostname(), entry.WithField("component", "storage"))
	if err != nil {
		return nil, nil, err
	}

	gcCtx, gcCancel := context.WithCancel(context.Background())
	go store.RunGC(gcCtx, 10*time.Minute)

	httpClient := fetch.NewClient(cfg.HTTPClientSettings, log)
	fetcher := fetch.NewFetcher(httpClient, cfg.Site.UserAgent, cfg.Scan.PageFetchTimeout, log)
	limiter := fetch.NewRateLimiter(500*time.Millisecond, log)
	robots := fetch.NewRobotsGate(fetcher, cfg.Site.UserAgent, cfg.Site.EffectiveRespectRobots(), entry.WithField("component", "robots"))
	client := site.NewClient(fetcher, limiter, robots, cfg.Site, entry.WithField("component", "site"))

	// Persisted scan settings take precedence over the config file.
	if saved, loadErr := store.LoadScanConfig(); loadErr != nil {
		log.Warnf("Loading persisted scan settings failed: %v", loadErr)
	} else if saved != nil {
		saved.Validate()
		cfg.Scan = *saved
		log.Debug("Using persisted scan settings")
	}

	notifier := library.NewLogNotifier(entry.WithField("component", "notify"))
	lib := library.New(store, client, cfg.Scan, notifier, entry.WithField("component", "library"))

	cleanup := func() {
		gcCancel()
		if closeErr := store.Close(); closeErr != nil {
			log.Errorf("Closing catalogue store: %v", closeErr)
		}
	}
	return &app{cfg: cfg, log: log, store: store, lib: lib}, cleanup, nil
}

func loadConfig(configPath string, log *logrus.Logger) (*config.AppConfig, error) {
	var cfg *config.AppConfig
	if configPath == "" {
		cfg = config.Default()
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT/SIGTERM. A second
// signal forces exit.
func signalContext(log *logrus.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Shutting down gracefully...", sig)
		cancel()
		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded. Forcing exit.")
			os.Exit(1)
		}
	}()

	return ctx, cancel
}

func runScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath, logLevel := commonFlags(fs)
	maxGames := fs.Int("max-games", -1, "Cap on total games (0 = unlimited, -1 = keep configured value)")
	pagesPerBatch := fs.Int("pages-per-batch", 0, "Listing pages fetched per batch (0 = keep configured value)")
	saveSettings := fs.Bool("save-settings", false, "Persist the effective scan settings for future runs")
	fs.Parse(args)

	a, cleanup, err := newApp(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	scanCfg, err := a.lib.ScanSettings()
	if err != nil {
		return err
	}
	if *maxGames >= 0 {
		scanCfg.MaxGames = *maxGames
	}
	if *pagesPerBatch > 0 {
		scanCfg.PagesPerBatch = *pagesPerBatch
	}
	scanCfg.Validate()

	if *saveSettings {
		if err := a.lib.SaveScanSettings(scanCfg); err != nil {
			return err
		}
		a.log.Info("Scan settings persisted")
	}

	// Rebuild the library with the effective settings for this run.
	// (ScanSettings already merged persisted state; flags may have changed it.)
	ctx, cancel := signalContext(a.log)
	defer cancel()

	lib := a.libWithScanConfig(scanCfg)
	result, err := lib.StartScan(ctx, func(stats models.CrawlStats) {
		fmt.Printf("\rFound %d games across %d pages (%d errors)", stats.ItemsFound, stats.PagesScanned, stats.ErrorCount())
	})
	fmt.Println()
	if err != nil {
		if errors.Is(err, utils.ErrNoItemsFound) {
			return fmt.Errorf("%w - check connectivity and retry", err)
		}
		return err
	}

	fmt.Printf("Scan %s finished: %d games, %d pages scanned\n", result.ScanID, result.Stats.ItemsFound, result.Stats.PagesScanned)
	if result.Stats.ErrorCount() > 0 {
		fmt.Println(result.Stats.Summary())
	}
	return nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configPath, logLevel := commonFlags(fs)
	pageURL := fs.String("url", "", "Game page URL (needed when the title was never scanned)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("usage: gamedex show [flags] \"GAME TITLE\"")
	}
	title := fs.Arg(0)

	a, cleanup, err := newApp(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := signalContext(a.log)
	defer cancel()

	detail, err := a.lib.GetGameDetail(ctx, title, *pageURL)
	if err != nil {
		return err
	}
	printDetail(detail, a.cfg.Scan.HostOrder)
	return nil
}

func runFavorites(args []string) error {
	fs := flag.NewFlagSet("favorites", flag.ExitOnError)
	configPath, logLevel := commonFlags(fs)
	add := fs.String("add", "", "Title to favorite")
	remove := fs.String("remove", "", "Title to unfavorite")
	fs.Parse(args)

	a, cleanup, err := newApp(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	switch {
	case *add != "":
		if err := a.lib.AddFavorite(*add); err != nil {
			return err
		}
		fmt.Printf("Favorited %q\n", *add)
	case *remove != "":
		if err := a.lib.RemoveFavorite(*remove); err != nil {
			return err
		}
		fmt.Printf("Unfavorited %q\n", *remove)
	default:
		favorites, err := a.lib.Favorites()
		if err != nil {
			return err
		}
		if len(favorites) == 0 {
			fmt.Println("No favorites yet.")
			return nil
		}
		for _, title := range favorites {
			fmt.Println(title)
		}
	}
	return nil
}

func runSettings(args []string) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	configPath, logLevel := commonFlags(fs)
	clear := fs.Bool("clear", false, "Remove persisted scan settings")
	fs.Parse(args)

	a, cleanup, err := newApp(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	if *clear {
		if err := a.lib.ClearScanSettings(); err != nil {
			return err
		}
		fmt.Println("Persisted scan settings cleared.")
		return nil
	}

	settings, err := a.lib.ScanSettings()
	if err != nil {
		return err
	}
	fmt.Printf("max_games:                     %d\n", settings.MaxGames)
	fmt.Printf("pages_per_batch:               %d\n", settings.PagesPerBatch)
	fmt.Printf("page_fetch_timeout:            %v\n", settings.PageFetchTimeout)
	fmt.Printf("batch_delay:                   %v\n", settings.BatchDelay)
	fmt.Printf("max_consecutive_empty_batches: %d\n", settings.MaxConsecutiveEmptyBatches)
	fmt.Printf("host_order:                    %v\n", settings.HostOrder)
	return nil
}

func runClearCache(args []string) error {
	fs := flag.NewFlagSet("clear-cache", flag.ExitOnError)
	configPath, logLevel := commonFlags(fs)
	fs.Parse(args)

	a, cleanup, err := newApp(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := a.lib.ClearCache(); err != nil {
		return err
	}
	fmt.Println("Game cache cleared. Favorites and settings kept.")
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath, logLevel := commonFlags(fs)
	fs.Parse(args)

	log := applog.New(*logLevel)
	cfg, err := loadConfig(*configPath, log)
	if err != nil {
		return err
	}

	fmt.Printf("Config OK. Site %s, listing %s, state dir %s\n", cfg.Site.BaseURL, cfg.Site.ListingPath, cfg.StateDir)
	return nil
}

// libWithScanConfig rebuilds the library around the effective scan settings
// for this run, which flags may have changed after newApp wired things up.
func (a *app) libWithScanConfig(scanCfg config.ScanConfig) *library.Library {
	entry := logrus.NewEntry(a.log)

	httpClient := fetch.NewClient(a.cfg.HTTPClientSettings, a.log)
	fetcher := fetch.NewFetcher(httpClient, a.cfg.Site.UserAgent, scanCfg.PageFetchTimeout, a.log)
	limiter := fetch.NewRateLimiter(500*time.Millisecond, a.log)
	robots := fetch.NewRobotsGate(fetcher, a.cfg.Site.UserAgent, a.cfg.Site.EffectiveRespectRobots(), entry.WithField("component", "robots"))
	client := site.NewClient(fetcher, limiter, robots, a.cfg.Site, entry.WithField("component", "site"))
	notifier := library.NewLogNotifier(entry.WithField("component", "notify"))
	return library.New(a.store, client, scanCfg, notifier, entry.WithField("component", "library"))
}

// printDetail renders one game the way the catalogue sees it.
func printDetail(detail *models.GameDetail, hostOrder []string) {
	fmt.Printf("%s\n", detail.Title)
	if detail.URL != "" {
		fmt.Printf("  URL:        %s\n", detail.URL)
	}
	if detail.Date != "" {
		fmt.Printf("  Date:       %s\n", detail.Date)
	}
	if detail.Firmware != "" {
		fmt.Printf("  Firmware:   %s\n", detail.Firmware)
	}
	if detail.Voice != "" {
		fmt.Printf("  Voice:      %s\n", detail.Voice)
	}
	if detail.Subtitles != "" {
		fmt.Printf("  Subtitles:  %s\n", detail.Subtitles)
	}
	if detail.ScreenLanguages != "" {
		fmt.Printf("  Languages:  %s\n", detail.ScreenLanguages)
	}
	if detail.Size != "" {
		fmt.Printf("  Size:       %s\n", detail.Size)
	}
	if detail.PPSA != "" {
		fmt.Printf("  Product:    %s\n", detail.PPSA)
	}
	if detail.Password != "" {
		fmt.Printf("  Password:   %s\n", detail.Password)
	}
	if detail.Notes != "" {
		fmt.Printf("  Notes:      %s\n", detail.Notes)
	}
	if detail.Description != "" {
		fmt.Printf("\n  %s\n", detail.Description)
	}

	for _, bucket := range library.OrderedBuckets(detail, hostOrder) {
		fmt.Printf("\n  [%s]\n", bucket.Name)
		for _, link := range bucket.Links {
			fmt.Printf("    %-36s %s  %s\n", library.LinkLabel(detail, link), link.Type, link.Link)
		}
	}

	if len(detail.Screenshots) > 0 {
		fmt.Println("\n  Screenshots:")
		for _, shot := range detail.Screenshots {
			fmt.Printf("    %s\n", shot)
		}
	}
	if detail.Guide != "" {
		fmt.Printf("\n  Installation guide:\n%s\n", detail.Guide)
	}
}
