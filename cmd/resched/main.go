package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajramos/resched/internal/config"
	"github.com/ajramos/resched/internal/db"
	"github.com/ajramos/resched/internal/hostdom"
	"github.com/ajramos/resched/internal/services"
	"github.com/ajramos/resched/internal/tui"
	"github.com/ajramos/resched/internal/version"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to JSON configuration file (default: ~/.config/resched/config.json)")
	cdpURLFlag := flag.String("cdp-url", "", "Attach to a running Chrome DevTools endpoint instead of launching Chrome")
	dashboardFlag := flag.Bool("dashboard", false, "Show the status dashboard")
	setupFlag := flag.Bool("setup", false, "Write a default configuration file and exit")
	versionFlag := flag.Bool("version", false, "Show version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.GetVersionString())
		fmt.Fprintf(os.Stderr, "Augments Gmail's schedule-send menu with a randomized tomorrow-morning\n")
		fmt.Fprintf(os.Stderr, "option and the last cancelled time, driven over the DevTools protocol.\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                  # Launch Chrome on Gmail and watch\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --cdp-url ws://127.0.0.1:9222    # Attach to running Chrome\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dashboard                      # Watch with the status dashboard\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  RESCHED_CONFIG   Override default config file path\n")
	}

	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}

	configPath := getConfigPath(*configPathFlag)

	if *setupFlag {
		cfg := config.DefaultConfig()
		if err := cfg.SaveConfig(configPath); err != nil {
			log.Fatalf("Could not write configuration: %v", err)
		}
		fmt.Printf("Wrote default configuration to %s\n", configPath)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: could not load configuration: %v", err)
	}
	if *cdpURLFlag != "" {
		cfg.Chrome.CDPURL = *cdpURLFlag
	}

	// Logger: file when configured, stderr otherwise; the dashboard gets a
	// tee of whatever is chosen
	var logW io.Writer = os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			log.Printf("Warning: could not open log file: %v", err)
		} else {
			defer f.Close()
			logW = f
		}
	}
	ring := tui.NewLogRing(200)
	if *dashboardFlag {
		logW = io.MultiWriter(logW, ring)
	}
	logger := log.New(logW, "", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional: open the local store for the cancelled-time record
	var store *db.Store
	if cfg.Store.Enabled {
		if st, err := db.Open(ctx, cfg.Store.Path); err == nil {
			store = st
			defer store.Close()
		} else {
			logger.Printf("Warning: could not open store: %v", err)
		}
	}

	page, err := hostdom.Connect(ctx, hostdom.ConnectOptions{
		CDPURL:       cfg.Chrome.CDPURL,
		ProfileDir:   cfg.Chrome.ProfileDir,
		Headless:     cfg.Chrome.Headless,
		StartTimeout: cfg.GetStartTimeout(),
		Signatures:   signaturesFromConfig(cfg),
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("Could not attach to Chrome: %v", err)
	}
	defer page.Close()

	repo := services.NewCancelTimeRepository(db.NewKVStore(store))
	capture := services.NewCaptureService(repo, logger)
	scheduler := services.NewScheduleService(page, page, cfg.BaseDelay(), cfg.Schedule.MaxAttempts, cfg.WriteStagger(), logger)
	injector := services.NewInjectionService(page, page, repo, scheduler, logger)
	watcher := services.NewWatchService(page, page, injector, capture, cfg.Debounce(), logger)

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- watcher.Run(ctx)
	}()
	logger.Printf("resched %s watching", version.Version)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if *dashboardFlag {
		dash := tui.NewDashboard(statusFunc(watcher, repo, scheduler), ring)
		go func() {
			select {
			case <-sig:
			case err := <-watchDone:
				if err != nil && err != context.Canceled {
					logger.Printf("watcher stopped: %v", err)
				}
			}
			cancel()
		}()
		if err := dash.Run(ctx); err != nil {
			logger.Printf("dashboard: %v", err)
		}
	} else {
		select {
		case <-sig:
		case err := <-watchDone:
			if err != nil && err != context.Canceled {
				logger.Printf("watcher stopped: %v", err)
			}
		}
	}

	cancel()
	injector.Wait()
}

func statusFunc(watcher services.WatchService, repo services.CancelTimeRepository, scheduler *services.ScheduleServiceImpl) tui.StatusFunc {
	return func() tui.Status {
		st := tui.Status{
			Watcher:   watcher.State().String(),
			Scheduled: scheduler.Completed(),
		}
		loadCtx, loadCancel := context.WithTimeout(context.Background(), time.Second)
		defer loadCancel()
		if rec, found, err := repo.Load(loadCtx); err == nil && found {
			st.SavedRaw = rec.RawText
			st.SavedISO = rec.ISOTime
		}
		return st
	}
}

func signaturesFromConfig(cfg *config.Config) hostdom.Signatures {
	return hostdom.Signatures{
		CancelText:    cfg.Selectors.CancelText,
		ScheduledTime: cfg.Selectors.ScheduledTime,
		Menu:          cfg.Selectors.Menu,
		MenuItem:      cfg.Selectors.MenuItem,
		TemplateText:  cfg.Selectors.TemplateText,
		DateInput:     cfg.Selectors.DateInput,
		TimeInput:     cfg.Selectors.TimeInput,
		ConfirmText:   cfg.Selectors.ConfirmText,
	}
}

// getConfigPath returns the configuration file path using the following priority:
// 1. CLI flag
// 2. Environment variable RESCHED_CONFIG
// 3. Default path ~/.config/resched/config.json
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("RESCHED_CONFIG"); envPath != "" {
		return envPath
	}
	return config.DefaultConfigPath()
}
