package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rahul/storylab/internal/catalogue"
	"github.com/rahul/storylab/internal/gateway"
	"github.com/rahul/storylab/internal/governance"
	"github.com/rahul/storylab/internal/grading"
	"github.com/rahul/storylab/internal/labs"
	"github.com/rahul/storylab/internal/observability"
	"github.com/rahul/storylab/internal/session"
	"github.com/rahul/storylab/internal/store"
	"github.com/rahul/storylab/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	gatewayName := flag.String("gateway", "terminal", "front-end: terminal, telegram or discord")
	lessonID := flag.String("lesson", "", "play this lesson directly (terminal only)")
	list := flag.Bool("list", false, "print the lesson catalogue and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	interactive := *gatewayName == "terminal" && !*list
	var logOut io.Writer = observability.NewTermWriter()
	if interactive {
		// The play screen owns the terminal; logs go to a file.
		f, err := openLogFile(cfg.App.LogDir)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	} else if !*list {
		observability.PrintBanner()
		observability.InitializeTerminal()
	}
	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(logOut)
	logger := observability.NewLogger(logOut, cfg.App.LogDir)

	journal, err := store.NewJournal(cfg.Memory.Path)
	if err != nil {
		log.Fatalf("failed to open journal: %v", err)
	}
	defer journal.Close()

	registry := labs.NewDefaultRegistry(newGrader(cfg, logger, journal))
	if ff, ok := registry.Get("freeform").(*labs.FreeformLab); ok {
		ff.Timeout = cfg.Play.GradeTimeout.Std()
	}

	lessons := catalogue.New()
	if err := lessons.LoadDir(cfg.App.LessonsDir, cfg.Play.StrictScripts, registry.Check); err != nil {
		log.Printf("⚠️ Some lessons were not loaded:\n%v", err)
	}

	if *list {
		printCatalogue(lessons, journal)
		return
	}
	if lessons.Len() == 0 {
		log.Fatalf("no playable lessons in %s", cfg.App.LessonsDir)
	}

	host := &gateway.Host{
		Catalogue: lessons,
		Labs:      registry,
		Options: session.Options{
			RevealDelay: cfg.RevealDelay(),
			Logger:      logger,
			Recorder:    journal,
		},
	}

	gw, err := newGateway(cfg, *gatewayName, host, *lessonID)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interactive {
		if err := gw.Start(ctx); err != nil {
			log.Printf("[ FAIL ] terminal: %v", err)
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	// Start Live Status (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
			}
		}
	}()

	// Start Gateway in a goroutine so we can wait for context in the main loop
	go func() {
		if err := gw.Start(ctx); err != nil {
			log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
			stop() // stop caller if gateway dies
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	if err := gw.Stop(); err != nil {
		log.Printf("Error stopping gateway: %v", err)
	}
	observability.CleanupTerminal()

	// Give in-flight sessions a moment to close their journal entries
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] STORYLAB CLOSED. GOODBYE.\033[0m")
}

// newGrader returns nil when no provider is enabled; free-form answers
// then always pass.
func newGrader(cfg *config.Config, logger *observability.Logger, journal *store.Journal) labs.Grader {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Printf("No enabled provider; free-form answers will not be graded")
		return nil
	}

	var llm llms.Model
	var err error
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatalf("failed to create %s client: %v", pName, err)
	}

	gov, err := newPolicy(cfg.Play)
	if err != nil {
		log.Fatalf("failed to build answer policy: %v", err)
	}

	prompts := grading.NewPromptManager(cfg.App.PromptsDir)
	grader := grading.NewGrader(llm, pCfg.Model, prompts, gov, logger)
	grader.Recorder = journal
	return grader
}

// newPolicy builds the rules an answer must pass before it reaches the
// examiner model.
func newPolicy(play config.PlayConfig) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	gov.MaxLength = play.MaxAnswerLength
	for _, lab := range play.UngradedLabs {
		gov.DenyLab(lab)
	}
	for _, pattern := range play.DeniedAnswers {
		if err := gov.DenyAnswers(pattern); err != nil {
			return nil, fmt.Errorf("denied answer pattern %q: %w", pattern, err)
		}
	}
	return gov, nil
}

func newGateway(cfg *config.Config, name string, host *gateway.Host, lessonID string) (gateway.Gateway, error) {
	switch name {
	case "terminal":
		if lessonID != "" {
			if _, ok := host.Catalogue.Get(lessonID); !ok {
				return nil, fmt.Errorf("unknown lesson %q", lessonID)
			}
		}
		return gateway.NewTerminalGateway(host, lessonID), nil
	case "telegram", "discord":
		gwCfg, ok := cfg.GetGatewayConfig(name)
		if !ok || gwCfg.Token == "" {
			return nil, fmt.Errorf("%s gateway is not enabled or token is missing", name)
		}
		if name == "telegram" {
			return gateway.NewTelegramGateway(gwCfg.Token, host)
		}
		return gateway.NewDiscordGateway(gwCfg.Token, host)
	}
	return nil, fmt.Errorf("unknown gateway %q", name)
}

func openLogFile(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "storylab.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func printCatalogue(lessons *catalogue.Catalogue, journal *store.Journal) {
	fmt.Println(gateway.FormatLessons(lessons.List()))
	counts, err := journal.Completions(context.Background())
	if err != nil {
		log.Printf("Error reading completions: %v", err)
		return
	}
	for _, l := range lessons.List() {
		if n := counts[l.ID()]; n > 0 {
			fmt.Printf("  %s completed %d time(s)\n", l.ID(), n)
		}
	}
}
