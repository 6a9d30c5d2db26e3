// Command analyzer runs the watchlist analysis pipeline: one-shot from
// the CLI, on a daily schedule, or as a long-lived HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gcaaa31928/daily-stock-analysis/internal/analysis"
	"github.com/gcaaa31928/daily-stock-analysis/internal/cache"
	"github.com/gcaaa31928/daily-stock-analysis/internal/circuit"
	"github.com/gcaaa31928/daily-stock-analysis/internal/config"
	"github.com/gcaaa31928/daily-stock-analysis/internal/domain"
	"github.com/gcaaa31928/daily-stock-analysis/internal/fetch"
	"github.com/gcaaa31928/daily-stock-analysis/internal/fetch/sources"
	"github.com/gcaaa31928/daily-stock-analysis/internal/httpclient"
	"github.com/gcaaa31928/daily-stock-analysis/internal/indicator"
	"github.com/gcaaa31928/daily-stock-analysis/internal/marketreview"
	"github.com/gcaaa31928/daily-stock-analysis/internal/notify"
	"github.com/gcaaa31928/daily-stock-analysis/internal/notify/channels"
	"github.com/gcaaa31928/daily-stock-analysis/internal/ratelimit"
	"github.com/gcaaa31928/daily-stock-analysis/internal/reliability"
	"github.com/gcaaa31928/daily-stock-analysis/internal/scheduler"
	"github.com/gcaaa31928/daily-stock-analysis/internal/server"
	"github.com/gcaaa31928/daily-stock-analysis/internal/storage"
	"github.com/gcaaa31928/daily-stock-analysis/internal/symbol"
	"github.com/gcaaa31928/daily-stock-analysis/internal/task"
	"github.com/gcaaa31928/daily-stock-analysis/pkg/logger"
)

// Exit codes: 0 success, 1 runtime error, 130 keyboard interrupt.
const (
	exitOK        = 0
	exitError     = 1
	exitInterrupt = 130
)

type flags struct {
	debug             bool
	dryRun            bool
	stocks            string
	noNotify          bool
	singleNotify      bool
	workers           int
	schedule          bool
	marketReview      bool
	noMarketReview    bool
	serve             bool
	serveOnly         bool
	port              int
	host              string
	noContextSnapshot bool
}

func main() {
	os.Exit(run())
}

func run() int {
	var f flags
	flag.BoolVar(&f.debug, "debug", false, "enable debug logging")
	flag.BoolVar(&f.dryRun, "dry-run", false, "analyze without persisting or notifying")
	flag.StringVar(&f.stocks, "stocks", "", "comma-separated codes overriding the configured watchlist")
	flag.BoolVar(&f.noNotify, "no-notify", false, "disable all notification channels")
	flag.BoolVar(&f.singleNotify, "single-notify", false, "notify per stock instead of one batch dashboard")
	flag.IntVar(&f.workers, "workers", 0, "worker pool size override")
	flag.BoolVar(&f.schedule, "schedule", false, "run on the configured daily schedule instead of once")
	flag.BoolVar(&f.marketReview, "market-review", false, "force the market review phase on")
	flag.BoolVar(&f.noMarketReview, "no-market-review", false, "force the market review phase off")
	flag.BoolVar(&f.serve, "serve", false, "also expose the HTTP API")
	flag.BoolVar(&f.serveOnly, "serve-only", false, "expose the HTTP API without running a batch")
	flag.IntVar(&f.port, "port", 0, "HTTP port override")
	flag.StringVar(&f.host, "host", "", "HTTP host override")
	flag.BoolVar(&f.noContextSnapshot, "no-context-snapshot", false, "skip saving the run's context snapshot")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitError
	}
	if f.workers > 0 {
		cfg.MaxWorkers = f.workers
	}
	if f.port > 0 {
		cfg.Port = f.port
	}
	if f.host != "" {
		cfg.Host = f.host
	}

	level := cfg.LogLevel
	if f.debug {
		level = "debug"
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.DevMode || f.debug})
	log.Info().Bool("dry_run", f.dryRun).Msg("starting daily-stock-analysis")

	a, err := buildApp(cfg, f, log)
	if err != nil {
		log.Error().Err(err).Msg("startup failed")
		return exitError
	}
	defer a.close()

	return a.run(f)
}

// app holds the wired component graph for one process.
type app struct {
	cfg      *config.Config
	f        flags
	log      zerolog.Logger
	db       *storage.DB
	manager  *fetch.Manager
	pipeline *analysis.Pipeline
	notifier *notify.ResultNotifier
	tasks    *task.Service
	review   *marketreview.Review
	backup   *reliability.BackupService
	server   *server.Server
}

func buildApp(cfg *config.Config, f flags, log zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, f: f, log: log}

	db, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db

	client := httpclient.New(cfg.FetchTimeout)

	breakers := circuit.NewManager(3, cfg.CircuitBreakerCooldown)
	jitter := cfg.FetchSleepMax - cfg.FetchSleepMin
	gates := ratelimit.NewManager(func() *ratelimit.Gate {
		return ratelimit.NewGate(cfg.FetchSleepMin, jitter, 0)
	})

	manager := fetch.NewManager(breakers, gates, log)

	tencent := sources.NewTencent(client, log)
	if cfg.EnableRealtimeQuote {
		snapshot := fetch.NewSnapshotCache(tencent, cache.New(cfg.RealtimeCacheTTL))
		manager.Register(snapshot, cfg.TencentFetcherPriority+1)
	}
	manager.Register(tencent, cfg.TencentFetcherPriority)
	manager.Register(sources.NewSina(client, log), cfg.SinaFetcherPriority)
	manager.Register(sources.NewBaostock(client, log), cfg.BaostockFetcherPriority)
	manager.Register(sources.NewYfinance(client, log), cfg.YfinanceFetcherPriority)
	manager.Register(sources.NewEastmoney(client, log), cfg.EastmoneyFetcherPriority)
	if cfg.EnableChipDistribution {
		manager.Register(sources.NewEastmoneyChips(client, log), cfg.EastmoneyFetcherPriority)
	}
	if cfg.TushareToken != "" {
		gates.Configure("tushare", ratelimit.NewGate(cfg.FetchSleepMin, jitter, cfg.TushareRateLimitPerMin))
		manager.Register(sources.NewTushare(client, cfg.TushareToken, log), cfg.TushareFetcherPriority)
	}
	manager.SetQuotePreference(cfg.RealtimeSourcePriority)
	a.manager = manager

	var notifier *notify.ResultNotifier
	if !f.noNotify && !f.dryRun {
		dispatcher := notify.NewDispatcher(buildChannels(cfg), log)
		notifier = notify.NewResultNotifier(dispatcher)
	}
	a.notifier = notifier

	var store analysis.ResultStore
	if !f.dryRun {
		store = db
	}
	var pipelineNotifier analysis.Notifier
	if notifier != nil {
		pipelineNotifier = notifier
	}

	pipeline := analysis.New(manager, indicator.NewEngine(), analysis.NewTemplateAnalyzer(), analysis.NoopSearch{}, store, pipelineNotifier, cfg.MaxWorkers, log)
	pipeline.DisableQuote = !cfg.EnableRealtimeQuote
	pipeline.DisableChips = !cfg.EnableChipDistribution
	a.pipeline = pipeline

	tasks := task.NewService(pipeline, db, cfg.MaxWorkers, log)
	if !f.dryRun {
		tasks.SetLedgerMirror(db)
	}
	a.tasks = tasks

	var reviewStore marketreview.Store
	if !f.dryRun {
		reviewStore = db
	}
	var reviewNotifier marketreview.Notifier
	if notifier != nil {
		reviewNotifier = notifier
	}
	a.review = marketreview.New(manager, nil, reviewStore, reviewNotifier, cfg.AnalysisDelay, log)

	var uploader reliability.Uploader
	if cfg.BackupBucket != "" {
		s3, err := reliability.NewS3Client(context.Background(), cfg.BackupEndpoint, cfg.BackupAccessKey, cfg.BackupSecretKey, cfg.BackupBucket, log)
		if err != nil {
			log.Warn().Err(err).Msg("backup bucket unavailable, continuing without backups")
		} else {
			uploader = s3
		}
	}
	a.backup = reliability.NewBackupService(uploader, cfg.DatabasePath, cfg.ReportsDir, cfg.BackupRetentionDays, log)

	if f.serve || f.serveOnly {
		a.server = server.New(server.Config{
			Host:    cfg.Host,
			Port:    cfg.Port,
			Log:     log,
			Tasks:   tasks,
			DevMode: cfg.DevMode,
		})
	}

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func (a *app) run(f flags) int {
	interrupted := make(chan os.Signal, 1)
	signal.Notify(interrupted, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() { serverErr <- a.server.Start() }()
	}

	scheduled := f.schedule || a.cfg.ScheduleEnabled

	switch {
	case f.serveOnly:
		// API only; batch runs arrive through task submissions.
	case scheduled:
		sched := scheduler.New(a.log)
		job := scheduler.JobFunc{JobName: "full-analysis", Fn: func() error {
			return a.runFullAnalysis(context.Background())
		}}
		if err := sched.AddDaily(a.cfg.ScheduleTime, job); err != nil {
			a.log.Error().Err(err).Msg("invalid schedule time")
			return exitError
		}
		sched.Start()
		defer sched.Stop()
		if a.cfg.RunOnStartup {
			if err := sched.RunNow(job); err != nil {
				a.log.Error().Err(err).Msg("startup run failed")
			}
		}
	default:
		// One-shot batch run, cancellable from the keyboard.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT)
		err := a.runFullAnalysis(ctx)
		stop()
		if ctx.Err() != nil {
			a.log.Info().Msg("interrupted")
			return exitInterrupt
		}
		if err != nil {
			a.log.Error().Err(err).Msg("analysis run failed")
			return exitError
		}
		if a.server == nil {
			return exitOK
		}
	}

	// Long-lived modes block here until a signal or server failure.
	select {
	case sig := <-interrupted:
		a.log.Info().Str("signal", sig.String()).Msg("shutting down")
		a.shutdownServer()
		if sig == syscall.SIGINT {
			return exitInterrupt
		}
		return exitOK
	case err := <-serverErr:
		if err != nil {
			a.log.Error().Err(err).Msg("HTTP server failed")
			return exitError
		}
		return exitOK
	}
}

func (a *app) shutdownServer() {
	if a.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("server forced to shutdown")
	}
}

// runFullAnalysis processes the whole watchlist, delivers the batch
// dashboard, writes the daily report artifacts, runs the market review,
// and uploads a backup.
func (a *app) runFullAnalysis(ctx context.Context) error {
	codes := a.watchlist()
	if len(codes) == 0 {
		return fmt.Errorf("no stocks configured: set STOCK_LIST or pass --stocks")
	}
	a.log.Info().Int("count", len(codes)).Msg("starting full analysis run")

	syms := make([]domain.Symbol, len(codes))
	for i, code := range codes {
		syms[i] = symbol.Classify(code)
	}
	if a.cfg.EnableRealtimeQuote {
		a.manager.PrefetchQuotes(ctx, syms)
	}
	a.manager.BatchNames(ctx, syms)

	singleNotify := a.f.singleNotify || a.cfg.SingleStockNotify
	results := a.pipeline.ProcessBatch(ctx, codes, "full", singleNotify)

	body := notify.RenderBatch(results)
	if a.notifier != nil && !singleNotify {
		if err := a.notifier.NotifyBatch(ctx, results); err != nil {
			a.log.Error().Err(err).Msg("batch notification failed")
		}
	}
	if path, err := notify.WriteReportFile(a.cfg.ReportsDir, notify.ReportPrefixBatch, body, time.Now()); err != nil {
		a.log.Error().Err(err).Msg("failed to write report file")
	} else {
		a.log.Info().Str("path", path).Msg("report written")
	}

	a.saveContextSnapshot(ctx, results)

	if a.marketReviewEnabled() {
		if review, err := a.review.Run(ctx); err != nil {
			a.log.Warn().Err(err).Msg("market review skipped")
		} else if _, err := notify.WriteReportFile(a.cfg.ReportsDir, notify.ReportPrefixMarketReview, review, time.Now()); err != nil {
			a.log.Error().Err(err).Msg("failed to write market review file")
		}
	}

	if a.backup.Enabled() && !a.f.dryRun {
		if err := a.backup.CreateAndUploadBackup(ctx); err != nil {
			a.log.Warn().Err(err).Msg("backup failed")
		}
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	a.log.Info().Int("ok", len(results)-failed).Int("failed", failed).Msg("full analysis run finished")
	return nil
}

func (a *app) watchlist() []string {
	if a.f.stocks != "" {
		var codes []string
		for _, c := range strings.Split(a.f.stocks, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
		return codes
	}
	// Pick up watchlist edits made since startup (hot-reload path).
	return a.cfg.ReloadStockList()
}

func (a *app) marketReviewEnabled() bool {
	if a.f.noMarketReview {
		return false
	}
	if a.f.marketReview {
		return true
	}
	return a.cfg.MarketReviewEnabled
}

// saveContextSnapshot stores the whole batch's results as one encoded
// snapshot for postmortem inspection.
func (a *app) saveContextSnapshot(ctx context.Context, results []domain.AnalysisResult) {
	if a.f.dryRun || a.f.noContextSnapshot || !a.cfg.SaveContextSnapshot {
		return
	}
	payload, err := cache.EncodeValue(results)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to encode context snapshot")
		return
	}
	key := "batch_" + time.Now().Format("20060102_150405")
	if err := a.db.SaveContextSnapshot(ctx, key, payload); err != nil {
		a.log.Warn().Err(err).Msg("failed to save context snapshot")
	}
}

// buildChannels wires every notification channel that has credentials
// configured. An empty result is valid; the dispatcher then reports
// nothing sent.
func buildChannels(cfg *config.Config) []notify.Channel {
	var out []notify.Channel

	if cfg.FeishuWebhook != "" {
		out = append(out, channels.NewEnterpriseChatWebhook("feishu", cfg.FeishuWebhook, cfg.FeishuMaxBytes, "markdown"))
	}
	if cfg.WecomWebhook != "" {
		out = append(out, channels.NewEnterpriseChatWebhook("wecom", cfg.WecomWebhook, cfg.WecomMaxBytes, cfg.WecomMsgType))
	}
	if cfg.WebhookURL != "" {
		out = append(out, channels.NewWebhook("webhook", cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		out = append(out, channels.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhook != "" {
		out = append(out, channels.NewDiscord(cfg.DiscordWebhook))
	}
	if cfg.PushoverToken != "" && cfg.PushoverUser != "" {
		out = append(out, channels.NewPushover(cfg.PushoverToken, cfg.PushoverUser))
	}
	if cfg.SMTPUser != "" && cfg.SMTPPassword != "" && cfg.EmailTo != "" {
		to := strings.Split(cfg.EmailTo, ",")
		out = append(out, channels.NewEmail(cfg.SMTPUser, cfg.SMTPPassword, to, cfg.SMTPHost, cfg.SMTPPort))
	}

	return out
}
