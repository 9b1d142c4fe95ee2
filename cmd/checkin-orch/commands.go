package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/checkin-orchestrator/internal/auth"
	"github.com/hochfrequenz/checkin-orchestrator/internal/browser"
	"github.com/hochfrequenz/checkin-orchestrator/internal/checkin"
	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
	"github.com/hochfrequenz/checkin-orchestrator/internal/log"
	"github.com/hochfrequenz/checkin-orchestrator/internal/notify"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
	"github.com/hochfrequenz/checkin-orchestrator/internal/runner"
	"github.com/hochfrequenz/checkin-orchestrator/internal/runstore"
	"github.com/hochfrequenz/checkin-orchestrator/tui"
)

var (
	runAccountsPath string
	runParallel     int
	runNoNotify     bool
	runDryRun       bool
	runTimeout      time.Duration
	runOTPFile      string
	historyLimit    int
	notifyMessage   string
)

func init() {
	// run command
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Check in every configured account",
		RunE:  runRun,
	}
	runCmd.Flags().StringVar(&runAccountsPath, "accounts", "", "accounts file (json or yaml); defaults to the ACCOUNTS env variable")
	runCmd.Flags().IntVar(&runParallel, "parallel", 0, "max accounts processed at once (0 = config value)")
	runCmd.Flags().BoolVar(&runNoNotify, "no-notify", false, "skip the notification channels")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "validate and show what would run, without any network activity")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall run deadline (0 = config value)")
	runCmd.Flags().StringVar(&runOTPFile, "otp-file", "", "file to poll for two-factor codes instead of prompting")
	rootCmd.AddCommand(runCmd)

	// validate command
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config, accounts and provider overrides",
		RunE:  runValidate,
	}
	validateCmd.Flags().StringVar(&runAccountsPath, "accounts", "", "accounts file (json or yaml); defaults to the ACCOUNTS env variable")
	rootCmd.AddCommand(validateCmd)

	// providers command
	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List the known providers",
		RunE:  runProviders,
	}
	rootCmd.AddCommand(providersCmd)

	// history command
	historyCmd := &cobra.Command{
		Use:   "history [RUN_ID]",
		Short: "Show past runs",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)

	// notify command
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test notification through the configured channels",
		RunE:  runNotify,
	}
	notifyCmd.Flags().StringVar(&notifyMessage, "message", "Test notification", "message to send")
	rootCmd.AddCommand(notifyCmd)
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// loadAccounts reads the account list from the --accounts file when given,
// falling back to the ACCOUNTS environment variable.
func loadAccounts() ([]config.AccountConfig, error) {
	if runAccountsPath != "" {
		return config.LoadAccountsFile(runAccountsPath)
	}
	return config.LoadAccountsEnv()
}

func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	overrides, err := provider.LoadOverridesEnv()
	if err != nil {
		return nil, err
	}
	return provider.NewRegistry(cfg.General.DefaultProvider, overrides, log.WithModule("provider"))
}

// browserFactory builds the factory for the configured driver helper with
// the headless setting applied.
func browserFactory(cfg *config.Config) browser.Factory {
	base := browser.ExecFactory(cfg.Browser.Command, cfg.Browser.Args)
	return func(ctx context.Context, opts browser.Options) (browser.Browser, error) {
		opts.Headless = cfg.Browser.Headless
		return base(ctx, opts)
	}
}

// otpSource picks where two-factor codes come from: a drop file when
// configured, the interactive prompt on a terminal, nothing otherwise.
func otpSource(cfg *config.Config) auth.OTPSource {
	path := runOTPFile
	if path == "" {
		path = cfg.General.OTPFile
	}
	if path != "" {
		return &auth.FileOTPSource{Path: config.ExpandPath(path)}
	}

	if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		return &tui.Source{}
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Setup(logLevel)
	logger := log.WithModule("run")

	accounts, err := loadAccounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts configured: set ACCOUNTS or pass --accounts")
	}
	if err := config.ValidateAccounts(accounts); err != nil {
		return err
	}

	globalProxy, err := config.LoadProxyEnv()
	if err != nil {
		return err
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	if runDryRun {
		return printRunPlan(accounts, registry, globalProxy)
	}

	var notifier *notify.MultiNotifier
	if !runNoNotify {
		notifier = notify.FromConfig(cfg.Notifications, log.WithModule("notify"))
	}

	factory := browserFactory(cfg)

	// Verification hints go to the operator on stderr and through the
	// notification channels, so an unattended run can still be rescued.
	sink := func(account, message string) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", account, message)
		if notifier != nil {
			_ = notifier.Send(notify.Notification{
				Title:   fmt.Sprintf("Verification required: %s", account),
				Message: message,
				Type:    notify.NotifyWarning,
			})
		}
	}
	resolver := auth.NewResolver(factory, otpSource(cfg), cfg.General.OTPTimeout.Std(), sink, log.WithModule("auth"))
	executor := checkin.NewExecutor(cfg.General.HTTPTimeout.Std(), cfg.Retry, factory, log.WithModule("checkin"))

	// Run history is best effort: a broken database costs the cadence
	// skip and the stored report, not the run.
	var history runner.History
	store := openStore(cfg, logger)
	if store != nil {
		defer store.Close()
		history = store
	}

	parallel := cfg.General.MaxParallel
	if runParallel > 0 {
		parallel = runParallel
	}
	orch := runner.New(registry, resolver, executor, history, globalProxy, parallel, logger)

	timeout := cfg.General.RunTimeout.Std()
	if runTimeout > 0 {
		timeout = runTimeout
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	summary := orch.RunAll(ctx, accounts)
	report := runner.FormatSummary(summary)
	fmt.Print(report)

	// Without a store every run counts as a balance change, so the
	// report is always delivered.
	balanceChanged := true
	if store != nil {
		if changed, err := store.BalancesChanged(summary.Outcomes); err == nil {
			balanceChanged = changed
		}
		if err := store.SaveRun(summary); err != nil {
			logger.Warn("failed to persist run", "error", err)
		}
	}

	// Notify when something needs attention or the balances moved;
	// an unchanged all-success run stays quiet.
	if notifier != nil && (summary.FailureCount() > 0 || balanceChanged) {
		title := fmt.Sprintf("Check-in: %d/%d succeeded", summary.SuccessCount(), len(summary.Outcomes))
		if balanceChanged {
			title += " (balance changed)"
		}
		kind := notify.NotifySuccess
		if !summary.Succeeded() {
			kind = notify.NotifyError
		}
		if err := notifier.Send(notify.Notification{Title: title, Message: report, Type: kind}); err != nil {
			logger.Warn("notification delivery incomplete", "error", err)
		}
	}

	if !summary.Succeeded() {
		return fmt.Errorf("no account checked in successfully")
	}
	return nil
}

// printRunPlan lists what a run would do without touching the network
func printRunPlan(accounts []config.AccountConfig, registry *provider.Registry, globalProxy *config.ProxyConfig) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tPROVIDER\tMETHODS\tPROXY")
	for i := range accounts {
		account := &accounts[i]
		def := registry.Resolve(account.Provider)

		var methods []string
		if !account.Cookies.Empty() {
			methods = append(methods, "cookies")
		}
		if account.LinuxDo != nil {
			methods = append(methods, "linux.do")
		}
		if account.GitHub != nil {
			methods = append(methods, "github")
		}

		proxy := "-"
		if effective := config.EffectiveProxy(account.Proxy, globalProxy); effective != nil {
			proxy = effective.Server
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			account.DisplayName(i), def.Name, strings.Join(methods, " > "), proxy)
	}
	return w.Flush()
}

func openStore(cfg *config.Config, logger *slog.Logger) *runstore.Store {
	path := cfg.General.DatabasePath
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("cannot create database directory", "error", err)
		return nil
	}
	store, err := runstore.New(path)
	if err != nil {
		logger.Warn("cannot open run database", "error", err)
		return nil
	}
	return store
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Setup(logLevel)

	accounts, err := loadAccounts()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no accounts configured: set ACCOUNTS or pass --accounts")
	}
	if err := config.ValidateAccounts(accounts); err != nil {
		return err
	}

	if _, err := config.LoadProxyEnv(); err != nil {
		return fmt.Errorf("invalid PROXY: %w", err)
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	channels := notify.FromConfig(cfg.Notifications, log.WithModule("notify")).Channels()
	channelList := "none"
	if len(channels) > 0 {
		channelList = strings.Join(channels, ", ")
	}

	fmt.Printf("%d accounts valid | %d providers known | default provider: %s | channels: %s\n",
		len(accounts), len(registry.Names()), registry.DefaultName(), channelList)
	return nil
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Setup(logLevel)

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tORIGIN\tCHECK-IN\tBYPASS\tCADENCE")
	for _, name := range registry.Names() {
		def := registry.Resolve(name)

		mode := "implicit"
		if def.SignSecret != "" {
			mode = "signed"
		} else if def.SignInPath != "" {
			mode = "manual"
		}

		bypass := string(def.Bypass)
		if bypass == "" {
			bypass = "-"
		}
		cadence := def.Cadence
		if cadence == "" {
			cadence = "-"
		}

		marker := ""
		if name == registry.DefaultName() {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\n", name, marker, def.Origin, mode, bypass, cadence)
	}
	return w.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Setup(logLevel)

	if cfg.General.DatabasePath == "" {
		return fmt.Errorf("no database configured")
	}
	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if len(args) == 1 {
		outcomes, err := store.OutcomesForRun(args[0])
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			return fmt.Errorf("no run %s", args[0])
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ACCOUNT\tPROVIDER\tMETHOD\tSTATUS\tBALANCE\tDETAIL")
		for _, o := range outcomes {
			balance := "-"
			if o.Quota > 0 {
				balance = runner.FormatQuota(o.Quota)
			}
			method := string(o.Method)
			if method == "" {
				method = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", o.Account, o.Provider, method, o.Status, balance, o.Detail)
		}
		return w.Flush()
	}

	runs, err := store.ListRuns(historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tDURATION\tSUCCEEDED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			r.RunID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
			r.Succeeded,
			r.Failed,
		)
	}
	return w.Flush()
}

func runNotify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log.Setup(logLevel)

	notifier := notify.FromConfig(cfg.Notifications, log.WithModule("notify"))
	channels := notifier.Channels()
	if len(channels) == 0 {
		return fmt.Errorf("no notification channels configured")
	}

	err = notifier.Send(notify.Notification{
		Title:   "Check-in Orchestrator",
		Message: notifyMessage,
		Type:    notify.NotifyInfo,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Sent to: %s\n", strings.Join(channels, ", "))
	return nil
}
