// Package runner iterates the configured accounts, isolates their failures
// and aggregates the outcomes in configuration order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hochfrequenz/checkin-orchestrator/internal/auth"
	"github.com/hochfrequenz/checkin-orchestrator/internal/config"
	"github.com/hochfrequenz/checkin-orchestrator/internal/domain"
	"github.com/hochfrequenz/checkin-orchestrator/internal/provider"
)

// SessionResolver resolves an account into an authenticated session
type SessionResolver interface {
	Resolve(ctx context.Context, name string, account *config.AccountConfig, def *provider.Definition, proxy *url.URL) (*auth.Session, error)
}

// CheckInExecutor performs the check-in for a resolved session
type CheckInExecutor interface {
	CheckIn(ctx context.Context, account string, session *auth.Session, def *provider.Definition, proxy *url.URL) domain.Outcome
}

// History reports the last successful check-in per account and provider.
// Accounts are keyed by AccountConfig.Identity, not the display name.
// Used for the cadence skip; may be nil.
type History interface {
	LastSuccess(accountKey, providerName string) (time.Time, error)
}

// Runner coordinates one batch run
type Runner struct {
	registry    *provider.Registry
	resolver    SessionResolver
	executor    CheckInExecutor
	history     History
	globalProxy *config.ProxyConfig
	maxParallel int
	logger      *slog.Logger
}

// New creates a Runner
func New(registry *provider.Registry, resolver SessionResolver, executor CheckInExecutor, history History, globalProxy *config.ProxyConfig, maxParallel int, logger *slog.Logger) *Runner {
	if maxParallel < 1 {
		maxParallel = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		registry:    registry,
		resolver:    resolver,
		executor:    executor,
		history:     history,
		globalProxy: globalProxy,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// RunAll processes every account and returns the aggregated summary.
// No single account's failure can abort the run: anything unexpected is
// converted into an Unknown outcome for that account. The outcome order
// matches the configuration order regardless of completion order.
func (r *Runner) RunAll(ctx context.Context, accounts []config.AccountConfig) *domain.RunSummary {
	summary := &domain.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Outcomes:  make([]domain.Outcome, len(accounts)),
	}

	g := new(errgroup.Group)
	g.SetLimit(r.maxParallel)

	for i := range accounts {
		g.Go(func() error {
			account := accounts[i]
			summary.Outcomes[i] = r.runAccount(ctx, account.DisplayName(i), account.Identity(i), &account)
			return nil
		})
	}
	_ = g.Wait()

	summary.FinishedAt = time.Now()
	return summary
}

// runAccount processes one account, converting every failure mode into an
// outcome. The deferred recover is the last line of defense; it keeps a
// broken strategy or provider from taking the batch down.
func (r *Runner) runAccount(ctx context.Context, name, key string, account *config.AccountConfig) (outcome domain.Outcome) {
	def := r.registry.Resolve(account.Provider)

	outcome = domain.Outcome{
		Account:    name,
		AccountKey: key,
		Provider:   def.Name,
		Status:     domain.StatusUnknown,
		Timestamp:  time.Now(),
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome.Status = domain.StatusUnknown
			outcome.Detail = fmt.Sprintf("panic: %v", rec)
			outcome.Timestamp = time.Now()
			r.logger.Error("account processing panicked", "account", name, "panic", rec)
		}
	}()

	if err := ctx.Err(); err != nil {
		outcome.Detail = "abandoned at run deadline"
		return outcome
	}

	proxyURL, err := config.EffectiveProxy(account.Proxy, r.globalProxy).URL()
	if err != nil {
		outcome.Detail = err.Error()
		return outcome
	}

	// Providers with a declared cadence are skipped while the last
	// successful check-in is still inside the current window.
	if def.Cadence != "" && r.history != nil {
		if last, err := r.history.LastSuccess(key, def.Name); err == nil {
			if !def.DueSince(last, time.Now()) {
				outcome.Status = domain.StatusAlreadyCheckedIn
				outcome.Detail = "still inside the current check-in window"
				return outcome
			}
		}
	}

	r.logger.Info("processing account", "account", name, "provider", def.Name)

	session, err := r.resolver.Resolve(ctx, name, account, def, proxyURL)
	if err != nil {
		outcome.Timestamp = time.Now()
		if ctx.Err() != nil {
			outcome.Detail = "abandoned at run deadline"
			return outcome
		}

		var authError *auth.Error
		if errors.As(err, &authError) {
			outcome.Status = domain.StatusAuthFailed
			outcome.Detail = authError.Kind
			if authError.Err != nil {
				outcome.Detail = fmt.Sprintf("%s: %v", authError.Kind, authError.Err)
			}
			return outcome
		}
		outcome.Detail = err.Error()
		return outcome
	}

	outcome = r.executor.CheckIn(ctx, name, session, def, proxyURL)
	outcome.AccountKey = key
	if ctx.Err() != nil && !outcome.Status.Succeeded() {
		outcome.Status = domain.StatusUnknown
		outcome.Detail = "abandoned at run deadline"
	}
	return outcome
}
