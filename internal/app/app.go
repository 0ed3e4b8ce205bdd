// Package app holds the objects that live for the whole process: the store,
// the transaction service and the advisor. Build it once in main and pass it
// to the presentation layer.
package app

import (
	"context"
	"errors"
	"fmt"

	"finadvisor/internal/advisor"
	"finadvisor/internal/amqp"
	"finadvisor/internal/backend"
	"finadvisor/internal/config"
	"finadvisor/internal/core"
	"finadvisor/internal/ledger"
	applog "finadvisor/internal/log"
	"finadvisor/internal/services"
)

type App struct {
	Store        ledger.Store
	Transactions *services.TransactionService
	Advisor      *advisor.Advisor
	Logger       *applog.Logger
	BackendName  string

	closers []func() error
}

// New builds the session from configuration and initializes the store.
// An unreachable broker only disables events.
func New(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	a := &App{
		Store:       res.Backend,
		Logger:      logger,
		BackendName: res.Type.String(),
	}
	a.closers = append(a.closers, res.Close)

	if err := a.Store.EnsureInitialized(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("initialize %s store: %w", res.Type, err)
	}

	var publisher services.Publisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			publisher = client
			a.closers = append(a.closers, client.Close)
		}
	}
	a.Transactions = services.NewTransactionService(a.Store, publisher)

	plan := advisor.DefaultPlan()
	if cfg.AdvisorPlanFile != "" {
		if plan, err = advisor.LoadPlan(cfg.AdvisorPlanFile); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Advisor = advisor.New(advisor.Config{
		APIURL: cfg.AdvisorAPIURL,
		APIKey: cfg.HuggingFaceAPIKey,
		Plan:   plan,
		Logger: logger,
	})

	logger.InfoContext(ctx, "Session ready",
		applog.FieldBackend, a.BackendName,
		"events", publisher != nil,
		"remote_advisor", a.Advisor.Remote())

	return a, nil
}

// NewWithStore wires a session around an existing store without events.
func NewWithStore(store ledger.Store, adv *advisor.Advisor, logger *applog.Logger) *App {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	if adv == nil {
		adv = advisor.New(advisor.Config{Logger: logger})
	}
	return &App{
		Store:        store,
		Transactions: services.NewTransactionService(store, nil),
		Advisor:      adv,
		Logger:       logger,
		BackendName:  "custom",
	}
}

// Suggestion is the savings for a window and the text advising on it.
type Suggestion struct {
	Summary services.WindowSummary
	Text    string
}

// Suggest sums the window and asks the advisor about a positive result.
// Zero or negative savings get no text.
func (a *App) Suggest(ctx context.Context, w core.Window) (Suggestion, error) {
	summary, err := a.Transactions.Savings(ctx, w)
	if err != nil {
		return Suggestion{}, err
	}
	s := Suggestion{Summary: summary}
	if summary.Savings.IsPositive() {
		s.Text = a.Advisor.GetSuggestions(ctx, summary.Savings)
	}
	return s, nil
}

// Close releases everything New opened, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
