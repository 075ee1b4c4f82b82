package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"rewards/internal/core"
	"rewards/internal/ledger"
	"rewards/internal/log"
)

// RewardConfig tunes ledger lookups.
type RewardConfig struct {
	// LookupConcurrency bounds parallel per-customer lookups. Values below 2
	// disable the fan-out and use a single ListTransactions call.
	LookupConcurrency int
	// LookupTimeout bounds every ledger call of a request. Zero disables it.
	LookupTimeout time.Duration
}

// DefaultRewardConfig returns the defaults used when configuration is absent.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		LookupConcurrency: 4,
		LookupTimeout:     10 * time.Second,
	}
}

// RewardService computes customer reward points over a normalized window.
type RewardService struct {
	source ledger.TransactionSource
	clock  core.Clock
	cfg    RewardConfig
	logger *log.Logger
}

func NewRewardService(source ledger.TransactionSource, clock core.Clock, cfg RewardConfig, logger *log.Logger) *RewardService {
	if clock == nil {
		clock = core.SystemClock{}
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &RewardService{
		source: source,
		clock:  clock,
		cfg:    cfg,
		logger: logger.WithComponent(log.ComponentRewards),
	}
}

// GetCustomerPoints returns the monthly and total points of one customer.
// An invalid window yields a *core.ValidationError before the ledger is read.
func (s *RewardService) GetCustomerPoints(ctx context.Context, customerID int64, start, end *core.Date) (core.RewardResult, error) {
	rng, err := s.window(ctx, start, end)
	if err != nil {
		return core.RewardResult{}, err
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	txs, err := s.source.ListCustomerTransactions(lookupCtx, customerID, rng)
	if err != nil {
		return core.RewardResult{}, &core.InfrastructureError{Op: "list customer transactions", Err: err}
	}

	result := core.Aggregate(txs)
	s.logger.InfoContext(ctx, "Computed customer reward points",
		log.FieldCustomerID, customerID,
		log.FieldTransactionCount, len(txs),
		log.FieldTotalPoints, result.TotalPoints)

	return result, nil
}

// GetAllCustomersPoints returns the points of every customer with purchases
// in the window.
func (s *RewardService) GetAllCustomersPoints(ctx context.Context, start, end *core.Date) (core.CustomerRewards, error) {
	rng, err := s.window(ctx, start, end)
	if err != nil {
		return nil, err
	}

	lookupCtx, cancel := s.lookupContext(ctx)
	defer cancel()

	var rewards core.CustomerRewards
	if lister, ok := s.source.(ledger.CustomerLister); ok && s.cfg.LookupConcurrency > 1 {
		rewards, err = s.perCustomer(lookupCtx, lister, rng)
	} else {
		rewards, err = s.singleQuery(lookupCtx, rng)
	}
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Computed reward points for all customers",
		log.FieldCustomerCount, len(rewards))

	return rewards, nil
}

func (s *RewardService) singleQuery(ctx context.Context, rng core.DateRange) (core.CustomerRewards, error) {
	txs, err := s.source.ListTransactions(ctx, rng)
	if err != nil {
		return nil, &core.InfrastructureError{Op: "list transactions", Err: err}
	}
	return core.AggregateAll(txs), nil
}

// perCustomer looks customers up concurrently. The first failure cancels the
// remaining lookups.
func (s *RewardService) perCustomer(ctx context.Context, lister ledger.CustomerLister, rng core.DateRange) (core.CustomerRewards, error) {
	ids, err := lister.ListCustomerIDs(ctx, rng)
	if err != nil {
		return nil, &core.InfrastructureError{Op: "list customers", Err: err}
	}

	results := make([]*core.RewardResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.LookupConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			txs, err := s.source.ListCustomerTransactions(gctx, id, rng)
			if err != nil {
				return fmt.Errorf("customer %d: %w", id, err)
			}
			if len(txs) == 0 {
				return nil
			}
			result := core.Aggregate(txs)
			results[i] = &result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &core.InfrastructureError{Op: "list customer transactions", Err: err}
	}

	rewards := make(core.CustomerRewards, len(ids))
	for i, id := range ids {
		if results[i] == nil {
			continue
		}
		merged := rewards[id]
		merged.Merge(*results[i])
		rewards[id] = merged
	}
	return rewards, nil
}

func (s *RewardService) window(ctx context.Context, start, end *core.Date) (core.DateRange, error) {
	rng, err := core.NormalizeWindow(start, end, s.clock)
	if err != nil {
		return core.DateRange{}, err
	}
	s.logger.DebugContext(ctx, "Normalized reward window", log.NewFields().WithWindow(rng).ToSlice()...)
	return rng, nil
}

func (s *RewardService) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.LookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.LookupTimeout)
}
