package memory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"rewards/internal/core"
	"rewards/internal/ledger"
)

// Ensure interface conformance
var (
	_ ledger.TransactionSource = (*Store)(nil)
	_ ledger.CustomerLister    = (*Store)(nil)
	_ ledger.TransactionWriter = (*Store)(nil)
	_ ledger.Pinger            = (*Store)(nil)
)

// Store keeps the ledger in process memory.
type Store struct {
	mu     sync.RWMutex
	items  []core.Transaction
	nextID int64
}

func New(txs []core.Transaction) *Store {
	s := &Store{}
	for _, tx := range txs {
		s.insert(tx)
	}
	return s
}

// NewFromFile seeds the store from a YAML seed file. A missing file falls
// back to DefaultSeed.
func NewFromFile(path string) (*Store, error) {
	txs, err := ledger.LoadSeedFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(ledger.DefaultSeed()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}
	return New(txs), nil
}

func (s *Store) insert(tx core.Transaction) core.Transaction {
	if tx.ID == 0 {
		tx.ID = s.nextID + 1
	}
	if tx.ID > s.nextID {
		s.nextID = tx.ID
	}
	s.items = append(s.items, tx)
	return tx
}

// ListCustomerTransactions returns the customer's transactions inside rng.
func (s *Store) ListCustomerTransactions(_ context.Context, customerID int64, rng core.DateRange) ([]core.Transaction, error) {
	return s.filter(func(tx core.Transaction) bool {
		return tx.CustomerID == customerID && rng.Contains(tx.Date)
	}), nil
}

// ListTransactions returns every transaction inside rng.
func (s *Store) ListTransactions(_ context.Context, rng core.DateRange) ([]core.Transaction, error) {
	return s.filter(func(tx core.Transaction) bool {
		return rng.Contains(tx.Date)
	}), nil
}

// ListCustomerIDs returns the distinct customers with transactions inside rng, ascending.
func (s *Store) ListCustomerIDs(ctx context.Context, rng core.DateRange) ([]int64, error) {
	txs, _ := s.ListTransactions(ctx, rng)
	seen := make(map[int64]struct{})
	ids := make([]int64, 0)
	for _, tx := range txs {
		if _, ok := seen[tx.CustomerID]; ok {
			continue
		}
		seen[tx.CustomerID] = struct{}{}
		ids = append(ids, tx.CustomerID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// RecordTransaction stores tx, assigning the next id when tx.ID is zero.
func (s *Store) RecordTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.CustomerID <= 0 {
		return core.Transaction{}, fmt.Errorf("invalid customer id %d", tx.CustomerID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(tx), nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) filter(keep func(core.Transaction) bool) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.items {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
