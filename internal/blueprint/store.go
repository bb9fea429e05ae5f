package blueprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/orchd/internal/store"
)

const keyPrefix = "blueprints/"

// Store persists blueprints keyed by task category.
type Store struct {
	store  store.Store
	logger *zap.Logger
}

// NewStore creates a blueprint store.
func NewStore(st store.Store, logger *zap.Logger) (*Store, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required for blueprint store")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for blueprint store")
	}
	return &Store{store: st, logger: logger.Named("blueprints")}, nil
}

// Get returns the blueprint for a category, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, category string) (*Blueprint, error) {
	data, err := s.store.Read(ctx, keyPrefix+category)
	if err != nil {
		return nil, err
	}
	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("corrupt blueprint for %s: %w", category, err)
	}
	return &bp, nil
}

// Put persists a blueprint under its category. The first write wins;
// later writes for the same category are ignored.
func (s *Store) Put(ctx context.Context, bp *Blueprint) error {
	data, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("failed to encode blueprint for %s: %w", bp.Category, err)
	}
	wrote, err := s.store.WriteIfAbsent(ctx, keyPrefix+bp.Category, data)
	if err != nil {
		return fmt.Errorf("failed to persist blueprint for %s: %w", bp.Category, err)
	}
	if !wrote {
		s.logger.Debug("blueprint already persisted", zap.String("category", bp.Category))
	}
	return nil
}

// Categories lists every category with a persisted blueprint.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	keys, err := s.store.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}
	categories := make([]string, 0, len(keys))
	for _, k := range keys {
		categories = append(categories, k[len(keyPrefix):])
	}
	return categories, nil
}

// IsNotFound reports whether err is a cache miss.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
