package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Spok95/pharmacy-ledger/internal/domain/errs"
	"github.com/Spok95/pharmacy-ledger/internal/validate"
)

// Cache is a read-through item cache owned by one Service. Concurrent misses
// for the same id share a single store lookup.
type Cache struct {
	mu    sync.RWMutex
	items map[int64]Item
	group singleflight.Group
}

func NewCache() *Cache { return &Cache{items: map[int64]Item{}} }

func (c *Cache) get(ctx context.Context, id int64, load func(context.Context, int64) (*Item, error)) (*Item, error) {
	c.mu.RLock()
	it, ok := c.items[id]
	c.mu.RUnlock()
	if ok {
		return &it, nil
	}

	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		loaded, err := load(ctx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[id] = *loaded
		c.mu.Unlock()
		return *loaded, nil
	})
	if err != nil {
		return nil, err
	}
	out := v.(Item)
	return &out, nil
}

// Reset drops every cached item; the next lookups re-query the store.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.items = map[int64]Item{}
	c.mu.Unlock()
}

type Service struct {
	store Store
	cache *Cache
	log   *slog.Logger
}

func NewService(store Store, log *slog.Logger) *Service {
	return &Service{store: store, cache: NewCache(), log: log}
}

func (s *Service) Item(ctx context.Context, id int64) (*Item, error) {
	return s.cache.get(ctx, id, s.store.Item)
}

func (s *Service) Items(ctx context.Context, onlyActive bool) ([]Item, error) {
	return s.store.ListItems(ctx, onlyActive)
}

func (s *Service) CreateProduct(ctx context.Context, name string) (*Product, error) {
	if name == "" {
		return nil, errs.Invalid("name", "is required")
	}
	return s.store.CreateProduct(ctx, name)
}

type presentation struct {
	Name        string `json:"name" validate:"required"`
	UnitsPerBox int64  `json:"units_per_box" validate:"gte=1"`
}

// SyncPresentations reconciles the presentations stored for productID with
// desired, one statement per difference. A removed presentation that lots
// still reference is deactivated instead of deleted.
func (s *Service) SyncPresentations(ctx context.Context, productID int64, desired []Item) (Plan, error) {
	for i := range desired {
		if err := validate.Struct(presentation{Name: desired[i].Name, UnitsPerBox: desired[i].UnitsPerBox}); err != nil {
			return Plan{}, fmt.Errorf("presentation %d: %w", i+1, err)
		}
		desired[i].ProductID = productID
		desired[i].Active = true
		if desired[i].BaseUnit == "" {
			desired[i].BaseUnit = "unit"
		}
	}

	var plan Plan
	err := s.store.Atomic(ctx, func(tx Tx) error {
		current, err := tx.ItemsByProduct(ctx, productID)
		if err != nil {
			return err
		}
		plan = DiffPresentations(current, desired)

		for i := range plan.Add {
			if err := tx.InsertItem(ctx, &plan.Add[i]); err != nil {
				return fmt.Errorf("insert %q: %w", plan.Add[i].Name, err)
			}
		}
		for _, it := range plan.Change {
			if err := tx.UpdateItem(ctx, it); err != nil {
				return fmt.Errorf("update item %d: %w", it.ID, err)
			}
		}
		for _, it := range plan.Remove {
			used, err := tx.ItemHasLots(ctx, it.ID)
			if err != nil {
				return err
			}
			if used {
				it.Active = false
				if err := tx.UpdateItem(ctx, it); err != nil {
					return fmt.Errorf("deactivate item %d: %w", it.ID, err)
				}
				continue
			}
			if err := tx.DeleteItem(ctx, it.ID); err != nil {
				return fmt.Errorf("delete item %d: %w", it.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Plan{}, err
	}

	s.cache.Reset()
	s.log.Info("presentations synced",
		"product_id", productID,
		"added", len(plan.Add),
		"changed", len(plan.Change),
		"removed", len(plan.Remove),
	)
	return plan, nil
}
