// Package itemserver hosts authoritative inventories: it generates loot into
// them, streams their changes over the feed and flushes them to storage.
package itemserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/config"
	"github.com/udisondev/itemforge/internal/feed"
	"github.com/udisondev/itemforge/internal/game/loot"
	"github.com/udisondev/itemforge/internal/inventory"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/replication"
	"github.com/udisondev/itemforge/internal/rng"
	"github.com/udisondev/itemforge/internal/world"
)

// Store persists inventory contents. db.InventoryRepository implements it.
type Store interface {
	Save(ctx context.Context, inventoryID string, entries []replication.Entry) error
	Load(ctx context.Context, inventoryID string) ([]replication.Entry, error)
}

// Server owns every inventory of the process.
type Server struct {
	cfg       config.Server
	instancer *loot.Instancer
	dropper   *loot.Dropper
	ground    *world.Ground
	hub       *feed.Hub
	store     Store
	sink      replication.Sink

	mu          sync.Mutex
	inventories map[string]*inventory.Inventory
	loads       singleflight.Group

	dirtyMu sync.Mutex
	dirty   map[string]struct{}
}

// New creates a server over catalog c. store may be nil when persistence is off.
func New(cfg config.Server, c *catalog.Catalog, store Store) *Server {
	var entropy rng.Entropy = rng.DefaultEntropy()
	if cfg.Itemization.Seed != 0 {
		entropy = rng.NewSeededEntropy(cfg.Itemization.Seed)
	}

	ground := world.NewGround(nil)
	instancer := loot.NewInstancer(c, loot.NewRegistry(cfg.Itemization.MaxItemLevel), entropy)

	s := &Server{
		cfg:         cfg,
		instancer:   instancer,
		dropper:     loot.NewDropper(instancer, loot.NewResolver(c), ground, entropy),
		ground:      ground,
		hub:         feed.NewHub(cfg.Feed.SendQueueSize, cfg.Feed.WriteTimeout),
		store:       store,
		inventories: make(map[string]*inventory.Inventory),
		dirty:       make(map[string]struct{}),
	}
	s.sink = replication.Sinks{s.hub, dirtyTracker{s}}
	return s
}

// Hub returns the feed hub every inventory reports to.
func (s *Server) Hub() *feed.Hub {
	return s.hub
}

// Ground returns the world ground registry.
func (s *Server) Ground() *world.Ground {
	return s.ground
}

// Inventory returns the inventory with the given id, creating it (and
// loading stored contents) on first use.
func (s *Server) Inventory(ctx context.Context, id string) (*inventory.Inventory, error) {
	if inv, ok := s.lookup(id); ok {
		return inv, nil
	}

	var entries []replication.Entry
	if s.store != nil {
		// загрузка идёт без s.mu: остальные инвентари не ждут базу
		v, err, _ := s.loads.Do(id, func() (any, error) {
			return s.store.Load(ctx, id)
		})
		if err != nil {
			return nil, fmt.Errorf("loading inventory %s: %w", id, err)
		}
		entries = v.([]replication.Entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if inv, ok := s.inventories[id]; ok {
		return inv, nil
	}
	inv := inventory.New(id, s.instancer, s.ground, s.sink)
	if n := s.cfg.Itemization.MaxPendingChanges; n > 0 {
		inv.SetMaxPendingChanges(n)
	}
	if err := inv.Restore(entries); err != nil {
		return nil, fmt.Errorf("restoring inventory %s: %w", id, err)
	}
	// Restore прогоняет Add, а загруженное сохранять заново незачем.
	s.clean(id)
	if len(entries) > 0 {
		slog.Info("inventory loaded", "inventory", id, "items", len(entries))
	}
	s.inventories[id] = inv
	return inv, nil
}

func (s *Server) lookup(id string) (*inventory.Inventory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.inventories[id]
	return inv, ok
}

// Loot drops table at loc and moves every drop the inventory accepts into
// it. Drops it refuses stay on the ground.
func (s *Server) Loot(ctx context.Context, id string, table catalog.Handle, itemLevel, magicFind int32, loc model.Location) ([]model.ItemInstance, error) {
	inv, err := s.Inventory(ctx, id)
	if err != nil {
		return nil, err
	}

	drops, err := s.dropper.DropItems(loot.DropRequest{
		DropTable: table,
		ItemLevel: itemLevel,
		MagicFind: magicFind,
		Location:  loc,
		UserData:  map[string]string{"inventory": id},
	})
	if err != nil {
		return nil, fmt.Errorf("dropping %s: %w", table, err)
	}

	taken := make([]model.ItemInstance, 0, len(drops))
	for _, drop := range drops {
		item := drop.Item()
		if err := inv.TakeDrop(drop, replication.ContextData{"source": table.String()}, true); err != nil {
			slog.Warn("drop left on ground", "inventory", id, "item", item.ID, "error", err)
			continue
		}
		taken = append(taken, item)
	}
	return taken, nil
}

// Flush saves every inventory changed since the previous flush. Without a
// store it only clears the dirty set.
func (s *Server) Flush(ctx context.Context) error {
	s.dirtyMu.Lock()
	ids := make([]string, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	clear(s.dirty)
	s.dirtyMu.Unlock()

	if s.store == nil || len(ids) == 0 {
		return nil
	}

	var errs []error
	for _, id := range ids {
		s.mu.Lock()
		inv, ok := s.inventories[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		if err := s.store.Save(ctx, id, inv.Entries()); err != nil {
			s.markDirty(id)
			errs = append(errs, fmt.Errorf("saving inventory %s: %w", id, err))
		}
	}
	if len(errs) == 0 {
		slog.Debug("inventories flushed", "count", len(ids))
	}
	return errors.Join(errs...)
}

// RunFlusher flushes every interval until ctx is done, then flushes once more.
func (s *Server) RunFlusher(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return s.Flush(shutdownCtx)
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				slog.Error("flushing inventories", "error", err)
			}
		}
	}
}

// RunGroundSweeper despawns drops older than expireAfter every interval.
func (s *Server) RunGroundSweeper(ctx context.Context, interval, expireAfter time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := s.ground.ExpireOlderThan(now.Add(-expireAfter)); n > 0 {
				slog.Debug("expired ground drops", "count", n)
			}
		}
	}
}

// Run serves the HTTP API and the feed on cfg.Feed.Addr() until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Feed.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Feed.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown", "error", err)
		}
	}()

	slog.Info("item server started", "address", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

func (s *Server) markDirty(id string) {
	s.dirtyMu.Lock()
	s.dirty[id] = struct{}{}
	s.dirtyMu.Unlock()
}

func (s *Server) clean(id string) {
	s.dirtyMu.Lock()
	delete(s.dirty, id)
	s.dirtyMu.Unlock()
}

// dirtyTracker marks the owner of every changed entry for the next flush.
type dirtyTracker struct{ s *Server }

func (d dirtyTracker) OnAdded(e replication.Entry)   { d.s.markDirty(e.Owner) }
func (d dirtyTracker) OnChanged(e replication.Entry) { d.s.markDirty(e.Owner) }
func (d dirtyTracker) OnRemoved(e replication.Entry) { d.s.markDirty(e.Owner) }

func (dirtyTracker) OnPropertyChanged(replication.Entry, replication.PropertyChange) {}
