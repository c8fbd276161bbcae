package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/game/loot"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/replication"
	"github.com/udisondev/itemforge/internal/tag"
	"github.com/udisondev/itemforge/internal/testutil"
)

// InventoryRepositorySuite гоняет репозиторий против настоящего PostgreSQL.
type InventoryRepositorySuite struct {
	suite.Suite
	pool *pgxpool.Pool
	repo *InventoryRepository
	in   *loot.Instancer
	ctx  context.Context
}

func (s *InventoryRepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	s.pool = testutil.SetupTestDB(s.T())
	s.repo = NewInventoryRepository(s.pool)
	s.in = testutil.Instancer(s.T(), testutil.Catalog(s.T()), 21)
}

func (s *InventoryRepositorySuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE TABLE item_instances")
	s.Require().NoError(err)
}

func (s *InventoryRepositorySuite) entry(owner string, h catalog.Handle, level int32) replication.Entry {
	return replication.Entry{Owner: owner, Item: testutil.Generate(s.T(), s.in, h, level)}
}

func (s *InventoryRepositorySuite) TestSaveLoad() {
	sword := s.entry("player-1", testutil.ShortSword, 30)
	ruby := testutil.Stack(s.T(), s.in, testutil.Ruby, 1)
	sword.Item.Sockets = []model.SocketInstance{
		{ID: uuid.New(), Definition: catalog.H("sockets", "gem"), Item: &ruby},
		{ID: uuid.New(), Definition: catalog.H("sockets", "rune"), Empty: true},
	}
	sword.Context = replication.ContextData{"slot": "3"}
	sword.Item.Stream.FRand() // позиция потока тоже сохраняется

	gold := s.entry("player-1", testutil.Gold, 1)
	gold.Item.Mutators = map[tag.Tag]float64{"Itemization.Mutator.StackCount": 25}

	s.Require().NoError(s.repo.Save(s.ctx, "player-1", []replication.Entry{sword, gold}))

	loaded, err := s.repo.Load(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Require().Len(loaded, 2)

	got := loaded[0]
	s.Equal("player-1", got.Owner)
	s.Equal(sword.Context, got.Context)
	s.Equal(sword.Item.ID, got.Item.ID)
	s.Len(got.Item.Affixes, len(sword.Item.Affixes))
	s.Equal(model.FingerprintOf(&sword.Item), model.FingerprintOf(&got.Item))
	s.Equal(sword.Item.Stream.FRand(), got.Item.Stream.FRand())
	s.Require().Len(got.Item.Sockets, 2)
	s.Require().NotNil(got.Item.Sockets[0].Item)
	s.Equal(ruby.ID, got.Item.Sockets[0].Item.ID)
	s.True(got.Item.Sockets[1].Empty)

	s.Equal(gold.Item.Mutators, loaded[1].Item.Mutators)
	s.Nil(loaded[1].Context)
}

func (s *InventoryRepositorySuite) TestSaveReplaces() {
	first := s.entry("player-1", testutil.LeatherVest, 5)
	second := s.entry("player-1", testutil.WarAxe, 25)

	s.Require().NoError(s.repo.Save(s.ctx, "player-1", []replication.Entry{first}))
	s.Require().NoError(s.repo.Save(s.ctx, "player-1", []replication.Entry{second}))

	loaded, err := s.repo.Load(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Require().Len(loaded, 1)
	s.Equal(second.Item.ID, loaded[0].Item.ID)

	s.Require().NoError(s.repo.Save(s.ctx, "player-1", nil))
	loaded, err = s.repo.Load(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Empty(loaded)
}

func (s *InventoryRepositorySuite) TestDuplicateFingerprint() {
	sword := s.entry("player-1", testutil.ShortSword, 10)
	s.Require().NoError(s.repo.Save(s.ctx, "player-1", []replication.Entry{sword}))

	// тот же предмет во втором инвентаре
	other := s.entry("player-2", testutil.LeatherVest, 10)
	dupe := sword
	dupe.Owner = "player-2"
	err := s.repo.Save(s.ctx, "player-2", []replication.Entry{other, dupe})
	s.Require().Error(err)
	s.True(errors.Is(err, ErrDuplicateFingerprint), "got %v", err)

	loaded, err := s.repo.Load(s.ctx, "player-2")
	s.Require().NoError(err)
	s.Empty(loaded, "failed save must not leave partial rows")

	// stack count не входит в fingerprint
	dupe.Item.StackCount = 7
	err = s.repo.Save(s.ctx, "player-2", []replication.Entry{dupe})
	s.True(errors.Is(err, ErrDuplicateFingerprint), "got %v", err)
}

func (s *InventoryRepositorySuite) TestDeleteAndInventories() {
	a := s.entry("player-1", testutil.ShortSword, 10)
	b := s.entry("player-2", testutil.LeatherVest, 10)
	s.Require().NoError(s.repo.Save(s.ctx, "player-1", []replication.Entry{a}))
	s.Require().NoError(s.repo.Save(s.ctx, "player-2", []replication.Entry{b}))

	ids, err := s.repo.Inventories(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"player-1", "player-2"}, ids)

	deleted, err := s.repo.Delete(s.ctx, a.Item.ID)
	s.Require().NoError(err)
	s.True(deleted)

	deleted, err = s.repo.Delete(s.ctx, a.Item.ID)
	s.Require().NoError(err)
	s.False(deleted)

	ids, err = s.repo.Inventories(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"player-2"}, ids)
}

func (s *InventoryRepositorySuite) TestConnectAndMigrate() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	dsn := s.pool.Config().ConnString()
	s.Require().NoError(RunMigrations(ctx, dsn), "migrations are idempotent")

	d, err := New(ctx, dsn)
	s.Require().NoError(err)
	defer d.Close()
	s.NoError(d.Pool().Ping(ctx))
}

func TestInventoryRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping database tests in short mode")
	}
	suite.Run(t, new(InventoryRepositorySuite))
}
