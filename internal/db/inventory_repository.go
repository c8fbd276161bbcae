package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/replication"
	"github.com/udisondev/itemforge/internal/tag"
)

// ErrDuplicateFingerprint is returned when an item with the same fingerprint
// is already stored, i.e. the same rolled item exists twice.
var ErrDuplicateFingerprint = errors.New("duplicate item fingerprint")

const (
	uniqueViolation      = "23505"
	fingerprintKey       = "item_instances_fingerprint_key"
	itemInstancesColumns = "inventory_id, item_id, definition, seed, stream, item_level, affix_level, quality_type, stack_count, affixes, sockets, mutators, context, fingerprint"
)

// InventoryRepository хранит содержимое инвентарей в item_instances.
type InventoryRepository struct {
	db *pgxpool.Pool
}

// NewInventoryRepository создаёт новый InventoryRepository.
func NewInventoryRepository(db *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Save replaces the stored contents of inventoryID with entries in one
// transaction. On error the previous contents are kept.
func (r *InventoryRepository) Save(ctx context.Context, inventoryID string, entries []replication.Entry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction for inventory %s: %w", inventoryID, err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("rollback failed", "inventory", inventoryID, "error", err)
		}
	}()

	if err := r.SaveTx(ctx, tx, inventoryID, entries); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing inventory %s: %w", inventoryID, mapError(err))
	}
	return nil
}

// SaveTx is Save within a caller-owned transaction (full replace).
func (r *InventoryRepository) SaveTx(ctx context.Context, tx pgx.Tx, inventoryID string, entries []replication.Entry) error {
	if _, err := tx.Exec(ctx, `DELETE FROM item_instances WHERE inventory_id = $1`, inventoryID); err != nil {
		return fmt.Errorf("deleting old items of inventory %s: %w", inventoryID, err)
	}
	if len(entries) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(entries))
	for i := range entries {
		row, err := encodeRow(inventoryID, &entries[i])
		if err != nil {
			return fmt.Errorf("encoding item %s: %w", entries[i].Item.ID, err)
		}
		rows = append(rows, row)
	}

	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"item_instances"},
		[]string{
			"inventory_id", "item_id", "definition", "seed", "stream", "item_level", "affix_level",
			"quality_type", "stack_count", "affixes", "sockets", "mutators", "context", "fingerprint",
		},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting items of inventory %s: %w", inventoryID, mapError(err))
	}

	slog.Debug("saved inventory", "inventory", inventoryID, "count", len(entries))
	return nil
}

// Load returns the stored entries of inventoryID ordered by insertion.
func (r *InventoryRepository) Load(ctx context.Context, inventoryID string) ([]replication.Entry, error) {
	query := `SELECT ` + itemInstancesColumns + ` FROM item_instances WHERE inventory_id = $1 ORDER BY id`

	rows, err := r.db.Query(ctx, query, inventoryID)
	if err != nil {
		return nil, fmt.Errorf("querying inventory %s: %w", inventoryID, err)
	}
	defer rows.Close()

	entries := make([]replication.Entry, 0, 32)
	for rows.Next() {
		e, err := decodeRow(rows)
		if err != nil {
			return nil, fmt.Errorf("inventory %s: %w", inventoryID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating inventory %s: %w", inventoryID, err)
	}
	return entries, nil
}

// Delete removes one stored item. Returns false when nothing was stored
// under itemID.
func (r *InventoryRepository) Delete(ctx context.Context, itemID uuid.UUID) (bool, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM item_instances WHERE item_id = $1`, itemID)
	if err != nil {
		return false, fmt.Errorf("deleting item %s: %w", itemID, err)
	}
	return res.RowsAffected() > 0, nil
}

// Inventories lists the ids of every stored inventory.
func (r *InventoryRepository) Inventories(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT inventory_id FROM item_instances ORDER BY inventory_id`)
	if err != nil {
		return nil, fmt.Errorf("querying inventories: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting inventories: %w", err)
	}
	return ids, nil
}

func encodeRow(inventoryID string, e *replication.Entry) ([]any, error) {
	it := &e.Item
	stream, err := it.Stream.MarshalBinary()
	if err != nil {
		return nil, err
	}
	sockets, err := toSocketDocs(it.Sockets)
	if err != nil {
		return nil, err
	}

	affixesJSON, err := json.Marshal(toAffixDocs(it.Affixes))
	if err != nil {
		return nil, fmt.Errorf("marshaling affixes: %w", err)
	}
	socketsJSON, err := json.Marshal(sockets)
	if err != nil {
		return nil, fmt.Errorf("marshaling sockets: %w", err)
	}
	mutators := it.Mutators
	if mutators == nil {
		mutators = map[tag.Tag]float64{}
	}
	mutatorsJSON, err := json.Marshal(mutators)
	if err != nil {
		return nil, fmt.Errorf("marshaling mutators: %w", err)
	}
	data := e.Context
	if data == nil {
		data = replication.ContextData{}
	}
	contextJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling context: %w", err)
	}

	fp := model.FingerprintOf(it)
	return []any{
		inventoryID, it.ID, it.Definition.String(), it.Seed, stream, it.ItemLevel, it.AffixLevel,
		string(it.QualityType), it.StackCount, affixesJSON, socketsJSON, mutatorsJSON, contextJSON, fp[:],
	}, nil
}

func decodeRow(rows pgx.Rows) (replication.Entry, error) {
	var (
		inventoryID  string
		itemID       uuid.UUID
		definition   string
		seed         int32
		stream       []byte
		itemLevel    int32
		affixLevel   int32
		qualityType  string
		stackCount   int32
		affixesJSON  []byte
		socketsJSON  []byte
		mutatorsJSON []byte
		contextJSON  []byte
		fingerprint  []byte
	)
	err := rows.Scan(
		&inventoryID, &itemID, &definition, &seed, &stream, &itemLevel, &affixLevel,
		&qualityType, &stackCount, &affixesJSON, &socketsJSON, &mutatorsJSON, &contextJSON, &fingerprint,
	)
	if err != nil {
		return replication.Entry{}, fmt.Errorf("scanning item row: %w", err)
	}

	def, err := catalog.ParseHandle(definition)
	if err != nil {
		return replication.Entry{}, fmt.Errorf("item %s: %w", itemID, err)
	}
	doc := itemDoc{
		ID:          itemID,
		Definition:  def,
		Seed:        seed,
		Stream:      stream,
		ItemLevel:   itemLevel,
		AffixLevel:  affixLevel,
		QualityType: tag.Tag(qualityType),
		StackCount:  stackCount,
	}
	if err := json.Unmarshal(affixesJSON, &doc.Affixes); err != nil {
		return replication.Entry{}, fmt.Errorf("item %s affixes: %w", itemID, err)
	}
	if err := json.Unmarshal(socketsJSON, &doc.Sockets); err != nil {
		return replication.Entry{}, fmt.Errorf("item %s sockets: %w", itemID, err)
	}
	if err := json.Unmarshal(mutatorsJSON, &doc.Mutators); err != nil {
		return replication.Entry{}, fmt.Errorf("item %s mutators: %w", itemID, err)
	}
	if len(doc.Mutators) == 0 {
		doc.Mutators = nil
	}

	item, err := fromItemDoc(&doc)
	if err != nil {
		return replication.Entry{}, fmt.Errorf("item %s: %w", itemID, err)
	}

	var data replication.ContextData
	if err := json.Unmarshal(contextJSON, &data); err != nil {
		return replication.Entry{}, fmt.Errorf("item %s context: %w", itemID, err)
	}
	if len(data) == 0 {
		data = nil
	}

	if fp := model.FingerprintOf(&item); !bytes.Equal(fp[:], fingerprint) {
		slog.Warn("stored fingerprint mismatch", "inventory", inventoryID, "item", itemID)
	}

	return replication.Entry{Owner: inventoryID, Item: item, Context: data}, nil
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == fingerprintKey {
		return fmt.Errorf("%w: %s", ErrDuplicateFingerprint, pgErr.Detail)
	}
	return err
}
