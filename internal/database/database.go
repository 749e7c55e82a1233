package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Memesold/vk-tg-repost-bot/internal/migrations"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	"github.com/Memesold/vk-tg-repost-bot/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the tenant configuration store. Each tenant row carries one
// serialized UserRecord blob; all read-modify-write cycles run inside a
// single transaction so concurrent writers never clobber unrelated fields of
// the same record. Consistency is last-write-wins at record granularity.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema, err := migrations.GetInitialSchema()
	if err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: encryptor}, nil
}

func closeQuietly(db *sql.DB) {
	_ = db.Close()
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the underlying store is reachable, for health checks.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// GetUserRecord loads a tenant's record, creating an empty one for unknown
// tenants. Legacy single-bot fields are promoted into slot 0 and persisted
// the first time such a record is seen.
func (d *Database) GetUserRecord(ctx context.Context, userID int64) (*models.UserRecord, error) {
	record, found, err := d.loadRecord(ctx, d.db, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return models.NewUserRecord(), nil
	}

	if record.MigrateLegacy() {
		if err := d.SaveUserRecord(ctx, userID, record); err != nil {
			return nil, fmt.Errorf("failed to persist migrated record: %w", err)
		}
	}

	return record, nil
}

// SaveUserRecord stores the whole tenant record, replacing the previous blob.
func (d *Database) SaveUserRecord(ctx context.Context, userID int64, record *models.UserRecord) error {
	blob, err := d.encodeRecord(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO users (user_id, data) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data
	`

	return retryableDBOperation(ctx, func() error {
		_, err := d.db.ExecContext(ctx, query, userID, blob)
		return err
	}, "save user record")
}

// UpdateBot replaces one bot slot inside a tenant record.
func (d *Database) UpdateBot(ctx context.Context, userID int64, botIndex int, bot models.BotConfig) error {
	return d.updateRecord(ctx, userID, func(record *models.UserRecord) error {
		if botIndex < 0 || botIndex >= len(record.Bots) {
			return fmt.Errorf("bot index %d out of range", botIndex)
		}
		record.SetBot(botIndex, bot)
		return nil
	})
}

// DeleteBot resets a bot slot to empty. The slot's cursor is discarded with
// the credentials, so a recreated slot resyncs from scratch.
func (d *Database) DeleteBot(ctx context.Context, userID int64, botIndex int) error {
	return d.updateRecord(ctx, userID, func(record *models.UserRecord) error {
		if botIndex < 0 || botIndex >= len(record.Bots) {
			return fmt.Errorf("bot index %d out of range", botIndex)
		}
		record.SetBot(botIndex, models.BotConfig{})
		return nil
	})
}

// GetCursor returns the highest processed post id for one bot slot.
func (d *Database) GetCursor(ctx context.Context, userID int64, botIndex int) (int64, error) {
	record, err := d.GetUserRecord(ctx, userID)
	if err != nil {
		return 0, err
	}
	return record.Bot(botIndex).LastPostID, nil
}

// SetCursor advances the cursor for one bot slot. The cursor never moves
// backwards; a write with a lower value is ignored.
func (d *Database) SetCursor(ctx context.Context, userID int64, botIndex int, cursor int64) error {
	return d.updateRecord(ctx, userID, func(record *models.UserRecord) error {
		if botIndex < 0 || botIndex >= len(record.Bots) {
			return fmt.Errorf("bot index %d out of range", botIndex)
		}
		bot := record.Bot(botIndex)
		if cursor <= bot.LastPostID {
			return nil
		}
		bot.LastPostID = cursor
		record.SetBot(botIndex, bot)
		return nil
	})
}

// SetPendingInput stores (or clears, with an empty marker) the menu layer's
// pending-input marker without touching the bot slots.
func (d *Database) SetPendingInput(ctx context.Context, userID int64, marker string) error {
	return d.updateRecord(ctx, userID, func(record *models.UserRecord) error {
		record.PendingInput = marker
		return nil
	})
}

// ListUserIDs returns all known tenants, for the scheduler sweep.
func (d *Database) ListUserIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT user_id FROM users ORDER BY user_id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return ids, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (d *Database) loadRecord(ctx context.Context, q queryer, userID int64) (*models.UserRecord, bool, error) {
	var blob string
	err := q.QueryRowContext(ctx, `SELECT data FROM users WHERE user_id = ?`, userID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user record: %w", err)
	}

	decrypted, err := d.encryptor.DecryptIfEnabled(blob)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decrypt user record: %w", err)
	}

	record := models.NewUserRecord()
	if decrypted != "" {
		if err := json.Unmarshal([]byte(decrypted), record); err != nil {
			return nil, false, fmt.Errorf("failed to decode user record: %w", err)
		}
	}

	return record, true, nil
}

func (d *Database) encodeRecord(record *models.UserRecord) (string, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode user record: %w", err)
	}

	blob, err := d.encryptor.EncryptIfEnabled(string(data))
	if err != nil {
		return "", fmt.Errorf("failed to encrypt user record: %w", err)
	}

	return blob, nil
}

// updateRecord runs one read-modify-write cycle for a tenant record inside a
// transaction.
func (d *Database) updateRecord(ctx context.Context, userID int64, mutate func(*models.UserRecord) error) error {
	return retryableDBOperation(ctx, func() error {
		tx, err := d.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()

		record, found, err := d.loadRecord(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !found {
			record = models.NewUserRecord()
		}
		record.MigrateLegacy()

		if err := mutate(record); err != nil {
			return err
		}

		blob, err := d.encodeRecord(record)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO users (user_id, data) VALUES (?, ?)
			ON CONFLICT(user_id) DO UPDATE SET data = excluded.data
		`
		if _, err := tx.ExecContext(ctx, query, userID, blob); err != nil {
			return fmt.Errorf("failed to write user record: %w", err)
		}

		return tx.Commit()
	}, "update user record")
}
