package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"vendor-dashboard-api/internal/listquery"
	"vendor-dashboard-api/internal/models"
)

// ErrNotFound is returned when a record does not exist for the vendor.
var ErrNotFound = errors.New("database: record not found")

// DB stores vendor records as JSON documents, one collection per resource.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS records (
			id TEXT NOT NULL,
			vendor_id TEXT NOT NULL,
			resource TEXT NOT NULL,
			position INTEGER NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (vendor_id, resource, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_position ON records(vendor_id, resource, position)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// ImportRecords stores records for a vendor in a single transaction. Records
// without an "_id" get a generated one; existing ids are replaced in place
// and keep their position.
func (db *DB) ImportRecords(ctx context.Context, vendorID, resource string, records []listquery.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	next, err := nextPosition(ctx, tx, vendorID, resource)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (
		id, vendor_id, resource, position, body, updated_at
	) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(vendor_id, resource, id) DO UPDATE SET
		body = excluded.body,
		updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, rec := range records {
		id, body, err := encodeWithID(rec)
		if err != nil {
			return 0, err
		}

		if _, err := stmt.ExecContext(ctx, id, vendorID, resource, next, body, now); err != nil {
			return 0, fmt.Errorf("failed to insert record %s: %w", id, err)
		}
		next++
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// ListRecords returns a vendor's records of one resource in insertion order.
func (db *DB) ListRecords(ctx context.Context, vendorID, resource string) ([]listquery.Record, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT body FROM records
		WHERE vendor_id = ? AND resource = ?
		ORDER BY position`, vendorID, resource)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []listquery.Record{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec, err := models.DecodeRecord([]byte(body))
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// GetRecord returns a single record by id.
func (db *DB) GetRecord(ctx context.Context, vendorID, resource, id string) (listquery.Record, error) {
	var body string
	err := db.conn.QueryRowContext(ctx, `SELECT body FROM records
		WHERE vendor_id = ? AND resource = ? AND id = ?`, vendorID, resource, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return models.DecodeRecord([]byte(body))
}

// InsertRecord appends a record at the end of the collection.
func (db *DB) InsertRecord(ctx context.Context, vendorID, resource string, rec listquery.Record) (string, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	next, err := nextPosition(ctx, tx, vendorID, resource)
	if err != nil {
		return "", err
	}

	id, body, err := encodeWithID(rec)
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO records (id, vendor_id, resource, position, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, vendorID, resource, next, body, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert record %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

// UpdateRecord applies fn to a stored record and writes the result back
// inside one transaction.
func (db *DB) UpdateRecord(ctx context.Context, vendorID, resource, id string, fn func(listquery.Record) error) (listquery.Record, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx, `SELECT body FROM records
		WHERE vendor_id = ? AND resource = ? AND id = ?`, vendorID, resource, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	rec, err := models.DecodeRecord([]byte(body))
	if err != nil {
		return nil, err
	}
	if err := fn(rec); err != nil {
		return nil, err
	}

	if err := writeBody(ctx, tx, vendorID, resource, id, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return rec, nil
}

// DeleteRecord removes a record. It reports ErrNotFound when the vendor has
// no such record.
func (db *DB) DeleteRecord(ctx context.Context, vendorID, resource, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM records
		WHERE vendor_id = ? AND resource = ? AND id = ?`, vendorID, resource, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAll applies fn to every record of a resource and returns how many
// records fn reported as changed.
func (db *DB) UpdateAll(ctx context.Context, vendorID, resource string, fn func(listquery.Record) bool) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id, body FROM records
		WHERE vendor_id = ? AND resource = ?`, vendorID, resource)
	if err != nil {
		return 0, fmt.Errorf("failed to query records: %w", err)
	}

	changed := map[string]listquery.Record{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := models.DecodeRecord([]byte(body))
		if err != nil {
			rows.Close()
			return 0, err
		}
		if fn(rec) {
			changed[id] = rec
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating records: %w", err)
	}
	rows.Close()

	for id, rec := range changed {
		if err := writeBody(ctx, tx, vendorID, resource, id, rec); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return len(changed), nil
}

func writeBody(ctx context.Context, tx *sql.Tx, vendorID, resource, id string, rec listquery.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE records SET body = ?, updated_at = ?
		WHERE vendor_id = ? AND resource = ? AND id = ?`,
		string(data), time.Now().UTC().Format(time.RFC3339), vendorID, resource, id)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", id, err)
	}
	return nil
}

func nextPosition(ctx context.Context, tx *sql.Tx, vendorID, resource string) (int64, error) {
	var maxPos sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(position) FROM records
		WHERE vendor_id = ? AND resource = ?`, vendorID, resource).Scan(&maxPos)
	if err != nil {
		return 0, fmt.Errorf("failed to read position: %w", err)
	}
	if !maxPos.Valid {
		return 0, nil
	}
	return maxPos.Int64 + 1, nil
}

// encodeWithID serializes rec, assigning a UUID when it has no usable
// "_id". Numeric ids are kept in their string form. The caller's map is
// left untouched.
func encodeWithID(rec listquery.Record) (string, string, error) {
	id, isString := rec["_id"].(string)
	if !isString {
		id = scalarID(rec["_id"])
	}
	if id == "" {
		id = uuid.New().String()
	}
	if !isString || rec["_id"] != id {
		copied := make(listquery.Record, len(rec)+1)
		for k, v := range rec {
			copied[k] = v
		}
		copied["_id"] = id
		rec = copied
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode record %s: %w", id, err)
	}
	return id, string(data), nil
}

func scalarID(v any) string {
	switch id := v.(type) {
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	}
	return ""
}
