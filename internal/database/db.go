package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
)

// DB wraps the database connection for the audit trail.
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database.
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order.
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		fmt.Printf("Running migration: %s\n", filename)

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	fmt.Println("All migrations completed successfully")
	return nil
}

// InsertSensorEvent appends one ingestion event to the audit trail.
func (db *DB) InsertSensorEvent(ev *SensorEvent) error {
	query := `
		INSERT INTO sensor_events (
			event_id, sn, store_id, mapped, received_at,
			total_entries, total_exits, customer_entries, customer_exits,
			child_entries, child_exits, staff_entries, raw
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id
	`

	err := db.QueryRow(
		query,
		ev.EventID,
		ev.SN,
		nullableString(ev.StoreID),
		ev.Mapped,
		ev.ReceivedAt,
		ev.TotalEntries,
		ev.TotalExits,
		ev.CustomerEntries,
		ev.CustomerExits,
		ev.ChildEntries,
		ev.ChildExits,
		ev.StaffEntries,
		ev.Raw,
	).Scan(&ev.ID)

	// A replayed Kafka offset hits the conflict clause; that is not a failure.
	if err == sql.ErrNoRows {
		return nil
	}
	return err
}

// RecentEvents returns the newest audit events, mapped and unmapped alike.
func (db *DB) RecentEvents(limit int) ([]*SensorEvent, error) {
	query := `
		SELECT id, event_id, sn, COALESCE(store_id, ''), mapped, received_at,
		       total_entries, total_exits, customer_entries, customer_exits,
		       child_entries, child_exits, staff_entries
		FROM sensor_events
		ORDER BY received_at DESC
		LIMIT $1
	`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*SensorEvent
	for rows.Next() {
		var ev SensorEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.EventID,
			&ev.SN,
			&ev.StoreID,
			&ev.Mapped,
			&ev.ReceivedAt,
			&ev.TotalEntries,
			&ev.TotalExits,
			&ev.CustomerEntries,
			&ev.CustomerExits,
			&ev.ChildEntries,
			&ev.ChildExits,
			&ev.StaffEntries,
		); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}

	return events, rows.Err()
}

// UnmappedSerials returns the distinct serials seen without a device
// mapping, newest first, so an operator knows what to configure.
func (db *DB) UnmappedSerials() ([]string, error) {
	query := `
		SELECT sn
		FROM sensor_events
		WHERE mapped = false AND sn <> ''
		GROUP BY sn
		ORDER BY MAX(received_at) DESC
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var serials []string
	for rows.Next() {
		var sn string
		if err := rows.Scan(&sn); err != nil {
			return nil, err
		}
		serials = append(serials, sn)
	}

	return serials, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
