package tablestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// PostgresClient stores every table in the generic table_row relation, one JSONB document per row.
// Filters are evaluated with JSONB containment, so filter values must have the same JSON type as
// the stored values.
type PostgresClient struct {
	db *pgxpool.Pool
}

var _ Client = (*PostgresClient)(nil)

func NewPostgresClient(db *pgxpool.Pool) *PostgresClient {
	return &PostgresClient{db: db}
}

func (c *PostgresClient) Close() {
	c.db.Close()
}

func (c *PostgresClient) Find(ctx context.Context, table string, filter Filter) ([]Row, error) {
	if filter == nil {
		filter = Filter{}
	}
	filterJson, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("could not encode filter: %w", err)
	}

	query := `SELECT data FROM table_row WHERE table_name = $1 AND data @> $2::jsonb ORDER BY id`
	dbRows, err := c.db.Query(ctx, query, table, string(filterJson))
	if err != nil {
		err := fmt.Errorf("could not query table %s: %w", table, err)
		log.Error(err)
		return nil, err
	}
	defer dbRows.Close()

	rows := make([]Row, 0)
	for dbRows.Next() {
		var data []byte
		if err := dbRows.Scan(&data); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			err := fmt.Errorf("error decoding row of table %s: %w", table, err)
			log.Error(err)
			return nil, err
		}
		rows = append(rows, row)
	}
	if err := dbRows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return rows, nil
}

func (c *PostgresClient) Add(ctx context.Context, table string, rows []Row) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO table_row (table_name, data) VALUES ($1, $2::jsonb)`
	for _, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("could not encode row for table %s: %w", table, err)
		}
		if _, err := tx.Exec(ctx, query, table, string(data)); err != nil {
			err := fmt.Errorf("could not execute query: %w", err)
			log.Error(err)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	log.Debugf("stored %d row(s) in table %s", len(rows), table)
	return nil
}
