// Package deadletter stores batches the write pipeline gave up on, so they
// can be inspected and replayed later.
package deadletter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-ingest/internal/classify"
	"github.com/nerrad567/gray-logic-ingest/internal/lineproto"
	"github.com/nerrad567/gray-logic-ingest/internal/point"
)

// ErrNotFound is returned when no dead letter has the requested ID.
var ErrNotFound = errors.New("deadletter: not found")

// Letter is one undeliverable batch with the reason it was dropped.
// Payload holds the batch as line protocol in the batch precision.
type Letter struct {
	ID              string    `json:"id"`
	Database        string    `json:"database"`
	RetentionPolicy string    `json:"retention_policy,omitempty"`
	Consistency     string    `json:"consistency"`
	Precision       string    `json:"precision"`
	Kind            string    `json:"kind"`
	Retryable       bool      `json:"retryable"`
	Message         string    `json:"message,omitempty"`
	PointCount      int       `json:"point_count"`
	Payload         string    `json:"payload"`
	CreatedAt       time.Time `json:"created_at"`
}

// FromBatch builds a Letter for b and its failure outcome.
func FromBatch(b *point.Batch, outcome classify.Outcome) (*Letter, error) {
	payload, err := lineproto.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encoding dead letter payload: %w", err)
	}

	dest := b.Destination()
	return &Letter{
		Database:        dest.Database,
		RetentionPolicy: dest.RetentionPolicy,
		Consistency:     string(dest.Consistency.OrDefault()),
		Precision:       string(dest.Precision.OrDefault()),
		Kind:            outcome.Kind.String(),
		Retryable:       outcome.Retryable,
		Message:         outcome.Message,
		PointCount:      b.Len(),
		Payload:         string(payload),
	}, nil
}

// Batch decodes the stored payload back into a batch for its destination.
func (l *Letter) Batch() (*point.Batch, error) {
	dest := point.Destination{
		Database:        l.Database,
		RetentionPolicy: l.RetentionPolicy,
		Consistency:     point.Consistency(l.Consistency),
		Precision:       point.Precision(l.Precision),
	}

	pts, err := lineproto.Parse([]byte(l.Payload), dest.Precision)
	if err != nil {
		return nil, fmt.Errorf("decoding dead letter %s: %w", l.ID, err)
	}
	return point.NewBatch(dest, pts...), nil
}

// Filter controls which dead letters to return.
type Filter struct {
	Kind     string // optional: filter by outcome kind (database_not_found, ...)
	Database string // optional: filter by destination database
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated dead letter results.
type ListResult struct {
	Letters []Letter `json:"dead_letters"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Repository defines the interface for dead letter storage.
type Repository interface {
	Create(ctx context.Context, l *Letter) error
	Get(ctx context.Context, id string) (*Letter, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository stores dead letters in the dead_letters table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new dead letter repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const letterColumns = `id, database_name, retention_policy, consistency, precision,
	kind, retryable, message, point_count, payload, created_at`

// Create inserts a dead letter. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, l *Letter) error {
	if l.ID == "" {
		l.ID = "dl-" + uuid.NewString()[:8]
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dead_letters (`+letterColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Database, l.RetentionPolicy, l.Consistency, l.Precision,
		l.Kind, boolToInt(l.Retryable), l.Message, l.PointCount, l.Payload,
		l.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting dead letter: %w", err)
	}

	return nil
}

// Get returns one dead letter by ID.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*Letter, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+letterColumns+` FROM dead_letters WHERE id = ?`, id)

	l, err := scanLetter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Delete removes a dead letter, typically after a successful replay.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting dead letter: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting dead letter: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns dead letters matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for dead letter queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Database != "" {
		conditions = append(conditions, "database_name = ?")
		args = append(args, filter.Database)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM dead_letters %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting dead letters: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT %s FROM dead_letters %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		letterColumns, where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	defer rows.Close()

	letters := []Letter{}
	for rows.Next() {
		l, err := scanLetter(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dead letters: %w", err)
	}

	return &ListResult{
		Letters: letters,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLetter(s rowScanner) (*Letter, error) {
	var l Letter
	var retryable int
	var createdAt string

	err := s.Scan(&l.ID, &l.Database, &l.RetentionPolicy, &l.Consistency, &l.Precision,
		&l.Kind, &retryable, &l.Message, &l.PointCount, &l.Payload, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning dead letter: %w", err)
	}

	l.Retryable = retryable != 0
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing dead letter timestamp %q: %w", createdAt, err)
	}
	l.CreatedAt = t

	return &l, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
