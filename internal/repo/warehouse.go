package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// SQLWarehouse answers authoritative lookups with parameterized SQL. Queries are written with "?"
// placeholders and rebound for drivers that expect "$n".
type SQLWarehouse struct {
	db      *sql.DB
	tables  config.WarehouseTables
	queries map[string]string
	dollar  bool
	timeout time.Duration
}

// OpenWarehouse opens and pings the configured database.
func OpenWarehouse(ctx context.Context, cfg config.WarehouseConfig) (*SQLWarehouse, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("warehouse dsn not configured: %w", utils.ErrNotConfigured)
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}
	return NewSQLWarehouse(db, cfg), nil
}

// NewSQLWarehouse wraps an existing pool.
func NewSQLWarehouse(db *sql.DB, cfg config.WarehouseConfig) *SQLWarehouse {
	tables := cfg.Tables
	defaults := config.Default().Warehouse.Tables
	tables.Entities = firstNonEmpty(tables.Entities, defaults.Entities)
	tables.FailedRecords = firstNonEmpty(tables.FailedRecords, defaults.FailedRecords)
	tables.Companies = firstNonEmpty(tables.Companies, defaults.Companies)
	tables.ValidationErrors = firstNonEmpty(tables.ValidationErrors, defaults.ValidationErrors)
	queries := cfg.Queries
	if queries == nil {
		queries = config.DefaultBranchQueries()
	}
	return &SQLWarehouse{
		db:      db,
		tables:  tables,
		queries: queries,
		dollar:  cfg.Placeholder == "dollar",
		timeout: cfg.QueryTimeout,
	}
}

// Close releases the pool.
func (w *SQLWarehouse) Close() error {
	return w.db.Close()
}

// FindIdentifier looks up an exact identifier match in the entities table.
func (w *SQLWarehouse) FindIdentifier(ctx context.Context, kind models.IdentifierType, value string) (*models.WarehouseMatch, error) {
	q := fmt.Sprintf(`SELECT entity_id, company_id, created_at FROM %s WHERE id_type = ? AND id_value = ? ORDER BY created_at LIMIT 1`, w.tables.Entities)
	return w.findMatch(ctx, q, w.tables.Entities, kind, value)
}

// FindFailedRecord looks up the identifier among records that failed ingestion.
func (w *SQLWarehouse) FindFailedRecord(ctx context.Context, kind models.IdentifierType, value string) (*models.WarehouseMatch, error) {
	q := fmt.Sprintf(`SELECT entity_id, company_id, failed_at FROM %s WHERE id_type = ? AND id_value = ? ORDER BY failed_at DESC LIMIT 1`, w.tables.FailedRecords)
	return w.findMatch(ctx, q, w.tables.FailedRecords, kind, value)
}

func (w *SQLWarehouse) findMatch(ctx context.Context, query, table string, kind models.IdentifierType, value string) (*models.WarehouseMatch, error) {
	rows, err := w.query(ctx, query, string(kind), value)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	row := rows[0]
	at, _ := utils.ParseTimestamp(row[2])
	return &models.WarehouseMatch{
		EntityID:  firstNonEmpty(row[0], value),
		Type:      kind,
		Value:     value,
		Table:     table,
		CompanyID: row[1],
		At:        at,
	}, nil
}

// FindCompanies returns companies whose name matches case-insensitively.
func (w *SQLWarehouse) FindCompanies(ctx context.Context, name string) ([]models.Company, error) {
	q := fmt.Sprintf(`SELECT company_id, name FROM %s WHERE LOWER(name) = LOWER(?) ORDER BY company_id LIMIT 10`, w.tables.Companies)
	rows, err := w.query(ctx, q, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	out := make([]models.Company, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Company{ID: r[0], Name: r[1]})
	}
	return out, nil
}

// Lifecycle returns creation and termination times, or nil when the entity is unknown.
func (w *SQLWarehouse) Lifecycle(ctx context.Context, entityID string) (*models.Lifecycle, error) {
	q := fmt.Sprintf(`SELECT created_at, terminated_at FROM %s WHERE entity_id = ? ORDER BY created_at LIMIT 1`, w.tables.Entities)
	rows, err := w.query(ctx, q, entityID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	created, err := utils.ParseTimestamp(rows[0][0])
	if err != nil {
		return nil, nil
	}
	lc := &models.Lifecycle{EntityID: entityID, CreatedAt: created}
	if terminated, err := utils.ParseTimestamp(rows[0][1]); err == nil {
		lc.TerminatedAt = terminated
	}
	return lc, nil
}

// ValidationErrors returns recorded validation failures ordered by time.
func (w *SQLWarehouse) ValidationErrors(ctx context.Context, entityID string) ([]models.ValidationError, error) {
	q := fmt.Sprintf(`SELECT code, message, occurred_at FROM %s WHERE entity_id = ? ORDER BY occurred_at`, w.tables.ValidationErrors)
	rows, err := w.query(ctx, q, entityID)
	if err != nil {
		return nil, err
	}
	out := make([]models.ValidationError, 0, len(rows))
	for _, r := range rows {
		at, err := utils.ParseTimestamp(r[2])
		if err != nil {
			continue
		}
		out = append(out, models.ValidationError{Code: r[0], Message: r[1], OccurredAt: at})
	}
	return out, nil
}

// EntityRecord returns the warehouse state of an entity, or nil when unknown.
func (w *SQLWarehouse) EntityRecord(ctx context.Context, entityID string) (*models.EntityRecord, error) {
	q := fmt.Sprintf(`SELECT state, company_id, source, created_at, updated_at FROM %s WHERE entity_id = ? ORDER BY updated_at DESC LIMIT 1`, w.tables.Entities)
	rows, err := w.query(ctx, q, entityID)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	r := rows[0]
	created, _ := utils.ParseTimestamp(r[3])
	updated, _ := utils.ParseTimestamp(r[4])
	return &models.EntityRecord{
		EntityID:  entityID,
		State:     r[0],
		CompanyID: r[1],
		Source:    r[2],
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// ResolveKey maps a "company:identifier" compound key to an entity id. It returns "" when no entity
// matches.
func (w *SQLWarehouse) ResolveKey(ctx context.Context, compound string) (string, error) {
	company, value, ok := strings.Cut(compound, ":")
	if !ok || company == "" || value == "" {
		return "", fmt.Errorf("compound key %q must look like company:identifier", compound)
	}
	q := fmt.Sprintf(`SELECT entity_id FROM %s WHERE company_id = ? AND id_value = ? ORDER BY created_at LIMIT 1`, w.tables.Entities)
	rows, err := w.query(ctx, q, company, value)
	if err != nil || len(rows) == 0 {
		return "", err
	}
	return rows[0][0], nil
}

// BranchRows runs the named timeline query for entityID.
func (w *SQLWarehouse) BranchRows(ctx context.Context, branch, entityID string) ([]models.Row, error) {
	q, ok := w.queries[branch]
	if !ok {
		return nil, fmt.Errorf("no warehouse query for branch %q", branch)
	}
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	rows, err := w.db.QueryContext(ctx, w.rebind(q), entityID)
	if err != nil {
		return nil, fmt.Errorf("warehouse %s: %w", branch, classifySQLErr(err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []models.Row
	for rows.Next() {
		values, err := scanStrings(rows, len(cols))
		if err != nil {
			return nil, err
		}
		row := make(models.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// query runs q and returns every column rendered as a string.
func (w *SQLWarehouse) query(ctx context.Context, q string, args ...any) ([][]string, error) {
	ctx, cancel := w.withTimeout(ctx)
	defer cancel()

	rows, err := w.db.QueryContext(ctx, w.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("warehouse query: %w", classifySQLErr(err))
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out [][]string
	for rows.Next() {
		values, err := scanStrings(rows, len(cols))
		if err != nil {
			return nil, err
		}
		out = append(out, values)
	}
	return out, rows.Err()
}

func (w *SQLWarehouse) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if w.timeout > 0 {
		return context.WithTimeout(ctx, w.timeout)
	}
	return context.WithCancel(ctx)
}

// rebind rewrites "?" placeholders outside quoted literals as "$1", "$2", ...
func (w *SQLWarehouse) rebind(q string) string {
	if !w.dollar {
		return q
	}
	var b strings.Builder
	n := 0
	inQuote := false
	for _, r := range q {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == '?' && !inQuote:
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanStrings(rows *sql.Rows, n int) ([]string, error) {
	raw := make([]any, n)
	ptrs := make([]any, n)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i, v := range raw {
		out[i] = formatSQLValue(v)
	}
	return out, nil
}

func formatSQLValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func classifySQLErr(err error) error {
	if utils.IsTransient(err) {
		return utils.Transient(err)
	}
	return err
}
