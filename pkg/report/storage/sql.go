package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"mercator-hq/reportkeeper/pkg/report"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name string

	// trueLiteral and falseLiteral are written into SET lists for is_deleted.
	trueLiteral  string
	falseLiteral string

	// mergeContent renders the SET expression that writes the top-level
	// keys of a patch into the content column, with its arguments.
	mergeContent func(content map[string]any) (string, []any, error)

	// numbered placeholders ($1, $2, ...) instead of "?".
	numbered bool

	isUniqueViolation func(error) bool
}

var sqliteDialect = dialect{
	name:         "sqlite",
	trueLiteral:  "1",
	falseLiteral: "0",
	mergeContent: sqliteMergeContent,
	isUniqueViolation: func(err error) bool {
		// Both drivers surface SQLite's own message for constraint errors.
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	},
}

// jsonSetPairs bounds the path/value pairs per json_set call so the argument
// count stays under SQLITE_MAX_FUNCTION_ARG.
const jsonSetPairs = 50

// sqliteMergeContent sets each key with json_set, nesting calls for large
// patches. json_patch is not used: it merges nested objects and drops keys
// set to null.
func sqliteMergeContent(content map[string]any) (string, []any, error) {
	expr := "content"
	var args []any
	for chunk := range slices.Chunk(slices.Sorted(maps.Keys(content)), jsonSetPairs) {
		var b strings.Builder
		b.WriteString("json_set(")
		b.WriteString(expr)
		for _, key := range chunk {
			// SQLite JSON paths have no escape for a quote inside a label.
			if strings.Contains(key, `"`) {
				return "", nil, fmt.Errorf("content key %q: double quotes are not supported", key)
			}
			value, err := json.Marshal(content[key])
			if err != nil {
				return "", nil, fmt.Errorf("encode content key %q: %w", key, err)
			}
			b.WriteString(", ?, json(?)")
			args = append(args, `$."`+key+`"`, string(value))
		}
		b.WriteString(")")
		expr = b.String()
	}
	return expr, args, nil
}

// rebind rewrites "?" placeholders for dialects that number them. Queries
// never contain a literal "?".
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// sqlStore implements report.Store over database/sql. Timestamps are stored
// as Unix nanoseconds so range comparisons are exact and driver independent.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Create inserts a new report.
func (s *sqlStore) Create(ctx context.Context, r *report.Report) error {
	content, err := encodeContent(r.Content)
	if err != nil {
		return report.NewStorageError(s.dialect.name, "create", err)
	}

	_, err = s.db.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID, r.OwnerID, r.BranchID, string(r.Stage),
		nullableNanos(r.Stage1CompletedAt), nullableNanos(r.Stage2CompletedAt),
		r.IsDeleted, nullableNanos(r.DeletedAt), string(r.ExpirationReason),
		toNanos(r.CreatedAt), toNanos(r.LastEdited), content,
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			err = fmt.Errorf("report %s: %w", r.ID, report.ErrAlreadyExists)
		}
		return report.NewStorageError(s.dialect.name, "create", err)
	}
	return nil
}

// Get returns the report with the given id.
func (s *sqlStore) Get(ctx context.Context, id string) (*report.Report, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+reportColumns+` FROM reports WHERE id = ?`), id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, report.ErrNotFound
	}
	if err != nil {
		return nil, report.NewStorageError(s.dialect.name, "get", err)
	}
	return r, nil
}

// Update applies set when the precondition holds, in a single statement.
func (s *sqlStore) Update(ctx context.Context, id string, when report.Precondition, set report.Patch) (*report.Report, error) {
	if err := s.update(ctx, id, when, set); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *sqlStore) update(ctx context.Context, id string, when report.Precondition, set report.Patch) error {
	setClause, setArgs, err := s.dialect.setClause(set)
	if err != nil {
		return report.NewStorageError(s.dialect.name, "update", err)
	}
	if setClause == "" {
		// Nothing to write; still honour the precondition.
		return s.checkCondition(ctx, id, when)
	}

	whereClause, whereArgs := buildPreconditionClause(when)
	query := "UPDATE reports SET " + setClause + " WHERE id = ?"
	args := append(setArgs, id)
	if whereClause != "" {
		query += " AND " + whereClause
		args = append(args, whereArgs...)
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return report.NewStorageError(s.dialect.name, "update", err)
	}
	return s.resolveAffected(ctx, res, id)
}

// Delete removes the report when the precondition holds.
func (s *sqlStore) Delete(ctx context.Context, id string, when report.Precondition) error {
	whereClause, whereArgs := buildPreconditionClause(when)
	query := "DELETE FROM reports WHERE id = ?"
	args := []any{id}
	if whereClause != "" {
		query += " AND " + whereClause
		args = append(args, whereArgs...)
	}

	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return report.NewStorageError(s.dialect.name, "delete", err)
	}
	return s.resolveAffected(ctx, res, id)
}

// resolveAffected turns a zero-row write into ErrNotFound or
// ErrConditionFailed.
func (s *sqlStore) resolveAffected(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return report.NewStorageError(s.dialect.name, "rows_affected", err)
	}
	if n > 0 {
		return nil
	}
	exists, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return report.ErrNotFound
	}
	return report.ErrConditionFailed
}

func (s *sqlStore) checkCondition(ctx context.Context, id string, when report.Precondition) error {
	r, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !when.Matches(r) {
		return report.ErrConditionFailed
	}
	return nil
}

func (s *sqlStore) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT 1 FROM reports WHERE id = ?"), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, report.NewStorageError(s.dialect.name, "exists", err)
	}
	return true, nil
}

// Query retrieves reports matching the query filters.
func (s *sqlStore) Query(ctx context.Context, q *report.Query) ([]*report.Report, error) {
	whereClause, args := buildQueryClause(q)
	field := sortColumn(q.OrderField())

	sqlQuery := "SELECT " + reportColumns + " FROM reports"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	sqlQuery += fmt.Sprintf(" ORDER BY %s ASC, id ASC", field)
	if q.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(sqlQuery), args...)
	if err != nil {
		return nil, report.NewStorageError(s.dialect.name, "query", err)
	}
	defer rows.Close()

	results := []*report.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, report.NewStorageError(s.dialect.name, "scan", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, report.NewStorageError(s.dialect.name, "query", err)
	}
	return results, nil
}

// Count returns the number of reports matching the query filters.
func (s *sqlStore) Count(ctx context.Context, q *report.Query) (int64, error) {
	whereClause, args := buildQueryClause(q)

	sqlQuery := "SELECT COUNT(*) FROM reports"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(sqlQuery), args...).Scan(&count); err != nil {
		return 0, report.NewStorageError(s.dialect.name, "count", err)
	}
	return count, nil
}

// ApplyBatch applies each mutation as its own statement. A failing mutation
// does not roll back the others.
func (s *sqlStore) ApplyBatch(ctx context.Context, muts []report.Mutation) ([]error, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	errs := make([]error, len(muts))
	for i, m := range muts {
		if err := ctx.Err(); err != nil {
			errs[i] = err
			continue
		}
		switch m.Kind {
		case report.MutationUpdate:
			errs[i] = s.update(ctx, m.ID, m.When, m.Set)
		case report.MutationDelete:
			errs[i] = s.Delete(ctx, m.ID, m.When)
		default:
			errs[i] = fmt.Errorf("unknown mutation kind %d", m.Kind)
		}
	}
	return errs, nil
}

// Ping verifies the database connection.
func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return report.NewStorageError(s.dialect.name, "ping", err)
	}
	return nil
}

// Close closes the database.
func (s *sqlStore) Close() error {
	if err := s.db.Close(); err != nil {
		return report.NewStorageError(s.dialect.name, "close", err)
	}
	s.logger.Debug("store closed")
	return nil
}

// setClause renders a Patch as an UPDATE SET list.
func (d dialect) setClause(p report.Patch) (string, []any, error) {
	var sets []string
	var args []any

	if p.Stage != nil {
		sets = append(sets, "stage = ?")
		args = append(args, string(*p.Stage))
	}
	if p.Stage1CompletedAt != nil {
		sets = append(sets, "stage1_completed_at = ?")
		args = append(args, toNanos(*p.Stage1CompletedAt))
	}
	if p.Stage2CompletedAt != nil {
		sets = append(sets, "stage2_completed_at = ?")
		args = append(args, toNanos(*p.Stage2CompletedAt))
	}
	if p.MarkDeleted != nil {
		sets = append(sets, "is_deleted = "+d.trueLiteral, "deleted_at = ?")
		args = append(args, toNanos(*p.MarkDeleted))
	}
	if p.ClearDeleted {
		sets = append(sets, "is_deleted = "+d.falseLiteral, "deleted_at = NULL")
	}
	if p.ExpirationReason != nil {
		sets = append(sets, "expiration_reason = ?")
		args = append(args, string(*p.ExpirationReason))
	}
	if p.LastEdited != nil {
		sets = append(sets, "last_edited = ?")
		args = append(args, toNanos(*p.LastEdited))
	}
	if len(p.Content) > 0 {
		expr, contentArgs, err := d.mergeContent(p.Content)
		if err != nil {
			return "", nil, err
		}
		sets = append(sets, "content = "+expr)
		args = append(args, contentArgs...)
	}

	return strings.Join(sets, ", "), args, nil
}

// buildPreconditionClause renders a Precondition as a WHERE fragment.
func buildPreconditionClause(p report.Precondition) (string, []any) {
	var conds []string
	var args []any

	if p.IsDeleted != nil {
		conds = append(conds, "is_deleted = ?")
		args = append(args, *p.IsDeleted)
	}
	if p.Stage != nil {
		conds = append(conds, "stage = ?")
		args = append(args, string(*p.Stage))
	}
	if p.StageNot != nil {
		conds = append(conds, "stage <> ?")
		args = append(args, string(*p.StageNot))
	}
	if p.DeletedBefore != nil {
		conds = append(conds, "deleted_at IS NOT NULL AND deleted_at < ?")
		args = append(args, toNanos(*p.DeletedBefore))
	}
	if p.DeletedNotBefore != nil {
		conds = append(conds, "deleted_at IS NOT NULL AND deleted_at >= ?")
		args = append(args, toNanos(*p.DeletedNotBefore))
	}
	if p.LastEditedBefore != nil {
		conds = append(conds, "last_edited < ?")
		args = append(args, toNanos(*p.LastEditedBefore))
	}

	return strings.Join(conds, " AND "), args
}

// buildQueryClause renders a Query (filters and keyset cursor) as a WHERE
// clause.
func buildQueryClause(q *report.Query) (string, []any) {
	var conds []string
	var args []any

	if q.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, q.OwnerID)
	}
	if q.BranchID != "" {
		conds = append(conds, "branch_id = ?")
		args = append(args, q.BranchID)
	}

	filter, filterArgs := buildPreconditionClause(report.Precondition{
		IsDeleted:        q.IsDeleted,
		StageNot:         q.StageNot,
		DeletedBefore:    q.DeletedBefore,
		LastEditedBefore: q.LastEditedBefore,
	})
	if filter != "" {
		conds = append(conds, filter)
		args = append(args, filterArgs...)
	}

	if q.After != nil {
		col := sortColumn(q.OrderField())
		at := toNanos(q.After.At)
		conds = append(conds, fmt.Sprintf("(%s > ? OR (%s = ? AND id > ?))", col, col))
		args = append(args, at, at, q.After.ID)
	}

	return strings.Join(conds, " AND "), args
}

// sortColumn maps a sort field to a whitelisted SQL expression. A missing
// deleted_at sorts first, matching report.SortField.Value.
func sortColumn(f report.SortField) string {
	switch f {
	case report.SortByLastEdited:
		return "last_edited"
	case report.SortByDeletedAt:
		return "COALESCE(deleted_at, -9223372036854775807 - 1)"
	default:
		return "created_at"
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*report.Report, error) {
	var (
		r                 report.Report
		stage, reason     string
		stage1, stage2    sql.NullInt64
		deletedAt         sql.NullInt64
		isDeleted         bool
		createdAt, edited int64
		content           string
	)

	err := row.Scan(&r.ID, &r.OwnerID, &r.BranchID, &stage, &stage1, &stage2,
		&isDeleted, &deletedAt, &reason, &createdAt, &edited, &content)
	if err != nil {
		return nil, err
	}

	r.Stage = report.Stage(stage)
	r.Stage1CompletedAt = fromNullable(stage1)
	r.Stage2CompletedAt = fromNullable(stage2)
	r.IsDeleted = isDeleted
	r.DeletedAt = fromNullable(deletedAt)
	r.ExpirationReason = report.ExpirationReason(reason)
	r.CreatedAt = fromNanos(createdAt)
	r.LastEdited = fromNanos(edited)

	if content != "" && content != "{}" {
		if err := json.Unmarshal([]byte(content), &r.Content); err != nil {
			return nil, fmt.Errorf("decode content of report %s: %w", r.ID, err)
		}
	}

	return &r, nil
}

func encodeContent(content map[string]any) (string, error) {
	if len(content) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}
	return string(b), nil
}

// toNanos stores the zero time as MinInt64 so it keeps sorting first.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return math.MinInt64
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == math.MinInt64 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toNanos(*t)
}

func fromNullable(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
