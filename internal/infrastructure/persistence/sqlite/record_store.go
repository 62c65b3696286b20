package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
)

// ErrInvalidAttribute is returned for attribute names that cannot be addressed in a JSON path
var ErrInvalidAttribute = errors.New("invalid attribute name")

var attributeName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// RecordStore keeps platform records as JSON documents in the records table
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a record store on a migrated database
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// CreateRecordService implements port.ServiceFactory
func (s *RecordStore) CreateRecordService(userID string) port.RecordService {
	return &recordService{exec: s.db.DB, begin: s.db.DB, logger: s.db.logger, userID: userID}
}

// OpenSession implements port.ServiceFactory. The session pins one pooled
// connection until Close.
func (s *RecordStore) OpenSession(ctx context.Context, userID string) (port.Session, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &session{
		recordService: recordService{exec: conn, begin: conn, logger: s.db.logger, userID: userID},
		conn:          conn,
	}, nil
}

type recordService struct {
	exec   executor
	begin  beginner
	logger *zap.Logger
	userID string
}

func (s *recordService) runner(ctx context.Context) executor {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return s.exec
}

// Retrieve implements port.RecordService
func (s *recordService) Retrieve(ctx context.Context, logicalName, id string, columns entity.ColumnSet) (*entity.Record, error) {
	r, err := s.get(ctx, logicalName, id)
	if err != nil {
		return nil, err
	}
	return r.Project(columns), nil
}

func (s *recordService) get(ctx context.Context, logicalName, id string) (*entity.Record, error) {
	var raw string
	err := s.runner(ctx).QueryRowContext(ctx,
		"SELECT attributes FROM records WHERE logical_name = ? AND id = ?",
		logicalName, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", logicalName, id, port.ErrRecordNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve %s %s: %w", logicalName, id, err)
	}
	return decodeRecord(logicalName, id, raw)
}

// RetrieveMultiple implements port.RecordService
func (s *recordService) RetrieveMultiple(ctx context.Context, query *entity.Query) (*entity.RecordSet, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	where, args, err := buildWhere(query)
	if err != nil {
		return nil, err
	}

	rows, err := s.runner(ctx).QueryContext(ctx,
		"SELECT id, attributes FROM records WHERE "+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", query.EntityName, err)
	}
	defer rows.Close()

	set := &entity.RecordSet{EntityName: query.EntityName}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", query.EntityName, err)
		}
		r, err := decodeRecord(query.EntityName, id, raw)
		if err != nil {
			return nil, err
		}
		set.Records = append(set.Records, r.Project(query.Columns))
	}
	return set, rows.Err()
}

// Create implements port.RecordService
func (s *recordService) Create(ctx context.Context, record *entity.Record) (string, error) {
	stored := record.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if !stored.Contains(entity.AttrCreatedBy) && s.userID != "" {
		stored.Set(entity.AttrCreatedBy, entity.Reference{LogicalName: entity.SystemUserEntity, ID: s.userID})
	}

	raw, err := json.Marshal(stored.Attributes)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", stored.LogicalName, err)
	}

	_, err = s.runner(ctx).ExecContext(ctx,
		"INSERT INTO records (logical_name, id, attributes, created_by, modified_by) VALUES (?, ?, ?, ?, ?)",
		stored.LogicalName, stored.ID, string(raw), s.userID, s.userID,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create %s %s: %w", stored.LogicalName, stored.ID, err)
	}

	s.logger.Debug("Record created",
		zap.String("entity", stored.LogicalName),
		zap.String("id", stored.ID),
		zap.String("user_id", s.userID))
	return stored.ID, nil
}

// Update implements port.RecordService. Attributes are merged into the stored
// record inside one transaction.
func (s *recordService) Update(ctx context.Context, record *entity.Record) error {
	return withTransaction(ctx, s.begin, s.logger, func(ctx context.Context) error {
		existing, err := s.get(ctx, record.LogicalName, record.ID)
		if err != nil {
			return err
		}
		for k, v := range record.Attributes {
			existing.Attributes[k] = v
		}
		if s.userID != "" {
			existing.Set(entity.AttrModifiedBy, entity.Reference{LogicalName: entity.SystemUserEntity, ID: s.userID})
		}

		raw, err := json.Marshal(existing.Attributes)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", record.LogicalName, err)
		}

		_, err = s.runner(ctx).ExecContext(ctx,
			"UPDATE records SET attributes = ?, modified_by = ?, updated_at = CURRENT_TIMESTAMP WHERE logical_name = ? AND id = ?",
			string(raw), s.userID, record.LogicalName, record.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update %s %s: %w", record.LogicalName, record.ID, err)
		}
		return nil
	})
}

type session struct {
	recordService
	conn *sql.Conn
}

// Close returns the pinned connection to the pool
func (s *session) Close() error {
	return s.conn.Close()
}

func decodeRecord(logicalName, id, raw string) (*entity.Record, error) {
	r := entity.NewRecord(logicalName, id)
	if err := json.Unmarshal([]byte(raw), &r.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", logicalName, id, err)
	}
	if r.Attributes == nil {
		r.Attributes = make(map[string]interface{})
	}
	return r, nil
}

// buildWhere compiles equality conditions to json_extract comparisons. A
// string value also matches a reference attribute carrying that id.
func buildWhere(q *entity.Query) (string, []interface{}, error) {
	clauses := []string{"logical_name = ?"}
	args := []interface{}{q.EntityName}

	for _, c := range q.Conditions {
		if !attributeName.MatchString(c.Attribute) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidAttribute, c.Attribute)
		}
		path := "$." + c.Attribute
		idPath := path + ".id"

		switch v := c.Value.(type) {
		case string:
			clauses = append(clauses, "(json_extract(attributes, ?) = ? OR json_extract(attributes, ?) = ?)")
			args = append(args, path, v, idPath, v)
		case entity.Reference:
			clauses = append(clauses, "json_extract(attributes, ?) = ?")
			args = append(args, idPath, v.ID)
		case float64, float32, int, int32, int64, json.Number:
			// bind as REAL so stored INTEGER and REAL values compare numerically
			f, err := numberArg(v)
			if err != nil {
				return "", nil, fmt.Errorf("condition on %s: %w", c.Attribute, err)
			}
			clauses = append(clauses, "json_extract(attributes, ?) = ?")
			args = append(args, path, f)
		case bool:
			clauses = append(clauses, "json_extract(attributes, ?) = ?")
			args = append(args, path, v)
		case nil:
			clauses = append(clauses, "json_extract(attributes, ?) IS NULL")
			args = append(args, path)
		default:
			return "", nil, fmt.Errorf("unsupported condition value %T for %s", c.Value, c.Attribute)
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

func numberArg(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

var _ port.ServiceFactory = (*RecordStore)(nil)
