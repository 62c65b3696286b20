// Package memory provides an in-process record store that satisfies the
// platform record ports. It backs tests and the dry-run mode of the host.
package memory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
)

// Op names a record service operation
type Op string

const (
	OpRetrieve         Op = "Retrieve"
	OpRetrieveMultiple Op = "RetrieveMultiple"
	OpCreate           Op = "Create"
	OpUpdate           Op = "Update"
)

// Call is one recorded record service call
type Call struct {
	Op          Op
	UserID      string
	LogicalName string
	ID          string
}

type recordKey struct {
	logicalName string
	id          string
}

// Store keeps records in insertion order and records every call made against it
type Store struct {
	mu      sync.RWMutex
	records map[recordKey]*entity.Record
	order   []recordKey
	calls   []Call

	// FailOn makes the named operation return the error instead of running
	FailOn map[Op]error

	// CloseErr is returned by every session Close
	CloseErr error

	opened atomic.Int64
	closed atomic.Int64
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		records: make(map[recordKey]*entity.Record),
	}
}

// Put stores a copy of the record without recording a call
func (s *Store) Put(r *entity.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(r.Clone())
}

// Get returns a copy of the stored record
func (s *Store) Get(logicalName, id string) (*entity.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordKey{logicalName, id}]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Calls returns the recorded calls in order
func (s *Store) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Call, len(s.calls))
	copy(result, s.calls)
	return result
}

// CallsOf returns the recorded calls of one operation
func (s *Store) CallsOf(op Op) []Call {
	var result []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			result = append(result, c)
		}
	}
	return result
}

// SessionsOpened returns how many sessions have been opened
func (s *Store) SessionsOpened() int64 { return s.opened.Load() }

// SessionsClosed returns how many sessions have been closed
func (s *Store) SessionsClosed() int64 { return s.closed.Load() }

// CreateRecordService implements port.ServiceFactory
func (s *Store) CreateRecordService(userID string) port.RecordService {
	return &service{store: s, userID: userID}
}

// OpenSession implements port.ServiceFactory
func (s *Store) OpenSession(ctx context.Context, userID string) (port.Session, error) {
	s.opened.Add(1)
	return &session{service: service{store: s, userID: userID}}, nil
}

func (s *Store) put(r *entity.Record) {
	key := recordKey{r.LogicalName, r.ID}
	if _, ok := s.records[key]; !ok {
		s.order = append(s.order, key)
	}
	s.records[key] = r
}

func (s *Store) record(c Call) error {
	s.calls = append(s.calls, c)
	if err, ok := s.FailOn[c.Op]; ok {
		return err
	}
	return nil
}

// service is a record service acting for one user
type service struct {
	store  *Store
	userID string
}

func (v *service) Retrieve(ctx context.Context, logicalName, id string, columns entity.ColumnSet) (*entity.Record, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: OpRetrieve, UserID: v.userID, LogicalName: logicalName, ID: id}); err != nil {
		return nil, err
	}
	r, ok := s.records[recordKey{logicalName, id}]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", logicalName, id, port.ErrRecordNotFound)
	}
	return r.Project(columns), nil
}

func (v *service) RetrieveMultiple(ctx context.Context, query *entity.Query) (*entity.RecordSet, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: OpRetrieveMultiple, UserID: v.userID, LogicalName: query.EntityName}); err != nil {
		return nil, err
	}
	set := &entity.RecordSet{EntityName: query.EntityName}
	for _, key := range s.order {
		r := s.records[key]
		if query.Matches(r) {
			set.Records = append(set.Records, r.Project(query.Columns))
		}
	}
	return set, nil
}

func (v *service) Create(ctx context.Context, record *entity.Record) (string, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: OpCreate, UserID: v.userID, LogicalName: record.LogicalName, ID: record.ID}); err != nil {
		return "", err
	}
	stored := record.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := s.records[recordKey{stored.LogicalName, stored.ID}]; exists {
		return "", fmt.Errorf("%s %s already exists", stored.LogicalName, stored.ID)
	}
	if !stored.Contains(entity.AttrCreatedBy) && v.userID != "" {
		stored.Set(entity.AttrCreatedBy, entity.Reference{LogicalName: entity.SystemUserEntity, ID: v.userID})
	}
	s.put(stored)
	return stored.ID, nil
}

func (v *service) Update(ctx context.Context, record *entity.Record) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.record(Call{Op: OpUpdate, UserID: v.userID, LogicalName: record.LogicalName, ID: record.ID}); err != nil {
		return err
	}
	existing, ok := s.records[recordKey{record.LogicalName, record.ID}]
	if !ok {
		return fmt.Errorf("%s %s: %w", record.LogicalName, record.ID, port.ErrRecordNotFound)
	}
	merged := existing.Clone()
	for k, val := range record.Attributes {
		merged.Attributes[k] = val
	}
	if v.userID != "" {
		merged.Set(entity.AttrModifiedBy, entity.Reference{LogicalName: entity.SystemUserEntity, ID: v.userID})
	}
	s.put(merged)
	return nil
}

// session counts every release so tests can assert the scoped lifetime
type session struct {
	service
}

func (s *session) Close() error {
	s.store.closed.Add(1)
	return s.store.CloseErr
}
