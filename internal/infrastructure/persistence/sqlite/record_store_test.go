package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/internal/domain/event"
	"github.com/garyjia/record-pipeline/internal/plugins/leave"
	"github.com/garyjia/record-pipeline/pkg/database"
)

func newTestStore(t *testing.T) (*RecordStore, *DB) {
	t.Helper()
	logger := zap.NewNop()
	raw, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "records.db"), MaxOpenConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	require.NoError(t, database.NewMigrator(raw, logger).Migrate(context.Background()))

	db := NewDB(raw.DB, logger)
	return NewRecordStore(db), db
}

func TestRecordStore_CreateAndRetrieve(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	svc := store.CreateRecordService("user-1")

	r := entity.NewRecord(entity.LeaveRequestEntity, "")
	r.Set(entity.AttrLeaveStatus, entity.LeaveStatusPending)
	r.Set(entity.AttrNumberOfDays, 2.5)

	id, err := svc.Create(ctx, r)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Empty(t, r.ID, "caller's record is not modified")

	got, err := svc.Retrieve(ctx, entity.LeaveRequestEntity, id, entity.AllColumns())
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, entity.LeaveStatusPending, got.GetString(entity.AttrLeaveStatus))
	assert.Equal(t, 2.5, got.GetFloat(entity.AttrNumberOfDays))

	creator, ok := got.GetReference(entity.AttrCreatedBy)
	require.True(t, ok)
	assert.Equal(t, "user-1", creator.ID)

	projected, err := svc.Retrieve(ctx, entity.LeaveRequestEntity, id, entity.Columns(entity.AttrLeaveStatus))
	require.NoError(t, err)
	assert.Len(t, projected.Attributes, 1)

	_, err = svc.Create(ctx, got)
	assert.Error(t, err, "duplicate id")
}

func TestRecordStore_RetrieveNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.CreateRecordService("u").Retrieve(context.Background(), entity.LeaveRequestEntity, "missing", entity.AllColumns())
	assert.ErrorIs(t, err, port.ErrRecordNotFound)

	err = store.CreateRecordService("u").Update(context.Background(), entity.NewRecord(entity.LeaveRequestEntity, "missing"))
	assert.ErrorIs(t, err, port.ErrRecordNotFound)
}

func TestRecordStore_RetrieveMultiple(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	svc := store.CreateRecordService("admin")

	seed := []struct {
		id       string
		employee interface{}
		leave    string
		balance  float64
		active   bool
	}{
		{"lb-1", "U", "T", 10, true},
		{"lb-2", entity.Reference{LogicalName: entity.SystemUserEntity, ID: "U"}, "S", 4, false},
		{"lb-3", "V", "T", 6, true},
		{"lb-4", "U", "T", 1, false},
	}
	for _, s := range seed {
		r := entity.NewRecord(entity.LeaveBalanceEntity, s.id)
		r.Set(entity.AttrEmployeeID, s.employee)
		r.Set(entity.AttrLeaveType, s.leave)
		r.Set(entity.AttrLeaveBalance, s.balance)
		r.Set("new_active", s.active)
		_, err := svc.Create(ctx, r)
		require.NoError(t, err)
	}

	tests := []struct {
		name       string
		conditions []entity.Condition
		want       []string
	}{
		{"no conditions keeps insertion order", nil, []string{"lb-1", "lb-2", "lb-3", "lb-4"}},
		{"string matches value and reference id", []entity.Condition{entity.Equal(entity.AttrEmployeeID, "U")}, []string{"lb-1", "lb-2", "lb-4"}},
		{"conjunction", []entity.Condition{entity.Equal(entity.AttrEmployeeID, "U"), entity.Equal(entity.AttrLeaveType, "T")}, []string{"lb-1", "lb-4"}},
		{"reference value", []entity.Condition{entity.Equal(entity.AttrEmployeeID, entity.Reference{ID: "U"})}, []string{"lb-2"}},
		{"number", []entity.Condition{entity.Equal(entity.AttrLeaveBalance, 6)}, []string{"lb-3"}},
		{"bool", []entity.Condition{entity.Equal("new_active", true)}, []string{"lb-1", "lb-3"}},
		{"missing attribute", []entity.Condition{entity.Equal("new_note", nil)}, []string{"lb-1", "lb-2", "lb-3", "lb-4"}},
		{"no match", []entity.Condition{entity.Equal(entity.AttrLeaveType, "X")}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := svc.RetrieveMultiple(ctx, entity.NewQuery(entity.LeaveBalanceEntity, entity.Columns(entity.AttrLeaveBalance), tt.conditions...))
			require.NoError(t, err)

			var ids []string
			for _, r := range set.Records {
				ids = append(ids, r.ID)
				assert.Len(t, r.Attributes, 1)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	t.Run("rejects unsafe attribute names", func(t *testing.T) {
		_, err := svc.RetrieveMultiple(ctx, entity.NewQuery(entity.LeaveBalanceEntity, entity.AllColumns(),
			entity.Equal("a') OR 1=1 --", "x")))
		assert.ErrorIs(t, err, ErrInvalidAttribute)
	})

	t.Run("rejects unsupported values", func(t *testing.T) {
		_, err := svc.RetrieveMultiple(ctx, entity.NewQuery(entity.LeaveBalanceEntity, entity.AllColumns(),
			entity.Equal(entity.AttrLeaveType, []string{"T"})))
		assert.Error(t, err)
	})
}

func TestRecordStore_UpdateMerges(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	r := entity.NewRecord(entity.LeaveBalanceEntity, "lb-1")
	r.Set(entity.AttrEmployeeID, "U")
	r.Set(entity.AttrLeaveBalance, 10)
	_, err := store.CreateRecordService("admin").Create(ctx, r)
	require.NoError(t, err)

	session, err := store.OpenSession(ctx, "approver")
	require.NoError(t, err)

	update := entity.NewRecord(entity.LeaveBalanceEntity, "lb-1")
	update.Set(entity.AttrLeaveBalance, 7)
	require.NoError(t, session.Update(ctx, update))
	require.NoError(t, session.Close())

	got, err := store.CreateRecordService("admin").Retrieve(ctx, entity.LeaveBalanceEntity, "lb-1", entity.AllColumns())
	require.NoError(t, err)
	assert.Equal(t, 7.0, got.GetFloat(entity.AttrLeaveBalance))
	assert.Equal(t, "U", got.GetString(entity.AttrEmployeeID))

	modifier, ok := got.GetReference(entity.AttrModifiedBy)
	require.True(t, ok)
	assert.Equal(t, "approver", modifier.ID)
}

func TestDB_WithTransactionRollsBack(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	svc := store.CreateRecordService("admin")

	err := db.WithTransaction(ctx, func(ctx context.Context) error {
		// runs on the transaction carried by ctx
		if _, err := svc.Create(ctx, entity.NewRecord(entity.LeaveRequestEntity, "lr-1")); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = svc.Retrieve(ctx, entity.LeaveRequestEntity, "lr-1", entity.AllColumns())
	assert.ErrorIs(t, err, port.ErrRecordNotFound)
}

func TestRecordStore_LeavePluginEndToEnd(t *testing.T) {
	tests := []struct {
		name      string
		leaveType interface{}
	}{
		{"text leave type", "T"},
		{"numeric leave type code", 100000001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t)
			ctx := context.Background()
			admin := store.CreateRecordService("admin")

			request := entity.NewRecord(entity.LeaveRequestEntity, "lr-1")
			request.Set(entity.AttrLeaveStatus, entity.LeaveStatusApproved)
			request.Set(entity.AttrLeaveType, tt.leaveType)
			request.Set(entity.AttrNumberOfDays, 3)
			request.Set(entity.AttrCreatedBy, entity.Reference{LogicalName: entity.SystemUserEntity, ID: "U"})
			_, err := admin.Create(ctx, request)
			require.NoError(t, err)

			balance := entity.NewRecord(entity.LeaveBalanceEntity, "lb-1")
			balance.Set(entity.AttrEmployeeID, "U")
			balance.Set(entity.AttrLeaveType, tt.leaveType)
			balance.Set(entity.AttrLeaveBalance, 10)
			_, err = admin.Create(ctx, balance)
			require.NoError(t, err)

			plugin, err := leave.NewPostUpdate("strict_balance_lookup: true", "")
			require.NoError(t, err)

			target := entity.NewRecord(entity.LeaveRequestEntity, "lr-1")
			target.Set(entity.AttrLeaveStatus, entity.LeaveStatusApproved)

			err = plugin.Execute(ctx, &port.ServiceProvider{
				Factory: store,
				Execution: &event.ExecutionContext{
					Stage:             event.StagePostOperation,
					MessageName:       event.MessageUpdate,
					PrimaryEntityName: entity.LeaveRequestEntity,
					Depth:             1,
					CorrelationID:     "corr-1",
					InitiatingUserID:  "U",
					UserID:            "U",
					InputParameters:   event.ParameterCollection{event.ParamTarget: target},
				},
			})
			require.NoError(t, err)

			got, err := admin.Retrieve(ctx, entity.LeaveBalanceEntity, "lb-1", entity.AllColumns())
			require.NoError(t, err)
			assert.Equal(t, 7.0, got.GetFloat(entity.AttrLeaveBalance))
		})
	}
}

func TestRecordStore_NumericConditions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	svc := store.CreateRecordService("admin")

	balance := entity.NewRecord(entity.LeaveBalanceEntity, "lb-1")
	balance.Set(entity.AttrLeaveType, 100000001)
	balance.Set(entity.AttrLeaveBalance, 2.5)
	_, err := svc.Create(ctx, balance)
	require.NoError(t, err)

	tests := []struct {
		name  string
		cond  entity.Condition
		count int
	}{
		{"int against stored integer", entity.Equal(entity.AttrLeaveType, 100000001), 1},
		{"float against stored integer", entity.Equal(entity.AttrLeaveType, 100000001.0), 1},
		{"json number against stored integer", entity.Equal(entity.AttrLeaveType, json.Number("100000001")), 1},
		{"float against stored real", entity.Equal(entity.AttrLeaveBalance, 2.5), 1},
		{"other code", entity.Equal(entity.AttrLeaveType, 100000002), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := svc.RetrieveMultiple(ctx, entity.NewQuery(entity.LeaveBalanceEntity, entity.AllColumns(), tt.cond))
			require.NoError(t, err)
			assert.Equal(t, tt.count, set.Len())
		})
	}

	_, err = svc.RetrieveMultiple(ctx, entity.NewQuery(entity.LeaveBalanceEntity, entity.AllColumns(),
		entity.Equal(entity.AttrLeaveType, json.Number("abc"))))
	assert.Error(t, err)
}
