package container

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/record-pipeline/internal/application/host"
	"github.com/garyjia/record-pipeline/internal/config"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/internal/domain/event"
	"github.com/garyjia/record-pipeline/internal/domain/workflow"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "c.db"), MaxOpenConns: 4, MaxIdleConns: 2},
		Logger:   config.LoggerConfig{Format: "json"},
		Plugins:  config.PluginsConfig{Leave: config.PluginConfig{Enabled: true}},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Database.Path = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, c.Ready())
	assert.False(t, c.Health(ctx).Overall)

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start")

	health := c.Health(ctx)
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, []string{"LeavePreValidation", "LeavePostUpdate"}, c.Host().Extensions())
	assert.NotNil(t, c.TransactionManager())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(ctx), "start after close")
	assert.Nil(t, c.Records())
}

func TestContainer_BadPluginConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Leave.UnsecureConfig = "strict_balance_lookup: ["

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
	assert.False(t, c.Ready())
}

func TestContainer_DisabledPlugin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Plugins.Leave.Enabled = false

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Empty(t, c.Host().Extensions())
}

func TestContainer_InvokeLeaveRule(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	records := c.Records().CreateRecordService("admin")
	request := entity.NewRecord(entity.LeaveRequestEntity, "lr-1")
	request.Set(entity.AttrLeaveStatus, entity.LeaveStatusApproved)
	request.Set(entity.AttrLeaveType, "T")
	request.Set(entity.AttrNumberOfDays, 2)
	request.Set(entity.AttrCreatedBy, entity.Reference{LogicalName: entity.SystemUserEntity, ID: "U"})
	_, err = records.Create(ctx, request)
	require.NoError(t, err)

	balance := entity.NewRecord(entity.LeaveBalanceEntity, "lb-1")
	balance.Set(entity.AttrEmployeeID, "U")
	balance.Set(entity.AttrLeaveType, "T")
	balance.Set(entity.AttrLeaveBalance, 5)
	_, err = records.Create(ctx, balance)
	require.NoError(t, err)

	result := c.Host().Invoke(ctx, &host.Invocation{
		Stage:       []byte(`"PostOperation"`),
		MessageName: event.MessageUpdate,
		EntityName:  entity.LeaveRequestEntity,
		UserID:      "U",
		Target:      entity.NewRecord(entity.LeaveRequestEntity, "lr-1"),
	})
	require.NoError(t, result.Err)

	got, err := records.Retrieve(ctx, entity.LeaveBalanceEntity, "lb-1", entity.AllColumns())
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.GetFloat(entity.AttrLeaveBalance))
}

func TestContainer_InvokeRejectsSkippedStatus(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	defer c.Close()

	request := entity.NewRecord(entity.LeaveRequestEntity, "lr-1")
	request.Set(entity.AttrLeaveStatus, entity.LeaveStatusDraft)
	request.Set(entity.AttrNumberOfDays, 2)
	_, err = c.Records().CreateRecordService("admin").Create(ctx, request)
	require.NoError(t, err)

	approve := entity.NewRecord(entity.LeaveRequestEntity, "lr-1")
	approve.Set(entity.AttrLeaveStatus, entity.LeaveStatusApproved)

	result := c.Host().Invoke(ctx, &host.Invocation{
		Stage:       []byte(`10`),
		MessageName: event.MessageUpdate,
		EntityName:  entity.LeaveRequestEntity,
		UserID:      "U",
		Target:      approve,
	})
	assert.ErrorIs(t, result.Err, workflow.ErrInvalidTransition)
	assert.False(t, result.OK())
}

func TestLoggerAdapter(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	a := NewLoggerAdapter(zap.New(core))

	a.Info("hello", "path", "/health", "status", 200, 42, "dropped")
	a.Error("failed", "error", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{"path": "/health", "status": int64(200)}, entries[0].ContextMap())
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
