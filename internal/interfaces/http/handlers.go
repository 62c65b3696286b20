package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/record-pipeline/internal/application/host"
	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/pkg/utils"
)

// UserHeader carries the acting user of record calls
const UserHeader = "X-User-Id"

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// HealthFunc reports component health; nil means always healthy
type HealthFunc func(ctx context.Context) (bool, interface{})

// Handlers contains all HTTP request handlers
type Handlers struct {
	host    *host.Host
	records port.ServiceFactory
	health  HealthFunc
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(h *host.Host, records port.ServiceFactory, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{
		host:    h,
		records: records,
		health:  health,
		logger:  logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// ExecuteResponse is the outcome of one hosted invocation
type ExecuteResponse struct {
	OK            bool           `json:"ok"`
	Error         string         `json:"error,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Target        *entity.Record `json:"target,omitempty"`
	Trace         []string       `json:"trace"`
}

// CreateRecordResponse carries the id of a created record
type CreateRecordResponse struct {
	ID string `json:"id"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	healthy, components := true, interface{}(nil)
	if h.health != nil {
		healthy, components = h.health(c.Request.Context())
	}

	response := HealthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
	status := http.StatusOK
	if !healthy {
		response.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, Response{Success: healthy, Data: response})
}

// CreateRecord handles POST /api/v1/records
func (h *Handlers) CreateRecord(c *gin.Context) {
	var record entity.Record
	if err := c.ShouldBindJSON(&record); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid record body", err)
		return
	}
	if err := utils.ValidateLogicalName(record.LogicalName); err != nil {
		h.fail(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if err := utils.ValidateRecordID(record.ID); err != nil {
		h.fail(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if record.Attributes == nil {
		record.Attributes = make(map[string]interface{})
	}

	id, err := h.records.CreateRecordService(c.GetHeader(UserHeader)).Create(c.Request.Context(), &record)
	if err != nil {
		h.fail(c, http.StatusUnprocessableEntity, "failed to create record", err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: CreateRecordResponse{ID: id}})
}

// GetRecord handles GET /api/v1/records/:entity/:id
func (h *Handlers) GetRecord(c *gin.Context) {
	logicalName := c.Param("entity")
	if err := utils.ValidateLogicalName(logicalName); err != nil {
		h.fail(c, http.StatusBadRequest, err.Error(), err)
		return
	}

	record, err := h.records.CreateRecordService(c.GetHeader(UserHeader)).
		Retrieve(c.Request.Context(), logicalName, c.Param("id"), entity.AllColumns())
	if errors.Is(err, port.ErrRecordNotFound) {
		h.fail(c, http.StatusNotFound, "record not found", err)
		return
	}
	if err != nil {
		h.fail(c, http.StatusInternalServerError, "failed to retrieve record", err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: record})
}

// Execute handles POST /api/v1/execute
func (h *Handlers) Execute(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, ExecuteResponse{Error: "failed to read body", Trace: []string{}})
		return
	}

	inv, err := host.ParseInvocation(body)
	if err != nil {
		h.logger.Error("Invalid invocation", "error", err)
		c.JSON(http.StatusBadRequest, ExecuteResponse{Error: err.Error(), Trace: []string{}})
		return
	}

	result := h.host.Invoke(c.Request.Context(), inv)

	response := ExecuteResponse{
		OK:            result.OK(),
		CorrelationID: result.CorrelationID,
		Target:        result.Target,
		Trace:         result.Trace,
	}
	if response.Trace == nil {
		response.Trace = []string{}
	}
	if result.Err != nil {
		response.Error = result.Err.Error()
	}

	c.JSON(executeStatus(result.Err), response)
}

// executeStatus maps an invocation error to a status code
func executeStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case host.IsInvalid(err):
		return http.StatusBadRequest
	case errors.Is(err, port.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *Handlers) fail(c *gin.Context, status int, msg string, err error) {
	h.logger.Error(msg, "error", err, "path", c.Request.URL.Path)
	c.JSON(status, Response{Success: false, Error: msg})
}
