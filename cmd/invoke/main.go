// Command invoke runs a single invocation document against the configured
// database and prints the trace lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/record-pipeline/internal/application/host"
	"github.com/garyjia/record-pipeline/internal/application/port"
	"github.com/garyjia/record-pipeline/internal/config"
	"github.com/garyjia/record-pipeline/internal/container"
	"github.com/garyjia/record-pipeline/internal/domain/entity"
	"github.com/garyjia/record-pipeline/pkg/utils"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	invocationPath := flag.String("invocation", "", "path to the invocation JSON document")
	seedPath := flag.String("seed", "", "optional JSON array of records to create before the invocation")
	flag.Parse()

	if *invocationPath == "" {
		fmt.Fprintln(os.Stderr, "usage: invoke -invocation <file.json> [-config <file>] [-seed <records.json>]")
		os.Exit(2)
	}

	if err := run(*configPath, *invocationPath, *seedPath); err != nil {
		fmt.Fprintf(os.Stderr, "invoke: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, invocationPath, seedPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// trace lines go to stdout; keep the log on stderr
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: "stderr",
		Format:     cfg.Logger.Format,
		Service:    "record-pipeline-invoke",
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	if seedPath != "" {
		if err := seed(ctx, c, seedPath); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(invocationPath)
	if err != nil {
		return fmt.Errorf("failed to read invocation: %w", err)
	}
	inv, err := host.ParseInvocation(data)
	if err != nil {
		return err
	}

	result := c.Host().Invoke(ctx, inv)
	for _, line := range result.Trace {
		fmt.Println(line)
	}
	if result.Err != nil {
		logger.Error("Invocation failed",
			zap.String("correlation_id", result.CorrelationID),
			zap.Error(result.Err))
		return result.Err
	}
	return nil
}

func seed(ctx context.Context, c *container.Container, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed: %w", err)
	}
	records, err := parseSeed(data)
	if err != nil {
		return err
	}
	return createRecords(ctx, c.Records().CreateRecordService("seed"), records)
}

// parseSeed decodes a JSON array of records. Null entries and records without
// a logical name are rejected.
func parseSeed(data []byte) ([]*entity.Record, error) {
	var records []*entity.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	for i, r := range records {
		if r == nil {
			return nil, fmt.Errorf("seed entry %d is null", i)
		}
		if r.LogicalName == "" {
			return nil, fmt.Errorf("seed entry %d: logical_name is required", i)
		}
		if r.Attributes == nil {
			r.Attributes = make(map[string]interface{})
		}
	}
	return records, nil
}

func createRecords(ctx context.Context, svc port.RecordService, records []*entity.Record) error {
	for _, r := range records {
		if _, err := svc.Create(ctx, r); err != nil {
			return fmt.Errorf("failed to seed %s %s: %w", r.LogicalName, r.ID, err)
		}
	}
	return nil
}
