package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/parapet-sh/parapet/internal/aggregate"
	"github.com/parapet-sh/parapet/internal/compliance"
	"github.com/parapet-sh/parapet/internal/connector"
	"github.com/parapet-sh/parapet/internal/contextstore"
	"github.com/parapet-sh/parapet/internal/dispatch"
	"github.com/parapet-sh/parapet/internal/explore"
	"github.com/parapet-sh/parapet/internal/models"
	"github.com/parapet-sh/parapet/internal/score"
	"github.com/parapet-sh/parapet/pkg/logger"
)

// engine bundles the wired assessment stack for one CLI invocation.
type engine struct {
	dispatcher *dispatch.Dispatcher
	store      contextstore.Store
}

// buildEngine wires connectors, store, aggregator and dispatcher from the
// loaded configuration and ambient AWS credentials.
func buildEngine(ctx context.Context) (*engine, error) {
	log := logger.GetGlobalLogger()

	awsCfg, err := connector.LoadAWSConfig(ctx, cfg.Scope.Region, cfg.Scope.Profile)
	if err != nil {
		return nil, err
	}

	scope := models.AccountScope{AccountID: cfg.Scope.AccountID, Region: cfg.Scope.Region}
	scope, err = connector.ResolveScope(ctx, awsCfg, scope)
	if err != nil {
		return nil, err
	}
	log.Debug("Resolved account scope", "account_id", scope.AccountID, "region", scope.Region)

	connectors, err := connector.NewAll(cfg.EnabledSources(), awsCfg, connector.Options{
		Logger:        log,
		Timeout:       cfg.Aggregator.SourceTimeout,
		RetryAttempts: cfg.Aggregator.RetryAttempts,
	})
	if err != nil {
		return nil, err
	}

	store, err := contextstore.New(cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	aggregator := aggregate.NewAggregator(connectors, store, score.NewScorer(cfg.PillarWeights()), aggregate.Options{
		Logger:         log,
		MaxWorkers:     cfg.Aggregator.MaxWorkers,
		Deadline:       cfg.Aggregator.Deadline,
		CacheTTL:       cfg.Cache.TTL,
		RecommendLimit: cfg.Recommendations.Limit,
	})

	dispatcher := dispatch.NewDispatcher(
		aggregator,
		explore.NewExplorer(awsCfg, log),
		compliance.NewChecker(awsCfg, log),
		scope,
		log,
	)

	return &engine{dispatcher: dispatcher, store: store}, nil
}

func (e *engine) close() {
	if err := e.store.Close(); err != nil {
		logger.GetGlobalLogger().Warn("Failed to close context store", "error", err)
	}
}

// runOperation wires one dispatch round-trip and prints the response data
// as indented JSON. A response carrying an error becomes a command error.
func runOperation(ctx context.Context, req dispatch.Request) error {
	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.close()

	resp := eng.dispatcher.Dispatch(ctx, req)
	if resp.Status != "ok" {
		return fmt.Errorf("%s: %s", resp.Kind, resp.Message)
	}
	return printJSON(resp.Data)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
