// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/research-agent/internal/aggregate"
	"github.com/pdiddy/research-agent/internal/analysis"
	"github.com/pdiddy/research-agent/internal/evaluate"
	"github.com/pdiddy/research-agent/internal/memory"
	"github.com/pdiddy/research-agent/internal/model"
	"github.com/pdiddy/research-agent/internal/report"
	"github.com/pdiddy/research-agent/internal/workflow"
	"github.com/pdiddy/research-agent/pkg/types"
)

// pipeline holds the components of one workflow engine.
type pipeline struct {
	engine      *workflow.Engine
	analyzer    *analysis.Stage
	checkpoints *workflow.Store
	registry    *model.Registry
	recall      *memory.Recall
}

// newPipeline builds every workflow collaborator from cfg. forceModel, when
// set, pins analysis to one registered model.
func newPipeline(cfg *types.AgentConfig, forceModel string) (*pipeline, error) {
	registry, err := model.FromConfig(cfg.Models, &http.Client{Timeout: cfg.Models.GenerationTimeout})
	if err != nil {
		return nil, err
	}

	var gen model.Generator = registry
	if cfg.Cache.Enabled {
		cache, err := memory.NewCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		gen = memory.NewCachedGenerator(registry, cache)
	}

	p := &pipeline{registry: registry}
	var past analysis.PastContext
	var mem workflow.Memory
	if cfg.Memory.Enabled {
		recall, err := memory.OpenRecall(cfg.Memory.Path)
		if err != nil {
			zap.L().Warn("past research unavailable", zap.String("path", cfg.Memory.Path), zap.Error(err))
		} else {
			p.recall = recall
			past = recall
			mem = recall
		}
	}

	store, err := workflow.NewStore(cfg.Workflow.CheckpointDir)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.checkpoints = store

	p.analyzer = analysis.New(gen, past, analysis.Config{
		Model:       forceModel,
		MaxRetries:  2,
		RecallLimit: cfg.Memory.RecallLimit,
	})
	engine, err := workflow.New(workflow.Deps{
		Collector:   aggregate.New(aggregate.NewAdapters(cfg.Sources), cfg.Sources.Concurrency),
		Analyzer:    p.analyzer,
		Renderer:    report.Renderer{},
		Evaluator:   evaluate.Evaluator{},
		Checkpoints: store,
		Memory:      mem,
	}, workflow.Options{
		QualityThreshold: cfg.Workflow.QualityThreshold,
		MaxRefinements:   cfg.Workflow.MaxRefinements,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.engine = engine
	return p, nil
}

// Close releases loaded models and the memory database.
func (p *pipeline) Close() {
	p.registry.UnloadAll()
	if p.recall != nil {
		if err := p.recall.Close(); err != nil {
			zap.L().Warn("closing memory", zap.Error(err))
		}
	}
}
