package service

import (
	"fmt"
	"sync/atomic"

	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/gate"
)

// ThresholdService holds the process-wide confidence thresholds. Reads are
// lock-free; operator updates swap the whole mapping atomically so an
// in-flight turn always observes one consistent snapshot.
type ThresholdService struct {
	current atomic.Pointer[gate.Thresholds]
}

// NewThresholdService builds the initial thresholds from config.
func NewThresholdService(cfg *config.Orchestrator) (*ThresholdService, error) {
	th, err := thresholdsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &ThresholdService{}
	s.current.Store(th)
	return s, nil
}

// Current returns the active threshold snapshot. Callers must treat it as
// read-only; updates go through Swap.
func (s *ThresholdService) Current() *gate.Thresholds {
	return s.current.Load()
}

// Swap validates and atomically installs a replacement threshold set.
func (s *ThresholdService) Swap(th *gate.Thresholds) error {
	if err := validateThresholds(th); err != nil {
		return err
	}
	s.current.Store(th.Clone())
	return nil
}

func thresholdsFromConfig(cfg *config.Orchestrator) (*gate.Thresholds, error) {
	th := &gate.Thresholds{
		Stages:               make(map[session.Stage]float64, len(cfg.Thresholds)),
		Corroboration:        make(map[session.Stage]float64, len(cfg.Corroboration)),
		RequireCorroboration: cfg.RequireCorroboration,
	}
	for name, v := range cfg.Thresholds {
		th.Stages[session.Stage(name)] = v
	}
	for name, v := range cfg.Corroboration {
		th.Corroboration[session.Stage(name)] = v
	}
	for _, name := range cfg.CriticalStages {
		th.Critical = append(th.Critical, session.Stage(name))
	}

	if err := validateThresholds(th); err != nil {
		return nil, err
	}
	return th, nil
}

func validateThresholds(th *gate.Thresholds) error {
	for stage, v := range th.Stages {
		if !session.Valid(stage) {
			return fmt.Errorf("threshold for unknown stage %q: %w", stage, domain.ErrValidation)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold for %s out of [0, 1]: %w", stage, domain.ErrValidation)
		}
	}
	for stage, v := range th.Corroboration {
		if !session.Valid(stage) {
			return fmt.Errorf("corroboration floor for unknown stage %q: %w", stage, domain.ErrValidation)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("corroboration floor for %s out of [0, 1]: %w", stage, domain.ErrValidation)
		}
	}
	for _, stage := range th.Critical {
		if !session.Valid(stage) {
			return fmt.Errorf("critical stage %q unknown: %w", stage, domain.ErrValidation)
		}
	}
	return nil
}
