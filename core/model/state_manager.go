// Package model provides the fitted-state bookkeeping, estimator interfaces
// and persistence shared by the estimators in this module.
package model

import (
	"sync"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// StateManager tracks whether an estimator has been fitted and the shape of
// the data it was fitted on. It is safe for concurrent use.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	NFeatures int
	NSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// SetFitted marks the model as fitted on data of the given shape.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// Reset returns the manager to the unfitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = false
	s.NFeatures = 0
	s.NSamples = 0
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming modelName and method when the
// model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// RequireFeatures checks that a matrix passed to method has the number of
// columns seen during fitting.
func (s *StateManager) RequireFeatures(method string, got int) error {
	nFeatures, _ := s.GetDimensions()
	if got != nFeatures {
		return errors.NewDimensionError(method, nFeatures, got, 1)
	}
	return nil
}
