// ABOUTME: Builds the hierarchy and model snapshot from an ordered model log
// ABOUTME: Classification failures are collected per tx; snapshot failures abort

package txlog

import (
	"fmt"
	"log/slog"
)

// Model is the derived view of a model log owned by one migration run
type Model struct {
	Hierarchy *Hierarchy
	DB        *ModelDB
	Txes      []Tx

	// ClassificationErrors holds the txes the hierarchy could not fold
	ClassificationErrors []error
}

// BuildModel folds every tx into a fresh hierarchy and applies the whole log to
// a fresh snapshot. A tx the hierarchy rejects is logged and skipped so that one
// malformed legacy tx cannot block the build. The snapshot must be consistent:
// the returned error lists every tx it could not apply.
func BuildModel(logger *slog.Logger, txes []Tx) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}

	hierarchy := NewHierarchy()
	db := NewModelDB(hierarchy)
	model := &Model{Hierarchy: hierarchy, DB: db, Txes: txes}

	for _, tx := range txes {
		if err := hierarchy.Tx(tx); err != nil {
			model.ClassificationErrors = append(model.ClassificationErrors, fmt.Errorf("tx %s: %w", tx.ID, err))
		}
	}

	if n := len(model.ClassificationErrors); n > 0 {
		logger.Warn("classification skipped txes", "count", n, "first", model.ClassificationErrors[0])
		for _, err := range model.ClassificationErrors {
			logger.Debug("classification error", "error", err)
		}
	}

	if err := db.AddTxes(txes); err != nil {
		return nil, fmt.Errorf("building model snapshot: %w", err)
	}

	logger.Debug("built local model",
		"txes", len(txes),
		"classes", len(hierarchy.Classes()),
		"objects", db.Len(),
	)
	return model, nil
}
