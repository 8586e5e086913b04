package estimator

import (
	"fmt"

	"github.com/Borislavv/go-estimator/pkg/config"
	"github.com/Borislavv/go-estimator/pkg/hash"
)

// NewFromConfig creates an Estimator shaped by a sketch config section.
func NewFromConfig[K hash.Key](cfg *config.Sketch) (*Estimator[K], error) {
	alg, err := hash.ParseAlgorithm(cfg.Hash)
	if err != nil {
		return nil, fmt.Errorf("estimator: %w", err)
	}
	if err = validate(cfg.Hashes, cfg.Slots); err != nil {
		return nil, err
	}
	seeds, err := hash.Seeds(cfg.Hashes)
	if err != nil {
		return nil, fmt.Errorf("estimator: seed rows: %w", err)
	}
	return build[K](cfg.Slots, alg, seeds)
}
