package quant

import (
	"math"

	"github.com/irfndi/market-gateway/internal/models"
)

// CompositeWeights blend the three ratios into one ranking score. They are not normalized.
type CompositeWeights struct {
	Sharpe  float64 `json:"sharpe_w"`
	Sortino float64 `json:"sortino_w"`
	Calmar  float64 `json:"calmar_w"`
}

// DefaultCompositeWeights returns the 0.4/0.4/0.2 blend
func DefaultCompositeWeights() CompositeWeights {
	return CompositeWeights{Sharpe: 0.4, Sortino: 0.4, Calmar: 0.2}
}

// Validate rejects negative, non-finite or all-zero weights
func (w CompositeWeights) Validate() error {
	for name, v := range map[string]float64{"sharpe_w": w.Sharpe, "sortino_w": w.Sortino, "calmar_w": w.Calmar} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return models.InvalidConfigf("%s must be a non-negative number, got %v", name, v)
		}
	}
	if w.Sharpe == 0 && w.Sortino == 0 && w.Calmar == 0 {
		return models.InvalidConfigf("composite weights must not all be zero")
	}
	return nil
}

// CompositeScore is the raw weighted sum of the ratios
func CompositeScore(r Ratios, w CompositeWeights) float64 {
	return w.Sharpe*r.Sharpe + w.Sortino*r.Sortino + w.Calmar*r.Calmar
}
