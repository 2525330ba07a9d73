package indicators

import (
	"FxPulse/internal/domain/models"

	"github.com/moznion/go-optional"
)

// VolumeMA yields [mean, variance] of the trailing volumes.
type VolumeMA struct {
	period int
}

func NewVolumeMA(period int) (*VolumeMA, error) {
	if err := positive("indicators.volume_period", period); err != nil {
		return nil, err
	}
	return &VolumeMA{period: period}, nil
}

func (v *VolumeMA) Kind() models.IndicatorKind { return models.IndicatorVolumeMA }

func (v *VolumeMA) Warmup() int { return v.period }

func (v *VolumeMA) Compute(s Series) optional.Option[[]float64] {
	if len(s.Volume) < v.period {
		return optional.None[[]float64]()
	}
	mean, variance := meanVariance(s.Volume[len(s.Volume)-v.period:])
	return optional.Some([]float64{mean, variance})
}
