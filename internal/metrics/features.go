package metrics

import (
	"strings"
	"sync"

	"botflow/config"
)

// Feature identifies a toggleable family of metrics.
type Feature string

const (
	// FeatureUsedWeight gates exchange API weight metrics.
	FeatureUsedWeight Feature = "used_weight"
	// FeatureChannelSize gates channel buffer occupancy metrics.
	FeatureChannelSize Feature = "channel_size"
)

var (
	featureMu sync.RWMutex
	features  = map[Feature]bool{
		FeatureUsedWeight:  true,
		FeatureChannelSize: true,
	}
)

// Configure applies the metrics section of the application config. Disabled
// families are silently dropped at emit time.
func Configure(cfg config.MetricsConfig) {
	featureMu.Lock()
	features[FeatureUsedWeight] = cfg.UsedWeight
	features[FeatureChannelSize] = cfg.ChannelSize
	featureMu.Unlock()
}

// IsFeatureEnabled reports whether the given metric family is enabled.
func IsFeatureEnabled(feature Feature) bool {
	featureMu.RLock()
	defer featureMu.RUnlock()
	return features[feature]
}

// metricFeature maps a metric name onto the feature family gating it. Most
// metrics are ungated.
func metricFeature(name string) (Feature, bool) {
	switch {
	case strings.HasPrefix(name, "used_weight"):
		return FeatureUsedWeight, true
	case strings.HasSuffix(name, "_buffer_length"):
		return FeatureChannelSize, true
	}
	return "", false
}
