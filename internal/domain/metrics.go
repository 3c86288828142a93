package domain

// EngineMetrics is the JSON snapshot served by GET /v1/metrics/engine.
type EngineMetrics struct {
	StatesRecomputed  int64   `json:"states_recomputed"`
	MalformedRecords  int64   `json:"malformed_records"`
	SchemaFallbacks   int64   `json:"schema_fallbacks"`
	RegimeComparisons int64   `json:"regime_comparisons"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	Period            string  `json:"period"`
}
