package engine

import "time"

// Options configures the memory engine.
type Options struct {
	// TopicCap bounds topics extracted per memory.
	TopicCap int
	// EntityCap bounds entities extracted per memory.
	EntityCap int
	// RelatedFanOut bounds RELATED_TO edges created per indexed memory.
	RelatedFanOut int
	// RelatedStrength is the strength stamped on new RELATED_TO edges.
	RelatedStrength float64

	// DrainBatch is how many queue entries one indexer pass claims.
	DrainBatch int
	// MinPollInterval is the indexer backoff floor after an idle pass.
	MinPollInterval time.Duration
	// MaxPollInterval is the indexer backoff ceiling.
	MaxPollInterval time.Duration

	// QueryCacheSize bounds the query-embedding cache. Zero means the
	// default; negative disables caching.
	QueryCacheSize int
	// QueryCacheTTL expires cached query embeddings.
	QueryCacheTTL time.Duration

	// SemanticFloor is the minimum cosine similarity for semantic hits.
	// Zero means the default; negative accepts any similarity.
	SemanticFloor float64
	// MaxContextDepth clamps graph traversal depth for contextual recall.
	MaxContextDepth int

	Clock func() time.Time
}

// DefaultOptions returns the recommended engine defaults.
func DefaultOptions() Options {
	return Options{
		TopicCap:        3,
		EntityCap:       3,
		RelatedFanOut:   5,
		RelatedStrength: 0.5,
		DrainBatch:      10,
		MinPollInterval: 250 * time.Millisecond,
		MaxPollInterval: 2 * time.Second,
		QueryCacheSize:  256,
		QueryCacheTTL:   5 * time.Minute,
		SemanticFloor:   0.65,
		MaxContextDepth: 5,
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.TopicCap == 0 {
		o.TopicCap = defaults.TopicCap
	}
	if o.EntityCap == 0 {
		o.EntityCap = defaults.EntityCap
	}
	if o.RelatedFanOut == 0 {
		o.RelatedFanOut = defaults.RelatedFanOut
	}
	if o.RelatedStrength == 0 {
		o.RelatedStrength = defaults.RelatedStrength
	}
	if o.DrainBatch == 0 {
		o.DrainBatch = defaults.DrainBatch
	}
	if o.MinPollInterval == 0 {
		o.MinPollInterval = defaults.MinPollInterval
	}
	if o.MaxPollInterval == 0 {
		o.MaxPollInterval = defaults.MaxPollInterval
	}
	if o.QueryCacheSize == 0 {
		o.QueryCacheSize = defaults.QueryCacheSize
	}
	if o.QueryCacheTTL == 0 {
		o.QueryCacheTTL = defaults.QueryCacheTTL
	}
	if o.SemanticFloor == 0 {
		o.SemanticFloor = defaults.SemanticFloor
	}
	if o.MaxContextDepth == 0 {
		o.MaxContextDepth = defaults.MaxContextDepth
	}
	if o.MaxContextDepth > defaults.MaxContextDepth {
		o.MaxContextDepth = defaults.MaxContextDepth
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}
