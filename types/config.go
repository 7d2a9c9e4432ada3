package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose    bool             `mapstructure:"verbose"`
	Config     string           `mapstructure:"config"`
	Feature    FeatureConfig    `mapstructure:"feature" validate:"required"`
	Similarity SimilarityConfig `mapstructure:"similarity" validate:"required"`
	Thresholds ThresholdConfig  `mapstructure:"thresholds" validate:"required"`
	Extractor  ExtractorConfig  `mapstructure:"extractor" validate:"required"`
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Storage    StorageConfig    `mapstructure:"storage" validate:"required"`
}

// FeatureConfig describes the embedding space produced by the feature
// extractor. Every stored and queried vector must have this dimension.
type FeatureConfig struct {
	Dimension int `mapstructure:"dimension" validate:"required,min=1"`
}

// SimilarityConfig selects the scoring scheme and its tuning knobs.
type SimilarityConfig struct {
	// Scheme picks the blending formula: "full" (3-term blend plus
	// amplitude estimation) or "fast" (2-term cosine blend).
	Scheme string `mapstructure:"scheme" validate:"required,oneof=full fast"`
	// PrecisionBits is the amplitude-estimation precision exponent P;
	// the enhancement factor is 1/2^P.
	PrecisionBits int `mapstructure:"precisionBits" validate:"min=1,max=16"`
	// EnableEntanglement turns on the O(D^2) entanglement sub-score.
	// Off by default; it is too slow for the per-candidate hot path.
	EnableEntanglement bool `mapstructure:"enableEntanglement"`
}

// ThresholdConfig holds the confidence thresholds applied to ranked
// results. Loaded once at startup, immutable afterwards.
type ThresholdConfig struct {
	// GoodConfidence is the minimum score for a candidate to appear in
	// results at all. 0 disables threshold filtering.
	GoodConfidence float64 `mapstructure:"goodConfidence" validate:"min=0,max=1"`
	// HighConfidence is the minimum score to count a result as a high
	// confidence match.
	HighConfidence float64 `mapstructure:"highConfidence" validate:"required,min=0,max=1"`
	// ExactMatch is the minimum score to call a near-perfect match.
	ExactMatch float64 `mapstructure:"exactMatch" validate:"required,min=0,max=1,gtefield=HighConfidence"`
}

// ExtractorConfig holds settings for the feature extraction server.
type ExtractorConfig struct {
	BaseURL        string `mapstructure:"baseURL" validate:"required,url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds" validate:"omitempty,min=1,max=600"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	// DataDir is the directory holding the sqlite database and stored
	// image files.
	DataDir string `mapstructure:"dataDir" validate:"required"`
}
