package analyzer

// Production model types.
const (
	TypeSimpleQuery = "simplequery"
	TypeMetrics     = "metrics"
	TypeTerms       = "terms"
)

// BaseConfig holds the options every production analyzer recognizes.
type BaseConfig struct {
	ESQueryFilter      string `yaml:"es_query_filter"`
	ESDSLFilter        string `yaml:"es_dsl_filter"`
	OutlierType        string `yaml:"outlier_type" validate:"required"`
	OutlierReason      string `yaml:"outlier_reason" validate:"required"`
	OutlierSummary     string `yaml:"outlier_summary" validate:"required"`
	RunModel           bool   `yaml:"run_model"`
	TestModel          bool   `yaml:"test_model"`
	ShouldNotify       bool   `yaml:"should_notify"`
	UseDerivedFields   bool   `yaml:"use_derived_fields"`
	TimestampField     string `yaml:"timestamp_field"`
	HistoryWindowDays  int    `yaml:"history_window_days" validate:"gte=0"`
	HistoryWindowHours int    `yaml:"history_window_hours" validate:"gte=0"`
}

// SetDefaults implements Defaulter.
func (c *BaseConfig) SetDefaults() {
	c.RunModel = true
	c.TimestampField = "timestamp"
}

// TriggerConfig holds the options shared by the aggregating analyzers.
type TriggerConfig struct {
	Aggregator         string   `yaml:"aggregator" validate:"required"`
	Target             string   `yaml:"target" validate:"required"`
	TriggerOn          string   `yaml:"trigger_on" validate:"required,oneof=high low"`
	TriggerMethod      string   `yaml:"trigger_method" validate:"required,oneof=percentile pct_of_max_value pct_of_median_value pct_of_avg_value mad madpos stdev float coeff_of_variation"`
	TriggerSensitivity *float64 `yaml:"trigger_sensitivity" validate:"required,gte=0"`
}

// Sensitivity returns the trigger sensitivity, zero when unset.
func (c TriggerConfig) Sensitivity() float64 {
	if c.TriggerSensitivity == nil {
		return 0
	}
	return *c.TriggerSensitivity
}

// SimpleQueryConfig is the schema of simplequery analyzers.
type SimpleQueryConfig struct {
	BaseConfig `yaml:",inline"`
}

// MetricsConfig is the schema of metrics analyzers.
type MetricsConfig struct {
	BaseConfig    `yaml:",inline"`
	TriggerConfig `yaml:",inline"`
	Metric        string `yaml:"metric" validate:"required,oneof=numerical_value length entropy hex_encoded_length base64_encoded_length url_length relative_english_entropy"`
}

// TermsConfig is the schema of terms analyzers.
type TermsConfig struct {
	BaseConfig        `yaml:",inline"`
	TriggerConfig     `yaml:",inline"`
	TargetCountMethod string `yaml:"target_count_method" validate:"oneof=within_aggregator across_aggregators"`
	MinTargetBuckets  int    `yaml:"min_target_buckets" validate:"gte=0"`
}

// SetDefaults implements Defaulter.
func (c *TermsConfig) SetDefaults() {
	c.BaseConfig.SetDefaults()
	c.TargetCountMethod = "within_aggregator"
}

// SimpleQuery flags every document its query filter returns.
type SimpleQuery struct {
	Base
	Config SimpleQueryConfig
}

// Metrics flags documents whose computed metric deviates within an aggregation.
type Metrics struct {
	Base
	Config MetricsConfig
}

// Terms flags rare or frequent terms within an aggregation.
type Terms struct {
	Base
	Config TermsConfig
}

// DefaultRegistry returns a registry holding the production model types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	Register(r, TypeSimpleQuery, func(d Descriptor, cfg *SimpleQueryConfig) (Analyzer, error) {
		return &SimpleQuery{Base: NewBase(d), Config: *cfg}, nil
	})
	Register(r, TypeMetrics, func(d Descriptor, cfg *MetricsConfig) (Analyzer, error) {
		return &Metrics{Base: NewBase(d), Config: *cfg}, nil
	})
	Register(r, TypeTerms, func(d Descriptor, cfg *TermsConfig) (Analyzer, error) {
		return &Terms{Base: NewBase(d), Config: *cfg}, nil
	})
	return r
}

// Common is implemented by analyzers built from a schema embedding
// BaseConfig.
type Common interface {
	Analyzer
	CommonConfig() BaseConfig
}

// CommonConfig implements Common.
func (a *SimpleQuery) CommonConfig() BaseConfig { return a.Config.BaseConfig }

// CommonConfig implements Common.
func (a *Metrics) CommonConfig() BaseConfig { return a.Config.BaseConfig }

// CommonConfig implements Common.
func (a *Terms) CommonConfig() BaseConfig { return a.Config.BaseConfig }
