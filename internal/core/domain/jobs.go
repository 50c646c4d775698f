package domain

import "time"

// Job names understood by the scheduler and the CLI.
const (
	JobDiscovery   = "discovery"
	JobEnrichment  = "enrichment"
	JobGeography   = "geography"
	JobMaintenance = "maintenance"
)

// JobNames lists every schedulable job in a stable order.
var JobNames = []string{JobDiscovery, JobEnrichment, JobGeography, JobMaintenance}

// IngestOutcome is the decision taken by the ingest gate for one draft.
type IngestOutcome string

const (
	IngestInserted IngestOutcome = "inserted"
	IngestSkipped  IngestOutcome = "skipped"
	IngestFailed   IngestOutcome = "failed"
)

// DiscoveryStats summarises a discovery run.
type DiscoveryStats struct {
	Requests      int `json:"requests"`
	RateLimited   int `json:"rate_limited"`
	Errors        int `json:"errors"`
	Candidates    int `json:"candidates"`
	InvalidDrafts int `json:"invalid_drafts"`
	Inserted      int `json:"inserted"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
}

// Record folds an ingest outcome into the counters.
func (s *DiscoveryStats) Record(o IngestOutcome) {
	switch o {
	case IngestInserted:
		s.Inserted++
	case IngestSkipped:
		s.Skipped++
	case IngestFailed:
		s.Failed++
	}
}

// Merge adds other into s.
func (s *DiscoveryStats) Merge(other DiscoveryStats) {
	s.Requests += other.Requests
	s.RateLimited += other.RateLimited
	s.Errors += other.Errors
	s.Candidates += other.Candidates
	s.InvalidDrafts += other.InvalidDrafts
	s.Inserted += other.Inserted
	s.Skipped += other.Skipped
	s.Failed += other.Failed
}

// EnrichmentStats summarises an enrichment run.
type EnrichmentStats struct {
	Candidates      int  `json:"candidates"`
	Enriched        int  `json:"enriched"`
	NotFound        int  `json:"not_found"`
	Skipped         int  `json:"skipped"`
	CallsUsed       int  `json:"calls_used"`
	RateLimited     int  `json:"rate_limited"`
	BudgetExhausted bool `json:"budget_exhausted"`
}

// GeographyStats summarises a geography resolution run.
type GeographyStats struct {
	Candidates     int `json:"candidates"`
	ByDictionary   int `json:"by_dictionary"`
	ByReverse      int `json:"by_reverse"`
	CacheHits      int `json:"cache_hits"`
	Unresolved     int `json:"unresolved"`
	Failed         int `json:"failed"`
	ProviderCalls  int `json:"provider_calls"`
	RateLimitWaits int `json:"rate_limit_waits"`
}

// StepResult records the outcome of one maintenance step.
type StepResult struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Affected int    `json:"affected"`
	Error    string `json:"error,omitempty"`
}

// CleanupReport is the structured artifact written by the maintenance sweeper.
type CleanupReport struct {
	GeneratedAt       time.Time      `json:"generated_at"`
	TotalPlaces       int            `json:"total_places"`
	WithImages        int            `json:"with_images"`
	ImagePercentage   float64        `json:"image_percentage"`
	ByCategory        map[string]int `json:"by_category"`
	BySource          map[string]int `json:"by_source"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	AssetsPurged      int            `json:"assets_purged"`
	Steps             []StepResult   `json:"steps"`
}

// JobRun is the last known execution of a job.
type JobRun struct {
	Job        string    `json:"job"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
	Summary    any       `json:"summary,omitempty"`
}

// Duration of the run.
func (r JobRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
