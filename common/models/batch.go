package models

// BatchItemStatus is the terminal/non-terminal state of one (image, kind)
// job within a BatchJob (§3 E:BatchJob).
type BatchItemStatus string

const (
	BatchItemPending BatchItemStatus = "pending"
	BatchItemSuccess BatchItemStatus = "success"
	BatchItemFailed  BatchItemStatus = "failed"
)

// BatchItemError is the per-item failure record (§4.7).
type BatchItemError struct {
	ImageHash    string `json:"image_hash"`
	Kind         string `json:"kind"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RetryHint    string `json:"retry_hint,omitempty"`
}

// BatchItemResult is one aligned slot of the BatchResult's item array.
type BatchItemResult struct {
	ImageHash string          `json:"image_hash"`
	Kind      string          `json:"kind"`
	Status    BatchItemStatus `json:"status"`
	FromCache bool            `json:"from_cache"`
	Result    any             `json:"result,omitempty"`
	Error     *BatchItemError `json:"error,omitempty"`
}

// BatchSummary is the §4.7 result summary.
type BatchSummary struct {
	Total               int   `json:"total"`
	Success             int   `json:"success"`
	Failed              int   `json:"failed"`
	PartialSuccessCount int   `json:"partial_success_count"`
	CacheHitCount       int   `json:"cache_hit_count"`
	ProcessingTimeMs    int64 `json:"processing_time_ms"`
}

// BatchResult is C7's BatchAnalyze return value (§3 E:BatchJob, §6
// BatchAnalyze), aligned to the input (image × kind) Cartesian product.
type BatchResult struct {
	BatchID string            `json:"batch_id"`
	Items   []BatchItemResult `json:"items"`
	Summary BatchSummary      `json:"summary"`
	Partial bool              `json:"partial"`
}
