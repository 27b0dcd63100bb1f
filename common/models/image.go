// Package models holds the data-model entities shared across visionserve's
// service layer: ImageRecord (§3 E:ImageRecord), the analysis artifact
// union (§3 E:AnalysisArtifact), and batch/render request shapes. Adapted
// from the teacher's common/models/artifact.go, which modeled workflow
// catalog entries rather than image records.
package models

import "time"

// ImageRecord is the content-addressed metadata row for one uploaded image
// (§3 E:ImageRecord). Identity is ImageHash; two records with equal
// ImageHash are forbidden, which dedup collapsing enforces at the
// repository layer.
type ImageRecord struct {
	ImageHash      string    `db:"image_hash" json:"image_hash"`
	PerceptualHash string    `db:"perceptual_hash" json:"perceptual_hash"`
	Filename       string    `db:"filename" json:"filename"`
	SizeBytes      int64     `db:"size_bytes" json:"size_bytes"`
	MimeType       string    `db:"mime_type" json:"mime_type"`
	BlobURL        string    `db:"blob_url" json:"blob_url"`
	Width          int       `db:"width" json:"width"`
	Height         int       `db:"height" json:"height"`
	UploadTime     time.Time `db:"upload_time" json:"upload_time"`
}

// SimilarImage is one entry of a FindSimilar / CheckDuplicate result,
// carrying the Hamming distance that made it a match.
type SimilarImage struct {
	ImageRecord
	HammingDistance int `json:"hamming_distance"`
}

// IngestStatus discriminates the outcome of Ingest/UploadImage (§4.1).
type IngestStatus string

const (
	IngestStatusStored    IngestStatus = "stored"
	IngestStatusDuplicate IngestStatus = "duplicate"
	IngestStatusSimilar   IngestStatus = "similar"
)

// IngestResult is C1's Ingest return value.
type IngestResult struct {
	Record  ImageRecord
	Status  IngestStatus
	Similar []SimilarImage
}

// ImagePage is one page of a ListImages response.
type ImagePage struct {
	Records    []ImageRecord `json:"records"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListImagesFilter narrows a ListImages page by mime type, matching the
// original's offset/limit REST pagination (SPEC_FULL.md's supplemented
// ListImages cursor semantics).
type ListImagesFilter struct {
	MimeType string
	Cursor   string
	Limit    int
}
