// Package service holds visionserve's C1-C8 domain components: the
// Content-Address Store, Blob Store Adapter, Vision Primitives Client,
// Natural-Element Analyzer, Annotation Renderer, Batch Orchestrator, and
// Request Coordinator.
package service

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec // content-addressing hash, not a security boundary (§4.1)
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
	"strings"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/dsp/fourier"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/parkvision/visionserve/common/apierr"
	"github.com/parkvision/visionserve/common/logger"
	"github.com/parkvision/visionserve/common/models"
	"github.com/parkvision/visionserve/cmd/api/repository"
)

// phashSize is the grayscale reduction's side length before the DCT-II
// transform; phashBlock is the low-frequency block used to build the
// 64-bit signature (SPEC_FULL.md Resolved Open Question 1).
const (
	phashSize  = 32
	phashBlock = 8
)

var validMimeTypes = map[string]bool{
	"image/jpeg": true, "image/png": true, "image/gif": true,
	"image/bmp": true, "image/webp": true,
}

// CASService implements C1: content-addressed ingestion, dedup, and
// perceptual-similarity lookup. Grounded on the teacher's
// cmd/orchestrator/service/cas.go (hash-then-Exists-then-Create dedup
// flow), adapted from a flat sha256 content digest to the two-hash
// (MD5 exact + DCT perceptual) scheme §4.1 requires.
type CASService struct {
	repo  *repository.ImageRepository
	blobs *BlobStore
	log   *logger.Logger

	similarityThreshold int
	maxUploadBytes       int64
}

// NewCASService constructs a CASService.
func NewCASService(repo *repository.ImageRepository, blobs *BlobStore, log *logger.Logger, similarityThreshold int, maxUploadBytes int64) *CASService {
	return &CASService{
		repo:                 repo,
		blobs:                blobs,
		log:                  log,
		similarityThreshold:  similarityThreshold,
		maxUploadBytes:       maxUploadBytes,
	}
}

// ComputeImageHash returns the 32-hex-char MD5 digest identifying exact
// byte content (§3 E:ImageRecord, §8 property 1: hash determinism).
func ComputeImageHash(content []byte) string {
	sum := md5.Sum(content) //nolint:gosec
	return fmt.Sprintf("%x", sum)
}

// ComputePerceptualHash computes the 64-bit DCT-II average hash described
// in SPEC_FULL.md's resolution of Open Question 1: resize to a 32x32
// grayscale reduction, take the top-left 8x8 block of the 2D DCT-II
// coefficients (excluding the DC term from the mean), and set bit i when
// coefficient i exceeds the block's mean.
func ComputePerceptualHash(img image.Image) (string, error) {
	gray := imaging.Grayscale(imaging.Resize(img, phashSize, phashSize, imaging.Lanczos))

	rows := make([][]float64, phashSize)
	for y := 0; y < phashSize; y++ {
		row := make([]float64, phashSize)
		for x := 0; x < phashSize; x++ {
			c := gray.At(x, y)
			r, _, _, _ := c.RGBA()
			row[x] = float64(r >> 8)
		}
		rows[y] = row
	}

	// 2D DCT-II: rows then columns, each via gonum's 1D DCT-II transformer.
	dct := fourier.NewDCT(phashSize)
	transformed := make([][]float64, phashSize)
	for y := 0; y < phashSize; y++ {
		transformed[y] = dct.Transform(nil, rows[y])
	}
	for x := 0; x < phashSize; x++ {
		col := make([]float64, phashSize)
		for y := 0; y < phashSize; y++ {
			col[y] = transformed[y][x]
		}
		col = dct.Transform(nil, col)
		for y := 0; y < phashSize; y++ {
			transformed[y][x] = col[y]
		}
	}

	var block []float64
	acSum := 0.0
	for y := 0; y < phashBlock; y++ {
		for x := 0; x < phashBlock; x++ {
			v := transformed[y][x]
			block = append(block, v)
			if x == 0 && y == 0 {
				continue // exclude the DC term from the mean per the resolved definition
			}
			acSum += v
		}
	}
	mean := acSum / float64(len(block)-1)

	var hash uint64
	for i, v := range block {
		if v > mean {
			hash |= 1 << uint(i)
		}
	}
	return fmt.Sprintf("%016x", hash), nil
}

// HammingDistance64 returns the number of differing bits between two
// 16-hex-char perceptual hashes.
func HammingDistance64(a, b string) (int, error) {
	var x, y uint64
	if _, err := fmt.Sscanf(a, "%016x", &x); err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", a, err)
	}
	if _, err := fmt.Sscanf(b, "%016x", &y); err != nil {
		return 0, fmt.Errorf("parse hash %q: %w", b, err)
	}
	return bits.OnesCount64(x ^ y), nil
}

// Ingest implements §4.1's Ingest/UploadImage: validate, hash, dedup,
// store. Metadata is committed only after a successful blob write.
func (s *CASService) Ingest(ctx context.Context, content []byte, filename, mimeType string) (*models.IngestResult, error) {
	if !validMimeTypes[strings.ToLower(mimeType)] {
		return nil, apierr.Validation(fmt.Sprintf("unsupported mime type: %s", mimeType), nil)
	}
	if int64(len(content)) > s.maxUploadBytes {
		return nil, apierr.Validation(fmt.Sprintf("upload exceeds max size of %d bytes", s.maxUploadBytes), nil)
	}

	imageHash := ComputeImageHash(content)

	if existing, err := s.repo.GetByHash(ctx, imageHash); err != nil {
		return nil, apierr.Storage("failed to check existing image record", err)
	} else if existing != nil {
		s.log.Info("duplicate upload, dedup collapsed", "image_hash", imageHash)
		return &models.IngestResult{Record: *existing, Status: models.IngestStatusDuplicate}, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, apierr.Validation("unable to decode image", err)
	}
	bounds := decoded.Bounds()

	perceptualHash, err := ComputePerceptualHash(decoded)
	if err != nil {
		return nil, apierr.Processing("compute_perceptual_hash", imageHash, err)
	}

	similar, err := s.FindSimilar(ctx, perceptualHash, s.similarityThreshold)
	if err != nil {
		s.log.Warn("similarity search failed, proceeding without it", "image_hash", imageHash, "error", err)
		similar = nil
	}

	blobURL, err := s.blobs.Put(ctx, objectKeyForImage(imageHash, mimeType), content, mimeType)
	if err != nil {
		return nil, err // already an *apierr.Error; metadata is not committed
	}

	rec := models.ImageRecord{
		ImageHash:      imageHash,
		PerceptualHash: perceptualHash,
		Filename:       filename,
		SizeBytes:      int64(len(content)),
		MimeType:       mimeType,
		BlobURL:        blobURL,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
	}
	created, err := s.repo.Create(ctx, &rec)
	if err != nil {
		return nil, apierr.Storage("failed to persist image record", err)
	}
	if !created {
		// Raced with a concurrent identical upload; re-read and report as duplicate.
		if existing, err := s.repo.GetByHash(ctx, imageHash); err == nil && existing != nil {
			return &models.IngestResult{Record: *existing, Status: models.IngestStatusDuplicate}, nil
		}
	}

	status := models.IngestStatusStored
	if len(similar) > 0 {
		status = models.IngestStatusSimilar
	}
	s.log.Info("ingested new image", "image_hash", imageHash, "status", status, "similar_count", len(similar))
	return &models.IngestResult{Record: rec, Status: status, Similar: similar}, nil
}

// Lookup retrieves an ImageRecord by exact image_hash.
func (s *CASService) Lookup(ctx context.Context, imageHash string) (*models.ImageRecord, error) {
	rec, err := s.repo.GetByHash(ctx, imageHash)
	if err != nil {
		return nil, apierr.Storage("failed to look up image record", err)
	}
	if rec == nil {
		return nil, apierr.NotFound(fmt.Sprintf("no image record for hash %s", imageHash), nil)
	}
	return rec, nil
}

// FindSimilar returns records whose perceptual hash is within maxHamming
// bits of perceptualHash.
func (s *CASService) FindSimilar(ctx context.Context, perceptualHash string, maxHamming int) ([]models.SimilarImage, error) {
	all, err := s.repo.AllPerceptualHashes(ctx)
	if err != nil {
		return nil, apierr.Storage("failed to scan perceptual hashes", err)
	}

	var matches []models.SimilarImage
	for hash, phash := range all {
		dist, err := HammingDistance64(perceptualHash, phash)
		if err != nil {
			continue
		}
		if dist <= maxHamming {
			rec, err := s.repo.GetByHash(ctx, hash)
			if err != nil || rec == nil {
				continue
			}
			matches = append(matches, models.SimilarImage{ImageRecord: *rec, HammingDistance: dist})
		}
	}
	return matches, nil
}

// CheckDuplicate implements §6's CheckDuplicate endpoint.
func (s *CASService) CheckDuplicate(ctx context.Context, imageHash string) (isDuplicate bool, exact *models.ImageRecord, similar []models.SimilarImage, err error) {
	rec, err := s.repo.GetByHash(ctx, imageHash)
	if err != nil {
		return false, nil, nil, apierr.Storage("failed to check duplicate", err)
	}
	if rec == nil {
		return false, nil, nil, apierr.NotFound(fmt.Sprintf("no image record for hash %s", imageHash), nil)
	}
	similar, err = s.FindSimilar(ctx, rec.PerceptualHash, s.similarityThreshold)
	if err != nil {
		similar = nil
	}
	// Exclude self from the similar list.
	filtered := similar[:0]
	for _, m := range similar {
		if m.ImageHash != imageHash {
			filtered = append(filtered, m)
		}
	}
	return true, rec, filtered, nil
}

// Delete removes the blob and metadata for imageHash (§6 DeleteImage).
// Cache-entry cleanup under this hash is the Coordinator's responsibility
// (it owns the ResultCache handle); CAS only owns the record and blob.
func (s *CASService) Delete(ctx context.Context, imageHash string) error {
	rec, err := s.repo.GetByHash(ctx, imageHash)
	if err != nil {
		return apierr.Storage("failed to look up image before delete", err)
	}
	if rec == nil {
		return apierr.NotFound(fmt.Sprintf("no image record for hash %s", imageHash), nil)
	}
	if err := s.blobs.Delete(ctx, objectKeyForImage(imageHash, rec.MimeType)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, imageHash); err != nil {
		return apierr.Storage("failed to delete image record", err)
	}
	return nil
}

// List implements §6's ListImages.
func (s *CASService) List(ctx context.Context, filter models.ListImagesFilter) (*models.ImagePage, error) {
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apierr.Storage("failed to list image records", err)
	}
	page := &models.ImagePage{Records: records}
	if len(records) == filter.Limit && filter.Limit > 0 {
		page.NextCursor = encodeCursorForPage(filter)
	}
	return page, nil
}

func encodeCursorForPage(filter models.ListImagesFilter) string {
	return repository.EncodeCursor(decodeOffset(filter) + filter.Limit)
}

func decodeOffset(filter models.ListImagesFilter) int {
	return repository.DecodeCursor(filter.Cursor)
}

// objectKeyForImage returns the blob store object key an original image's
// bytes are written under — distinct from ImageRecord.BlobURL, which is the
// canonical URL Put returns for display, not the key Get/Delete expect.
func objectKeyForImage(imageHash, mimeType string) string {
	return fmt.Sprintf("images/%s.%s", imageHash, extensionForMime(mimeType))
}

func extensionForMime(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/bmp":
		return "bmp"
	case "image/webp":
		return "webp"
	default:
		return "bin"
	}
}
