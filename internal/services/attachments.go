package services

import (
	"context"

	"diaryhub-backend/internal/models"
	"diaryhub-backend/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const transferConcurrency = 4

// BlobStore uploads attachments and releases them by storage handle.
// Releasing a handle that is already gone must succeed.
type BlobStore interface {
	Upload(ctx context.Context, ownerID string, blob storage.Blob) (models.Image, error)
	Release(ctx context.Context, handle string) error
}

// Attachments keeps diary image references in step with the blob store.
// A diary never references a blob that failed to upload, and a reference is
// only dropped after its blob has been released.
type Attachments struct {
	store BlobStore
}

// NewAttachments creates a new attachment coordinator
func NewAttachments(store BlobStore) *Attachments {
	return &Attachments{store: store}
}

// UploadAll uploads every blob, preserving order. Either all uploads succeed or
// the ones that did are released again and a DependencyFailure is returned.
func (a *Attachments) UploadAll(ctx context.Context, ownerID string, blobs []storage.Blob) ([]models.Image, error) {
	images := make([]models.Image, len(blobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)
	for i, blob := range blobs {
		g.Go(func() error {
			img, err := a.store.Upload(gctx, ownerID, blob)
			if err != nil {
				return err
			}
			images[i] = img
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var uploaded []models.Image
		for _, img := range images {
			if img.StorageHandle != "" {
				uploaded = append(uploaded, img)
			}
		}
		a.Discard(ctx, uploaded)
		return nil, dependencyError("failed to upload images", err)
	}

	return images, nil
}

// ReleaseAll releases every image and reports the first failure as a DependencyFailure
func (a *Attachments) ReleaseAll(ctx context.Context, images []models.Image) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transferConcurrency)
	for _, img := range images {
		g.Go(func() error {
			return a.store.Release(gctx, img.StorageHandle)
		})
	}
	if err := g.Wait(); err != nil {
		return dependencyError("failed to release images", err)
	}
	return nil
}

// Discard releases images that were uploaded for an operation that then failed.
// Failures are logged, the caller already has an error to return.
func (a *Attachments) Discard(ctx context.Context, images []models.Image) {
	if len(images) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, img := range images {
		if err := a.store.Release(ctx, img.StorageHandle); err != nil {
			log.Warn().
				Err(err).
				Str("storage_handle", img.StorageHandle).
				Msg("Failed to release orphaned image")
		}
	}
}
