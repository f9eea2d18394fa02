// Package artifacts persists model artifacts and impact reports. Artifacts go
// to object storage when it is configured and inline into Postgres otherwise;
// metadata always lives in Postgres.
package artifacts

import (
	"context"
	"errors"
	"fmt"

	"leadgen_backend/internal/adapters/storage"
	"leadgen_backend/internal/forecasting/domain"
	"leadgen_backend/internal/forecasting/repository"
)

const jsonContentType = "application/json"

// ModelRecords is the metadata side of the model store.
type ModelRecords interface {
	InsertModel(ctx context.Context, rec repository.ModelRecord) error
	GetModel(ctx context.Context, version string) (repository.ModelRecord, error)
	ListModels(ctx context.Context, regionID string) ([]domain.TrainedModel, error)
}

// ModelStore implements ports.ModelStore.
type ModelStore struct {
	records ModelRecords
	blobs   storage.BlobStore
	bucket  string
}

// NewModelStore creates a model store. A nil blobs stores artifacts inline.
func NewModelStore(records ModelRecords, blobs storage.BlobStore, bucket string) *ModelStore {
	return &ModelStore{records: records, blobs: blobs, bucket: bucket}
}

// ModelKey is the object key of a model artifact.
func ModelKey(regionID, version string) string {
	return fmt.Sprintf("models/%s/%s.json", regionID, version)
}

// Save writes the artifact and then its metadata row. Versions are immutable:
// saving an existing version fails with domain.ErrModelExists and leaves the
// stored artifact untouched.
func (s *ModelStore) Save(ctx context.Context, model domain.TrainedModel, artifact []byte) error {
	if _, err := s.records.GetModel(ctx, model.ModelVersion); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrModelExists, model.ModelVersion)
	} else if !errors.Is(err, domain.ErrModelNotFound) {
		return err
	}

	rec := repository.ModelRecord{Model: model}
	if s.blobs != nil {
		key := ModelKey(model.RegionID, model.ModelVersion)
		if err := s.blobs.PutObject(ctx, s.bucket, key, jsonContentType, artifact); err != nil {
			return fmt.Errorf("upload artifact %s: %w", model.ModelVersion, err)
		}
		rec.ArtifactKey = &key
	} else {
		rec.Artifact = artifact
	}

	if err := s.records.InsertModel(ctx, rec); err != nil {
		return fmt.Errorf("insert model %s: %w", model.ModelVersion, err)
	}
	return nil
}

// Load returns metadata and artifact bytes, or domain.ErrModelNotFound.
func (s *ModelStore) Load(ctx context.Context, version string) (domain.TrainedModel, []byte, error) {
	rec, err := s.records.GetModel(ctx, version)
	if err != nil {
		return domain.TrainedModel{}, nil, err
	}
	if rec.ArtifactKey == nil {
		if len(rec.Artifact) == 0 {
			return domain.TrainedModel{}, nil, fmt.Errorf("%w: %s has no artifact", domain.ErrModelNotFound, version)
		}
		return rec.Model, rec.Artifact, nil
	}
	if s.blobs == nil {
		return domain.TrainedModel{}, nil, fmt.Errorf("model %s is in object storage but storage is not configured", version)
	}

	data, err := s.blobs.GetObject(ctx, s.bucket, *rec.ArtifactKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return domain.TrainedModel{}, nil, fmt.Errorf("%w: artifact for %s is missing", domain.ErrModelNotFound, version)
	}
	if err != nil {
		return domain.TrainedModel{}, nil, err
	}
	return rec.Model, data, nil
}

// ListVersions returns the region's models oldest first.
func (s *ModelStore) ListVersions(ctx context.Context, regionID string) ([]domain.TrainedModel, error) {
	return s.records.ListModels(ctx, regionID)
}

// ReportStore implements ports.ReportStore on object storage.
type ReportStore struct {
	blobs  storage.BlobStore
	bucket string
}

func NewReportStore(blobs storage.BlobStore, bucket string) *ReportStore {
	return &ReportStore{blobs: blobs, bucket: bucket}
}

// ReportKey is the object key of a named report.
func ReportKey(name string) string {
	return fmt.Sprintf("reports/%s.json", name)
}

// SaveReport overwrites the report stored under name.
func (s *ReportStore) SaveReport(ctx context.Context, name string, payload []byte) error {
	return s.blobs.PutObject(ctx, s.bucket, ReportKey(name), jsonContentType, payload)
}
