package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/client"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
)

const uploadURLExpiry = 15 * time.Minute

// UploadService hands out presigned upload targets so track bytes go
// straight to object storage. The orchestration core only ever sees the
// resulting references.
type UploadService struct {
	storage client.StorageClient
	log     *zap.Logger
}

func NewUploadService(storage client.StorageClient, log *zap.Logger) *UploadService {
	return &UploadService{storage: storage, log: log}
}

// CreateUploadTargets generates a fresh job id and presigned PUT URLs
// for the voice track and, when named, the background track.
func (s *UploadService) CreateUploadTargets(ctx context.Context, accountID string, req *model.UploadTargetRequest) (*model.UploadTargetResponse, error) {
	jobID := uuid.New().String()

	voice, err := s.uploadTarget(ctx, accountID, jobID, "voice", req.VoiceTrackName, req.ContentType)
	if err != nil {
		return nil, err
	}

	resp := &model.UploadTargetResponse{
		JobID:      jobID,
		VoiceTrack: *voice,
	}

	if req.BackgroundTrackName != "" {
		background, err := s.uploadTarget(ctx, accountID, jobID, "background", req.BackgroundTrackName, req.ContentType)
		if err != nil {
			return nil, err
		}
		resp.BackgroundTrack = background
	}

	s.log.Info("upload targets created",
		zap.String("jobId", jobID), zap.String("accountId", accountID))
	return resp, nil
}

func (s *UploadService) uploadTarget(ctx context.Context, accountID, jobID, kind, fileName, contentType string) (*model.UploadTarget, error) {
	key := fmt.Sprintf("uploads/%s/%s/%s-%s", accountID, jobID, kind, fileName)

	// Without configured storage, return mock targets for development.
	if s.storage == nil {
		return &model.UploadTarget{
			Ref:       fmt.Sprintf("https://cdn.example.com/%s", key),
			UploadURL: fmt.Sprintf("https://upload.example.com/%s", key),
		}, nil
	}

	uploadURL, err := s.storage.PresignUpload(ctx, key, contentType, uploadURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign %s track: %w", kind, err)
	}
	return &model.UploadTarget{
		Ref:       s.storage.GetPublicURL(key),
		UploadURL: uploadURL,
	}, nil
}
