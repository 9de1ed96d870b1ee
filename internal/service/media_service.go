package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	gonanoid "github.com/matoous/go-nanoid/v2"

	cfg "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
)

// MediaService stores post video assets in R2 and records them so posts
// can reference a media URL.
type MediaService struct {
	config cfg.Config
	ma     repository.MediaAssetRepository
}

func NewMediaService(cfg cfg.Config, ma repository.MediaAssetRepository) *MediaService {
	return &MediaService{config: cfg, ma: ma}
}

func (m *MediaService) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(m.config.R2.AccessKey, m.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", m.config.R2.AccountID))
	}), nil
}

// Upload sniffs the file type, rejects anything that is not a video, puts
// the object in the bucket and records the asset row. Returns the stored
// asset.
func (m *MediaService) Upload(ctx context.Context, userID int64, fileName string, file []byte) (*models.MediaAsset, error) {
	kind, err := filetype.Match(file)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if kind.MIME.Type != "video" {
		return nil, fmt.Errorf("unsupported media type %q, only video is accepted", kind.MIME.Value)
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	key = fmt.Sprintf("%d/%s.%s", userID, key, kind.Extension)

	client, err := m.r2Client(ctx)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(m.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(kind.MIME.Value),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	asset := &models.MediaAsset{
		UserID:   userID,
		FileName: fileName,
		FileType: kind.MIME.Value,
		FileSize: int64(len(file)),
		FileURL:  fmt.Sprintf("https://%s.r2.cloudflarestorage.com/%s/%s", m.config.R2.AccountID, m.config.R2.BucketName, key),
	}

	id, err := m.ma.Create(ctx, asset)
	if err != nil {
		return nil, err
	}
	asset.ID = id

	return asset, nil
}
