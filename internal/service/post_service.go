package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"
	"time"

	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, creation *transfer.PostCreation, files []*multipart.FileHeader) ([]int64, time.Duration, error)
	Approve(ctx context.Context, userID, postID int64) error
	PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr    repository.PostRepository
	media *MediaService
}

func NewPostService(pr repository.PostRepository, media *MediaService) PostService {
	return &postService{
		pr:    pr,
		media: media,
	}
}

// CreatePost stores one post row per target platform. Multi-platform
// scheduling never shares a row: each platform publish is charged and
// retried independently. Returns the created IDs and the delay until the
// scheduled time, for the caller to enqueue enforcement.
func (s *postService) CreatePost(ctx context.Context, userID int64, creation *transfer.PostCreation, files []*multipart.FileHeader) ([]int64, time.Duration, error) {
	scheduledFor, err := time.Parse(time.RFC3339, creation.ScheduledFor)
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, fmt.Errorf("invalid scheduled time: %w", err)
	}

	platforms := strings.Split(creation.Platforms, ",")
	if len(platforms) == 0 || creation.Platforms == "" {
		return nil, 0, errors.New("no platforms selected")
	}
	for i, platform := range platforms {
		platforms[i] = strings.TrimSpace(platform)
		if !models.KnownPlatform(platforms[i]) {
			return nil, 0, fmt.Errorf("unknown platform %q", platforms[i])
		}
	}

	var mediaURL string
	if len(files) > 0 {
		file, err := files[0].Open()
		if err != nil {
			slog.Info(err.Error())
			return nil, 0, err
		}
		defer file.Close()

		content, err := io.ReadAll(file)
		if err != nil {
			slog.Info(err.Error())
			return nil, 0, err
		}

		asset, err := s.media.Upload(ctx, userID, files[0].Filename, content)
		if err != nil {
			return nil, 0, err
		}
		mediaURL = asset.FileURL
	}

	var postIDs []int64
	for _, platform := range platforms {
		post := &models.Post{
			UserID:       userID,
			Platform:     platform,
			Content:      creation.Content,
			Title:        creation.Title,
			MediaURL:     mediaURL,
			ScheduledFor: scheduledFor,
			Status:       models.PostStatusDraft,
		}

		id, err := s.pr.Create(ctx, nil, post)
		if err != nil {
			return nil, 0, err
		}
		postIDs = append(postIDs, id)
	}

	return postIDs, time.Until(scheduledFor), nil
}

func (s *postService) Approve(ctx context.Context, userID, postID int64) error {
	isOwner, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isOwner {
		return errors.New("post does not belong to user")
	}

	approved, err := s.pr.Approve(ctx, postID)
	if err != nil {
		return err
	}
	if !approved {
		return errors.New("post is not in draft status")
	}
	return nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.Post, error) {
	isOwner, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return nil, errors.New("post does not belong to user")
	}
	return s.pr.GetByID(ctx, postID)
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	return s.pr.GetByUserID(ctx, userID)
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	isOwner, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}
	if !isOwner {
		return errors.New("post does not belong to user")
	}
	return s.pr.Remove(ctx, postID)
}
