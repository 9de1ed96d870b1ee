package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/repository"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

// SubscriptionService consumes billing webhooks. On a paid cycle it resets
// the user's quota to the plan allocation; the publishing engine only ever
// decrements remaining_posts from there.
type SubscriptionService interface {
	HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error
}

type subscriptionService struct {
	cfg config.Config
	u   repository.UserRepository
}

func NewSubscriptionService(cfg config.Config, u repository.UserRepository) SubscriptionService {
	return &subscriptionService{
		cfg: cfg,
		u:   u,
	}
}

func (s *subscriptionService) HandleSubscription(ctx context.Context, payload *transfer.SubscriptionEvent) error {
	switch payload.EventType {
	case "subscription.paid":
		customerEmail := payload.Object.Customer.Email

		user, isExist, err := s.u.GetByEmail(ctx, customerEmail)
		if err != nil {
			return fmt.Errorf("fetching user by email failed: %w", err)
		}

		plan := planFromProduct(payload.Object.Product.Name)
		allocation := models.PostsForPlan(plan)

		var userID int64
		if !isExist {
			userID, err = s.u.Create(ctx, nil, &models.User{
				Email:          customerEmail,
				Name:           payload.Object.Customer.Name,
				Plan:           plan,
				TotalPosts:     allocation,
				RemainingPosts: allocation,
			})
			if err != nil {
				return err
			}
		} else {
			userID = user.ID
		}

		err = s.u.ResetCycle(ctx, userID, plan, allocation,
			payload.Object.CurrentPeriodStartDate, payload.Object.CurrentPeriodEndDate)
		if err != nil {
			return err
		}

	default:
		slog.Info("ignoring subscription event", "event_type", payload.EventType)
	}

	return nil
}

func planFromProduct(productName string) string {
	name := strings.ToLower(productName)
	switch {
	case strings.Contains(name, "professional"):
		return models.PlanProfessional
	case strings.Contains(name, "growth"):
		return models.PlanGrowth
	case strings.Contains(name, "starter"):
		return models.PlanStarter
	default:
		return models.PlanNone
	}
}
