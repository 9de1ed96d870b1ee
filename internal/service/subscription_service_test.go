package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/GailMacleod/TheAgencyIQ-sub004/configs"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/models"
	"github.com/GailMacleod/TheAgencyIQ-sub004/internal/transfer"
)

func paidEvent(email, productName string) *transfer.SubscriptionEvent {
	event := &transfer.SubscriptionEvent{EventType: "subscription.paid"}
	event.Object.Customer.Email = email
	event.Object.Customer.Name = "Test User"
	event.Object.Product.Name = productName
	event.Object.CurrentPeriodStartDate = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	event.Object.CurrentPeriodEndDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	return event
}

func TestHandleSubscriptionResetsCycle(t *testing.T) {
	var gotPlan string
	var gotAllocation int
	ur := &fakeUserRepo{
		getByEmail: func(email string) (*models.User, bool, error) {
			return &models.User{ID: 42, Email: email}, true, nil
		},
		resetCycle: func(userID int64, plan string, totalPosts int, cycleStart, cycleEnd time.Time) error {
			gotPlan = plan
			gotAllocation = totalPosts
			return nil
		},
	}

	s := NewSubscriptionService(config.Config{}, ur)
	err := s.HandleSubscription(context.Background(), paidEvent("user@example.com", "Growth Plan"))
	require.NoError(t, err)

	assert.Equal(t, models.PlanGrowth, gotPlan)
	assert.Equal(t, models.PostsForPlan(models.PlanGrowth), gotAllocation)
}

func TestHandleSubscriptionIgnoresOtherEvents(t *testing.T) {
	resetCalled := false
	ur := &fakeUserRepo{
		resetCycle: func(userID int64, plan string, totalPosts int, cycleStart, cycleEnd time.Time) error {
			resetCalled = true
			return nil
		},
	}

	s := NewSubscriptionService(config.Config{}, ur)
	event := &transfer.SubscriptionEvent{EventType: "subscription.cancelled"}
	err := s.HandleSubscription(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, resetCalled)
}

func TestPlanFromProduct(t *testing.T) {
	tests := []struct {
		productName string
		want        string
	}{
		{"Starter Plan", models.PlanStarter},
		{"Growth Plan", models.PlanGrowth},
		{"Professional Plan", models.PlanProfessional},
		{"PROFESSIONAL", models.PlanProfessional},
		{"Something Else", models.PlanNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, planFromProduct(tt.productName), "product %q", tt.productName)
	}
}
