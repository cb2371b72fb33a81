package utils

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/price"
	"github.com/stripe/stripe-go/v76/webhook"
	"tasknest/config"
)

// ConstructStripeEvent securely constructs and verifies a Stripe webhook event
func ConstructStripeEvent(c *fiber.Ctx) (stripe.Event, error) {
	payload := c.Body()
	if len(payload) == 0 {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Empty request body")
	}

	// Get and validate the Stripe-Signature header
	signature := c.Get("Stripe-Signature")
	if signature == "" {
		LogError("Missing Stripe-Signature header", nil, nil)
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Missing Stripe-Signature header")
	}

	// Verify the webhook signature with tolerance for clock drift
	event, err := webhook.ConstructEventWithTolerance(
		payload,
		signature,
		config.AppConfig.StripeWebhookSecret,
		5*time.Minute,
	)
	if err != nil {
		LogError("Failed to verify webhook signature", err, map[string]interface{}{
			"signature_prefix": signaturePrefix(signature),
		})
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Invalid webhook signature")
	}

	LogEvent("stripe_webhook_verified", map[string]interface{}{
		"event_id":   event.ID,
		"event_type": event.Type,
	})

	return event, nil
}

// signaturePrefix truncates a signature header for log output. Headers can
// be arbitrarily short; never slice past the end.
func signaturePrefix(signature string) string {
	if len(signature) > 10 {
		return signature[:10] + "..."
	}
	return signature
}

// GetStripePrice retrieves a price from Stripe with proper error handling
func GetStripePrice(priceID string) (*stripe.Price, error) {
	if priceID == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Price ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := price.Get(priceID, &stripe.PriceParams{
		Params: stripe.Params{
			Context: ctx,
		},
	})
	if err != nil {
		LogError("Failed to get Stripe price", err, map[string]interface{}{
			"price_id": priceID,
		})
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to retrieve price information")
	}

	return p, nil
}

// GetPriceAmount retrieves the amount in cents for a given price ID
func GetPriceAmount(priceID string) (int64, error) {
	price, err := GetStripePrice(priceID)
	if err != nil {
		return 0, err
	}
	return price.UnitAmount, nil
}
