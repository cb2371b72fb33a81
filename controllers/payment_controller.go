package controller

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"tasknest/config"
	"tasknest/models"
	"tasknest/utils"
)

func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// CreateCheckoutSession starts a Stripe Checkout flow for the premium
// subscription.
func CreateCheckoutSession(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	if config.AppConfig.StripePremiumPrice == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Billing is not configured",
		})
	}

	customerID, err := getOrCreateStripeCustomer(user)
	if err != nil {
		utils.LogError("failed to create Stripe customer", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start checkout",
		})
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(config.AppConfig.StripePremiumPrice),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(config.AppConfig.FrontendURL + "/billing/success"),
		CancelURL:  stripe.String(config.AppConfig.FrontendURL + "/billing/cancel"),
		Metadata: map[string]string{
			"user_id": strconv.Itoa(int(user.ID)),
		},
	}

	session, err := checkoutsession.New(params)
	if err != nil {
		utils.LogError("failed to create checkout session", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to start checkout",
		})
	}

	// The amount is display data for the confirmation screen; a failed
	// lookup is already logged and should not block checkout.
	amount, err := utils.GetPriceAmount(config.AppConfig.StripePremiumPrice)
	if err != nil {
		amount = 0
	}

	return c.JSON(fiber.Map{
		"checkout_url": session.URL,
		"session_id":   session.ID,
		"amount":       amount,
	})
}

// HandleStripeWebhook keeps user subscription state in sync with Stripe.
// Subscription status drives the project read-only lock, so this is the
// only place the premium flags are written.
func HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing checkout session",
			})
		}
		return handleCheckoutCompleted(c, &session)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing subscription",
			})
		}
		return handleSubscriptionUpdated(c, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing subscription",
			})
		}
		return handleSubscriptionDeleted(c, &sub)

	default:
		return c.SendStatus(fiber.StatusOK)
	}
}

func handleCheckoutCompleted(c *fiber.Ctx, session *stripe.CheckoutSession) error {
	user, err := userByStripeCustomer(session.Customer.ID)
	if err != nil {
		return c.SendStatus(fiber.StatusOK)
	}

	user.PlanName = "premium"
	user.SubscriptionStatus = models.SubscriptionActive
	if session.Subscription != nil {
		user.StripeSubscriptionID = &session.Subscription.ID
	}

	if err := config.DB.Save(user).Error; err != nil {
		utils.LogError("failed to activate subscription", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update subscription",
		})
	}

	utils.LogEvent("subscription_activated", map[string]interface{}{
		"user_id": user.ID,
	})
	return c.SendStatus(fiber.StatusOK)
}

func handleSubscriptionUpdated(c *fiber.Ctx, sub *stripe.Subscription) error {
	user, err := userByStripeCustomer(sub.Customer.ID)
	if err != nil {
		return c.SendStatus(fiber.StatusOK)
	}

	switch sub.Status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		user.PlanName = "premium"
		user.SubscriptionStatus = models.SubscriptionActive
	case stripe.SubscriptionStatusCanceled:
		user.SubscriptionStatus = models.SubscriptionCanceled
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncompleteExpired:
		user.SubscriptionStatus = models.SubscriptionExpired
	}

	if err := config.DB.Save(user).Error; err != nil {
		utils.LogError("failed to update subscription", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update subscription",
		})
	}

	utils.LogEvent("subscription_updated", map[string]interface{}{
		"user_id": user.ID,
		"status":  user.SubscriptionStatus,
	})
	return c.SendStatus(fiber.StatusOK)
}

func handleSubscriptionDeleted(c *fiber.Ctx, sub *stripe.Subscription) error {
	user, err := userByStripeCustomer(sub.Customer.ID)
	if err != nil {
		return c.SendStatus(fiber.StatusOK)
	}

	user.SubscriptionStatus = models.SubscriptionExpired

	if err := config.DB.Save(user).Error; err != nil {
		utils.LogError("failed to expire subscription", err, map[string]interface{}{
			"user_id": user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update subscription",
		})
	}

	utils.LogEvent("subscription_expired", map[string]interface{}{
		"user_id": user.ID,
	})
	return c.SendStatus(fiber.StatusOK)
}

func userByStripeCustomer(customerID string) (*models.User, error) {
	var user models.User
	if err := config.DB.Where("stripe_customer_id = ?", customerID).First(&user).Error; err != nil {
		utils.LogError("no user for Stripe customer", err, map[string]interface{}{
			"customer_id": customerID,
		})
		return nil, err
	}
	return &user, nil
}

func getOrCreateStripeCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
		Metadata: map[string]string{
			"user_id": strconv.Itoa(int(user.ID)),
		},
	}

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	user.StripeCustomerID = &cust.ID
	if err := config.DB.Save(user).Error; err != nil {
		return "", err
	}

	return cust.ID, nil
}
