package router

import (
	"strings"

	"github.com/alphadominico/subscription-backend/app/controllers"
	"github.com/alphadominico/subscription-backend/internal/pkg/config"
	"github.com/alphadominico/subscription-backend/internal/pkg/constants"
	"github.com/alphadominico/subscription-backend/internal/pkg/database"
	"github.com/alphadominico/subscription-backend/internal/pkg/razorpay"
	"github.com/alphadominico/subscription-backend/internal/pkg/subscription"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type ApiRouter struct {
	cfg config.Config
}

func NewApiRouter(cfg config.Config) *ApiRouter {
	return &ApiRouter{cfg: cfg}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	gateway := razorpay.NewClient(h.cfg)
	svc := subscription.NewServiceFromDB(database.GetDB(), gateway, h.cfg)
	sc := controllers.NewSubscriptionController(svc, h.cfg)

	api := app.Group(constants.APIPrefix, limiter.New(), cors.New(cors.Config{
		AllowOrigins: strings.Join(h.cfg.AllowedOrigins, ","),
		AllowMethods: "GET,POST",
	}))

	api.Get(constants.HealthRoute, sc.HandleHealth)
	api.Post(constants.CreateSubscriptionRoute, sc.HandleCreateSubscription)
	api.Post(constants.PaymentSuccessRoute, sc.HandlePaymentSuccess)
	api.Post(constants.CancelSubscriptionRoute, sc.HandleCancelSubscription)
	api.Get(constants.SubscriptionStatusRoute, sc.HandleSubscriptionStatus)

	// The webhook endpoint stays outside the CORS/limiter group: the
	// provider delivers events server-to-server and must never be
	// throttled into redelivery storms.
	app.Post(constants.WebhookRoute, sc.HandleWebhook)
}
