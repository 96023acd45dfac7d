package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type App struct {
	// HTTP
	Port        string   `envconfig:"PORT" default:"8080"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
	// Storage. LEDGER=memory keeps reservations in process, for local runs,
	// with courts read from CATALOG_FILE.
	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	Ledger        string        `envconfig:"LEDGER" default:"postgres"`
	CatalogFile   string        `envconfig:"CATALOG_FILE"`
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	CourtCacheTTL time.Duration `envconfig:"COURT_CACHE_TTL" default:"5m"`
	// Auth
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	AdminJWTExpire time.Duration `envconfig:"ADMIN_JWT_EXPIRE" default:"1h"`
	// Seeded on startup when both are set.
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
	// Booking
	Currency      string `envconfig:"CURRENCY" default:"inr"`
	VenueTimezone string `envconfig:"VENUE_TIMEZONE" default:"Asia/Kolkata"`
	CompleteCron  string `envconfig:"COMPLETE_CRON" default:"@every 5m"`
	// Providers
	ProviderTimeout     time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	StripeSecretKey     string        `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string        `envconfig:"STRIPE_WEBHOOK_SECRET"`
	RazorpayKeyID       string        `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret   string        `envconfig:"RAZORPAY_KEY_SECRET"`
	// Events
	RabbitURL       string `envconfig:"RABBIT_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.events"`
	// Notifications
	SendGridAPIKey    string `envconfig:"SENDGRID_API_KEY"`
	SendGridFromEmail string `envconfig:"SENDGRID_FROM_EMAIL"`
	SendGridFromName  string `envconfig:"SENDGRID_FROM_NAME" default:"Courtside"`
	TwilioAccountSID  string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber  string `envconfig:"TWILIO_FROM_NUMBER"`
	SupportEmail      string `envconfig:"SUPPORT_EMAIL"`
	SupportPhone      string `envconfig:"SUPPORT_PHONE"`
}

func Load() (App, error) {
	var c App
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	if c.JWTSecret == "" {
		return c, fmt.Errorf("JWT_SECRET not set")
	}
	if c.Ledger != "postgres" && c.Ledger != "memory" {
		return c, fmt.Errorf("LEDGER must be postgres or memory, got %q", c.Ledger)
	}
	if c.Ledger == "postgres" && c.DatabaseURL == "" {
		return c, fmt.Errorf("DATABASE_URL not set")
	}
	return c, nil
}

// Location resolves VenueTimezone.
func (c App) Location() (*time.Location, error) {
	return time.LoadLocation(c.VenueTimezone)
}
