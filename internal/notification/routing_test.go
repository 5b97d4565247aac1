package notification_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truckfixgo/offline-agent/internal/notification"
)

func defaultRoutes() notification.Routes {
	return notification.Routes{
		"track":    "/tracking?jobId={jobId}",
		"message":  "/messages?jobId={jobId}",
		"view":     "/jobs/{jobId}",
		"navigate": "/jobs/{jobId}/directions",
		"call":     "tel:{phone}",
		"review":   "/jobs/{jobId}/review",
		"invoice":  "/invoices?jobId={jobId}",
		"rebook":   "/book?rebookFrom={jobId}",
	}
}

func TestResolveKnownActions(t *testing.T) {
	routes := defaultRoutes()
	data := notification.DataBag{JobID: "J1", Phone: "+15550100"}

	tests := []struct {
		action string
		want   notification.Decision
	}{
		{"track", notification.Decision{Kind: notification.DecisionOpen, Destination: "/tracking?jobId=J1"}},
		{"view", notification.Decision{Kind: notification.DecisionOpen, Destination: "/jobs/J1"}},
		{"call", notification.Decision{Kind: notification.DecisionExternal, Destination: "tel:+15550100"}},
		{"close", notification.Decision{Kind: notification.DecisionNone}},
	}

	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			assert.Equal(t, tt.want, routes.Resolve(tt.action, data))
		})
	}
}

func TestResolveUnknownActionFallbacks(t *testing.T) {
	routes := defaultRoutes()

	t.Run("per-notification action map wins", func(t *testing.T) {
		data := notification.DataBag{
			URL:        "/default",
			ActionURLs: map[string]string{"inspect": "/inspections/42"},
		}
		got := routes.Resolve("inspect", data)
		assert.Equal(t, notification.Decision{Kind: notification.DecisionOpen, Destination: "/inspections/42"}, got)
	})

	t.Run("payload default url next", func(t *testing.T) {
		data := notification.DataBag{URL: "/default"}
		got := routes.Resolve("inspect", data)
		assert.Equal(t, "/default", got.Destination)
	})

	t.Run("home as last resort", func(t *testing.T) {
		got := routes.Resolve("inspect", notification.DataBag{})
		assert.Equal(t, "/", got.Destination)
	})
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, notification.CategoryJobUpdate, notification.ParseCategory("job_updates"))
	assert.Equal(t, notification.CategoryMessage, notification.ParseCategory("chat"))
	assert.Equal(t, notification.CategoryPayment, notification.ParseCategory("invoice"))
	assert.Equal(t, notification.CategoryMarketing, notification.ParseCategory("promotions"))
	assert.Equal(t, notification.CategoryGeneral, notification.ParseCategory(""))
	assert.Equal(t, notification.CategoryGeneral, notification.ParseCategory("mystery"))
}
