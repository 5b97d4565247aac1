// Package notification turns inbound push payloads into displayed
// notifications, records delivery/click telemetry, and routes clicks to a
// destination inside the application.
package notification

import "encoding/json"

// Category is the closed set of notification kinds carried in the data bag's
// type field. Unknown raw values degrade to CategoryGeneral.
type Category string

const (
	CategoryJobUpdate Category = "job_update"
	CategoryMessage   Category = "message"
	CategoryPayment   Category = "payment"
	CategoryMarketing Category = "marketing"
	CategoryGeneral   Category = "general"
)

// ParseCategory maps the raw type strings the backend sends to a Category.
func ParseCategory(raw string) Category {
	switch raw {
	case "job_update", "job_updates":
		return CategoryJobUpdate
	case "message", "messages", "chat":
		return CategoryMessage
	case "payment", "payments", "invoice":
		return CategoryPayment
	case "marketing", "promotions":
		return CategoryMarketing
	default:
		return CategoryGeneral
	}
}

// Action is one button offered on a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

// DataBag carries the notification's routing intent.
type DataBag struct {
	Type           string `json:"type,omitempty"`
	UserID         string `json:"userId,omitempty"`
	URL            string `json:"url,omitempty"`
	JobID          string `json:"jobId,omitempty"`
	Phone          string `json:"phone,omitempty"`
	NotificationID string `json:"notificationId,omitempty"`
	// ActionURLs is a per-notification override map consulted for action
	// identifiers the fixed route table does not know.
	ActionURLs map[string]string `json:"actionUrls,omitempty"`
}

// PushPayload is the JSON body of an inbound push message.
type PushPayload struct {
	Title              string   `json:"title,omitempty"`
	Body               string   `json:"body,omitempty"`
	Icon               string   `json:"icon,omitempty"`
	Badge              string   `json:"badge,omitempty"`
	Tag                string   `json:"tag,omitempty"`
	RequireInteraction bool     `json:"requireInteraction,omitempty"`
	Actions            []Action `json:"actions,omitempty"`
	Data               DataBag  `json:"data,omitempty"`
}

// ParsePush decodes a push body. A payload that is not valid JSON degrades
// to a generic title with the raw text as body; the notification is never
// dropped. The second return reports whether the payload parsed.
func ParsePush(raw []byte) (PushPayload, bool) {
	var p PushPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return PushPayload{Body: string(raw)}, false
	}
	return p, true
}
