package notification

import "strings"

// DecisionKind says what the click handler should do with a resolved
// destination.
type DecisionKind string

const (
	// DecisionNone dismisses the notification with no navigation.
	DecisionNone DecisionKind = "none"
	// DecisionExternal hands the destination to an external handler (tel:).
	DecisionExternal DecisionKind = "external"
	// DecisionFocus focuses an already-open page and navigates it in place.
	DecisionFocus DecisionKind = "focus"
	// DecisionOpen opens a new window at the destination.
	DecisionOpen DecisionKind = "open"
)

// Decision is the outcome of routing a notification click.
type Decision struct {
	Kind        DecisionKind `json:"kind"`
	Destination string       `json:"destination,omitempty"`
}

// Routes is the fixed action-to-destination table. Templates may reference
// {jobId} and {phone}, filled from the clicked notification's data bag.
type Routes map[string]string

// Resolve maps an action taken on a notification to its destination path.
// A "close" action resolves to no navigation; an unrecognized action falls
// back to the notification's own action-to-URL map, then to its default
// destination, then to the application home.
func (r Routes) Resolve(action string, data DataBag) Decision {
	if action == "close" {
		return Decision{Kind: DecisionNone}
	}

	template, ok := r[action]
	if !ok {
		if custom, found := data.ActionURLs[action]; found {
			template = custom
		} else if data.URL != "" {
			template = data.URL
		} else {
			template = "/"
		}
	}

	dest := expand(template, data)
	if strings.HasPrefix(dest, "tel:") {
		return Decision{Kind: DecisionExternal, Destination: dest}
	}
	return Decision{Kind: DecisionOpen, Destination: dest}
}

// expand substitutes data bag fields into a destination template.
func expand(template string, data DataBag) string {
	out := strings.ReplaceAll(template, "{jobId}", data.JobID)
	out = strings.ReplaceAll(out, "{phone}", data.Phone)
	return out
}
