// internal/intake/config.go
package intake

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	FrontendBaseURL string
	CRMWebhookURL   string
	CRMWebhookToken string
	RelayTimeout    time.Duration
}

// ThankYouURL synthesizes the default confirmation deep link for an application.
func (c *Config) ThankYouURL(applicationID string) string {
	base := strings.TrimRight(c.FrontendBaseURL, "/")
	return fmt.Sprintf(
		"%s/application?applicationId=%s&status=success&page=thankyou&stepNum=6&stepName=thankyou",
		base, url.QueryEscape(applicationID),
	)
}
