package campaigns

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Tracker builds the tracking URLs embedded in outgoing campaign email.
type Tracker struct {
	baseURL string
}

func NewTracker(baseURL string) *Tracker {
	return &Tracker{baseURL: strings.TrimRight(baseURL, "/")}
}

// PixelURL is the 1x1 open-tracking image URL for a recipient.
func (t *Tracker) PixelURL(leadID, campaignID uuid.UUID) string {
	return fmt.Sprintf("%s/track-email/%s/open?cid=%s", t.baseURL, leadID, campaignID)
}

// WrapLink routes a link through the click-tracking redirect.
func (t *Tracker) WrapLink(leadID, campaignID uuid.UUID, target string) string {
	return fmt.Sprintf("%s/track-email/%s/click?cid=%s&link=%s",
		t.baseURL, leadID, campaignID, url.QueryEscape(target))
}

var hrefPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// Instrument rewrites every absolute link in the rendered body through the
// click tracker and appends the open pixel.
func (t *Tracker) Instrument(html string, leadID, campaignID uuid.UUID) string {
	wrapped := hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		target := hrefPattern.FindStringSubmatch(match)[1]
		if strings.Contains(target, "/track-email/") {
			return match
		}
		return `href="` + t.WrapLink(leadID, campaignID, target) + `"`
	})

	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none;">`, t.PixelURL(leadID, campaignID))

	if idx := strings.LastIndex(wrapped, "</body>"); idx >= 0 {
		return wrapped[:idx] + pixel + wrapped[idx:]
	}
	return wrapped + pixel
}
