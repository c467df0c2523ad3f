// Package device sniffs the visitor's platform from the User-Agent header.
package device

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	mobilePattern = regexp.MustCompile(`(?i)android|webos|iphone|ipad|ipod|blackberry|iemobile|opera mini|mobile`)
	iosPattern    = regexp.MustCompile(`(?i)iphone|ipad|ipod`)
)

// Info describes the visitor's device.
type Info struct {
	Mobile bool `json:"mobile"`
	IOS    bool `json:"ios"`
}

// Detect classifies a User-Agent string.
func Detect(userAgent string) Info {
	return Info{
		Mobile: mobilePattern.MatchString(userAgent),
		IOS:    iosPattern.MatchString(userAgent),
	}
}

// WhatsAppLink returns a link opening a chat with number prefilled with text.
// Mobile devices get the app deep link, others the wa.me web link.
func (i Info) WhatsAppLink(number, text string) string {
	number = strings.TrimLeft(strings.ReplaceAll(number, " ", ""), "+")
	if i.Mobile {
		q := url.Values{"phone": {number}}
		if text != "" {
			q.Set("text", text)
		}
		return "whatsapp://send?" + q.Encode()
	}
	link := "https://wa.me/" + number
	if text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}
