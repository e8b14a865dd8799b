// Package classifier derives coarse device, OS and browser categories from a User-Agent.
//
// Each category is an ordered rule list evaluated top to bottom; the first rule with a
// matching token wins. Tokens are matched as case-insensitive substrings, so the order
// of the rules is part of the contract: an Android UA carries "Linux" and resolves to
// Linux, an Edge UA carries "Chrome" and resolves to Chrome.
package classifier

import "strings"

// Device types.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// Unknown is the OS and browser label used when no rule matches.
const Unknown = "Unknown"

// Result is the classification of one User-Agent string.
type Result struct {
	DeviceType string
	OS         string
	Browser    string
}

// Rule maps a set of lowercase tokens to a label.
type Rule struct {
	Label  string
	Tokens []string
}

func (r Rule) matches(ua string) bool {
	for _, token := range r.Tokens {
		if strings.Contains(ua, token) {
			return true
		}
	}

	return false
}

// DeviceRules are checked before falling back to DeviceDesktop. Mobile wins over tablet.
var DeviceRules = []Rule{
	{Label: DeviceMobile, Tokens: []string{"mobile", "iphone", "ipod"}},
	{Label: DeviceTablet, Tokens: []string{"tablet", "ipad"}},
}

// OSRules in priority order.
var OSRules = []Rule{
	{Label: "Windows", Tokens: []string{"windows"}},
	{Label: "macOS", Tokens: []string{"macintosh"}},
	{Label: "Linux", Tokens: []string{"linux"}},
	{Label: "Android", Tokens: []string{"android"}},
	{Label: "iOS", Tokens: []string{"iphone", "ipad", "ipod", "ios"}},
}

// BrowserRules in priority order.
var BrowserRules = []Rule{
	{Label: "Chrome", Tokens: []string{"chrome"}},
	{Label: "Firefox", Tokens: []string{"firefox"}},
	{Label: "Safari", Tokens: []string{"safari"}},
	{Label: "Edge", Tokens: []string{"edge"}},
}

// Classify categorizes ua. It never fails: absent or unrecognized input yields
// desktop / Unknown / Unknown.
func Classify(ua string) Result {
	lower := strings.ToLower(ua)

	return Result{
		DeviceType: firstMatch(DeviceRules, lower, DeviceDesktop),
		OS:         firstMatch(OSRules, lower, Unknown),
		Browser:    firstMatch(BrowserRules, lower, Unknown),
	}
}

func firstMatch(rules []Rule, ua, fallback string) string {
	for _, rule := range rules {
		if rule.matches(ua) {
			return rule.Label
		}
	}

	return fallback
}
