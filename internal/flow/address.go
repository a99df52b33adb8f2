package flow

import "strings"

// addressByPrefix maps the first three digits of a postal code to the
// simulated municipality fragment. This is a stand-in for a real postal
// lookup service.
var addressByPrefix = map[string]string{
	"100": "東京都千代田区",
	"150": "東京都渋谷区",
	"220": "神奈川県横浜市西区",
}

// DefaultAddressFragment is returned for any prefix the table does not
// know.
const DefaultAddressFragment = "東京都新宿区"

// LookupAddress maps a postal code (hyphen optional) to its simulated
// address fragment. It is deterministic and never fails.
func LookupAddress(postalCode string) string {
	digits := strings.ReplaceAll(postalCode, "-", "")
	if len(digits) >= 3 {
		if fragment, ok := addressByPrefix[digits[:3]]; ok {
			return fragment
		}
	}
	return DefaultAddressFragment
}
