package classify

import (
	"sort"
	"strconv"
)

// Entry describes a provider error identifier.
type Entry struct {
	ID          string
	Description string
	Remediation string
	// Permanent marks identifiers that will fail the same way on every
	// attempt. Render errors (1000-1009) are recognised but not permanent.
	Permanent bool
}

const (
	fixAPIKey    = "Copy the correct API key from the template's workspace in the Personalia dashboard and paste it into your API call."
	fixRuleLogic = "Contact the designer to fix the rule logic defined in uCreate."
)

// catalog is built once and never written after package init.
var catalog = map[string]Entry{
	"101": {Description: "API key does not belong to this template.", Remediation: fixAPIKey, Permanent: true},
	"102": {Description: "Invalid or missing API key.", Remediation: fixAPIKey, Permanent: true},
	"103": {Description: "Invalid Template ID.", Remediation: "Copy the correct template ID from the Personalia dashboard and paste it into your API call.", Permanent: true},
	"104": {Description: "Invalid value(s) in the Output section.", Remediation: "Fix your API call. Check the Output section and validate that all the values of the parameters are valid.", Permanent: true},
	"105": {Description: "Unable to fetch more than the maximum allowed Fetch URLs.", Remediation: "Contact the designer to reduce the number of Fetch URLs in the template in uCreate.", Permanent: true},
	"106": {Description: "Unable to fetch more than the maximum allowed total size of all Fetch URLs.", Remediation: "Reduce the Fetch URL sizes so that the total size of all Fetch URLs does not exceed the maximum. Alternatively, use different images.", Permanent: true},
	"107": {Description: "Failed to fetch the Fetch URL or it timed out.", Remediation: "Correct the image or the URL. Alternatively, use a different image.", Permanent: true},
	"108": {Description: "Invalid/unsupported image format in Fetch URL.", Remediation: "Use a different image format. Only PNG & JPG are supported.", Permanent: true},
	"109": {Description: "Invalid JSON syntax.", Remediation: "Fix your API call. Check the JSON and validate that all mandatory parameters are included and that their types are valid.", Permanent: true},
	"111": {Description: "Input field is missing in the API call.", Remediation: "Fix your API call. Validate that all expected input fields are included.", Permanent: true},
	"112": {Description: "Invalid date format in input field.", Remediation: "Fix your API call. Expected date format is YYYY-MM-DD (e.g., 2023-07-24).", Permanent: true},
	"113": {Description: "Invalid number format in input field.", Remediation: "Fix your API call. Valid number format is: No comma separator allowed, only 1 period (optional) and it can be a negative number.", Permanent: true},
	"114": {Description: "Invalid Fetch protocol. It must be HTTP or HTTPS.", Remediation: "Fix your API call. Use HTTP/HTTPS in the Fetch URL.", Permanent: true},
	"117": {Description: "Insufficient credits.", Remediation: "Insufficient credits remaining this month for your account. To increase the number of credits, upgrade your subscription plan.", Permanent: true},
	"118": {Description: "Unsupported output format.", Remediation: "Only PDF is supported.", Permanent: true},

	"1000": {Description: "Something went wrong.", Remediation: "Contact support."},
	"1001": {Description: "Invalid logic in a rule.", Remediation: "Contact the designer to check the rules defined in uCreate."},
	"1002": {Description: "Something went wrong in a design document.", Remediation: "Contact the designer to fix the document in uCreate."},
	"1003": {Description: "Input value(s) resulted in invalid barcode generation.", Remediation: fixRuleLogic},
	"1004": {Description: "No output. This may be due to Skip or Abort logic defined in uCreate.", Remediation: fixRuleLogic},
	"1005": {Description: "Input value(s) resulted in division by zero.", Remediation: fixRuleLogic},
	"1006": {Description: "Missing graphic or text asset detected.", Remediation: "Contact the designer to fix the design and include the asset in uCreate."},
	"1007": {Description: "Missing style detected.", Remediation: "Contact the designer to fix the design and include the style in uCreate."},
	"1008": {Description: "Missing font detected.", Remediation: "Contact the designer to fix the design and include the font in uCreate."},
	"1009": {Description: "Text overflow detected.", Remediation: "Contact the designer to fix the design in uCreate either by copyfitting or truncating the input value."},
}

// Lookup returns the catalog entry for a provider error identifier.
func Lookup(id string) (Entry, bool) {
	e, ok := catalog[id]
	if !ok {
		return Entry{}, false
	}
	e.ID = id
	return e, true
}

// IsPermanentID reports whether id is in the fixed permanent roster.
func IsPermanentID(id string) bool {
	return catalog[id].Permanent
}

// KnownIDs returns every catalogued identifier in numeric order.
func KnownIDs() []string {
	ids := make([]string, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	return ids
}
