package remediation

import (
	"strconv"
	"strings"
)

// Choice is one of the remediation actions.
type Choice string

const (
	ChoiceNone                     Choice = ""
	ChoiceEnablePublicNetwork      Choice = "EnablePublicNetwork"
	ChoicePrivateEndpointGuidance  Choice = "PrivateEndpointGuidance"
	ChoicePrivateEndpointAutomated Choice = "PrivateEndpointAutomated"
	ChoicePolicyExemptionGuidance  Choice = "PolicyExemptionGuidance"
	ChoiceCustom                   Choice = "Custom"
)

// MenuItem is an entry of the numbered menu.
type MenuItem struct {
	Number      int
	Choice      Choice
	Title       string
	Description string
}

// Menu is the numbered menu offered interactively. The numbers are also
// accepted as short codes.
var Menu = []MenuItem{
	{1, ChoiceEnablePublicNetwork, "Enable public network access", "Open the resource to public ingress, optionally reverting after a delay"},
	{2, ChoicePrivateEndpointGuidance, "Private endpoint (guidance)", "Print the ordered steps to reach the resource privately"},
	{3, ChoicePrivateEndpointAutomated, "Private endpoint (automated)", "Create the private endpoint, DNS zone, link and zone group"},
	{4, ChoicePolicyExemptionGuidance, "Policy exemption (guidance)", "Print how to exempt only the staging resource from the policy"},
	{5, ChoiceCustom, "Custom", "Record a note and take no automated action"},
}

// Valid reports whether c is one of the known choices.
func (c Choice) Valid() bool {
	for _, item := range Menu {
		if item.Choice == c {
			return true
		}
	}
	return false
}

// MenuChoice returns the choice behind a menu number.
func MenuChoice(n int) (Choice, bool) {
	for _, item := range Menu {
		if item.Number == n {
			return item.Choice, true
		}
	}
	return ChoiceNone, false
}

// privateEndpoint resolves the bare "private endpoint" request.
func privateEndpoint(automate bool) Choice {
	if automate {
		return ChoicePrivateEndpointAutomated
	}
	return ChoicePrivateEndpointGuidance
}

// ParseCode resolves a short code. Codes are case-insensitive; unknown
// codes resolve to nothing.
func ParseCode(code string, createPrivateEndpoint bool) (Choice, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if n, err := strconv.Atoi(code); err == nil {
		return MenuChoice(n)
	}
	switch code {
	case "publicnetwork", "enablepublic", "enablepublicnetwork":
		return ChoiceEnablePublicNetwork, true
	case "privateendpoint":
		return privateEndpoint(createPrivateEndpoint), true
	case "privateendpointguide", "privateendpointguidance":
		return ChoicePrivateEndpointGuidance, true
	case "privateendpointautomated":
		return ChoicePrivateEndpointAutomated, true
	case "policyexemption", "policyexemptionguidance":
		return ChoicePolicyExemptionGuidance, true
	case "custom":
		return ChoiceCustom, true
	}
	return ChoiceNone, false
}

// descriptionKeywords maps keywords of a descriptive choice to the choice
// they name. A private endpoint match is refined by guidanceWords and
// automationWords.
var descriptionKeywords = []struct {
	choice   Choice
	keywords []string
}{
	{ChoiceEnablePublicNetwork, []string{"public"}},
	{ChoicePrivateEndpointGuidance, []string{"private endpoint", "private link", "privatelink"}},
	{ChoicePolicyExemptionGuidance, []string{"exemption", "exempt"}},
	{ChoiceCustom, []string{"custom"}},
}

var (
	guidanceWords   = []string{"guid", "steps", "plan", "manual"}
	automationWords = []string{"automat", "create"}
)

// ParseDescription resolves a descriptive choice such as "enable public
// network access". A description naming more than one action, or none,
// resolves to nothing.
func ParseDescription(text string, createPrivateEndpoint bool) (Choice, bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ChoiceNone, false
	}
	for _, item := range Menu {
		if text == strings.ToLower(string(item.Choice)) {
			return item.Choice, true
		}
	}

	var matched []Choice
	for _, d := range descriptionKeywords {
		if containsAny(text, d.keywords) {
			matched = append(matched, d.choice)
		}
	}
	if len(matched) != 1 {
		return ChoiceNone, false
	}

	if matched[0] != ChoicePrivateEndpointGuidance {
		return matched[0], true
	}
	guide, automate := containsAny(text, guidanceWords), containsAny(text, automationWords)
	switch {
	case guide && automate:
		return ChoiceNone, false
	case guide:
		return ChoicePrivateEndpointGuidance, true
	case automate:
		return ChoicePrivateEndpointAutomated, true
	}
	return privateEndpoint(createPrivateEndpoint), true
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
