package akamai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// RulesContentType returns the rule tree media type pinned to a rule format.
func RulesContentType(ruleFormat string) string {
	if ruleFormat == "" || ruleFormat == "latest" {
		return "application/vnd.akamai.papirules.latest+json"
	}
	return "application/vnd.akamai.papirules." + ruleFormat + "+json"
}

// UpdatePropertyRules replaces the rule tree of a property version. The
// request content type pins the rule format so the tree is not upgraded.
// Rule validation messages returned by PAPI are part of the result, not an error.
func (c *Client) UpdatePropertyRules(ctx context.Context, ref PropertyRef, ruleFormat string, rules interface{}) (*RulesUpdateResult, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule tree is nil")
	}

	query := url.Values{}
	query.Set("contractId", ref.ContractID)
	query.Set("groupId", ref.GroupID)
	query.Set("validateRules", "false")

	var result RulesUpdateResult
	err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        fmt.Sprintf("/papi/v1/properties/%s/versions/%d/rules?%s", ref.PropertyID, ref.Version, query.Encode()),
		body:        rules,
		contentType: RulesContentType(ruleFormat),
	}, &result)
	if err != nil {
		return nil, fmt.Errorf("failed to update property rules: %w", err)
	}

	return &result, nil
}
