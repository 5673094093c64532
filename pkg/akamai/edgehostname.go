package akamai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/papi"
)

// FindEdgeHostname looks up an existing edge hostname by its full name
func (c *Client) FindEdgeHostname(ctx context.Context, edgeHostnameName string) (*EdgeHostname, error) {
	recordName, dnsZone := splitEdgeHostname(edgeHostnameName)

	query := url.Values{}
	query.Set("recordNameSubstring", recordName)
	query.Set("dnsZone", dnsZone)

	var listResp struct {
		EdgeHostnames []EdgeHostname `json:"edgeHostnames"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/hapi/v1/edge-hostnames?" + query.Encode(),
	}, &listResp)
	if err != nil {
		return nil, fmt.Errorf("failed to list edge hostnames matching %s: %w", recordName, err)
	}

	// recordNameSubstring is a substring match, keep only the exact record
	for _, eh := range listResp.EdgeHostnames {
		if eh.RecordName == recordName && (dnsZone == "" || eh.DNSZone == dnsZone) {
			found := eh
			return &found, nil
		}
	}

	return nil, fmt.Errorf("edge hostname %s: %w", edgeHostnameName, ErrNotFound)
}

// CreateEdgeHostname creates a new edge hostname and returns its numeric id.
// Enhanced TLS hostnames are created under edgekey.net bound to the given
// certificate enrollment, standard TLS ones under edgesuite.net.
func (c *Client) CreateEdgeHostname(ctx context.Context, spec EdgeHostnameSpec) (int, error) {
	edgeHostnameCreate := papi.EdgeHostnameCreate{
		ProductID:         spec.ProductID,
		DomainPrefix:      spec.DomainPrefix,
		DomainSuffix:      EdgeHostnameZone(spec.SecureNetwork),
		SecureNetwork:     spec.SecureNetwork,
		IPVersionBehavior: "IPV4",
	}
	if spec.SecureNetwork == EnhancedTLS {
		edgeHostnameCreate.Secure = true
		edgeHostnameCreate.CertEnrollmentID = spec.CertEnrollmentID
		edgeHostnameCreate.SlotNumber = spec.SlotNumber
	}

	resp, err := c.papiClient.CreateEdgeHostname(ctx, papi.CreateEdgeHostnameRequest{
		ContractID:   spec.ContractID,
		GroupID:      spec.GroupID,
		EdgeHostname: edgeHostnameCreate,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create edge hostname %s.%s: %w",
			spec.DomainPrefix, edgeHostnameCreate.DomainSuffix, fromPAPIError(err))
	}

	if resp == nil || (resp.EdgeHostnameID == "" && resp.EdgeHostnameLink == "") {
		return 0, fmt.Errorf("invalid response from create edge hostname API")
	}

	rawID := resp.EdgeHostnameID
	if rawID == "" {
		rawID = extractIDFromLink(resp.EdgeHostnameLink, "edgehostnames")
	}
	return ParseNumericID(rawID, "ehn_")
}
