package akamai

import (
	"fmt"
	"strconv"
	"strings"
)

// extractIDFromLink returns the path segment that follows collection in a
// PAPI link, without query parameters.
func extractIDFromLink(link, collection string) string {
	// Link format: /papi/v1/properties/prp_123456?contractId=ctr_xxx&groupId=grp_xxx
	if idx := strings.Index(link, "?"); idx != -1 {
		link = link[:idx]
	}
	parts := strings.Split(link, "/")
	for i, part := range parts {
		if part == collection && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}

// extractPropertyIDFromLink extracts the property ID from a property link
func extractPropertyIDFromLink(propertyLink string) string {
	return extractIDFromLink(propertyLink, "properties")
}

// extractActivationIDFromLink extracts the activation ID from an activation link
func extractActivationIDFromLink(activationLink string) string {
	// Activation link format: /papi/v1/properties/prp_123456/activations/atv_123456?contractId=ctr_xxx&groupId=grp_xxx
	return extractIDFromLink(activationLink, "activations")
}

// ParseNumericID converts prefixed PAPI ids such as "cpc_123" or "ehn_45" to
// their numeric value. Unprefixed numbers are accepted as well.
func ParseNumericID(id, prefix string) (int, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(id), prefix)
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q: %w", strings.TrimSuffix(prefix, "_"), id, err)
	}
	return n, nil
}

// splitEdgeHostname splits an edge hostname into its record name and DNS
// zone. Names outside the Akamai zones are returned unchanged with an empty zone.
func splitEdgeHostname(edgeHostname string) (recordName, dnsZone string) {
	for _, zone := range []string{EdgeKeyZone, EdgeSuiteZone} {
		if strings.HasSuffix(edgeHostname, "."+zone) {
			return strings.TrimSuffix(edgeHostname, "."+zone), zone
		}
	}
	return edgeHostname, ""
}

// EdgeHostnameZone returns the DNS zone edge hostnames get for a secure network.
func EdgeHostnameZone(secureNetwork string) string {
	if secureNetwork == StandardTLS {
		return EdgeSuiteZone
	}
	return EdgeKeyZone
}

// HasEdgeHostnameZone reports whether name ends in one of the Akamai edge zones.
func HasEdgeHostnameZone(name string) bool {
	_, zone := splitEdgeHostname(name)
	return zone != ""
}

// appsecContractID strips the PAPI prefix, the AppSec API expects bare ids.
func appsecContractID(contractID string) string {
	return strings.TrimPrefix(contractID, "ctr_")
}

func appsecGroupID(groupID string) (int, error) {
	return ParseNumericID(groupID, "grp_")
}
