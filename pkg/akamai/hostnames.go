package akamai

import (
	"context"
	"fmt"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/papi"
)

// UpdatePropertyHostnames replaces the hostnames of a property version.
// Bindings with an EdgeHostnameID use the edge hostname array form, bindings
// with a CnameTo use the secure-by-default mapping form.
func (c *Client) UpdatePropertyHostnames(ctx context.Context, ref PropertyRef, bindings []HostnameBinding) ([]PropertyHostname, error) {
	papiHostnames := make([]papi.Hostname, 0, len(bindings))
	for _, b := range bindings {
		h := papi.Hostname{
			CnameType:            papi.HostnameCnameTypeEdgeHostname,
			CnameFrom:            b.CnameFrom,
			CnameTo:              b.CnameTo,
			CertProvisioningType: b.CertProvisioningType,
		}
		if b.EdgeHostnameID > 0 {
			h.EdgeHostnameID = fmt.Sprintf("ehn_%d", b.EdgeHostnameID)
		}
		papiHostnames = append(papiHostnames, h)
	}

	updateReq := papi.UpdatePropertyVersionHostnamesRequest{
		PropertyID:        ref.PropertyID,
		PropertyVersion:   ref.Version,
		ContractID:        ref.ContractID,
		GroupID:           ref.GroupID,
		ValidateHostnames: true,
		IncludeCertStatus: true,
		Hostnames:         papiHostnames,
	}

	resp, err := c.papiClient.UpdatePropertyVersionHostnames(ctx, updateReq)
	if err != nil {
		return nil, fmt.Errorf("failed to update property hostnames: %w", fromPAPIError(err))
	}
	if resp == nil {
		return []PropertyHostname{}, nil
	}

	hostnames := make([]PropertyHostname, 0, len(resp.Hostnames.Items))
	for _, h := range resp.Hostnames.Items {
		hostnames = append(hostnames, PropertyHostname{
			CnameFrom:            h.CnameFrom,
			CnameTo:              h.CnameTo,
			EdgeHostnameID:       h.EdgeHostnameID,
			CertProvisioningType: h.CertProvisioningType,
			ValidationCname: ValidationCname{
				Hostname: h.CertStatus.ValidationCname.Hostname,
				Target:   h.CertStatus.ValidationCname.Target,
			},
		})
	}

	return hostnames, nil
}
