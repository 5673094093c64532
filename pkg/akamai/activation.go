package akamai

import (
	"context"
	"fmt"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/papi"
)

// ActivateProperty activates a property version on the specified network
// and returns the activation ID. Activation warnings are acknowledged.
func (c *Client) ActivateProperty(ctx context.Context, ref PropertyRef, spec ActivationSpec) (string, error) {
	activationReq := papi.CreateActivationRequest{
		PropertyID: ref.PropertyID,
		ContractID: ref.ContractID,
		GroupID:    ref.GroupID,
		Activation: papi.Activation{
			PropertyVersion:        ref.Version,
			Network:                papi.ActivationNetwork(spec.Network),
			Note:                   spec.Note,
			NotifyEmails:           spec.NotifyEmails,
			AcknowledgeAllWarnings: true,
		},
	}

	activationResp, err := c.papiClient.CreateActivation(ctx, activationReq)
	if err != nil {
		return "", fmt.Errorf("failed to create activation: %w", fromPAPIError(err))
	}

	if activationResp == nil || activationResp.ActivationLink == "" {
		return "", fmt.Errorf("invalid response from create activation API")
	}

	activationID := extractActivationIDFromLink(activationResp.ActivationLink)
	if activationID == "" {
		return "", fmt.Errorf("failed to extract activation ID from link: %s", activationResp.ActivationLink)
	}
	return activationID, nil
}

// GetActivationStatus returns the remote status of a property activation on a network
func (c *Client) GetActivationStatus(ctx context.Context, ref PropertyRef, activationID string, network Network) (string, error) {
	getResp, err := c.papiClient.GetActivation(ctx, papi.GetActivationRequest{
		PropertyID:   ref.PropertyID,
		ActivationID: activationID,
		ContractID:   ref.ContractID,
		GroupID:      ref.GroupID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get activation: %w", fromPAPIError(err))
	}

	if getResp == nil {
		return "", fmt.Errorf("empty response from get activation API")
	}

	for _, activation := range getResp.Activations.Items {
		if activation.ActivationID == activationID && string(activation.Network) == string(network) {
			return string(activation.Status), nil
		}
	}

	return "", fmt.Errorf("activation %s on %s: %w", activationID, network, ErrNotFound)
}
