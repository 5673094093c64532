package akamai

import (
	"context"
	"fmt"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/papi"
)

// CreateCPCode creates a CP code and returns its numeric id
func (c *Client) CreateCPCode(ctx context.Context, spec CPCodeSpec) (int, error) {
	createResp, err := c.papiClient.CreateCPCode(ctx, papi.CreateCPCodeRequest{
		ContractID: spec.ContractID,
		GroupID:    spec.GroupID,
		CPCode: papi.CreateCPCode{
			ProductID:  spec.ProductID,
			CPCodeName: spec.Name,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create cpcode %q: %w", spec.Name, fromPAPIError(err))
	}
	if createResp == nil {
		return 0, fmt.Errorf("empty response from create cpcode API")
	}

	rawID := createResp.CPCodeID
	if rawID == "" {
		rawID = extractIDFromLink(createResp.CPCodeLink, "cpcodes")
	}
	return ParseNumericID(rawID, "cpc_")
}
