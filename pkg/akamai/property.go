package akamai

import (
	"context"
	"fmt"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/papi"
)

// PropertyExists reports whether a property with the given name already exists
func (c *Client) PropertyExists(ctx context.Context, propertyName string) (bool, error) {
	searchResp, err := c.papiClient.SearchProperties(ctx, papi.SearchRequest{
		Key:   papi.SearchKeyPropertyName,
		Value: propertyName,
	})
	if err != nil {
		return false, fmt.Errorf("failed to search property %q: %w", propertyName, fromPAPIError(err))
	}
	if searchResp == nil {
		return false, nil
	}

	for _, item := range searchResp.Versions.Items {
		if item.PropertyName == propertyName {
			return true, nil
		}
	}
	return false, nil
}

// CreateProperty creates a new property in Akamai and returns its ID
func (c *Client) CreateProperty(ctx context.Context, spec PropertySpec) (string, error) {
	createReq := papi.CreatePropertyRequest{
		ContractID: spec.ContractID,
		GroupID:    spec.GroupID,
		Property: papi.PropertyCreate{
			PropertyName: spec.PropertyName,
			ProductID:    spec.ProductID,
		},
	}
	// "latest" is only meaningful for rule tree content types
	if spec.RuleFormat != "" && spec.RuleFormat != "latest" {
		createReq.Property.RuleFormat = spec.RuleFormat
	}

	createResp, err := c.papiClient.CreateProperty(ctx, createReq)
	if err != nil {
		return "", fmt.Errorf("failed to create property %q: %w", spec.PropertyName, fromPAPIError(err))
	}

	if createResp == nil || createResp.PropertyLink == "" {
		return "", fmt.Errorf("invalid response from create property API")
	}

	propertyID := extractPropertyIDFromLink(createResp.PropertyLink)
	if propertyID == "" {
		return "", fmt.Errorf("failed to extract property ID from link: %s", createResp.PropertyLink)
	}

	return propertyID, nil
}

// ListProductIDs returns the product ids available on a contract
func (c *Client) ListProductIDs(ctx context.Context, contractID string) ([]string, error) {
	productsResp, err := c.papiClient.GetProducts(ctx, papi.GetProductsRequest{
		ContractID: contractID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products for contract %s: %w", contractID, fromPAPIError(err))
	}
	if productsResp == nil {
		return []string{}, nil
	}

	products := make([]string, 0, len(productsResp.Products.Items))
	for _, p := range productsResp.Products.Items {
		if p.ProductID != "" {
			products = append(products, p.ProductID)
		}
	}
	return products, nil
}
