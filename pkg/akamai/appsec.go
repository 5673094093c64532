package akamai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/akamai/AkamaiOPEN-edgegrid-golang/v8/pkg/appsec"
)

const matchTargetTypeWebsite = "website"

// ListSecurityConfigurations returns every security configuration visible to the credentials
func (c *Client) ListSecurityConfigurations(ctx context.Context) ([]SecurityConfiguration, error) {
	var listResp *appsec.GetConfigurationsResponse
	err := c.withAppSec(func() (err error) {
		listResp, err = c.appsecClient.GetConfigurations(ctx, appsec.GetConfigurationsRequest{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list security configurations: %w", err)
	}

	configs := make([]SecurityConfiguration, 0, len(listResp.Configurations))
	for _, cfg := range listResp.Configurations {
		configs = append(configs, SecurityConfiguration{
			ID:                cfg.ID,
			Name:              cfg.Name,
			LatestVersion:     cfg.LatestVersion,
			StagingVersion:    cfg.StagingVersion,
			ProductionVersion: cfg.ProductionVersion,
		})
	}
	return configs, nil
}

// FindSecurityConfiguration looks up a security configuration by name
func (c *Client) FindSecurityConfiguration(ctx context.Context, name string) (*SecurityConfiguration, error) {
	configs, err := c.ListSecurityConfigurations(ctx)
	if err != nil {
		return nil, err
	}
	for _, cfg := range configs {
		if cfg.Name == name {
			found := cfg
			return &found, nil
		}
	}
	return nil, fmt.Errorf("security configuration %q: %w", name, ErrNotFound)
}

// GetSecurityConfiguration looks up a security configuration by id
func (c *Client) GetSecurityConfiguration(ctx context.Context, configID int) (*SecurityConfiguration, error) {
	var cfg *appsec.GetConfigurationResponse
	err := c.withAppSec(func() (err error) {
		cfg, err = c.appsecClient.GetConfiguration(ctx, appsec.GetConfigurationRequest{ConfigID: configID})
		return err
	})
	if isNotFound(err) {
		return nil, fmt.Errorf("security configuration %d: %w", configID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security configuration %d: %w", configID, err)
	}
	return &SecurityConfiguration{
		ID:                cfg.ID,
		Name:              cfg.Name,
		LatestVersion:     cfg.LatestVersion,
		StagingVersion:    cfg.StagingVersion,
		ProductionVersion: cfg.ProductionVersion,
	}, nil
}

// GetSecurityConfigurationName returns the name of a security configuration
func (c *Client) GetSecurityConfigurationName(ctx context.Context, configID int) (string, error) {
	cfg, err := c.GetSecurityConfiguration(ctx, configID)
	if err != nil {
		return "", err
	}
	return cfg.Name, nil
}

// ListSelectableHostnames returns the hostnames a new security configuration
// on the contract and group may protect.
func (c *Client) ListSelectableHostnames(ctx context.Context, contractID, groupID string) ([]string, error) {
	grp, err := appsecGroupID(groupID)
	if err != nil {
		return nil, err
	}

	var selectable *appsec.GetSelectableHostnamesResponse
	err = c.withAppSec(func() (err error) {
		selectable, err = c.appsecClient.GetSelectableHostnames(ctx, appsec.GetSelectableHostnamesRequest{
			ContractID: appsecContractID(contractID),
			GroupID:    grp,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list selectable hostnames: %w", err)
	}

	hostnames := make([]string, 0, len(selectable.AvailableSet))
	for _, h := range selectable.AvailableSet {
		hostnames = append(hostnames, strings.ToLower(h.Hostname))
	}
	return hostnames, nil
}

// CreateSecurityConfiguration creates a security configuration and returns its id and first version
func (c *Client) CreateSecurityConfiguration(ctx context.Context, spec SecurityConfigSpec) (int, int, error) {
	grp, err := appsecGroupID(spec.GroupID)
	if err != nil {
		return 0, 0, err
	}

	var createResp *appsec.CreateConfigurationResponse
	err = c.withAppSec(func() (err error) {
		createResp, err = c.appsecClient.CreateConfiguration(ctx, appsec.CreateConfigurationRequest{
			Name:        spec.Name,
			Description: spec.Description,
			ContractID:  appsecContractID(spec.ContractID),
			GroupID:     grp,
			Hostnames:   spec.Hostnames,
		})
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create security configuration %q: %w", spec.Name, err)
	}
	return createResp.ConfigID, createResp.Version, nil
}

// CreateSecurityConfigVersion clones a configuration version and returns the new version number
func (c *Client) CreateSecurityConfigVersion(ctx context.Context, configID, fromVersion int) (int, error) {
	var versionResp *appsec.CreateConfigurationVersionCloneResponse
	err := c.withAppSec(func() (err error) {
		versionResp, err = c.appsecClient.CreateConfigurationVersionClone(ctx, appsec.CreateConfigurationVersionCloneRequest{
			ConfigID:          configID,
			CreateFromVersion: fromVersion,
		})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create version of security configuration %d: %w", configID, err)
	}
	return versionResp.Version, nil
}

// CreateSecurityPolicy creates a policy with default settings
func (c *Client) CreateSecurityPolicy(ctx context.Context, configID, version int, policyName, policyPrefix string) (*SecurityPolicy, error) {
	var policy *appsec.CreateSecurityPolicyResponse
	err := c.withAppSec(func() (err error) {
		policy, err = c.appsecClient.CreateSecurityPolicy(ctx, appsec.CreateSecurityPolicyRequest{
			ConfigID:        configID,
			Version:         version,
			PolicyName:      policyName,
			PolicyPrefix:    policyPrefix,
			DefaultSettings: true,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create security policy %q: %w", policyName, err)
	}
	return &SecurityPolicy{PolicyID: policy.PolicyID, PolicyName: policy.PolicyName}, nil
}

// ListSecurityPolicies returns the policies of a configuration version
func (c *Client) ListSecurityPolicies(ctx context.Context, configID, version int) ([]SecurityPolicy, error) {
	var policiesResp *appsec.GetSecurityPoliciesResponse
	err := c.withAppSec(func() (err error) {
		policiesResp, err = c.appsecClient.GetSecurityPolicies(ctx, appsec.GetSecurityPoliciesRequest{
			ConfigID: configID,
			Version:  version,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list security policies: %w", err)
	}

	policies := make([]SecurityPolicy, 0, len(policiesResp.Policies))
	for _, p := range policiesResp.Policies {
		policies = append(policies, SecurityPolicy{PolicyID: p.PolicyID, PolicyName: p.PolicyName})
	}
	return policies, nil
}

// ListMatchTargets returns the website match targets of a configuration version
func (c *Client) ListMatchTargets(ctx context.Context, configID, version int) ([]MatchTarget, error) {
	var targetsResp *appsec.GetMatchTargetsResponse
	err := c.withAppSec(func() (err error) {
		targetsResp, err = c.appsecClient.GetMatchTargets(ctx, appsec.GetMatchTargetsRequest{
			ConfigID:      configID,
			ConfigVersion: version,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list match targets: %w", err)
	}

	targets := make([]MatchTarget, 0, len(targetsResp.MatchTargets.WebsiteTargets))
	for _, website := range targetsResp.MatchTargets.WebsiteTargets {
		target, err := matchTargetFrom(website)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *target)
	}
	return targets, nil
}

// CreateMatchTarget creates a website match target routing the hostnames to a policy
func (c *Client) CreateMatchTarget(ctx context.Context, configID, version int, policyID string, hostnames []string) (*MatchTarget, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"type":                         matchTargetTypeWebsite,
		"hostnames":                    hostnames,
		"filePaths":                    []string{"/*"},
		"defaultFile":                  "NO_MATCH",
		"isNegativeFileExtensionMatch": false,
		"isNegativePathMatch":          false,
		"securityPolicy": map[string]string{
			"policyId": policyID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode match target: %w", err)
	}

	var created *appsec.CreateMatchTargetResponse
	err = c.withAppSec(func() (err error) {
		created, err = c.appsecClient.CreateMatchTarget(ctx, appsec.CreateMatchTargetRequest{
			Type:           matchTargetTypeWebsite,
			ConfigID:       configID,
			ConfigVersion:  version,
			JsonPayloadRaw: payload,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create match target: %w", err)
	}
	return matchTargetFrom(created)
}

// GetMatchTarget reads a match target
func (c *Client) GetMatchTarget(ctx context.Context, configID, version, targetID int) (*MatchTarget, error) {
	var target *appsec.GetMatchTargetResponse
	err := c.withAppSec(func() (err error) {
		target, err = c.appsecClient.GetMatchTarget(ctx, appsec.GetMatchTargetRequest{
			ConfigID:      configID,
			ConfigVersion: version,
			TargetID:      targetID,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get match target %d: %w", targetID, err)
	}
	return matchTargetFrom(target)
}

// UpdateMatchTarget writes a match target back with its current hostname list
func (c *Client) UpdateMatchTarget(ctx context.Context, configID, version int, target *MatchTarget) error {
	payload, err := target.payload()
	if err != nil {
		return err
	}
	err = c.withAppSec(func() error {
		_, err := c.appsecClient.UpdateMatchTarget(ctx, appsec.UpdateMatchTargetRequest{
			ConfigID:       configID,
			ConfigVersion:  version,
			TargetID:       target.TargetID,
			JsonPayloadRaw: payload,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update match target %d: %w", target.TargetID, err)
	}
	return nil
}

// GetSelectedHostnames returns the hostnames a configuration version protects
func (c *Client) GetSelectedHostnames(ctx context.Context, configID, version int) ([]string, error) {
	var selected *appsec.GetSelectedHostnamesResponse
	err := c.withAppSec(func() (err error) {
		selected, err = c.appsecClient.GetSelectedHostnames(ctx, appsec.GetSelectedHostnamesRequest{
			ConfigID: configID,
			Version:  version,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get selected hostnames: %w", err)
	}

	hostnames := make([]string, 0, len(selected.HostnameList))
	for _, h := range selected.HostnameList {
		hostnames = append(hostnames, h.Hostname)
	}
	return hostnames, nil
}

// UpdateSelectedHostnames replaces the hostnames a configuration version protects
func (c *Client) UpdateSelectedHostnames(ctx context.Context, configID, version int, hostnames []string) error {
	list := make([]appsec.Hostname, 0, len(hostnames))
	for _, h := range hostnames {
		list = append(list, appsec.Hostname{Hostname: h})
	}
	err := c.withAppSec(func() error {
		_, err := c.appsecClient.UpdateSelectedHostnames(ctx, appsec.UpdateSelectedHostnamesRequest{
			ConfigID:     configID,
			Version:      version,
			HostnameList: list,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update selected hostnames: %w", err)
	}
	return nil
}

// ActivateSecurityConfiguration activates a configuration version and returns the activation id
func (c *Client) ActivateSecurityConfiguration(ctx context.Context, spec WAFActivationSpec) (int, error) {
	activationReq := appsec.CreateActivationsRequest{
		Action:             string(appsec.ActivationTypeActivate),
		Network:            string(spec.Network),
		Note:               spec.Note,
		NotificationEmails: spec.NotificationEmails,
	}
	activationReq.ActivationConfigs = append(activationReq.ActivationConfigs, struct {
		ConfigID      int `json:"configId"`
		ConfigVersion int `json:"configVersion"`
	}{ConfigID: spec.ConfigID, ConfigVersion: spec.Version})

	var activation *appsec.CreateActivationsResponse
	err := c.withAppSec(func() (err error) {
		activation, err = c.appsecClient.CreateActivations(ctx, activationReq, true)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to activate security configuration %d v%d: %w", spec.ConfigID, spec.Version, err)
	}
	return activation.ActivationID, nil
}

// GetSecurityActivationStatus returns the remote status of a security configuration activation
func (c *Client) GetSecurityActivationStatus(ctx context.Context, activationID int) (string, error) {
	var activation *appsec.GetActivationsResponse
	err := c.withAppSec(func() (err error) {
		activation, err = c.appsecClient.GetActivations(ctx, appsec.GetActivationsRequest{ActivationID: activationID})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get security activation %d: %w", activationID, err)
	}
	if activation.Status == "" {
		return "", fmt.Errorf("security activation %d returned no status", activationID)
	}
	return string(activation.Status), nil
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// matchTargetFrom converts a typed match target response. Empty hostname
// lists are omitted when encoding, which reads back as "all hostnames".
func matchTargetFrom(typed interface{}) (*MatchTarget, error) {
	raw, err := json.Marshal(typed)
	if err != nil {
		return nil, fmt.Errorf("failed to encode match target: %w", err)
	}
	return DecodeMatchTarget(raw)
}

// DecodeMatchTarget reads a match target document. A document without a
// hostnames list targets all hostnames.
func DecodeMatchTarget(raw json.RawMessage) (*MatchTarget, error) {
	doc := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode match target: %w", err)
	}

	var fields struct {
		TargetID       int      `json:"targetId"`
		Hostnames      []string `json:"hostnames"`
		SecurityPolicy struct {
			PolicyID string `json:"policyId"`
		} `json:"securityPolicy"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode match target: %w", err)
	}

	_, hasHostnames := doc["hostnames"]
	return &MatchTarget{
		TargetID:     fields.TargetID,
		PolicyID:     fields.SecurityPolicy.PolicyID,
		Hostnames:    fields.Hostnames,
		allHostnames: !hasHostnames,
		raw:          doc,
	}, nil
}

// payload returns the match target document with the hostname list replaced.
func (m *MatchTarget) payload() (json.RawMessage, error) {
	doc := make(map[string]json.RawMessage, len(m.raw)+1)
	for k, v := range m.raw {
		doc[k] = v
	}
	if !m.allHostnames || len(m.Hostnames) > 0 {
		hostnames, err := json.Marshal(m.Hostnames)
		if err != nil {
			return nil, fmt.Errorf("failed to encode match target hostnames: %w", err)
		}
		doc["hostnames"] = hostnames
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode match target %d: %w", m.TargetID, err)
	}
	return payload, nil
}
