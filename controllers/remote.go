package controllers

import (
	"context"

	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
)

// PropertyAPI is the part of the remote service that manages properties,
// CP codes and edge hostnames.
type PropertyAPI interface {
	PropertyExists(ctx context.Context, propertyName string) (bool, error)
	ListProductIDs(ctx context.Context, contractID string) ([]string, error)
	CreateCPCode(ctx context.Context, spec akamai.CPCodeSpec) (int, error)
	CreateProperty(ctx context.Context, spec akamai.PropertySpec) (string, error)
	FindEdgeHostname(ctx context.Context, edgeHostnameName string) (*akamai.EdgeHostname, error)
	CreateEdgeHostname(ctx context.Context, spec akamai.EdgeHostnameSpec) (int, error)
	UpdatePropertyHostnames(ctx context.Context, ref akamai.PropertyRef, bindings []akamai.HostnameBinding) ([]akamai.PropertyHostname, error)
	UpdatePropertyRules(ctx context.Context, ref akamai.PropertyRef, ruleFormat string, rules interface{}) (*akamai.RulesUpdateResult, error)
	ActivateProperty(ctx context.Context, ref akamai.PropertyRef, spec akamai.ActivationSpec) (string, error)
	GetActivationStatus(ctx context.Context, ref akamai.PropertyRef, activationID string, network akamai.Network) (string, error)
}

// SecurityAPI is the part of the remote service that manages security
// configurations.
type SecurityAPI interface {
	FindSecurityConfiguration(ctx context.Context, name string) (*akamai.SecurityConfiguration, error)
	GetSecurityConfiguration(ctx context.Context, configID int) (*akamai.SecurityConfiguration, error)
	GetSecurityConfigurationName(ctx context.Context, configID int) (string, error)
	ListSelectableHostnames(ctx context.Context, contractID, groupID string) ([]string, error)
	CreateSecurityConfiguration(ctx context.Context, spec akamai.SecurityConfigSpec) (int, int, error)
	CreateSecurityConfigVersion(ctx context.Context, configID, fromVersion int) (int, error)
	CreateSecurityPolicy(ctx context.Context, configID, version int, policyName, policyPrefix string) (*akamai.SecurityPolicy, error)
	ListSecurityPolicies(ctx context.Context, configID, version int) ([]akamai.SecurityPolicy, error)
	ListMatchTargets(ctx context.Context, configID, version int) ([]akamai.MatchTarget, error)
	CreateMatchTarget(ctx context.Context, configID, version int, policyID string, hostnames []string) (*akamai.MatchTarget, error)
	GetMatchTarget(ctx context.Context, configID, version, targetID int) (*akamai.MatchTarget, error)
	UpdateMatchTarget(ctx context.Context, configID, version int, target *akamai.MatchTarget) error
	GetSelectedHostnames(ctx context.Context, configID, version int) ([]string, error)
	UpdateSelectedHostnames(ctx context.Context, configID, version int, hostnames []string) error
	ActivateSecurityConfiguration(ctx context.Context, spec akamai.WAFActivationSpec) (int, error)
	GetSecurityActivationStatus(ctx context.Context, activationID int) (string, error)
}

// RemoteClient is everything the onboarding pipeline needs from the remote
// service.
type RemoteClient interface {
	PropertyAPI
	SecurityAPI
}

var _ RemoteClient = (*akamai.Client)(nil)
