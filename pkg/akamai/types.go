package akamai

import "encoding/json"

// Network is an activation target.
type Network string

const (
	NetworkStaging    Network = "STAGING"
	NetworkProduction Network = "PRODUCTION"
)

// Secure network values accepted by edge hostname creation.
const (
	StandardTLS = "STANDARD_TLS"
	EnhancedTLS = "ENHANCED_TLS"
)

// Edge hostname DNS zones.
const (
	EdgeSuiteZone = "edgesuite.net"
	EdgeKeyZone   = "edgekey.net"
)

// PropertyRef identifies a property version within a contract and group
type PropertyRef struct {
	PropertyID string
	ContractID string
	GroupID    string
	Version    int
}

// PropertySpec holds the values needed to create a property
type PropertySpec struct {
	PropertyName string
	ContractID   string
	GroupID      string
	ProductID    string
	RuleFormat   string
}

// CPCodeSpec holds the values needed to create a CP code
type CPCodeSpec struct {
	Name       string
	ContractID string
	GroupID    string
	ProductID  string
}

// EdgeHostname is an existing edge hostname as reported by HAPI
type EdgeHostname struct {
	EdgeHostnameID int    `json:"edgeHostnameId"`
	RecordName     string `json:"recordName"`
	DNSZone        string `json:"dnsZone"`
	SecurityType   string `json:"securityType,omitempty"`
}

// Name returns the full DNS name of the edge hostname.
func (e EdgeHostname) Name() string {
	return e.RecordName + "." + e.DNSZone
}

// EdgeHostnameSpec holds the values needed to create an edge hostname
type EdgeHostnameSpec struct {
	ContractID       string
	GroupID          string
	ProductID        string
	DomainPrefix     string
	SecureNetwork    string
	CertEnrollmentID int
	SlotNumber       int
}

// HostnameBinding maps a public hostname to its edge hostname. Exactly one of
// EdgeHostnameID and CnameTo is set.
type HostnameBinding struct {
	CnameFrom            string
	EdgeHostnameID       int
	CnameTo              string
	CertProvisioningType string
}

// PropertyHostname is a hostname as returned after a hostnames update
type PropertyHostname struct {
	CnameFrom            string
	CnameTo              string
	EdgeHostnameID       string
	CertProvisioningType string
	ValidationCname      ValidationCname
}

// ValidationCname is the DNS record a secure-by-default hostname needs for
// domain validation.
type ValidationCname struct {
	Hostname string
	Target   string
}

// ActivationSpec holds the values needed to activate a property version
type ActivationSpec struct {
	Network      Network
	Note         string
	NotifyEmails []string
}

// RuleError is a validation message returned with a rule tree update
type RuleError struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Detail        string `json:"detail"`
	ErrorLocation string `json:"errorLocation"`
}

// RulesUpdateResult is the outcome of a rule tree update
type RulesUpdateResult struct {
	Etag     string      `json:"etag"`
	Errors   []RuleError `json:"errors"`
	Warnings []RuleError `json:"warnings"`
}

// SecurityConfiguration is an application security configuration summary
type SecurityConfiguration struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	LatestVersion     int    `json:"latestVersion"`
	StagingVersion    int    `json:"stagingVersion,omitempty"`
	ProductionVersion int    `json:"productionVersion,omitempty"`
}

// SecurityConfigSpec holds the values needed to create a security configuration
type SecurityConfigSpec struct {
	Name        string
	Description string
	ContractID  string
	GroupID     string
	Hostnames   []string
}

// SecurityPolicy is a policy within a security configuration version
type SecurityPolicy struct {
	PolicyID   string `json:"policyId"`
	PolicyName string `json:"policyName"`
}

// MatchTarget is a website match target. The decoded document is kept so
// that updates write back the other fields unchanged.
type MatchTarget struct {
	TargetID  int
	PolicyID  string
	Hostnames []string

	allHostnames bool
	raw          map[string]json.RawMessage
}

// TargetsAllHostnames reports whether the match target has no hostname list,
// which the remote service treats as "all hostnames".
func (m *MatchTarget) TargetsAllHostnames() bool {
	return m.allHostnames
}

// WAFActivationSpec holds the values needed to activate a security configuration version
type WAFActivationSpec struct {
	ConfigID           int
	Version            int
	Network            Network
	Note               string
	NotificationEmails []string
}
