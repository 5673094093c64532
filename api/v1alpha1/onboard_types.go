package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NOTE: json tags follow the snake_case keys of the setup and hosts files
// operators already maintain. Pointer booleans distinguish "absent" from "false".

// SetupDocument is the input of the create command
type SetupDocument struct {
	PropertyInfo SetupPropertyInfo `json:"property_info"`

	// PublicHostnames are the hostnames the new property serves
	PublicHostnames []string `json:"public_hostnames"`

	EdgeHostname SetupEdgeHostname `json:"edge_hostname"`

	// UpdateWAFInfo is optional; without it no security configuration is touched
	UpdateWAFInfo *SetupWAFInfo `json:"update_waf_info,omitempty"`

	ActivatePropertyStaging     *bool `json:"activate_property_staging,omitempty"`
	ActivateWAFPolicyStaging    *bool `json:"activate_waf_policy_staging,omitempty"`
	ActivatePropertyProduction  *bool `json:"activate_property_production,omitempty"`
	ActivateWAFPolicyProduction *bool `json:"activate_waf_policy_production,omitempty"`

	NotificationEmails []string `json:"notification_emails,omitempty"`
}

// SetupPropertyInfo describes the property to create
type SetupPropertyInfo struct {
	PropertyName  string `json:"property_name"`
	SecureNetwork string `json:"secure_network"`
	ContractID    string `json:"contract_id"`
	GroupID       string `json:"group_id"`
	ProductID     string `json:"product_id"`
	RuleFormat    string `json:"rule_format"`
	VersionNotes  string `json:"version_notes,omitempty"`

	DefaultCPCode DefaultCPCode `json:"default_cpcode"`
	FileInfo      FileInfo      `json:"file_info"`
	FolderInfo    FolderInfo    `json:"folder_info"`
}

// DefaultCPCode selects the CP code of the default rule
type DefaultCPCode struct {
	CreateNewCPCode  *bool  `json:"create_new_cpcode,omitempty"`
	NewCPCodeName    string `json:"new_cpcode_name,omitempty"`
	ExistingCPCodeID int    `json:"existing_cpcode_id,omitempty"`
}

// FileInfo points at a rule template and its values file
type FileInfo struct {
	UseFile            bool   `json:"use_file"`
	SourceTemplateFile string `json:"source_template_file,omitempty"`
	SourceValuesFile   string `json:"source_values_file,omitempty"`
}

// FolderInfo points at a pipeline project folder and one of its environments
type FolderInfo struct {
	UseFolder  bool   `json:"use_folder"`
	FolderPath string `json:"folder_path,omitempty"`
	EnvName    string `json:"env_name,omitempty"`
}

// Edge hostname modes accepted in SetupEdgeHostname.Mode
const (
	EdgeHostnameModeUseExisting     = "use_existing_edgehostname"
	EdgeHostnameModeNewStandardTLS  = "new_standard_tls_edgehostname"
	EdgeHostnameModeNewEnhancedTLS  = "new_enhanced_tls_edgehostname"
	EdgeHostnameModeSecureByDefault = "secure_by_default"
)

// SetupEdgeHostname selects how the property gets its edge hostname
type SetupEdgeHostname struct {
	Mode string `json:"mode"`

	UseExistingEdgeHostname UseExistingEdgeHostname     `json:"use_existing_edgehostname,omitempty"`
	NewEnhancedTLS          NewEnhancedTLSEdgeHostname  `json:"new_enhanced_tls_edgehostname,omitempty"`
	SecureByDefault         SecureByDefaultEdgeHostname `json:"secure_by_default,omitempty"`
}

// UseExistingEdgeHostname names an edge hostname that already exists
type UseExistingEdgeHostname struct {
	EdgeHostname string `json:"edge_hostname,omitempty"`
}

// NewEnhancedTLSEdgeHostname carries the certificate used for a new edgekey.net hostname
type NewEnhancedTLSEdgeHostname struct {
	SSLCertInfo SSLCertInfo `json:"ssl_cert_info,omitempty"`
}

// SSLCertInfo references a certificate enrollment
type SSLCertInfo struct {
	UseExistingEnrollmentID bool `json:"use_existing_enrollment_id,omitempty"`
	ExistingEnrollmentID    int  `json:"existing_enrollment_id,omitempty"`
	ExistingSlotNumber      int  `json:"existing_slot_number,omitempty"`
	CreateNewSSLCert        bool `json:"create_new_ssl_cert,omitempty"`
}

// SecureByDefaultEdgeHostname either reuses one edge hostname or lets the
// platform create one per public hostname.
type SecureByDefaultEdgeHostname struct {
	CreateNewEdgeHostname   bool   `json:"create_new_edge_hostname,omitempty"`
	UseExistingEdgeHostname string `json:"use_existing_edge_hostname,omitempty"`
}

// SetupWAFInfo adds the new hostnames to an existing security configuration
type SetupWAFInfo struct {
	AddSelectedHost   *bool  `json:"add_selected_host,omitempty"`
	WAFConfigName     string `json:"waf_config_name,omitempty"`
	UpdateMatchTarget *bool  `json:"update_match_target,omitempty"`
	WAFMatchTargetID  int    `json:"waf_match_target_id,omitempty"`
}

// HostsDocument is the input of the single-host and multi-hosts commands
type HostsDocument struct {
	PropertyInfo HostsPropertyInfo `json:"property_info"`

	EdgeHostname HostsEdgeHostname `json:"edge_hostname"`

	UpdateWAFInfo HostsWAFInfo `json:"update_waf_info"`

	ActivateProduction bool     `json:"activate_production"`
	NotificationEmails []string `json:"notification_emails,omitempty"`
}

// HostsPropertyInfo describes a property built from the bundled product templates
type HostsPropertyInfo struct {
	PropertyName     string   `json:"property_name,omitempty"`
	ContractID       string   `json:"contract_id"`
	GroupID          string   `json:"group_id,omitempty"`
	ProductID        string   `json:"product_id"`
	PropertyOrigin   string   `json:"property_origin,omitempty"`
	VersionNotes     string   `json:"version_notes,omitempty"`
	PropertyHostname []string `json:"property_hostname"`
	IndividualCPCode bool     `json:"individual_cpcode,omitempty"`
	RuleFormat       string   `json:"rule_format,omitempty"`
	SecureNetwork    string   `json:"secure_network,omitempty"`

	SourceTemplateFile string `json:"source_template_file,omitempty"`
	SourceValuesFile   string `json:"source_values_file,omitempty"`
}

// HostsEdgeHostname selects the edge hostname in hosts mode
type HostsEdgeHostname struct {
	UseExistingEdgeHostname        string `json:"use_existing_edge_hostname,omitempty"`
	CreateFromExistingEnrollmentID int    `json:"create_from_existing_enrollment_id,omitempty"`
	SecureByDefault                bool   `json:"secure_by_default,omitempty"`
}

// HostsWAFInfo creates a new security configuration for the hostnames
type HostsWAFInfo struct {
	CreateNewSecurityConfig bool   `json:"create_new_security_config"`
	WAFConfigName           string `json:"waf_config_name,omitempty"`
	PolicyName              string `json:"policy_name,omitempty"`
}

// Run phases reported in OnboardStatus
const (
	PhaseValidating   = "Validating"
	PhaseProvisioning = "Provisioning"
	PhaseActivating   = "Activating"
	PhaseSecuring     = "Securing"
	PhaseCompleted    = "Completed"
	PhaseFailed       = "Failed"
)

// OnboardStatus is the observed outcome of one onboarding run
type OnboardStatus struct {
	// RunID identifies the run in logs and audit files
	RunID string `json:"runId"`

	Command string `json:"command"`

	// Properties created during the run
	Properties []PropertyStatus `json:"properties,omitempty"`

	SecurityConfigID      int `json:"securityConfigId,omitempty"`
	SecurityConfigVersion int `json:"securityConfigVersion,omitempty"`

	// Phase represents the current phase of the run
	Phase string `json:"phase,omitempty"`

	// Conditions record the outcome of each pipeline stage
	Conditions []metav1.Condition `json:"conditions,omitempty"`

	StartTime   *metav1.Time `json:"startTime,omitempty"`
	LastUpdated *metav1.Time `json:"lastUpdated,omitempty"`
}

// PropertyStatus is a property provisioned by a run
type PropertyStatus struct {
	PropertyName     string   `json:"propertyName"`
	PropertyID       string   `json:"propertyId,omitempty"`
	Version          int      `json:"version,omitempty"`
	Hostnames        []string `json:"hostnames,omitempty"`
	CPCodeIDs        []int    `json:"cpCodeIds,omitempty"`
	EdgeHostnameID   int      `json:"edgeHostnameId,omitempty"`
	StagingStatus    string   `json:"stagingStatus,omitempty"`
	ProductionStatus string   `json:"productionStatus,omitempty"`
}
