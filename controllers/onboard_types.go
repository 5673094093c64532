package controllers

import (
	"errors"
	"time"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/csvinput"
	"github.com/mmz-srf/akamai-onboard/pkg/merge"
)

const (
	// Condition types
	ConditionTypeValidated         = "Validated"
	ConditionTypeProvisioned       = "Provisioned"
	ConditionTypeStagingActive     = "StagingActive"
	ConditionTypeProductionActive  = "ProductionActive"
	ConditionTypeSecurityActivated = "SecurityActivated"
	ConditionTypeReady             = "Ready"

	// SecureByDefaultEdgeHostnameID is the edge hostname id reported for
	// secure-by-default hostnames; the edge hostname is created on activation.
	SecureByDefaultEdgeHostnameID = -1

	// DefaultNotificationEmail is used by the security update commands when
	// no email is given.
	DefaultNotificationEmail = "noreply@akamai.com"
)

var (
	// ErrValidation wraps the aggregated diagnostics of a failed validation gate
	ErrValidation = errors.New("validation failed")

	// ErrActivationFailed is returned when a single activation ends in a non-active state
	ErrActivationFailed = errors.New("activation failed")

	// ErrRuleTreePatch is returned when a merged rule tree cannot be patched
	ErrRuleTreePatch = errors.New("rule tree patch failed")

	// ErrEdgeHostname is returned when no usable edge hostname can be resolved
	ErrEdgeHostname = errors.New("edge hostname resolution failed")
)

// Mode selects the input shape a request was built from and with it the
// validation checklist that applies.
type Mode string

const (
	ModeCreate       Mode = "create"
	ModeHosts        Mode = "hosts"
	ModeBatch        Mode = "batch"
	ModeAppsecUpdate Mode = "appsec-update"
)

// EdgeHostnameMode is one of UseExisting, NewStandardTLS, NewEnhancedTLS or
// SecureByDefault.
type EdgeHostnameMode interface {
	ModeName() string
	isEdgeHostnameMode()
}

// UseExisting binds the hostnames to an edge hostname that already exists.
// In batch mode Name is empty and every row names its own edge hostname.
type UseExisting struct {
	Name string
	ID   int
}

// NewStandardTLS creates <prefix>.edgesuite.net
type NewStandardTLS struct{}

// NewEnhancedTLS creates <prefix>.edgekey.net on an existing certificate enrollment
type NewEnhancedTLS struct {
	EnrollmentID  int
	SlotNumber    int
	UseExisting   bool
	CreateNewCert bool
}

// SecureByDefault lets the platform provision certificates. Either an
// existing edge hostname is reused or one is created per hostname on
// activation.
type SecureByDefault struct {
	ExistingName string
	ExistingID   int
	CreateNew    bool
}

func (*UseExisting) ModeName() string { return "use_existing_edgehostname" }
func (*NewStandardTLS) ModeName() string { return "new_standard_tls_edgehostname" }
func (*NewEnhancedTLS) ModeName() string { return "new_enhanced_tls_edgehostname" }
func (*SecureByDefault) ModeName() string { return "secure_by_default" }

func (*UseExisting) isEdgeHostnameMode() {}
func (*NewStandardTLS) isEdgeHostnameMode() {}
func (*NewEnhancedTLS) isEdgeHostnameMode() {}
func (*SecureByDefault) isEdgeHostnameMode() {}

// CPCodePolicy selects the CP code(s) of the property
type CPCodePolicy struct {
	CreateNew  bool
	Name       string
	ExistingID int

	// PerHostname creates one CP code per hostname, named after it
	PerHostname bool
}

// RuleSource names where the rule tree comes from. Exactly one of UseFile
// and UseFolder must be set.
type RuleSource struct {
	UseFile   bool
	UseFolder bool
	merge.Input
}

// SecurityAction selects what happens to the security configuration
type SecurityAction int

const (
	SecurityNone SecurityAction = iota
	SecurityCreate
	SecurityUpdate
)

// SecurityPolicy describes the security configuration the hostnames go to
type SecurityPolicy struct {
	Action     SecurityAction
	ConfigName string
	PolicyName string

	// ConfigID and Version address the configuration directly (appsec-update)
	ConfigID int
	Version  int

	MatchTargetID int
}

// StepFlags are the optional pipeline switches as read from the input; nil
// means absent.
type StepFlags struct {
	CreateNewCPCode             *bool
	AddSelectedHost             *bool
	UpdateMatchTarget           *bool
	ActivatePropertyStaging     *bool
	ActivateWAFPolicyStaging    *bool
	ActivatePropertyProduction  *bool
	ActivateWAFPolicyProduction *bool
}

// ExecutionPlan is the set of optional stages that run
type ExecutionPlan struct {
	CreateNewCPCode             bool
	AddSelectedHost             bool
	UpdateMatchTarget           bool
	ActivatePropertyStaging     bool
	ActivateWAFPolicyStaging    bool
	ActivatePropertyProduction  bool
	ActivateWAFPolicyProduction bool
}

// AnyActivation reports whether any activation stage runs.
func (p ExecutionPlan) AnyActivation() bool {
	return p.ActivatePropertyStaging || p.ActivatePropertyProduction ||
		p.ActivateWAFPolicyStaging || p.ActivateWAFPolicyProduction
}

// OnboardRequest is the unit of work of one onboarding run. The validation
// gate and the provisioner fill in the resolved fields.
type OnboardRequest struct {
	Mode Mode

	// MultiHost is set for multi-hosts runs, which name edge hostnames after
	// the property
	MultiHost bool

	PropertyName  string
	ContractID    string
	GroupID       string
	ProductID     string
	RuleFormat    string
	SecureNetwork string
	VersionNotes  string

	Hostnames []string

	// EdgeHostname is nil when the input named an unknown mode, which is
	// kept in RequestedMode for the diagnostic
	EdgeHostname  EdgeHostnameMode
	RequestedMode string

	// HostsEdgeHostname is the raw hosts-mode input, kept so conflicting
	// fields can be reported
	HostsEdgeHostname akamaiV1alpha1.HostsEdgeHostname

	CPCode     CPCodePolicy
	RuleSource RuleSource

	// DefaultOrigin overrides the hostname of the default rule's origin behavior
	DefaultOrigin string

	Security SecurityPolicy
	Flags    StepFlags

	NotificationEmails []string

	// Rows are the batch input, or the per-hostname origins of a
	// multi-hosts run
	Rows   []csvinput.DeliveryRow
	Groups []csvinput.PropertyGroup

	// Security update input
	AppsecRows []csvinput.AppsecRow

	// Resolved by the validation gate
	EdgeHostnameIDs map[string]int
	WAF             *SecurityConfigContext
}

// SecurityConfigContext tracks the security configuration through the
// workflow stages.
type SecurityConfigContext struct {
	ConfigID      int
	ConfigName    string
	LatestVersion int
	Version       int
	PolicyIDs     []string
	TargetIDs     []int
	SelectedHosts []string
}

// ProvisionedProperty is a property created by the provisioner
type ProvisionedProperty struct {
	Name       string
	PropertyID string
	Version    int

	// Hostnames, CPCodeIDs, Origins and ForwardHostHeaders are index-aligned
	Hostnames          []string
	CPCodeIDs          []int
	Origins            []string
	ForwardHostHeaders []string
	EdgeHostnames      []string

	EdgeHostnameID int
}

// Ref returns the property version reference used by remote calls.
func (p *ProvisionedProperty) Ref(contractID, groupID string) akamai.PropertyRef {
	return akamai.PropertyRef{
		PropertyID: p.PropertyID,
		ContractID: contractID,
		GroupID:    groupID,
		Version:    p.Version,
	}
}

// ActivationState is the client side state of one activation
type ActivationState string

const (
	StateNotSubmitted         ActivationState = "NOT_SUBMITTED"
	StatePending              ActivationState = "PENDING"
	StateActive               ActivationState = "ACTIVE"
	StateActivationError      ActivationState = "ACTIVATION_ERROR"
	StateUnableToUpdateStatus ActivationState = "UNABLE_TO_UPDATE_STATUS"
)

// Terminal reports whether no further status change is expected.
func (s ActivationState) Terminal() bool {
	switch s {
	case StateActive, StateActivationError, StateUnableToUpdateStatus:
		return true
	}
	return false
}

// ActivationRecord tracks one activation of a resource on a network
type ActivationRecord struct {
	ResourceID   string
	ResourceName string
	Version      int
	Network      akamai.Network

	// Hostnames covered by the resource, used to partition batch results
	Hostnames []string

	ActivationID string
	Status       ActivationState
	RemoteStatus string
	Detail       string

	SubmittedAt time.Time
	ActiveAt    time.Time
}
