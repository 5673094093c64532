package controllers

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/csvinput"
	"github.com/mmz-srf/akamai-onboard/pkg/merge"
)

const (
	defaultRuleFormat    = "latest"
	defaultHostsNotes    = "Initial Version"
	defaultBatchNotes    = "Created using Onboard CLI"
	defaultPolicyName    = "Default"
	defaultActivationMsg = "Onboard CLI Activation"
)

// Activation targets accepted by the batch and security update commands
const (
	ActivateDeliveryStaging    = "delivery-staging"
	ActivateWAFStaging         = "waf-staging"
	ActivateDeliveryProduction = "delivery-production"
	ActivateWAFProduction      = "waf-production"
	ActivateStaging            = "staging"
	ActivateProduction         = "production"
)

// MergeInput returns the part of the rule source that is in use.
func (s RuleSource) MergeInput() merge.Input {
	if s.UseFolder && !s.UseFile {
		return merge.Input{FolderPath: s.FolderPath, EnvName: s.EnvName}
	}
	return merge.Input{TemplateFile: s.TemplateFile, ValuesFile: s.ValuesFile}
}

// NewCreateRequest builds the request of the create command from a setup document.
func NewCreateRequest(doc *akamaiV1alpha1.SetupDocument) *OnboardRequest {
	info := doc.PropertyInfo
	req := &OnboardRequest{
		Mode:          ModeCreate,
		PropertyName:  info.PropertyName,
		ContractID:    info.ContractID,
		GroupID:       info.GroupID,
		ProductID:     info.ProductID,
		RuleFormat:    info.RuleFormat,
		SecureNetwork: info.SecureNetwork,
		VersionNotes:  info.VersionNotes,
		Hostnames:     doc.PublicHostnames,
		CPCode: CPCodePolicy{
			CreateNew:  isSet(info.DefaultCPCode.CreateNewCPCode),
			Name:       info.DefaultCPCode.NewCPCodeName,
			ExistingID: info.DefaultCPCode.ExistingCPCodeID,
		},
		RuleSource: RuleSource{
			UseFile:   info.FileInfo.UseFile,
			UseFolder: info.FolderInfo.UseFolder,
			Input: merge.Input{
				TemplateFile: info.FileInfo.SourceTemplateFile,
				ValuesFile:   info.FileInfo.SourceValuesFile,
				FolderPath:   info.FolderInfo.FolderPath,
				EnvName:      info.FolderInfo.EnvName,
			},
		},
		Flags: StepFlags{
			CreateNewCPCode:             info.DefaultCPCode.CreateNewCPCode,
			ActivatePropertyStaging:     doc.ActivatePropertyStaging,
			ActivateWAFPolicyStaging:    doc.ActivateWAFPolicyStaging,
			ActivatePropertyProduction:  doc.ActivatePropertyProduction,
			ActivateWAFPolicyProduction: doc.ActivateWAFPolicyProduction,
		},
		NotificationEmails: doc.NotificationEmails,
	}
	if req.VersionNotes == "" {
		req.VersionNotes = defaultBatchNotes
	}

	ehn := doc.EdgeHostname
	req.RequestedMode = ehn.Mode
	switch ehn.Mode {
	case akamaiV1alpha1.EdgeHostnameModeUseExisting:
		req.EdgeHostname = &UseExisting{Name: ehn.UseExistingEdgeHostname.EdgeHostname}
	case akamaiV1alpha1.EdgeHostnameModeNewStandardTLS:
		req.EdgeHostname = &NewStandardTLS{}
	case akamaiV1alpha1.EdgeHostnameModeNewEnhancedTLS:
		cert := ehn.NewEnhancedTLS.SSLCertInfo
		req.EdgeHostname = &NewEnhancedTLS{
			EnrollmentID:  cert.ExistingEnrollmentID,
			SlotNumber:    cert.ExistingSlotNumber,
			UseExisting:   cert.UseExistingEnrollmentID,
			CreateNewCert: cert.CreateNewSSLCert,
		}
	case akamaiV1alpha1.EdgeHostnameModeSecureByDefault:
		req.EdgeHostname = &SecureByDefault{
			ExistingName: ehn.SecureByDefault.UseExistingEdgeHostname,
			CreateNew:    ehn.SecureByDefault.CreateNewEdgeHostname,
		}
	}

	if waf := doc.UpdateWAFInfo; waf != nil {
		req.Flags.AddSelectedHost = waf.AddSelectedHost
		req.Flags.UpdateMatchTarget = waf.UpdateMatchTarget
		req.Security = SecurityPolicy{
			ConfigName:    waf.WAFConfigName,
			MatchTargetID: waf.WAFMatchTargetID,
		}
		if isSet(waf.AddSelectedHost) || isSet(waf.UpdateMatchTarget) || isSet(doc.ActivateWAFPolicyStaging) {
			req.Security.Action = SecurityUpdate
		}
	}
	return req
}

// NewHostsRequest builds the request of the single-host and multi-hosts
// commands. rows optionally route each hostname to its own origin.
func NewHostsRequest(doc *akamaiV1alpha1.HostsDocument, multi bool, rows []csvinput.DeliveryRow) *OnboardRequest {
	info := doc.PropertyInfo
	req := &OnboardRequest{
		Mode:          ModeHosts,
		MultiHost:     multi,
		PropertyName:  info.PropertyName,
		ContractID:    info.ContractID,
		GroupID:       info.GroupID,
		ProductID:     info.ProductID,
		RuleFormat:    info.RuleFormat,
		SecureNetwork: info.SecureNetwork,
		VersionNotes:  info.VersionNotes,
		Hostnames:     info.PropertyHostname,
		DefaultOrigin: info.PropertyOrigin,
		CPCode: CPCodePolicy{
			CreateNew:   true,
			Name:        strings.ReplaceAll(info.PropertyName, "_", " "),
			PerHostname: info.IndividualCPCode,
		},
		RuleSource: RuleSource{
			UseFile: true,
			Input: merge.Input{
				TemplateFile: info.SourceTemplateFile,
				ValuesFile:   info.SourceValuesFile,
			},
		},
		HostsEdgeHostname:  doc.EdgeHostname,
		NotificationEmails: doc.NotificationEmails,
		Rows:               rows,
	}
	if req.SecureNetwork == "" {
		req.SecureNetwork = akamai.EnhancedTLS
	}
	if req.RuleFormat == "" {
		req.RuleFormat = defaultRuleFormat
	}
	if req.VersionNotes == "" {
		req.VersionNotes = defaultHostsNotes
	}
	if len(rows) > 0 {
		req.Hostnames = csvinput.Hostnames(rows)
	}
	if req.PropertyName == "" && len(req.Hostnames) > 0 {
		req.PropertyName = req.Hostnames[0]
		req.CPCode.Name = req.PropertyName
	}

	ehn := doc.EdgeHostname
	switch {
	case ehn.CreateFromExistingEnrollmentID > 0:
		req.EdgeHostname = &NewEnhancedTLS{EnrollmentID: ehn.CreateFromExistingEnrollmentID, UseExisting: true}
	case ehn.SecureByDefault:
		req.EdgeHostname = &SecureByDefault{
			ExistingName: ehn.UseExistingEdgeHostname,
			CreateNew:    ehn.UseExistingEdgeHostname == "",
		}
	default:
		req.EdgeHostname = &UseExisting{Name: ehn.UseExistingEdgeHostname}
	}
	req.RequestedMode = req.EdgeHostname.ModeName()

	waf := doc.UpdateWAFInfo
	createWAF := waf.CreateNewSecurityConfig
	if createWAF {
		req.Security = SecurityPolicy{
			Action:     SecurityCreate,
			ConfigName: waf.WAFConfigName,
			PolicyName: waf.PolicyName,
		}
		if req.Security.ConfigName == "" {
			req.Security.ConfigName = req.PropertyName
		}
		if req.Security.PolicyName == "" {
			req.Security.PolicyName = defaultPolicyName
		}
	}

	req.Flags = StepFlags{
		CreateNewCPCode:             boolPtr(true),
		ActivatePropertyStaging:     boolPtr(true),
		ActivateWAFPolicyStaging:    boolPtr(createWAF),
		ActivatePropertyProduction:  boolPtr(doc.ActivateProduction),
		ActivateWAFPolicyProduction: boolPtr(createWAF && doc.ActivateProduction),
	}
	return req
}

// BatchOptions are the command line inputs of batch-create
type BatchOptions struct {
	ContractID       string
	GroupID          string
	ProductID        string
	TemplateFile     string
	RuleFormat       string
	SecureNetwork    string
	SecureByDefault  bool
	WAFConfigName    string
	WAFMatchTargetID int
	Activate         []string
	Emails           []string
}

// NewBatchRequest builds the request of the batch-create command.
func NewBatchRequest(opts BatchOptions, rows []csvinput.DeliveryRow) *OnboardRequest {
	activate := sets.New(opts.Activate...)
	req := &OnboardRequest{
		Mode:          ModeBatch,
		ContractID:    opts.ContractID,
		GroupID:       opts.GroupID,
		ProductID:     opts.ProductID,
		RuleFormat:    opts.RuleFormat,
		SecureNetwork: opts.SecureNetwork,
		VersionNotes:  defaultBatchNotes,
		Hostnames:     csvinput.Hostnames(rows),
		CPCode:        CPCodePolicy{CreateNew: true, PerHostname: true},
		RuleSource: RuleSource{
			UseFile: true,
			Input:   merge.Input{TemplateFile: opts.TemplateFile},
		},
		Security: SecurityPolicy{
			ConfigName:    opts.WAFConfigName,
			MatchTargetID: opts.WAFMatchTargetID,
		},
		Flags: StepFlags{
			CreateNewCPCode:             boolPtr(true),
			AddSelectedHost:             boolPtr(opts.WAFConfigName != ""),
			UpdateMatchTarget:           boolPtr(opts.WAFMatchTargetID > 0),
			ActivatePropertyStaging:     boolPtr(activate.Has(ActivateDeliveryStaging)),
			ActivateWAFPolicyStaging:    boolPtr(activate.Has(ActivateWAFStaging)),
			ActivatePropertyProduction:  boolPtr(activate.Has(ActivateDeliveryProduction)),
			ActivateWAFPolicyProduction: boolPtr(activate.Has(ActivateWAFProduction)),
		},
		NotificationEmails: opts.Emails,
		Rows:               rows,
	}
	if req.RuleFormat == "" {
		req.RuleFormat = defaultRuleFormat
	}
	if req.SecureNetwork == "" {
		req.SecureNetwork = akamai.EnhancedTLS
	}
	if len(req.NotificationEmails) == 0 {
		req.NotificationEmails = []string{DefaultNotificationEmail}
	}
	if opts.WAFConfigName != "" {
		req.Security.Action = SecurityUpdate
	}
	if opts.SecureByDefault {
		req.EdgeHostname = &SecureByDefault{CreateNew: true}
	} else {
		req.EdgeHostname = &UseExisting{}
	}
	req.RequestedMode = req.EdgeHostname.ModeName()
	return req
}

// AppsecOptions are the command line inputs of appsec-update and appsec-remove
type AppsecOptions struct {
	ConfigID     int
	Version      int
	Activate     []string
	Emails       []string
	VersionNotes string
}

// NewAppsecRequest builds the request of the security update commands.
func NewAppsecRequest(opts AppsecOptions, rows []csvinput.AppsecRow) *OnboardRequest {
	activate := sets.New(opts.Activate...)
	req := &OnboardRequest{
		Mode:         ModeAppsecUpdate,
		VersionNotes: opts.VersionNotes,
		Security: SecurityPolicy{
			Action:   SecurityUpdate,
			ConfigID: opts.ConfigID,
			Version:  opts.Version,
		},
		Flags: StepFlags{
			AddSelectedHost:             boolPtr(true),
			UpdateMatchTarget:           boolPtr(true),
			ActivateWAFPolicyStaging:    boolPtr(activate.Has(ActivateStaging) || activate.Has(ActivateProduction)),
			ActivateWAFPolicyProduction: boolPtr(activate.Has(ActivateProduction)),
		},
		NotificationEmails: opts.Emails,
		AppsecRows:         rows,
	}
	for _, row := range rows {
		req.Hostnames = append(req.Hostnames, row.Hostname)
	}
	if len(req.NotificationEmails) == 0 {
		req.NotificationEmails = []string{DefaultNotificationEmail}
	}
	if req.VersionNotes == "" {
		req.VersionNotes = defaultActivationMsg
	}
	return req
}

// EdgeHostnameSuffix returns the DNS suffix of edge hostnames created for the
// request's secure network, including the leading dot.
func (r *OnboardRequest) EdgeHostnameSuffix() string {
	return "." + akamai.EdgeHostnameZone(r.SecureNetwork)
}
