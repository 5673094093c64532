package controllers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/csvinput"
	"github.com/mmz-srf/akamai-onboard/pkg/merge"
)

// Diagnostic codes
const (
	CodeInput         = "InvalidInput"
	CodePropertyName  = "PropertyNameInUse"
	CodeRuleSource    = "RuleSource"
	CodeCPCode        = "CPCode"
	CodeTierOrder     = "NetworkTierOrder"
	CodeProduct       = "InvalidProduct"
	CodeSecureNetwork = "InvalidSecureNetwork"
	CodeHostname      = "InvalidHostname"
	CodeEdgeHostname  = "EdgeHostname"
	CodeFile          = "FileNotFound"
	CodeSecurity      = "SecurityConfig"
	CodeEmail         = "NotificationEmail"
	CodeRemote        = "RemoteLookup"
	CodePrerequisite  = "MissingPrerequisite"
)

const (
	minHostnameLength = 4
	maxHostnameLength = 60
)

var invalidHostnameChars = regexp.MustCompile(`[^.\-a-zA-Z0-9]`)

// Diagnostic is one failed check of the validation gate
type Diagnostic struct {
	Code    string
	Field   string
	Value   string
	Message string
}

func (d Diagnostic) Error() string {
	if d.Value == "" {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Value, d.Message)
}

// Gate checks the merger's prerequisites, validates the request, logs every
// diagnostic and returns an error wrapping ErrValidation when any check failed.
func Gate(ctx context.Context, req *OnboardRequest, remote RemoteClient, merger merge.TemplateMerger) (bool, int, error) {
	logger := log.FromContext(ctx)
	logger.Info("Validating onboarding request, this may take a few moments", "mode", req.Mode)

	diags := checkPrerequisites(ctx, req, merger)
	diags = append(diags, Validate(ctx, req, remote, req.Mode)...)
	if len(diags) == 0 {
		logger.Info("Validation passed", "mode", req.Mode)
		return true, 0, nil
	}

	errs := make([]error, 0, len(diags))
	for _, d := range diags {
		logger.Error(nil, d.Message, "code", d.Code, "field", d.Field, "value", d.Value)
		errs = append(errs, d)
	}
	return false, len(diags), fmt.Errorf("%w: total %d errors, please review: %w", ErrValidation, len(diags), utilerrors.NewAggregate(errs))
}

// Validate runs the checklist of the given mode against the request and the
// remote state. Every check runs; nothing short-circuits. Resolved ids (edge
// hostnames, security configuration) are written back into the request.
func Validate(ctx context.Context, req *OnboardRequest, remote RemoteClient, mode Mode) []Diagnostic {
	v := &validator{
		ctx:    ctx,
		req:    req,
		remote: remote,
		mode:   mode,
		plan:   PlanSteps(req.Flags),
	}
	if req.EdgeHostnameIDs == nil {
		req.EdgeHostnameIDs = map[string]int{}
	}

	v.checkRows()
	v.checkPropertyNames()
	v.checkRuleSource()
	v.checkCPCode()
	v.checkSourcePaths()
	v.checkTierOrder()
	v.checkProduct()
	v.checkSecureNetwork()
	v.diags = append(v.diags, ValidateHostnames(req.Hostnames)...)
	v.checkEdgeHostname()
	v.checkFiles()
	v.checkSecurity()
	v.checkEmails()

	return v.diags
}

// checkPrerequisites reports external tooling the merger needs but cannot find.
func checkPrerequisites(ctx context.Context, req *OnboardRequest, merger merge.TemplateMerger) []Diagnostic {
	if req.Mode == ModeAppsecUpdate {
		return nil
	}
	p, ok := merger.(merge.Prerequisite)
	if !ok {
		return nil
	}
	if err := p.CheckPrerequisites(ctx); err != nil {
		return []Diagnostic{{Code: CodePrerequisite, Field: "pipeline", Message: err.Error()}}
	}
	return nil
}

// ValidateHostnames checks hostname syntax: 4 to 60 characters from
// [A-Za-z0-9.-], not starting or ending with a hyphen.
func ValidateHostnames(hostnames []string) []Diagnostic {
	var diags []Diagnostic
	for _, hostname := range hostnames {
		if invalidHostnameChars.MatchString(hostname) {
			diags = append(diags, Diagnostic{
				Code:    CodeHostname,
				Field:   "hostname",
				Value:   hostname,
				Message: "contains invalid character. Only alphanumeric (a-z, A-Z, 0-9) and hyphen (-) characters are supported.",
			})
		}
		if len(hostname) < minHostnameLength || len(hostname) > maxHostnameLength {
			diags = append(diags, Diagnostic{
				Code:    CodeHostname,
				Field:   "hostname",
				Value:   hostname,
				Message: fmt.Sprintf("is invalid length. Hostname length must be between %d-%d characters", minHostnameLength, maxHostnameLength),
			})
		}
		if strings.HasPrefix(hostname, "-") || strings.HasSuffix(hostname, "-") {
			diags = append(diags, Diagnostic{
				Code:    CodeHostname,
				Field:   "hostname",
				Value:   hostname,
				Message: "cannot begin or end with a hyphen.",
			})
		}
	}
	return diags
}

type validator struct {
	ctx    context.Context
	req    *OnboardRequest
	remote RemoteClient
	mode   Mode
	plan   ExecutionPlan
	diags  []Diagnostic
}

func (v *validator) fail(code, field, value, format string, args ...interface{}) {
	v.diags = append(v.diags, Diagnostic{
		Code:    code,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	})
}

func (v *validator) remoteFailed(field, value string, err error) {
	v.fail(CodeRemote, field, value, "lookup failed: %v", err)
}

func (v *validator) delivery() bool {
	return v.mode != ModeAppsecUpdate
}

// checkRows validates the CSV input and groups batch rows into properties.
func (v *validator) checkRows() {
	switch v.mode {
	case ModeBatch:
		for _, rowErr := range csvinput.ValidateDeliveryRows(v.req.Rows) {
			v.fail(CodeInput, "csv", strconv.Itoa(rowErr.Line), "invalid csv row: %v", rowErr.Err)
		}
		_, sbd := v.req.EdgeHostname.(*SecureByDefault)
		groups, err := csvinput.GroupByProperty(v.req.Rows, csvinput.GroupOptions{
			SecureByDefault:    sbd,
			EdgeHostnameSuffix: v.req.EdgeHostnameSuffix(),
		})
		if err != nil {
			v.fail(CodeInput, "csv", "", "%v", err)
			return
		}
		v.req.Groups = groups
		if len(groups) == 0 {
			v.fail(CodeInput, "csv", "", "csv input has no rows")
		}
	case ModeHosts:
		for _, rowErr := range csvinput.ValidateDeliveryRows(v.req.Rows) {
			v.fail(CodeInput, "csv", strconv.Itoa(rowErr.Line), "invalid csv row: %v", rowErr.Err)
		}
		if len(v.req.Hostnames) == 0 {
			v.fail(CodeInput, "property_hostname", "", "at least one hostname is required")
		}
	case ModeAppsecUpdate:
		for _, rowErr := range csvinput.ValidateAppsecRows(v.req.AppsecRows) {
			v.fail(CodeInput, "csv", strconv.Itoa(rowErr.Line), "invalid csv row: %v", rowErr.Err)
		}
		if len(v.req.AppsecRows) == 0 {
			v.fail(CodeInput, "csv", "", "csv input has no rows")
		}
	}
}

func (v *validator) checkPropertyNames() {
	if !v.delivery() {
		return
	}
	names := []string{v.req.PropertyName}
	if v.mode == ModeBatch {
		names = names[:0]
		for _, g := range v.req.Groups {
			names = append(names, g.PropertyName)
		}
	}

	logger := log.FromContext(v.ctx)
	for _, name := range names {
		if name == "" {
			v.fail(CodePropertyName, "property_name", name, "missing property name")
			continue
		}
		exists, err := v.remote.PropertyExists(v.ctx, name)
		if err != nil {
			v.remoteFailed("property_name", name, err)
			continue
		}
		if exists {
			v.fail(CodePropertyName, "property_name", name, "invalid property name; already in use")
			continue
		}
		logger.Info("Valid property name", "propertyName", name)
	}
}

func (v *validator) checkRuleSource() {
	if v.mode != ModeCreate {
		return
	}
	src := v.req.RuleSource
	switch {
	case src.UseFile && src.UseFolder:
		v.fail(CodeRuleSource, "use_file", "", "Both use_file and use_folder cannot be set to true")
	case !src.UseFile && !src.UseFolder:
		v.fail(CodeRuleSource, "use_file", "", "Either use_file or use_folder must be set to true")
	}
}

func (v *validator) checkCPCode() {
	if v.mode != ModeCreate {
		return
	}
	cp := v.req.CPCode
	if cp.CreateNew && cp.Name == "" {
		v.fail(CodeCPCode, "new_cpcode_name", "", "If create_new_cpcode is true, new_cpcode_name must be specified")
	}
	if !cp.CreateNew && cp.ExistingID <= 0 {
		v.fail(CodeCPCode, "existing_cpcode_id", "", "If create_new_cpcode is false, existing_cpcode_id must be specified")
	}
}

func (v *validator) checkSourcePaths() {
	src := v.req.RuleSource
	switch v.mode {
	case ModeHosts:
		if src.TemplateFile == "" {
			v.fail(CodeRuleSource, "source_template_file", "", "source_template_file must be specified")
		}
		return
	case ModeBatch:
		if src.TemplateFile == "" {
			v.fail(CodeRuleSource, "template", "", "a rule template file must be specified")
		}
		return
	case ModeCreate:
	default:
		return
	}
	if src.UseFile {
		if src.TemplateFile == "" {
			v.fail(CodeRuleSource, "source_template_file", "", "If use_file is true, source_template_file must be specified")
		}
		if src.ValuesFile == "" {
			v.fail(CodeRuleSource, "source_values_file", "", "If use_file is true, source_values_file must be specified")
		}
	}
	if src.UseFolder {
		if src.FolderPath == "" {
			v.fail(CodeRuleSource, "folder_path", "", "If use_folder is true, folder_path must be specified")
		}
		if src.EnvName == "" {
			v.fail(CodeRuleSource, "env_name", "", "If use_folder is true, env_name must be specified")
		}
	}
}

func (v *validator) checkTierOrder() {
	if v.plan.ActivatePropertyProduction && !v.plan.ActivatePropertyStaging {
		v.fail(CodeTierOrder, "activate_property_production", "", "Must activate property to STAGING before activating to PRODUCTION")
	}
	if v.plan.ActivateWAFPolicyProduction && !v.plan.ActivateWAFPolicyStaging {
		v.fail(CodeTierOrder, "activate_waf_policy_production", "", "Must activate WAF policy to STAGING before activating to PRODUCTION.")
	}
}

func (v *validator) checkProduct() {
	if !v.delivery() {
		return
	}
	products, err := v.remote.ListProductIDs(v.ctx, v.req.ContractID)
	if err != nil {
		v.remoteFailed("contract_id", v.req.ContractID, err)
		return
	}
	catalog := sets.New(products...)
	if !catalog.Has(v.req.ProductID) {
		v.fail(CodeProduct, "product_id", v.req.ProductID, "invalid product_id; available product_id for contract %s: %s",
			v.req.ContractID, strings.Join(sets.List(catalog), ", "))
	}
}

func (v *validator) checkSecureNetwork() {
	if !v.delivery() {
		return
	}
	switch v.req.SecureNetwork {
	case akamai.StandardTLS, akamai.EnhancedTLS:
	default:
		v.fail(CodeSecureNetwork, "secure_network", v.req.SecureNetwork, "invalid secure_network, must be %s or %s", akamai.StandardTLS, akamai.EnhancedTLS)
	}
}

// lookupEdgeHostname resolves an existing edge hostname; found is false when
// the remote service does not know it.
func (v *validator) lookupEdgeHostname(name string) (id int, found bool, err error) {
	ehn, err := v.remote.FindEdgeHostname(v.ctx, name)
	if errors.Is(err, akamai.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v.req.EdgeHostnameIDs[name] = ehn.EdgeHostnameID
	return ehn.EdgeHostnameID, true, nil
}

func (v *validator) requireEdgeHostname(field, name string) int {
	id, found, err := v.lookupEdgeHostname(name)
	if err != nil {
		v.remoteFailed(field, name, err)
		return 0
	}
	if !found {
		v.fail(CodeEdgeHostname, field, name, "invalid edge hostname")
		return 0
	}
	log.FromContext(v.ctx).Info("Valid edge hostname", "edgeHostname", name, "edgeHostnameID", id)
	return id
}

func (v *validator) checkEdgeHostname() {
	if !v.delivery() {
		return
	}
	if v.mode == ModeBatch {
		v.checkBatchEdgeHostnames()
		return
	}

	switch mode := v.req.EdgeHostname.(type) {
	case *UseExisting:
		if mode.Name == "" {
			v.fail(CodeEdgeHostname, "edge_hostname", "", "missing edge hostname")
			return
		}
		mode.ID = v.requireEdgeHostname("edge_hostname", mode.Name)
	case *NewStandardTLS:
		if v.req.SecureNetwork != akamai.StandardTLS {
			v.fail(CodeEdgeHostname, "secure_network", v.req.SecureNetwork, "For new_standard_tls_edgehostname, secure_network must be STANDARD_TLS")
		}
	case *NewEnhancedTLS:
		if v.req.SecureNetwork != akamai.EnhancedTLS {
			v.fail(CodeEdgeHostname, "secure_network", v.req.SecureNetwork, "For new_enhanced_tls_edgehostname, secure_network must be ENHANCED_TLS")
		}
		if mode.UseExisting {
			if mode.CreateNewCert {
				v.fail(CodeEdgeHostname, "create_new_ssl_cert", "", "Both use_existing_enrollment_id and create_new_ssl_cert cannot be set to true")
			}
			if mode.EnrollmentID == 0 {
				v.fail(CodeEdgeHostname, "existing_enrollment_id", "", "existing_enrollment_id missing")
			}
		} else {
			v.fail(CodeEdgeHostname, "use_existing_enrollment_id", "", "If new_enhanced_tls_edgehostname, use_existing_enrollment_id must be true")
		}
		if mode.CreateNewCert {
			v.fail(CodeEdgeHostname, "create_new_ssl_cert", "", "Unable to create_new_ssl_cert enrollment, please use existing_enrollment_id instead")
		}
	case *SecureByDefault:
		if mode.ExistingName == "" && !mode.CreateNew {
			v.fail(CodeEdgeHostname, "edge_hostname", "", "missing edge hostname")
		}
		if mode.ExistingName != "" && mode.CreateNew {
			v.fail(CodeEdgeHostname, "create_new_edge_hostname", mode.ExistingName, "If create_new_edge_hostname is true, use_existing_edge_hostname must be empty")
		}
		if mode.ExistingName != "" && !mode.CreateNew {
			mode.ExistingID = v.requireEdgeHostname("use_existing_edge_hostname", mode.ExistingName)
		}
	case nil:
		v.fail(CodeEdgeHostname, "edge_hostname_mode", v.req.RequestedMode,
			"invalid edge_hostname_mode, valid options: use_existing_edgehostname, new_standard_tls_edgehostname, new_enhanced_tls_edgehostname, secure_by_default")
	}
}

func (v *validator) checkBatchEdgeHostnames() {
	logger := log.FromContext(v.ctx)
	_, sbd := v.req.EdgeHostname.(*SecureByDefault)

	for _, g := range v.req.Groups {
		for _, name := range g.EdgeHostnames {
			if !sbd {
				v.requireEdgeHostname("edgeHostname", name)
				continue
			}
			id, found, err := v.lookupEdgeHostname(name)
			switch {
			case err != nil:
				v.remoteFailed("edgeHostname", name, err)
			case found:
				logger.Info("Valid edge hostname", "edgeHostname", name, "edgeHostnameID", id)
			default:
				logger.Info("Edge hostname does not exist, will be created upon property activation", "edgeHostname", name)
			}
		}
	}
}

func (v *validator) checkFiles() {
	if !v.delivery() {
		return
	}
	src := v.req.RuleSource
	if src.UseFile {
		if src.TemplateFile != "" && !fileExists(src.TemplateFile) {
			v.fail(CodeFile, "source_template_file", src.TemplateFile, "unable to locate source_template_file")
		}
		if src.ValuesFile != "" && !fileExists(src.ValuesFile) {
			v.fail(CodeFile, "source_values_file", src.ValuesFile, "unable to locate source_values_file")
		}
	}
	if src.UseFolder && src.FolderPath != "" {
		if info, err := os.Stat(src.FolderPath); err != nil || !info.IsDir() {
			v.fail(CodeFile, "folder_path", src.FolderPath, "unable to locate folder_path")
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (v *validator) checkSecurity() {
	switch v.mode {
	case ModeCreate, ModeBatch:
		v.checkSecurityUpdate()
	case ModeHosts:
		v.checkSecurityCreate()
	case ModeAppsecUpdate:
		v.checkSecurityVersion()
	}
}

func (v *validator) checkSecurityUpdate() {
	p := v.plan
	if !p.AddSelectedHost {
		if p.UpdateMatchTarget && v.mode == ModeCreate {
			v.fail(CodeSecurity, "update_match_target", "", "If update_match_target, add_selected_host must be true")
		}
		if p.ActivateWAFPolicyStaging {
			if v.mode == ModeBatch {
				v.fail(CodeSecurity, "waf-config", "", "If activating WAF to STAGING, waf-config must be provided")
			} else {
				v.fail(CodeSecurity, "activate_waf_policy_staging", "", "If activating WAF to STAGING, add_selected_host must be true")
			}
		}
		return
	}

	if !p.ActivatePropertyStaging {
		v.fail(CodeSecurity, "activate_property_staging", "", "If adding WAF selected hosts, property must be activated to STAGING")
	}

	name := v.req.Security.ConfigName
	cfg, err := v.remote.FindSecurityConfiguration(v.ctx, name)
	if errors.Is(err, akamai.ErrNotFound) {
		v.fail(CodeSecurity, "waf_config_name", name, "invalid waf_config_name, not found")
		return
	}
	if err != nil {
		v.remoteFailed("waf_config_name", name, err)
		return
	}
	v.req.WAF = &SecurityConfigContext{
		ConfigID:      cfg.ID,
		ConfigName:    cfg.Name,
		LatestVersion: cfg.LatestVersion,
	}
	log.FromContext(v.ctx).Info("Found existing security configuration", "configName", cfg.Name, "configID", cfg.ID, "latestVersion", cfg.LatestVersion)

	if !p.UpdateMatchTarget {
		log.FromContext(v.ctx).V(1).Info("No match target given, updating selected hosts only")
		return
	}
	targetID := v.req.Security.MatchTargetID
	if !v.matchTargetInPolicies(cfg.ID, cfg.LatestVersion, targetID) {
		v.fail(CodeSecurity, "waf_match_target_id", strconv.Itoa(targetID), "invalid waf_match_target_id")
	}
}

// matchTargetInPolicies reports whether the match target exists in the
// configuration version and points at one of its policies.
func (v *validator) matchTargetInPolicies(configID, version, targetID int) bool {
	policies, err := v.remote.ListSecurityPolicies(v.ctx, configID, version)
	if err != nil {
		v.remoteFailed("waf_config_name", strconv.Itoa(configID), err)
		return true
	}
	targets, err := v.remote.ListMatchTargets(v.ctx, configID, version)
	if err != nil {
		v.remoteFailed("waf_match_target_id", strconv.Itoa(targetID), err)
		return true
	}

	policyIDs := sets.New[string]()
	for _, pol := range policies {
		policyIDs.Insert(pol.PolicyID)
	}
	if v.req.WAF != nil {
		v.req.WAF.PolicyIDs = sets.List(policyIDs)
	}
	for _, t := range targets {
		if t.TargetID != targetID || !policyIDs.Has(t.PolicyID) {
			continue
		}
		if v.req.WAF != nil {
			v.req.WAF.TargetIDs = []int{targetID}
		}
		log.FromContext(v.ctx).Info("Found match target", "policyID", t.PolicyID, "matchTargetID", targetID)
		return true
	}
	return false
}

func (v *validator) checkSecurityCreate() {
	raw := v.req.HostsEdgeHostname
	if raw.UseExistingEdgeHostname != "" && raw.CreateFromExistingEnrollmentID > 0 {
		v.fail(CodeEdgeHostname, "edge_hostname", "", `Only "use_existing_edge_hostname" or "create_from_existing_enrollment_id" can be used, not both`)
	}

	if v.req.Security.Action != SecurityCreate {
		return
	}
	name := v.req.Security.ConfigName
	cfg, err := v.remote.FindSecurityConfiguration(v.ctx, name)
	switch {
	case errors.Is(err, akamai.ErrNotFound):
		log.FromContext(v.ctx).Info("New security configuration name", "configName", name)
	case err != nil:
		v.remoteFailed("waf_config_name", name, err)
	default:
		v.fail(CodeSecurity, "waf_config_name", name, "duplicate waf_config_name already exists (config %d)", cfg.ID)
	}
}

func (v *validator) checkSecurityVersion() {
	sec := v.req.Security
	cfg, err := v.remote.GetSecurityConfiguration(v.ctx, sec.ConfigID)
	if errors.Is(err, akamai.ErrNotFound) {
		v.fail(CodeSecurity, "config-id", strconv.Itoa(sec.ConfigID), "invalid security configuration id, not found")
		return
	}
	if err != nil {
		v.remoteFailed("config-id", strconv.Itoa(sec.ConfigID), err)
		return
	}

	version := sec.Version
	if version == 0 {
		version = cfg.LatestVersion
	}
	v.req.WAF = &SecurityConfigContext{
		ConfigID:      cfg.ID,
		ConfigName:    cfg.Name,
		LatestVersion: version,
	}

	targets, err := v.remote.ListMatchTargets(v.ctx, cfg.ID, version)
	if err != nil {
		v.remoteFailed("version", strconv.Itoa(version), err)
		return
	}
	known := sets.New[int]()
	for _, t := range targets {
		known.Insert(t.TargetID)
	}
	wanted := sets.New[int]()
	for _, row := range v.req.AppsecRows {
		if row.MatchTargetID > 0 && !known.Has(row.MatchTargetID) {
			v.fail(CodeSecurity, "matchTargetId", strconv.Itoa(row.MatchTargetID),
				"match target not found in config %d version %d (hostname %s)", cfg.ID, version, row.Hostname)
			continue
		}
		wanted.Insert(row.MatchTargetID)
	}
	v.req.WAF.TargetIDs = sets.List(wanted)
}

func (v *validator) checkEmails() {
	if !v.plan.AnyActivation() {
		return
	}
	var emails []string
	for _, email := range v.req.NotificationEmails {
		if email != "" {
			emails = append(emails, email)
		}
	}
	if len(emails) == 0 {
		v.fail(CodeEmail, "notification_emails", "", "At least one valid notification email is required for activations")
		return
	}
	for _, email := range emails {
		if err := validation.Validate(email, is.EmailFormat); err != nil {
			v.fail(CodeEmail, "notification_emails", email, "invalid email address")
		}
	}
}
