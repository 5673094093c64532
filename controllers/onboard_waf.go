package controllers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
)

const (
	securityConfigDescription = "Created using Onboard CLI"
	policyPrefixLength        = 4
)

// numberPattern finds the conflicting config id in a MultipleConfigs detail
var numberPattern = regexp.MustCompile(`\d+`)

// CreateSecurityConfig creates a security configuration protecting the
// hostnames: config, policy and a website match target routing the hostnames
// to the policy.
func (r *OnboardReconciler) CreateSecurityConfig(ctx context.Context, req *OnboardRequest, hostnames []string) (*SecurityConfigContext, error) {
	logger := log.FromContext(ctx)
	sec := req.Security

	if err := r.checkSelectable(ctx, req, hostnames); err != nil {
		return nil, err
	}

	configID, version, err := r.Remote.CreateSecurityConfiguration(ctx, akamai.SecurityConfigSpec{
		Name:        sec.ConfigName,
		Description: securityConfigDescription,
		ContractID:  req.ContractID,
		GroupID:     req.GroupID,
		Hostnames:   hostnames,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create security configuration %s: %w", sec.ConfigName, err)
	}
	logger.Info("Created security configuration", "configName", sec.ConfigName, "configID", configID, "version", version)

	wafCtx := &SecurityConfigContext{
		ConfigID:      configID,
		ConfigName:    sec.ConfigName,
		LatestVersion: version,
		Version:       version,
		SelectedHosts: append([]string(nil), hostnames...),
	}
	req.WAF = wafCtx

	policy, err := r.Remote.CreateSecurityPolicy(ctx, configID, version, sec.PolicyName, PolicyPrefix(sec.PolicyName))
	if err != nil {
		return nil, fmt.Errorf("unable to create security policy %s: %w", sec.PolicyName, err)
	}
	wafCtx.PolicyIDs = []string{policy.PolicyID}
	logger.Info("Created security policy", "policyName", policy.PolicyName, "policyID", policy.PolicyID)

	target, err := r.Remote.CreateMatchTarget(ctx, configID, version, policy.PolicyID, hostnames)
	if err != nil {
		return nil, fmt.Errorf("unable to create a match target: %w", err)
	}
	wafCtx.TargetIDs = []int{target.TargetID}
	logger.Info("Created match target", "matchTargetID", target.TargetID, "hostnames", hostnames)

	r.Status.SecurityConfigID = configID
	r.Status.SecurityConfigVersion = version
	return wafCtx, nil
}

// checkSelectable requires every hostname to be in the selectable set of the
// contract and group.
func (r *OnboardReconciler) checkSelectable(ctx context.Context, req *OnboardRequest, hostnames []string) error {
	selectable, err := r.Remote.ListSelectableHostnames(ctx, req.ContractID, req.GroupID)
	if err != nil {
		return fmt.Errorf("unable to validate hostnames for security configuration %s: %w", req.Security.ConfigName, err)
	}
	available := sets.New[string]()
	for _, h := range selectable {
		available.Insert(strings.ToLower(h))
	}
	wanted := sets.New[string]()
	for _, h := range hostnames {
		wanted.Insert(strings.ToLower(h))
	}
	if missing := wanted.Difference(available); missing.Len() > 0 {
		return fmt.Errorf("invalid %v for contract_id %s and group_id %s", sets.List(missing), req.ContractID, req.GroupID)
	}
	return nil
}

// PolicyPrefix derives the four character policy id prefix from a policy name.
func PolicyPrefix(policyName string) string {
	var b strings.Builder
	for _, c := range strings.ToUpper(policyName) {
		if c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)) {
			b.WriteRune(c)
		}
		if b.Len() == policyPrefixLength {
			return b.String()
		}
	}
	return b.String() + strings.Repeat("0", policyPrefixLength-b.Len())
}

// UpdateSecurityConfig creates a new version of the resolved security
// configuration, adds the hostnames to its selected hosts and appends them to
// the given match targets. targets maps a match target id to its hostnames.
func (r *OnboardReconciler) UpdateSecurityConfig(ctx context.Context, req *OnboardRequest, hostnames []string, targets map[int][]string) error {
	wafCtx, err := r.newSecurityVersion(ctx, req)
	if err != nil {
		return err
	}

	current, err := r.Remote.GetSelectedHostnames(ctx, wafCtx.ConfigID, wafCtx.Version)
	if err != nil {
		return err
	}
	wafCtx.SelectedHosts = MergeHostnames(current, hostnames)
	if err := r.Remote.UpdateSelectedHostnames(ctx, wafCtx.ConfigID, wafCtx.Version, wafCtx.SelectedHosts); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Updated selected hosts", "configID", wafCtx.ConfigID, "version", wafCtx.Version, "hostnames", hostnames)

	for _, targetID := range sortedTargetIDs(targets) {
		if err := r.patchMatchTarget(ctx, wafCtx, targetID, func(current []string) []string {
			return MergeHostnames(current, targets[targetID])
		}); err != nil {
			return err
		}
	}
	return nil
}

// RemoveHostsFromSecurityConfig creates a new version of the resolved
// security configuration without the hostnames in its selected hosts and in
// the given match targets.
func (r *OnboardReconciler) RemoveHostsFromSecurityConfig(ctx context.Context, req *OnboardRequest, hostnames []string, targets map[int][]string) error {
	wafCtx, err := r.newSecurityVersion(ctx, req)
	if err != nil {
		return err
	}

	current, err := r.Remote.GetSelectedHostnames(ctx, wafCtx.ConfigID, wafCtx.Version)
	if err != nil {
		return err
	}
	wafCtx.SelectedHosts = DropHostnames(current, hostnames)
	if err := r.Remote.UpdateSelectedHostnames(ctx, wafCtx.ConfigID, wafCtx.Version, wafCtx.SelectedHosts); err != nil {
		return err
	}
	log.FromContext(ctx).Info("Removed selected hosts", "configID", wafCtx.ConfigID, "version", wafCtx.Version, "hostnames", hostnames)

	for _, targetID := range sortedTargetIDs(targets) {
		if err := r.patchMatchTarget(ctx, wafCtx, targetID, func(current []string) []string {
			return DropHostnames(current, targets[targetID])
		}); err != nil {
			return err
		}
	}
	return nil
}

func (r *OnboardReconciler) newSecurityVersion(ctx context.Context, req *OnboardRequest) (*SecurityConfigContext, error) {
	wafCtx := req.WAF
	if wafCtx == nil {
		return nil, fmt.Errorf("security configuration %q was not resolved", req.Security.ConfigName)
	}
	version, err := r.Remote.CreateSecurityConfigVersion(ctx, wafCtx.ConfigID, wafCtx.LatestVersion)
	if err != nil {
		return nil, fmt.Errorf("unable to create a new version for security configuration %s: %w", wafCtx.ConfigName, err)
	}
	wafCtx.Version = version
	r.Status.SecurityConfigID = wafCtx.ConfigID
	r.Status.SecurityConfigVersion = version
	log.FromContext(ctx).Info("Created security configuration version", "configName", wafCtx.ConfigName, "configID", wafCtx.ConfigID, "version", version)
	return wafCtx, nil
}

// patchMatchTarget rewrites the hostname list of a match target. Targets
// without a hostname list apply to all hostnames and are left alone.
func (r *OnboardReconciler) patchMatchTarget(ctx context.Context, wafCtx *SecurityConfigContext, targetID int, edit func([]string) []string) error {
	logger := log.FromContext(ctx).WithValues("matchTargetID", targetID)

	target, err := r.Remote.GetMatchTarget(ctx, wafCtx.ConfigID, wafCtx.Version, targetID)
	if err != nil {
		return err
	}
	if target.TargetsAllHostnames() {
		logger.Info(`This WAF policy already uses "ALL HOSTNAMES" as match target`)
		return nil
	}
	target.Hostnames = edit(target.Hostnames)
	if err := r.Remote.UpdateMatchTarget(ctx, wafCtx.ConfigID, wafCtx.Version, target); err != nil {
		return err
	}
	logger.Info("Updated match target", "hostnames", target.Hostnames)
	return nil
}

// MergeHostnames appends the hostnames missing from current, keeping order.
func MergeHostnames(current, add []string) []string {
	seen := sets.New[string]()
	out := make([]string, 0, len(current)+len(add))
	for _, list := range [][]string{current, add} {
		for _, h := range list {
			key := strings.ToLower(h)
			if seen.Has(key) {
				continue
			}
			seen.Insert(key)
			out = append(out, h)
		}
	}
	return out
}

// DropHostnames returns current without the given hostnames.
func DropHostnames(current, drop []string) []string {
	remove := sets.New[string]()
	for _, h := range drop {
		remove.Insert(strings.ToLower(h))
	}
	out := make([]string, 0, len(current))
	for _, h := range current {
		if !remove.Has(strings.ToLower(h)) {
			out = append(out, h)
		}
	}
	return out
}

func sortedTargetIDs(targets map[int][]string) []int {
	ids := sets.New[int]()
	for id := range targets {
		if id > 0 {
			ids.Insert(id)
		}
	}
	return sets.List(ids)
}

// securityRecord is the activation record of the working security version.
func securityRecord(wafCtx *SecurityConfigContext, network akamai.Network, hostnames []string) *ActivationRecord {
	return &ActivationRecord{
		ResourceID:   strconv.Itoa(wafCtx.ConfigID),
		ResourceName: wafCtx.ConfigName,
		Version:      wafCtx.Version,
		Network:      network,
		Hostnames:    hostnames,
		Status:       StateNotSubmitted,
	}
}

// activationConflictError carries the operator facing reason of a rejected
// security activation.
type activationConflictError struct {
	Detail string
	err    error
}

func (e *activationConflictError) Error() string {
	return e.Detail + ": " + e.err.Error()
}

func (e *activationConflictError) Unwrap() error {
	return e.err
}

// enrichActivationConflict names the configuration that already protects a
// hostname when the remote service rejects an activation with MultipleConfigs.
func enrichActivationConflict(ctx context.Context, remote SecurityAPI, err error) error {
	detail := akamai.ErrorDetail(err)
	if !strings.Contains(detail, "MultipleConfigs") {
		reason := detail
		if reason == "" {
			reason = err.Error()
		}
		return &activationConflictError{Detail: reason + ": unable to process request", err: err}
	}
	if strings.Contains(detail, "another pending process") {
		return &activationConflictError{Detail: "Hostnames involved in another pending process", err: err}
	}

	fallback := &activationConflictError{Detail: "conflict with multiple configs", err: err}
	match := numberPattern.FindString(detail)
	if match == "" {
		return fallback
	}
	configID, convErr := strconv.Atoi(match)
	if convErr != nil {
		return fallback
	}
	name, nameErr := remote.GetSecurityConfigurationName(ctx, configID)
	if nameErr != nil {
		log.FromContext(ctx).Error(nameErr, "Failed to resolve conflicting security configuration", "configID", configID, "detail", detail)
		return fallback
	}
	return &activationConflictError{
		Detail: fmt.Sprintf("hostname conflict with config %q [%d]", name, configID),
		err:    err,
	}
}
