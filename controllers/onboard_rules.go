package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	"sigs.k8s.io/controller-runtime/pkg/log"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/merge"
)

const (
	originRulesName     = "Origin Rules"
	originRulesComments = "Route request to appropriate origin"

	verificationPlatformSettings = "PLATFORM_SETTINGS"
)

// Origin options that only apply to custom certificate verification
var platformSettingsDroppedKeys = []string{"customValidCnValues", "originCertsToHonor", "standardCertificateAuthorities"}

// RuleTreePatch carries the resolved values written into a merged rule tree
type RuleTreePatch struct {
	CPCodeID      int
	SecureNetwork string
	Comments      string
	RuleFormat    string

	// DefaultOrigin replaces the hostname of the default origin behavior
	DefaultOrigin string

	// Hostnames, Origins, ForwardHostHeaders and CPCodeIDs route each
	// hostname to its own origin. They must be index-aligned.
	Hostnames          []string
	Origins            []string
	ForwardHostHeaders []string
	CPCodeIDs          []int

	// AddMissingDefaults adds origin and cpCode behaviors to templates
	// that lack them
	AddMissingDefaults bool
}

// BuildRuleTree merges the rule source into a rule tree and patches the
// resolved ids into it.
func BuildRuleTree(ctx context.Context, merger merge.TemplateMerger, source merge.Input, patch RuleTreePatch) (*akamaiV1alpha1.RuleTree, error) {
	logger := log.FromContext(ctx)

	raw, err := merger.Merge(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("unable to merge variables and values: %w", err)
	}
	tree := &akamaiV1alpha1.RuleTree{}
	if err := json.Unmarshal(raw, tree); err != nil {
		return nil, fmt.Errorf("failed to decode merged rule tree: %w", err)
	}
	base := tree.DeepCopy()

	if patch.AddMissingDefaults {
		addMissingDefaults(ctx, &tree.Rules)
	}

	if patch.CPCodeID <= 0 {
		return nil, fmt.Errorf("%w: no cpcode resolved for the default rule", ErrRuleTreePatch)
	}
	cpCode := tree.Rules.Behavior("cpCode")
	if cpCode == nil {
		return nil, fmt.Errorf("%w: unable to update default rule cpcode, no cpCode behavior in default rule", ErrRuleTreePatch)
	}
	setCPCode(cpCode, patch.CPCodeID)
	logger.Info("Updated default rule with cpcode", "cpCodeID", patch.CPCodeID)

	tree.Rules.Options = &akamaiV1alpha1.RuleOptions{IsSecure: patch.SecureNetwork == akamai.EnhancedTLS}
	tree.Comments = patch.Comments
	tree.RuleFormat = patch.RuleFormat

	if patch.DefaultOrigin != "" && len(patch.Origins) == 0 {
		origin := tree.Rules.Behavior("origin")
		if origin == nil {
			return nil, fmt.Errorf("%w: unable to set default origin, no origin behavior in default rule", ErrRuleTreePatch)
		}
		ensureOptions(origin)["hostname"] = patch.DefaultOrigin
	}

	if len(patch.Origins) > 0 {
		if err := addOriginRules(&tree.Rules, patch); err != nil {
			return nil, err
		}
	}

	normalizeRule(&tree.Rules)
	if err := validateRuleTree(&tree.Rules); err != nil {
		return nil, fmt.Errorf("rule validation failed: %w", err)
	}

	logger.V(1).Info("Patched merged rule tree", "diff", cmp.Diff(base, tree))
	return tree, nil
}

// addOriginRules points the default origin at the first hostname's origin
// and, for more than one hostname, prepends an "Origin Rules" parent with one
// child per hostname.
func addOriginRules(rules *akamaiV1alpha1.Rule, patch RuleTreePatch) error {
	n := len(patch.Hostnames)
	if len(patch.Origins) != n || len(patch.ForwardHostHeaders) != n || len(patch.CPCodeIDs) != n {
		return fmt.Errorf("%w: origin rules need index-aligned lists, got %d hostnames, %d origins, %d forward host headers and %d cpcodes (this is a bug)",
			ErrRuleTreePatch, n, len(patch.Origins), len(patch.ForwardHostHeaders), len(patch.CPCodeIDs))
	}

	origin := rules.Behavior("origin")
	if origin == nil {
		return fmt.Errorf("%w: unable to update default rule origin hostname, no origin behavior in default rule", ErrRuleTreePatch)
	}
	opts := ensureOptions(origin)
	opts["hostname"] = patch.Origins[0]
	opts["forwardHostHeader"] = patch.ForwardHostHeaders[0]

	if n < 2 {
		return nil
	}
	platformSettings := opts["verificationMode"] == verificationPlatformSettings

	parent := akamaiV1alpha1.Rule{
		Name:     originRulesName,
		Comments: originRulesComments,
	}
	for i, hostname := range patch.Hostnames {
		parent.Children = append(parent.Children, originRule(hostname, patch.Origins[i], patch.ForwardHostHeaders[i], patch.CPCodeIDs[i], platformSettings))
	}
	rules.Children = append([]akamaiV1alpha1.Rule{parent}, rules.Children...)
	return nil
}

func originRule(hostname, origin, forwardHostHeader string, cpCodeID int, platformSettings bool) akamaiV1alpha1.Rule {
	opts := defaultOriginOptions(origin, forwardHostHeader)
	if platformSettings {
		opts["verificationMode"] = verificationPlatformSettings
		for _, key := range platformSettingsDroppedKeys {
			delete(opts, key)
		}
	}

	cpCode := akamaiV1alpha1.Behavior{Name: "cpCode"}
	setCPCode(&cpCode, cpCodeID)

	return akamaiV1alpha1.Rule{
		Name: hostname,
		Criteria: []akamaiV1alpha1.Behavior{{
			Name: "hostname",
			Options: map[string]interface{}{
				"matchOperator": "IS_ONE_OF",
				"values":        []interface{}{hostname},
			},
		}},
		Behaviors: []akamaiV1alpha1.Behavior{
			{Name: "origin", Options: opts},
			cpCode,
		},
		CriteriaMustSatisfy: "all",
	}
}

func defaultOriginOptions(origin, forwardHostHeader string) map[string]interface{} {
	return map[string]interface{}{
		"originType":                     "CUSTOMER",
		"hostname":                       origin,
		"forwardHostHeader":              forwardHostHeader,
		"cacheKeyHostname":               "ORIGIN_HOSTNAME",
		"compress":                       true,
		"enableTrueClientIp":             true,
		"trueClientIpHeader":             "True-Client-IP",
		"trueClientIpClientSetting":      false,
		"httpPort":                       80,
		"httpsPort":                      443,
		"originSni":                      true,
		"verificationMode":               "CUSTOM",
		"customValidCnValues":            []interface{}{"{{Origin Hostname}}", "{{Forward Host Header}}"},
		"originCertsToHonor":             "STANDARD_CERTIFICATE_AUTHORITIES",
		"standardCertificateAuthorities": []interface{}{"akamai-permissive"},
	}
}

func addMissingDefaults(ctx context.Context, rules *akamaiV1alpha1.Rule) {
	logger := log.FromContext(ctx)
	if rules.Behavior("origin") == nil {
		logger.Info("No default origin behavior in provided template, adding")
		rules.Behaviors = append(rules.Behaviors, akamaiV1alpha1.Behavior{
			Name:    "origin",
			Options: defaultOriginOptions("", "REQUEST_HOST_HEADER"),
		})
	}
	if rules.Behavior("cpCode") == nil {
		logger.Info("No default cpCode behavior in provided template, adding")
		cpCode := akamaiV1alpha1.Behavior{Name: "cpCode"}
		setCPCode(&cpCode, 0)
		rules.Behaviors = append(rules.Behaviors, cpCode)
	}
}

func ensureOptions(b *akamaiV1alpha1.Behavior) map[string]interface{} {
	if b.Options == nil {
		b.Options = map[string]interface{}{}
	}
	return b.Options
}

func setCPCode(b *akamaiV1alpha1.Behavior, id int) {
	opts := ensureOptions(b)
	value, ok := opts["value"].(map[string]interface{})
	if !ok {
		value = map[string]interface{}{}
		opts["value"] = value
	}
	value["id"] = id
}

// normalizeRule replaces absent lists so the tree serializes with [] where
// the rules endpoint expects arrays.
func normalizeRule(r *akamaiV1alpha1.Rule) {
	if r.Criteria == nil {
		r.Criteria = []akamaiV1alpha1.Behavior{}
	}
	if r.Behaviors == nil {
		r.Behaviors = []akamaiV1alpha1.Behavior{}
	}
	if r.Children == nil {
		r.Children = []akamaiV1alpha1.Rule{}
	}
	for i := range r.Criteria {
		ensureOptions(&r.Criteria[i])
	}
	for i := range r.Behaviors {
		ensureOptions(&r.Behaviors[i])
	}
	for i := range r.Children {
		normalizeRule(&r.Children[i])
	}
}

// writeAuditFile stores the rule tree sent for a property under the logs
// directory and returns its path.
func writeAuditFile(logsDir, propertyName, runID string, tree *akamaiV1alpha1.RuleTree) (string, error) {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create logs directory: %w", err)
	}
	data, err := json.MarshalIndent(tree, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal rule tree: %w", err)
	}
	path := filepath.Join(logsDir, fmt.Sprintf("%s-%s.papi.json", propertyName, runID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write rule tree audit file: %w", err)
	}
	return path, nil
}

// updateRules builds, audits and uploads the rule tree of a provisioned property.
func (r *OnboardReconciler) updateRules(ctx context.Context, req *OnboardRequest, prop *ProvisionedProperty) error {
	logger := log.FromContext(ctx).WithValues("propertyName", prop.Name)

	patch := RuleTreePatch{
		CPCodeID:           prop.cpCodeFor(0),
		SecureNetwork:      req.SecureNetwork,
		Comments:           req.VersionNotes,
		RuleFormat:         req.RuleFormat,
		DefaultOrigin:      req.DefaultOrigin,
		AddMissingDefaults: req.Mode == ModeBatch,
	}
	if len(prop.Origins) > 0 {
		patch.Hostnames = prop.Hostnames
		patch.Origins = prop.Origins
		patch.ForwardHostHeaders = prop.ForwardHostHeaders
		for i := range prop.Hostnames {
			patch.CPCodeIDs = append(patch.CPCodeIDs, prop.cpCodeFor(i))
		}
	}

	tree, err := BuildRuleTree(ctx, r.Merger, req.RuleSource.MergeInput(), patch)
	if err != nil {
		return err
	}

	path, err := writeAuditFile(r.LogsDir, prop.Name, r.RunID, tree)
	if err != nil {
		return err
	}
	logger.V(1).Info("Wrote rule tree", "path", path)

	result, err := r.Remote.UpdatePropertyRules(ctx, prop.Ref(req.ContractID, req.GroupID), tree.RuleFormat, tree)
	if err != nil {
		return fmt.Errorf("unable to update rules for property %s: %w", prop.Name, err)
	}
	for _, e := range result.Errors {
		logger.Error(nil, "Rule tree error", "title", e.Title, "detail", e.Detail, "location", e.ErrorLocation)
	}
	for _, w := range result.Warnings {
		logger.V(1).Info("Rule tree warning", "title", w.Title, "detail", w.Detail, "location", w.ErrorLocation)
	}
	logger.Info("Updated property with rules", "version", prop.Version)
	return nil
}
