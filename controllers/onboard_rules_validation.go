package controllers

import (
	"fmt"
	"regexp"

	"k8s.io/apimachinery/pkg/util/sets"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
)

const userVariablePrefix = "PMUSER_"

var (
	userVariableName = regexp.MustCompile(`^PMUSER_[A-Z0-9_]+$`)

	forwardHostHeaders = sets.New("REQUEST_HOST_HEADER", "ORIGIN_HOSTNAME", "CUSTOM")
	listMatchOperators = sets.New("IS_ONE_OF", "IS_NOT_ONE_OF")
)

// validateRuleTree checks the parts of a patched rule tree this tool writes:
// the cpCode ids, the origin behaviors and the hostname criteria of the origin
// rules. Everything else is left to the rules endpoint.
func validateRuleTree(rules *akamaiV1alpha1.Rule) error {
	if rules.Name == "" {
		return fmt.Errorf("top-level rule must have a name (typically 'default')")
	}
	if rules.Name != "default" {
		return fmt.Errorf("top-level rule name should be 'default', got '%s'", rules.Name)
	}

	seen := sets.New[string]()
	for i := range rules.Variables {
		name := rules.Variables[i].Name
		if err := validateRuleVariable(name); err != nil {
			return fmt.Errorf("variable[%d]: %w", i, err)
		}
		if seen.Has(name) {
			return fmt.Errorf("duplicate variable name '%s' at index %d", name, i)
		}
		seen.Insert(name)
	}

	return validateRule(rules, "default")
}

func validateRule(rule *akamaiV1alpha1.Rule, path string) error {
	for i := range rule.Behaviors {
		if err := validateRuleBehavior(&rule.Behaviors[i]); err != nil {
			return fmt.Errorf("%s.behavior[%d]: %w", path, i, err)
		}
	}
	for i := range rule.Criteria {
		if err := validateRuleCriteria(&rule.Criteria[i]); err != nil {
			return fmt.Errorf("%s.criteria[%d]: %w", path, i, err)
		}
	}
	for i := range rule.Children {
		child := &rule.Children[i]
		if child.Name == "" {
			return fmt.Errorf("%s.children[%d]: child rule name is required", path, i)
		}
		if err := validateRule(child, path+"/"+child.Name); err != nil {
			return err
		}
	}
	return nil
}

// validateRuleBehavior checks cpCode and origin behaviors. Other behaviors
// come from the template unchanged.
func validateRuleBehavior(behavior *akamaiV1alpha1.Behavior) error {
	switch behavior.Name {
	case "":
		return fmt.Errorf("behavior name is required")
	case "cpCode":
		value, ok := behavior.Options["value"].(map[string]interface{})
		if !ok {
			return fmt.Errorf("cpCode behavior has no value object")
		}
		if id, ok := numericID(value["id"]); !ok || id <= 0 {
			return fmt.Errorf("cpCode value id must be a positive number, got %v", value["id"])
		}
	case "origin":
		if len(behavior.Options) == 0 {
			return fmt.Errorf("origin behavior requires options")
		}
		if hostname, ok := behavior.Options["hostname"]; ok {
			if s, isString := hostname.(string); !isString || s == "" {
				return fmt.Errorf("origin hostname must be a non-empty string, got %v", hostname)
			}
		}
		if header, ok := behavior.Options["forwardHostHeader"]; ok {
			if s, _ := header.(string); !forwardHostHeaders.Has(s) {
				return fmt.Errorf("origin forwardHostHeader %v is not one of %v", header, sets.List(forwardHostHeaders))
			}
		}
	}
	return nil
}

// validateRuleCriteria checks hostname criteria, which select the origin
// rule for each hostname.
func validateRuleCriteria(criteria *akamaiV1alpha1.Behavior) error {
	if criteria.Name == "" {
		return fmt.Errorf("criteria name is required")
	}
	if criteria.Name != "hostname" {
		return nil
	}

	if op, ok := criteria.Options["matchOperator"]; ok {
		if s, _ := op.(string); !listMatchOperators.Has(s) {
			return fmt.Errorf("hostname criteria matchOperator %v is not one of %v", op, sets.List(listMatchOperators))
		}
	}
	values, ok := criteria.Options["values"].([]interface{})
	if !ok || len(values) == 0 {
		return fmt.Errorf("hostname criteria requires a list of values")
	}
	for i, v := range values {
		if s, isString := v.(string); !isString || s == "" {
			return fmt.Errorf("hostname criteria value %d must be a non-empty string, got %v", i, v)
		}
	}
	return nil
}

// validateRuleVariable enforces the user variable naming of the rules
// endpoint.
func validateRuleVariable(name string) error {
	if name == "" {
		return fmt.Errorf("variable name is required")
	}
	if !userVariableName.MatchString(name) {
		return fmt.Errorf("variable name '%s' must start with %s and use only A-Z, 0-9 and _", name, userVariablePrefix)
	}
	return nil
}

// numericID accepts ids set by the patcher as int and ids decoded from JSON
// as float64.
func numericID(v interface{}) (int, bool) {
	switch id := v.(type) {
	case int:
		return id, true
	case int64:
		return int(id), true
	case float64:
		if id != float64(int(id)) {
			return 0, false
		}
		return int(id), true
	}
	return 0, false
}
