package v1alpha1

import (
	"encoding/json"
	"testing"
)

const sampleTree = `{
  "rules": {
    "name": "default",
    "options": {"is_secure": false},
    "criteria": [],
    "behaviors": [
      {"name": "origin", "options": {"hostname": "origin.example.com", "customValidCnValues": ["{{Origin Hostname}}"]}},
      {"name": "cpCode", "options": {"value": {"id": 1}}}
    ],
    "children": [
      {"name": "Performance", "criteria": [], "behaviors": [], "children": []}
    ],
    "variables": [{"name": "PMUSER_ORIGIN", "value": "", "hidden": false, "sensitive": false}]
  },
  "ruleFormat": "v2023-01-05"
}`

func TestRuleTreeDecode(t *testing.T) {
	var tree RuleTree
	if err := json.Unmarshal([]byte(sampleTree), &tree); err != nil {
		t.Fatalf("failed to decode rule tree: %v", err)
	}

	if tree.Rules.Name != "default" {
		t.Errorf("Rules.Name = %v, want default", tree.Rules.Name)
	}
	if tree.RuleFormat != "v2023-01-05" {
		t.Errorf("RuleFormat = %v, want v2023-01-05", tree.RuleFormat)
	}
	if len(tree.Rules.Children) != 1 {
		t.Fatalf("len(Children) = %d, want 1", len(tree.Rules.Children))
	}
	if b := tree.Rules.Behavior("cpCode"); b == nil {
		t.Errorf("Behavior(cpCode) = nil, want behavior")
	}
	if b := tree.Rules.Behavior("caching"); b != nil {
		t.Errorf("Behavior(caching) = %v, want nil", b)
	}
}

func TestRuleTreeDeepCopy(t *testing.T) {
	var tree RuleTree
	if err := json.Unmarshal([]byte(sampleTree), &tree); err != nil {
		t.Fatalf("failed to decode rule tree: %v", err)
	}

	copied := tree.DeepCopy()
	copied.Rules.Options.IsSecure = true
	copied.Rules.Behavior("origin").Options["hostname"] = "changed.example.com"
	copied.Rules.Behavior("origin").Options["customValidCnValues"].([]interface{})[0] = "changed"
	copied.Rules.Children[0].Name = "Changed"

	if tree.Rules.Options.IsSecure {
		t.Errorf("original options changed through copy")
	}
	if got := tree.Rules.Behavior("origin").Options["hostname"]; got != "origin.example.com" {
		t.Errorf("original origin hostname = %v, want origin.example.com", got)
	}
	if got := tree.Rules.Behavior("origin").Options["customValidCnValues"].([]interface{})[0]; got != "{{Origin Hostname}}" {
		t.Errorf("original customValidCnValues[0] = %v, want {{Origin Hostname}}", got)
	}
	if tree.Rules.Children[0].Name != "Performance" {
		t.Errorf("original child name = %v, want Performance", tree.Rules.Children[0].Name)
	}
}
