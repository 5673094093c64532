package v1alpha1

// RuleTree is a property rule tree document as accepted by the rules endpoint
type RuleTree struct {
	// Rules is the default rule
	Rules Rule `json:"rules"`

	// RuleFormat pins the behavior catalog version
	RuleFormat string `json:"ruleFormat,omitempty"`

	// Comments becomes the version notes of the property version
	Comments string `json:"comments,omitempty"`
}

// Rule is a node of the rule tree
type Rule struct {
	// Name is the name of the rule; the top-level rule is named "default"
	Name string `json:"name"`

	UUID         string `json:"uuid,omitempty"`
	TemplateUUID string `json:"templateUuid,omitempty"`
	TemplateLink string `json:"templateLink,omitempty"`
	Comments     string `json:"comments,omitempty"`

	// Options is only meaningful on the default rule
	Options *RuleOptions `json:"options,omitempty"`

	// Criteria defines the match criteria for the rule
	Criteria []Behavior `json:"criteria"`

	// Behaviors defines the behaviors to apply when criteria match
	Behaviors []Behavior `json:"behaviors"`

	// Children contains nested rules
	Children []Rule `json:"children"`

	// Variables are the user variables declared on the default rule
	Variables []RuleVariable `json:"variables,omitempty"`

	CriteriaMustSatisfy string                 `json:"criteriaMustSatisfy,omitempty"`
	CriteriaLocked      bool                   `json:"criteriaLocked,omitempty"`
	AdvancedOverride    string                 `json:"advancedOverride,omitempty"`
	CustomOverride      map[string]interface{} `json:"customOverride,omitempty"`
}

// RuleOptions holds default rule options
type RuleOptions struct {
	IsSecure bool `json:"is_secure"`
}

// Behavior is a named behavior or criterion. Options are kept as free-form
// JSON; the remote service validates them.
type Behavior struct {
	Name         string                 `json:"name"`
	UUID         string                 `json:"uuid,omitempty"`
	TemplateUUID string                 `json:"templateUuid,omitempty"`
	Locked       bool                   `json:"locked,omitempty"`
	Options      map[string]interface{} `json:"options"`
}

// RuleVariable is a user variable declared on the default rule
type RuleVariable struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
	Hidden      bool   `json:"hidden"`
	Sensitive   bool   `json:"sensitive"`
}

// Behavior returns the first behavior of the rule with the given name.
func (r *Rule) Behavior(name string) *Behavior {
	for i := range r.Behaviors {
		if r.Behaviors[i].Name == name {
			return &r.Behaviors[i]
		}
	}
	return nil
}

// DeepCopy returns an independent copy of the rule tree.
func (t *RuleTree) DeepCopy() *RuleTree {
	if t == nil {
		return nil
	}
	out := *t
	out.Rules = *t.Rules.DeepCopy()
	return &out
}

// DeepCopy returns an independent copy of the rule and its children.
func (r *Rule) DeepCopy() *Rule {
	if r == nil {
		return nil
	}
	out := *r
	if r.Options != nil {
		opts := *r.Options
		out.Options = &opts
	}
	out.Criteria = copyBehaviors(r.Criteria)
	out.Behaviors = copyBehaviors(r.Behaviors)
	if r.Children != nil {
		out.Children = make([]Rule, len(r.Children))
		for i := range r.Children {
			out.Children[i] = *r.Children[i].DeepCopy()
		}
	}
	if r.Variables != nil {
		out.Variables = append([]RuleVariable(nil), r.Variables...)
	}
	if r.CustomOverride != nil {
		out.CustomOverride = copyJSONMap(r.CustomOverride)
	}
	return &out
}

// DeepCopy returns an independent copy of the behavior.
func (b *Behavior) DeepCopy() *Behavior {
	if b == nil {
		return nil
	}
	out := *b
	if b.Options != nil {
		out.Options = copyJSONMap(b.Options)
	}
	return &out
}

func copyBehaviors(in []Behavior) []Behavior {
	if in == nil {
		return nil
	}
	out := make([]Behavior, len(in))
	for i := range in {
		out[i] = *in[i].DeepCopy()
	}
	return out
}

func copyJSONMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = copyJSONValue(v)
	}
	return out
}

func copyJSONValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyJSONMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = copyJSONValue(val[i])
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
