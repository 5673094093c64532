package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

var placeholder = regexp.MustCompile(`\$\{env\.([A-Za-z0-9_]+)\}`)

// ValuesMerger substitutes ${env.<name>} placeholders in the template with
// the entries of the values file. A string that is exactly one placeholder
// takes the value with its JSON type; placeholders embedded in longer strings
// are replaced textually.
type ValuesMerger struct{}

// Merge implements TemplateMerger.
func (ValuesMerger) Merge(_ context.Context, in Input) ([]byte, error) {
	if in.UsesFolder() {
		return nil, fmt.Errorf("local merge does not support project folders")
	}
	data, err := readJSONFile(in.TemplateFile)
	if err != nil {
		return nil, err
	}
	values, err := readValues(in.ValuesFile)
	if err != nil {
		return nil, err
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", in.TemplateFile, err)
	}

	missing := sets.New[string]()
	doc = substitute(doc, values, missing)
	if missing.Len() > 0 {
		return nil, fmt.Errorf("template references undefined variables: %s", strings.Join(sets.List(missing), ", "))
	}
	return json.Marshal(doc)
}

func substitute(v interface{}, values map[string]interface{}, missing sets.Set[string]) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k := range val {
			val[k] = substitute(val[k], values, missing)
		}
		return val
	case []interface{}:
		for i := range val {
			val[i] = substitute(val[i], values, missing)
		}
		return val
	case string:
		if m := placeholder.FindStringSubmatch(val); m != nil && m[0] == val {
			replacement, ok := values[m[1]]
			if !ok {
				missing.Insert(m[1])
				return val
			}
			return replacement
		}
		return placeholder.ReplaceAllStringFunc(val, func(match string) string {
			name := placeholder.FindStringSubmatch(match)[1]
			replacement, ok := values[name]
			if !ok {
				missing.Insert(name)
				return match
			}
			if s, ok := replacement.(string); ok {
				return s
			}
			return fmt.Sprint(replacement)
		})
	default:
		return val
	}
}
