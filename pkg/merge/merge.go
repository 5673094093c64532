package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// Input names the rule source of a property. Either TemplateFile (with an
// optional ValuesFile) or FolderPath with EnvName is set.
type Input struct {
	TemplateFile string
	ValuesFile   string

	FolderPath string
	EnvName    string
}

// UsesFolder reports whether the input points at a pipeline project folder.
func (in Input) UsesFolder() bool {
	return in.FolderPath != ""
}

// TemplateMerger turns a rule template and its variables into a rule tree
// document.
type TemplateMerger interface {
	Merge(ctx context.Context, in Input) ([]byte, error)
}

// Prerequisite is implemented by mergers that depend on tools outside this
// process. The validation gate runs the check before anything is created.
type Prerequisite interface {
	CheckPrerequisites(ctx context.Context) error
}

// TemplateOnly returns the template file unchanged. Batch onboarding uses it,
// the batch templates carry no variables.
type TemplateOnly struct{}

// Merge implements TemplateMerger.
func (TemplateOnly) Merge(_ context.Context, in Input) ([]byte, error) {
	if in.UsesFolder() {
		return nil, fmt.Errorf("template-only merge does not support project folders")
	}
	return readJSONFile(in.TemplateFile)
}

func readJSONFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%s is not valid JSON", path)
	}
	return data, nil
}

func readValues(path string) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	if path == "" {
		return values, nil
	}
	data, err := readJSONFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse values file %s: %w", path, err)
	}
	return values, nil
}
