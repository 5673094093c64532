package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	projectName    = "onboard_pm"
	defaultEnvName = "test"
)

// PipelineMerger runs `akamai pipeline merge` over a temporary pipeline
// project and returns the merged rule tree it writes to dist/.
type PipelineMerger struct {
	// Command is the akamai CLI executable, "akamai" when empty
	Command string

	Edgerc  string
	Section string

	// WorkDir is where the temporary project is created, os.TempDir() when empty
	WorkDir string
}

func (p *PipelineMerger) command() string {
	if p.Command == "" {
		return "akamai"
	}
	return p.Command
}

// CheckPrerequisites verifies that the akamai CLI and its pipeline module
// are installed.
func (p *PipelineMerger) CheckPrerequisites(ctx context.Context) error {
	command := p.command()
	path, err := exec.LookPath(command)
	if err != nil {
		return fmt.Errorf("akamai CLI %q not found, install it from https://github.com/akamai/cli: %w", command, err)
	}
	out, err := exec.CommandContext(ctx, path, "pipeline").CombinedOutput()
	if err != nil {
		return fmt.Errorf("akamai pipeline module is not installed, run `akamai install property-manager`: %w: %s", err, strings.TrimSpace(string(out)))
	}
	log.FromContext(ctx).V(1).Info("Found akamai CLI with pipeline module", "path", path)
	return nil
}

// Merge implements TemplateMerger.
func (p *PipelineMerger) Merge(ctx context.Context, in Input) ([]byte, error) {
	logger := log.FromContext(ctx)

	base, err := os.MkdirTemp(p.WorkDir, "onboard-merge-")
	if err != nil {
		return nil, fmt.Errorf("failed to create merge directory: %w", err)
	}
	defer os.RemoveAll(base)

	project := filepath.Join(base, projectName)
	env := defaultEnvName
	if in.UsesFolder() {
		env = in.EnvName
		err = copyProject(in.FolderPath, project)
	} else {
		err = writeProject(in, project)
	}
	if err != nil {
		return nil, err
	}

	command := p.command()
	args := []string{"pipeline", "merge", "-n", "-p", projectName, env}
	if p.Edgerc != "" {
		args = append(args, "--edgerc", p.Edgerc)
	}
	if p.Section != "" {
		args = append(args, "--section", p.Section)
	}

	logger.V(1).Info("Running pipeline merge", "command", command+" "+strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = base
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pipeline merge failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	merged := filepath.Join(project, "dist", fmt.Sprintf("%s.%s.papi.json", env, projectName))
	data, err := readJSONFile(merged)
	if err != nil {
		return nil, fmt.Errorf("pipeline merge produced no rule tree: %w", err)
	}
	logger.Info("Merged rule template via pipeline", "env", env)
	return data, nil
}

// writeProject lays out a single-environment pipeline project from a
// template and values file.
func writeProject(in Input, project string) error {
	template, err := readJSONFile(in.TemplateFile)
	if err != nil {
		return err
	}
	values, err := readValues(in.ValuesFile)
	if err != nil {
		return err
	}

	for _, dir := range []string{"dist", "templates", filepath.Join("environments", defaultEnvName)} {
		if err := os.MkdirAll(filepath.Join(project, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	definitions := map[string]interface{}{}
	for name := range values {
		definitions[name] = map[string]string{"default": "", "type": "userVariableValue"}
	}

	envDir := filepath.Join(project, "environments", defaultEnvName)
	if err := writeJSON(filepath.Join(project, "projectInfo.json"), map[string]interface{}{
		"name":         projectName,
		"environments": []string{defaultEnvName},
	}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(project, "environments", "variableDefinitions.json"), map[string]interface{}{
		"definitions": definitions,
	}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(envDir, "envInfo.json"), map[string]string{"name": defaultEnvName}); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(envDir, "variables.json"), values); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(project, "templates", "main.json"), template, 0o644); err != nil {
		return fmt.Errorf("failed to write main template: %w", err)
	}
	return nil
}

// copyProject copies an existing pipeline project and renames it so the
// merged output lands at a known path.
func copyProject(folder, project string) error {
	if err := os.CopyFS(project, os.DirFS(folder)); err != nil {
		return fmt.Errorf("failed to copy project folder %s: %w", folder, err)
	}

	infoPath := filepath.Join(project, "projectInfo.json")
	data, err := readJSONFile(infoPath)
	if err != nil {
		return err
	}
	info := map[string]interface{}{}
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("failed to parse projectInfo.json: %w", err)
	}
	info["name"] = projectName
	if err := os.MkdirAll(filepath.Join(project, "dist"), 0o755); err != nil {
		return fmt.Errorf("failed to create dist directory: %w", err)
	}
	return writeJSON(infoPath, info)
}

func writeJSON(path string, doc interface{}) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
