package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/go-homedir"
	"sigs.k8s.io/yaml"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
)

// loadDocument reads a JSON or YAML input document into out. Unknown fields
// are rejected.
func loadDocument(path string, out interface{}) error {
	path, err := homedir.Expand(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func loadHostsDocument(path string) (*akamaiV1alpha1.HostsDocument, error) {
	doc := &akamaiV1alpha1.HostsDocument{}
	if err := loadDocument(path, doc); err != nil {
		return nil, err
	}
	info := &doc.PropertyInfo
	for _, p := range []*string{&info.SourceTemplateFile, &info.SourceValuesFile} {
		if err := expand(p); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func expandSetupPaths(doc *akamaiV1alpha1.SetupDocument) error {
	info := &doc.PropertyInfo
	for _, p := range []*string{&info.FileInfo.SourceTemplateFile, &info.FileInfo.SourceValuesFile, &info.FolderInfo.FolderPath} {
		if err := expand(p); err != nil {
			return err
		}
	}
	return nil
}

func expand(p *string) error {
	if *p == "" {
		return nil
	}
	expanded, err := homedir.Expand(*p)
	if err != nil {
		return fmt.Errorf("failed to expand %q: %w", *p, err)
	}
	*p = expanded
	return nil
}
