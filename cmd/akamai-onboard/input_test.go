package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadHostsDocumentYAML(t *testing.T) {
	path := writeFile(t, "hosts.yaml", `
property_info:
  property_name: www.example.com
  contract_id: ctr_1-ABC
  group_id: grp_1
  product_id: prd_Fresca
  property_hostname:
    - www.example.com
  source_template_file: rules.json
edge_hostname:
  use_existing_edge_hostname: www.example.com.edgekey.net
update_waf_info:
  create_new_security_config: true
activate_production: true
`)

	doc, err := loadHostsDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", doc.PropertyInfo.PropertyName)
	assert.Equal(t, []string{"www.example.com"}, doc.PropertyInfo.PropertyHostname)
	assert.Equal(t, "rules.json", doc.PropertyInfo.SourceTemplateFile)
	assert.Equal(t, "www.example.com.edgekey.net", doc.EdgeHostname.UseExistingEdgeHostname)
	assert.True(t, doc.UpdateWAFInfo.CreateNewSecurityConfig)
	assert.True(t, doc.ActivateProduction)
}

func TestLoadSetupDocumentJSON(t *testing.T) {
	path := writeFile(t, "setup.json", `{
  "property_info": {
    "property_name": "example",
    "secure_network": "ENHANCED_TLS",
    "contract_id": "ctr_1-ABC",
    "group_id": "grp_1",
    "product_id": "prd_Fresca",
    "rule_format": "latest",
    "default_cpcode": {"create_new_cpcode": true, "new_cpcode_name": "example"},
    "file_info": {"use_file": true, "source_template_file": "~/rules.json"},
    "folder_info": {"use_folder": false}
  },
  "public_hostnames": ["www.example.com"],
  "edge_hostname": {"mode": "use_existing_edgehostname", "use_existing_edgehostname": {"edge_hostname": "example.edgekey.net"}},
  "activate_property_staging": true
}`)

	doc := &akamaiV1alpha1.SetupDocument{}
	require.NoError(t, loadDocument(path, doc))
	require.NoError(t, expandSetupPaths(doc))

	assert.Equal(t, "example", doc.PropertyInfo.PropertyName)
	require.NotNil(t, doc.PropertyInfo.DefaultCPCode.CreateNewCPCode)
	assert.True(t, *doc.PropertyInfo.DefaultCPCode.CreateNewCPCode)
	assert.NotContains(t, doc.PropertyInfo.FileInfo.SourceTemplateFile, "~")
	require.NotNil(t, doc.ActivatePropertyStaging)
	assert.True(t, *doc.ActivatePropertyStaging)
	assert.Nil(t, doc.ActivatePropertyProduction)
}

func TestLoadDocumentRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, "hosts.yaml", "property_info:\n  contract_id: ctr_1\nunknown_field: true\n")

	_, err := loadHostsDocument(path)
	assert.Error(t, err)
}

func TestLoadDocumentMissingFile(t *testing.T) {
	_, err := loadHostsDocument(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"create", "single-host", "multi-hosts", "batch-create", "appsec-update", "appsec-remove"} {
		assert.True(t, names[want], "missing command %s", want)
	}
	for _, flag := range []string{"edgerc", "section", "account-key", "log-level", "log-json", "local-merge"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}
