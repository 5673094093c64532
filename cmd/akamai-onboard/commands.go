package main

import (
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
	"github.com/mmz-srf/akamai-onboard/controllers"
	"github.com/mmz-srf/akamai-onboard/pkg/csvinput"
)

// CreateCommand creates the create command
func CreateCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a property from a setup file",
		Long: `Create a property from a setup file and optionally activate it and add its
hostnames to an existing security configuration.

Examples:
  akamai-onboard create --file setup.yaml
  akamai-onboard create --file setup.json --local-merge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := &akamaiV1alpha1.SetupDocument{}
			if err := loadDocument(file, doc); err != nil {
				return err
			}
			if err := expandSetupPaths(doc); err != nil {
				return err
			}
			return a.execute(cmd, controllers.NewCreateRequest(doc), false)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Setup file (JSON or YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// SingleHostCommand creates the single-host command
func SingleHostCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "single-host",
		Short: "Onboard one hostname to a new property",
		Long: `Onboard one hostname to a new property, activate it on staging and
optionally protect it with a new security configuration.

Examples:
  akamai-onboard single-host --file host.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadHostsDocument(file)
			if err != nil {
				return err
			}
			return a.execute(cmd, controllers.NewHostsRequest(doc, false, nil), false)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Hosts file (JSON or YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// MultiHostsCommand creates the multi-hosts command
func MultiHostsCommand(a *app) *cobra.Command {
	var (
		file    string
		csvFile string
	)

	cmd := &cobra.Command{
		Use:   "multi-hosts",
		Short: "Onboard several hostnames to one new property",
		Long: `Onboard several hostnames to one new property. With --csv every hostname
gets its own origin, taken from the hostname and origin columns.

Examples:
  akamai-onboard multi-hosts --file hosts.yaml
  akamai-onboard multi-hosts --file hosts.yaml --csv origins.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadHostsDocument(file)
			if err != nil {
				return err
			}
			var rows []csvinput.DeliveryRow
			if csvFile != "" {
				if rows, err = csvinput.ReadDeliveryRows(cmd.Context(), csvFile); err != nil {
					return err
				}
			}
			return a.execute(cmd, controllers.NewHostsRequest(doc, true, rows), false)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Hosts file (JSON or YAML)")
	cmd.Flags().StringVar(&csvFile, "csv", "", "CSV file with hostname and origin columns")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// BatchCreateCommand creates the batch-create command
func BatchCreateCommand(a *app) *cobra.Command {
	var (
		csvFile string
		opts    controllers.BatchOptions
	)

	cmd := &cobra.Command{
		Use:   "batch-create",
		Short: "Create one property per property name of a CSV file",
		Long: `Create one property per property name of a CSV file. Activation failures
only exclude the affected hostnames from the following stages.

Examples:
  akamai-onboard batch-create --csv hosts.csv --contract ctr_1-ABC --group grp_1 \
    --product prd_Fresca --template rules.json --activate delivery-staging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := homedir.Expand(opts.TemplateFile)
			if err != nil {
				return err
			}
			opts.TemplateFile = template

			rows, err := csvinput.ReadDeliveryRows(cmd.Context(), csvFile)
			if err != nil {
				return err
			}
			return a.execute(cmd, controllers.NewBatchRequest(opts, rows), false)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&csvFile, "csv", "", "CSV file with one row per hostname")
	flags.StringVar(&opts.ContractID, "contract", "", "Contract id")
	flags.StringVar(&opts.GroupID, "group", "", "Group id")
	flags.StringVar(&opts.ProductID, "product", "", "Product id")
	flags.StringVar(&opts.TemplateFile, "template", "", "Rule tree template file")
	flags.StringVar(&opts.RuleFormat, "rule-format", "", "Rule format (default latest)")
	flags.StringVar(&opts.SecureNetwork, "network", "", "Secure network: STANDARD_TLS or ENHANCED_TLS (default ENHANCED_TLS)")
	flags.BoolVar(&opts.SecureByDefault, "secure-by-default", false, "Use secure by default certificates")
	flags.StringVar(&opts.WAFConfigName, "waf-config", "", "Security configuration the hostnames are added to")
	flags.IntVar(&opts.WAFMatchTargetID, "waf-match-target", 0, "Match target the hostnames are added to")
	flags.StringArrayVar(&opts.Activate, "activate", nil,
		"Activation to run: delivery-staging, waf-staging, delivery-production or waf-production (repeatable)")
	flags.StringSliceVar(&opts.Emails, "email", nil, "Notification email (repeatable)")
	for _, name := range []string{"csv", "contract", "group", "product", "template"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// AppsecUpdateCommand creates the appsec-update command
func AppsecUpdateCommand(a *app) *cobra.Command {
	return appsecCommand(a, false)
}

// AppsecRemoveCommand creates the appsec-remove command
func AppsecRemoveCommand(a *app) *cobra.Command {
	return appsecCommand(a, true)
}

func appsecCommand(a *app, remove bool) *cobra.Command {
	var (
		csvFile string
		opts    controllers.AppsecOptions
	)

	cmd := &cobra.Command{
		Use:   "appsec-update",
		Short: "Add hostnames to a security configuration",
		Long: `Create a new version of a security configuration with the hostnames of a
CSV file added to its selected hosts and match targets.

Examples:
  akamai-onboard appsec-update --config-id 12345 --csv hosts.csv --activate staging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := csvinput.ReadAppsecRows(csvFile)
			if err != nil {
				return err
			}
			return a.execute(cmd, controllers.NewAppsecRequest(opts, rows), remove)
		},
	}
	if remove {
		cmd.Use = "appsec-remove"
		cmd.Short = "Remove hostnames from a security configuration"
		cmd.Long = `Create a new version of a security configuration with the hostnames of a
CSV file removed from its selected hosts and match targets.

Examples:
  akamai-onboard appsec-remove --config-id 12345 --csv hosts.csv`
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.ConfigID, "config-id", 0, "Security configuration id")
	flags.IntVar(&opts.Version, "version", 0, "Version the new version is created from (default latest)")
	flags.StringVar(&csvFile, "csv", "", "CSV file with hostname and match target id columns")
	flags.StringArrayVar(&opts.Activate, "activate", nil, "Activation to run: staging or production (repeatable)")
	flags.StringSliceVar(&opts.Emails, "email", nil, "Notification email (repeatable)")
	flags.StringVar(&opts.VersionNotes, "version-notes", "", "Notes of the new version")
	_ = cmd.MarkFlagRequired("config-id")
	_ = cmd.MarkFlagRequired("csv")
	return cmd
}
