package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/mmz-srf/akamai-onboard/controllers"
	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/config"
	"github.com/mmz-srf/akamai-onboard/pkg/merge"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app carries the state shared by all subcommands
type app struct {
	overrides  config.Overrides
	logJSON    bool
	localMerge bool
}

// NewRootCommand creates the akamai-onboard command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "akamai-onboard",
		Short: "Onboard hostnames to Akamai delivery properties and security configurations",
		Long: `Onboard hostnames to Akamai.

Every command validates its whole input against the account before it changes
anything, then provisions the property, updates its rule tree and runs the
requested activations.

Credentials are read from the edgerc file (AKAMAI_EDGERC, --edgerc) using the
section given by AKAMAI_EDGERC_SECTION or --section.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.overrides.Edgerc, "edgerc", "", "Location of the credentials file (default ~/.edgerc)")
	flags.StringVar(&a.overrides.Section, "section", "", "Section of the credentials file (default onboard)")
	flags.StringVar(&a.overrides.AccountKey, "account-key", "", "Account switch key")
	flags.StringVar(&a.overrides.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.BoolVar(&a.logJSON, "log-json", false, "Write logs as JSON")
	flags.BoolVar(&a.localMerge, "local-merge", false, "Merge rule templates locally instead of with the pipeline CLI")

	cmd.AddCommand(
		CreateCommand(a),
		SingleHostCommand(a),
		MultiHostsCommand(a),
		BatchCreateCommand(a),
		AppsecUpdateCommand(a),
		AppsecRemoveCommand(a),
	)
	return cmd
}

// setup loads the configuration, installs the logger and builds the
// reconciler for req.
func (a *app) setup(cmd *cobra.Command, req *controllers.OnboardRequest) (context.Context, *controllers.OnboardReconciler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.Apply(a.overrides)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := a.newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	runID := uuid.NewString()
	logger = logger.WithValues("runID", runID, "command", cmd.Name())
	log.SetLogger(logger)
	ctx := log.IntoContext(cmd.Context(), logger)

	edgerc, err := cfg.Credentials.EdgercPath()
	if err != nil {
		return nil, nil, err
	}
	client, err := akamai.NewClient(akamai.Config{
		EdgercPath: edgerc,
		Section:    cfg.Credentials.Section,
		AccountKey: cfg.Credentials.AccountKey,
	})
	if err != nil {
		return nil, nil, err
	}

	r := controllers.NewOnboardReconciler(client, a.merger(cfg, edgerc, req), controllers.Options{
		RunID:           runID,
		LogsDir:         cfg.Onboard.LogsDir,
		PollInterval:    cfg.Onboard.PollInterval,
		WAFPollInterval: cfg.Onboard.WAFPollInterval,
		SubmitQPS:       cfg.Onboard.SubmitQPS,
		Out:             cmd.OutOrStdout(),
	})
	logger.V(1).Info("Starting onboarding run", "mode", req.Mode, "hostnames", len(req.Hostnames))
	return ctx, r, nil
}

func (a *app) newLogger(cfg *config.Config) (logr.Logger, error) {
	level, err := cfg.Onboard.ZapLevel()
	if err != nil {
		return logr.Discard(), err
	}
	return zap.New(
		zap.UseDevMode(!a.logJSON),
		zap.Level(level),
		zap.WriteTo(os.Stderr),
	), nil
}

// merger picks the rule template merger of the request. Batch templates carry
// no variables.
func (a *app) merger(cfg *config.Config, edgerc string, req *controllers.OnboardRequest) merge.TemplateMerger {
	switch {
	case req.Mode == controllers.ModeBatch:
		return merge.TemplateOnly{}
	case a.localMerge:
		return merge.ValuesMerger{}
	}
	return &merge.PipelineMerger{
		Command: cfg.Onboard.PipelineCommand,
		Edgerc:  edgerc,
		Section: cfg.Credentials.Section,
	}
}

// execute runs req and prints the run summary, also after a failure.
func (a *app) execute(cmd *cobra.Command, req *controllers.OnboardRequest, remove bool) error {
	ctx, r, err := a.setup(cmd, req)
	if err != nil {
		return err
	}
	defer r.PrintSummary()

	if remove {
		return r.RemoveHosts(ctx, req)
	}
	return r.Reconcile(ctx, req)
}
