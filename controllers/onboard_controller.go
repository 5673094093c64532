package controllers

import (
	"context"
	"fmt"
	"io"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/util/flowcontrol"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/merge"
)

// OnboardReconciler drives one onboarding run from the validation gate to
// the last activation.
type OnboardReconciler struct {
	Remote RemoteClient
	Merger merge.TemplateMerger

	// Poller waits for property activations, WAFPoller for security
	// configuration activations
	Poller    *Poller
	WAFPoller *Poller

	// Limiter paces batch submissions and status reads
	Limiter flowcontrol.RateLimiter

	LogsDir string
	RunID   string
	Out     io.Writer
	Clock   clock.PassiveClock

	Status akamaiV1alpha1.OnboardStatus
}

// Options configure a reconciler built by NewOnboardReconciler
type Options struct {
	RunID           string
	LogsDir         string
	PollInterval    time.Duration
	WAFPollInterval time.Duration
	SubmitQPS       float32
	Out             io.Writer
	Clock           clock.Clock
}

// NewOnboardReconciler returns a reconciler polling on the real clock unless
// opts carries another one.
func NewOnboardReconciler(remote RemoteClient, merger merge.TemplateMerger, opts Options) *OnboardReconciler {
	c := opts.Clock
	if c == nil {
		c = clock.RealClock{}
	}
	r := &OnboardReconciler{
		Remote:  remote,
		Merger:  merger,
		Limiter: flowcontrol.NewFakeAlwaysRateLimiter(),
		LogsDir: opts.LogsDir,
		RunID:   opts.RunID,
		Out:     opts.Out,
		Clock:   c,
		Status:  akamaiV1alpha1.OnboardStatus{RunID: opts.RunID},
	}
	if opts.SubmitQPS > 0 {
		r.Limiter = flowcontrol.NewTokenBucketRateLimiterWithClock(opts.SubmitQPS, 1, c)
	}
	r.Poller = &Poller{
		Interval: opts.PollInterval,
		Sleeper:  ClockSleeper{Clock: c},
		Classify: ClassifyPropertyStatus,
		Clock:    c,
		Render:   r.renderActivations,
	}
	r.WAFPoller = &Poller{
		Interval: opts.WAFPollInterval,
		Sleeper:  ClockSleeper{Clock: c},
		Classify: ClassifySecurityStatus,
		Clock:    c,
		Render:   r.renderActivations,
	}
	return r
}

// Reconcile runs the pipeline of the request's mode.
func (r *OnboardReconciler) Reconcile(ctx context.Context, req *OnboardRequest) error {
	switch req.Mode {
	case ModeCreate, ModeHosts:
		return r.reconcileProperty(ctx, req)
	case ModeBatch:
		return r.reconcileBatch(ctx, req)
	case ModeAppsecUpdate:
		return r.reconcileSecurity(ctx, req, false)
	}
	return fmt.Errorf("unsupported mode %q", req.Mode)
}

// RemoveHosts runs the appsec-remove pipeline.
func (r *OnboardReconciler) RemoveHosts(ctx context.Context, req *OnboardRequest) error {
	return r.reconcileSecurity(ctx, req, true)
}

// gate runs the validation gate and returns the execution plan.
func (r *OnboardReconciler) gate(ctx context.Context, req *OnboardRequest) (ExecutionPlan, error) {
	r.Status.Command = string(req.Mode)
	r.updateStatus(ctx, akamaiV1alpha1.PhaseValidating, "ValidatingRequest", "")

	plan := PlanSteps(req.Flags)
	if _, count, err := Gate(ctx, req, r.Remote, r.Merger); err != nil {
		r.setCondition(ConditionTypeValidated, false, "ValidationFailed", fmt.Sprintf("%d errors", count))
		r.updateStatus(ctx, akamaiV1alpha1.PhaseFailed, "ValidationFailed", err.Error())
		return plan, err
	}
	r.setCondition(ConditionTypeValidated, true, "ValidationPassed", "")
	return plan, nil
}

// fail records a fatal pipeline error.
func (r *OnboardReconciler) fail(ctx context.Context, reason string, err error) error {
	log.FromContext(ctx).Error(err, "Onboarding failed", "reason", reason)
	r.updateStatus(ctx, akamaiV1alpha1.PhaseFailed, reason, err.Error())
	return err
}

func (r *OnboardReconciler) provision(ctx context.Context, req *OnboardRequest, plan ExecutionPlan) ([]*ProvisionedProperty, error) {
	r.updateStatus(ctx, akamaiV1alpha1.PhaseProvisioning, "ProvisioningProperties", "")

	var props []*ProvisionedProperty
	for _, target := range req.Targets() {
		prop, err := r.provisionProperty(ctx, req, plan, target)
		if err != nil {
			return nil, r.fail(ctx, "FailedToProvisionProperty", err)
		}
		r.recordProperty(prop)
		if err := r.updateRules(ctx, req, prop); err != nil {
			return nil, r.fail(ctx, "FailedToUpdateRules", err)
		}
		props = append(props, prop)
	}
	r.setCondition(ConditionTypeProvisioned, true, "PropertiesProvisioned", fmt.Sprintf("%d properties", len(props)))
	return props, nil
}

func (r *OnboardReconciler) propertyActivator(req *OnboardRequest) *propertyActivator {
	return &propertyActivator{
		remote:     r.Remote,
		contractID: req.ContractID,
		groupID:    req.GroupID,
		note:       defaultActivationMsg,
		emails:     req.NotificationEmails,
	}
}

func (r *OnboardReconciler) securityActivator(req *OnboardRequest, note string) *securityActivator {
	return &securityActivator{
		remote: r.Remote,
		note:   note,
		emails: req.NotificationEmails,
	}
}

func propertyRecord(prop *ProvisionedProperty, network akamai.Network) *ActivationRecord {
	return &ActivationRecord{
		ResourceID:   prop.PropertyID,
		ResourceName: prop.Name,
		Version:      prop.Version,
		Network:      network,
		Hostnames:    prop.Hostnames,
		Status:       StateNotSubmitted,
	}
}

// activate blocks on one activation and records the outcome.
func (r *OnboardReconciler) activate(ctx context.Context, act Activator, rec *ActivationRecord, p *Poller, conditionType string) error {
	r.updateStatus(ctx, akamaiV1alpha1.PhaseActivating, "Activating",
		fmt.Sprintf("Activating %s version %d on %s", rec.ResourceName, rec.Version, rec.Network))

	err := ActivateAndWait(ctx, act, rec, p)
	r.recordActivations([]*ActivationRecord{rec})
	r.renderActivations([]*ActivationRecord{rec})
	if err != nil {
		r.setCondition(conditionType, false, "ActivationFailed", err.Error())
		return r.fail(ctx, "ActivationFailed", err)
	}
	r.setCondition(conditionType, true, "ActivationSucceeded", fmt.Sprintf("%s version %d", rec.ResourceName, rec.Version))
	return nil
}

// reconcileProperty runs the create, single-host and multi-hosts pipelines,
// which onboard exactly one property.
func (r *OnboardReconciler) reconcileProperty(ctx context.Context, req *OnboardRequest) error {
	logger := log.FromContext(ctx)

	plan, err := r.gate(ctx, req)
	if err != nil {
		return err
	}
	props, err := r.provision(ctx, req, plan)
	if err != nil {
		return err
	}
	prop := props[0]

	if !plan.ActivatePropertyStaging {
		logger.Info("Property activation not requested, done", "propertyName", prop.Name)
		r.updateStatus(ctx, akamaiV1alpha1.PhaseCompleted, "PropertyProvisioned", "")
		return nil
	}

	delivery := r.propertyActivator(req)
	staging := propertyRecord(prop, akamai.NetworkStaging)
	if err := r.activate(ctx, delivery, staging, r.Poller, ConditionTypeStagingActive); err != nil {
		return err
	}

	waf, err := r.securityStage(ctx, req, plan, prop.Hostnames)
	if err != nil {
		return err
	}

	if plan.ActivatePropertyProduction {
		if staging.Status != StateActive {
			return r.fail(ctx, "StagingNotActive", fmt.Errorf("%w: %s is not active on staging", ErrActivationFailed, prop.Name))
		}
		production := PromoteToProduction([]*ActivationRecord{staging})[0]
		if err := r.activate(ctx, delivery, production, r.Poller, ConditionTypeProductionActive); err != nil {
			return err
		}
	}

	// a failed staging or production activation returned above, so the
	// security configuration only needs its own staging activation
	if plan.ActivateWAFPolicyProduction {
		if waf == nil {
			logger.Info("Skipping security configuration production activation, no security configuration in this run")
		} else {
			rec := securityRecord(waf, akamai.NetworkProduction, prop.Hostnames)
			if err := r.activate(ctx, r.securityActivator(req, defaultActivationMsg), rec, r.WAFPoller, ConditionTypeSecurityActivated); err != nil {
				return err
			}
		}
	}

	r.updateStatus(ctx, akamaiV1alpha1.PhaseCompleted, "OnboardingCompleted", "")
	return nil
}

// securityStage creates or updates the security configuration of a single
// property run and activates it on staging. It returns nil when the run has
// no security stage.
func (r *OnboardReconciler) securityStage(ctx context.Context, req *OnboardRequest, plan ExecutionPlan, hostnames []string) (*SecurityConfigContext, error) {
	var waf *SecurityConfigContext
	switch {
	case req.Security.Action == SecurityCreate:
		r.updateStatus(ctx, akamaiV1alpha1.PhaseSecuring, "CreatingSecurityConfig", req.Security.ConfigName)
		created, err := r.CreateSecurityConfig(ctx, req, hostnames)
		if err != nil {
			return nil, r.fail(ctx, "FailedToCreateSecurityConfig", err)
		}
		waf = created
	case plan.AddSelectedHost:
		r.updateStatus(ctx, akamaiV1alpha1.PhaseSecuring, "UpdatingSecurityConfig", req.Security.ConfigName)
		if err := r.UpdateSecurityConfig(ctx, req, hostnames, matchTargetHostnames(req, plan, hostnames)); err != nil {
			return nil, r.fail(ctx, "FailedToUpdateSecurityConfig", err)
		}
		waf = req.WAF
	default:
		return nil, nil
	}

	if plan.ActivateWAFPolicyStaging {
		rec := securityRecord(waf, akamai.NetworkStaging, hostnames)
		if err := r.activate(ctx, r.securityActivator(req, defaultActivationMsg), rec, r.WAFPoller, ConditionTypeSecurityActivated); err != nil {
			return nil, err
		}
	}
	return waf, nil
}

// matchTargetHostnames returns the match target update of the create and
// batch pipelines: all hostnames go to the one requested target.
func matchTargetHostnames(req *OnboardRequest, plan ExecutionPlan, hostnames []string) map[int][]string {
	if !plan.UpdateMatchTarget || req.Security.MatchTargetID <= 0 {
		return nil
	}
	return map[int][]string{req.Security.MatchTargetID: hostnames}
}

// reconcileBatch runs the batch-create pipeline. Activation failures only
// exclude the affected hostnames from later stages; they are reported in the
// returned error once every stage ran.
func (r *OnboardReconciler) reconcileBatch(ctx context.Context, req *OnboardRequest) error {
	logger := log.FromContext(ctx)

	plan, err := r.gate(ctx, req)
	if err != nil {
		return err
	}
	props, err := r.provision(ctx, req, plan)
	if err != nil {
		return err
	}

	if !plan.ActivatePropertyStaging {
		r.updateStatus(ctx, akamaiV1alpha1.PhaseCompleted, "PropertiesProvisioned", "")
		return nil
	}

	var failures []error
	delivery := r.propertyActivator(req)

	r.updateStatus(ctx, akamaiV1alpha1.PhaseActivating, "ActivatingStaging", fmt.Sprintf("%d properties", len(props)))
	stagingRecords := make([]*ActivationRecord, 0, len(props))
	for _, prop := range props {
		stagingRecords = append(stagingRecords, propertyRecord(prop, akamai.NetworkStaging))
	}
	staging, err := ActivateBatch(ctx, delivery, stagingRecords, r.Poller, r.Limiter)
	if err != nil {
		return r.fail(ctx, "ActivationInterrupted", err)
	}
	r.recordActivations(staging.Records)
	r.setCondition(ConditionTypeStagingActive, staging.AllActive, "BatchStaging",
		fmt.Sprintf("%d succeeded, %d failed", staging.Succeeded.Len(), staging.Failed.Len()))
	failures = append(failures, batchFailures(akamai.NetworkStaging, staging)...)

	// only hostnames active on delivery staging are onboarded to the security configuration
	var onboarded []string
	for _, hostname := range req.Hostnames {
		if staging.Succeeded.Has(hostname) {
			onboarded = append(onboarded, hostname)
		}
	}

	wafStagingActive := false
	if plan.AddSelectedHost && len(onboarded) > 0 {
		r.updateStatus(ctx, akamaiV1alpha1.PhaseSecuring, "UpdatingSecurityConfig", req.Security.ConfigName)
		if err := r.UpdateSecurityConfig(ctx, req, onboarded, matchTargetHostnames(req, plan, onboarded)); err != nil {
			return r.fail(ctx, "FailedToUpdateSecurityConfig", err)
		}
		if plan.ActivateWAFPolicyStaging {
			res, err := ActivateBatch(ctx, r.securityActivator(req, defaultActivationMsg),
				[]*ActivationRecord{securityRecord(req.WAF, akamai.NetworkStaging, onboarded)}, r.WAFPoller, r.Limiter)
			if err != nil {
				return r.fail(ctx, "ActivationInterrupted", err)
			}
			wafStagingActive = res.AllActive
			r.setCondition(ConditionTypeSecurityActivated, res.AllActive, "BatchSecurityStaging", "")
			failures = append(failures, batchFailures(akamai.NetworkStaging, res)...)
		}
	} else if plan.AddSelectedHost {
		logger.Info("No hostname is active on staging, skipping security configuration update")
	}

	if !plan.ActivatePropertyProduction {
		return r.finishBatch(ctx, failures)
	}

	productionRecords := PromoteToProduction(staging.Records)
	if len(productionRecords) == 0 {
		logger.Info("No property is active on staging, skipping production activation")
		return r.finishBatch(ctx, failures)
	}
	production, err := ActivateBatch(ctx, delivery, productionRecords, r.Poller, r.Limiter)
	if err != nil {
		return r.fail(ctx, "ActivationInterrupted", err)
	}
	r.recordActivations(production.Records)
	r.setCondition(ConditionTypeProductionActive, production.AllActive, "BatchProduction",
		fmt.Sprintf("%d succeeded, %d failed", production.Succeeded.Len(), production.Failed.Len()))
	failures = append(failures, batchFailures(akamai.NetworkProduction, production)...)
	deliveryProductionActive := production.AllActive && staging.AllActive

	if plan.ActivateWAFPolicyProduction {
		switch {
		case !wafStagingActive:
			logger.Info("Skipping security configuration production activation, it is not active on staging")
		case !deliveryProductionActive:
			logger.Info("Skipping security configuration production activation, not every property is active on production")
		default:
			res, err := ActivateBatch(ctx, r.securityActivator(req, defaultActivationMsg),
				[]*ActivationRecord{securityRecord(req.WAF, akamai.NetworkProduction, onboarded)}, r.WAFPoller, r.Limiter)
			if err != nil {
				return r.fail(ctx, "ActivationInterrupted", err)
			}
			failures = append(failures, batchFailures(akamai.NetworkProduction, res)...)
		}
	}

	return r.finishBatch(ctx, failures)
}

func (r *OnboardReconciler) finishBatch(ctx context.Context, failures []error) error {
	if err := utilerrors.NewAggregate(failures); err != nil {
		r.updateStatus(ctx, akamaiV1alpha1.PhaseFailed, "ActivationFailed", err.Error())
		return fmt.Errorf("%w: %w", ErrActivationFailed, err)
	}
	r.updateStatus(ctx, akamaiV1alpha1.PhaseCompleted, "OnboardingCompleted", "")
	return nil
}

func batchFailures(network akamai.Network, res *BatchResult) []error {
	var errs []error
	for _, rec := range res.Records {
		if rec.Status == StateActive {
			continue
		}
		errs = append(errs, fmt.Errorf("%s version %d on %s: %s %s", rec.ResourceName, rec.Version, network, rec.Status, rec.Detail))
	}
	return errs
}

// reconcileSecurity runs the appsec-update and appsec-remove pipelines.
func (r *OnboardReconciler) reconcileSecurity(ctx context.Context, req *OnboardRequest, remove bool) error {
	plan, err := r.gate(ctx, req)
	if err != nil {
		return err
	}

	targets := map[int][]string{}
	for _, row := range req.AppsecRows {
		if row.MatchTargetID > 0 {
			targets[row.MatchTargetID] = append(targets[row.MatchTargetID], row.Hostname)
		}
	}
	hostnames := sets.List(sets.New(req.Hostnames...))

	r.updateStatus(ctx, akamaiV1alpha1.PhaseSecuring, "UpdatingSecurityConfig", req.WAF.ConfigName)
	if remove {
		err = r.RemoveHostsFromSecurityConfig(ctx, req, hostnames, targets)
	} else {
		err = r.UpdateSecurityConfig(ctx, req, hostnames, targets)
	}
	if err != nil {
		return r.fail(ctx, "FailedToUpdateSecurityConfig", err)
	}

	act := r.securityActivator(req, req.VersionNotes)
	if plan.ActivateWAFPolicyStaging {
		staging := securityRecord(req.WAF, akamai.NetworkStaging, hostnames)
		if err := r.activate(ctx, act, staging, r.WAFPoller, ConditionTypeSecurityActivated); err != nil {
			return err
		}
		if plan.ActivateWAFPolicyProduction {
			production := PromoteToProduction([]*ActivationRecord{staging})[0]
			if err := r.activate(ctx, act, production, r.WAFPoller, ConditionTypeSecurityActivated); err != nil {
				return err
			}
		}
	}

	r.updateStatus(ctx, akamaiV1alpha1.PhaseCompleted, "SecurityConfigUpdated", "")
	return nil
}
