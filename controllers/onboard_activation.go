package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/util/flowcontrol"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
)

// DefaultPollInterval is the fixed delay between two status reads
const DefaultPollInterval = 30 * time.Second

// Classification is the client side reading of a remote activation status
type Classification int

const (
	Pending Classification = iota
	Active
	Failed
)

// Classifier maps a remote activation status to a Classification
type Classifier func(remoteStatus string) Classification

// ClassifyPropertyStatus classifies property activation statuses.
func ClassifyPropertyStatus(status string) Classification {
	switch status {
	case "ACTIVE":
		return Active
	case "FAILED", "ABORTED", "DEACTIVATED":
		return Failed
	}
	return Pending
}

// ClassifySecurityStatus classifies security configuration activation statuses.
func ClassifySecurityStatus(status string) Classification {
	switch {
	case status == "ACTIVATED":
		return Active
	case status == "FAILED", strings.HasPrefix(status, "ACTIVATION_ERROR"):
		return Failed
	}
	return Pending
}

// Activator submits activations of one kind of resource and reads their status
type Activator interface {
	Submit(ctx context.Context, rec *ActivationRecord) (string, error)
	Status(ctx context.Context, rec *ActivationRecord) (string, error)
}

// propertyActivator activates property versions. ResourceID is the property id.
type propertyActivator struct {
	remote     PropertyAPI
	contractID string
	groupID    string
	note       string
	emails     []string
}

func (a *propertyActivator) ref(rec *ActivationRecord) akamai.PropertyRef {
	return akamai.PropertyRef{
		PropertyID: rec.ResourceID,
		ContractID: a.contractID,
		GroupID:    a.groupID,
		Version:    rec.Version,
	}
}

func (a *propertyActivator) Submit(ctx context.Context, rec *ActivationRecord) (string, error) {
	return a.remote.ActivateProperty(ctx, a.ref(rec), akamai.ActivationSpec{
		Network:      rec.Network,
		Note:         a.note,
		NotifyEmails: a.emails,
	})
}

func (a *propertyActivator) Status(ctx context.Context, rec *ActivationRecord) (string, error) {
	return a.remote.GetActivationStatus(ctx, a.ref(rec), rec.ActivationID, rec.Network)
}

// securityActivator activates security configuration versions. ResourceID is
// the numeric config id.
type securityActivator struct {
	remote SecurityAPI
	note   string
	emails []string
}

func (a *securityActivator) Submit(ctx context.Context, rec *ActivationRecord) (string, error) {
	configID, err := strconv.Atoi(rec.ResourceID)
	if err != nil {
		return "", fmt.Errorf("invalid security config id %q: %w", rec.ResourceID, err)
	}
	id, err := a.remote.ActivateSecurityConfiguration(ctx, akamai.WAFActivationSpec{
		ConfigID:           configID,
		Version:            rec.Version,
		Network:            rec.Network,
		Note:               a.note,
		NotificationEmails: a.emails,
	})
	if err != nil {
		return "", enrichActivationConflict(ctx, a.remote, err)
	}
	return strconv.Itoa(id), nil
}

func (a *securityActivator) Status(ctx context.Context, rec *ActivationRecord) (string, error) {
	id, err := strconv.Atoi(rec.ActivationID)
	if err != nil {
		return "", fmt.Errorf("invalid activation id %q: %w", rec.ActivationID, err)
	}
	return a.remote.GetSecurityActivationStatus(ctx, id)
}

// Sleeper suspends the poller between two status reads
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on a clock and returns early when ctx is done.
type ClockSleeper struct {
	Clock clock.Clock
}

func (s ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	c := s.Clock
	if c == nil {
		c = clock.RealClock{}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

// Poller drives activation records to a terminal state
type Poller struct {
	Interval time.Duration
	Sleeper  Sleeper
	Classify Classifier

	// Clock stamps submit and active times
	Clock clock.PassiveClock

	// Render, when set, is called with all records after every batch poll
	Render func(records []*ActivationRecord)
}

func (p *Poller) now() time.Time {
	if p.Clock == nil {
		return time.Now()
	}
	return p.Clock.Now()
}

func (p *Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return DefaultPollInterval
	}
	return p.Interval
}

// submit moves a record out of NOT_SUBMITTED. A failed submission is
// terminal with an empty activation id.
func (p *Poller) submit(ctx context.Context, act Activator, rec *ActivationRecord) error {
	logger := log.FromContext(ctx)

	id, err := act.Submit(ctx, rec)
	if err != nil {
		rec.ActivationID = ""
		rec.Status = StateActivationError
		rec.Detail = submissionDetail(err)
		logger.Error(err, "Failed to submit activation", "name", rec.ResourceName, "network", rec.Network, "version", rec.Version)
		return err
	}
	rec.ActivationID = id
	rec.Status = StatePending
	rec.SubmittedAt = p.now()
	logger.Info("Submitted activation", "name", rec.ResourceName, "network", rec.Network, "version", rec.Version, "activationID", id)
	return nil
}

// refresh reads the remote status of a pending record once.
func (p *Poller) refresh(ctx context.Context, act Activator, rec *ActivationRecord) {
	logger := log.FromContext(ctx)

	status, err := act.Status(ctx, rec)
	if err == nil && status == "" {
		err = errors.New("empty activation status")
	}
	if err != nil {
		rec.Status = StateUnableToUpdateStatus
		rec.Detail = err.Error()
		logger.Error(err, "Unable to update activation status", "name", rec.ResourceName, "network", rec.Network, "activationID", rec.ActivationID)
		return
	}

	rec.RemoteStatus = status
	switch p.Classify(status) {
	case Active:
		rec.Status = StateActive
		rec.ActiveAt = p.now()
		logger.Info("Activation completed", "name", rec.ResourceName, "network", rec.Network, "version", rec.Version)
	case Failed:
		rec.Status = StateActivationError
		rec.Detail = status
		logger.Error(nil, "Activation failed", "name", rec.ResourceName, "network", rec.Network, "status", status)
	default:
		rec.Status = StatePending
		logger.V(1).Info("Activation in progress", "name", rec.ResourceName, "network", rec.Network, "status", status)
	}
}

// ActivateAndWait submits one activation and blocks until it is terminal.
// Anything but ACTIVE is returned as ErrActivationFailed.
func ActivateAndWait(ctx context.Context, act Activator, rec *ActivationRecord, p *Poller) error {
	logger := log.FromContext(ctx)

	if err := p.submit(ctx, act, rec); err != nil {
		return fmt.Errorf("%w: %s on %s: %s", ErrActivationFailed, rec.ResourceName, rec.Network, rec.Detail)
	}

	p.refresh(ctx, act, rec)
	for !rec.Status.Terminal() {
		logger.Info("Waiting for activation", "name", rec.ResourceName, "network", rec.Network, "status", rec.RemoteStatus)
		if err := p.Sleeper.Sleep(ctx, p.interval()); err != nil {
			return err
		}
		p.refresh(ctx, act, rec)
	}

	if rec.Status != StateActive {
		return fmt.Errorf("%w: %s on %s: %s", ErrActivationFailed, rec.ResourceName, rec.Network, rec.Detail)
	}
	return nil
}

// BatchResult partitions the hostnames of a batch by activation outcome
type BatchResult struct {
	Records   []*ActivationRecord
	Succeeded sets.Set[string]
	Failed    sets.Set[string]

	// AllActive is set when every record reached ACTIVE
	AllActive bool
}

// ActivateBatch submits every record up front and polls the outstanding ones
// each tick until all are terminal. A failed item never stops the others.
// The returned error is only set when ctx ends the wait.
func ActivateBatch(ctx context.Context, act Activator, records []*ActivationRecord, p *Poller, limiter flowcontrol.RateLimiter) (*BatchResult, error) {
	logger := log.FromContext(ctx)

	wait := func() error {
		if limiter == nil {
			return nil
		}
		return limiter.Wait(ctx)
	}

	for _, rec := range records {
		if err := wait(); err != nil {
			return nil, err
		}
		// failures are recorded on the record
		_ = p.submit(ctx, act, rec)
	}

	for {
		outstanding := 0
		for _, rec := range records {
			if rec.Status.Terminal() {
				continue
			}
			if err := wait(); err != nil {
				return nil, err
			}
			p.refresh(ctx, act, rec)
			if !rec.Status.Terminal() {
				outstanding++
			}
		}
		if p.Render != nil {
			p.Render(records)
		}
		if outstanding == 0 {
			break
		}
		logger.Info("Waiting for activations", "pending", outstanding, "total", len(records))
		if err := p.Sleeper.Sleep(ctx, p.interval()); err != nil {
			return nil, err
		}
	}

	return partition(records), nil
}

func partition(records []*ActivationRecord) *BatchResult {
	res := &BatchResult{
		Records:   records,
		Succeeded: sets.New[string](),
		Failed:    sets.New[string](),
		AllActive: len(records) > 0,
	}
	for _, rec := range records {
		hostnames := rec.Hostnames
		if len(hostnames) == 0 {
			hostnames = []string{rec.ResourceName}
		}
		if rec.Status == StateActive {
			res.Succeeded.Insert(hostnames...)
			continue
		}
		res.Failed.Insert(hostnames...)
		res.AllActive = false
	}
	return res
}

// PromoteToProduction returns production records for the staging records
// that reached ACTIVE.
func PromoteToProduction(staging []*ActivationRecord) []*ActivationRecord {
	var out []*ActivationRecord
	for _, rec := range staging {
		if rec.Network != akamai.NetworkStaging || rec.Status != StateActive {
			continue
		}
		out = append(out, &ActivationRecord{
			ResourceID:   rec.ResourceID,
			ResourceName: rec.ResourceName,
			Version:      rec.Version,
			Network:      akamai.NetworkProduction,
			Hostnames:    rec.Hostnames,
			Status:       StateNotSubmitted,
		})
	}
	return out
}

// submissionDetail is the operator facing reason of a failed submission.
func submissionDetail(err error) string {
	var conflict *activationConflictError
	if errors.As(err, &conflict) {
		return conflict.Detail
	}
	if detail := akamai.ErrorDetail(err); detail != "" {
		return detail
	}
	return err.Error()
}
