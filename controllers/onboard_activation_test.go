package controllers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/client-go/util/flowcontrol"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
)

// scriptActivator answers status reads from a per-resource script; the last
// status repeats.
type scriptActivator struct {
	submitErr map[string]error
	scripts   map[string][]string
	statusErr map[string]error

	submitted []string
	reads     map[string]int
}

func newScriptActivator() *scriptActivator {
	return &scriptActivator{
		submitErr: map[string]error{},
		scripts:   map[string][]string{},
		statusErr: map[string]error{},
		reads:     map[string]int{},
	}
}

func (a *scriptActivator) Submit(_ context.Context, rec *ActivationRecord) (string, error) {
	if err := a.submitErr[rec.ResourceName]; err != nil {
		return "", err
	}
	a.submitted = append(a.submitted, rec.ResourceName+"/"+string(rec.Network))
	return "atv_" + rec.ResourceName, nil
}

func (a *scriptActivator) Status(_ context.Context, rec *ActivationRecord) (string, error) {
	if err := a.statusErr[rec.ResourceName]; err != nil {
		return "", err
	}
	script, ok := a.scripts[rec.ResourceName]
	if !ok {
		script = []string{"ACTIVE"}
	}
	n := a.reads[rec.ResourceName]
	a.reads[rec.ResourceName] = n + 1
	return script[min(n, len(script)-1)], nil
}

func newTestPoller(classify Classifier) (*Poller, *recordingSleeper) {
	sleeper := &recordingSleeper{}
	return &Poller{
		Interval: 45 * time.Second,
		Sleeper:  sleeper,
		Classify: classify,
		Clock:    testingclock.NewFakePassiveClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}, sleeper
}

func record(name string) *ActivationRecord {
	return &ActivationRecord{
		ResourceID:   "prp_" + name,
		ResourceName: name,
		Version:      1,
		Network:      akamai.NetworkStaging,
		Hostnames:    []string{name + ".example.com"},
		Status:       StateNotSubmitted,
	}
}

func TestClassifyPropertyStatus(t *testing.T) {
	tests := map[string]Classification{
		"ACTIVE":               Active,
		"PENDING":              Pending,
		"ZONE_1":               Pending,
		"NEW":                  Pending,
		"PENDING_DEACTIVATION": Pending,
		"FAILED":               Failed,
		"ABORTED":              Failed,
		"DEACTIVATED":          Failed,
	}
	for status, want := range tests {
		assert.Equal(t, want, ClassifyPropertyStatus(status), status)
	}
}

func TestClassifySecurityStatus(t *testing.T) {
	tests := map[string]Classification{
		"ACTIVATED":               Active,
		"RECEIVED":                Pending,
		"PENDING_ACTIVATION":      Pending,
		"ACTIVATION_ERROR":        Failed,
		"ACTIVATION_ERROR_SERVER": Failed,
		"FAILED":                  Failed,
	}
	for status, want := range tests {
		assert.Equal(t, want, ClassifySecurityStatus(status), status)
	}
}

func TestActivateAndWaitPollsUntilActive(t *testing.T) {
	act := newScriptActivator()
	act.scripts["a"] = []string{"PENDING", "ZONE_1", "ACTIVE"}
	p, sleeper := newTestPoller(ClassifyPropertyStatus)
	rec := record("a")

	require.NoError(t, ActivateAndWait(context.Background(), act, rec, p))

	assert.Equal(t, StateActive, rec.Status)
	assert.Equal(t, "atv_a", rec.ActivationID)
	assert.Equal(t, []time.Duration{45 * time.Second, 45 * time.Second}, sleeper.sleeps)
	assert.False(t, rec.SubmittedAt.IsZero())
	assert.False(t, rec.ActiveAt.IsZero())
}

func TestActivateAndWaitFailures(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(a *scriptActivator)
		wantState  ActivationState
		wantDetail string
		wantID     string
	}{
		{
			name: "remote failure",
			setup: func(a *scriptActivator) {
				a.scripts["a"] = []string{"PENDING", "FAILED"}
			},
			wantState:  StateActivationError,
			wantDetail: "FAILED",
			wantID:     "atv_a",
		},
		{
			name: "rejected submission",
			setup: func(a *scriptActivator) {
				a.submitErr["a"] = &akamai.APIError{StatusCode: 422, Detail: "property version has errors"}
			},
			wantState:  StateActivationError,
			wantDetail: "property version has errors",
		},
		{
			name: "status read error",
			setup: func(a *scriptActivator) {
				a.statusErr["a"] = errors.New("connection reset")
			},
			wantState:  StateUnableToUpdateStatus,
			wantDetail: "connection reset",
			wantID:     "atv_a",
		},
		{
			name: "empty status",
			setup: func(a *scriptActivator) {
				a.scripts["a"] = []string{""}
			},
			wantState:  StateUnableToUpdateStatus,
			wantDetail: "empty activation status",
			wantID:     "atv_a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := newScriptActivator()
			tt.setup(act)
			p, _ := newTestPoller(ClassifyPropertyStatus)
			rec := record("a")

			err := ActivateAndWait(context.Background(), act, rec, p)

			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrActivationFailed))
			assert.Equal(t, tt.wantState, rec.Status)
			assert.Equal(t, tt.wantDetail, rec.Detail)
			assert.Equal(t, tt.wantID, rec.ActivationID)
		})
	}
}

func TestActivateAndWaitStopsOnCancel(t *testing.T) {
	act := newScriptActivator()
	act.scripts["a"] = []string{"PENDING"}
	p, _ := newTestPoller(ClassifyPropertyStatus)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ActivateAndWait(ctx, act, record("a"), p)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestActivateBatchPartitionsOutcomes(t *testing.T) {
	act := newScriptActivator()
	act.scripts["a"] = []string{"PENDING", "ACTIVE"}
	act.scripts["b"] = []string{"PENDING", "PENDING", "ABORTED"}
	act.submitErr["c"] = errors.New("rejected")
	act.scripts["d"] = []string{"PENDING", "PENDING", "PENDING", "ACTIVE"}

	p, sleeper := newTestPoller(ClassifyPropertyStatus)
	renders := 0
	p.Render = func(records []*ActivationRecord) {
		renders++
		assert.Len(t, records, 4)
	}
	records := []*ActivationRecord{record("a"), record("b"), record("c"), record("d")}

	res, err := ActivateBatch(context.Background(), act, records, p, flowcontrol.NewFakeAlwaysRateLimiter())
	require.NoError(t, err)

	assert.Equal(t, sets.New("a.example.com", "d.example.com"), res.Succeeded)
	assert.Equal(t, sets.New("b.example.com", "c.example.com"), res.Failed)
	assert.False(t, res.AllActive)
	assert.Equal(t, StateActivationError, records[1].Status)
	assert.Equal(t, StateActivationError, records[2].Status)
	assert.Empty(t, records[2].ActivationID)

	// every record is submitted before the first status read
	assert.Equal(t, []string{"a/STAGING", "b/STAGING", "d/STAGING"}, act.submitted)
	assert.Equal(t, 0, act.reads["c"])
	assert.Equal(t, 3, act.reads["b"])
	assert.Equal(t, 4, act.reads["d"])
	assert.Len(t, sleeper.sleeps, 3)
	assert.Equal(t, 4, renders)

	production := PromoteToProduction(records)
	require.Len(t, production, 2)
	for _, rec := range production {
		assert.Equal(t, akamai.NetworkProduction, rec.Network)
		assert.Equal(t, StateNotSubmitted, rec.Status)
		assert.Empty(t, rec.ActivationID)
	}
	assert.Equal(t, "a", production[0].ResourceName)
	assert.Equal(t, "d", production[1].ResourceName)
}

func TestActivateBatchAllActive(t *testing.T) {
	act := newScriptActivator()
	p, sleeper := newTestPoller(ClassifySecurityStatus)
	act.scripts["waf"] = []string{"ACTIVATED"}

	res, err := ActivateBatch(context.Background(), act, []*ActivationRecord{record("waf")}, p, nil)
	require.NoError(t, err)

	assert.True(t, res.AllActive)
	assert.Empty(t, sleeper.sleeps)
}

func TestPollerDefaultInterval(t *testing.T) {
	p := &Poller{}
	assert.Equal(t, DefaultPollInterval, p.interval())
}
