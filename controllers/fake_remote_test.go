package controllers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
)

// fakeRemote is an in-memory RemoteClient. Property activations report the
// statuses of propertyStatuses (keyed by property name, default PENDING then
// ACTIVE); the last status repeats.
type fakeRemote struct {
	existingProperties sets.Set[string]
	products           []string
	edgeHostnames      map[string]int
	nextCPCodeID       int
	nextEdgeHostnameID int

	propertyStatuses map[string][]string
	failActivation   map[string]error

	createdCPCodes       []akamai.CPCodeSpec
	createdProperties    []akamai.PropertySpec
	createdEdgeHostnames []akamai.EdgeHostnameSpec
	hostnameUpdates      map[string][]akamai.HostnameBinding
	ruleUpdates          map[string]*akamaiV1alpha1.RuleTree
	activations          []fakeActivation
	statusReads          int

	securityConfigs  map[string]*akamai.SecurityConfiguration
	selectable       []string
	policies         []akamai.SecurityPolicy
	matchTargets     map[int]*akamai.MatchTarget
	selectedHosts    []string
	wafStatuses      []string
	wafActivateErr   error
	createdWAFConfig *akamai.SecurityConfigSpec
	createdVersions  []int
	wafActivations   []akamai.WAFActivationSpec
	wafStatusReads   int
}

type fakeActivation struct {
	id           string
	propertyName string
	ref          akamai.PropertyRef
	spec         akamai.ActivationSpec
	reads        int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		existingProperties: sets.New[string](),
		products:           []string{"prd_X", "prd_Fresca"},
		edgeHostnames:      map[string]int{},
		nextCPCodeID:       456,
		nextEdgeHostnameID: 900,
		propertyStatuses:   map[string][]string{},
		failActivation:     map[string]error{},
		hostnameUpdates:    map[string][]akamai.HostnameBinding{},
		ruleUpdates:        map[string]*akamaiV1alpha1.RuleTree{},
		securityConfigs:    map[string]*akamai.SecurityConfiguration{},
		matchTargets:       map[int]*akamai.MatchTarget{},
		wafStatuses:        []string{"PENDING", "ACTIVATED"},
	}
}

func (f *fakeRemote) propertyName(propertyID string) string {
	i, err := strconv.Atoi(strings.TrimPrefix(propertyID, "prp_"))
	if err != nil || i < 1 || i > len(f.createdProperties) {
		return ""
	}
	return f.createdProperties[i-1].PropertyName
}

func (f *fakeRemote) activationsOn(network akamai.Network) []fakeActivation {
	var out []fakeActivation
	for _, a := range f.activations {
		if a.spec.Network == network {
			out = append(out, a)
		}
	}
	return out
}

func (f *fakeRemote) PropertyExists(_ context.Context, propertyName string) (bool, error) {
	return f.existingProperties.Has(propertyName), nil
}

func (f *fakeRemote) ListProductIDs(_ context.Context, _ string) ([]string, error) {
	return f.products, nil
}

func (f *fakeRemote) CreateCPCode(_ context.Context, spec akamai.CPCodeSpec) (int, error) {
	f.createdCPCodes = append(f.createdCPCodes, spec)
	id := f.nextCPCodeID
	f.nextCPCodeID++
	return id, nil
}

func (f *fakeRemote) CreateProperty(_ context.Context, spec akamai.PropertySpec) (string, error) {
	f.createdProperties = append(f.createdProperties, spec)
	return fmt.Sprintf("prp_%d", len(f.createdProperties)), nil
}

func (f *fakeRemote) FindEdgeHostname(_ context.Context, name string) (*akamai.EdgeHostname, error) {
	id, ok := f.edgeHostnames[name]
	if !ok {
		return nil, akamai.ErrNotFound
	}
	return &akamai.EdgeHostname{EdgeHostnameID: id}, nil
}

func (f *fakeRemote) CreateEdgeHostname(_ context.Context, spec akamai.EdgeHostnameSpec) (int, error) {
	f.createdEdgeHostnames = append(f.createdEdgeHostnames, spec)
	id := f.nextEdgeHostnameID
	f.nextEdgeHostnameID++
	return id, nil
}

func (f *fakeRemote) UpdatePropertyHostnames(_ context.Context, ref akamai.PropertyRef, bindings []akamai.HostnameBinding) ([]akamai.PropertyHostname, error) {
	f.hostnameUpdates[ref.PropertyID] = bindings
	out := make([]akamai.PropertyHostname, 0, len(bindings))
	for _, b := range bindings {
		out = append(out, akamai.PropertyHostname{CnameFrom: b.CnameFrom, CnameTo: b.CnameTo, EdgeHostnameID: strconv.Itoa(b.EdgeHostnameID)})
	}
	return out, nil
}

func (f *fakeRemote) UpdatePropertyRules(_ context.Context, ref akamai.PropertyRef, _ string, rules interface{}) (*akamai.RulesUpdateResult, error) {
	tree, ok := rules.(*akamaiV1alpha1.RuleTree)
	if !ok {
		return nil, fmt.Errorf("unexpected rules type %T", rules)
	}
	f.ruleUpdates[ref.PropertyID] = tree
	return &akamai.RulesUpdateResult{}, nil
}

func (f *fakeRemote) ActivateProperty(_ context.Context, ref akamai.PropertyRef, spec akamai.ActivationSpec) (string, error) {
	name := f.propertyName(ref.PropertyID)
	if err, ok := f.failActivation[name]; ok {
		return "", err
	}
	id := fmt.Sprintf("atv_%d", len(f.activations)+1)
	f.activations = append(f.activations, fakeActivation{id: id, propertyName: name, ref: ref, spec: spec})
	return id, nil
}

func (f *fakeRemote) GetActivationStatus(_ context.Context, _ akamai.PropertyRef, activationID string, _ akamai.Network) (string, error) {
	f.statusReads++
	for i := range f.activations {
		a := &f.activations[i]
		if a.id != activationID {
			continue
		}
		script, ok := f.propertyStatuses[a.propertyName]
		if !ok {
			script = []string{"PENDING", "ACTIVE"}
		}
		status := script[min(a.reads, len(script)-1)]
		a.reads++
		return status, nil
	}
	return "", akamai.ErrNotFound
}

func (f *fakeRemote) FindSecurityConfiguration(_ context.Context, name string) (*akamai.SecurityConfiguration, error) {
	cfg, ok := f.securityConfigs[name]
	if !ok {
		return nil, akamai.ErrNotFound
	}
	return cfg, nil
}

func (f *fakeRemote) GetSecurityConfiguration(_ context.Context, configID int) (*akamai.SecurityConfiguration, error) {
	for _, cfg := range f.securityConfigs {
		if cfg.ID == configID {
			return cfg, nil
		}
	}
	return nil, akamai.ErrNotFound
}

func (f *fakeRemote) GetSecurityConfigurationName(ctx context.Context, configID int) (string, error) {
	cfg, err := f.GetSecurityConfiguration(ctx, configID)
	if err != nil {
		return "", err
	}
	return cfg.Name, nil
}

func (f *fakeRemote) ListSelectableHostnames(_ context.Context, _, _ string) ([]string, error) {
	return f.selectable, nil
}

func (f *fakeRemote) CreateSecurityConfiguration(_ context.Context, spec akamai.SecurityConfigSpec) (int, int, error) {
	f.createdWAFConfig = &spec
	f.selectedHosts = append([]string(nil), spec.Hostnames...)
	return 7001, 1, nil
}

func (f *fakeRemote) CreateSecurityConfigVersion(_ context.Context, _, fromVersion int) (int, error) {
	version := fromVersion + 1
	f.createdVersions = append(f.createdVersions, version)
	return version, nil
}

func (f *fakeRemote) CreateSecurityPolicy(_ context.Context, _, _ int, policyName, policyPrefix string) (*akamai.SecurityPolicy, error) {
	policy := akamai.SecurityPolicy{PolicyID: policyPrefix + "_100", PolicyName: policyName}
	f.policies = append(f.policies, policy)
	return &policy, nil
}

func (f *fakeRemote) ListSecurityPolicies(_ context.Context, _, _ int) ([]akamai.SecurityPolicy, error) {
	return f.policies, nil
}

func (f *fakeRemote) ListMatchTargets(_ context.Context, _, _ int) ([]akamai.MatchTarget, error) {
	out := make([]akamai.MatchTarget, 0, len(f.matchTargets))
	for _, id := range sets.List(sets.KeySet(f.matchTargets)) {
		out = append(out, *f.matchTargets[id])
	}
	return out, nil
}

func (f *fakeRemote) CreateMatchTarget(_ context.Context, _, _ int, policyID string, hostnames []string) (*akamai.MatchTarget, error) {
	target := &akamai.MatchTarget{TargetID: 3000 + len(f.matchTargets), PolicyID: policyID, Hostnames: hostnames}
	f.matchTargets[target.TargetID] = target
	return target, nil
}

func (f *fakeRemote) GetMatchTarget(_ context.Context, _, _, targetID int) (*akamai.MatchTarget, error) {
	target, ok := f.matchTargets[targetID]
	if !ok {
		return nil, akamai.ErrNotFound
	}
	cp := *target
	cp.Hostnames = append([]string(nil), target.Hostnames...)
	return &cp, nil
}

func (f *fakeRemote) UpdateMatchTarget(_ context.Context, _, _ int, target *akamai.MatchTarget) error {
	f.matchTargets[target.TargetID] = target
	return nil
}

func (f *fakeRemote) GetSelectedHostnames(_ context.Context, _, _ int) ([]string, error) {
	return f.selectedHosts, nil
}

func (f *fakeRemote) UpdateSelectedHostnames(_ context.Context, _, _ int, hostnames []string) error {
	f.selectedHosts = hostnames
	return nil
}

func (f *fakeRemote) ActivateSecurityConfiguration(_ context.Context, spec akamai.WAFActivationSpec) (int, error) {
	if f.wafActivateErr != nil {
		return 0, f.wafActivateErr
	}
	f.wafActivations = append(f.wafActivations, spec)
	return 500 + len(f.wafActivations), nil
}

func (f *fakeRemote) GetSecurityActivationStatus(_ context.Context, _ int) (string, error) {
	status := f.wafStatuses[min(f.wafStatusReads, len(f.wafStatuses)-1)]
	f.wafStatusReads++
	return status, nil
}

// recordingSleeper returns immediately and records the requested delays
type recordingSleeper struct {
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}
