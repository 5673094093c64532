package controllers

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/csvinput"
)

// Targets returns the properties the request creates. Batch requests carry
// one group per property name; every other request creates one property.
func (r *OnboardRequest) Targets() []csvinput.PropertyGroup {
	if r.Mode == ModeBatch {
		return r.Groups
	}

	target := csvinput.PropertyGroup{PropertyName: r.PropertyName}
	if len(r.Rows) == 0 {
		target.Hostnames = append([]string(nil), r.Hostnames...)
		return []csvinput.PropertyGroup{target}
	}
	for _, row := range r.Rows {
		forward := row.ForwardHostHeader
		if forward == "" {
			forward = csvinput.ForwardRequestHostHeader
		}
		target.Hostnames = append(target.Hostnames, row.Hostname)
		target.Origins = append(target.Origins, row.Origin)
		target.ForwardHostHeaders = append(target.ForwardHostHeaders, forward)
	}
	return []csvinput.PropertyGroup{target}
}

// provisionProperty creates the CP code(s) and the property, resolves the
// edge hostname and binds the hostnames. Any failure aborts the run; nothing
// created so far is rolled back.
func (r *OnboardReconciler) provisionProperty(ctx context.Context, req *OnboardRequest, plan ExecutionPlan, target csvinput.PropertyGroup) (*ProvisionedProperty, error) {
	logger := log.FromContext(ctx).WithValues("propertyName", target.PropertyName)

	cpCodeIDs, err := r.createCPCodes(ctx, req, plan, target)
	if err != nil {
		return nil, err
	}

	propertyID, err := r.Remote.CreateProperty(ctx, akamai.PropertySpec{
		PropertyName: target.PropertyName,
		ContractID:   req.ContractID,
		GroupID:      req.GroupID,
		ProductID:    req.ProductID,
		RuleFormat:   req.RuleFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create property %s: %w", target.PropertyName, err)
	}
	logger.Info("Created property", "propertyID", propertyID)

	prop := &ProvisionedProperty{
		Name:               target.PropertyName,
		PropertyID:         propertyID,
		Version:            1,
		Hostnames:          target.Hostnames,
		CPCodeIDs:          cpCodeIDs,
		Origins:            target.Origins,
		ForwardHostHeaders: target.ForwardHostHeaders,
		EdgeHostnames:      target.EdgeHostnames,
	}

	res, err := ResolveEdgeHostname(ctx, r.Remote, req, target)
	if err != nil {
		return nil, fmt.Errorf("unable to proceed beyond edge hostname logic for %s: %w", target.PropertyName, err)
	}
	prop.EdgeHostnameID = res.ID
	if len(res.PerHostname) > 0 {
		prop.EdgeHostnames = res.PerHostname
	}

	if err := r.bindHostnames(ctx, req, prop, target, res); err != nil {
		return nil, err
	}
	return prop, nil
}

// createCPCodes returns either one CP code for the whole property or one per
// hostname, index-aligned with target.Hostnames.
func (r *OnboardReconciler) createCPCodes(ctx context.Context, req *OnboardRequest, plan ExecutionPlan, target csvinput.PropertyGroup) ([]int, error) {
	logger := log.FromContext(ctx)

	if !plan.CreateNewCPCode {
		logger.Info("Using existing cpcode", "cpCodeID", req.CPCode.ExistingID)
		return []int{req.CPCode.ExistingID}, nil
	}

	names := []string{req.CPCode.Name}
	if req.CPCode.PerHostname {
		names = target.Hostnames
	} else if names[0] == "" {
		names[0] = target.PropertyName
	}

	ids := make([]int, 0, len(names))
	for _, name := range names {
		id, err := r.Remote.CreateCPCode(ctx, akamai.CPCodeSpec{
			Name:       name,
			ContractID: req.ContractID,
			GroupID:    req.GroupID,
			ProductID:  req.ProductID,
		})
		if err != nil {
			return nil, fmt.Errorf("unable to create new cpcode %s: %w", name, err)
		}
		logger.Info("Created new cpcode", "cpCodeName", name, "cpCodeID", id)
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *OnboardReconciler) bindHostnames(ctx context.Context, req *OnboardRequest, prop *ProvisionedProperty, target csvinput.PropertyGroup, res *EdgeHostnameResolution) error {
	logger := log.FromContext(ctx)

	bindings, err := HostnameBindings(req, target, res)
	if err != nil {
		return err
	}
	updated, err := r.Remote.UpdatePropertyHostnames(ctx, prop.Ref(req.ContractID, req.GroupID), bindings)
	if err != nil {
		return fmt.Errorf("unable to update public hostnames %v of %s: %w", prop.Hostnames, prop.Name, err)
	}

	if _, sbd := req.EdgeHostname.(*SecureByDefault); sbd {
		logger.Info("Secure by default hostnames need these domain validation records")
		for _, h := range updated {
			if h.ValidationCname.Hostname == "" {
				continue
			}
			logger.Info("Domain validation CNAME", "hostname", h.CnameFrom,
				"cname", h.ValidationCname.Hostname, "target", h.ValidationCname.Target)
		}
		return nil
	}
	logger.Info("Updated public hostnames", "propertyName", prop.Name, "hostnames", prop.Hostnames, "edgeHostnameID", prop.EdgeHostnameID)
	return nil
}

// cpCodeFor returns the CP code of the i-th hostname.
func (p *ProvisionedProperty) cpCodeFor(i int) int {
	if len(p.CPCodeIDs) == 0 {
		return 0
	}
	if i < len(p.CPCodeIDs) && len(p.CPCodeIDs) == len(p.Hostnames) {
		return p.CPCodeIDs[i]
	}
	return p.CPCodeIDs[0]
}
