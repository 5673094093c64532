package controllers

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
	"github.com/mmz-srf/akamai-onboard/pkg/csvinput"
)

// certProvisioningDefault asks the platform to provision the certificate of
// a secure-by-default hostname.
const certProvisioningDefault = "DEFAULT"

// EdgeHostnameResolution is the edge hostname a property's hostnames are
// bound to.
type EdgeHostnameResolution struct {
	// ID is the edge hostname id, or SecureByDefaultEdgeHostnameID when the
	// platform creates one edge hostname per hostname on activation
	ID   int
	Name string

	// PerHostname lists the edge hostname of each public hostname in
	// secure-by-default mode, index-aligned with the property hostnames
	PerHostname []string
}

// DomainPrefix returns the record name of a new edge hostname: the first
// hostname, or the property name for multi-hosts runs unless every hostname
// gets its own CP code on a standard TLS edge hostname.
func DomainPrefix(req *OnboardRequest, target csvinput.PropertyGroup) string {
	if req.MultiHost {
		_, standard := req.EdgeHostname.(*NewStandardTLS)
		if !(standard && req.CPCode.PerHostname) {
			return target.PropertyName
		}
	}
	if len(target.Hostnames) == 0 {
		return target.PropertyName
	}
	return target.Hostnames[0]
}

// ResolveEdgeHostname turns the request's edge hostname mode into an edge
// hostname id, creating the edge hostname where the mode asks for it.
func ResolveEdgeHostname(ctx context.Context, remote PropertyAPI, req *OnboardRequest, target csvinput.PropertyGroup) (*EdgeHostnameResolution, error) {
	logger := log.FromContext(ctx)

	switch mode := req.EdgeHostname.(type) {
	case *UseExisting:
		if req.Mode == ModeBatch {
			// every row names its own edge hostname
			return &EdgeHostnameResolution{PerHostname: append([]string(nil), target.EdgeHostnames...)}, nil
		}
		id := mode.ID
		if id == 0 {
			id = req.EdgeHostnameIDs[mode.Name]
		}
		if id <= 0 {
			return nil, fmt.Errorf("%w: edge hostname %q was not resolved", ErrEdgeHostname, mode.Name)
		}
		logger.Info("Using existing edge hostname", "edgeHostname", mode.Name, "edgeHostnameID", id)
		return &EdgeHostnameResolution{ID: id, Name: mode.Name}, nil

	case *NewStandardTLS:
		return createEdgeHostname(ctx, remote, req, akamai.EdgeHostnameSpec{
			ContractID:    req.ContractID,
			GroupID:       req.GroupID,
			ProductID:     req.ProductID,
			DomainPrefix:  DomainPrefix(req, target),
			SecureNetwork: akamai.StandardTLS,
		})

	case *NewEnhancedTLS:
		return createEdgeHostname(ctx, remote, req, akamai.EdgeHostnameSpec{
			ContractID:       req.ContractID,
			GroupID:          req.GroupID,
			ProductID:        req.ProductID,
			DomainPrefix:     DomainPrefix(req, target),
			SecureNetwork:    akamai.EnhancedTLS,
			CertEnrollmentID: mode.EnrollmentID,
			SlotNumber:       mode.SlotNumber,
		})

	case *SecureByDefault:
		if mode.ExistingName != "" {
			id := mode.ExistingID
			if id == 0 {
				id = req.EdgeHostnameIDs[mode.ExistingName]
			}
			if id <= 0 {
				return nil, fmt.Errorf("%w: edge hostname %q was not resolved", ErrEdgeHostname, mode.ExistingName)
			}
			return &EdgeHostnameResolution{ID: id, Name: mode.ExistingName}, nil
		}
		res := &EdgeHostnameResolution{ID: SecureByDefaultEdgeHostnameID}
		if len(target.EdgeHostnames) == len(target.Hostnames) {
			res.PerHostname = append([]string(nil), target.EdgeHostnames...)
		} else {
			for _, hostname := range target.Hostnames {
				res.PerHostname = append(res.PerHostname, hostname+req.EdgeHostnameSuffix())
			}
		}
		logger.Info("Edge hostnames will be created upon property activation", "edgeHostnames", res.PerHostname)
		return res, nil

	case nil:
		return nil, fmt.Errorf("%w: unknown edge hostname mode %q", ErrEdgeHostname, req.RequestedMode)
	}
	return nil, fmt.Errorf("%w: unsupported edge hostname mode %T", ErrEdgeHostname, req.EdgeHostname)
}

func createEdgeHostname(ctx context.Context, remote PropertyAPI, req *OnboardRequest, spec akamai.EdgeHostnameSpec) (*EdgeHostnameResolution, error) {
	name := spec.DomainPrefix + "." + akamai.EdgeHostnameZone(spec.SecureNetwork)
	id, err := remote.CreateEdgeHostname(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEdgeHostname, err)
	}
	log.FromContext(ctx).Info("Created edge hostname", "edgeHostname", name, "edgeHostnameID", id)
	req.EdgeHostnameIDs[name] = id
	return &EdgeHostnameResolution{ID: id, Name: name}, nil
}

// HostnameBindings maps every hostname of the target to its edge hostname.
// Secure-by-default hostnames use the mapping form with certificate
// provisioning; all others reference an edge hostname id.
func HostnameBindings(req *OnboardRequest, target csvinput.PropertyGroup, res *EdgeHostnameResolution) ([]akamai.HostnameBinding, error) {
	_, sbd := req.EdgeHostname.(*SecureByDefault)
	perRow := req.Mode == ModeBatch

	bindings := make([]akamai.HostnameBinding, 0, len(target.Hostnames))
	for i, hostname := range target.Hostnames {
		b := akamai.HostnameBinding{CnameFrom: hostname, EdgeHostnameID: res.ID}
		if sbd {
			b.CertProvisioningType = certProvisioningDefault
		}

		var edgeHostname string
		switch {
		case perRow && i < len(target.EdgeHostnames):
			edgeHostname = target.EdgeHostnames[i]
		case res.ID == SecureByDefaultEdgeHostnameID && i < len(res.PerHostname):
			edgeHostname = res.PerHostname[i]
		}

		if edgeHostname != "" {
			b.EdgeHostnameID = 0
			if id, ok := req.EdgeHostnameIDs[edgeHostname]; ok {
				b.EdgeHostnameID = id
			} else if sbd {
				b.CnameTo = edgeHostname
			} else {
				return nil, fmt.Errorf("%w: edge hostname %s of %s was not resolved", ErrEdgeHostname, edgeHostname, hostname)
			}
		}
		if b.EdgeHostnameID <= 0 && b.CnameTo == "" {
			return nil, fmt.Errorf("%w: no edge hostname for %s", ErrEdgeHostname, hostname)
		}
		bindings = append(bindings, b)
	}
	return bindings, nil
}
