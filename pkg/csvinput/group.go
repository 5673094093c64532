package csvinput

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"
)

// PropertyGroup is the set of rows that end up in one property. The slices
// are index-aligned: entry i of each slice belongs to Hostnames[i].
type PropertyGroup struct {
	PropertyName       string
	Hostnames          []string
	Origins            []string
	ForwardHostHeaders []string
	EdgeHostnames      []string
}

// GroupOptions controls how missing edge hostnames are filled in
type GroupOptions struct {
	// SecureByDefault allows rows without an edge hostname; one is derived
	// from the public hostname.
	SecureByDefault bool

	// EdgeHostnameSuffix is appended to the hostname for derived edge
	// hostnames, e.g. ".edgekey.net".
	EdgeHostnameSuffix string
}

// GroupByProperty groups delivery rows by property name, keeping the order in
// which properties first appear. Rows without a property name use their
// hostname as property name; rows without a forward host header forward the
// request host header.
func GroupByProperty(rows []DeliveryRow, opts GroupOptions) ([]PropertyGroup, error) {
	var groups []PropertyGroup
	index := map[string]int{}
	seen := sets.New[string]()

	for _, row := range rows {
		if seen.Has(row.Hostname) {
			return nil, &RowError{Line: row.Line, Err: fmt.Errorf("duplicate hostname %s", row.Hostname)}
		}
		seen.Insert(row.Hostname)

		name := row.PropertyName
		if name == "" {
			name = row.Hostname
		}

		forward := row.ForwardHostHeader
		if forward == "" {
			forward = ForwardRequestHostHeader
		}

		edgeHostname := row.EdgeHostname
		if edgeHostname == "" {
			if !opts.SecureByDefault {
				return nil, &RowError{Line: row.Line, Err: fmt.Errorf("no edgeHostname provided for %s", row.Hostname)}
			}
			edgeHostname = row.Hostname + opts.EdgeHostnameSuffix
		}

		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, PropertyGroup{PropertyName: name})
		}
		g := &groups[i]
		g.Hostnames = append(g.Hostnames, row.Hostname)
		g.Origins = append(g.Origins, row.Origin)
		g.ForwardHostHeaders = append(g.ForwardHostHeaders, forward)
		g.EdgeHostnames = append(g.EdgeHostnames, edgeHostname)
	}
	return groups, nil
}

// Hostnames returns every hostname of the input in row order.
func Hostnames(rows []DeliveryRow) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Hostname)
	}
	return out
}
