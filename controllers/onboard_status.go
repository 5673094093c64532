package controllers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/log"

	akamaiV1alpha1 "github.com/mmz-srf/akamai-onboard/api/v1alpha1"
	"github.com/mmz-srf/akamai-onboard/pkg/akamai"
)

// RenderActivations writes the activation records as a status table.
func RenderActivations(w io.Writer, records []*ActivationRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tNETWORK\tVERSION\tACTIVATION ID\tSTATUS\tDETAIL")
	for _, rec := range records {
		id := rec.ActivationID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			rec.ResourceName, rec.Network, rec.Version, id, rec.Status, strings.ReplaceAll(rec.Detail, "\n", " "))
	}
	_ = tw.Flush()
}

func (r *OnboardReconciler) renderActivations(records []*ActivationRecord) {
	if r.Out == nil {
		return
	}
	RenderActivations(r.Out, records)
	fmt.Fprintln(r.Out)
}

func (r *OnboardReconciler) now() metav1.Time {
	if r.Clock == nil {
		return metav1.NewTime(time.Now())
	}
	return metav1.NewTime(r.Clock.Now())
}

// updateStatus moves the run to a phase and records the Ready condition.
func (r *OnboardReconciler) updateStatus(ctx context.Context, phase, reason, message string) {
	logger := log.FromContext(ctx)

	now := r.now()
	if r.Status.StartTime == nil {
		r.Status.StartTime = &now
	}
	if r.Status.Phase != phase {
		r.Status.LastUpdated = &now
	}
	r.Status.Phase = phase

	condition := metav1.Condition{
		Type:    ConditionTypeReady,
		Status:  metav1.ConditionFalse,
		Reason:  reason,
		Message: message,
	}
	if phase == akamaiV1alpha1.PhaseCompleted {
		condition.Status = metav1.ConditionTrue
	}
	if changed := meta.SetStatusCondition(&r.Status.Conditions, condition); !changed {
		logger.V(1).Info("Status unchanged", "phase", phase, "reason", reason)
		return
	}
	logger.V(1).Info("Updated status", "phase", phase, "reason", reason)
}

// setCondition records the outcome of one pipeline stage.
func (r *OnboardReconciler) setCondition(conditionType string, ok bool, reason, message string) {
	status := metav1.ConditionFalse
	if ok {
		status = metav1.ConditionTrue
	}
	meta.SetStatusCondition(&r.Status.Conditions, metav1.Condition{
		Type:    conditionType,
		Status:  status,
		Reason:  reason,
		Message: message,
	})
}

// recordProperty adds or refreshes a provisioned property in the run status.
func (r *OnboardReconciler) recordProperty(prop *ProvisionedProperty) *akamaiV1alpha1.PropertyStatus {
	for i := range r.Status.Properties {
		if r.Status.Properties[i].PropertyName == prop.Name {
			p := &r.Status.Properties[i]
			p.PropertyID = prop.PropertyID
			p.Version = prop.Version
			p.CPCodeIDs = prop.CPCodeIDs
			p.EdgeHostnameID = prop.EdgeHostnameID
			return p
		}
	}
	r.Status.Properties = append(r.Status.Properties, akamaiV1alpha1.PropertyStatus{
		PropertyName:   prop.Name,
		PropertyID:     prop.PropertyID,
		Version:        prop.Version,
		Hostnames:      prop.Hostnames,
		CPCodeIDs:      prop.CPCodeIDs,
		EdgeHostnameID: prop.EdgeHostnameID,
	})
	return &r.Status.Properties[len(r.Status.Properties)-1]
}

// recordActivations copies property activation outcomes into the run status.
func (r *OnboardReconciler) recordActivations(records []*ActivationRecord) {
	for _, rec := range records {
		for i := range r.Status.Properties {
			p := &r.Status.Properties[i]
			if p.PropertyID != rec.ResourceID {
				continue
			}
			switch rec.Network {
			case akamai.NetworkStaging:
				p.StagingStatus = string(rec.Status)
			case akamai.NetworkProduction:
				p.ProductionStatus = string(rec.Status)
			}
		}
	}
}

// PrintSummary writes the provisioned properties of the run.
func (r *OnboardReconciler) PrintSummary() {
	if r.Out == nil {
		return
	}
	tw := tabwriter.NewWriter(r.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROPERTY\tID\tVERSION\tHOSTNAMES\tCPCODES\tSTAGING\tPRODUCTION")
	for _, p := range r.Status.Properties {
		cpcodes := make([]string, 0, len(p.CPCodeIDs))
		for _, id := range p.CPCodeIDs {
			cpcodes = append(cpcodes, fmt.Sprint(id))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n", p.PropertyName, p.PropertyID, p.Version,
			strings.Join(p.Hostnames, ","), strings.Join(cpcodes, ","), orDash(p.StagingStatus), orDash(p.ProductionStatus))
	}
	_ = tw.Flush()
	if r.Status.SecurityConfigID > 0 {
		fmt.Fprintf(r.Out, "\nsecurity configuration %d version %d\n", r.Status.SecurityConfigID, r.Status.SecurityConfigVersion)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
