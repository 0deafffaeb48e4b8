// Package report assembles the point-in-time report of a workflow run.
package report

import (
	"github.com/rendis/flowrun/internal/iocenter"
	"github.com/rendis/flowrun/internal/snapshot"
	"github.com/rendis/flowrun/internal/status"
	"github.com/rendis/flowrun/pkg/schema"
)

// NodeReport is the status and snapshot history of one node.
type NodeReport struct {
	ID string `json:"id"`
	status.Data
	Snapshots []snapshot.Export `json:"snapshots"`
}

// Report is the full export of a run.
type Report struct {
	ID             string                 `json:"id"`
	Inputs         map[string]any         `json:"inputs"`
	Outputs        map[string]any         `json:"outputs"`
	WorkflowStatus status.Data            `json:"workflowStatus"`
	Reports        map[string]*NodeReport `json:"reports"`
}

// Reporter joins the status, snapshot and IO centers of a run.
type Reporter struct {
	id        string
	statuses  *status.Center
	snapshots *snapshot.Center
	io        *iocenter.IOCenter
}

// New returns a Reporter tagging its reports with id.
func New(id string, statuses *status.Center, snapshots *snapshot.Center, io *iocenter.IOCenter) *Reporter {
	return &Reporter{id: id, statuses: statuses, snapshots: snapshots, io: io}
}

// Export builds a fresh report on every call.
func (r *Reporter) Export() *Report {
	io := r.io.Export()
	grouped := r.snapshots.Export()
	nodeStatuses := r.statuses.ExportNodes()

	reports := make(map[string]*NodeReport, len(nodeStatuses))
	for id, st := range nodeStatuses {
		reports[id] = &NodeReport{ID: id, Data: st, Snapshots: grouped[id]}
	}
	// nodes with snapshots but no status entry are still reported
	for id, snaps := range grouped {
		if _, ok := reports[id]; ok {
			continue
		}
		reports[id] = &NodeReport{ID: id, Data: status.Data{Status: schema.StatusIdle}, Snapshots: snaps}
	}
	for _, nr := range reports {
		if nr.Snapshots == nil {
			nr.Snapshots = []snapshot.Export{}
		}
	}

	return &Report{
		ID:             r.id,
		Inputs:         io.Inputs,
		Outputs:        io.Outputs,
		WorkflowStatus: r.statuses.Workflow().Export(),
		Reports:        reports,
	}
}
