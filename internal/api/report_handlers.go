package api

import (
	"net/http"
	"time"
)

// hierarchyReport handles GET /api/reports/hierarchy
func (h *Handler) hierarchyReport(w http.ResponseWriter, r *http.Request) {
	tree, err := h.reporter.Hierarchy()
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, tree)
}

// complianceReport handles GET /api/reports/compliance
func (h *Handler) complianceReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reporter.Compliance(time.Now().UTC())
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rep)
}

// utilizationReport handles GET /api/reports/utilization
func (h *Handler) utilizationReport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reporter.Utilization()
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// utilizationHistory handles GET /api/reports/utilization/history. It
// returns the latest scheduler-written snapshot per VLAN.
func (h *Handler) utilizationHistory(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.store.LatestUtilizationSnapshots()
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, snaps)
}
