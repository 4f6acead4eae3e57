package api

import (
	"encoding/json"
	"net/http"

	"github.com/mhaustein/ipamd/internal/log"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/report"
	"github.com/mhaustein/ipamd/internal/storage"
)

// Handler handles HTTP requests
type Handler struct {
	store    storage.Store
	registry *registry.Registry
	reporter *report.Reporter
}

// NewHandler creates a new API handler
func NewHandler(store storage.Store, reg *registry.Registry, reporter *report.Reporter) *Handler {
	return &Handler{store: store, registry: reg, reporter: reporter}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Domain CRUD
	mux.HandleFunc("GET /api/domains", h.listDomains)
	mux.HandleFunc("POST /api/domains", h.createDomain)
	mux.HandleFunc("GET /api/domains/{id}", h.getDomain)
	mux.HandleFunc("DELETE /api/domains/{id}", h.deleteDomain)
	mux.HandleFunc("GET /api/domains/{id}/value-streams", h.listDomainValueStreams)

	// Value stream CRUD
	mux.HandleFunc("GET /api/value-streams", h.listValueStreams)
	mux.HandleFunc("POST /api/value-streams", h.createValueStream)
	mux.HandleFunc("GET /api/value-streams/{id}", h.getValueStream)
	mux.HandleFunc("DELETE /api/value-streams/{id}", h.deleteValueStream)
	mux.HandleFunc("GET /api/value-streams/{id}/zones", h.listValueStreamZones)

	// Zones
	mux.HandleFunc("GET /api/zones", h.listZones)
	mux.HandleFunc("POST /api/zones", h.createZone)
	mux.HandleFunc("GET /api/zones/{id}", h.getZone)
	mux.HandleFunc("POST /api/zones/{id}/firewall-check", h.recordFirewallCheck)
	mux.HandleFunc("GET /api/zones/{id}/vlans", h.listZoneVLANs)

	// VLANs
	mux.HandleFunc("GET /api/vlans", h.listVLANs)
	mux.HandleFunc("POST /api/vlans", h.createVLAN)
	mux.HandleFunc("POST /api/vlans/preview", h.previewVLAN)
	mux.HandleFunc("GET /api/vlans/{id}", h.getVLAN)
	mux.HandleFunc("GET /api/vlans/{id}/utilization", h.getVLANUtilization)
	mux.HandleFunc("GET /api/vlans/{id}/next-ip", h.getNextIP)
	mux.HandleFunc("GET /api/vlans/{id}/assignments", h.listVLANAssignments)

	// Assignments
	mux.HandleFunc("POST /api/assignments", h.createAssignment)
	mux.HandleFunc("GET /api/assignments/{id}", h.getAssignment)
	mux.HandleFunc("POST /api/assignments/{id}/release", h.releaseAssignment)

	// Reports
	mux.HandleFunc("GET /api/reports/hierarchy", h.hierarchyReport)
	mux.HandleFunc("GET /api/reports/compliance", h.complianceReport)
	mux.HandleFunc("GET /api/reports/utilization", h.utilizationReport)
	mux.HandleFunc("GET /api/reports/utilization/history", h.utilizationHistory)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	h.writeError(w, http.StatusInternalServerError, "Internal Server Error")
}
