package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/storage"
)

// Domain handlers

// listDomains handles GET /api/domains
func (h *Handler) listDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.store.ListDomains()
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, domains)
}

// createDomain handles POST /api/domains
func (h *Handler) createDomain(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	domain, err := h.store.CreateDomain(req.Code, req.Name)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCode) {
			h.writeError(w, http.StatusBadRequest, "code must be 2-10 uppercase alphanumeric characters")
			return
		}
		if errors.Is(err, storage.ErrDuplicateCode) {
			h.writeError(w, http.StatusConflict, "domain code already in use")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, domain)
}

// getDomain handles GET /api/domains/{id}
func (h *Handler) getDomain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "domain ID required")
		return
	}

	domain, err := h.store.GetDomain(id)
	if err != nil {
		if errors.Is(err, storage.ErrDomainNotFound) {
			h.writeError(w, http.StatusNotFound, "domain not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, domain)
}

// deleteDomain handles DELETE /api/domains/{id}
func (h *Handler) deleteDomain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "domain ID required")
		return
	}

	if err := h.store.DeleteDomain(id); err != nil {
		if errors.Is(err, storage.ErrDomainNotFound) {
			h.writeError(w, http.StatusNotFound, "domain not found")
			return
		}
		if errors.Is(err, storage.ErrHasActiveChildren) {
			h.writeError(w, http.StatusConflict, "domain still has active value streams")
			return
		}
		h.internalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listDomainValueStreams handles GET /api/domains/{id}/value-streams
func (h *Handler) listDomainValueStreams(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "domain ID required")
		return
	}

	if _, err := h.store.GetDomain(id); err != nil {
		if errors.Is(err, storage.ErrDomainNotFound) {
			h.writeError(w, http.StatusNotFound, "domain not found")
			return
		}
		h.internalError(w, err)
		return
	}

	streams, err := h.store.ListValueStreams(id)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, streams)
}

// Value stream handlers

// listValueStreams handles GET /api/value-streams
func (h *Handler) listValueStreams(w http.ResponseWriter, r *http.Request) {
	domainID := r.URL.Query().Get("domain_id")

	streams, err := h.store.ListValueStreams(domainID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, streams)
}

// createValueStream handles POST /api/value-streams
func (h *Handler) createValueStream(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DomainID string `json:"domain_id"`
		Code     string `json:"code"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DomainID == "" {
		h.writeError(w, http.StatusBadRequest, "domain_id is required")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	vs, err := h.store.CreateValueStream(req.DomainID, req.Code, req.Name)
	if err != nil {
		if errors.Is(err, model.ErrInvalidCode) {
			h.writeError(w, http.StatusBadRequest, "code must be 2-10 uppercase alphanumeric characters")
			return
		}
		if errors.Is(err, storage.ErrParentNotFound) {
			h.writeError(w, http.StatusNotFound, "domain not found")
			return
		}
		if errors.Is(err, storage.ErrDuplicateCode) {
			h.writeError(w, http.StatusConflict, "value stream code already in use within domain")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, vs)
}

// getValueStream handles GET /api/value-streams/{id}
func (h *Handler) getValueStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "value stream ID required")
		return
	}

	vs, err := h.store.GetValueStream(id)
	if err != nil {
		if errors.Is(err, storage.ErrValueStreamNotFound) {
			h.writeError(w, http.StatusNotFound, "value stream not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, vs)
}

// deleteValueStream handles DELETE /api/value-streams/{id}
func (h *Handler) deleteValueStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "value stream ID required")
		return
	}

	if err := h.store.DeleteValueStream(id); err != nil {
		if errors.Is(err, storage.ErrValueStreamNotFound) {
			h.writeError(w, http.StatusNotFound, "value stream not found")
			return
		}
		if errors.Is(err, storage.ErrHasActiveChildren) {
			h.writeError(w, http.StatusConflict, "value stream still has active zones")
			return
		}
		h.internalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// listValueStreamZones handles GET /api/value-streams/{id}/zones
func (h *Handler) listValueStreamZones(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "value stream ID required")
		return
	}

	if _, err := h.store.GetValueStream(id); err != nil {
		if errors.Is(err, storage.ErrValueStreamNotFound) {
			h.writeError(w, http.StatusNotFound, "value stream not found")
			return
		}
		h.internalError(w, err)
		return
	}

	zones, err := h.store.ListZones(id)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, zones)
}

// Zone handlers

// listZones handles GET /api/zones
func (h *Handler) listZones(w http.ResponseWriter, r *http.Request) {
	valueStreamID := r.URL.Query().Get("value_stream_id")

	zones, err := h.store.ListZones(valueStreamID)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, zones)
}

// createZone handles POST /api/zones
func (h *Handler) createZone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ValueStreamID  string `json:"value_stream_id"`
		Name           string `json:"name"`
		Classification string `json:"classification"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ValueStreamID == "" {
		h.writeError(w, http.StatusBadRequest, "value_stream_id is required")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	zone, err := h.store.CreateZone(req.ValueStreamID, req.Name, model.SecurityType(req.Classification))
	if err != nil {
		if errors.Is(err, model.ErrInvalidClassification) {
			h.writeError(w, http.StatusBadRequest, "unknown security classification: "+req.Classification)
			return
		}
		if errors.Is(err, storage.ErrParentNotFound) {
			h.writeError(w, http.StatusNotFound, "value stream not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, zone)
}

// getZone handles GET /api/zones/{id}
func (h *Handler) getZone(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "zone ID required")
		return
	}

	zone, err := h.store.GetZone(id)
	if err != nil {
		if errors.Is(err, storage.ErrZoneNotFound) {
			h.writeError(w, http.StatusNotFound, "zone not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, zone)
}

// listZoneVLANs handles GET /api/zones/{id}/vlans
func (h *Handler) listZoneVLANs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "zone ID required")
		return
	}

	if _, err := h.store.GetZone(id); err != nil {
		if errors.Is(err, storage.ErrZoneNotFound) {
			h.writeError(w, http.StatusNotFound, "zone not found")
			return
		}
		h.internalError(w, err)
		return
	}

	vlans, err := h.store.ListVLANs(&model.VLANFilter{ZoneID: id})
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, vlans)
}

// recordFirewallCheck handles POST /api/zones/{id}/firewall-check
func (h *Handler) recordFirewallCheck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "zone ID required")
		return
	}

	// Checked-at defaults to now; an explicit timestamp allows recording
	// reviews that happened offline.
	when := time.Now().UTC()
	var req struct {
		CheckedAt *time.Time `json:"checked_at"`
	}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.CheckedAt != nil {
			when = req.CheckedAt.UTC()
		}
	}

	zone, err := h.store.TouchFirewallCheck(id, when)
	if err != nil {
		if errors.Is(err, storage.ErrZoneNotFound) {
			h.writeError(w, http.StatusNotFound, "zone not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, zone)
}
