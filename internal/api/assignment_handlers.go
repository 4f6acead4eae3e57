package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/storage"
)

// createAssignment handles POST /api/assignments
func (h *Handler) createAssignment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VLANID     string `json:"vlan_id"`
		IPAddress  string `json:"ip_address"`
		MACAddress string `json:"mac_address"`
		DeviceName string `json:"device_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.VLANID == "" {
		h.writeError(w, http.StatusBadRequest, "vlan_id is required")
		return
	}
	if req.IPAddress == "" {
		h.writeError(w, http.StatusBadRequest, "ip_address is required")
		return
	}
	if req.DeviceName == "" {
		h.writeError(w, http.StatusBadRequest, "device_name is required")
		return
	}

	a, err := h.registry.Assign(req.VLANID, req.IPAddress, req.MACAddress, req.DeviceName)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrVLANNotFound):
			h.writeError(w, http.StatusNotFound, "vlan not found")
		case errors.Is(err, registry.ErrAddressNotInVLAN):
			h.writeError(w, http.StatusBadRequest, "ip address is not in the vlan network")
		case errors.Is(err, registry.ErrAddressReserved):
			h.writeError(w, http.StatusBadRequest, "ip address is reserved")
		case errors.Is(err, model.ErrMalformedMAC):
			h.writeError(w, http.StatusBadRequest, "invalid MAC address")
		case errors.Is(err, storage.ErrAddressAssigned):
			h.writeError(w, http.StatusConflict, "ip address already assigned")
		case errors.Is(err, storage.ErrMACAssigned):
			h.writeError(w, http.StatusConflict, "mac address already assigned")
		default:
			// Malformed IP literals surface from the classifier.
			h.writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, a)
}

// getAssignment handles GET /api/assignments/{id}
func (h *Handler) getAssignment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "assignment ID required")
		return
	}

	a, err := h.store.GetAssignment(id)
	if err != nil {
		if errors.Is(err, storage.ErrAssignmentNotFound) {
			h.writeError(w, http.StatusNotFound, "assignment not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, a)
}

// releaseAssignment handles POST /api/assignments/{id}/release
func (h *Handler) releaseAssignment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "assignment ID required")
		return
	}

	a, err := h.registry.Release(id)
	if err != nil {
		if errors.Is(err, storage.ErrAssignmentNotFound) {
			h.writeError(w, http.StatusNotFound, "assignment not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, a)
}

// listVLANAssignments handles GET /api/vlans/{id}/assignments
func (h *Handler) listVLANAssignments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "vlan ID required")
		return
	}

	if _, err := h.store.GetVLAN(id); err != nil {
		if errors.Is(err, storage.ErrVLANNotFound) {
			h.writeError(w, http.StatusNotFound, "vlan not found")
			return
		}
		h.internalError(w, err)
		return
	}

	includeReleased, _ := strconv.ParseBool(r.URL.Query().Get("include_released"))

	assignments, err := h.store.ListAssignments(id, includeReleased)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, assignments)
}
