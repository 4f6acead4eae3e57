package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mhaustein/ipamd/internal/ipcalc"
	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/storage"
)

// listVLANs handles GET /api/vlans
func (h *Handler) listVLANs(w http.ResponseWriter, r *http.Request) {
	zoneID := r.URL.Query().Get("zone_id")
	filter := &model.VLANFilter{ZoneID: zoneID}

	vlans, err := h.store.ListVLANs(filter)
	if err != nil {
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, vlans)
}

// createVLAN handles POST /api/vlans
func (h *Handler) createVLAN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ZoneID         string `json:"zone_id"`
		Tag            int    `json:"vlan_tag"`
		NetworkAddress string `json:"network_address"`
		SubnetMask     string `json:"subnet_mask"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ZoneID == "" {
		h.writeError(w, http.StatusBadRequest, "zone_id is required")
		return
	}
	if req.NetworkAddress == "" || req.SubnetMask == "" {
		h.writeError(w, http.StatusBadRequest, "network_address and subnet_mask are required")
		return
	}

	vlan, err := h.store.CreateVLAN(req.ZoneID, req.Tag, req.NetworkAddress, req.SubnetMask)
	if err != nil {
		if errors.Is(err, model.ErrInvalidTag) {
			h.writeError(w, http.StatusBadRequest, "vlan_tag must be between 1 and 4094")
			return
		}
		if errors.Is(err, storage.ErrParentNotFound) {
			h.writeError(w, http.StatusNotFound, "zone not found")
			return
		}
		if errors.Is(err, storage.ErrDuplicateTag) {
			h.writeError(w, http.StatusConflict, "vlan tag already in use")
			return
		}
		if errors.Is(err, ipcalc.ErrMalformedAddress) || errors.Is(err, ipcalc.ErrMalformedMask) ||
			errors.Is(err, ipcalc.ErrNetworkTooSmall) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, vlan)
}

// previewVLAN handles POST /api/vlans/preview. It computes the subnet
// geometry without creating anything.
func (h *Handler) previewVLAN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NetworkAddress string `json:"network_address"`
		SubnetMask     string `json:"subnet_mask"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := h.registry.Preview(req.NetworkAddress, req.SubnetMask)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, planView(plan))
}

// getVLAN handles GET /api/vlans/{id}
func (h *Handler) getVLAN(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "vlan ID required")
		return
	}

	vlan, err := h.store.GetVLAN(id)
	if err != nil {
		if errors.Is(err, storage.ErrVLANNotFound) {
			h.writeError(w, http.StatusNotFound, "vlan not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, vlan)
}

// getVLANUtilization handles GET /api/vlans/{id}/utilization
func (h *Handler) getVLANUtilization(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "vlan ID required")
		return
	}

	u, err := h.registry.Utilization(id)
	if err != nil {
		if errors.Is(err, storage.ErrVLANNotFound) {
			h.writeError(w, http.StatusNotFound, "vlan not found")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, u)
}

// getNextIP handles GET /api/vlans/{id}/next-ip. The answer is advisory:
// nothing is reserved until the caller assigns it.
func (h *Handler) getNextIP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "vlan ID required")
		return
	}

	ip, err := h.registry.NextFree(id)
	if err != nil {
		if errors.Is(err, storage.ErrVLANNotFound) {
			h.writeError(w, http.StatusNotFound, "vlan not found")
			return
		}
		if errors.Is(err, registry.ErrVLANExhausted) {
			h.writeError(w, http.StatusConflict, "no free address in vlan")
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"ip": ip})
}

// planView renders a subnet plan with string addresses.
func planView(plan *ipcalc.Plan) map[string]interface{} {
	reserved := make([]map[string]string, 0, len(plan.ReservedRanges))
	for _, r := range plan.ReservedRanges {
		reserved = append(reserved, map[string]string{
			"start": ipcalc.FormatIP(r.Start),
			"end":   ipcalc.FormatIP(r.End),
		})
	}

	return map[string]interface{}{
		"cidr":             plan.CIDR(),
		"gateway":          ipcalc.FormatIP(plan.Gateway),
		"reserved_ranges":  reserved,
		"assignable_start": ipcalc.FormatIP(plan.AssignableRange.Start),
		"assignable_end":   ipcalc.FormatIP(plan.AssignableRange.End),
		"total_hosts":      plan.TotalHosts,
		"assignable_count": plan.AssignableCount,
	}
}
