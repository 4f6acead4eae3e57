// Package mcp exposes the address management operations as MCP tools so
// LLM agents can drive the hierarchy and allocations over HTTP.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paularlott/mcp"

	"github.com/mhaustein/ipamd/internal/ipcalc"
	"github.com/mhaustein/ipamd/internal/log"
	"github.com/mhaustein/ipamd/internal/model"
	"github.com/mhaustein/ipamd/internal/registry"
	"github.com/mhaustein/ipamd/internal/report"
	"github.com/mhaustein/ipamd/internal/storage"
)

// Server wraps the MCP server with the address management services
type Server struct {
	mcpServer   *mcp.Server
	store       storage.Store
	registry    *registry.Registry
	reporter    *report.Reporter
	bearerToken string
}

// NewServer creates a new MCP server for IP address management
func NewServer(store storage.Store, reg *registry.Registry, reporter *report.Reporter, bearerToken string) *Server {
	s := &Server{
		mcpServer:   mcp.NewServer("ipamd", "1.0.0"),
		store:       store,
		registry:    reg,
		reporter:    reporter,
		bearerToken: bearerToken,
	}
	s.registerTools()
	return s
}

// registerTools registers all address management tools
func (s *Server) registerTools() {
	// Hierarchy tools

	s.mcpServer.RegisterTool(
		mcp.NewTool("domain_create", "Create a top-level domain (e.g. MFG, LOG, FCM, ENG). The code must be 2-10 uppercase alphanumeric characters and unique.",
			mcp.String("code", "Domain code, 2-10 uppercase alphanumerics", mcp.Required()),
			mcp.String("name", "Human-readable domain name", mcp.Required()),
		),
		s.handleDomainCreate,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("domain_list", "List all active domains"),
		s.handleDomainList,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("value_stream_create", "Create a value stream under a domain. The code is unique within the owning domain only.",
			mcp.String("domain_id", "Parent domain ID", mcp.Required()),
			mcp.String("code", "Value stream code, 2-10 uppercase alphanumerics", mcp.Required()),
			mcp.String("name", "Human-readable value stream name", mcp.Required()),
		),
		s.handleValueStreamCreate,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("zone_create", "Create a security zone under a value stream. Classification must be one of: SL3, MFZ_SL4, LOG_SL4, FMZ_SL4, ENG_SL4, LRSZ_SL4, RSZ_SL4.",
			mcp.String("value_stream_id", "Parent value stream ID", mcp.Required()),
			mcp.String("name", "Zone name", mcp.Required()),
			mcp.String("classification", "Security classification", mcp.Required()),
		),
		s.handleZoneCreate,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("zone_firewall_check", "Record that a zone's firewall rules were reviewed now",
			mcp.String("zone_id", "Zone ID", mcp.Required()),
		),
		s.handleZoneFirewallCheck,
	)

	// VLAN tools

	s.mcpServer.RegisterTool(
		mcp.NewTool("vlan_create", "Create a VLAN under a zone. The subnet is partitioned once at creation: gateway, reserved management blocks and the assignable range are fixed from then on.",
			mcp.String("zone_id", "Parent zone ID", mcp.Required()),
			mcp.String("vlan_tag", "VLAN tag, 1-4094, globally unique among active VLANs", mcp.Required()),
			mcp.String("network_address", "IPv4 network address, e.g. 192.168.1.0", mcp.Required()),
			mcp.String("subnet_mask", "Subnet mask as CIDR (/24 or 24) or dotted decimal (255.255.255.0)", mcp.Required()),
		),
		s.handleVLANCreate,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("vlan_preview", "Compute the subnet geometry (gateway, reserved blocks, assignable range) for a network and mask without creating anything",
			mcp.String("network_address", "IPv4 network address", mcp.Required()),
			mcp.String("subnet_mask", "Subnet mask as CIDR or dotted decimal", mcp.Required()),
		),
		s.handleVLANPreview,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("vlan_utilization", "Report address consumption for a VLAN",
			mcp.String("vlan_id", "VLAN ID", mcp.Required()),
		),
		s.handleVLANUtilization,
	)

	// Assignment tools

	s.mcpServer.RegisterTool(
		mcp.NewTool("ip_assign", "Assign an IP address in a VLAN to a device. The address must be inside the VLAN's assignable range; IP and MAC must not be held by any active assignment.",
			mcp.String("vlan_id", "VLAN ID", mcp.Required()),
			mcp.String("ip_address", "IPv4 address to assign", mcp.Required()),
			mcp.String("device_name", "Device name", mcp.Required()),
			mcp.String("mac_address", "Device MAC address (optional, any common separator style)"),
		),
		s.handleIPAssign,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("ip_release", "Release an assignment, freeing its IP and MAC for reuse. The record is kept as audit history.",
			mcp.String("assignment_id", "Assignment ID", mcp.Required()),
		),
		s.handleIPRelease,
	)

	s.mcpServer.RegisterTool(
		mcp.NewTool("ip_next_free", "Find the lowest free assignable address in a VLAN. Advisory only: the address is not reserved.",
			mcp.String("vlan_id", "VLAN ID", mcp.Required()),
		),
		s.handleIPNextFree,
	)

	// Report tools

	s.mcpServer.RegisterTool(
		mcp.NewTool("report_compliance", "List zones whose firewall check is overdue (older than 30 days or never recorded)"),
		s.handleReportCompliance,
	)
}

// HandleRequest handles MCP HTTP requests with optional bearer token authentication
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	log.Debug("MCP request received", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)

	if s.bearerToken != "" {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			log.Warn("MCP request missing Authorization header", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Missing Authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			log.Warn("MCP request invalid Authorization format", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid Authorization format", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")
		if token != s.bearerToken {
			log.Warn("MCP request invalid token", "remote_addr", r.RemoteAddr)
			http.Error(w, "Unauthorized: Invalid token", http.StatusUnauthorized)
			return
		}
	}

	s.mcpServer.HandleRequest(w, r)
}

// GetHTTPHandler returns an http.HandlerFunc for mounting the MCP endpoint
func (s *Server) GetHTTPHandler() http.HandlerFunc {
	return s.HandleRequest
}

func (s *Server) handleDomainCreate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	code, err := req.String("code")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("code is required: " + err.Error())
	}
	name, err := req.String("name")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("name is required: " + err.Error())
	}

	domain, err := s.store.CreateDomain(code, name)
	if err != nil {
		log.Error("MCP domain create failed", "error", err, "code", code)
		return nil, mcp.NewToolErrorInternal("failed to create domain: " + err.Error())
	}

	log.Info("MCP domain created", "id", domain.ID, "code", domain.Code)
	return mcp.NewToolResponseText(fmt.Sprintf("Domain created: %s (ID: %s)", domain.Code, domain.ID)), nil
}

func (s *Server) handleDomainList(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	domains, err := s.store.ListDomains()
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to list domains: " + err.Error())
	}

	if len(domains) == 0 {
		return mcp.NewToolResponseText("No domains found"), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Found %d domain(s):\n", len(domains)))
	for _, d := range domains {
		result.WriteString(fmt.Sprintf("- %s: %s (ID: %s)\n", d.Code, d.Name, d.ID))
	}
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleValueStreamCreate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	domainID, err := req.String("domain_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("domain_id is required: " + err.Error())
	}
	code, err := req.String("code")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("code is required: " + err.Error())
	}
	name, err := req.String("name")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("name is required: " + err.Error())
	}

	vs, err := s.store.CreateValueStream(domainID, code, name)
	if err != nil {
		log.Error("MCP value stream create failed", "error", err, "code", code)
		return nil, mcp.NewToolErrorInternal("failed to create value stream: " + err.Error())
	}

	log.Info("MCP value stream created", "id", vs.ID, "code", vs.Code)
	return mcp.NewToolResponseText(fmt.Sprintf("Value stream created: %s (ID: %s)", vs.Code, vs.ID)), nil
}

func (s *Server) handleZoneCreate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	valueStreamID, err := req.String("value_stream_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("value_stream_id is required: " + err.Error())
	}
	name, err := req.String("name")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("name is required: " + err.Error())
	}
	classification, err := req.String("classification")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("classification is required: " + err.Error())
	}

	zone, err := s.store.CreateZone(valueStreamID, name, model.SecurityType(classification))
	if err != nil {
		log.Error("MCP zone create failed", "error", err, "name", name)
		return nil, mcp.NewToolErrorInternal("failed to create zone: " + err.Error())
	}

	log.Info("MCP zone created", "id", zone.ID, "classification", zone.Classification)
	return mcp.NewToolResponseText(fmt.Sprintf("Zone created: %s [%s] (ID: %s)", zone.Name, zone.Classification, zone.ID)), nil
}

func (s *Server) handleZoneFirewallCheck(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	zoneID, err := req.String("zone_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("zone_id is required: " + err.Error())
	}

	zone, err := s.store.TouchFirewallCheck(zoneID, time.Now().UTC())
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to record firewall check: " + err.Error())
	}

	return mcp.NewToolResponseText(fmt.Sprintf("Firewall check recorded for zone %s at %s",
		zone.Name, zone.LastFirewallCheck.Format(time.RFC3339))), nil
}

func (s *Server) handleVLANCreate(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	zoneID, err := req.String("zone_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("zone_id is required: " + err.Error())
	}
	tagStr, err := req.String("vlan_tag")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("vlan_tag is required: " + err.Error())
	}
	tag, err := strconv.Atoi(tagStr)
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("vlan_tag must be a number: " + err.Error())
	}
	network, err := req.String("network_address")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("network_address is required: " + err.Error())
	}
	mask, err := req.String("subnet_mask")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("subnet_mask is required: " + err.Error())
	}

	vlan, err := s.store.CreateVLAN(zoneID, tag, network, mask)
	if err != nil {
		log.Error("MCP vlan create failed", "error", err, "tag", tag)
		return nil, mcp.NewToolErrorInternal("failed to create vlan: " + err.Error())
	}

	log.Info("MCP vlan created", "id", vlan.ID, "tag", vlan.Tag)
	return mcp.NewToolResponseText(fmt.Sprintf(
		"VLAN %d created: %s/%d, gateway %s, assignable %s - %s (%d addresses) (ID: %s)",
		vlan.Tag, vlan.NetworkAddress, vlan.PrefixLength, vlan.Gateway,
		vlan.AssignableStart, vlan.AssignableEnd, vlan.AssignableCount, vlan.ID)), nil
}

func (s *Server) handleVLANPreview(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	network, err := req.String("network_address")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("network_address is required: " + err.Error())
	}
	mask, err := req.String("subnet_mask")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("subnet_mask is required: " + err.Error())
	}

	plan, err := s.registry.Preview(network, mask)
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("invalid subnet: " + err.Error())
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Subnet %s:\n", plan.CIDR()))
	result.WriteString(fmt.Sprintf("- Gateway: %s\n", ipcalc.FormatIP(plan.Gateway)))
	for _, r := range plan.ReservedRanges {
		result.WriteString(fmt.Sprintf("- Reserved: %s\n", r))
	}
	result.WriteString(fmt.Sprintf("- Assignable: %s (%d addresses)\n", plan.AssignableRange, plan.AssignableCount))
	result.WriteString(fmt.Sprintf("- Total hosts: %d\n", plan.TotalHosts))
	return mcp.NewToolResponseText(result.String()), nil
}

func (s *Server) handleVLANUtilization(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	vlanID, err := req.String("vlan_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("vlan_id is required: " + err.Error())
	}

	u, err := s.registry.Utilization(vlanID)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to compute utilization: " + err.Error())
	}

	return mcp.NewToolResponseText(fmt.Sprintf(
		"Utilization: %d of %d assignable addresses in use (%.2f%%), %d available",
		u.AssignedCount, u.AssignableCount, u.Percentage, u.AvailableCount)), nil
}

func (s *Server) handleIPAssign(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	vlanID, err := req.String("vlan_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("vlan_id is required: " + err.Error())
	}
	ipAddress, err := req.String("ip_address")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("ip_address is required: " + err.Error())
	}
	deviceName, err := req.String("device_name")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("device_name is required: " + err.Error())
	}
	macAddress := req.StringOr("mac_address", "")

	a, err := s.registry.Assign(vlanID, ipAddress, macAddress, deviceName)
	if err != nil {
		log.Error("MCP ip assign failed", "error", err, "ip", ipAddress)
		return nil, mcp.NewToolErrorInternal("failed to assign address: " + err.Error())
	}

	log.Info("MCP address assigned", "id", a.ID, "ip", a.IPAddress, "device", a.DeviceName)
	return mcp.NewToolResponseText(fmt.Sprintf("Assigned %s to %s (ID: %s)", a.IPAddress, a.DeviceName, a.ID)), nil
}

func (s *Server) handleIPRelease(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	assignmentID, err := req.String("assignment_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("assignment_id is required: " + err.Error())
	}

	a, err := s.registry.Release(assignmentID)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to release assignment: " + err.Error())
	}

	log.Info("MCP address released", "id", a.ID, "ip", a.IPAddress)
	return mcp.NewToolResponseText(fmt.Sprintf("Released %s (device %s); the address is free for reuse", a.IPAddress, a.DeviceName)), nil
}

func (s *Server) handleIPNextFree(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	vlanID, err := req.String("vlan_id")
	if err != nil {
		return nil, mcp.NewToolErrorInvalidParams("vlan_id is required: " + err.Error())
	}

	ip, err := s.registry.NextFree(vlanID)
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to find free address: " + err.Error())
	}

	return mcp.NewToolResponseText(fmt.Sprintf("Next free address: %s (advisory, not reserved)", ip)), nil
}

func (s *Server) handleReportCompliance(ctx context.Context, req *mcp.ToolRequest) (*mcp.ToolResponse, error) {
	rep, err := s.reporter.Compliance(time.Now().UTC())
	if err != nil {
		return nil, mcp.NewToolErrorInternal("failed to build compliance report: " + err.Error())
	}

	if rep.OverdueZones == 0 {
		return mcp.NewToolResponseText(fmt.Sprintf("All %d zones have a firewall check within the last 30 days", rep.TotalZones)), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%d of %d zones overdue:\n", rep.OverdueZones, rep.TotalZones))
	for _, e := range rep.Entries {
		if !e.Overdue {
			continue
		}
		if e.LastFirewallCheck == nil {
			result.WriteString(fmt.Sprintf("- %s [%s]: never checked\n", e.ZoneName, e.Classification))
		} else {
			result.WriteString(fmt.Sprintf("- %s [%s]: last checked %s (%d days overdue)\n",
				e.ZoneName, e.Classification, e.LastFirewallCheck.Format("2006-01-02"), e.OverdueDays))
		}
	}
	return mcp.NewToolResponseText(result.String()), nil
}

// LogStartup logs the available MCP tools
func (s *Server) LogStartup() {
	log.Info("MCP server initialized",
		"tools", []string{
			"domain_create", "domain_list", "value_stream_create",
			"zone_create", "zone_firewall_check",
			"vlan_create", "vlan_preview", "vlan_utilization",
			"ip_assign", "ip_release", "ip_next_free",
			"report_compliance",
		})
}
