package naming

import (
	"fmt"
	"strings"
)

// Platform domain that maps to the controller's default domain.
const rootDomain = "ROOT"

// Manager composes controller-side names from platform identities.
type Manager struct {
	DefaultDomain  string
	DefaultProject string
}

// NewManager creates a Manager with the controller's default domain and project.
func NewManager(defaultDomain, defaultProject string) *Manager {
	return &Manager{DefaultDomain: defaultDomain, DefaultProject: defaultProject}
}

// Domain maps a platform domain name to a controller domain.
func (m *Manager) Domain(domain string) string {
	if domain == "" || strings.EqualFold(domain, rootDomain) {
		return m.DefaultDomain
	}
	return domain
}

// Project returns the fully qualified project name for an account.
func (m *Manager) Project(domain, account string) []string {
	if account == "" {
		account = m.DefaultProject
	}
	return []string{m.Domain(domain), account}
}

// CanonicalNetworkName returns the controller name of a network. Guest
// networks keep their own name; infrastructure networks get a reserved name
// per traffic type.
func (m *Manager) CanonicalNetworkName(name, trafficType string) string {
	if trafficType == "" || strings.EqualFold(trafficType, "Guest") {
		return name
	}
	return fmt.Sprintf("__%s_network__", strings.ToLower(trafficType))
}

// NetworkFQName returns the fully qualified name of a network.
func (m *Manager) NetworkFQName(domain, account, name, trafficType string) []string {
	return append(m.Project(domain, account), m.CanonicalNetworkName(name, trafficType))
}

func VirtualMachine(instanceName string) []string {
	return []string{instanceName}
}

func VifName(instanceName string, deviceID int) string {
	return fmt.Sprintf("%s-%d", instanceName, deviceID)
}

func VMInterface(instanceName string, deviceID int) []string {
	return []string{instanceName, VifName(instanceName, deviceID)}
}

func InstanceIP(instanceName string, deviceID int, ipv6 bool) []string {
	suffix := "ip"
	if ipv6 {
		suffix = "ip6"
	}
	return []string{fmt.Sprintf("%s-%s", VifName(instanceName, deviceID), suffix)}
}
