package model

import (
	"net/netip"
	"strconv"

	"github.com/imamik/vnsync/internal/platform/contrail"
	"github.com/imamik/vnsync/internal/store"
)

// VirtualNetworkModel mirrors a platform network.
type VirtualNetworkModel struct {
	base

	localID     int64
	trafficType store.TrafficType
	cidr        netip.Prefix
	ip6CIDR     netip.Prefix
}

// NewVirtualNetwork creates a network model identified by the network UUID.
func NewVirtualNetwork(uuid string) *VirtualNetworkModel {
	return &VirtualNetworkModel{base: newBase(contrail.KindVirtualNetwork, uuid)}
}

// Build derives the controller object from the network record. Guest
// networks must carry an IPv4 CIDR, and gateways must lie inside their
// subnets.
func (m *VirtualNetworkModel) Build(c *Controller, n *store.Network) error {
	if err := m.checkBuild(); err != nil {
		return err
	}
	invalid := func(field, reason string) error {
		return &ValidationError{Kind: m.kind, ID: strconv.FormatInt(n.ID, 10), Field: field, Reason: reason}
	}
	if n.UUID != m.uuid {
		return invalid("uuid", "does not match model")
	}
	traffic := n.TrafficType
	if traffic == "" {
		traffic = store.TrafficGuest
	}
	if traffic == store.TrafficGuest {
		if n.Name == "" {
			return invalid("name", "is required")
		}
		if n.CIDR == "" {
			return invalid("cidr", "is required for guest networks")
		}
	}

	cidr, err := m.subnet(n.CIDR, n.Gateway, invalid)
	if err != nil {
		return err
	}
	ip6CIDR, err := m.subnet(n.IP6CIDR, n.IP6Gateway, invalid)
	if err != nil {
		return err
	}

	m.localID = n.ID
	m.trafficType = traffic
	m.cidr = cidr
	m.ip6CIDR = ip6CIDR

	m.built(&contrail.Object{
		FQName: c.Names.NetworkFQName(n.DomainName, n.AccountName, n.Name, string(traffic)),
		Attrs: map[string]string{
			"traffic_type": string(traffic),
			"guest_type":   n.GuestType,
			"gateway":      n.Gateway,
			"cidr":         n.CIDR,
			"ip6_gateway":  n.IP6Gateway,
			"ip6_cidr":     n.IP6CIDR,
		},
		Labels: c.labels(n.ID),
	})
	return nil
}

// subnet parses a CIDR and checks the gateway lies inside it. Both may be
// empty; a gateway without a CIDR is accepted as-is.
func (m *VirtualNetworkModel) subnet(cidr, gateway string, invalid func(field, reason string) error) (netip.Prefix, error) {
	var prefix netip.Prefix
	if cidr != "" {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return netip.Prefix{}, invalid("cidr", err.Error())
		}
		prefix = p.Masked()
	}
	if gateway == "" {
		return prefix, nil
	}
	gw, err := netip.ParseAddr(gateway)
	if err != nil {
		return netip.Prefix{}, invalid("gateway", err.Error())
	}
	if prefix.IsValid() && !prefix.Contains(gw) {
		return netip.Prefix{}, &InvalidSubnetError{Kind: m.kind, UUID: m.uuid, Address: gateway, CIDR: cidr}
	}
	return prefix, nil
}

// LocalID returns the platform network id.
func (m *VirtualNetworkModel) LocalID() int64 { return m.localID }

// TrafficType returns the network's traffic type.
func (m *VirtualNetworkModel) TrafficType() store.TrafficType { return m.trafficType }

// Subnet returns the IPv4 subnet, invalid when unset.
func (m *VirtualNetworkModel) Subnet() netip.Prefix { return m.cidr }

// Subnet6 returns the IPv6 subnet, invalid when unset.
func (m *VirtualNetworkModel) Subnet6() netip.Prefix { return m.ip6CIDR }
