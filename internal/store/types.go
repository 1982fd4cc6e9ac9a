package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record does not exist or has been removed.
var ErrNotFound = errors.New("record not found")

// TrafficType classifies a network.
type TrafficType string

// Traffic types.
const (
	TrafficGuest      TrafficType = "Guest"
	TrafficPublic     TrafficType = "Public"
	TrafficManagement TrafficType = "Management"
	TrafficControl    TrafficType = "Control"
	TrafficStorage    TrafficType = "Storage"
)

// VMState is the platform's lifecycle state of a virtual machine.
type VMState string

// VM states.
const (
	VMStarting  VMState = "Starting"
	VMRunning   VMState = "Running"
	VMStopping  VMState = "Stopping"
	VMStopped   VMState = "Stopped"
	VMMigrating VMState = "Migrating"
	VMError     VMState = "Error"
	VMDestroyed VMState = "Destroyed"
	VMExpunging VMState = "Expunging"
)

// Network is a snapshot of a network record.
type Network struct {
	ID          int64
	UUID        string
	Name        string
	TrafficType TrafficType
	GuestType   string
	Gateway     string
	CIDR        string
	IP6Gateway  string
	IP6CIDR     string
	DomainID    int64
	DomainName  string
	AccountID   int64
	AccountName string
	State       string
	Removed     bool
}

// VM is a snapshot of a virtual machine record.
type VM struct {
	ID           int64
	UUID         string
	InstanceName string
	State        VMState
	DomainID     int64
	DomainName   string
	AccountID    int64
	AccountName  string
	Removed      bool
}

// Nic is a snapshot of a NIC record.
type Nic struct {
	ID         int64
	UUID       string
	VMID       int64
	NetworkID  int64
	MACAddress string
	IP4Address string
	IP6Address string
	DeviceID   int
	State      string
	Removed    bool
}

// AddressFamily of an instance IP.
type AddressFamily string

// Address families.
const (
	IPv4 AddressFamily = "v4"
	IPv6 AddressFamily = "v6"
)

// InstanceIP is an address bound to a NIC.
type InstanceIP struct {
	NicID   int64
	Address string
	Family  AddressFamily
}

// InstanceIPs derives the bound addresses of a NIC, IPv4 first.
func (n *Nic) InstanceIPs() []*InstanceIP {
	var out []*InstanceIP
	if n.IP4Address != "" {
		out = append(out, &InstanceIP{NicID: n.ID, Address: n.IP4Address, Family: IPv4})
	}
	if n.IP6Address != "" {
		out = append(out, &InstanceIP{NicID: n.ID, Address: n.IP6Address, Family: IPv6})
	}
	return out
}

// Reader is the read-only view of local persistence.
//
// Find methods return records even when they are marked removed, so that
// deletions can still resolve identities. List methods skip removed records.
type Reader interface {
	FindNetwork(ctx context.Context, id int64) (*Network, error)
	FindVM(ctx context.Context, id int64) (*VM, error)
	FindNic(ctx context.Context, id int64) (*Nic, error)
	// FindInstanceIPs returns the addresses bound to the NIC with the given id.
	FindInstanceIPs(ctx context.Context, nicID int64) ([]*InstanceIP, error)

	ListNetworks(ctx context.Context) ([]*Network, error)
	ListVMs(ctx context.Context) ([]*VM, error)
	ListNics(ctx context.Context) ([]*Nic, error)
	ListNicsByVM(ctx context.Context, vmID int64) ([]*Nic, error)
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}
