package config

import (
	"fmt"
	"slices"
)

// SourceNatType is a supported source NAT scope.
type SourceNatType string

// Source NAT types.
const (
	SourceNatPerAccount SourceNatType = "peraccount"
	SourceNatPerZone    SourceNatType = "perzone"
)

// LBAlgorithm is a load-balancing algorithm.
type LBAlgorithm string

// Load-balancing algorithms.
const (
	LBRoundRobin LBAlgorithm = "roundrobin"
	LBLeastConn  LBAlgorithm = "leastconn"
	LBSource     LBAlgorithm = "source"
)

// LBScheme is the load balancer placement.
type LBScheme string

// Load balancer schemes.
const (
	LBSchemePublic   LBScheme = "Public"
	LBSchemeInternal LBScheme = "Internal"
)

var (
	validAlgorithms = []LBAlgorithm{LBRoundRobin, LBLeastConn, LBSource}
	validProtocols  = []string{"tcp", "udp"}
)

// Capabilities is the fixed set of network services the provider offers.
type Capabilities struct {
	SourceNat SourceNatCapability `yaml:"source_nat" json:"sourceNat"`
	Lb        LbCapability        `yaml:"lb" json:"lb"`
}

// SourceNatCapability describes source NAT support.
type SourceNatCapability struct {
	SupportedTypes  []SourceNatType `yaml:"supported_types" json:"supportedTypes"`
	RedundantRouter bool            `yaml:"redundant_router" json:"redundantRouter"`
}

// LbCapability describes load balancer support.
type LbCapability struct {
	Algorithms []LBAlgorithm `yaml:"algorithms" json:"algorithms"`
	Isolation  string        `yaml:"isolation" json:"isolation"`
	Protocols  []string      `yaml:"protocols" json:"protocols"`
	Scheme     LBScheme      `yaml:"scheme" json:"scheme"`
}

// DefaultCapabilities returns the capabilities advertised by the provider.
func DefaultCapabilities() Capabilities {
	c := Capabilities{}
	c.applyDefaults()
	return c
}

func (c *Capabilities) applyDefaults() {
	if len(c.SourceNat.SupportedTypes) == 0 {
		c.SourceNat.SupportedTypes = []SourceNatType{SourceNatPerAccount}
	}
	if len(c.Lb.Algorithms) == 0 {
		c.Lb.Algorithms = slices.Clone(validAlgorithms)
	}
	if c.Lb.Isolation == "" {
		c.Lb.Isolation = "dedicated"
	}
	if len(c.Lb.Protocols) == 0 {
		c.Lb.Protocols = slices.Clone(validProtocols)
	}
	if c.Lb.Scheme == "" {
		c.Lb.Scheme = LBSchemeInternal
	}
}

// Validate rejects values outside the enumerations.
func (c *Capabilities) Validate() error {
	for _, t := range c.SourceNat.SupportedTypes {
		if t != SourceNatPerAccount && t != SourceNatPerZone {
			return fmt.Errorf("unsupported source nat type %q", t)
		}
	}
	for _, a := range c.Lb.Algorithms {
		if !slices.Contains(validAlgorithms, a) {
			return fmt.Errorf("unsupported lb algorithm %q", a)
		}
	}
	for _, p := range c.Lb.Protocols {
		if !slices.Contains(validProtocols, p) {
			return fmt.Errorf("unsupported lb protocol %q", p)
		}
	}
	if c.Lb.Isolation != "dedicated" {
		return fmt.Errorf("unsupported lb isolation %q", c.Lb.Isolation)
	}
	if c.Lb.Scheme != LBSchemeInternal && c.Lb.Scheme != LBSchemePublic {
		return fmt.Errorf("unsupported lb scheme %q", c.Lb.Scheme)
	}
	return nil
}
