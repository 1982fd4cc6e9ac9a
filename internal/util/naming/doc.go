// Package naming provides consistent naming functions for controller objects.
//
// Networks are qualified by {domain}:{project}:{name}, where the project is
// the owning account. Interfaces are named {instance}-{device} under their
// virtual machine, and instance IPs {instance}-{device}-ip (or -ip6).
package naming
