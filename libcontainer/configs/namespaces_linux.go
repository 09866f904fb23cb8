package configs

import "golang.org/x/sys/unix"

// NamespaceType identifies one kind of Linux namespace.
type NamespaceType string

const (
	NEWNS     NamespaceType = "NEWNS"     // mount
	NEWUTS    NamespaceType = "NEWUTS"    // hostname/domainname
	NEWIPC    NamespaceType = "NEWIPC"    // System V IPC, POSIX message queues
	NEWUSER   NamespaceType = "NEWUSER"   // UID/GID mappings
	NEWPID    NamespaceType = "NEWPID"    // process IDs
	NEWNET    NamespaceType = "NEWNET"    // network devices, routes, ports
)

// CloneFlag returns the clone(2)/unshare(2) flag for this namespace type.
func (t NamespaceType) CloneFlag() int {
	switch t {
	case NEWNS:
		return unix.CLONE_NEWNS
	case NEWUTS:
		return unix.CLONE_NEWUTS
	case NEWIPC:
		return unix.CLONE_NEWIPC
	case NEWUSER:
		return unix.CLONE_NEWUSER
	case NEWPID:
		return unix.CLONE_NEWPID
	case NEWNET:
		return unix.CLONE_NEWNET
	}
	return 0
}

// Namespace is a single namespace entry. It has no path field: this
// bootstrap only ever creates namespaces, never joins existing ones
// (spec §1 Non-goals).
type Namespace struct {
	Type NamespaceType `json:"type"`
}

// Namespaces is the ordered-by-kind set of namespaces a container occupies.
// Order in this slice carries no meaning — the sequencing rules of spec §4.4
// are enforced by the code that unshares them, not by slice order.
type Namespaces []Namespace

// Contains reports whether t is present.
func (n Namespaces) Contains(t NamespaceType) bool {
	for _, ns := range n {
		if ns.Type == t {
			return true
		}
	}
	return false
}

// NamespacesFromCloneFlags builds a Namespaces set from a clone(2) flag
// bitmask, in the canonical order USER, MOUNT, NET, UTS, IPC, PID — the
// same fixed order the sequencer applies them in (spec §4.4), so a caller
// iterating this slice sees the actual unshare order.
func NamespacesFromCloneFlags(flags uint32) Namespaces {
	ordered := []struct {
		typ  NamespaceType
		flag int
	}{
		{NEWUSER, unix.CLONE_NEWUSER},
		{NEWNS, unix.CLONE_NEWNS},
		{NEWNET, unix.CLONE_NEWNET},
		{NEWUTS, unix.CLONE_NEWUTS},
		{NEWIPC, unix.CLONE_NEWIPC},
		{NEWPID, unix.CLONE_NEWPID},
	}
	var ns Namespaces
	for _, o := range ordered {
		if flags&uint32(o.flag) != 0 {
			ns = append(ns, Namespace{Type: o.typ})
		}
	}
	return ns
}
