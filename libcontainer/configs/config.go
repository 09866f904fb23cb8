// Package configs provides the container configuration record that the
// bootstrap hands off to the managed runtime once Stage-2 has come up.
//
// Only the fields the bootstrap itself can populate from the netlink-style
// configuration message (spec §3/§4.1) are kept here; mount, seccomp,
// cgroup-resource and hook configuration belong to the managed runtime and
// are added by it after bootstrap returns, so they are not modeled in this
// package (see DESIGN.md for the full list of fields trimmed from the
// original libcontainer Config this was adapted from).
package configs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opencontainers/cgroups"
	"github.com/opencontainers/runtime-spec/specs-go"
)

// IDMap represents a UID/GID mapping for a user namespace.
type IDMap struct {
	ContainerID int64 `json:"container_id"`
	HostID      int64 `json:"host_id"`
	Size        int64 `json:"size"`
}

// Rlimit mirrors the subset of POSIX resource limits libcontainer cares
// about; kept for parity with the handoff struct's JSON shape even though
// the bootstrap itself never sets one (the managed runtime does).
type Rlimit struct {
	Type int    `json:"type"`
	Hard uint64 `json:"hard"`
	Soft uint64 `json:"soft"`
}

// Config is the record Stage-2 builds once the namespace/sync handshake of
// spec §4.5 has completed, and that the managed runtime reads after
// bootstrap returns control to it.
type Config struct {
	// Rootfs is the container's root filesystem path, as conveyed by the
	// ROOTFS_PATH attribute. Bootstrap does not touch the filesystem; the
	// managed runtime performs the pivot/mount.
	Rootfs string `json:"rootfs"`

	// Namespaces is the set of namespaces Stage-1 unshared, derived from
	// CLONE_FLAGS.
	Namespaces Namespaces `json:"namespaces"`

	// UIDMappings/GIDMappings are parsed from the UIDMAP/GIDMAP attribute
	// payloads (text lines of "containerID hostID size").
	UIDMappings []IDMap `json:"uid_mappings,omitempty"`
	GIDMappings []IDMap `json:"gid_mappings,omitempty"`

	// Cgroups is a pass-through placeholder naming the cgroup the managed
	// runtime should place Stage-2 into; bootstrap never writes cgroup
	// controller files itself (spec §1 Non-goals).
	Cgroups *cgroups.Cgroup `json:"cgroups,omitempty"`

	// Rlimits is always empty at handoff time; present for JSON-shape
	// parity with the managed runtime's richer on-disk config.
	Rlimits []Rlimit `json:"rlimits,omitempty"`

	// Labels carries the bundle path the same way upstream libcontainer
	// does, as a "bundle=<path>" entry, so callers already written against
	// that convention (utils.SearchLabels-style lookups) keep working.
	Labels []string `json:"labels,omitempty"`

	// SpecState is the OCI runtime state document for the container,
	// populated with the Stage-2 pid once it is known.
	SpecState *specs.State `json:"spec_state,omitempty"`

	// Version is the supported OCI runtime-spec version.
	Version string `json:"version"`
}

// SearchLabels returns the value of the first label of the form key=value.
func SearchLabels(labels []string, key string) string {
	for _, l := range labels {
		parts := strings.SplitN(l, "=", 2)
		if len(parts) == 2 && parts[0] == key {
			return parts[1]
		}
	}
	return ""
}

// ParseIDMapText parses the "containerID hostID size" line format used by
// /proc/[pid]/{uid,gid}_map (and carried, identically formatted, inside the
// bootstrap config's raw UIDMAP/GIDMAP attribute payloads).
func ParseIDMapText(text string) ([]IDMap, error) {
	var maps []IDMap
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("invalid id map line %q: want 3 fields, got %d", line, len(fields))
		}
		cid, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id map line %q: %w", line, err)
		}
		hid, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id map line %q: %w", line, err)
		}
		size, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id map line %q: %w", line, err)
		}
		maps = append(maps, IDMap{ContainerID: cid, HostID: hid, Size: size})
	}
	return maps, nil
}

// FormatIDMapText is the inverse of ParseIDMapText, for anything that needs
// to re-derive the wire payload from parsed mappings.
func FormatIDMapText(maps []IDMap) string {
	var b strings.Builder
	for _, m := range maps {
		fmt.Fprintf(&b, "%d %d %d\n", m.ContainerID, m.HostID, m.Size)
	}
	return b.String()
}
