// Package inventory supplies the set of known hosts and their connection
// parameters. The backing file's textual grammar is left to one concrete,
// minimal reader (an OpenSSH config-like block format) so the reference
// binary in cmd/scoutmcpd is runnable end to end, with a fsnotify-backed
// watcher that lets it hot-reload.
package inventory

// HostRecord is immutable for the lifetime of a process and shared by
// reference. Tags/Labels are supplemental metadata used only by the
// "hosts" list-branch's descriptor block, never for dispatch.
type HostRecord struct {
	Name         string
	Address      string
	Port         int
	User         string
	IdentityFile string
	Tags         []string
	Labels       map[string]string
}

// Adapter is the read-only collaborator interface: Hosts() returns every
// known host, Host(name) looks up one by name. Implementations must
// tolerate being queried on every request and their result changing
// between calls.
type Adapter interface {
	Hosts() map[string]HostRecord
	Host(name string) (HostRecord, bool)
}

// StaticAdapter is the simplest Adapter: an immutable snapshot supplied at
// construction time. Useful for tests and for callers that assemble their
// own inventory programmatically instead of from a file.
type StaticAdapter struct {
	hosts map[string]HostRecord
}

// NewStaticAdapter copies hosts into an immutable snapshot.
func NewStaticAdapter(hosts map[string]HostRecord) *StaticAdapter {
	snapshot := make(map[string]HostRecord, len(hosts))
	for k, v := range hosts {
		snapshot[k] = v
	}
	return &StaticAdapter{hosts: snapshot}
}

func (a *StaticAdapter) Hosts() map[string]HostRecord {
	out := make(map[string]HostRecord, len(a.hosts))
	for k, v := range a.hosts {
		out[k] = v
	}
	return out
}

func (a *StaticAdapter) Host(name string) (HostRecord, bool) {
	h, ok := a.hosts[name]
	return h, ok
}
