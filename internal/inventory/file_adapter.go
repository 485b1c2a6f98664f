package inventory

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/jmagar/scoutmcp/internal/logging"
)

// FileAdapter reads host records from an OpenSSH config-like file:
//
//	Host web1
//	    HostName 10.0.0.5
//	    Port 22
//	    User ops
//	    IdentityFile ~/.ssh/id_ed25519
//	    Tags prod, frontend
//	    Label region us-east
//
// Tags is a comma-separated list; Label may repeat, one key/value pair per
// line. Both are descriptive metadata only -- dispatch never reads them.
// Unknown directives are ignored (permissive parsing). A malformed file on
// reload keeps serving the last good parse and logs a warning instead of
// crashing the process -- this package carries no persistent state of its
// own.
type FileAdapter struct {
	path    string
	current atomic.Pointer[map[string]HostRecord]

	watchOnce sync.Once
	watcher   *fsnotify.Watcher
	closeCh   chan struct{}
}

// NewFileAdapter parses path once and returns an Adapter backed by it.
func NewFileAdapter(path string) (*FileAdapter, error) {
	hosts, err := parseFile(path)
	if err != nil {
		return nil, err
	}
	a := &FileAdapter{path: path}
	a.current.Store(&hosts)
	return a, nil
}

func (a *FileAdapter) Hosts() map[string]HostRecord {
	m := *a.current.Load()
	out := make(map[string]HostRecord, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (a *FileAdapter) Host(name string) (HostRecord, bool) {
	m := *a.current.Load()
	h, ok := m[name]
	return h, ok
}

// Watch starts an fsnotify watch on the backing file's directory and
// reparses on every write/create/rename event targeting the file. Only the
// first call starts a watch; later calls are no-ops that return nil. Close
// stops the watch.
func (a *FileAdapter) Watch() error {
	var startErr error
	a.watchOnce.Do(func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			startErr = fmt.Errorf("starting inventory file watcher: %w", err)
			return
		}
		dir := dirOf(a.path)
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			startErr = fmt.Errorf("watching inventory directory %q: %w", dir, err)
			return
		}
		a.watcher = watcher
		a.closeCh = make(chan struct{})
		go a.watchLoop()
	})
	return startErr
}

func (a *FileAdapter) watchLoop() {
	logger := logging.Global()
	for {
		select {
		case <-a.closeCh:
			return
		case ev, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			if baseOf(ev.Name) != baseOf(a.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			hosts, err := parseFile(a.path)
			if err != nil {
				logger.Warn().Err(err).Str("path", a.path).Msg("inventory reload failed, keeping last good parse")
				continue
			}
			a.current.Store(&hosts)
			logger.Info().Int("hosts", len(hosts)).Msg("inventory reloaded")
		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn().Err(err).Msg("inventory watcher error")
		}
	}
}

// Close stops the background watch goroutine, if started.
func (a *FileAdapter) Close() error {
	if a.watcher == nil {
		return nil
	}
	close(a.closeCh)
	return a.watcher.Close()
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}

func baseOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return path
	}
	return path[i+1:]
}

func parseFile(path string) (map[string]HostRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening inventory file %q: %w", path, err)
	}
	defer f.Close()

	hosts := make(map[string]HostRecord)
	var cur *HostRecord

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		directive := strings.ToLower(fields[0])
		value := strings.Join(fields[1:], " ")

		if directive == "host" {
			if cur != nil {
				hosts[cur.Name] = *cur
			}
			cur = &HostRecord{Name: value, Port: 22}
			continue
		}
		if cur == nil {
			continue // directive before any Host block: ignore permissively
		}
		switch directive {
		case "hostname":
			cur.Address = value
		case "port":
			if p, err := strconv.Atoi(value); err == nil {
				cur.Port = p
			}
		case "user":
			cur.User = value
		case "identityfile":
			cur.IdentityFile = expandHome(value)
		case "tags":
			for _, t := range strings.Split(value, ",") {
				if t = strings.TrimSpace(t); t != "" {
					cur.Tags = append(cur.Tags, t)
				}
			}
		case "label":
			k, v, ok := strings.Cut(value, "=")
			if !ok {
				k, v, ok = strings.Cut(value, " ")
			}
			if ok {
				if cur.Labels == nil {
					cur.Labels = make(map[string]string)
				}
				cur.Labels[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		default:
			// unknown directive: ignored permissively
		}
	}
	if cur != nil {
		hosts[cur.Name] = *cur
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading inventory file %q: %w", path, err)
	}
	return hosts, nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
