package upload

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNoHost  = errors.New("upload: server URL has no host")
	ErrBadPort = errors.New("upload: invalid port in server URL")
)

// Target is a parsed upload server address.
type Target struct {
	Host    string
	Port    int
	HasPort bool
}

// ParseServerURL parses "host[:port]". A scheme prefix such as "tcp://" and
// any trailing path are ignored.
func ParseServerURL(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	host, portStr := s, ""
	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return Target{}, fmt.Errorf("%w: %q", ErrNoHost, s)
		}
		host = s[1:end]
		rest := s[end+1:]
		if strings.HasPrefix(rest, ":") {
			portStr = rest[1:]
		} else if rest != "" {
			return Target{}, fmt.Errorf("%w: %q", ErrBadPort, s)
		}
	} else if i := strings.LastIndexByte(s, ':'); i >= 0 {
		host, portStr = s[:i], s[i+1:]
	}
	if host == "" {
		return Target{}, ErrNoHost
	}
	t := Target{Host: host}
	if portStr == "" {
		return t, nil
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p < 1 || p > 65535 {
		return Target{}, fmt.Errorf("%w: %q", ErrBadPort, portStr)
	}
	t.Port, t.HasPort = p, true
	return t, nil
}

// Addr joins host (or a resolved address) with the target port, falling back
// to defaultPort.
func (t Target) Addr(host string, defaultPort int) string {
	port := t.Port
	if !t.HasPort {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func (t Target) String() string {
	if !t.HasPort {
		return t.Host
	}
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// Enumerate lists the regular files in dir, excluding current, in name
// order.
func Enumerate(dir, current string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || e.Name() == current {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}
