// Package serviceuri parses service URIs of the form
// scheme:endpoint[?query], where scheme is bio4 (TCP), fs (local
// filesystem), or cache4 (a local fs cache in front of a bio4 service),
// and the query options are tmo=<1..255 seconds> and trust=fs.
//
// The grammar is not a URL: a cache4 endpoint ("host:port:/path") carries
// two colons before any slash, so net/url's authority parsing does not
// apply and the splitting is done directly.
package serviceuri

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmscott/blobio/errors"
)

// Service is a parsed service URI.
type Service struct {
	// Scheme is "bio4", "fs", or "cache4".
	Scheme string

	// Host and Port are set for bio4 and cache4.
	Host string
	Port int

	// Root is the store root directory, set for fs and cache4.
	Root string

	// Timeout is the tmo= query option; zero when absent.
	Timeout time.Duration

	// TrustFS is the trust=fs query option: skip read-back
	// digest verification when the filesystem is authoritative.
	TrustFS bool
}

// Parse parses uri into a Service.
func Parse(uri string) (Service, error) {
	scheme, rest, ok := strings.Cut(uri, ":")
	if !ok {
		return Service{}, errors.E(errors.Invalid, "serviceuri: no colon after scheme in "+uri)
	}

	endpoint := rest
	query := ""
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		endpoint, query = rest[:i], rest[i+1:]
	}

	var svc Service
	svc.Scheme = scheme
	var err error
	switch scheme {
	case "bio4":
		svc.Host, svc.Port, err = parseHostPort(endpoint)
	case "fs":
		if endpoint == "" {
			return Service{}, errors.E(errors.Invalid, "serviceuri: fs endpoint is empty")
		}
		svc.Root = endpoint
	case "cache4":
		// host:port:/path, split at the rightmost colon so an IPv6-free
		// host:port pair stays intact on the left.
		i := strings.LastIndexByte(endpoint, ':')
		if i < 0 {
			return Service{}, errors.E(errors.Invalid, "serviceuri: cache4 endpoint wants host:port:/path, got "+endpoint)
		}
		svc.Host, svc.Port, err = parseHostPort(endpoint[:i])
		if err == nil {
			svc.Root = endpoint[i+1:]
			if svc.Root == "" {
				err = errors.E(errors.Invalid, "serviceuri: cache4 endpoint has empty path")
			}
		}
	default:
		return Service{}, errors.E(errors.Invalid, "serviceuri: unknown scheme "+scheme)
	}
	if err != nil {
		return Service{}, err
	}

	if query != "" {
		if err := parseQuery(query, &svc); err != nil {
			return Service{}, err
		}
	}
	return svc, nil
}

func parseHostPort(endpoint string) (string, int, error) {
	host, portStr, ok := strings.Cut(endpoint, ":")
	if !ok || host == "" || portStr == "" {
		return "", 0, errors.E(errors.Invalid, "serviceuri: endpoint wants host:port, got "+endpoint)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, errors.E(errors.Invalid, "serviceuri: bad port "+portStr)
	}
	return host, port, nil
}

// parseQuery handles the recognized query options. An unknown option is
// a client error, not silently ignored.
func parseQuery(query string, svc *Service) error {
	for _, arg := range strings.Split(query, "&") {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || value == "" {
			return errors.E(errors.Invalid, "serviceuri: malformed query arg "+arg)
		}
		switch name {
		case "tmo":
			sec, err := strconv.Atoi(value)
			if err != nil || sec < 1 || sec > 255 {
				return errors.E(errors.Invalid, "serviceuri: tmo wants 1..255 seconds, got "+value)
			}
			svc.Timeout = time.Duration(sec) * time.Second
		case "trust":
			if value != "fs" {
				return errors.E(errors.Invalid, "serviceuri: trust wants fs, got "+value)
			}
			svc.TrustFS = true
		default:
			return errors.E(errors.Invalid, "serviceuri: unknown query arg "+name)
		}
	}
	return nil
}

// String formats s back into its URI form.
func (s Service) String() string {
	var b strings.Builder
	b.WriteString(s.Scheme)
	b.WriteByte(':')
	switch s.Scheme {
	case "bio4":
		fmt.Fprintf(&b, "%s:%d", s.Host, s.Port)
	case "fs":
		b.WriteString(s.Root)
	case "cache4":
		fmt.Fprintf(&b, "%s:%d:%s", s.Host, s.Port, s.Root)
	}
	sep := byte('?')
	if s.Timeout > 0 {
		b.WriteByte(sep)
		fmt.Fprintf(&b, "tmo=%d", int(s.Timeout/time.Second))
		sep = '&'
	}
	if s.TrustFS {
		b.WriteByte(sep)
		b.WriteString("trust=fs")
	}
	return b.String()
}
