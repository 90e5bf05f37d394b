package auth

import (
	"net/http"
	"strings"
)

// Policy maps analyser routes to the permission they require.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request skips auth.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiredPermission resolves the permission a request needs. Reads
// outside the guarded routes need none; any other write needs PermManage.
func (p Policy) RequiredPermission(r *http.Request) (Permission, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	switch {
	case path == "/windows":
		return PermTriggerWindows, true
	case path == "/simulator/tick":
		return PermAdvanceClock, true
	case strings.HasPrefix(path, "/reports/"):
		return PermReadReports, true
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return "", false
	}
	return PermManage, true
}
