package gateway

import (
	"net/http"
	"runtime"
)

// Version, Commit, and BuiltAt are set at build time via -ldflags, the
// way the teacher's cmd/goclaw injects its own Version variable.
var (
	Version = "dev"
	Commit  = "unknown"
	BuiltAt = "unknown"
)

// infoResponse is the body returned by GET /info, mirroring
// original_source/server/core.rs's ServerInfo.
type infoResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	BuiltAt string `json:"built_at"`
	OS      string `json:"os"`
}

func currentInfo() infoResponse {
	return infoResponse{
		Version: Version,
		Commit:  Commit,
		BuiltAt: BuiltAt,
		OS:      runtime.GOOS,
	}
}

// versionHeaders sets the response headers original_source/server/version.rs
// attaches to every response via a Rocket fairing.
func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Powered-By", "WARK (https://github.com/wasm-oj/wark)")
		w.Header().Set("X-Version", Version)
		next.ServeHTTP(w, r)
	})
}
