// Package testing prepares the process environment for tests that boot
// application code. Import it for its side effects:
//
//	import _ "github.com/lehine87/educanvas/testing"
package testing

import "os"

// Defaults applied when a variable is unset. Secrets are long enough to pass
// the production length check.
var Defaults = map[string]string{
	"EDUCANVAS_TEST_MODE": "1",
	"SESSION_SECRET":      "test-session-secret-test-session-secret",
	"CSRF_SECRET":         "test-csrf-secret-test-csrf-secret",
	"JWT_SECRET":          "test-jwt-secret-test-jwt-secret-0000",
}

func init() {
	for key, value := range Defaults {
		if _, ok := os.LookupEnv(key); !ok {
			_ = os.Setenv(key, value)
		}
	}
}
