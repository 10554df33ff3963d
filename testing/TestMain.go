// Package testing switches the application into test mode when blank imported by a
// test package.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("STOCKEASY_TEST_MODE", "1")
		if os.Getenv("DATA_DRIVER") == "" {
			_ = os.Setenv("DATA_DRIVER", "memory")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
