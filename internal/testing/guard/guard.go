// Package guard flips the runtime into test mode on import so tests never
// start real servers or workers by accident.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("VISITAS_TEST_MODE") == "" {
			_ = os.Setenv("VISITAS_TEST_MODE", "1")
		}
	})
}
