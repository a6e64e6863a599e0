package params

import (
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/mitchellh/go-homedir"
	"path/filepath"
	"time"
)

func init() {
	metrics.Enabled = true
}

var DatadirRoot = func() string {
	root, err := homedir.Expand("~/.catfuse")
	if err != nil {
		return filepath.Join(".", ".catfuse")
	}
	return root
}()

var StateDBName = "state.db"
var StateLastBucket = []byte("last")
var StateLastKey = []byte("estimate")

var DefaultBufferSize = 1_000

var (
	CacheLastKnownTTL = 1 * time.Hour
)
