// Package config loads CCOS runtime configuration from environment
// variables into explicit, documented-default structs, matching the
// teacher's preference for typed Options structs over a config-file
// parsing library (concrete config-file parsing is explicitly out of
// scope; this package only reads os.Getenv).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the top-level runtime configuration for a CCOS process.
type Config struct {
	// Engine selects the orchestrator's workflow engine: "inproc" (default)
	// or "temporal".
	Engine string
	// TemporalHostPort is the Temporal frontend address, used only when
	// Engine is "temporal".
	TemporalHostPort string
	// TemporalTaskQueue names the task queue plan-execution workflows run on.
	TemporalTaskQueue string

	// RedisAddr, when non-empty, enables the distributed Pulse-backed event
	// bus instead of the in-process default.
	RedisAddr string

	// MongoURI, when non-empty, enables MongoDB-backed stores for the intent
	// graph and marketplace instead of the in-memory default; the causal
	// chain stays in memory.
	MongoURI    string
	MongoDBName string

	// PolicyMode selects the default runtime context mode: "pure",
	// "controlled", or "full".
	PolicyMode string

	// FirecrackerKernelPath and FirecrackerRootfsPath locate the microVM
	// boot artifacts. The CLI wiring does not read these fields; it always
	// uses the stub microVM provider.
	FirecrackerKernelPath string
	FirecrackerRootfsPath string
	FirecrackerBinPath    string
	DebugfsBinPath        string

	// CapabilityCallTimeout bounds a single capability dispatch.
	CapabilityCallTimeout time.Duration

	// MaxResolutionRounds bounds the resolution loop's resolve/re-synthesize
	// cycle before giving up on an intent graph.
	MaxResolutionRounds int
}

// Load reads Config from the environment, applying documented defaults for
// anything unset.
func Load() Config {
	return Config{
		Engine:                getenvDefault("CCOS_ENGINE", "inproc"),
		TemporalHostPort:      getenvDefault("CCOS_TEMPORAL_HOST_PORT", "localhost:7233"),
		TemporalTaskQueue:     getenvDefault("CCOS_TEMPORAL_TASK_QUEUE", "ccos-plans"),
		RedisAddr:             os.Getenv("CCOS_REDIS_ADDR"),
		MongoURI:              os.Getenv("CCOS_MONGO_URI"),
		MongoDBName:           getenvDefault("CCOS_MONGO_DB", "ccos"),
		PolicyMode:            getenvDefault("CCOS_POLICY_MODE", "controlled"),
		FirecrackerKernelPath: os.Getenv("CCOS_FIRECRACKER_KERNEL"),
		FirecrackerRootfsPath: os.Getenv("CCOS_FIRECRACKER_ROOTFS"),
		FirecrackerBinPath:    getenvDefault("CCOS_FIRECRACKER_BIN", "firecracker"),
		DebugfsBinPath:        getenvDefault("CCOS_DEBUGFS_BIN", "debugfs"),
		CapabilityCallTimeout: getenvDuration("CCOS_CAPABILITY_TIMEOUT", 30*time.Second),
		MaxResolutionRounds:   getenvInt("CCOS_MAX_RESOLUTION_ROUNDS", 3),
	}
}

func getenvDefault(key, dflt string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return dflt
}

func getenvInt(key string, dflt int) int {
	v := os.Getenv(key)
	if v == "" {
		return dflt
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return dflt
	}
	return n
}

func getenvDuration(key string, dflt time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return dflt
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return dflt
	}
	return d
}
