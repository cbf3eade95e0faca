// Package firecracker implements a microvm.Provider backed by the
// Firecracker hypervisor: one VM process per execution, booted from a
// kernel/rootfs pair, driven over its API-socket-over-Unix-domain-sockets
// HTTP interface, with script and arguments injected into the rootfs via
// debugfs before boot and output recovered from serial console markers
// after the VM powers itself off.
package firecracker

import "time"

// SecurityFeatures toggles optional VM hardening.
type SecurityFeatures struct {
	SeccompEnabled    bool
	SeccompFilterPath string
	JailerEnabled     bool
	JailerUID         int
	JailerGID         int
	JailerChrootBase  string
	JailerNetNS       string
	EnableBalloon     bool
	EnableEntropy     bool
}

// ResourceLimits bounds what one VM execution may consume; a violation
// takes the VM out of the reusable pool.
type ResourceLimits struct {
	MaxCPUTime     time.Duration
	MaxMemoryMB    int
	MaxDiskIOMB    int
	MaxNetworkIOMB int
	MaxProcesses   int
	MaxOpenFiles   int
}

// AttestationConfig holds expected kernel and rootfs hashes. The provider
// does not read it: no hash is computed or compared before a VM boots.
type AttestationConfig struct {
	Enabled             bool
	ExpectedKernelHash  string
	ExpectedRootfsHash  string
}

// Config is one Firecracker-backed Provider's configuration.
type Config struct {
	FirecrackerBinary string
	DebugfsBinary     string
	KernelPath        string
	RootfsPath        string
	VCPUCount         int
	MemorySizeMB      int
	NetworkEnabled    bool
	TapDevice         string
	BootArgs          string

	Security    SecurityFeatures
	Limits      ResourceLimits
	Attestation AttestationConfig

	// MaxPoolSize bounds how many idle VMs are kept warm.
	MaxPoolSize int
	// MaxVMAge is the health-check age ceiling for a pooled VM.
	MaxVMAge time.Duration
	// ExecutionTimeout bounds one execute_program call's wall clock.
	ExecutionTimeout time.Duration
}

// DefaultConfig mirrors the conservative single-vCPU, 30s-timeout defaults
// a one-shot sandboxed script execution should start from.
func DefaultConfig() Config {
	return Config{
		FirecrackerBinary: "firecracker",
		DebugfsBinary:     "debugfs",
		KernelPath:        "/opt/firecracker/vmlinux",
		RootfsPath:        "/opt/firecracker/rootfs.ext4",
		VCPUCount:         1,
		MemorySizeMB:      128,
		Limits: ResourceLimits{
			MaxCPUTime:     30 * time.Second,
			MaxMemoryMB:    128,
			MaxProcesses:   32,
			MaxOpenFiles:   64,
			MaxDiskIOMB:    64,
			MaxNetworkIOMB: 0,
		},
		MaxPoolSize:      4,
		MaxVMAge:         time.Hour,
		ExecutionTimeout: 30 * time.Second,
	}
}
