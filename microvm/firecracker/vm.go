package firecracker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// State is a VM's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateRunning
	StateCleaned
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateCleaned:
		return "cleaned"
	default:
		return "unknown"
	}
}

const (
	outputStartMarker = "===RTFS_OUTPUT_START==="
	outputEndMarker   = "===RTFS_OUTPUT_END==="
	exitCodeMarker    = "===RTFS_EXIT_CODE===:"
)

// kernelLogLine matches serial-console kernel log lines like
// "[    0.123456] ..." so they can be filtered out of script output.
var kernelLogLine = regexp.MustCompile(`^\[\s*[0-9]+\.[0-9]+\]`)

// vmUsage tracks a VM's observed resource consumption and any security
// violation recorded against it, for pool health checks.
type vmUsage struct {
	mu               sync.Mutex
	memoryUsedMB     int
	cpuTime          time.Duration
	securityViolated bool
}

func (u *vmUsage) record(memMB int, cpu time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.memoryUsedMB = memMB
	u.cpuTime = cpu
}

func (u *vmUsage) markViolation() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.securityViolated = true
}

func (u *vmUsage) snapshot() (memMB int, cpu time.Duration, violated bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.memoryUsedMB, u.cpuTime, u.securityViolated
}

// vm is one Firecracker-backed sandbox instance.
type vm struct {
	id         string
	cfg        Config
	state      State
	createdAt  time.Time
	overlayDir string
	socketPath string
	cmd        *exec.Cmd
	api        *apiClient
	usage      *vmUsage
}

func newVM(id string, cfg Config) *vm {
	return &vm{id: id, cfg: cfg, state: StateUninitialized, usage: &vmUsage{}}
}

// healthy mirrors the pool's admission rule: age under the configured
// ceiling, no recorded security violation, and memory usage under limit.
func (v *vm) healthy() bool {
	if time.Since(v.createdAt) >= v.cfg.MaxVMAge {
		return false
	}
	memMB, _, violated := v.usage.snapshot()
	if violated {
		return false
	}
	if v.cfg.Limits.MaxMemoryMB > 0 && memMB > v.cfg.Limits.MaxMemoryMB {
		return false
	}
	return true
}

// start builds the overlay rootfs, injects the script/args/init, launches
// the VM process, and configures it over the API socket, bringing it to
// StateRunning.
func (v *vm) start(ctx context.Context, script, argsJSON, language string) error {
	dir, err := os.MkdirTemp("", "ccos-firecracker-"+v.id+"-")
	if err != nil {
		return fmt.Errorf("create overlay dir: %w", err)
	}
	v.overlayDir = dir

	overlayRootfs := filepath.Join(dir, "rootfs.ext4")
	if err := copyFile(v.cfg.RootfsPath, overlayRootfs); err != nil {
		return fmt.Errorf("copy base rootfs: %w", err)
	}

	initScript := renderInitScript(language)
	if err := v.injectFiles(ctx, overlayRootfs, map[string]string{
		scriptPathFor(language): script,
		"/input.json":           argsJSON,
		"/rtfs_init":            initScript,
	}); err != nil {
		return fmt.Errorf("inject files via debugfs: %w", err)
	}

	v.socketPath = filepath.Join(dir, "firecracker.sock")
	v.cmd = exec.CommandContext(ctx, v.cfg.FirecrackerBinary, "--api-sock", v.socketPath)
	if v.cfg.Security.JailerEnabled {
		v.cmd = jailerCommand(ctx, v.cfg, v.socketPath)
	}
	if err := v.cmd.Start(); err != nil {
		return fmt.Errorf("launch firecracker process: %w", err)
	}
	v.state = StateInitialized

	v.api = newAPIClient(v.socketPath)
	bootArgs := v.cfg.BootArgs
	if bootArgs == "" {
		bootArgs = "init=/rtfs_init"
	}
	if err := v.api.putBootSource(ctx, v.cfg.KernelPath, bootArgs); err != nil {
		return err
	}
	if err := v.api.putDrive(ctx, "rootfs", overlayRootfs, true, false); err != nil {
		return err
	}
	if err := v.api.putMachineConfig(ctx, v.cfg.VCPUCount, v.cfg.MemorySizeMB); err != nil {
		return err
	}
	if v.cfg.Security.EnableBalloon {
		if err := v.api.putBalloon(ctx); err != nil {
			return err
		}
	}
	if v.cfg.Security.EnableEntropy {
		if err := v.api.putEntropy(ctx); err != nil {
			return err
		}
	}
	if v.cfg.NetworkEnabled && v.cfg.TapDevice != "" {
		if err := v.api.putNetworkInterface(ctx, "eth0", v.cfg.TapDevice); err != nil {
			return err
		}
	}
	if err := v.api.putAction(ctx, "InstanceStart"); err != nil {
		return err
	}
	v.state = StateRunning
	v.createdAt = time.Now()
	return nil
}

// injectFiles shells out to debugfs to write files into the rootfs image
// before boot; debugfs operates offline on the ext4 image directly.
func (v *vm) injectFiles(ctx context.Context, rootfsPath string, files map[string]string) error {
	for dest, content := range files {
		tmp, err := os.CreateTemp("", "ccos-fc-inject-")
		if err != nil {
			return err
		}
		if _, err := tmp.WriteString(content); err != nil {
			tmp.Close()
			return err
		}
		tmp.Close()
		cmd := exec.CommandContext(ctx, v.cfg.DebugfsBinary, "-w", "-R",
			fmt.Sprintf("write %s %s", tmp.Name(), dest), rootfsPath)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("debugfs write %s: %w", dest, err)
		}
		os.Remove(tmp.Name())
	}
	return nil
}

// poweroff sends SendCtrlAltDel, falling back to killing the process if it
// does not exit within the grace period.
func (v *vm) poweroff(ctx context.Context, grace time.Duration) {
	if v.api != nil {
		_ = v.api.putAction(ctx, "SendCtrlAltDel")
	}
	done := make(chan struct{})
	go func() {
		if v.cmd != nil && v.cmd.Process != nil {
			_, _ = v.cmd.Process.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(grace):
		if v.cmd != nil && v.cmd.Process != nil {
			_ = v.cmd.Process.Kill()
		}
	}
}

// cleanup removes the overlay directory and socket and marks the VM
// cleaned; it is safe to call more than once.
func (v *vm) cleanup() {
	if v.overlayDir != "" {
		_ = os.RemoveAll(v.overlayDir)
	}
	v.state = StateCleaned
}

// sampleUsage records the VM process's current memory/CPU usage via
// gopsutil, used both for the returned execution metadata and for the
// pool's health check.
func (v *vm) sampleUsage() {
	if v.cmd == nil || v.cmd.Process == nil {
		return
	}
	proc, err := process.NewProcess(int32(v.cmd.Process.Pid))
	if err != nil {
		return
	}
	memInfo, err := proc.MemoryInfo()
	memMB := 0
	if err == nil && memInfo != nil {
		memMB = int(memInfo.RSS / (1024 * 1024))
	}
	cpuPercent, _ := proc.CPUPercent()
	v.usage.record(memMB, time.Duration(cpuPercent*float64(time.Second)))
	if v.cfg.Limits.MaxMemoryMB > 0 && memMB > v.cfg.Limits.MaxMemoryMB {
		v.usage.markViolation()
	}
}

// parseVMOutput extracts script output between the start/end markers,
// filters kernel log lines, and appends the exit code if non-zero.
func parseVMOutput(stdout string) string {
	startIdx := strings.Index(stdout, outputStartMarker)
	if startIdx < 0 {
		return heuristicOutput(stdout)
	}
	afterStart := startIdx + len(outputStartMarker)
	endOffset := strings.Index(stdout[afterStart:], outputEndMarker)
	if endOffset < 0 {
		return heuristicOutput(stdout)
	}
	endIdx := afterStart + endOffset
	scriptOutput := stdout[afterStart:endIdx]

	var kept []string
	for _, line := range strings.Split(scriptOutput, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !kernelLogLine.MatchString(trimmed) {
			kept = append(kept, line)
		}
	}
	final := strings.TrimSpace(strings.Join(kept, "\n"))

	exitIdx := strings.Index(stdout, exitCodeMarker)
	if exitIdx >= 0 {
		after := stdout[exitIdx+len(exitCodeMarker):]
		fields := strings.Fields(after)
		if len(fields) > 0 {
			if code, err := strconv.Atoi(fields[0]); err == nil && code != 0 {
				return fmt.Sprintf("%s\n[Exit code: %d]", final, code)
			}
		}
	}
	return final
}

// heuristicOutput is a best-effort fallback when the expected markers are
// missing from the captured stdout.
func heuristicOutput(stdout string) string {
	var kept []string
	capture := false
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "init") || strings.Contains(line, "python") || strings.Contains(line, "node") {
			capture = true
		}
		if capture && !kernelLogLine.MatchString(strings.TrimSpace(line)) {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
