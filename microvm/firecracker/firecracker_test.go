package firecracker

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mandubian/ccos-sub004/microvm"
)

func TestParseVMOutputExtractsBetweenMarkers(t *testing.T) {
	stdout := "[    0.001234] kernel boot noise\n" +
		"===RTFS_OUTPUT_START===\n" +
		"[    0.002345] more kernel noise\n" +
		"hello from script\n" +
		"===RTFS_OUTPUT_END===\n" +
		"===RTFS_EXIT_CODE===:0\n"

	got := parseVMOutput(stdout)
	if got != "hello from script" {
		t.Fatalf("got %q", got)
	}
}

func TestParseVMOutputAppendsNonZeroExitCode(t *testing.T) {
	stdout := "===RTFS_OUTPUT_START===\n" +
		"boom\n" +
		"===RTFS_OUTPUT_END===\n" +
		"===RTFS_EXIT_CODE===:42\n"

	got := parseVMOutput(stdout)
	if !strings.Contains(got, "boom") || !strings.Contains(got, "[Exit code: 42]") {
		t.Fatalf("got %q", got)
	}
}

func TestParseVMOutputFallsBackWhenMarkersMissing(t *testing.T) {
	stdout := "[    0.001] kernel line\npython output here\n"
	got := parseVMOutput(stdout)
	if !strings.Contains(got, "python output here") {
		t.Fatalf("got %q", got)
	}
	if strings.Contains(got, "kernel line") {
		t.Fatalf("kernel log line leaked through: %q", got)
	}
}

func TestRenderInitScriptProbesLanguageInterpreters(t *testing.T) {
	script := renderInitScript(string(microvm.LanguagePython))
	if !strings.Contains(script, "python3") {
		t.Fatalf("expected python interpreter probe, got %q", script)
	}
	if !strings.Contains(script, "===RTFS_OUTPUT_START===") {
		t.Fatalf("expected output start marker in init script")
	}
	if !strings.Contains(script, "/script.py") {
		t.Fatalf("expected script path for python, got %q", script)
	}
}

func TestScriptPathForLanguages(t *testing.T) {
	cases := map[microvm.Language]string{
		microvm.LanguagePython:     "/script.py",
		microvm.LanguageJavaScript: "/script.js",
		microvm.LanguageShell:      "/script.sh",
		microvm.LanguageRTFS:       "/script.rtfs",
	}
	for lang, want := range cases {
		if got := scriptPathFor(string(lang)); got != want {
			t.Fatalf("%s: got %s want %s", lang, got, want)
		}
	}
}

func TestVMHealthyRejectsStaleOrViolated(t *testing.T) {
	cfg := DefaultConfig()
	v := newVM("vm-test", cfg)
	v.createdAt = time.Now()
	if !v.healthy() {
		t.Fatalf("freshly created vm should be healthy")
	}
	v.usage.markViolation()
	if v.healthy() {
		t.Fatalf("vm with a recorded security violation must not be healthy")
	}
	stale := newVM("vm-stale", cfg)
	stale.createdAt = time.Now().Add(-2 * cfg.MaxVMAge)
	if stale.healthy() {
		t.Fatalf("vm older than MaxVMAge must not be healthy")
	}
}

func TestPoolReusesHealthyVM(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPoolSize = 2
	p := newPool(cfg)

	v := p.acquire()
	v.createdAt = time.Now()
	p.release(context.Background(), v)

	if len(p.idle) != 1 {
		t.Fatalf("expected 1 idle vm after release, got %d", len(p.idle))
	}
}
