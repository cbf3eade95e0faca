package firecracker

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/mandubian/ccos-sub004/microvm"
)

// scriptPathFor returns the in-guest path the injected script is written
// to, keyed by language so the init script can pick an interpreter by
// extension as well as by probing candidate binaries.
func scriptPathFor(language string) string {
	switch microvm.Language(language) {
	case microvm.LanguagePython:
		return "/script.py"
	case microvm.LanguageJavaScript:
		return "/script.js"
	case microvm.LanguageRuby:
		return "/script.rb"
	case microvm.LanguageLua:
		return "/script.lua"
	case microvm.LanguageRTFS:
		return "/script.rtfs"
	default:
		return "/script.sh"
	}
}

// interpreterCandidates lists binary paths the init script probes in order,
// running the first one found.
func interpreterCandidates(language string) []string {
	switch microvm.Language(language) {
	case microvm.LanguagePython:
		return []string{"/usr/bin/python3", "/usr/local/bin/python3", "/usr/bin/python"}
	case microvm.LanguageJavaScript:
		return []string{"/usr/bin/node", "/usr/local/bin/node"}
	case microvm.LanguageRuby:
		return []string{"/usr/bin/ruby", "/usr/local/bin/ruby"}
	case microvm.LanguageLua:
		return []string{"/usr/bin/lua", "/usr/local/bin/lua", "/usr/bin/lua5.3"}
	case microvm.LanguageRTFS:
		return []string{"/usr/local/bin/rtfs"}
	default:
		return []string{"/bin/sh"}
	}
}

// renderInitScript produces the guest-side init program: mounts /proc and
// /sys, runs the injected script against the injected args with the
// interpreter it finds first, emits the output markers around its output,
// then powers the VM off.
func renderInitScript(language string) string {
	scriptPath := scriptPathFor(language)
	candidates := interpreterCandidates(language)

	probe := ""
	for _, c := range candidates {
		probe += fmt.Sprintf("if [ -x %q ]; then INTERPRETER=%q; fi\n", c, c)
	}

	return fmt.Sprintf(`#!/bin/sh
mount -t proc proc /proc 2>/dev/null
mount -t sysfs sysfs /sys 2>/dev/null

INTERPRETER=""
%s
ARGS="$(cat /input.json 2>/dev/null)"

echo "===RTFS_OUTPUT_START==="
if [ -n "$INTERPRETER" ]; then
	"$INTERPRETER" %s "$ARGS" 2>&1
	EXIT_CODE=$?
else
	echo "no interpreter found for %s" >&2
	EXIT_CODE=127
fi
echo "===RTFS_OUTPUT_END==="
echo "===RTFS_EXIT_CODE===:$EXIT_CODE"

sync
echo o > /proc/sysrq-trigger 2>/dev/null || reboot -f 2>/dev/null || halt -f 2>/dev/null
`, probe, scriptPath, language)
}

// jailerCommand wraps the firecracker invocation with the jailer binary
// when SecurityFeatures.JailerEnabled is set, confining it to a chroot
// under the configured UID/GID and (optionally) network namespace.
func jailerCommand(ctx context.Context, cfg Config, socketPath string) *exec.Cmd {
	args := []string{
		"--id", "ccos-" + socketPath,
		"--exec-file", cfg.FirecrackerBinary,
		"--uid", fmt.Sprint(cfg.Security.JailerUID),
		"--gid", fmt.Sprint(cfg.Security.JailerGID),
	}
	if cfg.Security.JailerChrootBase != "" {
		args = append(args, "--chroot-base-dir", cfg.Security.JailerChrootBase)
	}
	if cfg.Security.JailerNetNS != "" {
		args = append(args, "--netns", cfg.Security.JailerNetNS)
	}
	args = append(args, "--", "--api-sock", socketPath)
	return exec.CommandContext(ctx, "jailer", args...)
}
