// Package runner builds and executes installer command lines for each
// installer kind.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/logger"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

// DefaultEXEArgs are passed to executable installers that declare no silent
// arguments.
var DefaultEXEArgs = []string{"/quiet", "/norestart"}

// Runner executes installers. In dry-run mode it records the command and
// reports success without starting a process.
type Runner struct {
	dryRun bool
	logger ports.Logger
	stdout io.Writer
	stderr io.Writer
}

// Option customises a Runner.
type Option func(*Runner)

// WithDryRun forces dry-run mode on or off.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOutput tees child process output to the supplied writers in addition to
// capturing it.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		if stdout != nil {
			r.stdout = stdout
		}
		if stderr != nil {
			r.stderr = stderr
		}
	}
}

// New constructs a Runner. Dry run is the default on every platform other
// than Windows.
func New(opts ...Option) *Runner {
	r := &Runner{
		dryRun: runtime.GOOS != "windows",
		logger: logger.NewNoOp(),
		stdout: io.Discard,
		stderr: io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "runner")
	return r
}

// DryRun reports whether the runner skips process execution.
func (r *Runner) DryRun() bool { return r.dryRun }

// InstallCommand returns the argv that installs meta from installerPath.
func InstallCommand(meta app.Metadata, installerPath string) ([]string, error) {
	if installerPath == "" {
		return nil, app.NewError(app.ErrCodeConfiguration, fmt.Sprintf("no installer path for %s", meta.ID), nil, map[string]interface{}{"app_id": meta.ID})
	}

	switch meta.Kind {
	case app.KindMSI:
		argv := []string{"msiexec", "/i", installerPath, "/qn", "/norestart"}
		return append(argv, meta.SilentArgs...), nil
	case app.KindEXE:
		args := meta.SilentArgs
		if len(args) == 0 {
			args = DefaultEXEArgs
		}
		return append([]string{installerPath}, args...), nil
	case app.KindAppx:
		return []string{
			"powershell", "-NoProfile", "-NonInteractive", "-Command",
			fmt.Sprintf("Add-AppxPackage -Path '%s'", escapePowerShell(installerPath)),
		}, nil
	default:
		return nil, app.NewError(app.ErrCodeConfiguration, fmt.Sprintf("unsupported installer kind %q", meta.Kind), nil, map[string]interface{}{"app_id": meta.ID})
	}
}

// UninstallCommand returns the argv that removes meta. An explicit catalog
// uninstall command always wins; otherwise only MSI packages can be removed,
// using the stored installer path.
func UninstallCommand(meta app.Metadata, installerPath string) ([]string, error) {
	if meta.UninstallCommand != "" {
		argv, err := SplitCommandLine(meta.UninstallCommand)
		if err != nil {
			return nil, app.NewError(app.ErrCodeConfiguration, fmt.Sprintf("invalid uninstall command for %s", meta.ID), err, map[string]interface{}{"app_id": meta.ID})
		}
		if len(argv) == 0 {
			return nil, app.NewError(app.ErrCodeConfiguration, fmt.Sprintf("empty uninstall command for %s", meta.ID), nil, map[string]interface{}{"app_id": meta.ID})
		}
		return argv, nil
	}

	switch meta.Kind {
	case app.KindMSI:
		if installerPath == "" {
			return nil, app.NewError(app.ErrCodeConfiguration,
				fmt.Sprintf("cannot uninstall %s: no stored installer path", meta.ID), nil,
				map[string]interface{}{"app_id": meta.ID},
			)
		}
		return []string{"msiexec", "/x", installerPath, "/qn", "/norestart"}, nil
	default:
		return nil, app.NewError(app.ErrCodeConfiguration,
			fmt.Sprintf("cannot uninstall %s: %s installers require an explicit uninstall command", meta.ID, meta.Kind), nil,
			map[string]interface{}{"app_id": meta.ID},
		)
	}
}

// SplitCommandLine tokenizes s on whitespace, keeping double-quoted segments
// together. Backslashes are literal.
func SplitCommandLine(s string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote in command line")
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}

// Install runs the installer for meta.
func (r *Runner) Install(ctx context.Context, meta app.Metadata, installerPath string) (app.ExecutionResult, error) {
	argv, err := InstallCommand(meta, installerPath)
	if err != nil {
		return app.ExecutionResult{}, err
	}
	return r.run(ctx, meta.ID, "install", argv)
}

// Uninstall runs the uninstaller for meta.
func (r *Runner) Uninstall(ctx context.Context, meta app.Metadata, installerPath string) (app.ExecutionResult, error) {
	argv, err := UninstallCommand(meta, installerPath)
	if err != nil {
		return app.ExecutionResult{}, err
	}
	return r.run(ctx, meta.ID, "uninstall", argv)
}

// run executes argv to completion. The process is started with exec.Command,
// so cancelling ctx after start does not interrupt the installer.
func (r *Runner) run(ctx context.Context, appID, action string, argv []string) (app.ExecutionResult, error) {
	result := app.ExecutionResult{Command: append([]string(nil), argv...), DryRun: r.dryRun}
	log := r.logger.With("app_id", appID, "action", action)

	if r.dryRun {
		log.Info(ctx, "dry run, skipping installer", "command", result.CommandLine())
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, app.NewError(app.ErrCodeCancelled, fmt.Sprintf("%s of %s cancelled", action, appID), err, map[string]interface{}{"app_id": appID})
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = io.MultiWriter(r.stdout, &stdoutBuf)
	cmd.Stderr = io.MultiWriter(r.stderr, &stderrBuf)
	configureCommand(cmd)

	log.Debug(ctx, "starting installer", "command", result.CommandLine())
	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)
	result.Stdout = strings.TrimSpace(stdoutBuf.String())
	result.Stderr = strings.TrimSpace(stderrBuf.String())

	if runErr == nil {
		log.Info(ctx, "installer finished", "exit_code", 0, "duration_ms", result.Duration.Milliseconds())
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		log.Error(ctx, "installer failed", "exit_code", result.ExitCode, "output", result.PrimaryOutput())
		return result, app.NewInstallerError(appID,
			fmt.Sprintf("%s of %s exited with code %d", action, appID, result.ExitCode), runErr,
		).WithContext(map[string]interface{}{"exit_code": result.ExitCode, "command": result.CommandLine()})
	}

	result.ExitCode = -1
	log.Error(ctx, "installer could not start", "error", runErr)
	return result, app.NewInstallerError(appID, fmt.Sprintf("%s of %s could not start", action, appID), runErr).
		WithContext(map[string]interface{}{"command": result.CommandLine()})
}

func escapePowerShell(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var _ ports.InstallerRunner = (*Runner)(nil)
