// Package runner launches the freqtrade optimizer and its report tool inside
// docker containers, streaming the optimizer output live while capturing the
// random seed it announces.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"hyperbatch/internal/batch"
)

var (
	ansiEscape  = regexp.MustCompile(`\x1B\[[0-?]*[ -/]*[@-~]`)
	seedPattern = regexp.MustCompile(`(?i)optimizer random state:\s*(\d+)`)
)

// Options configure a DockerRunner.
type Options struct {
	// Image is the freqtrade docker image.
	Image string
	// HostUserDataPath is the user-data directory on the host, mounted into
	// the container at ContainerUserDataPath.
	HostUserDataPath      string
	ContainerUserDataPath string
	// DefaultJobs is passed as -j when a run does not set its own.
	DefaultJobs string
	// ShowOutputFile, when set, receives a copy of every report rendered by
	// Show.
	ShowOutputFile string
	// Stdout receives the live optimizer stream. Defaults to os.Stdout.
	Stdout io.Writer
}

// DockerRunner implements batch.OptimizerRunner over docker run.
type DockerRunner struct {
	log  *logrus.Logger
	opts Options
}

// New creates a DockerRunner.
func New(log *logrus.Logger, opts Options) *DockerRunner {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &DockerRunner{log: log, opts: opts}
}

// Hyperopt runs one optimization. Output is streamed live to Stdout and
// simultaneously scanned for the optimizer's announced random state. When the
// run supplies its own random state the scan is skipped and that value is
// echoed back.
func (r *DockerRunner) Hyperopt(ctx context.Context, spec batch.RunSpec) (string, error) {
	args := buildHyperoptArgs(r.opts, spec)
	r.log.WithField("command", strings.Join(args, " ")).Info("running hyperopt")

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	capture := &seedCapture{enabled: spec.RandomState == ""}
	cmd.Stdout = io.MultiWriter(r.opts.Stdout, capture)
	cmd.Stderr = cmd.Stdout

	err := cmd.Run()
	seed := spec.RandomState
	if capture.enabled {
		seed = capture.Seed()
	}
	if err != nil {
		return seed, fmt.Errorf("hyperopt run failed: %w", err)
	}
	if seed != "" {
		r.log.WithField("random_state", seed).Info("hyperopt finished")
	} else {
		r.log.Warn("hyperopt finished without announcing a random state")
	}
	return seed, nil
}

// Show renders the report for a result artifact and returns its stdout. A
// copy is persisted to ShowOutputFile when configured.
func (r *DockerRunner) Show(ctx context.Context, configFile, resultsBasename string) (string, error) {
	args := buildShowArgs(r.opts, configFile, resultsBasename)
	r.log.WithField("command", strings.Join(args, " ")).Info("running hyperopt-show")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hyperopt-show failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	out := stdout.String()
	if r.opts.ShowOutputFile != "" {
		if err := os.WriteFile(r.opts.ShowOutputFile, []byte(out), 0o644); err != nil {
			r.log.WithError(err).Warn("failed to persist hyperopt-show output")
		}
	}
	return out, nil
}

// buildHyperoptArgs assembles the docker argv for one optimization run.
func buildHyperoptArgs(opts Options, spec batch.RunSpec) []string {
	args := []string{
		"docker", "run", "--rm",
		"-v", fmt.Sprintf("%s:%s", opts.HostUserDataPath, opts.ContainerUserDataPath),
		opts.Image, "hyperopt",
		"--config", containerPath(opts.ContainerUserDataPath, spec.ConfigFile),
		"--strategy", spec.Strategy,
		"--hyperopt-loss", spec.LossFunction,
		"--epochs", spec.Epochs,
		"--timerange", spec.Timerange,
	}
	if spec.Spaces != "" {
		args = append(args, "--spaces")
		args = append(args, strings.Fields(spec.Spaces)...)
	}
	if spec.Jobs != "" {
		args = append(args, "-j", spec.Jobs)
	} else if opts.DefaultJobs != "" {
		args = append(args, "-j", opts.DefaultJobs)
	}
	if spec.MinTrades != "" {
		args = append(args, "--min-trades", spec.MinTrades)
	}
	if spec.RandomState != "" {
		args = append(args, "--random-state", spec.RandomState)
	}
	return args
}

// buildShowArgs assembles the docker argv for rendering one report.
func buildShowArgs(opts Options, configFile, resultsBasename string) []string {
	return []string{
		"docker", "run", "--rm",
		"-v", fmt.Sprintf("%s:%s", opts.HostUserDataPath, opts.ContainerUserDataPath),
		opts.Image, "hyperopt-show",
		"--config", containerPath(opts.ContainerUserDataPath, configFile),
		"--hyperopt-filename", resultsBasename,
		"--best", "-n", "1", "--no-color",
	}
}

// containerPath joins the mounted user-data path with a host-relative file
// name.
func containerPath(containerUserData, file string) string {
	return strings.TrimSuffix(containerUserData, "/") + "/" + strings.TrimPrefix(file, "/")
}

// seedBufferCap bounds the scan window of seedCapture. The announcement is
// one short line, so a small tail is enough to match it even when it arrives
// split across writes.
const seedBufferCap = 4096

// seedCapture scans a write stream for the optimizer's random-state
// announcement. ANSI escape sequences are stripped so colored output still
// matches. Only a bounded tail of the stream is retained.
type seedCapture struct {
	enabled bool
	buf     bytes.Buffer
	seed    string
}

func (c *seedCapture) Write(p []byte) (int, error) {
	if !c.enabled || c.seed != "" {
		return len(p), nil
	}
	c.buf.Write(ansiEscape.ReplaceAll(p, nil))
	if m := seedPattern.FindSubmatch(c.buf.Bytes()); m != nil {
		c.seed = string(m[1])
		c.buf.Reset()
		return len(p), nil
	}
	if c.buf.Len() > seedBufferCap {
		tail := append([]byte(nil), c.buf.Bytes()[c.buf.Len()-seedBufferCap:]...)
		c.buf.Reset()
		c.buf.Write(tail)
	}
	return len(p), nil
}

// Seed returns the captured random state, or "" when none was announced.
func (c *seedCapture) Seed() string {
	return c.seed
}
