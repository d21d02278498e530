// Package docker runs an external SVG to G-code converter inside
// short-lived, network-less containers taken from a pre-warmed pool.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/sakif/signature-plotter/internal/converter"
)

// maxStderr bounds how much converter stderr ends up in an error message.
const maxStderr = 512

// dockerAPI is the subset of *client.Client the engine uses.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (container.ExecCreateResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	Close() error
}

// Engine implements converter.Engine by piping the SVG into Config.Command.
type Engine struct {
	cli    dockerAPI
	config Config
	logger *slog.Logger
	pool   *Pool
}

var _ converter.Engine = (*Engine)(nil)

// New connects to the Docker daemon from the environment, optionally pulls
// the image, and starts the container pool.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	if cfg.PullImage {
		pullCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()

		logger.Info("pulling converter image", slog.String("image", cfg.Image))
		reader, err := cli.ImagePull(pullCtx, cfg.Image, image.PullOptions{})
		if err != nil {
			cli.Close()
			return nil, fmt.Errorf("failed to pull image: %w", err)
		}
		// the pull only completes once the progress stream is drained
		_, _ = io.Copy(io.Discard, reader)
		reader.Close()
	}

	return newEngine(cli, cfg, logger), nil
}

func newEngine(cli dockerAPI, cfg Config, logger *slog.Logger) *Engine {
	e := &Engine{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	e.pool.Start()
	return e
}

// Close shuts down the pool and the docker client.
func (e *Engine) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// Convert runs one conversion in a fresh container. An exit status listed in
// Config.InputExitCodes is reported as converter.ErrInvalidInput. Other
// non-zero statuses, daemon and timeout failures are returned as plain errors.
func (e *Engine) Convert(ctx context.Context, svg string) (string, error) {
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	containerID, err := e.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get container from pool: %w", err)
	}
	// containers are single use
	defer e.pool.removeContainer(containerID)

	execResp, err := e.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          e.config.Command,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		done <- err
	}()
	go func() {
		if _, err := io.Copy(attachResp.Conn, strings.NewReader(svg)); err != nil {
			e.logger.Debug("writing svg to converter stdin", slog.String("error", err.Error()))
		}
		_ = attachResp.CloseWrite()
	}()

	select {
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("reading converter output: %w", err)
		}
	case <-ctx.Done():
		return "", fmt.Errorf("conversion aborted: %w", ctx.Err())
	}

	inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		if slices.Contains(e.config.InputExitCodes, inspect.ExitCode) {
			return "", fmt.Errorf("%w: converter exited with status %d: %s",
				converter.ErrInvalidInput, inspect.ExitCode, tail(stderr.String(), maxStderr))
		}
		return "", fmt.Errorf("converter crashed with status %d: %s",
			inspect.ExitCode, tail(stderr.String(), maxStderr))
	}

	e.logger.Debug("docker conversion finished",
		slog.String("container", shortID(containerID)),
		slog.Int("stdout_bytes", stdout.Len()),
	)
	return stdout.String(), nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
