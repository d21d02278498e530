package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
)

// poolLabel marks containers owned by the converter pool.
const poolLabel = "signature-plotter.converter-pool"

// Pool keeps a number of idle converter containers running so a conversion
// only pays for an exec, not for a container start.
type Pool struct {
	cli        dockerAPI
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	retryDelay time.Duration
}

// NewPool creates a pool; call Start to begin warming containers.
func NewPool(cli dockerAPI, cfg Config, logger *slog.Logger) *Pool {
	size := cfg.PoolSize
	if size < 1 {
		size = 1
	}
	return &Pool{
		cli:        cli,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, size),
		done:       make(chan struct{}),
		retryDelay: time.Second,
	}
}

// Start fills the pool in the background.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting converter container pool",
			slog.String("image", p.config.Image),
			slog.Int("size", cap(p.containers)),
		)
		p.wg.Add(1)
		go p.refill()
	})
}

// Stop ends the refill loop and removes every idle container.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("stopping converter container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.removeContainer(id)
			default:
				return
			}
		}
	})
}

// Acquire takes an idle container out of the pool. The caller owns it and
// must remove it after use. It blocks until one is ready or ctx is done.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("container pool is stopped")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Idle returns the number of warm containers currently waiting.
func (p *Pool) Idle() int {
	return len(p.containers)
}

// refill blocks on the channel send, so it creates a new container exactly
// when one has been taken.
func (p *Pool) refill() {
	defer p.wg.Done()

	for {
		id, err := p.createContainer()
		if err != nil {
			p.logger.Error("failed to create converter container", slog.String("error", err.Error()))
			select {
			case <-time.After(p.retryDelay):
				continue
			case <-p.done:
				return
			}
		}

		select {
		case p.containers <- id:
		case <-p.done:
			p.removeContainer(id)
			return
		}
	}
}

// createContainer starts an idle container running `sleep infinity`.
func (p *Pool) createContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,noexec,size=16m"},
	}

	resp, err := p.cli.ContainerCreate(ctx, &container.Config{
		Image:  p.config.Image,
		Cmd:    []string{"sleep", "infinity"},
		User:   "nobody",
		Labels: map[string]string{poolLabel: "true"},
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.removeContainer(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}

	return resp.ID, nil
}

// removeContainer force removes a container by ID.
func (p *Pool) removeContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Warn("failed to remove converter container", slog.String("id", id), slog.String("error", err.Error()))
	}
}
