package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"os/exec"
	"time"

	"filedrop/internal/api"
	"filedrop/internal/config"
)

const (
	pingTimeout        = 500 * time.Millisecond
	serverStartTimeout = 3 * time.Second
	serverPollInterval = 100 * time.Millisecond
)

func withClient(cfg *config.Config, fn func(*api.Client) error) error {
	stop, err := ensureServer(cfg)
	if err != nil {
		return err
	}
	defer stop()

	return fn(api.NewClient(cfg.APIURL))
}

// ensureServer returns once something answers /health at api_url, spawning a
// child `filedrop srv` if needed. The returned func stops that child and is
// a no-op when an existing server was found.
func ensureServer(cfg *config.Config) (func(), error) {
	client := api.NewClient(cfg.APIURL)
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx); err == nil {
		return func() {}, nil
	}
	if err := canAutoStart(cfg); err != nil {
		return nil, err
	}

	cmd, err := startServerProcess(cfg)
	if err != nil {
		return nil, err
	}
	stop := func() {
		_ = cmd.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() { _ = cmd.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(serverStartTimeout):
			_ = cmd.Process.Kill()
			<-done
		}
	}

	if err := waitForServer(client, serverStartTimeout); err != nil {
		stop()
		return nil, err
	}
	return stop, nil
}

// canAutoStart rejects setups where a short-lived child server would be
// useless or refused: memory storage vanishes with the child, and remote
// hosts are not ours to bind.
func canAutoStart(cfg *config.Config) error {
	if cfg.Storage.Backend == config.BackendMemory {
		return fmt.Errorf("no filedrop server at %s and the memory backend cannot be auto-started", cfg.APIURL)
	}
	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid api_url %q", cfg.APIURL)
	}
	host := u.Hostname()
	if ip := net.ParseIP(host); host != "localhost" && (ip == nil || !ip.IsLoopback()) {
		return fmt.Errorf("no filedrop server at %s; auto-start only applies to loopback addresses", cfg.APIURL)
	}
	return nil
}

func startServerProcess(cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(exe, "srv")
	cmd.Env = append(os.Environ(), serverEnv(cfg)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// serverEnv pins the child server to the storage this process resolved.
func serverEnv(cfg *config.Config) []string {
	env := []string{
		"FILEDROP_API_URL=" + cfg.APIURL,
		"FILEDROP_STORAGE_BACKEND=" + cfg.Storage.Backend,
	}
	if cfg.Storage.Path != "" {
		env = append(env, "FILEDROP_STORAGE_PATH="+cfg.Storage.Path)
	}
	return env
}

func waitForServer(client *api.Client, timeout time.Duration) error {
	ticker := time.NewTicker(serverPollInterval)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 2*serverPollInterval)
		err := client.Ping(ctx)
		cancel()
		if err == nil {
			return nil
		}
		var opErr *net.OpError
		if !errors.As(err, &opErr) {
			// Something answered that is not a filedrop server.
			return err
		}

		select {
		case <-ticker.C:
		case <-deadline:
			return errors.New("server did not start in time")
		}
	}
}
