package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cilaosgo/pkg/probe"
)

// Manager owns the optional server child process and tells the window when
// the narrative can be shown.
type Manager struct {
	logFunc    func(string)
	readyFunc  func(string)
	serverAddr string
	serverBin  string
	configPath string

	client       *http.Client
	tries        int
	pollInterval time.Duration

	mu        sync.Mutex
	serverCmd *exec.Cmd
	exited    chan struct{}
}

func NewManager(log, ready func(string), serverAddr, serverBin string) *Manager {
	return &Manager{
		logFunc:      log,
		readyFunc:    ready,
		serverAddr:   serverAddr,
		serverBin:    serverBin,
		configPath:   "configs/cilaos.yaml",
		client:       &http.Client{Timeout: time.Second},
		tries:        30,
		pollInterval: time.Second,
	}
}

func (m *Manager) log(msg string) {
	if m.logFunc != nil {
		m.logFunc(msg)
	}
}

func (m *Manager) baseURL() string {
	return "http://" + m.resolveAddr()
}

// Start runs in the background: it launches the server when needed and waits for /health.
func (m *Manager) Start() {
	go m.start(context.Background())
}

func (m *Manager) start(ctx context.Context) {
	if m.isServerReady(ctx) {
		m.log("> Server already active.")
	} else if m.serverBin != "" {
		needInit, err := m.checkPrerequisites()
		if err != nil {
			m.log(fmt.Sprintf("> Prerequisites missing: %v", err))
			return
		}
		if needInit {
			m.log("> No config found. Generating defaults...")
			if err := m.runWithOutput(m.command("-init-config")); err != nil {
				m.log(fmt.Sprintf("> Config generation failed: %v", err))
				return
			}
		}
		m.log("> Server not running. Starting " + filepath.Base(m.serverBin) + "...")
		if err := m.runServer(); err != nil {
			m.log(fmt.Sprintf("> Server failed to start: %v", err))
			return
		}
	}

	m.log("> Waiting for server...")
	if !m.waitReady(ctx) {
		m.log("> Error: Server timed out.")
		return
	}
	m.log("> Server ready!")
	if m.readyFunc != nil {
		m.readyFunc(m.baseURL() + "/")
	}
}

// checkPrerequisites fails when the server binary is missing and reports
// whether a default config has to be generated first.
func (m *Manager) checkPrerequisites() (needInit bool, err error) {
	info, err := os.Stat(m.serverBin)
	if err != nil {
		return false, err
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", m.serverBin)
	}
	_, err = os.Stat(filepath.Join(filepath.Dir(m.serverBin), m.configPath))
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	return false, err
}

func (m *Manager) command(args ...string) *exec.Cmd {
	args = append(args, "-config", m.configPath)
	cmd := exec.Command(m.serverBin, args...)
	cmd.Dir = filepath.Dir(m.serverBin)
	return cmd
}

func (m *Manager) runServer() error {
	cmd := m.command()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go m.streamReader(stdout)
	go m.streamReader(stderr)

	exited := make(chan struct{})
	m.mu.Lock()
	m.serverCmd = cmd
	m.exited = exited
	m.mu.Unlock()

	go func() {
		if err := cmd.Wait(); err != nil {
			m.log(fmt.Sprintf("Server exited with error: %v", err))
		}
		close(exited)
	}()
	return nil
}

func (m *Manager) runWithOutput(cmd *exec.Cmd) error {
	out, err := cmd.CombinedOutput()
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			m.log(line)
		}
	}
	return err
}

// Stop interrupts a server this kiosk started. Servers it found running are left alone.
func (m *Manager) Stop() {
	m.mu.Lock()
	cmd, exited := m.serverCmd, m.exited
	m.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	fmt.Println("> Kiosk closing: stopping server...")
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		// Windows has no interrupt for child processes.
		_ = cmd.Process.Kill()
	}
	select {
	case <-exited:
		fmt.Println("> Server stopped.")
	case <-time.After(5 * time.Second):
		fmt.Println("> Server did not stop in time, killing it.")
		_ = cmd.Process.Kill()
	}
}

func (m *Manager) streamReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.log(scanner.Text())
	}
}

func (m *Manager) resolveAddr() string {
	addr := m.serverAddr
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	if strings.HasPrefix(addr, "localhost:") {
		return strings.Replace(addr, "localhost:", "127.0.0.1:", 1)
	}
	return addr
}

func (m *Manager) isServerReady(ctx context.Context) bool {
	return probe.HTTPCheck(m.client, m.baseURL()+"/health")(ctx) == nil
}

func (m *Manager) waitReady(ctx context.Context) bool {
	for i := 0; i < m.tries; i++ {
		if m.isServerReady(ctx) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(m.pollInterval):
		}
	}
	return false
}
