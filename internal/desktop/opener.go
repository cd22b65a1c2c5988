// Package desktop hands URLs and folders to the platform's default opener.
package desktop

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens a URL or folder outside the application.
type Opener interface {
	Open(target string) error
}

// System opens targets with the OS default handler.
type System struct {
	goos string
	run  func(name string, args ...string) error
}

// NewSystem creates a System opener for the running OS.
func NewSystem() *System {
	return &System{goos: runtime.GOOS, run: startDetached}
}

// Open launches the platform opener for target without waiting for it.
func (s *System) Open(target string) error {
	name, args := command(s.goos, target)
	if err := s.run(name, args...); err != nil {
		return fmt.Errorf("desktop: open %s: %w", target, err)
	}
	return nil
}

func command(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
