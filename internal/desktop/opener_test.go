package desktop

import (
	"errors"
	"strings"
	"testing"
)

func TestCommand(t *testing.T) {
	cases := map[string]string{
		"linux":   "xdg-open",
		"freebsd": "xdg-open",
		"darwin":  "open",
		"windows": "rundll32",
	}
	for goos, want := range cases {
		name, args := command(goos, "/tmp/site")
		if name != want {
			t.Errorf("%s: name = %q, want %q", goos, name, want)
		}
		if args[len(args)-1] != "/tmp/site" {
			t.Errorf("%s: target not last arg: %v", goos, args)
		}
	}
}

func TestSystemOpen(t *testing.T) {
	var got []string
	s := &System{goos: "linux", run: func(name string, args ...string) error {
		got = append([]string{name}, args...)
		return nil
	}}
	if err := s.Open("http://127.0.0.1:8123"); err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, " ") != "xdg-open http://127.0.0.1:8123" {
		t.Errorf("ran %q", got)
	}

	s.run = func(string, ...string) error { return errors.New("no display") }
	if err := s.Open("/x"); err == nil || !strings.Contains(err.Error(), "no display") {
		t.Errorf("err = %v", err)
	}
}
