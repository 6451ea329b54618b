package launcher

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestShellSSH(t *testing.T) {
	var out bytes.Buffer
	s := &Shell{In: strings.NewReader("admin\n"), Out: &out}
	cmd, err := s.Command(Request{Host: "127.0.0.1", Port: 40000, Device: "10.0.0.9", Protocol: SSH})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ssh",
		"-o", "HostKeyAlias=10.0.0.9",
		"-o", "KexAlgorithms=+diffie-hellman-group1-sha1,diffie-hellman-group-exchange-sha1",
		"-o", "Ciphers=+aes256-cbc",
		"admin@127.0.0.1", "-p", "40000",
	}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("args = %q\nwant   %q", cmd.Args, want)
	}
	if out.String() != "Username: " {
		t.Errorf("prompt = %q", out.String())
	}
}

func TestShellPromptLeavesRestOfInput(t *testing.T) {
	in := strings.NewReader("admin\nls -l\n")
	s := &Shell{In: in}
	cmd, err := s.Command(Request{Host: "127.0.0.1", Port: 40000, Device: "sw", Protocol: SSH})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(strings.Join(cmd.Args, " "), "admin@127.0.0.1") {
		t.Errorf("args = %q", cmd.Args)
	}
	rest, _ := io.ReadAll(in)
	if string(rest) != "ls -l\n" {
		t.Errorf("input left for the session = %q", rest)
	}
}

func TestShellSSHWithUserSkipsPrompt(t *testing.T) {
	s := &Shell{}
	cmd, err := s.Command(Request{Host: "127.0.0.1", Port: 2222, Device: "d", Protocol: SSH, Username: "ops"})
	if err != nil {
		t.Fatal(err)
	}
	if got := cmd.Args[len(cmd.Args)-3]; got != "ops@127.0.0.1" {
		t.Errorf("destination = %q", got)
	}
}

func TestShellEmptyUsername(t *testing.T) {
	s := &Shell{In: strings.NewReader("\n")}
	if _, err := s.Command(Request{Host: "127.0.0.1", Port: 1, Protocol: SSH}); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestShellTelnet(t *testing.T) {
	cmd, err := (&Shell{}).Command(Request{Host: "127.0.0.1", Port: 40000, Device: "10.0.0.9", Protocol: Telnet})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"telnet", "127.0.0.1", "40000"}; !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("args = %q, want %q", cmd.Args, want)
	}
}

func TestPutty(t *testing.T) {
	cmd, _ := Putty{}.Command(Request{Host: "127.0.0.1", Port: 40000, Device: "10.0.0.9", Protocol: Telnet})
	want := []string{"putty.exe", "-telnet", "127.0.0.1", "-P", "40000", "-loghost", "10.0.0.9"}
	if !reflect.DeepEqual(cmd.Args, want) {
		t.Errorf("args = %q, want %q", cmd.Args, want)
	}
}

func TestForPlatform(t *testing.T) {
	if _, ok := ForPlatform("Windows").(Putty); !ok {
		t.Error("windows should use PuTTY")
	}
	for _, goos := range []string{"linux", "darwin", "freebsd"} {
		if _, ok := ForPlatform(goos).(*Shell); !ok {
			t.Errorf("%s should use the shell launcher", goos)
		}
	}
}

func TestDefaultPort(t *testing.T) {
	if SSH.DefaultPort() != 22 || Telnet.DefaultPort() != 23 {
		t.Errorf("default ports = %d/%d", SSH.DefaultPort(), Telnet.DefaultPort())
	}
}
