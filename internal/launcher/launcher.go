package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Protocol is the terminal protocol spoken through the relay.
type Protocol string

const (
	SSH    Protocol = "ssh"
	Telnet Protocol = "telnet"
)

// DefaultPort is the device port used when none is given.
func (p Protocol) DefaultPort() int {
	if p == Telnet {
		return 23
	}
	return 22
}

// Request describes one terminal session through the local relay endpoint.
type Request struct {
	Host     string // local relay address
	Port     int    // local relay port
	Device   string // real device address, used as host key alias / log host
	Protocol Protocol
	Username string
}

// SessionLauncher builds the command that opens an interactive session.
type SessionLauncher interface {
	Command(req Request) (*exec.Cmd, error)
}

// ForPlatform picks the launcher for a GOOS value.
func ForPlatform(goos string) SessionLauncher {
	if strings.EqualFold(goos, "windows") {
		return Putty{}
	}
	return &Shell{In: os.Stdin, Out: os.Stderr}
}

// Start runs the session command attached to this process's terminal.
func Start(l SessionLauncher, req Request) (*exec.Cmd, error) {
	cmd, err := l.Command(req)
	if err != nil {
		return nil, err
	}
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}
	return cmd, nil
}

// Shell launches the system ssh or telnet client.
type Shell struct {
	// In and Out are used to prompt for a username when none is set.
	In  io.Reader
	Out io.Writer
}

var legacySSHOptions = []string{
	"-o", "KexAlgorithms=+diffie-hellman-group1-sha1,diffie-hellman-group-exchange-sha1",
	"-o", "Ciphers=+aes256-cbc",
}

func (s *Shell) Command(req Request) (*exec.Cmd, error) {
	port := strconv.Itoa(req.Port)
	if req.Protocol == Telnet {
		return exec.Command("telnet", req.Host, port), nil
	}
	user := req.Username
	if user == "" {
		var err error
		if user, err = s.prompt("Username: "); err != nil {
			return nil, err
		}
	}
	args := []string{"-o", "HostKeyAlias=" + req.Device}
	args = append(args, legacySSHOptions...)
	args = append(args, user+"@"+req.Host, "-p", port)
	return exec.Command("ssh", args...), nil
}

func (s *Shell) prompt(label string) (string, error) {
	if s.In == nil {
		return "", errors.New("no username given and no input to prompt on")
	}
	if s.Out != nil {
		_, _ = io.WriteString(s.Out, label)
	}
	line, err := readLine(s.In)
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read username: %w", err)
		}
		return "", errors.New("empty username")
	}
	return line, nil
}

// readLine reads up to and including '\n' one byte at a time, so nothing past
// the line is taken from r before the child process inherits it.
func readLine(r io.Reader) (string, error) {
	var sb strings.Builder
	b := make([]byte, 1)
	for {
		n, err := r.Read(b)
		if n == 1 {
			sb.WriteByte(b[0])
			if b[0] == '\n' {
				return sb.String(), nil
			}
		}
		if err != nil {
			return sb.String(), err
		}
	}
}

// Putty launches PuTTY, which handles both protocols itself.
type Putty struct{}

func (Putty) Command(req Request) (*exec.Cmd, error) {
	return exec.Command("putty.exe",
		"-"+string(req.Protocol), req.Host,
		"-P", strconv.Itoa(req.Port),
		"-loghost", req.Device,
	), nil
}
