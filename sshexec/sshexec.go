// Package sshexec runs shell commands and copies files on fleet
// machines over SSH. It is the concrete remote-executor behind task
// dispatch; everything above it only sees Target and Result.
package sshexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/zedfleet/zedfleet/common"
)

// Target identifies one machine's SSH endpoint. Either KeyPath or
// Password must be set.
type Target struct {
	Host     string
	Port     int
	User     string
	KeyPath  string
	Password string
}

// Result mirrors the remote command outcome. ExitCode is -1 when the
// command never ran (connection or timeout failure).
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Client dials per call; fleet commands are rare enough that holding
// connections open buys nothing.
type Client struct {
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

func NewClient(connectTimeout, commandTimeout time.Duration) *Client {
	return &Client{
		ConnectTimeout: connectTimeout,
		CommandTimeout: commandTimeout,
	}
}

func (c *Client) dial(target Target) (*ssh.Client, error) {
	var auth []ssh.AuthMethod
	switch {
	case target.KeyPath != "":
		key, err := os.ReadFile(target.KeyPath)
		if err != nil {
			return nil, common.TransportFailuref("read ssh key: %v", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, common.TransportFailuref("parse ssh key: %v", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	case target.Password != "":
		auth = append(auth, ssh.Password(target.Password))
	default:
		return nil, common.TransportFailuref("ssh key or password required for %s", target.Host)
	}

	config := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.ConnectTimeout,
	}
	addr := net.JoinHostPort(target.Host, fmt.Sprintf("%d", target.Port))
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, common.TransportFailuref("dial %s: %v", addr, err)
	}
	return client, nil
}

// Run executes a command and returns exit code, stdout and stderr.
// The context and the command timeout both bound the call; on timeout
// the remote process may keep running, the task just fails.
func (c *Client) Run(ctx context.Context, target Target, command string) (Result, error) {
	client, err := c.dial(target)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, common.TransportFailuref("ssh session: %v", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	ctx, cancel := context.WithTimeout(ctx, c.CommandTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		session.Close()
		return Result{ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String()},
			common.TransportFailuref("command timed out on %s", target.Host)
	case err := <-done:
		result := Result{ExitCode: 0, Stdout: stdout.String(), Stderr: stderr.String()}
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				result.ExitCode = exitErr.ExitStatus()
				return result, nil
			}
			result.ExitCode = -1
			return result, common.TransportFailuref("run on %s: %v", target.Host, err)
		}
		return result, nil
	}
}

// Push copies a local file to the machine over SFTP.
func (c *Client) Push(ctx context.Context, target Target, localPath, remotePath string) error {
	return c.transfer(ctx, target, localPath, remotePath, true)
}

// Pull copies a remote file down over SFTP.
func (c *Client) Pull(ctx context.Context, target Target, remotePath, localPath string) error {
	return c.transfer(ctx, target, remotePath, localPath, false)
}

func (c *Client) transfer(ctx context.Context, target Target, src, dst string, push bool) error {
	client, err := c.dial(target)
	if err != nil {
		return err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return common.TransportFailuref("sftp session: %v", err)
	}
	defer sftpClient.Close()

	if push {
		if err := sftpClient.MkdirAll(path.Dir(dst)); err != nil {
			return common.TransportFailuref("create remote dir %q: %v", path.Dir(dst), err)
		}
	}

	done := make(chan error, 1)
	go func() {
		if push {
			done <- copyFile(
				func() (io.ReadCloser, error) { return os.Open(src) },
				func() (io.WriteCloser, error) { return sftpClient.Create(dst) },
			)
		} else {
			done <- copyFile(
				func() (io.ReadCloser, error) { return sftpClient.Open(src) },
				func() (io.WriteCloser, error) { return os.Create(dst) },
			)
		}
	}()

	select {
	case <-ctx.Done():
		return common.TransportFailuref("file transfer timed out on %s", target.Host)
	case err := <-done:
		if err != nil {
			return common.TransportFailuref("file transfer on %s: %v", target.Host, err)
		}
		return nil
	}
}

func copyFile(openSrc func() (io.ReadCloser, error), openDst func() (io.WriteCloser, error)) error {
	src, err := openSrc()
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := openDst()
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, src)
	return err
}
