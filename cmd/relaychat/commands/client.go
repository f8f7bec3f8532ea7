package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/relaychat/pkg/client"
	"github.com/marmos91/relaychat/pkg/wire"
)

var (
	clientUsername string
	clientDir      string
)

var clientCmd = &cobra.Command{
	Use:   "client <host:port>",
	Short: "Connect to a relaychat server",
	Long: `Connect to a relaychat server as an interactive client.

Commands typed at the prompt are sent to the server. Lines not starting
with '/' are broadcast to the current room. File transfers read from and
write to the working directory (--dir, default: current directory).

Examples:
  # Connect to a local server
  relaychat client localhost:6667

  # Connect with a preset username
  relaychat client chat.example.com:6667 --username alice`,
	Args: cobra.ExactArgs(1),
	RunE: runClient,
}

func init() {
	clientCmd.Flags().StringVar(&clientUsername, "username", "", "Username to log in with (prompted if empty)")
	clientCmd.Flags().StringVar(&clientDir, "dir", "", "Working directory for file transfers (default: current directory)")
}

func runClient(cmd *cobra.Command, args []string) error {
	workDir := clientDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		workDir = wd
	}

	c, err := client.Dial(args[0], 10*time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	stdin := bufio.NewScanner(os.Stdin)

	if err := loginLoop(c, stdin, workDir); err != nil {
		return err
	}

	fmt.Printf("Connected to %s. Type /help for commands, /exit to quit.\n", args[0])

	session := &clientSession{c: c, workDir: workDir}

	serverDone := make(chan error, 1)
	go session.readLoop(serverDone)

	lines := make(chan string)
	go func() {
		for stdin.Scan() {
			lines <- stdin.Text()
		}
		close(lines)
	}()

	for {
		select {
		case err := <-serverDone:
			if err != nil {
				fmt.Println("Disconnected from server.")
			}
			return nil

		case line, ok := <-lines:
			if !ok {
				session.send("/exit")
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "/help":
				printHelp()
			case line == "/exit":
				session.send("/exit")
				select {
				case <-serverDone:
				case <-time.After(2 * time.Second):
				}
				return nil
			case strings.HasPrefix(line, "/"):
				session.send(line)
			default:
				// Bare lines broadcast to the current room.
				session.send("/broadcast " + line)
			}
		}
	}
}

// loginLoop retries the handshake until the server accepts a username. The
// connection stays open across rejected attempts.
func loginLoop(c *client.Client, stdin *bufio.Scanner, workDir string) error {
	for {
		username := clientUsername
		clientUsername = ""
		if username == "" {
			fmt.Print("Username: ")
			if !stdin.Scan() {
				return fmt.Errorf("no username provided")
			}
			username = strings.TrimSpace(stdin.Text())
		}

		err := c.Login(username, workDir)
		if err == nil {
			fmt.Printf("Logged in as %s\n", username)
			return nil
		}
		if !errors.Is(err, client.ErrLoginRejected) {
			return err
		}
		fmt.Printf("Login failed: %v\n", err)
	}
}

// clientSession serializes socket writes between the command loop and the
// upload path inside the read loop.
type clientSession struct {
	c       *client.Client
	workDir string
	sendMu  sync.Mutex
}

func (s *clientSession) send(line string) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.c.Send(line); err != nil {
		fmt.Printf("Send failed: %v\n", err)
	}
}

// readLoop prints server messages and reacts to the file transfer protocol:
// an upload request streams the named file up, a download header streams the
// incoming file into the working directory.
func (s *clientSession) readLoop(done chan<- error) {
	for {
		msg, err := s.c.Recv()
		if err != nil {
			done <- err
			return
		}

		switch {
		case strings.HasPrefix(msg, wire.TagUploadRequest+":"):
			s.handleUploadRequest(msg)

		case strings.HasPrefix(msg, wire.TagDownload+":"):
			s.handleDownload(msg)

		case msg == wire.MsgServerShutdown:
			fmt.Println(msg)
			done <- nil
			return

		default:
			fmt.Println(msg)
		}
	}
}

func (s *clientSession) handleUploadRequest(msg string) {
	rest := strings.TrimPrefix(msg, wire.TagUploadRequest+":")
	filename, target, ok := strings.Cut(rest, ":")
	if !ok {
		fmt.Printf("Malformed upload request: %s\n", msg)
		return
	}

	path := filepath.Join(s.workDir, filename)

	s.sendMu.Lock()
	size, err := s.c.UploadFile(path)
	s.sendMu.Unlock()
	if err != nil {
		fmt.Printf("Upload of '%s' failed: %v\n", filename, err)
		return
	}
	fmt.Printf("Uploaded '%s' (%d bytes) for %s\n", filename, size, target)
}

func (s *clientSession) handleDownload(msg string) {
	header, err := client.ParseDownloadHeader(msg)
	if err != nil {
		fmt.Printf("Malformed download header: %v\n", err)
		return
	}

	data, err := s.c.Download()
	if err != nil {
		fmt.Printf("Download of '%s' failed: %v\n", header.Filename, err)
		return
	}

	// Strip any path component from the advertised name before writing.
	path := filepath.Join(s.workDir, filepath.Base(header.Filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Printf("Saving '%s' failed: %v\n", header.Filename, err)
		return
	}
	fmt.Printf("Received file '%s' (%d bytes) from %s\n", header.Filename, len(data), header.Sender)
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  /join <room_name>               - Join or create a room")
	fmt.Println("  /leave                          - Leave the current room")
	fmt.Println("  /broadcast <message>            - Send message to everyone in room")
	fmt.Println("  /whisper <username> <message>   - Send private message to user")
	fmt.Println("  /sendfile <filename> <username> - Send file to specific user")
	fmt.Println("  /exit                           - Disconnect from server")
	fmt.Println("  /help                           - Display this help message")
	fmt.Println("Note: Messages without '/' are automatically broadcast")
}
