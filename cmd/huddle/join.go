package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/Wyydra/huddle/internal/client/call"
	"github.com/Wyydra/huddle/internal/client/signaling"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagUserID  string
	flagName    string
	flagSilence bool
)

var joinCmd = &cobra.Command{
	Use:   "join <room-id>",
	Short: "Join a call",
	Long: `Join a call as a WebRTC participant. Lines typed while in the call are
sent as chat messages. Commands:

  /audio   toggle the microphone
  /video   toggle the camera
  /who     list participants
  /quit    leave the call`,
	Args: cobra.ExactArgs(1),
	RunE: runJoin,
}

func init() {
	joinCmd.Flags().StringVar(&flagUserID, "user-id", "", "user id (random when empty)")
	joinCmd.Flags().StringVarP(&flagName, "name", "n", defaultName(), "display name")
	joinCmd.Flags().BoolVar(&flagSilence, "silence", true, "send a silent audio stream")
}

func dialRelay(ctx context.Context, url string) (call.Connection, error) {
	c, err := signaling.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func runJoin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	factory, err := call.NewPionFactory(cfg.STUNServers)
	if err != nil {
		return err
	}

	userID := flagUserID
	if userID == "" {
		userID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	lines := readLines(cmd.InOrStdin())
	prompter := &linePrompter{out: out, lines: lines}

	c := &call.Call{
		URL:      cfg.WebSocketURL(),
		RoomID:   args[0],
		UserID:   userID,
		UserName: flagName,
		Source:   call.StaticSource{StreamID: userID, Silence: flagSilence},
		Factory:  factory,
		Dial:     dialRelay,
		Observer: &console{out: out},
	}

	return joinLoop(ctx, c, lines, prompter, out)
}

// joinLoop runs sessions until the user leaves. A retry re-runs the whole
// join: media, connection and room.
func joinLoop(ctx context.Context, c *call.Call, lines <-chan string, prompter Prompter, out io.Writer) error {
	for {
		err := runSession(ctx, c, lines, out)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		if !call.Retryable(err) {
			return err
		}

		fmt.Fprintln(out, err)
		retry, perr := prompter.Confirm("Try again?")
		if perr != nil || !retry {
			return err
		}
	}
}

func runSession(ctx context.Context, c *call.Call, lines <-chan string, out io.Writer) error {
	s, err := c.Join(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Joined room %s. Type to chat, /quit to leave.\n", c.RoomID)

	for {
		select {
		case <-ctx.Done():
			s.Hangup()
			return nil
		case <-s.Done():
			return s.Wait()
		case line, ok := <-lines:
			if !ok || runCommand(s.Orchestrator(), line, out) {
				s.Hangup()
				return nil
			}
		}
	}
}

// runCommand applies one console line and reports whether to leave.
func runCommand(o *call.Orchestrator, line string, out io.Writer) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "/quit", "/leave":
		return true
	case "/audio":
		enabled, err := o.ToggleAudio()
		report(out, "Microphone", enabled, err)
	case "/video":
		enabled, err := o.ToggleVideo()
		report(out, "Camera", enabled, err)
	case "/who":
		fmt.Fprintln(out, participantsView(o.Remotes()))
	default:
		if strings.HasPrefix(line, "/") {
			fmt.Fprintf(out, "Unknown command %s\n", line)
			return false
		}
		if err := o.SendChat(line); err != nil && !errors.Is(err, call.ErrEmptyMessage) {
			fmt.Fprintln(out, errorStyle.Render("Chat failed: "+err.Error()))
		}
	}
	return false
}

func report(out io.Writer, what string, enabled bool, err error) {
	if err != nil {
		fmt.Fprintf(out, "%s toggle failed: %v\n", what, err)
		return
	}
	fmt.Fprintf(out, "%s %s\n", what, onOff(enabled))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// console prints call updates. Callbacks arrive from several goroutines.
type console struct {
	mu    sync.Mutex
	out   io.Writer
	tiles map[string]call.Remote
}

func (c *console) RemotesChanged(remotes []call.Remote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]call.Remote, len(remotes))
	for _, r := range remotes {
		seen[r.SocketID] = r
		if prev, ok := c.tiles[r.SocketID]; !ok {
			fmt.Fprintf(c.out, "* %s is here\n", r.Name)
		} else if r.Degraded && !prev.Degraded {
			fmt.Fprintf(c.out, "* %s is still connecting (link lost)\n", r.Name)
		} else if prev.State != r.State {
			fmt.Fprintf(c.out, "* %s %s\n", r.Name, r.State)
		}
	}
	for id, prev := range c.tiles {
		if _, ok := seen[id]; !ok {
			fmt.Fprintf(c.out, "* %s left\n", prev.Name)
		}
	}
	c.tiles = seen
}

func (c *console) ChatReceived(e call.ChatEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s %s\n", mutedStyle.Render(e.Time.Local().Format("15:04")), senderStyle.Render(e.Sender+":"), e.Message)
}

func (c *console) Notice(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, noticeStyle.Render("! "+err.Error()))
}
