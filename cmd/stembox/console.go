package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/stembox/internal/app/notification"
	"github.com/osa030/stembox/internal/app/playback"
	"github.com/osa030/stembox/internal/app/session"
	"github.com/osa030/stembox/internal/infra/config"
	"github.com/osa030/stembox/internal/infra/engine"
	"github.com/osa030/stembox/internal/infra/logger"
)

const helpText = `Commands:
  play              start or resume playback
  pause             pause playback
  resume            resume playback
  stop              stop and rewind
  seek <0..1>       jump to a fraction of the track
  toggle <stem>     flip a stem on or off
  on <stem>         enable a stem
  off <stem>        disable a stem
  gain <stem> <0..1>
  master <0..1>     set the master volume
  status            show state, position and mix
  stems             list stems
  help              show this help
  quit              exit
`

// console binds line commands to the controller. Prompt updates only happen
// on the notification goroutine.
type console struct {
	ctrl      *playback.Controller
	cfg       *config.Config
	out       io.Writer
	setPrompt func(string)
}

// runConsole opens the device and the controller, loads the source and runs
// the line editor until quit, EOF or ctx is done.
func runConsole(ctx context.Context, cfg *config.Config, load func(*console) error) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(playback.Event{}),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return errors.Wrap(err, "failed to open console")
	}
	defer rl.Close()

	// Keep log lines from tearing the prompt.
	defer logger.Redirect(rl.Stderr())()

	device, err := engine.New(cfg.Device.Type, cfg.Device.Settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := device.Close(); err != nil {
			zlog.Warn().Err(err).Msg("failed to close device")
		}
	}()

	bridge := notification.NewManager(cfg.Player.UITick())
	ctrl := playback.NewController(playback.Config{
		TempDir:         cfg.Player.TempDir,
		PollInterval:    cfg.Player.PollInterval(),
		RebuildDebounce: cfg.Player.RebuildDebounce(),
		EndTolerance:    cfg.Player.EndTolerance(),
		MasterGain:      cfg.Player.Gain(),
	}, device, session.NewStore(nil, cfg.Player.DecodeWorkers), bridge)
	defer func() { _ = ctrl.Close() }()

	c := &console{
		ctrl: ctrl,
		cfg:  cfg,
		out:  rl.Stdout(),
		setPrompt: func(p string) {
			rl.SetPrompt(p)
			rl.Refresh()
		},
	}

	bridgeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	bridge.Subscribe(c.onNotification)
	go bridge.Run(bridgeCtx)

	if err := load(c); err != nil {
		return errors.Wrap(err, c.message(err))
	}
	c.exec("stems")

	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if err != nil {
			// io.EOF or the console was closed
			return nil
		}
		if quit := c.exec(line); quit {
			return nil
		}
	}
}

// exec runs one command line and reports whether the console should exit.
func (c *console) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprint(c.out, helpText)
	case "play":
		err = c.ctrl.Play()
	case "pause":
		err = c.ctrl.Pause()
	case "resume":
		err = c.ctrl.Resume()
	case "stop":
		err = c.ctrl.Stop()
	case "seek":
		var f float64
		if f, err = floatArg(args, 0); err == nil {
			err = c.ctrl.Seek(f)
		}
	case "toggle":
		if err = needArgs(args, 1); err == nil {
			var enabled bool
			if enabled, err = c.ctrl.Toggle(args[0]); err == nil {
				fmt.Fprintf(c.out, "%s %s\n", args[0], onOff(enabled))
			}
		}
	case "on", "off":
		if err = needArgs(args, 1); err == nil {
			err = c.ctrl.SetEnabled(args[0], cmd == "on")
		}
	case "gain":
		var g float64
		if g, err = floatArg(args, 1); err == nil {
			err = c.ctrl.SetGain(args[0], g)
		}
	case "master":
		var g float64
		if g, err = floatArg(args, 0); err == nil {
			err = c.ctrl.SetMasterGain(g)
		}
	case "status":
		c.printStatus()
	case "stems":
		c.printStems()
	default:
		err = errors.Newf("unknown command %q (try help)", cmd)
	}

	if err != nil {
		fmt.Fprintln(c.out, c.message(err))
	}
	return false
}

// onNotification runs on the bridge goroutine.
func (c *console) onNotification(n notification.Notification) {
	e := n.Event
	switch e.Type {
	case playback.EventFinished:
		fmt.Fprintln(c.out, "finished")
	case playback.EventError:
		fmt.Fprintln(c.out, c.message(e.Err))
	}
	c.setPrompt(prompt(e))
}

// message returns the configured text for err, with the cause for
// errors that have no dedicated message.
func (c *console) message(err error) string {
	code := playback.ErrorCode(err)
	if code == playback.CodeDefault {
		return fmt.Sprintf("%s: %v", c.cfg.GetMessage(code), err)
	}
	return c.cfg.GetMessage(code)
}

func (c *console) printStatus() {
	st := c.ctrl.Status()
	fmt.Fprintf(c.out, "%s %s %s/%s master=%.2f",
		st.Mode, st.State, formatDuration(st.Position), formatDuration(st.Duration), st.MasterGain)
	if st.Starting || st.Rebuilding {
		fmt.Fprint(c.out, " (rendering)")
	}
	fmt.Fprintln(c.out)
	c.printStems()
}

func (c *console) printStems() {
	for _, t := range c.ctrl.Status().Tracks {
		fmt.Fprintf(c.out, "  %-12s %-3s gain=%.2f\n", t.Name, onOff(t.Enabled), t.Gain)
	}
}

func prompt(e playback.Event) string {
	if e.Duration == 0 {
		return fmt.Sprintf("[%s] > ", e.State)
	}
	return fmt.Sprintf("[%s %s/%s] > ", e.State, formatDuration(e.Position), formatDuration(e.Duration))
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

func needArgs(args []string, n int) error {
	if len(args) < n {
		return errors.Newf("expected %d argument(s)", n)
	}
	return nil
}

// floatArg parses args[i] as a float.
func floatArg(args []string, i int) (float64, error) {
	if err := needArgs(args, i+1); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(args[i], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid number %q", args[i])
	}
	return v, nil
}
