package ctl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lavanderia-bot/laundrybot/internal/clock"
	"github.com/lavanderia-bot/laundrybot/internal/content"
	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/weather"
)

const (
	defaultConsoleGroup    = "console@g.us"
	defaultConsoleIdentity = "5551900000000@s.whatsapp.net"
)

// printSink writes every outbound message to the terminal. Warnings arrive
// from timer goroutines, so writes are serialized.
type printSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printSink) Send(_ context.Context, _ string, msg laundry.Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "bot> %s\n\n", strings.ReplaceAll(msg.Text, "\n", "\n     "))
	return err
}

func newConsoleCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Chat with a local dispatcher on stdin",
		Long: "console feeds each stdin line to a laundry dispatcher as a group message and prints the replies.\n" +
			"Lines starting with '/' are console directives:\n" +
			"  /as <identity>     send following lines as another resident\n" +
			"  /advance <dur>     move the clock forward (only with --at)\n" +
			"  /status            print the machine and queue state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd, v)
		},
	}
	cmd.Flags().String("as", defaultConsoleIdentity, "Identity of the resident typing")
	cmd.Flags().String("group", defaultConsoleGroup, "Conversation id used for the session")
	cmd.Flags().String("content", "", "TOML content pack overriding the embedded replies")
	cmd.Flags().String("timezone", "America/Sao_Paulo", "Timezone for the usage window")
	cmd.Flags().String("at", "", "Pin the clock to this local time (HH:MM) and drive it with /advance")
	cmd.Flags().String("weather-city", "Viamão,RS", "Location passed to the weather provider")
	return cmd
}

func runConsole(cmd *cobra.Command, v *viper.Viper) error {
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	pack, err := content.Load(v.GetString("content"))
	if err != nil {
		return err
	}

	var fake *clock.Fake
	var clk clock.Clock = clock.Real()
	if at := strings.TrimSpace(v.GetString("at")); at != "" {
		start, err := pinnedTime(at, loc, time.Now())
		if err != nil {
			return err
		}
		fake = clock.NewFake(start)
		clk = fake
	}

	policy := laundry.DefaultPolicy()
	policy.Location = loc
	group := v.GetString("group")
	out := cmd.OutOrStdout()

	d := laundry.NewDispatcher(laundry.Config{
		Conversation:    group,
		Clock:           clk,
		Policy:          policy,
		Content:         pack,
		Sink:            &printSink{out: out},
		Weather:         weather.NewMockProvider(),
		WeatherLocation: v.GetString("weather-city"),
	})

	identity := v.GetString("as")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			next, err := consoleDirective(out, d, fake, identity, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			identity = next
			continue
		}
		if replies := d.Handle(cmd.Context(), laundry.Inbound{Conversation: group, Sender: identity, Text: line}); len(replies) == 0 {
			fmt.Fprintln(out, "(no reply)")
		}
	}
	return scanner.Err()
}

func consoleDirective(out io.Writer, d *laundry.Dispatcher, fake *clock.Fake, identity, line string) (string, error) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "as":
		if arg == "" {
			return identity, fmt.Errorf("/as needs an identity")
		}
		if !strings.Contains(arg, "@") {
			arg += "@s.whatsapp.net"
		}
		fmt.Fprintf(out, "now typing as %s\n", laundry.Mention(arg))
		return arg, nil
	case "advance":
		if fake == nil {
			return identity, fmt.Errorf("/advance requires --at")
		}
		dur, err := time.ParseDuration(arg)
		if err != nil {
			return identity, err
		}
		fake.Advance(dur)
		fmt.Fprintf(out, "clock is now %s\n", fake.Now().Format("15:04"))
		return identity, nil
	case "status":
		writeStatus(out, d.Status())
		return identity, nil
	default:
		return identity, fmt.Errorf("unknown directive /%s", name)
	}
}

// pinnedTime returns today's date in loc at the given HH:MM.
func pinnedTime(hhmm string, loc *time.Location, now time.Time) (time.Time, error) {
	t, err := time.ParseInLocation("15:04", hhmm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be HH:MM: %w", err)
	}
	day := now.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
