package ctl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lavanderia-bot/laundrybot/internal/laundry"
	"github.com/lavanderia-bot/laundrybot/internal/store"
)

func newStatusCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show machine state of a running bot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			group := strings.TrimSpace(v.GetString("group"))
			if group == "" {
				return fmt.Errorf("--group is required")
			}
			client := &http.Client{Timeout: v.GetDuration("timeout")}
			base := strings.TrimRight(v.GetString("addr"), "/")

			var st laundry.Status
			if err := getJSON(client, base+"/v1/laundry/groups/"+url.PathEscape(group), &st); err != nil {
				return err
			}

			var history struct {
				Usage []store.UsageRecord `json:"usage"`
			}
			if n := v.GetInt("history"); n > 0 {
				path := fmt.Sprintf("%s/v1/laundry/groups/%s/history?limit=%d", base, url.PathEscape(group), n)
				if err := getJSON(client, path, &history); err != nil {
					return err
				}
			}

			if v.GetBool("json") {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"status": st, "history": history.Usage})
			}
			writeStatus(cmd.OutOrStdout(), st)
			writeHistory(cmd.OutOrStdout(), history.Usage)
			return nil
		},
	}
	cmd.Flags().String("addr", "http://localhost:3000", "Base URL of the running bot")
	cmd.Flags().String("group", "", "Conversation id of the laundry group")
	cmd.Flags().Int("history", 0, "Also list the last N finished sessions")
	cmd.Flags().Duration("timeout", 5*time.Second, "HTTP timeout")
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

func getJSON(client *http.Client, target string, out any) error {
	res, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("request %s: %w", target, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("request %s: status %d: %s", target, res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

func writeStatus(w io.Writer, st laundry.Status) {
	if st.Busy && st.Session != nil {
		fmt.Fprintf(w, "machine: busy, %s since %s until %s\n",
			laundry.Mention(st.Session.Holder),
			st.Session.StartedAt.Format("15:04"),
			st.Session.ScheduledEnd.Format("15:04"))
	} else {
		fmt.Fprintln(w, "machine: free")
	}
	if len(st.Queue) == 0 {
		fmt.Fprintln(w, "queue: empty")
		return
	}
	fmt.Fprintf(w, "queue: %d waiting\n", len(st.Queue))
	for _, e := range st.Queue {
		fmt.Fprintf(w, "  %d. %s\n", e.Position, laundry.Mention(e.Identity))
	}
}

func writeHistory(w io.Writer, usage []store.UsageRecord) {
	if len(usage) == 0 {
		return
	}
	fmt.Fprintln(w, "recent sessions:")
	for _, u := range usage {
		mark := ""
		if u.Overtime {
			mark = " (overtime)"
		}
		fmt.Fprintf(w, "  %s %s %s%s\n",
			u.FinishedAt.Format("2006-01-02 15:04"), laundry.Mention(u.Holder), laundry.FormatDuration(u.Duration), mark)
	}
}
