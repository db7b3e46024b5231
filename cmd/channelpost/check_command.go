package main

import (
	"fmt"
	"io"
	"net/url"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edgard/channelpost/internal/blog"
	"github.com/edgard/channelpost/internal/config"
	"github.com/edgard/channelpost/internal/httpclient"
)

func newCheckCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if _, err := httpclient.New(cfg.Proxy.URL, 0); err != nil {
				return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
			}
			printSummary(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printSummary(out io.Writer, cfg *config.Config) {
	heading := color.New(color.FgYellow)
	key := color.New(color.FgCyan)
	ok := color.New(color.FgGreen)

	row := func(name string, value any) {
		key.Fprintf(out, "  %-18s", name)
		fmt.Fprintf(out, "%v\n", value)
	}

	heading.Fprintln(out, "Telegram")
	row("token", redact(cfg.Telegram.Token))
	row("channel_id", cfg.Telegram.ChannelID)
	row("api_url", cfg.Telegram.APIURL)
	row("group_settle", cfg.Telegram.GroupSettle)

	heading.Fprintln(out, "Image host")
	row("base_url", cfg.Lsky.BaseURL)
	row("token", redact(cfg.Lsky.Token))

	heading.Fprintln(out, "Blog")
	row("endpoint", cfg.Blog.Endpoint)
	row("cid", cfg.Blog.CID)
	row("time_code", redact(blog.Digest(cfg.Blog.Secret)))
	row("backlink_label", cfg.Blog.BacklinkLabel)

	heading.Fprintln(out, "Delivery")
	row("retry_attempts", cfg.Retry.MaxAttempts)
	row("dedupe_capacity", cfg.Dedupe.Capacity)
	row("run_timeout", cfg.Pipeline.RunTimeout)
	row("proxy", redactProxy(cfg.Proxy.URL))
	row("database", cfg.Database.Path)
	row("skip_published", cfg.Journal.SkipPublished)

	heading.Fprintln(out, "Scheduled tasks")
	names := make([]string, 0, len(cfg.Scheduler.Tasks))
	for name := range cfg.Scheduler.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		task := cfg.Scheduler.Tasks[name]
		state := "disabled"
		if task.Enabled {
			state = task.Schedule
		}
		row(name, state)
	}

	ok.Fprintln(out, "Configuration OK")
}

// redact keeps a short prefix of a secret.
func redact(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "..."
}

func redactProxy(raw string) string {
	if raw == "" {
		return "none"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid"
	}
	return u.Redacted()
}
