package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"leadboard/apiclient"
	"leadboard/board"
	"leadboard/models"
	"leadboard/utils"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func addLeads(root *cobra.Command, opts *globalOptions) {
	var q apiclient.LeadQuery

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List leads, newest first",
		Example: `
leadctl leads
leadctl leads --search acme --page 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			leads, page, err := opts.client().ListLeads(cmd.Context(), q)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), leadTable(leads))
			printPage(cmd.OutOrStdout(), page)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Search, "search", "", "filter by name, company or role")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 20, "leads per page")
	root.AddCommand(cmd)
}

func addMessages(root *cobra.Command, opts *globalOptions) {
	var q apiclient.MessageQuery

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List messages, newest first",
		Example: `
leadctl messages --status draft
leadctl messages --lead 3f0c... --search intro`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			messages, page, err := opts.client().ListMessages(cmd.Context(), q)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), messageTable(messages))
			printPage(cmd.OutOrStdout(), page)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.LeadID, "lead", "", "only messages of this lead")
	cmd.Flags().StringVar(&q.Status, "status", "", "draft, approved, sent or all")
	cmd.Flags().StringVar(&q.Search, "search", "", "filter by content")
	cmd.Flags().IntVar(&q.Page, "page", 1, "page number")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 50, "messages per page")
	root.AddCommand(cmd)
}

func addStats(root *cobra.Command, opts *globalOptions) {
	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Count messages per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := opts.client().MessageStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d\ndraft: %d\napproved: %d\nsent: %d\n",
				stats.Total, stats.Draft, stats.Approved, stats.Sent)
			return nil
		},
	})
}

func addGenerate(root *cobra.Command, opts *globalOptions) {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "generate LEAD_ID",
		Short: "Generate an outreach draft for one lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()
			lead, err := client.GetLead(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			save := !dryRun
			result, err := client.GenerateMessage(cmd.Context(), models.GenerateMessageInput{
				LeadID:      lead.ID,
				Name:        lead.Name,
				Role:        lead.Role,
				Company:     lead.Company,
				LinkedInURL: lead.LinkedIn(),
				SaveToDB:    &save,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			if result.SavedToDB {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved as %s (%s, %d tokens)\n", result.MessageID, result.Model, result.TokensUsed)
			} else if save {
				return errors.New("message was generated but not saved")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the draft without saving it")
	root.AddCommand(cmd)
}

func addBulkGenerate(root *cobra.Command, opts *globalOptions) {
	var (
		server bool
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "bulk-generate LEAD_ID...",
		Short: "Generate drafts for several leads, one at a time",
		Long: `Generate drafts for several leads, one at a time.

By default the run is driven from this process through the board, pausing
--delay between requests. With --server the run happens on the server and
progress is streamed back over a websocket.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			report := func(p models.BulkProgress) {
				switch {
				case p.Done:
				case len(p.Results) < p.Current:
					fmt.Fprintf(out, "[%d/%d] %s...\n", p.Current, p.Total, p.CurrentLead)
				case len(p.Results) > 0:
					r := p.Results[len(p.Results)-1]
					if r.Success {
						fmt.Fprintf(out, "  ok   %s\n", r.LeadName)
					} else {
						fmt.Fprintf(out, "  fail %s: %s\n", r.LeadName, r.Error)
					}
				}
			}

			var (
				final *models.BulkProgress
				err   error
			)
			if server {
				final, err = opts.client().BulkGenerate(cmd.Context(), args, report)
			} else {
				b := board.New(opts.client(), nil, nil)
				b.SetBulkDelay(delay)
				if err := b.Load(cmd.Context()); err != nil {
					return err
				}
				var p models.BulkProgress
				p, err = b.BulkGenerate(cmd.Context(), args, report)
				final = &p
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "done: %d succeeded, %d failed\n", final.Succeeded(), len(final.Results)-final.Succeeded())
			return nil
		},
	}
	cmd.Flags().BoolVar(&server, "server", false, "run on the server and stream progress")
	cmd.Flags().DurationVar(&delay, "delay", bulkDelayDefault(), "pause between requests (env BULK_DELAY)")
	root.AddCommand(cmd)
}

// bulkDelayDefault reads BULK_DELAY as a duration or a number of milliseconds.
func bulkDelayDefault() time.Duration {
	v := os.Getenv("BULK_DELAY")
	if v == "" {
		return 0
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return 0
}

func addExport(root *cobra.Command, opts *globalOptions) {
	var output string

	cmd := &cobra.Command{
		Use:   "export LEAD_ID...",
		Short: "Export leads and their messages as CSV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			csv, err := opts.client().ExportLeads(cmd.Context(), args)
			if err != nil {
				return err
			}
			if output == "-" {
				_, err = cmd.OutOrStdout().Write(csv)
				return err
			}
			if output == "" {
				output = utils.ExportFileName(time.Now())
			}
			if err := os.WriteFile(output, csv, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write, - for stdout (default leads_export_<date>.csv)")
	root.AddCommand(cmd)
}

func addToken(root *cobra.Command) {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := utils.IssueAPIToken(os.Getenv("JWT_SECRET"), subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "leadctl", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	root.AddCommand(cmd)
}

func leadTable(leads []models.Lead) *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("ID", "NAME", "ROLE", "COMPANY", "LINKEDIN")
	for _, l := range leads {
		tbl.AddRow(l.ID, l.Name, l.Role, l.Company, l.LinkedIn())
	}
	return tbl
}

func messageTable(messages []models.Message) *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("ID", "LEAD", "STATUS", "GENERATED", "CONTENT")
	for _, m := range messages {
		leadName := m.LeadID
		if m.Lead != nil {
			leadName = m.Lead.Name
		}
		tbl.AddRow(m.ID, leadName, m.Status, m.GeneratedAt.Format(time.RFC3339), preview(m.Content, 60))
	}
	return tbl
}

func printPage(w io.Writer, p *models.Pagination) {
	if p == nil {
		return
	}
	fmt.Fprintf(w, "\npage %d of %d (%d total)\n", p.Page, p.TotalPages, p.Total)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
