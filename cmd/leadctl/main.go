package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadboard/apiclient"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	URL     string
	Token   string
	Timeout time.Duration
	Verbose bool
}

func (o *globalOptions) client() *apiclient.Client {
	c := apiclient.New(o.URL, o.Token)
	c.Timeout = o.Timeout
	return c
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Manage leads and outreach messages on a leadboard server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.URL, "url", envOr("LEADBOARD_URL", "http://localhost:8080"), "server base URL")
	root.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("LEADBOARD_TOKEN"), "API bearer token")
	root.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per request timeout")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	addLeads(root, opts)
	addMessages(root, opts)
	addStats(root, opts)
	addGenerate(root, opts)
	addBulkGenerate(root, opts)
	addExport(root, opts)
	addToken(root)

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
