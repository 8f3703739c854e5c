package cli

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	flagkit "github.com/flagkit/go-sdk"
)

func getSorterCmd(a *app) *cobra.Command {
	var (
		flagName string
		visitors int
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "sorter",
		Short: "Show which product sorting a batch of random visitors gets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if visitors <= 0 {
				return fmt.Errorf("--visitors must be positive, got %d", visitors)
			}
			options := a.options()
			options.IPCountryOptions.Disabled = true
			options.UAParserOptions.Disabled = true

			client, err := a.newClient(cmd.Context(), options)
			if err != nil {
				return err
			}
			defer client.Shutdown()

			out := cmd.OutOrStdout()
			var outMu sync.Mutex
			run := func() {
				report := buildSorterReport(decideVisitors(client, flagName, randomVisitorIDs(visitors)))
				outMu.Lock()
				defer outMu.Unlock()
				_, _ = io.WriteString(out, report)
			}
			run()
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			client.AddConfigUpdateListener(func(flagkit.Document) { run() })
			client.StartPolling()
			a.logger.Info("Watching for configuration updates", "pollInterval", a.cfg.PollInterval)
			<-ctx.Done()
			return ignoreCanceled(ctx)
		},
	}
	cmd.Flags().StringVar(&flagName, "flag", "product_sort", "feature flag name")
	cmd.Flags().IntVar(&visitors, "visitors", 100, "number of random visitors")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run the report on every configuration update until interrupted")
	return cmd
}

func randomVisitorIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(rand.Intn(10000))
	}
	return ids
}

func decideVisitors(client *flagkit.Client, flagName string, ids []string) []flagkit.Decision {
	decisions := make([]flagkit.Decision, len(ids))
	for i, id := range ids {
		decisions[i] = client.Decide(flagkit.User{UserID: id}, flagName)
	}
	return decisions
}

// ignoreCanceled treats an interrupted watch as a clean exit.
func ignoreCanceled(ctx context.Context) error {
	if ctx.Err() == context.Canceled {
		return nil
	}
	return ctx.Err()
}
