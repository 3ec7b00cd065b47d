package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/safething/safething-go/cmd/thingctl/console"
	"github.com/safething/safething-go/internal/api"
	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/subscription"
	"github.com/safething/safething-go/pkg/thing"
)

func newRunCommand(opts *globalOptions) *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register and run the configured Thing",
		Long: `Register the configured Thing from its profile and keep it running.

Incoming notifications and action requests are logged. Requests are
marked Done once logged. When metrics are enabled the HTTP API and
Prometheus metrics are served on metrics.listen.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runThing(cmd.Context(), opts, publish, false)
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the Thing after registering")
	return cmd
}

func newConsoleCommand(opts *globalOptions) *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run the configured Thing with an interactive console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runThing(cmd.Context(), opts, publish, true)
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish the Thing after registering")
	return cmd
}

// logNotifier logs notifications.
type logNotifier struct {
	rt *runtime
}

func (n logNotifier) Notify(note subscription.Notification) {
	n.rt.logger.Info("notification",
		"kind", note.Kind,
		"thing_id", note.ThingID,
		"name", note.Name,
		"payload", note.Payload,
		"timestamp", note.Timestamp)
}

func (n logNotifier) HandleAction(_ context.Context, req action.Request) {
	n.rt.logger.Info("action request",
		"request_id", req.ID,
		"from", req.From,
		"action", req.Action,
		"args", req.Args)
}

func runThing(parent context.Context, opts *globalOptions, publish, interactive bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := loadRuntime(opts, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.Metrics.Enabled {
		if err := rt.enableMetrics(); err != nil {
			return err
		}
	}
	if err := rt.openLedger(); err != nil {
		return err
	}

	tc := rt.thingConfig()
	var con *console.Console
	if interactive {
		con = console.New(os.Stdout)
		tc.Notifier = con
		tc.ActionHandler = con
	} else {
		ln := logNotifier{rt: rt}
		tc.Notifier = ln
		tc.ActionHandler = ln
	}

	th, err := rt.newThing(ctx, tc)
	if err != nil {
		return err
	}
	if err := rt.register(ctx, th); err != nil {
		return err
	}
	if publish {
		if err := th.Publish(ctx); err != nil {
			return err
		}
	}

	var resumeHandler action.StateHandler = action.StateHandlerFunc(func(id model.RequestID, state string) bool {
		rt.logger.Info("resumed request state", "request_id", id, "state", state)
		return true
	})
	if con != nil {
		resumeHandler = con
	}
	if n, err := th.ResumeRequests(resumeHandler); err != nil {
		rt.logger.Warn("resume requests failed", "error", err)
	} else if n > 0 {
		rt.logger.Info("resumed pending requests", "count", n)
	}

	var srv *http.Server
	if rt.cfg.Metrics.Enabled {
		srv = serveHTTP(rt, th)
	}

	if con != nil {
		con.Attach(th)
		err = con.Run(ctx, cancel)
	} else {
		rt.logger.Info("thing running", "thing_id", th.ID())
		<-ctx.Done()
	}

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			rt.logger.Warn("http shutdown failed", "error", serr)
		}
	}
	rt.logger.Info("thing stopped", "thing_id", th.ID())
	return err
}

func serveHTTP(rt *runtime, th *thing.Thing) *http.Server {
	srv := &http.Server{
		Addr:              rt.cfg.Metrics.Listen,
		Handler:           api.NewRouter(api.NewServer(th, rt.logger), rt.registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		rt.logger.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.logger.Error("http server failed", "error", err)
		}
	}()
	return srv
}

