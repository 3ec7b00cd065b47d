package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/model"
)

// thingRecord is the JSON form printed by inspect.
type thingRecord struct {
	ID         string            `json:"id"`
	Status     string            `json:"status"`
	Attributes []model.ThingAttr `json:"attributes"`
	Topics     []model.Topic     `json:"topics"`
	Actions    []model.ActionDef `json:"actions"`
	Events     []model.Event     `json:"events,omitempty"`
}

func newInspectCommand(opts *globalOptions) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "inspect <thing-id>",
		Short: "Print a Thing's record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()
			th, err := rt.newThing(ctx, rt.thingConfig())
			if err != nil {
				return err
			}

			id := args[0]
			rec := thingRecord{ID: id}
			st, err := th.GetRemoteStatus(ctx, id)
			if err != nil {
				return err
			}
			rec.Status = st.String()
			if rec.Attributes, err = th.GetRemoteAttrs(ctx, id); err != nil {
				return err
			}
			if rec.Topics, err = th.GetRemoteTopics(ctx, id); err != nil {
				return err
			}
			if rec.Actions, err = th.GetRemoteActions(ctx, id); err != nil {
				return err
			}
			if topic != "" {
				if rec.Events, err = th.GetRemoteEvents(ctx, id, topic); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.Flags().StringVar(&topic, "events", "", "Also print the events of this topic")
	return cmd
}

func newNotifyCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <topic> <payload...>",
		Short: "Publish an event on a topic of the configured Thing",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocalThing(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				th, err := rt.newThing(ctx, rt.thingConfig())
				if err != nil {
					return err
				}
				return th.Notify(ctx, args[0], strings.Join(args[1:], " "))
			})
		},
	}
}

func newSetAttrCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-attr <name> <value...>",
		Short: "Set an attribute of the configured Thing",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLocalThing(cmd.Context(), opts, func(ctx context.Context, rt *runtime) error {
				th, err := rt.newThing(ctx, rt.thingConfig())
				if err != nil {
					return err
				}
				return th.SetAttrValue(ctx, args[0], strings.Join(args[1:], " "))
			})
		},
	}
}

func withLocalThing(ctx context.Context, opts *globalOptions, fn func(context.Context, *runtime) error) error {
	rt, err := loadRuntime(opts, false)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func newRequestCommand(opts *globalOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "request <thing-id> <action> [args...]",
		Short: "Send an action request and wait for it to finish",
		Long: `Send an action request to a Thing and print every state the
target reports until the request is Done or the timeout expires.

Without a configured Thing id a temporary one is used.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime(opts, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			tc := rt.thingConfig()
			tc.NotifyTimeout = true
			if timeout > 0 {
				tc.RequestTimeout = timeout
			}

			ctx := cmd.Context()
			th, err := rt.newThing(ctx, tc)
			if err != nil {
				return err
			}

			states := make(chan string, 16)
			handler := action.StateHandlerFunc(func(_ model.RequestID, state string) bool {
				select {
				case states <- state:
				default:
				}
				return state != model.StateDone
			})
			id, err := th.ActionRequest(ctx, args[0], args[1], args[2:], handler)
			if err != nil {
				return err
			}
			fmt.Printf("request %s sent to %s\n", id, args[0])

			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case state := <-states:
					fmt.Printf("request %s: %s\n", id, state)
					switch state {
					case model.StateDone:
						return nil
					case model.StateTimedOut:
						return fmt.Errorf("request %s timed out", id)
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (default polling.request_timeout)")
	return cmd
}
