// Package console provides the interactive command line of thingctl.
//
// The console attaches to a running Thing, prints incoming notifications
// and action requests, and lets the operator inspect remote Things,
// publish events, subscribe and send action requests.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/safething/safething-go/pkg/action"
	"github.com/safething/safething-go/pkg/filter"
	"github.com/safething/safething-go/pkg/model"
	"github.com/safething/safething-go/pkg/subscription"
	"github.com/safething/safething-go/pkg/thing"
)

// Console is the interactive front end of one Thing.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	thing *thing.Thing
}

// New creates a console writing to out. Attach must be called before
// commands that need the Thing.
func New(out io.Writer) *Console {
	return &Console{out: out}
}

// Attach binds the console to t.
func (c *Console) Attach(t *thing.Thing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thing = t
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) setOutput(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = w
}

// Notify prints a subscription notification.
func (c *Console) Notify(n subscription.Notification) {
	if n.Kind == subscription.KindTopic {
		c.printf("[event] %s/%s @%d: %s\n", n.ThingID, n.Name, n.Timestamp, n.Payload)
		return
	}
	c.printf("[attr] %s/%s = %s\n", n.ThingID, n.Name, n.Payload)
}

// HandleAction prints an incoming action request. The receiver marks it
// Done when this returns.
func (c *Console) HandleAction(_ context.Context, req action.Request) {
	c.printf("[request] %s from %s: %s %s\n", req.ID, req.From, req.Action, strings.Join(req.Args, " "))
}

// OnStateChange prints state changes of requests sent from the console.
func (c *Console) OnStateChange(id model.RequestID, state string) bool {
	c.printf("[state] %s -> %s\n", id, state)
	return true
}

// Run reads commands until quit, EOF or ctx is cancelled, then calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "thing> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	c.setOutput(rl.Stdout())

	c.printHelp()
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			c.printf("Exiting...\n")
			cancel()
			return nil
		}
		if !c.Exec(ctx, line) {
			cancel()
			return nil
		}
	}
}

// Exec runs one command line. It returns false when the console should
// exit.
func (c *Console) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	c.mu.Lock()
	t := c.thing
	c.mu.Unlock()
	if t == nil && cmd != "help" && cmd != "?" && cmd != "quit" && cmd != "exit" && cmd != "q" {
		c.printf("No thing attached\n")
		return true
	}

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "status", "s":
		err = c.cmdStatus(ctx, t)
	case "inspect", "i":
		err = c.cmdInspect(ctx, t, args)
	case "events", "e":
		err = c.cmdEvents(ctx, t, args)
	case "set":
		err = c.cmdSet(ctx, t, args)
	case "notify", "n":
		err = c.cmdNotify(ctx, t, args)
	case "sub-topic", "st":
		err = c.cmdSubscribe(ctx, t, args, true)
	case "sub-attr", "sa":
		err = c.cmdSubscribe(ctx, t, args, false)
	case "subs":
		c.cmdSubs(t)
	case "request", "r":
		err = c.cmdRequest(ctx, t, args)
	case "update":
		err = c.cmdUpdate(ctx, t, args, false)
	case "complete":
		err = c.cmdUpdate(ctx, t, args, true)
	case "publish":
		err = t.Publish(ctx)
		if err == nil {
			c.printf("Published\n")
		}
	case "disable":
		err = t.Disable(ctx)
		if err == nil {
			c.printf("Disabled\n")
		}
	case "quit", "exit", "q":
		c.printf("Exiting...\n")
		return false
	default:
		c.printf("Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	if err != nil {
		c.printf("Error: %v\n", err)
	}
	return true
}

func (c *Console) printHelp() {
	c.printf(`
Thing Commands:
  Local:
    status                          - Show local status and subscriptions
    set <attr> <value>              - Set an attribute value
    notify <topic> <payload...>     - Publish an event
    publish | disable               - Change the local status

  Remote:
    inspect <thing-id>              - Show a Thing's record
    events <thing-id> <topic>       - List a topic's events
    sub-topic <thing-id> <topic> [op value]
    sub-attr <thing-id> <attr> [op value]
    subs                            - List subscriptions

  Actions:
    request <thing-id> <action> [args...]
    update <request-id> <state>     - Report progress on a received request
    complete <request-id> <state>   - Finish a received request

  General:
    help                            - Show this help
    quit                            - Exit

  Operators: any, eq, ne, lt, gt
`)
}

func (c *Console) cmdStatus(ctx context.Context, t *thing.Thing) error {
	st, err := t.Status(ctx)
	if err != nil {
		return err
	}
	c.printf("Thing %s: %s (%d subscriptions)\n", t.ID(), st, t.Subscriptions().Len())
	return nil
}

func (c *Console) cmdInspect(ctx context.Context, t *thing.Thing, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: inspect <thing-id>")
	}
	id := args[0]
	st, err := t.GetRemoteStatus(ctx, id)
	if err != nil {
		return err
	}
	attrs, err := t.GetRemoteAttrs(ctx, id)
	if err != nil {
		return err
	}
	topics, err := t.GetRemoteTopics(ctx, id)
	if err != nil {
		return err
	}
	actions, err := t.GetRemoteActions(ctx, id)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Thing %s [%s]\n", id, st)
	fmt.Fprintf(&b, "  Attributes:\n")
	for _, a := range attrs {
		kind := "static"
		if a.IsDynamic {
			kind = "dynamic"
		}
		fmt.Fprintf(&b, "    %-20s = %-16s (%s)\n", a.Name, a.Value, kind)
	}
	fmt.Fprintf(&b, "  Topics:\n")
	for _, tp := range topics {
		fmt.Fprintf(&b, "    %-20s access=%s\n", tp.Name, tp.Access)
	}
	fmt.Fprintf(&b, "  Actions:\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "    %-20s access=%s params=[%s]\n", a.Name, a.Access, strings.Join(a.Params, ", "))
	}
	c.printf("%s", b.String())
	return nil
}

func (c *Console) cmdEvents(ctx context.Context, t *thing.Thing, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: events <thing-id> <topic>")
	}
	events, err := t.GetRemoteEvents(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if len(events) == 0 {
		c.printf("No events\n")
		return nil
	}
	for _, e := range events {
		c.printf("  %d  %s\n", e.Timestamp, e.Payload)
	}
	return nil
}

func (c *Console) cmdSet(ctx context.Context, t *thing.Thing, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: set <attr> <value>")
	}
	value := strings.Join(args[1:], " ")
	if err := t.SetAttrValue(ctx, args[0], value); err != nil {
		return err
	}
	c.printf("%s = %s\n", args[0], value)
	return nil
}

func (c *Console) cmdNotify(ctx context.Context, t *thing.Thing, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: notify <topic> <payload...>")
	}
	if err := t.Notify(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	c.printf("Published to %s\n", args[0])
	return nil
}

func (c *Console) cmdSubscribe(ctx context.Context, t *thing.Thing, args []string, topic bool) error {
	if len(args) != 2 && len(args) != 4 {
		if topic {
			return fmt.Errorf("usage: sub-topic <thing-id> <topic> [op value]")
		}
		return fmt.Errorf("usage: sub-attr <thing-id> <attr> [op value]")
	}
	op, value := filter.Any, ""
	if len(args) == 4 {
		var err error
		if op, err = filter.ParseOperator(args[2]); err != nil {
			return err
		}
		value = args[3]
	}
	var err error
	if topic {
		err = t.SubscribeToTopic(ctx, args[0], args[1], op, value)
	} else {
		err = t.SubscribeToAttr(ctx, args[0], args[1], op, value)
	}
	if err != nil {
		return err
	}
	c.printf("Subscribed to %s/%s (%s)\n", args[0], args[1], filter.Filter{Op: op, Value: value})
	return nil
}

func (c *Console) cmdSubs(t *thing.Thing) {
	subs := t.Subscriptions()
	if subs.Len() == 0 {
		c.printf("No subscriptions\n")
		return
	}
	for target, list := range subs {
		for _, s := range list {
			c.printf("  %s/%s [%s] %s\n", target, s.Name, s.Kind, s.Filter)
		}
	}
}

func (c *Console) cmdRequest(ctx context.Context, t *thing.Thing, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: request <thing-id> <action> [args...]")
	}
	id, err := t.ActionRequest(ctx, args[0], args[1], args[2:], c)
	if err != nil {
		return err
	}
	c.printf("Sent request %s\n", id)
	return nil
}

func (c *Console) cmdUpdate(ctx context.Context, t *thing.Thing, args []string, complete bool) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: update|complete <request-id> <state>")
	}
	id, err := model.ParseRequestID(args[0])
	if err != nil {
		return fmt.Errorf("invalid request id %q", args[0])
	}
	if complete {
		err = t.CompleteActionRequest(ctx, id, args[1])
	} else {
		err = t.UpdateActionRequestState(ctx, id, args[1])
	}
	if err != nil {
		return err
	}
	c.printf("Request %s: %s\n", id, args[1])
	return nil
}
