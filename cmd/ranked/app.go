package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/GoCodeAlone/ranked/client"
	"github.com/GoCodeAlone/ranked/internal/version"
	"github.com/GoCodeAlone/ranked/task"
)

var errUsage = errors.New("usage")

// app holds the state shared by CLI commands.
type app struct {
	store     task.Store
	client    *client.Client
	reorderer *client.Reorderer
	out       io.Writer
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	var err error
	switch cmd {
	case "list", "ls":
		err = a.cmdList()
	case "add":
		err = a.cmdAdd(ctx, args)
	case "done":
		err = a.cmdDone(args)
	case "edit":
		err = a.cmdEdit(args)
	case "rm":
		err = a.cmdRemove(args)
	case "move":
		err = a.cmdMove(args)
	case "rerank":
		err = a.cmdRerank(ctx)
	case "suggest":
		err = a.cmdSuggest(ctx, args)
	case "history":
		err = a.cmdHistory(ctx, args)
	case "status":
		err = a.cmdStatus(ctx)
	case "tui":
		err = a.cmdTUI(ctx)
	case "version":
		fmt.Fprintf(a.out, "ranked %s\n", version.String())
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
	if errors.Is(err, errUsage) {
		return fmt.Errorf("%w: ranked %s", err, usageLine(cmd))
	}
	return err
}

func usageLine(cmd string) string {
	switch cmd {
	case "add", "suggest":
		return cmd + " <text>"
	case "done", "rm":
		return cmd + " <ref>"
	case "edit":
		return "edit <ref> <text>"
	case "move":
		return "move <ref> <pos>"
	case "history":
		return "history [n]"
	}
	return cmd
}

// --- list ---

func (a *app) cmdList() error {
	tasks, err := a.store.Load()
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, renderList(tasks))
	return nil
}

// --- add / rerank ---

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errUsage
	}
	tasks, err := a.store.Load()
	if err != nil {
		return err
	}
	res, err := a.reorderer.AddTask(ctx, tasks, text)
	if err != nil {
		return err
	}
	if err := a.store.Save(res.Tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	if res.Fallback {
		fmt.Fprintln(a.out, renderNotice("could not reorder with the daemon, task placed locally: "+res.Cause.Error()))
	}
	fmt.Fprint(a.out, renderList(res.Tasks))
	return nil
}

func (a *app) cmdRerank(ctx context.Context) error {
	tasks, err := a.store.Load()
	if err != nil {
		return err
	}
	res, err := a.reorderer.Rerank(ctx, tasks)
	if err != nil {
		return err
	}
	if res.Fallback {
		fmt.Fprintln(a.out, renderNotice("could not rerank, order unchanged: "+res.Cause.Error()))
		fmt.Fprint(a.out, renderList(tasks))
		return nil
	}
	if err := a.store.Save(res.Tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	fmt.Fprint(a.out, renderList(res.Tasks))
	return nil
}

// cmdSuggest shows where the keyword heuristic would put text, without saving.
func (a *app) cmdSuggest(ctx context.Context, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errUsage
	}
	tasks, err := a.store.Load()
	if err != nil {
		return err
	}
	res, err := a.client.SuggestInsertion(ctx, task.Task{Text: text}, tasks)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "position %d (priority %d)\n", res.Index+1, res.Score)
	return nil
}

// --- local edits ---

func (a *app) cmdDone(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return a.edit(args[0], func(l task.List, id string) (task.List, error) { return l.Toggle(id) })
}

func (a *app) cmdEdit(args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	text := strings.Join(args[1:], " ")
	return a.edit(args[0], func(l task.List, id string) (task.List, error) { return l.Edit(id, text) })
}

func (a *app) cmdRemove(args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	return a.edit(args[0], func(l task.List, id string) (task.List, error) { return l.Remove(id) })
}

func (a *app) cmdMove(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	pos, err := strconv.Atoi(args[1])
	if err != nil || pos < 1 {
		return fmt.Errorf("invalid position %q", args[1])
	}
	return a.edit(args[0], func(l task.List, id string) (task.List, error) { return l.Move(id, pos-1) })
}

// edit resolves ref, applies fn, saves, and prints the new list.
func (a *app) edit(ref string, fn func(task.List, string) (task.List, error)) error {
	tasks, err := a.store.Load()
	if err != nil {
		return err
	}
	id, err := resolve(tasks, ref)
	if err != nil {
		return err
	}
	out, err := fn(tasks, id)
	if err != nil {
		return err
	}
	if err := a.store.Save(out); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	fmt.Fprint(a.out, renderList(out))
	return nil
}

// resolve maps a 1-based position or an id onto a task id.
func resolve(tasks task.List, ref string) (string, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(tasks) {
			return "", fmt.Errorf("no task at position %d: %w", n, task.ErrNotFound)
		}
		return tasks[n-1].ID, nil
	}
	if tasks.Index(ref) < 0 {
		return "", fmt.Errorf("%s: %w", ref, task.ErrNotFound)
	}
	return ref, nil
}

// --- daemon info ---

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	limit := 10
	if len(args) > 1 {
		return errUsage
	}
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return errUsage
		}
		limit = n
	}
	outcomes, err := a.client.Reorders(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, renderHistory(outcomes))
	return nil
}

func (a *app) cmdStatus(ctx context.Context) error {
	st, err := a.client.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "status:   %s\n", st.Status)
	fmt.Fprintf(a.out, "version:  %s\n", st.Version)
	fmt.Fprintf(a.out, "provider: %s\n", st.Provider)
	fmt.Fprintf(a.out, "uptime:   %ds\n", st.UptimeSeconds)
	return nil
}
