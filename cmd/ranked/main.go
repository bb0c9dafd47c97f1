// Command ranked is the ranked CLI: a to-do list kept in a local database whose
// order is decided by the ranked daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/GoCodeAlone/ranked/client"
	"github.com/GoCodeAlone/ranked/config"
	"github.com/GoCodeAlone/ranked/reorder"
	"github.com/GoCodeAlone/ranked/task"
)

func main() {
	var (
		serverURL = flag.String("server", envOr("RANKED_SERVER", client.DefaultServerURL), "ranked daemon URL (or $RANKED_SERVER)")
		dbPath    = flag.String("db", envOr("RANKED_DB", config.DefaultStorePath()), "task database path (or $RANKED_DB)")
		list      = flag.String("list", os.Getenv("RANKED_LIST"), "named task list kept in the same database (or $RANKED_LIST)")
		fallback  = flag.String("fallback", "append", "placement when the daemon fails: append or heuristic")
		verbose   = flag.Bool("v", false, "log diagnostics to stderr")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	mode, err := client.ParseFallbackMode(*fallback)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	store, closeStore := openStore(*dbPath, *list, logger)
	defer closeStore()

	c := client.New(*serverURL, nil)
	a := &app{
		store:     store,
		client:    c,
		reorderer: client.NewReorderer(c, reorder.NewEngine(reorder.WithLogger(logger)), mode, logger),
		out:       os.Stdout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.run(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		closeStore()
		os.Exit(1)
	}
}

// openStore opens the task database. When it cannot be opened the CLI still runs,
// but nothing it does is kept.
func openStore(path, list string, logger *slog.Logger) (task.Store, func()) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "warning: tasks will not be saved: %v\n", err)
		return task.Unavailable{}, func() {}
	}
	s, err := task.NewSQLiteStore(path, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tasks will not be saved: %v\n", err)
		return task.Unavailable{}, func() {}
	}
	store := s
	if list != "" {
		store = s.WithKey(list)
	}
	closed := false
	return store, func() {
		if !closed {
			closed = true
			s.Close() //nolint:errcheck
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func usage() {
	fmt.Fprint(os.Stderr, `ranked - a to-do list ordered by a language model

Usage:
  ranked [flags] <command> [args]

Flags:
  --server   <url>   daemon URL (default: http://localhost:9090, or $RANKED_SERVER)
  --db       <path>  task database (default: $XDG_DATA_HOME/ranked/tasks.db, or $RANKED_DB)
  --list     <name>  use a separate named list in the same database (or $RANKED_LIST)
  --fallback <mode>  append | heuristic, used when the daemon cannot place a task
  -v                 log diagnostics to stderr

Commands:
  list                  show tasks in order
  add <text>            add a task and let the daemon reorder the list
  done <ref>            toggle a task's completion
  edit <ref> <text>     change a task's text
  rm <ref>              delete a task
  move <ref> <pos>      move a task to position pos (1-based)
  rerank                ask the daemon to reorder the whole list
  suggest <text>        show where keyword priority would place text
  history [n]           show the daemon's recent reorder outcomes
  status                show daemon status
  tui                   edit the list interactively
  version               print version

A <ref> is a 1-based position from 'list' or a task id.
`)
}
