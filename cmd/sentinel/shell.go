package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/cyberpath/sentinel/store"
)

var shellCommands = []string{
	"collections", "drop", "insert", "update", "upsert", "delete",
	"restore", "deleted", "get", "get-many", "count", "bulk-insert",
	"query", "aggregate", "verify", "stats", "wal", "help", "exit",
}

// runShell runs an interactive session against an open store. Each
// line is a command in the same form as the command-line interface.
func runShell(ctx context.Context, db *store.Store) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(prefix string) []string {
		var matches []string
		for _, cmd := range shellCommands {
			if strings.HasPrefix(cmd, prefix) {
				matches = append(matches, cmd)
			}
		}
		return matches
	})

	historyPath := filepath.Join(os.TempDir(), ".sentinel_history")
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("type 'help' for commands, 'exit' to quit")
	for {
		input, err := line.Prompt("sentinel> ")
		if err == liner.ErrPromptAborted || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		args := splitArgs(input)
		switch args[0] {
		case "exit", "quit":
			return nil
		case "help":
			fmt.Println(strings.Join(shellCommands, " "))
			continue
		}
		if err := dispatch(ctx, db, args); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}

func dispatch(ctx context.Context, db *store.Store, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "collections":
		names, err := db.ListCollections(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	case "drop":
		if len(rest) != 1 {
			return fmt.Errorf("usage: drop <collection>")
		}
		return db.DeleteCollection(ctx, rest[0])
	case "stats":
		stats, err := db.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	case "wal":
		if len(rest) != 1 {
			return fmt.Errorf("usage: wal <verify|checkpoint>")
		}
		if rest[0] == "checkpoint" {
			return db.CheckpointLog(ctx)
		}
		n, err := db.VerifyLog()
		if err != nil {
			return err
		}
		fmt.Printf("verified %d entries\n", n)
		return nil
	}
	if len(rest) == 0 {
		return fmt.Errorf("%s requires a collection name", cmd)
	}
	c, err := db.Collection(ctx, rest[0])
	if err != nil {
		return err
	}
	return runCollection(ctx, c, cmd, rest[1:])
}

// splitArgs splits on spaces outside single quotes, so JSON payloads
// can be passed as 'single quoted' arguments.
func splitArgs(input string) []string {
	var args []string
	var cur strings.Builder
	quoted := false
	for _, r := range input {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ' ' && !quoted:
			if cur.Len() > 0 {
				args = append(args, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		args = append(args, cur.String())
	}
	return args
}
