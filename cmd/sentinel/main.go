package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cyberpath/sentinel/crypto"
	sentinelhttp "github.com/cyberpath/sentinel/http"
	"github.com/cyberpath/sentinel/query"
	"github.com/cyberpath/sentinel/store"
	"github.com/cyberpath/sentinel/value"
)

const usage = `Usage: sentinel [flags] <command> [args]

Commands:
  init                                  initialize a store
  collections                           list collections
  drop <collection>                     delete a collection
  insert <collection> <id> <json>       insert a document
  update <collection> <id> <json>       update a document
  upsert <collection> <id> <json>       insert or update a document
  delete <collection> <id>              delete a document
  restore <collection> <id>             restore a deleted document
  deleted <collection>                  list deleted document ids
  get <collection> <id>                 fetch a document
  get-many <collection> <id...>         fetch several documents
  count <collection>                    count documents
  bulk-insert <collection> <file>       insert a JSON array of {id, data}
  query <collection> [query flags]      run a query
  aggregate <collection> [agg flags]    reduce documents to a scalar
  verify <collection>                   verify hashes and signatures
  stats                                 show store statistics
  wal <verify|replay|checkpoint>        manage the write-ahead log
  serve [addr]                          serve the REST API
  shell                                 interactive session

Flags:
`

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }

func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func main() {
	flags := flag.NewFlagSet("sentinel", flag.ExitOnError)
	configPath := flags.String("config", ".sentinel.yaml", "configuration file")
	storeDir := flags.String("store", "", "store directory (overrides config)")
	passphrase := flags.String("passphrase", "", "store passphrase (overrides config)")
	hashAlg := flags.String("hash", "", "content hash algorithm for new stores")
	logLevel := flags.String("log", "", "log level: debug, info, warn, error")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	flags.Parse(os.Args[1:])

	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fatal("reading config: %v", err)
	}
	if *storeDir != "" {
		cfg.Store = *storeDir
	}
	if *passphrase != "" {
		cfg.Passphrase = *passphrase
	}
	if *hashAlg != "" {
		cfg.Hash = *hashAlg
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if cfg.Store == "" {
		cfg.Store = "."
	}

	ctx := context.Background()
	if err := run(ctx, cfg, flags.Args()); err != nil {
		fatal("%v", err)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openStore(ctx context.Context, cfg config) (*store.Store, error) {
	opts := store.Options{
		Passphrase: cfg.Passphrase,
		Hash:       crypto.Algorithm(cfg.Hash),
		DisableWAL: cfg.DisableWAL,
	}
	if cfg.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
			return nil, fmt.Errorf("bad log level %q", cfg.LogLevel)
		}
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return store.Open(ctx, cfg.Store, opts)
}

func run(ctx context.Context, cfg config, args []string) error {
	cmd, args := args[0], args[1:]

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	switch cmd {
	case "init":
		fmt.Printf("store initialized at %s\n", cfg.Store)
		fmt.Printf("public key: %s\n", hex.EncodeToString(db.PublicKey()))
		return nil
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
		if len(args) != 1 {
			return fmt.Errorf("usage: drop <collection>")
		}
		return db.DeleteCollection(ctx, args[0])
	case "stats":
		stats, err := db.Stats(ctx)
		if err != nil {
			return err
		}
		return printJSON(stats)
	case "wal":
		if len(args) != 1 {
			return fmt.Errorf("usage: wal <verify|replay|checkpoint>")
		}
		switch args[0] {
		case "verify":
			n, err := db.VerifyLog()
			if err != nil {
				return err
			}
			fmt.Printf("verified %d entries\n", n)
			return nil
		case "replay":
			n, err := db.ReplayLog(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("replayed %d entries\n", n)
			return nil
		case "checkpoint":
			return db.CheckpointLog(ctx)
		default:
			return fmt.Errorf("unknown wal command %q", args[0])
		}
	case "serve":
		addr := ":8080"
		if len(args) > 0 {
			addr = args[0]
		}
		fmt.Fprintf(os.Stderr, "listening on %s\n", addr)
		return sentinelhttp.ListenAndServe(db, addr)
	case "shell":
		return runShell(ctx, db)
	}

	// Everything else operates on a collection.
	if len(args) == 0 {
		return fmt.Errorf("%s requires a collection name", cmd)
	}
	c, err := db.Collection(ctx, args[0])
	if err != nil {
		return err
	}
	return runCollection(ctx, c, cmd, args[1:])
}

func runCollection(ctx context.Context, c *store.Collection, cmd string, args []string) error {
	switch cmd {
	case "insert", "update", "upsert":
		if len(args) != 2 {
			return fmt.Errorf("usage: %s <collection> <id> <json>", cmd)
		}
		data, err := value.Parse([]byte(args[1]))
		if err != nil {
			return fmt.Errorf("parsing document data: %w", err)
		}
		switch cmd {
		case "insert":
			doc, err := c.Insert(ctx, args[0], data)
			if err != nil {
				return err
			}
			return printJSON(doc)
		case "update":
			doc, err := c.Update(ctx, args[0], data)
			if err != nil {
				return err
			}
			return printJSON(doc)
		default:
			doc, created, err := c.Upsert(ctx, args[0], data)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintln(os.Stderr, "created")
			} else {
				fmt.Fprintln(os.Stderr, "updated")
			}
			return printJSON(doc)
		}
	case "delete":
		if len(args) != 1 {
			return fmt.Errorf("usage: delete <collection> <id>")
		}
		return c.Delete(ctx, args[0])
	case "restore":
		if len(args) != 1 {
			return fmt.Errorf("usage: restore <collection> <id>")
		}
		doc, err := c.Restore(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(doc)
	case "deleted":
		ids, err := c.Deleted(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <collection> <id>")
		}
		doc, ok, err := c.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("null")
			return nil
		}
		return printJSON(doc)
	case "get-many":
		docs, err := c.GetMany(ctx, args)
		if err != nil {
			return err
		}
		return printJSON(docs)
	case "count":
		fmt.Println(c.Count())
		return nil
	case "bulk-insert":
		if len(args) != 1 {
			return fmt.Errorf("usage: bulk-insert <collection> <file>")
		}
		return bulkInsert(ctx, c, args[0])
	case "query":
		return runQuery(ctx, c, args)
	case "aggregate":
		return runAggregate(ctx, c, args)
	case "verify":
		n, err := c.Verify(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("verified %d documents\n", n)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func bulkInsert(ctx context.Context, c *store.Collection, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []struct {
		ID   string          `json:"id"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(content, &entries); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	pairs := make([]store.Pair, len(entries))
	for i, e := range entries {
		data, err := value.Parse(e.Data)
		if err != nil {
			return fmt.Errorf("parsing data for %q: %w", e.ID, err)
		}
		pairs[i] = store.Pair{ID: e.ID, Data: data}
	}
	docs, err := c.BulkInsert(ctx, pairs)
	if err != nil {
		return err
	}
	fmt.Printf("inserted %d documents\n", len(docs))
	return nil
}

func runQuery(ctx context.Context, c *store.Collection, args []string) error {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	var filters, sorts multiFlag
	flags.Var(&filters, "filter", "filter as field:op:value, repeatable")
	flags.Var(&sorts, "sort", "sort key as field:asc|desc, repeatable")
	limit := flags.Int("limit", -1, "maximum results")
	offset := flags.Int("offset", 0, "results to skip")
	project := flags.String("project", "", "comma-separated field paths")
	flags.Parse(args)

	b := query.New().Limit(*limit).Offset(*offset)
	for _, f := range filters {
		field, op, v, err := parseFilter(f)
		if err != nil {
			return err
		}
		b.Filter(field, op, v)
	}
	for _, s := range sorts {
		field, dir, err := parseSort(s)
		if err != nil {
			return err
		}
		b.Sort(field, dir)
	}
	if *project != "" {
		b.Projection(strings.Split(*project, ",")...)
	}

	res, err := c.Query(ctx, b.Build())
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d matched\n", res.TotalCount)
	return printJSON(res.Documents)
}

func runAggregate(ctx context.Context, c *store.Collection, args []string) error {
	flags := flag.NewFlagSet("aggregate", flag.ExitOnError)
	var filterArgs multiFlag
	flags.Var(&filterArgs, "filter", "filter as field:op:value, repeatable")
	op := flags.String("op", "count", "count, sum, avg, min, or max")
	field := flags.String("field", "", "field path for numeric reducers")
	flags.Parse(args)

	var filters []query.Filter
	for _, f := range filterArgs {
		fld, fop, v, err := parseFilter(f)
		if err != nil {
			return err
		}
		filters = append(filters, query.Filter{Field: fld, Op: fop, Value: v})
	}

	result, err := c.Aggregate(ctx, filters, store.Aggregation{
		Kind:  store.AggregationKind(*op),
		Field: *field,
	})
	if err != nil {
		return err
	}
	fmt.Println(strconv.FormatFloat(result, 'g', -1, 64))
	return nil
}

// parseFilter splits field:op:value, parsing the value as JSON and
// falling back to a plain string.
func parseFilter(s string) (string, query.Operator, value.Value, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return "", "", value.Null, fmt.Errorf("bad filter %q, want field:op:value", s)
	}
	v, err := value.Parse([]byte(parts[2]))
	if err != nil {
		v = value.String(parts[2])
	}
	return parts[0], query.Operator(parts[1]), v, nil
}

func parseSort(s string) (string, query.Direction, error) {
	field, dir, found := strings.Cut(s, ":")
	if !found || dir == "asc" {
		return field, query.Ascending, nil
	}
	if dir == "desc" {
		return field, query.Descending, nil
	}
	return "", 0, fmt.Errorf("bad sort %q, want field:asc or field:desc", s)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
