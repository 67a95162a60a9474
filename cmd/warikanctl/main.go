// Command warikanctl administers invitations and settlements directly against
// the configured store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/susu3304/warikanbot/internal/db"
	"github.com/susu3304/warikanbot/internal/invitation"
	"github.com/susu3304/warikanbot/internal/ledger"
	"github.com/susu3304/warikanbot/internal/reconcile"
	"github.com/susu3304/warikanbot/internal/settlement"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newCLI(os.Stdout).command()
	err := root.ParseAndRun(ctx, os.Args[1:], ff.WithEnvVarPrefix("WARIKAN"))
	switch {
	case errors.Is(err, ff.ErrHelp):
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Command(root.GetSelected()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type cli struct {
	out io.Writer

	driver      *string
	databaseURL *string
	boltPath    *string
	timeZone    *string
	actor       *string

	// open is replaced in tests.
	open func(ctx context.Context) (db.Store, error)
}

func newCLI(out io.Writer) *cli {
	c := &cli{out: out}
	c.open = func(ctx context.Context) (db.Store, error) {
		return db.Open(ctx, db.Options{Driver: *c.driver, DatabaseURL: *c.databaseURL, BoltPath: *c.boltPath})
	}
	return c
}

// services holds the repositories a subcommand works with.
type services struct {
	store       db.Store
	invitations *invitation.Repository
	reconcile   *reconcile.Service
}

func (c *cli) services(ctx context.Context) (*services, error) {
	loc, err := time.LoadLocation(*c.timeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", *c.timeZone, err)
	}
	store, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	entries := ledger.NewRepository(store, loc)
	return &services{
		store:       store,
		invitations: invitation.NewRepository(store),
		reconcile:   reconcile.NewService(entries, settlement.NewRepository(store)),
	}, nil
}

// with opens the store for the duration of fn.
func (c *cli) with(ctx context.Context, fn func(*services) error) error {
	svc, err := c.services(ctx)
	if err != nil {
		return err
	}
	defer svc.store.Close()
	return fn(svc)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) command() *ff.Command {
	rootFlags := ff.NewFlagSet("warikanctl")
	c.driver = rootFlags.StringLong("store-driver", db.DriverPostgres, "store backend: postgres, bolt or memory")
	c.databaseURL = rootFlags.StringLong("database-url", "", "PostgreSQL connection string")
	c.boltPath = rootFlags.StringLong("bolt-path", "warikan.db", "bbolt file path")
	c.timeZone = rootFlags.StringLong("time-zone", "Asia/Tokyo", "time zone months are computed in")
	c.actor = rootFlags.StringLong("actor", "warikanctl", "identity recorded as creator or completer")

	return &ff.Command{
		Name:      "warikanctl",
		Usage:     "warikanctl [FLAGS] <SUBCOMMAND> ...",
		ShortHelp: "administer warikanbot data",
		Flags:     rootFlags,
		Subcommands: []*ff.Command{
			c.inviteCommand(rootFlags),
			c.summaryCommand(rootFlags),
			c.settlementCommand(rootFlags),
		},
		Exec: func(ctx context.Context, args []string) error {
			return ff.ErrHelp
		},
	}
}

func (c *cli) inviteCommand(parent *ff.FlagSet) *ff.Command {
	inviteFlags := ff.NewFlagSet("invite").SetParent(parent)

	createFlags := ff.NewFlagSet("create").SetParent(inviteFlags)
	ttl := createFlags.DurationLong("ttl", 72*time.Hour, "how long the invitation stays valid")
	create := &ff.Command{
		Name:      "create",
		Usage:     "warikanctl invite create [--ttl DURATION] [KEY=VALUE ...]",
		ShortHelp: "create an invitation; arguments become metadata",
		Flags:     createFlags,
		Exec: func(ctx context.Context, args []string) error {
			metadata, err := parseMetadata(args)
			if err != nil {
				return err
			}
			return c.with(ctx, func(s *services) error {
				inv, err := s.invitations.Create(ctx, *c.actor, *ttl, metadata)
				if err != nil {
					return err
				}
				return c.print(inv)
			})
		},
	}

	listFlags := ff.NewFlagSet("list").SetParent(inviteFlags)
	status := listFlags.StringLong("status", "", "only list invitations with this status")
	list := &ff.Command{
		Name:      "list",
		Usage:     "warikanctl invite list [--status STATUS]",
		ShortHelp: "list invitations",
		Flags:     listFlags,
		Exec: func(ctx context.Context, args []string) error {
			var st invitation.Status
			if *status != "" {
				var err error
				if st, err = invitation.ParseStatus(*status); err != nil {
					return err
				}
			}
			return c.with(ctx, func(s *services) error {
				invs, err := s.invitations.List(ctx, st)
				if err != nil {
					return err
				}
				return c.print(invs)
			})
		},
	}

	revoke := &ff.Command{
		Name:      "revoke",
		Usage:     "warikanctl invite revoke <ID>",
		ShortHelp: "revoke an invitation and unregister its participant",
		Flags:     ff.NewFlagSet("revoke").SetParent(inviteFlags),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("revoke requires exactly one invitation id")
			}
			return c.with(ctx, func(s *services) error {
				inv, err := s.invitations.Revoke(ctx, args[0])
				if err != nil {
					return err
				}
				return c.print(inv)
			})
		},
	}

	return &ff.Command{
		Name:        "invite",
		Usage:       "warikanctl invite <create|list|revoke> ...",
		ShortHelp:   "manage invitations",
		Flags:       inviteFlags,
		Subcommands: []*ff.Command{create, list, revoke},
		Exec: func(ctx context.Context, args []string) error {
			return ff.ErrHelp
		},
	}
}

func (c *cli) summaryCommand(parent *ff.FlagSet) *ff.Command {
	return &ff.Command{
		Name:      "summary",
		Usage:     "warikanctl summary <YYYY-MM>",
		ShortHelp: "print a monthly summary, creating settlements as needed",
		Flags:     ff.NewFlagSet("summary").SetParent(parent),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("summary requires a month")
			}
			return c.with(ctx, func(s *services) error {
				summary, err := s.reconcile.GenerateMonthlySummary(ctx, args[0])
				if err != nil {
					return err
				}
				return c.print(summary)
			})
		},
	}
}

func (c *cli) settlementCommand(parent *ff.FlagSet) *ff.Command {
	settlementFlags := ff.NewFlagSet("settlement").SetParent(parent)

	action := func(name, help string, fn func(ctx context.Context, s *services, participant, month string) (settlement.Record, error)) *ff.Command {
		return &ff.Command{
			Name:      name,
			Usage:     fmt.Sprintf("warikanctl settlement %s <PARTICIPANT> <YYYY-MM>", name),
			ShortHelp: help,
			Flags:     ff.NewFlagSet(name).SetParent(settlementFlags),
			Exec: func(ctx context.Context, args []string) error {
				if len(args) != 2 {
					return fmt.Errorf("%s requires a participant and a month", name)
				}
				month, err := ledger.ParseYearMonth(args[1])
				if err != nil {
					return err
				}
				return c.with(ctx, func(s *services) error {
					rec, err := fn(ctx, s, args[0], month)
					if err != nil {
						return err
					}
					return c.print(rec)
				})
			},
		}
	}

	return &ff.Command{
		Name:      "settlement",
		Usage:     "warikanctl settlement <complete|cancel> ...",
		ShortHelp: "change a settlement's status",
		Flags:     settlementFlags,
		Subcommands: []*ff.Command{
			action("complete", "mark a settlement as paid", func(ctx context.Context, s *services, participant, month string) (settlement.Record, error) {
				return s.reconcile.CompleteSettlement(ctx, participant, month, *c.actor)
			}),
			action("cancel", "cancel a settlement", func(ctx context.Context, s *services, participant, month string) (settlement.Record, error) {
				return s.reconcile.CancelSettlement(ctx, participant, month)
			}),
		},
		Exec: func(ctx context.Context, args []string) error {
			return ff.ErrHelp
		},
	}
}

func parseMetadata(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	metadata := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("metadata must be KEY=VALUE, got %q", arg)
		}
		metadata[key] = value
	}
	return metadata, nil
}
