package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Spok95/pharmacy-ledger/internal/config"
	"github.com/Spok95/pharmacy-ledger/internal/domain/catalog"
	"github.com/Spok95/pharmacy-ledger/internal/domain/inventory"
	"github.com/Spok95/pharmacy-ledger/internal/infra/db"
	"github.com/Spok95/pharmacy-ledger/internal/infra/logger"
	"github.com/Spok95/pharmacy-ledger/internal/report"
	"github.com/Spok95/pharmacy-ledger/internal/sri"
)

type env struct {
	cfg config.Config
	log *slog.Logger
}

func loadEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &env{cfg: cfg, log: logger.NewTo(c.App.ErrWriter, cfg.App.Env)}, nil
}

// services is what the ledger commands run against.
type services struct {
	*env
	ledger  *inventory.Ledger
	catalog *catalog.Service
}

func withDB(fn func(c *cli.Context, s *services) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := loadEnv(c)
		if err != nil {
			return err
		}
		d, err := db.Connect(c.Context, e.cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer d.Close()
		return fn(c, &services{
			env:     e,
			ledger:  inventory.NewLedger(inventory.NewRepo(d), e.log, inventory.WithClock(e.cfg.Clock())),
			catalog: catalog.NewService(catalog.NewRepo(d), e.log),
		})
	}
}

func actorFlag() *cli.Int64Flag {
	return &cli.Int64Flag{
		Name:    "actor",
		Usage:   "user id recorded on the movements",
		EnvVars: []string{"PHARMACTL_ACTOR"},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pharmactl",
		Usage: "Operate the pharmacy lot ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the YAML config",
				Value:   "config/example.yaml",
				EnvVars: []string{"PHARMACTL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply the database migrations",
				Action: func(c *cli.Context) error {
					e, err := loadEnv(c)
					if err != nil {
						return err
					}
					if err := db.Migrate(e.cfg.Postgres.DSN); err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, "migrations applied")
					return nil
				},
			},
			{
				Name:  "access-key",
				Usage: "Generate or check SRI access keys",
				Subcommands: []*cli.Command{
					{
						Name:  "generate",
						Usage: "Derive the access key of a document from the merchant config",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "date", Usage: "issue date, YYYY-MM-DD (default today)"},
							&cli.StringFlag{Name: "doc-type", Value: sri.DocInvoice, Usage: "SRI document type code"},
							&cli.Int64Flag{Name: "seq", Usage: "sequential number", Required: true},
						},
						Action: generateKey,
					},
					{
						Name:      "check",
						Usage:     "Verify the length and check digit of an access key",
						ArgsUsage: "KEY",
						Action: func(c *cli.Context) error {
							if c.NArg() != 1 {
								return errors.New("exactly one access key is required")
							}
							if err := sri.ValidateAccessKey(c.Args().First()); err != nil {
								return err
							}
							fmt.Fprintln(c.App.Writer, "ok")
							return nil
						},
					},
				},
			},
			{
				Name:   "writeoff-expired",
				Usage:  "Write off the remaining stock of every expired lot",
				Flags:  []cli.Flag{actorFlag()},
				Action: withDB(writeOffExpired),
			},
			{
				Name:      "reconcile",
				Usage:     "Compare cached lot quantities with their movement history",
				ArgsUsage: "[LOT_ID...]",
				Action:    withDB(reconcile),
			},
			{
				Name:  "kardex",
				Usage: "Export the movement history of a lot to xlsx",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "lot", Usage: "lot id", Required: true},
					&cli.StringFlag{Name: "out", Usage: "output file (default kardex_<lot code>.xlsx)"},
				},
				Action: withDB(kardex),
			},
			{
				Name:  "stock-sheet",
				Usage: "Export on-hand stock by lot to xlsx for a physical count",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "stock.xlsx", Usage: "output file"},
				},
				Action: withDB(stockSheet),
			},
			{
				Name:      "count-import",
				Usage:     "Adjust lots to the counted column of a filled stock sheet",
				ArgsUsage: "FILE",
				Flags:     []cli.Flag{actorFlag()},
				Action:    withDB(countImport),
			},
		},
	}
}

func generateKey(c *cli.Context) error {
	e, err := loadEnv(c)
	if err != nil {
		return err
	}
	issued := e.cfg.Clock()()
	if d := c.String("date"); d != "" {
		issued, err = time.Parse(time.DateOnly, d)
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
	}
	key, err := sri.GenerateAccessKey(issued, c.String("doc-type"), c.Int64("seq"), e.cfg.Merchant)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, key)
	return nil
}

func writeOffExpired(c *cli.Context, s *services) error {
	moves, err := s.ledger.WriteOffExpired(c.Context, c.Int64("actor"))
	if err != nil {
		return err
	}
	for _, m := range moves {
		fmt.Fprintf(c.App.Writer, "lot %d: %d\n", m.LotID, m.Qty)
	}
	fmt.Fprintf(c.App.Writer, "%d lots written off\n", len(moves))
	return nil
}

func reconcile(c *cli.Context, s *services) error {
	var ids []int64
	for _, a := range c.Args().Slice() {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return fmt.Errorf("lot id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		lots, err := s.ledger.OnHandLots(c.Context)
		if err != nil {
			return err
		}
		for _, l := range lots {
			ids = append(ids, l.ID)
		}
	}

	drift := 0
	for _, id := range ids {
		r, err := s.ledger.Reconcile(c.Context, id)
		if err != nil {
			return err
		}
		if !r.Balanced() {
			drift++
			fmt.Fprintf(c.App.Writer, "lot %d: cached %d, ledger %d\n", r.LotID, r.Cached, r.Ledger)
		}
	}
	fmt.Fprintf(c.App.Writer, "%d lots checked, %d out of balance\n", len(ids), drift)
	if drift > 0 {
		return cli.Exit("", 3)
	}
	return nil
}

func kardex(c *cli.Context, s *services) error {
	lot, err := s.ledger.Lot(c.Context, c.Int64("lot"))
	if err != nil {
		return err
	}
	it, err := s.catalog.Item(c.Context, lot.ItemID)
	if err != nil {
		return err
	}
	moves, err := s.ledger.Movements(c.Context, lot.ID)
	if err != nil {
		return err
	}
	data, err := report.Kardex(*it, *lot, moves)
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "" {
		out = fmt.Sprintf("kardex_%s.xlsx", lot.Code)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d movements written to %s\n", len(moves), out)
	return nil
}

func stockSheet(c *cli.Context, s *services) error {
	lots, err := s.ledger.OnHandLots(c.Context)
	if err != nil {
		return err
	}
	data, err := report.StockSheet(c.Context, lots, s.catalog)
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.String("out"), data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d lots written to %s\n", len(lots), c.String("out"))
	return nil
}

func countImport(c *cli.Context, s *services) error {
	if c.NArg() != 1 {
		return errors.New("exactly one file is required")
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	counts, err := report.ReadCounts(f)
	if err != nil {
		return err
	}
	changed := 0
	for _, cnt := range counts {
		m, err := s.ledger.Count(c.Context, cnt.LotID, cnt.Counted, c.Int64("actor"))
		if err != nil {
			return fmt.Errorf("lot %d: %w", cnt.LotID, err)
		}
		if m != nil {
			changed++
			fmt.Fprintf(c.App.Writer, "lot %d: %+d\n", m.LotID, m.Qty)
		}
	}
	fmt.Fprintf(c.App.Writer, "%d counts read, %d lots adjusted\n", len(counts), changed)
	return nil
}
