// backend-go/cmd/planner/run.go
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/config"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/ingest"
	"github.com/andresuchdata/autoplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autoplan/backend-go/internal/service"
	"github.com/andresuchdata/autoplan/backend-go/internal/storage"
)

func companyFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "company",
		Usage:    "Company id",
		Required: true,
		EnvVars:  []string{"PLANNER_COMPANY"},
	}
}

func itemsCommand() *cli.Command {
	return &cli.Command{
		Name:  "items",
		Usage: "Manage the item snapshot planning runs read",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Upsert items from a CSV file",
				ArgsUsage: "<file.csv>",
				Flags: []cli.Flag{
					newDBURLFlag(),
					companyFlag(),
					&cli.StringFlag{
						Name:  "delimiter",
						Usage: "CSV field delimiter",
						Value: ",",
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					path := c.Args().First()
					if path == "" {
						return fmt.Errorf("a CSV file is required")
					}
					file, err := os.Open(path)
					if err != nil {
						return fmt.Errorf("failed to open file %s: %w", path, err)
					}
					defer file.Close()

					var comma rune
					if d := []rune(c.String("delimiter")); len(d) > 0 {
						comma = d[0]
					}
					rows, err := ingest.ReadItemsCSV(file, comma)
					if err != nil {
						return err
					}

					n, err := postgres.NewItemRepository(dbFrom(c)).UpsertItems(c.Context, c.String("company"), rows)
					if err != nil {
						return err
					}
					log.Info().Int("items", n).Str("file", path).Msg("Items imported")
					return nil
				},
			},
		},
	}
}

func runCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Plan every item of a company for one kind",
		Flags: []cli.Flag{
			newDBURLFlag(),
			companyFlag(),
			&cli.StringFlag{
				Name:     "kind",
				Usage:    "forecast or replenishment",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "item",
				Usage: "Limit the run to these item ids (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Compute decisions without saving or exporting them",
			},
			&cli.StringFlag{
				Name:    "blueprint-dir",
				Usage:   "Directory of blueprint files",
				Value:   cfg.Blueprint.Dir,
				EnvVars: []string{"BLUEPRINT_DIR"},
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Write decisions as CSV to this file instead of printing the summary",
			},
		},
		Before: initDB,
		After:  closeDB,
		Action: func(c *cli.Context) error {
			set, err := blueprint.LoadDir(c.String("blueprint-dir"))
			if err != nil {
				log.Warn().Err(err).Msg("No blueprint files loaded, using standard blueprints")
				set = nil
			}

			store, err := storage.FromConfig(cfg.Storage, cfg.App.ExportDir)
			if err != nil {
				return err
			}

			db := dbFrom(c)
			svc := service.NewPlanningService(service.Deps{
				Items:      postgres.NewItemRepository(db),
				Policies:   postgres.NewPolicyRepository(db),
				Blueprints: postgres.NewBlueprintRepository(db),
				Decisions:  postgres.NewDecisionRepository(db),
				Catalog:    blueprint.NewCatalog(set),
				Engine:     service.NewEngine(cfg, nil),
				Exporter:   storage.NewExporter(store, ""),
			})

			res, err := svc.Run(c.Context, service.RunRequest{
				CompanyID: c.String("company"),
				Kind:      domain.Kind(c.String("kind")),
				ItemIDs:   c.StringSlice("item"),
				DryRun:    c.Bool("dry-run"),
			})
			if err != nil {
				return err
			}

			s := res.Summary
			log.Info().
				Str("run_id", res.RunID).
				Str("export", res.ExportKey).
				Int("decisions", len(s.Decisions)).
				Int("failures", len(s.Failures)).
				Int("skipped", len(s.Skipped)).
				Int("unprocessed", len(s.Unprocessed)).
				Msg("Planning run finished")

			if out := c.String("out"); out != "" {
				file, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer file.Close()
				return storage.WriteDecisionsCSV(file, s.Decisions)
			}
			return printJSON(res)
		},
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect saved planning runs",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recent runs of a company",
				Flags:  []cli.Flag{newDBURLFlag(), companyFlag(), &cli.IntFlag{Name: "limit", Value: 20}},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					runs, err := postgres.NewDecisionRepository(dbFrom(c)).ListRuns(c.Context, c.String("company"), c.Int("limit"))
					if err != nil {
						return err
					}
					return printJSON(runs)
				},
			},
			{
				Name:      "show",
				Usage:     "Print the decisions of a run as CSV",
				ArgsUsage: "<run-id>",
				Flags:     []cli.Flag{newDBURLFlag()},
				Before:    initDB,
				After:     closeDB,
				Action: func(c *cli.Context) error {
					if c.Args().First() == "" {
						return fmt.Errorf("a run id is required")
					}
					decisions, err := postgres.NewDecisionRepository(dbFrom(c)).RunDecisions(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return storage.WriteDecisionsCSV(os.Stdout, decisions)
				},
			},
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
