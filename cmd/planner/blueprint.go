// backend-go/cmd/planner/blueprint.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autoplan/backend-go/internal/blueprint"
	"github.com/andresuchdata/autoplan/backend-go/internal/config"
	"github.com/andresuchdata/autoplan/backend-go/internal/domain"
	"github.com/andresuchdata/autoplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autoplan/backend-go/internal/service"
	"github.com/andresuchdata/autoplan/backend-go/internal/storage"
)

func kindFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "kind", Usage: "forecast or replenishment", Required: true}
}

// loadBlueprint reads --file when given, otherwise the standard blueprint of --kind.
func loadBlueprint(c *cli.Context) (*domain.Blueprint, error) {
	if path := c.String("file"); path != "" {
		return blueprint.LoadFile(path)
	}
	kind, ok := domain.ParseKind(c.String("kind"))
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", c.String("kind"))
	}
	bp, ok := blueprint.Standard(kind)
	if !ok {
		return nil, fmt.Errorf("no standard blueprint for %s", kind)
	}
	return bp, nil
}

func blueprintCommand(cfg *config.Config) *cli.Command {
	fileFlag := &cli.StringFlag{Name: "file", Usage: "Blueprint file (JSON or YAML); defaults to the standard blueprint"}

	return &cli.Command{
		Name:  "blueprint",
		Usage: "Validate, inspect and publish blueprints",
		Subcommands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "Check blueprint files or directories",
				ArgsUsage: "<path>...",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return fmt.Errorf("at least one path is required")
					}
					failed := 0
					for _, path := range c.Args().Slice() {
						if err := validatePath(path); err != nil {
							failed++
							log.Error().Err(err).Str("path", path).Msg("Invalid blueprint")
							continue
						}
						log.Info().Str("path", path).Msg("Blueprint OK")
					}
					if failed > 0 {
						return fmt.Errorf("%d of %d paths failed validation", failed, c.NArg())
					}
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "Print a blueprint in canonical form",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Usage: "forecast or replenishment"},
					fileFlag,
					&cli.StringFlag{Name: "format", Value: "yaml", Usage: "json or yaml"},
				},
				Action: func(c *cli.Context) error {
					bp, err := loadBlueprint(c)
					if err != nil {
						return err
					}
					out, err := blueprint.Marshal(bp, blueprint.Format(strings.ToLower(c.String("format"))))
					if err != nil {
						return err
					}
					_, err = os.Stdout.Write(out)
					return err
				},
			},
			{
				Name:      "compare",
				Usage:     "Report how an agent config deviates from a blueprint",
				ArgsUsage: "<agent-config.json>",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "kind", Usage: "forecast or replenishment"}, fileFlag},
				Action: func(c *cli.Context) error {
					bp, err := loadBlueprint(c)
					if err != nil {
						return err
					}
					data, err := os.ReadFile(c.Args().First())
					if err != nil {
						return fmt.Errorf("failed to read agent config: %w", err)
					}
					var agent blueprint.AgentConfig
					if err := json.Unmarshal(data, &agent); err != nil {
						return fmt.Errorf("invalid agent config: %w", err)
					}
					cmp, err := blueprint.Compare(bp, agent)
					if err != nil {
						return err
					}
					return printJSON(cmp)
				},
			},
			{
				Name:  "publish",
				Usage: "Upload a blueprint to object storage",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "kind", Usage: "forecast or replenishment"},
					fileFlag,
					&cli.StringFlag{Name: "prefix", Value: cfg.Blueprint.ObjectPrefix, EnvVars: []string{"BLUEPRINT_OBJECT_PREFIX"}},
				},
				Action: func(c *cli.Context) error {
					bp, err := loadBlueprint(c)
					if err != nil {
						return err
					}
					store, err := storage.FromConfig(cfg.Storage, cfg.App.ExportDir)
					if err != nil {
						return err
					}
					key, err := storage.PublishBlueprint(c.Context, store, c.String("prefix"), bp)
					if err != nil {
						return err
					}
					log.Info().Str("key", key).Msg("Blueprint published")
					return nil
				},
			},
			{
				Name:   "save",
				Usage:  "Store a blueprint in the database",
				Flags:  []cli.Flag{newDBURLFlag(), &cli.StringFlag{Name: "kind", Usage: "forecast or replenishment"}, fileFlag},
				Before: initDB,
				After:  closeDB,
				Action: func(c *cli.Context) error {
					bp, err := loadBlueprint(c)
					if err != nil {
						return err
					}
					if err := postgres.NewBlueprintRepository(dbFrom(c)).SaveBlueprint(c.Context, bp); err != nil {
						return err
					}
					log.Info().Str("kind", string(bp.AgentType)).Msg("Blueprint saved")
					return nil
				},
			},
		},
	}
}

func validatePath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		set, err := blueprint.LoadDir(path)
		if err != nil {
			return err
		}
		if len(set) == 0 {
			return fmt.Errorf("no blueprint files in %s", filepath.Clean(path))
		}
		return nil
	}
	_, err = blueprint.LoadFile(path)
	return err
}

func evalCommand() *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Evaluate an action and optional trigger against literal variables",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "action", Required: true, Usage: "Statements, e.g. \"order_quantity = max_level - inventory\""},
			&cli.StringFlag{Name: "trigger", Usage: "Boolean condition, e.g. \"inventory < min_level\""},
			&cli.StringSliceFlag{Name: "var", Usage: "name=value binding (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			vars, err := parseVars(c.StringSlice("var"))
			if err != nil {
				return err
			}
			res, err := service.Evaluate(service.EvalRequest{
				Action:    c.String("action"),
				Trigger:   c.String("trigger"),
				Variables: vars,
			})
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func parseVars(pairs []string) (map[string]float64, error) {
	vars := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid variable %q, want name=value", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", name, err)
		}
		vars[strings.TrimSpace(name)] = f
	}
	return vars, nil
}
