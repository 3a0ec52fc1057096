package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"rafl-be/internal/config"
	"rafl-be/internal/container"
	"rafl-be/internal/domain"
	"rafl-be/internal/service/auth"
	"rafl-be/pkg/database"
	"rafl-be/pkg/logger"
	"rafl-be/pkg/redis"
)

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:  "raflctl",
		Usage: "operate Rafl promotions, credentials and draws",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "overall command timeout",
			},
		},
		Writer: out,
		Commands: []*cli.Command{
			commandCredential(),
			commandDraw(),
			commandPromo(),
			commandToken(),
		},
	}
}

var storeFlag = &cli.StringFlag{
	Name:     "store",
	Usage:    "store id",
	EnvVars:  []string{"RAFL_STORE_ID"},
	Required: true,
}

func commandCredential() *cli.Command {
	return &cli.Command{
		Name:  "credential",
		Usage: "manage store API credentials",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "issue a credential; the secret is printed once",
				Flags: []cli.Flag{
					storeFlag,
					&cli.StringFlag{Name: "label", Required: true, Usage: "credential label"},
				},
				Action: withContainer(func(c *cli.Context, ctr *container.Container) error {
					issued, err := ctr.Services.Credential.Create(c.Context, c.String("store"), c.String("label"))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, issued)
				}),
			},
			{
				Name:  "list",
				Usage: "list credentials of a store",
				Flags: []cli.Flag{storeFlag},
				Action: withContainer(func(c *cli.Context, ctr *container.Container) error {
					creds, err := ctr.Services.Credential.List(c.Context, c.String("store"))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, creds)
				}),
			},
			{
				Name:  "revoke",
				Usage: "deactivate a credential",
				Flags: []cli.Flag{
					storeFlag,
					&cli.StringFlag{Name: "id", Required: true, Usage: "credential id"},
				},
				Action: withContainer(func(c *cli.Context, ctr *container.Container) error {
					if err := ctr.Services.Credential.Revoke(c.Context, c.String("store"), c.String("id")); err != nil {
						return err
					}
					_, err := fmt.Fprintf(c.App.Writer, "revoked %s\n", c.String("id"))
					return err
				}),
			},
		},
	}
}

func commandDraw() *cli.Command {
	return &cli.Command{
		Name:  "draw",
		Usage: "draw the winner of a promotion",
		Flags: []cli.Flag{
			storeFlag,
			&cli.StringFlag{Name: "promo", Required: true, Usage: "promotion id"},
		},
		Action: withContainer(func(c *cli.Context, ctr *container.Container) error {
			winner, err := ctr.Services.Winner.Draw(c.Context, c.String("store"), c.String("promo"))
			if err != nil {
				return err
			}
			return printJSON(c.App.Writer, map[string]interface{}{"winner": winner})
		}),
	}
}

func commandPromo() *cli.Command {
	return &cli.Command{
		Name:  "promo",
		Usage: "promotion lifecycle",
		Subcommands: []*cli.Command{
			{
				Name:  "status",
				Usage: "move a promotion to another status",
				Flags: []cli.Flag{
					storeFlag,
					&cli.StringFlag{Name: "promo", Required: true, Usage: "promotion id"},
					&cli.StringFlag{Name: "to", Required: true, Usage: "draft, active, paused or ended"},
				},
				Action: withContainer(func(c *cli.Context, ctr *container.Container) error {
					promo, err := ctr.Services.Promotion.TransitionStatus(c.Context, c.String("store"), c.String("promo"),
						domain.PromotionStatus(c.String("to")))
					if err != nil {
						return err
					}
					return printJSON(c.App.Writer, promo)
				}),
			},
			{
				Name:  "close-expired",
				Usage: "end every promotion past its end date",
				Action: withContainer(func(c *cli.Context, ctr *container.Container) error {
					n, err := ctr.Services.Promotion.CloseExpired(c.Context)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(c.App.Writer, "ended %d promotions\n", n)
					return err
				}),
			},
		},
	}
}

func commandToken() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "operator tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "sign an operator JWT with OPERATOR_JWT_SECRET",
				Flags: []cli.Flag{
					storeFlag,
					&cli.StringFlag{Name: "subject", Required: true, Usage: "operator identity"},
					&cli.DurationFlag{Name: "ttl", Value: 12 * time.Hour, Usage: "token lifetime"},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					svc := auth.NewService(cfg.OperatorJWTSecret, logger.NewNop())
					token, err := svc.IssueToken(c.String("subject"), c.String("store"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(c.App.Writer, token)
					return err
				},
			},
		},
	}
}

// withContainer connects to the configured stores, runs action and closes them.
// Redis is optional here; without it draws run unlocked.
func withContainer(action func(c *cli.Context, ctr *container.Container) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log, err := logger.New(cfg.LogLevel, cfg.Environment)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
		defer cancel()
		c.Context = ctx

		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		var redisClient *redis.Client
		if cfg.RedisURL != "" {
			redisClient, err = redis.NewClient(cfg.RedisURL, cfg.Environment, log.Logger)
			if err != nil {
				return err
			}
			defer redisClient.Close()
		}

		ctr, err := container.New(cfg, log, db, redisClient, nil)
		if err != nil {
			return err
		}
		return action(c, ctr)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
