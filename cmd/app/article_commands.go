package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/memorylib/integrator/cmd/app/commands"
	"github.com/memorylib/integrator/internal/app"
	"github.com/memorylib/integrator/internal/config"
)

func getArticleCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "integrate",
			Usage: "Integrate a single staged article into the archive",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Document id of the staged article",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				integrationUseCase, err := container.IntegrationUseCase()
				if err != nil {
					return err
				}

				return commands.RunIntegrate(
					ctx,
					integrationUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
	}
}
