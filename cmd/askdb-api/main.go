package main

import (
	"context"
	"os"
	"time"

	"github.com/askdb/askdb/pkg/cmd"
	"github.com/askdb/askdb/pkg/executor"
	"github.com/askdb/askdb/pkg/llm"
	"github.com/askdb/askdb/pkg/log"
	"github.com/askdb/askdb/pkg/models"
	"github.com/askdb/askdb/pkg/otelhelper"
	"github.com/askdb/askdb/pkg/permissions"
	"github.com/askdb/askdb/pkg/schema"
	"github.com/askdb/askdb/pkg/validation"
	"github.com/askdb/askdb/pkg/workflow"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const defaultPort = 9090

func main() {
	logger := log.WithModule("api")

	app := &cli.Command{
		Name:                  "askdb-api",
		Usage:                 "Answer natural-language questions with gated SQL",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Postgres connection URL for the target database",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for confirmation checkpoints (in-memory when empty)",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS"),
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key",
				Sources: cli.EnvVars("OPENAI_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "openai-model",
				Usage:   "OpenAI model override",
				Sources: cli.EnvVars("OPENAI_MODEL"),
			},
			&cli.StringFlag{
				Name:    "anthropic-api-key",
				Usage:   "Anthropic API key",
				Sources: cli.EnvVars("ANTHROPIC_API_KEY"),
			},
			&cli.StringFlag{
				Name:    "anthropic-model",
				Usage:   "Anthropic model override",
				Sources: cli.EnvVars("ANTHROPIC_MODEL"),
			},
			&cli.StringFlag{
				Name:    "judge-provider",
				Usage:   "Provider used for the semantic safety review",
				Value:   "openai",
				Sources: cli.EnvVars("JUDGE_PROVIDER"),
			},
			&cli.BoolFlag{
				Name:    "require-confirmation",
				Usage:   "Pause every validated query for human confirmation",
				Value:   true,
				Sources: cli.EnvVars("REQUIRE_CONFIRMATION"),
			},
			&cli.IntFlag{
				Name:    "max-rows",
				Usage:   "Maximum rows returned per query",
				Value:   executor.DefaultMaxRows,
				Sources: cli.EnvVars("MAX_ROWS"),
			},
			&cli.DurationFlag{
				Name:    "query-timeout",
				Usage:   "Per-statement execution timeout",
				Value:   executor.DefaultTimeout,
				Sources: cli.EnvVars("QUERY_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "schema-ttl",
				Usage:   "How long a schema snapshot is served before refresh",
				Value:   schema.DefaultTTL,
				Sources: cli.EnvVars("SCHEMA_TTL"),
			},
			&cli.StringFlag{
				Name:    "schema-refresh",
				Usage:   "Cron schedule for background schema refresh",
				Value:   "@hourly",
				Sources: cli.EnvVars("SCHEMA_REFRESH"),
			},
			&cli.DurationFlag{
				Name:    "confirmation-ttl",
				Usage:   "How long a suspended query waits for a decision",
				Value:   30 * time.Minute,
				Sources: cli.EnvVars("CONFIRMATION_TTL"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OTLP traces",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing AskDB API")

			db := cmd.NewDatabase(ctx, logger, command.String("database-url"))
			defer func() {
				if err := db.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close database", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			checkpoints := cmd.NewCheckpointStore(ctx, logger,
				command.String("redis-url"), command.Duration("confirmation-ttl"))

			schemaProvider := schema.NewProvider(schema.NewPostgresFetcher(db),
				command.Duration("schema-ttl"), logger)

			refresher := cron.New()
			if err := schemaProvider.ScheduleRefresh(refresher, command.String("schema-refresh")); err != nil {
				return err
			}

			refresher.Start()
			defer refresher.Stop()

			gate := permissions.NewGate(permissions.NewPostgresPrincipalStore(db), logger)

			llmConfig := llm.Config{
				OpenAIAPIKey:    command.String("openai-api-key"),
				OpenAIModel:     command.String("openai-model"),
				AnthropicAPIKey: command.String("anthropic-api-key"),
				AnthropicModel:  command.String("anthropic-model"),
			}

			generators := make(map[models.Provider]workflow.Generator)

			for _, name := range []models.Provider{models.ProviderOpenAI, models.ProviderAnthropic} {
				provider, err := llm.NewProvider(name, llmConfig)
				if err != nil {
					return err
				}

				generators[name] = llm.NewGenerator(provider, logger)
			}

			judgeProvider, err := llm.NewProvider(
				models.Provider(command.String("judge-provider")), llmConfig)
			if err != nil {
				return err
			}

			pipeline := validation.NewPipeline(
				validation.NewSemanticValidator(llm.NewSafetyJudge(judgeProvider, logger), logger),
				gate,
				logger,
			)

			var tracer trace.Tracer
			if command.Bool("tracing") {
				tracer, err = otelhelper.NewTracer(ctx, "askdb-api")
				if err != nil {
					return err
				}
			}

			engine := workflow.NewEngine(workflow.Config{
				Schema:              schemaProvider,
				Access:              gate,
				Generators:          generators,
				Validator:           pipeline,
				Executor:            executor.New(db, command.Int("max-rows"), command.Duration("query-timeout"), logger),
				Checkpoints:         checkpoints,
				Bus:                 eventBus,
				Tracer:              tracer,
				Logger:              logger,
				RequireConfirmation: command.Bool("require-confirmation"),
			})

			api := NewAPI(logger, engine, schemaProvider, gate)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
