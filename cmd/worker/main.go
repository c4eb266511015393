package main

import (
	"context"
	"log/slog"
	"os"

	"customer/config"
	"customer/internal/delivery"
	"customer/internal/delivery/consumer"
	"customer/internal/delivery/worker"
	"customer/internal/delivery/worker/handler"
	"customer/internal/domain/constants"
	logs "customer/internal/infra/log"
	"customer/internal/infra/persistence/postgres"
	"customer/internal/infra/pubsub"
	"customer/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectUsecase(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Options(
		fx.Provide(
			config.New,
			logs.New,
			context.Background,
			postgres.New,
		),
		pubsub.Module,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewCustomerRepository,
			postgres.NewTransactionManager,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewOrderEventReconciler,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewOrderPushHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				worker.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
		// The Kafka consumer only joins the delivery group when the kafka
		// provider is configured; push deployments run the HTTP endpoint
		// alone.
		fx.Provide(
			fx.Annotate(
				newOptionalKafkaConsumer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func newOptionalKafkaConsumer(params consumer.ConsumerParams) (delivery.Delivery, error) {
	if params.Cfg.PubSub == nil || params.Cfg.PubSub.Provider != constants.PubSubProviderKafka {
		return nil, nil
	}

	return consumer.NewConsumer(params)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, d := range params.Deliveries {
		if d == nil {
			continue
		}

		go func() {
			if err := d.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
