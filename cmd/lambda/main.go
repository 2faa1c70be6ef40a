package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/septafinder/backend-go/internal/api"
	"github.com/septafinder/backend-go/internal/app"
	"github.com/septafinder/backend-go/internal/config"
	"github.com/septafinder/backend-go/internal/handler"
)

var (
	lambdaStart = lambda.Start // Allow mocking of lambda.Start in tests
	adapter     *handler.LambdaAdapter
	setupOnce   sync.Once
	initHandler = defaultInitHandler
)

func defaultInitHandler(ctx context.Context) (*handler.LambdaAdapter, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	cfg.InitializeLogging()
	gin.SetMode(gin.ReleaseMode)

	// The index lives for the lifetime of the execution environment
	service, err := app.New(ctx, cfg, config.GetCacheConfig(), app.DefaultFactory{})
	if err != nil {
		return nil, fmt.Errorf("initializing service: %w", err)
	}
	return handler.NewLambdaAdapter(service.Handler(), nil), nil
}

func handleRequest(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if adapter == nil {
		log.Error().Msg("Handler not initialized")
		return api.LambdaError(api.MessageInternal, http.StatusInternalServerError), nil
	}
	return adapter.HandleRequest(ctx, event)
}

func InitializeService() error {
	var initError error
	setupOnce.Do(func() {
		log.Debug().Msg("Initializing station finder service...")
		h, err := initHandler(context.Background())
		if err != nil {
			initError = fmt.Errorf("failed to initialize handler: %w", err)
			log.Error().Err(err).Msg("Failed to initialize handler")
			return
		}
		adapter = h
		log.Debug().Msg("Station finder service initialized successfully")
	})
	return initError
}

func main() {
	if err := InitializeService(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}
	lambdaStart(handleRequest)
}
