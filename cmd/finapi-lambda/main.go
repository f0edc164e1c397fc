package main

import (
	"context"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"finapi/internal/api"
	"finapi/internal/cli"
	"finapi/internal/lambda"
	applog "finapi/internal/log"
)

func main() {
	logger := cli.SetupLogger(applog.ComponentLambda)
	cfg := cli.LoadAndValidateConfig(logger)

	// Built once per cold start and reused across invocations.
	res := cli.InitBackend(context.Background(), logger, cfg)

	handler := lambda.NewHandler(api.NewRouter(res.Service), logger)

	logger.Info("Lambda handler initialized", "backend", cfg.DataBackend, "table", cfg.TableName)
	awslambda.Start(handler.Invoke)
}
