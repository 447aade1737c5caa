// Command policyserve runs a policy server over HTTP, using the
// declarative rule engine to load its policies from a YAML manifest file
// rather than requiring a Go handler per policy.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"goa.design/clue/log"

	"github.com/agentpolicylayer/apl-go/policyserver"
	"github.com/agentpolicylayer/apl-go/ruleengine"
	"github.com/agentpolicylayer/apl-go/telemetry"
	apphttp "github.com/agentpolicylayer/apl-go/transport/http"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	manifestPath := flag.String("manifest",
		getEnv("APL_MANIFEST", "./policies.yaml"),
		"Path to the declarative policy manifest")
	addr := flag.String("addr", getEnv("APL_ADDR", ":8080"), "HTTP listen address")
	ginMode := flag.String("gin-mode", getEnv("GIN_MODE", "release"), "Gin mode: debug, release, or test")
	dbg := flag.Bool("debug", false, "Log request and response bodies")
	flag.Parse()

	gin.SetMode(*ginMode)

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbg {
		ctx = log.Context(ctx, log.WithDebug())
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := telemetry.NewClueLogger()

	data, err := os.ReadFile(*manifestPath)
	if err != nil {
		logger.Error(ctx, "reading manifest", "path", *manifestPath, "err", err)
		os.Exit(1)
	}
	manifest, err := ruleengine.LoadManifest(data)
	if err != nil {
		logger.Error(ctx, "loading manifest", "path", *manifestPath, "err", err)
		os.Exit(1)
	}

	server := policyserver.NewServer(manifest.Name, manifest.Version)
	server.Description = manifest.Description
	server.Logger = logger
	for _, policy := range manifest.Policies {
		server.Register(policyserver.RegisteredPolicy{
			Name:      policy.Name,
			Version:   policy.Version,
			Events:    policy.Events,
			Blocking:  policy.Blocking,
			TimeoutMS: policy.TimeoutMS,
			Handler:   ruleengine.CompileHandler(policy),
		})
	}
	logger.Info(ctx, "loaded policies", "count", len(manifest.Policies), "manifest", *manifestPath)

	transport := apphttp.New(*addr)
	transport.Logger = logger
	logger.Info(ctx, "starting http transport", "addr", *addr)
	if err := server.Run(ctx, transport); err != nil {
		logger.Error(ctx, "serving stopped with an error", "err", err)
		os.Exit(1)
	}
	logger.Info(ctx, "shut down cleanly")
}
