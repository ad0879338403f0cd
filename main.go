package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/moyoez/cloudsend/api"
	"github.com/moyoez/cloudsend/api/notifyhub"
	"github.com/moyoez/cloudsend/notify"
	"github.com/moyoez/cloudsend/tool"
	"github.com/moyoez/cloudsend/transfer"
	"github.com/moyoez/cloudsend/types"
	"github.com/moyoez/cloudsend/uploader"
)

func main() {
	cfg := tool.SetFlags()

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)

	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlagOverrides(&appCfg, cfg)

	notify.SetUseNotify(appCfg.UseNotify)
	notify.SetSocketPath(appCfg.NotifySocket)

	var expiredOnce sync.Once
	client := transfer.NewClient(transfer.Options{
		BaseURL: appCfg.ServerURL,
		Token:   appCfg.Token,
		HTTPClient: tool.NewHTTPClient(
			time.Duration(appCfg.RequestTimeoutSeconds)*time.Second,
			appCfg.InsecureSkipVerify,
			appCfg.MaxInFlight,
		),
		MaxRetries: appCfg.MaxRetries,
		OnUnauthorized: func() {
			expiredOnce.Do(func() {
				tool.DefaultLogger.Warn("Remote store rejected the access token, log in again")
				api.ClearCaller()
				notify.SendSessionExpired()
			})
		},
	})

	engine, err := uploader.New(client, uploader.Options{
		ChunkSizeBytes:    appCfg.ChunkSizeBytes,
		ThresholdBytes:    tool.ChunkThreshold(appCfg),
		MaxInFlight:       appCfg.MaxInFlight,
		RequestsPerSecond: float64(appCfg.RequestsPerSecond),
	})
	if err != nil {
		tool.DefaultLogger.Fatalf("Failed to create upload engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	caller, authErr := authenticate(ctx, client, appCfg)

	if cfg.Upload != "" {
		if authErr != nil {
			stop()
			tool.DefaultLogger.Fatalf("Cannot upload: %v", authErr)
		}
		code := runOnce(ctx, engine, caller, strings.Split(cfg.Upload, ","), cfg.ParentFolderID)
		stop()
		os.Exit(code)
	}
	defer stop()

	if authErr != nil {
		tool.DefaultLogger.Warnf("Not logged in, uploads are refused until restart: %v", authErr)
	} else {
		api.SetCaller(caller)
		tool.DefaultLogger.Infof("Logged in to %s as %s (%s)", appCfg.ServerURL, caller.Name, caller.Role)
	}
	api.SetUploadEngine(engine)

	hub := notifyhub.New()
	notify.SetHub(hub)
	apiServer := api.NewServer(appCfg.ListenPort, hub)
	go func() {
		if err := apiServer.Start(); err != nil {
			tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
		}
	}()

	<-ctx.Done()
	tool.DefaultLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Errorf("API server shutdown failed: %v", err)
	}
}

// authenticate logs in when no token is configured and derives the caller
// from the token's claims.
func authenticate(ctx context.Context, client *transfer.Client, appCfg types.AppConfig) (types.Caller, error) {
	if client.Token() == "" {
		if appCfg.Username == "" || appCfg.Password == "" {
			return types.Caller{}, fmt.Errorf("no token and no username/password configured")
		}
		if _, err := client.Login(ctx, appCfg.Username, appCfg.Password); err != nil {
			return types.Caller{}, fmt.Errorf("login failed: %s", transfer.Reason(err))
		}
	}
	return tool.CallerFromToken(client.Token())
}

// runOnce uploads paths and returns the process exit code.
func runOnce(ctx context.Context, engine *uploader.Engine, caller types.Caller, paths []string, parentFolderID string) int {
	for i := range paths {
		paths[i] = strings.TrimSpace(paths[i])
	}
	entries, err := tool.CollectEntries(paths)
	if err != nil {
		tool.DefaultLogger.Errorf("%v", err)
		return 2
	}
	if len(entries) == 0 {
		tool.DefaultLogger.Warn("Nothing to upload")
		return 0
	}

	runID := tool.GenerateShortRunID()
	notify.SendUploadStart(runID, len(entries), tool.TotalSize(entries))
	report, err := engine.Upload(ctx, caller, entries, parentFolderID)
	if err != nil {
		tool.CloseEntries(entries)
		tool.DefaultLogger.Errorf("%v", err)
		return 2
	}
	notify.SendUploadEnd(runID, report)

	fmt.Println(uploader.Summary(report))
	for _, failure := range report.Failures {
		fmt.Printf("  %s: %s\n", failure.RelativePath, failure.Reason)
	}
	if len(report.Failures) > 0 {
		return 1
	}
	return 0
}
