package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sebas/smqueue/internal/banner"
	"github.com/sebas/smqueue/internal/logger"
	"github.com/sebas/smqueue/internal/smqueue/app"
	"github.com/sebas/smqueue/internal/smqueue/config"
)

const version = "6.0"

func main() {
	var (
		configPath  = flag.String("config", "", "path to the YAML configuration file")
		showVersion = flag.Bool("version", false, "print the version and exit")
		genSQL      = flag.Bool("gensql", false, "emit the SQL to populate the configuration table and exit")
		genTex      = flag.Bool("gentex", false, "emit the LaTeX documentation for the configuration keys and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("smqueued %s\n", version)
		return
	}
	if *genSQL {
		if err := config.GenSQL(os.Stdout, "smqueued", version); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if *genTex {
		if err := config.GenTex(os.Stdout, "smqueued", version); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger.InitLogger(os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	server, err := app.NewServer(cfg)
	if err != nil {
		slog.Error("Failed to create smqueue server", "error", err)
		os.Exit(1)
	}

	banner.Print("smqueued "+version, []banner.ConfigLine{
		{Label: "SIP port", Value: cfg.GetStr("SIP.myPort")},
		{Label: "API", Value: cfg.GetStr("NodeManager.API.Bind")},
		{Label: "Registry", Value: cfg.GetStr("SubscriberRegistry.db")},
		{Label: "Save file", Value: cfg.GetStr("savefile")},
	})

	slog.Info("Starting smqueue",
		"version", version,
		"sip_port", cfg.GetInt("SIP.myPort"),
		"api", cfg.GetStr("NodeManager.API.Bind"),
	)

	stop := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down", "signal", sig)
		close(stop)
	}()

	if err := server.Run(stop); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
