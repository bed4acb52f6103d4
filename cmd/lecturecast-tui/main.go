package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lecturecast/lecturecast/internal/catalog"
	"github.com/lecturecast/lecturecast/internal/config"
	"github.com/lecturecast/lecturecast/internal/download"
	"github.com/lecturecast/lecturecast/internal/engine"
	httpx "github.com/lecturecast/lecturecast/internal/http"
	"github.com/lecturecast/lecturecast/internal/playback"
	"github.com/lecturecast/lecturecast/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// Keep log noise off the alternate screen.
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)

	client := httpx.NewClient()
	cat := catalog.NewClient(settings.CatalogBaseURL, client)

	manager, err := download.NewManager(settings, client, cat, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer manager.Close()

	eng := engine.NewSimulated(time.Duration(settings.PositionTickMs) * time.Millisecond)
	defer eng.Close()

	syncer := playback.NewProgressSyncer(client, settings.ProgressSyncURL, log)
	defer syncer.Close()

	session := playback.NewSession(eng, cat,
		playback.WithLogger(log),
		playback.WithSyncer(syncer, time.Duration(settings.PositionSyncEveryS)*time.Second),
	)
	defer session.Close()

	if err := tui.Run(settings, session, manager, cat); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
