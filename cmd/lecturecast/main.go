package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lecturecast/lecturecast/internal/audio"
	"github.com/lecturecast/lecturecast/internal/catalog"
	"github.com/lecturecast/lecturecast/internal/config"
	"github.com/lecturecast/lecturecast/internal/download"
	httpx "github.com/lecturecast/lecturecast/internal/http"
	"github.com/lecturecast/lecturecast/internal/model"
)

func main() {
	// Command line flags
	var (
		outputFlag   = flag.String("output", "", "Downloads directory (overrides config)")
		configFlag   = flag.String("config", "", "Path to config file")
		verboseFlag  = flag.Bool("verbose", false, "Show verbose output")
		playlistFlag = flag.String("playlist-format", "m3u", "Playlist format for export (m3u or pls)")
	)

	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Println("Lecturecast - Lecture audio player and offline library")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  lecturecast list                    List catalog lectures")
		fmt.Println("  lecturecast download <id> [id...]   Download lectures for offline playback")
		fmt.Println("  lecturecast downloads               Show the offline library and storage usage")
		fmt.Println("  lecturecast delete <id>             Delete an offline copy")
		fmt.Println("  lecturecast export <file>           Export the offline library as a playlist")
		fmt.Println()
		fmt.Println("For interactive playback, use: lecturecast-tui")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(1)
	}

	logrus.SetLevel(logrus.WarnLevel)
	if *verboseFlag {
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Load config
	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	if *outputFlag != "" {
		settings.DownloadsPath = *outputFlag
	}

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cancelling...")
		cancel()
	}()

	client := httpx.NewClient()
	cat := catalog.NewClient(settings.CatalogBaseURL, client)

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "list":
		err = runList(ctx, cat)
	case "download":
		err = runDownload(ctx, settings, client, cat, args)
	case "downloads":
		err = runDownloads(settings, client, cat)
	case "delete":
		err = runDelete(settings, client, cat, args)
	case "export":
		err = runExport(settings, client, cat, *playlistFlag, args)
	default:
		err = fmt.Errorf("unknown command %q", command)
	}

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nCancelled.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runList(ctx context.Context, cat *catalog.Client) error {
	lectures, err := cat.Lectures(ctx)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	fmt.Println("🎧 Lecturecast Catalog")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, lecture := range lectures {
		fmt.Printf("  %-12s %s · %s (%s)\n",
			lecture.ID, lecture.Title, lecture.SpeakerName,
			model.FormatClock(lecture.DurationSeconds))
	}
	fmt.Printf("\n%d lecture(s)\n", len(lectures))
	return nil
}

func runDownload(ctx context.Context, settings *config.Settings, client *httpx.Client, cat *catalog.Client, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("download requires at least one lecture id")
	}

	manager, err := download.NewManager(settings, client, cat, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer manager.Close()

	events, unsubscribe := manager.Subscribe()
	defer unsubscribe()

	pending := make(map[string]bool)
	for _, id := range ids {
		lecture, err := cat.Lecture(ctx, id)
		if err != nil {
			return fmt.Errorf("lecture %s: %w", id, err)
		}
		if manager.IsDownloaded(id) {
			fmt.Printf("✅ %s already downloaded\n", lecture.Title)
			continue
		}
		if err := manager.StartDownload(lecture); err != nil {
			return err
		}
		fmt.Printf("📥 %s queued\n", lecture.Title)
		pending[id] = true
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			for id := range pending {
				manager.CancelDownload(id)
			}
			return ctx.Err()
		case ev := <-events:
			if !pending[ev.Record.LectureID()] {
				continue
			}
			switch ev.Record.Status {
			case download.StatusCompleted:
				fmt.Printf("✅ %s (%s)\n", ev.Record.Lecture.Title, download.FormatBytes(ev.Record.BytesDownloaded))
				delete(pending, ev.Record.LectureID())
			case download.StatusFailed:
				fmt.Printf("❌ %s: %s\n", ev.Record.Lecture.Title, ev.Record.Error)
				delete(pending, ev.Record.LectureID())
			case download.StatusCanceled:
				delete(pending, ev.Record.LectureID())
			}
		}
	}

	fmt.Printf("\n✨ Done. Library uses %s.\n", download.FormatBytes(manager.TotalStorageUsed()))
	return nil
}

func runDownloads(settings *config.Settings, client *httpx.Client, cat *catalog.Client) error {
	manager, err := download.NewManager(settings, client, cat, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer manager.Close()

	records := manager.Downloads()
	if len(records) == 0 {
		fmt.Println("Nothing downloaded yet.")
		return nil
	}

	fmt.Println("📦 Offline Library")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	for _, rec := range records {
		status := string(rec.Status)
		if rec.Status == download.StatusCompleted {
			status = download.FormatBytes(rec.BytesDownloaded)
		}
		fmt.Printf("  %-12s %s · %s\n", rec.LectureID(), rec.Lecture.Title, status)
	}
	fmt.Printf("\nTotal: %s\n", download.FormatBytes(manager.TotalStorageUsed()))
	return nil
}

func runDelete(settings *config.Settings, client *httpx.Client, cat *catalog.Client, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("delete requires a lecture id")
	}

	manager, err := download.NewManager(settings, client, cat, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer manager.Close()

	for _, id := range ids {
		if err := manager.DeleteDownload(id); err != nil {
			return err
		}
		fmt.Printf("🗑  %s deleted\n", id)
	}
	fmt.Printf("Library now uses %s.\n", download.FormatBytes(manager.TotalStorageUsed()))
	return nil
}

func runExport(settings *config.Settings, client *httpx.Client, cat *catalog.Client, format string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("export requires an output file")
	}

	var playlistFormat audio.PlaylistFormat
	switch strings.ToLower(format) {
	case "m3u":
		playlistFormat = audio.FormatM3U
	case "pls":
		playlistFormat = audio.FormatPLS
	default:
		return fmt.Errorf("unknown playlist format %q", format)
	}

	manager, err := download.NewManager(settings, client, cat, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer manager.Close()

	var entries []audio.PlaylistEntry
	for _, rec := range manager.Downloads() {
		if rec.Status != download.StatusCompleted {
			continue
		}
		entries = append(entries, audio.PlaylistEntry{
			Path:            rec.LocalPath,
			Title:           rec.Lecture.Title,
			Artist:          rec.Lecture.SpeakerName,
			DurationSeconds: rec.Lecture.DurationSeconds,
		})
	}
	if len(entries) == 0 {
		return fmt.Errorf("no completed downloads to export")
	}

	outPath := args[0]
	if filepath.Ext(outPath) == "" {
		outPath += playlistFormat.Extension()
	}

	creator := audio.NewPlaylistCreator(playlistFormat, true)
	content := creator.Create("Lecturecast Library", entries)
	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("write playlist: %w", err)
	}

	fmt.Printf("✨ Exported %d track(s) to %s\n", len(entries), outPath)
	return nil
}
