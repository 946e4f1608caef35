// Command seed imports meetings from interchange JSON files.
//
//	seed demo/*.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/minutes-backend/internal/app"
	"github.com/yungbote/minutes-backend/internal/interchange"
	"github.com/yungbote/minutes-backend/internal/platform/shutdown"
)

func main() {
	_ = godotenv.Load()
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s file.json [file.json ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	imported, failed := 0, 0
	for _, path := range flag.Args() {
		n, err := seedFile(ctx, a, path)
		imported += n
		if err != nil {
			failed++
			a.Log.Error("Seed file failed", "path", path, "error", err)
		}
	}
	a.Log.Info("Seeding done", "imported", imported, "failed_files", failed)
	if failed > 0 {
		a.Close()
		os.Exit(1)
	}
}

func seedFile(ctx context.Context, a *app.App, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	docs, err := interchange.Decode(f)
	if err != nil {
		return 0, err
	}
	n := 0
	for i, doc := range docs {
		m, err := doc.ToMeeting()
		if err != nil {
			return n, fmt.Errorf("document %d: %w", i, err)
		}
		id, err := a.Services.Usecases.ImportMeeting(ctx, m)
		if err != nil {
			return n, fmt.Errorf("document %d: %w", i, err)
		}
		a.Log.Info("Meeting imported", "meeting_id", id, "title", m.Title)
		n++
	}
	return n, nil
}
