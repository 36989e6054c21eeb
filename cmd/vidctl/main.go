package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"vidadmin/internal/core"
)

func main() {
	server := flag.String("server", envOr("VIDCTL_SERVER", "http://localhost:8080"), "panel base URL")
	email := flag.String("email", envOr("VIDCTL_EMAIL", ""), "admin email")
	password := flag.String("password", os.Getenv("VIDCTL_PASSWORD"), "admin password (or VIDCTL_PASSWORD)")
	folder := flag.String("folder", "movie-en", "target folder: movie-en, movie-ru or movie-uz")
	list := flag.Bool("list", false, "list stored videos instead of uploading")
	timeout := flag.Duration("timeout", 2*time.Hour, "overall time limit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vidctl [flags] <file-or-dir>...\n       vidctl [flags] -list\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var videos []core.VideoFile
	if !*list {
		parsedPaths, err := core.ParseArgs(flag.Args())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		videos, err = core.CollectVideos(parsedPaths)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	client := core.NewClient(*server, nil)
	if err := client.Login(ctx, *email, *password); err != nil {
		fmt.Fprintf(os.Stderr, "Error logging in: %v\n", err)
		os.Exit(1)
	}

	if *list {
		remote, err := client.List(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing videos: %v\n", err)
			os.Exit(1)
		}
		for _, v := range remote {
			fmt.Printf("%-9s %-40s %s\n  %s\n", v.Folder, v.Name, v.CreatedAt.Local().Format(time.DateTime), v.URL)
		}
		fmt.Printf("\n%d video(s)\n", len(remote))
		return
	}

	failed := 0
	for _, v := range videos {
		result, err := client.Upload(ctx, *folder, v)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", v.Path, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s → %s\n  %s\n", v.Name, result.FilePath, result.DownloadURL)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d of %d upload(s) failed\n", failed, len(videos))
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
