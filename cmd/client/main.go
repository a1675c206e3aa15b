package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nestjam/yap-shortlink/internal/client"
)

const (
	minCount          = 2
	wrongArgs         = "shorten, expand or stats subcommand required"
	shortenSubcommand = "shorten"
	expandSubcommand  = "expand"
	statsSubcommand   = "stats"
	requestTimeout    = 10 * time.Second
)

func main() {
	if len(os.Args) < minCount {
		exit(wrongArgs)
	}

	subcommand := os.Args[1]
	flagSet := flag.NewFlagSet(subcommand, flag.ExitOnError)
	serverAddr := flagSet.String("a", "http://localhost:8080", "address of shortener server")
	if err := flagSet.Parse(os.Args[minCount:]); err != nil {
		exit(err)
	}

	c := client.New(client.WithServerAddress(*serverAddr), client.WithTimeout(requestTimeout))
	ctx := context.Background()

	switch subcommand {
	case shortenSubcommand:
		for _, url := range flagSet.Args() {
			result, err := c.Shorten(ctx, url)
			if err != nil {
				exit(err)
			}
			fmt.Println(result.ShortURL)
		}
	case expandSubcommand:
		for _, code := range flagSet.Args() {
			longURL, err := c.Expand(ctx, code)
			if err != nil {
				exit(err)
			}
			fmt.Println(longURL)
		}
	case statsSubcommand:
		for _, code := range flagSet.Args() {
			stats, err := c.Stats(ctx, code)
			if err != nil {
				exit(err)
			}
			fmt.Printf("%s\t%s\t%d\t%s\n", stats.Code, stats.LongURL, stats.Clicks, stats.CreatedAt.Format(time.RFC3339))
		}
	default:
		exit(wrongArgs)
	}
}

func exit(msg any) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
