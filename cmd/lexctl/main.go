// Command lexctl is an operator tool for the lexical diversity service.
//
// Usage:
//
//	lexctl [-config path] delete ACCOUNT   remove an account's cached scores
//	lexctl [-threshold f] score FILE       score a whitespace-tokenized file
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Lucent/lexical-diversity/internal/mtld"
	"github.com/Lucent/lexical-diversity/internal/store"
	"github.com/Lucent/lexical-diversity/pkg/config"
	"github.com/Lucent/lexical-diversity/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	threshold := flag.Float64("threshold", mtld.DefaultThreshold, "TTR segment threshold for score")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "delete":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = deleteAccount(*configPath, args[1])
	case "score":
		if len(args) != 2 {
			usage()
			os.Exit(2)
		}
		err = scoreFile(args[1], *threshold)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexctl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lexctl [-config path] delete ACCOUNT")
	fmt.Fprintln(os.Stderr, "       lexctl [-threshold f] score FILE")
}

// deleteAccount removes every cached score for the account from the
// durable store.
func deleteAccount(configPath, account string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Postgres.Host == "" {
		return fmt.Errorf("postgres is not configured; nothing to delete from")
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	account = strings.ToLower(strings.TrimSpace(account))
	if err := store.NewPostgresStore(db).Delete(ctx, account); err != nil {
		return err
	}
	fmt.Printf("deleted cached scores for %s\n", account)
	return nil
}

// scoreFile reads whitespace-separated tokens from a file and prints the
// MTLD score and vocabulary statistics.
func scoreFile(path string, threshold float64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		tokens = append(tokens, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	result, err := mtld.New(threshold).Analyze(tokens)
	if err != nil {
		return err
	}

	fmt.Printf("tokens:        %d\n", result.TokenCount)
	fmt.Printf("vocabulary:    %d\n", result.VocabSize)
	fmt.Printf("ttr:           %.4f\n", result.TTR)
	fmt.Printf("hapax ratio:   %.4f\n", result.HapaxRatio)
	fmt.Printf("vocab per 1k:  %.1f\n", result.VocabPer1k)
	fmt.Printf("mtld:          %.2f\n", result.Score)
	return nil
}
