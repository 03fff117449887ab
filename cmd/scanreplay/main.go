// Command scanreplay replays a captured keystroke log through the barcode
// classifier and the catalog matcher, printing every scan and discard.
package main

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/noah-isme/backend-pos/internal/barcode"
	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/obs"
)

func main() {
	keysPath := flag.String("keys", "-", "JSON-lines keystroke log, - for stdin")
	productsPath := flag.String("products", "", "JSON array of products to match against")
	timeout := flag.Duration("timeout", barcode.DefaultTimeout, "silence that ends a scanner burst")
	minLength := flag.Int("min-length", barcode.DefaultMinLength, "shortest burst accepted as a scan")
	format := flag.String("format", "text", "output format: text or json")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logger := obs.NewLoggerTo(os.Stderr, "console", *logLevel)
	if *productsPath == "" {
		logger.Fatal().Msg("-products is required")
	}

	pf, err := os.Open(*productsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open products")
	}
	products, err := readProducts(pf)
	_ = pf.Close()
	if err != nil {
		logger.Fatal().Err(err).Msg("read products")
	}

	var keysIn io.Reader = os.Stdin
	if *keysPath != "-" {
		kf, err := os.Open(*keysPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("open keystroke log")
		}
		defer kf.Close()
		keysIn = kf
	}
	keys, err := readKeystrokes(keysIn)
	if err != nil {
		logger.Fatal().Err(err).Msg("read keystroke log")
	}

	svc, err := catalog.NewService(catalog.ServiceConfig{Store: catalog.NewMemoryStore(nil, products), Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("build catalog")
	}
	outcomes, err := replay(context.Background(), keys, svc, replayConfig{Timeout: *timeout, MinLength: *minLength, Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("replay")
	}
	if err := writeOutcomes(os.Stdout, outcomes, *format); err != nil {
		logger.Fatal().Err(err).Msg("write output")
	}
	logger.Info().Int("keys", len(keys)).Int("outcomes", len(outcomes)).Msg("replay finished")
}
