package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/barcode"
	"github.com/noah-isme/backend-pos/internal/catalog"
)

// keystroke is one line of a captured keyboard log.
type keystroke struct {
	Key   string `json:"key"`
	TMs   int64  `json:"t_ms"`
	Focus string `json:"focus"`
	Ctrl  bool   `json:"ctrl"`
	Alt   bool   `json:"alt"`
	Meta  bool   `json:"meta"`
	Blur  bool   `json:"blur"`
}

// outcome is one replayed scan or discard.
type outcome struct {
	AtMs       int64    `json:"at_ms"`
	Kind       string   `json:"kind"`
	RawCode    string   `json:"raw_code"`
	Terminator string   `json:"terminator,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Rule       string   `json:"rule,omitempty"`
	ProductID  string   `json:"product_id,omitempty"`
	SKU        string   `json:"sku,omitempty"`
}

type replayConfig struct {
	Timeout   time.Duration
	MinLength int
	Logger    zerolog.Logger
}

func readKeystrokes(r io.Reader) ([]keystroke, error) {
	var out []keystroke
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var ks keystroke
		if err := json.Unmarshal([]byte(text), &ks); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, ks)
	}
	return out, sc.Err()
}

func readProducts(r io.Reader) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// replay feeds the keystrokes to a classifier on a virtual clock and resolves
// every completed scan against svc.
func replay(ctx context.Context, keys []keystroke, svc *catalog.Service, cfg replayConfig) ([]outcome, error) {
	start := time.Unix(0, 0).UTC()
	sched := barcode.NewManualScheduler(start)
	since := func(t time.Time) int64 { return t.Sub(start).Milliseconds() }

	var outcomes []outcome
	var lookupErr error
	c := barcode.New(barcode.Config{
		Timeout:   cfg.Timeout,
		MinLength: cfg.MinLength,
		Scheduler: sched,
		Logger:    cfg.Logger,
		OnScan: func(ev barcode.ScanEvent) {
			o := outcome{AtMs: since(ev.At), Kind: "scan", RawCode: ev.RawCode, Terminator: string(ev.Terminator), Candidates: ev.Candidates}
			res, err := svc.Lookup(ctx, ev.RawCode)
			if err != nil {
				lookupErr = err
				return
			}
			if res.Product != nil {
				o.Rule = string(res.Match.Rule)
				o.ProductID = res.Product.ID
				o.SKU = res.Product.SKU
			}
			outcomes = append(outcomes, o)
		},
		OnDiscard: func(raw string, reason barcode.DiscardReason) {
			outcomes = append(outcomes, outcome{AtMs: since(sched.Now()), Kind: "discard", RawCode: raw, Reason: string(reason)})
		},
	})
	defer c.Close()

	for _, ks := range keys {
		at := start.Add(time.Duration(ks.TMs) * time.Millisecond)
		sched.AdvanceTo(at)
		if ks.Blur {
			c.Blur()
			continue
		}
		c.HandleKey(barcode.KeyEvent{
			Key:   ks.Key,
			At:    at,
			Focus: barcode.ParseFocus(ks.Focus),
			Ctrl:  ks.Ctrl,
			Alt:   ks.Alt,
			Meta:  ks.Meta,
		})
		if lookupErr != nil {
			return outcomes, lookupErr
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = barcode.DefaultTimeout
	}
	sched.Advance(timeout)
	return outcomes, lookupErr
}

func writeOutcomes(w io.Writer, outcomes []outcome, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		for _, o := range outcomes {
			if err := enc.Encode(o); err != nil {
				return err
			}
		}
		return nil
	}
	for _, o := range outcomes {
		var err error
		switch {
		case o.Kind == "discard":
			_, err = fmt.Fprintf(w, "%8dms  discard  %-20q %s\n", o.AtMs, o.RawCode, o.Reason)
		case o.ProductID == "":
			_, err = fmt.Fprintf(w, "%8dms  scan     %-20q no match (%s)\n", o.AtMs, o.RawCode, strings.Join(o.Candidates, ", "))
		default:
			_, err = fmt.Fprintf(w, "%8dms  scan     %-20q %s %s via %s\n", o.AtMs, o.RawCode, o.ProductID, o.SKU, o.Rule)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
