package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/poiesic/servicefinder/core"
	"github.com/poiesic/servicefinder/ingestion"
	"github.com/poiesic/servicefinder/reembed"
	"github.com/poiesic/servicefinder/storage"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

func printSummary(w io.Writer, s *reembed.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Embedding summary"))
	fmt.Fprintf(w, "  Run:        %s\n", s.RunID)
	fmt.Fprintf(w, "  Processed:  %d\n", s.Total)
	fmt.Fprintf(w, "  Succeeded:  %s\n", green(s.Succeeded))
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Failed:     %s\n", red(s.Failed))
	} else {
		fmt.Fprintf(w, "  Failed:     %d\n", s.Failed)
	}
	fmt.Fprintf(w, "  Success:    %.1f%%\n", s.SuccessRate)
	fmt.Fprintf(w, "  Batches:    %d\n", s.Batches)
	fmt.Fprintf(w, "  Elapsed:    %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "  Embedded:   %d/%d records in store\n", s.Embedded, s.StoreTotal)

	if len(s.Failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, red("Failures"))
		for _, f := range s.Failures {
			fmt.Fprintf(w, "  %s %s: %s\n", yellow(f.ID), f.Name, f.Error)
		}
	}
}

func printResults(w io.Writer, results []*core.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching services found.")
		return
	}
	for _, r := range results {
		fmt.Fprintf(w, "%s %s %s\n",
			bold(fmt.Sprintf("%2d.", r.Rank)),
			green(r.Record.Name),
			cyan(fmt.Sprintf("(similarity: %.2f)", r.DisplaySimilarity())))
		fmt.Fprintf(w, "    id: %s", r.Record.ID)
		if len(r.Record.Locations) > 0 {
			fmt.Fprintf(w, "  locations: %s", strings.Join(r.Record.Locations, ", "))
		}
		fmt.Fprintln(w)
	}
}

func printImportSummary(w io.Writer, s *ingestion.ImportSummary, embeds bool, embedded, failed int) {
	fmt.Fprintln(w, bold("Import summary"))
	fmt.Fprintf(w, "  Source:    %s\n", s.Source)
	fmt.Fprintf(w, "  Records:   %d\n", s.Total)
	fmt.Fprintf(w, "  Imported:  %s\n", green(s.Imported))
	if s.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped:   %d (resumed after %d batches)\n", s.Skipped, s.Resumed)
	}
	if s.Invalid > 0 {
		fmt.Fprintf(w, "  Invalid:   %s\n", red(s.Invalid))
	}
	if embeds {
		fmt.Fprintf(w, "  Embedded:  %d (%d failed)\n", embedded, failed)
	}
	fmt.Fprintf(w, "  Elapsed:   %s\n", s.Elapsed.Round(time.Millisecond))
}

type locationCount struct {
	Location string
	Total    int
	Only     int
}

type storeStats struct {
	Total     int
	Embedded  int
	Missing   int
	InAll     int
	Locations []locationCount
}

func collectStats(ctx context.Context, store storage.RecordStore, locations []string) (*storeStats, error) {
	var (
		s   storeStats
		err error
	)
	if s.Total, err = store.CountRecords(ctx, storage.Filter{}); err != nil {
		return nil, err
	}
	if s.Embedded, err = store.CountRecords(ctx, storage.Filter{EmbeddedOnly: true}); err != nil {
		return nil, err
	}
	s.Missing = s.Total - s.Embedded

	if len(locations) == 0 {
		return &s, nil
	}
	if s.InAll, err = store.CountRecords(ctx, storage.Filter{AllLocations: locations}); err != nil {
		return nil, err
	}
	for i, loc := range locations {
		others := append(append([]string{}, locations[:i]...), locations[i+1:]...)
		lc := locationCount{Location: loc}
		if lc.Total, err = store.CountRecords(ctx, storage.Filter{Locations: []string{loc}}); err != nil {
			return nil, err
		}
		if lc.Only, err = store.CountRecords(ctx, storage.Filter{Locations: []string{loc}, ExcludeLocations: others}); err != nil {
			return nil, err
		}
		s.Locations = append(s.Locations, lc)
	}
	return &s, nil
}

func printStats(w io.Writer, s *storeStats, checkpoint *core.Checkpoint) {
	fmt.Fprintln(w, bold("Records"))
	fmt.Fprintf(w, "  Total:              %d\n", s.Total)
	fmt.Fprintf(w, "  With embeddings:    %s\n", green(s.Embedded))
	fmt.Fprintf(w, "  Without embeddings: %s\n", yellow(s.Missing))
	if len(s.Locations) > 0 {
		fmt.Fprintf(w, "  In all locations:   %d\n", s.InAll)
		for _, lc := range s.Locations {
			fmt.Fprintf(w, "  %s: %d (%d only)\n", lc.Location, lc.Total, lc.Only)
		}
	}

	if checkpoint == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Last embedding run"))
	fmt.Fprintf(w, "  Run:       %s\n", checkpoint.RunID)
	fmt.Fprintf(w, "  Progress:  %d/%d\n", checkpoint.Processed, checkpoint.Total)
	fmt.Fprintf(w, "  Failed:    %d\n", checkpoint.Failed)
	fmt.Fprintf(w, "  Updated:   %s\n", checkpoint.UpdatedAt.Format(time.RFC3339))
}
