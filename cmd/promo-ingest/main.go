// Command promo-ingest loads bulk promo code feeds into the database.
//
// Partner feeds arrive as gzip-compressed files of JSON lines
// (promofeedN.gz). A code is only trusted when it appears in at least two
// independent feeds; the cross-check runs on per-feed bloom filters so the
// full code sets never have to be held in memory.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hallmart/storefront/internal/domain/pricing"
	"github.com/hallmart/storefront/internal/storage/postgres"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	numFeeds      = 3
	progressEvery = 10_000_000
	minCodeLen    = 6
	maxCodeLen    = 12
	upsertBatch   = 500
)

// feedEntry is one JSON line of a partner feed.
type feedEntry struct {
	Code        string
	Type        string
	Value       string
	Description string
}

// feedResult holds candidate entries found in a single feed during pass 2.
type feedResult struct {
	masks   map[string]uint
	entries map[string]feedEntry
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promofeedN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promo ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	feeds := make([]string, numFeeds)
	for i := range numFeeds {
		feeds[i] = filepath.Join(dataDir, fmt.Sprintf("promofeed%d.gz", i+1))
	}
	for _, f := range feeds {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check feed %s", f)
		}
	}

	// Pass 1: Build one bloom filter per feed, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))

	filters, err := buildBloomFilters(ctx, feeds)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: Find codes appearing in 2+ feeds.
	slog.Info("pass 2: cross-checking feeds")

	trusted, err := findTrustedCodes(ctx, feeds, filters)
	if err != nil {
		return errors.Wrap(err, "find trusted codes")
	}

	slog.Info("trusted codes found", slog.Int("count", len(trusted)))

	if len(trusted) == 0 {
		slog.Info("no trusted codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writePromoCodes(ctx, postgres.NewPromoRepository(pool), trusted); err != nil {
		return errors.Wrap(err, "write promo codes to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, feeds []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(buildFilterForFeed(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamFeed(ctx, path, func(e feedEntry) {
			filter.AddString(e.Code)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("codes", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for feed %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_codes", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findTrustedCodes re-streams each feed and checks codes against OTHER feeds'
// bloom filters. A code is trusted if it appears in 2 or more feeds.
func findTrustedCodes(ctx context.Context, feeds []string, filters []*bloom.BloomFilter) ([]feedEntry, error) {
	results := make([]feedResult, len(feeds))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range feeds {
		g.Go(findCandidatesInFeed(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all feeds. The first feed carrying a candidate
	// supplies the discount rule.
	merged := make(map[string]uint)
	entries := make(map[string]feedEntry)
	for _, r := range results {
		for code, mask := range r.masks {
			merged[code] |= mask
			if _, ok := entries[code]; !ok {
				entries[code] = r.entries[code]
			}
		}
	}

	var trusted []feedEntry
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			trusted = append(trusted, entries[code])
		}
	}

	return trusted, nil
}

func findCandidatesInFeed(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []feedResult,
) func() error {
	return func() error {
		masks := make(map[string]uint)
		entries := make(map[string]feedEntry)
		feedBit := uint(1) << uint(idx)
		var count uint64

		if err := streamFeed(ctx, path, func(e feedEntry) {
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("codes", count),
				)
			}

			// Check if this code appears in any OTHER feed's bloom filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(e.Code) {
					masks[e.Code] |= feedBit
					entries[e.Code] = e
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_codes", count),
			slog.Int("candidates", len(masks)),
		)

		results[idx] = feedResult{masks: masks, entries: entries}
		return nil
	}
}

// streamFeed opens a gzip-compressed feed and calls fn for each well-formed
// JSON line. Malformed or out-of-range lines are skipped.
func streamFeed(ctx context.Context, path string, fn func(e feedEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := parseFeedLine(scanner.Bytes())
		if err != nil {
			continue
		}
		if len(e.Code) < minCodeLen || len(e.Code) > maxCodeLen {
			continue
		}
		fn(e)
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// parseFeedLine decodes a single feed line like
// {"code":"SUMMER24","type":"percentage","value":"15","description":"..."}.
func parseFeedLine(line []byte) (feedEntry, error) {
	var e feedEntry
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			e.Code, err = d.Str()
		case "type":
			e.Type, err = d.Str()
		case "value":
			e.Value, err = d.Str()
		case "description":
			e.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return feedEntry{}, err
	}
	if e.Code == "" {
		return feedEntry{}, errors.New("missing code")
	}
	return e, nil
}

// writePromoCodes upserts all trusted codes into the database in batches.
func writePromoCodes(ctx context.Context, repo *postgres.PromoRepository, entries []feedEntry) error {
	slog.Info("writing promo codes to database", slog.Int("count", len(entries)))

	batch := make([]pricing.PromoCode, 0, upsertBatch)
	written := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := repo.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		written += len(batch)
		slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(entries)))
		batch = batch[:0]
		return nil
	}

	for _, e := range entries {
		promo, err := toPromoCode(e)
		if err != nil {
			slog.Warn("skipping malformed entry", slog.String("code", e.Code), slog.String("error", err.Error()))
			continue
		}

		batch = append(batch, promo)
		if len(batch) == upsertBatch {
			if err := flush(); err != nil {
				return errors.Wrap(err, "upsert batch")
			}
		}
	}

	if err := flush(); err != nil {
		return errors.Wrap(err, "upsert final batch")
	}

	return nil
}

func toPromoCode(e feedEntry) (pricing.PromoCode, error) {
	var dt pricing.DiscountType
	switch e.Type {
	case "percentage":
		dt = pricing.DiscountPercentage
	case "fixed":
		dt = pricing.DiscountFixed
	default:
		return pricing.PromoCode{}, errors.Errorf("unknown discount type %q", e.Type)
	}

	value, err := decimal.NewFromString(e.Value)
	if err != nil {
		return pricing.PromoCode{}, errors.Wrap(err, "parse value")
	}
	if value.IsNegative() {
		return pricing.PromoCode{}, errors.New("negative value")
	}

	return pricing.PromoCode{
		Code:         e.Code,
		DiscountType: dt,
		Value:        value,
		Description:  e.Description,
	}, nil
}
