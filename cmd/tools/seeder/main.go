package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/noah-isme/offset-orders/internal/catalog"
	"github.com/noah-isme/offset-orders/internal/common"
	"github.com/noah-isme/offset-orders/internal/config"
	"github.com/noah-isme/offset-orders/internal/obs"
	"github.com/noah-isme/offset-orders/internal/order"
	"github.com/noah-isme/offset-orders/internal/pricing"
	"github.com/noah-isme/offset-orders/internal/store"
)

type sampleBook struct {
	book   catalog.BookInput
	orders []order.Input
}

func main() {
	force := flag.Bool("force", false, "seed even when books already exist")
	flag.Parse()

	cfg, err := config.LoadStore()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", cfg.Obs.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := store.Open(ctx, store.Options{
		Backend:        cfg.StoreBackend,
		PostgresDSN:    cfg.PostgresDSN(),
		SQLitePath:     cfg.SQLitePath,
		ConnectTimeout: cfg.StoreConnectTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer db.Close()
	if err := store.Prepare(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("prepare store")
	}

	books := catalog.NewRepository(db)
	orders := order.NewRepository(db)

	existing, err := books.List(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list books")
	}
	if len(existing) > 0 && !*force {
		logger.Info().Int("books", len(existing)).Msg("store already has books; pass -force to seed anyway")
		return
	}

	if err := seed(ctx, logger, books, orders); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}
}

func seed(ctx context.Context, logger zerolog.Logger, books *catalog.Repository, orders *order.Repository) error {
	var grand int64
	count := 0
	for _, sample := range samples() {
		bookID, err := books.Create(ctx, sample.book.Normalize())
		if err != nil {
			return err
		}
		for _, in := range sample.orders {
			in.BookID = common.Int(bookID)
			id, err := orders.Create(ctx, in)
			if err != nil {
				return err
			}
			created, err := orders.Get(ctx, id)
			if err != nil {
				return err
			}
			grand += created.EffectiveTotal()
			count++
		}
		logger.Info().Int64("book_id", bookID).Str("title", sample.book.Title).Int("orders", len(sample.orders)).Msg("seeded book")
	}
	logger.Info().
		Int("orders", count).
		Str("total", humanize.Comma(grand)).
		Msg("seeding completed")
	return nil
}

func itemized(costs map[pricing.Item]int64) pricing.Lines {
	var lines pricing.Lines
	for item, cost := range costs {
		lines[item] = pricing.Line{Cost: cost}
	}
	return lines
}

func samples() []sampleBook {
	return []sampleBook{
		{
			book: catalog.BookInput{
				Title: "Field Guide to Coastal Birds", Format: "A5", CoverPaper: "Art 250g", CoverColor: "4/0",
				InnerSpec: "Mojo 100g 4/4", TotalPages: 240, Endpaper: "present", Wing: "none",
				Binding: "perfect", Postprocess: "matte laminating",
			},
			orders: []order.Input{
				{Qty: common.Int(1000), UnitPrice: common.Int(5000), Vendor: "Daehan Printing", Date: "2024-03-02"},
				{Qty: common.Int(500), Vendor: "Daehan Printing", Date: "2024-05-14", Lines: itemized(map[pricing.Item]int64{
					pricing.CoverCTP: 100000, pricing.CoverPrint: 200000, pricing.Binding: 50000,
				})},
			},
		},
		{
			book: catalog.BookInput{
				Title: "Letterpress Notebook", Format: "B6", CoverPaper: "Kraft 300g", CoverColor: "1/0",
				InnerSpec: "Inner 1: Mojo 80g 1/1; Inner 2: Vellum 120g 4/4", TotalPages: 160,
				Endpaper: "none", Wing: "present", Binding: "thread sewn",
			},
			orders: []order.Input{
				{Qty: common.Int(2000), Vendor: "Seoul Offset", Date: "2024-04-20", Lines: itemized(map[pricing.Item]int64{
					pricing.CoverCTP: 80000, pricing.CoverPrint: 150000, pricing.CoverPaper: 210000,
					pricing.Inner1CTP: 120000, pricing.Inner1Print: 380000, pricing.Inner1Paper: 640000,
					pricing.Inner2CTP: 60000, pricing.Inner2Print: 90000, pricing.Inner2Paper: 110000,
					pricing.Binding: 240000, pricing.Delivery: 45000,
				})},
			},
		},
		{
			book: catalog.BookInput{Title: "Annual Report 2024", Format: "A4", TotalPages: 64, Binding: "saddle stitch"},
		},
	}
}
