package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/hallmart/storefront/internal/domain/auth"
	"github.com/hallmart/storefront/internal/domain/catalog"
	"github.com/hallmart/storefront/internal/domain/pricing"
	"github.com/hallmart/storefront/internal/storage/postgres"
)

type variantJSON struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	Title        string          `json:"title"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	InventoryQty int             `json:"inventory_qty"`
	ImageURL     string          `json:"image_url"`
}

func main() {
	var (
		databaseURL  string
		variantsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&variantsFile, "variants-file", "db/seed/variants.json", "path to variants JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or STORE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STORE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STORE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STORE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STORE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, variantsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, variantsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedVariants(ctx, postgres.NewVariantRepository(pool), variantsFile); err != nil {
		return errors.Wrap(err, "seed variants")
	}

	if err := seedPromoCodes(ctx, postgres.NewPromoRepository(pool)); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}

	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedVariants(ctx context.Context, repo *postgres.VariantRepository, variantsFile string) error {
	slog.Info("reading variants file", slog.String("path", variantsFile))

	data, err := os.ReadFile(variantsFile)
	if err != nil {
		return errors.Wrap(err, "read variants file")
	}

	var variants []variantJSON
	if err := json.Unmarshal(data, &variants); err != nil {
		return errors.Wrap(err, "parse variants JSON")
	}

	slog.Info("upserting variants", slog.Int("count", len(variants)))

	for _, v := range variants {
		err := repo.Upsert(ctx, &catalog.Variant{
			ID:           v.ID,
			ProductID:    v.ProductID,
			Title:        v.Title,
			UnitPrice:    v.UnitPrice,
			InventoryQty: v.InventoryQty,
			ImageURL:     v.ImageURL,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert variant %s", v.ID)
		}

		slog.Info("upserted variant", slog.String("id", v.ID), slog.String("title", v.Title))
	}

	return nil
}

func seedPromoCodes(ctx context.Context, repo *postgres.PromoRepository) error {
	slog.Info("seeding starter promo codes")

	promos := []pricing.PromoCode{
		{
			Code:         "WELCOME10",
			DiscountType: pricing.DiscountPercentage,
			Value:        decimal.NewFromInt(10),
			Description:  "Welcome: 10% off entire order",
		},
		{
			Code:         "FIVER",
			DiscountType: pricing.DiscountFixed,
			Value:        decimal.NewFromInt(5),
			Description:  "Flat 5.00 off, capped at the subtotal",
		},
	}

	if err := repo.UpsertBatch(ctx, promos); err != nil {
		return errors.Wrap(err, "upsert promo codes")
	}

	for _, p := range promos {
		slog.Info("upserted promo code", slog.String("code", p.Code), slog.String("description", p.Description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *postgres.APIKeyRepository, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	err := repo.Insert(ctx, &auth.APIKeyInfo{
		ID:      "default-admin",
		KeyHash: keyHash,
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	})
	if err != nil {
		return errors.Wrap(err, "insert admin API key")
	}

	slog.Info("upserted API key", slog.String("id", "default-admin"), slog.String("name", "Default admin key"))

	return nil
}
