package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/stockeasy/stockeasy/internal/app"
	"github.com/stockeasy/stockeasy/internal/backend"
	"github.com/stockeasy/stockeasy/internal/product"
)

var samples = map[product.Kind][]product.Draft{
	product.Inventory: {
		{Name: "Harina de trigo", Quantity: 40, Price: 18.5, Description: "Saco de 25 kg"},
		{Name: "Azúcar morena", Quantity: 25, Price: 22, Description: "Bolsa de 5 kg"},
		{Name: "Levadura seca", Quantity: 6, Price: 9.75},
		{Name: "Mantequilla", Quantity: 12, Price: 31.2, Description: "Barra de 1 kg"},
	},
	product.Sales: {
		{Name: "Pan de caja", Quantity: 30, Price: 42},
		{Name: "Concha de vainilla", Quantity: 60, Price: 12},
		{Name: "Galletas de mantequilla", Quantity: 15, Price: 55, Description: "Paquete de 12"},
	},
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	logger := app.NewLogger(cfg)

	client, closeBackend, err := app.NewBackend(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("connect backend: %v", err)
	}
	defer closeBackend()

	email := getenv("SEED_EMAIL", cfg.DevUserEmail)
	password := getenv("SEED_PASSWORD", cfg.DevUserPassword)
	session, err := client.Auth().SignInWithPassword(ctx, email, password)
	if err != nil {
		log.Fatalf("sign in as %s: %v", email, err)
	}
	ctx = backend.WithAccessToken(ctx, session.AccessToken)
	defer func() {
		if err := client.Auth().SignOut(ctx, session.AccessToken); err != nil {
			logger.Warn("sign out", slog.Any("error", err))
		}
	}()

	for _, kind := range product.Kinds {
		fmt.Printf("→ Seeding %s...\n", kind.Table())
		added, err := seed(ctx, product.NewStore(kind, client.From(kind.Table()), nil), samples[kind])
		if err != nil {
			log.Fatalf("seed %s: %v", kind.Table(), err)
		}
		fmt.Printf("  %d added\n", added)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// seed creates every draft whose name is not already present.
func seed(ctx context.Context, store *product.Store, drafts []product.Draft) (int, error) {
	existing, err := store.LoadAll(ctx)
	if err != nil {
		return 0, err
	}
	names := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		names[p.Name] = struct{}{}
	}
	added := 0
	for _, d := range drafts {
		if _, ok := names[d.Name]; ok {
			continue
		}
		if _, err := store.Create(ctx, d); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
