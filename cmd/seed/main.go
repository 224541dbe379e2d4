package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"course-entitlement-platform/internal/config"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/repository"
	pg "course-entitlement-platform/internal/infra/db/postgres"
	"course-entitlement-platform/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	packageRepo := pg.NewPackageRepo(pool)
	packageUC := usecase.NewPackageUseCase(packageRepo)

	// If packages already exist, do nothing
	existing, err := packageUC.List(ctx)
	if err != nil {
		log.Fatalf("list packages: %v", err)
	}
	if len(existing) > 0 {
		fmt.Printf("%d packages already present. No changes.\n", len(existing))
		for _, p := range existing {
			fmt.Printf("  - %s (%s, %d %s)\n", p.Name, p.Mode, p.PriceCent, p.Currency)
		}
		return
	}

	// Seed a sample catalog for testing the event flow
	seed := []struct {
		Name   string
		Price  int64
		Mode   model.PaymentMode
		Badge  string
		Videos []struct {
			Title string
			Sec   int
		}
	}{
		{
			Name: "Go Fundamentals", Price: 4900, Mode: model.PaymentModeOneTime, Badge: "badge_go_fund",
			Videos: []struct {
				Title string
				Sec   int
			}{{"Setup", 420}, {"Types and Functions", 1260}, {"Interfaces", 980}},
		},
		{
			Name: "All-Access Monthly", Price: 1900, Mode: model.PaymentModeRecurring,
			Videos: []struct {
				Title string
				Sec   int
			}{{"Welcome", 180}},
		},
	}

	for _, s := range seed {
		p, err := model.NewPackage(uuid.NewString(), s.Name, s.Price, "USD", s.Mode)
		if err != nil {
			log.Fatalf("build package %q: %v", s.Name, err)
		}
		if s.Badge != "" {
			badge := s.Badge
			p.BadgeID = &badge
		}
		if err := packageRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save package %q: %v", s.Name, err)
		}
		for i, v := range s.Videos {
			video := &model.Video{
				ID:          uuid.NewString(),
				PackageID:   p.ID,
				Title:       v.Title,
				Position:    i + 1,
				DurationSec: v.Sec,
			}
			if err := packageRepo.SaveVideo(ctx, repository.NoTX, video); err != nil {
				log.Fatalf("save video %q: %v", v.Title, err)
			}
		}
		fmt.Printf("seeded: %s (id=%s, videos=%d)\n", p.Name, p.ID, len(s.Videos))
	}

	fmt.Println("Seeding complete.")
}
