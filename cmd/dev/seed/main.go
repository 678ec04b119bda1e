package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"caseflow/internal/casefile"
	"caseflow/internal/stage"
	"caseflow/pkg/authtoken"
	"caseflow/pkg/config"
	"caseflow/pkg/db"
)

type pipeline struct {
	id     string
	kind   casefile.Kind
	prefix string
	stages []stage.Stage
}

var pipelines = []pipeline{
	{
		id:     "surrogate-intake",
		kind:   casefile.KindSurrogate,
		prefix: "SUR",
		stages: []stage.Stage{
			{Label: "New Lead", Order: 1, IsActive: true, Color: "#94a3b8"},
			{Label: "Contacted", Order: 2, IsActive: true, Color: "#60a5fa"},
			{Label: "Application Submitted", Order: 3, IsActive: true, Color: "#818cf8"},
			{Label: "Medical Screening", Order: 4, IsActive: true, Color: "#a78bfa"},
			{Label: "Legal Clearance", Order: 5, IsActive: true, Color: "#f472b6"},
			{Label: "Matched", Order: 6, IsActive: true, Color: "#34d399"},
			{Label: "Transfer", Order: 7, IsActive: true, Color: "#fbbf24"},
			{Label: "Pregnant", Order: 8, IsActive: true, Color: "#f97316"},
			{Label: "Delivered", Order: 9, IsActive: true, Color: "#22c55e"},
			{Label: "Pre-Screen (retired)", Order: 90, IsActive: false},
		},
	},
	{
		id:     "ip-intake",
		kind:   casefile.KindIntendedParent,
		prefix: "IP",
		stages: []stage.Stage{
			{Label: "New Inquiry", Order: 1, IsActive: true, Color: "#94a3b8"},
			{Label: "Consultation", Order: 2, IsActive: true, Color: "#60a5fa"},
			{Label: "Agreement Signed", Order: 3, IsActive: true, Color: "#818cf8"},
			{Label: "Matching", Order: 4, IsActive: true, Color: "#f472b6"},
			{Label: "Matched", Order: 5, IsActive: true, Color: "#34d399"},
			{Label: "Journey Complete", Order: 6, IsActive: true, Color: "#22c55e"},
		},
	},
}

func main() {
	var (
		cases   = flag.Int("cases", 3, "sample cases per pipeline")
		staffID = flag.String("staff", "dev-admin", "staff id for the printed session token")
		role    = flag.String("role", "admin", "staff role for the printed session token")
		ttl     = flag.Duration("ttl", 12*time.Hour, "session token lifetime")
	)
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	// Drop cached catalogs so a running API sees the seeded stages.
	var cache *stage.CachedSource
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis url: %v\n", err)
			os.Exit(1)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		cache = stage.NewCachedSource(stage.NewRepository(pool), rdb, cfg.StageCacheTTL, nil)
	}

	now := time.Now()
	for _, p := range pipelines {
		var first string
		for _, s := range p.stages {
			s.PipelineID = p.id
			id, err := stage.Upsert(ctx, pool, s)
			if err != nil {
				fmt.Fprintf(os.Stderr, "upsert stage %s/%d: %v\n", p.id, s.Order, err)
				os.Exit(1)
			}
			if first == "" {
				first = id
			}
		}

		// Re-read through the catalog so a tie introduced by hand in the table fails here.
		if _, err := stage.LoadCatalog(ctx, pool, p.id); err != nil {
			fmt.Fprintf(os.Stderr, "load catalog %s: %v\n", p.id, err)
			os.Exit(1)
		}

		if cache != nil {
			if err := cache.Invalidate(ctx, p.id); err != nil {
				fmt.Fprintf(os.Stderr, "warning: stage cache not invalidated for %s: %v\n", p.id, err)
			}
		}

		created := 0
		for i := 1; i <= *cases; i++ {
			ok, err := casefile.Insert(ctx, pool, casefile.NewCase{
				DisplayID:  fmt.Sprintf("%s-%04d", p.prefix, i),
				Kind:       p.kind,
				FullName:   fmt.Sprintf("Sample %s %d", p.prefix, i),
				PipelineID: p.id,
				StageID:    first,
				EnteredAt:  now,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "insert case: %v\n", err)
				os.Exit(1)
			}
			if ok {
				created++
			}
		}
		fmt.Printf("pipeline %s: %d stages, %d new cases\n", p.id, len(p.stages), created)
	}

	if cfg.Auth.TokenSecret == "" {
		fmt.Println("AUTH_TOKEN_SECRET unset; use X-Staff-Id / X-Staff-Role headers against a non-prod API")
		return
	}
	r, err := authtoken.ParseRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	token, err := authtoken.Issue(authtoken.Staff{ID: *staffID, Name: *staffID, Role: r}, cfg.Auth.Audience, cfg.Auth.TokenSecret, now, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("CASEFLOW_API_TOKEN=%s\n", token)
}
