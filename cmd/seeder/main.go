package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/punchamoorthee/nobreverify/internal/config"
	"github.com/punchamoorthee/nobreverify/internal/domain"
	"github.com/punchamoorthee/nobreverify/internal/store"
)

// Imports a newline-delimited list of already-verified identities (the flat
// used_emails file) into the configured ledger backend.
func main() {
	src := flag.String("from", "used_emails", "Identity file to import")
	flag.Parse()

	cfg, err := config.LoadLedger()
	if err != nil {
		log.Fatal(err)
	}

	f, err := os.Open(*src)
	if err != nil {
		log.Fatalf("Unable to open %s: %v", *src, err)
	}
	defer f.Close()

	raw, err := store.ReadIdentities(f)
	if err != nil {
		log.Fatal(err)
	}
	identities := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = domain.NormalizeIdentity(id); id != "" {
			identities = append(identities, id)
		}
	}

	ctx := context.Background()
	ledger, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to open ledger: %v", err)
	}
	defer ledger.Close()

	log.Printf("--- Importing %d identities into %s ledger ---", len(identities), cfg.LedgerBackend)

	// Postgres takes the whole list in one COPY.
	if pg, ok := ledger.(*store.PostgresLedger); ok {
		n, err := pg.Import(ctx, identities)
		if err != nil {
			log.Fatalf("Bulk import failed: %v", err)
		}
		log.Printf("Successfully imported %d new identities.", n)
		return
	}

	var added int
	for _, id := range identities {
		ok, err := ledger.InsertIfAbsent(ctx, id)
		if err != nil {
			log.Fatalf("Import failed at %q: %v", id, err)
		}
		if ok {
			added++
		}
	}
	log.Printf("Successfully imported %d new identities (%d already present).", added, len(identities)-added)
}
