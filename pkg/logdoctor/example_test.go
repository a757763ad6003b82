package logdoctor_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/pkg/logdoctor"
)

func Example() {
	dir, err := os.MkdirTemp("", "logdoctor-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	api := filepath.Join(dir, "api.log")
	db := filepath.Join(dir, "db.log")
	os.WriteFile(api, []byte("2024-03-07 10:00:00 ERROR connection refused to db\n"), 0o644)
	os.WriteFile(db, []byte("2024-03-07 10:00:05 ERROR too many connections\n"), 0o644)

	doc, err := logdoctor.New(
		logdoctor.WithStorePath(filepath.Join(dir, "debug.db")),
		logdoctor.WithLogger(zerolog.Nop()),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer doc.Close()

	run, err := doc.Analyze(context.Background(), api, db)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("events: %d\n", len(run.Events))
	fmt.Printf("groups: %d\n", len(run.Groups))
	fmt.Printf("origins: %v\n", run.Groups[0].Origins)
	// Output:
	// events: 2
	// groups: 1
	// origins: [api db]
}
