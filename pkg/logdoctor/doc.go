// Package logdoctor provides an embeddable log analysis client. It reads
// logs from files, directories, streams, and containers, normalizes them
// into events, detects errors, correlates related failures across services,
// and persists every run for later timeline and error queries.
//
// Quick start:
//
//	doc, err := logdoctor.New(logdoctor.WithStorePath("debug.db"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer doc.Close()
//
//	run, err := doc.Analyze(ctx, "api.log", "db.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, g := range run.Groups {
//	    fmt.Println(g.ID, g.Signature, g.Origins)
//	}
//
//	events, _ := doc.GetTimeline(run.ID, logdoctor.Last(5*time.Minute))
//
// A LogDoctor opens the result store on creation. Create once, reuse across
// analyses. See the README for full documentation.
package logdoctor
