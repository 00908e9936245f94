// Package chartstore is a storage backend for Plotly chart documents and
// generic JSON data records.
//
// The root package ties the pieces together: Server owns the business
// operations and per-process security state (CSRF tokens, rate limiter,
// auditor), Handler exposes them over HTTP with the full middleware chain,
// and Config tunes the security and validation behavior. Persistence is
// pluggable through the storage.Store interface; storage/memory and
// storage/mongo are the provided backends.
//
// Minimal usage:
//
//	store := memory.New()
//	srv, err := chartstore.NewServer(store, nil, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.ListenAndServe(":8000", chartstore.NewHandler(srv, logger).Routes())
//
// Both document models share one collection and one item_id sequence. The
// /data endpoints store free-form JSON objects; the /plotly endpoints store
// Plotly figures (trace array, layout, and any extra figure properties) with
// bounds validation and text sanitization applied before writes.
package chartstore
