// Package searcher is the embeddable entry point to topicsearch.
//
// An [Engine] opens a data directory built by 'topicsearch index' and
// answers classification-gated hybrid queries over it:
//
//	cfg, _ := config.Load(".")
//	engine, err := searcher.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	resp, err := engine.Search(ctx, searcher.Request{
//	    Query:                  "shuttle launch delayed",
//	    UseQueryClassification: true,
//	    TopK:                   5,
//	})
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────┐
//	│                        Engine                            │
//	│   classifier ──► filter ──┐                              │
//	│                           ▼                              │
//	│  ┌──────────────┐   ┌────────────┐   ┌───────────────┐   │
//	│  │ BM25Searcher │──►│ RRF fusion │◄──│VectorSearcher │   │
//	│  │ bleve/sqlite │   └────────────┘   │ embedder+HNSW │   │
//	│  └──────────────┘         │          └───────────────┘   │
//	│                           ▼                              │
//	│                    document store                        │
//	└──────────────────────────────────────────────────────────┘
//
// # Thread Safety
//
// Engine.Search is safe for concurrent use.
package searcher
