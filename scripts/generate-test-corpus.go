//go:build ignore

// Package main generates a synthetic labelled corpus and a matching
// evaluation suite for benchmarking.
// Usage: go run scripts/generate-test-corpus.go -docs 5000 -output testdata/bench
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	numDocs    = flag.Int("docs", 2000, "Number of documents to generate")
	numQueries = flag.Int("queries", 50, "Number of evaluation queries to generate")
	outputDir  = flag.String("output", "testdata/bench", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// Topic vocabularies. Each category draws most words from its own pool and
// some from the shared pool, so keyword and embedding rankings disagree
// often enough to make fusion matter.
var topics = map[string][]string{
	"sci.space": {
		"shuttle", "orbit", "launch", "nasa", "probe", "satellite", "rocket",
		"lunar", "mars", "telescope", "payload", "booster", "astronaut", "reentry",
	},
	"rec.autos": {
		"engine", "brake", "tire", "sedan", "transmission", "dealer", "mileage",
		"clutch", "exhaust", "radiator", "warranty", "coupe", "torque", "gasket",
	},
	"rec.sport.hockey": {
		"goalie", "puck", "playoff", "period", "penalty", "rink", "defenseman",
		"powerplay", "stanley", "faceoff", "slapshot", "overtime", "referee", "crease",
	},
	"comp.graphics": {
		"pixel", "render", "shader", "texture", "polygon", "raytrace", "bitmap",
		"vertex", "palette", "opengl", "gif", "jpeg", "antialias", "framebuffer",
	},
	"sci.med": {
		"patient", "diagnosis", "symptom", "clinic", "dosage", "vaccine", "therapy",
		"allergy", "surgeon", "chronic", "infection", "prescription", "migraine", "immune",
	},
}

var shared = []string{
	"the", "new", "question", "anyone", "know", "think", "year", "problem",
	"good", "last", "week", "price", "report", "people", "thanks", "help",
}

type document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type evalCase struct {
	ID       string   `yaml:"id"`
	Query    string   `yaml:"query"`
	Relevant []string `yaml:"relevant"`
	Category string   `yaml:"category"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	categories := make([]string, 0, len(topics))
	for c := range topics {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	fmt.Printf("Generating %d documents in %s...\n", *numDocs, *outputDir)

	docs := make([]document, 0, *numDocs)
	for i := 0; i < *numDocs; i++ {
		category := categories[i%len(categories)]
		docs = append(docs, generateDocument(rng, i, category))
	}
	if err := writeCorpus(filepath.Join(*outputDir, "corpus.jsonl"), docs); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing corpus: %v\n", err)
		os.Exit(1)
	}

	cases := generateSuite(rng, docs, *numQueries)
	if err := writeSuite(filepath.Join(*outputDir, "eval.yaml"), cases); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing suite: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d documents and %d queries.\n", len(docs), len(cases))
	fmt.Printf("Set corpus.categories to: [%s]\n", strings.Join(categories, ", "))
}

func generateDocument(rng *rand.Rand, index int, category string) document {
	pool := topics[category]
	words := make([]string, 0, 80)
	for j := 0; j < 40+rng.Intn(40); j++ {
		if rng.Float64() < 0.7 {
			words = append(words, pool[rng.Intn(len(pool))])
		} else {
			words = append(words, shared[rng.Intn(len(shared))])
		}
	}
	title := fmt.Sprintf("%s %s %s", pool[rng.Intn(len(pool))], shared[rng.Intn(len(shared))], pool[rng.Intn(len(pool))])
	return document{
		ID:       fmt.Sprintf("doc_%d", index),
		Title:    title,
		Content:  strings.Join(words, " "),
		Category: category,
	}
}

// generateSuite picks two topic words per query and marks every document of
// the same category containing both as relevant.
func generateSuite(rng *rand.Rand, docs []document, n int) []evalCase {
	var cases []evalCase
	for attempts := 0; len(cases) < n && attempts < n*20; attempts++ {
		anchor := docs[rng.Intn(len(docs))]
		pool := topics[anchor.Category]
		a, b := pool[rng.Intn(len(pool))], pool[rng.Intn(len(pool))]
		if a == b {
			continue
		}

		var relevant []string
		for _, d := range docs {
			if d.Category == anchor.Category && containsWord(d.Content, a) && containsWord(d.Content, b) {
				relevant = append(relevant, d.ID)
			}
		}
		if len(relevant) == 0 {
			continue
		}
		cases = append(cases, evalCase{
			ID:       fmt.Sprintf("q%d", len(cases)+1),
			Query:    a + " " + b,
			Relevant: relevant,
			Category: anchor.Category,
		})
	}
	return cases
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if w == word {
			return true
		}
	}
	return false
}

func writeCorpus(path string, docs []document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			return err
		}
	}
	return nil
}

func writeSuite(path string, cases []evalCase) error {
	data, err := yaml.Marshal(map[string][]evalCase{"queries": cases})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
