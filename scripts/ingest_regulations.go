package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"safecheck/field-assessment/internal/config"
	"safecheck/field-assessment/internal/services"
)

// Ingests regulation PDFs into the Qdrant legal corpus: extract text, chunk
// on article boundaries, embed, upsert. Run once per corpus refresh:
//
//	go run scripts/ingest_regulations.go ./regulation_docs
func main() {
	log.Println("🚀 Starting regulation ingestion...")

	docsDir := "./regulation_docs"
	if len(os.Args) > 1 {
		docsDir = os.Args[1]
	}

	// Load configuration
	cfg := config.Load()

	// Initialize services
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	qdrantService, err := services.NewQdrantService(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	if err := qdrantService.InitCollection(); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	pdfParser := services.NewPDFParserService()
	chunker := services.NewTextChunker()

	ctx := context.Background()

	paths, err := filepath.Glob(filepath.Join(docsDir, "*.pdf"))
	if err != nil || len(paths) == 0 {
		log.Fatalf("❌ No regulation PDFs found in %s", docsDir)
	}

	successCount := 0
	failCount := 0

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		log.Printf("\n📄 Processing: %s", name)

		content, err := pdfParser.ExtractText(path)
		if err != nil {
			log.Printf("   ❌ Failed to extract text: %v", err)
			failCount++
			continue
		}

		log.Printf("   ✅ Extracted %d pages, %d characters", content.PageCount, len(content.Text))

		chunks := chunker.ChunkText(content.Text, 1000, 200)
		log.Printf("   ✂️ Created %d chunks", len(chunks))

		stored := 0
		for i, chunk := range chunks {
			embedding, err := geminiService.GenerateEmbedding(ctx, chunk.Text)
			if err != nil {
				log.Printf("   ❌ Failed to generate embedding for chunk %d: %v", i+1, err)
				continue
			}

			docID := fmt.Sprintf("%s_chunk_%d", name, i)

			article := chunk.Article
			if article != "" {
				article = fmt.Sprintf("%s %s", name, article)
			}

			if err := qdrantService.UpsertRegulation(ctx, docID, article, chunk.Text, embedding); err != nil {
				log.Printf("   ❌ Failed to store chunk %d: %v", i+1, err)
				continue
			}
			stored++

			if (i+1)%10 == 0 || i == len(chunks)-1 {
				log.Printf("   📊 Progress: %d/%d chunks stored", i+1, len(chunks))
			}
		}

		if stored == 0 {
			failCount++
			continue
		}

		log.Printf("   ✅ Successfully ingested %s", name)
		successCount++
	}

	// Summary
	log.Println("\n" + strings.Repeat("=", 60))
	log.Printf("📊 Ingestion Summary:")
	log.Printf("   ✅ Successful: %d documents", successCount)
	log.Printf("   ❌ Failed: %d documents", failCount)
	log.Println(strings.Repeat("=", 60))

	if failCount > 0 {
		log.Println("⚠️ Some documents failed to ingest. Please check the logs above.")
		os.Exit(1)
	}

	log.Println("✅ All regulations ingested successfully!")
}
