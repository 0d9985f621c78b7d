// Package themis provides a legal case analysis backend.
//
// Themis ingests legal documents (petitions and supporting files), indexes
// their content into a vector store, and orchestrates a team of specialized
// LLM-backed agents (a coordinator, technical experts, and specialist
// attorneys) to produce a compiled legal opinion, a probabilistic prognosis
// of case outcomes, and a draft continuation document.
//
// # Quick Start
//
// Install Themis:
//
//	go install github.com/kadirpekel/themis/cmd/themis@latest
//
// Set the required API key and start the server:
//
//	export LLM_API_KEY=sk-...
//	themis serve
//
// Upload a document:
//
//	curl -F file=@contract.pdf http://localhost:8080/api/documents/start-upload
//
// Poll its progress:
//
//	curl http://localhost:8080/api/documents/upload-status/<upload_id>
//
// Start a multi-agent analysis over the indexed corpus:
//
//	curl -X POST http://localhost:8080/api/analysis/start \
//	  -H 'Content-Type: application/json' \
//	  -d '{"prompt": "Evaluate nexus between illness and work.", "experts_selected": ["medical"]}'
//
// # Packages
//
//   - pkg/llm: LLM provider adapters and the retrying gateway
//   - pkg/extract: PDF/DOCX/XLSX text extraction and scanned-PDF detection
//   - pkg/ocr: page rendering, image preprocessing, and OCR orchestration
//   - pkg/rag: token-aware chunking and retrieval glue
//   - pkg/embedder: batched embeddings with a content-addressed disk cache
//   - pkg/vector: vector store providers (chromem, qdrant, pinecone)
//   - pkg/ingest: the document ingestion pipeline
//   - pkg/jobs: upload and analysis job state
//   - pkg/agent: agent abstraction, specialists, and the coordinator
//   - pkg/orchestrator: the end-to-end analysis flow
//   - pkg/petition: the per-petition workflow state machine
//   - pkg/server: the HTTP surface
package themis
