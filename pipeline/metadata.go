package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"clipforge/jobstore"
	"clipforge/metadata"
)

// Placeholders substituted into the prompt template per video.
const (
	placeholderSource   = "{{source_filename}}"
	placeholderDuration = "{{actual_video_duration}}"
)

// runMetadata asks the content-description service for clip candidates per
// video, validates them against the probed duration and uploads one metadata
// document per video that yielded candidates. A video that fails at any step
// is skipped; the job completes even when no document could be produced.
func (e *Executor) runMetadata(ctx context.Context, jr *jobRun, req MetadataRequest, scratch string) error {
	e.progress(jr.id, fmt.Sprintf("Starting metadata generation for %d videos.", len(req.Videos)))

	var generated []string
	for i, ref := range req.Videos {
		if jr.state.stop.Load() {
			return errStopped
		}

		name := path.Base(ref)
		e.progress(jr.id, fmt.Sprintf("Processing video %d/%d: %s", i+1, len(req.Videos), name))

		local := filepath.Join(scratch, name)
		if err := e.gateway.Download(ctx, ref, local); err != nil {
			log.Printf("Job %s: skipping %s, download failed: %v", jr.id, ref, err)
			continue
		}

		duration, err := e.media.Probe(ctx, local)
		os.Remove(local)
		if err != nil {
			log.Printf("Job %s: skipping %s, probe failed: %v", jr.id, ref, err)
			continue
		}

		prompt := strings.ReplaceAll(req.PromptTemplate, placeholderSource, name)
		prompt = strings.ReplaceAll(prompt, placeholderDuration, metadata.FormatTimecode(int(duration)))

		text, err := e.describer.GenerateWithRetry(ctx, prompt, ref, req.Model)
		if err != nil {
			log.Printf("Job %s: skipping %s, description failed: %v", jr.id, ref, err)
			continue
		}

		candidates, err := metadata.Validate(text, duration, ref)
		if err != nil {
			log.Printf("Job %s: skipping %s, response was not a candidate document: %v", jr.id, ref, err)
			continue
		}
		if len(candidates) == 0 {
			log.Printf("Job %s: no valid candidates for %s", jr.id, ref)
			continue
		}

		doc, err := json.MarshalIndent(candidates, "", "  ")
		if err != nil {
			log.Printf("Job %s: skipping %s, could not encode document: %v", jr.id, ref, err)
			continue
		}

		docName := strings.TrimSuffix(name, filepath.Ext(name)) + "_metadata.json"
		docLocal := filepath.Join(scratch, docName)
		if err := os.WriteFile(docLocal, doc, 0o644); err != nil {
			log.Printf("Job %s: skipping %s, could not write document: %v", jr.id, ref, err)
			continue
		}

		docRef := path.Join(req.OutputPrefix, docName)
		e.progress(jr.id, fmt.Sprintf("Uploading metadata for %s...", name))
		if err := e.gateway.Upload(ctx, docLocal, docRef); err != nil {
			log.Printf("Job %s: skipping %s, metadata upload failed: %v", jr.id, ref, err)
			continue
		}
		generated = append(generated, docRef)
	}

	details := fmt.Sprintf("Metadata generation complete. Generated %d metadata files from %d videos.", len(generated), len(req.Videos))
	if len(generated) == 0 {
		details = fmt.Sprintf("Metadata generation complete. None of the %d videos yielded valid clip candidates.", len(req.Videos))
	}
	e.complete(jr.id, details, jobstore.WithGeneratedFiles(generated))
	return nil
}
