package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"clipforge/jobstore"
	"clipforge/metadata"
)

// runClips aggregates clip candidates from the listed metadata documents,
// groups them by source video so each source is downloaded once, then cuts
// and uploads every clip. Clip numbering is global across the whole job and
// advances only on success. Individual failures are skipped, never fatal.
func (e *Executor) runClips(ctx context.Context, jr *jobRun, req ClipsRequest, scratch string) error {
	e.progress(jr.id, "Aggregating clip candidates from metadata documents...")

	groups := map[string][]metadata.Candidate{}
	var order []string // first-seen source order, for deterministic processing
	for _, docRef := range req.MetadataRefs {
		docLocal := filepath.Join(scratch, path.Base(docRef))
		if err := e.gateway.Download(ctx, docRef, docLocal); err != nil {
			log.Printf("Job %s: skipping metadata %s, download failed: %v", jr.id, docRef, err)
			continue
		}

		raw, err := os.ReadFile(docLocal)
		os.Remove(docLocal)
		if err != nil {
			log.Printf("Job %s: skipping metadata %s, read failed: %v", jr.id, docRef, err)
			continue
		}

		candidates, err := metadata.Decode(string(raw))
		if err != nil {
			log.Printf("Job %s: skipping metadata %s, decode failed: %v", jr.id, docRef, err)
			continue
		}

		for _, c := range candidates {
			src, ok := c.SourceRef()
			if !ok || src == "" {
				log.Printf("Job %s: skipping candidate without source reference in %s", jr.id, docRef)
				continue
			}
			if _, seen := groups[src]; !seen {
				order = append(order, src)
			}
			groups[src] = append(groups[src], c)
		}
	}

	clipCount := 0
	var produced []string
	for gi, src := range order {
		if jr.state.stop.Load() {
			return errStopped
		}

		candidates := groups[src]
		e.progress(jr.id, fmt.Sprintf("Processing source video %d/%d: %s (%d clips)", gi+1, len(order), src, len(candidates)))

		srcLocal := filepath.Join(scratch, path.Base(src))
		if err := e.gateway.Download(ctx, src, srcLocal); err != nil {
			log.Printf("Job %s: skipping all clips of %s, download failed: %v", jr.id, src, err)
			continue
		}

		base, _ := splitRefName(src)
		for _, c := range candidates {
			timeRange, ok := c.TimeRange()
			if !ok {
				log.Printf("Job %s: skipping candidate without timestamp for %s", jr.id, src)
				continue
			}
			start, end, err := metadata.ParseRange(timeRange)
			if err != nil {
				log.Printf("Job %s: skipping malformed timestamp %q for %s: %v", jr.id, timeRange, src, err)
				continue
			}
			if end <= start {
				log.Printf("Job %s: skipping non-positive range %q for %s", jr.id, timeRange, src)
				continue
			}

			clipName := fmt.Sprintf("%s_clip_%d.mp4", base, clipCount+1)
			clipLocal := filepath.Join(scratch, clipName)
			if err := e.media.Cut(ctx, srcLocal, float64(start), float64(end-start), clipLocal); err != nil {
				log.Printf("Job %s: clip %q of %s failed to cut: %v", jr.id, timeRange, src, err)
				continue
			}

			clipRef := path.Join(req.OutputPrefix, clipName)
			if err := e.gateway.Upload(ctx, clipLocal, clipRef); err != nil {
				log.Printf("Job %s: clip %s failed to upload: %v", jr.id, clipName, err)
				os.Remove(clipLocal)
				continue
			}
			os.Remove(clipLocal)

			clipCount++
			produced = append(produced, clipRef)
		}
		os.Remove(srcLocal)
	}

	e.complete(jr.id,
		fmt.Sprintf("Successfully generated and uploaded %d clips from %d source videos.", clipCount, len(order)),
		jobstore.WithGeneratedClips(produced))
	return nil
}
