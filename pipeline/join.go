package pipeline

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"clipforge/jobstore"
)

// runJoin concatenates the requested clips, in the order given, into a single
// video named after the job. Unlike the other pipelines a missing clip is
// fatal: a partial join would silently change the result.
func (e *Executor) runJoin(ctx context.Context, jr *jobRun, req JoinRequest, scratch string) error {
	e.progress(jr.id, fmt.Sprintf("Starting join of %d clips.", len(req.Clips)))

	locals := make([]string, 0, len(req.Clips))
	for i, ref := range req.Clips {
		if jr.state.stop.Load() {
			return errStopped
		}

		e.progress(jr.id, fmt.Sprintf("Downloading clip %d/%d: %s", i+1, len(req.Clips), ref))
		// Prefix with the position so identically named clips from different
		// prefixes cannot collide, and order survives on disk.
		local := filepath.Join(scratch, fmt.Sprintf("%03d_%s", i, path.Base(ref)))
		if err := e.gateway.Download(ctx, ref, local); err != nil {
			return fmt.Errorf("failed to download clip %s: %v", ref, err)
		}
		locals = append(locals, local)
	}

	outName := fmt.Sprintf("joined_video_%s.mp4", jr.id)
	outLocal := filepath.Join(scratch, outName)
	e.progress(jr.id, fmt.Sprintf("Joining %d clips...", len(locals)))
	if err := e.media.Concat(ctx, locals, outLocal); err != nil {
		return fmt.Errorf("failed to join clips: %v", err)
	}

	outRef := path.Join(req.OutputPrefix, outName)
	e.progress(jr.id, fmt.Sprintf("Uploading joined video to %s...", outRef))
	if err := e.gateway.Upload(ctx, outLocal, outRef); err != nil {
		return fmt.Errorf("failed to upload joined video: %v", err)
	}

	e.complete(jr.id,
		fmt.Sprintf("Successfully joined %d clips into %s.", len(locals), outRef),
		jobstore.WithGeneratedFiles([]string{outRef}))
	return nil
}
