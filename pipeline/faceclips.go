package pipeline

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"

	"clipforge/jobstore"
)

// runFaceClips asks the face-recognition service which scenes of the video
// feature the people in the cast photos, then cuts one clip per scene. Scene
// numbering follows the service's scene order, so a failed cut leaves a gap
// rather than renumbering later clips. Finding no scenes at all completes
// the job with empty output.
func (e *Executor) runFaceClips(ctx context.Context, jr *jobRun, req FaceClipsRequest, scratch string) error {
	e.progress(jr.id, "Starting face recognition clip generation.")

	scenes, err := e.faces.FindScenes(ctx, req.Video, req.CastPhotos)
	if err != nil {
		return fmt.Errorf("face recognition failed for %s: %v", req.Video, err)
	}
	if len(scenes) == 0 {
		e.complete(jr.id, "No scenes found with the specified cast members.",
			jobstore.WithGeneratedClips([]string{}))
		return nil
	}

	e.progress(jr.id, fmt.Sprintf("Downloading video for clipping: %s", req.Video))
	local := filepath.Join(scratch, path.Base(req.Video))
	if err := e.gateway.Download(ctx, req.Video, local); err != nil {
		return fmt.Errorf("failed to download video %s: %v", req.Video, err)
	}

	base, _ := splitRefName(req.Video)
	var produced []string
	for i, scene := range scenes {
		if jr.state.stop.Load() {
			return errStopped
		}

		e.progress(jr.id, fmt.Sprintf("Generating clip %d/%d...", i+1, len(scenes)))

		duration := scene.EndSeconds - scene.StartSeconds
		if duration <= 0 {
			log.Printf("Job %s: skipping scene %d with non-positive span [%.2f, %.2f]", jr.id, i+1, scene.StartSeconds, scene.EndSeconds)
			continue
		}

		clipName := fmt.Sprintf("refined_%s_clip_%d.mp4", base, i+1)
		clipLocal := filepath.Join(scratch, clipName)
		if err := e.media.Cut(ctx, local, scene.StartSeconds, duration, clipLocal); err != nil {
			log.Printf("Job %s: scene %d failed to cut: %v", jr.id, i+1, err)
			continue
		}

		clipRef := path.Join(req.OutputPrefix, clipName)
		if err := e.gateway.Upload(ctx, clipLocal, clipRef); err != nil {
			log.Printf("Job %s: clip %s failed to upload: %v", jr.id, clipName, err)
			continue
		}
		produced = append(produced, clipRef)
	}

	e.complete(jr.id,
		fmt.Sprintf("Successfully generated %d clips based on face recognition.", len(produced)),
		jobstore.WithGeneratedClips(produced))
	return nil
}
