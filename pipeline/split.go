package pipeline

import (
	"context"
	"fmt"
	"log"
	"math"
	"path"
	"path/filepath"
	"strings"

	"clipforge/jobstore"
)

// SegmentSpec is one planned cut of a source video.
type SegmentSpec struct {
	Index           int // 1-based, drives the output name
	StartSeconds    float64
	DurationSeconds float64
	OutputName      string
}

// PlanSegments tiles a video of totalSeconds into fixed-length segments. The
// final segment covers whatever remains and may be shorter; an exact multiple
// produces no trailing empty segment.
func PlanSegments(sourceRef string, totalSeconds float64, segmentSeconds int) []SegmentSpec {
	base, ext := splitRefName(sourceRef)

	count := int(math.Ceil(totalSeconds / float64(segmentSeconds)))
	specs := make([]SegmentSpec, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i * segmentSeconds)
		length := math.Min(float64(segmentSeconds), totalSeconds-start)
		if length <= 0 {
			break
		}
		specs = append(specs, SegmentSpec{
			Index:           i + 1,
			StartSeconds:    start,
			DurationSeconds: length,
			OutputName:      fmt.Sprintf("%s_part_%03d%s", base, i+1, ext),
		})
	}
	return specs
}

// runSplit downloads the source, cuts it into segments and uploads each one.
// A segment that fails to cut or upload is skipped; the job fails only when
// nothing at all could be produced.
func (e *Executor) runSplit(ctx context.Context, jr *jobRun, req SplitRequest, scratch string) error {
	e.progress(jr.id, "Starting video split process.")

	local := filepath.Join(scratch, filepath.Base(req.Source))
	e.progress(jr.id, fmt.Sprintf("Downloading source video %s...", req.Source))
	if err := e.gateway.Download(ctx, req.Source, local); err != nil {
		return fmt.Errorf("failed to download source video %s: %v", req.Source, err)
	}

	total, err := e.media.Probe(ctx, local)
	if err != nil {
		return fmt.Errorf("failed to probe duration of %s: %v", req.Source, err)
	}
	if total <= 0 {
		return fmt.Errorf("source video %s reports a non-positive duration", req.Source)
	}

	specs := PlanSegments(req.Source, total, req.SegmentSeconds)
	e.progress(jr.id, fmt.Sprintf("Video duration is %.2fs, planning %d segments.", total, len(specs)))

	var uploaded []string
	for _, spec := range specs {
		if jr.state.stop.Load() {
			return errStopped
		}

		e.progress(jr.id, fmt.Sprintf("Cutting segment %d/%d...", spec.Index, len(specs)))
		outLocal := filepath.Join(scratch, spec.OutputName)
		if err := e.media.Cut(ctx, local, spec.StartSeconds, spec.DurationSeconds, outLocal); err != nil {
			log.Printf("Job %s: segment %d failed to cut: %v", jr.id, spec.Index, err)
			continue
		}

		ref := path.Join(req.OutputPrefix, spec.OutputName)
		if err := e.gateway.Upload(ctx, outLocal, ref); err != nil {
			log.Printf("Job %s: segment %d failed to upload: %v", jr.id, spec.Index, err)
			continue
		}
		uploaded = append(uploaded, ref)
	}

	if len(uploaded) == 0 {
		return fmt.Errorf("no segments could be produced from %s", req.Source)
	}

	e.complete(jr.id,
		fmt.Sprintf("Successfully split video into %d segments.", len(uploaded)),
		jobstore.WithGeneratedFiles(uploaded))
	return nil
}

// splitRefName separates the base name and extension of an object reference.
func splitRefName(ref string) (base, ext string) {
	name := path.Base(ref)
	ext = filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
