package pipeline

import "fmt"

// SplitRequest asks for one source video to be split into fixed-length
// segments uploaded under OutputPrefix.
type SplitRequest struct {
	Source         string `json:"source" binding:"required"`
	SegmentSeconds int    `json:"segmentSeconds"`
	OutputPrefix   string `json:"outputPrefix" binding:"required"`
}

func (r SplitRequest) pipelineName() string { return "split" }

func (r SplitRequest) validate() error {
	if r.Source == "" {
		return fmt.Errorf("split request is missing a source reference")
	}
	if r.SegmentSeconds <= 0 {
		return fmt.Errorf("segment duration must be positive, got %d", r.SegmentSeconds)
	}
	return nil
}

// MetadataRequest asks the content-description service to propose clip
// boundaries for each listed video.
type MetadataRequest struct {
	Videos         []string `json:"videos" binding:"required"`
	PromptTemplate string   `json:"promptTemplate" binding:"required"`
	Model          string   `json:"model"`
	OutputPrefix   string   `json:"outputPrefix" binding:"required"`
}

func (r MetadataRequest) pipelineName() string { return "metadata" }

func (r MetadataRequest) validate() error {
	if len(r.Videos) == 0 {
		return fmt.Errorf("metadata request lists no videos")
	}
	if r.PromptTemplate == "" {
		return fmt.Errorf("metadata request is missing a prompt template")
	}
	return nil
}

// ClipsRequest resolves the clip candidates in the listed metadata
// documents into cut, uploaded clip files.
type ClipsRequest struct {
	MetadataRefs []string `json:"metadataRefs" binding:"required"`
	OutputPrefix string   `json:"outputPrefix" binding:"required"`
}

func (r ClipsRequest) pipelineName() string { return "clips" }

func (r ClipsRequest) validate() error {
	if len(r.MetadataRefs) == 0 {
		return fmt.Errorf("clip request lists no metadata documents")
	}
	return nil
}

// FaceClipsRequest asks the face-recognition service for scenes featuring
// the people in the cast photos, then cuts each scene into a clip.
type FaceClipsRequest struct {
	Video        string   `json:"video" binding:"required"`
	CastPhotos   []string `json:"castPhotos" binding:"required"`
	OutputPrefix string   `json:"outputPrefix" binding:"required"`
}

func (r FaceClipsRequest) pipelineName() string { return "face-clips" }

func (r FaceClipsRequest) validate() error {
	if r.Video == "" {
		return fmt.Errorf("face clip request is missing a video reference")
	}
	if len(r.CastPhotos) == 0 {
		return fmt.Errorf("face clip request lists no cast photos")
	}
	return nil
}

// JoinRequest concatenates the listed clips, in order, into one file.
type JoinRequest struct {
	Clips        []string `json:"clips" binding:"required"`
	OutputPrefix string   `json:"outputPrefix" binding:"required"`
}

func (r JoinRequest) pipelineName() string { return "join" }

func (r JoinRequest) validate() error {
	if len(r.Clips) == 0 {
		return fmt.Errorf("join request lists no clips")
	}
	return nil
}

// Request is one of the typed pipeline requests accepted by the Executor.
type Request interface {
	pipelineName() string
	validate() error
}
