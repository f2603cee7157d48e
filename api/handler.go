package api

import (
	"errors"
	"fmt"
	"net/http"

	"clipforge/config"
	"clipforge/jobstore"
	"clipforge/pipeline"
	"clipforge/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	exec    *pipeline.Executor
	jobs    jobstore.Store
	gateway store.Gateway
	cfg     *config.Config
}

func NewHandler(exec *pipeline.Executor, jobs jobstore.Store, gateway store.Gateway, cfg *config.Config) *Handler {
	return &Handler{
		exec:    exec,
		jobs:    jobs,
		gateway: gateway,
		cfg:     cfg,
	}
}

// accept submits a validated pipeline request and answers 202 with the job id.
func (h *Handler) accept(c *gin.Context, req pipeline.Request) {
	id, err := h.exec.Submit(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": id, "status": jobstore.StatusPending})
}

// handleSplit starts a video segmentation job.
func (h *Handler) handleSplit(c *gin.Context) {
	var req pipeline.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SegmentSeconds == 0 {
		req.SegmentSeconds = h.cfg.SegmentSeconds
	}
	h.accept(c, req)
}

// handleMetadata starts a clip-candidate generation job.
func (h *Handler) handleMetadata(c *gin.Context) {
	var req pipeline.MetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.accept(c, req)
}

// handleClips starts a clip extraction job.
func (h *Handler) handleClips(c *gin.Context) {
	var req pipeline.ClipsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.accept(c, req)
}

// handleFaceClips starts a face-recognition clip generation job.
func (h *Handler) handleFaceClips(c *gin.Context) {
	var req pipeline.FaceClipsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.accept(c, req)
}

// handleJoin starts a clip concatenation job.
func (h *Handler) handleJoin(c *gin.Context) {
	var req pipeline.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.accept(c, req)
}

// handleGetJob retrieves the current record of a single job.
func (h *Handler) handleGetJob(c *gin.Context) {
	job, err := h.jobs.Read(c.Request.Context(), c.Param("jobId"))
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// handleStopJob requests a running job to stop.
func (h *Handler) handleStopJob(c *gin.Context) {
	jobID := c.Param("jobId")
	if err := h.exec.Stop(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job stop requested"})
}

// handleListFiles lists objects under a prefix.
func (h *Handler) handleListFiles(c *gin.Context) {
	refs, err := h.gateway.List(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": refs})
}

// handleSignedURL issues a presigned URL for direct store access.
func (h *Handler) handleSignedURL(c *gin.Context) {
	ref, err := store.CleanRef(c.Query("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	method := c.DefaultQuery("method", http.MethodGet)
	if method != http.MethodGet && method != http.MethodPut {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unsupported method %q", method)})
		return
	}

	url, err := h.gateway.SignedURL(c.Request.Context(), ref, method)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "ref": ref})
}

// handleDeleteFile removes one object.
func (h *Handler) handleDeleteFile(c *gin.Context) {
	ref, err := store.CleanRef(c.Query("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gateway.Delete(c.Request.Context(), ref); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File deleted", "ref": ref})
}

type deleteBatchRequest struct {
	Refs []string `json:"refs" binding:"required"`
}

// handleDeleteBatch removes a set of objects in one call.
func (h *Handler) handleDeleteBatch(c *gin.Context) {
	var req deleteBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refs := make([]string, 0, len(req.Refs))
	for _, raw := range req.Refs {
		ref, err := store.CleanRef(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		refs = append(refs, ref)
	}

	if err := h.gateway.DeleteBatch(c.Request.Context(), refs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Files deleted", "count": len(refs)})
}
