package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"layerminder-backend/internal/models"
	"layerminder-backend/internal/supabase"
)

// StreamReader is the read-only record view the stream server polls. It
// performs no writes, so any number of connections can observe one record
// concurrently, from any process.
type StreamReader interface {
	GetRecord(recordID uuid.UUID) (*models.GenerationRecord, error)
	ListRecordImages(recordID uuid.UUID) ([]models.RecordImage, error)
}

type StreamOptions struct {
	// PollInterval is the delay between reads of the persisted record.
	PollInterval time.Duration
	// HeartbeatInterval is how long the connection may stay silent before
	// a ping event keeps intermediaries from dropping it.
	HeartbeatInterval time.Duration
	// Timeout is the hard wall-clock bound on the whole connection.
	Timeout time.Duration
}

func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		PollInterval:      1 * time.Second,
		HeartbeatInterval: 20 * time.Second,
		Timeout:           90 * time.Second,
	}
}

type StreamHandler struct {
	reader StreamReader
	opts   StreamOptions
}

func NewStreamHandler(reader StreamReader, opts StreamOptions) *StreamHandler {
	return &StreamHandler{reader: reader, opts: opts}
}

// Stream godoc
// @Summary     Stream generation progress
// @Description Server-Sent Events stream for one generation record. Emits each stage's "generated" event at most once, ping heartbeats, and a terminal done or generation_failed event.
// @Tags        generation
// @Produce     text/event-stream
// @Param       record_id path string true "Record ID (UUID)"
// @Success     200 {string} string "event stream"
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /stream/{record_id} [get]
func (h *StreamHandler) Stream(c *gin.Context) {
	recordID, err := uuid.Parse(c.Param("record_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid record id"})
		return
	}

	// Fail fast before committing to the event stream
	if _, err := h.reader.GetRecord(recordID); err != nil {
		if errors.Is(err, supabase.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "precheck failed",
			Message: err.Error(),
		})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// NGINX: disable response buffering
	c.Header("X-Accel-Buffering", "no")

	sent := map[string]bool{"image": false, "story": false, "keywords": false, "recommendation": false}
	start := time.Now()
	lastEvent := start

	emit := func(event string, payload interface{}) {
		c.SSEvent(event, payload)
		c.Writer.Flush()
		lastEvent = time.Now()
	}

	ticker := time.NewTicker(h.opts.PollInterval)
	defer ticker.Stop()

	for {
		if time.Since(start) > h.opts.Timeout {
			emit("generation_failed", gin.H{"reason": "timeout"})
			return
		}

		if time.Since(lastEvent) >= h.opts.HeartbeatInterval {
			emit("ping", gin.H{"t": time.Now().Unix()})
		}

		record, err := h.reader.GetRecord(recordID)
		if err != nil {
			// Poll failures are not terminal; keep trying until timeout
			emit("error", gin.H{"step": "poll", "error": err.Error()})
		} else {
			if done := h.observe(record, sent, emit); done {
				return
			}
		}

		select {
		case <-c.Request.Context().Done():
			// Client disconnected; exit quietly
			return
		case <-ticker.C:
		}
	}
}

// observe compares one snapshot of the record against what was already
// reported, emitting each stage event at most once per connection. It
// returns true once a terminal event has been sent.
func (h *StreamHandler) observe(record *models.GenerationRecord, sent map[string]bool, emit func(string, interface{})) bool {
	if record.ImageStatus == models.ImageStatusError {
		emit("generation_failed", gin.H{"reason": "stage_failed", "stage": "image"})
		return true
	}
	if record.StoryStatus == models.StoryStatusError {
		emit("generation_failed", gin.H{"reason": "stage_failed", "stage": "story"})
		return true
	}
	if record.KeywordsStatus == models.StoryStatusError {
		emit("generation_failed", gin.H{"reason": "stage_failed", "stage": "keywords"})
		return true
	}

	if !sent["image"] && record.ImageStatus == models.ImageStatusReady {
		images, err := h.reader.ListRecordImages(record.RecordID)
		if err != nil {
			emit("error", gin.H{"step": "images", "error": err.Error()})
		} else {
			payload := make([]models.RecordImageResponse, 0, len(images))
			for _, image := range images {
				payload = append(payload, models.RecordImageResponse{
					ImageID: image.ImageID.String(),
					Seq:     image.Seq,
					URL:     image.URL,
				})
			}
			emit("images_generated", payload)
			sent["image"] = true
		}
	}

	if !sent["story"] && record.StoryStatus == models.StoryStatusReady {
		emit("story_generated", gin.H{"story": record.Story.String})
		sent["story"] = true
	}

	if !sent["keywords"] && record.KeywordsStatus == models.StoryStatusReady {
		emit("keywords_generated", gin.H{"keywords": []string(record.Keywords)})
		sent["keywords"] = true
	}

	if record.RecommendationStatus == models.RecommendationStatusFailed {
		reason := "unknown"
		if record.RecommendationError.Valid {
			reason = record.RecommendationError.String
		}
		emit("generation_failed", gin.H{"reason": "stage_failed", "stage": "recommendation", "error": reason})
		return true
	}
	if !sent["recommendation"] && record.RecommendationStatus == models.RecommendationStatusReady {
		emit("recommendation_generated", gin.H{"reference_image_id": record.ReferenceImageID.String})
		sent["recommendation"] = true
	}

	if sent["image"] && sent["story"] && sent["keywords"] && sent["recommendation"] {
		emit("done", gin.H{"ok": true})
		return true
	}

	return false
}
