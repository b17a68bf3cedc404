package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"layerminder-backend/internal/embedding"
	"layerminder-backend/internal/models"
)

// DefaultOutputCount is the fixed batch of variants synthesized per record.
const DefaultOutputCount = 4

// KeywordsDelimiter separates the free-text story from the keyword tail in
// the description model's response.
const KeywordsDelimiter = "Keywords:"

// Stage failure reasons recorded on the record.
const (
	ReasonNoImagesAvailable = "no_images_available"
	ReasonNoCandidateFound  = "no_candidate_found"
)

// RecordStore is the persistence surface the orchestrator writes through.
// The orchestrator is the exclusive owner of stage-status transitions.
type RecordStore interface {
	ClaimRecord(recordID uuid.UUID) (bool, error)
	UpdateImageStatus(recordID uuid.UUID, status string) error
	UpdateStoryKeywordsStatus(recordID uuid.UUID, status string) error
	SetStoryAndKeywords(recordID uuid.UUID, story string, keywords []string) error
	UpdateRecommendationStatus(recordID uuid.UUID, status string) error
	SetRecommendation(recordID uuid.UUID, referenceImageID string) error
	SetRecommendationFailed(recordID uuid.UUID, reason string) error
	CreateImage(image *models.Image) error
	CreateRecordImage(recordID, imageID uuid.UUID, seq int) error
	ListRecordImages(recordID uuid.UUID) ([]models.RecordImage, error)
}

// ObjectStore reads input images and writes synthesized outputs.
type ObjectStore interface {
	DownloadObject(fileKey string) ([]byte, error)
	UploadGenerated(userID uuid.UUID, filename string, data []byte) (string, error)
}

// Synthesizer is the image-synthesis capability: 1-2 input images and an
// optional style hint in, a fixed batch of raw image payloads out.
type Synthesizer interface {
	Synthesize(ctx context.Context, inputs [][]byte, styleHint string, count int) ([][]byte, error)
}

// Describer is the description capability over the generated image URLs.
type Describer interface {
	Describe(ctx context.Context, imageURLs []string) (string, error)
}

// Recommender yields the nearest non-input reference, or nil for no match.
type Recommender interface {
	Recommend(ctx context.Context, imageURLs []string, topK int) (*embedding.Reference, error)
}

// StageStatus is the canonical per-stage state. Within one pipeline run a
// stage only ever moves pending -> processing -> ready|failed.
type StageStatus int

const (
	StagePending StageStatus = iota
	StageProcessing
	StageReady
	StageFailed
)

var stageTransitions = map[StageStatus][]StageStatus{
	StagePending:    {StageProcessing},
	StageProcessing: {StageReady, StageFailed},
}

// CanTransition reports whether a stage may move from one status to another.
func CanTransition(from, to StageStatus) bool {
	for _, next := range stageTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type pipelineStage int

const (
	stageImage pipelineStage = iota
	stageStory
	stageKeywords
	stageRecommendation
	stageCount
)

// PipelineOrchestrator drives one record through the ordered stages
// image -> story+keywords -> recommendation, persisting every status
// transition. A failed image stage short-circuits the rest; a failed
// story/keywords stage short-circuits recommendation; a recommendation
// failure is terminal but isolated.
type PipelineOrchestrator struct {
	store       RecordStore
	objects     ObjectStore
	synthesizer Synthesizer
	describer   Describer
	recommender Recommender
	outputCount int
}

func NewPipelineOrchestrator(
	store RecordStore,
	objects ObjectStore,
	synthesizer Synthesizer,
	describer Describer,
	recommender Recommender,
) *PipelineOrchestrator {
	return &PipelineOrchestrator{
		store:       store,
		objects:     objects,
		synthesizer: synthesizer,
		describer:   describer,
		recommender: recommender,
		outputCount: DefaultOutputCount,
	}
}

// Run executes the full pipeline for one record. It is meant to run as its
// own goroutine; it never panics out and never returns an error to its
// caller, recording failures on the record instead.
func (p *PipelineOrchestrator) Run(ctx context.Context, recordID, userID uuid.UUID, inputImageKeys []string, keyword string) {
	states := [stageCount]StageStatus{}

	// Re-entrancy guard: a single conditional update claims the record,
	// so a duplicated invocation loses the race and backs off.
	claimed, err := p.store.ClaimRecord(recordID)
	if err != nil {
		log.Printf("[Pipeline] Failed to claim record %s: %v", recordID, err)
		return
	}
	if !claimed {
		log.Printf("[Pipeline] Record %s already claimed, skipping duplicate invocation", recordID)
		return
	}
	states[stageImage] = StageProcessing

	// 1) Image synthesis
	if err := p.runImageStage(ctx, recordID, userID, inputImageKeys, keyword); err != nil {
		log.Printf("[Pipeline] Image generation failed for record %s: %v", recordID, err)
		p.advance(recordID, &states, stageImage, StageFailed)
		return
	}
	p.advance(recordID, &states, stageImage, StageReady)

	// 2) Story & keywords
	p.advance(recordID, &states, stageStory, StageProcessing)
	if err := p.runStoryStage(ctx, recordID); err != nil {
		log.Printf("[Pipeline] Story generation failed for record %s: %v", recordID, err)
		p.advance(recordID, &states, stageStory, StageFailed)
		return
	}
	p.advance(recordID, &states, stageStory, StageReady)

	// 3) Recommendation. Failures here are recorded on the record and
	// never escalate; the record itself stays usable.
	p.advance(recordID, &states, stageRecommendation, StageProcessing)
	p.runRecommendationStage(ctx, recordID, &states)
}

// advance validates the transition against the stage table and persists it.
// Story and keywords share one status pair and move together.
func (p *PipelineOrchestrator) advance(recordID uuid.UUID, states *[stageCount]StageStatus, stage pipelineStage, to StageStatus) {
	if !CanTransition(states[stage], to) {
		log.Printf("[Pipeline] Invalid stage transition %d -> %d for record %s", states[stage], to, recordID)
		return
	}
	states[stage] = to
	if stage == stageStory {
		states[stageKeywords] = to
	}

	var err error
	switch stage {
	case stageImage:
		err = p.store.UpdateImageStatus(recordID, imageStatusValue(to))
	case stageStory, stageKeywords:
		// The ready write happens in SetStoryAndKeywords, together with
		// the stage outputs.
		if to != StageReady {
			err = p.store.UpdateStoryKeywordsStatus(recordID, storyStatusValue(to))
		}
	case stageRecommendation:
		// Terminal writes happen in SetRecommendation and
		// SetRecommendationFailed, together with their payloads.
		if to == StageProcessing {
			err = p.store.UpdateRecommendationStatus(recordID, models.RecommendationStatusProcessing)
		}
	}
	if err != nil {
		log.Printf("[Pipeline] Failed to persist status for record %s: %v", recordID, err)
	}
}

func (p *PipelineOrchestrator) runImageStage(ctx context.Context, recordID, userID uuid.UUID, inputImageKeys []string, keyword string) error {
	inputs := make([][]byte, 0, len(inputImageKeys))
	for _, key := range inputImageKeys {
		data, err := p.objects.DownloadObject(key)
		if err != nil {
			return fmt.Errorf("failed to load input image %s: %w", key, err)
		}
		inputs = append(inputs, data)
	}

	outputs, err := p.synthesizer.Synthesize(ctx, inputs, keyword, p.outputCount)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	for i, data := range outputs {
		imageID := uuid.New()
		filename := strings.ReplaceAll(imageID.String(), "-", "") + ".jpeg"

		url, err := p.objects.UploadGenerated(userID, filename, data)
		if err != nil {
			return fmt.Errorf("failed to store generated image: %w", err)
		}

		if err := p.store.CreateImage(&models.Image{
			ImageID: imageID,
			UserID:  userID,
			URL:     url,
		}); err != nil {
			return fmt.Errorf("failed to persist image: %w", err)
		}
		if err := p.store.CreateRecordImage(recordID, imageID, i+1); err != nil {
			return fmt.Errorf("failed to persist record image: %w", err)
		}
	}

	return nil
}

func (p *PipelineOrchestrator) runStoryStage(ctx context.Context, recordID uuid.UUID) error {
	urls, err := p.recordImageURLs(recordID)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no images for record %s", recordID)
	}

	response, err := p.describer.Describe(ctx, urls)
	if err != nil {
		return fmt.Errorf("description failed: %w", err)
	}

	story, keywords := ParseStoryResponse(response)
	if err := p.store.SetStoryAndKeywords(recordID, story, keywords); err != nil {
		return fmt.Errorf("failed to persist story: %w", err)
	}

	return nil
}

func (p *PipelineOrchestrator) runRecommendationStage(ctx context.Context, recordID uuid.UUID, states *[stageCount]StageStatus) {
	fail := func(reason string) {
		p.advance(recordID, states, stageRecommendation, StageFailed)
		if err := p.store.SetRecommendationFailed(recordID, reason); err != nil {
			log.Printf("[Pipeline] Failed to persist recommendation failure for record %s: %v", recordID, err)
		}
	}

	urls, err := p.recordImageURLs(recordID)
	if err != nil {
		log.Printf("[Pipeline] Recommendation failed for record %s: %v", recordID, err)
		fail(ReasonNoImagesAvailable)
		return
	}
	if len(urls) == 0 {
		fail(ReasonNoImagesAvailable)
		return
	}

	ref, err := p.recommender.Recommend(ctx, urls, 1)
	if err != nil {
		log.Printf("[Pipeline] Recommendation failed for record %s: %v", recordID, err)
		fail(recommendationFailureReason(err))
		return
	}
	if ref == nil {
		fail(ReasonNoCandidateFound)
		return
	}

	p.advance(recordID, states, stageRecommendation, StageReady)
	if err := p.store.SetRecommendation(recordID, ref.ID); err != nil {
		log.Printf("[Pipeline] Failed to persist recommendation for record %s: %v", recordID, err)
	}
}

func (p *PipelineOrchestrator) recordImageURLs(recordID uuid.UUID) ([]string, error) {
	images, err := p.store.ListRecordImages(recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load record images: %w", err)
	}

	urls := make([]string, 0, len(images))
	for _, image := range images {
		urls = append(urls, image.URL)
	}
	return urls, nil
}

// recommendationFailureReason names the failure kind on the record so a
// client can tell a missing match from broken infrastructure.
func recommendationFailureReason(err error) string {
	switch {
	case errors.Is(err, ErrEmbeddingFetchFailed):
		return "embedding_fetch_failed: " + err.Error()
	case errors.Is(err, ErrIndexQueryFailed):
		return "index_query_failed: " + err.Error()
	default:
		return "recommendation_failed: " + err.Error()
	}
}

// ParseStoryResponse splits the description response on the keywords
// delimiter. A response with no delimiter is not an error: the whole text
// becomes the story and the keyword list is empty. The list is always
// non-nil so it persists as an empty array, never as NULL.
func ParseStoryResponse(response string) (string, []string) {
	story, tail, found := strings.Cut(response, KeywordsDelimiter)
	story = strings.TrimSpace(story)
	keywords := []string{}
	if !found {
		return story, keywords
	}

	for _, keyword := range strings.Split(tail, ",") {
		if trimmed := strings.TrimSpace(keyword); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return story, keywords
}

func imageStatusValue(status StageStatus) string {
	switch status {
	case StageProcessing:
		return models.ImageStatusProcessing
	case StageReady:
		return models.ImageStatusReady
	default:
		return models.ImageStatusError
	}
}

func storyStatusValue(status StageStatus) string {
	switch status {
	case StageProcessing:
		return models.StoryStatusProcessing
	case StageReady:
		return models.StoryStatusReady
	default:
		return models.StoryStatusError
	}
}
